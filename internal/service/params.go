package service

import (
	"github.com/cyclebill/cyclebill/internal/config"
	"github.com/cyclebill/cyclebill/internal/domain/cusproduct"
	"github.com/cyclebill/cyclebill/internal/domain/product"
	"github.com/cyclebill/cyclebill/internal/domain/proration"
	"github.com/cyclebill/cyclebill/internal/logger"
	"github.com/cyclebill/cyclebill/internal/processor"
)

// ServiceParams holds the dependencies shared by all services. Keeping them
// in one struct means a new dependency changes one constructor signature.
type ServiceParams struct {
	Logger *logger.Logger
	Config *config.Configuration

	CusProductRepo cusproduct.Repository
	ProductRepo    product.Repository

	Processor processor.Client

	ProrationCalculator proration.Calculator
}
