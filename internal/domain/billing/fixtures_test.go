package billing

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/cyclebill/cyclebill/internal/domain/cusproduct"
	"github.com/cyclebill/cyclebill/internal/domain/product"
	"github.com/cyclebill/cyclebill/internal/types"
)

var testNow = time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)

func monthlyProduct(id, group string, amount int64) *product.Product {
	return &product.Product{
		ID:    id,
		Name:  id,
		Group: group,
		Prices: []*product.Price{
			{
				ID:               id + "_price",
				ProcessorPriceID: "proc_" + id,
				Amount:           decimal.NewFromInt(amount),
				Currency:         "USD",
				Type:             types.PRICE_TYPE_FIXED,
				Cadence:          types.BILLING_CADENCE_RECURRING,
				BillingPeriod:    types.BILLING_PERIOD_MONTHLY,
				PeriodCount:      1,
				Quantity:         decimal.NewFromInt(1),
			},
		},
	}
}

func oneOffProduct(id, group string, amount int64) *product.Product {
	return &product.Product{
		ID:    id,
		Name:  id,
		Group: group,
		Prices: []*product.Price{
			{
				ID:               id + "_price",
				ProcessorPriceID: "proc_" + id,
				Amount:           decimal.NewFromInt(amount),
				Currency:         "USD",
				Type:             types.PRICE_TYPE_FIXED,
				Cadence:          types.BILLING_CADENCE_ONETIME,
				Quantity:         decimal.NewFromInt(1),
			},
		},
	}
}

func addOnProduct(id string, amount int64) *product.Product {
	p := monthlyProduct(id, "", amount)
	p.IsAddOn = true
	return p
}

func activeCustomerProduct(id string, p *product.Product, startsAt time.Time) *cusproduct.CustomerProduct {
	return &cusproduct.CustomerProduct{
		ID:         id,
		CustomerID: "cust_1",
		ProductID:  p.ID,
		Product:    p,
		Status:     types.CustomerProductStatusActive,
		StartsAt:   startsAt,
	}
}

func scheduledCustomerProduct(id string, p *product.Product, startsAt time.Time) *cusproduct.CustomerProduct {
	cp := activeCustomerProduct(id, p, startsAt)
	cp.Status = types.CustomerProductStatusScheduled
	return cp
}

func baseContext(targets ...*product.Product) *Context {
	return &Context{
		Now:        testNow,
		CustomerID: "cust_1",
		Targets:    targets,
	}
}
