package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/cyclebill/cyclebill/internal/types"
)

type Configuration struct {
	Logging   LoggingConfig   `validate:"required"`
	Billing   BillingConfig   `validate:"required"`
	Processor ProcessorConfig `validate:"required"`
}

type LoggingConfig struct {
	Level string `validate:"required,oneof=debug info warn error"`
}

type BillingConfig struct {
	// ProrationStrategy picks the proration coefficient granularity.
	ProrationStrategy types.ProrationStrategy `mapstructure:"proration_strategy" validate:"required,oneof=day_based second_based"`

	// DefaultTimezone is used for day-based proration when the customer has
	// no timezone of their own.
	DefaultTimezone string `mapstructure:"default_timezone" validate:"required"`
}

type ProcessorConfig struct {
	// SecretKey authenticates calls to the payment processor.
	SecretKey string `mapstructure:"secret_key"`

	// WebhookSecret verifies inbound processor events. Verification itself
	// happens in the transport layer; the key lives here so deployments carry
	// one config surface.
	WebhookSecret string `mapstructure:"webhook_secret"`
}

func NewConfig() (*Configuration, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./internal/config")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/cyclebill")

	v.SetEnvPrefix("CYCLEBILL")
	v.SetEnvKeyReplacer(strings.NewReplacer(
		".", "_",
		"-", "_",
	))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, err
		}
	} else {
		fmt.Printf("Using config file: %s\n", v.ConfigFileUsed())
	}

	var config Configuration
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func (c Configuration) Validate() error {
	validate := validator.New()
	return validate.Struct(c)
}

// GetDefaultConfig returns a default configuration for local development
// and tests.
func GetDefaultConfig() *Configuration {
	return &Configuration{
		Logging: LoggingConfig{Level: "debug"},
		Billing: BillingConfig{
			ProrationStrategy: types.StrategyDayBased,
			DefaultTimezone:   "UTC",
		},
		Processor: ProcessorConfig{},
	}
}
