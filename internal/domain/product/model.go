package product

import (
	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/cyclebill/cyclebill/internal/types"
)

// Product is a sellable plan: an ordered price list plus the entitlements it
// grants. Group classifies main products; at most one product per group may be
// active for a customer at a time.
type Product struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Group   string `json:"group"`
	Version int    `json:"version"`

	// IsAddOn products stack on top of a main product and never replace one.
	IsAddOn bool `json:"is_add_on"`

	// FreeTrialDays is the product's configured trial length. Zero means the
	// product ships without a trial.
	FreeTrialDays int `json:"free_trial_days,omitempty"`

	Prices       []*Price       `json:"prices"`
	Entitlements []*Entitlement `json:"entitlements"`
}

// Price is a single charge definition on a product.
type Price struct {
	ID string `json:"id"`

	// ProcessorPriceID is the price's identifier at the payment processor.
	ProcessorPriceID string `json:"processor_price_id"`

	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`

	Type    types.PriceType      `json:"type"`
	Cadence types.BillingCadence `json:"cadence"`

	// BillingPeriod and PeriodCount define the recurring interval. Unset for
	// one-time prices.
	BillingPeriod types.BillingPeriod `json:"billing_period,omitempty"`
	PeriodCount   int                 `json:"period_count,omitempty"`

	// Quantity is the default quantity attached per subscription item.
	Quantity decimal.Decimal `json:"quantity"`

	// PrepaidFeatureID marks a prepaid price whose quantity tracks a feature
	// balance. Two products in one batch must not prepay the same feature.
	PrepaidFeatureID string `json:"prepaid_feature_id,omitempty"`
}

// Entitlement grants access to a feature, optionally with a usage allowance.
type Entitlement struct {
	ID        string           `json:"id"`
	FeatureID string           `json:"feature_id"`
	Allowance *decimal.Decimal `json:"allowance,omitempty"`
}

// IsRecurring reports whether the price bills on an interval.
func (p *Price) IsRecurring() bool {
	return p.Cadence == types.BILLING_CADENCE_RECURRING
}

// IsUsageBased reports whether the processor meters this price itself.
func (p *Price) IsUsageBased() bool {
	return p.Type == types.PRICE_TYPE_USAGE
}

// RecurringPrices returns the recurring subset of the product's prices,
// preserving order.
func (p *Product) RecurringPrices() []*Price {
	return lo.Filter(p.Prices, func(price *Price, _ int) bool {
		return price.IsRecurring()
	})
}

// IsOneOff reports whether the product only carries one-time prices.
func (p *Product) IsOneOff() bool {
	return len(p.Prices) > 0 && len(p.RecurringPrices()) == 0
}

// IsFree reports whether attaching the product charges nothing.
func (p *Product) IsFree() bool {
	return lo.EveryBy(p.Prices, func(price *Price) bool {
		return price.Amount.IsZero()
	})
}
