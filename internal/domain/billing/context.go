package billing

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/cyclebill/cyclebill/internal/domain/cusproduct"
	"github.com/cyclebill/cyclebill/internal/domain/product"
	ierr "github.com/cyclebill/cyclebill/internal/errors"
	"github.com/cyclebill/cyclebill/internal/types"
)

// Context is an immutable per-operation snapshot of everything the engine
// needs to compute a plan. The engine never reads the wall clock: Now is
// injected by the caller, so a plan is a deterministic function of its
// context.
type Context struct {
	Now time.Time `validate:"required"`

	CustomerID string `validate:"required"`

	// EntityID scopes the operation to a sub-entity of the customer. Empty
	// means customer-level.
	EntityID string

	// CurrentProducts is the customer's product snapshot, read under a single
	// consistent read before the plan is computed.
	CurrentProducts []*cusproduct.CustomerProduct

	// Targets are the products being attached. A single attach carries one;
	// multi-attach carries several.
	Targets []*product.Product `validate:"required,min=1"`

	// Processor-side state fetched by the caller.
	HasPaymentMethod         bool
	HasProcessorSubscription bool
	Discounts                []Discount

	// ForceNewSubscription is set when the caller explicitly requested a new
	// processor subscription instead of merging into an existing one.
	ForceNewSubscription bool

	RedirectMode types.RedirectMode

	// Trial parameters. TrialMode decides whether TrialEndsAt (explicit) or
	// the target product's configured trial (inherit) applies.
	TrialMode   types.TrialMode
	TrialEndsAt *time.Time

	// BillingCycleAnchor aligns the new product's cycle to an existing date
	// instead of Now. Nil means anchor to the natural boundary.
	BillingCycleAnchor *time.Time

	ProrationBehavior types.ProrationBehavior

	// CustomerTimezone drives day-based proration boundaries.
	CustomerTimezone string

	// OriginalAmountsPaid caps proration credits per price: what the customer
	// actually paid for each price in the current period. Missing entries
	// fall back to the price's list amount.
	OriginalAmountsPaid map[string]decimal.Decimal

	// CustomPrices / CustomEntitlements are ad-hoc overrides for this attach
	// only; they pass through onto the plan for the caller to persist.
	CustomPrices       []*product.Price
	CustomEntitlements []*product.Entitlement
}

var validate = validator.New()

// Validate checks the structural invariants of the context.
func (c *Context) Validate() error {
	if err := validate.Struct(c); err != nil {
		return ierr.WithError(err).
			WithHint("billing context is incomplete").
			Mark(ierr.ErrValidation)
	}
	for _, target := range c.Targets {
		if target == nil {
			return ierr.NewError("nil target product").
				Mark(ierr.ErrValidation)
		}
	}
	if c.ProrationBehavior == "" {
		c.ProrationBehavior = types.ProrationBehaviorCreateProrations
	}
	if c.TrialMode == "" {
		c.TrialMode = types.TrialModeInherit
	}
	if c.RedirectMode == "" {
		c.RedirectMode = types.RedirectModeIfRequired
	}
	return nil
}

// Discount is a processor-level reduction applied to charge line items.
// Exactly one of PercentOff / AmountOff is set.
type Discount struct {
	ID         string           `json:"id"`
	PercentOff *decimal.Decimal `json:"percent_off,omitempty"`
	AmountOff  *decimal.Decimal `json:"amount_off,omitempty"`
	Currency   string           `json:"currency,omitempty"`
}
