package billing

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/cyclebill/cyclebill/internal/domain/cusproduct"
	"github.com/cyclebill/cyclebill/internal/domain/product"
	ierr "github.com/cyclebill/cyclebill/internal/errors"
)

// Plan is the computed, pure-data result of an attach: the store mutations to
// apply and the proration line items to invoice. A plan is either valid and
// complete or an error was returned instead; there is no partial result.
type Plan struct {
	// Insert holds the new CustomerProducts to create.
	Insert []*cusproduct.CustomerProduct `json:"insert,omitempty"`

	// Update patches the replaced CustomerProduct. At most one per operation.
	Update *cusproduct.Patch `json:"update,omitempty"`

	// Delete discards a still-Scheduled CustomerProduct superseded by this
	// attach. At most one per operation.
	Delete *cusproduct.CustomerProduct `json:"delete,omitempty"`

	// LineItems are the ordered proration charges and credits.
	LineItems []LineItem `json:"line_items,omitempty"`

	// CustomPrices / CustomEntitlements are overrides scoped to this attach.
	CustomPrices       []*product.Price       `json:"custom_prices,omitempty"`
	CustomEntitlements []*product.Entitlement `json:"custom_entitlements,omitempty"`
}

// LineItem is a single charge or credit descriptor. Amount is signed:
// negative amounts are credits.
type LineItem struct {
	ID          string          `json:"id"`
	PriceID     string          `json:"price_id"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	PeriodStart time.Time       `json:"period_start"`
	PeriodEnd   time.Time       `json:"period_end"`
	EffectiveAt time.Time       `json:"effective_at"`
}

// IsCredit reports whether the line item refunds rather than charges.
func (li LineItem) IsCredit() bool {
	return li.Amount.IsNegative()
}

// Validate enforces the structural invariants a plan must satisfy before it
// may be applied: every inserted Scheduled row starts strictly after the plan
// was computed, and the insert set itself never doubles up a product group.
// Add-ons and one-off products never transition, so they stay outside the
// group accounting.
func (p *Plan) Validate(now time.Time) error {
	seenGroups := map[string]bool{}
	for _, cp := range p.Insert {
		if cp.IsScheduled() && !cp.StartsAt.After(now) {
			return ierr.NewError("scheduled product must start in the future").
				WithReportableDetails(map[string]any{
					"customer_product_id": cp.ID,
					"starts_at":           cp.StartsAt,
				}).
				Mark(ierr.ErrInconsistentState)
		}
		if cp.IsActive() && cp.Product != nil && !cp.Product.IsAddOn && !cp.Product.IsOneOff() && cp.Product.Group != "" {
			key := cp.Group() + "|" + cp.EntityID
			if seenGroups[key] {
				return ierr.NewError("plan inserts two active products in one group").
					WithReportableDetails(map[string]any{"group": cp.Group()}).
					Mark(ierr.ErrInconsistentState)
			}
			seenGroups[key] = true
		}
	}
	return nil
}
