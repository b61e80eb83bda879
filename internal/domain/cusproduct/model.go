package cusproduct

import (
	"time"

	"github.com/samber/lo"

	"github.com/cyclebill/cyclebill/internal/domain/product"
	"github.com/cyclebill/cyclebill/internal/types"
)

// CustomerProduct is one customer's instance of a product, with its own
// lifecycle status and dates.
//
// Nullability conventions, fixed once for the whole engine:
//   - EndedAt nil means the product runs until replaced or canceled.
//   - TrialEndsAt nil means no trial was ever configured.
//   - CanceledAt nil means no cancellation was requested.
//
// Zero time values are never used as sentinels.
type CustomerProduct struct {
	ID         string `json:"id"`
	CustomerID string `json:"customer_id"`

	// EntityID scopes the product to a sub-entity of the customer (a seat, a
	// workspace). Empty means customer-level. Group uniqueness is checked per
	// entity scope.
	EntityID string `json:"entity_id,omitempty"`

	ProductID string           `json:"product_id"`
	Product   *product.Product `json:"product,omitempty"`

	Status types.CustomerProductStatus `json:"status"`

	// StartsAt may be in the future for Scheduled products.
	StartsAt    time.Time  `json:"starts_at"`
	EndedAt     *time.Time `json:"ended_at,omitempty"`
	CanceledAt  *time.Time `json:"canceled_at,omitempty"`
	TrialEndsAt *time.Time `json:"trial_ends_at,omitempty"`

	// Canceled is the "will not renew" flag, independent of status: a canceled
	// product stays Active until its period ends.
	Canceled bool `json:"canceled"`

	// Processor linkage.
	SubscriptionID string `json:"subscription_id,omitempty"`
	ScheduleID     string `json:"schedule_id,omitempty"`

	// UsageSnapshotIDs reference usage/rollover state carried forward from a
	// replaced product. Balance bookkeeping itself lives in the entitlement
	// subsystem.
	UsageSnapshotIDs []string `json:"usage_snapshot_ids,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// IsActive reports whether the product counts toward the one-active-per-group
// invariant.
func (cp *CustomerProduct) IsActive() bool {
	return cp.Status == types.CustomerProductStatusActive ||
		cp.Status == types.CustomerProductStatusPastDue
}

// IsScheduled reports whether the product is a pending future row.
func (cp *CustomerProduct) IsScheduled() bool {
	return cp.Status == types.CustomerProductStatusScheduled
}

// SameScope reports whether two rows live in the same entity scope.
func (cp *CustomerProduct) SameScope(entityID string) bool {
	return cp.EntityID == entityID
}

// Group returns the product group, empty if the product is not loaded.
func (cp *CustomerProduct) Group() string {
	if cp.Product == nil {
		return ""
	}
	return cp.Product.Group
}

// OnTrialAt reports whether the product is inside its trial window at t.
func (cp *CustomerProduct) OnTrialAt(t time.Time) bool {
	return cp.TrialEndsAt != nil && cp.TrialEndsAt.After(t)
}

// FindActiveInGroup returns the Active (or PastDue) products in the given
// group and entity scope.
func FindActiveInGroup(cusProducts []*CustomerProduct, group, entityID string) []*CustomerProduct {
	return lo.Filter(cusProducts, func(cp *CustomerProduct, _ int) bool {
		return cp.IsActive() && cp.Group() == group && cp.SameScope(entityID)
	})
}

// FindScheduledInGroup returns the Scheduled products in the given group and
// entity scope.
func FindScheduledInGroup(cusProducts []*CustomerProduct, group, entityID string) []*CustomerProduct {
	return lo.Filter(cusProducts, func(cp *CustomerProduct, _ int) bool {
		return cp.IsScheduled() && cp.Group() == group && cp.SameScope(entityID)
	})
}
