package billing

import (
	"time"

	"github.com/cyclebill/cyclebill/internal/domain/cusproduct"
	"github.com/cyclebill/cyclebill/internal/domain/product"
	ierr "github.com/cyclebill/cyclebill/internal/errors"
	"github.com/cyclebill/cyclebill/internal/types"
)

// Transition is the resolver's classification of a single attach: what it
// replaces, what pending schedule it supersedes, and when it takes effect.
type Transition struct {
	// Current is the Active product being replaced, nil for a new attach.
	Current *cusproduct.CustomerProduct

	// Scheduled is the pending Scheduled product in the same group, if any.
	// A new attach always supersedes it.
	Scheduled *cusproduct.CustomerProduct

	Scenario types.AttachScenario
	Timing   types.TransitionTiming
}

// HasTransition reports whether the attach replaces an existing product.
func (t *Transition) HasTransition() bool {
	return t.Current != nil
}

// ResolveTransition classifies an attach of target against the customer's
// current products. Add-ons and one-off products never transition. For main
// products the single Active product in the target's group decides: none
// means a new attach, a cheaper current product means an immediate upgrade,
// anything else schedules for the end of the cycle.
func ResolveTransition(
	target *product.Product,
	currentProducts []*cusproduct.CustomerProduct,
	entityID string,
	now time.Time,
) (*Transition, error) {
	if target.IsAddOn || target.IsOneOff() {
		return &Transition{Scenario: types.AttachScenarioNew}, nil
	}

	actives := cusproduct.FindActiveInGroup(currentProducts, target.Group, entityID)
	if len(actives) > 1 {
		return nil, ierr.NewError("more than one active product in group").
			WithReportableDetails(map[string]any{
				"group":     target.Group,
				"entity_id": entityID,
				"product_ids": func() []string {
					ids := make([]string, len(actives))
					for i, cp := range actives {
						ids[i] = cp.ProductID
					}
					return ids
				}(),
			}).
			Mark(ierr.ErrInconsistentState)
	}

	scheduleds := cusproduct.FindScheduledInGroup(currentProducts, target.Group, entityID)
	if len(scheduleds) > 1 {
		return nil, ierr.NewError("more than one scheduled product in group").
			WithReportableDetails(map[string]any{
				"group":     target.Group,
				"entity_id": entityID,
			}).
			Mark(ierr.ErrInconsistentState)
	}

	tr := &Transition{Scenario: types.AttachScenarioNew}
	if len(scheduleds) == 1 {
		tr.Scheduled = scheduleds[0]
	}
	if len(actives) == 0 {
		return tr, nil
	}

	tr.Current = actives[0]
	if tr.Current.Product == nil {
		return nil, ierr.NewError("current customer product has no product loaded").
			WithReportableDetails(map[string]any{"customer_product_id": tr.Current.ID}).
			Mark(ierr.ErrInconsistentState)
	}

	if target.IsUpgradeFrom(tr.Current.Product) {
		tr.Scenario = types.AttachScenarioUpgrade
		tr.Timing = types.TransitionTimingImmediate
	} else {
		// Downgrades and equal-priced switches take effect at the end of the
		// cycle; the current product keeps running until then.
		tr.Scenario = types.AttachScenarioDowngrade
		tr.Timing = types.TransitionTimingEndOfCycle
	}
	return tr, nil
}
