package billing

import (
	"github.com/samber/lo"

	"github.com/cyclebill/cyclebill/internal/domain/cusproduct"
	"github.com/cyclebill/cyclebill/internal/domain/product"
	ierr "github.com/cyclebill/cyclebill/internal/errors"
	"github.com/cyclebill/cyclebill/internal/types"
)

// ValidateBatch runs the fail-fast invariant checks over the context's target
// products and resolves a transition per target. It returns the transitions in
// target order. All checks happen before any plan is composed: a rejected
// batch produces no mutations at all.
func ValidateBatch(bc *Context) ([]*Transition, error) {
	if err := checkDuplicateTargets(bc.Targets); err != nil {
		return nil, err
	}
	if err := checkSelfReattach(bc); err != nil {
		return nil, err
	}
	if err := checkDuplicatePrepaidFeatures(bc.Targets); err != nil {
		return nil, err
	}
	if err := checkFreeTrialConflict(bc.Targets); err != nil {
		return nil, err
	}
	if err := checkRedirectConflict(bc); err != nil {
		return nil, err
	}

	transitions := make([]*Transition, len(bc.Targets))
	transitioning := []string{}
	for i, target := range bc.Targets {
		tr, err := ResolveTransition(target, bc.CurrentProducts, bc.EntityID, bc.Now)
		if err != nil {
			return nil, err
		}
		transitions[i] = tr
		if tr.HasTransition() {
			transitioning = append(transitioning, target.ID)
		}
	}

	// Only one processor subscription-item transition can be coherently
	// scheduled per operation, so at most one target may replace an existing
	// product.
	if len(transitioning) > 1 {
		return nil, ierr.NewError("multiple products would replace existing subscriptions").
			WithHint("a batch attach supports at most one upgrade or downgrade").
			WithReportableDetails(map[string]any{"product_ids": transitioning}).
			Mark(ierr.ErrValidation)
	}

	return transitions, nil
}

func checkDuplicateTargets(targets []*product.Product) error {
	ids := lo.Map(targets, func(p *product.Product, _ int) string { return p.ID })
	if len(lo.Uniq(ids)) != len(ids) {
		return ierr.NewError("duplicate product ids in batch").
			WithReportableDetails(map[string]any{"product_ids": ids}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

func checkSelfReattach(bc *Context) error {
	for _, target := range bc.Targets {
		already := lo.ContainsBy(bc.CurrentProducts, func(cp *cusproduct.CustomerProduct) bool {
			return cp.IsActive() && cp.ProductID == target.ID && cp.SameScope(bc.EntityID)
		})
		if already {
			return ierr.NewErrorf("product %s is already attached", target.ID).
				WithHint("the customer already has an active subscription to this product").
				WithReportableDetails(map[string]any{"product_id": target.ID}).
				Mark(ierr.ErrValidation)
		}
	}
	return nil
}

func checkDuplicatePrepaidFeatures(targets []*product.Product) error {
	seen := map[string]string{} // feature id -> product id
	for _, target := range targets {
		for _, price := range target.Prices {
			if price.PrepaidFeatureID == "" {
				continue
			}
			if other, ok := seen[price.PrepaidFeatureID]; ok && other != target.ID {
				return ierr.NewError("duplicate prepaid feature in batch").
					WithHintf("products %s and %s both prepay feature %s", other, target.ID, price.PrepaidFeatureID).
					WithReportableDetails(map[string]any{
						"feature_id":  price.PrepaidFeatureID,
						"product_ids": []string{other, target.ID},
					}).
					Mark(ierr.ErrValidation)
			}
			seen[price.PrepaidFeatureID] = target.ID
		}
	}
	return nil
}

func checkFreeTrialConflict(targets []*product.Product) error {
	withTrial := lo.Filter(targets, func(p *product.Product, _ int) bool {
		return p.FreeTrialDays > 0
	})
	if len(withTrial) > 1 {
		return ierr.NewError("cannot attach multiple products with free trials").
			WithReportableDetails(map[string]any{
				"product_ids": lo.Map(withTrial, func(p *product.Product, _ int) string { return p.ID }),
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

func checkRedirectConflict(bc *Context) error {
	if bc.RedirectMode != types.RedirectModeAlways {
		return nil
	}
	if bc.HasProcessorSubscription && !bc.ForceNewSubscription {
		return ierr.NewError("redirect mode conflicts with existing subscription").
			WithHint("cannot force a checkout redirect while merging into an existing subscription; request a new subscription explicitly").
			Mark(ierr.ErrValidation)
	}
	return nil
}
