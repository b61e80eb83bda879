package service

import (
	"context"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/cyclebill/cyclebill/internal/domain/billing"
	"github.com/cyclebill/cyclebill/internal/domain/cusproduct"
	"github.com/cyclebill/cyclebill/internal/domain/product"
	"github.com/cyclebill/cyclebill/internal/domain/schedule"
	ierr "github.com/cyclebill/cyclebill/internal/errors"
	"github.com/cyclebill/cyclebill/internal/types"
)

// AttachRequest carries everything a caller can say about an attach.
type AttachRequest struct {
	CustomerID string `json:"customer_id" validate:"required"`
	EntityID   string `json:"entity_id,omitempty"`

	// ProductIDs are the products to attach, one for single attach, several
	// for multi-attach.
	ProductIDs []string `json:"product_ids" validate:"required,min=1"`

	// ProductVersions pins specific product versions by product id. Products
	// not listed resolve to their latest version.
	ProductVersions map[string]int `json:"product_versions,omitempty"`

	ForceNewSubscription bool               `json:"force_new_subscription,omitempty"`
	RedirectMode         types.RedirectMode `json:"redirect_mode,omitempty"`

	TrialMode   types.TrialMode `json:"trial_mode,omitempty"`
	TrialEndsAt *time.Time      `json:"trial_ends_at,omitempty"`

	BillingCycleAnchor *time.Time              `json:"billing_cycle_anchor,omitempty"`
	ProrationBehavior  types.ProrationBehavior `json:"proration_behavior,omitempty"`

	OriginalAmountsPaid map[string]decimal.Decimal `json:"original_amounts_paid,omitempty"`

	CustomPrices       []*product.Price       `json:"custom_prices,omitempty"`
	CustomEntitlements []*product.Entitlement `json:"custom_entitlements,omitempty"`
}

func (r *AttachRequest) Validate() error {
	if r.CustomerID == "" {
		return ierr.NewError("customer_id is required").
			Mark(ierr.ErrValidation)
	}
	if len(r.ProductIDs) == 0 {
		return ierr.NewError("at least one product_id is required").
			Mark(ierr.ErrValidation)
	}
	if dupes := lo.FindDuplicates(r.ProductIDs); len(dupes) > 0 {
		return ierr.NewError("duplicate product ids in attach request").
			WithReportableDetails(map[string]any{"product_ids": dupes}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// AttachResponse reports what an attach did (or, for previews, would do).
type AttachResponse struct {
	Plan     *billing.Plan        `json:"plan"`
	Scenario types.AttachScenario `json:"scenario"`

	// Applied is false for previews.
	Applied bool `json:"applied"`
}

// AttachService orchestrates product attaches: it assembles the billing
// context from the store and the payment processor, has the engine compose a
// plan and then executes it, processor first, store second.
type AttachService interface {
	// Attach composes and executes the plan for the request.
	Attach(ctx context.Context, req *AttachRequest) (*AttachResponse, error)

	// Preview composes the plan without executing anything.
	Preview(ctx context.Context, req *AttachRequest) (*AttachResponse, error)
}

type attachService struct {
	ServiceParams
	composer *billing.Composer
}

func NewAttachService(params ServiceParams) AttachService {
	return &attachService{
		ServiceParams: params,
		composer:      billing.NewComposer(params.ProrationCalculator),
	}
}

func (s *attachService) Attach(ctx context.Context, req *AttachRequest) (*AttachResponse, error) {
	return s.attach(ctx, req, true)
}

func (s *attachService) Preview(ctx context.Context, req *AttachRequest) (*AttachResponse, error) {
	return s.attach(ctx, req, false)
}

func (s *attachService) attach(ctx context.Context, req *AttachRequest, apply bool) (*AttachResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	bc, err := s.buildBillingContext(ctx, req)
	if err != nil {
		return nil, err
	}

	plan, err := s.composer.Compose(ctx, bc)
	if err != nil {
		return nil, err
	}

	scenario := s.planScenario(bc, plan)
	s.Logger.Infow("composed billing plan",
		"customer_id", req.CustomerID,
		"product_ids", req.ProductIDs,
		"scenario", scenario,
		"inserts", len(plan.Insert),
		"line_items", len(plan.LineItems),
		"preview", !apply,
	)

	if !apply {
		return &AttachResponse{Plan: plan, Scenario: scenario}, nil
	}

	if err := s.executePlan(ctx, bc, plan); err != nil {
		return nil, err
	}
	return &AttachResponse{Plan: plan, Scenario: scenario, Applied: true}, nil
}

// buildBillingContext assembles the immutable snapshot the engine computes
// from: store state in one consistent read, then processor-side state.
func (s *attachService) buildBillingContext(ctx context.Context, req *AttachRequest) (*billing.Context, error) {
	targets, err := s.loadTargets(ctx, req)
	if err != nil {
		return nil, err
	}

	current, err := s.CusProductRepo.ListByCustomer(ctx, req.CustomerID)
	if err != nil {
		return nil, err
	}

	bc := &billing.Context{
		Now:                  time.Now().UTC(),
		CustomerID:           req.CustomerID,
		EntityID:             req.EntityID,
		CurrentProducts:      current,
		Targets:              targets,
		ForceNewSubscription: req.ForceNewSubscription,
		RedirectMode:         req.RedirectMode,
		TrialMode:            req.TrialMode,
		TrialEndsAt:          req.TrialEndsAt,
		BillingCycleAnchor:   req.BillingCycleAnchor,
		ProrationBehavior:    req.ProrationBehavior,
		CustomerTimezone:     s.Config.Billing.DefaultTimezone,
		OriginalAmountsPaid:  req.OriginalAmountsPaid,
		CustomPrices:         req.CustomPrices,
		CustomEntitlements:   req.CustomEntitlements,
	}

	if err := s.loadProcessorState(ctx, bc, current); err != nil {
		return nil, err
	}
	return bc, nil
}

func (s *attachService) loadTargets(ctx context.Context, req *AttachRequest) ([]*product.Product, error) {
	targets := make([]*product.Product, 0, len(req.ProductIDs))
	for _, id := range req.ProductIDs {
		var (
			p   *product.Product
			err error
		)
		if version, ok := req.ProductVersions[id]; ok {
			p, err = s.ProductRepo.GetVersion(ctx, id, version)
		} else {
			p, err = s.ProductRepo.Get(ctx, id)
		}
		if err != nil {
			return nil, err
		}
		targets = append(targets, p)
	}
	return targets, nil
}

func (s *attachService) loadProcessorState(
	ctx context.Context,
	bc *billing.Context,
	current []*cusproduct.CustomerProduct,
) error {
	pm, err := s.Processor.GetPaymentMethod(ctx, bc.CustomerID)
	if err != nil {
		return err
	}
	bc.HasPaymentMethod = pm != nil

	discounts, err := s.Processor.ListDiscounts(ctx, bc.CustomerID)
	if err != nil {
		return err
	}
	bc.Discounts = discounts

	subID := subscriptionIDFor(current, bc.EntityID)
	if subID == "" {
		return nil
	}
	sub, err := s.Processor.GetSubscription(ctx, subID)
	if err != nil {
		return err
	}
	bc.HasProcessorSubscription = sub != nil && sub.Status != "canceled" &&
		sub.Status != "incomplete_expired"
	return nil
}

// subscriptionIDFor finds the processor subscription the attach would merge
// into: the one linked to any live product in the entity scope.
func subscriptionIDFor(current []*cusproduct.CustomerProduct, entityID string) string {
	cp, ok := lo.Find(current, func(cp *cusproduct.CustomerProduct) bool {
		return cp.IsActive() && cp.SameScope(entityID) && cp.SubscriptionID != ""
	})
	if !ok {
		return ""
	}
	return cp.SubscriptionID
}

// executePlan runs the plan's external effects before its store writes. The
// processor push is idempotent (the whole phase list is replaced), so a store
// failure after a processor success is retried by re-running the attach; the
// error is marked inconsistent so callers know reconciliation is pending.
func (s *attachService) executePlan(ctx context.Context, bc *billing.Context, plan *billing.Plan) error {
	if err := s.pushSchedule(ctx, bc, plan); err != nil {
		return err
	}

	if plan.Delete != nil {
		if err := s.CusProductRepo.Delete(ctx, plan.Delete.ID); err != nil {
			return s.inconsistent(err, bc)
		}
	}
	if plan.Update != nil {
		if err := s.CusProductRepo.Update(ctx, plan.Update); err != nil {
			return s.inconsistent(err, bc)
		}
	}
	for _, cp := range plan.Insert {
		s.linkProcessor(cp, bc)
		if err := s.CusProductRepo.Insert(ctx, cp); err != nil {
			return s.inconsistent(err, bc)
		}
	}
	return nil
}

// pushSchedule rebuilds the customer's phase list from the post-plan state
// and replaces the processor schedule, when one exists to replace.
func (s *attachService) pushSchedule(ctx context.Context, bc *billing.Context, plan *billing.Plan) error {
	scheduleID := scheduleIDFor(bc.CurrentProducts, bc.EntityID)
	if scheduleID == "" {
		return nil
	}

	projected := projectPlan(bc.CurrentProducts, plan)
	projected = lo.Filter(projected, func(cp *cusproduct.CustomerProduct, _ int) bool {
		return cp.SameScope(bc.EntityID)
	})

	var trialEnd *time.Time
	for _, cp := range plan.Insert {
		if cp.TrialEndsAt != nil {
			trialEnd = cp.TrialEndsAt
		}
	}

	phases, err := schedule.BuildPhases(schedule.BuildParams{
		Now:           bc.Now,
		Products:      projected,
		TrialEnd:      trialEnd,
		BillingAnchor: bc.BillingCycleAnchor,
	})
	if err != nil {
		return err
	}
	return s.Processor.UpdateSubscriptionSchedule(ctx, scheduleID, phases)
}

func scheduleIDFor(current []*cusproduct.CustomerProduct, entityID string) string {
	cp, ok := lo.Find(current, func(cp *cusproduct.CustomerProduct) bool {
		return cp.IsActive() && cp.SameScope(entityID) && cp.ScheduleID != ""
	})
	if !ok {
		return ""
	}
	return cp.ScheduleID
}

// projectPlan applies the plan to an in-memory copy of the snapshot, giving
// the state the store will hold once the plan is persisted. A snapshot row
// with the same id as a planned insert means the plan was already applied;
// the insert wins and the row is not counted twice.
func projectPlan(current []*cusproduct.CustomerProduct, plan *billing.Plan) []*cusproduct.CustomerProduct {
	inserted := map[string]bool{}
	for _, cp := range plan.Insert {
		inserted[cp.ID] = true
	}

	out := make([]*cusproduct.CustomerProduct, 0, len(current)+len(plan.Insert))
	for _, cp := range current {
		if plan.Delete != nil && cp.ID == plan.Delete.ID {
			continue
		}
		if inserted[cp.ID] {
			continue
		}
		clone := *cp
		if plan.Update != nil && cp.ID == plan.Update.CustomerProductID {
			plan.Update.Apply(&clone)
		}
		out = append(out, &clone)
	}
	out = append(out, plan.Insert...)
	return out
}

// linkProcessor carries the subscription linkage of the product being
// replaced (or any live scoped product) onto the inserted row, unless the
// caller forced a fresh subscription.
func (s *attachService) linkProcessor(cp *cusproduct.CustomerProduct, bc *billing.Context) {
	if bc.ForceNewSubscription {
		return
	}
	if cp.SubscriptionID != "" {
		return
	}
	cp.SubscriptionID = subscriptionIDFor(bc.CurrentProducts, bc.EntityID)
	cp.ScheduleID = scheduleIDFor(bc.CurrentProducts, bc.EntityID)
}

func (s *attachService) inconsistent(err error, bc *billing.Context) error {
	s.Logger.Errorw("plan partially applied, store write failed",
		"error", err,
		"customer_id", bc.CustomerID,
	)
	return ierr.WithError(err).
		WithHint("processor was updated but the store write failed; re-run the attach to reconcile").
		WithReportableDetails(map[string]any{"customer_id": bc.CustomerID}).
		Mark(ierr.ErrInconsistentState)
}

// planScenario recovers the user-facing scenario from the composed plan.
func (s *attachService) planScenario(bc *billing.Context, plan *billing.Plan) types.AttachScenario {
	if plan.Update != nil {
		return types.AttachScenarioUpgrade
	}
	for _, cp := range plan.Insert {
		if cp.IsScheduled() {
			return types.AttachScenarioDowngrade
		}
	}
	return types.AttachScenarioNew
}
