package service

import (
	"context"
	"time"

	"github.com/samber/lo"

	"github.com/cyclebill/cyclebill/internal/domain/billing"
	"github.com/cyclebill/cyclebill/internal/domain/cusproduct"
	ierr "github.com/cyclebill/cyclebill/internal/errors"
	"github.com/cyclebill/cyclebill/internal/types"
)

// EventService is the transition-primitive surface for processor webhooks.
// Each primitive re-reads the customer's products and enforces the
// one-active-per-group invariant before writing.
type EventService interface {
	// Expire ends the product at endedAt and marks it Expired.
	Expire(ctx context.Context, customerProductID string, endedAt time.Time) error

	// Activate flips a Scheduled product to Active. A still-Active product in
	// the same group is expired at the scheduled start, which is how a
	// deferred downgrade executes when its phase boundary arrives.
	Activate(ctx context.Context, customerProductID string) error

	// CancelAtPeriodEnd sets the will-not-renew flag at canceledAt; the
	// product stays Active until endedAt.
	CancelAtPeriodEnd(ctx context.Context, customerProductID string, canceledAt, endedAt time.Time) error

	// Reactivate clears a pending cancellation before it executes.
	Reactivate(ctx context.Context, customerProductID string) error

	// CreateFromAttach persists a composed plan's store mutations, re-checking
	// the group invariant against current state at apply time.
	CreateFromAttach(ctx context.Context, customerID string, plan *billing.Plan) error

	// HandleRenewal reacts to a processor renewal event. A renewal for a
	// product the customer does not hold is an initial purchase and goes
	// through the attach flow.
	HandleRenewal(ctx context.Context, req *RenewalRequest) error
}

// RenewalRequest carries the fields a renewal webhook provides.
type RenewalRequest struct {
	CustomerID string `json:"customer_id" validate:"required"`
	ProductID  string `json:"product_id" validate:"required"`
	EntityID   string `json:"entity_id,omitempty"`
}

type eventService struct {
	ServiceParams
	attach AttachService
}

func NewEventService(params ServiceParams) EventService {
	return &eventService{
		ServiceParams: params,
		attach:        NewAttachService(params),
	}
}

func (s *eventService) Expire(ctx context.Context, customerProductID string, endedAt time.Time) error {
	cp, err := s.CusProductRepo.Get(ctx, customerProductID)
	if err != nil {
		return err
	}
	if cp.Status == types.CustomerProductStatusExpired {
		return nil
	}

	expired := types.CustomerProductStatusExpired
	if err := s.CusProductRepo.Update(ctx, &cusproduct.Patch{
		CustomerProductID: cp.ID,
		Status:            &expired,
		EndedAt:           types.ToNillableTime(endedAt),
	}); err != nil {
		return err
	}
	s.Logger.Infow("expired customer product",
		"customer_product_id", cp.ID,
		"customer_id", cp.CustomerID,
		"ended_at", endedAt,
	)
	return nil
}

func (s *eventService) Activate(ctx context.Context, customerProductID string) error {
	cp, err := s.CusProductRepo.Get(ctx, customerProductID)
	if err != nil {
		return err
	}
	if !cp.IsScheduled() {
		return ierr.NewError("only scheduled products can be activated").
			WithReportableDetails(map[string]any{
				"customer_product_id": cp.ID,
				"status":              cp.Status,
			}).
			Mark(ierr.ErrInvalidOperation)
	}

	snapshot, err := s.CusProductRepo.ListByCustomer(ctx, cp.CustomerID)
	if err != nil {
		return err
	}

	// A deferred replacement executes now: the outgoing Active product ends
	// where the scheduled one begins.
	for _, active := range cusproduct.FindActiveInGroup(snapshot, cp.Group(), cp.EntityID) {
		if err := s.Expire(ctx, active.ID, cp.StartsAt); err != nil {
			return err
		}
	}

	activeStatus := types.CustomerProductStatusActive
	if err := s.CusProductRepo.Update(ctx, &cusproduct.Patch{
		CustomerProductID: cp.ID,
		Status:            &activeStatus,
	}); err != nil {
		return err
	}
	s.Logger.Infow("activated scheduled product",
		"customer_product_id", cp.ID,
		"customer_id", cp.CustomerID,
		"starts_at", cp.StartsAt,
	)
	return nil
}

func (s *eventService) CancelAtPeriodEnd(ctx context.Context, customerProductID string, canceledAt, endedAt time.Time) error {
	cp, err := s.CusProductRepo.Get(ctx, customerProductID)
	if err != nil {
		return err
	}
	if !cp.IsActive() {
		return ierr.NewError("only active products can be canceled").
			WithReportableDetails(map[string]any{
				"customer_product_id": cp.ID,
				"status":              cp.Status,
			}).
			Mark(ierr.ErrInvalidOperation)
	}

	canceled := true
	if err := s.CusProductRepo.Update(ctx, &cusproduct.Patch{
		CustomerProductID: cp.ID,
		Canceled:          &canceled,
		CanceledAt:        types.ToNillableTime(canceledAt),
		EndedAt:           types.ToNillableTime(endedAt),
	}); err != nil {
		return err
	}
	s.Logger.Infow("canceled customer product at period end",
		"customer_product_id", cp.ID,
		"customer_id", cp.CustomerID,
		"ended_at", endedAt,
	)
	return nil
}

func (s *eventService) Reactivate(ctx context.Context, customerProductID string) error {
	cp, err := s.CusProductRepo.Get(ctx, customerProductID)
	if err != nil {
		return err
	}
	if cp.Status == types.CustomerProductStatusExpired {
		return ierr.NewError("expired products cannot be reactivated").
			WithHint("attach the product again instead").
			WithReportableDetails(map[string]any{"customer_product_id": cp.ID}).
			Mark(ierr.ErrInvalidOperation)
	}
	if !cp.Canceled {
		return nil
	}

	canceled := false
	if err := s.CusProductRepo.Update(ctx, &cusproduct.Patch{
		CustomerProductID: cp.ID,
		Canceled:          &canceled,
		ClearCanceledAt:   true,
		ClearEndedAt:      true,
	}); err != nil {
		return err
	}
	s.Logger.Infow("reactivated customer product",
		"customer_product_id", cp.ID,
		"customer_id", cp.CustomerID,
	)
	return nil
}

func (s *eventService) CreateFromAttach(ctx context.Context, customerID string, plan *billing.Plan) error {
	snapshot, err := s.CusProductRepo.ListByCustomer(ctx, customerID)
	if err != nil {
		return err
	}

	// Re-check the group invariant against live state: the plan may have been
	// composed from a snapshot that a concurrent write has since outdated.
	// Add-ons and one-off products never transition and may coexist with the
	// group's main product, matching the resolver.
	projected := projectPlan(snapshot, plan)
	for _, cp := range plan.Insert {
		if !cp.IsActive() || cp.Product == nil || cp.Product.IsAddOn || cp.Product.IsOneOff() || cp.Product.Group == "" {
			continue
		}
		actives := cusproduct.FindActiveInGroup(projected, cp.Group(), cp.EntityID)
		if len(actives) > 1 {
			return ierr.NewError("applying plan would create a second active product in group").
				WithReportableDetails(map[string]any{
					"customer_id": customerID,
					"group":       cp.Group(),
				}).
				Mark(ierr.ErrInconsistentState)
		}
	}

	// Webhook deliveries retry, so a partially or fully applied plan must
	// apply cleanly a second time.
	if plan.Delete != nil {
		if err := s.CusProductRepo.Delete(ctx, plan.Delete.ID); err != nil && !ierr.IsNotFound(err) {
			return err
		}
	}
	if plan.Update != nil {
		if err := s.CusProductRepo.Update(ctx, plan.Update); err != nil {
			return err
		}
	}
	for _, cp := range plan.Insert {
		if err := s.CusProductRepo.Insert(ctx, cp); err != nil {
			if ierr.IsAlreadyExists(err) {
				continue
			}
			return err
		}
	}
	return nil
}

func (s *eventService) HandleRenewal(ctx context.Context, req *RenewalRequest) error {
	snapshot, err := s.CusProductRepo.ListByCustomer(ctx, req.CustomerID)
	if err != nil {
		return err
	}

	held, ok := lo.Find(snapshot, func(cp *cusproduct.CustomerProduct) bool {
		return cp.IsActive() && cp.ProductID == req.ProductID && cp.SameScope(req.EntityID)
	})
	if ok {
		// The renewal re-confirms the held product for another cycle; a
		// pending cancellation no longer applies.
		if held.Canceled {
			return s.Reactivate(ctx, held.ID)
		}
		return nil
	}

	// Nothing held: this renewal is really an initial purchase, including the
	// case where the customer has no processor subscription at all.
	s.Logger.Infow("renewal for unheld product, treating as initial purchase",
		"customer_id", req.CustomerID,
		"product_id", req.ProductID,
	)
	_, err = s.attach.Attach(ctx, &AttachRequest{
		CustomerID: req.CustomerID,
		EntityID:   req.EntityID,
		ProductIDs: []string{req.ProductID},
	})
	return err
}
