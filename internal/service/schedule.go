package service

import (
	"context"
	"time"

	"github.com/samber/lo"

	"github.com/cyclebill/cyclebill/internal/domain/cusproduct"
	"github.com/cyclebill/cyclebill/internal/domain/schedule"
	ierr "github.com/cyclebill/cyclebill/internal/errors"
)

// ScheduleService rebuilds a customer's phase list from store state and
// pushes it to the processor. Attach does this inline; this service exists
// for reconciliation after a failed attach and for drift repair.
type ScheduleService interface {
	// Sync recomputes the phases for the customer's scoped products and
	// replaces the processor schedule with them.
	Sync(ctx context.Context, customerID, entityID string) ([]*schedule.Phase, error)
}

type scheduleService struct {
	ServiceParams
}

func NewScheduleService(params ServiceParams) ScheduleService {
	return &scheduleService{ServiceParams: params}
}

func (s *scheduleService) Sync(ctx context.Context, customerID, entityID string) ([]*schedule.Phase, error) {
	snapshot, err := s.CusProductRepo.ListByCustomer(ctx, customerID)
	if err != nil {
		return nil, err
	}

	scoped := lo.Filter(snapshot, func(cp *cusproduct.CustomerProduct, _ int) bool {
		return cp.SameScope(entityID)
	})

	scheduleID := scheduleIDFor(scoped, entityID)
	if scheduleID == "" {
		return nil, ierr.NewError("customer has no subscription schedule to sync").
			WithReportableDetails(map[string]any{
				"customer_id": customerID,
				"entity_id":   entityID,
			}).
			Mark(ierr.ErrInvalidOperation)
	}

	var trialEnd *time.Time
	for _, cp := range scoped {
		if cp.IsActive() && cp.TrialEndsAt != nil {
			trialEnd = cp.TrialEndsAt
		}
	}

	phases, err := schedule.BuildPhases(schedule.BuildParams{
		Now:      time.Now().UTC(),
		Products: scoped,
		TrialEnd: trialEnd,
	})
	if err != nil {
		return nil, err
	}

	if err := s.Processor.UpdateSubscriptionSchedule(ctx, scheduleID, phases); err != nil {
		return nil, err
	}

	s.Logger.Infow("synced subscription schedule",
		"customer_id", customerID,
		"schedule_id", scheduleID,
		"phase_count", len(phases),
	)
	return phases, nil
}
