package processor

import (
	"context"
	"time"

	"github.com/cyclebill/cyclebill/internal/domain/billing"
	"github.com/cyclebill/cyclebill/internal/domain/schedule"
)

// Subscription is the engine-facing view of a processor subscription.
type Subscription struct {
	ID               string
	Status           string
	CustomerID       string
	ScheduleID       string
	CurrentPeriodEnd time.Time
	TrialEnd         *time.Time
}

// PaymentMethod is the engine-facing view of a stored payment method.
type PaymentMethod struct {
	ID   string
	Type string
}

// Client is the boundary to the payment processor. The engine itself never
// calls it: the surrounding service fetches processor state before composing
// a plan and executes mutations after.
type Client interface {
	GetSubscription(ctx context.Context, subscriptionID string) (*Subscription, error)

	// GetPaymentMethod returns the customer's default payment method, or nil
	// when none is stored.
	GetPaymentMethod(ctx context.Context, customerID string) (*PaymentMethod, error)

	// ListDiscounts returns the customer's active discounts in the order the
	// processor reports them; the finalizer applies them in that order.
	ListDiscounts(ctx context.Context, customerID string) ([]billing.Discount, error)

	// UpdateSubscriptionSchedule replaces the schedule's phases.
	UpdateSubscriptionSchedule(ctx context.Context, scheduleID string, phases []*schedule.Phase) error
}
