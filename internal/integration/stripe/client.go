package stripe

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v82"

	"github.com/cyclebill/cyclebill/internal/config"
	"github.com/cyclebill/cyclebill/internal/domain/billing"
	"github.com/cyclebill/cyclebill/internal/domain/schedule"
	ierr "github.com/cyclebill/cyclebill/internal/errors"
	"github.com/cyclebill/cyclebill/internal/logger"
	"github.com/cyclebill/cyclebill/internal/processor"
)

// Client implements processor.Client against the Stripe API.
type Client struct {
	sc     *stripe.Client
	logger *logger.Logger
}

// NewClient creates a Stripe-backed processor client from configuration.
func NewClient(cfg *config.Configuration, log *logger.Logger) (*Client, error) {
	if cfg.Processor.SecretKey == "" {
		return nil, ierr.NewError("stripe secret key is not configured").
			WithHint("set processor.secret_key in config").
			Mark(ierr.ErrValidation)
	}
	return &Client{
		sc:     stripe.NewClient(cfg.Processor.SecretKey, nil),
		logger: log,
	}, nil
}

func (c *Client) GetSubscription(ctx context.Context, subscriptionID string) (*processor.Subscription, error) {
	params := &stripe.SubscriptionRetrieveParams{
		Expand: []*string{stripe.String("schedule")},
	}
	sub, err := c.sc.V1Subscriptions.Retrieve(ctx, subscriptionID, params)
	if err != nil {
		c.logger.Errorw("failed to retrieve subscription from Stripe",
			"error", err,
			"subscription_id", subscriptionID,
		)
		return nil, ierr.WithError(err).
			WithHint("could not fetch subscription from the payment processor").
			WithReportableDetails(map[string]any{"subscription_id": subscriptionID}).
			Mark(ierr.ErrIntegration)
	}

	out := &processor.Subscription{
		ID:     sub.ID,
		Status: string(sub.Status),
	}
	if sub.Customer != nil {
		out.CustomerID = sub.Customer.ID
	}
	if sub.Schedule != nil {
		out.ScheduleID = sub.Schedule.ID
	}
	if sub.Items != nil && len(sub.Items.Data) > 0 {
		out.CurrentPeriodEnd = time.Unix(sub.Items.Data[0].CurrentPeriodEnd, 0)
	}
	if sub.TrialEnd > 0 {
		trialEnd := time.Unix(sub.TrialEnd, 0)
		out.TrialEnd = &trialEnd
	}
	return out, nil
}

func (c *Client) GetPaymentMethod(ctx context.Context, customerID string) (*processor.PaymentMethod, error) {
	params := &stripe.PaymentMethodListParams{
		Customer: stripe.String(customerID),
	}
	params.Limit = stripe.Int64(1)

	for pm, err := range c.sc.V1PaymentMethods.List(ctx, params) {
		if err != nil {
			c.logger.Errorw("failed to list payment methods",
				"error", err,
				"customer_id", customerID,
			)
			return nil, ierr.WithError(err).
				WithHint("could not fetch payment methods from the payment processor").
				Mark(ierr.ErrIntegration)
		}
		return &processor.PaymentMethod{ID: pm.ID, Type: string(pm.Type)}, nil
	}
	return nil, nil
}

func (c *Client) ListDiscounts(ctx context.Context, customerID string) ([]billing.Discount, error) {
	params := &stripe.CustomerRetrieveParams{
		Expand: []*string{stripe.String("discount")},
	}
	cust, err := c.sc.V1Customers.Retrieve(ctx, customerID, params)
	if err != nil {
		c.logger.Errorw("failed to retrieve customer from Stripe",
			"error", err,
			"customer_id", customerID,
		)
		return nil, ierr.WithError(err).
			WithHint("could not fetch customer discounts from the payment processor").
			Mark(ierr.ErrIntegration)
	}

	var out []billing.Discount
	if cust.Discount != nil && cust.Discount.Coupon != nil {
		out = append(out, convertCoupon(cust.Discount.ID, cust.Discount.Coupon))
	}
	return out, nil
}

func (c *Client) UpdateSubscriptionSchedule(ctx context.Context, scheduleID string, phases []*schedule.Phase) error {
	params := &stripe.SubscriptionScheduleUpdateParams{
		EndBehavior: stripe.String("release"),
		Phases:      convertPhases(phases),
	}

	_, err := c.sc.V1SubscriptionSchedules.Update(ctx, scheduleID, params)
	if err != nil {
		c.logger.Errorw("failed to update subscription schedule",
			"error", err,
			"schedule_id", scheduleID,
			"phase_count", len(phases),
		)
		return ierr.WithError(err).
			WithHint("could not update the subscription schedule at the payment processor").
			WithReportableDetails(map[string]any{"schedule_id": scheduleID}).
			Mark(ierr.ErrIntegration)
	}

	c.logger.Infow("updated subscription schedule",
		"schedule_id", scheduleID,
		"phase_count", len(phases),
	)
	return nil
}

// convertPhases maps domain phases onto Stripe schedule phase params. Domain
// timestamps are already second-normalized, so Unix conversion is lossless.
func convertPhases(phases []*schedule.Phase) []*stripe.SubscriptionScheduleUpdatePhaseParams {
	out := make([]*stripe.SubscriptionScheduleUpdatePhaseParams, 0, len(phases))
	for _, phase := range phases {
		p := &stripe.SubscriptionScheduleUpdatePhaseParams{
			StartDate: stripe.Int64(phase.Start.Unix()),
		}
		if phase.End != nil {
			p.EndDate = stripe.Int64(phase.End.Unix())
		}
		if phase.TrialEnd != nil {
			p.TrialEnd = stripe.Int64(phase.TrialEnd.Unix())
		}
		for _, item := range phase.Items {
			itemParams := &stripe.SubscriptionScheduleUpdatePhaseItemParams{
				Price: stripe.String(item.PriceID),
			}
			if item.Quantity != nil {
				itemParams.Quantity = stripe.Int64(item.Quantity.IntPart())
			}
			p.Items = append(p.Items, itemParams)
		}
		out = append(out, p)
	}
	return out
}

func convertCoupon(discountID string, coupon *stripe.Coupon) billing.Discount {
	d := billing.Discount{ID: discountID}
	if coupon.PercentOff > 0 {
		percent := decimal.NewFromFloat(coupon.PercentOff)
		d.PercentOff = &percent
	} else if coupon.AmountOff > 0 {
		amount := decimal.NewFromInt(coupon.AmountOff)
		d.AmountOff = &amount
		d.Currency = string(coupon.Currency)
	}
	return d
}
