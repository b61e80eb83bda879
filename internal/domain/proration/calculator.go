package proration

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	ierr "github.com/cyclebill/cyclebill/internal/errors"
	"github.com/cyclebill/cyclebill/internal/types"
)

// NewCalculator creates a proration calculator using the given strategy.
func NewCalculator(strategy types.ProrationStrategy) Calculator {
	return &calculator{strategy: strategy}
}

type calculator struct {
	strategy types.ProrationStrategy
}

func (c *calculator) Calculate(ctx context.Context, params Params) (*Result, error) {
	if params.Behavior == types.ProrationBehaviorNone {
		return nil, nil
	}

	if err := validateParams(params); err != nil {
		return nil, ierr.WithError(err).
			WithHintf("invalid proration params: %v", err).
			Mark(ierr.ErrValidation)
	}

	coefficient, err := c.coefficient(params)
	if err != nil {
		return nil, err
	}

	result := &Result{
		NetAmount:     decimal.Zero,
		Currency:      params.Currency,
		Action:        params.Action,
		ProrationDate: params.ProrationDate,
		CreditItems:   []LineItem{},
		ChargeItems:   []LineItem{},
	}

	// Credits are issued for existing items being modified or removed, but
	// only when the plan collects in advance: there is nothing to refund for
	// time that has not been paid for yet.
	shouldIssueCredit := (params.Action == types.ProrationActionUpgrade ||
		params.Action == types.ProrationActionDowngrade ||
		params.Action == types.ProrationActionRemoveItem ||
		params.Action == types.ProrationActionCancellation) &&
		params.BillingMode == types.BillingModeInAdvance

	if shouldIssueCredit {
		oldItemTotal := params.OldPricePerUnit.Mul(params.OldQuantity)
		potentialCredit := oldItemTotal.Mul(coefficient)
		cappedCredit := capCreditAmount(potentialCredit, params.OriginalAmountPaid, params.PreviousCreditsIssued)

		if cappedCredit.GreaterThan(decimal.Zero) {
			creditItem := LineItem{
				Description: creditDescription(params.Action),
				Amount:      cappedCredit.Neg(),
				StartDate:   params.ProrationDate,
				EndDate:     params.CurrentPeriodEnd,
				Quantity:    params.OldQuantity,
				PriceID:     params.OldPriceID,
				IsCredit:    true,
			}
			result.CreditItems = append(result.CreditItems, creditItem)
			result.NetAmount = result.NetAmount.Add(creditItem.Amount)
		}
	}

	shouldIssueCharge := params.Action == types.ProrationActionAddItem ||
		params.Action == types.ProrationActionUpgrade ||
		params.Action == types.ProrationActionDowngrade

	if shouldIssueCharge {
		newItemTotal := params.NewPricePerUnit.Mul(params.NewQuantity)
		proratedCharge := newItemTotal.Mul(coefficient)

		if proratedCharge.GreaterThan(decimal.Zero) {
			chargeItem := LineItem{
				Description: chargeDescription(params.Action),
				Amount:      proratedCharge,
				StartDate:   params.ProrationDate,
				EndDate:     params.CurrentPeriodEnd,
				Quantity:    params.NewQuantity,
				PriceID:     params.NewPriceID,
				IsCredit:    false,
			}
			result.ChargeItems = append(result.ChargeItems, chargeItem)
			result.NetAmount = result.NetAmount.Add(chargeItem.Amount)
		}
	}

	return result, nil
}

// coefficient computes the remaining fraction of the billing period at the
// proration date, by calendar days or by seconds depending on the strategy.
func (c *calculator) coefficient(params Params) (decimal.Decimal, error) {
	tz := params.CustomerTimezone
	if tz == "" {
		tz = "UTC"
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return decimal.Zero, ierr.WithError(err).
			WithHintf("failed to load customer timezone '%s'", tz).
			Mark(ierr.ErrSystem)
	}

	prorationDate := params.ProrationDate.In(loc)
	periodStart := params.CurrentPeriodStart.In(loc)
	periodEnd := params.CurrentPeriodEnd.In(loc)

	if c.strategy == types.StrategySecondBased {
		totalSeconds := periodEnd.Sub(periodStart).Seconds()
		if totalSeconds <= 0 {
			return decimal.Zero, ierr.NewError("invalid billing period").
				WithHintf("total seconds is zero or negative (%v to %v)", periodStart, periodEnd).
				Mark(ierr.ErrValidation)
		}
		remainingSeconds := periodEnd.Sub(prorationDate).Seconds()
		if remainingSeconds < 0 {
			remainingSeconds = 0
		}
		return decimal.NewFromFloat(remainingSeconds).Div(decimal.NewFromFloat(totalSeconds)), nil
	}

	totalDays := daysInDurationWithDST(periodStart, periodEnd, loc)
	if totalDays <= 0 {
		return decimal.Zero, ierr.NewError("invalid billing period").
			WithHintf("total days is zero or negative (%v to %v)", params.CurrentPeriodStart, params.CurrentPeriodEnd).
			Mark(ierr.ErrValidation)
	}
	remainingDays := daysInDurationWithDST(prorationDate, periodEnd, loc)
	if remainingDays < 0 {
		remainingDays = 0
	}
	return decimal.NewFromInt(int64(remainingDays)).Div(decimal.NewFromInt(int64(totalDays))), nil
}

// daysInDurationWithDST calculates the number of calendar days between two
// points in time, considering the given timezone for day boundaries and
// handling DST transitions.
func daysInDurationWithDST(start, end time.Time, loc *time.Location) int {
	startDay := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, loc)
	endDay := time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, loc)

	days := 0
	current := startDay
	for current.Before(endDay) {
		days++
		// Add 24 hours, then normalize to midnight to handle DST
		next := current.Add(24 * time.Hour)
		current = time.Date(next.Year(), next.Month(), next.Day(), 0, 0, 0, 0, loc)
	}

	return days
}

// capCreditAmount ensures credits do not exceed the original amount paid,
// considering any previous credits already issued for the same original
// payment.
func capCreditAmount(potentialCredit, originalAmountPaid, previousCreditsIssued decimal.Decimal) decimal.Decimal {
	if potentialCredit.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero
	}

	if potentialCredit.GreaterThan(originalAmountPaid) {
		potentialCredit = originalAmountPaid
	}

	availableCredit := originalAmountPaid.Sub(previousCreditsIssued)
	if potentialCredit.GreaterThan(availableCredit) {
		potentialCredit = availableCredit
	}

	if potentialCredit.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero
	}

	return potentialCredit
}

func creditDescription(action types.ProrationAction) string {
	switch action {
	case types.ProrationActionCancellation:
		return "Credit for unused time on cancelled subscription"
	case types.ProrationActionDowngrade:
		return "Credit for unused time on previous plan before downgrade"
	case types.ProrationActionUpgrade:
		return "Credit for unused time on previous plan before upgrade"
	case types.ProrationActionRemoveItem:
		return "Credit for unused time on removed item"
	default:
		return "Credit for unused time"
	}
}

func chargeDescription(action types.ProrationAction) string {
	switch action {
	case types.ProrationActionUpgrade:
		return "Prorated charge for upgrade"
	case types.ProrationActionDowngrade:
		return "Prorated charge for downgrade"
	case types.ProrationActionAddItem:
		return "Prorated charge for new item"
	default:
		return "Prorated charge"
	}
}

// validateParams checks if essential parameters are provided.
func validateParams(params Params) error {
	if params.ProrationDate.IsZero() {
		return fmt.Errorf("proration date is required")
	}
	if params.CurrentPeriodStart.IsZero() || params.CurrentPeriodEnd.IsZero() {
		return fmt.Errorf("billing period start and end dates are required")
	}
	if params.CurrentPeriodEnd.Before(params.CurrentPeriodStart) {
		return fmt.Errorf("billing period end date cannot be before start date")
	}

	maxAmount := decimal.NewFromInt(types.MAX_BILLING_AMOUNT)
	if params.OldPricePerUnit.GreaterThan(maxAmount) || params.NewPricePerUnit.GreaterThan(maxAmount) {
		return fmt.Errorf("price per unit exceeds maximum billing amount")
	}

	switch params.Action {
	case types.ProrationActionAddItem:
		if params.NewPriceID == "" {
			return fmt.Errorf("new price ID is required for add_item action")
		}
		if params.NewQuantity.LessThanOrEqual(decimal.Zero) {
			return fmt.Errorf("new quantity must be positive for add_item action")
		}
	case types.ProrationActionRemoveItem, types.ProrationActionCancellation:
		if params.OldPriceID == "" {
			return fmt.Errorf("old price ID is required for remove_item/cancellation action")
		}
		if params.OldQuantity.LessThanOrEqual(decimal.Zero) {
			return fmt.Errorf("old quantity must be positive for remove_item/cancellation action")
		}
	case types.ProrationActionUpgrade, types.ProrationActionDowngrade:
		if params.OldPriceID == "" || params.NewPriceID == "" {
			return fmt.Errorf("both old and new price IDs are required for upgrade/downgrade action")
		}
		if params.OldQuantity.LessThanOrEqual(decimal.Zero) || params.NewQuantity.LessThanOrEqual(decimal.Zero) {
			return fmt.Errorf("both old and new quantities must be positive for upgrade/downgrade action")
		}
	default:
		return fmt.Errorf("invalid proration action: %s", params.Action)
	}

	return nil
}
