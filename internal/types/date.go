package types

import (
	"fmt"
	"time"
)

// NextBillingDate calculates the next billing date based on the given start time,
// billing period, and billing period unit (the frequency multiplier).
// For example:
// - If billing period is MONTHLY and unit is 2, we add two months.
// - If billing period is ANNUAL and unit is 1, we add one year.
// - If billing period is WEEKLY and unit is 3, we add 21 days (3 weeks).
// This function leverages date clamping, which properly handles leap years and
// month boundary issues (e.g. Jan 31 + 1 month = Feb 28/29).
func NextBillingDate(start time.Time, unit int, period BillingPeriod) (time.Time, error) {
	if unit <= 0 {
		return start, fmt.Errorf("billing period unit must be a positive integer, got %d", unit)
	}

	switch period {
	case BILLING_PERIOD_DAILY:
		return AddClampedDate(start, 0, 0, unit), nil
	case BILLING_PERIOD_WEEKLY:
		return AddClampedDate(start, 0, 0, 7*unit), nil
	case BILLING_PERIOD_MONTHLY:
		return AddClampedDate(start, 0, unit, 0), nil
	case BILLING_PERIOD_QUARTERLY:
		return AddClampedDate(start, 0, 3*unit, 0), nil
	case BILLING_PERIOD_SEMI_ANNUAL:
		return AddClampedDate(start, 0, 6*unit, 0), nil
	case BILLING_PERIOD_ANNUAL:
		return AddClampedDate(start, unit, 0, 0), nil
	default:
		return start, fmt.Errorf("invalid billing period type: %s", period)
	}
}

// NextBoundaryAfter walks billing periods forward from the anchor until the
// boundary lands strictly after the reference time. The anchor may be far in
// the past (e.g. the subscription start date); it only fixes the cycle
// alignment.
func NextBoundaryAfter(anchor time.Time, unit int, period BillingPeriod, after time.Time) (time.Time, error) {
	boundary := anchor
	for !boundary.After(after) {
		next, err := NextBillingDate(boundary, unit, period)
		if err != nil {
			return time.Time{}, err
		}
		if !next.After(boundary) {
			return time.Time{}, fmt.Errorf("billing boundary did not advance from %v", boundary)
		}
		boundary = next
	}
	return boundary, nil
}

// CurrentBillingPeriod returns the billing period [start, end) that contains
// the reference time, aligned to the anchor's cycle.
func CurrentBillingPeriod(anchor time.Time, unit int, period BillingPeriod, now time.Time) (time.Time, time.Time, error) {
	end, err := NextBoundaryAfter(anchor, unit, period, now)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	start := anchor
	for {
		next, err := NextBillingDate(start, unit, period)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		if !next.Before(end) {
			break
		}
		start = next
	}
	return start, end, nil
}

// AddClampedDate adds the given years, months and days to t, clamping the day
// of month to the last valid day of the target month.
func AddClampedDate(t time.Time, years, months, days int) time.Time {
	y, m, d := t.Date()
	h, min, sec := t.Clock()

	newY := y + years
	newM := time.Month(int(m) + months)

	// If we move beyond December, it adjusts correctly,
	// for example adding 2 months to November will land on January next year.
	for newM > 12 {
		newM -= 12
		newY++
	}
	for newM < 1 {
		newM += 12
		newY--
	}

	// Find the last valid day of the new month
	firstOfNextMonth := time.Date(newY, newM+1, 1, 0, 0, 0, 0, t.Location())
	lastDay := firstOfNextMonth.Add(-24 * time.Hour).Day()

	newD := d + days
	if newD > lastDay && days == 0 {
		// Clamp to last valid day only for month/year arithmetic; day
		// arithmetic is expected to roll over naturally.
		newD = lastDay
	}

	return time.Date(newY, newM, newD, h, min, sec, t.Nanosecond(), t.Location())
}

// TruncateToSecond normalizes a timestamp to second resolution. The payment
// processor only supports second granularity, so every timestamp entering the
// schedule phase builder goes through this exactly once, up front.
func TruncateToSecond(t time.Time) time.Time {
	return t.Truncate(time.Second)
}

// TruncateToSecondPtr is TruncateToSecond lifted over nillable timestamps.
func TruncateToSecondPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	tt := t.Truncate(time.Second)
	return &tt
}
