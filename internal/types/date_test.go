package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextBillingDate(t *testing.T) {
	tests := []struct {
		name   string
		start  time.Time
		unit   int
		period BillingPeriod
		want   time.Time
	}{
		{
			name:   "monthly_simple",
			start:  time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
			unit:   1,
			period: BILLING_PERIOD_MONTHLY,
			want:   time.Date(2024, 2, 15, 0, 0, 0, 0, time.UTC),
		},
		{
			name:   "monthly_clamps_to_end_of_february",
			start:  time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC),
			unit:   1,
			period: BILLING_PERIOD_MONTHLY,
			want:   time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC),
		},
		{
			name:   "monthly_clamps_non_leap_year",
			start:  time.Date(2023, 1, 31, 0, 0, 0, 0, time.UTC),
			unit:   1,
			period: BILLING_PERIOD_MONTHLY,
			want:   time.Date(2023, 2, 28, 0, 0, 0, 0, time.UTC),
		},
		{
			name:   "quarterly_multi_unit",
			start:  time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
			unit:   2,
			period: BILLING_PERIOD_QUARTERLY,
			want:   time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			name:   "weekly_three_units",
			start:  time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC),
			unit:   3,
			period: BILLING_PERIOD_WEEKLY,
			want:   time.Date(2024, 3, 22, 12, 30, 0, 0, time.UTC),
		},
		{
			name:   "daily_crosses_month_end",
			start:  time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC),
			unit:   1,
			period: BILLING_PERIOD_DAILY,
			want:   time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			name:   "annual_leap_day",
			start:  time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC),
			unit:   1,
			period: BILLING_PERIOD_ANNUAL,
			want:   time.Date(2025, 2, 28, 0, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NextBillingDate(tt.start, tt.unit, tt.period)
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "want %v, got %v", tt.want, got)
		})
	}
}

func TestNextBillingDate_InvalidPeriod(t *testing.T) {
	_, err := NextBillingDate(time.Now(), 1, BillingPeriod("FORTNIGHTLY"))
	require.Error(t, err)
}

func TestNextBoundaryAfter(t *testing.T) {
	anchor := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		after  time.Time
		unit   int
		period BillingPeriod
		want   time.Time
	}{
		{
			name:   "anchor_far_in_past",
			after:  time.Date(2024, 6, 20, 0, 0, 0, 0, time.UTC),
			unit:   1,
			period: BILLING_PERIOD_MONTHLY,
			want:   time.Date(2024, 7, 15, 0, 0, 0, 0, time.UTC),
		},
		{
			name:   "reference_exactly_on_boundary_moves_to_next",
			after:  time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC),
			unit:   1,
			period: BILLING_PERIOD_MONTHLY,
			want:   time.Date(2024, 4, 15, 0, 0, 0, 0, time.UTC),
		},
		{
			name:   "reference_before_anchor",
			after:  time.Date(2023, 12, 1, 0, 0, 0, 0, time.UTC),
			unit:   1,
			period: BILLING_PERIOD_MONTHLY,
			want:   time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
		},
		{
			name:   "daily_period_advances",
			after:  time.Date(2024, 1, 17, 6, 0, 0, 0, time.UTC),
			unit:   1,
			period: BILLING_PERIOD_DAILY,
			want:   time.Date(2024, 1, 18, 0, 0, 0, 0, time.UTC),
		},
		{
			name:   "annual_period",
			after:  time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
			unit:   1,
			period: BILLING_PERIOD_ANNUAL,
			want:   time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NextBoundaryAfter(anchor, tt.unit, tt.period, tt.after)
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "want %v, got %v", tt.want, got)
			assert.True(t, got.After(tt.after), "boundary must be strictly after reference")
		})
	}
}

func TestCurrentBillingPeriod(t *testing.T) {
	anchor := time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)
	now := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)

	start, end, err := CurrentBillingPeriod(anchor, 1, BILLING_PERIOD_MONTHLY, now)
	require.NoError(t, err)

	// Boundaries walk from the previous boundary: Jan 31, Feb 29, Mar 29.
	assert.True(t, start.Equal(time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC)), "got start %v", start)
	assert.True(t, end.Equal(time.Date(2024, 3, 29, 0, 0, 0, 0, time.UTC)), "got end %v", end)
	assert.False(t, start.After(now))
	assert.True(t, end.After(now))
}

func TestAddClampedDate(t *testing.T) {
	tests := []struct {
		name                 string
		t                    time.Time
		years, months, days  int
		want                 time.Time
	}{
		{
			name: "month_add_clamps_day",
			t:    time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC),
			months: 1,
			want: time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "day_add_rolls_over_month",
			t:    time.Date(2024, 2, 28, 0, 0, 0, 0, time.UTC),
			days: 2,
			want: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			name:  "year_add_clamps_leap_day",
			t:     time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC),
			years: 1,
			want:  time.Date(2025, 2, 28, 0, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := AddClampedDate(tt.t, tt.years, tt.months, tt.days)
			assert.True(t, tt.want.Equal(got), "want %v, got %v", tt.want, got)
		})
	}
}

func TestTruncateToSecond(t *testing.T) {
	in := time.Date(2024, 5, 1, 10, 30, 45, 123456789, time.UTC)
	assert.Equal(t, time.Date(2024, 5, 1, 10, 30, 45, 0, time.UTC), TruncateToSecond(in))

	assert.Nil(t, TruncateToSecondPtr(nil))
	got := TruncateToSecondPtr(&in)
	require.NotNil(t, got)
	assert.Equal(t, 0, got.Nanosecond())
}

func TestBillingPeriod_LongerThan(t *testing.T) {
	assert.True(t, BILLING_PERIOD_ANNUAL.LongerThan(BILLING_PERIOD_MONTHLY))
	assert.True(t, BILLING_PERIOD_MONTHLY.LongerThan(BILLING_PERIOD_WEEKLY))
	assert.False(t, BILLING_PERIOD_DAILY.LongerThan(BILLING_PERIOD_DAILY))
	assert.False(t, BILLING_PERIOD_WEEKLY.LongerThan(BILLING_PERIOD_QUARTERLY))
}
