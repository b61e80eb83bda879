package types

// BillingPeriod is the billing period for a recurring price ex MONTHLY, ANNUAL, WEEKLY, DAILY
type BillingPeriod string

// BillingCadence is the billing cadence for a price ex RECURRING, ONETIME
type BillingCadence string

// PriceType distinguishes fixed fees from usage-metered prices
type PriceType string

const (
	PRICE_TYPE_USAGE PriceType = "USAGE"
	PRICE_TYPE_FIXED PriceType = "FIXED"

	// For BILLING_CADENCE_RECURRING
	BILLING_PERIOD_DAILY       BillingPeriod = "DAILY"
	BILLING_PERIOD_WEEKLY      BillingPeriod = "WEEKLY"
	BILLING_PERIOD_MONTHLY     BillingPeriod = "MONTHLY"
	BILLING_PERIOD_QUARTERLY   BillingPeriod = "QUARTERLY"
	BILLING_PERIOD_SEMI_ANNUAL BillingPeriod = "SEMI_ANNUAL"
	BILLING_PERIOD_ANNUAL      BillingPeriod = "ANNUAL"

	BILLING_CADENCE_RECURRING BillingCadence = "RECURRING"
	BILLING_CADENCE_ONETIME   BillingCadence = "ONETIME"

	// MAX_BILLING_AMOUNT is the maximum allowed billing amount (as a safeguard)
	MAX_BILLING_AMOUNT = 1000000000000 // 1 trillion
)

// billingPeriodDays is the nominal length of each period in days, used only
// to order intervals and to normalize recurring amounts for comparison.
var billingPeriodDays = map[BillingPeriod]int{
	BILLING_PERIOD_DAILY:       1,
	BILLING_PERIOD_WEEKLY:      7,
	BILLING_PERIOD_MONTHLY:     30,
	BILLING_PERIOD_QUARTERLY:   91,
	BILLING_PERIOD_SEMI_ANNUAL: 182,
	BILLING_PERIOD_ANNUAL:      365,
}

// NominalDays returns the nominal number of days in the period. Unknown
// periods report zero so they always lose an interval comparison.
func (p BillingPeriod) NominalDays() int {
	return billingPeriodDays[p]
}

// LongerThan reports whether p is a larger billing interval than other,
// e.g. ANNUAL.LongerThan(MONTHLY) == true.
func (p BillingPeriod) LongerThan(other BillingPeriod) bool {
	return p.NominalDays() > other.NominalDays()
}

func (p BillingPeriod) Validate() bool {
	_, ok := billingPeriodDays[p]
	return ok
}
