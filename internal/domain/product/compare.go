package product

import (
	"github.com/shopspring/decimal"

	"github.com/cyclebill/cyclebill/internal/types"
)

// LargestBillingPeriod returns the product's largest recurring interval and
// its period count. When a product carries mixed intervals (e.g. a yearly base
// fee plus a monthly add-on charge), the largest interval governs the
// end-of-cycle boundary. Returns ok=false for products with no recurring
// prices.
func (p *Product) LargestBillingPeriod() (types.BillingPeriod, int, bool) {
	var (
		best      types.BillingPeriod
		bestCount int
		found     bool
	)
	for _, price := range p.RecurringPrices() {
		count := price.PeriodCount
		if count <= 0 {
			count = 1
		}
		if !found || periodSpanDays(price.BillingPeriod, count) > periodSpanDays(best, bestCount) {
			best = price.BillingPeriod
			bestCount = count
			found = true
		}
	}
	return best, bestCount, found
}

func periodSpanDays(period types.BillingPeriod, count int) int {
	return period.NominalDays() * count
}

// AnnualizedRecurringTotal sums the product's recurring fixed prices
// normalized to a nominal year, giving a total order over products. Usage
// based prices carry no fixed amount and are excluded.
func (p *Product) AnnualizedRecurringTotal() decimal.Decimal {
	total := decimal.Zero
	for _, price := range p.RecurringPrices() {
		if price.IsUsageBased() {
			continue
		}
		days := periodSpanDays(price.BillingPeriod, max(price.PeriodCount, 1))
		if days <= 0 {
			continue
		}
		perYear := price.Amount.Mul(decimal.NewFromInt(365)).Div(decimal.NewFromInt(int64(days)))
		total = total.Add(perYear)
	}
	return total
}

// IsUpgradeFrom reports whether switching from other to p is an upgrade:
// a strictly higher normalized recurring total. Equal totals are not an
// upgrade, so equal-priced switches schedule for the end of the cycle like
// downgrades do.
func (p *Product) IsUpgradeFrom(other *Product) bool {
	return p.AnnualizedRecurringTotal().GreaterThan(other.AnnualizedRecurringTotal())
}
