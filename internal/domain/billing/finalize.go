package billing

import (
	"github.com/shopspring/decimal"
)

// FinalizeOptions carries the attach-level facts the finalizer needs.
type FinalizeOptions struct {
	// TrialActive means this attach starts a trial: immediate charges would
	// bill before the trial ends and are suppressed. Credits survive.
	TrialActive bool

	// Discounts are the customer's processor-level discounts, applied to
	// charges in the order the processor returned them.
	Discounts []Discount
}

// FinalizeLineItems post-processes raw proration line items:
//
//  1. Trial suppression removes charges that would bill inside the trial.
//  2. Cancel-out filtering drops charge/credit pairs on the same price with
//     equal magnitude: a net-zero proration swap should not reach an invoice.
//  3. Discounts reduce each remaining charge, floored at zero. Credits are
//     never discounted.
//
// Output order is preserved except for removed items.
func FinalizeLineItems(items []LineItem, opts FinalizeOptions) []LineItem {
	if len(items) == 0 {
		return items
	}

	items = suppressTrialCharges(items, opts.TrialActive)
	items = cancelOutPairs(items)
	items = applyDiscounts(items, opts.Discounts)
	return items
}

func suppressTrialCharges(items []LineItem, trialActive bool) []LineItem {
	if !trialActive {
		return items
	}
	out := items[:0:0]
	for _, item := range items {
		if item.Amount.IsPositive() {
			continue
		}
		out = append(out, item)
	}
	return out
}

// cancelOutPairs removes charge/credit pairs on the same price whose amounts
// sum to zero. Each item cancels at most once.
func cancelOutPairs(items []LineItem) []LineItem {
	removed := make([]bool, len(items))
	for i := range items {
		if removed[i] || items[i].Amount.IsZero() {
			continue
		}
		for j := i + 1; j < len(items); j++ {
			if removed[j] {
				continue
			}
			if items[i].PriceID != items[j].PriceID {
				continue
			}
			if items[i].Amount.IsPositive() == items[j].Amount.IsPositive() {
				continue
			}
			if items[i].Amount.Add(items[j].Amount).IsZero() {
				removed[i] = true
				removed[j] = true
				break
			}
		}
	}

	out := items[:0:0]
	for i, item := range items {
		if !removed[i] {
			out = append(out, item)
		}
	}
	return out
}

func applyDiscounts(items []LineItem, discounts []Discount) []LineItem {
	if len(discounts) == 0 {
		return items
	}

	hundred := decimal.NewFromInt(100)
	out := items[:0:0]
	for _, item := range items {
		if !item.Amount.IsPositive() {
			// A negative-only line item is a credit, which is never
			// discounted.
			out = append(out, item)
			continue
		}
		amount := item.Amount
		for _, d := range discounts {
			switch {
			case d.PercentOff != nil:
				amount = amount.Sub(amount.Mul(*d.PercentOff).Div(hundred))
			case d.AmountOff != nil:
				if d.Currency == "" || d.Currency == item.Currency {
					amount = amount.Sub(*d.AmountOff)
				}
			}
			if amount.IsNegative() {
				// Discounting alone never flips a charge into a credit.
				amount = decimal.Zero
			}
		}
		item.Amount = amount
		out = append(out, item)
	}
	return out
}
