package schedule

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cyclebill/cyclebill/internal/domain/cusproduct"
	ierr "github.com/cyclebill/cyclebill/internal/errors"
	"github.com/cyclebill/cyclebill/internal/types"
)

// BuildParams is the input to the phase builder: the customer's product rows
// with known boundaries, plus optional trial-end and billing-anchor hints.
type BuildParams struct {
	Now time.Time

	// Products are the rows to lay out: the current Active set plus any
	// number of future Scheduled rows. Expired rows are ignored.
	Products []*cusproduct.CustomerProduct

	TrialEnd      *time.Time
	BillingAnchor *time.Time
}

// BuildPhases converts the product timeline into the ordered, non-overlapping
// phase list a processor subscription schedule needs. The result is a pure
// function of the params: same input, same phases.
//
// Every timestamp is normalized to second resolution once, up front. The
// processor only supports second granularity, and truncating per phase would
// let a product's starts_at drift from the transition point derived from it.
func BuildPhases(params BuildParams) ([]*Phase, error) {
	if params.Now.IsZero() {
		return nil, ierr.NewError("now is required").Mark(ierr.ErrValidation)
	}

	now := types.TruncateToSecond(params.Now)
	trialEnd := types.TruncateToSecondPtr(params.TrialEnd)
	anchor := types.TruncateToSecondPtr(params.BillingAnchor)

	products := normalizeProducts(params.Products)

	points := collectTransitionPoints(products, trialEnd, anchor, now)

	var phases []*Phase
	start := now
	for _, point := range points {
		end := point
		phase, err := buildPhase(products, start, &end, trialEnd, len(phases) == 0)
		if err != nil {
			return nil, err
		}
		phases = append(phases, phase)
		start = point
	}

	// Terminal sentinel: the final phase is always open-ended.
	phase, err := buildPhase(products, start, nil, trialEnd, len(phases) == 0)
	if err != nil {
		return nil, err
	}
	phases = append(phases, phase)

	return phases, nil
}

// normalizeProducts truncates every product boundary to seconds, dropping
// rows that can never appear in a phase. Active rows whose group has a
// pending Scheduled replacement inherit that start date as their effective
// end: the replacement displaces them even when ended_at was never written.
func normalizeProducts(products []*cusproduct.CustomerProduct) []*cusproduct.CustomerProduct {
	out := make([]*cusproduct.CustomerProduct, 0, len(products))
	for _, cp := range products {
		if !cp.IsActive() && !cp.IsScheduled() {
			continue
		}
		clone := *cp
		clone.StartsAt = types.TruncateToSecond(cp.StartsAt)
		clone.EndedAt = types.TruncateToSecondPtr(cp.EndedAt)
		clone.TrialEndsAt = types.TruncateToSecondPtr(cp.TrialEndsAt)
		out = append(out, &clone)
	}

	for _, active := range out {
		if !active.IsActive() || active.Group() == "" {
			continue
		}
		for _, scheduled := range out {
			if !scheduled.IsScheduled() ||
				scheduled.Group() != active.Group() ||
				!scheduled.SameScope(active.EntityID) {
				continue
			}
			if scheduled.Product != nil && scheduled.Product.IsAddOn {
				continue
			}
			start := scheduled.StartsAt
			if active.EndedAt == nil || active.EndedAt.After(start) {
				active.EndedAt = &start
			}
		}
	}

	return out
}

// collectTransitionPoints gathers every future timestamp where the active
// item set may change, deduplicated and sorted ascending. The terminal
// open-ended sentinel is implicit: the caller appends the final phase itself.
func collectTransitionPoints(
	products []*cusproduct.CustomerProduct,
	trialEnd *time.Time,
	anchor *time.Time,
	now time.Time,
) []time.Time {
	seen := map[int64]bool{}
	var points []time.Time

	add := func(t time.Time) {
		if !t.After(now) {
			return
		}
		key := t.Unix()
		if seen[key] {
			return
		}
		seen[key] = true
		points = append(points, t)
	}

	for _, cp := range products {
		if cp.IsScheduled() {
			add(cp.StartsAt)
		}
		if cp.EndedAt != nil {
			add(*cp.EndedAt)
		}
	}
	if trialEnd != nil {
		add(*trialEnd)
	}
	if anchor != nil {
		add(*anchor)
	}

	sort.Slice(points, func(i, j int) bool { return points[i].Before(points[j]) })
	return points
}

// buildPhase selects the products active during [start, end) and merges their
// recurring prices into the phase item set.
func buildPhase(
	products []*cusproduct.CustomerProduct,
	start time.Time,
	end *time.Time,
	trialEnd *time.Time,
	first bool,
) (*Phase, error) {
	phase := &Phase{Start: start, End: end}

	for _, cp := range products {
		if !activeInWindow(cp, start, end, first) {
			continue
		}
		mergeItems(phase, cp)
	}

	phase.TrialEnd = clipTrialEnd(trialEnd, start, end)
	return phase, nil
}

// activeInWindow decides whether a product row participates in [start, end).
func activeInWindow(cp *cusproduct.CustomerProduct, start time.Time, end *time.Time, first bool) bool {
	started := !cp.StartsAt.After(start)
	if !started {
		// The first phase covers "now": currently Active rows belong in it
		// even when their start timestamp sits a moment ahead of the window.
		if !(first && !cp.IsScheduled()) {
			return false
		}
	}

	if cp.EndedAt == nil {
		return true
	}
	if end == nil {
		// Open-ended window: a product with any end cannot fill it.
		return false
	}
	return !cp.EndedAt.Before(*end)
}

// mergeItems folds the product's recurring prices into the phase, summing
// quantities for items that resolve to the same processor price id. Usage
// metered items carry no quantity at all.
func mergeItems(phase *Phase, cp *cusproduct.CustomerProduct) {
	if cp.Product == nil {
		return
	}
	for _, price := range cp.Product.RecurringPrices() {
		priceID := price.ProcessorPriceID
		if priceID == "" {
			priceID = price.ID
		}

		idx := -1
		for i := range phase.Items {
			if phase.Items[i].PriceID == priceID {
				idx = i
				break
			}
		}

		if price.IsUsageBased() {
			if idx < 0 {
				phase.Items = append(phase.Items, PhaseItem{PriceID: priceID})
			}
			continue
		}

		qty := price.Quantity
		if !qty.IsPositive() {
			qty = decimal.NewFromInt(1)
		}
		if idx < 0 {
			q := qty
			phase.Items = append(phase.Items, PhaseItem{PriceID: priceID, Quantity: &q})
			continue
		}
		if phase.Items[idx].Quantity != nil {
			sum := phase.Items[idx].Quantity.Add(qty)
			phase.Items[idx].Quantity = &sum
		}
	}
}

// clipTrialEnd computes a phase's trial end: unset when the trial is over
// before the phase starts, the phase's own end when the trial extends past
// it, the trial end itself otherwise.
func clipTrialEnd(trialEnd *time.Time, start time.Time, end *time.Time) *time.Time {
	if trialEnd == nil || !trialEnd.After(start) {
		return nil
	}
	if end != nil && trialEnd.After(*end) {
		e := *end
		return &e
	}
	t := *trialEnd
	return &t
}
