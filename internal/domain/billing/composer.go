package billing

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cyclebill/cyclebill/internal/domain/cusproduct"
	"github.com/cyclebill/cyclebill/internal/domain/product"
	"github.com/cyclebill/cyclebill/internal/domain/proration"
	ierr "github.com/cyclebill/cyclebill/internal/errors"
	"github.com/cyclebill/cyclebill/internal/types"
)

// Composer turns a billing context into an immutable Plan. It performs no
// I/O: every input arrives on the context and the result is pure data.
type Composer struct {
	calculator proration.Calculator
}

// NewComposer creates a plan composer backed by the given proration
// calculator.
func NewComposer(calculator proration.Calculator) *Composer {
	return &Composer{calculator: calculator}
}

// Compose validates the context, resolves transitions and builds the plan for
// a single attach or a batch. Exactly one target may carry a transition; its
// update/delete are computed once, and line items are computed jointly across
// all targets against the single expiring product.
func (c *Composer) Compose(ctx context.Context, bc *Context) (*Plan, error) {
	if err := bc.Validate(); err != nil {
		return nil, err
	}

	transitions, err := ValidateBatch(bc)
	if err != nil {
		return nil, err
	}

	// Locate the single transitioning target, if any.
	var (
		tr        *Transition
		trTarget  *product.Product
		trialHost *product.Product
	)
	for i, t := range transitions {
		if t.HasTransition() {
			tr = t
			trTarget = bc.Targets[i]
		}
		if t.Scheduled != nil && tr == nil {
			// A pending schedule is superseded even when nothing is replaced.
			tr = t
			trTarget = bc.Targets[i]
		}
	}

	timing := types.TransitionTiming("")
	if tr != nil && tr.Current != nil {
		timing = tr.Timing
		// A current product without a recurring interval has no cycle to wait
		// for, so the switch happens now regardless of price direction.
		if timing == types.TransitionTimingEndOfCycle {
			if _, _, ok := tr.Current.Product.LargestBillingPeriod(); !ok {
				timing = types.TransitionTimingImmediate
			}
		}
	}

	plan := &Plan{
		CustomPrices:       bc.CustomPrices,
		CustomEntitlements: bc.CustomEntitlements,
	}

	// Inserts: one new CustomerProduct per target.
	for _, target := range bc.Targets {
		startsAt := bc.Now
		carryUsage := false

		if target == trTarget && tr != nil && tr.Current != nil {
			switch timing {
			case types.TransitionTimingEndOfCycle:
				boundary, err := c.endOfCycleBoundary(bc, tr.Current)
				if err != nil {
					return nil, err
				}
				startsAt = boundary
			case types.TransitionTimingImmediate:
				// The replaced product's usage and rollover state moves onto
				// the new row. A future-scheduled downgrade must not inherit
				// usage yet: the current product is still live.
				carryUsage = true
			}
		}

		cp := c.buildCustomerProduct(bc, target, startsAt)
		if carryUsage {
			cp.UsageSnapshotIDs = tr.Current.UsageSnapshotIDs
		}
		if cp.TrialEndsAt != nil {
			trialHost = target
		}
		plan.Insert = append(plan.Insert, cp)
	}

	// Update: expire the replaced product now on immediate transitions. An
	// end-of-cycle transition leaves the current product running; it ends
	// naturally when the scheduled row's start date arrives.
	if tr != nil && tr.Current != nil && timing == types.TransitionTimingImmediate {
		expired := types.CustomerProductStatusExpired
		plan.Update = &cusproduct.Patch{
			CustomerProductID: tr.Current.ID,
			Status:            &expired,
			EndedAt:           types.ToNillableTime(bc.Now),
		}
	}

	// Delete: a new attach always supersedes a pending schedule in the group.
	if tr != nil && tr.Scheduled != nil {
		plan.Delete = tr.Scheduled
	}

	// Line items: end-of-cycle transitions and plain new attaches defer all
	// charging to the processor's own billing; only immediate transitions
	// produce proration line items.
	if tr != nil && tr.Current != nil && timing == types.TransitionTimingImmediate &&
		bc.ProrationBehavior != types.ProrationBehaviorNone {
		items, err := c.prorationLineItems(ctx, bc, tr.Current, bc.Targets)
		if err != nil {
			return nil, err
		}
		plan.LineItems = items
	}

	// A replaced product still inside its trial window suppresses charges the
	// same way a trial on the new product does: nothing has been paid yet.
	trialActive := trialHost != nil
	if tr != nil && tr.Current != nil && tr.Current.OnTrialAt(bc.Now) {
		trialActive = true
	}

	plan.LineItems = FinalizeLineItems(plan.LineItems, FinalizeOptions{
		TrialActive: trialActive,
		Discounts:   bc.Discounts,
	})

	if err := plan.Validate(bc.Now); err != nil {
		return nil, err
	}
	return plan, nil
}

// buildCustomerProduct constructs the new row for one target. A future start
// makes the row Scheduled; otherwise it starts Active with any resolved trial.
func (c *Composer) buildCustomerProduct(bc *Context, target *product.Product, startsAt time.Time) *cusproduct.CustomerProduct {
	cp := &cusproduct.CustomerProduct{
		ID:         types.GenerateUUIDWithPrefix(types.UUID_PREFIX_CUSTOMER_PRODUCT),
		CustomerID: bc.CustomerID,
		EntityID:   bc.EntityID,
		ProductID:  target.ID,
		Product:    target,
		StartsAt:   startsAt,
		CreatedAt:  bc.Now,
	}

	if startsAt.After(bc.Now) {
		cp.Status = types.CustomerProductStatusScheduled
		return cp
	}

	cp.Status = types.CustomerProductStatusActive
	cp.TrialEndsAt = c.resolveTrialEnd(bc, target)
	return cp
}

// resolveTrialEnd applies the context's trial parameter: an explicit end
// date, the product's own configured trial, or nothing.
func (c *Composer) resolveTrialEnd(bc *Context, target *product.Product) *time.Time {
	switch bc.TrialMode {
	case types.TrialModeNone:
		return nil
	case types.TrialModeExplicit:
		if bc.TrialEndsAt != nil && bc.TrialEndsAt.After(bc.Now) {
			return bc.TrialEndsAt
		}
		return nil
	default:
		if target.FreeTrialDays > 0 {
			end := bc.Now.AddDate(0, 0, target.FreeTrialDays)
			return &end
		}
		return nil
	}
}

// endOfCycleBoundary finds when the current product's billing period ends.
// The largest recurring interval governs when the product carries mixed
// intervals.
func (c *Composer) endOfCycleBoundary(bc *Context, current *cusproduct.CustomerProduct) (time.Time, error) {
	period, count, ok := current.Product.LargestBillingPeriod()
	if !ok {
		return time.Time{}, ierr.NewError("current product has no recurring interval").
			WithReportableDetails(map[string]any{"product_id": current.ProductID}).
			Mark(ierr.ErrInvalidOperation)
	}
	anchor := current.StartsAt
	if bc.BillingCycleAnchor != nil {
		anchor = *bc.BillingCycleAnchor
	}
	boundary, err := types.NextBoundaryAfter(anchor, count, period, bc.Now)
	if err != nil {
		return time.Time{}, ierr.WithError(err).
			WithHint("failed to compute end of billing cycle").
			Mark(ierr.ErrSystem)
	}
	return boundary, nil
}

// prorationLineItems compares the expiring product's unused value against the
// new products' cost for the remainder of the current period. Credits are
// computed once against the single expiring product, so a batch never double
// counts the shared period.
func (c *Composer) prorationLineItems(
	ctx context.Context,
	bc *Context,
	current *cusproduct.CustomerProduct,
	targets []*product.Product,
) ([]LineItem, error) {
	period, count, ok := current.Product.LargestBillingPeriod()
	if !ok {
		// A free current product has nothing to credit; charge the new
		// products over their own first period starting now.
		return c.addItemCharges(ctx, bc, targets, bc.Now, nil)
	}

	anchor := current.StartsAt
	if bc.BillingCycleAnchor != nil {
		anchor = *bc.BillingCycleAnchor
	}
	periodStart, periodEnd, err := types.CurrentBillingPeriod(anchor, count, period, bc.Now)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("failed to compute current billing period").
			Mark(ierr.ErrSystem)
	}

	oldPrices := fixedRecurringPrices(current.Product)
	newPrices := []*product.Price{}
	for _, target := range targets {
		newPrices = append(newPrices, fixedRecurringPrices(target)...)
	}

	var out []LineItem

	// Pair the primary prices for a combined upgrade proration; remaining
	// prices on either side prorate as removals and additions over the same
	// window.
	pairCount := min(len(oldPrices), 1)
	if len(newPrices) == 0 {
		pairCount = 0
	}
	if pairCount == 1 {
		result, err := c.calculator.Calculate(ctx, proration.Params{
			CurrentPeriodStart: periodStart,
			CurrentPeriodEnd:   periodEnd,
			ProrationDate:      bc.Now,
			Action:             types.ProrationActionUpgrade,
			OldPriceID:         oldPrices[0].ID,
			NewPriceID:         newPrices[0].ID,
			OldQuantity:        quantityOf(oldPrices[0]),
			NewQuantity:        quantityOf(newPrices[0]),
			OldPricePerUnit:    oldPrices[0].Amount,
			NewPricePerUnit:    newPrices[0].Amount,
			Currency:           newPrices[0].Currency,
			Behavior:           bc.ProrationBehavior,
			BillingMode:        types.BillingModeInAdvance,
			CustomerTimezone:   bc.CustomerTimezone,
			OriginalAmountPaid: bc.originalPaid(oldPrices[0]),
		})
		if err != nil {
			return nil, err
		}
		out = append(out, c.convertResult(bc, result)...)
	}

	// Extra old prices: credit for unused time on removed items.
	for _, old := range oldPrices[pairCount:] {
		result, err := c.calculator.Calculate(ctx, proration.Params{
			CurrentPeriodStart: periodStart,
			CurrentPeriodEnd:   periodEnd,
			ProrationDate:      bc.Now,
			Action:             types.ProrationActionRemoveItem,
			OldPriceID:         old.ID,
			OldQuantity:        quantityOf(old),
			OldPricePerUnit:    old.Amount,
			Currency:           old.Currency,
			Behavior:           bc.ProrationBehavior,
			BillingMode:        types.BillingModeInAdvance,
			CustomerTimezone:   bc.CustomerTimezone,
			OriginalAmountPaid: bc.originalPaid(old),
		})
		if err != nil {
			return nil, err
		}
		out = append(out, c.convertResult(bc, result)...)
	}

	// Extra new prices: prorated charge from now to the period boundary.
	var newTail []*product.Price
	if pairCount == 1 {
		newTail = newPrices[1:]
	} else {
		newTail = newPrices
	}
	charges, err := c.addItemChargesForPrices(ctx, bc, newTail, periodStart, periodEnd)
	if err != nil {
		return nil, err
	}
	out = append(out, charges...)

	return out, nil
}

// addItemCharges charges the fixed recurring prices of the targets from
// `from` to each target's own next boundary.
func (c *Composer) addItemCharges(
	ctx context.Context,
	bc *Context,
	targets []*product.Product,
	from time.Time,
	_ *time.Time,
) ([]LineItem, error) {
	var out []LineItem
	for _, target := range targets {
		period, count, ok := target.LargestBillingPeriod()
		if !ok {
			continue
		}
		end, err := types.NextBillingDate(from, count, period)
		if err != nil {
			return nil, ierr.WithError(err).Mark(ierr.ErrSystem)
		}
		charges, err := c.addItemChargesForPrices(ctx, bc, fixedRecurringPrices(target), from, end)
		if err != nil {
			return nil, err
		}
		out = append(out, charges...)
	}
	return out, nil
}

func (c *Composer) addItemChargesForPrices(
	ctx context.Context,
	bc *Context,
	prices []*product.Price,
	periodStart, periodEnd time.Time,
) ([]LineItem, error) {
	var out []LineItem
	for _, price := range prices {
		result, err := c.calculator.Calculate(ctx, proration.Params{
			CurrentPeriodStart: periodStart,
			CurrentPeriodEnd:   periodEnd,
			ProrationDate:      bc.Now,
			Action:             types.ProrationActionAddItem,
			NewPriceID:         price.ID,
			NewQuantity:        quantityOf(price),
			NewPricePerUnit:    price.Amount,
			Currency:           price.Currency,
			Behavior:           bc.ProrationBehavior,
			BillingMode:        types.BillingModeInAdvance,
			CustomerTimezone:   bc.CustomerTimezone,
		})
		if err != nil {
			return nil, err
		}
		out = append(out, c.convertResult(bc, result)...)
	}
	return out, nil
}

// convertResult lifts calculator output into plan line items, credits first.
// Line items are display identifiers on invoices, so they get short ids
// rather than ULIDs.
func (c *Composer) convertResult(bc *Context, result *proration.Result) []LineItem {
	if result == nil {
		return nil
	}
	var out []LineItem
	for _, item := range append(result.CreditItems, result.ChargeItems...) {
		out = append(out, LineItem{
			ID:          types.GenerateShortIDWithPrefix(types.UUID_PREFIX_LINE_ITEM + "_"),
			PriceID:     item.PriceID,
			Description: item.Description,
			Amount:      item.Amount,
			Currency:    result.Currency,
			PeriodStart: item.StartDate,
			PeriodEnd:   item.EndDate,
			EffectiveAt: bc.Now,
		})
	}
	return out
}

// originalPaid returns what the customer actually paid for the price in the
// current period, falling back to the list amount.
func (bc *Context) originalPaid(price *product.Price) decimal.Decimal {
	if paid, ok := bc.OriginalAmountsPaid[price.ID]; ok {
		return paid
	}
	return price.Amount.Mul(quantityOf(price))
}

func fixedRecurringPrices(p *product.Product) []*product.Price {
	var out []*product.Price
	for _, price := range p.RecurringPrices() {
		if !price.IsUsageBased() {
			out = append(out, price)
		}
	}
	return out
}

func quantityOf(price *product.Price) decimal.Decimal {
	if price.Quantity.IsPositive() {
		return price.Quantity
	}
	return decimal.NewFromInt(1)
}
