package types

// ProrationAction is the type of change that triggered a proration.
type ProrationAction string

const (
	ProrationActionUpgrade      ProrationAction = "upgrade"
	ProrationActionDowngrade    ProrationAction = "downgrade"
	ProrationActionAddItem      ProrationAction = "add_item"
	ProrationActionRemoveItem   ProrationAction = "remove_item"
	ProrationActionCancellation ProrationAction = "cancellation"
)

// ProrationBehavior controls whether proration line items are produced.
type ProrationBehavior string

const (
	// ProrationBehaviorCreateProrations computes credit/charge line items.
	ProrationBehaviorCreateProrations ProrationBehavior = "create_prorations"

	// ProrationBehaviorNone suppresses proration entirely.
	ProrationBehaviorNone ProrationBehavior = "none"
)

// ProrationStrategy picks the granularity of the proration coefficient.
type ProrationStrategy string

const (
	StrategyDayBased    ProrationStrategy = "day_based"
	StrategySecondBased ProrationStrategy = "second_based"
)

// BillingMode reflects whether the plan collects payment before or after the
// period it covers. Credits for unused time only make sense in advance mode.
type BillingMode string

const (
	BillingModeInAdvance BillingMode = "in_advance"
	BillingModeInArrears BillingMode = "in_arrears"
)
