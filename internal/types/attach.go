package types

// AttachScenario classifies what an attach (or processor event) means for the
// customer's existing products. It is a closed set: the plan composer matches
// on it exhaustively, so adding a scenario is a compile-visible change.
type AttachScenario string

const (
	// AttachScenarioNew is a first-time attach with nothing to replace.
	AttachScenarioNew AttachScenario = "new"

	// AttachScenarioUpgrade replaces the current product immediately.
	AttachScenarioUpgrade AttachScenario = "upgrade"

	// AttachScenarioDowngrade schedules the replacement for the end of the
	// current billing cycle. An equal-priced switch is treated the same way.
	AttachScenarioDowngrade AttachScenario = "downgrade"

	// AttachScenarioRenewal re-confirms the current product for another cycle,
	// driven by a processor renewal event.
	AttachScenarioRenewal AttachScenario = "renewal"

	// AttachScenarioCancel marks the current product to end at period end.
	AttachScenarioCancel AttachScenario = "cancel"

	// AttachScenarioExpired ends the current product immediately.
	AttachScenarioExpired AttachScenario = "expired"
)

// TransitionTiming says when a resolved transition takes effect.
type TransitionTiming string

const (
	// TransitionTimingImmediate expires the current product now.
	TransitionTimingImmediate TransitionTiming = "immediate"

	// TransitionTimingEndOfCycle keeps the current product running until the
	// end of its billing period; the new product starts there.
	TransitionTimingEndOfCycle TransitionTiming = "end_of_cycle"
)

// RedirectMode controls whether the caller wants a hosted checkout redirect.
type RedirectMode string

const (
	RedirectModeIfRequired RedirectMode = "if_required"
	RedirectModeAlways     RedirectMode = "always"
	RedirectModeNever      RedirectMode = "never"
)

// TrialMode controls how the trial for a new attach is determined.
type TrialMode string

const (
	// TrialModeInherit uses the target product's configured free trial, if any.
	TrialModeInherit TrialMode = "inherit"

	// TrialModeExplicit uses the trial end supplied on the billing context.
	TrialModeExplicit TrialMode = "explicit"

	// TrialModeNone disables the trial for this attach.
	TrialModeNone TrialMode = "none"
)
