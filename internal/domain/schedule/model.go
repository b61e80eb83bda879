package schedule

import (
	"time"

	"github.com/shopspring/decimal"
)

// Phase is a time-bounded, non-overlapping slice of a processor subscription
// schedule. End nil means the phase is open-ended; the final phase always is.
type Phase struct {
	Start time.Time  `json:"start"`
	End   *time.Time `json:"end,omitempty"`

	// Items is the merged item set for the window, one entry per processor
	// price id, in first-seen order.
	Items []PhaseItem `json:"items"`

	// TrialEnd is clipped to End whenever End is set; the processor rejects a
	// trial extending past its phase.
	TrialEnd *time.Time `json:"trial_end,omitempty"`
}

// PhaseItem is one price within a phase. Quantity is nil for usage-metered
// prices: the processor computes usage-based amounts itself, and zero would
// mean something different.
type PhaseItem struct {
	PriceID  string           `json:"price_id"`
	Quantity *decimal.Decimal `json:"quantity,omitempty"`
}

// Covers reports whether t falls inside the phase window [Start, End).
func (p *Phase) Covers(t time.Time) bool {
	if t.Before(p.Start) {
		return false
	}
	return p.End == nil || t.Before(*p.End)
}
