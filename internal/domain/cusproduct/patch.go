package cusproduct

import (
	"time"

	"github.com/cyclebill/cyclebill/internal/types"
)

// Patch is a partial update to an existing CustomerProduct. Nil fields are
// left untouched. ClearEndedAt/ClearCanceledAt distinguish "set to null" from
// "leave alone".
type Patch struct {
	CustomerProductID string `json:"customer_product_id"`

	Status      *types.CustomerProductStatus `json:"status,omitempty"`
	EndedAt     *time.Time                   `json:"ended_at,omitempty"`
	CanceledAt  *time.Time                   `json:"canceled_at,omitempty"`
	Canceled    *bool                        `json:"canceled,omitempty"`
	TrialEndsAt *time.Time                   `json:"trial_ends_at,omitempty"`

	ClearEndedAt    bool `json:"clear_ended_at,omitempty"`
	ClearCanceledAt bool `json:"clear_canceled_at,omitempty"`
}

// Apply copies the patch onto the row in place.
func (p *Patch) Apply(cp *CustomerProduct) {
	if p.Status != nil {
		cp.Status = *p.Status
	}
	if p.EndedAt != nil {
		cp.EndedAt = p.EndedAt
	}
	if p.CanceledAt != nil {
		cp.CanceledAt = p.CanceledAt
	}
	if p.Canceled != nil {
		cp.Canceled = *p.Canceled
	}
	if p.TrialEndsAt != nil {
		cp.TrialEndsAt = p.TrialEndsAt
	}
	if p.ClearEndedAt {
		cp.EndedAt = nil
	}
	if p.ClearCanceledAt {
		cp.CanceledAt = nil
		cp.Canceled = false
	}
}
