package proration

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cyclebill/cyclebill/internal/types"
)

// Params holds all necessary input for calculating one proration.
type Params struct {
	// Billing period context.
	CurrentPeriodStart time.Time // Start of the current billing period
	CurrentPeriodEnd   time.Time // End of the current billing period
	ProrationDate      time.Time // Effective date/time of the change

	// Change details.
	Action          types.ProrationAction
	OldPriceID      string          // Old price ID (empty for add_item)
	NewPriceID      string          // New price ID (empty for cancellation/remove_item)
	OldQuantity     decimal.Decimal // Old quantity (zero for add_item)
	NewQuantity     decimal.Decimal // New quantity (zero for remove_item/cancellation)
	OldPricePerUnit decimal.Decimal
	NewPricePerUnit decimal.Decimal
	Currency        string

	// Configuration & context.
	Behavior         types.ProrationBehavior
	BillingMode      types.BillingMode // Credits only make sense when paid in advance
	CustomerTimezone string

	// OriginalAmountPaid caps the credit: we never refund more than was paid
	// for the item in this period, less credits already issued against it.
	OriginalAmountPaid    decimal.Decimal
	PreviousCreditsIssued decimal.Decimal
}

// LineItem represents a single credit or charge produced by a proration.
type LineItem struct {
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"` // Positive for charge, negative for credit
	StartDate   time.Time       `json:"start_date"`
	EndDate     time.Time       `json:"end_date"`
	Quantity    decimal.Decimal `json:"quantity"`
	PriceID     string          `json:"price_id"`
	IsCredit    bool            `json:"is_credit"`
}

// Result holds the output of a proration calculation.
type Result struct {
	CreditItems   []LineItem
	ChargeItems   []LineItem
	NetAmount     decimal.Decimal
	Currency      string
	Action        types.ProrationAction
	ProrationDate time.Time
}

// Calculator computes proration credits and charges for a plan change.
type Calculator interface {
	Calculate(ctx context.Context, params Params) (*Result, error)
}
