package domain

import "github.com/shopspring/decimal"

// Disposition describes what happened to the unfilled part of an order.
type Disposition string

const (
	DispositionNone    Disposition = "NONE"    // fully filled
	DispositionResting Disposition = "RESTING" // limit remainder added to the book
	DispositionDropped Disposition = "DROPPED" // market remainder discarded
)

// Fill is the portion of an incoming order matched against one resting order.
type Fill struct {
	RestingOrderID string          `json:"resting_order_id"`
	Price          decimal.Decimal `json:"price"`
	Quantity       decimal.Decimal `json:"quantity"`
}

// Notional returns Price * Quantity.
func (f Fill) Notional() decimal.Decimal {
	return f.Price.Mul(f.Quantity)
}

// ExecutionReport is produced once per accepted order.
//
// BlendedPrice is the volume-weighted average of all fills and is zero when
// nothing executed. All fills share this single price for market purposes;
// Fill.Price keeps the resting order's own price for bookkeeping.
type ExecutionReport struct {
	OrderID      string          `json:"order_id"`
	Side         Side            `json:"side"`
	Kind         OrderKind       `json:"kind"`
	Requested    decimal.Decimal `json:"requested"`
	Executed     decimal.Decimal `json:"executed"`
	Notional     decimal.Decimal `json:"notional"`
	BlendedPrice decimal.Decimal `json:"blended_price"`
	Remainder    decimal.Decimal `json:"remainder"`
	Disposition  Disposition     `json:"disposition"`
	Fills        []Fill          `json:"fills"`
}

// HasExecution reports whether any quantity traded.
func (r *ExecutionReport) HasExecution() bool {
	return r.Executed.IsPositive()
}

// MatchedRestingIDs lists the resting orders touched, in match order.
func (r *ExecutionReport) MatchedRestingIDs() []string {
	ids := make([]string, 0, len(r.Fills))
	for _, f := range r.Fills {
		ids = append(ids, f.RestingOrderID)
	}
	return ids
}
