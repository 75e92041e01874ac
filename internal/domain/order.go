package domain

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Side is the book side an order rests on or trades against.
type Side string

const (
	SideBid Side = "BID"
	SideAsk Side = "ASK"
)

// OrderKind is the execution style of an order.
type OrderKind string

const (
	KindMarket OrderKind = "MARKET"
	KindLimit  OrderKind = "LIMIT"
)

// Valid reports whether s is one of the two book sides.
func (s Side) Valid() bool {
	return s == SideBid || s == SideAsk
}

// Opposite returns the side an incoming order of side s matches against.
func (s Side) Opposite() Side {
	if s == SideBid {
		return SideAsk
	}
	return SideBid
}

// Verb returns "buy" or "sell".
func (s Side) Verb() string {
	if s == SideBid {
		return "buy"
	}
	return "sell"
}

// ParseSide accepts BID/ASK as well as BUY/SELL, case-insensitively.
func ParseSide(s string) (Side, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "BID", "BUY", "B":
		return SideBid, nil
	case "ASK", "SELL", "S", "A":
		return SideAsk, nil
	default:
		return "", fmt.Errorf("%w: unknown side %q", ErrInvalidOrder, s)
	}
}

// Valid reports whether k is a supported order kind.
func (k OrderKind) Valid() bool {
	return k == KindMarket || k == KindLimit
}

// ParseOrderKind accepts MARKET/LIMIT case-insensitively.
func ParseOrderKind(s string) (OrderKind, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "MARKET", "MKT":
		return KindMarket, nil
	case "LIMIT", "LMT":
		return KindLimit, nil
	default:
		return "", fmt.Errorf("%w: unknown order kind %q", ErrInvalidOrder, s)
	}
}

// Order is a resting limit order owned by the order book.
// Quantity is the unfilled amount and is always positive while the order rests.
type Order struct {
	ID        string          `json:"id"`
	Side      Side            `json:"side"`
	Kind      OrderKind       `json:"kind"`
	Price     decimal.Decimal `json:"price"`
	Quantity  decimal.Decimal `json:"quantity"`
	Seq       uint64          `json:"seq"` // insertion sequence, assigned by the book
	CreatedAt time.Time       `json:"created_at"`
}

// OrderRequest is an incoming order as submitted by a caller.
// LimitPrice is only consulted for limit orders.
type OrderRequest struct {
	Side       Side
	Kind       OrderKind
	Quantity   decimal.Decimal
	LimitPrice decimal.NullDecimal
}

// MarketOrder builds a market order request.
func MarketOrder(side Side, qty decimal.Decimal) OrderRequest {
	return OrderRequest{Side: side, Kind: KindMarket, Quantity: qty}
}

// LimitOrder builds a limit order request.
func LimitOrder(side Side, qty, limit decimal.Decimal) OrderRequest {
	return OrderRequest{
		Side:       side,
		Kind:       KindLimit,
		Quantity:   qty,
		LimitPrice: decimal.NewNullDecimal(limit),
	}
}

// QuantityFromFloat converts a caller-supplied float into a quantity,
// rejecting NaN, infinities and non-positive values.
func QuantityFromFloat(f float64) (decimal.Decimal, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return decimal.Zero, fmt.Errorf("%w: %v is not finite", ErrInvalidQuantity, f)
	}
	d := decimal.NewFromFloat(f)
	if !d.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: %v must be positive", ErrInvalidQuantity, f)
	}
	return d, nil
}

// ParseQuantity parses a decimal string into a positive quantity.
func ParseQuantity(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidQuantity, s)
	}
	if !d.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: %s must be positive", ErrInvalidQuantity, s)
	}
	return d, nil
}

// ParsePrice parses a decimal string into a positive price.
func ParsePrice(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidLimitPrice, s)
	}
	if !d.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: %s must be positive", ErrInvalidLimitPrice, s)
	}
	return d, nil
}
