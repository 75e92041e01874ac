package domain

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	// ErrInvalidQuantity is returned when a quantity is not a finite positive number.
	ErrInvalidQuantity = errors.New("invalid quantity")

	// ErrInvalidLimitPrice is returned when a limit order has no positive limit price.
	ErrInvalidLimitPrice = errors.New("invalid limit price")

	// ErrInvalidOrder is returned for unknown sides or order kinds.
	ErrInvalidOrder = errors.New("invalid order")

	// ErrLimitPriceNotBelowMarket rejects a limit buy priced at or above the market.
	ErrLimitPriceNotBelowMarket = errors.New("limit buy price must be below market price")

	// ErrLimitPriceNotAboveMarket rejects a limit sell priced at or below the market.
	ErrLimitPriceNotAboveMarket = errors.New("limit sell price must be above market price")

	// ErrInvalidReduction means the engine asked to reduce a resting order by
	// more than it holds. It indicates an over-match and is never a caller error.
	ErrInvalidReduction = errors.New("invalid reduction")

	// ErrDuplicateOrder is returned when an id already rests on the same side.
	ErrDuplicateOrder = errors.New("duplicate order id")
)

// RejectReason is the machine-readable cause of a pre-trade rejection.
type RejectReason string

const (
	RejectInvalidQuantity          RejectReason = "INVALID_QUANTITY"
	RejectInvalidLimitPrice        RejectReason = "INVALID_LIMIT_PRICE"
	RejectInvalidOrder             RejectReason = "INVALID_ORDER"
	RejectLimitPriceNotBelowMarket RejectReason = "LIMIT_PRICE_NOT_BELOW_MARKET"
	RejectLimitPriceNotAboveMarket RejectReason = "LIMIT_PRICE_NOT_ABOVE_MARKET"
)

var reasonErrors = map[RejectReason]error{
	RejectInvalidQuantity:          ErrInvalidQuantity,
	RejectInvalidLimitPrice:        ErrInvalidLimitPrice,
	RejectInvalidOrder:             ErrInvalidOrder,
	RejectLimitPriceNotBelowMarket: ErrLimitPriceNotBelowMarket,
	RejectLimitPriceNotAboveMarket: ErrLimitPriceNotAboveMarket,
}

// RejectError describes an order refused before any book mutation.
type RejectError struct {
	Reason      RejectReason
	Side        Side
	Kind        OrderKind
	Quantity    decimal.Decimal
	LimitPrice  decimal.NullDecimal
	MarketPrice decimal.Decimal
}

// NewRejectError builds a RejectError from a request and the price it was checked against.
func NewRejectError(reason RejectReason, req OrderRequest, marketPrice decimal.Decimal) *RejectError {
	return &RejectError{
		Reason:      reason,
		Side:        req.Side,
		Kind:        req.Kind,
		Quantity:    req.Quantity,
		LimitPrice:  req.LimitPrice,
		MarketPrice: marketPrice,
	}
}

func (e *RejectError) Error() string {
	switch e.Reason {
	case RejectLimitPriceNotBelowMarket, RejectLimitPriceNotAboveMarket:
		return fmt.Sprintf("order rejected [%s]: limit %s vs market %s",
			e.Reason, e.LimitPrice.Decimal.String(), e.MarketPrice.String())
	default:
		return fmt.Sprintf("order rejected [%s]: %s %s qty=%s",
			e.Reason, e.Kind, e.Side, e.Quantity.String())
	}
}

// Unwrap exposes the sentinel matching Reason so callers can use errors.Is.
func (e *RejectError) Unwrap() error {
	return reasonErrors[e.Reason]
}

// ReasonOf extracts the RejectReason from err, if it is a rejection.
func ReasonOf(err error) (RejectReason, bool) {
	var re *RejectError
	if errors.As(err, &re) {
		return re.Reason, true
	}
	return "", false
}

// ReductionError carries the details of a failed resting-order reduction.
type ReductionError struct {
	OrderID   string
	Side      Side
	Delta     decimal.Decimal
	Remaining decimal.Decimal
	Found     bool
}

func (e *ReductionError) Error() string {
	if !e.Found {
		return fmt.Sprintf("invalid reduction: order %s not on %s side", e.OrderID, e.Side)
	}
	return fmt.Sprintf("invalid reduction: order %s (%s) delta %s exceeds remaining %s",
		e.OrderID, e.Side, e.Delta.String(), e.Remaining.String())
}

func (e *ReductionError) Unwrap() error {
	return ErrInvalidReduction
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	return "config error [" + e.Field + "]: " + e.Err.Error()
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}
