package event

import (
	"market_sim/internal/domain"

	"github.com/shopspring/decimal"
)

// Type defines the type of event.
type Type uint16

const (
	EvOrderExecuted Type = iota + 1
	EvOrderRejected
	EvOrderCancelled
)

// String returns the string representation of Type
func (t Type) String() string {
	switch t {
	case EvOrderExecuted:
		return "ORDER_EXECUTED"
	case EvOrderRejected:
		return "ORDER_REJECTED"
	case EvOrderCancelled:
		return "ORDER_CANCELLED"
	default:
		return "UNKNOWN"
	}
}

// Event is the interface for all sequencer events.
type Event interface {
	GetSeq() uint64
	GetTs() int64
	GetType() Type
}

// BaseEvent contains common fields for all events.
// Ts is Unix microseconds.
type BaseEvent struct {
	Seq uint64 `json:"seq"`
	Ts  int64  `json:"ts"`
}

func (e BaseEvent) GetSeq() uint64 { return e.Seq }
func (e BaseEvent) GetTs() int64   { return e.Ts }

// OrderExecutedEvent is emitted once per accepted order, whether or not
// anything traded. BlendedPrice is only meaningful when Executed > 0.
type OrderExecutedEvent struct {
	BaseEvent
	OrderID      string              `json:"order_id"`
	Side         domain.Side         `json:"side"`
	Kind         domain.OrderKind    `json:"kind"`
	Requested    decimal.Decimal     `json:"requested"`
	Executed     decimal.Decimal     `json:"executed"`
	Notional     decimal.Decimal     `json:"notional"`
	BlendedPrice decimal.Decimal     `json:"blended_price"`
	LimitPrice   decimal.NullDecimal `json:"limit_price"`
	Remainder    decimal.Decimal     `json:"remainder"`
	Disposition  domain.Disposition  `json:"disposition"`
	MatchedIDs   []string            `json:"matched_ids,omitempty"`

	// Market state after the order was applied.
	MarketPrice decimal.Decimal `json:"market_price"`
	MarketCap   decimal.Decimal `json:"market_cap"`
}

func (e OrderExecutedEvent) GetType() Type { return EvOrderExecuted }

// OrderRejectedEvent surfaces a pre-trade rejection. The book is unchanged.
type OrderRejectedEvent struct {
	BaseEvent
	Side        domain.Side         `json:"side"`
	Kind        domain.OrderKind    `json:"kind"`
	Quantity    decimal.Decimal     `json:"quantity"`
	LimitPrice  decimal.NullDecimal `json:"limit_price"`
	MarketPrice decimal.Decimal     `json:"market_price"`
	Reason      domain.RejectReason `json:"reason"`
}

func (e OrderRejectedEvent) GetType() Type { return EvOrderRejected }

// OrderCancelledEvent records a cancel request. Found is false when the id
// was not resting; the cancel still succeeded.
type OrderCancelledEvent struct {
	BaseEvent
	OrderID string      `json:"order_id"`
	Side    domain.Side `json:"side"`
	Found   bool        `json:"found"`
}

func (e OrderCancelledEvent) GetType() Type { return EvOrderCancelled }

// Handler consumes events. Handlers run on the sequencer goroutine and must
// not block.
type Handler func(Event)

// Fanout returns a Handler that calls every non-nil handler in order.
func Fanout(handlers ...Handler) Handler {
	hs := make([]Handler, 0, len(handlers))
	for _, h := range handlers {
		if h != nil {
			hs = append(hs, h)
		}
	}
	return func(ev Event) {
		for _, h := range hs {
			h(ev)
		}
	}
}
