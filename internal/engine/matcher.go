package engine

import (
	"fmt"
	"time"

	"market_sim/internal/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Matcher is the matching engine: it validates an incoming order, walks the
// opposite side of the book in price-time priority, applies the fills and
// moves the market price to the blended execution price.
//
// All fills of one incoming order share a single volume-weighted price for
// market purposes; per-level trade prices are not published.
//
// Matcher is a single-writer state machine and is not safe for concurrent
// use. Wrap it in a Sequencer when more than one goroutine submits orders.
type Matcher struct {
	book   *OrderBook
	market *domain.MarketState
	newID  func() string
	now    func() time.Time
}

// NewMatcher creates a matcher over book and market. Both are mutated only
// through Submit and Cancel.
func NewMatcher(book *OrderBook, market *domain.MarketState) *Matcher {
	return &Matcher{
		book:   book,
		market: market,
		newID:  uuid.NewString,
		now:    time.Now,
	}
}

// Book returns the underlying order book.
func (m *Matcher) Book() *OrderBook { return m.book }

// Market returns the market state updated by this matcher.
func (m *Matcher) Market() *domain.MarketState { return m.market }

// Validate runs the pre-trade checks against the current market price.
// It never mutates state.
func (m *Matcher) Validate(req domain.OrderRequest) error {
	price := m.market.Price

	if !req.Side.Valid() || !req.Kind.Valid() {
		return domain.NewRejectError(domain.RejectInvalidOrder, req, price)
	}
	if !req.Quantity.IsPositive() {
		return domain.NewRejectError(domain.RejectInvalidQuantity, req, price)
	}
	if req.Kind == domain.KindMarket {
		return nil
	}

	if !req.LimitPrice.Valid || !req.LimitPrice.Decimal.IsPositive() {
		return domain.NewRejectError(domain.RejectInvalidLimitPrice, req, price)
	}
	limit := req.LimitPrice.Decimal
	if req.Side == domain.SideBid && !limit.LessThan(price) {
		return domain.NewRejectError(domain.RejectLimitPriceNotBelowMarket, req, price)
	}
	if req.Side == domain.SideAsk && !limit.GreaterThan(price) {
		return domain.NewRejectError(domain.RejectLimitPriceNotAboveMarket, req, price)
	}
	return nil
}

// crosses reports whether a resting order at price is acceptable to an
// incoming limit order on side with the given limit.
func crosses(side domain.Side, price, limit decimal.Decimal) bool {
	if side == domain.SideBid {
		return price.LessThanOrEqual(limit)
	}
	return price.GreaterThanOrEqual(limit)
}

// Submit validates and executes req. A rejected order returns a
// *domain.RejectError and leaves the book and market untouched. An order
// that finds no liquidity is not an error: its report has Executed == 0.
//
// A limit remainder rests at the limit price under the report's OrderID; a
// market remainder is dropped. An error wrapping domain.ErrInvalidReduction
// means the book is inconsistent and must be treated as fatal.
func (m *Matcher) Submit(req domain.OrderRequest) (*domain.ExecutionReport, error) {
	if err := m.Validate(req); err != nil {
		return nil, err
	}

	var (
		limit     = req.LimitPrice.Decimal
		opposite  = req.Side.Opposite()
		remaining = req.Quantity
		executed  = decimal.Zero
		notional  = decimal.Zero
		fills     = make([]domain.Fill, 0, 4)
	)

	// 1. Walk the opposite side and record matches without mutating it.
	m.book.Walk(opposite, func(o *domain.Order) bool {
		if req.Kind == domain.KindLimit && !crosses(req.Side, o.Price, limit) {
			return false
		}
		matched := decimal.Min(remaining, o.Quantity)
		if matched.IsPositive() {
			fills = append(fills, domain.Fill{
				RestingOrderID: o.ID,
				Price:          o.Price,
				Quantity:       matched,
			})
			notional = notional.Add(matched.Mul(o.Price))
			executed = executed.Add(matched)
			remaining = remaining.Sub(matched)
		}
		return remaining.IsPositive()
	})

	// 2. Apply the recorded matches to the resting orders.
	for _, f := range fills {
		if err := m.book.ReduceQuantity(f.RestingOrderID, opposite, f.Quantity); err != nil {
			return nil, fmt.Errorf("apply fill against %s: %w", f.RestingOrderID, err)
		}
	}

	now := m.now()
	report := &domain.ExecutionReport{
		OrderID:     m.newID(),
		Side:        req.Side,
		Kind:        req.Kind,
		Requested:   req.Quantity,
		Executed:    executed,
		Notional:    notional,
		Remainder:   remaining,
		Disposition: domain.DispositionNone,
		Fills:       fills,
	}

	// 3. Price discovery from the blended execution price.
	if executed.IsPositive() {
		report.BlendedPrice = notional.Div(executed)
		m.market.ApplyExecution(report.BlendedPrice, notional, now.UnixMicro())
	}

	// 4. Remainder: limit orders rest, market orders are dropped.
	if remaining.IsPositive() {
		if req.Kind == domain.KindMarket {
			report.Disposition = domain.DispositionDropped
			return report, nil
		}
		resting := &domain.Order{
			ID:        report.OrderID,
			Side:      req.Side,
			Kind:      domain.KindLimit,
			Price:     limit,
			Quantity:  remaining,
			CreatedAt: now,
		}
		if err := m.book.Insert(resting); err != nil {
			return nil, fmt.Errorf("rest remainder %s: %w", report.OrderID, err)
		}
		report.Disposition = domain.DispositionResting
	}

	return report, nil
}

// Cancel removes a resting order. Unknown ids are tolerated; the result
// reports whether an order was actually removed.
func (m *Matcher) Cancel(id string, side domain.Side) bool {
	return m.book.Remove(id, side)
}

// Seed rests an order directly, bypassing pre-trade checks. It is used to
// build the initial book.
func (m *Matcher) Seed(id string, side domain.Side, price, qty decimal.Decimal) error {
	if id == "" {
		id = m.newID()
	}
	return m.book.Insert(&domain.Order{
		ID:        id,
		Side:      side,
		Kind:      domain.KindLimit,
		Price:     price,
		Quantity:  qty,
		CreatedAt: m.now(),
	})
}
