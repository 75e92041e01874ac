package engine

import (
	"fmt"

	"market_sim/internal/domain"

	"github.com/google/btree"
	"github.com/shopspring/decimal"
)

const btreeDegree = 32

// bookSide is one side of the book: a B-tree ordered by (price, seq) in
// matching priority plus an id index for cancels and reductions.
type bookSide struct {
	side   domain.Side
	tree   *btree.BTreeG[*domain.Order]
	byID   map[string]*domain.Order
	amount decimal.Decimal // sum of resting quantity
}

// bidLess orders bids best first: higher price, then earlier insertion.
func bidLess(a, b *domain.Order) bool {
	if c := a.Price.Cmp(b.Price); c != 0 {
		return c > 0
	}
	return a.Seq < b.Seq
}

// askLess orders asks best first: lower price, then earlier insertion.
func askLess(a, b *domain.Order) bool {
	if c := a.Price.Cmp(b.Price); c != 0 {
		return c < 0
	}
	return a.Seq < b.Seq
}

func newBookSide(side domain.Side) *bookSide {
	less := askLess
	if side == domain.SideBid {
		less = bidLess
	}
	return &bookSide{
		side:   side,
		tree:   btree.NewG[*domain.Order](btreeDegree, less),
		byID:   make(map[string]*domain.Order),
		amount: decimal.Zero,
	}
}

// OrderBook holds resting limit orders for a single asset with price-time
// priority. It is not safe for concurrent use; the Sequencer serializes access.
type OrderBook struct {
	bids    *bookSide
	asks    *bookSide
	lastSeq uint64
}

// NewOrderBook creates an empty book.
func NewOrderBook() *OrderBook {
	return &OrderBook{
		bids: newBookSide(domain.SideBid),
		asks: newBookSide(domain.SideAsk),
	}
}

func (b *OrderBook) sideOf(side domain.Side) *bookSide {
	if side == domain.SideBid {
		return b.bids
	}
	return b.asks
}

// Insert places o on its side at its price-time position and assigns its
// insertion sequence. The book takes ownership of o.
func (b *OrderBook) Insert(o *domain.Order) error {
	if !o.Side.Valid() {
		return fmt.Errorf("%w: side %q", domain.ErrInvalidOrder, o.Side)
	}
	if !o.Quantity.IsPositive() {
		return fmt.Errorf("%w: resting order %s has quantity %s", domain.ErrInvalidQuantity, o.ID, o.Quantity)
	}
	if !o.Price.IsPositive() {
		return fmt.Errorf("%w: resting order %s has price %s", domain.ErrInvalidLimitPrice, o.ID, o.Price)
	}

	s := b.sideOf(o.Side)
	if _, exists := s.byID[o.ID]; exists {
		return fmt.Errorf("%w: %s on %s", domain.ErrDuplicateOrder, o.ID, o.Side)
	}

	b.lastSeq++
	o.Seq = b.lastSeq
	o.Kind = domain.KindLimit

	s.tree.ReplaceOrInsert(o)
	s.byID[o.ID] = o
	s.amount = s.amount.Add(o.Quantity)
	return nil
}

// Remove deletes the order with id from side. Unknown ids are a no-op; the
// return value reports whether anything was removed.
func (b *OrderBook) Remove(id string, side domain.Side) bool {
	if !side.Valid() {
		return false
	}
	s := b.sideOf(side)
	o, ok := s.byID[id]
	if !ok {
		return false
	}
	s.remove(o)
	return true
}

func (s *bookSide) remove(o *domain.Order) {
	s.tree.Delete(o)
	delete(s.byID, o.ID)
	s.amount = s.amount.Sub(o.Quantity)
}

// ReduceQuantity decreases a resting order's quantity by delta and removes it
// once nothing is left. Reducing by more than the order holds, by a
// non-positive amount, or an order that is not resting fails with
// domain.ErrInvalidReduction and leaves the book untouched.
func (b *OrderBook) ReduceQuantity(id string, side domain.Side, delta decimal.Decimal) error {
	if !side.Valid() {
		return &domain.ReductionError{OrderID: id, Side: side, Delta: delta}
	}
	s := b.sideOf(side)
	o, ok := s.byID[id]
	if !ok {
		return &domain.ReductionError{OrderID: id, Side: side, Delta: delta}
	}
	if !delta.IsPositive() || delta.GreaterThan(o.Quantity) {
		return &domain.ReductionError{
			OrderID:   id,
			Side:      side,
			Delta:     delta,
			Remaining: o.Quantity,
			Found:     true,
		}
	}

	// Quantity is not part of the tree key, so it can change in place.
	o.Quantity = o.Quantity.Sub(delta)
	s.amount = s.amount.Sub(delta)
	if o.Quantity.IsZero() {
		s.tree.Delete(o)
		delete(s.byID, id)
	}
	return nil
}

// Best returns a copy of the highest-priority order on side.
func (b *OrderBook) Best(side domain.Side) (domain.Order, bool) {
	if !side.Valid() {
		return domain.Order{}, false
	}
	o, ok := b.sideOf(side).tree.Min()
	if !ok {
		return domain.Order{}, false
	}
	return *o, true
}

// Walk visits resting orders on side in matching priority until fn returns
// false. fn must not mutate the book.
func (b *OrderBook) Walk(side domain.Side, fn func(o *domain.Order) bool) {
	if !side.Valid() {
		return
	}
	b.sideOf(side).tree.Ascend(fn)
}

// Get returns a copy of the resting order with id on side.
func (b *OrderBook) Get(id string, side domain.Side) (domain.Order, bool) {
	if !side.Valid() {
		return domain.Order{}, false
	}
	o, ok := b.sideOf(side).byID[id]
	if !ok {
		return domain.Order{}, false
	}
	return *o, true
}

// Orders returns copies of every resting order on side, in book order.
func (b *OrderBook) Orders(side domain.Side) []domain.Order {
	if !side.Valid() {
		return nil
	}
	s := b.sideOf(side)
	out := make([]domain.Order, 0, s.tree.Len())
	s.tree.Ascend(func(o *domain.Order) bool {
		out = append(out, *o)
		return true
	})
	return out
}

// Depth aggregates resting quantity by price level, in book order.
func (b *OrderBook) Depth(side domain.Side) []domain.PriceLevel {
	if !side.Valid() {
		return nil
	}
	levels := make([]domain.PriceLevel, 0)
	b.sideOf(side).tree.Ascend(func(o *domain.Order) bool {
		if n := len(levels); n > 0 && levels[n-1].Price.Equal(o.Price) {
			levels[n-1].Quantity = levels[n-1].Quantity.Add(o.Quantity)
			return true
		}
		levels = append(levels, domain.PriceLevel{Price: o.Price, Quantity: o.Quantity})
		return true
	})
	return levels
}

// Len returns the number of resting orders on side.
func (b *OrderBook) Len(side domain.Side) int {
	if !side.Valid() {
		return 0
	}
	return b.sideOf(side).tree.Len()
}

// TotalQuantity returns the resting quantity on side.
func (b *OrderBook) TotalQuantity(side domain.Side) decimal.Decimal {
	if !side.Valid() {
		return decimal.Zero
	}
	return b.sideOf(side).amount
}
