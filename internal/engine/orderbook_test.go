package engine

import (
	"errors"
	"testing"

	"market_sim/internal/domain"

	"github.com/shopspring/decimal"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func rest(t *testing.T, b *OrderBook, id string, side domain.Side, price, qty string) {
	t.Helper()
	err := b.Insert(&domain.Order{ID: id, Side: side, Price: d(price), Quantity: d(qty)})
	if err != nil {
		t.Fatalf("Insert(%s) failed: %v", id, err)
	}
}

func ids(orders []domain.Order) []string {
	out := make([]string, len(orders))
	for i, o := range orders {
		out[i] = o.ID
	}
	return out
}

func equalIDs(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestOrderBook_Ordering(t *testing.T) {
	b := NewOrderBook()
	rest(t, b, "b3", domain.SideBid, "7", "20")
	rest(t, b, "b1", domain.SideBid, "9", "50")
	rest(t, b, "b2", domain.SideBid, "8", "30")
	rest(t, b, "a3", domain.SideAsk, "13", "40")
	rest(t, b, "a1", domain.SideAsk, "11", "25")
	rest(t, b, "a2", domain.SideAsk, "12", "35")

	if got := ids(b.Orders(domain.SideBid)); !equalIDs(got, []string{"b1", "b2", "b3"}) {
		t.Errorf("bids out of order: %v", got)
	}
	if got := ids(b.Orders(domain.SideAsk)); !equalIDs(got, []string{"a1", "a2", "a3"}) {
		t.Errorf("asks out of order: %v", got)
	}

	best, ok := b.Best(domain.SideAsk)
	if !ok || best.ID != "a1" {
		t.Errorf("Best ask = %+v, %v; want a1", best, ok)
	}
}

func TestOrderBook_TimePriorityAtEqualPrice(t *testing.T) {
	b := NewOrderBook()
	rest(t, b, "first", domain.SideAsk, "11", "10")
	rest(t, b, "better", domain.SideAsk, "10.5", "10")
	rest(t, b, "second", domain.SideAsk, "11", "10")
	rest(t, b, "third", domain.SideAsk, "11.00", "10")

	want := []string{"better", "first", "second", "third"}
	if got := ids(b.Orders(domain.SideAsk)); !equalIDs(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestOrderBook_InsertValidation(t *testing.T) {
	b := NewOrderBook()
	rest(t, b, "x", domain.SideBid, "9", "1")

	tests := []struct {
		name  string
		order domain.Order
		want  error
	}{
		{"zero quantity", domain.Order{ID: "q", Side: domain.SideBid, Price: d("9"), Quantity: d("0")}, domain.ErrInvalidQuantity},
		{"negative price", domain.Order{ID: "p", Side: domain.SideBid, Price: d("-1"), Quantity: d("1")}, domain.ErrInvalidLimitPrice},
		{"bad side", domain.Order{ID: "s", Side: "MID", Price: d("9"), Quantity: d("1")}, domain.ErrInvalidOrder},
		{"duplicate", domain.Order{ID: "x", Side: domain.SideBid, Price: d("8"), Quantity: d("1")}, domain.ErrDuplicateOrder},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := tt.order
			if err := b.Insert(&o); !errors.Is(err, tt.want) {
				t.Errorf("Insert() error = %v, want %v", err, tt.want)
			}
		})
	}

	if b.Len(domain.SideBid) != 1 {
		t.Errorf("rejected inserts changed the book: %d bids", b.Len(domain.SideBid))
	}

	// Same id on the other side is a different order.
	rest(t, b, "x", domain.SideAsk, "12", "1")
}

func TestOrderBook_Remove(t *testing.T) {
	b := NewOrderBook()
	rest(t, b, "a1", domain.SideAsk, "11", "25")
	rest(t, b, "a2", domain.SideAsk, "12", "35")

	if !b.Remove("a1", domain.SideAsk) {
		t.Fatal("expected a1 to be removed")
	}
	if b.Remove("a1", domain.SideAsk) {
		t.Error("second remove should report nothing removed")
	}
	if b.Remove("a2", domain.SideBid) {
		t.Error("remove on the wrong side should be a no-op")
	}
	if b.Remove("missing", domain.SideAsk) {
		t.Error("remove of unknown id should be a no-op")
	}

	if got := ids(b.Orders(domain.SideAsk)); !equalIDs(got, []string{"a2"}) {
		t.Errorf("asks = %v, want [a2]", got)
	}
	if !b.TotalQuantity(domain.SideAsk).Equal(d("35")) {
		t.Errorf("total = %s, want 35", b.TotalQuantity(domain.SideAsk))
	}
}

func TestOrderBook_ReduceQuantity(t *testing.T) {
	t.Run("partial", func(t *testing.T) {
		b := NewOrderBook()
		rest(t, b, "a2", domain.SideAsk, "12", "35")

		if err := b.ReduceQuantity("a2", domain.SideAsk, d("15")); err != nil {
			t.Fatalf("ReduceQuantity() error = %v", err)
		}
		o, ok := b.Get("a2", domain.SideAsk)
		if !ok || !o.Quantity.Equal(d("20")) {
			t.Errorf("a2 = %+v, want quantity 20", o)
		}
	})

	t.Run("to zero removes", func(t *testing.T) {
		b := NewOrderBook()
		rest(t, b, "a1", domain.SideAsk, "11", "25")

		if err := b.ReduceQuantity("a1", domain.SideAsk, d("25")); err != nil {
			t.Fatalf("ReduceQuantity() error = %v", err)
		}
		if b.Len(domain.SideAsk) != 0 {
			t.Error("order with zero quantity should leave the book")
		}
		if !b.TotalQuantity(domain.SideAsk).IsZero() {
			t.Errorf("total = %s, want 0", b.TotalQuantity(domain.SideAsk))
		}
	})

	t.Run("invalid", func(t *testing.T) {
		b := NewOrderBook()
		rest(t, b, "a1", domain.SideAsk, "11", "25")

		cases := []struct {
			id    string
			side  domain.Side
			delta string
			found bool
		}{
			{"a1", domain.SideAsk, "30", true},
			{"a1", domain.SideAsk, "0", true},
			{"a1", domain.SideAsk, "-1", true},
			{"a1", domain.SideBid, "1", false},
			{"zz", domain.SideAsk, "1", false},
		}
		for _, c := range cases {
			err := b.ReduceQuantity(c.id, c.side, d(c.delta))
			if !errors.Is(err, domain.ErrInvalidReduction) {
				t.Errorf("ReduceQuantity(%s, %s, %s) error = %v, want ErrInvalidReduction", c.id, c.side, c.delta, err)
				continue
			}
			var re *domain.ReductionError
			if errors.As(err, &re) && re.Found != c.found {
				t.Errorf("Found = %v, want %v", re.Found, c.found)
			}
		}

		o, _ := b.Get("a1", domain.SideAsk)
		if !o.Quantity.Equal(d("25")) {
			t.Errorf("failed reductions mutated a1: %s", o.Quantity)
		}
	})
}

func TestOrderBook_Depth(t *testing.T) {
	b := NewOrderBook()
	rest(t, b, "b1", domain.SideBid, "9", "50")
	rest(t, b, "b2", domain.SideBid, "8", "30")
	rest(t, b, "b4", domain.SideBid, "9.0", "5")
	rest(t, b, "b3", domain.SideBid, "7", "20")

	levels := b.Depth(domain.SideBid)
	want := []domain.PriceLevel{
		{Price: d("9"), Quantity: d("55")},
		{Price: d("8"), Quantity: d("30")},
		{Price: d("7"), Quantity: d("20")},
	}
	if len(levels) != len(want) {
		t.Fatalf("got %d levels, want %d", len(levels), len(want))
	}
	for i := range want {
		if !levels[i].Price.Equal(want[i].Price) || !levels[i].Quantity.Equal(want[i].Quantity) {
			t.Errorf("level %d = %s@%s, want %s@%s", i,
				levels[i].Quantity, levels[i].Price, want[i].Quantity, want[i].Price)
		}
	}

	if empty := b.Depth(domain.SideAsk); empty == nil || len(empty) != 0 {
		t.Errorf("empty side depth = %#v, want empty non-nil slice", empty)
	}
}

func TestOrderBook_OrdersAreCopies(t *testing.T) {
	b := NewOrderBook()
	rest(t, b, "a1", domain.SideAsk, "11", "25")

	orders := b.Orders(domain.SideAsk)
	orders[0].Quantity = d("1")

	o, _ := b.Get("a1", domain.SideAsk)
	if !o.Quantity.Equal(d("25")) {
		t.Error("mutating a returned order changed the book")
	}
}
