package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"market_sim/internal/activity"
	"market_sim/internal/domain"
	"market_sim/internal/engine"
	"market_sim/internal/event"
	"market_sim/internal/infra"

	"github.com/shopspring/decimal"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func newTestService(t *testing.T, subscribers ...event.Handler) (*MarketService, context.CancelFunc) {
	t.Helper()

	matcher := engine.NewMatcher(engine.NewOrderBook(), domain.NewMarketState(d("10"), d("1000")))
	svc := NewMarketService(matcher, activity.NewLog(50), Config{
		InboxSize: 16,
		DumpPath:  t.TempDir() + "/dump.json",
		Metrics:   &infra.Metrics{},
	}, subscribers...)

	err := svc.Seed([]engine.SeedOrder{
		{ID: "b1", Side: domain.SideBid, Price: d("9"), Quantity: d("50")},
		{ID: "b2", Side: domain.SideBid, Price: d("8"), Quantity: d("30")},
		{ID: "b3", Side: domain.SideBid, Price: d("7"), Quantity: d("20")},
		{ID: "a1", Side: domain.SideAsk, Price: d("11"), Quantity: d("25")},
		{ID: "a2", Side: domain.SideAsk, Price: d("12"), Quantity: d("35")},
		{ID: "a3", Side: domain.SideAsk, Price: d("13"), Quantity: d("40")},
	})
	if err != nil {
		t.Fatalf("Seed() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	go svc.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-svc.Done()
	})
	return svc, cancel
}

// waitFor polls cond; events are published after the caller is answered.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestMarketService_MarketBuy(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	report, err := svc.SubmitOrder(ctx, domain.SideBid, domain.KindMarket, d("40"), decimal.NewNullDecimal(d("1")))
	if err != nil {
		t.Fatalf("SubmitOrder() error = %v", err)
	}
	if !report.BlendedPrice.Equal(d("11.375")) {
		t.Errorf("BlendedPrice = %s, want 11.375", report.BlendedPrice)
	}

	state := svc.MarketState()
	if !state.Price.Equal(d("11.375")) || !state.MarketCap.Equal(d("11375")) || !state.CumulativeTradedValue.Equal(d("455")) {
		t.Errorf("state = %+v", state)
	}

	depth := svc.Depth(domain.SideAsk)
	if len(depth) != 2 || !depth[0].Quantity.Equal(d("20")) || !depth[0].Price.Equal(d("12")) {
		t.Errorf("ask depth = %+v, want 20@12, 40@13", depth)
	}

	waitFor(t, func() bool { return len(svc.History().Prices) == 2 })
	h := svc.History()
	if !h.Prices[0].Price.Equal(d("10")) || !h.Prices[1].Price.Equal(d("11.375")) {
		t.Errorf("prices = %+v", h.Prices)
	}
	if len(h.Volumes) != 1 || !h.Volumes[0].Volume.Equal(d("455")) || h.Volumes[0].Index != 1 {
		t.Errorf("volumes = %+v", h.Volumes)
	}

	waitFor(t, func() bool { return len(svc.Activity()) == 2 })
	entries := svc.Activity()
	if entries[0].Message != "Market buy order placed: 40 units" {
		t.Errorf("latest activity = %q", entries[0].Message)
	}
	if !strings.HasPrefix(entries[1].Message, "Price updated to $11.375") {
		t.Errorf("first activity = %q", entries[1].Message)
	}
}

func TestMarketService_LimitRejectedLeavesHistory(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.SubmitOrder(context.Background(), domain.SideBid, domain.KindLimit, d("5"), decimal.NewNullDecimal(d("10")))
	if !errors.Is(err, domain.ErrLimitPriceNotBelowMarket) {
		t.Fatalf("error = %v, want ErrLimitPriceNotBelowMarket", err)
	}

	waitFor(t, func() bool { return len(svc.Activity()) == 1 })
	if got := svc.Activity()[0]; got.Level != domain.ActivityError ||
		got.Message != "Error: Limit buy price $10 must be less than current price $10.000" {
		t.Errorf("activity = %+v", got)
	}
	if len(svc.History().Prices) != 1 || len(svc.History().Volumes) != 0 {
		t.Errorf("rejected order changed history: %+v", svc.History())
	}
}

func TestMarketService_LimitWithoutPrice(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.SubmitOrder(context.Background(), domain.SideAsk, domain.KindLimit, d("5"), decimal.NullDecimal{})
	if reason, _ := domain.ReasonOf(err); reason != domain.RejectInvalidLimitPrice {
		t.Errorf("reason = %q, want INVALID_LIMIT_PRICE", reason)
	}
}

func TestMarketService_CancelAndOrders(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	report, err := svc.SubmitOrder(ctx, domain.SideAsk, domain.KindLimit, d("15"), decimal.NewNullDecimal(d("10.5")))
	if err != nil {
		t.Fatalf("SubmitOrder() error = %v", err)
	}
	if report.Disposition != domain.DispositionResting {
		t.Fatalf("Disposition = %s, want RESTING", report.Disposition)
	}

	asks := svc.RestingOrders(domain.SideAsk)
	if len(asks) != 4 || asks[0].ID != report.OrderID {
		t.Fatalf("asks = %+v, want new order first", asks)
	}

	for i := 0; i < 2; i++ {
		if err := svc.CancelOrder(ctx, report.OrderID, domain.SideAsk); err != nil {
			t.Fatalf("CancelOrder() error = %v", err)
		}
	}
	if got := svc.RestingOrders(domain.SideAsk); len(got) != 3 || got[0].ID != "a1" {
		t.Errorf("asks after cancel = %+v", got)
	}

	snap := svc.Snapshot()
	if len(snap.Bids) != 3 || len(snap.AskDepth) != 3 {
		t.Errorf("snapshot = %+v", snap)
	}
}

func TestMarketService_Subscribers(t *testing.T) {
	var (
		mu    sync.Mutex
		types []event.Type
	)
	svc, _ := newTestService(t, func(ev event.Event) {
		mu.Lock()
		types = append(types, ev.GetType())
		mu.Unlock()
	})
	ctx := context.Background()

	_, _ = svc.SubmitOrder(ctx, domain.SideAsk, domain.KindMarket, d("1000"), decimal.NullDecimal{})
	_ = svc.CancelOrder(ctx, "b1", domain.SideBid)

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(types) == 2
	})
	if types[0] != event.EvOrderExecuted || types[1] != event.EvOrderCancelled {
		t.Errorf("types = %v", types)
	}

	if got := svc.MarketState().Price; !got.Equal(d("8.3")) {
		t.Errorf("price = %s, want 8.3", got)
	}
	if len(svc.Depth(domain.SideBid)) != 0 {
		t.Error("bids should be exhausted")
	}
}

func TestAppendBounded(t *testing.T) {
	var s []int
	for i := 0; i < 7; i++ {
		s = appendBounded(s, i, 3)
	}
	if len(s) != 3 || s[0] != 4 || s[2] != 6 {
		t.Errorf("got %v, want [4 5 6]", s)
	}
}
