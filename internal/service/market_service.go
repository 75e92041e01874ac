package service

import (
	"context"
	"log/slog"
	"slices"
	"sync"

	"market_sim/internal/activity"
	"market_sim/internal/domain"
	"market_sim/internal/engine"
	"market_sim/internal/event"
	"market_sim/internal/infra"

	"github.com/shopspring/decimal"
)

const defaultHistoryLimit = 5000

// Config tunes the service's sequencer and history.
type Config struct {
	InboxSize    int
	DumpPath     string
	HistoryLimit int           // max points per series; oldest are dropped
	Metrics      *infra.Metrics // nil uses infra.GlobalMetrics
}

// MarketService is the entry point for callers: order entry goes through
// the sequencer, reads come back as copies. It also keeps the session's
// price and volume history.
type MarketService struct {
	seq *engine.Sequencer
	log *activity.Log

	mu           sync.RWMutex
	history      domain.History
	nextIndex    int
	historyLimit int
}

// NewMarketService wires matcher behind a sequencer. Every event is passed
// to the activity log, the history recorder and then to subscribers.
func NewMarketService(matcher *engine.Matcher, log *activity.Log, cfg Config, subscribers ...event.Handler) *MarketService {
	s := &MarketService{
		log:          log,
		historyLimit: cfg.HistoryLimit,
	}
	if s.historyLimit <= 0 {
		s.historyLimit = defaultHistoryLimit
	}

	handlers := make([]event.Handler, 0, len(subscribers)+2)
	if log != nil {
		handlers = append(handlers, log.Handle)
	}
	handlers = append(handlers, s.HandleEvent)
	handlers = append(handlers, subscribers...)

	opts := []engine.Option{
		engine.WithEventHandler(event.Fanout(handlers...)),
		engine.WithDumpPath(cfg.DumpPath),
	}
	if cfg.Metrics != nil {
		opts = append(opts, engine.WithMetrics(cfg.Metrics))
	}
	s.seq = engine.NewSequencer(cfg.InboxSize, matcher, opts...)

	opening := matcher.Market()
	s.history.Prices = []domain.PricePoint{{Index: 0, Price: opening.Price, Ts: opening.LastUpdateUnixM}}
	s.history.Volumes = []domain.VolumePoint{}
	s.nextIndex = 1
	return s
}

// Run blocks processing orders until ctx is cancelled.
func (s *MarketService) Run(ctx context.Context) {
	s.seq.Run(ctx)
}

// Done is closed when Run returns.
func (s *MarketService) Done() <-chan struct{} {
	return s.seq.Done()
}

// Seed loads the initial book. Call it before accepting orders.
func (s *MarketService) Seed(orders []engine.SeedOrder) error {
	return s.seq.Seed(orders)
}

// SubmitOrder places a market or limit order. limitPrice is ignored for
// market orders and required for limit orders.
func (s *MarketService) SubmitOrder(ctx context.Context, side domain.Side, kind domain.OrderKind, quantity decimal.Decimal, limitPrice decimal.NullDecimal) (*domain.ExecutionReport, error) {
	req := domain.OrderRequest{
		Side:     side,
		Kind:     kind,
		Quantity: quantity,
	}
	if kind == domain.KindLimit {
		req.LimitPrice = limitPrice
	}

	report, err := s.seq.Submit(ctx, req)
	if err != nil {
		if _, rejected := domain.ReasonOf(err); rejected {
			slog.Debug("Order rejected", slog.Any("error", err))
		}
		return nil, err
	}
	return report, nil
}

// CancelOrder removes a resting order. Unknown ids succeed.
func (s *MarketService) CancelOrder(ctx context.Context, id string, side domain.Side) error {
	return s.seq.Cancel(ctx, id, side)
}

// MarketState returns price, market cap and traded value.
func (s *MarketService) MarketState() domain.MarketSnapshot {
	return s.seq.MarketState()
}

// Depth returns side aggregated by price level, best first.
func (s *MarketService) Depth(side domain.Side) []domain.PriceLevel {
	return s.seq.Depth(side)
}

// RestingOrders returns the orders on side in priority order.
func (s *MarketService) RestingOrders(side domain.Side) []domain.Order {
	return s.seq.RestingOrders(side)
}

// Snapshot returns book and market state taken together.
func (s *MarketService) Snapshot() engine.StateSnapshot {
	return s.seq.Snapshot()
}

// Activity returns the activity log, most recent first.
func (s *MarketService) Activity() []domain.ActivityEntry {
	if s.log == nil {
		return []domain.ActivityEntry{}
	}
	return s.log.Entries()
}

// History returns a copy of the price and volume series.
func (s *MarketService) History() domain.History {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return domain.History{
		Prices:  slices.Clone(s.history.Prices),
		Volumes: slices.Clone(s.history.Volumes),
	}
}

// HandleEvent records executions into the history. It runs on the
// sequencer goroutine.
func (s *MarketService) HandleEvent(ev event.Event) {
	e, ok := ev.(*event.OrderExecutedEvent)
	if !ok || !e.Executed.IsPositive() {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.nextIndex
	s.nextIndex++
	s.history.Prices = appendBounded(s.history.Prices, domain.PricePoint{Index: idx, Price: e.BlendedPrice, Ts: e.Ts}, s.historyLimit)
	s.history.Volumes = appendBounded(s.history.Volumes, domain.VolumePoint{Index: idx, Volume: e.Notional}, s.historyLimit)
}

func appendBounded[T any](series []T, v T, limit int) []T {
	series = append(series, v)
	if over := len(series) - limit; over > 0 {
		series = append(series[:0], series[over:]...)
	}
	return series
}
