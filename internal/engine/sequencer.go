package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"market_sim/internal/domain"
	"market_sim/internal/event"
	"market_sim/internal/infra"
)

// ErrSequencerStopped is returned to callers whose command could not be
// delivered or answered because the loop has exited.
var ErrSequencerStopped = errors.New("sequencer stopped")

const defaultDumpPath = "panic_dump.json"

// Sequencer is the single point of serialization for the market. One
// goroutine (Run) drains the inbox and applies each command to completion
// before the next one starts; every other goroutine talks to it through
// Submit and Cancel or reads copies through the query methods.
type Sequencer struct {
	inbox   chan command
	matcher *Matcher
	nextSeq uint64

	onEvent  event.Handler
	metrics  *infra.Metrics
	dumpPath string
	now      func() time.Time

	done chan struct{}
	mu   sync.RWMutex // write-held while a command is applied
}

// Option configures a Sequencer.
type Option func(*Sequencer)

// WithEventHandler sets the handler that receives every event after the
// command producing it has been applied.
func WithEventHandler(h event.Handler) Option {
	return func(s *Sequencer) { s.onEvent = h }
}

// WithMetrics overrides the metrics sink. Defaults to infra.GlobalMetrics.
func WithMetrics(m *infra.Metrics) Option {
	return func(s *Sequencer) { s.metrics = m }
}

// WithDumpPath sets where the post-mortem state dump is written.
func WithDumpPath(path string) Option {
	return func(s *Sequencer) { s.dumpPath = path }
}

// NewSequencer creates a new sequencer instance around matcher.
func NewSequencer(inboxSize int, matcher *Matcher, opts ...Option) *Sequencer {
	if inboxSize < 1 {
		inboxSize = 1
	}
	s := &Sequencer{
		inbox:    make(chan command, inboxSize),
		matcher:  matcher,
		nextSeq:  1,
		metrics:  infra.GlobalMetrics,
		dumpPath: defaultDumpPath,
		now:      time.Now,
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.dumpPath == "" {
		s.dumpPath = defaultDumpPath
	}
	return s
}

// Done is closed when Run returns.
func (s *Sequencer) Done() <-chan struct{} {
	return s.done
}

// Run starts the main command loop. This MUST be run in a single goroutine.
// A broken book invariant dumps state and halts the process.
func (s *Sequencer) Run(ctx context.Context) {
	slog.Info("Sequencer started", slog.Int("inbox", cap(s.inbox)))
	defer close(s.done)

	defer func() {
		if r := recover(); r != nil {
			slog.Error("CRITICAL_PANIC_DETECTED", slog.Any("panic", r))
			_ = s.DumpState(s.dumpPath)
			panic(fmt.Sprintf("HALTED: %v", r))
		}
	}()

	for {
		select {
		case <-ctx.Done():
			slog.Info("Sequencer stopping...")
			return
		case cmd := <-s.inbox:
			s.process(cmd)
		}
	}
}

// Submit hands req to the loop and waits for its execution report. A
// pre-trade rejection is returned as a *domain.RejectError.
func (s *Sequencer) Submit(ctx context.Context, req domain.OrderRequest) (*domain.ExecutionReport, error) {
	res, err := s.roundTrip(ctx, command{typ: cmdPlace, req: req})
	if err != nil {
		return nil, err
	}
	return res.report, res.err
}

// Cancel removes a resting order. Cancelling an unknown id succeeds.
func (s *Sequencer) Cancel(ctx context.Context, id string, side domain.Side) error {
	if !side.Valid() {
		return fmt.Errorf("%w: side %q", domain.ErrInvalidOrder, side)
	}
	res, err := s.roundTrip(ctx, command{typ: cmdCancel, id: id, side: side})
	if err != nil {
		return err
	}
	return res.err
}

func (s *Sequencer) roundTrip(ctx context.Context, cmd command) (commandResult, error) {
	cmd.resp = make(chan commandResult, 1)

	select {
	case s.inbox <- cmd:
	case <-ctx.Done():
		return commandResult{}, ctx.Err()
	case <-s.done:
		return commandResult{}, ErrSequencerStopped
	}

	select {
	case res := <-cmd.resp:
		return res, nil
	case <-ctx.Done():
		return commandResult{}, ctx.Err()
	case <-s.done:
		// The loop may have answered right before exiting.
		select {
		case res := <-cmd.resp:
			return res, nil
		default:
			return commandResult{}, ErrSequencerStopped
		}
	}
}

func (s *Sequencer) process(cmd command) {
	start := s.now()

	res, ev := s.apply(cmd)

	if res.err != nil && errors.Is(res.err, domain.ErrInvalidReduction) {
		slog.Error("BOOK_INVARIANT_VIOLATION", slog.Any("error", res.err))
		cmd.resp <- res
		panic(fmt.Sprintf("BOOK_INVARIANT_VIOLATION: %v", res.err))
	}

	s.record(cmd, res)
	s.metrics.RecordCommand(s.now().Sub(start).Nanoseconds())

	cmd.resp <- res

	if ev != nil && s.onEvent != nil {
		s.onEvent(ev)
		s.metrics.RecordEvent()
	}
}

// apply mutates the book and market under the write lock and builds the
// resulting event.
func (s *Sequencer) apply(cmd command) (commandResult, event.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	base := event.BaseEvent{Seq: s.nextSeq, Ts: s.now().UnixMicro()}

	switch cmd.typ {
	case cmdPlace:
		report, err := s.matcher.Submit(cmd.req)
		if err != nil {
			var rej *domain.RejectError
			if !errors.As(err, &rej) {
				return commandResult{err: err}, nil
			}
			s.nextSeq++
			return commandResult{err: err}, &event.OrderRejectedEvent{
				BaseEvent:   base,
				Side:        rej.Side,
				Kind:        rej.Kind,
				Quantity:    rej.Quantity,
				LimitPrice:  rej.LimitPrice,
				MarketPrice: rej.MarketPrice,
				Reason:      rej.Reason,
			}
		}

		s.nextSeq++
		market := s.matcher.Market()
		return commandResult{report: report}, &event.OrderExecutedEvent{
			BaseEvent:    base,
			OrderID:      report.OrderID,
			Side:         report.Side,
			Kind:         report.Kind,
			Requested:    report.Requested,
			Executed:     report.Executed,
			Notional:     report.Notional,
			BlendedPrice: report.BlendedPrice,
			LimitPrice:   cmd.req.LimitPrice,
			Remainder:    report.Remainder,
			Disposition:  report.Disposition,
			MatchedIDs:   report.MatchedRestingIDs(),
			MarketPrice:  market.Price,
			MarketCap:    market.MarketCap(),
		}

	case cmdCancel:
		found := s.matcher.Cancel(cmd.id, cmd.side)
		s.nextSeq++
		return commandResult{}, &event.OrderCancelledEvent{
			BaseEvent: base,
			OrderID:   cmd.id,
			Side:      cmd.side,
			Found:     found,
		}

	default:
		slog.Warn("Unknown command type", slog.Int("type", int(cmd.typ)))
		return commandResult{err: fmt.Errorf("unknown command type %d", cmd.typ)}, nil
	}
}

func (s *Sequencer) record(cmd command, res commandResult) {
	switch cmd.typ {
	case cmdPlace:
		s.metrics.RecordSubmitted()
		if reason, rejected := domain.ReasonOf(res.err); rejected {
			s.metrics.RecordRejected()
			slog.Warn("Order rejected",
				slog.String("reason", string(reason)),
				slog.String("side", string(cmd.req.Side)),
				slog.String("qty", cmd.req.Quantity.String()),
			)
		}
		if res.report != nil && res.report.HasExecution() {
			s.metrics.RecordExecuted()
		}
	case cmdCancel:
		s.metrics.RecordCancelled()
	}
}

// Seed loads resting orders before trading starts. It stops at the first
// order the book refuses.
func (s *Sequencer) Seed(orders []SeedOrder) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, o := range orders {
		if err := s.matcher.Seed(o.ID, o.Side, o.Price, o.Quantity); err != nil {
			return fmt.Errorf("seed order %q: %w", o.ID, err)
		}
	}
	return nil
}

// MarketState returns a copy of the market state (external read).
func (s *Sequencer) MarketState() domain.MarketSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.matcher.Market().Snapshot()
}

// Depth returns the aggregated price levels of side (external read).
func (s *Sequencer) Depth(side domain.Side) []domain.PriceLevel {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.matcher.Book().Depth(side)
}

// RestingOrders returns copies of the orders resting on side (external read).
func (s *Sequencer) RestingOrders(side domain.Side) []domain.Order {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.matcher.Book().Orders(side)
}

// StateSnapshot is a consistent view of market and book taken under one lock.
type StateSnapshot struct {
	NextSeq  uint64                `json:"next_seq"`
	Market   domain.MarketSnapshot `json:"market"`
	Bids     []domain.Order        `json:"bids"`
	Asks     []domain.Order        `json:"asks"`
	BidDepth []domain.PriceLevel   `json:"bid_depth"`
	AskDepth []domain.PriceLevel   `json:"ask_depth"`
}

// Snapshot returns market and book state as of the last applied command.
func (s *Sequencer) Snapshot() StateSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	book := s.matcher.Book()
	return StateSnapshot{
		NextSeq:  s.nextSeq,
		Market:   s.matcher.Market().Snapshot(),
		Bids:     book.Orders(domain.SideBid),
		Asks:     book.Orders(domain.SideAsk),
		BidDepth: book.Depth(domain.SideBid),
		AskDepth: book.Depth(domain.SideAsk),
	}
}

// DumpState writes the entire internal state to a file (for post-mortem).
func (s *Sequencer) DumpState(filename string) error {
	slog.Info("Dumping internal state...", slog.String("file", filename))

	b, err := json.MarshalIndent(s.Snapshot(), "", "  ")
	if err != nil {
		slog.Error("Failed to marshal state", slog.Any("error", err))
		return fmt.Errorf("marshal state: %w", err)
	}

	if err := os.WriteFile(filename, b, 0644); err != nil {
		slog.Error("Failed to write state dump", slog.Any("error", err))
		return fmt.Errorf("write state dump: %w", err)
	}
	return nil
}
