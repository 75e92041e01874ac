package app

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"

	"market_sim/internal/activity"
	"market_sim/internal/domain"
	"market_sim/internal/engine"
	"market_sim/internal/infra"
	"market_sim/internal/infra/feed"
	"market_sim/internal/infra/storage"
	"market_sim/internal/service"
)

// Bootstrap orchestrates the application startup sequence
type Bootstrap struct {
	Config   *infra.Config
	Storage  *storage.Storage  // nil when the journal is disabled
	Journal  *activity.Journal // nil when the journal is disabled
	Activity *activity.Log
	Events   *feed.Events
	Service  *service.MarketService
	Feed     *feed.Server // nil when the feed is disabled

	wg          sync.WaitGroup
	stopJournal context.CancelFunc
}

// NewBootstrap creates a new Bootstrap instance
func NewBootstrap() *Bootstrap {
	return &Bootstrap{}
}

// Initialize loads the config at path and builds every component.
func (b *Bootstrap) Initialize(path string, logOut io.Writer) error {
	cfg, err := infra.LoadConfig(path)
	if err != nil {
		return err // Let main handle the error
	}
	return b.InitializeWith(cfg, logOut)
}

// InitializeWith builds every component from an already validated config.
func (b *Bootstrap) InitializeWith(cfg *infra.Config, logOut io.Writer) error {
	b.Config = cfg

	// 1. Setup Logger
	slog.SetDefault(infra.NewLogger(cfg, logOut))
	slog.Info("🚀 Bootstrapping market simulator...",
		slog.String("app", cfg.App.Name),
		slog.String("version", cfg.App.Version),
	)

	// 2. Activity journal (optional)
	var logOpts []activity.LogOption
	if cfg.Activity.DBPath != "" {
		store, err := storage.NewStorage(cfg.Activity.DBPath)
		if err != nil {
			return err
		}
		b.Storage = store
		b.Journal = activity.NewJournal(store, 0)
		logOpts = append(logOpts, activity.WithJournal(b.Journal))
		slog.Info("✅ Activity journal initialized", slog.String("path", cfg.Activity.DBPath))
	}
	b.Activity = activity.NewLog(cfg.Activity.Capacity, logOpts...)

	// 3. Engine + service
	market := domain.NewMarketState(cfg.Market.InitialPrice, cfg.Market.Supply)
	matcher := engine.NewMatcher(engine.NewOrderBook(), market)

	b.Events = feed.NewEvents()
	b.Service = service.NewMarketService(matcher, b.Activity, service.Config{
		InboxSize: cfg.Engine.InboxSize,
		DumpPath:  cfg.Engine.DumpPath,
	}, b.Events.Publish)

	if err := b.Service.Seed(SeedOrders(cfg)); err != nil {
		return err
	}
	slog.Info("✅ Order book seeded",
		slog.Int("bids", len(cfg.Market.Seed.Bids)),
		slog.Int("asks", len(cfg.Market.Seed.Asks)),
		slog.String("price", cfg.Market.InitialPrice.String()),
	)

	// 4. Feed (optional)
	if cfg.Feed.ListenAddr != "" {
		b.Feed = feed.NewServer(b.Service, b.Events, infra.GlobalMetrics)
	}
	return nil
}

// SeedOrders converts the configured seed book into engine orders.
func SeedOrders(cfg *infra.Config) []engine.SeedOrder {
	orders := make([]engine.SeedOrder, 0, len(cfg.Market.Seed.Bids)+len(cfg.Market.Seed.Asks))
	for _, e := range cfg.Market.Seed.Bids {
		orders = append(orders, engine.SeedOrder{ID: e.ID, Side: domain.SideBid, Price: e.Price, Quantity: e.Quantity})
	}
	for _, e := range cfg.Market.Seed.Asks {
		orders = append(orders, engine.SeedOrder{ID: e.ID, Side: domain.SideAsk, Price: e.Price, Quantity: e.Quantity})
	}
	return orders
}

// Start launches the sequencer, the journal and the feed. They stop when
// ctx is cancelled; call Shutdown to wait for them.
func (b *Bootstrap) Start(ctx context.Context) {
	if b.Journal != nil {
		// The journal outlives ctx so the last events still reach disk.
		jctx, cancel := context.WithCancel(context.Background())
		b.stopJournal = cancel
		go b.Journal.Run(jctx)
	}

	go b.Service.Run(ctx)
	slog.InfoContext(ctx, "✅ Sequencer started")

	if b.Feed != nil {
		b.wg.Add(1)
		go func() {
			defer b.wg.Done()
			if err := b.Feed.ListenAndServe(ctx, b.Config.Feed.ListenAddr); err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("Feed server failed", slog.Any("error", err))
			}
		}()
	}
}

// Shutdown waits for every component started by Start to finish and
// releases storage. It must follow Start, after its ctx is cancelled.
func (b *Bootstrap) Shutdown() error {
	<-b.Service.Done()
	b.wg.Wait()

	if b.stopJournal != nil {
		b.stopJournal()
		<-b.Journal.Done()
	}
	if b.Storage != nil {
		return b.Storage.Close()
	}
	return nil
}
