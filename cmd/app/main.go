package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"market_sim/internal/app"

	_ "net/http/pprof" // For pprof profiling
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to the config file")
	pprofAddr := flag.String("pprof", "", "serve pprof on this address (e.g. localhost:6060)")
	headless := flag.Bool("headless", false, "do not read commands from stdin")
	flag.Parse()

	// 1. System Bootstrapping (logs go to stderr; stdout belongs to the console)
	bootstrap := app.NewBootstrap()
	if err := bootstrap.Initialize(*configPath, os.Stderr); err != nil {
		slog.Error("❌ Bootstrapping failed", slog.Any("error", err))
		os.Exit(1)
	}

	// 2. Pprof Server (for performance profiling)
	if *pprofAddr != "" {
		go func() {
			slog.Info("🕵️ Pprof server started", slog.String("addr", *pprofAddr))
			if err := http.ListenAndServe(*pprofAddr, nil); err != nil {
				slog.Error("Pprof server failed", slog.Any("error", err))
			}
		}()
	}

	// 3. Graceful Shutdown Context
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 4. Sequencer, journal, feed
	bootstrap.Start(ctx)

	// 5. Console
	if !*headless {
		go func() {
			if err := NewConsole(bootstrap.Service, os.Stdout).Run(ctx, os.Stdin); err != nil && ctx.Err() == nil {
				slog.Error("Console stopped", slog.Any("error", err))
			}
			stop()
		}()
	}

	slog.InfoContext(ctx, "✨ Market simulator running. Press Ctrl+C to exit.")

	// Wait for shutdown signal
	<-ctx.Done()

	slog.Info("👋 Shutting down gracefully...")
	if err := bootstrap.Shutdown(); err != nil {
		slog.Error("Shutdown failed", slog.Any("error", err))
		os.Exit(1)
	}
}
