package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/efreitasn/stockmatch/internal/config"
	"github.com/efreitasn/stockmatch/internal/engine"
	"github.com/efreitasn/stockmatch/internal/handler"
	"github.com/efreitasn/stockmatch/internal/service"
	"github.com/efreitasn/stockmatch/internal/store"
	"github.com/efreitasn/stockmatch/internal/store/sqlstore"
)

func main() {
	healthcheck := flag.Bool("healthcheck", false, "Run health check against running server")
	flag.Parse()

	// Handle -healthcheck flag: HTTP GET to localhost:PORT/healthz, exit 0/1.
	if *healthcheck {
		port := os.Getenv("PORT")
		if port == "" {
			port = "8080"
		}
		resp, err := http.Get(fmt.Sprintf("http://localhost:%s/healthz", port))
		if err != nil || resp.StatusCode != http.StatusOK {
			os.Exit(1)
		}
		os.Exit(0)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}))
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st, err := openStore(ctx, cfg)
	if err != nil {
		logger.Error("failed to open store", slog.String("storage", cfg.Storage), slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer st.Close()

	// Engine.
	locks := engine.NewStockLocks()
	matcher := engine.NewMatcher(st, locks, cfg.FeeRate, logger)
	calculator := engine.NewEquilibriumCalculator(st, locks)
	sweeper := engine.NewSweeper(matcher, st.Stocks(), cfg.MatchConcurrency, logger)

	// Services.
	svc := handler.Services{
		Orders:     service.NewOrderService(st, matcher, locks, cfg.AutoMatch, logger),
		Stocks:     service.NewStockService(st, locks, cfg.VWAPWindow),
		Market:     service.NewMarketService(st.Stocks(), matcher, calculator),
		Portfolios: service.NewPortfolioService(st, locks),
	}
	router := handler.NewRouter(svc, cfg.CORSAllowedOrigins, logger)

	if cfg.MatchSchedule != "" {
		if err := sweeper.Start(ctx, cfg.MatchSchedule); err != nil {
			logger.Error("failed to start match sweeper", slog.String("schedule", cfg.MatchSchedule), slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	go func() {
		logger.Info("server starting",
			slog.String("addr", addr),
			slog.String("storage", cfg.Storage),
			slog.Bool("auto_match", cfg.AutoMatch),
			slog.String("match_schedule", cfg.MatchSchedule),
			slog.String("fee_rate", cfg.FeeRate.String()),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	// Wait for SIGINT/SIGTERM.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("shutdown signal received", slog.String("signal", sig.String()))

	// Graceful shutdown: stop HTTP server, then the sweeper.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.String("error", err.Error()))
	}
	cancel()
	sweeper.Stop()

	logger.Info("server stopped", slog.Int64("sweeps", sweeper.Runs()))
}

func openStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	if cfg.Storage == config.StorageSQLite {
		db, err := sqlstore.Open(ctx, cfg.DatabasePath)
		if err != nil {
			return nil, err
		}
		return db, nil
	}
	return store.NewMemory(), nil
}
