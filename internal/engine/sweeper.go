package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"github.com/efreitasn/stockmatch/internal/store"
)

// orderMatcher is the part of Matcher the sweeper drives.
type orderMatcher interface {
	MatchOrders(ctx context.Context, stockID string) ([]Match, error)
}

// SweepResult summarizes one sweep over all available stocks.
type SweepResult struct {
	Stocks  int
	Matches int
	Failed  int
}

// Sweeper periodically runs a match pass for every available stock, so
// crossable orders left behind (auto-match disabled, failed passes) still
// execute.
type Sweeper struct {
	cron        *cron.Cron
	matcher     orderMatcher
	stocks      store.StockRepository
	concurrency int
	logger      *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	runs   atomic.Int64
}

// NewSweeper creates a sweeper that runs at most concurrency passes at once.
func NewSweeper(matcher orderMatcher, stocks store.StockRepository, concurrency int, logger *slog.Logger) *Sweeper {
	if concurrency < 1 {
		concurrency = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{
		cron:        cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		matcher:     matcher,
		stocks:      stocks,
		concurrency: concurrency,
		logger:      logger.With(slog.String("component", "sweeper")),
	}
}

// Start schedules sweeps on a cron expression such as "@every 10s". Sweeps stop
// when ctx is cancelled or Stop is called.
func (s *Sweeper) Start(ctx context.Context, schedule string) error {
	s.ctx, s.cancel = context.WithCancel(ctx)
	_, err := s.cron.AddFunc(schedule, func() {
		if _, err := s.Sweep(s.ctx); err != nil {
			s.logger.Error("sweep failed", slog.String("error", err.Error()))
		}
	})
	if err != nil {
		s.cancel()
		return fmt.Errorf("invalid match schedule %q: %w", schedule, err)
	}
	s.cron.Start()
	s.logger.Info("sweeper started", slog.String("schedule", schedule), slog.Int("concurrency", s.concurrency))
	return nil
}

// Stop cancels in-flight passes and waits for the running sweep to return.
func (s *Sweeper) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	<-s.cron.Stop().Done()
	s.logger.Info("sweeper stopped")
}

// Runs returns how many sweeps have completed.
func (s *Sweeper) Runs() int64 {
	return s.runs.Load()
}

// Sweep runs one match pass per available stock. A failing stock is
// logged and counted; it does not stop the others.
func (s *Sweeper) Sweep(ctx context.Context) (SweepResult, error) {
	defer s.runs.Add(1)

	all, err := s.stocks.List(ctx)
	if err != nil {
		return SweepResult{}, fmt.Errorf("list stocks: %w", err)
	}

	var matches, failed atomic.Int64
	var res SweepResult

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for _, stock := range all {
		if !stock.IsAvailable() {
			continue
		}
		res.Stocks++
		stockID := stock.ID
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			got, err := s.matcher.MatchOrders(gctx, stockID)
			if err != nil {
				failed.Add(1)
				SweepFailures.Inc()
				s.logger.Error("scheduled match pass failed",
					slog.String("stock_id", stockID),
					slog.String("error", err.Error()),
				)
				return nil
			}
			matches.Add(int64(len(got)))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return res, err
	}

	res.Matches = int(matches.Load())
	res.Failed = int(failed.Load())
	if res.Matches > 0 || res.Failed > 0 {
		s.logger.Info("sweep completed",
			slog.Int("stocks", res.Stocks),
			slog.Int("matches", res.Matches),
			slog.Int("failed", res.Failed),
		)
	}
	return res, nil
}
