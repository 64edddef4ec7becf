// Package pipeline ties the store to feature extraction, signal generation
// and backtesting. Every operation reads a consistent copy from the store,
// computes without holding any lock, and writes only once it has fully
// succeeded.
package pipeline

import (
	"context"
	"runtime"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/johaankjis/Market-Microstructure-Alpha-Signal-Research/services/engine"
	"github.com/johaankjis/Market-Microstructure-Alpha-Signal-Research/services/lob"
	"github.com/johaankjis/Market-Microstructure-Alpha-Signal-Research/services/monitoring"
	"github.com/johaankjis/Market-Microstructure-Alpha-Signal-Research/services/signals"
	"github.com/johaankjis/Market-Microstructure-Alpha-Signal-Research/services/store"
)

// SnapshotSource is an external history provider such as ClickHouse.
type SnapshotSource interface {
	Snapshots(ctx context.Context, symbol string, from, to int64) ([]lob.Snapshot, error)
}

type Service struct {
	Store   store.Repository
	Logger  *zap.Logger
	Metrics *monitoring.Metrics
	// MaxWorkers caps RunAll parallelism; 0 means one per CPU.
	MaxWorkers int
}

func New(repo store.Repository, logger *zap.Logger, metrics *monitoring.Metrics) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{Store: repo, Logger: logger, Metrics: metrics}
}

func (s *Service) logger() *zap.Logger {
	if s.Logger == nil {
		return zap.NewNop()
	}
	return s.Logger
}

// Ingest stores snapshots under their own symbols and returns the count
// added per symbol.
func (s *Service) Ingest(snaps []lob.Snapshot) map[string]int {
	groups := lob.GroupBySymbol(snaps)
	counts := make(map[string]int, len(groups))
	for sym, list := range groups {
		s.Store.AddSnapshots(sym, list)
		s.Metrics.ObserveSnapshots(sym, len(list))
		counts[sym] = len(list)
	}
	s.logger().Info("Ingested snapshots", zap.Int("symbols", len(groups)), zap.Int("snapshots", len(snaps)))
	return counts
}

// Load pulls one symbol from src and ingests it.
func (s *Service) Load(ctx context.Context, src SnapshotSource, symbol string, from, to int64) (int, error) {
	if symbol == "" {
		return 0, engine.ErrMissingSelection.WithDetails("symbol is required")
	}
	snaps, err := src.Snapshots(ctx, symbol, from, to)
	if err != nil {
		return 0, err
	}
	if len(snaps) == 0 {
		return 0, engine.ErrMissingSelection.WithDetails("no snapshots for %s in source", symbol)
	}
	return s.Ingest(snaps)[symbol], nil
}

// GenerateSignals builds signals for symbol from the stored snapshots and
// replaces the symbol's previously stored signals.
func (s *Service) GenerateSignals(ctx context.Context, symbol string, reg signals.Regularization, model string) ([]signals.Signal, error) {
	if symbol == "" {
		return nil, engine.ErrMissingSelection.WithDetails("symbol is required")
	}
	snaps := s.Store.Snapshots(symbol)
	if len(snaps) == 0 {
		return nil, engine.ErrMissingSelection.WithDetails("no snapshots for %s", symbol)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	gen, err := signals.NewGenerator(reg, signals.WithLogger(s.logger()))
	if err != nil {
		return nil, engine.ErrInvalidConfig.WithDetails("%v", err)
	}
	sigs, err := gen.Generate(snaps, model)
	if err != nil {
		if signals.IsInsufficientHistory(err) {
			return nil, engine.ErrInsufficientData.WithDetails(
				"%s has %d snapshots, need more than %d", symbol, len(snaps), signals.MinHistory)
		}
		return nil, err
	}
	s.Store.SetSignals(symbol, sigs)
	s.Metrics.ObserveSignals(symbol, string(reg.Method), len(sigs))
	return sigs, nil
}

// RunBacktest runs cfg over the stored signals of symbol and stores the
// result.
func (s *Service) RunBacktest(ctx context.Context, cfg engine.BacktestConfig, symbol string) (*engine.Result, error) {
	res, err := s.backtest(ctx, cfg, symbol)
	if err != nil {
		return nil, err
	}
	s.Store.AddResult(res)
	return res, nil
}

// RunAll backtests each symbol in its own run, in parallel. Results come
// back in symbols order and are stored only if every run succeeds.
func (s *Service) RunAll(ctx context.Context, cfg engine.BacktestConfig, symbols []string) ([]*engine.Result, error) {
	if len(symbols) == 0 {
		symbols = s.Store.Symbols()
	}
	if len(symbols) == 0 {
		return nil, engine.ErrMissingSelection.WithDetails("no symbols to backtest")
	}
	workers := s.MaxWorkers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	results := make([]*engine.Result, len(symbols))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, sym := range symbols {
		i, sym := i, sym
		g.Go(func() error {
			s.logger().Debug("Worker processing symbol", zap.String("symbol", sym))
			res, err := s.backtest(gctx, cfg, sym)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	for _, r := range results {
		s.Store.AddResult(r)
	}
	return results, nil
}

// WalkForward evaluates symbol fold by fold. Reports are not stored.
func (s *Service) WalkForward(ctx context.Context, cfg engine.BacktestConfig, symbol string, maxFeatures int) (*engine.WalkForwardReport, error) {
	sigs, cfg, err := s.prepare(ctx, cfg, symbol)
	if err != nil {
		return nil, err
	}
	e, err := engine.New(cfg, engine.WithLogger(s.logger()))
	if err != nil {
		return nil, err
	}
	return e.WalkForward(sigs, maxFeatures)
}

func (s *Service) backtest(ctx context.Context, cfg engine.BacktestConfig, symbol string) (res *engine.Result, err error) {
	started := time.Now()
	defer func() {
		// selection problems never reached the engine
		if api, ok := engine.AsAPIError(err); ok && api.Code == engine.CodeMissingSelection {
			return
		}
		s.Metrics.ObserveBacktest(started, err)
	}()

	sigs, cfg, err := s.prepare(ctx, cfg, symbol)
	if err != nil {
		return nil, err
	}
	e, err := engine.New(cfg, engine.WithLogger(s.logger().With(zap.String("symbol", symbol))))
	if err != nil {
		return nil, err
	}
	return e.Run(sigs)
}

func (s *Service) prepare(ctx context.Context, cfg engine.BacktestConfig, symbol string) ([]signals.Signal, engine.BacktestConfig, error) {
	if symbol == "" {
		return nil, cfg, engine.ErrMissingSelection.WithDetails("symbol is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, cfg, err
	}
	sigs := s.Store.Signals(symbol)
	if len(sigs) == 0 {
		return nil, cfg, engine.ErrInsufficientData.WithDetails("no signals for %s, generate them first", symbol)
	}
	if len(cfg.Symbols) == 0 {
		cfg.Symbols = []string{symbol}
	} else {
		cfg.Symbols = append([]string(nil), cfg.Symbols...)
	}
	return sigs, cfg, nil
}
