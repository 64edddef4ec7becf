// lobctl runs the alpha pipeline offline: CSV snapshots in, signals,
// backtest metrics and optional exports out.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"go.uber.org/zap"

	"github.com/johaankjis/Market-Microstructure-Alpha-Signal-Research/services/arrowpipeline"
	"github.com/johaankjis/Market-Microstructure-Alpha-Signal-Research/services/config"
	"github.com/johaankjis/Market-Microstructure-Alpha-Signal-Research/services/engine"
	"github.com/johaankjis/Market-Microstructure-Alpha-Signal-Research/services/lob"
	"github.com/johaankjis/Market-Microstructure-Alpha-Signal-Research/services/pipeline"
	"github.com/johaankjis/Market-Microstructure-Alpha-Signal-Research/services/signals"
	"github.com/johaankjis/Market-Microstructure-Alpha-Signal-Research/services/store"
)

type options struct {
	configPath string
	input      string
	symbols    string
	method     string
	alpha      float64
	l1Ratio    float64
	model      string

	capital   float64
	costBps   float64
	slipBps   float64
	maxPos    float64
	rebalance string

	walkForward bool
	maxFeatures int

	tradesOut string
	equityOut string
	arrowOut  string
	asJSON    bool
	logLevel  string
}

func parseFlags() options {
	var o options
	flag.StringVar(&o.configPath, "config", "", "YAML config supplying defaults")
	flag.StringVar(&o.input, "in", "", "snapshot CSV (required, - for stdin)")
	flag.StringVar(&o.symbols, "symbols", "", "comma-separated symbols (default: all in file)")
	flag.StringVar(&o.method, "method", "", "regularization: lasso, ridge or elastic-net")
	flag.Float64Var(&o.alpha, "alpha", -1, "regularization strength")
	flag.Float64Var(&o.l1Ratio, "l1-ratio", -1, "elastic-net L1 share in [0,1]")
	flag.StringVar(&o.model, "model", "", "model tag stamped on signals")
	flag.Float64Var(&o.capital, "capital", 0, "initial capital")
	flag.Float64Var(&o.costBps, "cost-bps", -1, "transaction cost in bps")
	flag.Float64Var(&o.slipBps, "slippage-bps", -1, "slippage in bps")
	flag.Float64Var(&o.maxPos, "max-position", 0, "max position size")
	flag.StringVar(&o.rebalance, "rebalance", "", "tick, second or minute")
	flag.BoolVar(&o.walkForward, "walk-forward", false, "run walk-forward validation instead of one backtest")
	flag.IntVar(&o.maxFeatures, "max-features", 0, "features selected per walk-forward fold")
	flag.StringVar(&o.tradesOut, "trades", "", "write trade log CSV (single symbol)")
	flag.StringVar(&o.equityOut, "equity", "", "write equity curve CSV (single symbol)")
	flag.StringVar(&o.arrowOut, "arrow", "", "write signals as Arrow IPC stream")
	flag.BoolVar(&o.asJSON, "json", false, "print results as JSON")
	flag.StringVar(&o.logLevel, "log-level", "", "override log level")
	flag.Parse()
	return o
}

func main() {
	o := parseFlags()
	if o.input == "" {
		flag.Usage()
		os.Exit(2)
	}
	cfg, err := config.Load(o.configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}
	logger, err := config.NewLogger(cfg.Log.Level)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	if err := run(context.Background(), o, cfg, logger, os.Stdout); err != nil {
		logger.Fatal("lobctl failed", zap.Error(err))
	}
}

func run(ctx context.Context, o options, cfg *config.Config, logger *zap.Logger, out io.Writer) error {
	snaps, err := readSnapshots(o.input)
	if err != nil {
		return err
	}
	svc := pipeline.New(store.NewMemory(), logger, nil)
	svc.MaxWorkers = cfg.Engine.MaxWorkers
	svc.Ingest(snaps)

	symbols := svc.Store.Symbols()
	if o.symbols != "" {
		symbols = strings.FieldsFunc(o.symbols, func(r rune) bool { return r == ',' || r == ' ' })
	}
	reg, err := applyRegularization(cfg.Signals.Regularization, o)
	if err != nil {
		return err
	}
	model := cfg.Signals.Model
	if o.model != "" {
		model = o.model
	}
	var all []signals.Signal
	for _, sym := range symbols {
		sigs, err := svc.GenerateSignals(ctx, sym, reg, model)
		if err != nil {
			return fmt.Errorf("%s: %w", sym, err)
		}
		all = append(all, sigs...)
	}
	if o.arrowOut != "" {
		if err := writeFile(o.arrowOut, func(w io.Writer) error {
			return arrowpipeline.NewPipeline(cfg.Arrow).WriteSignals(w, all)
		}); err != nil {
			return err
		}
	}

	bt := applyBacktest(cfg.Backtest, o)
	if o.walkForward {
		for _, sym := range symbols {
			rep, err := svc.WalkForward(ctx, bt, sym, o.maxFeatures)
			if err != nil {
				return fmt.Errorf("%s: %w", sym, err)
			}
			if err := printWalkForward(out, sym, rep, o.asJSON); err != nil {
				return err
			}
		}
		return nil
	}

	started := time.Now()
	results, err := svc.RunAll(ctx, bt, symbols)
	if err != nil {
		return err
	}
	logger.Info("Backtests completed", zap.Int("symbols", len(results)), zap.Duration("elapsed", time.Since(started)))

	if len(results) == 1 {
		if o.tradesOut != "" {
			if err := writeFile(o.tradesOut, func(w io.Writer) error { return engine.WriteTradesCSV(w, results[0].Trades) }); err != nil {
				return err
			}
		}
		if o.equityOut != "" {
			if err := writeFile(o.equityOut, func(w io.Writer) error { return engine.WriteEquityCSV(w, results[0].EquityCurve) }); err != nil {
				return err
			}
		}
	}
	return printResults(out, results, o.asJSON)
}

func readSnapshots(path string) ([]lob.Snapshot, error) {
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}
	return lob.ParseCSV(r)
}

func applyRegularization(reg signals.Regularization, o options) (signals.Regularization, error) {
	if o.method != "" {
		m, err := signals.ParseMethod(o.method)
		if err != nil {
			return reg, err
		}
		reg.Method = m
	}
	if o.alpha >= 0 {
		reg.Alpha = o.alpha
	}
	if o.l1Ratio >= 0 {
		reg.L1Ratio = o.l1Ratio
	}
	if o.maxFeatures > 0 {
		reg.MaxFeatures = o.maxFeatures
	}
	return reg, reg.Validate()
}

func applyBacktest(cfg engine.BacktestConfig, o options) engine.BacktestConfig {
	cfg.Symbols = nil
	if o.capital > 0 {
		cfg.InitialCapital = o.capital
	}
	if o.costBps >= 0 {
		cfg.TransactionCostBps = o.costBps
	}
	if o.slipBps >= 0 {
		cfg.SlippageBps = o.slipBps
	}
	if o.maxPos > 0 {
		cfg.MaxPositionSize = o.maxPos
	}
	if o.rebalance != "" {
		cfg.RebalanceFrequency = engine.RebalanceFrequency(o.rebalance)
	}
	return cfg
}

func printResults(out io.Writer, results []*engine.Result, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SYMBOL\tTRADES\tRETURN\tSHARPE\tSORTINO\tMAX DD\tWIN RATE\tPROFIT FACTOR")
	for _, r := range results {
		m := r.Metrics
		fmt.Fprintf(tw, "%s\t%d\t%.4f%%\t%.3f\t%.3f\t%.4f%%\t%.2f\t%.3f\n",
			strings.Join(r.Config.Symbols, ","), m.TotalTrades, m.TotalReturn*100,
			m.SharpeRatio, m.SortinoRatio, m.MaxDrawdown*100, m.WinRate, m.ProfitFactor)
	}
	return tw.Flush()
}

func printWalkForward(out io.Writer, symbol string, rep *engine.WalkForwardReport, asJSON bool) error {
	if asJSON {
		return json.NewEncoder(out).Encode(map[string]any{"symbol": symbol, "report": rep})
	}
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "%s walk-forward: %d folds, avg return %.4f%%, avg sharpe %.3f\n",
		symbol, len(rep.Folds), rep.AvgReturn*100, rep.AvgSharpe)
	fmt.Fprintln(tw, "FOLD\tTEST\tRETURN\tSHARPE\tFEATURES")
	for _, f := range rep.Folds {
		fmt.Fprintf(tw, "%d\t[%d,%d)\t%.4f%%\t%.3f\t%s\n",
			f.Fold.Index, f.Fold.TestStart, f.Fold.TestEnd,
			f.Result.Metrics.TotalReturn*100, f.Result.Metrics.SharpeRatio,
			strings.Join(f.SelectedFeatures, ","))
	}
	return tw.Flush()
}

func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
