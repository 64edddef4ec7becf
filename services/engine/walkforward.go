package engine

// Walk-forward planner and runner

import (
	"sort"

	"go.uber.org/zap"

	"github.com/johaankjis/Market-Microstructure-Alpha-Signal-Research/services/lob"
	"github.com/johaankjis/Market-Microstructure-Alpha-Signal-Research/services/signals"
)

// Fold is a pair of half-open index windows over time-ordered signals.
// The test window starts where the train window ends.
type Fold struct {
	Index      int `json:"index"`
	TrainStart int `json:"train_start"`
	TrainEnd   int `json:"train_end"`
	TestStart  int `json:"test_start"`
	TestEnd    int `json:"test_end"`
}

// PlanFolds rolls a train window of trainSize followed by a test window of
// testSize across n items, advancing by testSize so test windows never
// overlap.
func PlanFolds(n, trainSize, testSize int) []Fold {
	if trainSize <= 0 || testSize <= 0 {
		return nil
	}
	var folds []Fold
	for start := 0; start+trainSize+testSize <= n; start += testSize {
		folds = append(folds, Fold{
			Index:      len(folds),
			TrainStart: start,
			TrainEnd:   start + trainSize,
			TestStart:  start + trainSize,
			TestEnd:    start + trainSize + testSize,
		})
	}
	return folds
}

type FoldResult struct {
	Fold             Fold     `json:"fold"`
	SelectedFeatures []string `json:"selected_features"`
	Result           *Result  `json:"result"`
}

type WalkForwardReport struct {
	Folds          []FoldResult `json:"folds"`
	AvgReturn      float64      `json:"avg_return"`
	AvgSharpe      float64      `json:"avg_sharpe"`
	AvgMaxDrawdown float64      `json:"avg_max_drawdown"`
}

// WalkForward ranks features on each train window against one-step forward
// mid returns and backtests the following validation window with a fresh
// run. maxFeatures <= 0 uses the signals package default.
func (e *Engine) WalkForward(sigs []signals.Signal, maxFeatures int) (*WalkForwardReport, error) {
	ordered := e.selectSignals(sigs)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Timestamp < ordered[j].Timestamp })

	folds := PlanFolds(len(ordered), e.cfg.WalkForwardWindow, e.cfg.ValidationWindow)
	if len(folds) == 0 {
		return nil, ErrInsufficientData.WithDetails(
			"walk-forward needs %d signals, have %d",
			e.cfg.WalkForwardWindow+e.cfg.ValidationWindow, len(ordered))
	}

	report := &WalkForwardReport{Folds: make([]FoldResult, 0, len(folds))}
	for _, f := range folds {
		features, returns := forwardReturnsBySymbol(ordered[f.TrainStart:f.TrainEnd])
		selected, err := signals.SelectFeatures(features, returns, maxFeatures)
		if err != nil {
			return nil, err
		}
		names := make([]string, len(selected))
		for i, s := range selected {
			names[i] = s.String()
		}

		res, err := e.Run(ordered[f.TestStart:f.TestEnd])
		if err != nil {
			return nil, err
		}
		e.logger.Debug("Walk-forward fold complete",
			zap.Int("fold", f.Index),
			zap.Strings("selected", names),
			zap.Float64("total_return", res.Metrics.TotalReturn),
		)
		report.Folds = append(report.Folds, FoldResult{Fold: f, SelectedFeatures: names, Result: res})
		report.AvgReturn += res.Metrics.TotalReturn
		report.AvgSharpe += res.Metrics.SharpeRatio
		report.AvgMaxDrawdown += res.Metrics.MaxDrawdown
	}
	n := float64(len(report.Folds))
	report.AvgReturn /= n
	report.AvgSharpe /= n
	report.AvgMaxDrawdown /= n
	return report, nil
}

// forwardReturnsBySymbol computes forward returns within each symbol so
// returns never span two instruments.
func forwardReturnsBySymbol(sigs []signals.Signal) ([]lob.FeatureVector, []float64) {
	bySymbol := make(map[string][]signals.Signal)
	var order []string
	for _, s := range sigs {
		if _, ok := bySymbol[s.Symbol]; !ok {
			order = append(order, s.Symbol)
		}
		bySymbol[s.Symbol] = append(bySymbol[s.Symbol], s)
	}
	var features []lob.FeatureVector
	var returns []float64
	for _, sym := range order {
		f, r := signals.ForwardReturns(bySymbol[sym], 1)
		features = append(features, f...)
		returns = append(returns, r...)
	}
	return features, returns
}
