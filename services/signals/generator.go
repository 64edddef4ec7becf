// Package signals turns LOB feature vectors into bounded alpha signals
// using regularized fixed weights.
package signals

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"go.uber.org/zap"

	"github.com/johaankjis/Market-Microstructure-Alpha-Signal-Research/services/lob"
)

// MinHistory is the number of leading snapshots per symbol that only serve
// as history and never produce a signal.
const MinHistory = 50

const ModelVersion = "1.0.0"

var ErrInsufficientHistory = fmt.Errorf("need more than %d snapshots for at least one symbol", MinHistory)

// Signal is one model output. Value is in [-1,1], Confidence in [0,1].
type Signal struct {
	Timestamp  int64             `json:"timestamp"`
	Symbol     string            `json:"symbol"`
	Value      float64           `json:"signal_value"`
	Confidence float64           `json:"confidence"`
	MidPrice   float64           `json:"mid_price"`
	Features   lob.FeatureVector `json:"features"`
	Model      string            `json:"model"`
	Version    string            `json:"version"`
}

type Generator struct {
	reg     Regularization
	weights Weights
	penalty float64
	ext     *lob.Extractor
	logger  *zap.Logger
}

type Option func(*Generator)

func WithLogger(l *zap.Logger) Option {
	return func(g *Generator) {
		if l != nil {
			g.logger = l
		}
	}
}

func WithExtractor(e *lob.Extractor) Option {
	return func(g *Generator) {
		if e != nil {
			g.ext = e
		}
	}
}

// NewGenerator validates reg and precomputes the regularized weights.
func NewGenerator(reg Regularization, opts ...Option) (*Generator, error) {
	if err := reg.Validate(); err != nil {
		return nil, err
	}
	g := &Generator{
		reg:    reg,
		ext:    lob.NewExtractor(),
		logger: zap.NewNop(),
	}
	for _, o := range opts {
		o(g)
	}
	g.weights = reg.Apply(BaseWeights)
	g.penalty = reg.Penalty(g.weights)
	return g, nil
}

func (g *Generator) Regularization() Regularization { return g.reg }

// Weights returns the regularized weights in use.
func (g *Generator) Weights() Weights { return g.weights }

// Generate emits one signal per snapshot after the first MinHistory of each
// symbol. Symbols are processed in name order; each symbol's snapshots are
// taken in time order with all earlier ones as history.
func (g *Generator) Generate(snaps []lob.Snapshot, model string) ([]Signal, error) {
	if model == "" {
		model = "default"
	}
	groups := lob.GroupBySymbol(snaps)
	symbols := make([]string, 0, len(groups))
	for sym := range groups {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)

	var out []Signal
	for _, sym := range symbols {
		list := groups[sym]
		if len(list) <= MinHistory {
			g.logger.Debug("Skipping symbol with short history",
				zap.String("symbol", sym),
				zap.Int("snapshots", len(list)),
			)
			continue
		}
		out = append(out, g.generateSymbol(list, model)...)
	}
	if len(out) == 0 {
		return nil, ErrInsufficientHistory
	}
	g.logger.Info("Generated signals",
		zap.String("model", model),
		zap.String("method", string(g.reg.Method)),
		zap.Float64("alpha", g.reg.Alpha),
		zap.Int("symbols", len(symbols)),
		zap.Int("signals", len(out)),
	)
	return out, nil
}

func (g *Generator) generateSymbol(list []lob.Snapshot, model string) []Signal {
	st := lob.NewStream(g.ext)
	out := make([]Signal, 0, len(list)-MinHistory)
	for i, snap := range list {
		fv := st.Push(snap)
		if i < MinHistory {
			continue
		}
		out = append(out, g.signal(snap, fv, model))
	}
	return out
}

func (g *Generator) signal(snap lob.Snapshot, fv lob.FeatureVector, model string) Signal {
	return Signal{
		Timestamp:  snap.Timestamp,
		Symbol:     snap.Symbol,
		Value:      finiteOrZero(Score(fv, g.weights, g.penalty)),
		Confidence: finiteOrZero(Confidence(fv)),
		MidPrice:   finiteOrZero(snap.MidPrice),
		Features:   fv.Sanitized(),
		Model:      model,
		Version:    ModelVersion,
	}
}

// Score is tanh of the weighted feature sum less the penalty.
func Score(fv lob.FeatureVector, w Weights, penalty float64) float64 {
	var sum float64
	for i, wi := range w {
		sum += wi * fv.Value(lob.Feature(i))
	}
	return math.Tanh(sum - penalty)
}

// Confidence rates feature quality: strong imbalance, tight spread, calm
// microprice and high VPIN all raise it.
func Confidence(fv lob.FeatureVector) float64 {
	imbalance := math.Abs(fv.VolumeImbalance) + math.Abs(fv.DepthImbalance)
	spreadQuality := 1 - math.Min(fv.RelativeSpread*100, 1)
	volQuality := 1 - math.Min(fv.MicropriceVolatility*10, 1)
	c := (imbalance*0.4 + spreadQuality*0.3 + volQuality*0.2 + fv.VPIN*0.1) / 2
	return math.Min(math.Max(c, 0), 1)
}

func finiteOrZero(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// IsInsufficientHistory reports whether err came from a too-short input.
func IsInsufficientHistory(err error) bool { return errors.Is(err, ErrInsufficientHistory) }
