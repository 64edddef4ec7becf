package signals

import (
	"fmt"
	"math"
	"sort"

	"github.com/johaankjis/Market-Microstructure-Alpha-Signal-Research/services/lob"
)

// FeatureScore pairs a feature with a ranking score.
type FeatureScore struct {
	Feature lob.Feature `json:"-"`
	Name    string      `json:"feature"`
	Score   float64     `json:"score"`
}

// RankFeatures orders features by |Pearson correlation| with returns,
// strongest first. Ties keep feature order.
func RankFeatures(features []lob.FeatureVector, returns []float64) ([]FeatureScore, error) {
	if len(features) != len(returns) {
		return nil, fmt.Errorf("features and returns differ in length: %d vs %d", len(features), len(returns))
	}
	out := make([]FeatureScore, 0, lob.NumFeatures)
	col := make([]float64, len(features))
	for _, f := range lob.Features() {
		for i, fv := range features {
			col[i] = fv.Value(f)
		}
		out = append(out, FeatureScore{Feature: f, Name: f.String(), Score: math.Abs(Correlation(col, returns))})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out, nil
}

// SelectFeatures returns the limit features most correlated with returns.
// limit <= 0 selects DefaultMaxFeatures. The result is diagnostic only.
func SelectFeatures(features []lob.FeatureVector, returns []float64, limit int) ([]lob.Feature, error) {
	ranked, err := RankFeatures(features, returns)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultMaxFeatures
	}
	if limit > len(ranked) {
		limit = len(ranked)
	}
	out := make([]lob.Feature, limit)
	for i := range out {
		out[i] = ranked[i].Feature
	}
	return out, nil
}

// SelectFeatures ranks with the generator's MaxFeatures.
func (g *Generator) SelectFeatures(features []lob.FeatureVector, returns []float64) ([]lob.Feature, error) {
	return SelectFeatures(features, returns, g.reg.maxFeatures())
}

// Correlation is the Pearson coefficient of x and y over their common
// prefix, 0 when either side has no variance or non-finite input.
func Correlation(x, y []float64) float64 {
	n := len(x)
	if len(y) < n {
		n = len(y)
	}
	if n == 0 {
		return 0
	}
	var sx, sy float64
	for i := 0; i < n; i++ {
		sx += x[i]
		sy += y[i]
	}
	mx, my := sx/float64(n), sy/float64(n)
	var num, dx2, dy2 float64
	for i := 0; i < n; i++ {
		dx, dy := x[i]-mx, y[i]-my
		num += dx * dy
		dx2 += dx * dx
		dy2 += dy * dy
	}
	den := math.Sqrt(dx2 * dy2)
	if den == 0 || math.IsNaN(den) {
		return 0
	}
	return num / den
}

// ForwardReturns pairs each signal with the relative mid move horizon
// signals later. Only the first len(sigs)-horizon signals have a return;
// the matching feature vectors are returned alongside. A zero mid yields a
// zero return.
func ForwardReturns(sigs []Signal, horizon int) ([]lob.FeatureVector, []float64) {
	if horizon < 1 {
		horizon = 1
	}
	if len(sigs) <= horizon {
		return nil, nil
	}
	n := len(sigs) - horizon
	features := make([]lob.FeatureVector, n)
	returns := make([]float64, n)
	for i := 0; i < n; i++ {
		features[i] = sigs[i].Features
		if p := sigs[i].MidPrice; p != 0 {
			returns[i] = (sigs[i+horizon].MidPrice - p) / p
		}
	}
	return features, returns
}

// Importance is the mean absolute value of every feature across sigs,
// largest first.
func Importance(sigs []Signal) []FeatureScore {
	out := make([]FeatureScore, 0, lob.NumFeatures)
	for _, f := range lob.Features() {
		var sum float64
		for _, s := range sigs {
			sum += math.Abs(s.Features.Value(f))
		}
		score := 0.0
		if len(sigs) > 0 {
			score = sum / float64(len(sigs))
		}
		out = append(out, FeatureScore{Feature: f, Name: f.String(), Score: score})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}
