package signals

import (
	"fmt"
	"math"
	"strings"

	"github.com/johaankjis/Market-Microstructure-Alpha-Signal-Research/services/lob"
)

type Method string

const (
	MethodLasso      Method = "lasso"
	MethodRidge      Method = "ridge"
	MethodElasticNet Method = "elastic-net"
)

// DefaultMaxFeatures is used when Regularization.MaxFeatures is left at 0.
const DefaultMaxFeatures = 5

func ParseMethod(s string) (Method, error) {
	switch Method(strings.ToLower(strings.TrimSpace(s))) {
	case MethodLasso:
		return MethodLasso, nil
	case MethodRidge:
		return MethodRidge, nil
	case MethodElasticNet, "elasticnet", "elastic_net":
		return MethodElasticNet, nil
	}
	return "", fmt.Errorf("unknown regularization method %q", s)
}

// Regularization configures how the base weights are shrunk. L1Ratio only
// matters for elastic-net.
type Regularization struct {
	Method      Method  `json:"method" yaml:"method"`
	Alpha       float64 `json:"alpha" yaml:"alpha"`
	L1Ratio     float64 `json:"l1_ratio" yaml:"l1_ratio"`
	MaxFeatures int     `json:"max_features" yaml:"max_features"`
}

func DefaultRegularization() Regularization {
	return Regularization{Method: MethodElasticNet, Alpha: 0.1, L1Ratio: 0.5, MaxFeatures: DefaultMaxFeatures}
}

func (r Regularization) Validate() error {
	switch r.Method {
	case MethodLasso, MethodRidge, MethodElasticNet:
	default:
		return fmt.Errorf("unknown regularization method %q", r.Method)
	}
	if math.IsNaN(r.Alpha) || math.IsInf(r.Alpha, 0) || r.Alpha < 0 {
		return fmt.Errorf("alpha must be a finite value >= 0, got %v", r.Alpha)
	}
	if math.IsNaN(r.L1Ratio) || r.L1Ratio < 0 || r.L1Ratio > 1 {
		return fmt.Errorf("l1_ratio must be within [0,1], got %v", r.L1Ratio)
	}
	if r.MaxFeatures < 0 {
		return fmt.Errorf("max_features must be >= 1, got %d", r.MaxFeatures)
	}
	return nil
}

func (r Regularization) maxFeatures() int {
	if r.MaxFeatures <= 0 {
		return DefaultMaxFeatures
	}
	return r.MaxFeatures
}

// Weights holds one coefficient per lob.Feature, in feature order.
type Weights [lob.NumFeatures]float64

// BaseWeights is the fixed prior every model starts from.
var BaseWeights = Weights{
	lob.FeatureVolumeImbalance:      0.3,
	lob.FeatureDepthImbalance:       0.25,
	lob.FeaturePriceImbalance:       0.2,
	lob.FeatureRelativeSpread:       -0.15,
	lob.FeatureMicropriceVolatility: -0.1,
	lob.FeatureOrderFlowToxicity:    0.15,
	lob.FeatureVPIN:                 0.1,
}

// Apply shrinks w according to the method.
func (r Regularization) Apply(w Weights) Weights {
	switch r.Method {
	case MethodLasso:
		return softThreshold(w, r.Alpha)
	case MethodRidge:
		return scale(w, 1/(1+r.Alpha))
	default:
		return scale(softThreshold(w, r.Alpha), 1/(1+r.Alpha*(1-r.L1Ratio)))
	}
}

// Penalty is the term subtracted from the raw weighted sum.
func (r Regularization) Penalty(w Weights) float64 {
	l1, l2 := w.L1(), w.L2()
	switch r.Method {
	case MethodLasso:
		return r.Alpha * l1
	case MethodRidge:
		return r.Alpha * l2
	default:
		return r.Alpha * (r.L1Ratio*l1 + (1-r.L1Ratio)*l2)
	}
}

func (w Weights) L1() float64 {
	var s float64
	for _, v := range w {
		s += math.Abs(v)
	}
	return s
}

func (w Weights) L2() float64 {
	var s float64
	for _, v := range w {
		s += v * v
	}
	return math.Sqrt(s)
}

// Map returns the weights keyed by feature name.
func (w Weights) Map() map[string]float64 {
	out := make(map[string]float64, len(w))
	for i, v := range w {
		out[lob.Feature(i).String()] = v
	}
	return out
}

func softThreshold(w Weights, alpha float64) Weights {
	var out Weights
	for i, v := range w {
		if math.Abs(v) < alpha {
			continue
		}
		// sign(v) * (|v| - alpha); exactly |v| == alpha lands on 0
		out[i] = math.Copysign(math.Abs(v)-alpha, v)
	}
	return out
}

func scale(w Weights, k float64) Weights {
	var out Weights
	for i, v := range w {
		out[i] = v * k
	}
	return out
}
