// Package lob holds limit order book snapshots and the microstructure
// feature extractor that runs over them.
package lob

import "sort"

// Depth is the number of price levels carried per side.
const Depth = 5

// Snapshot is one top-of-book capture. Levels are ordered best to worst.
// MidPrice and Spread come from the feed and are never recomputed.
type Snapshot struct {
	Timestamp int64          `json:"timestamp"`
	Symbol    string         `json:"symbol"`
	BidPrices [Depth]float64 `json:"bid_prices"`
	BidSizes  [Depth]float64 `json:"bid_sizes"`
	AskPrices [Depth]float64 `json:"ask_prices"`
	AskSizes  [Depth]float64 `json:"ask_sizes"`
	MidPrice  float64        `json:"mid_price"`
	Spread    float64        `json:"spread"`
}

// FeatureVector is derived from one snapshot and its trailing history.
type FeatureVector struct {
	Timestamp            int64   `json:"timestamp"`
	Symbol               string  `json:"symbol"`
	VolumeImbalance      float64 `json:"volume_imbalance"`
	DepthImbalance       float64 `json:"depth_imbalance"`
	PriceImbalance       float64 `json:"price_imbalance"`
	RelativeSpread       float64 `json:"relative_spread"`
	EffectiveSpread      float64 `json:"effective_spread"`
	MicropriceVolatility float64 `json:"microprice_volatility"`
	SpreadVolatility     float64 `json:"spread_volatility"`
	OrderFlowToxicity    float64 `json:"order_flow_toxicity"`
	VPIN                 float64 `json:"vpin"`
}

// Feature names one of the modelled features. The order is fixed and is
// the order weight vectors are summed in.
type Feature int

const (
	FeatureVolumeImbalance Feature = iota
	FeatureDepthImbalance
	FeaturePriceImbalance
	FeatureRelativeSpread
	FeatureMicropriceVolatility
	FeatureOrderFlowToxicity
	FeatureVPIN

	NumFeatures = int(FeatureVPIN) + 1
)

var featureNames = [NumFeatures]string{
	"volumeImbalance",
	"depthImbalance",
	"priceImbalance",
	"relativeSpread",
	"micropriceVolatility",
	"orderFlowToxicity",
	"vpin",
}

// Features lists every modelled feature in summation order.
func Features() []Feature {
	out := make([]Feature, NumFeatures)
	for i := range out {
		out[i] = Feature(i)
	}
	return out
}

func (f Feature) String() string {
	if f < 0 || int(f) >= NumFeatures {
		return "unknown"
	}
	return featureNames[f]
}

// ParseFeature maps a feature name back to its Feature.
func ParseFeature(name string) (Feature, bool) {
	for i, n := range featureNames {
		if n == name {
			return Feature(i), true
		}
	}
	return 0, false
}

// Value returns the modelled feature f from the vector.
func (fv FeatureVector) Value(f Feature) float64 {
	switch f {
	case FeatureVolumeImbalance:
		return fv.VolumeImbalance
	case FeatureDepthImbalance:
		return fv.DepthImbalance
	case FeaturePriceImbalance:
		return fv.PriceImbalance
	case FeatureRelativeSpread:
		return fv.RelativeSpread
	case FeatureMicropriceVolatility:
		return fv.MicropriceVolatility
	case FeatureOrderFlowToxicity:
		return fv.OrderFlowToxicity
	case FeatureVPIN:
		return fv.VPIN
	}
	return 0
}

// GroupBySymbol partitions snapshots by symbol. Each partition is ordered
// by timestamp; equal timestamps keep their input order.
func GroupBySymbol(snaps []Snapshot) map[string][]Snapshot {
	out := make(map[string][]Snapshot)
	for _, s := range snaps {
		out[s.Symbol] = append(out[s.Symbol], s)
	}
	for _, list := range out {
		sort.SliceStable(list, func(i, j int) bool { return list[i].Timestamp < list[j].Timestamp })
	}
	return out
}
