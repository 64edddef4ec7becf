package lob

import "math"

// Extractor computes feature vectors. The zero value is not usable; use
// NewExtractor or fill every window.
type Extractor struct {
	Levels           int
	VolatilityWindow int
	VPINWindow       int
}

func NewExtractor() *Extractor {
	return &Extractor{Levels: Depth, VolatilityWindow: 20, VPINWindow: 50}
}

// Extract derives the feature vector for snap. history holds the snapshots
// strictly before snap for the same symbol, oldest first. It is read only.
func (e *Extractor) Extract(snap Snapshot, history []Snapshot) FeatureVector {
	recent := tail(history, e.VolatilityWindow)
	micro := make([]float64, len(recent))
	spreads := make([]float64, len(recent))
	for i, h := range recent {
		micro[i] = Microprice(h)
		spreads[i] = h.Spread
	}
	return e.assemble(snap, Volatility(micro), Volatility(spreads), VPIN(history, e.VPINWindow))
}

func (e *Extractor) assemble(snap Snapshot, microVol, spreadVol, vpin float64) FeatureVector {
	vi := VolumeImbalance(snap, e.Levels)
	rs := RelativeSpread(snap)
	return FeatureVector{
		Timestamp:            snap.Timestamp,
		Symbol:               snap.Symbol,
		VolumeImbalance:      vi,
		DepthImbalance:       DepthImbalance(snap, e.Levels),
		PriceImbalance:       PriceImbalance(snap),
		RelativeSpread:       rs,
		EffectiveSpread:      snap.Spread,
		MicropriceVolatility: microVol,
		SpreadVolatility:     spreadVol,
		OrderFlowToxicity:    math.Abs(vi) * rs,
		VPIN:                 vpin,
	}
}

// VolumeImbalance is (bid - ask) / (bid + ask) over the top levels of size.
func VolumeImbalance(s Snapshot, levels int) float64 {
	levels = clampLevels(levels)
	var bid, ask float64
	for i := 0; i < levels; i++ {
		bid += s.BidSizes[i]
		ask += s.AskSizes[i]
	}
	return ratio(bid-ask, bid+ask)
}

// DepthImbalance is VolumeImbalance with each level weighted by its price.
func DepthImbalance(s Snapshot, levels int) float64 {
	levels = clampLevels(levels)
	var bid, ask float64
	for i := 0; i < levels; i++ {
		bid += s.BidSizes[i] * s.BidPrices[i]
		ask += s.AskSizes[i] * s.AskPrices[i]
	}
	return ratio(bid-ask, bid+ask)
}

// Microprice blends the best bid and ask by the opposite side's size.
// An empty best level falls back to the mid.
func Microprice(s Snapshot) float64 {
	total := s.BidSizes[0] + s.AskSizes[0]
	if total == 0 {
		return s.MidPrice
	}
	return (s.BidPrices[0]*s.AskSizes[0] + s.AskPrices[0]*s.BidSizes[0]) / total
}

func PriceImbalance(s Snapshot) float64 {
	if s.MidPrice == 0 {
		return 0
	}
	return (Microprice(s) - s.MidPrice) / s.MidPrice
}

func RelativeSpread(s Snapshot) float64 {
	if s.MidPrice == 0 {
		return 0
	}
	return s.Spread / s.MidPrice
}

// Volatility is the population standard deviation of values, 0 for fewer
// than two values.
func Volatility(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))
	var sq float64
	for _, v := range values {
		d := v - mean
		sq += d * d
	}
	return math.Sqrt(sq / float64(len(values)))
}

// VPIN attributes best-level volume to buyers or sellers by the direction of
// the mid move over the last window entries of history. Flat steps are
// dropped. Histories shorter than window yield 0.
func VPIN(history []Snapshot, window int) float64 {
	if window <= 0 || len(history) < window {
		return 0
	}
	recent := history[len(history)-window:]
	var buy, sell float64
	for i := 1; i < len(recent); i++ {
		diff := recent[i].MidPrice - recent[i-1].MidPrice
		vol := recent[i].BidSizes[0] + recent[i].AskSizes[0]
		if diff > 0 {
			buy += vol
		} else if diff < 0 {
			sell += vol
		}
	}
	return vpinRatio(buy, sell)
}

func vpinRatio(buy, sell float64) float64 {
	total := buy + sell
	if total <= 0 {
		return 0
	}
	return math.Abs(buy-sell) / total
}

// Sanitized replaces non-finite fields with 0.
func (fv FeatureVector) Sanitized() FeatureVector {
	for _, p := range []*float64{
		&fv.VolumeImbalance, &fv.DepthImbalance, &fv.PriceImbalance, &fv.RelativeSpread,
		&fv.EffectiveSpread, &fv.MicropriceVolatility, &fv.SpreadVolatility,
		&fv.OrderFlowToxicity, &fv.VPIN,
	} {
		if math.IsNaN(*p) || math.IsInf(*p, 0) {
			*p = 0
		}
	}
	return fv
}

func ratio(num, den float64) float64 {
	if den == 0 {
		return 0
	}
	return num / den
}

func clampLevels(levels int) int {
	if levels <= 0 || levels > Depth {
		return Depth
	}
	return levels
}

func tail(s []Snapshot, n int) []Snapshot {
	if n <= 0 {
		return nil
	}
	if len(s) > n {
		return s[len(s)-n:]
	}
	return s
}
