package lob

import (
	"math"
	"sort"
)

// Summary describes the loaded history of one symbol.
type Summary struct {
	Symbol    string  `json:"symbol"`
	Count     int     `json:"count"`
	First     int64   `json:"first"`
	Last      int64   `json:"last"`
	AvgMid    float64 `json:"avg_mid"`
	AvgSpread float64 `json:"avg_spread"`
	MinMid    float64 `json:"min_mid"`
	MaxMid    float64 `json:"max_mid"`
	Gaps      []int64 `json:"gaps,omitempty"`
}

// Summarize reports counts, ranges and averages per symbol, sorted by
// symbol. Non-finite mids and spreads are left out of the averages. When
// expectedStepMs is positive, every timestamp followed by a larger step is
// reported as a gap.
func Summarize(snaps []Snapshot, expectedStepMs int64) []Summary {
	groups := GroupBySymbol(snaps)
	out := make([]Summary, 0, len(groups))
	for sym, list := range groups {
		sum := Summary{Symbol: sym, Count: len(list), MinMid: math.Inf(1), MaxMid: math.Inf(-1)}
		if len(list) > 0 {
			sum.First = list[0].Timestamp
			sum.Last = list[len(list)-1].Timestamp
		}
		var mids, spreads float64
		var nm, ns int
		for _, s := range list {
			if finite(s.MidPrice) {
				mids += s.MidPrice
				nm++
				sum.MinMid = math.Min(sum.MinMid, s.MidPrice)
				sum.MaxMid = math.Max(sum.MaxMid, s.MidPrice)
			}
			if finite(s.Spread) {
				spreads += s.Spread
				ns++
			}
		}
		if nm > 0 {
			sum.AvgMid = mids / float64(nm)
		} else {
			sum.MinMid, sum.MaxMid = 0, 0
		}
		if ns > 0 {
			sum.AvgSpread = spreads / float64(ns)
		}
		if expectedStepMs > 0 {
			ts := make([]int64, len(list))
			for i, s := range list {
				ts[i] = s.Timestamp
			}
			sum.Gaps = DetectGaps(ts, expectedStepMs)
		}
		out = append(out, sum)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

// DetectGaps checks for missing intervals in sorted timestamps (ms)
func DetectGaps(timestamps []int64, expectedStepMs int64) (gaps []int64) {
	for i := 1; i < len(timestamps); i++ {
		if timestamps[i]-timestamps[i-1] > expectedStepMs {
			gaps = append(gaps, timestamps[i-1])
		}
	}
	return gaps
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }
