package lob

import "sort"

// Resample keeps the last snapshot of every stepMs bucket per symbol.
// Buckets are aligned to the epoch and the kept snapshot retains its own
// timestamp. The output is ordered by symbol, then time.
func Resample(snaps []Snapshot, stepMs int64) []Snapshot {
	if stepMs <= 0 {
		out := append([]Snapshot(nil), snaps...)
		sort.SliceStable(out, func(i, j int) bool {
			if out[i].Symbol != out[j].Symbol {
				return out[i].Symbol < out[j].Symbol
			}
			return out[i].Timestamp < out[j].Timestamp
		})
		return out
	}
	groups := GroupBySymbol(snaps)
	symbols := make([]string, 0, len(groups))
	for sym := range groups {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)

	out := make([]Snapshot, 0, len(snaps))
	for _, sym := range symbols {
		list := groups[sym]
		for i, s := range list {
			last := i == len(list)-1
			if last || bucket(list[i+1].Timestamp, stepMs) != bucket(s.Timestamp, stepMs) {
				out = append(out, s)
			}
		}
	}
	return out
}

func bucket(ts, stepMs int64) int64 {
	b := ts / stepMs
	if ts < 0 && ts%stepMs != 0 {
		b--
	}
	return b
}
