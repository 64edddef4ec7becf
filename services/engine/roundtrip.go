package engine

// Round trips reconstructed from the trade log

type RoundTrip struct {
	Symbol   string    `json:"symbol"`
	Side     TradeSide `json:"side"`
	OpenedAt int64     `json:"opened_at"`
	ClosedAt int64     `json:"closed_at"`
	PnL      float64   `json:"pnl"`
}

func (rt RoundTrip) HoldingMs() int64 { return rt.ClosedAt - rt.OpenedAt }

// RoundTrips pairs each move away from flat with the trade that brings the
// symbol back to flat or flips it. A flip closes one trip and opens the
// next at the same timestamp. Trips still open at the end are dropped.
func RoundTrips(trades []Trade) []RoundTrip {
	type state struct {
		qty    float64
		opened int64
		side   TradeSide
		pnl    float64
	}
	open := make(map[string]*state)
	var out []RoundTrip
	for _, t := range trades {
		st, ok := open[t.Symbol]
		if !ok {
			st = &state{}
			open[t.Symbol] = st
		}
		delta := t.Quantity
		if t.Side == TradeSideSell {
			delta = -delta
		}
		before := st.qty
		after := before + delta
		if absf(after) < 1e-9 {
			after = 0
		}
		if before == 0 {
			if after != 0 {
				st.opened, st.side, st.pnl = t.Timestamp, t.Side, 0
			}
			st.qty = after
			continue
		}
		st.pnl += t.PnL
		if after == 0 || sign(after) != sign(before) {
			out = append(out, RoundTrip{
				Symbol:   t.Symbol,
				Side:     st.side,
				OpenedAt: st.opened,
				ClosedAt: t.Timestamp,
				PnL:      st.pnl,
			})
			if after != 0 {
				st.opened, st.side, st.pnl = t.Timestamp, t.Side, 0
			}
		}
		st.qty = after
	}
	return out
}
