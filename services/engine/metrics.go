package engine

// Performance metrics over a finished run

import "math"

// AnnualizationFactor assumes one return per trading day.
var AnnualizationFactor = math.Sqrt(252)

type Metrics struct {
	TotalReturn        float64 `json:"total_return"`
	SharpeRatio        float64 `json:"sharpe_ratio"`
	SortinoRatio       float64 `json:"sortino_ratio"`
	CalmarRatio        float64 `json:"calmar_ratio"`
	MaxDrawdown        float64 `json:"max_drawdown"`
	WinRate            float64 `json:"win_rate"`
	ProfitFactor       float64 `json:"profit_factor"`
	AvgTrade           float64 `json:"avg_trade"`
	TotalTrades        int     `json:"total_trades"`
	AvgHoldingPeriodMs float64 `json:"avg_holding_period_ms"`
	InformationRatio   float64 `json:"information_ratio"`
}

// ComputeMetrics derives every statistic from the equity curve and trade
// log. benchmark may be nil, in which case the information ratio is 0.
func ComputeMetrics(initialCapital float64, curve []EquityPoint, trades []Trade, benchmark []float64) Metrics {
	m := Metrics{TotalTrades: len(trades)}

	final := initialCapital
	if len(curve) > 0 {
		final = curve[len(curve)-1].Equity
	}
	if initialCapital != 0 {
		m.TotalReturn = (final - initialCapital) / initialCapital
	}

	returns := StepReturns(curve)
	m.SharpeRatio = Sharpe(returns)
	m.SortinoRatio = Sortino(returns)
	m.MaxDrawdown = MaxDrawdown(initialCapital, curve)
	if m.MaxDrawdown != 0 {
		m.CalmarRatio = m.TotalReturn / math.Abs(m.MaxDrawdown)
	}
	if len(benchmark) > 0 {
		m.InformationRatio = InformationRatio(returns, benchmark)
	}

	var wins int
	var grossProfit, grossLoss, total float64
	for _, t := range trades {
		total += t.PnL
		switch {
		case t.PnL > 0:
			wins++
			grossProfit += t.PnL
		case t.PnL < 0:
			grossLoss += t.PnL
		}
	}
	if len(trades) > 0 {
		m.WinRate = float64(wins) / float64(len(trades))
		m.AvgTrade = total / float64(len(trades))
	}
	if grossLoss < 0 {
		m.ProfitFactor = grossProfit / math.Abs(grossLoss)
	}

	if trips := RoundTrips(trades); len(trips) > 0 {
		var held float64
		for _, rt := range trips {
			held += float64(rt.HoldingMs())
		}
		m.AvgHoldingPeriodMs = held / float64(len(trips))
	}
	return m
}

// StepReturns are the relative changes between consecutive curve points.
func StepReturns(curve []EquityPoint) []float64 {
	if len(curve) < 2 {
		return nil
	}
	out := make([]float64, 0, len(curve)-1)
	for i := 1; i < len(curve); i++ {
		prev := curve[i-1].Equity
		if prev == 0 {
			out = append(out, 0)
			continue
		}
		out = append(out, (curve[i].Equity-prev)/prev)
	}
	return out
}

// Sharpe is annualized mean over population standard deviation.
func Sharpe(returns []float64) float64 {
	if len(returns) == 0 {
		return 0
	}
	mean, std := meanStd(returns)
	if std == 0 {
		return 0
	}
	return mean / std * AnnualizationFactor
}

// Sortino uses the downside deviation of negative returns taken over the
// full return count.
func Sortino(returns []float64) float64 {
	if len(returns) == 0 {
		return 0
	}
	mean, _ := meanStd(returns)
	var down float64
	for _, r := range returns {
		if r < 0 {
			down += r * r
		}
	}
	dd := math.Sqrt(down / float64(len(returns)))
	if dd == 0 {
		return 0
	}
	return mean / dd * AnnualizationFactor
}

// MaxDrawdown walks the curve with the peak starting at initialCapital.
func MaxDrawdown(initialCapital float64, curve []EquityPoint) float64 {
	peak := initialCapital
	var worst float64
	for _, p := range curve {
		if p.Equity > peak {
			peak = p.Equity
		}
		if dd := drawdown(peak, p.Equity); dd > worst {
			worst = dd
		}
	}
	return worst
}

// InformationRatio is the annualized mean active return over its standard
// deviation, using the overlap of returns and benchmark.
func InformationRatio(returns, benchmark []float64) float64 {
	n := len(returns)
	if len(benchmark) < n {
		n = len(benchmark)
	}
	if n == 0 {
		return 0
	}
	active := make([]float64, n)
	for i := 0; i < n; i++ {
		active[i] = returns[i] - benchmark[i]
	}
	mean, std := meanStd(active)
	if std == 0 {
		return 0
	}
	return mean / std * AnnualizationFactor
}

func meanStd(xs []float64) (mean, std float64) {
	for _, x := range xs {
		mean += x
	}
	mean /= float64(len(xs))
	var v float64
	for _, x := range xs {
		d := x - mean
		v += d * d
	}
	return mean, math.Sqrt(v / float64(len(xs)))
}
