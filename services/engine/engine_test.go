package engine

import (
	"errors"
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/johaankjis/Market-Microstructure-Alpha-Signal-Research/services/lob"
	"github.com/johaankjis/Market-Microstructure-Alpha-Signal-Research/services/signals"
)

func sig(ts int64, symbol string, value, confidence, mid float64) signals.Signal {
	return signals.Signal{
		Timestamp:  ts,
		Symbol:     symbol,
		Value:      value,
		Confidence: confidence,
		MidPrice:   mid,
		Features:   lob.FeatureVector{Timestamp: ts, Symbol: symbol},
	}
}

func scenarioConfig() BacktestConfig {
	cfg := DefaultConfig()
	cfg.InitialCapital = 100000
	cfg.TransactionCostBps = 5
	cfg.SlippageBps = 2
	cfg.MaxPositionSize = 1000
	return cfg
}

func TestSingleBuyCosts(t *testing.T) {
	e, err := New(scenarioConfig())
	if err != nil {
		t.Fatal(err)
	}
	res, err := e.Run([]signals.Signal{sig(1000, "BTC", 1, 0.5, 100)})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Trades) != 2 {
		t.Fatalf("got %d trades, want buy + liquidation", len(res.Trades))
	}
	buy := res.Trades[0]
	if buy.Side != TradeSideBuy || buy.Quantity != 500 || buy.Price != 100 {
		t.Fatalf("buy = %+v", buy)
	}
	if buy.TransactionCost != 25 || buy.Slippage != 10 {
		t.Fatalf("cost %v slippage %v, want 25 and 10", buy.TransactionCost, buy.Slippage)
	}
	if res.EquityCurve[0].Equity != 99965 {
		t.Fatalf("equity = %v, want 99965", res.EquityCurve[0].Equity)
	}
	liq := res.Trades[1]
	if !liq.Liquidation || liq.Side != TradeSideSell || liq.TransactionCost != 0 || liq.PnL != 0 {
		t.Fatalf("liquidation = %+v", liq)
	}
	last := res.EquityCurve[len(res.EquityCurve)-1]
	if last.Equity != 99965 {
		t.Fatalf("final equity = %v", last.Equity)
	}
	if math.Abs(res.Metrics.TotalReturn-(-35.0/100000)) > 1e-15 {
		t.Fatalf("total return = %v", res.Metrics.TotalReturn)
	}
	if res.ID == "" || res.Manifest == nil || res.Manifest.ResultID != res.ID {
		t.Fatalf("missing identity: %+v", res.Manifest)
	}
}

func TestDeadZoneAndSizing(t *testing.T) {
	cases := []struct {
		value, conf, want float64
	}{
		{0.15, 0.5, 0},
		{-0.19, 0.5, 0},
		{0.2, 0.5, 100},
		{-1, 1, -1000},
		{1, 1, 1000},
		{math.NaN(), 1, 0},
	}
	for _, c := range cases {
		if got := DefaultSize(c.value, c.conf, 1000); got != c.want {
			t.Fatalf("DefaultSize(%v,%v) = %v, want %v", c.value, c.conf, got, c.want)
		}
	}
}

func TestExecutionCrossesHalfSpread(t *testing.T) {
	s := sig(0, "X", 1, 1, 50)
	s.Features.EffectiveSpread = 0.2
	if got := MidCrossPrice(s, 50, TradeSideBuy); got != 50.1 {
		t.Fatalf("buy price = %v", got)
	}
	if got := MidCrossPrice(s, 50, TradeSideSell); got != 49.9 {
		t.Fatalf("sell price = %v", got)
	}
	for _, mid := range []float64{0, math.NaN(), math.Inf(1)} {
		if got := MidCrossPrice(s, mid, TradeSideBuy); got != 0 {
			t.Fatalf("price without mid %v = %v, want 0", mid, got)
		}
	}
	if got := PlaceholderPrice(sig(0, "X", 1, 1, 50), 50, TradeSideSell); got != LegacyPrice {
		t.Fatalf("placeholder price = %v", got)
	}
}

func TestDegenerateMidFillsAtLastMid(t *testing.T) {
	cfg := scenarioConfig()
	cfg.TransactionCostBps, cfg.SlippageBps = 0, 0
	e, _ := New(cfg)
	res, err := e.Run([]signals.Signal{
		sig(1, "BTC", 1, 1, 30000),
		sig(2, "BTC", 0, 1, 0),
		sig(3, "BTC", 1, 1, math.NaN()),
		sig(4, "BTC", 1, 1, 30000),
	})
	if err != nil {
		t.Fatal(err)
	}
	for _, tr := range res.Trades {
		if tr.Price != 30000 || tr.PnL != 0 {
			t.Fatalf("trade away from last mid: %+v", tr)
		}
	}
	if len(res.Trades) != 4 {
		t.Fatalf("got %d trades, want buy, sell, buy, liquidation", len(res.Trades))
	}
	if res.Metrics.TotalReturn != 0 {
		t.Fatalf("total return = %v", res.Metrics.TotalReturn)
	}
}

func TestNoMidSkipsFillUntilPriced(t *testing.T) {
	cfg := scenarioConfig()
	cfg.TransactionCostBps, cfg.SlippageBps = 0, 0
	e, _ := New(cfg)
	res, err := e.Run([]signals.Signal{
		sig(1, "BTC", 1, 1, 0),
		sig(2, "BTC", 1, 1, 25000),
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Trades) != 2 || res.Trades[0].Timestamp != 2 || res.Trades[0].Price != 25000 {
		t.Fatalf("trades = %+v", res.Trades)
	}
}

func TestRealizedPnlOnClose(t *testing.T) {
	cfg := scenarioConfig()
	cfg.TransactionCostBps, cfg.SlippageBps = 0, 0
	e, _ := New(cfg)
	res, err := e.Run([]signals.Signal{
		sig(1, "ETH", 1, 1, 100),   // long 1000 @ 100
		sig(2, "ETH", 0, 1, 110),   // flat @ 110: +10000
		sig(3, "ETH", -1, 1, 110),  // short 1000 @ 110
		sig(4, "ETH", 0.5, 1, 115), // long 500 @ 115: close short -5000, open 500
	})
	if err != nil {
		t.Fatal(err)
	}
	pnls := []float64{0, 10000, 0, -5000}
	for i, want := range pnls {
		if got := res.Trades[i].PnL; math.Abs(got-want) > 1e-6 {
			t.Fatalf("trade %d pnl = %v, want %v", i, got, want)
		}
	}
	liq := res.Trades[4]
	if !liq.Liquidation || liq.Quantity != 500 || liq.Price != 115 || liq.PnL != 0 {
		t.Fatalf("liquidation = %+v", liq)
	}
	final := res.EquityCurve[len(res.EquityCurve)-1].Equity
	if final != 105000 {
		t.Fatalf("final equity = %v, want 105000", final)
	}
	m := res.Metrics
	if m.WinRate != 0.2 || m.ProfitFactor != 2 || m.AvgTrade != 1000 {
		t.Fatalf("metrics = %+v", m)
	}
	// trips: 1->2, 3->4, 4->4 (liquidation)
	if m.AvgHoldingPeriodMs != 2.0/3.0 {
		t.Fatalf("avg holding = %v", m.AvgHoldingPeriodMs)
	}
}

func TestCostsReduceRealizedPnl(t *testing.T) {
	e, _ := New(scenarioConfig())
	res, err := e.Run([]signals.Signal{
		sig(1, "ETH", 1, 0.5, 100),
		sig(2, "ETH", 0, 1, 101),
	})
	if err != nil {
		t.Fatal(err)
	}
	close := res.Trades[1]
	// 500 * (101 - 100) - 500 * 101 * 7bps
	want := 500.0 - 500*101*0.0007
	if math.Abs(close.PnL-want) > 1e-9 {
		t.Fatalf("pnl = %v, want %v", close.PnL, want)
	}
	if len(res.Trades) != 2 {
		t.Fatalf("flat book should not liquidate, got %d trades", len(res.Trades))
	}
}

func TestDrawdownBoundsAndMaxMatchesCurve(t *testing.T) {
	rng := rand.New(rand.NewSource(9))
	var sigs []signals.Signal
	mid := 100.0
	for i := 0; i < 500; i++ {
		mid *= 1 + (rng.Float64()-0.5)*0.02
		sigs = append(sigs, sig(int64(i), "R", rng.Float64()*2-1, rng.Float64(), mid))
	}
	e, _ := New(DefaultConfig())
	res, err := e.Run(sigs)
	if err != nil {
		t.Fatal(err)
	}
	var worst float64
	for _, p := range res.EquityCurve {
		if p.Drawdown < 0 || p.Drawdown > 1 {
			t.Fatalf("drawdown %v out of range", p.Drawdown)
		}
		worst = math.Max(worst, p.Drawdown)
	}
	if res.Metrics.MaxDrawdown != worst {
		t.Fatalf("max drawdown %v != curve max %v", res.Metrics.MaxDrawdown, worst)
	}
}

func TestMonotoneCurveHasNoDrawdown(t *testing.T) {
	curve := []EquityPoint{{Equity: 100}, {Equity: 101}, {Equity: 105}, {Equity: 200}}
	if dd := MaxDrawdown(100, curve); dd != 0 {
		t.Fatalf("max drawdown = %v", dd)
	}
	m := ComputeMetrics(100, curve, nil, nil)
	if m.MaxDrawdown != 0 || m.CalmarRatio != 0 || m.SortinoRatio != 0 {
		t.Fatalf("metrics = %+v", m)
	}
	if m.TotalReturn != 1 {
		t.Fatalf("total return = %v", m.TotalReturn)
	}
}

func TestRatios(t *testing.T) {
	r := []float64{0.01, -0.02, 0.03, 0}
	mean := 0.005
	var v float64
	for _, x := range r {
		v += (x - mean) * (x - mean)
	}
	std := math.Sqrt(v / 4)
	if got := Sharpe(r); math.Abs(got-mean/std*math.Sqrt(252)) > 1e-12 {
		t.Fatalf("sharpe = %v", got)
	}
	down := math.Sqrt(0.0004 / 4)
	if got := Sortino(r); math.Abs(got-mean/down*math.Sqrt(252)) > 1e-9 {
		t.Fatalf("sortino = %v", got)
	}
	if Sharpe(nil) != 0 || Sortino(nil) != 0 || Sharpe([]float64{0.1, 0.1}) != 0 {
		t.Fatal("degenerate ratios should be 0")
	}
	if InformationRatio(r, r) != 0 {
		t.Fatal("returns equal to benchmark have no active risk")
	}
	if InformationRatio(r, []float64{0, 0, 0, 0}) != Sharpe(r) {
		t.Fatal("zero benchmark should reduce to sharpe")
	}
}

func TestInformationRatioNeedsBenchmark(t *testing.T) {
	sigs := []signals.Signal{sig(1, "A", 1, 1, 100), sig(2, "A", 0, 1, 101), sig(3, "A", 1, 1, 100), sig(4, "A", 0, 1, 99)}
	e, _ := New(DefaultConfig())
	res, _ := e.Run(sigs)
	if res.Metrics.InformationRatio != 0 {
		t.Fatalf("information ratio without benchmark = %v", res.Metrics.InformationRatio)
	}
	e, _ = New(DefaultConfig(), WithBenchmark([]float64{0, 0, 0, 0, 0}))
	res, _ = e.Run(sigs)
	if res.Metrics.InformationRatio != res.Metrics.SharpeRatio {
		t.Fatalf("ir %v != sharpe %v", res.Metrics.InformationRatio, res.Metrics.SharpeRatio)
	}
}

func TestRunIsDeterministicAndIsolated(t *testing.T) {
	var sigs []signals.Signal
	for i := 0; i < 100; i++ {
		sigs = append(sigs, sig(int64(100-i), "B", math.Sin(float64(i)), 0.8, 100+float64(i%7)))
		sigs = append(sigs, sig(int64(100-i), "A", math.Cos(float64(i)), 0.6, 50+float64(i%5)))
	}
	fixed := time.Unix(1700000000, 0)
	e, _ := New(DefaultConfig(), WithClock(func() time.Time { return fixed }))
	a, err := e.Run(sigs)
	if err != nil {
		t.Fatal(err)
	}
	b, _ := e.Run(sigs)
	if len(a.Trades) != len(b.Trades) || a.Metrics != b.Metrics {
		t.Fatal("runs differ")
	}
	for i := range a.Trades {
		if a.Trades[i] != b.Trades[i] {
			t.Fatalf("trade %d differs", i)
		}
	}
	if a.Manifest.SignalsHash != b.Manifest.SignalsHash || a.Manifest.ConfigHash != b.Manifest.ConfigHash {
		t.Fatal("manifests differ")
	}
	if a.ID == b.ID {
		t.Fatal("result ids should be unique")
	}
	if sigs[0].Timestamp != 100 {
		t.Fatal("input slice was reordered")
	}
}

func TestRunRejections(t *testing.T) {
	e, _ := New(DefaultConfig())
	if _, err := e.Run(nil); !errors.Is(err, ErrInsufficientData) {
		t.Fatalf("err = %v", err)
	}
	cfg := DefaultConfig()
	cfg.Symbols = []string{"ONLY"}
	e, _ = New(cfg)
	if _, err := e.Run([]signals.Signal{sig(1, "OTHER", 1, 1, 10)}); !errors.Is(err, ErrInsufficientData) {
		t.Fatalf("err = %v", err)
	}
	bad := []func(*BacktestConfig){
		func(c *BacktestConfig) { c.InitialCapital = -1 },
		func(c *BacktestConfig) { c.InitialCapital = math.NaN() },
		func(c *BacktestConfig) { c.TransactionCostBps = -1 },
		func(c *BacktestConfig) { c.SlippageBps = math.Inf(1) },
		func(c *BacktestConfig) { c.MaxPositionSize = 0 },
		func(c *BacktestConfig) { c.RebalanceFrequency = "hourly" },
		func(c *BacktestConfig) { c.ValidationWindow = -1 },
	}
	for i, mut := range bad {
		c := DefaultConfig()
		mut(&c)
		_, err := New(c)
		apiErr, ok := AsAPIError(err)
		if !ok || apiErr.Code != CodeInvalidConfig {
			t.Fatalf("case %d: err = %v", i, err)
		}
	}
}

func TestRebalanceGate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RebalanceFrequency = RebalanceSecond
	cfg.TransactionCostBps, cfg.SlippageBps = 0, 0
	e, _ := New(cfg)
	res, err := e.Run([]signals.Signal{
		sig(1000, "A", 1, 1, 10),
		sig(1500, "A", -1, 1, 10), // same second, ignored
		sig(2100, "A", -1, 1, 10),
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Trades) != 3 || res.Trades[1].Quantity != 2000 || res.Trades[1].Timestamp != 2100 {
		t.Fatalf("trades = %+v", res.Trades)
	}
}

func TestSkippedFillKeepsBucketOpen(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RebalanceFrequency = RebalanceSecond
	cfg.TransactionCostBps, cfg.SlippageBps = 0, 0
	e, _ := New(cfg)
	res, err := e.Run([]signals.Signal{
		sig(1000, "A", 1, 1, 0), // no usable mid yet
		sig(1500, "A", 1, 1, 10),
		sig(1800, "A", -1, 1, 10), // bucket spent by the fill at 1500
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Trades) != 2 || res.Trades[0].Timestamp != 1500 || res.Trades[0].Side != TradeSideBuy {
		t.Fatalf("trades = %+v", res.Trades)
	}
	if !res.Trades[1].Liquidation {
		t.Fatalf("second trade should be the liquidation: %+v", res.Trades[1])
	}
}

func TestOpposite(t *testing.T) {
	if TradeSideBuy.Opposite() != TradeSideSell || TradeSideSell.Opposite() != TradeSideBuy {
		t.Fatal("opposite sides")
	}
}

func TestPlanFolds(t *testing.T) {
	folds := PlanFolds(1000, 400, 200)
	if len(folds) != 3 {
		t.Fatalf("got %d folds", len(folds))
	}
	for i, f := range folds {
		if f.TestStart != f.TrainEnd || f.TestEnd-f.TestStart != 200 {
			t.Fatalf("fold %d malformed: %+v", i, f)
		}
		if i > 0 && f.TestStart != folds[i-1].TestEnd {
			t.Fatalf("test windows overlap or gap: %+v", f)
		}
	}
	if PlanFolds(10, 0, 5) != nil {
		t.Fatal("zero train window should plan nothing")
	}
}

func TestWalkForward(t *testing.T) {
	cfg := DefaultConfig()
	cfg.WalkForwardWindow, cfg.ValidationWindow = 100, 50
	var sigs []signals.Signal
	for i := 0; i < 300; i++ {
		s := sig(int64(i), "W", math.Sin(float64(i)/5), 0.9, 100+math.Sin(float64(i)/5))
		s.Features.VolumeImbalance = math.Sin(float64(i) / 5)
		sigs = append(sigs, s)
	}
	e, _ := New(cfg)
	rep, err := e.WalkForward(sigs, 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(rep.Folds) != 4 {
		t.Fatalf("got %d folds", len(rep.Folds))
	}
	for _, f := range rep.Folds {
		if len(f.SelectedFeatures) != 3 || f.Result == nil {
			t.Fatalf("fold = %+v", f)
		}
		if f.Result.Trades[0].Timestamp < int64(f.Fold.TestStart) {
			t.Fatal("validation run saw training signals")
		}
	}
	if _, err := e.WalkForward(sigs[:120], 3); !errors.Is(err, ErrInsufficientData) {
		t.Fatalf("err = %v", err)
	}
}
