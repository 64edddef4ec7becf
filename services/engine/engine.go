// Package engine simulates trading on alpha signals with bps costs and
// computes performance metrics over the resulting equity curve.
package engine

import (
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/johaankjis/Market-Microstructure-Alpha-Signal-Research/services/signals"
)

type Trade struct {
	Timestamp       int64     `json:"timestamp"`
	Symbol          string    `json:"symbol"`
	Side            TradeSide `json:"side"`
	Quantity        float64   `json:"quantity"`
	Price           float64   `json:"price"`
	PnL             float64   `json:"pnl"`
	TransactionCost float64   `json:"transaction_cost"`
	Slippage        float64   `json:"slippage"`
	Liquidation     bool      `json:"liquidation,omitempty"`
}

type EquityPoint struct {
	Timestamp int64   `json:"timestamp"`
	Equity    float64 `json:"equity"`
	Drawdown  float64 `json:"drawdown"`
}

type Result struct {
	ID          string         `json:"id"`
	Config      BacktestConfig `json:"config"`
	Metrics     Metrics        `json:"metrics"`
	Trades      []Trade        `json:"trades"`
	EquityCurve []EquityPoint  `json:"equity_curve"`
	Manifest    *Manifest      `json:"manifest"`
	CreatedAt   time.Time      `json:"created_at"`
}

// Engine runs backtests for one configuration. It holds no run state, so
// one Engine may serve concurrent Run calls.
type Engine struct {
	cfg       BacktestConfig
	policy    Policy
	logger    *zap.Logger
	benchmark []float64
	now       func() time.Time
}

type Option func(*Engine)

func WithPolicy(p Policy) Option {
	return func(e *Engine) {
		if p.Size != nil {
			e.policy.Size = p.Size
		}
		if p.Price != nil {
			e.policy.Price = p.Price
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithBenchmark supplies per-step benchmark returns for the information
// ratio. Without one the ratio is reported as 0.
func WithBenchmark(returns []float64) Option {
	return func(e *Engine) { e.benchmark = append([]float64(nil), returns...) }
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// New validates cfg and returns an engine for it.
func New(cfg BacktestConfig, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.RebalanceFrequency == "" {
		cfg.RebalanceFrequency = RebalanceTick
	}
	e := &Engine{
		cfg:    cfg,
		policy: DefaultPolicy(),
		logger: zap.NewNop(),
		now:    time.Now,
	}
	for _, o := range opts {
		o(e)
	}
	return e, nil
}

func (e *Engine) Config() BacktestConfig { return e.cfg }

// Run simulates sigs in timestamp order and closes every open position
// after the last one. Equal timestamps keep their input order.
func (e *Engine) Run(sigs []signals.Signal) (*Result, error) {
	ordered := e.selectSignals(sigs)
	if len(ordered) == 0 {
		return nil, ErrInsufficientData.WithDetails("no signals to backtest")
	}
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Timestamp < ordered[j].Timestamp })

	r := newRun(e.cfg, e.policy, e.logger)
	for _, s := range ordered {
		r.step(s)
	}
	r.liquidate(ordered[len(ordered)-1].Timestamp)

	now := e.now()
	res := &Result{
		ID:          uuid.NewString(),
		Config:      e.cfg,
		Trades:      r.trades,
		EquityCurve: r.curve,
		CreatedAt:   now,
	}
	res.Metrics = ComputeMetrics(e.cfg.InitialCapital, r.curve, r.trades, e.benchmark)
	res.Manifest = newManifest(res.ID, e.cfg, hashSignals(ordered), len(ordered), now)

	e.logger.Info("Backtest completed",
		zap.String("result_id", res.ID),
		zap.Int("signals", len(ordered)),
		zap.Int("trades", len(res.Trades)),
		zap.Float64("total_return", res.Metrics.TotalReturn),
		zap.Float64("sharpe", res.Metrics.SharpeRatio),
		zap.Float64("max_drawdown", res.Metrics.MaxDrawdown),
	)
	return res, nil
}

// run is the exclusive state of one Run call.
type run struct {
	cfg    BacktestConfig
	policy Policy
	logger *zap.Logger

	equity  decimal.Decimal
	peak    float64
	book    map[string]*AccountPosition
	symbols []string
	lastMid map[string]float64
	gate    *gate

	trades []Trade
	curve  []EquityPoint
}

func newRun(cfg BacktestConfig, p Policy, logger *zap.Logger) *run {
	return &run{
		cfg:     cfg,
		policy:  p,
		logger:  logger,
		equity:  decimal.NewFromFloat(cfg.InitialCapital),
		peak:    cfg.InitialCapital,
		book:    make(map[string]*AccountPosition),
		lastMid: make(map[string]float64),
		gate:    newGate(cfg.RebalanceFrequency),
	}
}

func (r *run) position(symbol string) *AccountPosition {
	p, ok := r.book[symbol]
	if !ok {
		p = &AccountPosition{}
		r.book[symbol] = p
		r.symbols = append(r.symbols, symbol)
	}
	return p
}

func (r *run) step(sig signals.Signal) {
	if usablePrice(sig.MidPrice) {
		r.lastMid[sig.Symbol] = sig.MidPrice
	}
	if !r.gate.open(sig.Symbol, sig.Timestamp) {
		return
	}
	pos := r.position(sig.Symbol)
	current := pos.Signed()
	target := r.policy.Size(sig.Value, sig.Confidence, r.cfg.MaxPositionSize)
	if math.IsNaN(target) || math.IsInf(target, 0) {
		target = 0
	}
	if target == current {
		return
	}

	qty := absf(target - current)
	side := TradeSideBuy
	if target < current {
		side = TradeSideSell
	}
	price := r.policy.Price(sig, r.lastMid[sig.Symbol], side)
	if !usablePrice(price) {
		r.logger.Warn("Skipping fill without usable price",
			zap.String("symbol", sig.Symbol),
			zap.Int64("timestamp", sig.Timestamp),
			zap.Float64("price", price),
		)
		return
	}

	cost, slip := tradeCosts(qty, price, r.cfg.TransactionCostBps, r.cfg.SlippageBps)
	reducing := current != 0 && (side == TradeSideSell) == (current > 0)
	realized := pos.ApplyFill(sig.Timestamp, side, price, qty)
	pos.snapTo(target)

	net := decimal.NewFromFloat(realized).Sub(cost).Sub(slip)
	r.equity = r.equity.Add(net)

	pnl := 0.0
	if reducing {
		pnl = net.InexactFloat64()
	}
	r.trades = append(r.trades, Trade{
		Timestamp:       sig.Timestamp,
		Symbol:          sig.Symbol,
		Side:            side,
		Quantity:        qty,
		Price:           price,
		PnL:             pnl,
		TransactionCost: cost.InexactFloat64(),
		Slippage:        slip.InexactFloat64(),
	})
	r.gate.commit(sig.Symbol, sig.Timestamp)
	r.mark(sig.Timestamp)
}

// liquidate closes every open position at the symbol's last mid without
// costs.
func (r *run) liquidate(ts int64) {
	for _, sym := range r.symbols {
		pos := r.book[sym]
		if pos.Quantity == 0 {
			continue
		}
		held := TradeSideBuy
		if pos.Side == SideShort {
			held = TradeSideSell
		}
		side := held.Opposite()
		price, ok := r.lastMid[sym]
		if !ok {
			price = pos.AvgPrice
		}
		qty := pos.Quantity
		realized := pos.ApplyFill(ts, side, price, qty)
		pos.snapTo(0)
		r.equity = r.equity.Add(decimal.NewFromFloat(realized))
		r.trades = append(r.trades, Trade{
			Timestamp:   ts,
			Symbol:      sym,
			Side:        side,
			Quantity:    qty,
			Price:       price,
			PnL:         realized,
			Liquidation: true,
		})
		r.mark(ts)
	}
}

func (r *run) mark(ts int64) {
	eq := r.equity.InexactFloat64()
	if eq > r.peak {
		r.peak = eq
	}
	r.curve = append(r.curve, EquityPoint{Timestamp: ts, Equity: eq, Drawdown: drawdown(r.peak, eq)})
}

func drawdown(peak, equity float64) float64 {
	if peak <= 0 {
		return 0
	}
	dd := (peak - equity) / peak
	return math.Min(math.Max(dd, 0), 1)
}

var bps = decimal.NewFromInt(10_000)

// tradeCosts returns the commission and slippage of a fill, each
// notional x bps / 10000.
func tradeCosts(qty, price, costBps, slipBps float64) (cost, slip decimal.Decimal) {
	notional := decimal.NewFromFloat(qty).Mul(decimal.NewFromFloat(price))
	cost = notional.Mul(decimal.NewFromFloat(costBps)).Div(bps)
	slip = notional.Mul(decimal.NewFromFloat(slipBps)).Div(bps)
	return cost, slip
}

func (e *Engine) selectSignals(sigs []signals.Signal) []signals.Signal {
	var allowed map[string]bool
	if len(e.cfg.Symbols) > 0 {
		allowed = make(map[string]bool, len(e.cfg.Symbols))
		for _, s := range e.cfg.Symbols {
			allowed[s] = true
		}
	}
	out := make([]signals.Signal, 0, len(sigs))
	for _, s := range sigs {
		if allowed != nil && !allowed[s.Symbol] {
			continue
		}
		if e.cfg.StartTime != 0 && s.Timestamp < e.cfg.StartTime {
			continue
		}
		if e.cfg.EndTime != 0 && s.Timestamp > e.cfg.EndTime {
			continue
		}
		out = append(out, s)
	}
	return out
}
