// Package proto defines the lobalpha.v1 wire messages and the AlphaService
// gRPC contract. Messages travel as JSON through the codec registered in
// codec.go; money amounts are decimal strings.
package proto

type GenerateSignalsRequest struct {
	Symbol      string  `json:"symbol"`
	Method      string  `json:"method"`
	Alpha       float64 `json:"alpha"`
	L1Ratio     float64 `json:"l1_ratio"`
	MaxFeatures int32   `json:"max_features"`
	Model       string  `json:"model"`
	// Limit caps the signals echoed back; 0 returns only the count.
	Limit int32 `json:"limit"`
}

type Signal struct {
	Timestamp  int64   `json:"timestamp"`
	Symbol     string  `json:"symbol"`
	Value      float64 `json:"signal_value"`
	Confidence float64 `json:"confidence"`
	MidPrice   float64 `json:"mid_price"`
}

type GenerateSignalsResponse struct {
	Symbol  string    `json:"symbol"`
	Count   int32     `json:"count"`
	Signals []*Signal `json:"signals,omitempty"`
}

// BacktestRequest leaves zero-valued fields at the server defaults.
type BacktestRequest struct {
	Symbols            []string `json:"symbols"`
	StartTime          int64    `json:"start_time"`
	EndTime            int64    `json:"end_time"`
	InitialCapital     float64  `json:"initial_capital"`
	TransactionCostBps float64  `json:"transaction_cost_bps"`
	SlippageBps        float64  `json:"slippage_bps"`
	MaxPositionSize    float64  `json:"max_position_size"`
	RebalanceFrequency string   `json:"rebalance_frequency"`
}

type TradeSide int32

const (
	TradeSide_BUY  TradeSide = 0
	TradeSide_SELL TradeSide = 1
)

type ExecutedTrade struct {
	Timestamp  int64     `json:"timestamp"`
	Symbol     string    `json:"symbol"`
	Side       TradeSide `json:"side"`
	Quantity   string    `json:"quantity"`
	Price      string    `json:"price"`
	Pnl        string    `json:"pnl"`
	Fee        string    `json:"fee"`
	Slippage   string    `json:"slippage"`
	ReasonCode string    `json:"reason_code"`
}

type EquityPoint struct {
	Timestamp int64  `json:"timestamp"`
	Equity    string `json:"equity"`
	Drawdown  string `json:"drawdown"`
}

type Metrics struct {
	TotalReturn        float64 `json:"total_return"`
	SharpeRatio        float64 `json:"sharpe_ratio"`
	SortinoRatio       float64 `json:"sortino_ratio"`
	CalmarRatio        float64 `json:"calmar_ratio"`
	MaxDrawdown        float64 `json:"max_drawdown"`
	WinRate            float64 `json:"win_rate"`
	ProfitFactor       float64 `json:"profit_factor"`
	AvgTrade           float64 `json:"avg_trade"`
	TotalTrades        int32   `json:"total_trades"`
	AvgHoldingPeriodMs float64 `json:"avg_holding_period_ms"`
	InformationRatio   float64 `json:"information_ratio"`
}

type RunManifest struct {
	ResultId      string `json:"result_id"`
	ConfigHash    string `json:"config_hash"`
	SignalsHash   string `json:"signals_hash"`
	EngineVersion string `json:"engine_version"`
	SignalCount   int32  `json:"signal_count"`
	CreatedAt     int64  `json:"created_at"`
}

type SymbolResult struct {
	ResultId    string           `json:"result_id"`
	Symbol      string           `json:"symbol"`
	Metrics     *Metrics         `json:"metrics"`
	Trades      []*ExecutedTrade `json:"trades"`
	EquityCurve []*EquityPoint   `json:"equity_curve"`
	Manifest    *RunManifest     `json:"manifest"`
}

type BacktestResponse struct {
	JobId         string          `json:"job_id"`
	ExecutionTime int64           `json:"execution_time_ms"`
	SymbolResults []*SymbolResult `json:"symbol_results"`
}

type GetResultRequest struct {
	ResultId string `json:"result_id"`
}
