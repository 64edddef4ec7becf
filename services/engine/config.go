package engine

// Run configuration and reproducibility manifest

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// EngineVersion is stamped into every manifest.
const EngineVersion = "1.0.0"

type BacktestConfig struct {
	StartTime          int64              `json:"start_time,omitempty" yaml:"-"`
	EndTime            int64              `json:"end_time,omitempty" yaml:"-"`
	Symbols            []string           `json:"symbols" yaml:"symbols"`
	InitialCapital     float64            `json:"initial_capital" yaml:"initial_capital"`
	TransactionCostBps float64            `json:"transaction_cost_bps" yaml:"transaction_cost_bps"`
	SlippageBps        float64            `json:"slippage_bps" yaml:"slippage_bps"`
	MaxPositionSize    float64            `json:"max_position_size" yaml:"max_position_size"`
	RebalanceFrequency RebalanceFrequency `json:"rebalance_frequency" yaml:"rebalance_frequency"`
	WalkForwardWindow  int                `json:"walk_forward_window" yaml:"walk_forward_window"`
	ValidationWindow   int                `json:"validation_window" yaml:"validation_window"`
}

func DefaultConfig() BacktestConfig {
	return BacktestConfig{
		InitialCapital:     100000,
		TransactionCostBps: 5,
		SlippageBps:        2,
		MaxPositionSize:    1000,
		RebalanceFrequency: RebalanceTick,
		WalkForwardWindow:  1000,
		ValidationWindow:   200,
	}
}

// Validate rejects configurations that cannot produce a meaningful run.
// The returned error is an *APIError with code INVALID_CONFIG.
func (c BacktestConfig) Validate() error {
	switch {
	case !positive(c.InitialCapital):
		return ErrInvalidConfig.WithDetails("initial_capital must be > 0, got %v", c.InitialCapital)
	case !nonNegative(c.TransactionCostBps):
		return ErrInvalidConfig.WithDetails("transaction_cost_bps must be >= 0, got %v", c.TransactionCostBps)
	case !nonNegative(c.SlippageBps):
		return ErrInvalidConfig.WithDetails("slippage_bps must be >= 0, got %v", c.SlippageBps)
	case !positive(c.MaxPositionSize):
		return ErrInvalidConfig.WithDetails("max_position_size must be > 0, got %v", c.MaxPositionSize)
	case c.WalkForwardWindow < 0 || c.ValidationWindow < 0:
		return ErrInvalidConfig.WithDetails("walk-forward windows must be >= 0")
	case c.EndTime != 0 && c.EndTime < c.StartTime:
		return ErrInvalidConfig.WithDetails("end_time before start_time")
	}
	if _, err := ParseRebalanceFrequency(string(c.RebalanceFrequency)); err != nil {
		return ErrInvalidConfig.WithDetails("%v", err)
	}
	return nil
}

// Fingerprint hashes the configuration's canonical JSON form.
func (c BacktestConfig) Fingerprint() string {
	b, _ := json.Marshal(c)
	return fmt.Sprintf("%x", sha256.Sum256(b))
}

// Manifest records what produced a result so it can be reproduced.
type Manifest struct {
	ResultID      string `json:"result_id"`
	ConfigHash    string `json:"config_hash"`
	SignalsHash   string `json:"signals_hash"`
	EngineVersion string `json:"engine_version"`
	SignalCount   int    `json:"signal_count"`
	CreatedAt     int64  `json:"created_at"`
}

func newManifest(id string, cfg BacktestConfig, sigsHash string, n int, now time.Time) *Manifest {
	return &Manifest{
		ResultID:      id,
		ConfigHash:    cfg.Fingerprint(),
		SignalsHash:   sigsHash,
		EngineVersion: EngineVersion,
		SignalCount:   n,
		CreatedAt:     now.UnixMilli(),
	}
}

func positive(v float64) bool    { return v > 0 && !math.IsInf(v, 0) }
func nonNegative(v float64) bool { return v >= 0 && !math.IsInf(v, 0) }
