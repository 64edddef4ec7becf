// Package config loads service configuration from YAML with LOBALPHA_*
// environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/johaankjis/Market-Microstructure-Alpha-Signal-Research/services/arrowpipeline"
	"github.com/johaankjis/Market-Microstructure-Alpha-Signal-Research/services/clickhouse"
	"github.com/johaankjis/Market-Microstructure-Alpha-Signal-Research/services/engine"
	"github.com/johaankjis/Market-Microstructure-Alpha-Signal-Research/services/monitoring"
	"github.com/johaankjis/Market-Microstructure-Alpha-Signal-Research/services/signals"
)

const EnvPrefix = "LOBALPHA_"

type Config struct {
	Environment string                `yaml:"environment"`
	Server      ServerConfig          `yaml:"server"`
	Engine      EngineConfig          `yaml:"engine"`
	Backtest    engine.BacktestConfig `yaml:"backtest"`
	Signals     SignalConfig          `yaml:"signals"`
	ClickHouse  clickhouse.Config     `yaml:"clickhouse"`
	Arrow       arrowpipeline.Config  `yaml:"arrow"`
	Monitoring  monitoring.Config     `yaml:"monitoring"`
	Log         LogConfig             `yaml:"log"`
}

type ServerConfig struct {
	HTTPPort int `yaml:"http_port"`
	GRPCPort int `yaml:"grpc_port"`
	// ShutdownTimeoutSec bounds graceful shutdown.
	ShutdownTimeoutSec int `yaml:"shutdown_timeout_sec"`
}

type EngineConfig struct {
	MaxWorkers int `yaml:"max_workers"`
}

type SignalConfig struct {
	Model          string                 `yaml:"model"`
	Regularization signals.Regularization `yaml:"regularization"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

func Default() Config {
	ch := clickhouse.DefaultConfig()
	// no server unless asked for
	ch.Addr = ""
	return Config{
		Environment: "development",
		Server:      ServerConfig{HTTPPort: 8080, GRPCPort: 9090, ShutdownTimeoutSec: 10},
		Engine:      EngineConfig{MaxWorkers: 0},
		Backtest:    engine.DefaultConfig(),
		Signals:     SignalConfig{Model: "default", Regularization: signals.DefaultRegularization()},
		ClickHouse:  ch,
		Arrow:       arrowpipeline.DefaultConfig(),
		Monitoring:  monitoring.Config{Namespace: "lobalpha"},
		Log:         LogConfig{Level: "info"},
	}
}

// Load reads path when it is non-empty, falling back to LOBALPHA_CONFIG,
// then applies environment overrides and validates.
func Load(path ...string) (*Config, error) {
	c := Default()
	p := ""
	if len(path) > 0 {
		p = path[0]
	}
	if p == "" {
		p = os.Getenv(EnvPrefix + "CONFIG")
	}
	if p != "" {
		f, err := os.Open(p)
		if err != nil {
			return nil, fmt.Errorf("open config: %w", err)
		}
		defer f.Close()
		if err := yaml.NewDecoder(f).Decode(&c); err != nil {
			return nil, fmt.Errorf("decode yaml: %w", err)
		}
	}
	c.applyEnv(EnvPrefix)
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) Validate() error {
	if c.Server.HTTPPort <= 0 || c.Server.GRPCPort <= 0 {
		return errors.New("server ports must be > 0")
	}
	if c.Server.HTTPPort == c.Server.GRPCPort {
		return fmt.Errorf("http and grpc share port %d", c.Server.HTTPPort)
	}
	if c.Engine.MaxWorkers < 0 {
		return errors.New("engine.max_workers must be >= 0")
	}
	if err := c.Backtest.Validate(); err != nil {
		return fmt.Errorf("backtest: %w", err)
	}
	if err := c.Signals.Regularization.Validate(); err != nil {
		return fmt.Errorf("signals: %w", err)
	}
	if _, err := zap.ParseAtomicLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	return nil
}

func (c *Config) applyEnv(prefix string) {
	c.Environment = pickStr(os.Getenv(prefix+"ENV"), c.Environment)
	c.Server.HTTPPort = pickInt(os.Getenv(prefix+"HTTP_PORT"), c.Server.HTTPPort)
	c.Server.GRPCPort = pickInt(os.Getenv(prefix+"GRPC_PORT"), c.Server.GRPCPort)
	c.Engine.MaxWorkers = pickInt(os.Getenv(prefix+"MAX_WORKERS"), c.Engine.MaxWorkers)

	c.Backtest.InitialCapital = pickFloat(os.Getenv(prefix+"INITIAL_CAPITAL"), c.Backtest.InitialCapital)
	c.Backtest.TransactionCostBps = pickFloat(os.Getenv(prefix+"TRANSACTION_COST_BPS"), c.Backtest.TransactionCostBps)
	c.Backtest.SlippageBps = pickFloat(os.Getenv(prefix+"SLIPPAGE_BPS"), c.Backtest.SlippageBps)
	c.Backtest.MaxPositionSize = pickFloat(os.Getenv(prefix+"MAX_POSITION_SIZE"), c.Backtest.MaxPositionSize)
	if v := strings.TrimSpace(os.Getenv(prefix + "REBALANCE_FREQUENCY")); v != "" {
		c.Backtest.RebalanceFrequency = engine.RebalanceFrequency(v)
	}
	if v := os.Getenv(prefix + "SYMBOLS"); v != "" {
		c.Backtest.Symbols = splitCSV(v)
	}

	if v := strings.TrimSpace(os.Getenv(prefix + "REGULARIZATION")); v != "" {
		m, err := signals.ParseMethod(v)
		if err != nil {
			// left as given so Validate reports it
			m = signals.Method(v)
		}
		c.Signals.Regularization.Method = m
	}
	c.Signals.Regularization.Alpha = pickFloat(os.Getenv(prefix+"ALPHA"), c.Signals.Regularization.Alpha)
	c.Signals.Regularization.L1Ratio = pickFloat(os.Getenv(prefix+"L1_RATIO"), c.Signals.Regularization.L1Ratio)

	c.ClickHouse.DSN = pickStr(os.Getenv(prefix+"CLICKHOUSE_DSN"), c.ClickHouse.DSN)
	c.ClickHouse.Addr = pickStr(os.Getenv(prefix+"CLICKHOUSE_ADDR"), c.ClickHouse.Addr)
	c.ClickHouse.Password = pickStr(os.Getenv(prefix+"CLICKHOUSE_PASSWORD"), c.ClickHouse.Password)

	c.Log.Level = pickStr(os.Getenv(prefix+"LOG_LEVEL"), c.Log.Level)
}

// NewLogger builds a development logger for debug and a production logger
// at the given level otherwise.
func NewLogger(level string) (*zap.Logger, error) {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, err
	}
	if lvl.Level() == zap.DebugLevel {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = lvl
	return cfg.Build()
}

func pickStr(env, cur string) string {
	if s := strings.TrimSpace(env); s != "" {
		return s
	}
	return cur
}

func pickInt(env string, cur int) int {
	if v, err := strconv.Atoi(strings.TrimSpace(env)); err == nil {
		return v
	}
	return cur
}

func pickFloat(env string, cur float64) float64 {
	if v, err := strconv.ParseFloat(strings.TrimSpace(env), 64); err == nil {
		return v
	}
	return cur
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
