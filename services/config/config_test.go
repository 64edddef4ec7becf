package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/johaankjis/Market-Microstructure-Alpha-Signal-Research/services/engine"
	"github.com/johaankjis/Market-Microstructure-Alpha-Signal-Research/services/signals"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "lobalpha.yaml")
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestDefaultsValidate(t *testing.T) {
	c := Default()
	if err := c.Validate(); err != nil {
		t.Fatalf("defaults invalid: %v", err)
	}
	if c.ClickHouse.Enabled() {
		t.Fatal("clickhouse should be off by default")
	}
}

func TestLoadYAMLOverDefaults(t *testing.T) {
	p := writeConfig(t, `
server:
  http_port: 8181
backtest:
  transaction_cost_bps: 1.5
  rebalance_frequency: minute
signals:
  regularization:
    method: lasso
    alpha: 0.2
log:
  level: warn
`)
	c, err := Load(p)
	if err != nil {
		t.Fatal(err)
	}
	if c.Server.HTTPPort != 8181 || c.Server.GRPCPort != 9090 {
		t.Fatalf("server = %+v", c.Server)
	}
	if c.Backtest.TransactionCostBps != 1.5 || c.Backtest.InitialCapital != 100000 {
		t.Fatalf("backtest = %+v", c.Backtest)
	}
	if c.Backtest.RebalanceFrequency != engine.RebalanceMinute {
		t.Fatalf("rebalance = %q", c.Backtest.RebalanceFrequency)
	}
	if c.Signals.Regularization.Method != signals.MethodLasso || c.Signals.Regularization.L1Ratio != 0.5 {
		t.Fatalf("regularization = %+v", c.Signals.Regularization)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	p := writeConfig(t, "server:\n  http_port: 8181\n")
	t.Setenv("LOBALPHA_HTTP_PORT", "7000")
	t.Setenv("LOBALPHA_SYMBOLS", "BTCUSDT, ETHUSDT,")
	t.Setenv("LOBALPHA_REGULARIZATION", "Elastic_Net")
	t.Setenv("LOBALPHA_SLIPPAGE_BPS", "not-a-number")
	c, err := Load(p)
	if err != nil {
		t.Fatal(err)
	}
	if c.Server.HTTPPort != 7000 {
		t.Fatalf("http port = %d", c.Server.HTTPPort)
	}
	if len(c.Backtest.Symbols) != 2 || c.Backtest.Symbols[1] != "ETHUSDT" {
		t.Fatalf("symbols = %v", c.Backtest.Symbols)
	}
	if c.Signals.Regularization.Method != signals.MethodElasticNet {
		t.Fatalf("method = %q", c.Signals.Regularization.Method)
	}
	if c.Backtest.SlippageBps != 2 {
		t.Fatalf("unparseable override should be ignored, got %v", c.Backtest.SlippageBps)
	}
}

func TestValidateRejects(t *testing.T) {
	cases := map[string]func(*Config){
		"port clash": func(c *Config) { c.Server.GRPCPort = c.Server.HTTPPort },
		"workers":    func(c *Config) { c.Engine.MaxWorkers = -1 },
		"capital":    func(c *Config) { c.Backtest.InitialCapital = 0 },
		"method":     func(c *Config) { c.Signals.Regularization.Method = "lars" },
		"log level":  func(c *Config) { c.Log.Level = "loud" },
		"rebalance":  func(c *Config) { c.Backtest.RebalanceFrequency = "hourly" },
	}
	for name, mutate := range cases {
		c := Default()
		mutate(&c)
		if err := c.Validate(); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error")
	}
}

func TestNewLogger(t *testing.T) {
	for _, lvl := range []string{"debug", "info", "error"} {
		l, err := NewLogger(lvl)
		if err != nil || l == nil {
			t.Fatalf("%s: %v", lvl, err)
		}
	}
	if _, err := NewLogger("chatty"); err == nil {
		t.Fatal("expected error for unknown level")
	}
}
