package monitoring

import (
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestMetricsRegistered(t *testing.T) {
	m, err := NewMetrics(Config{})
	if err != nil {
		t.Fatal(err)
	}
	m.ObserveSnapshots("BTCUSDT", 3)
	m.ObserveSignals("BTCUSDT", "lasso", 2)
	m.ObserveBacktest(time.Now(), nil)
	m.ObserveBacktest(time.Now(), errors.New("boom"))

	mfs, err := m.Registry().Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	want := map[string]bool{
		"lobalpha_snapshots_ingested_total":  false,
		"lobalpha_signals_generated_total":   false,
		"lobalpha_backtests_total":           false,
		"lobalpha_backtest_duration_seconds": false,
	}
	for _, mf := range mfs {
		if _, ok := want[mf.GetName()]; ok {
			want[mf.GetName()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Fatalf("%s not registered", name)
		}
	}
}

func TestHandlerServesText(t *testing.T) {
	m := MustNew(Config{Namespace: "test"})
	m.ObserveSnapshots("ETH", 1)
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), `test_snapshots_ingested_total{symbol="ETH"} 1`) {
		t.Fatalf("unexpected body:\n%s", body)
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveSnapshots("X", 1)
	m.ObserveSignals("X", "ridge", 1)
	m.ObserveBacktest(time.Now(), nil)
}

func TestSeparateRegistries(t *testing.T) {
	if _, err := NewMetrics(Config{}); err != nil {
		t.Fatal(err)
	}
	if _, err := NewMetrics(Config{}); err != nil {
		t.Fatalf("second instance should not collide: %v", err)
	}
}
