package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	pb "github.com/johaankjis/Market-Microstructure-Alpha-Signal-Research/proto"
	"github.com/johaankjis/Market-Microstructure-Alpha-Signal-Research/services/arrowpipeline"
	"github.com/johaankjis/Market-Microstructure-Alpha-Signal-Research/services/engine"
	"github.com/johaankjis/Market-Microstructure-Alpha-Signal-Research/services/lob"
	"github.com/johaankjis/Market-Microstructure-Alpha-Signal-Research/services/monitoring"
	"github.com/johaankjis/Market-Microstructure-Alpha-Signal-Research/services/pipeline"
	"github.com/johaankjis/Market-Microstructure-Alpha-Signal-Research/services/signals"
	"github.com/johaankjis/Market-Microstructure-Alpha-Signal-Research/services/store"
)

func init() { gin.SetMode(gin.TestMode) }

func bookCSV(t *testing.T, symbol string, n int) []byte {
	t.Helper()
	rng := rand.New(rand.NewSource(int64(len(symbol) + n)))
	snaps := make([]lob.Snapshot, n)
	mid := 50.0
	for i := range snaps {
		mid += (rng.Float64() - 0.5) * 0.1
		s := lob.Snapshot{Timestamp: int64(i) * 100, Symbol: symbol, MidPrice: mid, Spread: 0.02}
		for l := 0; l < lob.Depth; l++ {
			s.BidPrices[l] = mid - 0.01*float64(l+1)
			s.AskPrices[l] = mid + 0.01*float64(l+1)
			s.BidSizes[l] = 1 + rng.Float64()*5
			s.AskSizes[l] = 1 + rng.Float64()*5
		}
		snaps[i] = s
	}
	var buf bytes.Buffer
	if err := lob.WriteCSV(&buf, snaps); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func newTestServer(t *testing.T) (*Server, *gin.Engine) {
	t.Helper()
	m, err := monitoring.NewMetrics(monitoring.Config{})
	if err != nil {
		t.Fatal(err)
	}
	svc := pipeline.New(store.NewMemory(), nil, m)
	s := NewServer(svc, WithMetrics(m))
	return s, s.Router()
}

func do(r http.Handler, method, path string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if method == http.MethodPost && len(body) > 0 && body[0] == '{' {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
}

func TestFullRESTFlow(t *testing.T) {
	_, r := newTestServer(t)

	rec := do(r, http.MethodPost, "/api/v1/snapshots", bookCSV(t, "BTCUSDT", 150))
	if rec.Code != http.StatusCreated {
		t.Fatalf("upload: %d %s", rec.Code, rec.Body)
	}

	rec = do(r, http.MethodGet, "/api/v1/symbols", nil)
	var syms struct{ Symbols []string }
	decode(t, rec, &syms)
	if len(syms.Symbols) != 1 || syms.Symbols[0] != "BTCUSDT" {
		t.Fatalf("symbols = %v", syms.Symbols)
	}

	rec = do(r, http.MethodGet, "/api/v1/symbols/BTCUSDT/summary", nil)
	var sum lob.Summary
	decode(t, rec, &sum)
	if sum.Count != 150 {
		t.Fatalf("summary = %+v", sum)
	}

	rec = do(r, http.MethodPost, "/api/v1/signals", []byte(`{"symbol":"BTCUSDT","method":"ridge","alpha":0.5,"limit":3}`))
	if rec.Code != http.StatusCreated {
		t.Fatalf("signals: %d %s", rec.Code, rec.Body)
	}
	var gen struct {
		Count   int
		Signals []json.RawMessage
	}
	decode(t, rec, &gen)
	if gen.Count != 100 || len(gen.Signals) != 3 {
		t.Fatalf("generate = %d signals, %d echoed", gen.Count, len(gen.Signals))
	}

	rec = do(r, http.MethodGet, "/api/v1/signals/BTCUSDT/arrow", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("arrow: %d", rec.Code)
	}
	back, err := arrowpipeline.NewPipeline(arrowpipeline.Config{}).DecodeSignals(rec.Body.Bytes())
	if err != nil || len(back) != 100 {
		t.Fatalf("arrow decode: %d, %v", len(back), err)
	}

	rec = do(r, http.MethodPost, "/api/v1/backtests", []byte(`{"symbol":"BTCUSDT","transaction_cost_bps":1}`))
	if rec.Code != http.StatusCreated {
		t.Fatalf("backtest: %d %s", rec.Code, rec.Body)
	}
	var res engine.Result
	decode(t, rec, &res)
	if res.ID == "" || res.Config.TransactionCostBps != 1 || res.Config.InitialCapital != 100000 {
		t.Fatalf("result config = %+v", res.Config)
	}

	rec = do(r, http.MethodGet, "/api/v1/backtests/"+res.ID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get: %d", rec.Code)
	}
	rec = do(r, http.MethodGet, "/api/v1/backtests/"+res.ID+"/trades.csv", nil)
	if rec.Code != http.StatusOK || !strings.HasPrefix(rec.Body.String(), "timestamp,symbol,side") {
		t.Fatalf("trades csv: %d %q", rec.Code, rec.Body.String())
	}

	rec = do(r, http.MethodGet, "/api/v1/stats", nil)
	var st store.Stats
	decode(t, rec, &st)
	if st.TotalSnapshots != 150 || st.TotalSignals != 100 || st.TotalBacktests != 1 {
		t.Fatalf("stats = %+v", st)
	}

	rec = do(r, http.MethodGet, "/metrics", nil)
	if !strings.Contains(rec.Body.String(), "lobalpha_backtests_total") {
		t.Fatal("metrics endpoint missing counters")
	}

	if rec = do(r, http.MethodDelete, "/api/v1/data", nil); rec.Code != http.StatusNoContent {
		t.Fatalf("clear: %d", rec.Code)
	}
	rec = do(r, http.MethodGet, "/api/v1/stats", nil)
	decode(t, rec, &st)
	if st != (store.Stats{}) {
		t.Fatalf("after clear = %+v", st)
	}
}

func TestRESTErrorStatuses(t *testing.T) {
	_, r := newTestServer(t)
	cases := []struct {
		method, path string
		body         string
		want         int
	}{
		{http.MethodPost, "/api/v1/snapshots", strings.Join(lob.Columns, ",") + "\n", http.StatusUnprocessableEntity},
		{http.MethodPost, "/api/v1/snapshots", "timestamp,symbol\n", http.StatusBadRequest},
		{http.MethodPost, "/api/v1/signals", `{"symbol":""}`, http.StatusBadRequest},
		{http.MethodPost, "/api/v1/signals", `{"symbol":"X","method":"lars"}`, http.StatusBadRequest},
		{http.MethodPost, "/api/v1/signals", `not json`, http.StatusBadRequest},
		{http.MethodPost, "/api/v1/backtests", `{"symbol":"X"}`, http.StatusUnprocessableEntity},
		{http.MethodPost, "/api/v1/backtests", `{"symbol":""}`, http.StatusBadRequest},
		{http.MethodGet, "/api/v1/backtests/missing", "", http.StatusNotFound},
		{http.MethodGet, "/api/v1/symbols/X/summary", "", http.StatusNotFound},
		{http.MethodGet, "/api/v1/signals/X/arrow", "", http.StatusNotFound},
	}
	for _, c := range cases {
		rec := do(r, c.method, c.path, []byte(c.body))
		if rec.Code != c.want {
			t.Fatalf("%s %s %q: got %d want %d (%s)", c.method, c.path, c.body, rec.Code, c.want, rec.Body)
		}
	}
}

func TestShortHistoryIsUnprocessable(t *testing.T) {
	_, r := newTestServer(t)
	do(r, http.MethodPost, "/api/v1/snapshots", bookCSV(t, "ETH", 40))
	rec := do(r, http.MethodPost, "/api/v1/signals", []byte(`{"symbol":"ETH"}`))
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("got %d", rec.Code)
	}
	var body struct {
		Error engine.APIError
	}
	decode(t, rec, &body)
	if body.Error.Code != engine.CodeInsufficientData {
		t.Fatalf("code = %q", body.Error.Code)
	}
}

func TestHealth(t *testing.T) {
	_, r := newTestServer(t)
	rec := do(r, http.MethodGet, "/api/v1/health", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"healthy"`) {
		t.Fatalf("health: %d %s", rec.Code, rec.Body)
	}
}

func dialBufconn(t *testing.T, s *Server) pb.AlphaServiceClient {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	gs := grpc.NewServer()
	pb.RegisterAlphaServiceServer(gs, s.GRPC())
	go func() { _ = gs.Serve(lis) }()
	t.Cleanup(gs.Stop)

	conn, err := grpc.DialContext(context.Background(), "bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { conn.Close() })
	return pb.NewAlphaServiceClient(conn)
}

func TestGRPCRoundTrip(t *testing.T) {
	s, r := newTestServer(t)
	do(r, http.MethodPost, "/api/v1/snapshots", bookCSV(t, "SOL", 120))
	do(r, http.MethodPost, "/api/v1/snapshots", bookCSV(t, "ADA", 110))
	client := dialBufconn(t, s)
	ctx := context.Background()

	for _, sym := range []string{"SOL", "ADA"} {
		resp, err := client.GenerateSignals(ctx, &pb.GenerateSignalsRequest{Symbol: sym, Method: "lasso", Alpha: 0.05, Limit: 2})
		if err != nil {
			t.Fatal(err)
		}
		if len(resp.Signals) != 2 {
			t.Fatalf("%s echoed %d signals", sym, len(resp.Signals))
		}
	}
	bt, err := client.RunBacktest(ctx, &pb.BacktestRequest{Symbols: []string{"SOL", "ADA"}, SlippageBps: 1})
	if err != nil {
		t.Fatal(err)
	}
	if len(bt.SymbolResults) != 2 || bt.SymbolResults[0].Symbol != "SOL" || bt.SymbolResults[1].Symbol != "ADA" {
		t.Fatalf("results = %+v", bt.SymbolResults)
	}
	got, err := client.GetResult(ctx, &pb.GetResultRequest{ResultId: bt.SymbolResults[1].ResultId})
	if err != nil {
		t.Fatal(err)
	}
	if got.Manifest.SignalCount != 60 || got.Metrics == nil {
		t.Fatalf("get result = %+v", got.Manifest)
	}
}

func TestGRPCErrorCodes(t *testing.T) {
	s, _ := newTestServer(t)
	client := dialBufconn(t, s)
	ctx := context.Background()

	_, err := client.GetResult(ctx, &pb.GetResultRequest{ResultId: "nope"})
	if status.Code(err) != codes.NotFound {
		t.Fatalf("get: %v", err)
	}
	_, err = client.RunBacktest(ctx, &pb.BacktestRequest{})
	if status.Code(err) != codes.InvalidArgument {
		t.Fatalf("no symbols: %v", err)
	}
	_, err = client.RunBacktest(ctx, &pb.BacktestRequest{Symbols: []string{"X"}})
	if status.Code(err) != codes.FailedPrecondition {
		t.Fatalf("no signals: %v", err)
	}
	_, err = client.GenerateSignals(ctx, &pb.GenerateSignalsRequest{Symbol: "X", Method: "lars"})
	if status.Code(err) != codes.InvalidArgument {
		t.Fatalf("bad method: %v", err)
	}
}

func TestRegularizationFromGRPCRequest(t *testing.T) {
	s, _ := newTestServer(t)
	reg, err := s.regularizationFrom(&pb.GenerateSignalsRequest{Method: "elastic-net", Alpha: 0.2})
	if err != nil {
		t.Fatal(err)
	}
	if reg.Method != signals.MethodElasticNet || reg.Alpha != 0.2 || reg.L1Ratio != 0.5 {
		t.Fatalf("reg = %+v", reg)
	}
	reg, _ = s.regularizationFrom(&pb.GenerateSignalsRequest{Method: "elastic-net", Alpha: 0.2, L1Ratio: 0.8})
	if reg.L1Ratio != 0.8 {
		t.Fatalf("explicit ratio lost: %+v", reg)
	}
	reg, _ = s.regularizationFrom(&pb.GenerateSignalsRequest{Method: "ridge", Alpha: 0.2})
	if reg.L1Ratio != 0 {
		t.Fatalf("ridge ratio = %v", reg.L1Ratio)
	}
	if _, err := s.regularizationFrom(&pb.GenerateSignalsRequest{Method: "lars"}); !errors.Is(err, engine.ErrInvalidConfig) {
		t.Fatalf("err = %v", err)
	}
}
