package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/johaankjis/Market-Microstructure-Alpha-Signal-Research/services/engine"
	"github.com/johaankjis/Market-Microstructure-Alpha-Signal-Research/services/lob"
	"github.com/johaankjis/Market-Microstructure-Alpha-Signal-Research/services/signals"
)

func (s *Server) handleUploadSnapshots(c *gin.Context) {
	snaps, err := lob.ParseCSV(c.Request.Body)
	if err != nil {
		if errors.Is(err, lob.ErrNoSnapshots) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": gin.H{"code": engine.CodeInsufficientData, "message": err.Error()}})
			return
		}
		badRequest(c, err)
		return
	}
	counts := s.svc.Ingest(snaps)
	c.JSON(http.StatusCreated, gin.H{"symbols": counts, "total": len(snaps)})
}

func (s *Server) handleSymbols(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"symbols": s.svc.Store.Symbols()})
}

func (s *Server) handleSummary(c *gin.Context) {
	symbol := c.Param("symbol")
	snaps := s.svc.Store.Snapshots(symbol)
	if len(snaps) == 0 {
		s.writeError(c, engine.ErrNotFound.WithDetails("no snapshots for %s", symbol))
		return
	}
	step := s.defaults.SnapshotStepMs
	if v := c.Query("step_ms"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			badRequest(c, err)
			return
		}
		step = n
	}
	c.JSON(http.StatusOK, lob.Summarize(snaps, step)[0])
}

type generateRequest struct {
	Symbol string `json:"symbol"`
	Model  string `json:"model"`
	signals.Regularization
	Limit int `json:"limit"`
}

func (s *Server) handleGenerateSignals(c *gin.Context) {
	req := generateRequest{Regularization: s.defaults.Regularization, Model: s.defaults.Model}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if req.Method != "" {
		m, err := signals.ParseMethod(string(req.Method))
		if err != nil {
			s.writeError(c, engine.ErrInvalidConfig.WithDetails("%v", err))
			return
		}
		req.Method = m
	}
	sigs, err := s.svc.GenerateSignals(c.Request.Context(), req.Symbol, req.Regularization, req.Model)
	if err != nil {
		s.writeError(c, err)
		return
	}
	gen, _ := signals.NewGenerator(req.Regularization)
	c.JSON(http.StatusCreated, gin.H{
		"symbol":         req.Symbol,
		"count":          len(sigs),
		"regularization": req.Regularization,
		"weights":        gen.Weights().Map(),
		"signals":        head(sigs, req.Limit),
	})
}

func (s *Server) handleListSignals(c *gin.Context) {
	sigs := s.svc.Store.Signals(c.Param("symbol"))
	limit, err := queryInt(c, "limit", 0)
	if err != nil {
		badRequest(c, err)
		return
	}
	if limit > 0 {
		sigs = head(sigs, limit)
	}
	c.JSON(http.StatusOK, gin.H{"symbol": c.Param("symbol"), "count": len(sigs), "signals": sigs})
}

func (s *Server) handleSignalsArrow(c *gin.Context) {
	symbol := c.Param("symbol")
	sigs := s.svc.Store.Signals(symbol)
	if len(sigs) == 0 {
		s.writeError(c, engine.ErrNotFound.WithDetails("no signals for %s", symbol))
		return
	}
	data, err := s.arrow.EncodeSignals(sigs)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.Data(http.StatusOK, "application/vnd.apache.arrow.stream", data)
}

func (s *Server) handleImportance(c *gin.Context) {
	symbol := c.Param("symbol")
	sigs := s.svc.Store.Signals(symbol)
	if len(sigs) == 0 {
		s.writeError(c, engine.ErrNotFound.WithDetails("no signals for %s", symbol))
		return
	}
	features, returns := signals.ForwardReturns(sigs, 1)
	ranked, err := signals.RankFeatures(features, returns)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"symbol":      symbol,
		"importance":  signals.Importance(sigs),
		"correlation": ranked,
	})
}

type backtestRequest struct {
	Symbol string `json:"symbol"`
	engine.BacktestConfig
	MaxFeatures int `json:"max_features"`
}

func (s *Server) bindBacktest(c *gin.Context) (backtestRequest, bool) {
	req := backtestRequest{BacktestConfig: s.defaults.Backtest}
	req.BacktestConfig.Symbols = nil
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return req, false
	}
	return req, true
}

// handleRunBacktest runs a single symbol, or every listed symbol in
// parallel when "symbols" is given instead.
func (s *Server) handleRunBacktest(c *gin.Context) {
	req, ok := s.bindBacktest(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	if req.Symbol == "" && len(req.Symbols) > 0 {
		symbols := req.Symbols
		req.BacktestConfig.Symbols = nil
		results, err := s.svc.RunAll(ctx, req.BacktestConfig, symbols)
		if err != nil {
			s.writeError(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"results": results})
		return
	}
	res, err := s.svc.RunBacktest(ctx, req.BacktestConfig, req.Symbol)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

func (s *Server) handleWalkForward(c *gin.Context) {
	req, ok := s.bindBacktest(c)
	if !ok {
		return
	}
	rep, err := s.svc.WalkForward(c.Request.Context(), req.BacktestConfig, req.Symbol, req.MaxFeatures)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, rep)
}

type backtestSummary struct {
	ID        string         `json:"id"`
	Symbols   []string       `json:"symbols"`
	Metrics   engine.Metrics `json:"metrics"`
	Trades    int            `json:"trades"`
	CreatedAt time.Time      `json:"created_at"`
}

func (s *Server) handleListBacktests(c *gin.Context) {
	results := s.svc.Store.Results()
	out := make([]backtestSummary, len(results))
	for i, r := range results {
		out[i] = backtestSummary{
			ID:        r.ID,
			Symbols:   r.Config.Symbols,
			Metrics:   r.Metrics,
			Trades:    len(r.Trades),
			CreatedAt: r.CreatedAt,
		}
	}
	c.JSON(http.StatusOK, gin.H{"backtests": out})
}

func (s *Server) handleGetBacktest(c *gin.Context) {
	res, err := s.svc.Store.Result(c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) handleTradesCSV(c *gin.Context) {
	res, err := s.svc.Store.Result(c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.Header("Content-Type", "text/csv")
	c.Status(http.StatusOK)
	if err := engine.WriteTradesCSV(c.Writer, res.Trades); err != nil {
		_ = c.Error(err)
	}
}

func (s *Server) handleEquityCSV(c *gin.Context) {
	res, err := s.svc.Store.Result(c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.Header("Content-Type", "text/csv")
	c.Status(http.StatusOK)
	if err := engine.WriteEquityCSV(c.Writer, res.EquityCurve); err != nil {
		_ = c.Error(err)
	}
}

func (s *Server) handleStats(c *gin.Context) {
	c.JSON(http.StatusOK, s.svc.Store.Stats())
}

func (s *Server) handleClear(c *gin.Context) {
	s.svc.Store.Clear()
	c.Status(http.StatusNoContent)
}

func (s *Server) handleHealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":         "healthy",
		"timestamp":      time.Now().Unix(),
		"uptime_seconds": int64(time.Since(s.started).Seconds()),
		"version":        Version,
	})
}

func head(sigs []signals.Signal, n int) []signals.Signal {
	if n <= 0 {
		return []signals.Signal{}
	}
	if n < len(sigs) {
		return sigs[:n]
	}
	return sigs
}

func queryInt(c *gin.Context, key string, def int) (int, error) {
	v := c.Query(key)
	if v == "" {
		return def, nil
	}
	return strconv.Atoi(v)
}
