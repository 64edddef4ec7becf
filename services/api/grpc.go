package api

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	pb "github.com/johaankjis/Market-Microstructure-Alpha-Signal-Research/proto"
	"github.com/johaankjis/Market-Microstructure-Alpha-Signal-Research/services/engine"
	"github.com/johaankjis/Market-Microstructure-Alpha-Signal-Research/services/signals"
)

// AlphaService implements the gRPC service on top of the same pipeline as
// the REST routes.
type AlphaService struct {
	pb.UnimplementedAlphaServiceServer
	s *Server
}

func (s *Server) GRPC() *AlphaService { return &AlphaService{s: s} }

func (a *AlphaService) GenerateSignals(ctx context.Context, req *pb.GenerateSignalsRequest) (*pb.GenerateSignalsResponse, error) {
	reg, err := a.s.regularizationFrom(req)
	if err != nil {
		return nil, grpcError(err)
	}
	model := req.Model
	if model == "" {
		model = a.s.defaults.Model
	}
	sigs, err := a.s.svc.GenerateSignals(ctx, req.Symbol, reg, model)
	if err != nil {
		return nil, grpcError(err)
	}
	resp := &pb.GenerateSignalsResponse{Symbol: req.Symbol, Count: int32(len(sigs))}
	for _, sg := range head(sigs, int(req.Limit)) {
		resp.Signals = append(resp.Signals, &pb.Signal{
			Timestamp:  sg.Timestamp,
			Symbol:     sg.Symbol,
			Value:      sg.Value,
			Confidence: sg.Confidence,
			MidPrice:   sg.MidPrice,
		})
	}
	return resp, nil
}

// regularizationFrom uses the server defaults when no method is named. An
// elastic-net request with a zero l1_ratio gets the default ratio, since
// the wire cannot tell an omitted field from zero.
func (s *Server) regularizationFrom(req *pb.GenerateSignalsRequest) (signals.Regularization, error) {
	if req.Method == "" {
		return s.defaults.Regularization, nil
	}
	m, err := signals.ParseMethod(req.Method)
	if err != nil {
		return signals.Regularization{}, engine.ErrInvalidConfig.WithDetails("%v", err)
	}
	reg := signals.Regularization{Method: m, Alpha: req.Alpha, L1Ratio: req.L1Ratio, MaxFeatures: int(req.MaxFeatures)}
	if m == signals.MethodElasticNet && reg.L1Ratio == 0 {
		reg.L1Ratio = s.defaults.Regularization.L1Ratio
		if reg.L1Ratio == 0 {
			reg.L1Ratio = signals.DefaultRegularization().L1Ratio
		}
	}
	return reg, nil
}

// RunBacktest runs every requested symbol in parallel as one job.
func (a *AlphaService) RunBacktest(ctx context.Context, req *pb.BacktestRequest) (*pb.BacktestResponse, error) {
	startTime := time.Now()
	jobID := uuid.New().String()
	a.s.logger.Info("Starting backtest execution",
		zap.String("job_id", jobID),
		zap.Strings("symbols", req.Symbols),
		zap.Int64("start_time", req.StartTime),
		zap.Int64("end_time", req.EndTime),
	)
	if len(req.Symbols) == 0 {
		return nil, grpcError(engine.ErrMissingSelection.WithDetails("symbols are required"))
	}

	results, err := a.s.svc.RunAll(ctx, a.s.configFrom(req), req.Symbols)
	if err != nil {
		a.s.logger.Error("Backtest execution failed", zap.String("job_id", jobID), zap.Error(err))
		return nil, grpcError(err)
	}

	resp := &pb.BacktestResponse{
		JobId:         jobID,
		ExecutionTime: time.Since(startTime).Milliseconds(),
		SymbolResults: make([]*pb.SymbolResult, len(results)),
	}
	for i, r := range results {
		resp.SymbolResults[i] = convertResult(r)
	}
	a.s.logger.Info("Backtest completed",
		zap.String("job_id", jobID),
		zap.Duration("execution_time", time.Since(startTime)),
		zap.Int("symbol_count", len(results)),
	)
	return resp, nil
}

func (a *AlphaService) GetResult(_ context.Context, req *pb.GetResultRequest) (*pb.SymbolResult, error) {
	res, err := a.s.svc.Store.Result(req.ResultId)
	if err != nil {
		return nil, grpcError(err)
	}
	return convertResult(res), nil
}

func (s *Server) configFrom(req *pb.BacktestRequest) engine.BacktestConfig {
	cfg := s.defaults.Backtest
	cfg.Symbols = nil
	cfg.StartTime, cfg.EndTime = req.StartTime, req.EndTime
	if req.InitialCapital != 0 {
		cfg.InitialCapital = req.InitialCapital
	}
	if req.TransactionCostBps != 0 {
		cfg.TransactionCostBps = req.TransactionCostBps
	}
	if req.SlippageBps != 0 {
		cfg.SlippageBps = req.SlippageBps
	}
	if req.MaxPositionSize != 0 {
		cfg.MaxPositionSize = req.MaxPositionSize
	}
	if req.RebalanceFrequency != "" {
		cfg.RebalanceFrequency = engine.RebalanceFrequency(req.RebalanceFrequency)
	}
	return cfg
}

// grpcError maps domain errors onto status codes.
func grpcError(err error) error {
	if apiErr, ok := engine.AsAPIError(err); ok {
		code := codes.Internal
		switch apiErr.Code {
		case engine.CodeMissingSelection, engine.CodeInvalidConfig:
			code = codes.InvalidArgument
		case engine.CodeInsufficientData:
			code = codes.FailedPrecondition
		case engine.CodeNotFound:
			code = codes.NotFound
		}
		return status.Error(code, apiErr.Error())
	}
	if errors.Is(err, context.Canceled) {
		return status.Error(codes.Canceled, err.Error())
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return status.Error(codes.DeadlineExceeded, err.Error())
	}
	return status.Error(codes.Internal, err.Error())
}

func convertResult(r *engine.Result) *pb.SymbolResult {
	out := &pb.SymbolResult{
		ResultId:    r.ID,
		Metrics:     convertMetrics(r.Metrics),
		Trades:      make([]*pb.ExecutedTrade, len(r.Trades)),
		EquityCurve: make([]*pb.EquityPoint, len(r.EquityCurve)),
	}
	if len(r.Config.Symbols) > 0 {
		out.Symbol = r.Config.Symbols[0]
	}
	for i, t := range r.Trades {
		reason := "signal"
		if t.Liquidation {
			reason = "liquidation"
		}
		out.Trades[i] = &pb.ExecutedTrade{
			Timestamp:  t.Timestamp,
			Symbol:     t.Symbol,
			Side:       convertTradeSide(t.Side),
			Quantity:   decString(t.Quantity),
			Price:      decString(t.Price),
			Pnl:        decString(t.PnL),
			Fee:        decString(t.TransactionCost),
			Slippage:   decString(t.Slippage),
			ReasonCode: reason,
		}
	}
	for i, p := range r.EquityCurve {
		out.EquityCurve[i] = &pb.EquityPoint{
			Timestamp: p.Timestamp,
			Equity:    decString(p.Equity),
			Drawdown:  decString(p.Drawdown),
		}
	}
	if m := r.Manifest; m != nil {
		out.Manifest = &pb.RunManifest{
			ResultId:      m.ResultID,
			ConfigHash:    m.ConfigHash,
			SignalsHash:   m.SignalsHash,
			EngineVersion: m.EngineVersion,
			SignalCount:   int32(m.SignalCount),
			CreatedAt:     m.CreatedAt,
		}
	}
	return out
}

func convertMetrics(m engine.Metrics) *pb.Metrics {
	return &pb.Metrics{
		TotalReturn:        m.TotalReturn,
		SharpeRatio:        m.SharpeRatio,
		SortinoRatio:       m.SortinoRatio,
		CalmarRatio:        m.CalmarRatio,
		MaxDrawdown:        m.MaxDrawdown,
		WinRate:            m.WinRate,
		ProfitFactor:       m.ProfitFactor,
		AvgTrade:           m.AvgTrade,
		TotalTrades:        int32(m.TotalTrades),
		AvgHoldingPeriodMs: m.AvgHoldingPeriodMs,
		InformationRatio:   m.InformationRatio,
	}
}

func convertTradeSide(side engine.TradeSide) pb.TradeSide {
	if side == engine.TradeSideSell {
		return pb.TradeSide_SELL
	}
	return pb.TradeSide_BUY
}

func decString(v float64) string { return decimal.NewFromFloat(v).String() }
