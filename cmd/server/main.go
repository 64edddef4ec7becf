// Package main runs the LOB alpha research service with REST and gRPC APIs
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	pb "github.com/johaankjis/Market-Microstructure-Alpha-Signal-Research/proto"
	"github.com/johaankjis/Market-Microstructure-Alpha-Signal-Research/services/api"
	"github.com/johaankjis/Market-Microstructure-Alpha-Signal-Research/services/arrowpipeline"
	"github.com/johaankjis/Market-Microstructure-Alpha-Signal-Research/services/clickhouse"
	"github.com/johaankjis/Market-Microstructure-Alpha-Signal-Research/services/config"
	"github.com/johaankjis/Market-Microstructure-Alpha-Signal-Research/services/monitoring"
	"github.com/johaankjis/Market-Microstructure-Alpha-Signal-Research/services/pipeline"
	"github.com/johaankjis/Market-Microstructure-Alpha-Signal-Research/services/store"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config (or LOBALPHA_CONFIG)")
	preload := flag.String("preload", "", "comma-separated symbols (or \"all\") to load from ClickHouse at startup")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := config.NewLogger(cfg.Log.Level)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("Starting LOB alpha service",
		zap.String("version", api.Version),
		zap.String("environment", cfg.Environment),
	)

	metrics, err := monitoring.NewMetrics(cfg.Monitoring)
	if err != nil {
		logger.Fatal("Failed to create monitoring", zap.Error(err))
	}

	svc := pipeline.New(store.NewMemory(), logger, metrics)
	svc.MaxWorkers = cfg.Engine.MaxWorkers

	if cfg.ClickHouse.Enabled() && *preload != "" {
		if err := preloadFromClickHouse(cfg, svc, logger, *preload); err != nil {
			logger.Fatal("Failed to preload snapshots", zap.Error(err))
		}
	}

	server := api.NewServer(svc,
		api.WithLogger(logger),
		api.WithMetrics(metrics),
		api.WithArrow(arrowpipeline.NewPipeline(cfg.Arrow, arrowpipeline.WithLogger(logger))),
		api.WithDefaults(api.Defaults{
			Backtest:       cfg.Backtest,
			Regularization: cfg.Signals.Regularization,
			Model:          cfg.Signals.Model,
			SnapshotStepMs: api.DefaultDefaults().SnapshotStepMs,
		}),
	)

	// Setup gRPC server
	grpcServer := grpc.NewServer()
	pb.RegisterAlphaServiceServer(grpcServer, server.GRPC())
	healthServer := health.NewServer()
	healthServer.SetServingStatus(pb.ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	reflection.Register(grpcServer)

	// Setup HTTP server
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		Handler:           server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		lis, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Server.GRPCPort))
		if err != nil {
			logger.Fatal("Failed to listen on gRPC port", zap.Error(err))
		}
		logger.Info("Starting gRPC server", zap.Int("port", cfg.Server.GRPCPort))
		if err := grpcServer.Serve(lis); err != nil {
			logger.Fatal("Failed to serve gRPC", zap.Error(err))
		}
	}()

	go func() {
		logger.Info("Starting HTTP server", zap.Int("port", cfg.Server.HTTPPort))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to serve HTTP", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down servers...")
	healthServer.Shutdown()
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeoutSec)*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("HTTP shutdown", zap.Error(err))
	}
	grpcServer.GracefulStop()
	logger.Info("Servers stopped")
}

func preloadFromClickHouse(cfg *config.Config, svc *pipeline.Service, logger *zap.Logger, symbols string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	src, err := clickhouse.Open(ctx, cfg.ClickHouse, logger)
	if err != nil {
		return err
	}
	defer src.Close()

	list := splitSymbols(symbols)
	if len(list) == 1 && list[0] == "all" {
		if list, err = src.Symbols(ctx); err != nil {
			return err
		}
	}
	for _, sym := range list {
		n, err := svc.Load(ctx, src, sym, cfg.Backtest.StartTime, cfg.Backtest.EndTime)
		if err != nil {
			return fmt.Errorf("load %s: %w", sym, err)
		}
		logger.Info("Preloaded snapshots", zap.String("symbol", sym), zap.Int("snapshots", n))
	}
	return nil
}

func splitSymbols(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
