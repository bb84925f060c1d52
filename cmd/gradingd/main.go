package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/joseph-ayodele/exam-grader/internal/app"
	"github.com/joseph-ayodele/exam-grader/internal/common"
	"github.com/joseph-ayodele/exam-grader/internal/server"
)

func main() {
	// .env is optional; real environment variables win.
	_ = godotenv.Load()

	cfg, err := common.LoadConfig()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	logger := common.NewLogger(os.Stdout, cfg.Log)
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	if cfg.Classifier.APIKey == "" {
		logger.Warn("YANDEX_API_KEY is not set; every answer will be graded as an error")
	}
	for q, ok := range cfg.Classifier.ModelConfigured() {
		if !ok {
			logger.Warn("no model configured", "question", q)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(cfg, logger, app.Options{})
	if err != nil {
		logger.Error("failed to build grading stack", "error", err)
		os.Exit(1)
	}

	if n, err := a.Grading.Resume(ctx); err != nil {
		logger.Error("failed to resume staged sessions", "error", err)
	} else if n > 0 {
		logger.Info("resumed staged sessions", "count", n)
	}

	if cfg.Storage.InboxDir != "" {
		if err := os.MkdirAll(cfg.Storage.InboxDir, 0o755); err != nil {
			logger.Error("failed to create inbox directory", "dir", cfg.Storage.InboxDir, "error", err)
			os.Exit(1)
		}
		go func() {
			if err := a.Ingestor.Watch(ctx, cfg.Storage.InboxDir, cfg.Storage.InboxDebounce); err != nil {
				logger.Error("inbox watcher stopped", "error", err)
			}
		}()
	}

	// gRPC server
	lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
	if err != nil {
		logger.Error("failed to listen on address", "addr", cfg.Server.GRPCAddr, "error", err)
		os.Exit(1)
	}
	grpcServer := grpc.NewServer(grpc.UnaryInterceptor(server.UnaryLogging(logger)))
	server.RegisterGradingServiceServer(grpcServer, server.NewGradingService(a.Grading, a.Ingest, logger))

	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	classifierStatus := grpc_health_v1.HealthCheckResponse_SERVING
	if cfg.Classifier.APIKey == "" {
		classifierStatus = grpc_health_v1.HealthCheckResponse_NOT_SERVING
	}
	healthServer.SetServingStatus(server.ServiceName, classifierStatus)
	reflection.Register(grpcServer)

	// Metrics
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	metricsServer := &http.Server{
		Addr:              cfg.Server.MetricsAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server error", "error", err)
		}
	}()

	logger.Info("exam-grader listening", "grpc_addr", cfg.Server.GRPCAddr, "metrics_addr", cfg.Server.MetricsAddr,
		"workers", cfg.Grading.Workers, "inbox", cfg.Storage.InboxDir)
	go func() {
		if err := grpcServer.Serve(lis); err != nil {
			logger.Error("gRPC serve error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	healthServer.Shutdown()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	grpcServer.GracefulStop()
	a.Shutdown(shutdownCtx)
	_ = metricsServer.Shutdown(shutdownCtx)
}
