// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package orchestrator provides the CodeBrief HTTP service.
//
// # Overview
//
// The service accepts code samples on POST /api/analyze, gates each run
// with the tiered rate limiter, fans the sample out to the static scanners
// and returns a business-language report formatted by an LLM or, when the
// model is unavailable, by a deterministic fallback.
//
// # Usage
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	svc, err := orchestrator.New(cfg, nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := svc.Run(); err != nil {
//	    log.Fatal(err)
//	}
//
// # Extension Points
//
// New accepts *extensions.ServiceOptions to replace the client identifier
// (rate-limit key) and the audit logger. Nil uses the defaults.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/AleutianAI/CodeBrief/pkg/extensions"
	"github.com/AleutianAI/CodeBrief/services/orchestrator/config"
	"github.com/AleutianAI/CodeBrief/services/orchestrator/ratelimit"
	"github.com/AleutianAI/CodeBrief/services/orchestrator/routes"
)

// ServiceName identifies the service in traces and logs.
const ServiceName = "codebrief"

// readHeaderTimeout bounds slow clients before a handler runs.
const readHeaderTimeout = 10 * time.Second

// =============================================================================
// Service Interface
// =============================================================================

// Service is the CodeBrief HTTP service.
type Service interface {
	// Run starts the HTTP server and blocks until shutdown or error.
	//
	// # Description
	//
	// Listens on the configured port. SIGINT or SIGTERM starts a graceful
	// shutdown bounded by Server.ShutdownTimeout, after which the counter
	// store and tracer are closed.
	//
	// # Outputs
	//
	//   - error: Non-nil if the server fails to start or to shut down.
	Run() error

	// Router returns the underlying Gin engine for testing.
	Router() *gin.Engine
}

// =============================================================================
// Service Implementation
// =============================================================================

type service struct {
	config        config.Config
	opts          extensions.ServiceOptions
	router        *gin.Engine
	registry      *prometheus.Registry
	engine        *Engine
	tracerCleanup func(context.Context)
}

// New creates the service.
//
// # Description
//
// Initializes tracing (when an OTLP endpoint is configured), a metrics
// registry, the analysis engine and the router. Partially initialized
// resources are released on error.
//
// # Inputs
//
//   - cfg: Service configuration, usually from config.Load.
//   - opts: Extension options. Nil uses extensions.DefaultOptions(). When
//     opts carries no ClientIdentifier and Server.ClientKeyHeader is set,
//     clients are keyed by that header.
//
// # Outputs
//
//   - Service: Ready to Run.
//   - error: Non-nil if initialization fails.
func New(cfg config.Config, opts *extensions.ServiceOptions) (Service, error) {
	s := &service{
		config: applyConfigDefaults(cfg),
	}
	if opts != nil {
		s.opts = opts.Normalize()
	} else {
		s.opts = extensions.DefaultOptions()
	}
	if header := s.config.Server.ClientKeyHeader; header != "" && (opts == nil || opts.ClientIdentifier == nil) {
		s.opts.ClientIdentifier = &extensions.HeaderIdentifier{Header: header}
		slog.Warn("Rate limits keyed by request header; the header must be set by a trusted gateway",
			"header", header)
	}

	if s.config.OTelEndpoint != "" {
		cleanup, err := s.initTracer()
		if err != nil {
			return nil, fmt.Errorf("failed to initialize tracer: %w", err)
		}
		s.tracerCleanup = cleanup
	}

	var reg prometheus.Registerer
	if s.config.Server.EnableMetrics {
		s.registry = prometheus.NewRegistry()
		s.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		reg = s.registry
	}

	engine, err := NewEngine(s.config, reg, s.opts)
	if err != nil {
		s.cleanup()
		return nil, fmt.Errorf("failed to initialize analysis engine: %w", err)
	}
	s.engine = engine

	if err := s.initRouter(); err != nil {
		s.cleanup()
		return nil, err
	}

	slog.Info("CodeBrief service initialized",
		"port", s.config.Server.Port,
		"store", s.config.StoreBackend(),
		"llm_enabled", engine.LLMEnabled,
		"minute_limit", s.config.RateLimit.Minute,
		"daily_limit", s.config.RateLimit.Daily,
		"global_limit_enabled", s.config.RateLimit.GlobalEnabled)
	return s, nil
}

func (s *service) Run() error {
	defer s.cleanup()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	s.engine.WatchPolicies(ctx)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.config.Server.Port),
		Handler:           s.router,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Starting CodeBrief server", "port", s.config.Server.Port)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	slog.Info("Shutting down CodeBrief server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}

func (s *service) Router() *gin.Engine {
	return s.router
}

// =============================================================================
// Initialization
// =============================================================================

// applyConfigDefaults fills fields a hand-built Config may leave zero.
func applyConfigDefaults(cfg config.Config) config.Config {
	defaults := config.Default()
	if cfg.Server.Port == 0 {
		cfg.Server.Port = defaults.Server.Port
	}
	if cfg.Server.ShutdownTimeout <= 0 {
		cfg.Server.ShutdownTimeout = defaults.Server.ShutdownTimeout
	}
	if cfg.RateLimit == (ratelimit.Limits{}) {
		cfg.RateLimit = defaults.RateLimit
	}
	return cfg
}

// initTracer exports spans over OTLP gRPC to the configured collector.
func (s *service) initTracer() (func(context.Context), error) {
	ctx := context.Background()

	conn, err := grpc.NewClient(s.config.OTelEndpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("failed to create gRPC connection: %w", err)
	}

	traceExporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceNameKey.String(ServiceName)))
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	traceProvider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(sdktrace.NewBatchSpanProcessor(traceExporter)))

	otel.SetTracerProvider(traceProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{}))
	slog.Info("OTLP tracing enabled", "endpoint", s.config.OTelEndpoint)

	return func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := traceProvider.Shutdown(ctx); err != nil {
			slog.Error("failed to shutdown tracer provider", "error", err)
		}
		if err := conn.Close(); err != nil {
			slog.Warn("failed to close OTLP connection", "error", err)
		}
	}, nil
}

func (s *service) initRouter() error {
	if s.config.Server.GinMode != "" {
		gin.SetMode(s.config.Server.GinMode)
	}
	s.router = gin.New()
	s.router.Use(gin.Recovery(), otelgin.Middleware(ServiceName))

	// Nil trusts no proxy, so the client key is the socket peer address.
	if err := s.router.SetTrustedProxies(s.config.Server.TrustedProxies); err != nil {
		return fmt.Errorf("invalid trusted proxies: %w", err)
	}

	deps := routes.Dependencies{
		Analyzer: s.engine.Analyzer,
		Status:   s.engine.Limiter,
	}
	if s.registry != nil {
		deps.Metrics = promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})
	}
	routes.SetupRoutes(s.router, deps, s.opts)
	return nil
}

func (s *service) cleanup() {
	if s.engine != nil {
		if err := s.engine.Close(); err != nil {
			slog.Warn("Engine close error", "error", err)
		}
	}
	if err := s.opts.AuditLogger.Flush(context.Background()); err != nil {
		slog.Warn("Audit flush error", "error", err)
	}
	if s.tracerCleanup != nil {
		s.tracerCleanup(context.Background())
	}
}

// Compile-time interface check
var _ Service = (*service)(nil)
