// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/AleutianAI/CodeBrief/pkg/extensions"
	"github.com/AleutianAI/CodeBrief/services/llm"
	"github.com/AleutianAI/CodeBrief/services/orchestrator/config"
	"github.com/AleutianAI/CodeBrief/services/orchestrator/observability"
	"github.com/AleutianAI/CodeBrief/services/orchestrator/pipeline"
	"github.com/AleutianAI/CodeBrief/services/orchestrator/policies"
	"github.com/AleutianAI/CodeBrief/services/orchestrator/ratelimit"
	"github.com/AleutianAI/CodeBrief/services/orchestrator/report"
	"github.com/AleutianAI/CodeBrief/services/orchestrator/scanners"
	"github.com/AleutianAI/CodeBrief/services/orchestrator/structure"
	"github.com/AleutianAI/CodeBrief/services/policy_engine"
)

// Badger value log collection settings for the counter store.
const (
	badgerGCInterval   = 5 * time.Minute
	badgerDiscardRatio = 0.5
)

// Engine is the assembled analysis stack shared by the HTTP service and the
// one-shot CLI.
//
// # Thread Safety
//
// Safe for concurrent use after NewEngine returns.
type Engine struct {
	Analyzer *pipeline.Orchestrator
	Limiter  *ratelimit.Limiter
	Metrics  *observability.AnalysisMetrics
	Policies *policies.Loader

	// LLMEnabled is false when no model credential is configured and every
	// report comes from the static fallback.
	LLMEnabled bool

	store       ratelimit.CounterStore
	watch       bool
	cancelWatch context.CancelFunc
}

// NewEngine builds every collaborator of the analysis pipeline from cfg.
//
// # Description
//
// Opens the counter store selected by cfg.StoreBackend, builds the rate
// limiter, the scanner aggregator, the report formatter, the policy loader
// and the structure extractor, and wires them into a pipeline. A missing
// LLM credential is not an error: the formatter then always uses the
// fallback report.
//
// # Inputs
//
//   - cfg: Validated configuration.
//   - reg: Registerer for the analysis metrics. Nil disables metrics.
//   - opts: Extension points. Nil fields get defaults.
//
// # Outputs
//
//   - *Engine: Call Close when done.
//   - error: Store, policy table or LLM client construction failed.
func NewEngine(cfg config.Config, reg prometheus.Registerer, opts extensions.ServiceOptions) (*Engine, error) {
	opts = opts.Normalize()

	var metrics *observability.AnalysisMetrics
	if reg != nil {
		metrics = observability.NewAnalysisMetrics(reg)
	}

	store, err := openStore(cfg)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		Metrics:  metrics,
		Policies: policies.NewLoader(cfg.Policies.Dir),
		store:    store,
		watch:    cfg.Policies.Watch,
	}
	if err := e.assemble(cfg, opts); err != nil {
		_ = store.Close()
		return nil, err
	}
	return e, nil
}

func (e *Engine) assemble(cfg config.Config, opts extensions.ServiceOptions) error {
	var limiterOpts []ratelimit.LimiterOption
	formatterOpts := []report.Option{
		report.WithTimeout(cfg.LLM.Timeout),
		report.WithUpstreamRPM(cfg.LLM.UpstreamRPM),
	}
	var observer scanners.ScanObserver
	if e.Metrics != nil {
		limiterOpts = append(limiterOpts, ratelimit.WithAdmissionRecorder(e.Metrics))
		formatterOpts = append(formatterOpts, report.WithRecorder(e.Metrics))
		observer = e.Metrics
	}
	e.Limiter = ratelimit.NewLimiter(e.store, cfg.RateLimit, limiterOpts...)

	engine, err := policy_engine.Default()
	if err != nil {
		return fmt.Errorf("failed to load secret patterns: %w", err)
	}

	runner := scanners.NewExecRunner(
		scanners.WithTimeout(cfg.Scanners.Timeout),
		scanners.WithMaxOutput(cfg.Scanners.MaxOutputBytes),
		scanners.WithMaxProcesses(int64(cfg.Scanners.MaxProcesses)),
	)
	aggregator := scanners.NewAggregator(observer, scanners.DefaultScanners(runner, engine, scanners.Binaries{
		Semgrep: cfg.Scanners.SemgrepPath,
		Bandit:  cfg.Scanners.BanditPath,
	})...)

	client, err := llm.NewClient(cfg.LLMClientConfig())
	switch {
	case errors.Is(err, llm.ErrNotConfigured):
		slog.Warn("LLM credential not configured, reports use static analysis only",
			"backend", cfg.LLM.Backend)
		client = nil
	case err != nil:
		return fmt.Errorf("failed to initialize LLM client: %w", err)
	default:
		slog.Info("LLM formatting enabled", "backend", cfg.LLM.Backend, "upstream_rpm", cfg.LLM.UpstreamRPM)
	}

	formatter := report.NewFormatter(client, formatterOpts...)
	e.LLMEnabled = formatter.Enabled()

	e.Analyzer, err = pipeline.New(pipeline.Deps{
		Limiter:     e.Limiter,
		Aggregator:  aggregator,
		Formatter:   formatter,
		Policies:    e.Policies,
		Extractor:   structure.NewExtractor(),
		Classifier:  engine,
		Metrics:     e.Metrics,
		AuditLogger: opts.AuditLogger,
	})
	return err
}

// WatchPolicies starts invalidating the policy cache on file changes when
// watching is enabled. It returns immediately; Close stops the watcher.
func (e *Engine) WatchPolicies(ctx context.Context) {
	if !e.watch || e.cancelWatch != nil {
		return
	}
	ctx, e.cancelWatch = context.WithCancel(ctx)
	go func() {
		if err := e.Policies.Watch(ctx); err != nil {
			slog.Warn("Policy watch disabled", "dir", e.Policies.Dir, "error", err)
		}
	}()
}

// Close stops the policy watcher and closes the counter store.
func (e *Engine) Close() error {
	if e.cancelWatch != nil {
		e.cancelWatch()
	}
	if err := e.store.Close(); err != nil {
		return fmt.Errorf("failed to close counter store: %w", err)
	}
	return nil
}

func openStore(cfg config.Config) (ratelimit.CounterStore, error) {
	switch backend := cfg.StoreBackend(); backend {
	case config.StoreBadger:
		store, err := ratelimit.OpenBadgerStore(ratelimit.BadgerConfig{
			Path:           cfg.Store.BadgerPath,
			GCInterval:     badgerGCInterval,
			GCDiscardRatio: badgerDiscardRatio,
			Logger:         slog.Default(),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to open badger counter store: %w", err)
		}
		slog.Info("Using badger counter store", "path", cfg.Store.BadgerPath)
		return store, nil
	case config.StoreRedis:
		slog.Info("Using redis counter store",
			"host", cfg.Store.Redis.Host, "port", cfg.Store.Redis.Port, "tls", cfg.Store.Redis.TLS)
		return ratelimit.NewRedisStore(cfg.Store.Redis), nil
	default:
		slog.Info("Using in-memory counter store")
		return ratelimit.NewMemoryStore(nil), nil
	}
}
