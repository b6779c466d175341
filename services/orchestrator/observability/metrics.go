// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package observability provides metrics and instrumentation for the
// analysis service.
//
// # Description
//
// This package implements Prometheus metrics for the analysis pipeline.
// Metrics include:
//   - Request counters and latency by outcome
//   - Per-scanner run counters, durations and finding counts
//   - Report source (llm or fallback) by formatter outcome
//   - Rate-limit admission decisions and counter store failures
//
// # Integration
//
// Metrics are exposed via the /metrics endpoint. Every recording method is a
// no-op on a nil *AnalysisMetrics so components can run without metrics in
// tests and in the CLI.
//
// # Thread Safety
//
// All metric operations are thread-safe via Prometheus's internal locking.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// =============================================================================
// Metric Definitions
// =============================================================================

// Namespace for all metrics
const metricsNamespace = "codebrief"

const (
	analysisSubsystem  = "analysis"
	scannerSubsystem   = "scanner"
	rateLimitSubsystem = "ratelimit"
)

// AnalysisMetrics holds all Prometheus metrics for the analysis service.
//
// # Fields
//
//   - RequestsTotal: Counter of analyze requests by outcome
//   - RequestDurationSeconds: Histogram of analyze latency by outcome
//   - ScansTotal: Counter of scanner runs by tool and status
//   - ScanDurationSeconds: Histogram of scanner duration by tool
//   - FindingsTotal: Counter of findings by tool
//   - ReportsTotal: Counter of produced reports by formatter outcome
//   - AdmissionsTotal: Counter of rate-limit decisions by kind
//   - StoreErrorsTotal: Counter of counter store failures
type AnalysisMetrics struct {
	// Labels: outcome (success, validation, quota_minute, quota_daily, quota_global, unavailable, error)
	RequestsTotal *prometheus.CounterVec

	// Labels: outcome
	RequestDurationSeconds *prometheus.HistogramVec

	// Labels: tool (semgrep, bandit, secrets), status (success, failed)
	ScansTotal *prometheus.CounterVec

	// Labels: tool
	ScanDurationSeconds *prometheus.HistogramVec

	// Labels: tool
	FindingsTotal *prometheus.CounterVec

	// Labels: outcome (accepted, no_key, quota_unavailable, call_failed, no_json, invalid)
	ReportsTotal *prometheus.CounterVec

	// Labels: decision (allowed, minute, daily, global, unavailable)
	AdmissionsTotal *prometheus.CounterVec

	StoreErrorsTotal prometheus.Counter
}

// NewAnalysisMetrics creates and registers all metrics with reg.
//
// # Inputs
//
//   - reg: Registerer to use. prometheus.DefaultRegisterer in production, a
//     fresh prometheus.NewRegistry() in tests.
//
// # Limitations
//
//   - Panics if called twice with the same registerer (duplicate registration).
func NewAnalysisMetrics(reg prometheus.Registerer) *AnalysisMetrics {
	factory := promauto.With(reg)
	return &AnalysisMetrics{
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: analysisSubsystem,
				Name:      "requests_total",
				Help:      "Total number of analyze requests by outcome",
			},
			[]string{"outcome"},
		),

		RequestDurationSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: analysisSubsystem,
				Name:      "request_duration_seconds",
				Help:      "Analyze request duration in seconds",
				Buckets:   []float64{0.05, 0.25, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"outcome"},
		),

		ScansTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: scannerSubsystem,
				Name:      "runs_total",
				Help:      "Total scanner runs by tool and status",
			},
			[]string{"tool", "status"},
		),

		ScanDurationSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: scannerSubsystem,
				Name:      "duration_seconds",
				Help:      "Scanner run duration in seconds",
				Buckets:   []float64{0.01, 0.1, 0.5, 1, 5, 15, 30, 60},
			},
			[]string{"tool"},
		),

		FindingsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: scannerSubsystem,
				Name:      "findings_total",
				Help:      "Total findings reported by tool",
			},
			[]string{"tool"},
		),

		ReportsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: analysisSubsystem,
				Name:      "reports_total",
				Help:      "Total reports produced by formatter outcome",
			},
			[]string{"outcome"},
		),

		AdmissionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: rateLimitSubsystem,
				Name:      "decisions_total",
				Help:      "Total rate-limit admission decisions by kind",
			},
			[]string{"decision"},
		),

		StoreErrorsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: rateLimitSubsystem,
				Name:      "store_errors_total",
				Help:      "Total counter store failures that triggered fail-open or fail-closed handling",
			},
		),
	}
}

// =============================================================================
// Request Outcomes
// =============================================================================

// Outcome labels a finished analyze request.
type Outcome string

const (
	OutcomeSuccess     Outcome = "success"
	OutcomeValidation  Outcome = "validation"
	OutcomeQuotaMinute Outcome = "quota_minute"
	OutcomeQuotaDaily  Outcome = "quota_daily"
	OutcomeQuotaGlobal Outcome = "quota_global"
	OutcomeUnavailable Outcome = "unavailable"
	OutcomeError       Outcome = "error"
)

// =============================================================================
// Helper Methods
// =============================================================================

// RecordRequest records a finished analyze request.
func (m *AnalysisMetrics) RecordRequest(outcome Outcome, duration time.Duration) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(string(outcome)).Inc()
	m.RequestDurationSeconds.WithLabelValues(string(outcome)).Observe(duration.Seconds())
}

// ObserveScan records one scanner run. A non-nil err marks the run failed;
// the findings count is still recorded (it is zero for absorbed failures).
func (m *AnalysisMetrics) ObserveScan(tool string, duration time.Duration, findings int, err error) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "failed"
	}
	m.ScansTotal.WithLabelValues(tool, status).Inc()
	m.ScanDurationSeconds.WithLabelValues(tool).Observe(duration.Seconds())
	m.FindingsTotal.WithLabelValues(tool).Add(float64(findings))
}

// RecordReport records which formatter path produced a report.
func (m *AnalysisMetrics) RecordReport(outcome string) {
	if m == nil {
		return
	}
	m.ReportsTotal.WithLabelValues(outcome).Inc()
}

// RecordAdmission records one rate-limit decision.
func (m *AnalysisMetrics) RecordAdmission(decision string) {
	if m == nil {
		return
	}
	m.AdmissionsTotal.WithLabelValues(decision).Inc()
}

// RecordStoreError records a counter store failure.
func (m *AnalysisMetrics) RecordStoreError() {
	if m == nil {
		return
	}
	m.StoreErrorsTotal.Inc()
}
