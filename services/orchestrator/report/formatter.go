// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package report turns scanner results into an AnalysisReport, either
// through an LLM or through a deterministic fallback.
package report

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/time/rate"

	"github.com/AleutianAI/CodeBrief/services/llm"
	"github.com/AleutianAI/CodeBrief/services/orchestrator/datatypes"
)

var tracer = otel.Tracer("codebrief.report")

// Outcome records which path produced a report.
type Outcome string

const (
	OutcomeAccepted         Outcome = "accepted"
	OutcomeNoKey            Outcome = "no_key"
	OutcomeQuotaUnavailable Outcome = "quota_unavailable"
	OutcomeCallFailed       Outcome = "call_failed"
	OutcomeNoJSON           Outcome = "no_json"
	OutcomeInvalid          Outcome = "invalid"
)

const (
	DefaultTimeout     = 45 * time.Second
	DefaultUpstreamRPM = 15

	temperature = float32(0.2)
	maxTokens   = 4096
)

// Recorder receives one outcome per formatted report.
type Recorder interface {
	RecordReport(outcome string)
}

// Formatter produces reports. A Formatter without a client always falls
// back.
//
// # Thread Safety
//
// Safe for concurrent use. The upstream limiter is shared by all callers.
type Formatter struct {
	client   llm.LLMClient
	limiter  *rate.Limiter
	timeout  time.Duration
	recorder Recorder
}

// Option configures a Formatter.
type Option func(*Formatter)

// WithTimeout bounds a single model call.
func WithTimeout(d time.Duration) Option {
	return func(f *Formatter) {
		if d > 0 {
			f.timeout = d
		}
	}
}

// WithUpstreamRPM caps model calls per minute across the process. Zero or
// less disables the cap.
func WithUpstreamRPM(rpm int) Option {
	return func(f *Formatter) {
		if rpm <= 0 {
			f.limiter = rate.NewLimiter(rate.Inf, 0)
			return
		}
		f.limiter = rate.NewLimiter(rate.Limit(float64(rpm)/60), rpm)
	}
}

// WithLimiter installs a prepared limiter.
func WithLimiter(l *rate.Limiter) Option {
	return func(f *Formatter) { f.limiter = l }
}

// WithRecorder reports outcomes to r.
func WithRecorder(r Recorder) Option {
	return func(f *Formatter) { f.recorder = r }
}

// NewFormatter creates a Formatter. client may be nil when no credential is
// configured.
func NewFormatter(client llm.LLMClient, opts ...Option) *Formatter {
	f := &Formatter{
		client:  client,
		timeout: DefaultTimeout,
	}
	WithUpstreamRPM(DefaultUpstreamRPM)(f)
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Enabled reports whether a model is configured.
func (f *Formatter) Enabled() bool {
	return f.client != nil
}

// Format builds the report for one analysis.
//
// # Description
//
// Without a client, or when the upstream limiter has no token, the
// fallback report is returned and the model is never called. Otherwise the
// model is asked once. Its reply is accepted only if a JSON object can be
// extracted and it passes ParseReport; any other result falls back. Format
// never fails: every path yields a valid report.
//
// The accepted report is stamped with the sample's language, and its
// Markdown artifact is rendered when the model left it empty.
//
// # Outputs
//
//   - *datatypes.AnalysisReport: Always non-nil.
//   - Outcome: Which path produced the report.
func (f *Formatter) Format(ctx context.Context, sample datatypes.CodeSample, results []datatypes.ScanResult, aux Aux) (*datatypes.AnalysisReport, Outcome) {
	ctx, span := tracer.Start(ctx, "Formatter.Format")
	defer span.End()

	r, outcome := f.format(ctx, sample, results, aux)
	span.SetAttributes(attribute.String("report.outcome", string(outcome)))
	if f.recorder != nil {
		f.recorder.RecordReport(string(outcome))
	}
	return r, outcome
}

func (f *Formatter) format(ctx context.Context, sample datatypes.CodeSample, results []datatypes.ScanResult, aux Aux) (*datatypes.AnalysisReport, Outcome) {
	if f.client == nil {
		return Fallback(sample, results, aux, OutcomeNoKey), OutcomeNoKey
	}
	if !f.limiter.Allow() {
		slog.Warn("Upstream LLM quota exhausted, using fallback report")
		return Fallback(sample, results, aux, OutcomeQuotaUnavailable), OutcomeQuotaUnavailable
	}

	callCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	temp := temperature
	tokens := maxTokens
	start := time.Now()
	reply, err := f.client.Chat(callCtx, BuildMessages(sample, results, aux), llm.GenerationParams{
		Temperature: &temp,
		MaxTokens:   &tokens,
		JSONOutput:  true,
	})
	if err != nil {
		slog.Warn("LLM call failed, using fallback report",
			"error", err,
			"duration_ms", time.Since(start).Milliseconds())
		return Fallback(sample, results, aux, OutcomeCallFailed), OutcomeCallFailed
	}

	raw, err := ExtractJSON(reply)
	if err != nil {
		slog.Warn("LLM reply had no JSON object, using fallback report", "reply_len", len(reply))
		return Fallback(sample, results, aux, OutcomeNoJSON), OutcomeNoJSON
	}
	r, err := ParseReport(raw)
	if err != nil {
		slog.Warn("LLM reply rejected, using fallback report", "error", err)
		if !errors.Is(err, ErrSchema) {
			return Fallback(sample, results, aux, OutcomeNoJSON), OutcomeNoJSON
		}
		return Fallback(sample, results, aux, OutcomeInvalid), OutcomeInvalid
	}

	r.DetectedLanguage = sample.Language
	if r.Artifacts.Markdown == "" {
		r.Artifacts.Markdown = RenderMarkdown(r)
	}
	slog.Info("LLM report accepted",
		"risks", len(r.Risks),
		"duration_ms", time.Since(start).Milliseconds())
	return r, OutcomeAccepted
}
