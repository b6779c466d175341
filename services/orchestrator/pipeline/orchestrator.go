// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package pipeline sequences one analysis: validation, admission, language
// resolution, context gathering, scanning and report formatting.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/AleutianAI/CodeBrief/pkg/extensions"
	"github.com/AleutianAI/CodeBrief/services/orchestrator/datatypes"
	"github.com/AleutianAI/CodeBrief/services/orchestrator/language"
	"github.com/AleutianAI/CodeBrief/services/orchestrator/observability"
	"github.com/AleutianAI/CodeBrief/services/orchestrator/ratelimit"
	"github.com/AleutianAI/CodeBrief/services/orchestrator/report"
	"github.com/AleutianAI/CodeBrief/services/orchestrator/structure"
)

var tracer = otel.Tracer("codebrief.pipeline")

// =============================================================================
// Collaborators
// =============================================================================

// Admitter decides whether a client may run an analysis.
type Admitter interface {
	Admit(ctx context.Context, client string) ratelimit.Decision
}

// Aggregator runs the scanners. It never fails; failed scanners contribute
// empty results.
type Aggregator interface {
	Aggregate(ctx context.Context, sample datatypes.CodeSample) []datatypes.ScanResult
}

// Formatter turns scan results into a report. It never fails.
type Formatter interface {
	Format(ctx context.Context, sample datatypes.CodeSample, results []datatypes.ScanResult, aux report.Aux) (*datatypes.AnalysisReport, report.Outcome)
}

// PolicyLoader returns the joined text of the named policies.
type PolicyLoader interface {
	Load(names []string) string
}

// StructureExtractor lists declared names in code.
type StructureExtractor interface {
	Extract(ctx context.Context, code string, lang datatypes.Language) (structure.Facts, error)
}

// SensitivityClassifier names the data classes present in code.
type SensitivityClassifier interface {
	Sensitivities(data string) []string
}

// Deps wires an Orchestrator. Limiter, Aggregator and Formatter are
// required; the rest may be nil.
type Deps struct {
	Limiter     Admitter
	Aggregator  Aggregator
	Formatter   Formatter
	Policies    PolicyLoader
	Extractor   StructureExtractor
	Classifier  SensitivityClassifier
	Metrics     *observability.AnalysisMetrics
	AuditLogger extensions.AuditLogger
}

// =============================================================================
// Orchestrator
// =============================================================================

// Request is one analysis request after transport decoding.
type Request struct {
	Content      string
	LanguageHint string
	Policies     []string

	// ClientKey is the rate-limit identity. Empty means unknown.
	ClientKey string
	RequestID string
}

// Result is a successful analysis.
type Result struct {
	Report        *datatypes.AnalysisReport
	Decision      ratelimit.Decision
	ReportOutcome report.Outcome
	Language      datatypes.Language
}

// Orchestrator runs analyses.
//
// # Thread Safety
//
// Safe for concurrent use. It holds no per-request state.
type Orchestrator struct {
	deps Deps
}

// New checks deps and creates an Orchestrator.
func New(deps Deps) (*Orchestrator, error) {
	if deps.Limiter == nil || deps.Aggregator == nil || deps.Formatter == nil {
		return nil, errors.New("pipeline requires a limiter, an aggregator and a formatter")
	}
	if deps.AuditLogger == nil {
		deps.AuditLogger = &extensions.NopAuditLogger{}
	}
	return &Orchestrator{deps: deps}, nil
}

// Analyze runs one analysis.
//
// # Description
//
// Steps, in order:
//  1. Validate. Empty or oversized content and bad hints return
//     *ValidationError without touching the rate limiter.
//  2. Admit. A denial returns *QuotaExceededError carrying the decision.
//  3. Resolve the language from the hint or the content.
//  4. Gather policy text, structural facts and data classes. Failures here
//     only reduce prompt context.
//  5. Run the scanners.
//  6. Format the report (model or fallback).
//
// Any other failure, including a panic in a collaborator, returns
// *UnexpectedError.
//
// # Outputs
//
//   - *Result: Non-nil exactly when error is nil.
//   - error: *ValidationError, *QuotaExceededError or *UnexpectedError.
func (o *Orchestrator) Analyze(ctx context.Context, req Request) (res *Result, err error) {
	ctx, span := tracer.Start(ctx, "Orchestrator.Analyze")
	defer span.End()
	span.SetAttributes(
		attribute.Int("analysis.content_bytes", len(req.Content)),
		attribute.String("analysis.request_id", req.RequestID),
	)

	start := time.Now()
	client := extensions.IPIdentifier{}.Identify(nil, req.ClientKey)
	var admitted *ratelimit.Decision
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Analysis panicked",
				"request_id", req.RequestID,
				"panic", r,
				"stack", string(debug.Stack()))
			res = nil
			err = &UnexpectedError{Message: fmt.Sprintf("internal error: %v", r)}
		}
		var ue *UnexpectedError
		if errors.As(err, &ue) && ue.Decision == nil {
			ue.Decision = admitted
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		o.deps.Metrics.RecordRequest(requestOutcome(err), time.Since(start))
		o.audit(ctx, req, client, res, err)
	}()

	sample, err := o.validate(req)
	if err != nil {
		return nil, err
	}

	decision := o.deps.Limiter.Admit(ctx, client)
	if !decision.Allowed {
		return nil, &QuotaExceededError{Decision: decision}
	}
	admitted = &decision

	sample.Language = language.Resolve(req.LanguageHint, sample.Content)
	span.SetAttributes(attribute.String("analysis.language", string(sample.Language)))

	aux := o.gather(ctx, sample, req.Policies)

	results := o.deps.Aggregator.Aggregate(ctx, sample)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, &UnexpectedError{Message: "analysis cancelled", Err: ctxErr}
	}

	r, outcome := o.deps.Formatter.Format(ctx, sample, results, aux)
	if r == nil {
		return nil, &UnexpectedError{Message: "formatter returned no report"}
	}

	slog.Info("Analysis completed",
		"request_id", req.RequestID,
		"language", sample.Language,
		"content_bytes", len(sample.Content),
		"findings", len(datatypes.AllFindings(results)),
		"risks", len(r.Risks),
		"report_outcome", outcome,
		"duration_ms", time.Since(start).Milliseconds())

	return &Result{
		Report:        r,
		Decision:      decision,
		ReportOutcome: outcome,
		Language:      sample.Language,
	}, nil
}

func (o *Orchestrator) validate(req Request) (datatypes.CodeSample, error) {
	ar := datatypes.AnalyzeRequest{
		Content:      req.Content,
		LanguageHint: req.LanguageHint,
		Policies:     req.Policies,
	}
	if err := ar.Validate(); err != nil {
		var re *datatypes.RequestError
		if errors.As(err, &re) {
			return datatypes.CodeSample{}, &ValidationError{Field: re.Field, Message: re.Message}
		}
		return datatypes.CodeSample{}, &ValidationError{Message: err.Error()}
	}
	return datatypes.CodeSample{Content: req.Content}, nil
}

func (o *Orchestrator) gather(ctx context.Context, sample datatypes.CodeSample, policyNames []string) report.Aux {
	ctx, span := tracer.Start(ctx, "Orchestrator.gather")
	defer span.End()

	var aux report.Aux
	if o.deps.Policies != nil && len(policyNames) > 0 {
		aux.Policies = o.deps.Policies.Load(policyNames)
	}
	if o.deps.Extractor != nil {
		facts, err := o.deps.Extractor.Extract(ctx, sample.Content, sample.Language)
		if err != nil {
			slog.Warn("Structure extraction failed", "language", sample.Language, "error", err)
		} else {
			aux.Structure = facts
		}
	}
	if o.deps.Classifier != nil {
		aux.Sensitivities = o.deps.Classifier.Sensitivities(sample.Content)
	}
	return aux
}

func (o *Orchestrator) audit(ctx context.Context, req Request, client string, res *Result, err error) {
	event := extensions.AuditEvent{
		ClientKey: client,
		RequestID: req.RequestID,
		Metadata:  map[string]any{"content_bytes": len(req.Content)},
	}

	var vErr *ValidationError
	var qErr *QuotaExceededError
	switch {
	case err == nil:
		event.EventType, event.Outcome = extensions.EventAnalysisCompleted, "success"
		event.Metadata["language"] = string(res.Language)
		event.Metadata["risks"] = len(res.Report.Risks)
		event.Metadata["report_outcome"] = string(res.ReportOutcome)
	case errors.As(err, &vErr):
		event.EventType, event.Outcome = extensions.EventAnalysisRejected, "invalid"
		event.Metadata["field"] = vErr.Field
	case errors.As(err, &qErr):
		event.EventType, event.Outcome = extensions.EventAnalysisDenied, "denied"
		event.Metadata["deny_kind"] = string(qErr.Decision.Kind)
	default:
		event.EventType, event.Outcome = extensions.EventAnalysisFailed, "error"
	}

	if auditErr := o.deps.AuditLogger.Log(ctx, event); auditErr != nil {
		slog.Warn("Audit log failed", "event_type", event.EventType, "error", auditErr)
	}
}

func requestOutcome(err error) observability.Outcome {
	if err == nil {
		return observability.OutcomeSuccess
	}
	var vErr *ValidationError
	var qErr *QuotaExceededError
	switch {
	case errors.As(err, &vErr):
		return observability.OutcomeValidation
	case errors.As(err, &qErr):
		switch qErr.Decision.Kind {
		case ratelimit.KindMinute:
			return observability.OutcomeQuotaMinute
		case ratelimit.KindDaily:
			return observability.OutcomeQuotaDaily
		case ratelimit.KindGlobal:
			return observability.OutcomeQuotaGlobal
		default:
			return observability.OutcomeUnavailable
		}
	default:
		return observability.OutcomeError
	}
}
