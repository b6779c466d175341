// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package scanners

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/AleutianAI/CodeBrief/services/orchestrator/datatypes"
	"github.com/AleutianAI/CodeBrief/services/policy_engine"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
)

var tracer = otel.Tracer("codebrief.scanners")

// =============================================================================
// AGGREGATOR
// =============================================================================

// ScanObserver receives one call per finished scanner run.
type ScanObserver interface {
	ObserveScan(tool string, duration time.Duration, findings int, err error)
}

// Aggregator fans a sample out to every applicable scanner.
//
// Thread Safety: Safe for concurrent use. The scanner list is fixed at
// construction.
type Aggregator struct {
	scanners []Scanner
	observer ScanObserver
}

// NewAggregator creates an aggregator over scanners in registration order.
// observer may be nil.
func NewAggregator(observer ScanObserver, scanners ...Scanner) *Aggregator {
	return &Aggregator{scanners: scanners, observer: observer}
}

// Binaries names the external tool executables. Empty fields use the tool
// name looked up on PATH.
type Binaries struct {
	Semgrep string
	Bandit  string
}

// DefaultScanners returns semgrep, bandit and secrets in that order.
func DefaultScanners(runner CommandRunner, engine *policy_engine.PolicyEngine, bins Binaries) []Scanner {
	return []Scanner{
		NewSemgrep(runner, bins.Semgrep),
		NewBandit(runner, bins.Bandit),
		NewSecrets(engine),
	}
}

// Applicable returns the scanners that support lang, in registration order.
func (a *Aggregator) Applicable(lang datatypes.Language) []Scanner {
	var out []Scanner
	for _, s := range a.scanners {
		if s.Supports(lang) {
			out = append(out, s)
		}
	}
	return out
}

// Aggregate runs every applicable scanner concurrently and returns their
// results in registration order.
//
// # Description
//
// Waits for all scanners. A failed or panicking scanner contributes an empty
// ScanResult tagged with its tool name. Nothing is retried and no scanner is
// cancelled because another one failed.
//
// # Outputs
//
//   - []datatypes.ScanResult: One entry per applicable scanner.
func (a *Aggregator) Aggregate(ctx context.Context, sample datatypes.CodeSample) []datatypes.ScanResult {
	ctx, span := tracer.Start(ctx, "scanners.Aggregate")
	defer span.End()

	applicable := a.Applicable(sample.Language)
	results := make([]datatypes.ScanResult, len(applicable))

	var g errgroup.Group
	for i, scanner := range applicable {
		g.Go(func() error {
			outcome := a.runOne(ctx, scanner, sample)
			results[i] = outcome.Result
			return nil
		})
	}
	_ = g.Wait()

	span.SetAttributes(
		attribute.String("language", string(sample.Language)),
		attribute.Int("scanners", len(applicable)),
		attribute.Int("findings", len(datatypes.AllFindings(results))),
	)
	return results
}

func (a *Aggregator) runOne(ctx context.Context, scanner Scanner, sample datatypes.CodeSample) (outcome Outcome) {
	tool := scanner.Tool()
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			outcome = failed(tool, fmt.Errorf("%w: panic: %v", ErrToolFailed, r))
		}
		if outcome.Result.Tool == "" {
			outcome.Result.Tool = tool
		}
		if outcome.Result.Findings == nil {
			outcome.Result.Findings = []datatypes.Finding{}
		}
		duration := time.Since(start)
		if outcome.Err != nil {
			slog.Warn("Scanner failed, continuing without its findings",
				slog.String("tool", tool),
				slog.Duration("duration", duration),
				slog.String("error", outcome.Err.Error()),
			)
		} else {
			slog.Debug("Scanner completed",
				slog.String("tool", tool),
				slog.Duration("duration", duration),
				slog.Int("findings", len(outcome.Result.Findings)),
			)
		}
		if a.observer != nil {
			a.observer.ObserveScan(tool, duration, len(outcome.Result.Findings), outcome.Err)
		}
	}()

	return scanner.Scan(ctx, sample)
}
