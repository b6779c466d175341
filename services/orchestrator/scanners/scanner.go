// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package scanners wraps static analysis tools behind one contract and fans
// a code sample out to every applicable tool.
//
// # Description
//
// Each Scanner turns a CodeSample into a ScanResult. Scanners never fail past
// their boundary: a crashed, missing or timed-out tool produces an empty
// ScanResult tagged with the tool name, and the absorbed error travels next to
// it in the Outcome for logging and metrics only.
//
// External tools (semgrep, bandit) run as subprocesses through a
// CommandRunner. The secret scanner is pure in-process pattern matching.
//
// # Thread Safety
//
// All scanners and the Aggregator are safe for concurrent use.
package scanners

import (
	"context"
	"errors"
	"strings"

	"github.com/AleutianAI/CodeBrief/services/orchestrator/datatypes"
)

// =============================================================================
// Errors
// =============================================================================

var (
	// ErrOutputTooLarge indicates a tool wrote more than the output cap.
	ErrOutputTooLarge = errors.New("scanner output exceeds limit")

	// ErrToolTimeout indicates a tool exceeded its wall-clock budget.
	ErrToolTimeout = errors.New("scanner timed out")

	// ErrToolFailed indicates a tool exited non-zero without usable output.
	ErrToolFailed = errors.New("scanner failed")

	// ErrUnparseableOutput indicates a tool produced output that is not the
	// JSON document it promises.
	ErrUnparseableOutput = errors.New("scanner output is not valid JSON")
)

// =============================================================================
// Scanner Contract
// =============================================================================

// Scanner is one static analysis capability.
type Scanner interface {
	// Tool is the stable tool name used in ScanResult.Tool and metrics.
	Tool() string

	// Supports reports whether the scanner applies to lang.
	Supports(lang datatypes.Language) bool

	// Scan analyzes sample. It never returns a nil Result.Findings slice
	// and never panics past its boundary.
	Scan(ctx context.Context, sample datatypes.CodeSample) Outcome
}

// Outcome is a ScanResult plus the error that was absorbed to produce it.
type Outcome struct {
	Result datatypes.ScanResult
	Err    error
}

// failed builds the empty result a scanner reports when its tool failed.
func failed(tool string, err error) Outcome {
	return Outcome{
		Result: datatypes.ScanResult{Tool: tool, Findings: []datatypes.Finding{}},
		Err:    err,
	}
}

func succeeded(tool string, findings []datatypes.Finding) Outcome {
	if findings == nil {
		findings = []datatypes.Finding{}
	}
	return Outcome{Result: datatypes.ScanResult{Tool: tool, Findings: findings}}
}

// =============================================================================
// Excerpts
// =============================================================================

// MaxExcerptChars caps the excerpt length carried in a finding.
const MaxExcerptChars = 300

// loginPlaceholder is what semgrep prints instead of source lines when run
// without a registry login.
const loginPlaceholder = "requires login"

// excerptFor returns the tool-provided excerpt, or the source line when the
// tool omitted it or returned a placeholder. The result is trimmed and capped.
func excerptFor(toolExcerpt string, sample datatypes.CodeSample, line int) string {
	excerpt := strings.TrimSpace(toolExcerpt)
	if excerpt == "" || strings.EqualFold(excerpt, loginPlaceholder) {
		excerpt = strings.TrimSpace(sample.Line(line))
	}
	return capRunes(excerpt, MaxExcerptChars)
}

func capRunes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
