// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package datatypes provides data structures for the CodeBrief analysis service.
//
// This file contains the request-scoped analysis values that flow through the
// pipeline: the code sample, scanner findings and per-tool scan results. The
// final report shape lives in report.go, HTTP request types in request.go.
//
// # Ownership
//
// Every value here is created and owned by a single request. Findings are
// produced by scanner adapters and never mutated afterwards; the aggregator
// and formatter only reorder or copy them.
package datatypes

import (
	"strings"
)

// =============================================================================
// Limits
// =============================================================================

const (
	// MaxContentBytes is the largest code sample accepted for analysis.
	// Requests above this size are rejected before any pipeline work runs.
	MaxContentBytes = 300_000

	// MaxContentLabel is the human readable form of MaxContentBytes used in
	// validation errors.
	MaxContentLabel = "300KB"
)

// =============================================================================
// Language
// =============================================================================

// Language is the detected or declared format of a code sample.
type Language string

const (
	LanguageJavaScript Language = "javascript"
	LanguageTypeScript Language = "typescript"
	LanguagePython     Language = "python"
	LanguageJSON       Language = "json"
)

// HintAuto asks the service to detect the language itself.
const HintAuto = "auto"

// Extension returns the file extension scanners use when materializing a
// sample of this language on disk.
func (l Language) Extension() string {
	switch l {
	case LanguageTypeScript:
		return ".ts"
	case LanguagePython:
		return ".py"
	case LanguageJSON:
		return ".json"
	default:
		return ".js"
	}
}

// Valid reports whether l is one of the known languages.
func (l Language) Valid() bool {
	switch l {
	case LanguageJavaScript, LanguageTypeScript, LanguagePython, LanguageJSON:
		return true
	}
	return false
}

// =============================================================================
// Severity
// =============================================================================

// Severity is the normalized three-level severity shared by every scanner.
type Severity string

const (
	SeverityHigh   Severity = "High"
	SeverityMedium Severity = "Medium"
	SeverityLow    Severity = "Low"
)

// Priority maps a severity to the report priority rank (1 is most urgent).
func (s Severity) Priority() int {
	switch s {
	case SeverityHigh:
		return 1
	case SeverityMedium:
		return 2
	default:
		return 3
	}
}

// ParseSeverity normalizes a tool severity label ("HIGH", "error", "Medium")
// into a Severity. Unknown labels map to SeverityLow.
func ParseSeverity(label string) Severity {
	switch strings.ToUpper(strings.TrimSpace(label)) {
	case "HIGH", "ERROR", "CRITICAL":
		return SeverityHigh
	case "MEDIUM", "WARNING":
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// =============================================================================
// Code Sample
// =============================================================================

// CodeSample is the immutable input of one analysis run.
//
// # Fields
//
//   - Content: Raw source text. Never longer than MaxContentBytes.
//   - Language: Declared or detected language tag.
type CodeSample struct {
	Content  string
	Language Language
}

// Len returns the byte length of the sample.
func (s CodeSample) Len() int {
	return len(s.Content)
}

// Line returns the 1-based line of the sample, or "" when out of range.
func (s CodeSample) Line(n int) string {
	if n < 1 {
		return ""
	}
	lines := strings.Split(s.Content, "\n")
	if n > len(lines) {
		return ""
	}
	return lines[n-1]
}

// =============================================================================
// Findings
// =============================================================================

// Finding is one flaw reported by one scanner for one line of code.
type Finding struct {
	Rule     string   `json:"rule"`
	Severity Severity `json:"severity"`
	File     string   `json:"file"`
	Line     int      `json:"line"`
	Message  string   `json:"message"`
	Excerpt  string   `json:"excerpt"`
}

// ScanResult is one scanner's complete output for one request.
type ScanResult struct {
	Tool     string    `json:"tool"`
	Findings []Finding `json:"findings"`
}

// AllFindings flattens scan results in registration order.
func AllFindings(results []ScanResult) []Finding {
	total := 0
	for _, r := range results {
		total += len(r.Findings)
	}
	out := make([]Finding, 0, total)
	for _, r := range results {
		out = append(out, r.Findings...)
	}
	return out
}
