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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/AleutianAI/CodeBrief/services/orchestrator/datatypes"
)

// ToolSemgrep is the tool name of the semgrep adapter.
const ToolSemgrep = "semgrep"

// Semgrep runs `semgrep --config=auto --json --quiet <file>`.
type Semgrep struct {
	runner CommandRunner
	binary string
}

// NewSemgrep creates the adapter. binary defaults to "semgrep".
func NewSemgrep(runner CommandRunner, binary string) *Semgrep {
	if binary == "" {
		binary = "semgrep"
	}
	return &Semgrep{runner: runner, binary: binary}
}

func (s *Semgrep) Tool() string { return ToolSemgrep }

// Supports is true for every known language.
func (s *Semgrep) Supports(lang datatypes.Language) bool {
	return lang.Valid()
}

func (s *Semgrep) Scan(ctx context.Context, sample datatypes.CodeSample) Outcome {
	ws, err := NewWorkspace(sample)
	if err != nil {
		return failed(ToolSemgrep, err)
	}
	defer ws.Close()

	out, err := s.runner.Run(ctx, ws.Dir, s.binary, "--config=auto", "--json", "--quiet", ws.File)
	if err != nil {
		return failed(ToolSemgrep, err)
	}
	findings, err := parseSemgrep(out, sample, ws.BaseName())
	if err != nil {
		return failed(ToolSemgrep, err)
	}
	return succeeded(ToolSemgrep, findings)
}

type semgrepOutput struct {
	Results []semgrepResult `json:"results"`
}

type semgrepResult struct {
	CheckID string `json:"check_id"`
	Start   struct {
		Line int `json:"line"`
	} `json:"start"`
	Extra struct {
		Message  string `json:"message"`
		Severity string `json:"severity"`
		Lines    string `json:"lines"`
		Metadata struct {
			Impact string `json:"impact"`
		} `json:"metadata"`
	} `json:"extra"`
}

func parseSemgrep(out []byte, sample datatypes.CodeSample, file string) ([]datatypes.Finding, error) {
	if len(bytes.TrimSpace(out)) == 0 {
		return nil, fmt.Errorf("%w: empty output", ErrUnparseableOutput)
	}
	var parsed semgrepOutput
	if err := json.Unmarshal(out, &parsed); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnparseableOutput, err)
	}

	findings := make([]datatypes.Finding, 0, len(parsed.Results))
	for _, r := range parsed.Results {
		rule := r.CheckID
		if rule == "" {
			rule = "unknown"
		}
		message := r.Extra.Message
		if message == "" {
			message = rule
		}
		findings = append(findings, datatypes.Finding{
			Rule:     rule,
			Severity: semgrepSeverity(r.Extra.Severity, r.Extra.Metadata.Impact),
			File:     file,
			Line:     r.Start.Line,
			Message:  message,
			Excerpt:  excerptFor(r.Extra.Lines, sample, r.Start.Line),
		})
	}
	return findings, nil
}

// semgrepSeverity folds the rule severity and the metadata impact into one
// level; either one can raise it.
func semgrepSeverity(severity, impact string) datatypes.Severity {
	severity = strings.ToUpper(severity)
	impact = strings.ToUpper(impact)
	switch {
	case severity == "ERROR" || impact == "HIGH":
		return datatypes.SeverityHigh
	case severity == "WARNING" || impact == "MEDIUM":
		return datatypes.SeverityMedium
	default:
		return datatypes.SeverityLow
	}
}
