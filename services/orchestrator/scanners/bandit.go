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
	"strconv"
	"strings"

	"github.com/AleutianAI/CodeBrief/services/orchestrator/datatypes"
)

// ToolBandit is the tool name of the bandit adapter.
const ToolBandit = "bandit"

// Bandit runs `bandit -f json <file>` on python samples.
type Bandit struct {
	runner CommandRunner
	binary string
}

// NewBandit creates the adapter. binary defaults to "bandit".
func NewBandit(runner CommandRunner, binary string) *Bandit {
	if binary == "" {
		binary = "bandit"
	}
	return &Bandit{runner: runner, binary: binary}
}

func (b *Bandit) Tool() string { return ToolBandit }

func (b *Bandit) Supports(lang datatypes.Language) bool {
	return lang == datatypes.LanguagePython
}

func (b *Bandit) Scan(ctx context.Context, sample datatypes.CodeSample) Outcome {
	ws, err := NewWorkspace(sample)
	if err != nil {
		return failed(ToolBandit, err)
	}
	defer ws.Close()

	out, err := b.runner.Run(ctx, ws.Dir, b.binary, "-f", "json", ws.File)
	if err != nil {
		return failed(ToolBandit, err)
	}
	findings, err := parseBandit(out, sample, ws.BaseName())
	if err != nil {
		return failed(ToolBandit, err)
	}
	return succeeded(ToolBandit, findings)
}

type banditOutput struct {
	Results []struct {
		TestID        string `json:"test_id"`
		IssueSeverity string `json:"issue_severity"`
		LineNumber    int    `json:"line_number"`
		IssueText     string `json:"issue_text"`
		Code          string `json:"code"`
	} `json:"results"`
}

func parseBandit(out []byte, sample datatypes.CodeSample, file string) ([]datatypes.Finding, error) {
	if len(bytes.TrimSpace(out)) == 0 {
		return nil, fmt.Errorf("%w: empty output", ErrUnparseableOutput)
	}
	var parsed banditOutput
	if err := json.Unmarshal(out, &parsed); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnparseableOutput, err)
	}

	findings := make([]datatypes.Finding, 0, len(parsed.Results))
	for _, r := range parsed.Results {
		rule := r.TestID
		if rule == "" {
			rule = "unknown"
		}
		findings = append(findings, datatypes.Finding{
			Rule:     rule,
			Severity: banditSeverity(r.IssueSeverity),
			File:     file,
			Line:     r.LineNumber,
			Message:  r.IssueText,
			Excerpt:  excerptFor(banditLine(r.Code, r.LineNumber), sample, r.LineNumber),
		})
	}
	return findings, nil
}

func banditSeverity(label string) datatypes.Severity {
	switch strings.ToUpper(label) {
	case "HIGH":
		return datatypes.SeverityHigh
	case "MEDIUM":
		return datatypes.SeverityMedium
	default:
		return datatypes.SeverityLow
	}
}

// banditLine picks the flagged line out of bandit's numbered code context
// ("3 import os\n4 os.system(x)\n"). Unnumbered code is returned as is.
func banditLine(code string, line int) string {
	prefix := strconv.Itoa(line) + " "
	for _, l := range strings.Split(code, "\n") {
		if strings.HasPrefix(l, prefix) {
			return strings.TrimPrefix(l, prefix)
		}
	}
	return code
}
