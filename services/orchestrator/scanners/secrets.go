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

	"github.com/AleutianAI/CodeBrief/services/orchestrator/datatypes"
	"github.com/AleutianAI/CodeBrief/services/policy_engine"
)

// ToolSecrets is the tool name of the in-process secret scanner.
const ToolSecrets = "secrets"

// secretFileLabel is the file label of every secret finding.
const secretFileLabel = "code"

// Secrets matches the embedded secret pattern table line by line.
type Secrets struct {
	engine *policy_engine.PolicyEngine
}

// NewSecrets creates the scanner over engine.
func NewSecrets(engine *policy_engine.PolicyEngine) *Secrets {
	return &Secrets{engine: engine}
}

func (s *Secrets) Tool() string { return ToolSecrets }

// Supports is true for every language, including json.
func (s *Secrets) Supports(lang datatypes.Language) bool {
	return true
}

func (s *Secrets) Scan(_ context.Context, sample datatypes.CodeSample) Outcome {
	matches := s.engine.ScanFileContent(sample.Content)
	findings := make([]datatypes.Finding, 0, len(matches))
	for _, m := range matches {
		findings = append(findings, datatypes.Finding{
			Rule:     m.Rule,
			Severity: datatypes.ParseSeverity(m.Severity),
			File:     secretFileLabel,
			Line:     m.LineNumber,
			Message:  fmt.Sprintf("Potential %s detected", m.PatternName),
			Excerpt:  capRunes(m.Line, MaxExcerptChars),
		})
	}
	return succeeded(ToolSecrets, findings)
}
