// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package report

import (
	"fmt"
	"sort"
	"strings"

	"github.com/AleutianAI/CodeBrief/services/llm"
	"github.com/AleutianAI/CodeBrief/services/orchestrator/datatypes"
)

// =============================================================================
// Prompt Limits
// =============================================================================

const (
	// MaxPromptCodeChars is how much of the sample is quoted to the model.
	MaxPromptCodeChars = 5000

	// MaxPromptFindings is how many findings (highest severity first) are
	// quoted to the model.
	MaxPromptFindings = 20

	// MaxAuxChars caps the structural facts and the policy text each.
	MaxAuxChars = 4000

	truncationMarker = "...(truncated)"
)

// systemInstruction fixes the reply contract. The field list must match
// datatypes.AnalysisReport and requiredTopLevel in schema.go.
const systemInstruction = `You are a code reviewer writing for readers who are not engineers.
Explain what the code does and what could go wrong in plain business English. Avoid jargon, avoid absolute claims and always cite the evidence you rely on.

Reply with exactly one JSON object and nothing else. The object has exactly these top-level fields: "summary", "risks", "next_actions", "artifacts". Do not add, rename or omit fields at any level.
- summary: {"purpose": string, "io": {"inputs": [string], "outputs": [string]}, "data_sensitivity": [one of "None", "PII", "Credentials", "Payment", "Health", "Other"], "side_effects": [string], "ops_requirements": [string], "scope_limits": [string]}
- risks: [{"risk": string, "severity": one of "High", "Medium", "Low", "evidence": {"rule": string, "file": string, "line": integer, "excerpt": string}, "fix": string, "effort": one of "S", "M", "L", "priority": integer >= 1}]
- next_actions: [{"title": string, "prompt": string}] where prompt is an instruction a coding assistant can follow to perform the action
- artifacts: {"markdown": string} holding the whole report as Markdown`

// BuildMessages renders the system and user turns for one analysis.
func BuildMessages(sample datatypes.CodeSample, results []datatypes.ScanResult, aux Aux) []llm.Message {
	return []llm.Message{
		{Role: "system", Content: systemInstruction},
		{Role: "user", Content: userPrompt(sample, results, aux)},
	}
}

func userPrompt(sample datatypes.CodeSample, results []datatypes.ScanResult, aux Aux) string {
	var sb strings.Builder
	sb.WriteString("Analyze the following code and describe it in business terms.\n\n")
	fmt.Fprintf(&sb, "Programming language: %s\n\n", sample.Language)

	sb.WriteString("Code:\n```\n")
	sb.WriteString(truncate(sample.Content, MaxPromptCodeChars))
	sb.WriteString("\n```\n\n")

	sb.WriteString("Issues reported by static analysis tools:\n")
	findings := TopFindings(datatypes.AllFindings(results), MaxPromptFindings)
	if len(findings) == 0 {
		sb.WriteString("None\n")
	}
	for _, f := range findings {
		fmt.Fprintf(&sb, "- rule: %s\n  severity: %s\n  file: %s\n  line: %d\n  message: %s\n  code: %s\n",
			f.Rule, f.Severity, f.File, f.Line, f.Message, f.Excerpt)
	}

	if !aux.Structure.Empty() {
		sb.WriteString("\nStructure of the code:\n")
		sb.WriteString(truncate(aux.Structure.Describe(), MaxAuxChars))
		sb.WriteString("\n")
	}
	if aux.Policies != "" {
		sb.WriteString("\nOrganizational policies the code must follow:\n")
		sb.WriteString(truncate(aux.Policies, MaxAuxChars))
		sb.WriteString("\n")
	}

	sb.WriteString("\nEvery finding above should appear as a risk unless it is clearly a false positive. Reply with the JSON object only.")
	return sb.String()
}

// TopFindings returns up to n findings ordered by severity, keeping the
// original order within each severity.
func TopFindings(findings []datatypes.Finding, n int) []datatypes.Finding {
	sorted := make([]datatypes.Finding, len(findings))
	copy(sorted, findings)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Severity.Priority() < sorted[j].Severity.Priority()
	})
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}

// truncate keeps the first n runes of s and appends the truncation marker
// when anything was cut.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + " " + truncationMarker
}
