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

	"github.com/AleutianAI/CodeBrief/services/orchestrator/datatypes"
	"github.com/AleutianAI/CodeBrief/services/orchestrator/structure"
)

const (
	fallbackFix = "Consult an engineer for a detailed fix."

	// maxFallbackActions bounds the per-rule review actions.
	maxFallbackActions = 10

	// maxNamesInPurpose bounds how many declared names the purpose quotes.
	maxNamesInPurpose = 5
)

// Aux carries the optional context gathered alongside the scanners.
type Aux struct {
	Structure     structure.Facts
	Policies      string
	Sensitivities []string
}

// Fallback builds a report from the scan results alone.
//
// # Description
//
// Used whenever the model is unavailable or its reply is rejected. Every
// finding becomes one risk whose text is the finding's message. Risks are
// ordered by severity with ties kept in scanner order. The output depends
// only on its inputs, so equal inputs give byte-identical reports.
//
// # Inputs
//
//   - sample: The analyzed code with its resolved language.
//   - results: Scanner results in aggregator order.
//   - aux: Structural facts and secret classifications, possibly empty.
//   - reason: Why the fallback is used. OutcomeNoKey adds the
//     enable-detailed-analysis action.
func Fallback(sample datatypes.CodeSample, results []datatypes.ScanResult, aux Aux, reason Outcome) *datatypes.AnalysisReport {
	findings := datatypes.AllFindings(results)

	risks := make([]datatypes.Risk, 0, len(findings))
	for _, f := range findings {
		text := f.Message
		if text == "" {
			text = f.Rule
		}
		risks = append(risks, datatypes.Risk{
			Risk:     text,
			Severity: f.Severity,
			Evidence: datatypes.Evidence{
				Rule:    f.Rule,
				File:    f.File,
				Line:    f.Line,
				Excerpt: f.Excerpt,
			},
			Fix:      fallbackFix,
			Effort:   datatypes.EffortMedium,
			Priority: f.Severity.Priority(),
		})
	}
	sort.SliceStable(risks, func(i, j int) bool {
		return risks[i].Priority < risks[j].Priority
	})

	inputs := []string{"Detailed analysis was unavailable for this request"}
	if reason == OutcomeNoKey {
		inputs = []string{"Detailed analysis requires an LLM API key"}
	}

	r := &datatypes.AnalysisReport{
		DetectedLanguage: sample.Language,
		Summary: datatypes.Summary{
			Purpose: fallbackPurpose(sample.Language, aux.Structure),
			IO: datatypes.IO{
				Inputs:  inputs,
				Outputs: []string{"Static analysis results"},
			},
			DataSensitivity: sensitivities(aux.Sensitivities),
			SideEffects:     []string{},
			OpsRequirements: []string{},
			ScopeLimits:     []string{"Based on automated static analysis only"},
		},
		Risks:       risks,
		NextActions: fallbackActions(risks, reason),
	}
	r.Artifacts.Markdown = RenderMarkdown(r)
	return r
}

func fallbackPurpose(lang datatypes.Language, facts structure.Facts) string {
	purpose := fmt.Sprintf("Automated analysis result for %s code", lang)
	var parts []string
	if n := len(facts.Functions); n > 0 {
		parts = append(parts, fmt.Sprintf("%s (%s)", plural(n, "function"), names(facts.Functions)))
	}
	if n := len(facts.Classes); n > 0 {
		parts = append(parts, fmt.Sprintf("%s (%s)", plural(n, "class"), names(facts.Classes)))
	}
	if n := len(facts.Imports); n > 0 {
		parts = append(parts, plural(n, "import"))
	}
	if len(parts) == 0 {
		return purpose + "."
	}
	return purpose + " declaring " + strings.Join(parts, " and ") + "."
}

func plural(n int, noun string) string {
	if n == 1 {
		return "1 " + noun
	}
	if strings.HasSuffix(noun, "s") {
		return fmt.Sprintf("%d %ses", n, noun)
	}
	return fmt.Sprintf("%d %ss", n, noun)
}

func names(items []string) string {
	if len(items) > maxNamesInPurpose {
		return strings.Join(items[:maxNamesInPurpose], ", ") + ", ..."
	}
	return strings.Join(items, ", ")
}

// sensitivities keeps the known labels, deduplicated and sorted.
func sensitivities(labels []string) []datatypes.DataSensitivity {
	seen := make(map[datatypes.DataSensitivity]bool)
	out := []datatypes.DataSensitivity{}
	for _, l := range labels {
		s := datatypes.DataSensitivity(l)
		switch s {
		case datatypes.SensitivityNone, datatypes.SensitivityPII, datatypes.SensitivityCredentials,
			datatypes.SensitivityPayment, datatypes.SensitivityHealth, datatypes.SensitivityOther:
		default:
			continue
		}
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func fallbackActions(risks []datatypes.Risk, reason Outcome) []datatypes.NextAction {
	actions := []datatypes.NextAction{}
	if reason == OutcomeNoKey {
		actions = append(actions, datatypes.NextAction{
			Title:  "Enable detailed analysis",
			Prompt: "Set GEMINI_API_KEY (or configure another LLM backend) and run the analysis again to get a plain-language report.",
		})
	}
	seen := make(map[string]bool)
	for _, r := range risks {
		if len(seen) >= maxFallbackActions {
			break
		}
		rule := r.Evidence.Rule
		if rule == "" || seen[rule] {
			continue
		}
		seen[rule] = true
		actions = append(actions, datatypes.NextAction{
			Title:  "Review " + rule,
			Prompt: fmt.Sprintf("Explain and fix the issue reported by rule %s at line %d: %s", rule, r.Evidence.Line, r.Risk),
		})
	}
	return actions
}
