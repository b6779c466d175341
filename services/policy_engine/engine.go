// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package policy_engine

import (
	"fmt"
	"strings"
	"sync"

	"github.com/AleutianAI/CodeBrief/services/policy_engine/enforcement"
	"gopkg.in/yaml.v3"
)

// PolicyEngine holds the compiled secret pattern table and scans text
// against it. It is immutable after construction and safe for concurrent use.
type PolicyEngine struct {
	Classifications []Classification
}

var (
	defaultEngine    *PolicyEngine
	defaultEngineErr error
	defaultOnce      sync.Once
)

// NewPolicyEngine builds an engine from the embedded pattern table.
//
// It performs the following operations:
// 1. Unmarshals the embedded YAML data.
// 2. Compiles all regex patterns.
// 3. Sorts classifications by priority.
//
// Returns an error if the embedded YAML is malformed or contains invalid regex.
func NewPolicyEngine() (*PolicyEngine, error) {
	return NewPolicyEngineFromYAML(enforcement.SecretPatterns)
}

// NewPolicyEngineFromYAML builds an engine from an arbitrary pattern table.
func NewPolicyEngineFromYAML(data []byte) (*PolicyEngine, error) {
	var patternFile PatternFile
	if err := yaml.Unmarshal(data, &patternFile); err != nil {
		return nil, fmt.Errorf("failed to unmarshal the pattern file: %w", err)
	}
	if err := patternFile.CompileRegexes(); err != nil {
		return nil, fmt.Errorf("failed to compile a regex %w", err)
	}
	patternFile.SortByPriority()
	return &PolicyEngine{Classifications: patternFile.Classifications}, nil
}

// Default returns the process-wide engine built from the embedded table.
func Default() (*PolicyEngine, error) {
	defaultOnce.Do(func() {
		defaultEngine, defaultEngineErr = NewPolicyEngine()
	})
	return defaultEngine, defaultEngineErr
}

// Sensitivities returns the sensitivity tag of every classification with at
// least one match in data, in priority order.
func (e *PolicyEngine) Sensitivities(data string) []string {
	var out []string
	for _, classification := range e.Classifications {
		for i := range classification.Patterns {
			if classification.Patterns[i].compiledPattern.MatchString(data) {
				out = append(out, classification.Sensitivity)
				break
			}
		}
	}
	return out
}

// ScanFileContent checks every line of content against every pattern and
// reports one finding per match. Line numbers are 1-based.
func (e *PolicyEngine) ScanFileContent(content string) []ScanFinding {
	var findings []ScanFinding
	lines := strings.Split(content, "\n")
	for lineNum, line := range lines {
		for _, classification := range e.Classifications {
			for i := range classification.Patterns {
				pattern := &classification.Patterns[i]
				for _, match := range pattern.compiledPattern.FindAllString(line, -1) {
					findings = append(findings, ScanFinding{
						LineNumber:         lineNum + 1,
						Line:               line,
						MatchedContent:     strings.TrimSpace(match),
						ClassificationName: classification.Name,
						PatternId:          pattern.Id,
						PatternName:        pattern.Name,
						Rule:               pattern.Rule(),
						Severity:           pattern.Severity,
						Confidence:         pattern.Confidence,
					})
				}
			}
		}
	}
	return findings
}
