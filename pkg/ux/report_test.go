// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ux

import (
	"bytes"
	"encoding/json"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/CodeBrief/services/orchestrator/datatypes"
)

func sampleReport() *datatypes.AnalysisReport {
	return &datatypes.AnalysisReport{
		DetectedLanguage: datatypes.LanguagePython,
		Summary: datatypes.Summary{
			Purpose:         "Uploads invoices.",
			IO:              datatypes.IO{Inputs: []string{"Invoice files"}, Outputs: []string{"Upload status"}},
			DataSensitivity: []datatypes.DataSensitivity{datatypes.SensitivityCredentials},
			ScopeLimits:     []string{"Single file reviewed"},
		},
		Risks: []datatypes.Risk{{
			Risk:     "Hardcoded cloud key",
			Severity: datatypes.SeverityHigh,
			Evidence: datatypes.Evidence{Rule: "secret-detection-aws-access-key", File: "code.py", Line: 3},
			Fix:      "Move the key to a secret store.",
			Effort:   datatypes.EffortSmall,
			Priority: 1,
		}},
		NextActions: []datatypes.NextAction{{Title: "Rotate the key", Prompt: "Rotate it."}},
		Artifacts:   datatypes.Artifacts{Markdown: "# Code Analysis Report\n\nbody\n\n"},
	}
}

func TestPrinter_JSON(t *testing.T) {
	var buf bytes.Buffer

	require.NoError(t, NewPrinter(&buf, ModeJSON).Report(sampleReport()))

	var got datatypes.AnalysisReport
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, *sampleReport(), got)
}

func TestPrinter_PlainWritesMarkdown(t *testing.T) {
	var buf bytes.Buffer

	require.NoError(t, NewPrinter(&buf, ModePlain).Report(sampleReport()))

	assert.Equal(t, "# Code Analysis Report\n\nbody\n", buf.String())
}

func TestPrinter_Styled(t *testing.T) {
	var buf bytes.Buffer

	require.NoError(t, NewPrinter(&buf, ModeStyled).Report(sampleReport()))

	out := buf.String()
	assert.Contains(t, out, "Code Analysis Report")
	assert.Contains(t, out, "language: python")
	assert.Contains(t, out, "Uploads invoices.")
	assert.Contains(t, out, "Credentials")
	assert.Contains(t, out, "Risks (1)")
	assert.Contains(t, out, "[High]")
	assert.Contains(t, out, "Hardcoded cloud key")
	assert.Contains(t, out, "secret-detection-aws-access-key at code.py:3")
	assert.Contains(t, out, "(effort S)")
	assert.Contains(t, out, "Rotate the key")
}

func TestPrinter_StyledNoRisks(t *testing.T) {
	r := sampleReport()
	r.Risks = nil
	r.NextActions = nil
	var buf bytes.Buffer

	require.NoError(t, NewPrinter(&buf, ModeStyled).Report(r))

	assert.Contains(t, buf.String(), "No issues detected.")
	assert.NotContains(t, buf.String(), "Next actions")
}

func TestPrinter_Notice(t *testing.T) {
	var buf bytes.Buffer
	NewPrinter(&buf, ModeJSON).Notice("no key")
	assert.Empty(t, buf.String())

	NewPrinter(&buf, ModePlain).Notice("no key")
	assert.Equal(t, "WARN: no key\n", buf.String())
}

func TestEvidenceLine(t *testing.T) {
	assert.Equal(t, "rule at f.js:2", evidenceLine(datatypes.Evidence{Rule: "rule", File: "f.js", Line: 2}))
	assert.Equal(t, "rule at f.js", evidenceLine(datatypes.Evidence{Rule: "rule", File: "f.js"}))
	assert.Equal(t, "", evidenceLine(datatypes.Evidence{}))
}

func TestDetectMode(t *testing.T) {
	assert.Equal(t, ModeJSON, DetectMode(os.Stdout, true))

	f, err := os.CreateTemp(t.TempDir(), "out")
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, ModePlain, DetectMode(f, false))
	assert.Equal(t, ModePlain, DetectMode(nil, false))
}

func TestSeverityStyle(t *testing.T) {
	assert.Equal(t, ColorError, SeverityStyle(datatypes.SeverityHigh).GetForeground())
	assert.Equal(t, ColorWarning, SeverityStyle(datatypes.SeverityMedium).GetForeground())
	assert.Equal(t, ColorSuccess, SeverityStyle(datatypes.SeverityLow).GetForeground())
}

func TestMode_String(t *testing.T) {
	assert.Equal(t, "styled", ModeStyled.String())
	assert.Equal(t, "plain", ModePlain.String())
	assert.Equal(t, "json", ModeJSON.String())
}
