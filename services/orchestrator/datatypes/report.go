// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package datatypes

// =============================================================================
// Analysis Report
// =============================================================================

// Effort is a coarse fix-size estimate.
type Effort string

const (
	EffortSmall  Effort = "S"
	EffortMedium Effort = "M"
	EffortLarge  Effort = "L"
)

// DataSensitivity tags the kind of data a piece of code handles.
type DataSensitivity string

const (
	SensitivityNone        DataSensitivity = "None"
	SensitivityPII         DataSensitivity = "PII"
	SensitivityCredentials DataSensitivity = "Credentials"
	SensitivityPayment     DataSensitivity = "Payment"
	SensitivityHealth      DataSensitivity = "Health"
	SensitivityOther       DataSensitivity = "Other"
)

// AnalysisReport is the final business-language output of one request.
//
// # Description
//
// Built once per request either from a validated LLM reply or from the
// deterministic fallback synthesis, returned to the caller and discarded.
// The validate tags double as the structural contract for LLM replies (see
// report.ParseReport), so any change here changes what the formatter accepts.
type AnalysisReport struct {
	DetectedLanguage Language     `json:"detectedLanguage"`
	Summary          Summary      `json:"summary" validate:"required"`
	Risks            []Risk       `json:"risks" validate:"dive"`
	NextActions      []NextAction `json:"next_actions" validate:"dive"`
	Artifacts        Artifacts    `json:"artifacts"`
}

// Summary describes what the code does in business terms.
type Summary struct {
	Purpose         string            `json:"purpose" validate:"required,max=1000"`
	IO              IO                `json:"io"`
	DataSensitivity []DataSensitivity `json:"data_sensitivity" validate:"dive,oneof=None PII Credentials Payment Health Other"`
	SideEffects     []string          `json:"side_effects"`
	OpsRequirements []string          `json:"ops_requirements"`
	ScopeLimits     []string          `json:"scope_limits"`
}

// IO lists the inputs and outputs of the analyzed code.
type IO struct {
	Inputs  []string `json:"inputs"`
	Outputs []string `json:"outputs"`
}

// Risk is one business risk derived from one or more findings.
type Risk struct {
	Risk     string   `json:"risk" validate:"required"`
	Severity Severity `json:"severity" validate:"required,oneof=High Medium Low"`
	Evidence Evidence `json:"evidence"`
	Fix      string   `json:"fix" validate:"required"`
	Effort   Effort   `json:"effort,omitempty" validate:"omitempty,oneof=S M L"`
	Priority int      `json:"priority" validate:"min=1"`
}

// Evidence points back at the finding that justifies a risk.
type Evidence struct {
	Rule    string `json:"rule"`
	File    string `json:"file"`
	Line    int    `json:"line"`
	Excerpt string `json:"excerpt"`
}

// NextAction is a follow-up task with a ready-to-use prompt for a coding
// assistant.
type NextAction struct {
	Title  string `json:"title" validate:"required"`
	Prompt string `json:"prompt" validate:"required"`
}

// Artifacts holds exportable renderings of the report.
type Artifacts struct {
	Markdown string `json:"markdown"`
}

// Validate checks the report against its struct-tag contract.
func (r *AnalysisReport) Validate() error {
	return validate.Struct(r)
}
