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
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/AleutianAI/CodeBrief/services/orchestrator/datatypes"
)

// ErrSchema indicates a reply that is JSON but not an AnalysisReport.
var ErrSchema = errors.New("reply does not match the report schema")

// requiredTopLevel lists the fields every reply must carry.
var requiredTopLevel = []string{"summary", "risks", "next_actions", "artifacts"}

// ParseReport checks raw against the report contract and decodes it.
//
// # Description
//
// Runs three checks in order and rejects on the first failure:
//  1. required fields are present: the four top-level fields,
//     summary.purpose as a string and summary.io as an object
//  2. strict decode into datatypes.AnalysisReport, unknown fields rejected
//  3. struct-tag validation (enums, required strings, priority >= 1)
//
// Nothing is coerced. Nil slices are normalized to empty ones so the report
// always serializes arrays.
//
// # Outputs
//
//   - *datatypes.AnalysisReport: The decoded report.
//   - error: Wraps ErrSchema on any violation.
func ParseReport(raw string) (*datatypes.AnalysisReport, error) {
	if err := checkRequired([]byte(raw)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSchema, err)
	}

	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	dec.DisallowUnknownFields()
	var r datatypes.AnalysisReport
	if err := dec.Decode(&r); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSchema, err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: trailing data after report object", ErrSchema)
	}
	if err := r.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSchema, err)
	}

	normalize(&r)
	return &r, nil
}

func checkRequired(raw []byte) error {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(raw, &top); err != nil {
		return fmt.Errorf("not a JSON object: %v", err)
	}
	for _, field := range requiredTopLevel {
		if v, ok := top[field]; !ok || isNull(v) {
			return fmt.Errorf("missing field %q", field)
		}
	}

	var summary map[string]json.RawMessage
	if err := json.Unmarshal(top["summary"], &summary); err != nil {
		return fmt.Errorf("summary is not an object")
	}
	var purpose string
	if err := json.Unmarshal(summary["purpose"], &purpose); err != nil || summary["purpose"] == nil {
		return fmt.Errorf("summary.purpose must be a string")
	}
	var ioField map[string]json.RawMessage
	if err := json.Unmarshal(summary["io"], &ioField); err != nil || ioField == nil {
		return fmt.Errorf("summary.io must be an object")
	}
	return nil
}

func isNull(v json.RawMessage) bool {
	return len(bytes.TrimSpace(v)) == 0 || string(bytes.TrimSpace(v)) == "null"
}

func normalize(r *datatypes.AnalysisReport) {
	s := &r.Summary
	s.IO.Inputs = nonNil(s.IO.Inputs)
	s.IO.Outputs = nonNil(s.IO.Outputs)
	s.SideEffects = nonNil(s.SideEffects)
	s.OpsRequirements = nonNil(s.OpsRequirements)
	s.ScopeLimits = nonNil(s.ScopeLimits)
	if s.DataSensitivity == nil {
		s.DataSensitivity = []datatypes.DataSensitivity{}
	}
	if r.Risks == nil {
		r.Risks = []datatypes.Risk{}
	}
	if r.NextActions == nil {
		r.NextActions = []datatypes.NextAction{}
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
