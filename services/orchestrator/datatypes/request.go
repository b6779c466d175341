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

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// =============================================================================
// Shared Validator Instance
// =============================================================================

// validate is shared by request and report validation. Initialized in init()
// with the custom maxbytes rule.
var validate *validator.Validate

func init() {
	validate = validator.New()
	_ = validate.RegisterValidation("maxbytes", validateMaxBytes)
}

// validateMaxBytes enforces MaxContentBytes on byte length, not rune count.
func validateMaxBytes(fl validator.FieldLevel) bool {
	return len(fl.Field().String()) <= MaxContentBytes
}

// =============================================================================
// Analyze Request
// =============================================================================

const (
	// MaxPoliciesPerRequest bounds how many policy files one request may name.
	MaxPoliciesPerRequest = 16
)

// AnalyzeRequest is the body of POST /api/analyze.
//
// # Fields
//
//   - Content: Required. Code to analyze, at most MaxContentBytes bytes.
//   - LanguageHint: Optional. auto (default), javascript, typescript or python.
//   - Policies: Optional. Policy file names resolved by the policy loader.
//   - Save: Accepted for client compatibility. Reports are never stored.
type AnalyzeRequest struct {
	Content      string   `json:"content" validate:"required,maxbytes"`
	LanguageHint string   `json:"languageHint" validate:"omitempty,oneof=auto javascript typescript python"`
	Policies     []string `json:"policies,omitempty" validate:"max=16,dive,required,max=255"`
	Save         bool     `json:"save"`
}

// RequestError is a client-facing validation failure with a stable message.
type RequestError struct {
	Field   string
	Message string
}

func (e *RequestError) Error() string {
	return e.Message
}

// Validate checks the request and returns a *RequestError describing the
// first violated rule.
func (r *AnalyzeRequest) Validate() error {
	err := validate.Struct(r)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return &RequestError{Message: err.Error()}
	}
	return describeFieldError(fieldErrs[0])
}

// Hint returns the effective language hint, treating empty as auto.
func (r *AnalyzeRequest) Hint() string {
	if r.LanguageHint == "" {
		return HintAuto
	}
	return r.LanguageHint
}

func describeFieldError(fe validator.FieldError) *RequestError {
	switch fe.Field() {
	case "Content":
		if fe.Tag() == "maxbytes" {
			return &RequestError{Field: "content",
				Message: fmt.Sprintf("content exceeds %s limit", MaxContentLabel)}
		}
		return &RequestError{Field: "content", Message: "content is required"}
	case "LanguageHint":
		return &RequestError{Field: "languageHint",
			Message: "languageHint must be one of auto, javascript, typescript, python"}
	default:
		return &RequestError{Field: "policies",
			Message: fmt.Sprintf("policies must list at most %d non-empty file names", MaxPoliciesPerRequest)}
	}
}
