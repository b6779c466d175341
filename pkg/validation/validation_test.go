// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidatePolicyName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"plain file", "security.md", false},
		{"subdirectory", "team/payments.md", false},
		{"dotted name", "v1.2.policy.md", false},
		{"empty", "", true},
		{"parent traversal", "../x.md", true},
		{"nested traversal", "team/../../etc/passwd", true},
		{"windows traversal", `team\..\x.md`, true},
		{"absolute", "/etc/passwd", true},
		{"backslash root", `\x.md`, true},
		{"double dot in name", "a..b.md", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePolicyName(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidPolicyName)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidatePolicyNames(t *testing.T) {
	assert.NoError(t, ValidatePolicyNames(nil))
	assert.NoError(t, ValidatePolicyNames([]string{"a.md", "b/c.md"}))

	err := ValidatePolicyNames([]string{"ok.md", "../bad.md", "/abs.md"})
	assert.ErrorIs(t, err, ErrInvalidPolicyName)
	assert.Contains(t, err.Error(), "../bad.md")
	assert.Contains(t, err.Error(), "/abs.md")
	assert.NotContains(t, err.Error(), "ok.md")
}

func TestIsRequestID(t *testing.T) {
	assert.True(t, IsRequestID("req-123"))
	assert.True(t, IsRequestID("0f8fad5b-d9cb-469f-a165-70867728950e"))
	assert.True(t, IsRequestID("trace:span.1_a"))
	assert.False(t, IsRequestID(""))
	assert.False(t, IsRequestID("has space"))
	assert.False(t, IsRequestID("new\nline"))
	assert.False(t, IsRequestID(strings.Repeat("a", 129)))
}
