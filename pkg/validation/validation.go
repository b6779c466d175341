// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package validation provides validators for user-provided values that end
// up in file paths, logs or response headers.
package validation

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

// ErrInvalidPolicyName marks a policy name that could escape the policy
// directory.
var ErrInvalidPolicyName = errors.New("invalid policy file path")

// requestIDPattern bounds request IDs so they are safe to log and echo.
var requestIDPattern = regexp.MustCompile(`^[A-Za-z0-9._:-]{1,128}$`)

// ValidatePolicyName rejects empty and absolute names and any name
// containing "..". Subdirectories are allowed.
//
// Example:
//
//	if err := validation.ValidatePolicyName(name); err != nil {
//	    return "", err
//	}
//	data, err := os.ReadFile(filepath.Join(dir, name))
func ValidatePolicyName(name string) error {
	if name == "" || strings.Contains(name, "..") || filepath.IsAbs(name) ||
		strings.HasPrefix(name, "/") || strings.HasPrefix(name, `\`) {
		return fmt.Errorf("%w: %q", ErrInvalidPolicyName, name)
	}
	return nil
}

// ValidatePolicyNames validates every name and reports all invalid ones.
func ValidatePolicyNames(names []string) error {
	var invalid []string
	for _, n := range names {
		if err := ValidatePolicyName(n); err != nil {
			invalid = append(invalid, n)
		}
	}
	if len(invalid) > 0 {
		return fmt.Errorf("%w: %q", ErrInvalidPolicyName, invalid)
	}
	return nil
}

// IsRequestID reports whether id is an acceptable client-supplied request
// ID: 1-128 characters from [A-Za-z0-9._:-].
func IsRequestID(id string) bool {
	return requestIDPattern.MatchString(id)
}
