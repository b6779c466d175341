// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package pipeline

import (
	"fmt"

	"github.com/AleutianAI/CodeBrief/services/orchestrator/ratelimit"
)

// ValidationError is a rejected request. Message is safe to show clients.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// QuotaExceededError is a request denied by the rate limiter.
type QuotaExceededError struct {
	Decision ratelimit.Decision
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("rate limit exceeded (%s), retry after %ds", e.Decision.Kind, e.Decision.RetryAfter)
}

// UnexpectedError is any other failure, including a recovered panic.
type UnexpectedError struct {
	Message string
	Err     error

	// Decision is the admission that preceded the failure. Nil when the
	// request failed before the limiter admitted it.
	Decision *ratelimit.Decision
}

func (e *UnexpectedError) Error() string {
	return e.Message
}

func (e *UnexpectedError) Unwrap() error {
	return e.Err
}
