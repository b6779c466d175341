// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package extensions defines the injection points of the CodeBrief
// service. Every point has a default, so a zero ServiceOptions passed
// through Normalize is always usable.
//
// # Extension Points
//
//   - client.go: ClientIdentifier, which picks the rate-limit client key
//   - audit.go: AuditLogger, which records analysis outcomes
//
// # Thread Safety
//
// Implementations must be safe for concurrent use.
package extensions

// ServiceOptions groups the extension points.
//
// Example:
//
//	opts := extensions.DefaultOptions().
//	    WithClientIdentifier(&extensions.HeaderIdentifier{Header: "X-API-Key"}).
//	    WithAudit(extensions.NewSlogAuditLogger(nil))
type ServiceOptions struct {
	// ClientIdentifier derives the rate-limit key for a request.
	// Default: IPIdentifier
	ClientIdentifier ClientIdentifier

	// AuditLogger records analysis outcomes.
	// Default: NopAuditLogger
	AuditLogger AuditLogger
}

// DefaultOptions keys clients by IP and discards audit events.
func DefaultOptions() ServiceOptions {
	return ServiceOptions{
		ClientIdentifier: &IPIdentifier{},
		AuditLogger:      &NopAuditLogger{},
	}
}

// Normalize fills nil fields with defaults.
func (opts ServiceOptions) Normalize() ServiceOptions {
	defaults := DefaultOptions()
	if opts.ClientIdentifier == nil {
		opts.ClientIdentifier = defaults.ClientIdentifier
	}
	if opts.AuditLogger == nil {
		opts.AuditLogger = defaults.AuditLogger
	}
	return opts
}

// WithClientIdentifier returns a copy of opts with id.
func (opts ServiceOptions) WithClientIdentifier(id ClientIdentifier) ServiceOptions {
	opts.ClientIdentifier = id
	return opts
}

// WithAudit returns a copy of opts with logger.
func (opts ServiceOptions) WithAudit(logger AuditLogger) ServiceOptions {
	opts.AuditLogger = logger
	return opts
}
