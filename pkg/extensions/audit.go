// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package extensions

import (
	"context"
	"log/slog"
	"time"
)

// Audit event types.
const (
	EventAnalysisCompleted = "analysis.completed"
	EventAnalysisDenied    = "analysis.denied"
	EventAnalysisRejected  = "analysis.rejected"
	EventAnalysisFailed    = "analysis.failed"
)

// AuditEvent describes one analysis outcome. It never carries the
// submitted code.
type AuditEvent struct {
	// EventType is one of the Event* constants.
	EventType string

	// Timestamp defaults to time.Now().UTC() when zero.
	Timestamp time.Time

	ClientKey string
	RequestID string

	// Outcome is success, denied, invalid or error.
	Outcome string

	// Metadata holds sizes, counts and the report path. Common keys:
	// "language", "content_bytes", "risks", "report_outcome", "deny_kind".
	Metadata map[string]any
}

// AuditLogger records analysis outcomes.
//
// Log is called on the request path and must return quickly.
type AuditLogger interface {
	Log(ctx context.Context, event AuditEvent) error
	Flush(ctx context.Context) error
}

// NopAuditLogger discards every event.
type NopAuditLogger struct{}

func (l *NopAuditLogger) Log(ctx context.Context, event AuditEvent) error { return nil }

func (l *NopAuditLogger) Flush(ctx context.Context) error { return nil }

// SlogAuditLogger writes events as structured log records.
type SlogAuditLogger struct {
	logger *slog.Logger
}

// NewSlogAuditLogger writes to logger, or slog.Default when nil.
func NewSlogAuditLogger(logger *slog.Logger) *SlogAuditLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogAuditLogger{logger: logger}
}

func (l *SlogAuditLogger) Log(ctx context.Context, event AuditEvent) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	attrs := []slog.Attr{
		slog.String("event_type", event.EventType),
		slog.Time("timestamp", event.Timestamp),
		slog.String("client", event.ClientKey),
		slog.String("request_id", event.RequestID),
		slog.String("outcome", event.Outcome),
	}
	if len(event.Metadata) > 0 {
		meta := make([]any, 0, len(event.Metadata)*2)
		for k, v := range event.Metadata {
			meta = append(meta, k, v)
		}
		attrs = append(attrs, slog.Group("metadata", meta...))
	}
	l.logger.LogAttrs(ctx, slog.LevelInfo, "audit", slog.Attr{Key: "audit", Value: slog.GroupValue(attrs...)})
	return nil
}

func (l *SlogAuditLogger) Flush(ctx context.Context) error { return nil }

var (
	_ AuditLogger = (*NopAuditLogger)(nil)
	_ AuditLogger = (*SlogAuditLogger)(nil)
)
