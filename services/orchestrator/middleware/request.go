// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package middleware provides HTTP middleware for the CodeBrief service.
//
// # Request Flow
//
//	Request
//	   │
//	   ▼
//	RequestID ──► honor or mint X-Request-ID, echo it on the response
//	   │
//	   ▼
//	ClientKey ──► resolve the rate-limit identity via ClientIdentifier
//	   │
//	   ▼
//	Handler (reads both via GetRequestID / GetClientKey)
//
// The client key defaults to the peer IP as seen by gin, so trusted proxy
// configuration on the engine decides whether X-Forwarded-For is honored.
package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/CodeBrief/pkg/extensions"
	"github.com/AleutianAI/CodeBrief/pkg/validation"
)

// =============================================================================
// Context Keys
// =============================================================================

const (
	// RequestIDHeader carries the request ID in both directions.
	RequestIDHeader = "X-Request-ID"

	// RequestIDAttribute tags the active span with the request ID.
	RequestIDAttribute = "codebrief.request_id"

	requestIDKey = "codebrief_request_id"
	clientKeyKey = "codebrief_client_key"
)

// =============================================================================
// Context Helpers
// =============================================================================

// GetRequestID returns the request ID set by RequestID, or "" when the
// middleware did not run.
func GetRequestID(c *gin.Context) string {
	return c.GetString(requestIDKey)
}

// GetClientKey returns the client key set by ClientKey. Without the
// middleware it falls back to the peer IP.
func GetClientKey(c *gin.Context) string {
	if key := c.GetString(clientKeyKey); key != "" {
		return key
	}
	return extensions.IPIdentifier{}.Identify(c.Request, c.ClientIP())
}

// =============================================================================
// Middleware
// =============================================================================

// RequestID assigns every request an ID.
//
// # Description
//
// A well-formed incoming X-Request-ID is kept; anything else is replaced by
// a random UUID. The ID is stored in the gin context and echoed in the
// response header before the handler runs, so it is present on every
// response including aborted ones. When a span is active on the request
// context the ID is also recorded on it.
//
// # Thread Safety
//
// Thread-safe. The returned middleware can be used concurrently.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if !validation.IsRequestID(id) {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(RequestIDHeader, id)
		trace.SpanFromContext(c.Request.Context()).SetAttributes(attribute.String(RequestIDAttribute, id))
		c.Next()
	}
}

// ClientKey resolves the rate-limit identity of the caller with identifier
// and stores it for handlers. A nil identifier uses the peer IP.
func ClientKey(identifier extensions.ClientIdentifier) gin.HandlerFunc {
	if identifier == nil {
		identifier = &extensions.IPIdentifier{}
	}
	return func(c *gin.Context) {
		c.Set(clientKeyKey, identifier.Identify(c.Request, c.ClientIP()))
		c.Next()
	}
}
