// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package handlers holds the gin handlers of the CodeBrief service.
package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/CodeBrief/services/orchestrator/datatypes"
	"github.com/AleutianAI/CodeBrief/services/orchestrator/middleware"
	"github.com/AleutianAI/CodeBrief/services/orchestrator/pipeline"
	"github.com/AleutianAI/CodeBrief/services/orchestrator/ratelimit"
)

// maxBodyBytes caps the raw request body. JSON escaping can grow a sample
// of MaxContentBytes several times over, so the cap is generous and the
// content limit itself is enforced after decoding.
const maxBodyBytes = 8 * datatypes.MaxContentBytes

// Rate limit response headers.
const (
	HeaderMinuteLimit     = "X-RateLimit-Minute-Limit"
	HeaderMinuteRemaining = "X-RateLimit-Minute-Remaining"
	HeaderDailyLimit      = "X-RateLimit-Daily-Limit"
	HeaderDailyRemaining  = "X-RateLimit-Daily-Remaining"
)

// Analyzer runs one analysis. Implemented by *pipeline.Orchestrator.
type Analyzer interface {
	Analyze(ctx context.Context, req pipeline.Request) (*pipeline.Result, error)
}

// quotaLimit is the limit object of a 429 body.
type quotaLimit struct {
	Type    string `json:"type"`
	Limit   int    `json:"limit"`
	Current int64  `json:"current"`
	ResetAt string `json:"resetAt"`
}

// HandleAnalyze serves POST /api/analyze.
//
// # Description
//
// Decodes the JSON body and hands it to the analyzer. Responses:
//
//	200  AnalysisReport
//	400  {error}                                  invalid body or request
//	429  {error, message, retryAfter, limit}      minute or daily quota
//	503  {error, message, retryAfter}             global quota, store down
//	500  {error: "Analysis failed", message}      anything else
//
// Rate limit headers are set whenever the limiter ran, and Retry-After on
// every denial.
//
// # Thread Safety
//
// Thread-safe when analyzer is.
func HandleAnalyze(analyzer Analyzer) gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := middleware.GetRequestID(c)

		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes)
		var body datatypes.AnalyzeRequest
		if err := c.ShouldBindJSON(&body); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				c.JSON(http.StatusBadRequest, gin.H{"error": "content exceeds " + datatypes.MaxContentLabel + " limit"})
				return
			}
			slog.Info("Rejected malformed analyze body", "request_id", requestID, "error", err)
			c.JSON(http.StatusBadRequest, gin.H{"error": "request body must be a JSON object"})
			return
		}

		res, err := analyzer.Analyze(c.Request.Context(), pipeline.Request{
			Content:      body.Content,
			LanguageHint: body.LanguageHint,
			Policies:     body.Policies,
			ClientKey:    middleware.GetClientKey(c),
			RequestID:    requestID,
		})
		if err != nil {
			writeAnalyzeError(c, requestID, err)
			return
		}

		setQuotaHeaders(c, res.Decision)
		c.JSON(http.StatusOK, res.Report)
	}
}

func writeAnalyzeError(c *gin.Context, requestID string, err error) {
	var vErr *pipeline.ValidationError
	var qErr *pipeline.QuotaExceededError
	var uErr *pipeline.UnexpectedError
	if errors.As(err, &uErr) && uErr.Decision != nil {
		setQuotaHeaders(c, *uErr.Decision)
	}
	switch {
	case errors.As(err, &vErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": vErr.Message})
	case errors.As(err, &qErr):
		writeDenial(c, qErr.Decision)
	default:
		slog.Error("Analysis failed", "request_id", requestID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Analysis failed",
			"message": err.Error(),
		})
	}
}

func writeDenial(c *gin.Context, d ratelimit.Decision) {
	setQuotaHeaders(c, d)
	c.Header("Retry-After", strconv.Itoa(d.RetryAfter))

	switch d.Kind {
	case ratelimit.KindMinute:
		c.JSON(http.StatusTooManyRequests, gin.H{
			"error":      "Too Many Requests",
			"message":    "Too many requests. Please retry in a minute.",
			"retryAfter": d.RetryAfter,
			"limit":      limitBody(d),
		})
	case ratelimit.KindDaily:
		c.JSON(http.StatusTooManyRequests, gin.H{
			"error":      "Daily Limit Exceeded",
			"message":    "The daily usage limit has been reached. Please try again tomorrow.",
			"retryAfter": d.RetryAfter,
			"limit":      limitBody(d),
		})
	case ratelimit.KindGlobal:
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":      "Service Temporarily Unavailable",
			"message":    "The service is busy. Please try again later.",
			"retryAfter": d.RetryAfter,
		})
	default:
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":      "Service Temporarily Unavailable",
			"message":    "Rate limiting is unavailable. Please try again shortly.",
			"retryAfter": d.RetryAfter,
		})
	}
}

func limitBody(d ratelimit.Decision) quotaLimit {
	return quotaLimit{
		Type:    string(d.Kind),
		Limit:   d.Limit,
		Current: d.Current,
		ResetAt: d.ResetAt.UTC().Format(time.RFC3339),
	}
}

func setQuotaHeaders(c *gin.Context, d ratelimit.Decision) {
	c.Header(HeaderMinuteLimit, strconv.Itoa(d.MinuteLimit))
	c.Header(HeaderMinuteRemaining, strconv.Itoa(d.MinuteRemaining))
	c.Header(HeaderDailyLimit, strconv.Itoa(d.DailyLimit))
	c.Header(HeaderDailyRemaining, strconv.Itoa(d.DailyRemaining))
}
