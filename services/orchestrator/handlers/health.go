// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/CodeBrief/services/orchestrator/middleware"
	"github.com/AleutianAI/CodeBrief/services/orchestrator/ratelimit"
)

// HealthCheck serves GET /health.
func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
	})
}

// StatusReader reads quota counters. Implemented by *ratelimit.Limiter.
type StatusReader interface {
	Status(ctx context.Context, client string) (ratelimit.Status, error)
	Limits() ratelimit.Limits
}

type tierStatus struct {
	Limit     int   `json:"limit"`
	Count     int64 `json:"count"`
	Remaining int64 `json:"remaining"`
}

type globalStatus struct {
	Enabled bool  `json:"enabled"`
	Limit   int   `json:"limit"`
	Count   int64 `json:"count"`
}

// RateLimitStatus is the body of GET /api/rate-limit/status.
type RateLimitStatus struct {
	Client string       `json:"client"`
	Minute tierStatus   `json:"minute"`
	Daily  tierStatus   `json:"daily"`
	Global globalStatus `json:"global"`
}

// HandleRateLimitStatus serves GET /api/rate-limit/status.
//
// # Description
//
// Reports the caller's counters without consuming quota. Returns 503 when
// the counter store is not ready.
func HandleRateLimitStatus(reader StatusReader) gin.HandlerFunc {
	return func(c *gin.Context) {
		client := middleware.GetClientKey(c)
		s, err := reader.Status(c.Request.Context(), client)
		if err != nil {
			if errors.Is(err, ratelimit.ErrStoreNotReady) {
				c.JSON(http.StatusServiceUnavailable, gin.H{"error": "rate limit store unavailable"})
				return
			}
			slog.Error("Failed to read rate limit status", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read rate limit status"})
			return
		}

		limits := reader.Limits()
		c.JSON(http.StatusOK, RateLimitStatus{
			Client: client,
			Minute: tier(limits.Minute, s.MinuteCount),
			Daily:  tier(limits.Daily, s.DailyCount),
			Global: globalStatus{
				Enabled: limits.GlobalEnabled,
				Limit:   limits.GlobalDaily,
				Count:   s.GlobalCount,
			},
		})
	}
}

func tier(limit int, count int64) tierStatus {
	rem := int64(limit) - count
	if rem < 0 {
		rem = 0
	}
	return tierStatus{Limit: limit, Count: count, Remaining: rem}
}
