// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package routes registers the HTTP surface of the CodeBrief service.
package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/CodeBrief/pkg/extensions"
	"github.com/AleutianAI/CodeBrief/services/orchestrator/handlers"
	"github.com/AleutianAI/CodeBrief/services/orchestrator/middleware"
)

// Dependencies are the collaborators behind the routes.
type Dependencies struct {
	Analyzer handlers.Analyzer
	Status   handlers.StatusReader

	// Metrics serves /metrics. Nil leaves the route unregistered.
	Metrics http.Handler
}

// SetupRoutes registers middleware and routes on router.
//
// # Routes
//
//	GET  /health
//	GET  /metrics                  when deps.Metrics is set
//	POST /api/analyze
//	GET  /api/rate-limit/status
//
// Every route gets a request ID. Routes under /api also resolve the client
// key with opts.ClientIdentifier.
func SetupRoutes(router *gin.Engine, deps Dependencies, opts extensions.ServiceOptions) {
	opts = opts.Normalize()
	router.Use(middleware.RequestID())

	router.GET("/health", handlers.HealthCheck)
	if deps.Metrics != nil {
		router.GET("/metrics", gin.WrapH(deps.Metrics))
	}

	api := router.Group("/api")
	api.Use(middleware.ClientKey(opts.ClientIdentifier))
	{
		api.POST("/analyze", handlers.HandleAnalyze(deps.Analyzer))
		api.GET("/rate-limit/status", handlers.HandleRateLimitStatus(deps.Status))
	}
}
