// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package routes

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/CodeBrief/pkg/extensions"
	"github.com/AleutianAI/CodeBrief/services/orchestrator/datatypes"
	"github.com/AleutianAI/CodeBrief/services/orchestrator/middleware"
	"github.com/AleutianAI/CodeBrief/services/orchestrator/pipeline"
	"github.com/AleutianAI/CodeBrief/services/orchestrator/ratelimit"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubAnalyzer struct {
	client string
}

func (s *stubAnalyzer) Analyze(_ context.Context, req pipeline.Request) (*pipeline.Result, error) {
	s.client = req.ClientKey
	return &pipeline.Result{Report: &datatypes.AnalysisReport{DetectedLanguage: datatypes.LanguageJavaScript}}, nil
}

func newRouter(t *testing.T, withMetrics bool, opts extensions.ServiceOptions) (*gin.Engine, *stubAnalyzer) {
	t.Helper()
	analyzer := &stubAnalyzer{}
	deps := Dependencies{
		Analyzer: analyzer,
		Status:   ratelimit.NewLimiter(ratelimit.NewMemoryStore(nil), ratelimit.DefaultLimits()),
	}
	if withMetrics {
		deps.Metrics = promhttp.HandlerFor(prometheus.NewRegistry(), promhttp.HandlerOpts{})
	}
	router := gin.New()
	SetupRoutes(router, deps, opts)
	return router, analyzer
}

func TestSetupRoutes_RegistersRoutes(t *testing.T) {
	router, _ := newRouter(t, true, extensions.DefaultOptions())

	registered := make(map[string]bool)
	for _, r := range router.Routes() {
		registered[r.Method+" "+r.Path] = true
	}
	for _, want := range []string{
		"GET /health",
		"GET /metrics",
		"POST /api/analyze",
		"GET /api/rate-limit/status",
	} {
		assert.True(t, registered[want], "missing route %s", want)
	}
}

func TestSetupRoutes_MetricsOptional(t *testing.T) {
	router, _ := newRouter(t, false, extensions.DefaultOptions())

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSetupRoutes_RequestIDOnEveryRoute(t *testing.T) {
	router, _ := newRouter(t, true, extensions.DefaultOptions())

	for _, path := range []string{"/health", "/metrics", "/api/rate-limit/status", "/missing"} {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		assert.NotEmpty(t, w.Header().Get(middleware.RequestIDHeader), path)
	}
}

func TestSetupRoutes_UsesClientIdentifier(t *testing.T) {
	opts := extensions.ServiceOptions{ClientIdentifier: &extensions.HeaderIdentifier{Header: "X-API-Key"}}
	router, analyzer := newRouter(t, false, opts)

	req := httptest.NewRequest(http.MethodPost, "/api/analyze", strings.NewReader(`{"content":"x"}`))
	req.Header.Set("X-API-Key", "secret")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.HasPrefix(analyzer.client, "key-"))
}
