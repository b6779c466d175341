// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package observability

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

// newTestMetrics registers metrics on an isolated registry so tests do not
// collide with the global Prometheus registry.
func newTestMetrics(t *testing.T) *AnalysisMetrics {
	t.Helper()
	return NewAnalysisMetrics(prometheus.NewRegistry())
}

func TestRecordRequest(t *testing.T) {
	m := newTestMetrics(t)

	m.RecordRequest(OutcomeSuccess, 2*time.Second)
	m.RecordRequest(OutcomeSuccess, time.Second)
	m.RecordRequest(OutcomeQuotaMinute, 0)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("quota_minute")))
}

func TestObserveScan(t *testing.T) {
	m := newTestMetrics(t)

	m.ObserveScan("semgrep", time.Second, 3, nil)
	m.ObserveScan("semgrep", time.Second, 0, errors.New("boom"))
	m.ObserveScan("secrets", time.Millisecond, 1, nil)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.ScansTotal.WithLabelValues("semgrep", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ScansTotal.WithLabelValues("semgrep", "failed")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.FindingsTotal.WithLabelValues("semgrep")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FindingsTotal.WithLabelValues("secrets")))
}

func TestRecordReportAndAdmission(t *testing.T) {
	m := newTestMetrics(t)

	m.RecordReport("no_key")
	m.RecordAdmission("allowed")
	m.RecordAdmission("allowed")
	m.RecordStoreError()

	assert.Equal(t, 1.0, testutil.ToFloat64(m.ReportsTotal.WithLabelValues("no_key")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.AdmissionsTotal.WithLabelValues("allowed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StoreErrorsTotal))
}

func TestNilMetricsAreNoOps(t *testing.T) {
	var m *AnalysisMetrics

	assert.NotPanics(t, func() {
		m.RecordRequest(OutcomeError, time.Second)
		m.ObserveScan("semgrep", time.Second, 1, nil)
		m.RecordReport("accepted")
		m.RecordAdmission("minute")
		m.RecordStoreError()
	})
}
