// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Test Helpers
// =============================================================================

type failingStore struct{ *MemoryStore }

func (f *failingStore) Incr(context.Context, string, time.Duration) (int64, error) {
	return 0, errors.New("connection reset")
}

func (f *failingStore) Ready(context.Context) bool { return true }

type recorder struct {
	admissions  []string
	storeErrors int
}

func (r *recorder) RecordAdmission(decision string) { r.admissions = append(r.admissions, decision) }
func (r *recorder) RecordStoreError() { r.storeErrors++ }

// fixedClock is 12:00:30 UTC, thirty seconds into a minute.
func fixedClock() time.Time {
	return time.Date(2025, 3, 14, 12, 0, 30, 0, time.UTC)
}

func newTestLimiter(limits Limits, opts ...LimiterOption) (*Limiter, *MemoryStore) {
	store := NewMemoryStore(fixedClock)
	opts = append([]LimiterOption{WithClock(fixedClock)}, opts...)
	return NewLimiter(store, limits, opts...), store
}

// =============================================================================
// Admission Tests
// =============================================================================

func TestAdmit_MinuteLimit(t *testing.T) {
	l, _ := newTestLimiter(DefaultLimits())
	ctx := context.Background()

	for i := 1; i <= 10; i++ {
		d := l.Admit(ctx, "1.2.3.4")
		require.True(t, d.Allowed, "request %d", i)
		assert.Equal(t, 10-i, d.MinuteRemaining)
		assert.Equal(t, 200-i, d.DailyRemaining)
	}

	d := l.Admit(ctx, "1.2.3.4")

	assert.False(t, d.Allowed)
	assert.Equal(t, KindMinute, d.Kind)
	assert.Equal(t, 30, d.RetryAfter)
	assert.Equal(t, 10, d.Limit)
	assert.Equal(t, int64(11), d.Current)
	assert.Equal(t, time.Date(2025, 3, 14, 12, 1, 0, 0, time.UTC), d.ResetAt)
	assert.Zero(t, d.MinuteRemaining)

	other := l.Admit(ctx, "5.6.7.8")
	assert.True(t, other.Allowed)
}

func TestAdmit_DailyLimit(t *testing.T) {
	l, _ := newTestLimiter(Limits{Minute: 100, Daily: 2, GlobalDaily: 5000, FailOpen: true})
	ctx := context.Background()

	l.Admit(ctx, "c")
	l.Admit(ctx, "c")
	d := l.Admit(ctx, "c")

	assert.False(t, d.Allowed)
	assert.Equal(t, KindDaily, d.Kind)
	assert.Equal(t, 2, d.Limit)
	// 11h59m30s to midnight.
	assert.Equal(t, 11*3600+59*60+30, d.RetryAfter)
	assert.Equal(t, time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC), d.ResetAt)
}

func TestAdmit_MinuteCheckedBeforeDaily(t *testing.T) {
	l, _ := newTestLimiter(Limits{Minute: 1, Daily: 1, FailOpen: true})
	ctx := context.Background()

	l.Admit(ctx, "c")
	d := l.Admit(ctx, "c")

	assert.Equal(t, KindMinute, d.Kind)
}

func TestAdmit_GlobalLimit(t *testing.T) {
	l, _ := newTestLimiter(Limits{Minute: 100, Daily: 100, GlobalEnabled: true, GlobalDaily: 2, FailOpen: true})
	ctx := context.Background()

	assert.True(t, l.Admit(ctx, "a").Allowed)
	assert.True(t, l.Admit(ctx, "b").Allowed)
	d := l.Admit(ctx, "c")

	assert.False(t, d.Allowed)
	assert.Equal(t, KindGlobal, d.Kind)
	assert.Equal(t, GlobalRetryAfter, d.RetryAfter)
}

func TestAdmit_GlobalDisabledIgnoresCounter(t *testing.T) {
	l, store := newTestLimiter(Limits{Minute: 100, Daily: 100, GlobalDaily: 1, FailOpen: true})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		assert.True(t, l.Admit(ctx, "a").Allowed)
	}
	n, err := store.Get(ctx, "rate:global:day:2025-03-14")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestAdmit_StoreNotReady(t *testing.T) {
	tests := []struct {
		name     string
		failOpen bool
		allowed  bool
		kind     Kind
	}{
		{"fail open", true, true, KindNone},
		{"fail closed", false, false, KindUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			limits := DefaultLimits()
			limits.FailOpen = tt.failOpen
			rec := &recorder{}
			l, store := newTestLimiter(limits, WithAdmissionRecorder(rec))
			require.NoError(t, store.Close())

			d := l.Admit(context.Background(), "c")

			assert.Equal(t, tt.allowed, d.Allowed)
			assert.Equal(t, tt.kind, d.Kind)
			assert.Equal(t, 1, rec.storeErrors)
			assert.Equal(t, 10, d.MinuteRemaining)
		})
	}
}

func TestAdmit_StoreErrorFailsOpen(t *testing.T) {
	store := &failingStore{MemoryStore: NewMemoryStore(nil)}
	l := NewLimiter(store, DefaultLimits())

	d := l.Admit(context.Background(), "c")

	assert.True(t, d.Allowed)
}

func TestAdmit_RecordsDecisions(t *testing.T) {
	rec := &recorder{}
	l, _ := newTestLimiter(Limits{Minute: 1, Daily: 10, FailOpen: true}, WithAdmissionRecorder(rec))

	l.Admit(context.Background(), "c")
	l.Admit(context.Background(), "c")

	assert.Equal(t, []string{"allowed", "minute"}, rec.admissions)
}

// =============================================================================
// Status and Key Tests
// =============================================================================

func TestStatus_DoesNotIncrement(t *testing.T) {
	l, _ := newTestLimiter(Limits{Minute: 10, Daily: 10, GlobalEnabled: true, GlobalDaily: 10, FailOpen: true})
	ctx := context.Background()
	l.Admit(ctx, "c")
	l.Admit(ctx, "c")

	s1, err := l.Status(ctx, "c")
	require.NoError(t, err)
	s2, err := l.Status(ctx, "c")
	require.NoError(t, err)

	assert.Equal(t, Status{MinuteCount: 2, DailyCount: 2, GlobalCount: 2}, s1)
	assert.Equal(t, s1, s2)
}

func TestStatus_StoreNotReady(t *testing.T) {
	l, store := newTestLimiter(DefaultLimits())
	require.NoError(t, store.Close())

	_, err := l.Status(context.Background(), "c")

	assert.ErrorIs(t, err, ErrStoreNotReady)
}

func TestKeysFor(t *testing.T) {
	k := keysFor("10.0.0.1", fixedClock())

	assert.Equal(t, "rate:ip:10.0.0.1:minute:29032560", k.minute)
	assert.Equal(t, "rate:ip:10.0.0.1:day:2025-03-14", k.day)
	assert.Equal(t, "rate:global:day:2025-03-14", k.global)
}
