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
	"fmt"
	"log/slog"
	"math"
	"time"
)

// Counter lifetimes. Day counters live a full day from their first
// increment; the key itself rolls over at UTC midnight.
const (
	minuteTTL = 60 * time.Second
	dayTTL    = 24 * time.Hour

	// GlobalRetryAfter is the retry hint on a global denial, in seconds.
	GlobalRetryAfter = 3600

	// UnavailableRetryAfter is the retry hint when the store is down and
	// the limiter fails closed, in seconds.
	UnavailableRetryAfter = 60
)

// Kind names the tier that denied a request.
type Kind string

const (
	KindNone        Kind = ""
	KindMinute      Kind = "minute"
	KindDaily       Kind = "daily"
	KindGlobal      Kind = "global"
	KindUnavailable Kind = "unavailable"
)

// Limits configures the tiers.
type Limits struct {
	Minute        int  `yaml:"minute"`
	Daily         int  `yaml:"daily"`
	GlobalEnabled bool `yaml:"global_enabled"`
	GlobalDaily   int  `yaml:"global_daily"`

	// FailOpen admits every request while the store is unavailable.
	FailOpen bool `yaml:"fail_open"`
}

// DefaultLimits returns 10 per minute, 200 per day, global tier off with
// 5000 per day, failing open.
func DefaultLimits() Limits {
	return Limits{
		Minute:        10,
		Daily:         200,
		GlobalEnabled: false,
		GlobalDaily:   5000,
		FailOpen:      true,
	}
}

// Decision is the admission result plus the quota snapshot reported in
// response headers.
type Decision struct {
	Allowed bool

	// Denial details. Zero when Allowed.
	Kind       Kind
	RetryAfter int
	Limit      int
	Current    int64
	ResetAt    time.Time

	MinuteLimit     int
	MinuteRemaining int
	DailyLimit      int
	DailyRemaining  int
}

// Status is a read-only view of a client's counters.
type Status struct {
	MinuteCount int64 `json:"minuteCount"`
	DailyCount  int64 `json:"dailyCount"`
	GlobalCount int64 `json:"globalCount"`
}

// AdmissionRecorder observes admission decisions.
type AdmissionRecorder interface {
	RecordAdmission(decision string)
	RecordStoreError()
}

// Limiter enforces the tiers against a CounterStore.
//
// # Thread Safety
//
// Safe for concurrent use. Atomicity comes from the store.
type Limiter struct {
	store    CounterStore
	limits   Limits
	now      func() time.Time
	recorder AdmissionRecorder
}

// LimiterOption configures a Limiter.
type LimiterOption func(*Limiter)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) LimiterOption {
	return func(l *Limiter) { l.now = now }
}

// WithAdmissionRecorder reports decisions and store failures.
func WithAdmissionRecorder(r AdmissionRecorder) LimiterOption {
	return func(l *Limiter) { l.recorder = r }
}

// NewLimiter creates a Limiter over store.
func NewLimiter(store CounterStore, limits Limits, opts ...LimiterOption) *Limiter {
	l := &Limiter{
		store:  store,
		limits: limits,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Limits returns the configured tiers.
func (l *Limiter) Limits() Limits {
	return l.limits
}

// Admit counts one request for client and decides whether it may proceed.
//
// # Description
//
// The minute, daily and (when enabled) global counters are all incremented
// first, then checked in that order; the first exceeded tier denies. A
// request that exceeds the limit still counts. Retry hints:
//   - minute: seconds to the next minute boundary, rounded up
//   - daily: seconds to the next UTC midnight, rounded up
//   - global: one hour
//
// When the store is not ready or fails, the request is admitted if
// FailOpen is set and denied with KindUnavailable otherwise.
//
// # Inputs
//
//   - ctx: Bounds store calls.
//   - client: Client key, usually the IP address.
func (l *Limiter) Admit(ctx context.Context, client string) Decision {
	now := l.now().UTC()
	keys := keysFor(client, now)

	d := Decision{
		MinuteLimit:     l.limits.Minute,
		MinuteRemaining: l.limits.Minute,
		DailyLimit:      l.limits.Daily,
		DailyRemaining:  l.limits.Daily,
	}

	if !l.store.Ready(ctx) {
		slog.Warn("Rate limit store not ready", "fail_open", l.limits.FailOpen)
		return l.storeFailure(d, now)
	}

	minuteCount, dayCount, globalCount, err := l.increment(ctx, keys)
	if err != nil {
		slog.Error("Rate limit check failed", "error", err, "fail_open", l.limits.FailOpen)
		return l.storeFailure(d, now)
	}

	d.MinuteRemaining = remaining(l.limits.Minute, minuteCount)
	d.DailyRemaining = remaining(l.limits.Daily, dayCount)

	switch {
	case minuteCount > int64(l.limits.Minute):
		reset := now.Truncate(time.Minute).Add(time.Minute)
		d.Kind, d.Limit, d.Current, d.ResetAt = KindMinute, l.limits.Minute, minuteCount, reset
		d.RetryAfter = ceilSeconds(reset.Sub(now))
		slog.Info("Rate limit exceeded", "tier", KindMinute, "client", client, "count", minuteCount)
	case dayCount > int64(l.limits.Daily):
		reset := nextUTCMidnight(now)
		d.Kind, d.Limit, d.Current, d.ResetAt = KindDaily, l.limits.Daily, dayCount, reset
		d.RetryAfter = ceilSeconds(reset.Sub(now))
		slog.Info("Rate limit exceeded", "tier", KindDaily, "client", client, "count", dayCount)
	case l.limits.GlobalEnabled && globalCount > int64(l.limits.GlobalDaily):
		d.Kind, d.Limit, d.Current = KindGlobal, l.limits.GlobalDaily, globalCount
		d.ResetAt = now.Add(GlobalRetryAfter * time.Second)
		d.RetryAfter = GlobalRetryAfter
		slog.Warn("Global rate limit exceeded", "count", globalCount)
	default:
		d.Allowed = true
	}

	l.record(d)
	return d
}

// Status reads the client's counters without incrementing them.
func (l *Limiter) Status(ctx context.Context, client string) (Status, error) {
	if !l.store.Ready(ctx) {
		return Status{}, ErrStoreNotReady
	}
	keys := keysFor(client, l.now().UTC())

	var s Status
	var err error
	if s.MinuteCount, err = l.store.Get(ctx, keys.minute); err != nil {
		return Status{}, err
	}
	if s.DailyCount, err = l.store.Get(ctx, keys.day); err != nil {
		return Status{}, err
	}
	if s.GlobalCount, err = l.store.Get(ctx, keys.global); err != nil {
		return Status{}, err
	}
	return s, nil
}

func (l *Limiter) increment(ctx context.Context, keys counterKeys) (minute, day, global int64, err error) {
	if minute, err = l.store.Incr(ctx, keys.minute, minuteTTL); err != nil {
		return 0, 0, 0, err
	}
	if day, err = l.store.Incr(ctx, keys.day, dayTTL); err != nil {
		return 0, 0, 0, err
	}
	if l.limits.GlobalEnabled {
		if global, err = l.store.Incr(ctx, keys.global, dayTTL); err != nil {
			return 0, 0, 0, err
		}
	}
	return minute, day, global, nil
}

func (l *Limiter) storeFailure(d Decision, now time.Time) Decision {
	if l.recorder != nil {
		l.recorder.RecordStoreError()
	}
	if l.limits.FailOpen {
		d.Allowed = true
	} else {
		d.Kind = KindUnavailable
		d.RetryAfter = UnavailableRetryAfter
		d.ResetAt = now.Add(UnavailableRetryAfter * time.Second)
	}
	l.record(d)
	return d
}

func (l *Limiter) record(d Decision) {
	if l.recorder == nil {
		return
	}
	if d.Allowed {
		l.recorder.RecordAdmission("allowed")
		return
	}
	l.recorder.RecordAdmission(string(d.Kind))
}

// ===== Keys =====

type counterKeys struct {
	minute string
	day    string
	global string
}

// keysFor builds rate:ip:<client>:minute:<unix minute>,
// rate:ip:<client>:day:<YYYY-MM-DD> and rate:global:day:<YYYY-MM-DD>.
func keysFor(client string, now time.Time) counterKeys {
	date := now.Format("2006-01-02")
	return counterKeys{
		minute: fmt.Sprintf("rate:ip:%s:minute:%d", client, now.Unix()/60),
		day:    fmt.Sprintf("rate:ip:%s:day:%s", client, date),
		global: "rate:global:day:" + date,
	}
}

func remaining(limit int, count int64) int {
	r := int64(limit) - count
	if r < 0 {
		return 0
	}
	return int(r)
}

func ceilSeconds(d time.Duration) int {
	return int(math.Ceil(d.Seconds()))
}

func nextUTCMidnight(now time.Time) time.Time {
	y, m, d := now.UTC().Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, time.UTC)
}
