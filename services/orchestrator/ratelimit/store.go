// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package ratelimit admits or denies analysis requests using per-client
// minute and daily counters and an optional global daily counter.
package ratelimit

import (
	"context"
	"errors"
	"time"
)

// ErrStoreNotReady indicates the counter store cannot serve requests.
var ErrStoreNotReady = errors.New("counter store not ready")

// CounterStore holds expiring integer counters.
//
// Incr must be atomic per key. The expiry is set only when the counter is
// created (the 0 to 1 transition) and never extended afterwards.
type CounterStore interface {
	// Incr adds one to key and returns the new count.
	Incr(ctx context.Context, key string, ttl time.Duration) (int64, error)

	// Get returns the current count, zero when the key is absent or expired.
	Get(ctx context.Context, key string) (int64, error)

	// Ready reports whether the store can serve requests.
	Ready(ctx context.Context) bool

	Close() error
}
