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
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// maxConflictRetries bounds read-modify-write attempts on one key.
const maxConflictRetries = 64

// BadgerConfig configures the embedded counter store.
type BadgerConfig struct {
	// Path is the database directory. Ignored when InMemory is true.
	Path string

	// InMemory keeps counters in RAM only.
	InMemory bool

	// SyncWrites fsyncs each commit.
	SyncWrites bool

	// GCInterval is how often the value log is collected. Zero disables.
	GCInterval time.Duration

	// GCDiscardRatio is the garbage ratio that triggers a rewrite.
	GCDiscardRatio float64

	// Logger receives badger's internal logs. Nil silences them.
	Logger *slog.Logger
}

// BadgerStore is a CounterStore on an embedded BadgerDB. Expiry uses
// badger's entry TTL, so expired counters vanish without a sweep.
//
// # Thread Safety
//
// Safe for concurrent use. Increments run in transactions and are retried
// on write conflicts.
type BadgerStore struct {
	db     *badger.DB
	stopCh chan struct{}
	doneCh chan struct{}
	logger *slog.Logger
}

// badgerLogger adapts slog.Logger to badger.Logger.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// OpenBadgerStore opens the database and starts value log GC when
// configured.
//
// # Inputs
//
//   - cfg: Path is required unless InMemory is set. The directory is
//     created when missing.
//
// # Outputs
//
//   - *BadgerStore: Caller must Close it.
//   - error: Non-nil when the path is missing or the database cannot open.
func OpenBadgerStore(cfg BadgerConfig) (*BadgerStore, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("path is required for persistent counter store")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0750); err != nil {
			return nil, fmt.Errorf("create counter store directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites).WithNumVersionsToKeep(1)
	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger counter store: %w", err)
	}

	s := &BadgerStore{db: db, logger: cfg.Logger}
	if cfg.GCInterval > 0 && !cfg.InMemory {
		s.stopCh = make(chan struct{})
		s.doneCh = make(chan struct{})
		go s.runGC(cfg.GCInterval, cfg.GCDiscardRatio)
	}
	return s, nil
}

// Incr increments key inside a transaction. A new counter gets ttl; an
// existing one keeps its original expiry.
func (s *BadgerStore) Incr(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	if s.db.IsClosed() {
		return 0, ErrStoreNotReady
	}

	var count int64
	for attempt := 0; attempt < maxConflictRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return 0, fmt.Errorf("context cancelled: %w", err)
		}
		err := s.db.Update(func(txn *badger.Txn) error {
			var expiresAt uint64
			current, err := readCounter(txn, key, &expiresAt)
			if err != nil {
				return err
			}
			count = current + 1

			buf := make([]byte, 8)
			binary.BigEndian.PutUint64(buf, uint64(count))
			entry := badger.NewEntry([]byte(key), buf)
			if current == 0 {
				entry = entry.WithTTL(ttl)
			} else {
				entry.ExpiresAt = expiresAt
			}
			return txn.SetEntry(entry)
		})
		if errors.Is(err, badger.ErrConflict) {
			continue
		}
		if err != nil {
			return 0, fmt.Errorf("increment %s: %w", key, err)
		}
		return count, nil
	}
	return 0, fmt.Errorf("increment %s: %w", key, badger.ErrConflict)
}

func (s *BadgerStore) Get(_ context.Context, key string) (int64, error) {
	if s.db.IsClosed() {
		return 0, ErrStoreNotReady
	}
	var count int64
	err := s.db.View(func(txn *badger.Txn) error {
		var expiresAt uint64
		c, err := readCounter(txn, key, &expiresAt)
		count = c
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", key, err)
	}
	return count, nil
}

func (s *BadgerStore) Ready(_ context.Context) bool {
	return !s.db.IsClosed()
}

// Close stops GC and closes the database.
func (s *BadgerStore) Close() error {
	if s.stopCh != nil {
		close(s.stopCh)
		<-s.doneCh
		s.stopCh = nil
	}
	if s.db.IsClosed() {
		return nil
	}
	return s.db.Close()
}

// readCounter returns zero for a missing key.
func readCounter(txn *badger.Txn, key string, expiresAt *uint64) (int64, error) {
	item, err := txn.Get([]byte(key))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	*expiresAt = item.ExpiresAt()
	var count int64
	err = item.Value(func(val []byte) error {
		if len(val) != 8 {
			return fmt.Errorf("corrupt counter value of %d bytes", len(val))
		}
		count = int64(binary.BigEndian.Uint64(val))
		return nil
	})
	return count, err
}

func (s *BadgerStore) runGC(interval time.Duration, ratio float64) {
	defer close(s.doneCh)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			// ErrNoRewrite means there was nothing to collect.
			err := s.db.RunValueLogGC(ratio)
			if err != nil && !errors.Is(err, badger.ErrNoRewrite) && s.logger != nil {
				s.logger.Warn("badger value log GC error", slog.String("error", err.Error()))
			}
		}
	}
}
