// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package policies loads named organizational policy documents from a
// directory so they can be quoted to the report formatter.
package policies

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/AleutianAI/CodeBrief/pkg/validation"
)

// Separator joins the contents of multiple policy files.
const Separator = "\n\n---\n\n"

// DefaultDir is the policy directory used when none is configured.
const DefaultDir = "policies"

// Loader reads policy files relative to Dir and caches their contents.
//
// # Description
//
// Names containing ".." or absolute paths are rejected. Missing, unreadable
// and empty files are skipped with a warning, so Load never fails. The cache
// is dropped whenever Watch sees a change in Dir.
//
// # Thread Safety
//
// Safe for concurrent use.
type Loader struct {
	Dir string

	mu    sync.RWMutex
	cache map[string]string
}

// NewLoader creates a loader over dir (DefaultDir when empty).
func NewLoader(dir string) *Loader {
	if dir == "" {
		dir = DefaultDir
	}
	return &Loader{Dir: dir, cache: make(map[string]string)}
}

// Load returns the non-empty contents of the named files in request order,
// joined with Separator. It returns "" when names is empty or nothing could
// be read.
func (l *Loader) Load(names []string) string {
	if len(names) == 0 {
		return ""
	}
	parts := make([]string, 0, len(names))
	for _, name := range names {
		content, err := l.read(name)
		if err != nil {
			slog.Warn("Skipping policy file", slog.String("policy", name), slog.String("error", err.Error()))
			continue
		}
		if content != "" {
			parts = append(parts, content)
		}
	}
	return strings.Join(parts, Separator)
}

func (l *Loader) read(name string) (string, error) {
	if err := validation.ValidatePolicyName(name); err != nil {
		return "", err
	}

	l.mu.RLock()
	content, ok := l.cache[name]
	l.mu.RUnlock()
	if ok {
		return content, nil
	}

	data, err := os.ReadFile(filepath.Join(l.Dir, name))
	if err != nil {
		return "", fmt.Errorf("policy file not found or could not be read: %w", err)
	}
	content = string(data)

	l.mu.Lock()
	l.cache[name] = content
	l.mu.Unlock()
	return content, nil
}

// Invalidate drops every cached policy.
func (l *Loader) Invalidate() {
	l.mu.Lock()
	l.cache = make(map[string]string)
	l.mu.Unlock()
}

// cached reports how many policies are cached.
func (l *Loader) cached() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.cache)
}

// Watch invalidates the cache on any change in Dir until ctx is cancelled.
//
// # Description
//
// Blocks; run it in a goroutine. Returns an error only when the watch could
// not be established (for example, Dir does not exist).
//
// # Example
//
//	loader := policies.NewLoader(dir)
//	go func() { _ = loader.Watch(ctx) }()
func (l *Loader) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating policy watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(l.Dir); err != nil {
		return fmt.Errorf("watching policy dir %s: %w", l.Dir, err)
	}
	slog.Debug("Watching policy directory", slog.String("dir", l.Dir))

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			slog.Debug("Policy directory changed, dropping cache",
				slog.String("path", event.Name),
				slog.String("op", event.Op.String()),
			)
			l.Invalidate()

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Warn("Policy watcher error", slog.String("error", err.Error()))

		case <-ctx.Done():
			return nil
		}
	}
}
