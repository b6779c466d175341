// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package scanners

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"time"

	"golang.org/x/sync/semaphore"
)

// =============================================================================
// COMMAND RUNNER
// =============================================================================

const (
	// DefaultToolTimeout bounds one external tool invocation.
	DefaultToolTimeout = 60 * time.Second

	// DefaultMaxOutputBytes caps the stdout captured from one tool.
	DefaultMaxOutputBytes = 10 * 1024 * 1024

	// DefaultMaxProcesses bounds concurrently running tool processes across
	// all requests.
	DefaultMaxProcesses = 4

	// maxStderrBytes caps the stderr kept for diagnostics.
	maxStderrBytes = 4096

	// waitDelay bounds how long Run waits for pipes held open by
	// grandchildren after the tool itself was killed.
	waitDelay = 2 * time.Second
)

// CommandRunner runs an external tool and returns its stdout.
//
// A non-zero exit with output on stdout is not an error: semgrep and bandit
// exit 1 when they report findings. Implementations return ErrToolTimeout,
// ErrOutputTooLarge or ErrToolFailed (wrapped) on failure.
type CommandRunner interface {
	Run(ctx context.Context, dir string, name string, args ...string) ([]byte, error)
}

// ExecRunner runs tools as local subprocesses.
//
// Thread Safety: Safe for concurrent use.
type ExecRunner struct {
	timeout   time.Duration
	maxOutput int
	slots     *semaphore.Weighted
}

// RunnerOption configures an ExecRunner.
type RunnerOption func(*ExecRunner)

// WithTimeout sets the per-invocation wall-clock budget.
func WithTimeout(d time.Duration) RunnerOption {
	return func(r *ExecRunner) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithMaxOutput sets the stdout cap in bytes.
func WithMaxOutput(n int) RunnerOption {
	return func(r *ExecRunner) {
		if n > 0 {
			r.maxOutput = n
		}
	}
}

// WithMaxProcesses bounds how many tool processes may run at once.
func WithMaxProcesses(n int64) RunnerOption {
	return func(r *ExecRunner) {
		if n > 0 {
			r.slots = semaphore.NewWeighted(n)
		}
	}
}

// NewExecRunner creates a runner with default limits.
func NewExecRunner(opts ...RunnerOption) *ExecRunner {
	r := &ExecRunner{
		timeout:   DefaultToolTimeout,
		maxOutput: DefaultMaxOutputBytes,
		slots:     semaphore.NewWeighted(DefaultMaxProcesses),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes name with args in dir.
//
// # Description
//
// Waits for a process slot, then runs the tool. The wait and the run share
// one timeout derived from ctx, so a queued call never outlives it. Stdout beyond the output cap is discarded and the run fails with
// ErrOutputTooLarge.
//
// # Outputs
//
//   - []byte: Captured stdout.
//   - error: ErrToolTimeout, ErrOutputTooLarge or ErrToolFailed (wrapped), or
//     ctx.Err() when the caller gave up.
func (r *ExecRunner) Run(ctx context.Context, dir string, name string, args ...string) ([]byte, error) {
	cmdCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	// Waiting for a slot spends the same budget as running.
	if err := r.slots.Acquire(cmdCtx, 1); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %s waited %s for a process slot", ErrToolTimeout, name, r.timeout)
	}
	defer r.slots.Release(1)

	cmd := exec.CommandContext(cmdCtx, name, args...)
	cmd.Dir = dir
	cmd.WaitDelay = waitDelay

	stdout := &cappedBuffer{limit: r.maxOutput}
	stderr := &cappedBuffer{limit: maxStderrBytes}
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	err := cmd.Run()

	if errors.Is(cmdCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		return nil, fmt.Errorf("%w: %s after %s", ErrToolTimeout, name, r.timeout)
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if stdout.overflow {
		return nil, fmt.Errorf("%w: %s wrote more than %d bytes", ErrOutputTooLarge, name, r.maxOutput)
	}
	if err != nil && stdout.buf.Len() == 0 {
		slog.Debug("Scanner process failed",
			slog.String("tool", name),
			slog.String("stderr", stderr.buf.String()),
		)
		return nil, fmt.Errorf("%w: %s: %v", ErrToolFailed, name, err)
	}
	return stdout.buf.Bytes(), nil
}

// cappedBuffer keeps at most limit bytes and remembers whether more arrived.
// It never returns a write error so the child process is not killed by a
// broken pipe before it exits on its own.
type cappedBuffer struct {
	buf      bytes.Buffer
	limit    int
	overflow bool
}

func (b *cappedBuffer) Write(p []byte) (int, error) {
	room := b.limit - b.buf.Len()
	if room <= 0 {
		b.overflow = b.overflow || len(p) > 0
		return len(p), nil
	}
	if len(p) > room {
		b.buf.Write(p[:room])
		b.overflow = true
		return len(p), nil
	}
	b.buf.Write(p)
	return len(p), nil
}
