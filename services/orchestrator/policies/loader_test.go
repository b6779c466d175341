// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package policies

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPolicyDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "policy1.md"), []byte("Policy 1 content"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "policy2.md"), []byte("Policy 2 content"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "empty.md"), nil, 0o600))
	return dir
}

func TestLoad(t *testing.T) {
	loader := NewLoader(newPolicyDir(t))

	tests := []struct {
		name  string
		names []string
		want  string
	}{
		{"none", nil, ""},
		{"single", []string{"policy1.md"}, "Policy 1 content"},
		{"multiple in order", []string{"policy2.md", "policy1.md"}, "Policy 2 content\n\n---\n\nPolicy 1 content"},
		{"missing skipped", []string{"missing.md", "policy1.md"}, "Policy 1 content"},
		{"only missing", []string{"non-existent-policy.md"}, ""},
		{"empty file", []string{"empty.md"}, ""},
		{"traversal", []string{"../outside.md"}, ""},
		{"absolute", []string{"/etc/passwd"}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, loader.Load(tt.names))
		})
	}
}

func TestLoad_TraversalNeverReadsOutsideDir(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "policies")
	require.NoError(t, os.Mkdir(dir, 0o700))
	require.NoError(t, os.WriteFile(filepath.Join(root, "secret.md"), []byte("secret"), 0o600))

	loader := NewLoader(dir)

	assert.Equal(t, "", loader.Load([]string{"../secret.md"}))
	assert.Equal(t, "", loader.Load([]string{"sub/../../secret.md"}))
}

func TestLoad_CachesUntilInvalidated(t *testing.T) {
	dir := newPolicyDir(t)
	loader := NewLoader(dir)

	assert.Equal(t, "Policy 1 content", loader.Load([]string{"policy1.md"}))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "policy1.md"), []byte("changed"), 0o600))
	assert.Equal(t, "Policy 1 content", loader.Load([]string{"policy1.md"}))

	loader.Invalidate()
	assert.Equal(t, "changed", loader.Load([]string{"policy1.md"}))
}

func TestWatch_InvalidatesOnChange(t *testing.T) {
	dir := newPolicyDir(t)
	loader := NewLoader(dir)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- loader.Watch(ctx) }()

	require.Equal(t, "Policy 1 content", loader.Load([]string{"policy1.md"}))
	require.Equal(t, 1, loader.cached())

	// The watch may not be registered yet; keep touching the file until the
	// cache drops.
	require.Eventually(t, func() bool {
		_ = os.WriteFile(filepath.Join(dir, "policy1.md"), []byte("updated"), 0o600)
		return loader.cached() == 0
	}, 5*time.Second, 50*time.Millisecond)

	assert.Equal(t, "updated", loader.Load([]string{"policy1.md"}))

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Watch did not return after cancel")
	}
}

func TestWatch_MissingDir(t *testing.T) {
	loader := NewLoader(filepath.Join(t.TempDir(), "nope"))

	assert.Error(t, loader.Watch(context.Background()))
}
