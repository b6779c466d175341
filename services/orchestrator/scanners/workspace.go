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
	"fmt"
	"os"
	"path/filepath"

	"github.com/AleutianAI/CodeBrief/services/orchestrator/datatypes"
)

// workspacePrefix names the per-invocation temp directories.
const workspacePrefix = "codebrief-"

// Workspace is a private temp directory holding one materialized sample.
// Every external scanner invocation gets its own; Close removes it.
type Workspace struct {
	Dir  string
	File string
}

// NewWorkspace writes sample to <tmp>/codebrief-*/code<ext>.
func NewWorkspace(sample datatypes.CodeSample) (*Workspace, error) {
	dir, err := os.MkdirTemp("", workspacePrefix)
	if err != nil {
		return nil, fmt.Errorf("creating workspace: %w", err)
	}
	file := filepath.Join(dir, "code"+sample.Language.Extension())
	if err := os.WriteFile(file, []byte(sample.Content), 0o600); err != nil {
		_ = os.RemoveAll(dir)
		return nil, fmt.Errorf("writing workspace file: %w", err)
	}
	return &Workspace{Dir: dir, File: file}, nil
}

// BaseName is the file label reported in findings.
func (w *Workspace) BaseName() string {
	return filepath.Base(w.File)
}

// Close removes the workspace directory and everything in it.
func (w *Workspace) Close() error {
	return os.RemoveAll(w.Dir)
}
