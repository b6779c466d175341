// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command codebrief runs the CodeBrief analysis service or analyzes a
// single file locally.
//
// # Usage
//
//	codebrief serve                      # HTTP service on $PORT (3001)
//	codebrief analyze handler.py         # one-shot report in the terminal
//	cat app.ts | codebrief analyze -     # read from stdin
//	codebrief analyze --json app.js      # machine-readable report
//	codebrief version
//
// Configuration comes from environment variables and an optional YAML file
// named by --config or CODEBRIEF_CONFIG.
package main

import (
	"errors"
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		var exitErr *exitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.code)
		}
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
