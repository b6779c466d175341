// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package report

import (
	"errors"
	"regexp"
	"strings"
)

// ErrNoJSON indicates a model reply with no JSON object in it.
var ErrNoJSON = errors.New("reply does not contain a JSON object")

var fencedJSON = regexp.MustCompile("(?s)```json\\s*(.*?)\\s*```")

// ExtractJSON locates the JSON object in a model reply.
//
// A ```json fenced block wins. Otherwise the span from the first "{" to the
// last "}" is returned. The result is not validated here.
func ExtractJSON(reply string) (string, error) {
	if m := fencedJSON.FindStringSubmatch(reply); m != nil && strings.TrimSpace(m[1]) != "" {
		return m[1], nil
	}
	start := strings.Index(reply, "{")
	end := strings.LastIndex(reply, "}")
	if start < 0 || end <= start {
		return "", ErrNoJSON
	}
	return reply[start : end+1], nil
}
