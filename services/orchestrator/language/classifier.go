// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package language guesses the language of a code sample from lexical
// signatures.
//
// # Description
//
// Each candidate language owns a disjoint set of regular expressions. The
// score of a language is the number of its signatures that match anywhere in
// the sample. JSON additionally gets a strong bonus when the text actually
// parses, and a penalty when it does not, so object literals inside code do
// not read as JSON.
//
// # Decision Order
//
//  1. json when its score is at least 3
//  2. python when it strictly beats both javascript and typescript
//  3. typescript when it beats javascript
//  4. javascript otherwise (ties and empty input)
//
// # Thread Safety
//
// All functions are pure and safe for concurrent use.
package language

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/AleutianAI/CodeBrief/services/orchestrator/datatypes"
)

const (
	jsonParseBonus   = 3
	jsonParsePenalty = 2
	jsonThreshold    = 3
)

var (
	typeScriptSignatures = mustCompileAll(
		`\binterface\s+\w+`,
		`\btype\s+\w+\s*=`,
		`:\s*(string|number|boolean|any|unknown|never|void)\b`,
		`<\w+>`,
		`\bas\s+\w+`,
		`\bnamespace\s+`,
		`\benum\s+`,
	)

	javaScriptSignatures = mustCompileAll(
		`\b(const|let|var)\s+`,
		`\bfunction\s+`,
		`=>`,
		`\b(import|export)\s+`,
		`\brequire\(`,
		`\basync\s+`,
		`\bawait\s+`,
	)

	pythonSignatures = mustCompileAll(
		`\bdef\s+\w+\(`,
		`\bclass\s+\w+:`,
		`\bimport\s+\w+`,
		`\bfrom\s+\w+\s+import\s+`,
		`\bif\s+__name__\s*==\s*['"]__main__['"]`,
		`\bprint\(`,
		`\bself\.`,
		`(?m):\s*$`,
	)

	jsonSignatures = mustCompileAll(
		`^\s*[\{\[]`,
		`"[^"\n]+"\s*:`,
		`[\}\]]\s*$`,
		`:\s*(true|false|null|-?\d|"|\{|\[)`,
	)
)

func mustCompileAll(patterns ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		out[i] = regexp.MustCompile(p)
	}
	return out
}

// Scores holds the per-language signature counts of one sample.
type Scores struct {
	JavaScript int
	TypeScript int
	Python     int
	JSON       int
}

// Score computes the signature scores of sample, including the JSON parse
// bonus or penalty.
func Score(sample string) Scores {
	s := Scores{
		JavaScript: countMatches(javaScriptSignatures, sample),
		TypeScript: countMatches(typeScriptSignatures, sample),
		Python:     countMatches(pythonSignatures, sample),
		JSON:       countMatches(jsonSignatures, sample),
	}
	if parsesAsJSONDocument(sample) {
		s.JSON += jsonParseBonus
	} else {
		s.JSON = max(0, s.JSON-jsonParsePenalty)
	}
	return s
}

// Classify returns the best-guess language of sample.
func Classify(sample string) datatypes.Language {
	s := Score(sample)
	switch {
	case s.JSON >= jsonThreshold:
		return datatypes.LanguageJSON
	case s.Python > s.JavaScript && s.Python > s.TypeScript:
		return datatypes.LanguagePython
	case s.TypeScript > s.JavaScript:
		return datatypes.LanguageTypeScript
	default:
		return datatypes.LanguageJavaScript
	}
}

// Resolve returns the pinned language for a non-auto hint, or classifies the
// content when the hint is auto or empty.
func Resolve(hint string, content string) datatypes.Language {
	if hint == "" || hint == datatypes.HintAuto {
		return Classify(content)
	}
	lang := datatypes.Language(hint)
	if !lang.Valid() {
		return Classify(content)
	}
	return lang
}

func countMatches(signatures []*regexp.Regexp, sample string) int {
	n := 0
	for _, re := range signatures {
		if re.MatchString(sample) {
			n++
		}
	}
	return n
}

// parsesAsJSONDocument is true for valid JSON objects and arrays. Bare
// scalars such as "1" are valid JSON but are not treated as documents.
func parsesAsJSONDocument(sample string) bool {
	trimmed := strings.TrimSpace(sample)
	if trimmed == "" || (trimmed[0] != '{' && trimmed[0] != '[') {
		return false
	}
	return json.Valid([]byte(trimmed))
}
