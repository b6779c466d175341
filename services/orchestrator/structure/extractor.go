// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package structure extracts coarse structural facts (function, class and
// import names plus comments) from a code sample with tree-sitter.
package structure

import (
	"context"
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/typescript/typescript"

	"github.com/AleutianAI/CodeBrief/services/orchestrator/datatypes"
)

// MaxItemsPerKind bounds each fact list so one huge file cannot dominate the
// prompt.
const MaxItemsPerKind = 100

// Facts are the structural facts of one sample.
type Facts struct {
	Functions []string `json:"functions"`
	Classes   []string `json:"classes"`
	Imports   []string `json:"imports"`
	Comments  []string `json:"comments"`
}

// Empty reports whether no fact was found.
func (f Facts) Empty() bool {
	return len(f.Functions) == 0 && len(f.Classes) == 0 && len(f.Imports) == 0 && len(f.Comments) == 0
}

// Describe renders the facts as plain text for prompts and summaries. Empty
// lists are omitted; an empty Facts renders as "".
func (f Facts) Describe() string {
	var sb strings.Builder
	write := func(label string, items []string) {
		if len(items) == 0 {
			return
		}
		fmt.Fprintf(&sb, "%s: %s\n", label, strings.Join(items, ", "))
	}
	write("Functions", f.Functions)
	write("Classes", f.Classes)
	write("Imports", f.Imports)
	write("Comments", f.Comments)
	return strings.TrimRight(sb.String(), "\n")
}

// Extractor parses samples with tree-sitter.
//
// Thread Safety: Safe for concurrent use. A parser is created per call since
// tree-sitter parsers are not safe to share.
type Extractor struct{}

// NewExtractor creates an Extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// Extract walks the syntax tree of code and collects named functions,
// classes, import statements and comments in source order.
//
// # Outputs
//
//   - Facts: Empty for json and unknown languages.
//   - error: Non-nil if parsing failed or ctx was cancelled.
func (e *Extractor) Extract(ctx context.Context, code string, lang datatypes.Language) (Facts, error) {
	grammar := grammarFor(lang)
	if grammar == nil {
		return Facts{}, nil
	}

	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(grammar)

	src := []byte(code)
	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return Facts{}, fmt.Errorf("parsing %s sample: %w", lang, err)
	}
	defer tree.Close()

	var facts Facts
	collect(tree.RootNode(), src, &facts)
	return facts, nil
}

func grammarFor(lang datatypes.Language) *sitter.Language {
	switch lang {
	case datatypes.LanguageJavaScript:
		return javascript.GetLanguage()
	case datatypes.LanguageTypeScript:
		return typescript.GetLanguage()
	case datatypes.LanguagePython:
		return python.GetLanguage()
	default:
		return nil
	}
}

func collect(node *sitter.Node, src []byte, facts *Facts) {
	if node == nil {
		return
	}
	switch node.Type() {
	case "function_declaration", "function_expression", "function_definition", "method_definition":
		if name := node.ChildByFieldName("name"); name != nil {
			appendBounded(&facts.Functions, name.Content(src))
		}
	case "class_declaration", "class_definition":
		if name := node.ChildByFieldName("name"); name != nil {
			appendBounded(&facts.Classes, name.Content(src))
		}
	case "import_statement", "import_from_statement":
		appendBounded(&facts.Imports, strings.TrimSpace(node.Content(src)))
	case "comment":
		appendBounded(&facts.Comments, strings.TrimSpace(node.Content(src)))
	}

	for i := 0; i < int(node.ChildCount()); i++ {
		collect(node.Child(i), src, facts)
	}
}

func appendBounded(list *[]string, item string) {
	if item == "" || len(*list) >= MaxItemsPerKind {
		return
	}
	*list = append(*list, item)
}
