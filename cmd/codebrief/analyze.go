// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/AleutianAI/CodeBrief/pkg/extensions"
	"github.com/AleutianAI/CodeBrief/pkg/ux"
	"github.com/AleutianAI/CodeBrief/pkg/validation"
	"github.com/AleutianAI/CodeBrief/services/orchestrator"
	"github.com/AleutianAI/CodeBrief/services/orchestrator/config"
	"github.com/AleutianAI/CodeBrief/services/orchestrator/datatypes"
	"github.com/AleutianAI/CodeBrief/services/orchestrator/pipeline"
)

// cliClientKey is the rate-limit identity of local analyses.
const cliClientKey = "cli"

type analyzeFlags struct {
	language string
	policies []string
	json     bool
	failOn   string
}

func newAnalyzeCmd(flags *rootFlags) *cobra.Command {
	af := &analyzeFlags{}
	cmd := &cobra.Command{
		Use:   "analyze [file|-]",
		Short: "Analyze one file and print the report",
		Long: `Runs the full analysis pipeline in-process on a single file, or on
stdin when the argument is "-" or omitted. Counters live in memory, so the
service's rate limits do not apply across invocations.

With --fail-on the command exits with status 2 when any risk reaches the
given severity, which makes it usable as a CI gate.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "-"
			if len(args) == 1 {
				path = args[0]
			}
			return runAnalyze(cmd, flags, af, path)
		},
	}
	cmd.Flags().StringVarP(&af.language, "language", "l", "", "Language hint: auto, javascript, typescript, python (default from file extension)")
	cmd.Flags().StringArrayVar(&af.policies, "policy", nil, "Policy document to apply (repeatable)")
	cmd.Flags().BoolVar(&af.json, "json", false, "Print the report as JSON")
	cmd.Flags().StringVar(&af.failOn, "fail-on", "", "Exit 2 when a risk of this severity or higher is found: High, Medium, Low")
	return cmd
}

func runAnalyze(cmd *cobra.Command, flags *rootFlags, af *analyzeFlags, path string) error {
	threshold, err := parseFailOn(af.failOn)
	if err != nil {
		return err
	}
	if err := validation.ValidatePolicyNames(af.policies); err != nil {
		return err
	}

	content, err := readSource(path, cmd.InOrStdin())
	if err != nil {
		return err
	}

	cfg, err := loadConfig(flags)
	if err != nil {
		return err
	}
	cfg.Store.Backend = config.StoreMemory
	if !cmd.Flags().Changed("log-level") && cfg.Logging.Level == "info" {
		cfg.Logging.Level = "warn"
	}
	logger := newLogger(cfg, cmd.ErrOrStderr(), "codebrief-cli")
	defer logger.Close()

	engine, err := orchestrator.NewEngine(cfg, nil, extensions.DefaultOptions())
	if err != nil {
		return err
	}
	defer engine.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	hint := af.language
	if hint == "" {
		hint = hintFromPath(path)
	}
	res, err := engine.Analyzer.Analyze(ctx, pipeline.Request{
		Content:      content,
		LanguageHint: hint,
		Policies:     af.policies,
		ClientKey:    cliClientKey,
		RequestID:    uuid.NewString(),
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	mode := ux.ModePlain
	if f, ok := out.(*os.File); ok {
		mode = ux.DetectMode(f, af.json)
	} else if af.json {
		mode = ux.ModeJSON
	}
	printer := ux.NewPrinter(out, mode)
	if !engine.LLMEnabled {
		printer.Notice("No LLM backend configured; this report was built from scanner findings only.")
	}
	if err := printer.Report(res.Report); err != nil {
		return err
	}

	if threshold != "" && reachesSeverity(res.Report, threshold) {
		return &exitError{code: 2, msg: fmt.Sprintf("risks at or above %s found", threshold)}
	}
	return nil
}

// readSource reads a file, or stdin when path is "-".
func readSource(path string, stdin io.Reader) (string, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(io.LimitReader(stdin, int64(datatypes.MaxContentBytes)+1))
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", fmt.Errorf("failed to read source: %w", err)
	}
	return string(data), nil
}

// hintFromPath maps a file extension to a language hint. Unknown
// extensions and stdin classify by content.
func hintFromPath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".py":
		return string(datatypes.LanguagePython)
	case ".ts", ".tsx", ".mts", ".cts":
		return string(datatypes.LanguageTypeScript)
	case ".js", ".jsx", ".mjs", ".cjs":
		return string(datatypes.LanguageJavaScript)
	default:
		return datatypes.HintAuto
	}
}

func parseFailOn(raw string) (datatypes.Severity, error) {
	if raw == "" {
		return "", nil
	}
	for _, s := range []datatypes.Severity{datatypes.SeverityHigh, datatypes.SeverityMedium, datatypes.SeverityLow} {
		if strings.EqualFold(raw, string(s)) {
			return s, nil
		}
	}
	return "", fmt.Errorf("invalid --fail-on %q: want High, Medium or Low", raw)
}

// reachesSeverity reports whether any risk is at least as severe as
// threshold.
func reachesSeverity(r *datatypes.AnalysisReport, threshold datatypes.Severity) bool {
	if r == nil {
		return false
	}
	for _, risk := range r.Risks {
		if risk.Severity.Priority() <= threshold.Priority() {
			return true
		}
	}
	return false
}
