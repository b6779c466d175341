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
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/CodeBrief/pkg/logging"
	"github.com/AleutianAI/CodeBrief/services/orchestrator/config"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

// exitError carries a process exit code through cobra without printing.
type exitError struct {
	code int
	msg  string
}

func (e *exitError) Error() string {
	return e.msg
}

// rootFlags are shared by every subcommand.
type rootFlags struct {
	configPath string
	logLevel   string
	logJSON    bool
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}
	root := &cobra.Command{
		Use:   "codebrief",
		Short: "Business-language risk reports for code snippets",
		Long: `CodeBrief combines static scanners, a secret detector and an LLM
summarizer into a plain-language risk report, behind a tiered rate limiter.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&flags.configPath, "config", "", "YAML config file (overrides "+config.FileEnv+")")
	root.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	root.PersistentFlags().BoolVar(&flags.logJSON, "log-json", false, "Write console logs as JSON")

	root.AddCommand(
		newServeCmd(flags),
		newAnalyzeCmd(flags),
		newVersionCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the CodeBrief version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "codebrief %s\n", version)
		},
	}
}

// loadConfig resolves configuration with the --config flag taking the
// place of CODEBRIEF_CONFIG.
func loadConfig(flags *rootFlags) (config.Config, error) {
	getenv := os.Getenv
	if flags.configPath != "" {
		getenv = func(name string) string {
			if name == config.FileEnv {
				return flags.configPath
			}
			return os.Getenv(name)
		}
	}
	cfg, err := config.LoadWith(getenv)
	if err != nil {
		return config.Config{}, err
	}
	if flags.logLevel != "" {
		cfg.Logging.Level = flags.logLevel
	}
	if flags.logJSON {
		cfg.Logging.JSON = true
	}
	return cfg, nil
}

// newLogger builds the process logger and installs it as the slog default.
func newLogger(cfg config.Config, console io.Writer, service string) *logging.Logger {
	level, ok := logging.ParseLevel(cfg.Logging.Level)
	logger := logging.New(logging.Config{
		Level:   level,
		LogDir:  cfg.Logging.Dir,
		Service: service,
		JSON:    cfg.Logging.JSON,
		Output:  console,
	})
	if !ok && cfg.Logging.Level != "" {
		logger.Slog().Warn("Unknown log level, using info", "level", cfg.Logging.Level)
	}
	slog.SetDefault(logger.Slog())
	return logger
}
