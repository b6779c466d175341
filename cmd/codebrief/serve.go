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
	"github.com/spf13/cobra"

	"github.com/AleutianAI/CodeBrief/pkg/extensions"
	"github.com/AleutianAI/CodeBrief/services/orchestrator"
)

func newServeCmd(flags *rootFlags) *cobra.Command {
	var port int
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP analysis service",
		Long: `Starts the HTTP service exposing POST /api/analyze,
GET /api/rate-limit/status, GET /health and GET /metrics.
Stops gracefully on SIGINT or SIGTERM.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("port") {
				cfg.Server.Port = port
				if err := cfg.Validate(); err != nil {
					return err
				}
			}

			logger := newLogger(cfg, cmd.ErrOrStderr(), orchestrator.ServiceName)
			defer logger.Close()

			opts := extensions.ServiceOptions{
				AuditLogger: extensions.NewSlogAuditLogger(logger.Slog()),
			}
			svc, err := orchestrator.New(cfg, &opts)
			if err != nil {
				return err
			}
			return svc.Run()
		},
	}
	cmd.Flags().IntVarP(&port, "port", "p", 0, "Listen port (overrides PORT)")
	return cmd
}
