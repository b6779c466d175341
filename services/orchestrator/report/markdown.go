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
	"fmt"
	"strings"

	"github.com/AleutianAI/CodeBrief/services/orchestrator/datatypes"
)

// RenderMarkdown renders the human-readable artifact for a report.
func RenderMarkdown(r *datatypes.AnalysisReport) string {
	var sb strings.Builder
	sb.WriteString("# Code Analysis Report\n\n")
	if r.DetectedLanguage != "" {
		fmt.Fprintf(&sb, "**Language:** %s\n\n", r.DetectedLanguage)
	}

	sb.WriteString("## Summary\n\n")
	sb.WriteString(r.Summary.Purpose)
	sb.WriteString("\n")
	writeList(&sb, "Inputs", r.Summary.IO.Inputs)
	writeList(&sb, "Outputs", r.Summary.IO.Outputs)
	if len(r.Summary.DataSensitivity) > 0 {
		labels := make([]string, len(r.Summary.DataSensitivity))
		for i, s := range r.Summary.DataSensitivity {
			labels[i] = string(s)
		}
		fmt.Fprintf(&sb, "\n**Data sensitivity:** %s\n", strings.Join(labels, ", "))
	}
	writeList(&sb, "Side effects", r.Summary.SideEffects)
	writeList(&sb, "Operational requirements", r.Summary.OpsRequirements)
	writeList(&sb, "Scope limits", r.Summary.ScopeLimits)

	sb.WriteString("\n## Detected Issues\n\n")
	if len(r.Risks) == 0 {
		sb.WriteString("- No issues detected.\n")
	}
	for _, risk := range r.Risks {
		fmt.Fprintf(&sb, "- **[%s]** %s", risk.Severity, risk.Risk)
		if risk.Evidence.Rule != "" {
			fmt.Fprintf(&sb, " (`%s`, line %d)", risk.Evidence.Rule, risk.Evidence.Line)
		}
		sb.WriteString("\n")
		if risk.Fix != "" {
			fmt.Fprintf(&sb, "  - Fix: %s\n", risk.Fix)
		}
	}

	if len(r.NextActions) > 0 {
		sb.WriteString("\n## Next Actions\n\n")
		for i, a := range r.NextActions {
			fmt.Fprintf(&sb, "%d. **%s**: %s\n", i+1, a.Title, a.Prompt)
		}
	}
	return sb.String()
}

func writeList(sb *strings.Builder, title string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(sb, "\n**%s:**\n", title)
	for _, item := range items {
		fmt.Fprintf(sb, "- %s\n", item)
	}
}
