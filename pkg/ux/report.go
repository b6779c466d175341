// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ux

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/AleutianAI/CodeBrief/services/orchestrator/datatypes"
)

// boxWidth is the wrap width of the summary box.
const boxWidth = 76

// Printer writes reports and notices in one Mode.
type Printer struct {
	w    io.Writer
	mode Mode
}

// NewPrinter creates a Printer writing to w.
func NewPrinter(w io.Writer, mode Mode) *Printer {
	return &Printer{w: w, mode: mode}
}

// Mode returns the printer's output mode.
func (p *Printer) Mode() Mode {
	return p.mode
}

// Report writes r.
//
// # Outputs
//
//   - error: Write or encode failure.
func (p *Printer) Report(r *datatypes.AnalysisReport) error {
	switch p.mode {
	case ModeJSON:
		enc := json.NewEncoder(p.w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	case ModePlain:
		_, err := io.WriteString(p.w, strings.TrimRight(r.Artifacts.Markdown, "\n")+"\n")
		return err
	default:
		_, err := io.WriteString(p.w, renderStyled(r))
		return err
	}
}

// Notice writes a warning line. JSON mode suppresses notices so stdout
// stays machine readable.
func (p *Printer) Notice(text string) {
	switch p.mode {
	case ModeJSON:
		return
	case ModePlain:
		fmt.Fprintf(p.w, "WARN: %s\n", text)
	default:
		fmt.Fprintln(p.w, Styles.WarningBox.Render(Styles.Warning.Render(string(IconWarning)+" "+text)))
	}
}

// SeverityStyle returns the style used for a severity label.
func SeverityStyle(s datatypes.Severity) lipgloss.Style {
	switch s {
	case datatypes.SeverityHigh:
		return Styles.SeverityHigh
	case datatypes.SeverityMedium:
		return Styles.SeverityMedium
	default:
		return Styles.SeverityLow
	}
}

func renderStyled(r *datatypes.AnalysisReport) string {
	var sb strings.Builder
	s := r.Summary

	sb.WriteString(Styles.Title.Render("Code Analysis Report"))
	sb.WriteString("  ")
	sb.WriteString(Styles.Muted.Render("language: " + string(r.DetectedLanguage)))
	sb.WriteString("\n\n")

	var summary strings.Builder
	summary.WriteString(Styles.Bold.Render("Purpose") + "\n" + s.Purpose + "\n")
	writeStyledList(&summary, "Inputs", s.IO.Inputs)
	writeStyledList(&summary, "Outputs", s.IO.Outputs)
	sensitivities := make([]string, 0, len(s.DataSensitivity))
	for _, d := range s.DataSensitivity {
		sensitivities = append(sensitivities, string(d))
	}
	writeStyledList(&summary, "Data sensitivity", sensitivities)
	writeStyledList(&summary, "Side effects", s.SideEffects)
	writeStyledList(&summary, "Operational requirements", s.OpsRequirements)
	writeStyledList(&summary, "Scope limits", s.ScopeLimits)
	sb.WriteString(Styles.Box.Width(boxWidth).Render(strings.TrimRight(summary.String(), "\n")))
	sb.WriteString("\n\n")

	sb.WriteString(Styles.Subtitle.Render(fmt.Sprintf("Risks (%d)", len(r.Risks))))
	sb.WriteString("\n")
	if len(r.Risks) == 0 {
		sb.WriteString(Styles.Muted.Render(string(IconSuccess)+" No issues detected.") + "\n")
	}
	for _, risk := range r.Risks {
		label := SeverityStyle(risk.Severity).Render(fmt.Sprintf("[%s]", risk.Severity))
		fmt.Fprintf(&sb, "%d. %s %s\n", risk.Priority, label, risk.Risk)
		fmt.Fprintf(&sb, "   %s\n", Styles.Muted.Render(evidenceLine(risk.Evidence)))
		if risk.Fix != "" {
			fix := risk.Fix
			if risk.Effort != "" {
				fix += " " + Styles.Muted.Render("(effort "+string(risk.Effort)+")")
			}
			fmt.Fprintf(&sb, "   %s %s\n", IconArrow, fix)
		}
	}

	if len(r.NextActions) > 0 {
		sb.WriteString("\n")
		sb.WriteString(Styles.Subtitle.Render("Next actions"))
		sb.WriteString("\n")
		for _, a := range r.NextActions {
			fmt.Fprintf(&sb, "%s %s\n", IconBullet, Styles.Bold.Render(a.Title))
		}
	}
	return sb.String()
}

func writeStyledList(sb *strings.Builder, title string, items []string) {
	if len(items) == 0 {
		return
	}
	sb.WriteString("\n" + Styles.Bold.Render(title) + "\n")
	for _, item := range items {
		fmt.Fprintf(sb, "%s %s\n", IconBullet, item)
	}
}

func evidenceLine(e datatypes.Evidence) string {
	var parts []string
	if e.Rule != "" {
		parts = append(parts, e.Rule)
	}
	if e.File != "" {
		loc := e.File
		if e.Line > 0 {
			loc = fmt.Sprintf("%s:%d", e.File, e.Line)
		}
		parts = append(parts, loc)
	}
	return strings.Join(parts, " at ")
}
