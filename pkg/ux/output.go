// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package ux renders CodeBrief results for terminals and pipes.
//
// Three output modes exist. Styled uses the lipgloss palette below and is
// chosen for interactive terminals. Plain prints the report's Markdown
// unchanged. JSON prints the report object for scripts.
package ux

import (
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

// CodeBrief color palette
var (
	ColorAccent = lipgloss.Color("#2CD7C7")
	ColorBrand  = lipgloss.Color("#20B9B4")
	ColorBorder = lipgloss.Color("#16858E")
	ColorSlate  = lipgloss.Color("#2C4A54")

	ColorSuccess = lipgloss.Color("#2CD7C7")
	ColorWarning = lipgloss.Color("#F4D03F")
	ColorError   = lipgloss.Color("#E74C3C")
	ColorMuted   = lipgloss.Color("#6B8A94")
)

// Styles provides pre-configured lipgloss styles
var Styles = struct {
	Title    lipgloss.Style
	Subtitle lipgloss.Style
	Bold     lipgloss.Style
	Muted    lipgloss.Style
	Warning  lipgloss.Style
	Error    lipgloss.Style

	Box        lipgloss.Style
	WarningBox lipgloss.Style

	SeverityHigh   lipgloss.Style
	SeverityMedium lipgloss.Style
	SeverityLow    lipgloss.Style
}{
	Title:    lipgloss.NewStyle().Bold(true).Foreground(ColorAccent),
	Subtitle: lipgloss.NewStyle().Bold(true).Foreground(ColorBrand),
	Bold:     lipgloss.NewStyle().Bold(true),
	Muted:    lipgloss.NewStyle().Foreground(ColorMuted),
	Warning:  lipgloss.NewStyle().Foreground(ColorWarning),
	Error:    lipgloss.NewStyle().Foreground(ColorError),

	Box: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorBorder).
		Padding(0, 1),
	WarningBox: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorWarning).
		Padding(0, 1),

	SeverityHigh:   lipgloss.NewStyle().Bold(true).Foreground(ColorError),
	SeverityMedium: lipgloss.NewStyle().Bold(true).Foreground(ColorWarning),
	SeverityLow:    lipgloss.NewStyle().Foreground(ColorSuccess),
}

// Icon is a status glyph.
type Icon string

const (
	IconBullet  Icon = "•"
	IconArrow   Icon = "→"
	IconWarning Icon = "⚠"
	IconSuccess Icon = "✓"
)

// Mode selects how results are written.
type Mode int

const (
	ModeStyled Mode = iota
	ModePlain
	ModeJSON
)

func (m Mode) String() string {
	switch m {
	case ModeStyled:
		return "styled"
	case ModePlain:
		return "plain"
	case ModeJSON:
		return "json"
	default:
		return "unknown"
	}
}

// DetectMode picks the output mode for f. An explicit JSON request wins;
// otherwise terminals get styled output and everything else plain
// Markdown. NO_COLOR forces plain output on terminals too.
func DetectMode(f *os.File, wantJSON bool) Mode {
	if wantJSON {
		return ModeJSON
	}
	if os.Getenv("NO_COLOR") != "" {
		return ModePlain
	}
	if f != nil && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())) {
		return ModeStyled
	}
	return ModePlain
}
