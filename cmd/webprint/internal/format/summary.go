// Copyright 2025 Vulntor Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");

package format

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/vulntor/webprint/pkg/fingerprint"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).
			Foreground(lipgloss.Color("39")) // Cyan

	strongStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("10")) // Green

	weakStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("11")) // Yellow

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("244")) // Gray
)

// strongConfidence is the threshold at which a detection renders green.
const strongConfidence = 75

// TechnologyRows renders resolved technologies as table rows.
func TechnologyRows(techs []fingerprint.ResolvedTechnology) [][]string {
	rows := make([][]string, 0, len(techs))
	for _, t := range techs {
		name := t.Name
		if t.Legacy {
			name += " *"
		}
		version := t.Version
		if version == "" {
			version = "-"
		}
		rows = append(rows, []string{
			name,
			version,
			strings.Join(t.Categories, ", "),
			strconv.Itoa(t.Confidence) + "%",
		})
	}
	return rows
}

// DetectionSummary renders a one-block summary of a detection pass.
func DetectionSummary(target string, techs []fingerprint.ResolvedTechnology, colored bool) string {
	render := func(s lipgloss.Style, text string) string {
		if !colored {
			return text
		}
		return s.Render(text)
	}

	var sb strings.Builder
	sb.WriteString(render(titleStyle, target))
	sb.WriteString("\n")
	if len(techs) == 0 {
		sb.WriteString(render(dimStyle, "  no technologies detected"))
		return sb.String()
	}

	strong, weak := 0, 0
	for _, t := range techs {
		if t.Confidence >= strongConfidence {
			strong++
		} else {
			weak++
		}
	}
	sb.WriteString(render(strongStyle, fmt.Sprintf("  ✓ %d confident", strong)))
	if weak > 0 {
		sb.WriteString("  ")
		sb.WriteString(render(weakStyle, fmt.Sprintf("⚠ %d tentative", weak)))
	}
	return sb.String()
}
