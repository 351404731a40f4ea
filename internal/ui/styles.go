// Package ui provides consistent styling for the gwayland CLI
package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

// Color palette - consistent across the application
var (
	ColorPrimary = lipgloss.Color("39")  // Bright blue
	ColorSuccess = lipgloss.Color("82")  // Green
	ColorError   = lipgloss.Color("196") // Red
	ColorInfo    = lipgloss.Color("86")  // Cyan

	ColorText   = lipgloss.Color("252") // Light gray
	ColorSubtle = lipgloss.Color("241") // Medium gray
)

var (
	HeaderStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorPrimary)

	SubtleStyle = lipgloss.NewStyle().
			Foreground(ColorSubtle)

	SuccessStyle = lipgloss.NewStyle().
			Foreground(ColorSuccess)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(ColorError)

	InfoStyle = lipgloss.NewStyle().
			Foreground(ColorInfo)

	KeyStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorPrimary)
)

var (
	IconAdded   = "+"
	IconRemoved = "-"
)

// FormatHeader renders a title followed by a separator line.
func FormatHeader(title, subtitle string) string {
	header := HeaderStyle.Render(title)
	if subtitle != "" {
		header += " " + SubtleStyle.Render(subtitle)
	}
	return header + "\n" + CreateSeparator(50, "─")
}

// FormatGlobalAdded renders one global announcement.
func FormatGlobalAdded(name uint32, iface string, version uint32) string {
	return fmt.Sprintf("%s %s %s %s",
		SuccessStyle.Render(IconAdded),
		InfoStyle.Render(fmt.Sprintf("%4d", name)),
		iface,
		SubtleStyle.Render(fmt.Sprintf("v%d", version)))
}

// FormatGlobalRemoved renders one global withdrawal.
func FormatGlobalRemoved(name uint32) string {
	return fmt.Sprintf("%s %s %s",
		ErrorStyle.Render(IconRemoved),
		InfoStyle.Render(fmt.Sprintf("%4d", name)),
		SubtleStyle.Render("removed"))
}

// FormatKeyValue renders an aligned "key: value" line.
func FormatKeyValue(key string, value any) string {
	return fmt.Sprintf("  %s %v", KeyStyle.Render(fmt.Sprintf("%-18s", key+":")), value)
}

// NewTable returns a rounded table with the application header style.
func NewTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(ColorSubtle)).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return lipgloss.NewStyle().
					Foreground(ColorPrimary).
					Bold(true).
					Padding(0, 1)
			case col == 0:
				return lipgloss.NewStyle().
					Foreground(ColorInfo).
					Padding(0, 1)
			default:
				return lipgloss.NewStyle().
					Foreground(ColorText).
					Padding(0, 1)
			}
		}).
		Headers(headers...)
}

// CreateSeparator creates a horizontal line separator
func CreateSeparator(width int, char string) string {
	if width <= 0 {
		width = 50
	}
	if char == "" {
		char = "─"
	}

	return lipgloss.NewStyle().
		Foreground(ColorSubtle).
		Render(strings.Repeat(char, width))
}
