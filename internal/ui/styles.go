package ui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"claudia/internal/types"
)

// Semantic colors, adaptive for light and dark terminals.
var (
	ColorGood = lipgloss.AdaptiveColor{
		Light: "#86b300",
		Dark:  "#c2d94c",
	}
	ColorWarn = lipgloss.AdaptiveColor{
		Light: "#f2ae49",
		Dark:  "#ffb454",
	}
	ColorBad = lipgloss.AdaptiveColor{
		Light: "#f07171",
		Dark:  "#f07178",
	}
	ColorMuted = lipgloss.AdaptiveColor{
		Light: "#828c99",
		Dark:  "#6c7680",
	}
	ColorAccent = lipgloss.AdaptiveColor{
		Light: "#399ee6",
		Dark:  "#59c2ff",
	}
)

var (
	GoodStyle   = lipgloss.NewStyle().Foreground(ColorGood)
	WarnStyle   = lipgloss.NewStyle().Foreground(ColorWarn)
	BadStyle    = lipgloss.NewStyle().Foreground(ColorBad)
	MutedStyle  = lipgloss.NewStyle().Foreground(ColorMuted)
	AccentStyle = lipgloss.NewStyle().Foreground(ColorAccent)
	BoldStyle   = lipgloss.NewStyle().Bold(true)
	HeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(ColorAccent)
)

// Separator between dashboard sections.
const Separator = "──────────────────────────────────────────"

// RenderBold renders text in bold.
func RenderBold(s string) string {
	if !ShouldUseColor() {
		return s
	}
	return BoldStyle.Render(s)
}

// RenderMuted renders de-emphasized text.
func RenderMuted(s string) string {
	if !ShouldUseColor() {
		return s
	}
	return MutedStyle.Render(s)
}

// RenderAccent renders emphasized text.
func RenderAccent(s string) string {
	if !ShouldUseColor() {
		return s
	}
	return AccentStyle.Render(s)
}

// RenderHeader renders a section header.
func RenderHeader(s string) string {
	if !ShouldUseColor() {
		return s
	}
	return HeaderStyle.Render(s)
}

// RenderSeparator renders the section separator in muted color.
func RenderSeparator() string {
	return RenderMuted(Separator)
}

// RenderStatus renders a task status in its semantic color.
func RenderStatus(s types.Status) string {
	if !ShouldUseColor() {
		return string(s)
	}
	switch s {
	case types.StatusOpen:
		return AccentStyle.Render(string(s))
	case types.StatusInProgress:
		return WarnStyle.Render(string(s))
	case types.StatusDone:
		return GoodStyle.Render(string(s))
	case types.StatusBlocked:
		return BadStyle.Render(string(s))
	}
	return string(s)
}

// RenderPriority renders a priority as P0..P3, colored by urgency.
func RenderPriority(p int) string {
	label := fmt.Sprintf("P%d", p)
	if !ShouldUseColor() {
		return label
	}
	switch p {
	case 0:
		return BadStyle.Bold(true).Render(label)
	case 1:
		return WarnStyle.Render(label)
	case 3:
		return MutedStyle.Render(label)
	}
	return label
}

// RenderStaleness renders a heartbeat staleness badge.
func RenderStaleness(s types.Staleness) string {
	if !ShouldUseColor() {
		return string(s)
	}
	switch s {
	case types.StalenessOK:
		return GoodStyle.Render(string(s))
	case types.StalenessWarn:
		return WarnStyle.Render(string(s))
	case types.StalenessDanger:
		return BadStyle.Render(string(s))
	}
	return string(s)
}
