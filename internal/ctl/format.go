// Package ctl implements the client-side commands for passctl.
// It talks to a running trackerd (and, for the station command, stationd)
// over HTTP and WebSocket and renders the results to the terminal.
package ctl

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// Terminal styles. lipgloss drops them when stdout is not a terminal or
// NO_COLOR is set.
var (
	bold   = lipgloss.NewStyle().Bold(true)
	dim    = lipgloss.NewStyle().Faint(true)
	red    = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	green  = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	yellow = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	blue   = lipgloss.NewStyle().Foreground(lipgloss.Color("4"))
	cyan   = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
	white  = lipgloss.NewStyle().Foreground(lipgloss.Color("7"))
)

// stateColor returns the style for a daemon or recorder state.
func stateColor(state string) lipgloss.Style {
	switch state {
	case "IDLE", "TRACKING":
		return green
	case "PAUSED", "SHUTTING_DOWN":
		return yellow
	case "CAPTURING":
		return blue
	case "REFRESHING", "PREDICTING":
		return cyan
	case "BOOTING":
		return dim
	default:
		return white
	}
}

func colorize(style lipgloss.Style, text string) string {
	return style.Render(text)
}

// header returns a bold section header.
func header(title string) string {
	return bold.Render(title)
}

// padRight pads s with spaces to reach the given width.
func padRight(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return s + strings.Repeat(" ", width-len(s))
}

// formatDuration renders a time.Duration as a compact human string like
// "2h 14m 8s" or "45s".
func formatDuration(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	if h > 0 {
		return fmt.Sprintf("%dh %dm %ds", h, m, s)
	}
	if m > 0 {
		return fmt.Sprintf("%dm %ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}

// formatBytes renders a byte count as a human-readable string.
func formatBytes(b int64) string {
	switch {
	case b >= 1<<30:
		return fmt.Sprintf("%.1f GB", float64(b)/float64(1<<30))
	case b >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(b)/float64(1<<20))
	case b >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(b)/float64(1<<10))
	default:
		return fmt.Sprintf("%d B", b)
	}
}
