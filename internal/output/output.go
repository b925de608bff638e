// Package output provides styled terminal output helpers (success, error,
// warning, sync status formatting) using lipgloss.
package output

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/evans/recall/internal/db"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true)
	subtleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	stateStyles  = map[string]lipgloss.Style{
		"idle":    lipgloss.NewStyle().Foreground(lipgloss.Color("45")),
		"syncing": lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		"offline": lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
	}
	severityStyles = map[db.ConflictSeverity]lipgloss.Style{
		db.SeverityLow:    lipgloss.NewStyle().Foreground(lipgloss.Color("242")),
		db.SeverityMedium: lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		db.SeverityHigh:   lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
	}
)

// Success prints a success message
func Success(format string, args ...interface{}) {
	fmt.Println(successStyle.Render(fmt.Sprintf(format, args...)))
}

// Error prints an error message
func Error(format string, args ...interface{}) {
	fmt.Println(errorStyle.Render("ERROR: " + fmt.Sprintf(format, args...)))
}

// Warning prints a warning message
func Warning(format string, args ...interface{}) {
	fmt.Println(warningStyle.Render("Warning: " + fmt.Sprintf(format, args...)))
}

// Info prints an info message
func Info(format string, args ...interface{}) {
	fmt.Println(fmt.Sprintf(format, args...))
}

// Title prints a bold heading
func Title(format string, args ...interface{}) {
	fmt.Println(titleStyle.Render(fmt.Sprintf(format, args...)))
}

// Subtle prints a de-emphasized line
func Subtle(format string, args ...interface{}) {
	fmt.Println(subtleStyle.Render(fmt.Sprintf(format, args...)))
}

// State renders a sync engine state with its color.
func State(state string) string {
	if style, ok := stateStyles[state]; ok {
		return style.Render(state)
	}
	return state
}

// Severity renders a conflict severity with its color.
func Severity(s db.ConflictSeverity) string {
	if style, ok := severityStyles[s]; ok {
		return style.Render(string(s))
	}
	return string(s)
}

// Conflict formats one conflict as a single summary line.
func Conflict(c db.SyncConflict) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s  %s/%s", Severity(c.Severity), c.TableName, c.RecordID)
	fmt.Fprintf(&b, "  local v%d vs remote v%d", c.LocalVersion, c.RemoteVersion)
	if c.Resolved {
		b.WriteString(subtleStyle.Render("  resolved (" + c.ResolutionStrategy + ")"))
	}
	b.WriteString(subtleStyle.Render("  " + c.ConflictID))
	return b.String()
}

// RelativeTime formats a timestamp as a compact age like "5m ago".
func RelativeTime(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}

// Bytes formats a byte count for humans.
func Bytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(n)/float64(div), "KMGT"[exp])
}
