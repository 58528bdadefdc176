// Package output provides styled terminal output helpers (success,
// error, row and conflict formatting) for the stb CLI using lipgloss.
package output

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

var (
	// Styles
	titleStyle    = lipgloss.NewStyle().Bold(true)
	subtleStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	successStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	warningStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	conflictStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("212"))
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

// Title renders s bold.
func Title(s string) string {
	return titleStyle.Render(s)
}

// Subtle renders s dimmed.
func Subtle(s string) string {
	return subtleStyle.Render(s)
}

// PullSummary summarises one pull for display.
// e.g. "3 changes pulled (1 conflict)"
func PullSummary(changes, conflicts int) string {
	s := fmt.Sprintf("%d %s pulled", changes, plural(changes, "change", "changes"))
	if conflicts > 0 {
		s += conflictStyle.Render(fmt.Sprintf(" (%d %s)", conflicts, plural(conflicts, "conflict", "conflicts")))
	}
	return s
}

// PushSummary summarises one push for display.
// e.g. "3 rows pushed: 2 accepted, 1 conflict"
func PushSummary(submitted, accepted, conflicts int) string {
	if submitted == 0 {
		return "nothing to push"
	}
	s := fmt.Sprintf("%d %s pushed: %d accepted", submitted, plural(submitted, "row", "rows"), accepted)
	if conflicts > 0 {
		s += conflictStyle.Render(fmt.Sprintf(", %d %s", conflicts, plural(conflicts, "conflict", "conflicts")))
	}
	return s
}

// RowLine formats one table row for a listing. Modified rows carry a
// "*" marker, conflicted rows a "!".
func RowLine(id, version int64, modified, conflicted bool, data string) string {
	marker := " "
	switch {
	case conflicted:
		marker = conflictStyle.Render("!")
	case modified:
		marker = warningStyle.Render("*")
	}
	return fmt.Sprintf("%s %s %s  %s",
		marker,
		titleStyle.Render(fmt.Sprintf("%4d", id)),
		subtleStyle.Render(fmt.Sprintf("v%-3d", version)),
		data)
}

// PendingLine formats one pending-new row for a listing.
func PendingLine(data string) string {
	return fmt.Sprintf("%s %s %s  %s",
		warningStyle.Render("+"),
		titleStyle.Render("   -"),
		subtleStyle.Render("new "),
		data)
}

// ConflictHeading labels one conflict in a listing.
// e.g. "row 3: local v1 vs server v2"
func ConflictHeading(id, localVersion, serverVersion int64) string {
	return conflictStyle.Render(fmt.Sprintf("row %d:", id)) +
		fmt.Sprintf(" local v%d vs server v%d", localVersion, serverVersion)
}

// SectionHeader returns a formatted section header for CLI output
// e.g., "\nCONFLICTS:\n"
func SectionHeader(title string) string {
	return fmt.Sprintf("\n%s:\n", strings.ToUpper(title))
}

// Truncate shortens s to at most max runes, marking the cut with an
// ellipsis. Used to keep long CSV payloads on one terminal line.
func Truncate(s string, max int) string {
	if max <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	if max == 1 {
		return "…"
	}
	return string(runes[:max-1]) + "…"
}

// TerminalWidth returns the current terminal width or a fallback when
// unavailable.
func TerminalWidth(fallback int) int {
	if fallback <= 0 {
		fallback = 80
	}

	if width, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && width > 0 {
		return width
	}

	if cols := os.Getenv("COLUMNS"); cols != "" {
		if parsed, err := strconv.Atoi(cols); err == nil && parsed > 0 {
			return parsed
		}
	}

	return fallback
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
