package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/waabox/changesdeck/internal/condition"
)

var (
	passedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	failedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true)
	waitingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	nothingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	unknownStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("5"))
	dimStyle     = lipgloss.NewStyle().Faint(true)
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
)

const separator = "────────────────────────────────────────────────────────────\n"

func conditionIcon(c condition.Condition) string {
	switch c {
	case condition.Passed:
		return passedStyle.Render("✓")
	case condition.Failed:
		return failedStyle.Render("✗")
	case condition.Waiting:
		return waitingStyle.Render("●")
	case condition.Nothing:
		return nothingStyle.Render("○")
	default:
		return unknownStyle.Render("?")
	}
}

// renderStrip draws a compressed condition row, e.g. "✓×3 ✗ ●×2".
func renderStrip(runs []condition.Run) string {
	parts := make([]string, 0, len(runs))
	for _, r := range runs {
		if r.Count == 1 {
			parts = append(parts, conditionIcon(r.Condition))
			continue
		}
		parts = append(parts, fmt.Sprintf("%s×%d", conditionIcon(r.Condition), r.Count))
	}
	return strings.Join(parts, " ")
}

func formatAge(t time.Time) string {
	if t.IsZero() {
		return "--"
	}
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds ago", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 48*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}

func formatDuration(d time.Duration) string {
	if d <= 0 {
		return "--"
	}
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	return fmt.Sprintf("%dm%02ds", int(d.Minutes()), int(d.Seconds())%60)
}

func truncate(s string, max int) string {
	if len([]rune(s)) <= max {
		return s
	}
	return string([]rune(s)[:max-1]) + "…"
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

func shortSHA(sha string) string {
	if len(sha) > 7 {
		return sha[:7]
	}
	return sha
}

func clampCursor(cursor, n int) int {
	if cursor >= n {
		cursor = n - 1
	}
	if cursor < 0 {
		cursor = 0
	}
	return cursor
}
