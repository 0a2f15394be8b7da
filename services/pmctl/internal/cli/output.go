package cli

import (
	"io"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
)

const timeLayout = "2006-01-02 15:04"

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

// severityColor highlights alert severities. Every value gets an attribute of
// the same width so tabwriter columns stay aligned.
func severityColor(severity string) string {
	switch severity {
	case "Critical":
		return color.New(color.FgRed, color.Bold).Sprint(severity)
	case "Warning":
		return color.New(color.FgYellow, color.Bold).Sprint(severity)
	default:
		return color.New(color.FgCyan, color.Bold).Sprint(severity)
	}
}

func statusColor(status string) string {
	switch status {
	case "New", "Failed":
		return color.New(color.FgRed).Sprint(status)
	case "Acknowledged", "InProgress", "Pending":
		return color.New(color.FgYellow).Sprint(status)
	case "Resolved", "Sent":
		return color.New(color.FgGreen).Sprint(status)
	default:
		return color.New(color.FgWhite).Sprint(status)
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format(timeLayout)
}

func valueOr(s *string, fallback string) string {
	if s == nil || *s == "" {
		return fallback
	}
	return *s
}

func check() string {
	return color.New(color.FgGreen).Sprint("✓")
}

func cross() string {
	return color.New(color.FgRed).Sprint("✗")
}
