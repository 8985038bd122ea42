package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// truncate shortens a string to a max length, adding "..." if truncated.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 0 {
		return ""
	}
	if maxLen < 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}

// formatTime shows the time of day for today and a short date otherwise.
func formatTime(t, now time.Time) string {
	if t.IsZero() {
		return "???"
	}
	t, now = t.Local(), now.Local()
	if t.Year() == now.Year() && t.YearDay() == now.YearDay() {
		return t.Format("15:04")
	}
	return t.Format("Jan02")
}

func displayName(sender string) string {
	name := sender
	if idx := strings.Index(name, "<"); idx > 0 {
		name = strings.TrimSpace(name[:idx])
	}
	name = strings.Trim(name, `"`)
	if name == "" {
		return "(Unknown Sender)"
	}
	return name
}

func statusStyle(s status) lipgloss.Style {
	switch s {
	case statusSent, statusAccepted, statusDrafted:
		return StatusOKStyle
	case statusScreened, statusSkipped:
		return StatusSkipStyle
	case statusFailed:
		return StatusFailStyle
	default:
		return StatusPendingStyle
	}
}

// formatActivityItem renders one entry as a 4-line box. contentWidth is the text width inside the box.
func formatActivityItem(e *entry, isSelected bool, contentWidth int, now time.Time) string {
	var boxCharStyle, subjectStyle, secondaryTextStyle, itemBlockStyle lipgloss.Style
	if isSelected {
		boxCharStyle = SelectedBoxCharStyle
		subjectStyle = SelectedSubjectStyle
		secondaryTextStyle = SelectedSecondaryTextStyle
		itemBlockStyle = SelectedActivityItemStyle
	} else {
		boxCharStyle = NormalBoxCharStyle
		subjectStyle = NormalSubjectStyle
		secondaryTextStyle = NormalSecondaryTextStyle
		itemBlockStyle = ActivityItemStyle
	}

	badge := string(e.Status)
	subjectWidth := contentWidth - len(badge) - 1
	if subjectWidth < 1 {
		subjectWidth = 1
	}
	subject := fmt.Sprintf("%-*s", subjectWidth, truncate(e.Message.Subject, subjectWidth))

	dateStr := formatTime(e.Message.ReceivedAt, now)
	from := displayName(e.Message.Sender)
	maxFromLen := contentWidth - len(dateStr) - 1
	var fromDate string
	if maxFromLen < 1 {
		fromDate = truncate(dateStr, contentWidth)
	} else {
		fromDate = truncate(from, maxFromLen) + " " + dateStr
	}
	fromDate = fmt.Sprintf("%-*s", contentWidth, fromDate)

	horizontalBar := strings.Repeat(BoxHorizontal, contentWidth+2)
	line1 := boxCharStyle.Render(BoxTopLeft + horizontalBar + BoxTopRight)
	line2 := fmt.Sprintf("%s %s %s %s",
		boxCharStyle.Render(BoxVertical),
		subjectStyle.Render(subject),
		statusStyle(e.Status).Render(badge),
		boxCharStyle.Render(BoxVertical),
	)
	line3 := fmt.Sprintf("%s %s %s",
		boxCharStyle.Render(BoxVertical),
		secondaryTextStyle.Render(fromDate),
		boxCharStyle.Render(BoxVertical),
	)
	line4 := boxCharStyle.Render(BoxBottomLeft + horizontalBar + BoxBottomRight)

	return itemBlockStyle.Render(strings.Join([]string{line1, line2, line3, line4}, "\n"))
}
