// Package term draws a day view in the terminal with lipgloss.
package term

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"edtcal/internal/timetable"
)

const (
	labelWidth   = 6
	defaultWidth = 44
)

var (
	colorMuted   = lipgloss.Color("245")
	colorInk     = lipgloss.Color("234")
	colorMessage = lipgloss.Color("252")

	titleStyle   = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	labelStyle   = lipgloss.NewStyle().Width(labelWidth).Align(lipgloss.Right).Foreground(colorMuted)
	messageStyle = lipgloss.NewStyle().Background(colorMessage).Foreground(colorInk).Padding(0, 1)
	footerStyle  = lipgloss.NewStyle().Foreground(colorMuted).Italic(true)
)

// Render returns the view as styled lines. width <= 0 uses a compact default.
func Render(v timetable.View, width int, footer string) string {
	if width <= 0 {
		width = defaultWidth
	}
	cellWidth := width - labelWidth - 1
	if cellWidth < 8 {
		cellWidth = 8
	}

	lines := []string{titleStyle.Render(v.Title)}
	if v.Empty {
		lines = append(lines, messageStyle.Width(width).Render(v.Message))
	}

	for _, row := range v.Rows {
		label := labelStyle.Render(row.Label)
		cell := lipgloss.NewStyle().Width(cellWidth)
		text := ""
		if row.Kind == timetable.RowEvent && row.Entry != nil {
			cell = cell.Background(lipgloss.Color(row.Entry.Color.Hex())).Foreground(colorInk)
			text = truncate(row.Text(), cellWidth)
		}
		lines = append(lines, label+" "+cell.Render(text))
	}

	for _, u := range v.Unplaced {
		lines = append(lines, footerStyle.Render("! "+u.Title+" "+timetable.HourLabel(u.StartHour)+"-"+timetable.HourLabel(u.EndHour)))
	}
	if footer != "" {
		lines = append(lines, footerStyle.Render(footer))
	}
	return strings.Join(lines, "\n")
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	if max <= 1 {
		return string(r[:max])
	}
	return string(r[:max-1]) + "…"
}
