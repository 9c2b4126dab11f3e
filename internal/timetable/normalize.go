package timetable

import (
	"strings"
	"time"

	appLog "edtcal/internal/log"
	"edtcal/internal/model"
)

// NormalizeOptions controls which raw events become schedule entries.
type NormalizeOptions struct {
	// Location is the display timezone. Nil means time.Local.
	Location *time.Location
	// Window is the closed range [Start, End] of accepted start hours. Use
	// StartRange to derive it from a display window.
	Window Window
	// WeekdaysOnly drops classes starting on Saturday or Sunday.
	WeekdaysOnly bool
	Palette      Palette
}

// Normalize flattens raw feed events into per-day schedule entries.
// Malformed or out-of-window events are dropped silently; the order of the
// surviving entries follows the input.
func Normalize(raw []model.RawEvent, opts NormalizeOptions) []model.ScheduleEntry {
	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}
	window := opts.Window
	if window.Start < 0 || window.End > 24 || window.End < window.Start || window == (Window{}) {
		window = DefaultWindow.StartRange(DefaultStep)
	}
	palette := opts.Palette
	if palette == (Palette{}) {
		palette = DefaultPalette
	}

	out := make([]model.ScheduleEntry, 0, len(raw))
	colors := make(map[string]model.Color)
	dropped := 0

	for _, ev := range raw {
		entry, ok := normalizeOne(ev, loc, window, opts.WeekdaysOnly)
		if !ok {
			dropped++
			continue
		}
		c, seen := colors[entry.Title]
		if !seen {
			c = palette.ColorFor(entry.Title)
			colors[entry.Title] = c
		}
		entry.Color = c
		out = append(out, entry)
	}

	if dropped > 0 {
		appLog.Debug("normalize: dropped events", "dropped", dropped, "kept", len(out))
	}
	return out
}

func normalizeOne(ev model.RawEvent, loc *time.Location, window Window, weekdaysOnly bool) (model.ScheduleEntry, bool) {
	title := strings.TrimSpace(ev.Title)
	if title == "" || ev.Start.IsZero() || ev.End.IsZero() {
		return model.ScheduleEntry{}, false
	}

	start := ev.Start.In(loc)
	end := ev.End.In(loc)
	date := model.DateOf(start)

	if weekdaysOnly && date.IsWeekend() {
		return model.ScheduleEntry{}, false
	}
	// Classes never cross midnight; anything that does is a multi-day or
	// all-day item, not a grid slot.
	if model.DateOf(end) != date {
		return model.ScheduleEntry{}, false
	}

	startHour := hourOf(start)
	endHour := hourOf(end)
	if startHour < window.Start || startHour > window.End || endHour <= startHour {
		return model.ScheduleEntry{}, false
	}

	return model.ScheduleEntry{
		Title:     title,
		Date:      date,
		StartHour: startHour,
		EndHour:   endHour,
		Room:      strings.TrimSpace(ev.Location),
	}, true
}

func hourOf(t time.Time) float64 {
	return float64(t.Hour()) + float64(t.Minute())/60
}
