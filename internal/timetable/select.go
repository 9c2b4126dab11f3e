package timetable

import (
	"fmt"
	"strings"

	"edtcal/internal/model"
)

// Mode selects how the displayed day is chosen.
type Mode string

const (
	// ModeOffset shows today + cursor offset, even when that day is empty.
	ModeOffset Mode = "offset"
	// ModeNext shows the first day at or after today + offset that has classes.
	ModeNext Mode = "next"
)

// ParseMode accepts "offset" / "next" (case-insensitive).
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeOffset, "":
		return ModeOffset, nil
	case ModeNext:
		return ModeNext, nil
	default:
		return "", fmt.Errorf("unknown display mode %q", s)
	}
}

// SelectDay returns today+offset and the entries on that date. An empty slice
// means there are no classes that day.
func SelectDay(all []model.ScheduleEntry, today model.Date, offset int) (model.Date, []model.ScheduleEntry) {
	target := today.AddDays(offset)
	return target, entriesOn(all, target)
}

// FindNextDateWithEvents returns the earliest date on or after from that has
// at least one entry. ok is false when no such date exists.
func FindNextDateWithEvents(all []model.ScheduleEntry, from model.Date) (date model.Date, entries []model.ScheduleEntry, ok bool) {
	for _, e := range all {
		if e.Date.Before(from) {
			continue
		}
		if !ok || e.Date.Before(date) {
			date = e.Date
			ok = true
		}
	}
	if !ok {
		return model.Date{}, nil, false
	}
	return date, entriesOn(all, date), true
}

func entriesOn(all []model.ScheduleEntry, date model.Date) []model.ScheduleEntry {
	out := make([]model.ScheduleEntry, 0)
	for _, e := range all {
		if e.Date == date {
			out = append(out, e)
		}
	}
	return out
}
