package timetable

import (
	"edtcal/internal/model"
)

// ViewOptions gathers everything BuildView needs besides the entries.
type ViewOptions struct {
	Today  model.Date
	Offset int
	Mode   Mode
	Window Window
	Step   float64
	Locale Locale
}

// View is the render plan for one day.
type View struct {
	Date    model.Date
	Title   string
	Rows    []Row
	Empty   bool
	Message string
	// Unplaced lists classes of the day that could not be drawn in the grid.
	Unplaced []model.ScheduleEntry
}

// BuildView selects the day, merges its slots and lays out the grid. It never
// fails: a day without classes yields an all-empty grid plus a message.
func BuildView(all []model.ScheduleEntry, opts ViewOptions) View {
	if opts.Locale.Code == "" {
		opts.Locale = French
	}
	if opts.Step <= 0 {
		opts.Step = DefaultStep
	}
	if !opts.Window.Valid() {
		opts.Window = DefaultWindow
	}

	var (
		date    model.Date
		entries []model.ScheduleEntry
		message string
	)

	switch opts.Mode {
	case ModeNext:
		from := opts.Today.AddDays(opts.Offset)
		var ok bool
		date, entries, ok = FindNextDateWithEvents(all, from)
		if !ok {
			date = from
			message = opts.Locale.NoUpcoming()
		}
	default:
		date, entries = SelectDay(all, opts.Today, opts.Offset)
	}

	merged := Merge(entries)
	rows, unplaced := layout(date, merged, opts.Window, opts.Step)

	v := View{
		Date:     date,
		Title:    opts.Locale.Title(date),
		Rows:     rows,
		Empty:    len(merged) == 0,
		Unplaced: unplaced,
	}
	if v.Empty {
		v.Message = message
		if v.Message == "" {
			v.Message = opts.Locale.NoEvents()
		}
	}
	return v
}
