package timetable

import (
	"edtcal/internal/model"
)

// RowKind tells renderers whether a row belongs to a class block.
type RowKind int

const (
	RowEmpty RowKind = iota
	RowEvent
)

func (k RowKind) String() string {
	if k == RowEvent {
		return "event"
	}
	return "empty"
}

// Row is one fixed-height line of the day grid. A class spanning several
// steps is emitted as several event rows sharing the same Entry; only the
// first one (First == true) carries text.
type Row struct {
	Label string
	Hour  float64
	Kind  RowKind
	First bool
	Entry *model.ScheduleEntry
}

// Text is what the row should display: title and room on the first row of a
// block, nothing elsewhere.
func (r Row) Text() string {
	if r.Kind != RowEvent || !r.First || r.Entry == nil {
		return ""
	}
	if r.Entry.Room == "" {
		return r.Entry.Title
	}
	return r.Entry.Title + " · " + r.Entry.Room
}

// Layout lays out the entries of date over window in rows of step hours.
// Entries for other dates are ignored. Start and end hours that do not fall
// on a step boundary are rounded to the nearest one, so a 9h15 class is
// still drawn. Blocks are clipped at the window end.
func Layout(date model.Date, merged []model.ScheduleEntry, window Window, step float64) []Row {
	rows, _ := layout(date, merged, window, step)
	return rows
}

// Unplaced returns the entries of date that Layout could not draw: blocks
// starting outside the window or overlapping an earlier block.
func Unplaced(date model.Date, merged []model.ScheduleEntry, window Window, step float64) []model.ScheduleEntry {
	_, unplaced := layout(date, merged, window, step)
	return unplaced
}

type span struct {
	entry    *model.ScheduleEntry
	startIdx int
	endIdx   int
}

func layout(date model.Date, merged []model.ScheduleEntry, window Window, step float64) ([]Row, []model.ScheduleEntry) {
	if step <= 0 {
		step = DefaultStep
	}
	if !window.Valid() {
		window = DefaultWindow
	}

	day := make([]model.ScheduleEntry, 0, len(merged))
	for _, e := range merged {
		if e.Date == date {
			day = append(day, e)
		}
	}
	sortEntries(day)

	total := window.slots(step)
	byStart := make(map[int]span, len(day))
	var unplaced []model.ScheduleEntry

	for i := range day {
		s := window.slotIndex(day[i].StartHour, step)
		e := window.slotIndex(day[i].EndHour, step)
		if e <= s {
			// Shorter than half a step: still give it one row.
			e = s + 1
		}
		if s < 0 || s >= total {
			unplaced = append(unplaced, day[i])
			continue
		}
		if _, taken := byStart[s]; taken {
			unplaced = append(unplaced, day[i])
			continue
		}
		byStart[s] = span{entry: &day[i], startIdx: s, endIdx: e}
	}

	rows := make([]Row, 0, total)
	placed := make(map[int]bool, len(byStart))
	for idx := 0; idx < total; {
		hour := window.Start + float64(idx)*step
		sp, ok := byStart[idx]
		if !ok {
			rows = append(rows, Row{Label: HourLabel(hour), Hour: hour, Kind: RowEmpty})
			idx++
			continue
		}

		placed[idx] = true
		end := sp.endIdx
		if end > total {
			end = total
		}
		for i := idx; i < end; i++ {
			h := window.Start + float64(i)*step
			rows = append(rows, Row{
				Label: HourLabel(h),
				Hour:  h,
				Kind:  RowEvent,
				First: i == idx,
				Entry: sp.entry,
			})
		}
		idx = end
	}

	// Blocks whose start fell inside an earlier block were never visited.
	for s, sp := range byStart {
		if !placed[s] {
			unplaced = append(unplaced, *sp.entry)
		}
	}
	sortEntries(unplaced)

	return rows, unplaced
}
