package timetable

import (
	"sort"

	"edtcal/internal/model"
)

// Merge folds back-to-back slots of the same class into one entry. Two
// entries are folded when title, room and date match and the first ends
// exactly where the second starts. The input slice is left untouched.
func Merge(entries []model.ScheduleEntry) []model.ScheduleEntry {
	if len(entries) == 0 {
		return []model.ScheduleEntry{}
	}

	sorted := make([]model.ScheduleEntry, len(entries))
	copy(sorted, entries)
	sortEntries(sorted)

	out := make([]model.ScheduleEntry, 0, len(sorted))
	current := sorted[0]
	for _, next := range sorted[1:] {
		if contiguous(current, next) {
			current.EndHour = next.EndHour
			continue
		}
		out = append(out, current)
		current = next
	}
	out = append(out, current)
	return out
}

func contiguous(cur, next model.ScheduleEntry) bool {
	return cur.Title == next.Title &&
		cur.Room == next.Room &&
		cur.Date == next.Date &&
		cur.EndHour == next.StartHour
}

// sortEntries orders by (date, start hour); ties keep input order.
func sortEntries(entries []model.ScheduleEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if c := entries[i].Date.Compare(entries[j].Date); c != 0 {
			return c < 0
		}
		return entries[i].StartHour < entries[j].StartHour
	})
}
