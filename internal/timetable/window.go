package timetable

import (
	"fmt"
	"math"
)

// DefaultStep is the height of one grid row in hours.
const DefaultStep = 0.5

// Window is the displayed part of the day, [Start, End) in fractional hours.
type Window struct {
	Start float64
	End   float64
}

// DefaultWindow covers 8h00 to 19h00, i.e. the last row is 18h30.
var DefaultWindow = Window{Start: 8, End: 19}

// Valid reports whether the window lies inside one day and is non-empty.
func (w Window) Valid() bool {
	return w.Start >= 0 && w.End <= 24 && w.End > w.Start
}

// StartRange returns the closed range of start hours that fall on a grid row,
// from Start to the start of the last row. DefaultWindow gives [8, 18.5].
func (w Window) StartRange(step float64) Window {
	if step <= 0 {
		step = DefaultStep
	}
	n := w.slots(step)
	if n <= 0 {
		return Window{Start: w.Start, End: w.Start}
	}
	return Window{Start: w.Start, End: w.Start + float64(n-1)*step}
}

// slots returns the number of step-sized rows in the window.
func (w Window) slots(step float64) int {
	return int(math.Ceil((w.End-w.Start)/step - 1e-9))
}

// slotIndex rounds h to the nearest step boundary measured from w.Start.
func (w Window) slotIndex(h, step float64) int {
	return int(math.Round((h - w.Start) / step))
}

// Snap rounds h to the nearest multiple of step counted from origin. Ties
// round away from origin, so 9h15 on a half-hour grid lands on 9h30.
func Snap(h, origin, step float64) float64 {
	if step <= 0 {
		return h
	}
	return origin + math.Round((h-origin)/step)*step
}

// HourLabel formats a fractional hour as "8h00", "13h30".
func HourLabel(h float64) string {
	hours := int(math.Floor(h))
	minutes := int(math.Round((h - float64(hours)) * 60))
	if minutes == 60 {
		hours++
		minutes = 0
	}
	return fmt.Sprintf("%dh%02d", hours, minutes)
}
