package timetable

import (
	"time"

	"edtcal/internal/model"
)

// Clock is the single source of "now" for day selection and rendering.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock in a fixed display location.
type SystemClock struct {
	Location *time.Location
}

func (c SystemClock) Now() time.Time {
	if c.Location == nil {
		return time.Now()
	}
	return time.Now().In(c.Location)
}

// FixedClock always returns T.
type FixedClock struct {
	T time.Time
}

func (c FixedClock) Now() time.Time {
	return c.T
}

// Today returns the current calendar date according to c.
func Today(c Clock) model.Date {
	return model.DateOf(c.Now())
}
