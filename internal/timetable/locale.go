package timetable

import (
	"fmt"
	"strings"

	"edtcal/internal/model"
)

// Locale holds the user-facing strings of the day view.
type Locale struct {
	Code      string
	weekdays  [7]string // Sunday first, like time.Weekday
	months    [12]string
	titleFmt  string
	noEvents  string
	noNextDay string
}

var (
	French = Locale{
		Code:      "fr",
		weekdays:  [7]string{"dimanche", "lundi", "mardi", "mercredi", "jeudi", "vendredi", "samedi"},
		months:    [12]string{"janvier", "février", "mars", "avril", "mai", "juin", "juillet", "août", "septembre", "octobre", "novembre", "décembre"},
		titleFmt:  "Cours du %s",
		noEvents:  "Aucun cours prévu",
		noNextDay: "Aucun cours à venir",
	}
	English = Locale{
		Code:      "en",
		weekdays:  [7]string{"Sunday", "Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday"},
		months:    [12]string{"January", "February", "March", "April", "May", "June", "July", "August", "September", "October", "November", "December"},
		titleFmt:  "Classes on %s",
		noEvents:  "No classes",
		noNextDay: "No upcoming classes",
	}
)

// LookupLocale returns the locale for a language code such as "fr" or
// "en-GB". Unknown codes fall back to French.
func LookupLocale(code string) Locale {
	code = strings.ToLower(strings.TrimSpace(code))
	if strings.HasPrefix(code, "en") {
		return English
	}
	return French
}

// LongDate formats d as "<weekday> <dd> <month>", e.g. "lundi 01 septembre".
func (l Locale) LongDate(d model.Date) string {
	return fmt.Sprintf("%s %02d %s", l.weekdays[d.Weekday()], d.Day, l.months[d.Month-1])
}

// Title is the widget header for d.
func (l Locale) Title(d model.Date) string {
	return fmt.Sprintf(l.titleFmt, l.LongDate(d))
}

func (l Locale) NoEvents() string {
	return l.noEvents
}

func (l Locale) NoUpcoming() string {
	return l.noNextDay
}
