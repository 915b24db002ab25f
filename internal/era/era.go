// Package era converts Gregorian dates to the imperial-era forms used on
// claim records.
package era

import (
	"fmt"
	"time"
)

// Era is one imperial era.
type Era struct {
	Code   int    // 1..5
	Name   string // 令和
	Abbrev string // 令
	Letter string // R
	Start  time.Time
}

// Eras are ordered oldest first. Start dates are the first day of each era.
var Eras = []Era{
	{Code: 1, Name: "明治", Abbrev: "明", Letter: "M", Start: day(1868, 1, 25)},
	{Code: 2, Name: "大正", Abbrev: "大", Letter: "T", Start: day(1912, 7, 30)},
	{Code: 3, Name: "昭和", Abbrev: "昭", Letter: "S", Start: day(1926, 12, 25)},
	{Code: 4, Name: "平成", Abbrev: "平", Letter: "H", Start: day(1989, 1, 8)},
	{Code: 5, Name: "令和", Abbrev: "令", Letter: "R", Start: day(2019, 5, 1)},
}

// Date is a date expressed relative to an era.
type Date struct {
	Era   Era
	Year  int // 1-based year within the era
	Month int
	Day   int
}

// Of converts t (calendar date, time of day ignored) to its era date.
func Of(t time.Time) (Date, error) {
	d := day(t.Year(), int(t.Month()), t.Day())
	for i := len(Eras) - 1; i >= 0; i-- {
		e := Eras[i]
		if !d.Before(e.Start) {
			return Date{
				Era:   e,
				Year:  d.Year() - e.Start.Year() + 1,
				Month: int(d.Month()),
				Day:   d.Day(),
			}, nil
		}
	}
	return Date{}, fmt.Errorf("date %s precedes the earliest supported era", d.Format("2006-01-02"))
}

// Display renders the era code, abbreviation and year・month・day, e.g.
// "5令06・04・01".
func (d Date) Display() string {
	return fmt.Sprintf("%d%s%02d・%02d・%02d", d.Era.Code, d.Era.Abbrev, d.Year, d.Month, d.Day)
}

// Compact renders the seven-digit GYYMMDD form, e.g. "5060401".
func (d Date) Compact() string {
	return fmt.Sprintf("%d%02d%02d%02d", d.Era.Code, d.Year, d.Month, d.Day)
}

// Display is shorthand for Of(t) followed by Date.Display.
func Display(t time.Time) (string, error) {
	d, err := Of(t)
	if err != nil {
		return "", err
	}
	return d.Display(), nil
}

// Parse reads a Compact (GYYMMDD) string back to a Gregorian date.
func Parse(s string) (time.Time, error) {
	var code, y, m, dd int
	if len(s) != 7 {
		return time.Time{}, fmt.Errorf("era date %q: want 7 digits", s)
	}
	if _, err := fmt.Sscanf(s, "%1d%2d%2d%2d", &code, &y, &m, &dd); err != nil {
		return time.Time{}, fmt.Errorf("era date %q: %w", s, err)
	}
	if code < 1 || code > len(Eras) {
		return time.Time{}, fmt.Errorf("era date %q: unknown era code %d", s, code)
	}
	e := Eras[code-1]
	t := day(e.Start.Year()+y-1, m, dd)
	if t.Month() != time.Month(m) || t.Day() != dd || t.Before(e.Start) {
		return time.Time{}, fmt.Errorf("era date %q is not a valid %s date", s, e.Name)
	}
	if code < len(Eras) && !t.Before(Eras[code].Start) {
		return time.Time{}, fmt.Errorf("era date %q is past the end of %s", s, e.Name)
	}
	return t, nil
}

func day(y, m, d int) time.Time {
	return time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
}
