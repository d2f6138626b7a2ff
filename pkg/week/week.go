package week

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// DateLayout is the calendar date format used by week records (YYYY-MM-DD).
const DateLayout = "2006-01-02"

var ErrInvalidWeekId = errors.New("invalid week id")

var idPattern = regexp.MustCompile(`^\d{4}-W\d{2}$`)

// Id identifies one ISO-8601 week. Year is the ISO week-year, which may differ from the
// calendar year of some of the week's days near a year boundary.
type Id struct {
	Year int
	Week int
}

// IdOf returns the ISO week containing the given date.
func IdOf(date time.Time) Id {
	year, week := date.ISOWeek()
	return Id{Year: year, Week: week}
}

// Parse converts "YYYY-Www" (e.g. "2025-W25") to an Id. The week number must exist in
// the given ISO week-year, so "2025-W53" is rejected while "2026-W53" is accepted.
func Parse(s string) (Id, error) {
	if !idPattern.MatchString(s) {
		return Id{}, fmt.Errorf("%w: %q", ErrInvalidWeekId, s)
	}
	year, _ := strconv.Atoi(s[:4])
	wk, _ := strconv.Atoi(s[6:])
	if wk < 1 || wk > WeeksInYear(year) {
		return Id{}, fmt.Errorf("%w: %q has no week %d", ErrInvalidWeekId, s, wk)
	}
	return Id{Year: year, Week: wk}, nil
}

// WeeksInYear returns 52 or 53, the number of ISO weeks in the given week-year.
// December 28th always falls in the last ISO week of its year.
func WeeksInYear(year int) int {
	_, w := time.Date(year, time.December, 28, 0, 0, 0, 0, time.UTC).ISOWeek()
	return w
}

// DatesOf parses the week id and returns its dates, Monday to Sunday.
func DatesOf(s string) ([7]time.Time, error) {
	id, err := Parse(s)
	if err != nil {
		return [7]time.Time{}, err
	}
	return id.Dates(), nil
}

// Valid reports whether id denotes an existing ISO week.
func (w Id) Valid() bool {
	return w.Year >= 0 && w.Year <= 9999 && w.Week >= 1 && w.Week <= WeeksInYear(w.Year)
}

func (w Id) IsZero() bool {
	return w == Id{}
}

// Monday returns the first day of the week at midnight UTC.
func (w Id) Monday() time.Time {
	// January 4th is always in week 1.
	jan4 := time.Date(w.Year, time.January, 4, 0, 0, 0, 0, time.UTC)
	offset := (int(jan4.Weekday()) + 6) % 7
	return jan4.AddDate(0, 0, -offset+(w.Week-1)*7)
}

// Dates returns the seven days of the week, Monday first.
func (w Id) Dates() [7]time.Time {
	var dates [7]time.Time
	monday := w.Monday()
	for i := range dates {
		dates[i] = monday.AddDate(0, 0, i)
	}
	return dates
}

// Contains reports whether date falls inside the week.
func (w Id) Contains(date time.Time) bool {
	return IdOf(date) == w
}

// Previous returns the week before w, computed from its Monday so that 53-week years
// roll over correctly.
func (w Id) Previous() Id {
	return IdOf(w.Monday().AddDate(0, 0, -7))
}

// Next returns the week after w.
func (w Id) Next() Id {
	return IdOf(w.Monday().AddDate(0, 0, 7))
}

func (w Id) Equal(other Id) bool {
	return w.Year == other.Year && w.Week == other.Week
}

// Before reports whether w refers to a week that occurs before other.
func (w Id) Before(other Id) bool {
	if w.Year != other.Year {
		return w.Year < other.Year
	}
	return w.Week < other.Week
}

// After reports whether w refers to a week that occurs after other.
func (w Id) After(other Id) bool {
	if w.Year != other.Year {
		return w.Year > other.Year
	}
	return w.Week > other.Week
}

// String returns the ISO week format e.g. "2025-W03". The zero Id renders as "".
func (w Id) String() string {
	if w.IsZero() {
		return ""
	}
	return fmt.Sprintf("%04d-W%02d", w.Year, w.Week)
}

func (w Id) MarshalText() ([]byte, error) {
	return []byte(w.String()), nil
}

func (w *Id) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		*w = Id{}
		return nil
	}
	id, err := Parse(string(text))
	if err != nil {
		return err
	}
	*w = id
	return nil
}
