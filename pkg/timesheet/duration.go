package timesheet

import (
	"errors"
	"fmt"
	"math"
	"time"
)

var ErrInvalidTime = errors.New("invalid time of day")
var ErrInvalidDuration = errors.New("invalid direct duration")

const minutesPerDay = 24 * 60

// EntryMode tells which inputs of a day drive its duration.
type EntryMode int

const (
	Empty EntryMode = iota
	FullDay
	MorningOnly
	AfternoonOnly
	DirectDuration
)

func (m EntryMode) String() string {
	switch m {
	case FullDay:
		return "full_day"
	case MorningOnly:
		return "morning_only"
	case AfternoonOnly:
		return "afternoon_only"
	case DirectDuration:
		return "direct_duration"
	default:
		return "empty"
	}
}

// EntryModeOf classifies a day, in priority order: direct duration, start+end,
// start+lunch start, lunch end+end.
func EntryModeOf(day WorkDay) EntryMode {
	switch {
	case day.DirectDuration != nil:
		return DirectDuration
	case day.StartTime != "" && day.EndTime != "":
		return FullDay
	case day.StartTime != "" && day.LunchBreakStart != "":
		return MorningOnly
	case day.LunchBreakEnd != "" && day.EndTime != "":
		return AfternoonOnly
	default:
		return Empty
	}
}

// CalculateDuration returns the worked hours of a day rounded half-up to 0.01.
// Spans whose end is earlier than their start cross midnight.
func CalculateDuration(day WorkDay) (float64, error) {
	var minutes int
	switch EntryModeOf(day) {
	case DirectDuration:
		if err := validateDirectDuration(*day.DirectDuration); err != nil {
			return 0, err
		}
		return roundHours(*day.DirectDuration), nil
	case FullDay:
		total, err := span(day.StartTime, day.EndTime)
		if err != nil {
			return 0, err
		}
		if day.LunchBreakStart != "" && day.LunchBreakEnd != "" {
			lunch, err := span(day.LunchBreakStart, day.LunchBreakEnd)
			if err != nil {
				return 0, err
			}
			total -= lunch
		}
		minutes = total
	case MorningOnly:
		m, err := span(day.StartTime, day.LunchBreakStart)
		if err != nil {
			return 0, err
		}
		minutes = m
	case AfternoonOnly:
		m, err := span(day.LunchBreakEnd, day.EndTime)
		if err != nil {
			return 0, err
		}
		minutes = m
	default:
		return 0, nil
	}
	if minutes <= 0 {
		return 0, nil
	}
	return roundHours(float64(minutes) / 60), nil
}

// span returns the minutes from one wall-clock time to another, wrapping past midnight.
func span(from, to string) (int, error) {
	start, err := parseClock(from)
	if err != nil {
		return 0, err
	}
	end, err := parseClock(to)
	if err != nil {
		return 0, err
	}
	if end < start {
		end += minutesPerDay
	}
	return end - start, nil
}

// parseClock converts "HH:MM" to minutes since midnight.
func parseClock(value string) (int, error) {
	t, err := time.Parse("15:04", value)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTime, value)
	}
	return t.Hour()*60 + t.Minute(), nil
}

func validateDirectDuration(hours float64) error {
	if math.IsNaN(hours) || hours < 0 || hours > 24 {
		return fmt.Errorf("%w: %v is outside 0-24", ErrInvalidDuration, hours)
	}
	if quarters := hours * 4; quarters != math.Trunc(quarters) {
		return fmt.Errorf("%w: %v is not a multiple of 0.25", ErrInvalidDuration, hours)
	}
	return nil
}

func roundHours(hours float64) float64 {
	return math.Round(hours*100) / 100
}
