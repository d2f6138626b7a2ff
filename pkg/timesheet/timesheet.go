package timesheet

import (
	"time"

	"github.com/baptistelechat/overti-me/pkg/week"
)

const DaysPerWeek = 7

// WorkDay is one calendar day of a week record. Time fields hold "HH:MM" or "" when not entered.
type WorkDay struct {
	Date            string `json:"date"`
	StartTime       string `json:"startTime"`
	EndTime         string `json:"endTime"`
	LunchBreakStart string `json:"lunchBreakStart"`
	LunchBreakEnd   string `json:"lunchBreakEnd"`
	// DirectDuration is set only while the day is in direct-duration entry mode.
	DirectDuration     *float64 `json:"directDuration,omitempty"`
	CalculatedDuration float64  `json:"calculatedDuration"`
	IsWorked           bool     `json:"isWorked"`
}

// WeekRecord aggregates the seven days of one ISO week.
type WeekRecord struct {
	Id              week.Id              `json:"id"`
	Days            [DaysPerWeek]WorkDay `json:"days"`
	TotalHours      float64              `json:"totalHours"`
	NormalHours     float64              `json:"normalHours"`
	OvertimeHours25 float64              `json:"overtimeHours25"`
	OvertimeHours50 float64              `json:"overtimeHours50"`
	UpdatedAt       time.Time            `json:"updatedAt"`
}

// Collection is the persisted state of the store.
type Collection struct {
	CurrentWeekId week.Id                `json:"currentWeekId"`
	Weeks         map[week.Id]WeekRecord `json:"weeks"`
}

func NewCollection() Collection {
	return Collection{Weeks: make(map[week.Id]WeekRecord)}
}

// NewWeekRecord returns an empty record whose days carry the dates of the week.
func NewWeekRecord(id week.Id, now time.Time) WeekRecord {
	record := WeekRecord{Id: id, UpdatedAt: now}
	for i, d := range id.Dates() {
		record.Days[i] = WorkDay{Date: d.Format(week.DateLayout)}
	}
	return record
}

// DayUpdate carries a partial edit of a day. A nil field keeps the stored value,
// a non-nil field replaces it; an empty string clears a time field.
type DayUpdate struct {
	StartTime       *string
	EndTime         *string
	LunchBreakStart *string
	LunchBreakEnd   *string
	DirectDuration  *float64
}

func (u DayUpdate) editsTimes() bool {
	return u.StartTime != nil || u.EndTime != nil || u.LunchBreakStart != nil || u.LunchBreakEnd != nil
}

// applyTo merges the update into day. Editing any time field leaves direct-duration mode,
// setting DirectDuration enters it.
func (u DayUpdate) applyTo(day WorkDay) (WorkDay, error) {
	fields := []struct {
		value  *string
		target *string
	}{
		{u.StartTime, &day.StartTime},
		{u.EndTime, &day.EndTime},
		{u.LunchBreakStart, &day.LunchBreakStart},
		{u.LunchBreakEnd, &day.LunchBreakEnd},
	}
	for _, f := range fields {
		if f.value == nil {
			continue
		}
		if *f.value != "" {
			if _, err := parseClock(*f.value); err != nil {
				return day, err
			}
		}
		*f.target = *f.value
	}
	if u.editsTimes() {
		day.DirectDuration = nil
	}
	if u.DirectDuration != nil {
		if err := validateDirectDuration(*u.DirectDuration); err != nil {
			return day, err
		}
		hours := *u.DirectDuration
		day.DirectDuration = &hours
	}
	return day, nil
}
