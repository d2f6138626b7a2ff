package timesheet

import (
	"errors"
	"fmt"
	"math"
)

var ErrInvalidThresholds = errors.New("invalid overtime thresholds")
var ErrNegativeTotal = errors.New("total hours must not be negative")

// Thresholds bound the overtime bands of a week, in hours.
type Thresholds struct {
	// Normal is the ceiling of normal hours (T1).
	Normal float64
	// Overtime25 is the ceiling of the +25% band (T2).
	Overtime25 float64
	// LegalLimit raises the weekly display flag above it (T3).
	LegalLimit float64
	// DailyLimit raises the per-day display flag above it.
	DailyLimit float64
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		Normal:     35,
		Overtime25: 43,
		LegalLimit: 48,
		DailyLimit: 10,
	}
}

func (t Thresholds) Validate() error {
	if t.Normal < 0 {
		return fmt.Errorf("%w: normal ceiling %v is negative", ErrInvalidThresholds, t.Normal)
	}
	if t.Overtime25 < t.Normal {
		return fmt.Errorf("%w: +25%% ceiling %v is below normal ceiling %v", ErrInvalidThresholds, t.Overtime25, t.Normal)
	}
	if t.LegalLimit < 0 || t.DailyLimit < 0 {
		return fmt.Errorf("%w: limits must not be negative", ErrInvalidThresholds)
	}
	return nil
}

func (t Thresholds) IsOverLegalLimit(totalHours float64) bool {
	return totalHours > t.LegalLimit
}

func (t Thresholds) IsOverDailyLimit(dayHours float64) bool {
	return dayHours > t.DailyLimit
}

// Bands partitions a week total into normal, +25% and +50% hours.
type Bands struct {
	Normal     float64
	Overtime25 float64
	Overtime50 float64
}

// Aggregate splits totalHours into bands. Each band is rounded on its own after computation.
func Aggregate(totalHours float64, t Thresholds) (Bands, error) {
	if err := t.Validate(); err != nil {
		return Bands{}, err
	}
	if totalHours < 0 || math.IsNaN(totalHours) {
		return Bands{}, fmt.Errorf("%w: %v", ErrNegativeTotal, totalHours)
	}
	return Bands{
		Normal:     roundHours(math.Min(totalHours, t.Normal)),
		Overtime25: roundHours(math.Max(0, math.Min(totalHours, t.Overtime25)-t.Normal)),
		Overtime50: roundHours(math.Max(0, totalHours-t.Overtime25)),
	}, nil
}
