package timesheet

import (
	"context"

	"github.com/baptistelechat/overti-me/pkg/week"
)

// Service is the week store as seen by the HTTP and CLI surfaces.
type Service interface {
	CurrentWeek() (WeekRecord, bool)
	GetById(id week.Id) (WeekRecord, bool)
	GetAll() []WeekRecord
	Thresholds() Thresholds
	Degraded() bool
	InitializeCurrentWeek(ctx context.Context) (WeekRecord, error)
	SetCurrentWeekId(ctx context.Context, id week.Id) (WeekRecord, error)
	PreviousWeek(ctx context.Context) (WeekRecord, error)
	NextWeek(ctx context.Context) (WeekRecord, error)
	UpdateDay(ctx context.Context, dayIndex int, update DayUpdate) (WeekRecord, error)
	ResetDay(ctx context.Context, dayIndex int) (WeekRecord, error)
	ResetWeek(ctx context.Context) (WeekRecord, error)
}

var _ Service = (*Store)(nil)
var _ WeekRepository = (*Store)(nil)

// EnsureCurrentWeek returns the current week, creating today's week when none is selected.
func EnsureCurrentWeek(ctx context.Context, service Service) (WeekRecord, error) {
	if record, ok := service.CurrentWeek(); ok {
		return record, nil
	}
	return service.InitializeCurrentWeek(ctx)
}
