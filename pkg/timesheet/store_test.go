package timesheet

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/baptistelechat/overti-me/internal/event_bus"
	"github.com/baptistelechat/overti-me/internal/storage"
	"github.com/baptistelechat/overti-me/internal/utils"
	"github.com/baptistelechat/overti-me/pkg/week"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var ctx = context.Background()

// Wednesday of 2025-W25
var today = time.Date(2025, time.June, 18, 10, 30, 0, 0, time.UTC)

var week25 = week.Id{Year: 2025, Week: 25}

type storeFixture struct {
	store  *Store
	state  *StateRepositoryStub
	clock  *utils.MockClock
	events *[]event_bus.WeekChanged
}

func setupStore(t *testing.T) storeFixture {
	t.Helper()
	state := NewStateRepositoryStub()
	bus := event_bus.NewEventBus()
	clock := utils.NewMockClock(today)
	events := &[]event_bus.WeekChanged{}
	event_bus.SubscribeTyped(bus, event_bus.WeekChangedEvent, func(e event_bus.EventT[event_bus.WeekChanged]) error {
		*events = append(*events, e.Data)
		return nil
	})
	store, err := NewStore(state, bus, clock, DefaultThresholds())
	require.NoError(t, err)
	return storeFixture{store: store, state: state, clock: clock, events: events}
}

func str(s string) *string {
	return &s
}

func workday(start, lunchStart, lunchEnd, end string) DayUpdate {
	return DayUpdate{StartTime: str(start), LunchBreakStart: str(lunchStart), LunchBreakEnd: str(lunchEnd), EndTime: str(end)}
}

func TestNewStore(t *testing.T) {
	_, err := NewStore(NewStateRepositoryStub(), nil, utils.SystemClock{}, Thresholds{Normal: 40, Overtime25: 30})

	assert.ErrorIs(t, err, ErrInvalidThresholds)
}

func TestStore_InitializeWeek(t *testing.T) {
	t.Run("should create an empty week and make it current", func(t *testing.T) {
		// given
		f := setupStore(t)

		// when
		record, err := f.store.InitializeWeek(ctx, week25)

		// then
		require.NoError(t, err)
		assert.Equal(t, week25, record.Id)
		assert.Equal(t, "2025-06-16", record.Days[0].Date)
		assert.Equal(t, "2025-06-22", record.Days[6].Date)
		for _, day := range record.Days {
			assert.False(t, day.IsWorked)
			assert.Zero(t, day.CalculatedDuration)
		}
		assert.Zero(t, record.TotalHours)
		assert.Equal(t, week25, f.store.CurrentWeekId())
		assert.Equal(t, 1, f.state.Saves())
		assert.Equal(t, []event_bus.WeekChanged{{WeekId: "2025-W25"}}, *f.events)
	})

	t.Run("should be idempotent", func(t *testing.T) {
		// given
		f := setupStore(t)
		first, err := f.store.InitializeWeek(ctx, week25)
		require.NoError(t, err)
		f.clock.Advance(time.Hour)

		// when
		second, err := f.store.InitializeWeek(ctx, week25)

		// then
		require.NoError(t, err)
		assert.Equal(t, first, second)
		assert.Len(t, f.store.GetAll(), 1)
		assert.Len(t, *f.events, 1)
	})

	t.Run("should use the week of today when no id is given", func(t *testing.T) {
		// given
		f := setupStore(t)

		// when
		record, err := f.store.InitializeCurrentWeek(ctx)

		// then
		require.NoError(t, err)
		assert.Equal(t, "2025-W25", record.Id.String())
	})

	t.Run("should reject an invalid id", func(t *testing.T) {
		// given
		f := setupStore(t)

		// when
		_, err := f.store.InitializeWeek(ctx, week.Id{Year: 2025, Week: 53})

		// then
		assert.ErrorIs(t, err, week.ErrInvalidWeekId)
		assert.Empty(t, f.store.GetAll())
	})
}

func TestStore_Navigation(t *testing.T) {
	t.Run("should switch weeks without losing existing ones", func(t *testing.T) {
		// given
		f := setupStore(t)
		_, err := f.store.InitializeWeek(ctx, week25)
		require.NoError(t, err)
		_, err = f.store.UpdateDay(ctx, 0, workday("09:00", "12:00", "13:00", "17:00"))
		require.NoError(t, err)

		// when
		other, err := f.store.SetCurrentWeekId(ctx, week.Id{Year: 2025, Week: 30})
		require.NoError(t, err)
		back, err := f.store.SetCurrentWeekId(ctx, week25)
		require.NoError(t, err)

		// then
		assert.Zero(t, other.TotalHours)
		assert.Equal(t, 7.0, back.TotalHours)
		assert.Len(t, f.store.GetAll(), 2)
	})

	t.Run("should move across the year boundary", func(t *testing.T) {
		// given
		f := setupStore(t)
		_, err := f.store.SetCurrentWeekId(ctx, week.Id{Year: 2021, Week: 1})
		require.NoError(t, err)

		// when
		previous, err := f.store.PreviousWeek(ctx)
		require.NoError(t, err)

		// then
		assert.Equal(t, "2020-W53", previous.Id.String())
		assert.Equal(t, "2020-12-28", previous.Days[0].Date)

		next, err := f.store.NextWeek(ctx)
		require.NoError(t, err)
		assert.Equal(t, "2021-W01", next.Id.String())
	})

	t.Run("should start from today when there is no current week", func(t *testing.T) {
		// given
		f := setupStore(t)

		// when
		record, err := f.store.NextWeek(ctx)

		// then
		require.NoError(t, err)
		assert.Equal(t, week25, record.Id)
	})
}

func TestStore_UpdateDay(t *testing.T) {
	t.Run("should leave the record byte for byte unchanged for an out of range index", func(t *testing.T) {
		for _, index := range []int{-1, 7, 42} {
			// given
			f := setupStore(t)
			_, err := f.store.InitializeWeek(ctx, week25)
			require.NoError(t, err)
			_, err = f.store.UpdateDay(ctx, 2, workday("08:00", "12:00", "13:00", "16:00"))
			require.NoError(t, err)
			before, _ := f.store.CurrentWeek()
			beforeJSON, err := json.Marshal(before)
			require.NoError(t, err)
			saves := f.state.Saves()
			events := len(*f.events)

			// when
			_, err = f.store.UpdateDay(ctx, index, workday("09:00", "", "", "17:00"))

			// then
			assert.ErrorIs(t, err, ErrDayIndexOutOfRange)
			after, _ := f.store.CurrentWeek()
			afterJSON, err := json.Marshal(after)
			require.NoError(t, err)
			assert.Equal(t, string(beforeJSON), string(afterJSON))
			assert.Equal(t, saves, f.state.Saves())
			assert.Len(t, *f.events, events)
		}
	})

	t.Run("should fail without a current week", func(t *testing.T) {
		// given
		f := setupStore(t)

		// when
		_, err := f.store.UpdateDay(ctx, 0, workday("09:00", "", "", "17:00"))

		// then
		assert.ErrorIs(t, err, ErrNoCurrentWeek)
		assert.Zero(t, f.state.Saves())
	})

	t.Run("should reject a malformed time without changing the day", func(t *testing.T) {
		// given
		f := setupStore(t)
		_, err := f.store.InitializeWeek(ctx, week25)
		require.NoError(t, err)
		_, err = f.store.UpdateDay(ctx, 0, workday("09:00", "", "", "17:00"))
		require.NoError(t, err)

		// when
		record, err := f.store.UpdateDay(ctx, 0, DayUpdate{EndTime: str("5pm")})

		// then
		assert.ErrorIs(t, err, ErrInvalidTime)
		assert.Equal(t, "17:00", record.Days[0].EndTime)
		assert.Equal(t, 8.0, record.TotalHours)
	})

	t.Run("should merge partial updates with stored values", func(t *testing.T) {
		// given
		f := setupStore(t)
		_, err := f.store.InitializeWeek(ctx, week25)
		require.NoError(t, err)
		_, err = f.store.UpdateDay(ctx, 1, DayUpdate{StartTime: str("09:00")})
		require.NoError(t, err)

		// when
		record, err := f.store.UpdateDay(ctx, 1, DayUpdate{EndTime: str("12:30")})

		// then
		require.NoError(t, err)
		day := record.Days[1]
		assert.Equal(t, "09:00", day.StartTime)
		assert.Equal(t, "12:30", day.EndTime)
		assert.Equal(t, 3.5, day.CalculatedDuration)
		assert.True(t, day.IsWorked)
		assert.Equal(t, 3.5, record.TotalHours)
	})

	t.Run("should stamp the record and publish a change", func(t *testing.T) {
		// given
		f := setupStore(t)
		_, err := f.store.InitializeWeek(ctx, week25)
		require.NoError(t, err)
		later := f.clock.Advance(2 * time.Hour)

		// when
		record, err := f.store.UpdateDay(ctx, 4, workday("09:00", "", "", "11:00"))

		// then
		require.NoError(t, err)
		assert.Equal(t, later, record.UpdatedAt)
		assert.Len(t, *f.events, 2)
	})

	t.Run("should switch between direct duration and times", func(t *testing.T) {
		// given
		f := setupStore(t)
		_, err := f.store.InitializeWeek(ctx, week25)
		require.NoError(t, err)
		_, err = f.store.UpdateDay(ctx, 0, workday("09:00", "", "", "17:00"))
		require.NoError(t, err)

		// when
		direct, err := f.store.UpdateDay(ctx, 0, DayUpdate{DirectDuration: hours(5.75)})
		require.NoError(t, err)
		timed, err := f.store.UpdateDay(ctx, 0, DayUpdate{EndTime: str("18:00")})
		require.NoError(t, err)

		// then
		assert.Equal(t, 5.75, direct.Days[0].CalculatedDuration)
		assert.Equal(t, 5.75, direct.TotalHours)
		assert.Nil(t, timed.Days[0].DirectDuration)
		assert.Equal(t, 9.0, timed.Days[0].CalculatedDuration)
	})

	t.Run("should reject a direct duration off the quarter grid", func(t *testing.T) {
		// given
		f := setupStore(t)
		_, err := f.store.InitializeWeek(ctx, week25)
		require.NoError(t, err)

		// when
		record, err := f.store.UpdateDay(ctx, 0, DayUpdate{DirectDuration: hours(3.3)})

		// then
		assert.ErrorIs(t, err, ErrInvalidDuration)
		assert.Nil(t, record.Days[0].DirectDuration)
	})
}

func TestStore_ResetDay(t *testing.T) {
	// given
	f := setupStore(t)
	_, err := f.store.InitializeWeek(ctx, week25)
	require.NoError(t, err)
	_, err = f.store.UpdateDay(ctx, 3, workday("09:00", "12:00", "13:00", "17:00"))
	require.NoError(t, err)
	_, err = f.store.UpdateDay(ctx, 4, workday("09:00", "12:00", "13:00", "17:00"))
	require.NoError(t, err)

	// when
	record, err := f.store.ResetDay(ctx, 3)

	// then
	require.NoError(t, err)
	assert.Equal(t, WorkDay{Date: "2025-06-19"}, record.Days[3])
	assert.Equal(t, 7.0, record.TotalHours)
	assert.Equal(t, 7.0, record.NormalHours)

	_, err = f.store.ResetDay(ctx, 7)
	assert.ErrorIs(t, err, ErrDayIndexOutOfRange)
}

func TestStore_ResetWeek(t *testing.T) {
	t.Run("should recreate the current week empty with the same dates", func(t *testing.T) {
		// given
		f := setupStore(t)
		other := week.Id{Year: 2025, Week: 24}
		_, err := f.store.InitializeWeek(ctx, other)
		require.NoError(t, err)
		_, err = f.store.UpdateDay(ctx, 0, workday("09:00", "", "", "12:00"))
		require.NoError(t, err)
		original, err := f.store.InitializeWeek(ctx, week25)
		require.NoError(t, err)
		for i := 0; i < 6; i++ {
			_, err = f.store.UpdateDay(ctx, i, workday("08:00", "", "", "18:00"))
			require.NoError(t, err)
		}

		// when
		_, err = f.store.ResetWeek(ctx)
		require.NoError(t, err)
		record, err := f.store.InitializeWeek(ctx, week25)
		require.NoError(t, err)

		// then
		assert.Zero(t, record.TotalHours)
		assert.Zero(t, record.NormalHours)
		assert.Zero(t, record.OvertimeHours25)
		assert.Zero(t, record.OvertimeHours50)
		for i, day := range record.Days {
			assert.Equal(t, original.Days[i].Date, day.Date)
			assert.False(t, day.IsWorked)
		}
		untouched, ok := f.store.GetById(other)
		require.True(t, ok)
		assert.Equal(t, 3.0, untouched.TotalHours)
		last := (*f.events)[len(*f.events)-1]
		assert.Equal(t, event_bus.WeekChanged{WeekId: "2025-W25", Reset: true}, last)
	})

	t.Run("should fail without a current week", func(t *testing.T) {
		f := setupStore(t)

		_, err := f.store.ResetWeek(ctx)

		assert.ErrorIs(t, err, ErrNoCurrentWeek)
	})
}

func TestStore_FullWeekScenario(t *testing.T) {
	// given
	f := setupStore(t)
	_, err := f.store.InitializeWeek(ctx, week25)
	require.NoError(t, err)

	// Monday
	record, err := f.store.UpdateDay(ctx, 0, workday("09:00", "12:00", "13:00", "17:00"))
	require.NoError(t, err)
	assert.Equal(t, 7.0, record.Days[0].CalculatedDuration)
	assert.Equal(t, 7.0, record.TotalHours)
	assert.Equal(t, 7.0, record.NormalHours)
	assert.Zero(t, record.OvertimeHours25)
	assert.Zero(t, record.OvertimeHours50)

	// Tuesday to Friday
	for i := 1; i <= 4; i++ {
		record, err = f.store.UpdateDay(ctx, i, workday("09:00", "12:00", "13:00", "17:00"))
		require.NoError(t, err)
	}
	assert.Equal(t, 35.0, record.TotalHours)
	assert.Equal(t, 35.0, record.NormalHours)
	assert.Zero(t, record.OvertimeHours25)

	// Saturday
	record, err = f.store.UpdateDay(ctx, 5, workday("09:00", "", "", "13:00"))
	require.NoError(t, err)
	assert.Equal(t, 39.0, record.TotalHours)
	assert.Equal(t, 35.0, record.NormalHours)
	assert.Equal(t, 4.0, record.OvertimeHours25)
	assert.Zero(t, record.OvertimeHours50)

	// Sunday
	record, err = f.store.UpdateDay(ctx, 6, workday("09:00", "", "", "19:00"))
	require.NoError(t, err)
	assert.Equal(t, 49.0, record.TotalHours)
	assert.Equal(t, 35.0, record.NormalHours)
	assert.Equal(t, 8.0, record.OvertimeHours25)
	assert.Equal(t, 6.0, record.OvertimeHours50)
	assert.True(t, f.store.Thresholds().IsOverLegalLimit(record.TotalHours))
}

func TestStore_Persistence(t *testing.T) {
	t.Run("should restore the collection in a new store", func(t *testing.T) {
		// given
		f := setupStore(t)
		_, err := f.store.InitializeWeek(ctx, week25)
		require.NoError(t, err)
		expected, err := f.store.UpdateDay(ctx, 2, DayUpdate{DirectDuration: hours(7.5)})
		require.NoError(t, err)
		restored, err := NewStore(f.state, nil, f.clock, DefaultThresholds())
		require.NoError(t, err)

		// when
		err = restored.Load(ctx)

		// then
		require.NoError(t, err)
		assert.Equal(t, week25, restored.CurrentWeekId())
		record, ok := restored.CurrentWeek()
		require.True(t, ok)
		assert.Equal(t, expected.Days, record.Days)
		assert.True(t, expected.UpdatedAt.Equal(record.UpdatedAt))
	})

	t.Run("should keep mutating in memory when saving fails", func(t *testing.T) {
		// given
		f := setupStore(t)
		_, err := f.store.InitializeWeek(ctx, week25)
		require.NoError(t, err)
		f.state.SetSaveError(errors.New("quota exceeded"))

		// when
		record, err := f.store.UpdateDay(ctx, 0, workday("09:00", "", "", "17:00"))

		// then
		require.NoError(t, err)
		assert.Equal(t, 8.0, record.TotalHours)
		assert.True(t, f.store.Degraded())

		f.state.SetSaveError(nil)
		_, err = f.store.UpdateDay(ctx, 1, workday("09:00", "", "", "17:00"))
		require.NoError(t, err)
		assert.False(t, f.store.Degraded())
	})

	t.Run("should leave the stored collection untouched when loading fails", func(t *testing.T) {
		// given
		f := setupStore(t)
		_, err := f.store.InitializeWeek(ctx, week25)
		require.NoError(t, err)
		_, err = f.store.UpdateDay(ctx, 0, workday("09:00", "12:00", "13:00", "17:00"))
		require.NoError(t, err)
		saves := f.state.Saves()
		f.state.SetLoadError(errors.New("database is locked"))
		restarted, err := NewStore(f.state, nil, f.clock, DefaultThresholds())
		require.NoError(t, err)

		// when
		err = restarted.Load(ctx)
		_, initErr := restarted.InitializeCurrentWeek(ctx)
		_, updateErr := restarted.UpdateDay(ctx, 1, workday("08:00", "", "", "10:00"))

		// then
		assert.Error(t, err)
		require.NoError(t, initErr)
		require.NoError(t, updateErr)
		assert.True(t, restarted.Degraded())
		assert.Equal(t, saves, f.state.Saves())

		f.state.SetLoadError(nil)
		reloaded, err := NewStore(f.state, nil, f.clock, DefaultThresholds())
		require.NoError(t, err)
		require.NoError(t, reloaded.Load(ctx))
		record, ok := reloaded.GetById(week25)
		require.True(t, ok)
		assert.Equal(t, 7.0, record.Days[0].CalculatedDuration)
		assert.Equal(t, 0.0, record.Days[1].CalculatedDuration)
	})

	t.Run("should resume saving once a later load succeeds", func(t *testing.T) {
		// given
		f := setupStore(t)
		f.state.SetLoadError(errors.New("database is locked"))
		require.Error(t, f.store.Load(ctx))
		f.state.SetLoadError(nil)

		// when
		require.NoError(t, f.store.Load(ctx))
		_, err := f.store.InitializeWeek(ctx, week25)

		// then
		require.NoError(t, err)
		assert.False(t, f.store.Degraded())
		assert.Equal(t, 1, f.state.Saves())
	})

	t.Run("should start fresh once an unreadable collection is set aside", func(t *testing.T) {
		// given
		blobs := storage.NewMemoryBlobStore()
		require.NoError(t, blobs.Put(ctx, StorageKey, []byte("{not json")))
		store, err := NewStore(NewStateRepository(blobs), nil, utils.NewMockClock(today), DefaultThresholds())
		require.NoError(t, err)

		// when
		err = store.Load(ctx)
		_, initErr := store.InitializeWeek(ctx, week25)

		// then
		assert.ErrorIs(t, err, ErrQuarantined)
		require.NoError(t, initErr)
		assert.False(t, store.Degraded())
		kept, getErr := blobs.Get(ctx, QuarantineKey)
		require.NoError(t, getErr)
		assert.Equal(t, "{not json", string(kept))
		saved, getErr := blobs.Get(ctx, StorageKey)
		require.NoError(t, getErr)
		assert.Contains(t, string(saved), "2025-W25")
	})
}

func TestStore_Merge(t *testing.T) {
	t.Run("should adopt records and recompute derived fields", func(t *testing.T) {
		// given
		f := setupStore(t)
		_, err := f.store.InitializeWeek(ctx, week25)
		require.NoError(t, err)
		events := len(*f.events)
		incoming := NewWeekRecord(week.Id{Year: 2025, Week: 20}, today)
		incoming.Days[0].StartTime = "08:00"
		incoming.Days[0].EndTime = "18:00"
		incoming.TotalHours = 999

		// when
		err = f.store.Merge(ctx, []WeekRecord{incoming, {Id: week.Id{Year: 2025, Week: 60}}})

		// then
		require.NoError(t, err)
		merged, ok := f.store.GetById(incoming.Id)
		require.True(t, ok)
		assert.Equal(t, 10.0, merged.Days[0].CalculatedDuration)
		assert.True(t, merged.Days[0].IsWorked)
		assert.Equal(t, 10.0, merged.TotalHours)
		assert.Equal(t, week25, f.store.CurrentWeekId())
		assert.Len(t, f.store.GetAll(), 2)
		assert.Len(t, *f.events, events)
	})

	t.Run("should fill missing dates and keep unparsable durations", func(t *testing.T) {
		// given
		f := setupStore(t)
		incoming := WeekRecord{Id: week25}
		incoming.Days[1] = WorkDay{StartTime: "early", EndTime: "late", CalculatedDuration: 4}

		// when
		require.NoError(t, f.store.Merge(ctx, []WeekRecord{incoming}))

		// then
		merged, ok := f.store.GetById(week25)
		require.True(t, ok)
		assert.Equal(t, "2025-06-16", merged.Days[0].Date)
		assert.Equal(t, 4.0, merged.Days[1].CalculatedDuration)
		assert.True(t, merged.Days[1].IsWorked)
		assert.Equal(t, 4.0, merged.TotalHours)
	})

	t.Run("should replace day dates that belong to another week", func(t *testing.T) {
		// given
		f := setupStore(t)
		incoming := NewWeekRecord(week.Id{Year: 2025, Week: 20}, today)
		incoming.Days[0].Date = "1999-01-01"
		incoming.Days[6].Date = "2025-06-22"

		// when
		require.NoError(t, f.store.Merge(ctx, []WeekRecord{incoming}))

		// then
		merged, ok := f.store.GetById(incoming.Id)
		require.True(t, ok)
		assert.Equal(t, "2025-05-12", merged.Days[0].Date)
		assert.Equal(t, "2025-05-18", merged.Days[6].Date)
	})

	t.Run("should list records in week order", func(t *testing.T) {
		// given
		f := setupStore(t)
		ids := []week.Id{{Year: 2025, Week: 3}, {Year: 2024, Week: 52}, {Year: 2025, Week: 1}}
		var records []WeekRecord
		for _, id := range ids {
			records = append(records, NewWeekRecord(id, today))
		}

		// when
		require.NoError(t, f.store.Merge(ctx, records))

		// then
		all := f.store.GetAll()
		require.Len(t, all, 3)
		assert.Equal(t, "2024-W52", all[0].Id.String())
		assert.Equal(t, "2025-W01", all[1].Id.String())
		assert.Equal(t, "2025-W03", all[2].Id.String())
	})
}
