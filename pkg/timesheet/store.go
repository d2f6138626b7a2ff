package timesheet

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/baptistelechat/overti-me/internal/event_bus"
	"github.com/baptistelechat/overti-me/internal/utils"
	"github.com/baptistelechat/overti-me/pkg/week"
	log "github.com/sirupsen/logrus"
)

var ErrDayIndexOutOfRange = errors.New("day index out of range")
var ErrNoCurrentWeek = errors.New("no current week")

// WeekRepository is the view of the store used by synchronization.
type WeekRepository interface {
	GetAll() []WeekRecord
	GetById(id week.Id) (WeekRecord, bool)
	// Merge adopts the given records, replacing local ones with the same id.
	Merge(ctx context.Context, records []WeekRecord) error
}

// Store owns the week collection. Mutations are serialized, recompute durations and
// bands, persist the collection and publish WeekChangedEvent once the lock is released.
type Store struct {
	mu         sync.RWMutex
	collection Collection
	thresholds Thresholds
	state      StateRepository
	eventBus   *event_bus.EventBus
	clock      utils.Clock
	degraded   bool
	// writesBlocked keeps an unreadable stored collection from being overwritten.
	writesBlocked bool
}

func NewStore(state StateRepository, eventBus *event_bus.EventBus, clock utils.Clock, thresholds Thresholds) (*Store, error) {
	if err := thresholds.Validate(); err != nil {
		return nil, err
	}
	return &Store{
		collection: NewCollection(),
		thresholds: thresholds,
		state:      state,
		eventBus:   eventBus,
		clock:      clock,
	}, nil
}

// Load replaces the in-memory collection with the persisted one. On failure the store
// starts empty in degraded mode and stops saving until a later Load succeeds, unless the
// unreadable data was quarantined first.
func (s *Store) Load(ctx context.Context) error {
	collection, err := s.state.Load(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.collection = NewCollection()
		s.degraded = true
		s.writesBlocked = !errors.Is(err, ErrQuarantined)
		if s.writesBlocked {
			log.Errorf("failed to load week collection, changes will not be saved: %v", err)
		} else {
			log.Errorf("starting with an empty week collection: %v", err)
		}
		return err
	}
	s.collection = collection
	s.degraded = false
	s.writesBlocked = false
	log.Debugf("Loaded %d weeks, current week %s", len(collection.Weeks), collection.CurrentWeekId)
	return nil
}

// Degraded reports whether local storage could not be read or the last write failed,
// meaning in-memory changes may not survive a restart.
func (s *Store) Degraded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.degraded
}

func (s *Store) Thresholds() Thresholds {
	return s.thresholds
}

func (s *Store) CurrentWeekId() week.Id {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collection.CurrentWeekId
}

func (s *Store) CurrentWeek() (WeekRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.collection.Weeks[s.collection.CurrentWeekId]
	return record, ok
}

func (s *Store) GetById(id week.Id) (WeekRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.collection.Weeks[id]
	return record, ok
}

// GetAll returns every record ordered by week.
func (s *Store) GetAll() []WeekRecord {
	s.mu.RLock()
	records := make([]WeekRecord, 0, len(s.collection.Weeks))
	for _, record := range s.collection.Weeks {
		records = append(records, record)
	}
	s.mu.RUnlock()

	sort.Slice(records, func(i, j int) bool {
		return records[i].Id.Before(records[j].Id)
	})
	return records
}

// InitializeWeek makes id the current week, creating an empty record for it when absent.
// A zero id stands for the week containing today.
func (s *Store) InitializeWeek(ctx context.Context, id week.Id) (WeekRecord, error) {
	if id.IsZero() {
		id = week.IdOf(s.clock.Now())
	}
	if !id.Valid() {
		return WeekRecord{}, fmt.Errorf("%w: %v", week.ErrInvalidWeekId, id)
	}

	s.mu.Lock()
	record, exists := s.collection.Weeks[id]
	if exists && s.collection.CurrentWeekId == id {
		s.mu.Unlock()
		return record, nil
	}
	if !exists {
		log.Debugf("Creating week %s", id)
		record = NewWeekRecord(id, s.clock.Now())
		s.collection.Weeks[id] = record
	}
	s.collection.CurrentWeekId = id
	s.persistLocked(ctx)
	s.mu.Unlock()

	if !exists {
		s.publish(ctx, id, false)
	}
	return record, nil
}

func (s *Store) InitializeCurrentWeek(ctx context.Context) (WeekRecord, error) {
	return s.InitializeWeek(ctx, week.Id{})
}

// SetCurrentWeekId navigates to id, which always ensures the week exists.
func (s *Store) SetCurrentWeekId(ctx context.Context, id week.Id) (WeekRecord, error) {
	if id.IsZero() {
		return WeekRecord{}, fmt.Errorf("%w: empty id", week.ErrInvalidWeekId)
	}
	return s.InitializeWeek(ctx, id)
}

func (s *Store) PreviousWeek(ctx context.Context) (WeekRecord, error) {
	current := s.CurrentWeekId()
	if current.IsZero() {
		return s.InitializeCurrentWeek(ctx)
	}
	return s.InitializeWeek(ctx, current.Previous())
}

func (s *Store) NextWeek(ctx context.Context) (WeekRecord, error) {
	current := s.CurrentWeekId()
	if current.IsZero() {
		return s.InitializeCurrentWeek(ctx)
	}
	return s.InitializeWeek(ctx, current.Next())
}

// UpdateDay merges update into day dayIndex (0 is Monday) of the current week. Invalid
// input leaves the record untouched.
func (s *Store) UpdateDay(ctx context.Context, dayIndex int, update DayUpdate) (WeekRecord, error) {
	return s.mutateDay(ctx, dayIndex, func(day WorkDay) (WorkDay, error) {
		return update.applyTo(day)
	})
}

// ResetDay clears every input of a day, keeping its date.
func (s *Store) ResetDay(ctx context.Context, dayIndex int) (WeekRecord, error) {
	return s.mutateDay(ctx, dayIndex, func(day WorkDay) (WorkDay, error) {
		return WorkDay{Date: day.Date}, nil
	})
}

func (s *Store) mutateDay(ctx context.Context, dayIndex int, mutate func(WorkDay) (WorkDay, error)) (WeekRecord, error) {
	s.mu.Lock()
	id := s.collection.CurrentWeekId
	record, ok := s.collection.Weeks[id]
	if !ok {
		s.mu.Unlock()
		log.Warnf("ignoring day change: %v", ErrNoCurrentWeek)
		return WeekRecord{}, ErrNoCurrentWeek
	}
	if dayIndex < 0 || dayIndex >= DaysPerWeek {
		s.mu.Unlock()
		log.Warnf("ignoring change of day %d in week %s: %v", dayIndex, id, ErrDayIndexOutOfRange)
		return record, fmt.Errorf("%w: %d", ErrDayIndexOutOfRange, dayIndex)
	}

	day, err := mutate(record.Days[dayIndex])
	if err == nil {
		day, err = withDuration(day)
	}
	if err != nil {
		s.mu.Unlock()
		log.Warnf("ignoring change of day %d in week %s: %v", dayIndex, id, err)
		return record, err
	}

	updated := record
	updated.Days[dayIndex] = day
	updated, err = s.aggregate(updated)
	if err != nil {
		s.mu.Unlock()
		log.Errorf("failed to aggregate week %s: %v", id, err)
		return record, err
	}
	updated.UpdatedAt = s.clock.Now()
	s.collection.Weeks[id] = updated
	s.persistLocked(ctx)
	s.mu.Unlock()

	s.publish(ctx, id, false)
	return updated, nil
}

// ResetWeek deletes the current week and recreates it empty. Other weeks are untouched.
func (s *Store) ResetWeek(ctx context.Context) (WeekRecord, error) {
	s.mu.Lock()
	id := s.collection.CurrentWeekId
	if _, ok := s.collection.Weeks[id]; !ok {
		s.mu.Unlock()
		log.Warnf("ignoring week reset: %v", ErrNoCurrentWeek)
		return WeekRecord{}, ErrNoCurrentWeek
	}
	delete(s.collection.Weeks, id)
	record := NewWeekRecord(id, s.clock.Now())
	s.collection.Weeks[id] = record
	s.persistLocked(ctx)
	s.mu.Unlock()

	log.Debugf("Week %s reset", id)
	s.publish(ctx, id, true)
	return record, nil
}

// Merge adopts records coming from synchronization. Derived fields are recomputed with
// the local thresholds; the current week is left as is and no change events are published.
func (s *Store) Merge(ctx context.Context, records []WeekRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	adopted := 0
	for _, record := range records {
		if !record.Id.Valid() {
			log.Warnf("skipping merged record with invalid id %v", record.Id)
			continue
		}
		normalized, err := s.normalize(record)
		if err != nil {
			log.Warnf("skipping merged record %s: %v", record.Id, err)
			continue
		}
		s.collection.Weeks[record.Id] = normalized
		adopted++
	}
	log.Debugf("Merged %d of %d records", adopted, len(records))
	s.persistLocked(ctx)
	return nil
}

// normalize restores the invariants of a record built elsewhere: the dates of its week on
// every day and derived fields recomputed. A day whose inputs cannot be parsed keeps its
// stored duration.
func (s *Store) normalize(record WeekRecord) (WeekRecord, error) {
	dates := record.Id.Dates()
	for i, day := range record.Days {
		if date := dates[i].Format(week.DateLayout); day.Date != date {
			if day.Date != "" {
				log.Warnf("day %d of week %s dated %s, using %s", i, record.Id, day.Date, date)
			}
			day.Date = date
		}
		computed, err := withDuration(day)
		if err != nil {
			log.Warnf("keeping stored duration of %s in week %s: %v", day.Date, record.Id, err)
			day.IsWorked = day.CalculatedDuration > 0
			computed = day
		}
		record.Days[i] = computed
	}
	return s.aggregate(record)
}

func withDuration(day WorkDay) (WorkDay, error) {
	duration, err := CalculateDuration(day)
	if err != nil {
		return day, err
	}
	day.CalculatedDuration = duration
	day.IsWorked = duration > 0
	return day, nil
}

func (s *Store) aggregate(record WeekRecord) (WeekRecord, error) {
	total := 0.0
	for _, day := range record.Days {
		if day.IsWorked {
			total += day.CalculatedDuration
		}
	}
	total = roundHours(total)
	bands, err := Aggregate(total, s.thresholds)
	if err != nil {
		return record, err
	}
	record.TotalHours = total
	record.NormalHours = bands.Normal
	record.OvertimeHours25 = bands.Overtime25
	record.OvertimeHours50 = bands.Overtime50
	return record, nil
}

// persistLocked saves the collection. Failures are logged and switch the store to
// degraded mode; the in-memory state stays authoritative.
func (s *Store) persistLocked(ctx context.Context) {
	if s.writesBlocked {
		log.Debug("not saving week collection, the stored one could not be loaded")
		s.degraded = true
		return
	}
	if err := s.state.Save(ctx, s.collection); err != nil {
		if !s.degraded {
			log.Errorf("failed to persist week collection, changes will not survive a restart: %v", err)
		}
		s.degraded = true
		return
	}
	if s.degraded {
		log.Info("week collection persisted again")
	}
	s.degraded = false
}

func (s *Store) publish(ctx context.Context, id week.Id, reset bool) {
	if s.eventBus == nil {
		return
	}
	event := event_bus.NewEvent(ctx, event_bus.WeekChangedEvent, event_bus.WeekChanged{WeekId: id.String(), Reset: reset})
	if err := s.eventBus.Publish(event); err != nil {
		log.Warnf("week %s change not fully dispatched: %v", id, err)
	}
}
