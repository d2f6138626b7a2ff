package week_sync

import (
	"context"
	"sort"
	"sync"

	"github.com/baptistelechat/overti-me/internal/utils"
	"github.com/baptistelechat/overti-me/pkg/week"
)

type remoteKey struct {
	ownerId int
	weekId  week.Id
}

// RemoteStoreStub keeps rows in memory and stamps them with the given clock, like the
// database does with now().
type RemoteStoreStub struct {
	mu      sync.Mutex
	clock   utils.Clock
	rows    map[remoteKey]RemoteWeek
	err     error
	inserts int
	updates int
	// onWrite runs before a row is written, outside the lock.
	onWrite func(weekId week.Id)
}

func NewRemoteStoreStub(clock utils.Clock) *RemoteStoreStub {
	return &RemoteStoreStub{clock: clock, rows: make(map[remoteKey]RemoteWeek)}
}

func (s *RemoteStoreStub) ListWeeks(ctx context.Context, ownerId int) ([]RemoteWeek, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	weeks := make([]RemoteWeek, 0, len(s.rows))
	for key, row := range s.rows {
		if key.ownerId == ownerId {
			weeks = append(weeks, row)
		}
	}
	sort.Slice(weeks, func(i, j int) bool { return weeks[i].WeekId.Before(weeks[j].WeekId) })
	return weeks, nil
}

func (s *RemoteStoreStub) FindWeek(ctx context.Context, ownerId int, weekId week.Id) (RemoteWeek, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return RemoteWeek{}, s.err
	}
	row, ok := s.rows[remoteKey{ownerId, weekId}]
	if !ok {
		return RemoteWeek{}, ErrRemoteWeekNotFound
	}
	return row, nil
}

func (s *RemoteStoreStub) InsertWeek(ctx context.Context, ownerId int, weekId week.Id, data []byte) error {
	s.beforeWrite(weekId)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	now := s.clock.Now()
	s.rows[remoteKey{ownerId, weekId}] = RemoteWeek{WeekId: weekId, Data: append([]byte(nil), data...), CreatedAt: now, UpdatedAt: now}
	s.inserts++
	return nil
}

func (s *RemoteStoreStub) UpdateWeek(ctx context.Context, ownerId int, weekId week.Id, data []byte) error {
	s.beforeWrite(weekId)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	key := remoteKey{ownerId, weekId}
	row, ok := s.rows[key]
	if !ok {
		return ErrRemoteWeekNotFound
	}
	row.Data = append([]byte(nil), data...)
	row.UpdatedAt = s.clock.Now()
	s.rows[key] = row
	s.updates++
	return nil
}

func (s *RemoteStoreStub) beforeWrite(weekId week.Id) {
	s.mu.Lock()
	hook := s.onWrite
	s.mu.Unlock()
	if hook != nil {
		hook(weekId)
	}
}

// Put stores a row as another device would have written it.
func (s *RemoteStoreStub) Put(ownerId int, row RemoteWeek) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[remoteKey{ownerId, row.WeekId}] = row
}

func (s *RemoteStoreStub) Row(ownerId int, weekId week.Id) (RemoteWeek, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rows[remoteKey{ownerId, weekId}]
	return row, ok
}

func (s *RemoteStoreStub) SetError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

func (s *RemoteStoreStub) SetOnWrite(hook func(weekId week.Id)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onWrite = hook
}

func (s *RemoteStoreStub) Writes() (inserts int, updates int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inserts, s.updates
}
