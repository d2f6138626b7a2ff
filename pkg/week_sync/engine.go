package week_sync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/baptistelechat/overti-me/internal/event_bus"
	"github.com/baptistelechat/overti-me/internal/utils"
	"github.com/baptistelechat/overti-me/pkg/timesheet"
	"github.com/baptistelechat/overti-me/pkg/user"
	"github.com/baptistelechat/overti-me/pkg/week"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

var (
	ErrSync           = errors.New("synchronization failed")
	ErrNoSession      = errors.New("no active session")
	ErrSyncInProgress = errors.New("synchronization already in progress")
	ErrSessionChanged = errors.New("session changed during synchronization")
)

type Config struct {
	Interval        time.Duration
	Policy          MergePolicy
	PushConcurrency int
}

func DefaultConfig() Config {
	return Config{Interval: 5 * time.Minute, Policy: PolicySession, PushConcurrency: 4}
}

// StatusSnapshot is the externally visible sync state.
type StatusSnapshot struct {
	Metadata
	IsSyncing     bool
	AutoSyncOn    bool
	MergePolicy   MergePolicy
	SyncInterval  time.Duration
	PendingPushes int
}

// Engine keeps the local week collection and the remote store converged while a session
// is active. Local data always stays authoritative between cycles: remote failures only
// end up in the status.
type Engine struct {
	weeks    timesheet.WeekRepository
	remote   RemoteStore
	meta     MetadataRepository
	clock    utils.Clock
	config   Config
	autoSync *AutoSync
	locks    *keyedMutex

	mu        sync.Mutex
	metadata  Metadata
	isSyncing bool
	pending   int

	pushes      sync.WaitGroup
	unsubscribe func()
}

func NewEngine(
	weeks timesheet.WeekRepository,
	remote RemoteStore,
	meta MetadataRepository,
	eventBus *event_bus.EventBus,
	clock utils.Clock,
	config Config,
) *Engine {
	if config.PushConcurrency <= 0 {
		config.PushConcurrency = 1
	}
	if config.Policy == "" {
		config.Policy = PolicySession
	}
	e := &Engine{
		weeks:    weeks,
		remote:   remote,
		meta:     meta,
		clock:    clock,
		config:   config,
		autoSync: NewAutoSync(config.Interval),
		locks:    newKeyedMutex(),
		metadata: Metadata{SyncStatus: StatusNotSynced},
	}
	if eventBus != nil {
		e.unsubscribe = event_bus.SubscribeTyped(eventBus, event_bus.WeekChangedEvent, e.onWeekChanged)
	}
	return e
}

// Load restores persisted metadata. A sync interrupted by a shutdown is reported as not synced.
func (e *Engine) Load(ctx context.Context) error {
	metadata, err := e.meta.Load(ctx)

	e.mu.Lock()
	defer e.mu.Unlock()
	if err != nil {
		log.Errorf("failed to load sync metadata, starting signed out: %v", err)
		e.metadata = Metadata{SyncStatus: StatusNotSynced}
		return err
	}
	if metadata.SyncStatus == StatusSyncing {
		metadata.SyncStatus = StatusNotSynced
	}
	e.metadata = metadata
	return nil
}

// HasSession reports whether a session user is known, persisted or live.
func (e *Engine) HasSession() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.metadata.User != nil
}

func (e *Engine) Status() StatusSnapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return StatusSnapshot{
		Metadata:      e.metadata.clone(),
		IsSyncing:     e.isSyncing,
		AutoSyncOn:    e.autoSync.Running(),
		MergePolicy:   e.config.Policy,
		SyncInterval:  e.config.Interval,
		PendingPushes: e.pending,
	}
}

// StartSession signs u in, runs a first synchronization and starts the periodic one. The
// last sync instant is kept when the same account signs in again. The returned error
// only reports the outcome of the first synchronization.
func (e *Engine) StartSession(ctx context.Context, u user.User) error {
	e.mu.Lock()
	if e.metadata.User == nil || e.metadata.User.Uid != u.Uid {
		e.metadata.LastSyncedAt = nil
	}
	e.metadata.User = &SessionUser{Id: u.Id, Uid: u.Uid, Email: u.Email}
	e.metadata.SyncStatus = StatusNotSynced
	e.metadata.SyncError = ""
	e.saveLocked(ctx)
	e.mu.Unlock()

	log.Infof("Session started for %s", u.Uid)
	return e.beginSession(ctx)
}

// ResumeSession restarts synchronization for the persisted session user.
func (e *Engine) ResumeSession(ctx context.Context) error {
	e.mu.Lock()
	if e.metadata.User == nil {
		e.mu.Unlock()
		return ErrNoSession
	}
	uid := e.metadata.User.Uid
	e.mu.Unlock()

	log.Infof("Resuming session for %s", uid)
	return e.beginSession(ctx)
}

func (e *Engine) beginSession(ctx context.Context) error {
	err := e.Sync(ctx)
	e.autoSync.Start(e.periodicSync)
	return err
}

// EndSession stops the periodic sync before returning and forgets the session user.
// Results of calls still in flight are discarded.
func (e *Engine) EndSession(ctx context.Context) {
	e.autoSync.Stop()

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.metadata.User != nil {
		log.Infof("Session ended for %s", e.metadata.User.Uid)
	}
	e.metadata = Metadata{SyncStatus: StatusNotSynced}
	e.saveLocked(ctx)
}

// Close stops background work and waits for in-flight pushes.
func (e *Engine) Close() {
	e.autoSync.Stop()
	if e.unsubscribe != nil {
		e.unsubscribe()
	}
	e.Wait()
}

// Wait blocks until pushes triggered by week changes have completed.
func (e *Engine) Wait() {
	e.pushes.Wait()
}

func (e *Engine) periodicSync(ctx context.Context) {
	if err := e.Sync(ctx); err != nil && !errors.Is(err, ErrSyncInProgress) {
		log.Errorf("periodic sync failed: %v", err)
	}
}

// Sync pulls the remote weeks of the session user, merges them into the local collection
// and pushes every resulting record back.
func (e *Engine) Sync(ctx context.Context) error {
	e.mu.Lock()
	if e.isSyncing {
		e.mu.Unlock()
		log.Debug("sync skipped, another one is running")
		return ErrSyncInProgress
	}
	if e.metadata.User == nil {
		e.mu.Unlock()
		return ErrNoSession
	}
	session := *e.metadata.User
	var lastSyncedAt *time.Time
	if e.metadata.LastSyncedAt != nil {
		t := *e.metadata.LastSyncedAt
		lastSyncedAt = &t
	}
	e.isSyncing = true
	e.metadata.SyncStatus = StatusSyncing
	e.metadata.SyncError = ""
	e.saveLocked(ctx)
	e.mu.Unlock()

	log.Debugf("Sync started for %s", session.Uid)
	err := e.reconcile(ctx, session, lastSyncedAt)

	e.mu.Lock()
	defer e.mu.Unlock()
	e.isSyncing = false
	if !e.isSessionLocked(session.Uid) {
		log.Infof("discarding sync result, session %s is over", session.Uid)
		return ErrSessionChanged
	}
	if err != nil {
		log.Errorf("sync failed: %v", err)
		e.metadata.SyncStatus = StatusError
		e.metadata.SyncError = err.Error()
		e.saveLocked(ctx)
		return err
	}
	now := e.clock.Now()
	e.metadata.SyncStatus = StatusSynced
	e.metadata.LastSyncedAt = &now
	e.saveLocked(ctx)
	log.Debugf("Sync finished for %s", session.Uid)
	return nil
}

func (e *Engine) reconcile(ctx context.Context, session SessionUser, lastSyncedAt *time.Time) error {
	remote, err := e.remote.ListWeeks(ctx, session.Id)
	if err != nil {
		return fmt.Errorf("%w: pull: %w", ErrSync, err)
	}

	result := MergeWeeks(e.weeks.GetAll(), remote, lastSyncedAt, e.config.Policy)
	log.Debugf("Merged %d weeks, %d adopted from remote", len(result.Merged), len(result.Adopted))

	if !e.isSession(session.Uid) {
		return ErrSessionChanged
	}
	if len(result.Adopted) > 0 {
		if err := e.weeks.Merge(ctx, result.Adopted); err != nil {
			return fmt.Errorf("%w: merge: %w", ErrSync, err)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.config.PushConcurrency)
	for _, record := range result.Merged {
		id := record.Id
		g.Go(func() error {
			return e.push(gctx, session, id)
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("%w: push: %w", ErrSync, err)
	}
	return nil
}

// PushWeek upserts the current local copy of id for the session user.
func (e *Engine) PushWeek(ctx context.Context, id week.Id) error {
	e.mu.Lock()
	if e.metadata.User == nil {
		e.mu.Unlock()
		return ErrNoSession
	}
	session := *e.metadata.User
	e.mu.Unlock()

	if err := e.push(ctx, session, id); err != nil {
		if errors.Is(err, ErrSessionChanged) {
			return err
		}
		err = fmt.Errorf("%w: push %s: %w", ErrSync, id, err)
		e.mu.Lock()
		if e.isSessionLocked(session.Uid) {
			e.metadata.SyncStatus = StatusError
			e.metadata.SyncError = err.Error()
			e.saveLocked(ctx)
		}
		e.mu.Unlock()
		return err
	}
	return nil
}

// push reads the record once it holds the week lock, so the last push to complete always
// carries the latest local state.
func (e *Engine) push(ctx context.Context, session SessionUser, id week.Id) error {
	unlock := e.locks.Lock(id.String())
	defer unlock()

	if !e.isSession(session.Uid) {
		return ErrSessionChanged
	}
	record, ok := e.weeks.GetById(id)
	if !ok {
		log.Debugf("week %s vanished before push", id)
		return nil
	}
	data, err := json.Marshal(record)
	if err != nil {
		return err
	}

	_, err = e.remote.FindWeek(ctx, session.Id, id)
	switch {
	case errors.Is(err, ErrRemoteWeekNotFound):
		err = e.remote.InsertWeek(ctx, session.Id, id, data)
	case err == nil:
		err = e.remote.UpdateWeek(ctx, session.Id, id, data)
	}
	if err != nil {
		return err
	}
	log.Tracef("Pushed week %s", id)
	return nil
}

// onWeekChanged pushes the changed week in the background. Failures land in the status.
func (e *Engine) onWeekChanged(event event_bus.EventT[event_bus.WeekChanged]) error {
	if !e.HasSession() {
		return nil
	}
	id, err := week.Parse(event.Data.WeekId)
	if err != nil {
		return err
	}

	ctx := context.WithoutCancel(event.Context())
	e.mu.Lock()
	e.pending++
	e.mu.Unlock()
	e.pushes.Add(1)
	go func() {
		defer e.pushes.Done()
		defer func() {
			e.mu.Lock()
			e.pending--
			e.mu.Unlock()
		}()
		if err := e.PushWeek(ctx, id); err != nil && !errors.Is(err, ErrNoSession) && !errors.Is(err, ErrSessionChanged) {
			log.Errorf("background push of week %s failed: %v", id, err)
		}
	}()
	return nil
}

func (e *Engine) isSession(uid string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.isSessionLocked(uid)
}

func (e *Engine) isSessionLocked(uid string) bool {
	return e.metadata.User != nil && e.metadata.User.Uid == uid
}

func (e *Engine) saveLocked(ctx context.Context) {
	if err := e.meta.Save(ctx, e.metadata); err != nil {
		log.Errorf("failed to persist sync metadata: %v", err)
	}
}
