package app

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/baptistelechat/overti-me/internal/auth"
	"github.com/baptistelechat/overti-me/internal/config"
	"github.com/baptistelechat/overti-me/internal/database"
	"github.com/baptistelechat/overti-me/internal/event_bus"
	"github.com/baptistelechat/overti-me/internal/storage"
	"github.com/baptistelechat/overti-me/internal/utils"
	"github.com/baptistelechat/overti-me/pkg/export"
	"github.com/baptistelechat/overti-me/pkg/timesheet"
	"github.com/baptistelechat/overti-me/pkg/user"
	"github.com/baptistelechat/overti-me/pkg/week_sync"
	"github.com/gofrs/flock"
	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"
)

// Dependencies holds all services and handlers for the application. The remote
// parts stay nil while remote sync is disabled.
type Dependencies struct {
	Clock    utils.Clock
	EventBus *event_bus.EventBus

	LocalLock *flock.Flock
	LocalDB   *sql.DB
	BlobStore storage.BlobStore

	Store            *timesheet.Store
	TimesheetHandler *timesheet.Handler
	ExportHandler    *export.Handler

	RemoteDB    *pgxpool.Pool
	Tokens      *auth.Tokens
	UserService user.Service
	UserHandler *user.Handler
	SyncEngine  *week_sync.Engine
	SyncHandler *week_sync.Handler
}

// BuildDependencies locks and opens the local database, loads the week collection and,
// when enabled, connects the remote store and resumes a persisted session. It fails with
// database.ErrLocalInUse while another process holds the local database.
func BuildDependencies(ctx context.Context, cfg config.Application) (*Dependencies, error) {
	deps := &Dependencies{}
	deps.Clock = &utils.SystemClock{}
	deps.EventBus = event_bus.NewEventBus()

	lock, err := database.LockLocal(cfg.Local)
	if err != nil {
		return nil, err
	}
	deps.LocalLock = lock

	localDB, err := database.OpenLocal(cfg.Local)
	if err != nil {
		deps.Close()
		return nil, err
	}
	deps.LocalDB = localDB
	deps.BlobStore = storage.NewSqliteBlobStore(localDB)

	thresholds := timesheet.Thresholds{
		Normal:     cfg.Overtime.Normal,
		Overtime25: cfg.Overtime.Overtime25,
		LegalLimit: cfg.Overtime.LegalLimit,
		DailyLimit: cfg.Overtime.DailyLimit,
	}
	deps.Store, err = timesheet.NewStore(timesheet.NewStateRepository(deps.BlobStore), deps.EventBus, deps.Clock, thresholds)
	if err != nil {
		deps.Close()
		return nil, err
	}
	if err := deps.Store.Load(ctx); err != nil {
		log.Warnf("week collection not loaded: %v", err)
	}
	if _, err := timesheet.EnsureCurrentWeek(ctx, deps.Store); err != nil {
		log.Warnf("failed to initialize the current week: %v", err)
	}
	deps.TimesheetHandler = timesheet.NewHandler(deps.Store)
	deps.ExportHandler = export.NewHandler(deps.Store)

	if !cfg.Remote.Enabled {
		log.Info("Remote sync disabled")
		return deps, nil
	}
	if err := deps.buildRemote(ctx, cfg); err != nil {
		deps.Close()
		return nil, err
	}
	return deps, nil
}

func (deps *Dependencies) buildRemote(ctx context.Context, cfg config.Application) error {
	policy, err := week_sync.ParseMergePolicy(cfg.Sync.MergePolicy)
	if err != nil {
		return err
	}

	db, err := database.Open(cfg.Database)
	if err != nil {
		return err
	}
	deps.RemoteDB = db
	if err := database.Migrate(cfg.Database); err != nil {
		return err
	}

	deps.Tokens, err = auth.NewTokens(cfg.Auth.Secret, cfg.Auth.TokenTTL, deps.Clock)
	if err != nil {
		return fmt.Errorf("remote sync needs an auth secret: %w", err)
	}
	deps.UserService = user.NewUserService(user.NewUserRepo(db))
	deps.UserHandler = user.NewHandler(deps.UserService)

	deps.SyncEngine = week_sync.NewEngine(
		deps.Store,
		week_sync.NewRemoteRepository(db),
		week_sync.NewMetadataRepository(deps.BlobStore),
		deps.EventBus,
		deps.Clock,
		week_sync.Config{
			Interval:        cfg.Sync.Interval,
			Policy:          policy,
			PushConcurrency: cfg.Sync.PushConcurrency,
		},
	)
	deps.SyncHandler = week_sync.NewHandler(deps.SyncEngine, deps.UserService, deps.Tokens)

	if err := deps.SyncEngine.Load(ctx); err != nil {
		log.Warnf("sync metadata unavailable: %v", err)
	}
	if deps.SyncEngine.HasSession() {
		if err := deps.SyncEngine.ResumeSession(ctx); err != nil {
			log.Warnf("resumed session did not sync: %v", err)
		}
	}
	return nil
}

// Close stops background sync work, releases both databases and unlocks the local one.
func (deps *Dependencies) Close() {
	if deps.SyncEngine != nil {
		deps.SyncEngine.Close()
	}
	if deps.RemoteDB != nil {
		deps.RemoteDB.Close()
	}
	if deps.LocalDB != nil {
		if err := deps.LocalDB.Close(); err != nil {
			log.Warnf("failed to close local database: %v", err)
		}
	}
	if deps.LocalLock != nil {
		if err := deps.LocalLock.Unlock(); err != nil {
			log.Warnf("failed to unlock local database: %v", err)
		}
	}
}
