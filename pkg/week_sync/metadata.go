package week_sync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/baptistelechat/overti-me/internal/storage"
	log "github.com/sirupsen/logrus"
)

// MetadataKey is the blob entry holding the session and sync state. It never holds credentials.
const MetadataKey = "overti-me-auth-storage"

type Status string

const (
	StatusSynced    Status = "synced"
	StatusNotSynced Status = "not_synced"
	StatusSyncing   Status = "syncing"
	StatusError     Status = "error"
)

// SessionUser identifies the account a session syncs for.
type SessionUser struct {
	Id    int    `json:"id"`
	Uid   string `json:"uid"`
	Email string `json:"email"`
}

type Metadata struct {
	User         *SessionUser `json:"user"`
	LastSyncedAt *time.Time   `json:"lastSyncedAt"`
	SyncStatus   Status       `json:"syncStatus"`
	SyncError    string       `json:"syncError,omitempty"`
}

func (m Metadata) clone() Metadata {
	if m.User != nil {
		u := *m.User
		m.User = &u
	}
	if m.LastSyncedAt != nil {
		t := *m.LastSyncedAt
		m.LastSyncedAt = &t
	}
	return m
}

type MetadataRepository interface {
	Load(ctx context.Context) (Metadata, error)
	Save(ctx context.Context, metadata Metadata) error
}

type MetadataRepositoryImpl struct {
	blobs storage.BlobStore
}

func NewMetadataRepository(blobs storage.BlobStore) *MetadataRepositoryImpl {
	return &MetadataRepositoryImpl{blobs: blobs}
}

func (r *MetadataRepositoryImpl) Load(ctx context.Context) (Metadata, error) {
	data, err := r.blobs.Get(ctx, MetadataKey)
	if errors.Is(err, storage.ErrNotFound) {
		log.Debug("no stored sync metadata")
		return Metadata{SyncStatus: StatusNotSynced}, nil
	}
	if err != nil {
		return Metadata{SyncStatus: StatusNotSynced}, fmt.Errorf("failed to read sync metadata: %w", err)
	}
	var metadata Metadata
	if err := json.Unmarshal(data, &metadata); err != nil {
		return Metadata{SyncStatus: StatusNotSynced}, fmt.Errorf("stored sync metadata is corrupted: %w", err)
	}
	if metadata.SyncStatus == "" {
		metadata.SyncStatus = StatusNotSynced
	}
	return metadata, nil
}

func (r *MetadataRepositoryImpl) Save(ctx context.Context, metadata Metadata) error {
	data, err := json.Marshal(metadata)
	if err != nil {
		return err
	}
	return r.blobs.Put(ctx, MetadataKey, data)
}
