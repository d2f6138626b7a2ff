package timesheet

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/baptistelechat/overti-me/internal/storage"
	"github.com/baptistelechat/overti-me/pkg/week"
	log "github.com/sirupsen/logrus"
)

// StorageKey is the blob entry holding the serialized Collection.
const StorageKey = "overti-me-storage"

// QuarantineKey keeps a copy of a stored collection that could not be decoded.
const QuarantineKey = StorageKey + ".corrupt"

var ErrPersistence = errors.New("local persistence failed")
var ErrQuarantined = errors.New("unreadable week collection moved aside")

// StateRepository loads and saves the whole week collection.
type StateRepository interface {
	Load(ctx context.Context) (Collection, error)
	Save(ctx context.Context, collection Collection) error
}

type StateRepositoryImpl struct {
	blobs storage.BlobStore
}

func NewStateRepository(blobs storage.BlobStore) *StateRepositoryImpl {
	return &StateRepositoryImpl{blobs: blobs}
}

// Load returns an empty collection when nothing was stored yet. A collection that cannot
// be decoded is copied to QuarantineKey and reported with ErrQuarantined, unless an
// earlier copy is still there.
func (r *StateRepositoryImpl) Load(ctx context.Context) (Collection, error) {
	data, err := r.blobs.Get(ctx, StorageKey)
	if errors.Is(err, storage.ErrNotFound) {
		log.Debug("no stored week collection, starting empty")
		return NewCollection(), nil
	}
	if err != nil {
		return NewCollection(), fmt.Errorf("%w: %w", ErrPersistence, err)
	}

	collection := NewCollection()
	if err := json.Unmarshal(data, &collection); err != nil {
		if qErr := r.quarantine(ctx, data); qErr != nil {
			log.Errorf("failed to set corrupted week collection aside: %v", qErr)
			return NewCollection(), fmt.Errorf("%w: stored collection is corrupted: %w", ErrPersistence, err)
		}
		log.Errorf("stored week collection is corrupted, copied to %s", QuarantineKey)
		return NewCollection(), fmt.Errorf("%w: %w: %w", ErrPersistence, ErrQuarantined, err)
	}
	if collection.Weeks == nil {
		collection.Weeks = make(map[week.Id]WeekRecord)
	}
	for id, record := range collection.Weeks {
		if record.Id != id {
			record.Id = id
			collection.Weeks[id] = record
		}
	}
	return collection, nil
}

func (r *StateRepositoryImpl) Save(ctx context.Context, collection Collection) error {
	data, err := json.Marshal(collection)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	if err := r.blobs.Put(ctx, StorageKey, data); err != nil {
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	return nil
}

func (r *StateRepositoryImpl) quarantine(ctx context.Context, data []byte) error {
	_, err := r.blobs.Get(ctx, QuarantineKey)
	if err == nil {
		return fmt.Errorf("%s already holds an earlier copy", QuarantineKey)
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return err
	}
	return r.blobs.Put(ctx, QuarantineKey, data)
}
