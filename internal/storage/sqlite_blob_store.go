package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"
)

// SqliteBlobStore keeps blobs in the "kv" table of the local database.
type SqliteBlobStore struct {
	db *sql.DB
}

func NewSqliteBlobStore(db *sql.DB) *SqliteBlobStore {
	return &SqliteBlobStore{db: db}
}

func (s *SqliteBlobStore) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx, "SELECT value FROM kv WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	if err != nil {
		log.Errorf("failed to read blob %s: %v", key, err)
		return nil, err
	}
	return value, nil
}

func (s *SqliteBlobStore) Put(ctx context.Context, key string, value []byte) error {
	query := `INSERT INTO kv (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
			  ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`
	if _, err := s.db.ExecContext(ctx, query, key, value); err != nil {
		log.Errorf("failed to write blob %s: %v", key, err)
		return err
	}
	return nil
}

func (s *SqliteBlobStore) Delete(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM kv WHERE key = ?", key)
	return err
}
