package week_sync

import (
	"context"
	"errors"
	"time"

	"github.com/baptistelechat/overti-me/pkg/week"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"
)

var ErrRemoteWeekNotFound = errors.New("remote week not found")

// RemoteWeek is one row of the remote store. Data holds the week record as JSON.
type RemoteWeek struct {
	WeekId    week.Id
	Data      []byte
	CreatedAt time.Time
	UpdatedAt time.Time
}

// RemoteStore is the per-user document store weeks are synchronized with.
type RemoteStore interface {
	ListWeeks(ctx context.Context, ownerId int) ([]RemoteWeek, error)
	FindWeek(ctx context.Context, ownerId int, weekId week.Id) (RemoteWeek, error)
	InsertWeek(ctx context.Context, ownerId int, weekId week.Id, data []byte) error
	UpdateWeek(ctx context.Context, ownerId int, weekId week.Id, data []byte) error
}

type RemoteRepositoryImpl struct {
	db *pgxpool.Pool
}

func NewRemoteRepository(db *pgxpool.Pool) *RemoteRepositoryImpl {
	return &RemoteRepositoryImpl{db: db}
}

func (r *RemoteRepositoryImpl) ListWeeks(ctx context.Context, ownerId int) ([]RemoteWeek, error) {
	query := `SELECT week_id, data, created_at, updated_at FROM weeks WHERE owner_id = $1 ORDER BY week_id`
	rows, err := r.db.Query(ctx, query, ownerId)
	if err != nil {
		log.Errorf("failed to list remote weeks: %v", err)
		return nil, err
	}
	defer rows.Close()

	weeks := make([]RemoteWeek, 0, 16)
	for rows.Next() {
		remote, err := scanRemoteWeek(rows)
		if err != nil {
			log.Errorf("failed to scan remote week: %v", err)
			return nil, err
		}
		weeks = append(weeks, remote)
	}
	if err := rows.Err(); err != nil {
		log.Errorf("error iterating over rows: %v", err)
		return nil, err
	}
	return weeks, nil
}

func (r *RemoteRepositoryImpl) FindWeek(ctx context.Context, ownerId int, weekId week.Id) (RemoteWeek, error) {
	query := `SELECT week_id, data, created_at, updated_at FROM weeks WHERE owner_id = $1 AND week_id = $2`
	remote, err := scanRemoteWeek(r.db.QueryRow(ctx, query, ownerId, weekId.String()))
	if errors.Is(err, pgx.ErrNoRows) {
		return RemoteWeek{}, ErrRemoteWeekNotFound
	}
	if err != nil {
		log.Errorf("failed to find remote week %s: %v", weekId, err)
		return RemoteWeek{}, err
	}
	return remote, nil
}

func (r *RemoteRepositoryImpl) InsertWeek(ctx context.Context, ownerId int, weekId week.Id, data []byte) error {
	query := `INSERT INTO weeks (owner_id, week_id, data) VALUES ($1, $2, $3)`
	_, err := r.db.Exec(ctx, query, ownerId, weekId.String(), data)
	if err != nil {
		log.Errorf("failed to insert remote week %s: %v", weekId, err)
	}
	return err
}

func (r *RemoteRepositoryImpl) UpdateWeek(ctx context.Context, ownerId int, weekId week.Id, data []byte) error {
	query := `UPDATE weeks SET data = $1, updated_at = now() WHERE owner_id = $2 AND week_id = $3`
	result, err := r.db.Exec(ctx, query, data, ownerId, weekId.String())
	if err != nil {
		log.Errorf("failed to update remote week %s: %v", weekId, err)
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrRemoteWeekNotFound
	}
	return nil
}

func scanRemoteWeek(row pgx.Row) (RemoteWeek, error) {
	var remote RemoteWeek
	var weekId string
	if err := row.Scan(&weekId, &remote.Data, &remote.CreatedAt, &remote.UpdatedAt); err != nil {
		return RemoteWeek{}, err
	}
	id, err := week.Parse(weekId)
	if err != nil {
		return RemoteWeek{}, err
	}
	remote.WeekId = id
	return remote, nil
}
