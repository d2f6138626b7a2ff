package timesheet

import (
	"testing"

	"github.com/baptistelechat/overti-me/internal/storage"
	"github.com/baptistelechat/overti-me/internal/test_utils"
	"github.com/baptistelechat/overti-me/pkg/week"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStateRepositoryImpl(t *testing.T) {
	t.Run("should load an empty collection when nothing is stored", func(t *testing.T) {
		// given
		repo := NewStateRepository(storage.NewSqliteBlobStore(test_utils.SetupLocalDB(t)))

		// when
		collection, err := repo.Load(ctx)

		// then
		require.NoError(t, err)
		assert.True(t, collection.CurrentWeekId.IsZero())
		assert.NotNil(t, collection.Weeks)
		assert.Empty(t, collection.Weeks)
	})

	t.Run("should round trip every field", func(t *testing.T) {
		// given
		repo := NewStateRepository(storage.NewSqliteBlobStore(test_utils.SetupLocalDB(t)))
		record := NewWeekRecord(week25, today)
		record.Days[0] = WorkDay{
			Date:               "2025-06-16",
			StartTime:          "09:00",
			EndTime:            "17:00",
			LunchBreakStart:    "12:00",
			LunchBreakEnd:      "13:00",
			CalculatedDuration: 7,
			IsWorked:           true,
		}
		record.Days[1] = WorkDay{Date: "2025-06-17", DirectDuration: hours(4.25), CalculatedDuration: 4.25, IsWorked: true}
		record.TotalHours = 11.25
		record.NormalHours = 11.25
		collection := Collection{
			CurrentWeekId: week25,
			Weeks:         map[week.Id]WeekRecord{week25: record},
		}

		// when
		require.NoError(t, repo.Save(ctx, collection))
		loaded, err := repo.Load(ctx)

		// then
		require.NoError(t, err)
		assert.Equal(t, week25, loaded.CurrentWeekId)
		require.Contains(t, loaded.Weeks, week25)
		got := loaded.Weeks[week25]
		assert.Equal(t, record.Days, got.Days)
		assert.Equal(t, record.TotalHours, got.TotalHours)
		assert.True(t, record.UpdatedAt.Equal(got.UpdatedAt))
	})

	t.Run("should report a corrupted blob as a persistence error", func(t *testing.T) {
		// given
		blobs := storage.NewMemoryBlobStore()
		require.NoError(t, blobs.Put(ctx, StorageKey, []byte("{not json")))
		repo := NewStateRepository(blobs)

		// when
		collection, err := repo.Load(ctx)

		// then
		assert.ErrorIs(t, err, ErrPersistence)
		assert.ErrorIs(t, err, ErrQuarantined)
		assert.Empty(t, collection.Weeks)
		kept, getErr := blobs.Get(ctx, QuarantineKey)
		require.NoError(t, getErr)
		assert.Equal(t, "{not json", string(kept))
	})

	t.Run("should not replace an earlier quarantined copy", func(t *testing.T) {
		// given
		blobs := storage.NewMemoryBlobStore()
		require.NoError(t, blobs.Put(ctx, QuarantineKey, []byte("first")))
		require.NoError(t, blobs.Put(ctx, StorageKey, []byte("second")))
		repo := NewStateRepository(blobs)

		// when
		_, err := repo.Load(ctx)

		// then
		assert.ErrorIs(t, err, ErrPersistence)
		assert.NotErrorIs(t, err, ErrQuarantined)
		kept, getErr := blobs.Get(ctx, QuarantineKey)
		require.NoError(t, getErr)
		assert.Equal(t, "first", string(kept))
	})

	t.Run("should wrap write failures", func(t *testing.T) {
		// given
		blobs := storage.NewMemoryBlobStore()
		blobs.SetWriteError(assert.AnError)
		repo := NewStateRepository(blobs)

		// when
		err := repo.Save(ctx, NewCollection())

		// then
		assert.ErrorIs(t, err, ErrPersistence)
	})
}
