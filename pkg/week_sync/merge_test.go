package week_sync

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/baptistelechat/overti-me/pkg/timesheet"
	"github.com/baptistelechat/overti-me/pkg/week"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	w24 = week.Id{Year: 2025, Week: 24}
	w25 = week.Id{Year: 2025, Week: 25}
	w26 = week.Id{Year: 2025, Week: 26}
	t0  = time.Date(2025, time.June, 18, 12, 0, 0, 0, time.UTC)
)

func record(id week.Id, total float64, updatedAt time.Time) timesheet.WeekRecord {
	r := timesheet.NewWeekRecord(id, updatedAt)
	r.Days[0].DirectDuration = &total
	r.Days[0].CalculatedDuration = total
	r.Days[0].IsWorked = total > 0
	r.TotalHours = total
	return r
}

func remoteRow(t *testing.T, r timesheet.WeekRecord, updatedAt time.Time) RemoteWeek {
	t.Helper()
	data, err := json.Marshal(r)
	require.NoError(t, err)
	return RemoteWeek{WeekId: r.Id, Data: data, CreatedAt: updatedAt, UpdatedAt: updatedAt}
}

func totals(records []timesheet.WeekRecord) map[week.Id]float64 {
	out := make(map[week.Id]float64, len(records))
	for _, r := range records {
		out[r.Id] = r.TotalHours
	}
	return out
}

func TestMergeWeeks_SessionPolicy(t *testing.T) {
	lastSyncedAt := t0

	t.Run("should prefer the remote copy written after the last sync", func(t *testing.T) {
		local := []timesheet.WeekRecord{record(w25, 7, t0.Add(-time.Hour))}
		remote := []RemoteWeek{remoteRow(t, record(w25, 20, t0), t0.Add(time.Minute))}

		result := MergeWeeks(local, remote, &lastSyncedAt, PolicySession)

		assert.Equal(t, map[week.Id]float64{w25: 20}, totals(result.Merged))
		assert.Len(t, result.Adopted, 1)
	})

	t.Run("should keep the local copy when the remote one is not newer than the last sync", func(t *testing.T) {
		local := []timesheet.WeekRecord{record(w25, 7, t0.Add(time.Hour))}
		remote := []RemoteWeek{remoteRow(t, record(w25, 20, t0), t0)}

		result := MergeWeeks(local, remote, &lastSyncedAt, PolicySession)

		assert.Equal(t, map[week.Id]float64{w25: 7}, totals(result.Merged))
		assert.Empty(t, result.Adopted)
	})

	t.Run("should let remote win when never synced", func(t *testing.T) {
		local := []timesheet.WeekRecord{record(w25, 7, t0.Add(time.Hour))}
		remote := []RemoteWeek{remoteRow(t, record(w25, 20, t0), t0.Add(-48*time.Hour))}

		result := MergeWeeks(local, remote, nil, PolicySession)

		assert.Equal(t, map[week.Id]float64{w25: 20}, totals(result.Merged))
	})

	t.Run("should adopt remote only weeks and keep local only weeks", func(t *testing.T) {
		local := []timesheet.WeekRecord{record(w26, 3, t0)}
		remote := []RemoteWeek{remoteRow(t, record(w24, 9, t0), t0)}

		result := MergeWeeks(local, remote, &lastSyncedAt, PolicySession)

		require.Len(t, result.Merged, 2)
		assert.Equal(t, w24, result.Merged[0].Id)
		assert.Equal(t, w26, result.Merged[1].Id)
		require.Len(t, result.Adopted, 1)
		assert.Equal(t, w24, result.Adopted[0].Id)
	})

	t.Run("should ignore undecodable remote rows", func(t *testing.T) {
		local := []timesheet.WeekRecord{record(w25, 7, t0)}
		remote := []RemoteWeek{{WeekId: w25, Data: []byte("{oops"), UpdatedAt: t0.Add(time.Hour)}}

		result := MergeWeeks(local, remote, &lastSyncedAt, PolicySession)

		assert.Equal(t, map[week.Id]float64{w25: 7}, totals(result.Merged))
		assert.Empty(t, result.Adopted)
	})

	t.Run("should key remote records by the row week id", func(t *testing.T) {
		mislabelled := record(w26, 5, t0)
		row := remoteRow(t, mislabelled, t0.Add(time.Hour))
		row.WeekId = w24

		result := MergeWeeks(nil, []RemoteWeek{row}, &lastSyncedAt, PolicySession)

		require.Len(t, result.Merged, 1)
		assert.Equal(t, w24, result.Merged[0].Id)
	})
}

func TestMergeWeeks_RecordPolicy(t *testing.T) {
	lastSyncedAt := t0

	t.Run("should keep a local edit newer than the remote row even before the last sync", func(t *testing.T) {
		local := []timesheet.WeekRecord{record(w25, 7, t0.Add(-time.Minute))}
		remote := []RemoteWeek{remoteRow(t, record(w25, 20, t0), t0.Add(-time.Hour))}

		result := MergeWeeks(local, remote, &lastSyncedAt, PolicyRecord)

		assert.Equal(t, map[week.Id]float64{w25: 7}, totals(result.Merged))
	})

	t.Run("should take a remote row newer than the local record", func(t *testing.T) {
		local := []timesheet.WeekRecord{record(w25, 7, t0)}
		remote := []RemoteWeek{remoteRow(t, record(w25, 20, t0), t0.Add(time.Second))}

		result := MergeWeeks(local, remote, nil, PolicyRecord)

		assert.Equal(t, map[week.Id]float64{w25: 20}, totals(result.Merged))
	})
}

func TestParseMergePolicy(t *testing.T) {
	tests := []struct {
		in      string
		want    MergePolicy
		wantErr bool
	}{
		{"", PolicySession, false},
		{"session", PolicySession, false},
		{"record", PolicyRecord, false},
		{"newest", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseMergePolicy(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnknownMergePolicy)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
