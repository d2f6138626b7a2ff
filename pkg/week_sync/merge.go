package week_sync

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/baptistelechat/overti-me/pkg/timesheet"
	"github.com/baptistelechat/overti-me/pkg/week"
	log "github.com/sirupsen/logrus"
)

var ErrUnknownMergePolicy = errors.New("unknown merge policy")

// MergePolicy decides which copy wins when a week exists both locally and remotely.
type MergePolicy string

const (
	// PolicySession lets the remote copy win iff it was written after the last successful sync.
	PolicySession MergePolicy = "session"
	// PolicyRecord compares the remote row with the local record's own modification time.
	PolicyRecord MergePolicy = "record"
)

func ParseMergePolicy(s string) (MergePolicy, error) {
	switch MergePolicy(s) {
	case "", PolicySession:
		return PolicySession, nil
	case PolicyRecord:
		return PolicyRecord, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownMergePolicy, s)
}

// MergeResult is the reconciled collection. Adopted lists the remote records that must
// replace or complete local state; Merged is the full reconciled set ordered by week.
type MergeResult struct {
	Merged  []timesheet.WeekRecord
	Adopted []timesheet.WeekRecord
}

// MergeWeeks reconciles local records with remote rows key by key. Remote-only weeks are
// adopted, local-only weeks are kept, and weeks present on both sides go through the policy.
// A remote row whose data cannot be decoded counts as absent.
func MergeWeeks(local []timesheet.WeekRecord, remote []RemoteWeek, lastSyncedAt *time.Time, policy MergePolicy) MergeResult {
	byId := make(map[week.Id]timesheet.WeekRecord, len(local)+len(remote))
	for _, record := range local {
		byId[record.Id] = record
	}

	var adopted []timesheet.WeekRecord
	for _, row := range remote {
		record, err := decodeRemote(row)
		if err != nil {
			log.Warnf("ignoring remote week %s: %v", row.WeekId, err)
			continue
		}
		localRecord, exists := byId[row.WeekId]
		if exists && !remoteWins(localRecord, row, lastSyncedAt, policy) {
			continue
		}
		byId[row.WeekId] = record
		adopted = append(adopted, record)
	}

	merged := make([]timesheet.WeekRecord, 0, len(byId))
	for _, record := range byId {
		merged = append(merged, record)
	}
	sort.Slice(merged, func(i, j int) bool { return merged[i].Id.Before(merged[j].Id) })
	sort.Slice(adopted, func(i, j int) bool { return adopted[i].Id.Before(adopted[j].Id) })
	return MergeResult{Merged: merged, Adopted: adopted}
}

func remoteWins(local timesheet.WeekRecord, remote RemoteWeek, lastSyncedAt *time.Time, policy MergePolicy) bool {
	if policy == PolicyRecord {
		return remote.UpdatedAt.After(local.UpdatedAt)
	}
	if lastSyncedAt == nil {
		return true
	}
	return remote.UpdatedAt.After(*lastSyncedAt)
}

func decodeRemote(row RemoteWeek) (timesheet.WeekRecord, error) {
	var record timesheet.WeekRecord
	if err := json.Unmarshal(row.Data, &record); err != nil {
		return timesheet.WeekRecord{}, err
	}
	record.Id = row.WeekId
	if record.UpdatedAt.IsZero() {
		record.UpdatedAt = row.UpdatedAt
	}
	return record, nil
}
