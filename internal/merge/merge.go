// Package merge holds the pure reconciliation rules for the sync engine.
// Every function here is side-effect free: (local, remote) in, converged
// collection out. Two devices running these over the same inputs converge on
// the same result no matter how their sync cycles interleave.
package merge

import (
	"sort"

	"github.com/Jollyhrothgar/github-fitness-sub000/internal/domain"
)

// Tombstones unions both tombstone lists keyed by session id. When both sides
// deleted the same session, the earlier deletion timestamp is kept: a
// tombstone recreated after another device re-synced a stale copy must not
// displace the original deletion record.
func Tombstones(local, remote []domain.Tombstone) []domain.Tombstone {
	byID := make(map[string]domain.Tombstone, len(local)+len(remote))
	for _, t := range remote {
		byID[t.SessionID] = t
	}
	for _, t := range local {
		if prev, ok := byID[t.SessionID]; !ok || t.DeletedAt.Before(prev.DeletedAt) {
			byID[t.SessionID] = t
		}
	}
	merged := make([]domain.Tombstone, 0, len(byID))
	for _, t := range byID {
		merged = append(merged, t)
	}
	sort.Slice(merged, func(i, j int) bool {
		if !merged[i].DeletedAt.Equal(merged[j].DeletedAt) {
			return merged[i].DeletedAt.Before(merged[j].DeletedAt)
		}
		return merged[i].SessionID < merged[j].SessionID
	})
	return merged
}

// Logs reconciles workout logs. Tombstoned ids are excluded no matter which
// side supplies them — deletion is permanent. When both sides carry the same
// session, the copy with the later effective timestamp wins, so a session
// started on one device and completed on another keeps the completed copy.
// Output is sorted by start timestamp descending; history views rely on that.
func Logs(local, remote []domain.WorkoutLog, tombstones []domain.Tombstone) []domain.WorkoutLog {
	deleted := make(map[string]struct{}, len(tombstones))
	for _, t := range tombstones {
		deleted[t.SessionID] = struct{}{}
	}

	byID := make(map[string]domain.WorkoutLog, len(local)+len(remote))
	for _, l := range remote {
		if _, gone := deleted[l.SessionID]; gone {
			continue
		}
		byID[l.SessionID] = l
	}
	for _, l := range local {
		if _, gone := deleted[l.SessionID]; gone {
			continue
		}
		prev, ok := byID[l.SessionID]
		if !ok || l.EffectiveTime().After(prev.EffectiveTime()) {
			byID[l.SessionID] = l
		}
	}

	merged := make([]domain.WorkoutLog, 0, len(byID))
	for _, l := range byID {
		merged = append(merged, l)
	}
	sort.Slice(merged, func(i, j int) bool {
		if !merged[i].StartedAt.Equal(merged[j].StartedAt) {
			return merged[i].StartedAt.After(merged[j].StartedAt)
		}
		return merged[i].SessionID < merged[j].SessionID
	})
	return merged
}

// Exercises reconciles the exercise library. Ids are content-addressed, so
// the remote copy wins wherever it exists; local-only ids (new creations not
// yet pushed) are kept unchanged.
func Exercises(local, remote []domain.ExerciseDefinition) []domain.ExerciseDefinition {
	seen := make(map[string]struct{}, len(remote))
	merged := make([]domain.ExerciseDefinition, 0, len(local)+len(remote))
	for _, ex := range remote {
		seen[ex.ID] = struct{}{}
		merged = append(merged, ex)
	}
	for _, ex := range local {
		if _, ok := seen[ex.ID]; !ok {
			merged = append(merged, ex)
		}
	}
	sort.Slice(merged, func(i, j int) bool { return merged[i].ID < merged[j].ID })
	return merged
}
