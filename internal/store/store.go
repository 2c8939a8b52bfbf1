package store

import (
	"context"

	"github.com/Jollyhrothgar/github-fitness-sub000/internal/domain"
)

// Error constants for the local-store layer.
var (
	ErrNotFound     = StoreError("not found")
	ErrUpdateFailed = StoreError("update failed")
	ErrDeleteFailed = StoreError("delete failed")
)

// StoreError helps distinguish local-store errors from everything else.
type StoreError string

func (e StoreError) Error() string {
	return string(e)
}

// Settings keys the sync engine persists between runs.
const (
	SettingAccessToken = "sync.access_token"
	SettingRemoteOwner = "sync.remote_owner"
	SettingRemoteRepo  = "sync.remote_repo"
	SettingDeviceID    = "sync.device_id"
	SettingLastSync    = "sync.last_synced_at"
)

// LogRepository persists workout logs on this device.
type LogRepository interface {
	List(ctx context.Context) ([]domain.WorkoutLog, error)
	Get(ctx context.Context, sessionID string) (*domain.WorkoutLog, error)
	Put(ctx context.Context, log *domain.WorkoutLog) error
	Delete(ctx context.Context, sessionID string) error
	ReplaceAll(ctx context.Context, logs []domain.WorkoutLog) error
}

// ExerciseRepository persists the exercise library.
type ExerciseRepository interface {
	List(ctx context.Context) ([]domain.ExerciseDefinition, error)
	Put(ctx context.Context, ex *domain.ExerciseDefinition) error
	ReplaceAll(ctx context.Context, exercises []domain.ExerciseDefinition) error
}

// PlanRepository persists workout plans.
type PlanRepository interface {
	List(ctx context.Context) ([]domain.WorkoutPlan, error)
	Get(ctx context.Context, planID string) (*domain.WorkoutPlan, error)
	Put(ctx context.Context, plan *domain.WorkoutPlan) error
	Delete(ctx context.Context, planID string) error
}

// TombstoneRepository persists deletion markers.
type TombstoneRepository interface {
	List(ctx context.Context) ([]domain.Tombstone, error)
	Put(ctx context.Context, t *domain.Tombstone) error
	ReplaceAll(ctx context.Context, tombstones []domain.Tombstone) error
}

// QueueRepository is the durable backing for the pending-change queue.
// List returns items strictly in enqueue order.
type QueueRepository interface {
	List(ctx context.Context) ([]domain.PendingChange, error)
	Append(ctx context.Context, change *domain.PendingChange) error
	Remove(ctx context.Context, id string) error
	SetRetries(ctx context.Context, id string, retries int) error
	Count(ctx context.Context) (int, error)
}

// SettingsRepository is a small key-value store for auth, device identity
// and the last-sync timestamp. Get returns ErrNotFound for a missing key.
type SettingsRepository interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// Store bundles every repository the sync engine needs. Both the sqlite and
// the in-memory implementation satisfy it.
type Store interface {
	Logs() LogRepository
	Exercises() ExerciseRepository
	Plans() PlanRepository
	Tombstones() TombstoneRepository
	Queue() QueueRepository
	Settings() SettingsRepository
	Close() error
}
