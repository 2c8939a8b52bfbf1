package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Jollyhrothgar/github-fitness-sub000/internal/domain"
	"github.com/Jollyhrothgar/github-fitness-sub000/internal/store"
	"github.com/Jollyhrothgar/github-fitness-sub000/internal/store/sqlite"
)

func openTemp(t *testing.T) (*sqlite.Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fitsync.db")
	st, err := sqlite.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st, path
}

func TestLogRoundTrip(t *testing.T) {
	ctx := context.Background()
	st, _ := openTemp(t)

	start := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)
	l := &domain.WorkoutLog{
		SessionID: "s1",
		DeviceID:  "dev-a",
		StartedAt: start,
		EndedAt:   &end,
		Exercises: []domain.LoggedExercise{{
			ExerciseID: "bench",
			Name:       "Bench Press",
			Sets:       []domain.LoggedSet{{Weight: 80, Reps: 8, LoggedAt: start}},
		}},
	}
	require.NoError(t, st.Logs().Put(ctx, l))

	got, err := st.Logs().Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "s1", got.SessionID)
	require.NotNil(t, got.EndedAt)
	assert.True(t, got.EndedAt.Equal(end))
	require.Len(t, got.Exercises, 1)
	assert.Equal(t, "Bench Press", got.Exercises[0].Name)

	_, err = st.Logs().Get(ctx, "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestLogsListNewestFirst(t *testing.T) {
	ctx := context.Background()
	st, _ := openTemp(t)

	base := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	for i, id := range []string{"old", "mid", "new"} {
		require.NoError(t, st.Logs().Put(ctx, &domain.WorkoutLog{
			SessionID: id,
			StartedAt: base.Add(time.Duration(i) * 24 * time.Hour),
		}))
	}

	logs, err := st.Logs().List(ctx)
	require.NoError(t, err)
	require.Len(t, logs, 3)
	assert.Equal(t, "new", logs[0].SessionID)
	assert.Equal(t, "old", logs[2].SessionID)
}

func TestReplaceAllDropsAbsentLogs(t *testing.T) {
	ctx := context.Background()
	st, _ := openTemp(t)

	base := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	require.NoError(t, st.Logs().Put(ctx, &domain.WorkoutLog{SessionID: "keep", StartedAt: base}))
	require.NoError(t, st.Logs().Put(ctx, &domain.WorkoutLog{SessionID: "drop", StartedAt: base}))

	require.NoError(t, st.Logs().ReplaceAll(ctx, []domain.WorkoutLog{{SessionID: "keep", StartedAt: base}}))

	logs, err := st.Logs().List(ctx)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "keep", logs[0].SessionID)
}

func TestTombstoneEarliestWinsOnConflict(t *testing.T) {
	ctx := context.Background()
	st, _ := openTemp(t)

	early := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	late := early.Add(time.Hour)

	require.NoError(t, st.Tombstones().Put(ctx, &domain.Tombstone{SessionID: "s1", DeviceID: "b", DeletedAt: late}))
	require.NoError(t, st.Tombstones().Put(ctx, &domain.Tombstone{SessionID: "s1", DeviceID: "a", DeletedAt: early}))
	// A later tombstone for the same session must not displace the earlier one.
	require.NoError(t, st.Tombstones().Put(ctx, &domain.Tombstone{SessionID: "s1", DeviceID: "c", DeletedAt: late}))

	tombstones, err := st.Tombstones().List(ctx)
	require.NoError(t, err)
	require.Len(t, tombstones, 1)
	assert.Equal(t, "a", tombstones[0].DeviceID)
	assert.True(t, tombstones[0].DeletedAt.Equal(early))
}

func TestQueueOrderAndRetries(t *testing.T) {
	ctx := context.Background()
	st, _ := openTemp(t)
	now := time.Now().UTC()

	for _, id := range []string{"c1", "c2", "c3"} {
		require.NoError(t, st.Queue().Append(ctx, &domain.PendingChange{
			ID:         id,
			Entity:     domain.EntityLog,
			Action:     domain.ActionCreate,
			EntityID:   "s-" + id,
			EnqueuedAt: now,
		}))
	}

	changes, err := st.Queue().List(ctx)
	require.NoError(t, err)
	require.Len(t, changes, 3)
	assert.Equal(t, []string{"c1", "c2", "c3"}, []string{changes[0].ID, changes[1].ID, changes[2].ID})
	assert.Nil(t, changes[0].Payload)

	require.NoError(t, st.Queue().SetRetries(ctx, "c2", 3))
	require.NoError(t, st.Queue().Remove(ctx, "c1"))

	changes, err = st.Queue().List(ctx)
	require.NoError(t, err)
	require.Len(t, changes, 2)
	assert.Equal(t, "c2", changes[0].ID)
	assert.Equal(t, 3, changes[0].Retries)

	assert.ErrorIs(t, st.Queue().SetRetries(ctx, "gone", 1), store.ErrNotFound)
}

func TestSettingsPersistAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "fitsync.db")

	st, err := sqlite.Open(path)
	require.NoError(t, err)
	require.NoError(t, st.Settings().Set(ctx, store.SettingDeviceID, "dev-42"))
	require.NoError(t, store.SetLastSyncedAt(ctx, st.Settings(), time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)))
	require.NoError(t, st.Close())

	st, err = sqlite.Open(path)
	require.NoError(t, err)
	defer st.Close()

	device, err := st.Settings().Get(ctx, store.SettingDeviceID)
	require.NoError(t, err)
	assert.Equal(t, "dev-42", device)

	last, err := store.LastSyncedAt(ctx, st.Settings())
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.True(t, last.Equal(time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)))

	_, err = st.Settings().Get(ctx, "nope")
	assert.ErrorIs(t, err, store.ErrNotFound)
}
