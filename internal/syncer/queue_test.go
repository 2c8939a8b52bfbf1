package syncer_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Jollyhrothgar/github-fitness-sub000/internal/domain"
	"github.com/Jollyhrothgar/github-fitness-sub000/internal/store/memory"
	"github.com/Jollyhrothgar/github-fitness-sub000/internal/syncer"
)

func TestQueueEnqueueAssignsIdentity(t *testing.T) {
	ctx := context.Background()
	q := syncer.NewQueue(memory.New().Queue(), zap.NewNop(), nil)

	change, err := q.Enqueue(ctx, domain.EntityLog, domain.ActionCreate, "s1", nil)
	require.NoError(t, err)
	assert.NotEmpty(t, change.ID)
	assert.False(t, change.EnqueuedAt.IsZero())
	assert.Zero(t, change.Retries)

	n, err := q.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestQueueDrainRemovesSentItems(t *testing.T) {
	ctx := context.Background()
	q := syncer.NewQueue(memory.New().Queue(), zap.NewNop(), nil)

	var sent []string
	for _, id := range []string{"s1", "s2", "s3"} {
		_, err := q.Enqueue(ctx, domain.EntityLog, domain.ActionCreate, id, nil)
		require.NoError(t, err)
	}

	err := q.Drain(ctx, func(ctx context.Context, c domain.PendingChange) error {
		sent = append(sent, c.EntityID)
		return nil
	})
	require.NoError(t, err)

	// Strictly enqueue order, everything removed.
	assert.Equal(t, []string{"s1", "s2", "s3"}, sent)
	n, err := q.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestQueueFailedItemStaysQueued(t *testing.T) {
	ctx := context.Background()
	q := syncer.NewQueue(memory.New().Queue(), zap.NewNop(), nil)
	_, err := q.Enqueue(ctx, domain.EntityPlan, domain.ActionUpdate, "p1", nil)
	require.NoError(t, err)

	require.NoError(t, q.Drain(ctx, func(context.Context, domain.PendingChange) error {
		return errNetwork
	}))

	n, err := q.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n, "item below the retry ceiling must stay queued")
}

func TestQueueRetryCeilingEvicts(t *testing.T) {
	ctx := context.Background()
	q := syncer.NewQueue(memory.New().Queue(), zap.NewNop(), nil)
	_, err := q.Enqueue(ctx, domain.EntityLog, domain.ActionCreate, "poison", nil)
	require.NoError(t, err)

	attempts := 0
	failing := func(context.Context, domain.PendingChange) error {
		attempts++
		return errNetwork
	}

	// Five consecutive failing drains: attempts 1..5, evicted on the 5th.
	for i := 0; i < domain.MaxChangeRetries; i++ {
		require.NoError(t, q.Drain(ctx, failing))
	}
	assert.Equal(t, domain.MaxChangeRetries, attempts)

	n, err := q.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "poison item must be evicted at the ceiling")

	// A sixth drain must not retry it.
	require.NoError(t, q.Drain(ctx, failing))
	assert.Equal(t, domain.MaxChangeRetries, attempts, "evicted item retried after the ceiling")
}

func TestQueuePoisonItemDoesNotBlockOthers(t *testing.T) {
	ctx := context.Background()
	q := syncer.NewQueue(memory.New().Queue(), zap.NewNop(), nil)
	_, err := q.Enqueue(ctx, domain.EntityLog, domain.ActionCreate, "bad", nil)
	require.NoError(t, err)
	_, err = q.Enqueue(ctx, domain.EntityLog, domain.ActionCreate, "good", nil)
	require.NoError(t, err)

	var delivered []string
	require.NoError(t, q.Drain(ctx, func(_ context.Context, c domain.PendingChange) error {
		if c.EntityID == "bad" {
			return errNetwork
		}
		delivered = append(delivered, c.EntityID)
		return nil
	}))

	assert.Equal(t, []string{"good"}, delivered)
	n, err := q.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n, "only the failing item remains")
}

func TestQueuePublishesPendingCount(t *testing.T) {
	ctx := context.Background()
	var counts []int
	q := syncer.NewQueue(memory.New().Queue(), zap.NewNop(), func(n int) { counts = append(counts, n) })

	_, err := q.Enqueue(ctx, domain.EntityExercise, domain.ActionUpdate, "library", nil)
	require.NoError(t, err)
	require.NoError(t, q.Drain(ctx, func(context.Context, domain.PendingChange) error { return nil }))

	assert.Equal(t, []int{1, 0}, counts)
}
