package syncer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Jollyhrothgar/github-fitness-sub000/internal/domain"
	"github.com/Jollyhrothgar/github-fitness-sub000/internal/store"
)

// Sender transmits one pending change to the remote. It is supplied by the
// orchestrator, which knows which remote write each entity type maps to.
type Sender func(ctx context.Context, change domain.PendingChange) error

// Queue is the durable outbound mutation queue. Items drain strictly in
// enqueue order, one at a time, so two changes to the same remote path never
// race each other from the same device.
type Queue struct {
	repo    store.QueueRepository
	logger  *zap.Logger
	onCount func(int) // invoked with the pending count after every mutation
}

// NewQueue wraps the durable queue repository. onCount may be nil.
func NewQueue(repo store.QueueRepository, logger *zap.Logger, onCount func(int)) *Queue {
	if onCount == nil {
		onCount = func(int) {}
	}
	return &Queue{repo: repo, logger: logger, onCount: onCount}
}

// Enqueue stores a new pending change with a fresh id, the current timestamp
// and a zeroed retry counter, then publishes the updated pending count.
// A nil payload means the record is refetched from the local store at send
// time instead of shipping a snapshot.
func (q *Queue) Enqueue(ctx context.Context, entity domain.EntityType, action domain.ChangeAction, entityID string, payload json.RawMessage) (*domain.PendingChange, error) {
	change := &domain.PendingChange{
		ID:         uuid.NewString(),
		Entity:     entity,
		Action:     action,
		EntityID:   entityID,
		Payload:    payload,
		EnqueuedAt: time.Now().UTC(),
	}
	if err := q.repo.Append(ctx, change); err != nil {
		return nil, fmt.Errorf("enqueue %s %s: %w", entity, entityID, err)
	}
	q.logger.Debug("change queued",
		zap.String("id", change.ID),
		zap.String("entity", string(entity)),
		zap.String("entityId", entityID))
	q.publishCount(ctx)
	return change, nil
}

// Drain walks the queue in order, transmitting each item via send. Successful
// items are removed. Failed items get their retry counter bumped and stay
// queued until the counter reaches domain.MaxChangeRetries, at which point
// the item is evicted regardless of outcome: a poison item is dropped, not
// retried forever.
//
// Per-item transmission failures are not drain failures; they are recorded in
// the retry counters and the next drain tries again. Only local storage
// errors abort the drain.
func (q *Queue) Drain(ctx context.Context, send Sender) error {
	changes, err := q.repo.List(ctx)
	if err != nil {
		return fmt.Errorf("list pending changes: %w", err)
	}
	for _, change := range changes {
		if err := ctx.Err(); err != nil {
			return err
		}
		sendErr := send(ctx, change)
		if sendErr == nil {
			if err := q.repo.Remove(ctx, change.ID); err != nil {
				return fmt.Errorf("remove sent change %s: %w", change.ID, err)
			}
			continue
		}

		change.Retries++
		q.logger.Warn("change transmission failed",
			zap.String("id", change.ID),
			zap.String("entity", string(change.Entity)),
			zap.Int("retries", change.Retries),
			zap.Error(sendErr))

		if change.Retries >= domain.MaxChangeRetries {
			// Ceiling reached: drop it so one permanently failing item
			// cannot grow the queue without bound.
			q.logger.Error("change evicted after retry ceiling",
				zap.String("id", change.ID),
				zap.String("entity", string(change.Entity)),
				zap.String("entityId", change.EntityID))
			if err := q.repo.Remove(ctx, change.ID); err != nil {
				return fmt.Errorf("evict change %s: %w", change.ID, err)
			}
			continue
		}
		if err := q.repo.SetRetries(ctx, change.ID, change.Retries); err != nil {
			return fmt.Errorf("update retries for %s: %w", change.ID, err)
		}
	}
	q.publishCount(ctx)
	return nil
}

// Count returns the number of queued changes.
func (q *Queue) Count(ctx context.Context) (int, error) {
	return q.repo.Count(ctx)
}

func (q *Queue) publishCount(ctx context.Context) {
	n, err := q.repo.Count(ctx)
	if err != nil {
		q.logger.Warn("pending count unavailable", zap.Error(err))
		return
	}
	q.onCount(n)
}
