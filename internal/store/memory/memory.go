// Package memory provides an in-memory store.Store used by tests and by the
// two-device sync scenarios, where each fake device gets its own instance.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/Jollyhrothgar/github-fitness-sub000/internal/domain"
	"github.com/Jollyhrothgar/github-fitness-sub000/internal/store"
)

// Store keeps everything in maps guarded by one mutex. Good enough for the
// cooperative single-flight access pattern the sync engine guarantees.
type Store struct {
	mu         sync.Mutex
	logs       map[string]domain.WorkoutLog
	exercises  map[string]domain.ExerciseDefinition
	plans      map[string]domain.WorkoutPlan
	tombstones map[string]domain.Tombstone
	queue      []domain.PendingChange
	settings   map[string]string
}

// New returns an empty in-memory store.
func New() *Store {
	return &Store{
		logs:       make(map[string]domain.WorkoutLog),
		exercises:  make(map[string]domain.ExerciseDefinition),
		plans:      make(map[string]domain.WorkoutPlan),
		tombstones: make(map[string]domain.Tombstone),
		settings:   make(map[string]string),
	}
}

func (s *Store) Logs() store.LogRepository             { return (*logRepo)(s) }
func (s *Store) Exercises() store.ExerciseRepository   { return (*exerciseRepo)(s) }
func (s *Store) Plans() store.PlanRepository           { return (*planRepo)(s) }
func (s *Store) Tombstones() store.TombstoneRepository { return (*tombstoneRepo)(s) }
func (s *Store) Queue() store.QueueRepository          { return (*queueRepo)(s) }
func (s *Store) Settings() store.SettingsRepository    { return (*settingsRepo)(s) }
func (s *Store) Close() error                          { return nil }

type logRepo Store

func (r *logRepo) List(ctx context.Context) ([]domain.WorkoutLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	logs := make([]domain.WorkoutLog, 0, len(r.logs))
	for _, l := range r.logs {
		logs = append(logs, l)
	}
	sort.Slice(logs, func(i, j int) bool { return logs[i].StartedAt.After(logs[j].StartedAt) })
	return logs, nil
}

func (r *logRepo) Get(ctx context.Context, sessionID string) (*domain.WorkoutLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.logs[sessionID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &l, nil
}

func (r *logRepo) Put(ctx context.Context, l *domain.WorkoutLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logs[l.SessionID] = *l
	return nil
}

func (r *logRepo) Delete(ctx context.Context, sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.logs, sessionID)
	return nil
}

func (r *logRepo) ReplaceAll(ctx context.Context, logs []domain.WorkoutLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logs = make(map[string]domain.WorkoutLog, len(logs))
	for _, l := range logs {
		r.logs[l.SessionID] = l
	}
	return nil
}

type exerciseRepo Store

func (r *exerciseRepo) List(ctx context.Context) ([]domain.ExerciseDefinition, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	exercises := make([]domain.ExerciseDefinition, 0, len(r.exercises))
	for _, ex := range r.exercises {
		exercises = append(exercises, ex)
	}
	sort.Slice(exercises, func(i, j int) bool { return exercises[i].ID < exercises[j].ID })
	return exercises, nil
}

func (r *exerciseRepo) Put(ctx context.Context, ex *domain.ExerciseDefinition) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.exercises[ex.ID] = *ex
	return nil
}

func (r *exerciseRepo) ReplaceAll(ctx context.Context, exercises []domain.ExerciseDefinition) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.exercises = make(map[string]domain.ExerciseDefinition, len(exercises))
	for _, ex := range exercises {
		r.exercises[ex.ID] = ex
	}
	return nil
}

type planRepo Store

func (r *planRepo) List(ctx context.Context) ([]domain.WorkoutPlan, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	plans := make([]domain.WorkoutPlan, 0, len(r.plans))
	for _, p := range r.plans {
		plans = append(plans, p)
	}
	sort.Slice(plans, func(i, j int) bool { return plans[i].ID < plans[j].ID })
	return plans, nil
}

func (r *planRepo) Get(ctx context.Context, planID string) (*domain.WorkoutPlan, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.plans[planID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &p, nil
}

func (r *planRepo) Put(ctx context.Context, p *domain.WorkoutPlan) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.plans[p.ID] = *p
	return nil
}

func (r *planRepo) Delete(ctx context.Context, planID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.plans, planID)
	return nil
}

type tombstoneRepo Store

func (r *tombstoneRepo) List(ctx context.Context) ([]domain.Tombstone, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	tombstones := make([]domain.Tombstone, 0, len(r.tombstones))
	for _, t := range r.tombstones {
		tombstones = append(tombstones, t)
	}
	sort.Slice(tombstones, func(i, j int) bool { return tombstones[i].DeletedAt.Before(tombstones[j].DeletedAt) })
	return tombstones, nil
}

func (r *tombstoneRepo) Put(ctx context.Context, t *domain.Tombstone) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if prev, ok := r.tombstones[t.SessionID]; !ok || t.DeletedAt.Before(prev.DeletedAt) {
		r.tombstones[t.SessionID] = *t
	}
	return nil
}

func (r *tombstoneRepo) ReplaceAll(ctx context.Context, tombstones []domain.Tombstone) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tombstones = make(map[string]domain.Tombstone, len(tombstones))
	for _, t := range tombstones {
		r.tombstones[t.SessionID] = t
	}
	return nil
}

type queueRepo Store

func (r *queueRepo) List(ctx context.Context) ([]domain.PendingChange, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.PendingChange, len(r.queue))
	copy(out, r.queue)
	return out, nil
}

func (r *queueRepo) Append(ctx context.Context, c *domain.PendingChange) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.queue = append(r.queue, *c)
	return nil
}

func (r *queueRepo) Remove(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, c := range r.queue {
		if c.ID == id {
			r.queue = append(r.queue[:i], r.queue[i+1:]...)
			return nil
		}
	}
	return nil
}

func (r *queueRepo) SetRetries(ctx context.Context, id string, retries int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.queue {
		if r.queue[i].ID == id {
			r.queue[i].Retries = retries
			return nil
		}
	}
	return store.ErrNotFound
}

func (r *queueRepo) Count(ctx context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.queue), nil
}

type settingsRepo Store

func (r *settingsRepo) Get(ctx context.Context, key string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.settings[key]
	if !ok {
		return "", store.ErrNotFound
	}
	return v, nil
}

func (r *settingsRepo) Set(ctx context.Context, key, value string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.settings[key] = value
	return nil
}

func (r *settingsRepo) Delete(ctx context.Context, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.settings, key)
	return nil
}
