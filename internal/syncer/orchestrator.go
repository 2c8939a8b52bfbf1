// Package syncer contains the multi-device synchronization engine: the
// durable pending-change queue and the orchestrator that sequences
// drain → pull → merge → apply → push against the remote repository.
package syncer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	gosync "sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Jollyhrothgar/github-fitness-sub000/internal/domain"
	"github.com/Jollyhrothgar/github-fitness-sub000/internal/merge"
	"github.com/Jollyhrothgar/github-fitness-sub000/internal/remote"
	"github.com/Jollyhrothgar/github-fitness-sub000/internal/store"
)

// ClientFactory builds a remote client from stored credentials. Tests inject
// a factory returning a fake; production wires remote.NewGitHubClient.
type ClientFactory func(owner, repo, token string) remote.Client

// Orchestrator owns the sync state machine. It is the only component that
// schedules side effects; the merge rules it applies are pure functions.
//
// All mutations of the local store during a cycle happen from a single
// in-flight sync: the syncing guard refuses overlapping cycles, so a
// reconnect event firing while a manual sync runs cannot interleave two
// merges against the same store.
type Orchestrator struct {
	store     store.Store
	newClient ClientFactory
	logger    *zap.Logger
	queue     *Queue

	mu          gosync.Mutex
	client      remote.Client
	deviceID    string
	online      bool
	syncing     bool
	state       domain.SyncState
	subscribers map[int]func(domain.SyncState)
	nextSub     int
}

// New restores the orchestrator from persisted settings: device identity,
// credentials, last-sync timestamp and the pending count all survive process
// restarts. The initial status derives from whether credentials exist.
func New(ctx context.Context, st store.Store, factory ClientFactory, logger *zap.Logger) (*Orchestrator, error) {
	o := &Orchestrator{
		store:       st,
		newClient:   factory,
		logger:      logger,
		online:      true,
		subscribers: make(map[int]func(domain.SyncState)),
	}
	o.queue = NewQueue(st.Queue(), logger, func(n int) {
		o.setState(func(s *domain.SyncState) { s.PendingCount = n })
	})

	settings := st.Settings()
	deviceID, err := settings.Get(ctx, store.SettingDeviceID)
	if errors.Is(err, store.ErrNotFound) {
		deviceID = uuid.NewString()[:8]
		if err := settings.Set(ctx, store.SettingDeviceID, deviceID); err != nil {
			return nil, fmt.Errorf("persist device id: %w", err)
		}
	} else if err != nil {
		return nil, fmt.Errorf("load device id: %w", err)
	}
	o.deviceID = deviceID

	owner, errOwner := settings.Get(ctx, store.SettingRemoteOwner)
	repo, errRepo := settings.Get(ctx, store.SettingRemoteRepo)
	token, errToken := settings.Get(ctx, store.SettingAccessToken)
	if errOwner == nil && errRepo == nil && errToken == nil {
		o.client = factory(owner, repo, token)
	}

	lastSync, err := store.LastSyncedAt(ctx, settings)
	if err != nil {
		return nil, err
	}
	pending, err := o.queue.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("count pending changes: %w", err)
	}

	status := domain.StatusNotConfigured
	if o.client != nil {
		status = domain.StatusIdle
	}
	o.state = domain.SyncState{
		Status:       status,
		LastSyncedAt: lastSync,
		PendingCount: pending,
	}
	logger.Info("sync engine initialized",
		zap.String("device", deviceID),
		zap.String("status", string(status)),
		zap.Int("pending", pending))
	return o, nil
}

// DeviceID returns this device's stable identifier.
func (o *Orchestrator) DeviceID() string {
	return o.deviceID
}

// State returns the current snapshot.
func (o *Orchestrator) State() domain.SyncState {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Subscribe registers an observer that receives a snapshot on every state
// transition, starting with the current one. The returned function
// unsubscribes.
func (o *Orchestrator) Subscribe(fn func(domain.SyncState)) func() {
	o.mu.Lock()
	id := o.nextSub
	o.nextSub++
	o.subscribers[id] = fn
	current := o.state
	o.mu.Unlock()

	fn(current)
	return func() {
		o.mu.Lock()
		delete(o.subscribers, id)
		o.mu.Unlock()
	}
}

// setState applies a mutation under the lock, then notifies subscribers
// outside it.
func (o *Orchestrator) setState(mutate func(*domain.SyncState)) {
	o.mu.Lock()
	mutate(&o.state)
	snapshot := o.state
	observers := make([]func(domain.SyncState), 0, len(o.subscribers))
	for _, fn := range o.subscribers {
		observers = append(observers, fn)
	}
	o.mu.Unlock()

	for _, fn := range observers {
		fn(snapshot)
	}
}

// Configure stores the credential and repository coordinates, verifies access
// once, and kicks off an immediate full sync attempt. The sync attempt's
// outcome surfaces through SyncState rather than the return value.
func (o *Orchestrator) Configure(ctx context.Context, owner, repo, token string) error {
	client := o.newClient(owner, repo, token)
	if err := client.VerifyAccess(ctx); err != nil {
		return err
	}

	settings := o.store.Settings()
	if err := settings.Set(ctx, store.SettingRemoteOwner, owner); err != nil {
		return err
	}
	if err := settings.Set(ctx, store.SettingRemoteRepo, repo); err != nil {
		return err
	}
	if err := settings.Set(ctx, store.SettingAccessToken, token); err != nil {
		return err
	}

	o.mu.Lock()
	o.client = client
	online := o.online
	o.mu.Unlock()

	if online {
		o.setState(func(s *domain.SyncState) { s.Status = domain.StatusIdle; s.LastError = "" })
		_ = o.Sync(ctx)
	} else {
		o.setState(func(s *domain.SyncState) { s.Status = domain.StatusOffline })
	}
	o.logger.Info("remote configured", zap.String("owner", owner), zap.String("repo", repo))
	return nil
}

// Disconnect clears the credential and returns to not_configured. Queue
// contents are kept: reconnecting later resumes where the device left off.
func (o *Orchestrator) Disconnect(ctx context.Context) error {
	settings := o.store.Settings()
	for _, key := range []string{store.SettingAccessToken, store.SettingRemoteOwner, store.SettingRemoteRepo} {
		if err := settings.Delete(ctx, key); err != nil {
			return err
		}
	}
	o.mu.Lock()
	o.client = nil
	o.mu.Unlock()
	o.setState(func(s *domain.SyncState) {
		s.Status = domain.StatusNotConfigured
		s.LastError = ""
	})
	o.logger.Info("remote disconnected")
	return nil
}

// SetOnline feeds connectivity changes into the state machine. Going offline
// parks a configured engine in the offline state; coming back online returns
// to idle and triggers an automatic full sync.
func (o *Orchestrator) SetOnline(ctx context.Context, online bool) {
	o.mu.Lock()
	was := o.online
	o.online = online
	configured := o.client != nil
	o.mu.Unlock()

	if !configured || was == online {
		return
	}
	if !online {
		o.setState(func(s *domain.SyncState) { s.Status = domain.StatusOffline })
		return
	}
	o.setState(func(s *domain.SyncState) { s.Status = domain.StatusIdle })
	_ = o.Sync(ctx)
}

// Sync runs one full cycle. Not-configured and offline engines short-circuit
// without error (their state already says why nothing happened), and a cycle
// already in flight is not doubled up.
func (o *Orchestrator) Sync(ctx context.Context) error {
	o.mu.Lock()
	if o.client == nil || !o.online || o.syncing {
		o.mu.Unlock()
		return nil
	}
	o.syncing = true
	client := o.client
	o.mu.Unlock()

	o.setState(func(s *domain.SyncState) { s.Status = domain.StatusSyncing })
	start := time.Now()
	err := o.fullSync(ctx, client)

	o.mu.Lock()
	o.syncing = false
	o.mu.Unlock()

	if err != nil {
		o.logger.Error("sync cycle failed", zap.Error(err), zap.Duration("elapsed", time.Since(start)))
		o.setState(func(s *domain.SyncState) {
			s.Status = domain.StatusError
			s.LastError = err.Error()
		})
		return err
	}

	now := time.Now().UTC()
	if err := store.SetLastSyncedAt(ctx, o.store.Settings(), now); err != nil {
		o.logger.Warn("last-sync timestamp not persisted", zap.Error(err))
	}
	o.setState(func(s *domain.SyncState) {
		s.Status = domain.StatusIdle
		s.LastSyncedAt = &now
		s.PendingCount = 0
		s.LastError = ""
	})
	o.logger.Info("sync cycle complete", zap.Duration("elapsed", time.Since(start)))
	return nil
}

// fullSync is the ten-step cycle. Any error aborts the remaining steps; the
// steps already applied stay applied, which is safe because every remote
// write is idempotent-by-content or last-write-wins and the next cycle
// re-derives everything from persisted state.
func (o *Orchestrator) fullSync(ctx context.Context, client remote.Client) error {
	// 1. Fail fast on credential or permission problems.
	if err := client.VerifyAccess(ctx); err != nil {
		return err
	}

	// 2. Make sure the shared documents exist so later reads and appends
	// have a consistent shape to work with.
	if err := o.ensureScaffold(ctx, client); err != nil {
		return err
	}

	// 3. Push already-known local mutations first so the pull below sees the
	// freshest remote state this device can produce.
	if err := o.queue.Drain(ctx, o.sender(client)); err != nil {
		return err
	}

	// 4. The four remote collections have no ordering dependency; pull them
	// concurrently.
	var (
		remoteLogs       []domain.WorkoutLog
		remoteExercises  []domain.ExerciseDefinition
		remotePlans      []domain.WorkoutPlan
		remoteTombstones []domain.Tombstone
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		remoteLogs, err = o.pullLogs(gctx, client)
		return err
	})
	g.Go(func() error {
		_, err := client.ReadDocument(gctx, pathExercises, &remoteExercises)
		return err
	})
	g.Go(func() error {
		var err error
		remotePlans, err = o.pullPlans(gctx, client)
		return err
	})
	g.Go(func() error {
		_, err := client.ReadDocument(gctx, pathTombstones, &remoteTombstones)
		return err
	})
	if err := g.Wait(); err != nil {
		return err
	}

	// 5. Local state.
	localLogs, err := o.store.Logs().List(ctx)
	if err != nil {
		return err
	}
	localExercises, err := o.store.Exercises().List(ctx)
	if err != nil {
		return err
	}
	localPlans, err := o.store.Plans().List(ctx)
	if err != nil {
		return err
	}
	localTombstones, err := o.store.Tombstones().List(ctx)
	if err != nil {
		return err
	}

	// 6. Merge: tombstones first, because the log merge needs the converged
	// deletion set.
	tombstones := merge.Tombstones(localTombstones, remoteTombstones)
	logs := merge.Logs(localLogs, remoteLogs, tombstones)
	exercises := merge.Exercises(localExercises, remoteExercises)

	// 7+8. Apply locally. Replacing the full collections both persists the
	// merge result and physically drops any log a tombstone now covers.
	if err := o.store.Logs().ReplaceAll(ctx, logs); err != nil {
		return err
	}
	if err := o.store.Exercises().ReplaceAll(ctx, exercises); err != nil {
		return err
	}
	if err := o.store.Tombstones().ReplaceAll(ctx, tombstones); err != nil {
		return err
	}
	localPlanIDs := make(map[string]struct{}, len(localPlans))
	for _, p := range localPlans {
		localPlanIDs[p.ID] = struct{}{}
	}
	for i := range remotePlans {
		if _, ok := localPlanIDs[remotePlans[i].ID]; ok {
			continue
		}
		if err := o.store.Plans().Put(ctx, &remotePlans[i]); err != nil {
			return err
		}
		localPlans = append(localPlans, remotePlans[i])
	}

	// 9. Push.
	if err := client.WriteDocument(ctx, pathExercises, exercises, "sync: update exercise library"); err != nil {
		return err
	}
	for i := range localPlans {
		p := &localPlans[i]
		if err := client.WriteDocument(ctx, planPath(p.ID), p, fmt.Sprintf("sync: update plan %s", p.ID)); err != nil {
			return err
		}
	}
	if len(tombstones) > 0 {
		if err := client.WriteDocument(ctx, pathTombstones, tombstones, "sync: update tombstones"); err != nil {
			return err
		}
	}
	remoteIDs := make(map[string]struct{}, len(remoteLogs))
	for _, l := range remoteLogs {
		remoteIDs[l.SessionID] = struct{}{}
	}
	for i := range logs {
		l := &logs[i]
		if _, ok := remoteIDs[l.SessionID]; ok {
			continue
		}
		if err := o.appendLog(ctx, client, l); err != nil {
			return err
		}
	}
	return nil
}

// ensureScaffold creates the shared whole-document files on first contact
// with an empty repository. Directories need no scaffolding; the contents
// API creates them implicitly on the first file write.
func (o *Orchestrator) ensureScaffold(ctx context.Context, client remote.Client) error {
	var probe json.RawMessage
	for path, empty := range map[string]any{
		pathExercises:  []domain.ExerciseDefinition{},
		pathTombstones: []domain.Tombstone{},
	} {
		found, err := client.ReadDocument(ctx, path, &probe)
		if err != nil {
			return err
		}
		if !found {
			if err := client.WriteDocument(ctx, path, empty, "sync: initialize "+path); err != nil {
				return err
			}
		}
	}
	return nil
}

// pullLogs reads every per-device-per-day log file and folds the records into
// one collection, keeping the most complete copy of any session that appears
// more than once.
func (o *Orchestrator) pullLogs(ctx context.Context, client remote.Client) ([]domain.WorkoutLog, error) {
	files, err := client.ListDirectory(ctx, pathLogsDir)
	if err != nil {
		return nil, err
	}
	var collected []domain.WorkoutLog
	for _, f := range files {
		if f.Dir || !strings.HasSuffix(f.Name, ".jsonl") {
			continue
		}
		content, found, err := client.ReadRawText(ctx, f.Path)
		if err != nil {
			return nil, err
		}
		if !found {
			continue
		}
		collected = append(collected, parseLogLines(content)...)
	}
	// Dedupe across files with the same recency rule the merge uses.
	return merge.Logs(collected, nil, nil), nil
}

// pullPlans reads every plan document.
func (o *Orchestrator) pullPlans(ctx context.Context, client remote.Client) ([]domain.WorkoutPlan, error) {
	files, err := client.ListDirectory(ctx, pathPlansDir)
	if err != nil {
		return nil, err
	}
	var plans []domain.WorkoutPlan
	for _, f := range files {
		if f.Dir || !strings.HasSuffix(f.Name, ".json") {
			continue
		}
		var p domain.WorkoutPlan
		found, err := client.ReadDocument(ctx, f.Path, &p)
		if err != nil {
			return nil, err
		}
		if found && p.ID != "" {
			plans = append(plans, p)
		}
	}
	return plans, nil
}

func (o *Orchestrator) appendLog(ctx context.Context, client remote.Client, l *domain.WorkoutLog) error {
	line, err := json.Marshal(l)
	if err != nil {
		return err
	}
	message := fmt.Sprintf("sync: log %s from %s", l.SessionID, l.DeviceID)
	return client.AppendLine(ctx, logPath(l), string(line), message)
}

// sender maps each queued entity type onto the remote write it requires.
func (o *Orchestrator) sender(client remote.Client) Sender {
	return func(ctx context.Context, change domain.PendingChange) error {
		switch change.Entity {
		case domain.EntityLog:
			var l domain.WorkoutLog
			if change.Payload != nil {
				if err := json.Unmarshal(change.Payload, &l); err != nil {
					return fmt.Errorf("decode queued log %s: %w", change.ID, err)
				}
			} else {
				found, err := o.store.Logs().Get(ctx, change.EntityID)
				if errors.Is(err, store.ErrNotFound) {
					// Deleted since it was queued; the tombstone path covers it.
					return nil
				}
				if err != nil {
					return err
				}
				l = *found
			}
			return o.appendLog(ctx, client, &l)

		case domain.EntityExercise:
			exercises, err := o.store.Exercises().List(ctx)
			if err != nil {
				return err
			}
			return client.WriteDocument(ctx, pathExercises, exercises, "sync: update exercise library")

		case domain.EntityPlan:
			var p domain.WorkoutPlan
			if change.Payload != nil {
				if err := json.Unmarshal(change.Payload, &p); err != nil {
					return fmt.Errorf("decode queued plan %s: %w", change.ID, err)
				}
			} else {
				found, err := o.store.Plans().Get(ctx, change.EntityID)
				if errors.Is(err, store.ErrNotFound) {
					return nil
				}
				if err != nil {
					return err
				}
				p = *found
			}
			return client.WriteDocument(ctx, planPath(p.ID), &p, fmt.Sprintf("sync: update plan %s", p.ID))

		default:
			// Unknown entity types are unsendable; report success so the
			// queue drops them instead of retrying forever.
			o.logger.Warn("dropping change with unknown entity",
				zap.String("id", change.ID), zap.String("entity", string(change.Entity)))
			return nil
		}
	}
}

// QueueLogSync enqueues a log mutation and, when the engine is online and
// configured, drains the queue right away for low-latency propagation. The
// full cycle stays the authority for convergence.
func (o *Orchestrator) QueueLogSync(ctx context.Context, sessionID string, action domain.ChangeAction) error {
	if _, err := o.queue.Enqueue(ctx, domain.EntityLog, action, sessionID, nil); err != nil {
		return err
	}
	return o.drainIfReady(ctx)
}

// QueueExercisesSync enqueues a rewrite of the shared exercise library.
func (o *Orchestrator) QueueExercisesSync(ctx context.Context) error {
	if _, err := o.queue.Enqueue(ctx, domain.EntityExercise, domain.ActionUpdate, "library", nil); err != nil {
		return err
	}
	return o.drainIfReady(ctx)
}

// QueuePlanSync enqueues a plan mutation.
func (o *Orchestrator) QueuePlanSync(ctx context.Context, planID string, action domain.ChangeAction) error {
	if _, err := o.queue.Enqueue(ctx, domain.EntityPlan, action, planID, nil); err != nil {
		return err
	}
	return o.drainIfReady(ctx)
}

func (o *Orchestrator) drainIfReady(ctx context.Context) error {
	o.mu.Lock()
	ready := o.client != nil && o.online && !o.syncing
	client := o.client
	o.mu.Unlock()
	if !ready {
		return nil
	}
	return o.queue.Drain(ctx, o.sender(client))
}

// DeleteLog removes a workout log. Once sync has been configured the delete
// writes a tombstone so the deletion outlives re-syncs from devices that
// still hold the old copy; before any configuration a bare local delete is
// enough. When online, a full cycle propagates the tombstone immediately.
func (o *Orchestrator) DeleteLog(ctx context.Context, sessionID string) error {
	o.mu.Lock()
	configured := o.client != nil
	o.mu.Unlock()

	if configured {
		t := domain.Tombstone{
			SessionID: sessionID,
			DeviceID:  o.deviceID,
			DeletedAt: time.Now().UTC(),
		}
		if err := o.store.Tombstones().Put(ctx, &t); err != nil {
			return fmt.Errorf("write tombstone for %s: %w", sessionID, err)
		}
	}
	if err := o.store.Logs().Delete(ctx, sessionID); err != nil {
		return fmt.Errorf("delete log %s: %w", sessionID, err)
	}
	o.logger.Info("log deleted", zap.String("session", sessionID), zap.Bool("tombstoned", configured))
	if configured {
		_ = o.Sync(ctx)
	}
	return nil
}
