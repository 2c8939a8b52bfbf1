// Package sqlite provides the on-device SQLite implementation of the
// local store. Records are kept as JSON blobs keyed by their ids, which
// keeps the schema stable while the entity shapes evolve.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/Jollyhrothgar/github-fitness-sub000/internal/domain"
	"github.com/Jollyhrothgar/github-fitness-sub000/internal/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS logs (
	session_id TEXT PRIMARY KEY,
	started_at TIMESTAMP NOT NULL,
	data       TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS exercises (
	id   TEXT PRIMARY KEY,
	data TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS plans (
	id   TEXT PRIMARY KEY,
	data TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS tombstones (
	session_id TEXT PRIMARY KEY,
	device_id  TEXT NOT NULL,
	deleted_at TIMESTAMP NOT NULL
);
CREATE TABLE IF NOT EXISTS pending_changes (
	seq         INTEGER PRIMARY KEY AUTOINCREMENT,
	id          TEXT NOT NULL UNIQUE,
	entity      TEXT NOT NULL,
	action      TEXT NOT NULL,
	entity_id   TEXT NOT NULL,
	payload     TEXT,
	enqueued_at TIMESTAMP NOT NULL,
	retries     INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS settings (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`

// Store implements store.Store on a single SQLite database file.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) the database at path and ensures the
// schema exists. Pass ":memory:" for an ephemeral store.
func Open(path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000", path)
	if path == ":memory:" {
		dsn = ":memory:"
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite store: %w", err)
	}
	// A single writer keeps the cooperative single-flight model honest.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Logs() store.LogRepository             { return (*logRepo)(s) }
func (s *Store) Exercises() store.ExerciseRepository   { return (*exerciseRepo)(s) }
func (s *Store) Plans() store.PlanRepository           { return (*planRepo)(s) }
func (s *Store) Tombstones() store.TombstoneRepository { return (*tombstoneRepo)(s) }
func (s *Store) Queue() store.QueueRepository          { return (*queueRepo)(s) }
func (s *Store) Settings() store.SettingsRepository    { return (*settingsRepo)(s) }

func (s *Store) Close() error {
	return s.db.Close()
}

// --- logs ---

type logRepo Store

func (r *logRepo) List(ctx context.Context) ([]domain.WorkoutLog, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT data FROM logs ORDER BY started_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list logs: %w", err)
	}
	defer rows.Close()

	var logs []domain.WorkoutLog
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var l domain.WorkoutLog
		if err := json.Unmarshal([]byte(raw), &l); err != nil {
			return nil, fmt.Errorf("decode log row: %w", err)
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

func (r *logRepo) Get(ctx context.Context, sessionID string) (*domain.WorkoutLog, error) {
	var raw string
	err := r.db.QueryRowContext(ctx, `SELECT data FROM logs WHERE session_id = ?`, sessionID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var l domain.WorkoutLog
	if err := json.Unmarshal([]byte(raw), &l); err != nil {
		return nil, fmt.Errorf("decode log %s: %w", sessionID, err)
	}
	return &l, nil
}

func (r *logRepo) Put(ctx context.Context, l *domain.WorkoutLog) error {
	raw, err := json.Marshal(l)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO logs (session_id, started_at, data) VALUES (?, ?, ?)
		 ON CONFLICT(session_id) DO UPDATE SET started_at = excluded.started_at, data = excluded.data`,
		l.SessionID, l.StartedAt, string(raw))
	return err
}

func (r *logRepo) Delete(ctx context.Context, sessionID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM logs WHERE session_id = ?`, sessionID)
	return err
}

func (r *logRepo) ReplaceAll(ctx context.Context, logs []domain.WorkoutLog) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM logs`); err != nil {
		return err
	}
	for i := range logs {
		raw, err := json.Marshal(&logs[i])
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO logs (session_id, started_at, data) VALUES (?, ?, ?)`,
			logs[i].SessionID, logs[i].StartedAt, string(raw)); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// --- exercises ---

type exerciseRepo Store

func (r *exerciseRepo) List(ctx context.Context) ([]domain.ExerciseDefinition, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT data FROM exercises ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list exercises: %w", err)
	}
	defer rows.Close()

	var exercises []domain.ExerciseDefinition
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var ex domain.ExerciseDefinition
		if err := json.Unmarshal([]byte(raw), &ex); err != nil {
			return nil, fmt.Errorf("decode exercise row: %w", err)
		}
		exercises = append(exercises, ex)
	}
	return exercises, rows.Err()
}

func (r *exerciseRepo) Put(ctx context.Context, ex *domain.ExerciseDefinition) error {
	raw, err := json.Marshal(ex)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO exercises (id, data) VALUES (?, ?)
		 ON CONFLICT(id) DO UPDATE SET data = excluded.data`,
		ex.ID, string(raw))
	return err
}

func (r *exerciseRepo) ReplaceAll(ctx context.Context, exercises []domain.ExerciseDefinition) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM exercises`); err != nil {
		return err
	}
	for i := range exercises {
		raw, err := json.Marshal(&exercises[i])
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO exercises (id, data) VALUES (?, ?)`, exercises[i].ID, string(raw)); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// --- plans ---

type planRepo Store

func (r *planRepo) List(ctx context.Context) ([]domain.WorkoutPlan, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT data FROM plans ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list plans: %w", err)
	}
	defer rows.Close()

	var plans []domain.WorkoutPlan
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var p domain.WorkoutPlan
		if err := json.Unmarshal([]byte(raw), &p); err != nil {
			return nil, fmt.Errorf("decode plan row: %w", err)
		}
		plans = append(plans, p)
	}
	return plans, rows.Err()
}

func (r *planRepo) Get(ctx context.Context, planID string) (*domain.WorkoutPlan, error) {
	var raw string
	err := r.db.QueryRowContext(ctx, `SELECT data FROM plans WHERE id = ?`, planID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var p domain.WorkoutPlan
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return nil, fmt.Errorf("decode plan %s: %w", planID, err)
	}
	return &p, nil
}

func (r *planRepo) Put(ctx context.Context, p *domain.WorkoutPlan) error {
	raw, err := json.Marshal(p)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO plans (id, data) VALUES (?, ?)
		 ON CONFLICT(id) DO UPDATE SET data = excluded.data`,
		p.ID, string(raw))
	return err
}

func (r *planRepo) Delete(ctx context.Context, planID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM plans WHERE id = ?`, planID)
	return err
}

// --- tombstones ---

type tombstoneRepo Store

func (r *tombstoneRepo) List(ctx context.Context) ([]domain.Tombstone, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT session_id, device_id, deleted_at FROM tombstones ORDER BY deleted_at`)
	if err != nil {
		return nil, fmt.Errorf("list tombstones: %w", err)
	}
	defer rows.Close()

	var tombstones []domain.Tombstone
	for rows.Next() {
		var t domain.Tombstone
		if err := rows.Scan(&t.SessionID, &t.DeviceID, &t.DeletedAt); err != nil {
			return nil, err
		}
		tombstones = append(tombstones, t)
	}
	return tombstones, rows.Err()
}

func (r *tombstoneRepo) Put(ctx context.Context, t *domain.Tombstone) error {
	// Earliest deletion wins, mirroring the merge rule.
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO tombstones (session_id, device_id, deleted_at) VALUES (?, ?, ?)
		 ON CONFLICT(session_id) DO UPDATE SET
			device_id  = CASE WHEN excluded.deleted_at < deleted_at THEN excluded.device_id ELSE device_id END,
			deleted_at = CASE WHEN excluded.deleted_at < deleted_at THEN excluded.deleted_at ELSE deleted_at END`,
		t.SessionID, t.DeviceID, t.DeletedAt)
	return err
}

func (r *tombstoneRepo) ReplaceAll(ctx context.Context, tombstones []domain.Tombstone) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM tombstones`); err != nil {
		return err
	}
	for _, t := range tombstones {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO tombstones (session_id, device_id, deleted_at) VALUES (?, ?, ?)`,
			t.SessionID, t.DeviceID, t.DeletedAt); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// --- pending-change queue ---

type queueRepo Store

func (r *queueRepo) List(ctx context.Context) ([]domain.PendingChange, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, entity, action, entity_id, payload, enqueued_at, retries
		 FROM pending_changes ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("list pending changes: %w", err)
	}
	defer rows.Close()

	var changes []domain.PendingChange
	for rows.Next() {
		var c domain.PendingChange
		var payload sql.NullString
		if err := rows.Scan(&c.ID, &c.Entity, &c.Action, &c.EntityID, &payload, &c.EnqueuedAt, &c.Retries); err != nil {
			return nil, err
		}
		if payload.Valid {
			c.Payload = json.RawMessage(payload.String)
		}
		changes = append(changes, c)
	}
	return changes, rows.Err()
}

func (r *queueRepo) Append(ctx context.Context, c *domain.PendingChange) error {
	var payload any
	if c.Payload != nil {
		payload = string(c.Payload)
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO pending_changes (id, entity, action, entity_id, payload, enqueued_at, retries)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.Entity, c.Action, c.EntityID, payload, c.EnqueuedAt, c.Retries)
	return err
}

func (r *queueRepo) Remove(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM pending_changes WHERE id = ?`, id)
	return err
}

func (r *queueRepo) SetRetries(ctx context.Context, id string, retries int) error {
	res, err := r.db.ExecContext(ctx, `UPDATE pending_changes SET retries = ? WHERE id = ?`, retries, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r *queueRepo) Count(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM pending_changes`).Scan(&n)
	return n, err
}

// --- settings ---

type settingsRepo Store

func (r *settingsRepo) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := r.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", store.ErrNotFound
	}
	return value, err
}

func (r *settingsRepo) Set(ctx context.Context, key, value string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO settings (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value)
	return err
}

func (r *settingsRepo) Delete(ctx context.Context, key string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM settings WHERE key = ?`, key)
	return err
}
