// internal/domain/pending.go
package domain

import (
	"encoding/json"
	"time"
)

// EntityType identifies what kind of record a pending change carries.
type EntityType string

const (
	EntityLog      EntityType = "log"
	EntityExercise EntityType = "exercise"
	EntityPlan     EntityType = "plan"
)

// ChangeAction is the mutation a pending change represents. Logs never use
// a delete action; deletions travel as tombstones instead.
type ChangeAction string

const (
	ActionCreate ChangeAction = "create"
	ActionUpdate ChangeAction = "update"
)

// MaxChangeRetries is the transmission retry ceiling. An item that has failed
// this many times is evicted from the queue rather than retried forever.
const MaxChangeRetries = 5

// PendingChange is one queued outbound mutation awaiting transmission.
// A nil Payload means "refetch the current record from the local store at
// send time" rather than shipping a stale snapshot.
type PendingChange struct {
	ID         string          `json:"id"`
	Entity     EntityType      `json:"entity"`
	Action     ChangeAction    `json:"action"`
	EntityID   string          `json:"entityId"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	EnqueuedAt time.Time       `json:"enqueuedAt"`
	Retries    int             `json:"retries"`
}
