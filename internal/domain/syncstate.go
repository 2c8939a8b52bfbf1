// internal/domain/syncstate.go
package domain

import "time"

// SyncStatus is the orchestrator's observable state.
type SyncStatus string

const (
	StatusNotConfigured SyncStatus = "not_configured"
	StatusIdle          SyncStatus = "idle"
	StatusSyncing       SyncStatus = "syncing"
	StatusOffline       SyncStatus = "offline"
	StatusError         SyncStatus = "error"
)

// SyncState is the snapshot broadcast to subscribers on every transition.
// Consumers only ever observe this; raw errors stay inside the orchestrator.
type SyncState struct {
	Status       SyncStatus `json:"status"`
	LastSyncedAt *time.Time `json:"lastSyncedAt,omitempty"`
	PendingCount int        `json:"pendingCount"`
	LastError    string     `json:"lastError,omitempty"`
}
