// internal/domain/tombstone.go
package domain

import "time"

// Tombstone marks a workout log as deleted. Once a tombstone exists for a
// session id, that id must never reappear as a live log on any device,
// regardless of where or when an old copy resurfaces.
type Tombstone struct {
	SessionID string    `json:"sessionId"`
	DeviceID  string    `json:"deviceId"`
	DeletedAt time.Time `json:"deletedAt"`
}
