// internal/domain/log.go
package domain

import "time"

// WorkoutLog represents a single workout session, completed or in progress.
// SessionID is generated on the device that started the workout and is never
// reused; every merge rule keys on it.
type WorkoutLog struct {
	SessionID string           `json:"sessionId"`
	PlanID    string           `json:"planId,omitempty"`
	Day       string           `json:"day,omitempty"` // e.g. "day-1", "push-a"
	StartedAt time.Time        `json:"startedAt"`
	EndedAt   *time.Time       `json:"endedAt,omitempty"` // nil while the session is still running
	DeviceID  string           `json:"deviceId"`
	Exercises []LoggedExercise `json:"exercises"`
}

// LoggedExercise groups the sets performed for one exercise within a session.
type LoggedExercise struct {
	ExerciseID string      `json:"exerciseId"`
	Name       string      `json:"name"`
	Sets       []LoggedSet `json:"sets"`
}

// LoggedSet is one performed set.
type LoggedSet struct {
	Weight       float64   `json:"weight"`
	Reps         int       `json:"reps"`
	RPE          float64   `json:"rpe,omitempty"`
	Warmup       bool      `json:"warmup,omitempty"`
	LoggedAt     time.Time `json:"loggedAt"`
	Estimated1RM *float64  `json:"estimated1rm,omitempty"`
}

// Completed reports whether the session has been finalized.
func (l *WorkoutLog) Completed() bool {
	return l.EndedAt != nil
}

// EffectiveTime is the timestamp used to decide which copy of a session wins
// a merge: the end timestamp when the session is finished, otherwise the start
// timestamp. A completed copy therefore always beats the in-progress copy it
// was completed from.
func (l *WorkoutLog) EffectiveTime() time.Time {
	if l.EndedAt != nil {
		return *l.EndedAt
	}
	return l.StartedAt
}

// EstimateOneRepMax computes an Epley-formula estimate for a set. Returns nil
// for warmup sets and zero-rep entries, which carry no signal.
func EstimateOneRepMax(weight float64, reps int, warmup bool) *float64 {
	if warmup || reps <= 0 || weight <= 0 {
		return nil
	}
	est := weight * (1 + float64(reps)/30.0)
	return &est
}
