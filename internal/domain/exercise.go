// internal/domain/exercise.go
package domain

// ExerciseDefinition is a named movement in the shared exercise library.
// The ID is stable and content-addressed: the same ID means the same exercise
// on every device, so merging never reconciles two definitions beyond
// "remote copy wins if present".
type ExerciseDefinition struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Equipment string `json:"equipment,omitempty"` // e.g. "barbell", "dumbbell", "bodyweight"
	Pattern   string `json:"pattern,omitempty"`   // e.g. "squat", "hinge", "press"
	Notes     string `json:"notes,omitempty"`
}
