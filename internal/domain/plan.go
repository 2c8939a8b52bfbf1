// internal/domain/plan.go
package domain

// WorkoutPlan is a named multi-day exercise schedule.
// Plans are never merged field-by-field: remote plans missing locally are
// adopted wholesale, and local plans are re-pushed in full every sync cycle.
type WorkoutPlan struct {
	ID   string    `json:"id"`
	Name string    `json:"name"`
	Days []PlanDay `json:"days"`
}

// PlanDay is one scheduled day within a plan.
type PlanDay struct {
	Day     string      `json:"day"` // e.g. "day-1"
	Name    string      `json:"name,omitempty"`
	Entries []PlanEntry `json:"entries"`
}

// PlanEntry prescribes one exercise for a day.
type PlanEntry struct {
	ExerciseID string  `json:"exerciseId"`
	Sets       int     `json:"sets"`
	Reps       int     `json:"reps"`
	TargetRPE  float64 `json:"targetRpe,omitempty"`
}
