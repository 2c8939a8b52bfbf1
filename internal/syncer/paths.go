package syncer

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Jollyhrothgar/github-fitness-sub000/internal/domain"
)

// Remote repository layout. These paths are the wire contract every device
// must agree on; changing them strands data written by older clients.
const (
	pathExercises  = "data/exercises.json"
	pathTombstones = "data/tombstones.json"
	pathPlansDir   = "data/plans"
	pathLogsDir    = "data/logs"
)

// planPath returns the whole-document file for one plan.
func planPath(planID string) string {
	return fmt.Sprintf("%s/%s.json", pathPlansDir, planID)
}

// logPath returns the append-only file a log belongs to: one file per device
// per calendar day of the session start.
func logPath(l *domain.WorkoutLog) string {
	return fmt.Sprintf("%s/%s-%s.jsonl", pathLogsDir, l.StartedAt.UTC().Format("2006-01-02"), l.DeviceID)
}

// parseLogLines decodes a newline-delimited JSON log file. Lines that fail to
// parse are skipped rather than failing the pull; a single corrupt append
// must not wedge every device. Duplicate session ids within a file happen
// when an updated log is re-appended, so the copy with the later effective
// timestamp wins, mirroring the merge rule.
func parseLogLines(content string) []domain.WorkoutLog {
	byID := make(map[string]domain.WorkoutLog)
	var order []string
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		var l domain.WorkoutLog
		if err := json.Unmarshal([]byte(line), &l); err != nil || l.SessionID == "" {
			continue
		}
		prev, ok := byID[l.SessionID]
		if !ok {
			order = append(order, l.SessionID)
			byID[l.SessionID] = l
		} else if l.EffectiveTime().After(prev.EffectiveTime()) {
			byID[l.SessionID] = l
		}
	}
	logs := make([]domain.WorkoutLog, 0, len(byID))
	for _, id := range order {
		logs = append(logs, byID[id])
	}
	return logs
}
