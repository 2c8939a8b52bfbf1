package domain_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Jollyhrothgar/github-fitness-sub000/internal/domain"
)

func TestEffectiveTime(t *testing.T) {
	start := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)

	inProgress := domain.WorkoutLog{SessionID: "s1", StartedAt: start}
	assert.Equal(t, start, inProgress.EffectiveTime())
	assert.False(t, inProgress.Completed())

	completed := domain.WorkoutLog{SessionID: "s1", StartedAt: start, EndedAt: &end}
	assert.Equal(t, end, completed.EffectiveTime())
	assert.True(t, completed.Completed())
}

func TestEstimateOneRepMax(t *testing.T) {
	est := domain.EstimateOneRepMax(100, 5, false)
	require.NotNil(t, est)
	// Epley: 100 * (1 + 5/30)
	assert.InDelta(t, 116.67, *est, 0.01)

	assert.Nil(t, domain.EstimateOneRepMax(100, 5, true), "warmup sets carry no estimate")
	assert.Nil(t, domain.EstimateOneRepMax(100, 0, false))
	assert.Nil(t, domain.EstimateOneRepMax(0, 5, false))
}
