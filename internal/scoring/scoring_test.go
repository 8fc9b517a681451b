package scoring_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trivia-engine/internal/scoring"
)

func TestScorer_Score(t *testing.T) {
	s := scoring.Default()

	tests := map[string]struct {
		correct      bool
		responseTime time.Duration
		want         int
	}{
		"instant correct answer earns the full budget": {
			correct: true, responseTime: 0, want: 1000,
		},
		"correct answer after 4s earns 800": {
			correct: true, responseTime: 4 * time.Second, want: 800,
		},
		"correct answer after 2.5s rounds to nearest": {
			correct: true, responseTime: 2500 * time.Millisecond, want: 875,
		},
		"correct answer at 10ms rounds half up": {
			correct: true, responseTime: 10 * time.Millisecond, want: 1000,
		},
		"correct answer at the reference window earns nothing": {
			correct: true, responseTime: 20 * time.Second, want: 0,
		},
		"slow correct answer is clamped at zero": {
			correct: true, responseTime: time.Minute, want: 0,
		},
		"negative response time is clamped at the budget": {
			correct: true, responseTime: -time.Second, want: 1000,
		},
		"wrong answer earns nothing even when instant": {
			correct: false, responseTime: 0, want: 0,
		},
		"wrong answer earns nothing when slow": {
			correct: false, responseTime: time.Hour, want: 0,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			got := s.Score(tt.correct, tt.responseTime, 20*time.Second)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestScorer_ScoreIgnoresTimeLimit(t *testing.T) {
	s := scoring.Default()

	short := s.Score(true, 4*time.Second, 5*time.Second)
	long := s.Score(true, 4*time.Second, 60*time.Second)
	require.Equal(t, short, long)
}

func TestScorer_ScoreIsMonotonic(t *testing.T) {
	s := scoring.Default()

	prev := s.Score(true, 0, 0)
	require.Equal(t, s.MaxPoints, prev)
	for rt := time.Duration(0); rt <= s.ReferenceWindow; rt += 37 * time.Millisecond {
		got := s.Score(true, rt, 0)
		require.LessOrEqual(t, got, prev, "score must not increase at %s", rt)
		require.GreaterOrEqual(t, got, 0)
		prev = got
	}
	require.Equal(t, 0, s.Score(true, s.ReferenceWindow, 0))
}

func TestScorer_WithMaxPoints(t *testing.T) {
	s := scoring.Default().WithMaxPoints(500)
	require.Equal(t, 400, s.Score(true, 4*time.Second, 0))

	unchanged := scoring.Default().WithMaxPoints(0)
	require.Equal(t, scoring.DefaultMaxPoints, unchanged.MaxPoints)
}

func TestScorer_ZeroValueUsesDefaults(t *testing.T) {
	var s scoring.Scorer
	require.Equal(t, 800, s.Score(true, 4*time.Second, 0))
}
