// Package scoring turns answer correctness and response latency into points.
package scoring

import (
	"math"
	"time"
)

const (
	DefaultMaxPoints       = 1000
	DefaultReferenceWindow = 20 * time.Second
)

// Scorer decays points linearly over a fixed reference window. The window is
// deliberately independent from a question's own time limit.
type Scorer struct {
	MaxPoints       int
	ReferenceWindow time.Duration
}

// Default returns the scorer used when configuration leaves the values unset.
func Default() Scorer {
	return Scorer{MaxPoints: DefaultMaxPoints, ReferenceWindow: DefaultReferenceWindow}
}

// WithMaxPoints returns a copy of s using the given point ceiling, or s itself
// when points is not positive.
func (s Scorer) WithMaxPoints(points int) Scorer {
	if points > 0 {
		s.MaxPoints = points
	}
	return s
}

// Score computes round(max * (1 - responseTime/window)) clamped to [0, max].
// Wrong answers always score 0. timeLimit does not influence the result.
func (s Scorer) Score(correct bool, responseTime, _ time.Duration) int {
	if !correct {
		return 0
	}
	maxPoints := s.MaxPoints
	if maxPoints <= 0 {
		maxPoints = DefaultMaxPoints
	}
	window := s.ReferenceWindow
	if window <= 0 {
		window = DefaultReferenceWindow
	}
	if responseTime <= 0 {
		return maxPoints
	}
	if responseTime >= window {
		return 0
	}

	remaining := float64(window - responseTime)
	points := int(math.Round(float64(maxPoints) * remaining / float64(window)))
	return min(max(points, 0), maxPoints)
}
