package apiclient

import (
	"math"
	"math/rand"
	"time"
)

// backoff returns base * 2^(attempt-1), capped at max.
func backoff(attempt int, base, max time.Duration) time.Duration {
	if attempt <= 0 || base <= 0 {
		return 0
	}
	scaled := float64(base) * math.Pow(2, float64(attempt-1))
	if scaled >= float64(max) {
		return max
	}
	return time.Duration(scaled)
}

// jitter returns a value in [0, maxJitter].
func jitter(r *rand.Rand, maxJitter time.Duration) time.Duration {
	if maxJitter <= 0 || r == nil {
		return 0
	}
	return time.Duration(r.Int63n(int64(maxJitter) + 1)) //nolint:gosec
}
