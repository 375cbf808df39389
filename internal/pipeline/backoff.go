package pipeline

import (
	"math"
	"math/rand"
	"time"

	"github.com/goran-ethernal/CardanoIndexor/pkg/config"
)

// calculateBackoff computes the wait before the given attempt with ±25% jitter.
// The first attempt does not wait.
func calculateBackoff(attempt int, cfg *config.RetryConfig) time.Duration {
	if attempt <= 1 || cfg == nil {
		return 0
	}

	backoff := float64(cfg.InitialBackoff.Duration) * math.Pow(cfg.BackoffMultiplier, float64(attempt-2))
	if backoff > float64(cfg.MaxBackoff.Duration) {
		backoff = float64(cfg.MaxBackoff.Duration)
	}

	jitterRange := backoff * 0.25
	backoff += (rand.Float64() * 2 * jitterRange) - jitterRange //nolint:gosec
	if backoff < 0 {
		backoff = 0
	}

	return time.Duration(backoff)
}
