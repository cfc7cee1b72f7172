package bucket

import (
	"context"
	"log/slog"
	"time"

	"kuruma/internal/ratelimit/models"
	"kuruma/pkg/platform/circuit"
)

type limiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (*models.Result, error)
}

// FallbackStore checks the primary store and switches to a local store while
// the breaker is open. The primary is always tried so recovery is detected.
type FallbackStore struct {
	primary  limiter
	fallback limiter
	breaker  *circuit.Breaker
	logger   *slog.Logger
}

func NewFallbackStore(primary, fallback limiter, breaker *circuit.Breaker, logger *slog.Logger) *FallbackStore {
	return &FallbackStore{primary: primary, fallback: fallback, breaker: breaker, logger: logger}
}

func (s *FallbackStore) Allow(ctx context.Context, key string, limit int, window time.Duration) (*models.Result, error) {
	res, err := s.primary.Allow(ctx, key, limit, window)
	if err != nil {
		useFallback, change := s.breaker.RecordFailure()
		if change.Opened {
			s.logger.WarnContext(ctx, "rate limit store degraded, using local fallback",
				"breaker", s.breaker.Name(),
				"error", err,
			)
		}
		if useFallback {
			return s.fallback.Allow(ctx, key, limit, window)
		}
		return nil, err
	}

	usePrimary, change := s.breaker.RecordSuccess()
	if change.Closed {
		s.logger.InfoContext(ctx, "rate limit store recovered", "breaker", s.breaker.Name())
	}
	if usePrimary {
		return res, nil
	}
	return s.fallback.Allow(ctx, key, limit, window)
}
