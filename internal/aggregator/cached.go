package aggregator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cosplayradar/internal/cache"
	"cosplayradar/internal/domain"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
)

// CachedAdapter wraps a remote adapter with the source cache and a circuit
// breaker. An open breaker reads as an unavailable upstream, which the
// aggregator already treats as a skippable empty source.
type CachedAdapter struct {
	inner      Adapter
	characters *cache.Cache[[]domain.Character]
	series     *cache.Cache[*domain.Series]
	breaker    *gobreaker.CircuitBreaker[any]
}

func NewCachedAdapter(inner Adapter, ttl time.Duration, maxEntries int, logger zerolog.Logger) *CachedAdapter {
	name := string(inner.Name())
	settings := gobreaker.Settings{
		Name: name,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		// A valid query with no data is not an upstream failure.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, domain.ErrNotFound)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn().
				Str("source", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("circuit breaker state change")
		},
	}

	return &CachedAdapter{
		inner:      inner,
		characters: cache.New[[]domain.Character](name+"-characters", ttl, maxEntries, logger),
		series:     cache.New[*domain.Series](name+"-series", ttl, maxEntries, logger),
		breaker:    gobreaker.NewCircuitBreaker[any](settings),
	}
}

func (c *CachedAdapter) Name() domain.Source { return c.inner.Name() }

func (c *CachedAdapter) FetchCharacters(ctx context.Context, query domain.CharacterQuery) ([]domain.Character, error) {
	return c.characters.GetOrFetch(ctx, query.Key(), func(ctx context.Context) ([]domain.Character, error) {
		v, err := c.breaker.Execute(func() (any, error) {
			return c.inner.FetchCharacters(ctx, query)
		})
		if err != nil {
			return nil, mapBreakerErr(err)
		}
		return v.([]domain.Character), nil
	})
}

func (c *CachedAdapter) FetchSeries(ctx context.Context, id string) (*domain.Series, error) {
	return c.series.GetOrFetch(ctx, "series|"+id, func(ctx context.Context) (*domain.Series, error) {
		v, err := c.breaker.Execute(func() (any, error) {
			return c.inner.FetchSeries(ctx, id)
		})
		if err != nil {
			return nil, mapBreakerErr(err)
		}
		return v.(*domain.Series), nil
	})
}

// StartSweepers launches the optional eviction sweeps for both caches.
func (c *CachedAdapter) StartSweepers(interval time.Duration) {
	c.characters.StartSweeper(interval)
	c.series.StartSweeper(interval)
}

func (c *CachedAdapter) StopSweepers() {
	c.characters.StopSweeper()
	c.series.StopSweeper()
}

func mapBreakerErr(err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: circuit open", domain.ErrUpstreamUnavailable)
	}
	return err
}
