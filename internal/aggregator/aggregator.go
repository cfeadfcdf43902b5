// Package aggregator queries the character catalogs in a fixed priority
// order and normalizes their results into one stream. The order and merge
// behavior are configuration, not code branches: sources are an ordered
// list of adapters behind one interface.
package aggregator

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cosplayradar/internal/constants"
	"cosplayradar/internal/domain"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Adapter is one upstream source: a remote catalog or the local store.
// Every record an adapter returns must already carry its provenance tag.
type Adapter interface {
	Name() domain.Source
	FetchCharacters(ctx context.Context, query domain.CharacterQuery) ([]domain.Character, error)
	FetchSeries(ctx context.Context, id string) (*domain.Series, error)
}

// Aggregator fans queries across the configured adapters.
type Aggregator struct {
	adapters []Adapter
	logger   zerolog.Logger
}

// New builds an aggregator. Adapters are tried in the given order; put the
// richest-metadata source first, the local store last.
func New(logger zerolog.Logger, adapters ...Adapter) *Aggregator {
	return &Aggregator{
		adapters: adapters,
		logger:   logger.With().Str("component", "aggregator").Logger(),
	}
}

// FetchCharacters resolves a character query. Default semantics: first
// source yielding a non-empty result wins. With merge set, all sources are
// queried concurrently and results are de-duplicated, preferring the
// higher-priority source's record on conflict.
//
// A failing source is skipped; only when every source fails does the
// aggregate itself fail.
func (a *Aggregator) FetchCharacters(ctx context.Context, query domain.CharacterQuery, merge bool) ([]domain.Character, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}
	query = query.Normalize()

	ctx, cancel := context.WithTimeout(ctx, constants.AggregateTimeout)
	defer cancel()

	if merge {
		return a.fetchMerged(ctx, query)
	}
	return a.fetchFirst(ctx, query)
}

func (a *Aggregator) fetchFirst(ctx context.Context, query domain.CharacterQuery) ([]domain.Character, error) {
	var failures []error
	for _, adapter := range a.adapters {
		records, err := adapter.FetchCharacters(ctx, query)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				continue
			}
			a.logger.Warn().Err(err).Str("source", string(adapter.Name())).Msg("source failed, skipping")
			failures = append(failures, fmt.Errorf("%s: %w", adapter.Name(), err))
			continue
		}
		if len(records) > 0 {
			a.logger.Debug().Str("source", string(adapter.Name())).Int("count", len(records)).Msg("source satisfied query")
			return records, nil
		}
	}

	if len(failures) == len(a.adapters) && len(a.adapters) > 0 {
		return nil, fmt.Errorf("all sources failed: %w", errors.Join(failures...))
	}
	return nil, nil
}

func (a *Aggregator) fetchMerged(ctx context.Context, query domain.CharacterQuery) ([]domain.Character, error) {
	results := make([][]domain.Character, len(a.adapters))
	failures := make([]error, len(a.adapters))

	g, gCtx := errgroup.WithContext(ctx)
	for i, adapter := range a.adapters {
		g.Go(func() error {
			records, err := adapter.FetchCharacters(gCtx, query)
			if err != nil && !errors.Is(err, domain.ErrNotFound) {
				a.logger.Warn().Err(err).Str("source", string(adapter.Name())).Msg("source failed during merge, treating as empty")
				failures[i] = fmt.Errorf("%s: %w", adapter.Name(), err)
				return nil
			}
			results[i] = records
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	failed := 0
	for _, err := range failures {
		if err != nil {
			failed++
		}
	}
	if failed == len(a.adapters) && len(a.adapters) > 0 {
		return nil, fmt.Errorf("all sources failed: %w", errors.Join(failures...))
	}

	// Adapters are ordered richest-first, so the first record seen for an
	// identity key is the one kept.
	seen := make(map[string]struct{})
	var merged []domain.Character
	for _, records := range results {
		for _, record := range records {
			key := identityKey(record)
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			merged = append(merged, record)
		}
	}
	return merged, nil
}

// FetchSeries resolves series metadata, trying adapters in priority order.
func (a *Aggregator) FetchSeries(ctx context.Context, id string) (*domain.Series, error) {
	if id == "" {
		return nil, &domain.ValidationError{Field: "series_id", Reason: "missing"}
	}

	ctx, cancel := context.WithTimeout(ctx, constants.AggregateTimeout)
	defer cancel()

	// Adapters reject ids qualified for another source with a validation
	// error, which reads as a skip here, so priority order still applies.
	var failures []error
	for _, adapter := range a.adapters {
		series, err := adapter.FetchSeries(ctx, id)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				continue
			}
			var verr *domain.ValidationError
			if errors.As(err, &verr) {
				continue
			}
			failures = append(failures, fmt.Errorf("%s: %w", adapter.Name(), err))
			continue
		}
		return series, nil
	}

	if len(failures) == len(a.adapters) && len(a.adapters) > 0 {
		return nil, fmt.Errorf("all sources failed: %w", errors.Join(failures...))
	}
	return nil, domain.ErrNotFound
}

// identityKey joins records for the same character across catalogs. Names
// are the only identity shared by every source.
func identityKey(ch domain.Character) string {
	return strings.ToLower(strings.TrimSpace(ch.Name))
}
