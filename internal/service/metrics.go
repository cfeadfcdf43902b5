package service

import (
	"context"
	"fmt"

	"cosplayradar/internal/constants"
	"cosplayradar/internal/lifecycle"
	"cosplayradar/internal/repository"

	"github.com/rs/zerolog"
)

// SeriesMetricsService assembles the rolling metrics the lifecycle manager
// evaluates, from the persisted series record and its characters' score
// snapshots.
type SeriesMetricsService struct {
	characters *repository.CharacterRepository
	series     *repository.SeriesRepository
	scores     *repository.TrendScoreRepository
	logger     zerolog.Logger
}

func NewSeriesMetricsService(characters *repository.CharacterRepository, series *repository.SeriesRepository, scores *repository.TrendScoreRepository, logger zerolog.Logger) *SeriesMetricsService {
	return &SeriesMetricsService{characters: characters, series: series, scores: scores, logger: logger}
}

func (s *SeriesMetricsService) SeriesMetrics(ctx context.Context, seriesID string) (lifecycle.Metrics, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.DatabaseTimeout)
	defer cancel()

	series, err := s.series.Get(ctx, seriesID)
	if err != nil {
		return lifecycle.Metrics{}, fmt.Errorf("failed to load series %s: %w", seriesID, err)
	}

	avg, max, _, err := s.scores.SeriesTrendStats(ctx, seriesID)
	if err != nil {
		return lifecycle.Metrics{}, err
	}

	previousAvg, err := s.scores.SeriesPreviousAvg(ctx, seriesID)
	if err != nil {
		return lifecycle.Metrics{}, err
	}
	growth := 0.0
	if previousAvg > 0 {
		growth = avg / previousAvg
	}

	// Catalogs don't always report a character count; fall back to the
	// characters we actually hold for the series.
	characterCount := series.CharacterCount
	if characterCount == 0 {
		stored, err := s.characters.ListBySeries(ctx, seriesID)
		if err != nil {
			return lifecycle.Metrics{}, err
		}
		characterCount = len(stored)
	}

	return lifecycle.Metrics{
		Popularity:           float64(series.Popularity),
		Favourites:           float64(series.Favourites),
		Trending:             series.Trending,
		CharacterCount:       characterCount,
		AvgCharacterTrending: avg,
		MaxCharacterTrending: max,
		GrowthRate:           growth,
		StartDate:            series.StartDate,
	}, nil
}
