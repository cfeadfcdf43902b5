package service

import (
	"context"
	"fmt"
	"time"

	"cosplayradar/internal/aggregator"
	"cosplayradar/internal/constants"
	"cosplayradar/internal/domain"
	"cosplayradar/internal/lifecycle"
	"cosplayradar/internal/repository"
	"cosplayradar/internal/trending"

	"github.com/rs/zerolog"
)

// ScoredCharacter pairs a catalog record with its computed score.
type ScoredCharacter struct {
	Character domain.Character `json:"character"`
	Score     trending.Result  `json:"score"`
}

type TrendingService struct {
	agg        *aggregator.Aggregator
	characters *repository.CharacterRepository
	series     *repository.SeriesRepository
	scores     *repository.TrendScoreRepository
	lifecycle  *lifecycle.Manager
	cfg        *trending.Config
	logger     zerolog.Logger
}

func NewTrendingService(
	agg *aggregator.Aggregator,
	characters *repository.CharacterRepository,
	series *repository.SeriesRepository,
	scores *repository.TrendScoreRepository,
	lc *lifecycle.Manager,
	cfg *trending.Config,
	logger zerolog.Logger,
) *TrendingService {
	return &TrendingService{
		agg:        agg,
		characters: characters,
		series:     series,
		scores:     scores,
		lifecycle:  lc,
		cfg:        cfg,
		logger:     logger,
	}
}

// RefreshCategory pulls characters for a query from the aggregated catalogs,
// persists them, scores each against its series, and appends a new score
// snapshot per character. Series seen for the first time are registered with
// the lifecycle manager.
func (s *TrendingService) RefreshCategory(ctx context.Context, query domain.CharacterQuery, merge bool) ([]ScoredCharacter, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.RequestTimeout)
	defer cancel()

	s.logger.Info().
		Str("category", query.Category).
		Str("gender", string(query.Gender)).
		Bool("merge", merge).
		Msg("refreshing category")

	characters, err := s.agg.FetchCharacters(ctx, query, merge)
	if err != nil {
		s.logger.Error().Err(err).Str("category", query.Category).Msg("failed to fetch characters")
		return nil, fmt.Errorf("failed to fetch characters: %w", err)
	}
	if len(characters) == 0 {
		return nil, nil
	}

	if err := s.characters.UpsertBatch(ctx, characters); err != nil {
		s.logger.Error().Err(err).Msg("failed to persist characters")
		return nil, fmt.Errorf("failed to persist characters: %w", err)
	}

	seriesByID := s.resolveSeries(ctx, characters)

	now := time.Now()
	scored := make([]ScoredCharacter, 0, len(characters))
	snapshots := make([]domain.TrendScore, 0, len(characters))
	for _, ch := range characters {
		result := trending.Score(s.cfg, ch, seriesByID[ch.SeriesID], now)
		scored = append(scored, ScoredCharacter{Character: ch, Score: result})
		snapshots = append(snapshots, domain.TrendScore{
			CharacterID:      ch.ID,
			BaseScore:        result.BaseScore,
			TotalMultiplier:  result.TotalMultiplier,
			FinalScore:       result.FinalScore,
			AlgorithmVersion: result.AlgorithmVersion,
			ComputedAt:       now,
		})
	}

	if err := s.scores.AppendBatch(ctx, snapshots); err != nil {
		s.logger.Error().Err(err).Msg("failed to append score snapshots")
		return nil, fmt.Errorf("failed to append score snapshots: %w", err)
	}

	s.logger.Info().
		Str("category", query.Category).
		Int("characters", len(scored)).
		Str("algorithm_version", s.cfg.AlgorithmVersion).
		Msg("category refreshed")
	return scored, nil
}

// resolveSeries fetches and persists series metadata for every distinct
// series referenced by the batch. A series that cannot be resolved scores
// with neutral series factors rather than failing the whole refresh.
func (s *TrendingService) resolveSeries(ctx context.Context, characters []domain.Character) map[string]*domain.Series {
	resolved := make(map[string]*domain.Series)
	for _, ch := range characters {
		if ch.SeriesID == "" {
			continue
		}
		if _, ok := resolved[ch.SeriesID]; ok {
			continue
		}

		series, err := s.agg.FetchSeries(ctx, ch.SeriesID)
		if err != nil {
			s.logger.Warn().Err(err).Str("series_id", ch.SeriesID).Msg("series unresolved, scoring with neutral factors")
			resolved[ch.SeriesID] = nil
			continue
		}
		resolved[ch.SeriesID] = series

		if err := s.series.Upsert(ctx, series); err != nil {
			s.logger.Warn().Err(err).Str("series_id", series.ID).Msg("failed to persist series")
			continue
		}
		if _, err := s.lifecycle.Track(ctx, *series); err != nil {
			s.logger.Warn().Err(err).Str("series_id", series.ID).Msg("failed to track series lifecycle")
		}
	}
	return resolved
}

// CharacterScore returns the latest snapshot for a character.
func (s *TrendingService) CharacterScore(ctx context.Context, characterID string) (*domain.TrendScore, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.DatabaseTimeout)
	defer cancel()

	if characterID == "" {
		return nil, &domain.ValidationError{Field: "character_id", Reason: "missing"}
	}
	return s.scores.Latest(ctx, characterID)
}

// ScoreHistory returns snapshots for a character, newest first.
func (s *TrendingService) ScoreHistory(ctx context.Context, characterID string, limit int) ([]domain.TrendScore, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.DatabaseTimeout)
	defer cancel()

	if characterID == "" {
		return nil, &domain.ValidationError{Field: "character_id", Reason: "missing"}
	}
	return s.scores.History(ctx, characterID, limit)
}
