package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"cosplayradar/internal/domain"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"
)

// TrendScoreRepository is append-only: every scoring run inserts new
// snapshot rows, prior rows are never updated or deleted.
type TrendScoreRepository struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewTrendScoreRepository(sqlDB *sql.DB, logger zerolog.Logger) *TrendScoreRepository {
	return &TrendScoreRepository{
		db:     sqlDB,
		logger: logger,
	}
}

func (r *TrendScoreRepository) Append(ctx context.Context, score *domain.TrendScore) error {
	if score.ID == "" {
		id, err := gonanoid.New()
		if err != nil {
			return fmt.Errorf("failed to generate nanoid: %w", err)
		}
		score.ID = id
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO trend_scores (id, character_id, base_score, total_multiplier, final_score, algorithm_version, computed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		score.ID, score.CharacterID, score.BaseScore, score.TotalMultiplier,
		score.FinalScore, score.AlgorithmVersion, score.ComputedAt)
	if err != nil {
		return fmt.Errorf("failed to append trend score for %s: %w", score.CharacterID, err)
	}
	return nil
}

func (r *TrendScoreRepository) AppendBatch(ctx context.Context, scores []domain.TrendScore) error {
	if len(scores) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for i := range scores {
		if scores[i].ID == "" {
			id, err := gonanoid.New()
			if err != nil {
				return fmt.Errorf("failed to generate nanoid: %w", err)
			}
			scores[i].ID = id
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO trend_scores (id, character_id, base_score, total_multiplier, final_score, algorithm_version, computed_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			scores[i].ID, scores[i].CharacterID, scores[i].BaseScore, scores[i].TotalMultiplier,
			scores[i].FinalScore, scores[i].AlgorithmVersion, scores[i].ComputedAt)
		if err != nil {
			return fmt.Errorf("failed to append trend score for %s: %w", scores[i].CharacterID, err)
		}
	}

	return tx.Commit()
}

// Latest returns the most recent snapshot for a character.
func (r *TrendScoreRepository) Latest(ctx context.Context, characterID string) (*domain.TrendScore, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, character_id, base_score, total_multiplier, final_score, algorithm_version, computed_at
		FROM trend_scores
		WHERE character_id = ?
		ORDER BY computed_at DESC
		LIMIT 1`, characterID)

	var score domain.TrendScore
	err := row.Scan(&score.ID, &score.CharacterID, &score.BaseScore, &score.TotalMultiplier,
		&score.FinalScore, &score.AlgorithmVersion, &score.ComputedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &score, nil
}

// History returns snapshots for a character, newest first.
func (r *TrendScoreRepository) History(ctx context.Context, characterID string, limit int) ([]domain.TrendScore, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, character_id, base_score, total_multiplier, final_score, algorithm_version, computed_at
		FROM trend_scores
		WHERE character_id = ?
		ORDER BY computed_at DESC
		LIMIT ?`, characterID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var scores []domain.TrendScore
	for rows.Next() {
		var score domain.TrendScore
		if err := rows.Scan(&score.ID, &score.CharacterID, &score.BaseScore, &score.TotalMultiplier,
			&score.FinalScore, &score.AlgorithmVersion, &score.ComputedAt); err != nil {
			return nil, err
		}
		scores = append(scores, score)
	}
	return scores, rows.Err()
}

// SeriesTrendStats aggregates the latest snapshot per character of a series
// into the rolling metrics the lifecycle manager needs.
func (r *TrendScoreRepository) SeriesTrendStats(ctx context.Context, seriesID string) (avg, max float64, count int, err error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT COALESCE(AVG(latest.final_score), 0),
		       COALESCE(MAX(latest.final_score), 0),
		       COUNT(latest.character_id)
		FROM (
			SELECT ts.character_id, ts.final_score
			FROM trend_scores ts
			JOIN characters c ON c.id = ts.character_id
			WHERE c.series_id = ?
			  AND ts.computed_at = (
				SELECT MAX(computed_at) FROM trend_scores WHERE character_id = ts.character_id
			  )
		) latest`, seriesID)

	if err := row.Scan(&avg, &max, &count); err != nil {
		return 0, 0, 0, fmt.Errorf("failed to aggregate trend stats for %s: %w", seriesID, err)
	}
	return avg, max, count, nil
}

// SeriesPreviousAvg averages the second-newest snapshot per character of a
// series, used to derive a growth rate against the latest run. Returns 0 when
// no character has more than one snapshot.
func (r *TrendScoreRepository) SeriesPreviousAvg(ctx context.Context, seriesID string) (float64, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT COALESCE(AVG(prev.final_score), 0)
		FROM (
			SELECT ts.final_score,
			       ROW_NUMBER() OVER (PARTITION BY ts.character_id ORDER BY ts.computed_at DESC) AS rn
			FROM trend_scores ts
			JOIN characters c ON c.id = ts.character_id
			WHERE c.series_id = ?
		) prev
		WHERE prev.rn = 2`, seriesID)

	var avg float64
	if err := row.Scan(&avg); err != nil {
		return 0, fmt.Errorf("failed to compute previous trend average for %s: %w", seriesID, err)
	}
	return avg, nil
}
