package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"cosplayradar/internal/domain"

	"github.com/rs/zerolog"
)

// LifecycleRepository persists lifecycle states, upserted by series id.
type LifecycleRepository struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewLifecycleRepository(sqlDB *sql.DB, logger zerolog.Logger) *LifecycleRepository {
	return &LifecycleRepository{
		db:     sqlDB,
		logger: logger,
	}
}

const lifecycleColumns = `series_id, stage, stage_entered_at, composite_score, never_archive, high_priority, last_evaluated_at, created_at, updated_at`

func scanLifecycleState(row interface{ Scan(...any) error }) (*domain.LifecycleState, error) {
	var state domain.LifecycleState
	var lastEvaluated sql.NullTime
	err := row.Scan(
		&state.SeriesID,
		&state.Stage,
		&state.StageEnteredAt,
		&state.CompositeScore,
		&state.NeverArchive,
		&state.HighPriority,
		&lastEvaluated,
		&state.CreatedAt,
		&state.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if lastEvaluated.Valid {
		state.LastEvaluatedAt = lastEvaluated.Time
	}
	return &state, nil
}

func (r *LifecycleRepository) Get(ctx context.Context, seriesID string) (*domain.LifecycleState, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+lifecycleColumns+` FROM lifecycle_states WHERE series_id = ?`, seriesID)

	state, err := scanLifecycleState(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return state, nil
}

func (r *LifecycleRepository) Upsert(ctx context.Context, state *domain.LifecycleState) error {
	var lastEvaluated any
	if !state.LastEvaluatedAt.IsZero() {
		lastEvaluated = state.LastEvaluatedAt
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO lifecycle_states (series_id, stage, stage_entered_at, composite_score, never_archive, high_priority, last_evaluated_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(series_id) DO UPDATE SET
			stage = excluded.stage,
			stage_entered_at = excluded.stage_entered_at,
			composite_score = excluded.composite_score,
			never_archive = excluded.never_archive,
			high_priority = excluded.high_priority,
			last_evaluated_at = excluded.last_evaluated_at,
			updated_at = excluded.updated_at`,
		state.SeriesID, state.Stage, state.StageEnteredAt, state.CompositeScore,
		state.NeverArchive, state.HighPriority, lastEvaluated,
		state.CreatedAt, time.Now())
	if err != nil {
		return fmt.Errorf("failed to upsert lifecycle state %s: %w", state.SeriesID, err)
	}
	return nil
}

func (r *LifecycleRepository) ListByStages(ctx context.Context, stages ...domain.LifecycleStage) ([]domain.LifecycleState, error) {
	if len(stages) == 0 {
		return nil, nil
	}

	placeholders := strings.Repeat("?,", len(stages))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]any, len(stages))
	for i, stage := range stages {
		args[i] = string(stage)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+lifecycleColumns+` FROM lifecycle_states WHERE stage IN (`+placeholders+`) ORDER BY series_id`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var states []domain.LifecycleState
	for rows.Next() {
		state, err := scanLifecycleState(rows)
		if err != nil {
			return nil, err
		}
		states = append(states, *state)
	}
	return states, rows.Err()
}

func (r *LifecycleRepository) Delete(ctx context.Context, seriesID string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM lifecycle_states WHERE series_id = ?`, seriesID)
	if err != nil {
		return fmt.Errorf("failed to delete lifecycle state %s: %w", seriesID, err)
	}
	affected, err := result.RowsAffected()
	if err == nil && affected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *LifecycleRepository) StageCounts(ctx context.Context) (map[domain.LifecycleStage]int, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT stage, COUNT(*) FROM lifecycle_states GROUP BY stage`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[domain.LifecycleStage]int)
	for rows.Next() {
		var stage string
		var count int
		if err := rows.Scan(&stage, &count); err != nil {
			return nil, err
		}
		counts[domain.LifecycleStage(stage)] = count
	}
	return counts, rows.Err()
}
