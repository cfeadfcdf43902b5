package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"cosplayradar/internal/domain"

	"github.com/rs/zerolog"
)

type SeriesRepository struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewSeriesRepository(sqlDB *sql.DB, logger zerolog.Logger) *SeriesRepository {
	return &SeriesRepository{
		db:     sqlDB,
		logger: logger,
	}
}

const seriesColumns = `id, title, status, format, season_year, popularity, favourites, trending, character_count, start_date, created_at, updated_at`

func scanSeries(row interface{ Scan(...any) error }) (*domain.Series, error) {
	var s domain.Series
	var startDate sql.NullTime
	err := row.Scan(
		&s.ID,
		&s.Title,
		&s.Status,
		&s.Format,
		&s.SeasonYear,
		&s.Popularity,
		&s.Favourites,
		&s.Trending,
		&s.CharacterCount,
		&startDate,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if startDate.Valid {
		s.StartDate = startDate.Time
	}
	return &s, nil
}

func (r *SeriesRepository) Get(ctx context.Context, id string) (*domain.Series, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+seriesColumns+` FROM series WHERE id = ?`, id)

	s, err := scanSeries(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (r *SeriesRepository) Upsert(ctx context.Context, s *domain.Series) error {
	now := time.Now()
	var startDate any
	if !s.StartDate.IsZero() {
		startDate = s.StartDate
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO series (id, title, status, format, season_year, popularity, favourites, trending, character_count, start_date, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			status = excluded.status,
			format = excluded.format,
			season_year = excluded.season_year,
			popularity = excluded.popularity,
			favourites = excluded.favourites,
			trending = excluded.trending,
			character_count = excluded.character_count,
			start_date = excluded.start_date,
			updated_at = excluded.updated_at`,
		s.ID, s.Title, s.Status, s.Format, s.SeasonYear, s.Popularity,
		s.Favourites, s.Trending, s.CharacterCount, startDate, now, now)
	if err != nil {
		return fmt.Errorf("failed to upsert series %s: %w", s.ID, err)
	}
	return nil
}
