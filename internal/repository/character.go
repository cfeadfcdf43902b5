package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"cosplayradar/internal/constants"
	"cosplayradar/internal/domain"

	"github.com/rs/zerolog"
)

type CharacterRepository struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewCharacterRepository(sqlDB *sql.DB, logger zerolog.Logger) *CharacterRepository {
	return &CharacterRepository{
		db:     sqlDB,
		logger: logger,
	}
}

const characterColumns = `id, name, series_id, series_title, gender, favourites, role, source, fetched_at, created_at, updated_at`

func scanCharacter(row interface{ Scan(...any) error }) (*domain.Character, error) {
	var ch domain.Character
	err := row.Scan(
		&ch.ID,
		&ch.Name,
		&ch.SeriesID,
		&ch.SeriesTitle,
		&ch.Gender,
		&ch.Favourites,
		&ch.Role,
		&ch.Source,
		&ch.FetchedAt,
		&ch.CreatedAt,
		&ch.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &ch, nil
}

func (r *CharacterRepository) Get(ctx context.Context, id string) (*domain.Character, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+characterColumns+` FROM characters WHERE id = ?`, id)

	ch, err := scanCharacter(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return ch, nil
}

func (r *CharacterRepository) Upsert(ctx context.Context, ch *domain.Character) error {
	now := time.Now()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO characters (id, name, series_id, series_title, gender, favourites, role, source, fetched_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			series_id = excluded.series_id,
			series_title = excluded.series_title,
			gender = excluded.gender,
			favourites = excluded.favourites,
			role = excluded.role,
			source = excluded.source,
			fetched_at = excluded.fetched_at,
			updated_at = excluded.updated_at`,
		ch.ID, ch.Name, ch.SeriesID, ch.SeriesTitle, ch.Gender, ch.Favourites,
		ch.Role, ch.Source, ch.FetchedAt, now, now)
	if err != nil {
		return fmt.Errorf("failed to upsert character %s: %w", ch.ID, err)
	}
	return nil
}

func (r *CharacterRepository) UpsertBatch(ctx context.Context, characters []domain.Character) error {
	if len(characters) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now()
	for i := 0; i < len(characters); i += constants.DBBatchSize {
		end := i + constants.DBBatchSize
		if end > len(characters) {
			end = len(characters)
		}

		for _, ch := range characters[i:end] {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO characters (id, name, series_id, series_title, gender, favourites, role, source, fetched_at, created_at, updated_at)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
				ON CONFLICT(id) DO UPDATE SET
					name = excluded.name,
					series_id = excluded.series_id,
					series_title = excluded.series_title,
					gender = excluded.gender,
					favourites = excluded.favourites,
					role = excluded.role,
					source = excluded.source,
					fetched_at = excluded.fetched_at,
					updated_at = excluded.updated_at`,
				ch.ID, ch.Name, ch.SeriesID, ch.SeriesTitle, ch.Gender, ch.Favourites,
				ch.Role, ch.Source, ch.FetchedAt, now, now)
			if err != nil {
				return fmt.Errorf("failed to upsert character %s: %w", ch.ID, err)
			}
		}
	}

	return tx.Commit()
}

// Search runs the local character query used by the local-store adapter.
func (r *CharacterRepository) Search(ctx context.Context, query domain.CharacterQuery) ([]domain.Character, error) {
	query = query.Normalize()
	offset := (query.Page - 1) * query.PerPage

	sqlQuery := `SELECT ` + characterColumns + ` FROM characters WHERE 1=1`
	args := []any{}
	if query.Category != "" {
		sqlQuery += ` AND (LOWER(series_title) LIKE ? OR LOWER(name) LIKE ?)`
		pattern := "%" + query.Category + "%"
		args = append(args, pattern, pattern)
	}
	if query.Gender != "" {
		sqlQuery += ` AND gender = ?`
		args = append(args, string(query.Gender))
	}
	sqlQuery += ` ORDER BY favourites DESC LIMIT ? OFFSET ?`
	args = append(args, query.PerPage, offset)

	rows, err := r.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var characters []domain.Character
	for rows.Next() {
		ch, err := scanCharacter(rows)
		if err != nil {
			return nil, err
		}
		characters = append(characters, *ch)
	}
	return characters, rows.Err()
}

// ListBySeries returns every stored character belonging to a series.
func (r *CharacterRepository) ListBySeries(ctx context.Context, seriesID string) ([]domain.Character, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+characterColumns+` FROM characters WHERE series_id = ? ORDER BY favourites DESC`, seriesID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var characters []domain.Character
	for rows.Next() {
		ch, err := scanCharacter(rows)
		if err != nil {
			return nil, err
		}
		characters = append(characters, *ch)
	}
	return characters, rows.Err()
}
