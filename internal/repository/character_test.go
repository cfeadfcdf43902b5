package repository

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"cosplayradar/internal/domain"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestDB opens an in-memory database with the current schema applied.
func newTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	raw, err := os.ReadFile(filepath.Join("..", "database", "migrations", "00001_init.sql"))
	require.NoError(t, err)

	schema := string(raw)
	if i := strings.Index(schema, "-- +goose Down"); i >= 0 {
		schema = schema[:i]
	}
	_, err = db.Exec(schema)
	require.NoError(t, err)

	return db
}

func testCharacter(id, seriesID string, favourites int) domain.Character {
	return domain.Character{
		ID:          id,
		Name:        "Character " + id,
		SeriesID:    seriesID,
		SeriesTitle: "Series " + seriesID,
		Gender:      domain.GenderFemale,
		Favourites:  favourites,
		Role:        domain.RoleMain,
		Source:      domain.SourceAniList,
		FetchedAt:   time.Now(),
	}
}

func TestCharacterUpsertAndGet(t *testing.T) {
	repo := NewCharacterRepository(newTestDB(t), zerolog.Nop())
	ctx := context.Background()

	ch := testCharacter("anilist:1", "anilist:100", 300)
	require.NoError(t, repo.Upsert(ctx, &ch))

	got, err := repo.Get(ctx, "anilist:1")
	require.NoError(t, err)
	assert.Equal(t, ch.Name, got.Name)
	assert.Equal(t, ch.SeriesID, got.SeriesID)
	assert.Equal(t, 300, got.Favourites)

	// Upserting the same id replaces the row instead of failing.
	ch.Favourites = 450
	require.NoError(t, repo.Upsert(ctx, &ch))
	got, err = repo.Get(ctx, "anilist:1")
	require.NoError(t, err)
	assert.Equal(t, 450, got.Favourites)

	_, err = repo.Get(ctx, "anilist:404")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCharacterListBySeries(t *testing.T) {
	repo := NewCharacterRepository(newTestDB(t), zerolog.Nop())
	ctx := context.Background()

	require.NoError(t, repo.UpsertBatch(ctx, []domain.Character{
		testCharacter("anilist:1", "anilist:100", 300),
		testCharacter("anilist:2", "anilist:100", 900),
		testCharacter("anilist:3", "anilist:200", 500),
	}))

	got, err := repo.ListBySeries(ctx, "anilist:100")
	require.NoError(t, err)
	require.Len(t, got, 2)
	// Ordered by favourites, most favourited first.
	assert.Equal(t, "anilist:2", got[0].ID)
	assert.Equal(t, "anilist:1", got[1].ID)

	got, err = repo.ListBySeries(ctx, "anilist:404")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestCharacterSearch(t *testing.T) {
	repo := NewCharacterRepository(newTestDB(t), zerolog.Nop())
	ctx := context.Background()

	nami := testCharacter("anilist:1", "anilist:100", 30000)
	nami.Name = "Nami"
	nami.SeriesTitle = "One Piece"
	zoro := testCharacter("anilist:2", "anilist:100", 40000)
	zoro.Name = "Roronoa Zoro"
	zoro.SeriesTitle = "One Piece"
	zoro.Gender = domain.GenderMale
	power := testCharacter("anilist:3", "anilist:200", 25000)
	power.Name = "Power"
	power.SeriesTitle = "Chainsaw Man"
	require.NoError(t, repo.UpsertBatch(ctx, []domain.Character{nami, zoro, power}))

	got, err := repo.Search(ctx, domain.CharacterQuery{Category: "One Piece"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Roronoa Zoro", got[0].Name)
	assert.Equal(t, "Nami", got[1].Name)

	got, err = repo.Search(ctx, domain.CharacterQuery{Category: "one piece", Gender: domain.GenderFemale})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Nami", got[0].Name)
}
