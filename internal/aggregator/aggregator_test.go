package aggregator

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"cosplayradar/internal/domain"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAdapter struct {
	name       domain.Source
	characters []domain.Character
	charErr    error
	series     *domain.Series
	seriesErr  error
	calls      atomic.Int32
}

func (f *fakeAdapter) Name() domain.Source { return f.name }

func (f *fakeAdapter) FetchCharacters(_ context.Context, _ domain.CharacterQuery) ([]domain.Character, error) {
	f.calls.Add(1)
	return f.characters, f.charErr
}

func (f *fakeAdapter) FetchSeries(_ context.Context, _ string) (*domain.Series, error) {
	if f.seriesErr != nil {
		return nil, f.seriesErr
	}
	return f.series, nil
}

func char(name string, source domain.Source) domain.Character {
	return domain.Character{ID: string(source) + ":" + name, Name: name, Source: source}
}

func TestFetchCharactersFirstNonEmptyWins(t *testing.T) {
	empty := &fakeAdapter{name: "anilist"}
	full := &fakeAdapter{name: "jikan", characters: []domain.Character{char("Nami", "jikan")}}
	never := &fakeAdapter{name: "local", characters: []domain.Character{char("Zoro", "local")}}

	a := New(zerolog.Nop(), empty, full, never)

	records, err := a.FetchCharacters(context.Background(), domain.CharacterQuery{Category: "one piece"}, false)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, domain.SourceJikan, records[0].Source)

	// Lower-priority sources are not consulted once one satisfies the query.
	assert.Zero(t, never.calls.Load())
}

func TestFetchCharactersSkipsFailingSource(t *testing.T) {
	broken := &fakeAdapter{name: "anilist", charErr: domain.ErrUpstreamUnavailable}
	fallback := &fakeAdapter{name: "local", characters: []domain.Character{char("Nami", "local")}}

	a := New(zerolog.Nop(), broken, fallback)

	records, err := a.FetchCharacters(context.Background(), domain.CharacterQuery{}, false)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, domain.SourceLocal, records[0].Source)
}

func TestFetchCharactersAllSourcesFail(t *testing.T) {
	a := New(zerolog.Nop(),
		&fakeAdapter{name: "anilist", charErr: domain.ErrUpstreamUnavailable},
		&fakeAdapter{name: "jikan", charErr: domain.ErrRateLimited},
	)

	_, err := a.FetchCharacters(context.Background(), domain.CharacterQuery{}, false)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrUpstreamUnavailable)
	assert.ErrorIs(t, err, domain.ErrRateLimited)
}

func TestFetchCharactersInvalidQuery(t *testing.T) {
	adapter := &fakeAdapter{name: "anilist"}
	a := New(zerolog.Nop(), adapter)

	_, err := a.FetchCharacters(context.Background(), domain.CharacterQuery{Gender: "Robot"}, false)

	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "gender", verr.Field)
	assert.Zero(t, adapter.calls.Load())
}

func TestFetchCharactersMergeDeduplicates(t *testing.T) {
	anilist := &fakeAdapter{name: "anilist", characters: []domain.Character{
		char("Nami", "anilist"),
		char("Zoro", "anilist"),
	}}
	jikan := &fakeAdapter{name: "jikan", characters: []domain.Character{
		char("nami ", "jikan"), // same identity, different casing and spacing
		char("Robin", "jikan"),
	}}

	a := New(zerolog.Nop(), anilist, jikan)

	records, err := a.FetchCharacters(context.Background(), domain.CharacterQuery{}, true)
	require.NoError(t, err)
	require.Len(t, records, 3)

	bySource := make(map[string]domain.Source)
	for _, r := range records {
		bySource[r.Name] = r.Source
	}
	// On conflict the higher-priority source's record is kept.
	assert.Equal(t, domain.SourceAniList, bySource["Nami"])
	assert.Equal(t, domain.SourceJikan, bySource["Robin"])
}

func TestFetchCharactersMergeToleratesPartialFailure(t *testing.T) {
	broken := &fakeAdapter{name: "anilist", charErr: domain.ErrUpstreamUnavailable}
	working := &fakeAdapter{name: "jikan", characters: []domain.Character{char("Nami", "jikan")}}

	a := New(zerolog.Nop(), broken, working)

	records, err := a.FetchCharacters(context.Background(), domain.CharacterQuery{}, true)
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestFetchSeriesPriorityOrder(t *testing.T) {
	// The owning source rejects a foreign id with a validation error, which
	// must read as a skip rather than a failure.
	wrongSource := &fakeAdapter{name: "anilist", seriesErr: &domain.ValidationError{Field: "series_id", Reason: "not an anilist id"}}
	missing := &fakeAdapter{name: "jikan", seriesErr: domain.ErrNotFound}
	local := &fakeAdapter{name: "local", series: &domain.Series{ID: "jikan:1", Title: "One Piece"}}

	a := New(zerolog.Nop(), wrongSource, missing, local)

	series, err := a.FetchSeries(context.Background(), "jikan:1")
	require.NoError(t, err)
	assert.Equal(t, "One Piece", series.Title)
}

func TestFetchSeriesNotFound(t *testing.T) {
	a := New(zerolog.Nop(),
		&fakeAdapter{name: "anilist", seriesErr: domain.ErrNotFound},
		&fakeAdapter{name: "local", seriesErr: domain.ErrNotFound},
	)

	_, err := a.FetchSeries(context.Background(), "anilist:99")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestFetchSeriesEmptyID(t *testing.T) {
	a := New(zerolog.Nop(), &fakeAdapter{name: "anilist"})

	_, err := a.FetchSeries(context.Background(), "")

	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestFetchSeriesAllSourcesFail(t *testing.T) {
	a := New(zerolog.Nop(),
		&fakeAdapter{name: "anilist", seriesErr: domain.ErrUpstreamUnavailable},
		&fakeAdapter{name: "jikan", seriesErr: errors.New("boom")},
	)

	_, err := a.FetchSeries(context.Background(), "anilist:1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrNotFound)
}
