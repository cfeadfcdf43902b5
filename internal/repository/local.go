package repository

import (
	"context"

	"cosplayradar/internal/domain"
)

// LocalStore adapts the persisted character/series tables as the lowest
// priority aggregation source. Returned records are re-tagged with the local
// provenance since this adapter, not the original catalog, produced them.
type LocalStore struct {
	characters *CharacterRepository
	series     *SeriesRepository
}

func NewLocalStore(characters *CharacterRepository, series *SeriesRepository) *LocalStore {
	return &LocalStore{characters: characters, series: series}
}

func (s *LocalStore) Name() domain.Source { return domain.SourceLocal }

func (s *LocalStore) FetchCharacters(ctx context.Context, query domain.CharacterQuery) ([]domain.Character, error) {
	records, err := s.characters.Search(ctx, query)
	if err != nil {
		return nil, err
	}
	for i := range records {
		records[i].Source = domain.SourceLocal
	}
	return records, nil
}

func (s *LocalStore) FetchSeries(ctx context.Context, id string) (*domain.Series, error) {
	return s.series.Get(ctx, id)
}
