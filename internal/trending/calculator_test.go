package trending

import (
	"testing"
	"time"

	"cosplayradar/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *Config {
	return &Config{
		FavouritesDivisor: 100,
		MinFavourites:     0,
		GenderBoosts: map[domain.Gender]float64{
			domain.GenderFemale:    1.4,
			domain.GenderMale:      1.0,
			domain.GenderNonBinary: 1.1,
			domain.GenderUnknown:   1.0,
		},
		PopularityTiers: []PopularityTier{
			{MinFavourites: 50000, Boost: 1.25},
			{MinFavourites: 30000, Boost: 1.15},
			{MinFavourites: 10000, Boost: 1.1},
			{MinFavourites: 1000, Boost: 1.05},
			{MinFavourites: 0, Boost: 1.0},
		},
		StatusBoosts: map[domain.ReleaseStatus]float64{
			domain.StatusReleasing: 1.3,
			domain.StatusFinished:  1.0,
			domain.StatusCancelled: 0.7,
		},
		RecencyTiers: []RecencyTier{
			{MaxYearsAgo: 0, Boost: 1.25},
			{MaxYearsAgo: 1, Boost: 1.15},
			{MaxYearsAgo: 3, Boost: 1.05},
			{MaxYearsAgo: 10, Boost: 1.0},
		},
		FormatBoosts: map[domain.Format]float64{
			domain.FormatTV:    1.1,
			domain.FormatMovie: 1.05,
		},
		RoleBoosts: map[domain.Role]float64{
			domain.RoleMain:       1.1,
			domain.RoleSupporting: 1.0,
		},
		KeywordBoosts: []KeywordBoost{
			{Keywords: []string{"one piece"}, Boost: 1.12},
		},
		DefaultKeywordBoost: 1.0,
		MinTotalMultiplier:  0.5,
		MaxTotalMultiplier:  1.3,
		AlgorithmVersion:    "1.0",
	}
}

func TestScoreClampedWorkedExample(t *testing.T) {
	cfg := testConfig()
	now := time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC)

	ch := domain.Character{
		ID:         "anilist:1",
		Name:       "Nami",
		Gender:     domain.GenderFemale,
		Favourites: 30000,
		Role:       domain.RoleSupporting,
	}
	series := &domain.Series{
		ID:         "anilist:21",
		Title:      "One Piece",
		Status:     domain.StatusReleasing,
		Format:     domain.FormatTV,
		SeasonYear: 2025,
	}

	result := Score(cfg, ch, series, now)

	require.InDelta(t, 300.0, result.BaseScore, 1e-9)
	assert.InDelta(t, 1.4, result.Breakdown.Gender, 1e-9)
	assert.InDelta(t, 1.15, result.Breakdown.Popularity, 1e-9)
	assert.InDelta(t, 1.3, result.Breakdown.Status, 1e-9)
	assert.InDelta(t, 1.25, result.Breakdown.Recency, 1e-9)
	assert.InDelta(t, 1.1, result.Breakdown.Format, 1e-9)
	assert.InDelta(t, 1.12, result.Breakdown.Keyword, 1e-9)

	// The raw product blows past the cap; only the final multiplier is
	// clamped, never the individual factors.
	assert.Greater(t, result.Breakdown.RawTotal, cfg.MaxTotalMultiplier)
	assert.InDelta(t, 1.3, result.TotalMultiplier, 1e-9)
	assert.InDelta(t, 390.0, result.FinalScore, 1e-9)
	assert.Equal(t, "1.0", result.AlgorithmVersion)
}

func TestScoreZeroFavourites(t *testing.T) {
	cfg := testConfig()
	now := time.Now()

	result := Score(cfg, domain.Character{Gender: domain.GenderFemale}, nil, now)

	assert.Zero(t, result.BaseScore)
	assert.Zero(t, result.FinalScore)
	// The multiplier is still computed and clamped, it just scales zero.
	assert.GreaterOrEqual(t, result.TotalMultiplier, cfg.MinTotalMultiplier)
}

func TestScoreNilSeriesNeutralFactors(t *testing.T) {
	cfg := testConfig()
	result := Score(cfg, domain.Character{Favourites: 500, Gender: domain.GenderMale}, nil, time.Now())

	assert.InDelta(t, 1.0, result.Breakdown.Status, 1e-9)
	assert.InDelta(t, 1.0, result.Breakdown.Recency, 1e-9)
	assert.InDelta(t, 1.0, result.Breakdown.Format, 1e-9)
	assert.InDelta(t, 1.0, result.Breakdown.Keyword, 1e-9)
}

func TestScoreMultiplierAlwaysWithinLimits(t *testing.T) {
	cfg := testConfig()
	now := time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC)

	characters := []domain.Character{
		{Gender: domain.GenderFemale, Favourites: 100000, Role: domain.RoleMain},
		{Gender: domain.GenderMale, Favourites: 50},
		{Gender: domain.GenderUnknown, Favourites: 0},
		{Favourites: 12000, Role: domain.RoleBackground},
	}
	seriesList := []*domain.Series{
		nil,
		{Title: "One Piece", Status: domain.StatusReleasing, Format: domain.FormatTV, SeasonYear: 2025},
		{Title: "old show", Status: domain.StatusCancelled, Format: domain.FormatOVA, SeasonYear: 1999},
	}

	for _, ch := range characters {
		for _, series := range seriesList {
			result := Score(cfg, ch, series, now)
			assert.GreaterOrEqual(t, result.TotalMultiplier, cfg.MinTotalMultiplier)
			assert.LessOrEqual(t, result.TotalMultiplier, cfg.MaxTotalMultiplier)
			assert.InDelta(t, result.BaseScore*result.TotalMultiplier, result.FinalScore, 1e-9)
		}
	}
}

func TestScoreDeterministic(t *testing.T) {
	cfg := testConfig()
	now := time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC)
	ch := domain.Character{Gender: domain.GenderFemale, Favourites: 4321, Role: domain.RoleMain}
	series := &domain.Series{Title: "Some Show", Status: domain.StatusFinished, Format: domain.FormatMovie, SeasonYear: 2023}

	first := Score(cfg, ch, series, now)
	second := Score(cfg, ch, series, now)

	assert.Equal(t, first, second)
}

func TestGenderBoostUnknownFallback(t *testing.T) {
	cfg := testConfig()

	// Empty gender reads as Unknown, not as a missing boost.
	assert.InDelta(t, 1.0, cfg.genderBoost(""), 1e-9)
	assert.InDelta(t, 1.0, cfg.genderBoost(domain.Gender("Other")), 1e-9)
}

func TestRecencyBoostUnknownYear(t *testing.T) {
	cfg := testConfig()
	now := time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC)

	assert.InDelta(t, 1.0, cfg.recencyBoost(0, now), 1e-9)
	assert.InDelta(t, 1.25, cfg.recencyBoost(2025, now), 1e-9)
	assert.InDelta(t, 1.15, cfg.recencyBoost(2024, now), 1e-9)
	// Older than every tier falls back to neutral.
	assert.InDelta(t, 1.0, cfg.recencyBoost(1980, now), 1e-9)
}

func TestKeywordBoostCaseInsensitiveSubstring(t *testing.T) {
	cfg := testConfig()

	assert.InDelta(t, 1.12, cfg.keywordBoost("ONE PIECE: Egghead Arc"), 1e-9)
	assert.InDelta(t, 1.0, cfg.keywordBoost("Fullmetal Alchemist"), 1e-9)
	assert.InDelta(t, 1.0, cfg.keywordBoost(""), 1e-9)
}
