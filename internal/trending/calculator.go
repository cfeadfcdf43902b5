package trending

import (
	"strings"
	"time"

	"cosplayradar/internal/domain"
)

// Breakdown lists every boost factor applied to a score, before and after
// the global multiplier clamp.
type Breakdown struct {
	Gender     float64
	Popularity float64
	Status     float64
	Recency    float64
	Format     float64
	Role       float64
	Keyword    float64

	RawTotal    float64
	CappedTotal float64
}

// Result is one computed score. The caller persists it as a new snapshot;
// prior snapshots are never overwritten.
type Result struct {
	BaseScore        float64
	TotalMultiplier  float64
	FinalScore       float64
	Breakdown        Breakdown
	AlgorithmVersion string
}

// Score computes the trending score for a character. Deterministic: the same
// character, series, config, and clock always produce the same result. A nil
// series leaves every series-derived factor neutral.
func Score(cfg *Config, ch domain.Character, series *domain.Series, now time.Time) Result {
	base := baseScore(cfg, ch.Favourites)
	bd := multiplierBreakdown(cfg, ch, series, now)

	return Result{
		BaseScore:        base,
		TotalMultiplier:  bd.CappedTotal,
		FinalScore:       base * bd.CappedTotal,
		Breakdown:        bd,
		AlgorithmVersion: cfg.AlgorithmVersion,
	}
}

func baseScore(cfg *Config, favourites int) float64 {
	if favourites < cfg.MinFavourites {
		favourites = cfg.MinFavourites
	}
	if favourites <= 0 {
		return 0
	}
	return float64(favourites) / cfg.FavouritesDivisor
}

func multiplierBreakdown(cfg *Config, ch domain.Character, series *domain.Series, now time.Time) Breakdown {
	bd := Breakdown{
		Gender:     cfg.genderBoost(ch.Gender),
		Popularity: cfg.popularityBoost(ch.Favourites),
		Status:     1.0,
		Recency:    1.0,
		Format:     1.0,
		Role:       cfg.roleBoost(ch.Role),
		Keyword:    1.0,
	}

	if series != nil {
		bd.Status = cfg.statusBoost(series.Status)
		bd.Recency = cfg.recencyBoost(series.SeasonYear, now)
		bd.Format = cfg.formatBoost(series.Format)
		bd.Keyword = cfg.keywordBoost(series.Title)
	}

	bd.RawTotal = bd.Gender * bd.Popularity * bd.Status * bd.Recency * bd.Format * bd.Role * bd.Keyword
	bd.CappedTotal = clamp(bd.RawTotal, cfg.MinTotalMultiplier, cfg.MaxTotalMultiplier)
	return bd
}

func (c *Config) genderBoost(g domain.Gender) float64 {
	if g == "" {
		g = domain.GenderUnknown
	}
	if boost, ok := c.GenderBoosts[g]; ok {
		return boost
	}
	return 1.0
}

func (c *Config) popularityBoost(favourites int) float64 {
	// Tiers are sorted by min_favourites descending; the highest threshold
	// at or below the count wins.
	for _, tier := range c.PopularityTiers {
		if favourites >= tier.MinFavourites {
			return tier.Boost
		}
	}
	return 1.0
}

func (c *Config) statusBoost(status domain.ReleaseStatus) float64 {
	if boost, ok := c.StatusBoosts[status]; ok {
		return boost
	}
	return 1.0
}

func (c *Config) recencyBoost(seasonYear int, now time.Time) float64 {
	if seasonYear == 0 {
		return 1.0
	}
	yearsAgo := now.Year() - seasonYear
	for _, tier := range c.RecencyTiers {
		if yearsAgo <= tier.MaxYearsAgo {
			return tier.Boost
		}
	}
	return 1.0
}

func (c *Config) formatBoost(format domain.Format) float64 {
	if boost, ok := c.FormatBoosts[format]; ok {
		return boost
	}
	return 1.0
}

func (c *Config) roleBoost(role domain.Role) float64 {
	if boost, ok := c.RoleBoosts[role]; ok {
		return boost
	}
	return 1.0
}

func (c *Config) keywordBoost(title string) float64 {
	if title == "" {
		return c.DefaultKeywordBoost
	}
	lower := strings.ToLower(title)
	for _, kb := range c.KeywordBoosts {
		for _, kw := range kb.Keywords {
			if strings.Contains(lower, kw) {
				return kb.Boost
			}
		}
	}
	return c.DefaultKeywordBoost
}

func clamp(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
