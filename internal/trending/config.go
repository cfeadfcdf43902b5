package trending

import (
	"fmt"
	"sort"
	"strings"

	"cosplayradar/internal/domain"

	"github.com/spf13/viper"
)

// Config is the validated, immutable boost configuration snapshot. Loaded
// once per process; re-loading requires an external trigger.
type Config struct {
	FavouritesDivisor float64
	MinFavourites     int

	GenderBoosts map[domain.Gender]float64

	// Sorted by MinFavourites descending; first tier at or below the
	// character's favourites wins.
	PopularityTiers []PopularityTier

	StatusBoosts map[domain.ReleaseStatus]float64

	// Sorted by MaxYearsAgo ascending; smallest bucket containing
	// (current year - season year) wins.
	RecencyTiers []RecencyTier

	FormatBoosts map[domain.Format]float64
	RoleBoosts   map[domain.Role]float64

	// Evaluated in document order; the first keyword set with a
	// case-insensitive substring match against the series title wins.
	KeywordBoosts       []KeywordBoost
	DefaultKeywordBoost float64

	MinTotalMultiplier float64
	MaxTotalMultiplier float64

	AlgorithmVersion string
}

type PopularityTier struct {
	MinFavourites int     `mapstructure:"min_favourites"`
	Boost         float64 `mapstructure:"boost"`
}

type RecencyTier struct {
	MaxYearsAgo int     `mapstructure:"max_years_ago"`
	Boost       float64 `mapstructure:"boost"`
}

type KeywordBoost struct {
	Keywords []string `mapstructure:"keywords"`
	Boost    float64  `mapstructure:"boost"`
}

// boostDocument mirrors the JSON layout of the boost configuration file.
type boostDocument struct {
	BaseScore struct {
		FavouritesDivisor float64 `mapstructure:"favourites_divisor"`
		MinFavourites     int     `mapstructure:"min_favourites"`
	} `mapstructure:"base_score"`
	GenderBoosts     map[string]float64 `mapstructure:"gender_boosts"`
	PopularityBoosts struct {
		Tiers []PopularityTier `mapstructure:"tiers"`
	} `mapstructure:"popularity_boosts"`
	StatusBoosts  map[string]boostEntry `mapstructure:"status_boosts"`
	RecencyBoosts struct {
		Tiers []RecencyTier `mapstructure:"tiers"`
	} `mapstructure:"recency_boosts"`
	FormatBoosts         map[string]boostEntry `mapstructure:"format_boosts"`
	RoleBoosts           map[string]boostEntry `mapstructure:"role_boosts"`
	SeriesKeywordsBoosts struct {
		DefaultBoost     float64        `mapstructure:"default_boost"`
		TrendingKeywords []KeywordBoost `mapstructure:"trending_keywords"`
	} `mapstructure:"series_keywords_boosts"`
	Limits struct {
		MaxTotalMultiplier float64 `mapstructure:"max_total_multiplier"`
		MinTotalMultiplier float64 `mapstructure:"min_total_multiplier"`
	} `mapstructure:"limits"`
	AlgorithmMetadata struct {
		CurrentVersion string `mapstructure:"current_version"`
	} `mapstructure:"algorithm_metadata"`
}

type boostEntry struct {
	Boost float64 `mapstructure:"boost"`
}

// LoadConfig reads and validates the boost configuration document.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")
	if err := v.ReadInConfig(); err != nil {
		return nil, &domain.ConfigError{Document: "boost", Field: path, Reason: err.Error()}
	}

	var doc boostDocument
	if err := v.Unmarshal(&doc); err != nil {
		return nil, &domain.ConfigError{Document: "boost", Field: path, Reason: err.Error()}
	}

	return buildConfig(&doc)
}

func buildConfig(doc *boostDocument) (*Config, error) {
	if doc.BaseScore.FavouritesDivisor <= 0 {
		return nil, configErr("base_score.favourites_divisor", "must be > 0")
	}
	if doc.AlgorithmMetadata.CurrentVersion == "" {
		return nil, configErr("algorithm_metadata.current_version", "missing")
	}
	if doc.Limits.MinTotalMultiplier <= 0 || doc.Limits.MaxTotalMultiplier <= 0 {
		return nil, configErr("limits", "multiplier limits must be > 0")
	}
	if doc.Limits.MinTotalMultiplier > doc.Limits.MaxTotalMultiplier {
		return nil, configErr("limits", "min_total_multiplier > max_total_multiplier")
	}

	cfg := &Config{
		FavouritesDivisor:   doc.BaseScore.FavouritesDivisor,
		MinFavourites:       doc.BaseScore.MinFavourites,
		GenderBoosts:        make(map[domain.Gender]float64, len(doc.GenderBoosts)),
		PopularityTiers:     append([]PopularityTier(nil), doc.PopularityBoosts.Tiers...),
		StatusBoosts:        make(map[domain.ReleaseStatus]float64, len(doc.StatusBoosts)),
		RecencyTiers:        append([]RecencyTier(nil), doc.RecencyBoosts.Tiers...),
		FormatBoosts:        make(map[domain.Format]float64, len(doc.FormatBoosts)),
		RoleBoosts:          make(map[domain.Role]float64, len(doc.RoleBoosts)),
		KeywordBoosts:       append([]KeywordBoost(nil), doc.SeriesKeywordsBoosts.TrendingKeywords...),
		DefaultKeywordBoost: doc.SeriesKeywordsBoosts.DefaultBoost,
		MinTotalMultiplier:  doc.Limits.MinTotalMultiplier,
		MaxTotalMultiplier:  doc.Limits.MaxTotalMultiplier,
		AlgorithmVersion:    doc.AlgorithmMetadata.CurrentVersion,
	}

	if len(doc.GenderBoosts) == 0 {
		return nil, configErr("gender_boosts", "missing")
	}
	for k, boost := range doc.GenderBoosts {
		if boost <= 0 {
			return nil, configErr("gender_boosts."+k, "boost must be > 0")
		}
		cfg.GenderBoosts[domain.Gender(k)] = boost
	}

	if len(cfg.PopularityTiers) == 0 {
		return nil, configErr("popularity_boosts.tiers", "missing")
	}
	for i, tier := range cfg.PopularityTiers {
		if tier.Boost <= 0 {
			return nil, configErr(fmt.Sprintf("popularity_boosts.tiers[%d]", i), "boost must be > 0")
		}
	}
	sort.Slice(cfg.PopularityTiers, func(i, j int) bool {
		return cfg.PopularityTiers[i].MinFavourites > cfg.PopularityTiers[j].MinFavourites
	})

	for k, entry := range doc.StatusBoosts {
		if entry.Boost <= 0 {
			return nil, configErr("status_boosts."+k, "boost must be > 0")
		}
		cfg.StatusBoosts[domain.ReleaseStatus(k)] = entry.Boost
	}

	if len(cfg.RecencyTiers) == 0 {
		return nil, configErr("recency_boosts.tiers", "missing")
	}
	for i, tier := range cfg.RecencyTiers {
		if tier.Boost <= 0 {
			return nil, configErr(fmt.Sprintf("recency_boosts.tiers[%d]", i), "boost must be > 0")
		}
		if tier.MaxYearsAgo < 0 {
			return nil, configErr(fmt.Sprintf("recency_boosts.tiers[%d]", i), "max_years_ago must be >= 0")
		}
	}
	sort.Slice(cfg.RecencyTiers, func(i, j int) bool {
		return cfg.RecencyTiers[i].MaxYearsAgo < cfg.RecencyTiers[j].MaxYearsAgo
	})

	for k, entry := range doc.FormatBoosts {
		if entry.Boost <= 0 {
			return nil, configErr("format_boosts."+k, "boost must be > 0")
		}
		cfg.FormatBoosts[domain.Format(k)] = entry.Boost
	}

	for k, entry := range doc.RoleBoosts {
		if entry.Boost <= 0 {
			return nil, configErr("role_boosts."+k, "boost must be > 0")
		}
		cfg.RoleBoosts[domain.Role(k)] = entry.Boost
	}

	for i, kb := range cfg.KeywordBoosts {
		if kb.Boost <= 0 {
			return nil, configErr(fmt.Sprintf("series_keywords_boosts.trending_keywords[%d]", i), "boost must be > 0")
		}
		if len(kb.Keywords) == 0 {
			return nil, configErr(fmt.Sprintf("series_keywords_boosts.trending_keywords[%d]", i), "keywords missing")
		}
		for j, kw := range kb.Keywords {
			cfg.KeywordBoosts[i].Keywords[j] = strings.ToLower(kw)
		}
	}
	if cfg.DefaultKeywordBoost == 0 {
		cfg.DefaultKeywordBoost = 1.0
	}
	if cfg.DefaultKeywordBoost < 0 {
		return nil, configErr("series_keywords_boosts.default_boost", "must be > 0")
	}

	return cfg, nil
}

func configErr(field, reason string) *domain.ConfigError {
	return &domain.ConfigError{Document: "boost", Field: field, Reason: reason}
}
