package lifecycle

import (
	"cosplayradar/internal/domain"

	"github.com/spf13/viper"
)

// Config is the validated lifecycle configuration snapshot.
type Config struct {
	Periods           Periods           `mapstructure:"periods"`
	Thresholds        Thresholds        `mapstructure:"thresholds"`
	Scoring           Scoring           `mapstructure:"scoring"`
	Automation        Automation        `mapstructure:"automation"`
	PreservationRules PreservationRules `mapstructure:"preservation_rules"`

	// Initial stage per release status when a series is first tracked.
	StatusTransitions map[string]string `mapstructure:"status_transitions"`
}

type Periods struct {
	GracePeriodDays    int `mapstructure:"grace_period_days"`
	ExtendedGraceDays  int `mapstructure:"extended_grace_days"`
	ArchiveCleanupDays int `mapstructure:"archive_cleanup_days"`
	DeletionReadyDays  int `mapstructure:"deletion_ready_days"`
}

type Thresholds struct {
	KeepActive  KeepActiveThresholds  `mapstructure:"keep_active"`
	ExtendGrace ExtendGraceThresholds `mapstructure:"extend_grace"`
}

type KeepActiveThresholds struct {
	MinCompositeScore    float64 `mapstructure:"min_composite_score"`
	MinPopularity        float64 `mapstructure:"min_popularity"`
	MinFavourites        float64 `mapstructure:"min_favourites"`
	MinCharacterTrending float64 `mapstructure:"min_character_trending"`
}

type ExtendGraceThresholds struct {
	MinCompositeScoreRatio float64 `mapstructure:"min_composite_score_ratio"`
}

type Scoring struct {
	CompositeWeights CompositeWeights `mapstructure:"composite_weights"`
	BonusConditions  BonusConditions  `mapstructure:"bonus_conditions"`
}

type CompositeWeights struct {
	Popularity               float64 `mapstructure:"popularity"`
	Favourites               float64 `mapstructure:"favourites"`
	Trending                 float64 `mapstructure:"trending"`
	CharacterCountMultiplier float64 `mapstructure:"character_count_multiplier"`
	AvgCharacterTrending     float64 `mapstructure:"avg_character_trending"`
	MaxCharacterTrending     float64 `mapstructure:"max_character_trending"`
}

type BonusConditions struct {
	HighCharacterEngagement BonusCondition `mapstructure:"high_character_engagement"`
	TrendGrowth             BonusCondition `mapstructure:"trend_growth"`
	SeasonalRelevance       BonusCondition `mapstructure:"seasonal_relevance"`
}

type BonusCondition struct {
	Threshold       float64 `mapstructure:"threshold"`
	BonusMultiplier float64 `mapstructure:"bonus_multiplier"`
}

type Automation struct {
	RunFrequencyHours                int  `mapstructure:"run_frequency_hours"`
	BatchSize                        int  `mapstructure:"batch_size"`
	EnableAutomaticArchiving         bool `mapstructure:"enable_automatic_archiving"`
	EnableAutomaticDeletion          bool `mapstructure:"enable_automatic_deletion"`
	RequireManualApprovalForDeletion bool `mapstructure:"require_manual_approval_for_deletion"`
}

type PreservationRules struct {
	NeverArchive NeverArchiveRules `mapstructure:"never_archive"`
	HighPriority HighPriorityRules `mapstructure:"high_priority"`
}

type NeverArchiveRules struct {
	MinAllTimePopularity float64 `mapstructure:"min_all_time_popularity"`
	MinAllTimeFavourites float64 `mapstructure:"min_all_time_favourites"`
	ClassicMinAgeYears   int     `mapstructure:"classic_min_age_years"`
}

type HighPriorityRules struct {
	MinPopularity float64 `mapstructure:"min_popularity"`
	MinFavourites float64 `mapstructure:"min_favourites"`
}

// LoadConfig reads and validates the lifecycle configuration document.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")
	if err := v.ReadInConfig(); err != nil {
		return nil, &domain.ConfigError{Document: "lifecycle", Field: path, Reason: err.Error()}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, &domain.ConfigError{Document: "lifecycle", Field: path, Reason: err.Error()}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Periods.GracePeriodDays <= 0 {
		return configErr("periods.grace_period_days", "must be > 0")
	}
	if c.Periods.ExtendedGraceDays <= 0 {
		return configErr("periods.extended_grace_days", "must be > 0")
	}
	if c.Periods.ArchiveCleanupDays <= 0 {
		return configErr("periods.archive_cleanup_days", "must be > 0")
	}
	if c.Thresholds.KeepActive.MinCompositeScore <= 0 {
		return configErr("thresholds.keep_active.min_composite_score", "must be > 0")
	}
	ratio := c.Thresholds.ExtendGrace.MinCompositeScoreRatio
	if ratio <= 0 || ratio > 1 {
		return configErr("thresholds.extend_grace.min_composite_score_ratio", "must be in (0, 1]")
	}
	if c.Automation.RunFrequencyHours <= 0 {
		return configErr("automation.run_frequency_hours", "must be > 0")
	}
	if c.Automation.BatchSize <= 0 {
		return configErr("automation.batch_size", "must be > 0")
	}
	for _, b := range []struct {
		field string
		cond  BonusCondition
	}{
		{"scoring.bonus_conditions.high_character_engagement", c.Scoring.BonusConditions.HighCharacterEngagement},
		{"scoring.bonus_conditions.trend_growth", c.Scoring.BonusConditions.TrendGrowth},
		{"scoring.bonus_conditions.seasonal_relevance", c.Scoring.BonusConditions.SeasonalRelevance},
	} {
		if b.cond.BonusMultiplier <= 0 {
			return configErr(b.field+".bonus_multiplier", "must be > 0")
		}
	}
	return nil
}

func configErr(field, reason string) *domain.ConfigError {
	return &domain.ConfigError{Document: "lifecycle", Field: field, Reason: reason}
}
