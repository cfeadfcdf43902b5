package lifecycle

import (
	"fmt"
	"time"

	"cosplayradar/internal/domain"
)

// Metrics is the rolling metric set for one tracked series, assembled from
// the aggregated series record and its characters' latest trend scores.
type Metrics struct {
	Popularity           float64
	Favourites           float64
	Trending             float64
	CharacterCount       int
	AvgCharacterTrending float64
	MaxCharacterTrending float64

	// GrowthRate is current trending over the previous evaluation's
	// trending. 1.0 means flat; 0 means no history.
	GrowthRate float64

	StartDate time.Time
}

// Evaluation is the outcome of one lifecycle decision for one series.
type Evaluation struct {
	Decision       domain.Decision
	CompositeScore float64
	Preserved      bool
	Reason         string
}

// CompositeScore blends the series metrics with the configured weights and
// applies bonus multipliers. The bonus product is bounded by the three
// configured multipliers, so no separate clamp is applied here.
func (c *Config) CompositeScore(m Metrics, now time.Time) float64 {
	w := c.Scoring.CompositeWeights

	score := m.Popularity*w.Popularity +
		m.Favourites*w.Favourites +
		m.Trending*w.Trending +
		float64(m.CharacterCount)*w.CharacterCountMultiplier +
		m.AvgCharacterTrending*w.AvgCharacterTrending +
		m.MaxCharacterTrending*w.MaxCharacterTrending

	b := c.Scoring.BonusConditions
	if m.MaxCharacterTrending >= b.HighCharacterEngagement.Threshold && b.HighCharacterEngagement.Threshold > 0 {
		score *= b.HighCharacterEngagement.BonusMultiplier
	}
	if m.GrowthRate >= b.TrendGrowth.Threshold && b.TrendGrowth.Threshold > 0 {
		score *= b.TrendGrowth.BonusMultiplier
	}
	if c.isCurrentSeason(m, now) {
		score *= b.SeasonalRelevance.BonusMultiplier
	}

	return score
}

// isCurrentSeason treats a series as seasonally relevant when it started
// within the configured seasonal window, in days.
func (c *Config) isCurrentSeason(m Metrics, now time.Time) bool {
	window := int(c.Scoring.BonusConditions.SeasonalRelevance.Threshold)
	if m.StartDate.IsZero() || window <= 0 {
		return false
	}
	return !m.StartDate.Before(now.AddDate(0, 0, -window))
}

// isPreserved reports whether the series meets any never-archive rule:
// all-time popularity, all-time favourites, or classic-series age.
func (c *Config) isPreserved(m Metrics, now time.Time) bool {
	rules := c.PreservationRules.NeverArchive
	if rules.MinAllTimePopularity > 0 && m.Popularity >= rules.MinAllTimePopularity {
		return true
	}
	if rules.MinAllTimeFavourites > 0 && m.Favourites >= rules.MinAllTimeFavourites {
		return true
	}
	if rules.ClassicMinAgeYears > 0 && !m.StartDate.IsZero() {
		if !m.StartDate.After(now.AddDate(-rules.ClassicMinAgeYears, 0, 0)) {
			return true
		}
	}
	return false
}

func (c *Config) isHighPriority(m Metrics) bool {
	rules := c.PreservationRules.HighPriority
	if rules.MinPopularity > 0 && m.Popularity >= rules.MinPopularity {
		return true
	}
	if rules.MinFavourites > 0 && m.Favourites >= rules.MinFavourites {
		return true
	}
	return false
}

// Evaluate runs the decision rules for one series, in priority order:
// never-archive override, keep active, extend grace, archive. Grace is
// bounded: a grace-band score stretches the deadline by extended_grace_days
// at most, and a series past its deadline is archived even when the
// extend-grace rule would otherwise fire. The grace clock itself never
// resets on an extension; see Manager.evaluateOne.
func Evaluate(cfg *Config, state domain.LifecycleState, m Metrics, now time.Time) Evaluation {
	composite := cfg.CompositeScore(m, now)

	if state.NeverArchive || cfg.isPreserved(m, now) {
		return Evaluation{
			Decision:       domain.DecisionKeepActive,
			CompositeScore: composite,
			Preserved:      true,
			Reason:         "never-archive preservation rule",
		}
	}

	keep := cfg.Thresholds.KeepActive
	if composite >= keep.MinCompositeScore {
		if m.Popularity >= keep.MinPopularity ||
			m.Favourites >= keep.MinFavourites ||
			m.MaxCharacterTrending >= keep.MinCharacterTrending {
			return Evaluation{
				Decision:       domain.DecisionKeepActive,
				CompositeScore: composite,
				Reason: fmt.Sprintf("score %.1f >= %.1f with sufficient activity",
					composite, keep.MinCompositeScore),
			}
		}
	}

	minForGrace := keep.MinCompositeScore * cfg.Thresholds.ExtendGrace.MinCompositeScoreRatio
	hasActivity := m.Popularity > 0 || m.Trending > 0 || m.CharacterCount > 0 || m.MaxCharacterTrending > 0
	inGraceBand := composite >= minForGrace && hasActivity

	if state.Stage == domain.StageGracePeriod {
		graceFor := now.Sub(state.StageEnteredAt)
		maxGrace := time.Duration(cfg.Periods.GracePeriodDays) * 24 * time.Hour
		if inGraceBand {
			// A grace-band score buys one bounded extension window, never
			// an open-ended one.
			maxGrace += time.Duration(cfg.Periods.ExtendedGraceDays) * 24 * time.Hour
		}
		if graceFor > maxGrace {
			return Evaluation{
				Decision:       domain.DecisionArchive,
				CompositeScore: composite,
				Reason:         fmt.Sprintf("grace period expired after %d days", int(graceFor.Hours()/24)),
			}
		}
	}

	if inGraceBand {
		return Evaluation{
			Decision:       domain.DecisionExtendGrace,
			CompositeScore: composite,
			Reason:         fmt.Sprintf("moderate score %.1f >= %.1f, activity present", composite, minForGrace),
		}
	}

	return Evaluation{
		Decision:       domain.DecisionArchive,
		CompositeScore: composite,
		Reason:         fmt.Sprintf("score %.1f below %.1f", composite, minForGrace),
	}
}
