package lifecycle

import (
	"context"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"cosplayradar/internal/domain"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// batchConcurrency bounds how many series within a batch are evaluated at
// once. Per-series exclusivity is still guaranteed by the keyed locks.
const batchConcurrency = 8

// StateStore is the persistence contract for lifecycle states.
type StateStore interface {
	Get(ctx context.Context, seriesID string) (*domain.LifecycleState, error)
	ListByStages(ctx context.Context, stages ...domain.LifecycleStage) ([]domain.LifecycleState, error)
	Upsert(ctx context.Context, state *domain.LifecycleState) error
	Delete(ctx context.Context, seriesID string) error
	StageCounts(ctx context.Context) (map[domain.LifecycleStage]int, error)
}

// MetricsProvider assembles the rolling metrics for one series.
type MetricsProvider interface {
	SeriesMetrics(ctx context.Context, seriesID string) (Metrics, error)
}

// RunReport summarizes one lifecycle evaluation run.
type RunReport struct {
	RunID           string
	StartedAt       time.Time
	Duration        time.Duration
	SeriesEvaluated int
	KeptActive      int
	GraceExtended   int
	Archived        int
	MarkedDeletable int
	Errors          []string
}

// Manager owns every LifecycleState mutation. Evaluations for distinct
// series may run concurrently; a striped lock keeps each series
// single-writer.
type Manager struct {
	cfg     *Config
	store   StateStore
	metrics MetricsProvider
	logger  zerolog.Logger

	locks [64]sync.Mutex

	mu      sync.Mutex
	lastRun *RunReport
}

func NewManager(cfg *Config, store StateStore, metrics MetricsProvider, logger zerolog.Logger) *Manager {
	return &Manager{
		cfg:     cfg,
		store:   store,
		metrics: metrics,
		logger:  logger.With().Str("component", "lifecycle").Logger(),
	}
}

func (m *Manager) lockFor(seriesID string) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(seriesID))
	return &m.locks[h.Sum32()%uint32(len(m.locks))]
}

// Track registers a series with the lifecycle manager if it is not already
// tracked. The initial stage comes from the configured status transition
// map; unknown statuses start in the grace period.
func (m *Manager) Track(ctx context.Context, series domain.Series) (*domain.LifecycleState, error) {
	lock := m.lockFor(series.ID)
	lock.Lock()
	defer lock.Unlock()

	if existing, err := m.store.Get(ctx, series.ID); err == nil && existing != nil {
		return existing, nil
	}

	stage := domain.StageGracePeriod
	if mapped, ok := m.cfg.StatusTransitions[string(series.Status)]; ok {
		stage = domain.LifecycleStage(mapped)
	}

	now := time.Now()
	state := &domain.LifecycleState{
		SeriesID:       series.ID,
		Stage:          stage,
		StageEnteredAt: now,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := m.store.Upsert(ctx, state); err != nil {
		return nil, fmt.Errorf("failed to track series %s: %w", series.ID, err)
	}

	m.logger.Info().Str("series_id", series.ID).Str("stage", string(stage)).Msg("series tracked")
	return state, nil
}

// Run evaluates every tracked series in bounded batches. One series failing
// never aborts the batch; its error is recorded and the run continues.
func (m *Manager) Run(ctx context.Context) (*RunReport, error) {
	start := time.Now()
	report := &RunReport{
		RunID:     uuid.New().String(),
		StartedAt: start,
	}

	m.logger.Info().Str("run_id", report.RunID).Msg("lifecycle evaluation starting")

	states, err := m.store.ListByStages(ctx, domain.StageActive, domain.StageGracePeriod)
	if err != nil {
		return nil, fmt.Errorf("failed to list tracked series: %w", err)
	}

	var mu sync.Mutex
	batchSize := m.cfg.Automation.BatchSize
	for i := 0; i < len(states); i += batchSize {
		end := i + batchSize
		if end > len(states) {
			end = len(states)
		}

		g, gCtx := errgroup.WithContext(ctx)
		g.SetLimit(batchConcurrency)
		for _, state := range states[i:end] {
			g.Go(func() error {
				eval, err := m.evaluateOne(gCtx, state)
				mu.Lock()
				defer mu.Unlock()
				report.SeriesEvaluated++
				if err != nil {
					report.Errors = append(report.Errors, fmt.Sprintf("%s: %v", state.SeriesID, err))
					m.logger.Error().Err(err).Str("series_id", state.SeriesID).Msg("series evaluation failed")
					return nil
				}
				switch eval.Decision {
				case domain.DecisionKeepActive:
					report.KeptActive++
				case domain.DecisionExtendGrace:
					report.GraceExtended++
				case domain.DecisionArchive:
					report.Archived++
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return report, err
		}
	}

	marked, err := m.markDeletable(ctx)
	if err != nil {
		report.Errors = append(report.Errors, fmt.Sprintf("cleanup: %v", err))
	}
	report.MarkedDeletable = marked

	report.Duration = time.Since(start)
	m.logger.Info().
		Str("run_id", report.RunID).
		Int("evaluated", report.SeriesEvaluated).
		Int("kept_active", report.KeptActive).
		Int("grace_extended", report.GraceExtended).
		Int("archived", report.Archived).
		Int("marked_deletable", report.MarkedDeletable).
		Int("errors", len(report.Errors)).
		Dur("duration", report.Duration).
		Msg("lifecycle evaluation completed")

	m.mu.Lock()
	m.lastRun = report
	m.mu.Unlock()

	return report, nil
}

// LastRun returns the report from the most recent evaluation, if any.
func (m *Manager) LastRun() *RunReport {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastRun
}

func (m *Manager) evaluateOne(ctx context.Context, state domain.LifecycleState) (Evaluation, error) {
	lock := m.lockFor(state.SeriesID)
	lock.Lock()
	defer lock.Unlock()

	now := time.Now()

	metrics, err := m.metrics.SeriesMetrics(ctx, state.SeriesID)
	if err != nil {
		return Evaluation{}, fmt.Errorf("failed to load metrics: %w", err)
	}

	eval := Evaluate(m.cfg, state, metrics, now)

	state.CompositeScore = eval.CompositeScore
	state.LastEvaluatedAt = now
	state.UpdatedAt = now
	if eval.Preserved {
		// Sticky: once a series qualifies for preservation it can never
		// be auto-archived, even if its metrics later collapse.
		state.NeverArchive = true
	}
	state.HighPriority = m.cfg.isHighPriority(metrics)

	switch eval.Decision {
	case domain.DecisionKeepActive:
		if state.Stage != domain.StageActive {
			state.StageEnteredAt = now
		}
		state.Stage = domain.StageActive
	case domain.DecisionExtendGrace:
		// Extensions keep the original grace-entry timestamp; resetting it
		// here would let a hovering series accrue grace forever.
		if state.Stage != domain.StageGracePeriod {
			state.StageEnteredAt = now
		}
		state.Stage = domain.StageGracePeriod
	case domain.DecisionArchive:
		if !m.cfg.Automation.EnableAutomaticArchiving {
			m.logger.Debug().Str("series_id", state.SeriesID).Msg("automatic archiving disabled, keeping stage")
			break
		}
		state.Stage = domain.StageArchived
		state.StageEnteredAt = now
	}

	m.logger.Info().
		Str("series_id", state.SeriesID).
		Str("decision", string(eval.Decision)).
		Float64("composite_score", eval.CompositeScore).
		Str("stage", string(state.Stage)).
		Str("reason", eval.Reason).
		Msg("lifecycle decision")

	if err := m.store.Upsert(ctx, &state); err != nil {
		return eval, fmt.Errorf("failed to persist state: %w", err)
	}
	return eval, nil
}

// markDeletable moves long-archived series to ready_for_deletion. Nothing is
// ever deleted here; deletion needs an explicit approval call.
func (m *Manager) markDeletable(ctx context.Context) (int, error) {
	archived, err := m.store.ListByStages(ctx, domain.StageArchived)
	if err != nil {
		return 0, err
	}

	cutoff := time.Now().AddDate(0, 0, -m.cfg.Periods.ArchiveCleanupDays)
	marked := 0
	for _, state := range archived {
		if state.StageEnteredAt.After(cutoff) || state.NeverArchive {
			continue
		}
		lock := m.lockFor(state.SeriesID)
		lock.Lock()
		now := time.Now()
		state.Stage = domain.StageReadyForDeletion
		state.StageEnteredAt = now
		state.UpdatedAt = now
		err := m.store.Upsert(ctx, &state)
		lock.Unlock()
		if err != nil {
			m.logger.Error().Err(err).Str("series_id", state.SeriesID).Msg("failed to mark series deletable")
			continue
		}
		marked++
		m.logger.Info().Str("series_id", state.SeriesID).Msg("series marked ready for deletion")
	}
	return marked, nil
}

// ApproveDeletion removes one series' lifecycle state after explicit human
// approval. It refuses unless the series has already been marked
// ready_for_deletion by an evaluation run and has sat there for at least
// deletion_ready_days.
func (m *Manager) ApproveDeletion(ctx context.Context, seriesID, approvedBy string) error {
	if m.cfg.Automation.RequireManualApprovalForDeletion && approvedBy == "" {
		return &domain.ValidationError{Field: "approved_by", Reason: "manual approval required for deletion"}
	}

	lock := m.lockFor(seriesID)
	lock.Lock()
	defer lock.Unlock()

	state, err := m.store.Get(ctx, seriesID)
	if err != nil {
		return err
	}
	if state == nil {
		return domain.ErrNotFound
	}
	if state.Stage != domain.StageReadyForDeletion {
		return &domain.ValidationError{Field: "series_id", Reason: "series is not ready for deletion"}
	}
	minReady := time.Duration(m.cfg.Periods.DeletionReadyDays) * 24 * time.Hour
	if readyFor := time.Since(state.StageEnteredAt); readyFor < minReady {
		return &domain.ValidationError{
			Field: "series_id",
			Reason: fmt.Sprintf("series has been ready for deletion for %d of the required %d days",
				int(readyFor.Hours()/24), m.cfg.Periods.DeletionReadyDays),
		}
	}

	if err := m.store.Delete(ctx, seriesID); err != nil {
		return fmt.Errorf("failed to delete lifecycle state: %w", err)
	}

	m.logger.Info().Str("series_id", seriesID).Str("approved_by", approvedBy).Msg("series deleted after manual approval")
	return nil
}

// State returns the lifecycle state of one tracked series.
func (m *Manager) State(ctx context.Context, seriesID string) (*domain.LifecycleState, error) {
	return m.store.Get(ctx, seriesID)
}

// Statistics returns the count of tracked series per lifecycle stage.
func (m *Manager) Statistics(ctx context.Context) (map[domain.LifecycleStage]int, error) {
	return m.store.StageCounts(ctx)
}
