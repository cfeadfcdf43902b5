package lifecycle

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"cosplayradar/internal/domain"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	mu     sync.Mutex
	states map[string]domain.LifecycleState
}

func newFakeStore() *fakeStore {
	return &fakeStore{states: make(map[string]domain.LifecycleState)}
}

func (f *fakeStore) Get(_ context.Context, seriesID string) (*domain.LifecycleState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	state, ok := f.states[seriesID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &state, nil
}

func (f *fakeStore) ListByStages(_ context.Context, stages ...domain.LifecycleStage) ([]domain.LifecycleState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.LifecycleState
	for _, state := range f.states {
		for _, stage := range stages {
			if state.Stage == stage {
				out = append(out, state)
				break
			}
		}
	}
	return out, nil
}

func (f *fakeStore) Upsert(_ context.Context, state *domain.LifecycleState) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.states[state.SeriesID] = *state
	return nil
}

func (f *fakeStore) Delete(_ context.Context, seriesID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.states[seriesID]; !ok {
		return domain.ErrNotFound
	}
	delete(f.states, seriesID)
	return nil
}

func (f *fakeStore) StageCounts(_ context.Context) (map[domain.LifecycleStage]int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	counts := make(map[domain.LifecycleStage]int)
	for _, state := range f.states {
		counts[state.Stage]++
	}
	return counts, nil
}

func (f *fakeStore) stage(t *testing.T, seriesID string) domain.LifecycleStage {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	state, ok := f.states[seriesID]
	require.True(t, ok, "series %s not tracked", seriesID)
	return state.Stage
}

type fakeMetrics struct {
	mu      sync.Mutex
	metrics map[string]Metrics
	errs    map[string]error
}

func newFakeMetrics() *fakeMetrics {
	return &fakeMetrics{metrics: make(map[string]Metrics), errs: make(map[string]error)}
}

func (f *fakeMetrics) SeriesMetrics(_ context.Context, seriesID string) (Metrics, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.errs[seriesID]; ok {
		return Metrics{}, err
	}
	return f.metrics[seriesID], nil
}

func newTestManager(t *testing.T) (*Manager, *fakeStore, *fakeMetrics) {
	t.Helper()
	store := newFakeStore()
	metrics := newFakeMetrics()
	return NewManager(testLifecycleConfig(), store, metrics, zerolog.Nop()), store, metrics
}

func TestTrackInitialStageFromStatus(t *testing.T) {
	m, store, _ := newTestManager(t)
	ctx := context.Background()

	_, err := m.Track(ctx, domain.Series{ID: "anilist:1", Status: domain.StatusReleasing})
	require.NoError(t, err)
	assert.Equal(t, domain.StageActive, store.stage(t, "anilist:1"))

	_, err = m.Track(ctx, domain.Series{ID: "anilist:2", Status: domain.StatusFinished})
	require.NoError(t, err)
	assert.Equal(t, domain.StageGracePeriod, store.stage(t, "anilist:2"))

	// Unmapped statuses default to the grace period.
	_, err = m.Track(ctx, domain.Series{ID: "anilist:3", Status: domain.StatusHiatus})
	require.NoError(t, err)
	assert.Equal(t, domain.StageGracePeriod, store.stage(t, "anilist:3"))
}

func TestTrackIsIdempotent(t *testing.T) {
	m, store, _ := newTestManager(t)
	ctx := context.Background()

	first, err := m.Track(ctx, domain.Series{ID: "anilist:1", Status: domain.StatusReleasing})
	require.NoError(t, err)

	// Re-tracking must not reset the stage, even if the status changed.
	second, err := m.Track(ctx, domain.Series{ID: "anilist:1", Status: domain.StatusFinished})
	require.NoError(t, err)

	assert.Equal(t, first.Stage, second.Stage)
	assert.Equal(t, domain.StageActive, store.stage(t, "anilist:1"))
}

func TestRunCountsDecisions(t *testing.T) {
	m, store, metrics := newTestManager(t)
	ctx := context.Background()

	_, err := m.Track(ctx, domain.Series{ID: "keep", Status: domain.StatusReleasing})
	require.NoError(t, err)
	metrics.metrics["keep"] = Metrics{Popularity: 300, Favourites: 600}

	_, err = m.Track(ctx, domain.Series{ID: "grace", Status: domain.StatusFinished})
	require.NoError(t, err)
	metrics.metrics["grace"] = Metrics{Popularity: 90, CharacterCount: 3}

	_, err = m.Track(ctx, domain.Series{ID: "dead", Status: domain.StatusFinished})
	require.NoError(t, err)
	metrics.metrics["dead"] = Metrics{}

	report, err := m.Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, 3, report.SeriesEvaluated)
	assert.Equal(t, 1, report.KeptActive)
	assert.Equal(t, 1, report.GraceExtended)
	assert.Equal(t, 1, report.Archived)
	assert.Empty(t, report.Errors)

	assert.Equal(t, domain.StageActive, store.stage(t, "keep"))
	assert.Equal(t, domain.StageGracePeriod, store.stage(t, "grace"))
	assert.Equal(t, domain.StageArchived, store.stage(t, "dead"))

	assert.Same(t, report, m.LastRun())
}

func TestRunRecordsPerSeriesErrors(t *testing.T) {
	m, store, metrics := newTestManager(t)
	ctx := context.Background()

	_, err := m.Track(ctx, domain.Series{ID: "ok", Status: domain.StatusReleasing})
	require.NoError(t, err)
	metrics.metrics["ok"] = Metrics{Popularity: 300, Favourites: 600}

	_, err = m.Track(ctx, domain.Series{ID: "broken", Status: domain.StatusReleasing})
	require.NoError(t, err)
	metrics.errs["broken"] = errors.New("metrics backend down")

	report, err := m.Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, 2, report.SeriesEvaluated)
	assert.Equal(t, 1, report.KeptActive)
	require.Len(t, report.Errors, 1)
	assert.Contains(t, report.Errors[0], "broken")

	// The failing series keeps its previous stage untouched.
	assert.Equal(t, domain.StageActive, store.stage(t, "broken"))
}

func TestRunNeverArchiveIsSticky(t *testing.T) {
	m, store, metrics := newTestManager(t)
	ctx := context.Background()

	_, err := m.Track(ctx, domain.Series{ID: "classic", Status: domain.StatusFinished})
	require.NoError(t, err)

	metrics.metrics["classic"] = Metrics{Favourites: 6000}
	_, err = m.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.StageActive, store.stage(t, "classic"))

	// Metrics collapse entirely; the flag set on the first run still holds.
	metrics.metrics["classic"] = Metrics{}
	report, err := m.Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, 1, report.KeptActive)
	assert.Equal(t, 0, report.Archived)
	assert.Equal(t, domain.StageActive, store.stage(t, "classic"))
}

func TestRunArchivingDisabledKeepsStage(t *testing.T) {
	cfg := testLifecycleConfig()
	cfg.Automation.EnableAutomaticArchiving = false
	store := newFakeStore()
	metrics := newFakeMetrics()
	m := NewManager(cfg, store, metrics, zerolog.Nop())
	ctx := context.Background()

	_, err := m.Track(ctx, domain.Series{ID: "dead", Status: domain.StatusFinished})
	require.NoError(t, err)
	metrics.metrics["dead"] = Metrics{}

	_, err = m.Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, domain.StageGracePeriod, store.stage(t, "dead"))
}

func TestRunGracePeriodStaysBounded(t *testing.T) {
	m, store, metrics := newTestManager(t)
	ctx := context.Background()

	// Hovering just below keep-active: composite 42 against threshold 50,
	// enough for an extension on every run.
	entered := time.Now().AddDate(0, 0, -29)
	require.NoError(t, store.Upsert(ctx, &domain.LifecycleState{
		SeriesID:       "hover",
		Stage:          domain.StageGracePeriod,
		StageEnteredAt: entered,
	}))
	metrics.metrics["hover"] = Metrics{Popularity: 90, CharacterCount: 3}

	report, err := m.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.GraceExtended)

	// The extension must not restart the grace clock.
	state, err := store.Get(ctx, "hover")
	require.NoError(t, err)
	assert.Equal(t, domain.StageGracePeriod, state.Stage)
	assert.True(t, state.StageEnteredAt.Equal(entered),
		"grace entry timestamp must survive an extension")

	// Once the series overstays the grace period plus the extension window,
	// the same metrics stop saving it.
	state.StageEnteredAt = time.Now().AddDate(0, 0, -45)
	require.NoError(t, store.Upsert(ctx, state))

	report, err = m.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Archived)
	assert.Equal(t, domain.StageArchived, store.stage(t, "hover"))
}

func TestRunMarksLongArchivedDeletable(t *testing.T) {
	m, store, _ := newTestManager(t)
	ctx := context.Background()

	old := time.Now().AddDate(0, 0, -61)
	require.NoError(t, store.Upsert(ctx, &domain.LifecycleState{
		SeriesID:       "stale",
		Stage:          domain.StageArchived,
		StageEnteredAt: old,
	}))
	require.NoError(t, store.Upsert(ctx, &domain.LifecycleState{
		SeriesID:       "fresh",
		Stage:          domain.StageArchived,
		StageEnteredAt: time.Now().AddDate(0, 0, -10),
	}))
	require.NoError(t, store.Upsert(ctx, &domain.LifecycleState{
		SeriesID:       "protected",
		Stage:          domain.StageArchived,
		StageEnteredAt: old,
		NeverArchive:   true,
	}))

	report, err := m.Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, 1, report.MarkedDeletable)
	assert.Equal(t, domain.StageReadyForDeletion, store.stage(t, "stale"))
	assert.Equal(t, domain.StageArchived, store.stage(t, "fresh"))
	assert.Equal(t, domain.StageArchived, store.stage(t, "protected"))
}

func TestApproveDeletion(t *testing.T) {
	m, store, _ := newTestManager(t)
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, &domain.LifecycleState{
		SeriesID:       "doomed",
		Stage:          domain.StageReadyForDeletion,
		StageEnteredAt: time.Now().AddDate(0, 0, -31),
	}))
	require.NoError(t, store.Upsert(ctx, &domain.LifecycleState{
		SeriesID: "active",
		Stage:    domain.StageActive,
	}))
	require.NoError(t, store.Upsert(ctx, &domain.LifecycleState{
		SeriesID:       "fresh",
		Stage:          domain.StageReadyForDeletion,
		StageEnteredAt: time.Now().AddDate(0, 0, -5),
	}))

	var verr *domain.ValidationError

	// Manual approval is required by config.
	err := m.ApproveDeletion(ctx, "doomed", "")
	require.ErrorAs(t, err, &verr)

	// Only ready_for_deletion series may be deleted.
	err = m.ApproveDeletion(ctx, "active", "ops")
	require.ErrorAs(t, err, &verr)

	// A series must sit in ready_for_deletion for deletion_ready_days first.
	err = m.ApproveDeletion(ctx, "fresh", "ops")
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, domain.StageReadyForDeletion, store.stage(t, "fresh"))

	require.NoError(t, m.ApproveDeletion(ctx, "doomed", "ops"))
	_, err = store.Get(ctx, "doomed")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	err = m.ApproveDeletion(ctx, "missing", "ops")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestStatistics(t *testing.T) {
	m, store, _ := newTestManager(t)
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, &domain.LifecycleState{SeriesID: "a", Stage: domain.StageActive}))
	require.NoError(t, store.Upsert(ctx, &domain.LifecycleState{SeriesID: "b", Stage: domain.StageActive}))
	require.NoError(t, store.Upsert(ctx, &domain.LifecycleState{SeriesID: "c", Stage: domain.StageArchived}))

	stats, err := m.Statistics(ctx)
	require.NoError(t, err)

	assert.Equal(t, 2, stats[domain.StageActive])
	assert.Equal(t, 1, stats[domain.StageArchived])
}
