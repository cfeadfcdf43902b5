package fx

import (
	"cosplayradar/internal/aggregator"
	"cosplayradar/internal/catalog"
	"cosplayradar/internal/config"
	"cosplayradar/internal/constants"
	"cosplayradar/internal/database"
	"cosplayradar/internal/lifecycle"
	"cosplayradar/internal/logger"
	"cosplayradar/internal/repository"
	"cosplayradar/internal/server"
	"cosplayradar/internal/service"
	"cosplayradar/internal/trending"

	"github.com/rs/zerolog"
	"go.uber.org/fx"
)

func ProvideBoostConfig(cfg *config.Config) (*trending.Config, error) {
	return trending.LoadConfig(cfg.BoostConfigPath)
}

func ProvideLifecycleConfig(cfg *config.Config) (*lifecycle.Config, error) {
	return lifecycle.LoadConfig(cfg.LifecycleConfPath)
}

// ProvideSources builds the ordered source list: remote catalogs wrapped in
// the source cache and circuit breaker, the local store last. The cached
// adapters are also provided as a slice so the app can run their sweepers.
func ProvideSources(local *repository.LocalStore, log zerolog.Logger) (*aggregator.Aggregator, []*aggregator.CachedAdapter) {
	anilist := aggregator.NewCachedAdapter(catalog.NewAniListClient(), constants.SourceCacheTTL, constants.SourceCacheEntries, log)
	jikan := aggregator.NewCachedAdapter(catalog.NewJikanClient(), constants.SourceCacheTTL, constants.SourceCacheEntries, log)

	cached := []*aggregator.CachedAdapter{anilist, jikan}
	return aggregator.New(log, anilist, jikan, local), cached
}

func ProvideManager(cfg *lifecycle.Config, store *repository.LifecycleRepository, metrics *service.SeriesMetricsService, log zerolog.Logger) *lifecycle.Manager {
	return lifecycle.NewManager(cfg, store, metrics, log)
}

var Module = fx.Options(
	fx.Provide(logger.New),
	fx.Provide(config.Load),
	fx.Provide(database.New),
	fx.Provide(ProvideBoostConfig),
	fx.Provide(ProvideLifecycleConfig),
	// repos
	fx.Provide(repository.NewCharacterRepository),
	fx.Provide(repository.NewSeriesRepository),
	fx.Provide(repository.NewTrendScoreRepository),
	fx.Provide(repository.NewLifecycleRepository),
	fx.Provide(repository.NewLocalStore),
	// sources
	fx.Provide(ProvideSources),
	// svc
	fx.Provide(service.NewSeriesMetricsService),
	fx.Provide(service.NewTrendingService),
	fx.Provide(ProvideManager),
	fx.Provide(lifecycle.NewScheduler),
	// server
	fx.Provide(server.NewRadarServer),
)
