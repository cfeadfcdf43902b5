package constants

import "time"

const (
	// SourceCacheTTL matches observed upstream data volatility.
	SourceCacheTTL     = 30 * time.Minute
	SourceCacheEntries = 2048
	CacheSweepInterval = 5 * time.Minute

	// RateLimitBackoff is the single-retry delay after an upstream 429.
	RateLimitBackoff = 500 * time.Millisecond
)

const (
	ExternalAPITimeout = 10 * time.Second
	DatabaseTimeout    = 5 * time.Second
	RequestTimeout     = 30 * time.Second
	AggregateTimeout   = 15 * time.Second
)

const (
	DBMaxOpenConns    = 100
	DBMaxIdleConns    = 10
	DBConnMaxLifetime = 1 * time.Hour
	DBMaxIdleTime     = 10 * time.Minute
	DBBatchSize       = 100
)

const (
	ShutdownTimeout = 5 * time.Second
)

const (
	// Client-side pacing for the upstream catalogs. Jikan is unauthenticated
	// and stricter than AniList.
	AniListRequestsPerSecond = 2
	JikanRequestsPerSecond   = 1
)
