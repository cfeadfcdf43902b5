package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for upstream source failures. Aggregation treats a source
// returning one of these as empty and continues with the remaining sources.
var (
	// ErrRateLimited signals upstream throttling. Recoverable: the cache
	// layer retries once after a fixed backoff before propagating.
	ErrRateLimited = errors.New("rate limited by upstream")

	// ErrUpstreamUnavailable signals a network or server failure.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")

	// ErrNotFound means the query was valid but matched no data. Not a
	// failure; aggregation maps it to an empty result.
	ErrNotFound = errors.New("not found")
)

// ConfigError reports malformed or missing configuration. Fatal at startup.
type ConfigError struct {
	Document string // "boost" or "lifecycle"
	Field    string
	Reason   string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config %s: field %q: %s", e.Document, e.Field, e.Reason)
}

// ValidationError reports a malformed input query, rejected before any fetch.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid query: field %q: %s", e.Field, e.Reason)
}
