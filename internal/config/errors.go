package config

import "errors"

// Configuration validation errors.
// These errors are returned by Config.Validate() so callers can use
// errors.Is() while still getting a readable message.
var (
	// ErrInvalidWorkers is returned when the worker count is not positive.
	ErrInvalidWorkers = errors.New("invalid workers: must be positive")

	// ErrUnknownBroker is returned when broker is neither "redis" nor "memory".
	ErrUnknownBroker = errors.New("unknown broker: must be \"redis\" or \"memory\"")

	// ErrNoRedisURL is returned when the Redis broker is selected without a URL.
	ErrNoRedisURL = errors.New("no redis url: the redis broker requires redis_url")

	// ErrNoSchemes is returned when no URL scheme is configured.
	ErrNoSchemes = errors.New("no schemes: at least one of http or https is required")

	// ErrUnknownScheme is returned when a scheme other than http or https is configured.
	ErrUnknownScheme = errors.New("unknown scheme: only http and https are supported")

	// ErrInvalidTimeout is returned when a connect, read or task timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidMaxRedirects is returned when the redirect limit is negative.
	ErrInvalidMaxRedirects = errors.New("invalid max redirects: must be non-negative")

	// ErrInvalidMaxBodySize is returned when the max body size is negative.
	// Use 0 to use the default limit.
	ErrInvalidMaxBodySize = errors.New("invalid max body size: must be non-negative")

	// ErrInvalidClaimTTL is returned when the claim TTL is not positive.
	ErrInvalidClaimTTL = errors.New("invalid claim ttl: must be positive")

	// ErrInvalidMaxAttempts is returned when max attempts is not positive.
	ErrInvalidMaxAttempts = errors.New("invalid max attempts: must be positive")

	// ErrInvalidRetryBackoff is returned when the retry backoff is not positive
	// or its cap is below the base delay.
	ErrInvalidRetryBackoff = errors.New("invalid retry backoff: base must be positive and not above the cap")

	// ErrInvalidLogFormat is returned when log format is neither "text" nor "json".
	ErrInvalidLogFormat = errors.New("invalid log format: must be \"text\" or \"json\"")

	// ErrConflictingReportFormats is returned when both --json and --markdown
	// are specified. Only one output format can be used at a time.
	ErrConflictingReportFormats = errors.New("conflicting report formats: --json and --markdown cannot be used together")
)
