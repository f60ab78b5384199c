// Package log builds the slog loggers used by domainmap.
//
// Every logger wraps its text or JSON handler in a RedactHandler, so
// credentials never reach the log output:
//   - sensitive attribute keys (cookie, authorization, password, token)
//   - bearer, basic and JWT token values
//   - passwords embedded in URLs, e.g. the Redis broker URL
//   - sensitive entries of response header maps
//
// # Usage
//
//	logger := log.NewLogger(os.Stderr, log.Level(verbose, slog.LevelInfo), false)
//	logger.Info("connected", "redis", "redis://:secret@cache:6379/0")
//	// redis=redis://:***REDACTED***@cache:6379/0
package log
