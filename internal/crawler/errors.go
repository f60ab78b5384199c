package crawler

import (
	"errors"
	"fmt"
	"time"
)

// ErrEmptyDomain is returned when Crawl is called without a domain name.
var ErrEmptyDomain = errors.New("empty domain name")

// ErrClaimBusy matches a BusyError with errors.Is.
var ErrClaimBusy = errors.New("domain claimed by another worker")

// BusyError is returned when another worker holds a live claim on the
// domain. The task must be tried again later: the claim either ends with a
// record, and the next delivery is skipped, or goes stale and is taken over.
type BusyError struct {
	Domain string
	Delay  time.Duration
}

// Error implements error.
func (e *BusyError) Error() string {
	return fmt.Sprintf("%s is claimed by another worker", e.Domain)
}

// Is reports whether target is ErrClaimBusy.
func (e *BusyError) Is(target error) bool {
	return target == ErrClaimBusy
}

// RetryAfter returns how long to wait before the next delivery.
func (e *BusyError) RetryAfter() time.Duration {
	return e.Delay
}
