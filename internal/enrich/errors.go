package enrich

import "errors"

// ErrMalformedLine is returned when a routing table line cannot be parsed.
var ErrMalformedLine = errors.New("malformed routing table line")
