package fetch

import "strings"

// Page is an HTML response fetched for a domain.
type Page struct {
	// URL is the final URL after redirects.
	URL string

	// Scheme is the scheme of the attempt that produced the page.
	Scheme string

	// StatusCode is the HTTP status of the final response.
	StatusCode int

	// ContentType is the raw Content-Type header.
	ContentType string

	// Headers holds the response headers, multi-values joined with ", ".
	Headers map[string]string

	// Body is the response body, read up to the configured limit.
	Body []byte

	// Truncated is true when the body was cut at the size limit.
	Truncated bool

	// ElapsedMS is the time from sending the request until the response
	// headers arrived, in milliseconds.
	ElapsedMS int64
}

// Attempt describes one scheme that was tried and did not produce a page.
type Attempt struct {
	// Scheme is the scheme of the attempt.
	Scheme string

	// URL is the URL requested.
	URL string

	// Reason is a short description of why the attempt did not count.
	Reason string
}

// Result is the outcome of fetching a domain.
// Page is nil when the domain is unreachable on every scheme.
type Result struct {
	Page     *Page
	Attempts []Attempt
}

// Reachable reports whether an HTML page was fetched.
func (r Result) Reachable() bool {
	return r.Page != nil
}

// Reason summarizes why the domain was unreachable, e.g.
// "http: connection refused; https: not html (image/png)".
func (r Result) Reason() string {
	parts := make([]string, 0, len(r.Attempts))
	for _, a := range r.Attempts {
		parts = append(parts, a.Scheme+": "+a.Reason)
	}
	return strings.Join(parts, "; ")
}
