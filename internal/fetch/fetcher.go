package fetch

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"mime"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Default fetch settings.
const (
	DefaultConnectTimeout = 5 * time.Second
	DefaultReadTimeout    = 15 * time.Second
	DefaultMaxRedirects   = 10
	DefaultMaxBodySize    = 5 * 1024 * 1024
	DefaultUserAgent      = "domainmap/1.0"
)

// Fetcher fetches the landing page of a domain over a list of schemes.
// A Fetcher is safe for concurrent use; all workers of a process share one.
type Fetcher struct {
	client         *http.Client
	schemes        []string
	userAgent      string
	maxBodySize    int64
	readTimeout    time.Duration
	connectTimeout time.Duration
	maxRedirects   int
	proxyAddress   string
	tlsConfig      *tls.Config
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithSchemes sets the schemes tried for each domain, in order.
func WithSchemes(schemes ...string) Option {
	return func(f *Fetcher) {
		f.schemes = schemes
	}
}

// WithConnectTimeout sets the TCP connect and TLS handshake timeout.
func WithConnectTimeout(d time.Duration) Option {
	return func(f *Fetcher) {
		f.connectTimeout = d
	}
}

// WithReadTimeout sets how long to wait for response headers, and then
// again for the body.
func WithReadTimeout(d time.Duration) Option {
	return func(f *Fetcher) {
		f.readTimeout = d
	}
}

// WithMaxRedirects bounds the requests of one attempt, the first one
// included, so n allows n-1 redirects like net/http's default of 10.
func WithMaxRedirects(n int) Option {
	return func(f *Fetcher) {
		f.maxRedirects = n
	}
}

// WithMaxBodySize sets the maximum number of body bytes read.
func WithMaxBodySize(size int64) Option {
	return func(f *Fetcher) {
		if size > 0 {
			f.maxBodySize = size
		}
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(f *Fetcher) {
		if ua != "" {
			f.userAgent = ua
		}
	}
}

// WithProxy routes every connection through a SOCKS5 proxy at "host:port".
func WithProxy(address string) Option {
	return func(f *Fetcher) {
		f.proxyAddress = address
	}
}

// WithTLSConfig sets the TLS client configuration, e.g. to trust a private CA.
func WithTLSConfig(cfg *tls.Config) Option {
	return func(f *Fetcher) {
		f.tlsConfig = cfg
	}
}

// NewFetcher creates a Fetcher. It fails only on invalid options.
func NewFetcher(opts ...Option) (*Fetcher, error) {
	f := &Fetcher{
		schemes:        []string{"http", "https"},
		userAgent:      DefaultUserAgent,
		maxBodySize:    DefaultMaxBodySize,
		readTimeout:    DefaultReadTimeout,
		connectTimeout: DefaultConnectTimeout,
		maxRedirects:   DefaultMaxRedirects,
	}
	for _, opt := range opts {
		opt(f)
	}

	if len(f.schemes) == 0 {
		return nil, ErrNoSchemes
	}

	dial, err := newDialer(&net.Dialer{Timeout: f.connectTimeout, KeepAlive: 30 * time.Second}, f.proxyAddress)
	if err != nil {
		return nil, err
	}

	transport := &http.Transport{
		DialContext:           dial,
		TLSClientConfig:       f.tlsConfig,
		TLSHandshakeTimeout:   f.connectTimeout,
		ResponseHeaderTimeout: f.readTimeout,
		MaxIdleConns:          100,
		IdleConnTimeout:       30 * time.Second,
		// Every domain is a different host, so idle connections are rarely reused.
		MaxIdleConnsPerHost: 1,
	}

	maxRedirects := f.maxRedirects
	f.client = &http.Client{
		Transport: transport,
		CheckRedirect: func(_ *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return errTooManyRedirects
			}
			return nil
		},
	}

	return f, nil
}

// Fetch tries each scheme for domain until one returns an HTML page.
// The returned error is non-nil only when ctx is cancelled or its deadline
// passes; an unreachable domain is reported through Result.
func (f *Fetcher) Fetch(ctx context.Context, domain string) (Result, error) {
	var result Result

	for _, scheme := range f.schemes {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		pageURL := (&url.URL{Scheme: scheme, Host: domain, Path: "/"}).String()
		page, reason := f.attempt(ctx, scheme, pageURL)
		if page != nil {
			result.Page = page
			return result, nil
		}

		// A cancelled caller is not a property of the domain
		if err := ctx.Err(); err != nil {
			return result, err
		}
		result.Attempts = append(result.Attempts, Attempt{Scheme: scheme, URL: pageURL, Reason: reason})
	}

	return result, nil
}

// attempt performs a single GET. It returns the page, or nil and the
// reason the attempt did not produce one.
func (f *Fetcher) attempt(ctx context.Context, scheme, pageURL string) (*Page, string) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, err.Error()
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, describeError(err)
	}
	defer resp.Body.Close()
	elapsed := time.Since(start)

	contentType := resp.Header.Get("Content-Type")
	if !IsHTML(contentType) {
		if contentType == "" {
			return nil, "no content type"
		}
		return nil, fmt.Sprintf("not html (%s)", contentType)
	}

	// The header timeout no longer applies once headers arrived
	timer := time.AfterFunc(f.readTimeout, cancel)
	defer timer.Stop()

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBodySize+1))
	if err != nil {
		if errors.Is(err, context.Canceled) && !timer.Stop() {
			return nil, "read body: timeout"
		}
		return nil, "read body: " + describeError(err)
	}
	truncated := int64(len(body)) > f.maxBodySize
	if truncated {
		body = body[:f.maxBodySize]
	}

	return &Page{
		URL:         resp.Request.URL.String(),
		Scheme:      scheme,
		StatusCode:  resp.StatusCode,
		ContentType: contentType,
		Headers:     FlattenHeaders(resp.Header),
		Body:        body,
		Truncated:   truncated,
		ElapsedMS:   elapsed.Milliseconds(),
	}, ""
}

// IsHTML reports whether a Content-Type header denotes an HTML document.
func IsHTML(contentType string) bool {
	if contentType == "" {
		return false
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		// Fall back to a prefix match for sloppy headers like "text/html;;"
		mediaType = strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0]))
	}
	return mediaType == "text/html" || mediaType == "application/xhtml+xml"
}

// FlattenHeaders converts response headers to a map with one value per
// name. Multiple values are joined with ", ".
func FlattenHeaders(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for name, values := range h {
		out[name] = strings.Join(values, ", ")
	}
	return out
}

// describeError shortens transport errors to something readable in logs.
func describeError(err error) string {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		err = urlErr.Err
	}

	var netErr net.Error
	switch {
	case errors.Is(err, errTooManyRedirects):
		return errTooManyRedirects.Error()
	case errors.Is(err, context.Canceled):
		return "cancelled"
	case errors.As(err, &netErr) && netErr.Timeout():
		return "timeout"
	default:
		return err.Error()
	}
}
