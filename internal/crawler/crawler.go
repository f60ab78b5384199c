package crawler

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nao1215/domainmap/internal/database"
	"github.com/nao1215/domainmap/internal/enrich"
	"github.com/nao1215/domainmap/internal/fetch"
	"github.com/nao1215/domainmap/internal/links"
	"github.com/nao1215/domainmap/internal/metrics"
	"github.com/nao1215/domainmap/internal/model"
)

// Default crawl settings.
const (
	// DefaultTaskTimeout bounds one call to Crawl.
	DefaultTaskTimeout = 2 * time.Minute

	// DefaultClaimTTL is the age after which an unfinished claim is
	// considered abandoned.
	DefaultClaimTTL = 10 * time.Minute

	// releaseTimeout bounds releasing a claim after a failed crawl.
	releaseTimeout = 5 * time.Second

	// busyRetryDivisor sets how often a busy domain is checked again, as a
	// fraction of the claim TTL.
	busyRetryDivisor = 4
)

// Store persists crawl outcomes. *database.DomainDB satisfies it.
type Store interface {
	Claim(ctx context.Context, name string, ttl time.Duration) (database.ClaimOutcome, error)
	Release(ctx context.Context, name string) error
	Exists(ctx context.Context, name string) (bool, error)
	RecordSuccess(ctx context.Context, record *model.DomainRecord) error
	RecordFailure(ctx context.Context, name string, date time.Time) error
}

// Submitter queues domains for crawling. Every queue.Queue satisfies it.
type Submitter interface {
	Submit(ctx context.Context, domain string) (bool, error)
}

// Fetcher downloads the front page of a domain. *fetch.Fetcher satisfies it.
type Fetcher interface {
	Fetch(ctx context.Context, domain string) (fetch.Result, error)
}

// Enricher looks up network metadata of a domain. *enrich.Resolver satisfies it.
type Enricher interface {
	Resolve(ctx context.Context, domain string) enrich.Enrichment
}

// Crawler runs the crawl of single domains. It is safe for concurrent use.
type Crawler struct {
	store    Store
	queue    Submitter
	fetcher  Fetcher
	enricher Enricher

	logger      *slog.Logger
	metrics     *metrics.Metrics
	claimTTL    time.Duration
	taskTimeout time.Duration
	now         func() time.Time
}

// Option configures a Crawler.
type Option func(*Crawler)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Crawler) {
		c.logger = logger
	}
}

// WithMetrics records crawl outcomes in m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Crawler) {
		c.metrics = m
	}
}

// WithClaimTTL sets the age after which another worker's claim is taken over.
func WithClaimTTL(ttl time.Duration) Option {
	return func(c *Crawler) {
		if ttl > 0 {
			c.claimTTL = ttl
		}
	}
}

// WithTaskTimeout sets the deadline of one Crawl call.
// Zero or negative disables the deadline.
func WithTaskTimeout(d time.Duration) Option {
	return func(c *Crawler) {
		c.taskTimeout = d
	}
}

// WithClock replaces time.Now for record dates.
func WithClock(now func() time.Time) Option {
	return func(c *Crawler) {
		c.now = now
	}
}

// New creates a Crawler.
func New(store Store, queue Submitter, fetcher Fetcher, enricher Enricher, opts ...Option) *Crawler {
	c := &Crawler{
		store:       store,
		queue:       queue,
		fetcher:     fetcher,
		enricher:    enricher,
		claimTTL:    DefaultClaimTTL,
		taskTimeout: DefaultTaskTimeout,
		now:         time.Now,
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.logger == nil {
		c.logger = slog.Default()
	}

	return c
}

// Crawl processes domain. It returns nil when the domain already had an
// outcome or its outcome, success or failure, was stored. A domain with a
// live claim of another worker returns a *BusyError.
func (c *Crawler) Crawl(ctx context.Context, domain string) error {
	domain = model.NormalizeName(domain)
	if domain == "" {
		return ErrEmptyDomain
	}

	start := time.Now()
	if c.taskTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.taskTimeout)
		defer cancel()
	}

	claim, err := c.store.Claim(ctx, domain, c.claimTTL)
	if err != nil {
		c.metrics.ObserveCrawl(metrics.OutcomeError, time.Since(start))
		return fmt.Errorf("failed to claim %s: %w", domain, err)
	}
	switch claim {
	case database.Claimed:
	case database.Busy:
		c.logger.Debug("domain claimed by another worker", "domain", domain)
		c.metrics.ObserveCrawl(metrics.OutcomeBusy, time.Since(start))
		return &BusyError{Domain: domain, Delay: c.claimTTL / busyRetryDivisor}
	default:
		c.logger.Debug("skipping domain", "domain", domain, "reason", claim.String())
		c.metrics.ObserveCrawl(metrics.OutcomeSkipped, time.Since(start))
		return nil
	}

	outcome, err := c.process(ctx, domain)
	if err != nil {
		c.release(ctx, domain)
		c.metrics.ObserveCrawl(metrics.OutcomeError, time.Since(start))
		return err
	}

	c.metrics.ObserveCrawl(outcome, time.Since(start))
	return nil
}

// process runs every step after a successful claim.
func (c *Crawler) process(ctx context.Context, domain string) (string, error) {
	result, err := c.fetcher.Fetch(ctx, domain)
	if err != nil {
		return "", fmt.Errorf("failed to fetch %s: %w", domain, err)
	}

	if !result.Reachable() {
		c.logger.Info("domain unreachable", "domain", domain, "reason", result.Reason())
		if err := c.store.RecordFailure(ctx, domain, c.now()); err != nil {
			return "", err
		}
		return metrics.OutcomeFailure, nil
	}

	page := result.Page
	c.metrics.ObserveFetch(time.Duration(page.ElapsedMS) * time.Millisecond)

	linked, err := links.Extract(bytes.NewReader(page.Body), page.ContentType)
	if err != nil {
		// The page was served, so it still counts as a success
		c.logger.Debug("failed to extract links", "domain", domain, "error", err)
		linked = nil
	}
	c.metrics.AddLinks(len(linked))

	enrichment := c.enricher.Resolve(ctx, domain)

	info := &model.DomainInfo{
		Name:          domain,
		ElapsedMS:     page.ElapsedMS,
		Headers:       page.Headers,
		LinkedDomains: linked,
		IP:            enrichment.IP,
		ASN:           enrichment.ASN,
		Country:       enrichment.Country,
	}

	submitted, err := c.fanout(ctx, info.LinkedDomains)
	if err != nil {
		return "", err
	}

	if err := c.store.RecordSuccess(ctx, info.SuccessRecord(c.now())); err != nil {
		return "", err
	}

	c.logger.Info("domain crawled",
		"domain", domain,
		"url", page.URL,
		"elapsed_ms", page.ElapsedMS,
		"links", len(linked),
		"submitted", submitted,
	)
	return metrics.OutcomeSuccess, nil
}

// fanout submits every linked domain without a record. It returns the
// number of tasks added to the queue.
func (c *Crawler) fanout(ctx context.Context, linked []string) (int, error) {
	submitted := 0
	for _, name := range linked {
		exists, err := c.store.Exists(ctx, name)
		if err != nil {
			return submitted, err
		}
		if exists {
			continue
		}

		added, err := c.queue.Submit(ctx, name)
		if err != nil {
			return submitted, err
		}
		if added {
			submitted++
		}
	}
	c.metrics.AddSubmitted(submitted)
	return submitted, nil
}

// release gives up the claim on domain so a retry can take it immediately.
// Errors are logged: the claim expires after the claim TTL anyway.
func (c *Crawler) release(ctx context.Context, domain string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
	defer cancel()

	if err := c.store.Release(ctx, domain); err != nil {
		c.logger.Warn("failed to release claim", "domain", domain, "error", err)
	}
}
