package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/nao1215/domainmap/internal/config"
	"github.com/nao1215/domainmap/internal/crawler"
	"github.com/nao1215/domainmap/internal/enrich"
	"github.com/nao1215/domainmap/internal/fetch"
	"github.com/nao1215/domainmap/internal/metrics"
	"github.com/nao1215/domainmap/internal/pipeline"
	"github.com/nao1215/domainmap/internal/queue"
)

// NewCrawlCmd creates the crawl command.
func NewCrawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl [domain...]",
		Short: "Run crawl workers against the task queue",
		Long: `Crawl starts a pool of workers that take domains from the task queue.

For every domain a worker:
- claims it in the database, skipping domains already crawled or owned by
  another worker
- fetches the front page over http, then https
- resolves the IP address, autonomous system and country
- queues every linked domain the database has not seen yet
- stores the outcome

Domains given as arguments are queued before the workers start. With the
redis broker the command runs until interrupted; with the memory broker it
stops once the queue is empty.

Examples:
  # Work on the shared Redis queue
  domainmap crawl

  # Crawl from a seed without Redis
  domainmap crawl --broker memory example.com

  # Use enrichment databases and expose metrics
  domainmap crawl --asn-db ipasn.dat.gz --geoip-db GeoLite2-Country.mmdb --metrics-addr :2112`,
		Args: cobra.ArbitraryArgs,
		RunE: runCrawlCmd,
	}

	flags := cmd.Flags()
	flags.IntP("workers", "w", config.DefaultWorkers, "Number of concurrent workers")
	flags.String("broker", config.DefaultBroker, "Task queue broker: redis or memory")
	flags.String("asn-db", "", "IP prefix to ASN routing table (ipasn.dat format)")
	flags.String("geoip-db", "", "MaxMind GeoLite2-Country database")
	flags.String("proxy", "", "SOCKS5 proxy for fetches (host:port)")
	flags.String("user-agent", config.DefaultUserAgent, "User-Agent header of fetches")
	flags.String("metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :2112)")
	flags.Duration("task-timeout", config.DefaultTaskTimeout, "Deadline for crawling one domain")
	flags.Duration("connect-timeout", config.DefaultConnectTimeout, "Connect timeout of one fetch attempt")
	flags.Duration("read-timeout", config.DefaultReadTimeout, "Read timeout of one fetch attempt")
	flags.Int("max-attempts", config.DefaultMaxAttempts, "Attempts per domain before it is dead-lettered")

	return cmd
}

// runCrawlCmd executes the crawl command.
func runCrawlCmd(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	seeds, err := normalizeSeeds(args)
	if err != nil {
		return err
	}
	if cfg.Broker == config.BrokerMemory && len(seeds) == 0 {
		return errors.New("the memory broker needs at least one seed domain")
	}

	logger := newLogger(cmd, cfg, slog.LevelInfo)
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	// Handle interrupt signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			logger.Info("received shutdown signal, finishing in-flight domains...")
			cancel()
		case <-ctx.Done():
		}
	}()

	return runCrawl(ctx, cfg, seeds, logger)
}

// runCrawl wires every component and runs the worker pool until ctx is
// done or, with the memory broker, the queue runs dry.
func runCrawl(ctx context.Context, cfg *config.Config, seeds []string, logger *slog.Logger) error {
	db, err := openStore(cfg, true)
	if err != nil {
		return err
	}
	defer closeQuietly(logger, "database", db)
	logger.Info("database opened", "path", db.Path())

	resolver, closeResolver, err := newResolver(cfg, logger)
	if err != nil {
		return err
	}
	defer closeResolver()

	fetcher, err := newFetcher(cfg)
	if err != nil {
		return err
	}

	var m *metrics.Metrics
	if cfg.MetricsAddr != "" {
		m = metrics.New()
	}

	// The queue, heartbeats and metrics outlive the signal so in-flight
	// tasks can still be acked
	queueCtx := context.WithoutCancel(ctx)
	bgCtx, stopBackground := context.WithCancel(queueCtx)
	defer stopBackground()

	var (
		q        queue.Queue
		poolOpts []pipeline.PoolOption
		g        errgroup.Group
	)

	switch cfg.Broker {
	case config.BrokerMemory:
		mq := queue.NewMemoryQueue()
		defer closeQuietly(logger, "queue", mq)
		q = mq
		poolOpts = append(poolOpts, pipeline.WithStopWhenIdle(mq.Idle, 500*time.Millisecond))
	default:
		rq, err := openRedisQueue(queueCtx, cfg, logger)
		if err != nil {
			return err
		}
		defer closeQuietly(logger, "queue", rq)
		q = rq

		recovered, err := rq.RecoverDead(queueCtx)
		if err != nil {
			logger.Warn("failed to recover tasks of dead consumers", "error", err)
		}
		for consumer, n := range recovered {
			logger.Info("recovered tasks of dead consumer", "consumer", consumer, "tasks", n)
		}

		g.Go(func() error {
			return rq.KeepAlive(bgCtx)
		})
		logger.Info("connected to task queue", "consumer", rq.Consumer(), "queue", cfg.QueueName)
	}

	for _, seed := range seeds {
		if _, err := q.Submit(queueCtx, seed); err != nil {
			return fmt.Errorf("failed to queue seed %s: %w", seed, err)
		}
	}

	if m != nil {
		g.Go(func() error {
			return m.Serve(bgCtx, cfg.MetricsAddr, logger)
		})
	}

	c := crawler.New(db, q, fetcher, resolver,
		crawler.WithLogger(logger),
		crawler.WithMetrics(m),
		crawler.WithClaimTTL(cfg.ClaimTTL),
		crawler.WithTaskTimeout(cfg.TaskTimeout),
	)

	pool := pipeline.NewPool(q, c, append(poolOpts,
		pipeline.WithWorkers(cfg.Workers),
		pipeline.WithMaxAttempts(cfg.MaxAttempts),
		pipeline.WithRetryBackoff(cfg.RetryBackoff, cfg.MaxRetryBackoff),
		pipeline.WithPoolLogger(logger),
		pipeline.WithPoolMetrics(m),
	)...)

	runErr := pool.Run(ctx)

	stopBackground()
	if err := g.Wait(); err != nil {
		logger.Warn("background task failed", "error", err)
	}

	return runErr
}

// newResolver builds the enrichment resolver from the configured
// databases. The returned function releases them.
func newResolver(cfg *config.Config, logger *slog.Logger) (*enrich.Resolver, func(), error) {
	opts := []enrich.Option{enrich.WithLogger(logger)}
	closeFn := func() {}

	if cfg.ASNDatabase != "" {
		table, err := enrich.OpenASNTable(cfg.ASNDatabase)
		if err != nil {
			return nil, closeFn, err
		}
		logger.Info("asn table loaded", "path", cfg.ASNDatabase, "prefixes", table.Len())
		opts = append(opts, enrich.WithASN(table))
	}

	if cfg.GeoIPDatabase != "" {
		geo, err := enrich.OpenGeoIP(cfg.GeoIPDatabase)
		if err != nil {
			return nil, closeFn, err
		}
		logger.Info("geoip database loaded", "path", cfg.GeoIPDatabase)
		opts = append(opts, enrich.WithCountry(geo))
		closeFn = func() { closeQuietly(logger, "geoip database", geo) }
	}

	return enrich.NewResolver(opts...), closeFn, nil
}

// newFetcher builds the page fetcher from the configuration.
func newFetcher(cfg *config.Config) (*fetch.Fetcher, error) {
	return fetch.NewFetcher(
		fetch.WithSchemes(cfg.Schemes...),
		fetch.WithConnectTimeout(cfg.ConnectTimeout),
		fetch.WithReadTimeout(cfg.ReadTimeout),
		fetch.WithMaxRedirects(cfg.MaxRedirects),
		fetch.WithMaxBodySize(cfg.MaxBodySize),
		fetch.WithUserAgent(cfg.UserAgent),
		fetch.WithProxy(cfg.Proxy),
	)
}
