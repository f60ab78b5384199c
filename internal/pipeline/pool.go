package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nao1215/domainmap/internal/metrics"
	"github.com/nao1215/domainmap/internal/queue"
)

// Pool defaults.
const (
	DefaultWorkers         = 16
	DefaultMaxAttempts     = 5
	DefaultRetryBackoff    = 2 * time.Second
	DefaultMaxRetryBackoff = 5 * time.Minute

	// receiveErrorDelay is the pause after a failed receive before trying again.
	receiveErrorDelay = time.Second

	// finishTimeout bounds acknowledging a delivery after shutdown began.
	finishTimeout = 10 * time.Second
)

// Handler processes one domain. *crawler.Crawler satisfies it.
type Handler interface {
	Crawl(ctx context.Context, domain string) error
}

// Summary counts the deliveries a Pool finished.
type Summary struct {
	Acked        int64 `json:"acked"`
	Retried      int64 `json:"retried"`
	Deferred     int64 `json:"deferred"`
	DeadLettered int64 `json:"dead_lettered"`
}

// retryAfter is implemented by handler errors that ask for a later
// delivery instead of a failed attempt, like *crawler.BusyError.
type retryAfter interface {
	RetryAfter() time.Duration
}

// Pool pulls tasks from a queue and runs them on a fixed number of workers.
type Pool struct {
	queue   queue.Queue
	handler Handler

	workers         int
	maxAttempts     int
	retryBackoff    time.Duration
	maxRetryBackoff time.Duration

	// idle, when set, is polled every idleInterval; Run returns once it
	// reports true.
	idle         func() bool
	idleInterval time.Duration

	logger  *slog.Logger
	metrics *metrics.Metrics

	acked        atomic.Int64
	retried      atomic.Int64
	deferred     atomic.Int64
	deadLettered atomic.Int64
}

// PoolOption configures a Pool.
type PoolOption func(*Pool)

// WithWorkers sets the number of concurrent workers.
// Non-positive values keep the default.
func WithWorkers(n int) PoolOption {
	return func(p *Pool) {
		if n > 0 {
			p.workers = n
		}
	}
}

// WithMaxAttempts sets how many times a task is tried before it is
// dead-lettered.
func WithMaxAttempts(n int) PoolOption {
	return func(p *Pool) {
		if n > 0 {
			p.maxAttempts = n
		}
	}
}

// WithRetryBackoff sets the delay before the first retry and its upper
// bound. The delay doubles with every attempt.
func WithRetryBackoff(base, limit time.Duration) PoolOption {
	return func(p *Pool) {
		if base > 0 {
			p.retryBackoff = base
		}
		if limit > 0 {
			p.maxRetryBackoff = limit
		}
	}
}

// WithStopWhenIdle makes Run return once idle reports true. It is used with
// queues that only live in this process, where an empty queue with no task
// in flight means the crawl is over.
func WithStopWhenIdle(idle func() bool, interval time.Duration) PoolOption {
	return func(p *Pool) {
		p.idle = idle
		p.idleInterval = interval
	}
}

// WithPoolLogger sets the logger.
func WithPoolLogger(logger *slog.Logger) PoolOption {
	return func(p *Pool) {
		p.logger = logger
	}
}

// WithPoolMetrics records delivery results in m.
func WithPoolMetrics(m *metrics.Metrics) PoolOption {
	return func(p *Pool) {
		p.metrics = m
	}
}

// NewPool creates a Pool.
func NewPool(q queue.Queue, handler Handler, opts ...PoolOption) *Pool {
	p := &Pool{
		queue:           q,
		handler:         handler,
		workers:         DefaultWorkers,
		maxAttempts:     DefaultMaxAttempts,
		retryBackoff:    DefaultRetryBackoff,
		maxRetryBackoff: DefaultMaxRetryBackoff,
		idleInterval:    500 * time.Millisecond,
	}

	for _, opt := range opts {
		opt(p)
	}

	if p.logger == nil {
		p.logger = slog.Default()
	}

	return p
}

// Run starts the workers and blocks until ctx is cancelled, the queue is
// closed, or the idle check passes. In-flight tasks are finished before
// Run returns.
func (p *Pool) Run(ctx context.Context) error {
	p.logger.Info("starting workers", "workers", p.workers, "max_attempts", p.maxAttempts)
	start := time.Now()

	ctx, stop := context.WithCancel(ctx)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers + 1)

	if p.idle != nil {
		g.Go(func() error {
			p.watchIdle(ctx, stop)
			return nil
		})
	}

	for id := range p.workers {
		g.Go(func() error {
			return p.work(ctx, id)
		})
	}

	err := g.Wait()

	summary := p.Summary()
	p.logger.Info("workers stopped",
		"elapsed", time.Since(start),
		"acked", summary.Acked,
		"retried", summary.Retried,
		"deferred", summary.Deferred,
		"dead_lettered", summary.DeadLettered,
	)
	return err
}

// Summary returns the deliveries finished so far.
func (p *Pool) Summary() Summary {
	return Summary{
		Acked:        p.acked.Load(),
		Retried:      p.retried.Load(),
		Deferred:     p.deferred.Load(),
		DeadLettered: p.deadLettered.Load(),
	}
}

// watchIdle calls stop once the idle check passes.
func (p *Pool) watchIdle(ctx context.Context, stop context.CancelFunc) {
	ticker := time.NewTicker(p.idleInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if p.idle() {
				p.logger.Info("queue drained")
				stop()
				return
			}
		}
	}
}

// work is the loop of one worker.
func (p *Pool) work(ctx context.Context, id int) error {
	logger := p.logger.With("worker", id)

	for {
		d, err := p.queue.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, queue.ErrClosed) {
				return nil
			}
			logger.Warn("failed to receive task", "error", err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(receiveErrorDelay):
			}
			continue
		}

		p.handle(ctx, logger, d)
	}
}

// handle runs one delivery and finishes it. The handler and the finishing
// queue call do not observe cancellation of ctx.
func (p *Pool) handle(ctx context.Context, logger *slog.Logger, d *queue.Delivery) {
	p.metrics.TaskStarted()
	defer p.metrics.TaskDone()

	taskCtx := context.WithoutCancel(ctx)
	domain := d.Task.Domain

	crawlErr := p.handler.Crawl(taskCtx, domain)

	finishCtx, cancel := context.WithTimeout(taskCtx, finishTimeout)
	defer cancel()

	if crawlErr == nil {
		if err := p.queue.Ack(finishCtx, d); err != nil {
			logger.Error("failed to ack task", "domain", domain, "error", err)
			return
		}
		p.acked.Add(1)
		p.metrics.ObserveTask(metrics.ResultAcked)
		return
	}

	// A deferred task is not failing, so it does not use up attempts
	var deferred retryAfter
	if errors.As(crawlErr, &deferred) {
		delay := deferred.RetryAfter()
		logger.Debug("crawl deferred", "domain", domain, "retry_in", delay, "reason", crawlErr)
		if err := p.queue.Retry(finishCtx, d, delay); err != nil {
			logger.Error("failed to retry task", "domain", domain, "error", err)
			return
		}
		p.deferred.Add(1)
		p.metrics.ObserveTask(metrics.ResultDeferred)
		return
	}

	if d.Task.Attempt >= p.maxAttempts {
		logger.Error("giving up on domain",
			"domain", domain,
			"attempt", d.Task.Attempt,
			"error", crawlErr,
		)
		if err := p.queue.DeadLetter(finishCtx, d, crawlErr.Error()); err != nil {
			logger.Error("failed to dead-letter task", "domain", domain, "error", err)
			return
		}
		p.deadLettered.Add(1)
		p.metrics.ObserveTask(metrics.ResultDeadLettered)
		return
	}

	delay := Backoff(d.Task.Attempt, p.retryBackoff, p.maxRetryBackoff)
	logger.Warn("crawl failed, retrying",
		"domain", domain,
		"attempt", d.Task.Attempt,
		"retry_in", delay,
		"error", crawlErr,
	)
	if err := p.queue.Retry(finishCtx, d, delay); err != nil {
		logger.Error("failed to retry task", "domain", domain, "error", err)
		return
	}
	p.retried.Add(1)
	p.metrics.ObserveTask(metrics.ResultRetried)
}

// Backoff returns the delay before retrying after attempt: base, doubled
// for every further attempt, never more than limit.
func Backoff(attempt int, base, limit time.Duration) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := base
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= limit {
			return limit
		}
	}
	if delay > limit {
		return limit
	}
	return delay
}
