package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/nao1215/domainmap/internal/model"
)

// Redis queue defaults.
const (
	// DefaultPollInterval is how long a blocking receive waits before
	// checking for due retries and cancellation.
	DefaultPollInterval = time.Second

	// DefaultHeartbeatTTL is how long a consumer counts as alive after its
	// last heartbeat.
	DefaultHeartbeatTTL = 30 * time.Second

	// promoteBatch is the number of due retries moved per receive.
	promoteBatch = 100
)

// submitScript adds a domain to the queued set and pushes its task only
// when the domain was not already queued.
var submitScript = redis.NewScript(`
if redis.call('SADD', KEYS[1], ARGV[1]) == 1 then
	redis.call('LPUSH', KEYS[2], ARGV[2])
	return 1
end
return 0
`)

// promoteScript moves retries whose time has come to the consuming end of
// the pending list.
var promoteScript = redis.NewScript(`
local due = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1], 'LIMIT', 0, ARGV[2])
for _, v in ipairs(due) do
	redis.call('ZREM', KEYS[1], v)
	redis.call('RPUSH', KEYS[2], v)
end
return #due
`)

// RedisOptions configures a RedisQueue.
type RedisOptions struct {
	// Name prefixes every key of the queue.
	Name string

	// Consumer identifies this process. Tasks it receives are parked in
	// a processing list named after it. Defaults to hostname and pid.
	Consumer string

	// PollInterval bounds a single blocking receive.
	PollInterval time.Duration

	// HeartbeatTTL is how long the consumer counts as alive without a heartbeat.
	HeartbeatTTL time.Duration

	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time

	// Logger receives warnings about undecodable payloads.
	Logger *slog.Logger
}

// RedisQueue is a Queue stored in Redis. It is safe for concurrent use.
type RedisQueue struct {
	client       *redis.Client
	name         string
	consumer     string
	pollInterval time.Duration
	heartbeatTTL time.Duration
	now          func() time.Time
	logger       *slog.Logger
}

var _ Queue = (*RedisQueue)(nil)

// Dial connects to the Redis server at rawURL
// (redis://[:password@]host:port/db) and checks the connection.
func Dial(ctx context.Context, rawURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close() //nolint:errcheck
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", opts.Addr, err)
	}

	return client, nil
}

// NewRedisQueue creates a queue on top of client.
func NewRedisQueue(client *redis.Client, opts RedisOptions) *RedisQueue {
	q := &RedisQueue{
		client:       client,
		name:         opts.Name,
		consumer:     opts.Consumer,
		pollInterval: opts.PollInterval,
		heartbeatTTL: opts.HeartbeatTTL,
		now:          opts.Now,
		logger:       opts.Logger,
	}
	if q.name == "" {
		q.name = "domainmap"
	}
	if q.consumer == "" {
		q.consumer = DefaultConsumer()
	}
	if q.pollInterval <= 0 {
		q.pollInterval = DefaultPollInterval
	}
	if q.heartbeatTTL <= 0 {
		q.heartbeatTTL = DefaultHeartbeatTTL
	}
	if q.now == nil {
		q.now = time.Now
	}
	if q.logger == nil {
		q.logger = slog.Default()
	}
	return q
}

// DefaultConsumer returns a consumer name unique to this process.
func DefaultConsumer() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "unknown"
	}
	return host + "-" + strconv.Itoa(os.Getpid())
}

// Consumer returns the name of this consumer.
func (q *RedisQueue) Consumer() string {
	return q.consumer
}

func (q *RedisQueue) pendingKey() string { return q.name + ":pending" }
func (q *RedisQueue) queuedKey() string { return q.name + ":queued" }
func (q *RedisQueue) delayedKey() string { return q.name + ":delayed" }
func (q *RedisQueue) deadKey() string { return q.name + ":dead" }
func (q *RedisQueue) processingKey(c string) string { return q.name + ":processing:" + c }
func (q *RedisQueue) aliveKey(c string) string { return q.name + ":alive:" + c }

// Submit queues a first attempt for domain unless it is already queued.
func (q *RedisQueue) Submit(ctx context.Context, domain string) (bool, error) {
	task := model.NewTask(domain, q.now())
	payload, err := task.Encode()
	if err != nil {
		return false, err
	}

	added, err := submitScript.Run(ctx, q.client,
		[]string{q.queuedKey(), q.pendingKey()}, task.Domain, payload).Int()
	if err != nil {
		return false, fmt.Errorf("failed to submit %s: %w", task.Domain, err)
	}
	return added == 1, nil
}

// Receive blocks until a task is available or ctx is done. Due retries
// are moved to the pending list first.
func (q *RedisQueue) Receive(ctx context.Context) (*Delivery, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if err := q.promote(ctx); err != nil {
			return nil, err
		}

		payload, err := q.client.BRPopLPush(ctx, q.pendingKey(), q.processingKey(q.consumer), q.pollInterval).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, fmt.Errorf("failed to receive task: %w", err)
		}

		task, err := model.DecodeTask(payload)
		if err != nil {
			q.logger.Warn("dropping undecodable task", "payload", payload, "error", err)
			if err := q.bury(ctx, payload, ""); err != nil {
				return nil, err
			}
			continue
		}

		return &Delivery{Task: task, payload: payload}, nil
	}
}

// promote moves due retries to the pending list.
func (q *RedisQueue) promote(ctx context.Context) error {
	now := strconv.FormatInt(q.now().UnixMilli(), 10)
	err := promoteScript.Run(ctx, q.client,
		[]string{q.delayedKey(), q.pendingKey()}, now, promoteBatch).Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("failed to promote retries: %w", err)
	}
	return nil
}

// Ack removes a finished delivery.
func (q *RedisQueue) Ack(ctx context.Context, d *Delivery) error {
	_, err := q.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LRem(ctx, q.processingKey(q.consumer), 1, d.payload)
		pipe.SRem(ctx, q.queuedKey(), d.Task.Domain)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to ack %s: %w", d.Task.Domain, err)
	}
	return nil
}

// Retry schedules the next attempt of d after delay. The domain stays in
// the queued set, so it is not submitted again meanwhile.
func (q *RedisQueue) Retry(ctx context.Context, d *Delivery, delay time.Duration) error {
	next, err := d.Task.Next().Encode()
	if err != nil {
		return err
	}
	due := float64(q.now().Add(delay).UnixMilli())

	_, err = q.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LRem(ctx, q.processingKey(q.consumer), 1, d.payload)
		pipe.ZAdd(ctx, q.delayedKey(), &redis.Z{Score: due, Member: next})
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to retry %s: %w", d.Task.Domain, err)
	}
	return nil
}

// DeadLetter moves d to the dead-letter list.
func (q *RedisQueue) DeadLetter(ctx context.Context, d *Delivery, _ string) error {
	return q.bury(ctx, d.payload, d.Task.Domain)
}

// bury moves payload from the processing list to the dead-letter list.
func (q *RedisQueue) bury(ctx context.Context, payload, domain string) error {
	_, err := q.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LRem(ctx, q.processingKey(q.consumer), 1, payload)
		pipe.LPush(ctx, q.deadKey(), payload)
		if domain != "" {
			pipe.SRem(ctx, q.queuedKey(), domain)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to dead-letter task: %w", err)
	}
	return nil
}

// Len returns the number of pending tasks.
func (q *RedisQueue) Len(ctx context.Context) (int64, error) {
	n, err := q.client.LLen(ctx, q.pendingKey()).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to read queue length: %w", err)
	}
	return n, nil
}

// Stats returns the number of tasks in every state.
func (q *RedisQueue) Stats(ctx context.Context) (Stats, error) {
	var s Stats

	pipe := q.client.Pipeline()
	pending := pipe.LLen(ctx, q.pendingKey())
	delayed := pipe.ZCard(ctx, q.delayedKey())
	dead := pipe.LLen(ctx, q.deadKey())
	if _, err := pipe.Exec(ctx); err != nil {
		return s, fmt.Errorf("failed to read queue stats: %w", err)
	}
	s.Pending, s.Delayed, s.Dead = pending.Val(), delayed.Val(), dead.Val()

	consumers, err := q.consumers(ctx)
	if err != nil {
		return s, err
	}
	for _, c := range consumers {
		n, err := q.client.LLen(ctx, q.processingKey(c)).Result()
		if err != nil {
			return s, fmt.Errorf("failed to read processing list of %s: %w", c, err)
		}
		s.Processing += n
	}

	return s, nil
}

// Heartbeat marks this consumer alive for the heartbeat TTL.
func (q *RedisQueue) Heartbeat(ctx context.Context) error {
	if err := q.client.Set(ctx, q.aliveKey(q.consumer), q.now().UTC().Format(time.RFC3339), q.heartbeatTTL).Err(); err != nil {
		return fmt.Errorf("failed to send heartbeat: %w", err)
	}
	return nil
}

// KeepAlive sends heartbeats until ctx is done. Consumers without a recent
// heartbeat are considered dead by RecoverDead.
func (q *RedisQueue) KeepAlive(ctx context.Context) error {
	ticker := time.NewTicker(q.heartbeatTTL / 3)
	defer ticker.Stop()

	for {
		if err := q.Heartbeat(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			q.logger.Warn("heartbeat failed", "consumer", q.consumer, "error", err)
		}
		select {
		case <-ctx.Done():
			// Best effort: the key expires anyway
			_ = q.client.Del(context.Background(), q.aliveKey(q.consumer)).Err() //nolint:errcheck
			return nil
		case <-ticker.C:
		}
	}
}

// Recover moves every task left in consumer's processing list back to the
// pending list. It returns the number of tasks moved.
func (q *RedisQueue) Recover(ctx context.Context, consumer string) (int, error) {
	moved := 0
	for {
		err := q.client.RPopLPush(ctx, q.processingKey(consumer), q.pendingKey()).Err()
		if errors.Is(err, redis.Nil) {
			return moved, nil
		}
		if err != nil {
			return moved, fmt.Errorf("failed to recover tasks of %s: %w", consumer, err)
		}
		moved++
	}
}

// RecoverDead recovers the processing lists of every consumer without a
// live heartbeat, except this one. It returns the consumers recovered and
// the total number of tasks moved.
func (q *RedisQueue) RecoverDead(ctx context.Context) (map[string]int, error) {
	consumers, err := q.consumers(ctx)
	if err != nil {
		return nil, err
	}

	recovered := make(map[string]int)
	for _, c := range consumers {
		if c == q.consumer {
			continue
		}
		alive, err := q.client.Exists(ctx, q.aliveKey(c)).Result()
		if err != nil {
			return recovered, fmt.Errorf("failed to check consumer %s: %w", c, err)
		}
		if alive > 0 {
			continue
		}
		n, err := q.Recover(ctx, c)
		if err != nil {
			return recovered, err
		}
		if n > 0 {
			recovered[c] = n
		}
	}
	return recovered, nil
}

// RequeueDead moves every dead-lettered task back to the pending list as
// a first attempt. It returns the number of tasks requeued; domains that
// are already queued again are dropped from the dead list without a
// second task.
func (q *RedisQueue) RequeueDead(ctx context.Context) (int, error) {
	requeued := 0
	for {
		payload, err := q.client.RPop(ctx, q.deadKey()).Result()
		if errors.Is(err, redis.Nil) {
			return requeued, nil
		}
		if err != nil {
			return requeued, fmt.Errorf("failed to read dead-letter list: %w", err)
		}

		task, err := model.DecodeTask(payload)
		if err != nil {
			q.logger.Warn("discarding undecodable dead task", "payload", payload, "error", err)
			continue
		}

		added, err := q.Submit(ctx, task.Domain)
		if err != nil {
			// Put it back so it is not lost
			_ = q.client.RPush(context.WithoutCancel(ctx), q.deadKey(), payload).Err() //nolint:errcheck
			return requeued, err
		}
		if added {
			requeued++
		}
	}
}

// consumers lists the consumers that have a processing list.
func (q *RedisQueue) consumers(ctx context.Context) ([]string, error) {
	prefix := q.processingKey("")
	var (
		cursor    uint64
		consumers []string
	)
	for {
		keys, next, err := q.client.Scan(ctx, cursor, prefix+"*", 100).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to list consumers: %w", err)
		}
		for _, k := range keys {
			consumers = append(consumers, strings.TrimPrefix(k, prefix))
		}
		if next == 0 {
			return consumers, nil
		}
		cursor = next
	}
}

// Close closes the Redis client.
func (q *RedisQueue) Close() error {
	return q.client.Close()
}
