package queue

import (
	"context"
	"sync"
	"time"

	"github.com/nao1215/domainmap/internal/model"
)

// MemoryQueue is a Queue held in process memory. Tasks are lost when the
// process exits. It is safe for concurrent use.
type MemoryQueue struct {
	mu       sync.Mutex
	pending  []*model.Task
	queued   map[string]struct{}
	dead     []*model.Task
	inFlight int
	timers   map[*time.Timer]struct{}
	delayed  int
	closed   bool
	// notify is closed and replaced whenever a task is added
	notify chan struct{}
	now    func() time.Time
}

var _ Queue = (*MemoryQueue)(nil)

// NewMemoryQueue creates an empty in-memory queue.
func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{
		queued: make(map[string]struct{}),
		timers: make(map[*time.Timer]struct{}),
		notify: make(chan struct{}),
		now:    time.Now,
	}
}

// Submit queues a first attempt for domain unless it is already queued.
func (q *MemoryQueue) Submit(_ context.Context, domain string) (bool, error) {
	task := model.NewTask(domain, q.now())
	if task.Domain == "" {
		return false, model.ErrEmptyTask
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false, ErrClosed
	}
	if _, ok := q.queued[task.Domain]; ok {
		return false, nil
	}
	q.queued[task.Domain] = struct{}{}
	q.pushLocked(task)
	return true, nil
}

// pushLocked appends a task and wakes receivers. q.mu must be held.
func (q *MemoryQueue) pushLocked(task *model.Task) {
	q.pending = append(q.pending, task)
	close(q.notify)
	q.notify = make(chan struct{})
}

// Receive blocks until a task is available, the queue is closed or ctx is done.
func (q *MemoryQueue) Receive(ctx context.Context) (*Delivery, error) {
	for {
		q.mu.Lock()
		if q.closed {
			q.mu.Unlock()
			return nil, ErrClosed
		}
		if len(q.pending) > 0 {
			task := q.pending[0]
			q.pending[0] = nil
			q.pending = q.pending[1:]
			q.inFlight++
			q.mu.Unlock()
			return &Delivery{Task: task}, nil
		}
		notify := q.notify
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-notify:
		}
	}
}

// Ack marks a delivery as done.
func (q *MemoryQueue) Ack(_ context.Context, d *Delivery) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.inFlight--
	delete(q.queued, d.Task.Domain)
	return nil
}

// Retry puts the next attempt of d back in the queue after delay.
func (q *MemoryQueue) Retry(_ context.Context, d *Delivery, delay time.Duration) error {
	next := d.Task.Next()

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrClosed
	}
	q.inFlight--
	q.delayed++

	var timer *time.Timer
	timer = time.AfterFunc(delay, func() {
		q.mu.Lock()
		defer q.mu.Unlock()

		delete(q.timers, timer)
		q.delayed--
		if !q.closed {
			q.pushLocked(next)
		}
	})
	q.timers[timer] = struct{}{}
	return nil
}

// DeadLetter gives up on a delivery.
func (q *MemoryQueue) DeadLetter(_ context.Context, d *Delivery, _ string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.inFlight--
	delete(q.queued, d.Task.Domain)
	q.dead = append(q.dead, d.Task)
	return nil
}

// Len returns the number of pending tasks.
func (q *MemoryQueue) Len(_ context.Context) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return int64(len(q.pending)), nil
}

// Stats returns the number of tasks in every state.
func (q *MemoryQueue) Stats(_ context.Context) (Stats, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return Stats{
		Pending:    int64(len(q.pending)),
		Delayed:    int64(q.delayed),
		Processing: int64(q.inFlight),
		Dead:       int64(len(q.dead)),
	}, nil
}

// Idle reports whether no task is pending, delayed or being processed.
// A crawl that runs on a MemoryQueue is finished once it is idle.
func (q *MemoryQueue) Idle() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending) == 0 && q.delayed == 0 && q.inFlight == 0
}

// Close stops the queue. Blocked receivers return ErrClosed and pending
// retries are dropped.
func (q *MemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	q.closed = true
	for timer := range q.timers {
		timer.Stop()
	}
	q.timers = nil
	close(q.notify)
	return nil
}
