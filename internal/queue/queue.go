package queue

import (
	"context"
	"errors"
	"time"

	"github.com/nao1215/domainmap/internal/model"
)

// ErrClosed is returned by a queue that has been closed.
var ErrClosed = errors.New("queue closed")

// Delivery is a task handed to one consumer. It must be finished with
// exactly one of Ack, Retry or DeadLetter.
type Delivery struct {
	// Task is the decoded task.
	Task *model.Task

	// payload is the raw broker value, needed to remove it from the
	// processing list.
	payload string
}

// Queue is a work queue of domains to crawl.
type Queue interface {
	// Submit queues a first attempt for domain. It reports false when the
	// domain is already waiting in the queue.
	Submit(ctx context.Context, domain string) (bool, error)

	// Receive blocks until a task is available or ctx is done.
	Receive(ctx context.Context) (*Delivery, error)

	// Ack marks a delivery as done.
	Ack(ctx context.Context, d *Delivery) error

	// Retry schedules the next attempt of a delivery after delay.
	Retry(ctx context.Context, d *Delivery, delay time.Duration) error

	// DeadLetter gives up on a delivery.
	DeadLetter(ctx context.Context, d *Delivery, reason string) error

	// Len returns the number of tasks waiting to be received.
	Len(ctx context.Context) (int64, error)
}

// Stats describes the state of a queue.
type Stats struct {
	// Pending tasks are waiting to be received.
	Pending int64 `json:"pending"`
	// Delayed tasks are waiting for their retry time.
	Delayed int64 `json:"delayed"`
	// Processing tasks have been received but not finished.
	Processing int64 `json:"processing"`
	// Dead tasks exhausted their attempts.
	Dead int64 `json:"dead"`
}
