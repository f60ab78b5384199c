package queue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// TestMemoryQueue tests the in-process broker.
func TestMemoryQueue(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("fifo order and dedup", func(t *testing.T) {
		t.Parallel()

		q := NewMemoryQueue()
		defer q.Close() //nolint:errcheck

		for _, d := range []string{"a.com", "b.com", "A.COM"} {
			if _, err := q.Submit(ctx, d); err != nil {
				t.Fatalf("failed to submit: %v", err)
			}
		}
		n, _ := q.Len(ctx) //nolint:errcheck
		if n != 2 {
			t.Errorf("expected 2 pending tasks, got %d", n)
		}

		first, err := q.Receive(ctx)
		if err != nil {
			t.Fatalf("failed to receive: %v", err)
		}
		if first.Task.Domain != "a.com" {
			t.Errorf("expected a.com, got %s", first.Task.Domain)
		}
	})

	t.Run("empty domain is rejected", func(t *testing.T) {
		t.Parallel()

		q := NewMemoryQueue()
		if _, err := q.Submit(ctx, "  "); err == nil {
			t.Error("expected error for empty domain")
		}
	})

	t.Run("idle tracks in-flight and delayed tasks", func(t *testing.T) {
		t.Parallel()

		q := NewMemoryQueue()
		defer q.Close() //nolint:errcheck

		if !q.Idle() {
			t.Fatal("expected new queue to be idle")
		}
		if _, err := q.Submit(ctx, "a.com"); err != nil {
			t.Fatalf("failed to submit: %v", err)
		}
		d, err := q.Receive(ctx)
		if err != nil {
			t.Fatalf("failed to receive: %v", err)
		}
		if q.Idle() {
			t.Error("expected queue with in-flight task to be busy")
		}

		if err := q.Retry(ctx, d, 20*time.Millisecond); err != nil {
			t.Fatalf("failed to retry: %v", err)
		}
		if q.Idle() {
			t.Error("expected queue with delayed task to be busy")
		}

		rctx, cancel := context.WithTimeout(ctx, time.Second)
		defer cancel()
		retried, err := q.Receive(rctx)
		if err != nil {
			t.Fatalf("failed to receive retry: %v", err)
		}
		if retried.Task.Attempt != 2 {
			t.Errorf("expected attempt 2, got %d", retried.Task.Attempt)
		}

		if err := q.Ack(ctx, retried); err != nil {
			t.Fatalf("failed to ack: %v", err)
		}
		if !q.Idle() {
			t.Error("expected queue to be idle after ack")
		}
	})

	t.Run("dead letter", func(t *testing.T) {
		t.Parallel()

		q := NewMemoryQueue()
		defer q.Close() //nolint:errcheck

		if _, err := q.Submit(ctx, "a.com"); err != nil {
			t.Fatalf("failed to submit: %v", err)
		}
		d, err := q.Receive(ctx)
		if err != nil {
			t.Fatalf("failed to receive: %v", err)
		}
		if err := q.DeadLetter(ctx, d, "gave up"); err != nil {
			t.Fatalf("failed to dead-letter: %v", err)
		}

		stats, _ := q.Stats(ctx) //nolint:errcheck
		if stats.Dead != 1 || stats.Processing != 0 {
			t.Errorf("expected one dead task, got %+v", stats)
		}
		if added, _ := q.Submit(ctx, "a.com"); !added {
			t.Error("expected dead domain to be accepted again")
		}
	})

	t.Run("receive wakes on submit", func(t *testing.T) {
		t.Parallel()

		q := NewMemoryQueue()
		defer q.Close() //nolint:errcheck

		var wg sync.WaitGroup
		got := make(chan string, 1)
		wg.Add(1)
		go func() {
			defer wg.Done()
			d, err := q.Receive(ctx)
			if err != nil {
				return
			}
			got <- d.Task.Domain
		}()

		time.Sleep(20 * time.Millisecond)
		if _, err := q.Submit(ctx, "late.com"); err != nil {
			t.Fatalf("failed to submit: %v", err)
		}
		wg.Wait()

		select {
		case d := <-got:
			if d != "late.com" {
				t.Errorf("expected late.com, got %s", d)
			}
		default:
			t.Error("expected receiver to get the task")
		}
	})

	t.Run("close unblocks receivers", func(t *testing.T) {
		t.Parallel()

		q := NewMemoryQueue()
		errs := make(chan error, 1)
		go func() {
			_, err := q.Receive(ctx)
			errs <- err
		}()

		time.Sleep(20 * time.Millisecond)
		if err := q.Close(); err != nil {
			t.Fatalf("failed to close: %v", err)
		}

		select {
		case err := <-errs:
			if !errors.Is(err, ErrClosed) {
				t.Errorf("expected ErrClosed, got %v", err)
			}
		case <-time.After(time.Second):
			t.Fatal("receiver was not unblocked")
		}

		if _, err := q.Submit(ctx, "a.com"); !errors.Is(err, ErrClosed) {
			t.Errorf("expected ErrClosed on submit, got %v", err)
		}
	})

	t.Run("receive honours context", func(t *testing.T) {
		t.Parallel()

		q := NewMemoryQueue()
		defer q.Close() //nolint:errcheck

		cctx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
		defer cancel()
		if _, err := q.Receive(cctx); !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("expected deadline exceeded, got %v", err)
		}
	})
}
