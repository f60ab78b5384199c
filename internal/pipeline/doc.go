// Package pipeline runs crawl workers against a task queue.
//
// A Pool starts a fixed number of workers. Each worker receives one task,
// hands the domain to a Handler and then finishes the delivery:
//
//   - acknowledged when the handler returns nil
//   - retried with exponential backoff when it returns an error
//   - moved to the dead-letter list once the attempts are used up
//
// Cancelling the context passed to Run stops receiving new tasks. Tasks
// already being handled run to completion under the handler's own deadline,
// so a SIGINT never leaves a claimed domain without an outcome unless the
// process is killed.
//
// # Usage
//
//	pool := pipeline.NewPool(q, crawler, pipeline.WithWorkers(16))
//	err := pool.Run(ctx)
package pipeline
