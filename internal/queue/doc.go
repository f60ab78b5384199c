// Package queue distributes crawl tasks between workers.
//
// Two implementations satisfy Queue:
//   - RedisQueue shares tasks between any number of processes through Redis
//     lists. Delivery is at least once: a received task sits in the
//     consumer's processing list until it is acknowledged, and Recover moves
//     the processing list of a dead consumer back to the pending list.
//   - MemoryQueue keeps tasks inside one process, for single-machine crawls
//     and tests.
//
// Both drop a Submit for a domain that is already waiting, so a popular
// link found on many pages is queued once.
package queue
