package queue

import (
	"context"
	"fmt"

	"github.com/nao1215/domainmap/internal/model"
)

// tombstone replaces duplicate entries during Dedupe before they are removed.
const tombstone = "__domainmap_duplicate__"

// dedupeChunk is the number of list entries read per LRANGE.
const dedupeChunk = 1000

// DedupeResult summarizes a Dedupe run.
type DedupeResult struct {
	// Scanned is the number of pending entries inspected.
	Scanned int64 `json:"scanned"`
	// Removed is the number of duplicate entries deleted.
	Removed int64 `json:"removed"`
}

// Dedupe removes repeated domains from the pending list, keeping the
// first occurrence of each. progress, if not nil, is called after every
// chunk with the number of entries scanned and the list length.
//
// Dedupe addresses entries by index, so it is only correct while no
// producer or consumer touches the pending list.
func (q *RedisQueue) Dedupe(ctx context.Context, progress func(scanned, total int64)) (DedupeResult, error) {
	var result DedupeResult

	total, err := q.Len(ctx)
	if err != nil {
		return result, err
	}

	seen := make(map[string]struct{})
	for start := int64(0); start < total; start += dedupeChunk {
		entries, err := q.client.LRange(ctx, q.pendingKey(), start, start+dedupeChunk-1).Result()
		if err != nil {
			return result, fmt.Errorf("failed to read pending list: %w", err)
		}

		for i, payload := range entries {
			domain := payload
			if task, err := model.DecodeTask(payload); err == nil {
				domain = task.Domain
			}

			if _, dup := seen[domain]; !dup {
				seen[domain] = struct{}{}
				continue
			}
			if err := q.client.LSet(ctx, q.pendingKey(), start+int64(i), tombstone).Err(); err != nil {
				return result, fmt.Errorf("failed to mark duplicate %s: %w", domain, err)
			}
			result.Removed++
		}

		result.Scanned += int64(len(entries))
		if progress != nil {
			progress(result.Scanned, total)
		}
		if len(entries) < dedupeChunk {
			break
		}
	}

	if result.Removed > 0 {
		if err := q.client.LRem(ctx, q.pendingKey(), 0, tombstone).Err(); err != nil {
			return result, fmt.Errorf("failed to remove duplicates: %w", err)
		}
	}

	return result, nil
}
