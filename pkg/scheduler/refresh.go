package scheduler

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/fleetworks/goherd/pkg/collection"
)

const (
	DefaultBatchSize   = 50
	DefaultConcurrency = 4
)

// RefreshOptions tune how identifier batches are issued.
type RefreshOptions struct {
	// BatchSize is the number of identifiers per query.
	BatchSize int

	// Concurrency bounds how many batch queries run at once. Each batch
	// result is applied independently, so batches are safe to parallelize.
	Concurrency int

	// QueriesPerSecond rate-limits batch queries against the scheduler.
	// Zero means unlimited.
	QueriesPerSecond float64
}

// RefreshResult summarizes one refresh pass.
type RefreshResult struct {
	Queried   int
	Changed   int
	Unmatched []string
}

// Refresh pulls current states for every identifier known to the collection
// and writes them into it. All batch results are collected before any is
// applied, so resolution downstream always sees a consistent snapshot
// (the synchronization barrier sits between query fan-out and apply).
//
// Any batch failure aborts the whole refresh with a QueryError; the
// collection is left untouched so callers can degrade to persisted state.
func Refresh(ctx context.Context, client Client, c *collection.Collection, opts RefreshOptions) (RefreshResult, error) {
	ids := c.AllIDs()
	res := RefreshResult{Queried: len(ids)}
	if len(ids) == 0 {
		return res, nil
	}

	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	limiter := rate.NewLimiter(rate.Inf, 1)
	if opts.QueriesPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.QueriesPerSecond), 1)
	}

	var (
		mu     sync.Mutex
		merged = make(map[string]JobInfo, len(ids))
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Concurrency)

	for start := 0; start < len(ids); start += opts.BatchSize {
		batch := ids[start:min(start+opts.BatchSize, len(ids))]
		g.Go(func() error {
			if err := limiter.Wait(gctx); err != nil {
				return err
			}
			states, err := client.QueryStates(gctx, batch)
			if err != nil {
				return err
			}
			mu.Lock()
			for id, info := range states {
				merged[id] = info
			}
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return res, err
	}

	updates := make([]collection.StateUpdate, 0, len(ids))
	for _, id := range ids {
		info, ok := merged[id]
		if !ok {
			// The scheduler no longer resolves this id (purged history).
			// The persisted state stands; the caller may want to report it.
			res.Unmatched = append(res.Unmatched, id)
			continue
		}
		updates = append(updates, collection.StateUpdate{
			ID:          id,
			State:       info.State,
			StartedAt:   info.StartedAt,
			CompletedAt: info.CompletedAt,
		})
	}

	_, res.Changed = collection.UpsertStates(c, updates)
	return res, nil
}
