// Package fanout runs one task per device with bounded concurrency.
//
// Each call is a barrier: it returns only once every task has finished.
// A task's failure is part of its result and never cancels its siblings,
// so one unreachable device cannot hide the state of the other.
package fanout

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Run calls fn once per key with at most limit calls in flight and returns
// the results keyed by key. A limit <= 0 runs every key concurrently.
func Run[T any](ctx context.Context, keys []string, limit int, fn func(ctx context.Context, key string) T) map[string]T {
	results := make(map[string]T, len(keys))
	var mu sync.Mutex

	// Tasks never return errors, so the group context is never cancelled
	// by a sibling; only the parent ctx can stop work.
	var g errgroup.Group
	if limit <= 0 {
		limit = len(keys)
	}
	if limit > 0 {
		g.SetLimit(limit)
	}

	for _, key := range keys {
		g.Go(func() error {
			v := fn(ctx, key)
			mu.Lock()
			results[key] = v
			mu.Unlock()
			return nil
		})
	}
	g.Wait()
	return results
}

// Each calls fn once per key and returns the non-nil errors keyed by key.
func Each(ctx context.Context, keys []string, limit int, fn func(ctx context.Context, key string) error) map[string]error {
	all := Run(ctx, keys, limit, fn)
	errs := make(map[string]error)
	for k, err := range all {
		if err != nil {
			errs[k] = err
		}
	}
	return errs
}
