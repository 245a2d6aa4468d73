package fanout

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestRun(t *testing.T) {
	keys := []string{"10.0.0.1", "10.0.0.2", "10.0.0.3"}
	got := Run(context.Background(), keys, 0, func(_ context.Context, key string) int {
		return len(key)
	})
	if len(got) != 3 {
		t.Fatalf("Run() returned %d results, want 3", len(got))
	}
	for _, k := range keys {
		if got[k] != 8 {
			t.Errorf("result[%s] = %d", k, got[k])
		}
	}
}

func TestRunLimit(t *testing.T) {
	var inFlight, peak int32
	keys := []string{"a", "b", "c", "d", "e"}

	Run(context.Background(), keys, 2, func(_ context.Context, _ string) struct{} {
		n := atomic.AddInt32(&inFlight, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		atomic.AddInt32(&inFlight, -1)
		return struct{}{}
	})

	if peak > 2 {
		t.Errorf("peak concurrency = %d, want <= 2", peak)
	}
}

func TestRunIsBarrier(t *testing.T) {
	var done int32
	Run(context.Background(), []string{"fast", "slow"}, 2, func(_ context.Context, key string) bool {
		if key == "slow" {
			time.Sleep(30 * time.Millisecond)
		}
		atomic.AddInt32(&done, 1)
		return true
	})
	if atomic.LoadInt32(&done) != 2 {
		t.Errorf("Run returned before all tasks finished")
	}
}

func TestEachFailureDoesNotCancelSiblings(t *testing.T) {
	errBoom := errors.New("boom")
	var sawCancel int32

	errs := Each(context.Background(), []string{"d1", "d2"}, 2, func(ctx context.Context, key string) error {
		if key == "d1" {
			return errBoom
		}
		time.Sleep(20 * time.Millisecond)
		if ctx.Err() != nil {
			atomic.StoreInt32(&sawCancel, 1)
		}
		return nil
	})

	if len(errs) != 1 || !errors.Is(errs["d1"], errBoom) {
		t.Errorf("Each() errs = %v", errs)
	}
	if sawCancel != 0 {
		t.Error("sibling task observed cancellation")
	}
}

func TestEachEmpty(t *testing.T) {
	if errs := Each(context.Background(), nil, 0, func(context.Context, string) error { return nil }); len(errs) != 0 {
		t.Errorf("Each(nil) = %v", errs)
	}
}
