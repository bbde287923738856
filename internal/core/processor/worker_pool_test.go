package processor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"attendance-kiosk/internal/kiosk"
)

type blockingRecorder struct {
	mu      sync.Mutex
	names   []string
	release chan struct{}
	err     error
}

func (r *blockingRecorder) Record(ctx context.Context, rec kiosk.Recognition) error {
	if r.release != nil {
		select {
		case <-r.release:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.names = append(r.names, rec.Name)
	return r.err
}

func (r *blockingRecorder) recorded() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.names...)
}

func TestShutdownDrainsQueue(t *testing.T) {
	rec := &blockingRecorder{}
	pool := NewWorkerPool(rec, 1, 8, time.Second)

	for _, name := range []string{"Alice", "Bob", "unknown"} {
		if err := pool.Record(context.Background(), kiosk.Recognition{Name: name}); err != nil {
			t.Fatalf("Record(%s): %v", name, err)
		}
	}
	pool.Shutdown()

	got := rec.recorded()
	if len(got) != 3 || got[0] != "Alice" || got[2] != "unknown" {
		t.Fatalf("recorded = %v", got)
	}
	if err := pool.Record(context.Background(), kiosk.Recognition{Name: "late"}); !errors.Is(err, ErrPoolClosed) {
		t.Fatalf("Record after Shutdown = %v, want ErrPoolClosed", err)
	}
	pool.Shutdown()
}

func TestRecordHonoursContextWhenQueueFull(t *testing.T) {
	rec := &blockingRecorder{release: make(chan struct{})}
	pool := NewWorkerPool(rec, 1, 1, time.Second)
	defer pool.Shutdown()
	defer close(rec.release)

	if err := pool.Record(context.Background(), kiosk.Recognition{Name: "first"}); err != nil {
		t.Fatalf("first: %v", err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for pool.ActiveJobCount() != 1 {
		if time.Now().After(deadline) {
			t.Fatal("worker never picked up the first job")
		}
		time.Sleep(time.Millisecond)
	}
	if err := pool.Record(context.Background(), kiosk.Recognition{Name: "queued"}); err != nil {
		t.Fatalf("queued: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := pool.Record(ctx, kiosk.Recognition{Name: "overflow"}); !errors.Is(err, context.Canceled) {
		t.Fatalf("overflow = %v, want context.Canceled", err)
	}
}

func TestRecorderErrorsDoNotStopWorkers(t *testing.T) {
	rec := &blockingRecorder{err: errors.New("disk full")}
	pool := NewWorkerPool(rec, 2, 0, time.Second)
	if pool.GetWorkerCount() != 2 || pool.GetQueueCapacity() != 4 {
		t.Fatalf("workers=%d capacity=%d", pool.GetWorkerCount(), pool.GetQueueCapacity())
	}
	for i := 0; i < 4; i++ {
		_ = pool.Record(context.Background(), kiosk.Recognition{Name: "x"})
	}
	pool.Shutdown()
	if n := len(rec.recorded()); n != 4 {
		t.Fatalf("recorded %d, want 4", n)
	}
}
