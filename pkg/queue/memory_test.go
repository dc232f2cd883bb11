package queue

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"CostSim/pkg/logger"
)

type countingJob struct {
	typ   string
	count atomic.Int64
}

func (j *countingJob) Type() string { return j.typ }

func (j *countingJob) Handle(ctx context.Context, payload interface{}) error {
	j.count.Add(1)
	return nil
}

func newStartedQueue(t *testing.T, job Job) *MemoryQueue {
	t.Helper()
	q := NewMemoryQueue(logger.Nop(), &QueueConfig{Workers: 2, QueueSize: 16})
	q.RegisterJob(job)
	q.Start()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = q.Stop(ctx)
	})
	return q
}

func TestPublishAfterExecutesOnce(t *testing.T) {
	job := &countingJob{typ: "exec"}
	q := newStartedQueue(t, job)

	if err := q.PublishAfter("m1", "exec", nil, 10*time.Millisecond); err != nil {
		t.Fatalf("publish: %v", err)
	}
	time.Sleep(100 * time.Millisecond)
	if got := job.count.Load(); got != 1 {
		t.Fatalf("expected exactly one execution, got %d", got)
	}
}

func TestCancelPreventsExecution(t *testing.T) {
	job := &countingJob{typ: "exec"}
	q := newStartedQueue(t, job)

	if err := q.PublishAfter("m1", "exec", nil, 50*time.Millisecond); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if !q.Cancel("m1") {
		t.Fatal("expected cancel to succeed while pending")
	}
	time.Sleep(120 * time.Millisecond)
	if got := job.count.Load(); got != 0 {
		t.Fatalf("expected no execution after cancel, got %d", got)
	}
	if q.Cancel("m1") {
		t.Fatal("expected second cancel to report not pending")
	}
}

// idTrackingJob records which message ids it executed.
type idTrackingJob struct {
	typ      string
	executed sync.Map
}

func (j *idTrackingJob) Type() string { return j.typ }

func (j *idTrackingJob) Handle(ctx context.Context, payload interface{}) error {
	j.executed.Store(payload.(string), true)
	return nil
}

func TestCancelRacingTimerFireIsExclusive(t *testing.T) {
	job := &idTrackingJob{typ: "exec"}
	q := NewMemoryQueue(logger.Nop(), &QueueConfig{Workers: 4, QueueSize: 4096})
	q.RegisterJob(job)
	q.Start()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = q.Stop(ctx)
	})

	const n = 2000
	delay := 200 * time.Microsecond
	cancelled := make([]bool, n)
	ids := make([]string, n)

	for i := 0; i < n; i++ {
		ids[i] = fmt.Sprintf("m%d", i)
		if err := q.PublishAfter(ids[i], "exec", ids[i], delay); err != nil {
			t.Fatalf("publish %s: %v", ids[i], err)
		}
		// cancel right at the fire boundary so both orderings occur
		time.Sleep(delay)
		cancelled[i] = q.Cancel(ids[i])
	}

	// a message whose cancel lost the race must still reach a worker
	deadline := time.Now().Add(5 * time.Second)
	for i := 0; i < n; i++ {
		if cancelled[i] {
			continue
		}
		for {
			if _, ok := job.executed.Load(ids[i]); ok {
				break
			}
			if time.Now().After(deadline) {
				t.Fatalf("message %s neither cancelled nor executed", ids[i])
			}
			time.Sleep(time.Millisecond)
		}
	}

	// and a successful cancel must have prevented execution
	time.Sleep(50 * time.Millisecond)
	for i := 0; i < n; i++ {
		if !cancelled[i] {
			continue
		}
		if _, ok := job.executed.Load(ids[i]); ok {
			t.Fatalf("message %s executed despite successful cancel", ids[i])
		}
	}
}

func TestDuplicatePendingIDRejected(t *testing.T) {
	job := &countingJob{typ: "exec"}
	q := newStartedQueue(t, job)

	if err := q.PublishAfter("m1", "exec", nil, time.Second); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if err := q.PublishAfter("m1", "exec", nil, time.Second); err == nil {
		t.Fatal("expected duplicate id to be rejected")
	}
}

func TestUnregisteredTypeRejected(t *testing.T) {
	job := &countingJob{typ: "exec"}
	q := newStartedQueue(t, job)

	if err := q.PublishAfter("m1", "other", nil, time.Millisecond); err == nil {
		t.Fatal("expected unregistered type to be rejected")
	}
}
