package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"CostSim/pkg/logger"
)

// MemoryQueue is an in-process delayed job queue. Messages are scheduled with
// a delay and dispatched to the registered Job for their type by a fixed pool
// of workers. A scheduled message executes exactly once unless cancelled
// before its delay elapses.
type MemoryQueue struct {
	logger    *logger.Logger
	config    *QueueConfig
	jobs      map[string]Job
	timers    map[string]*time.Timer
	execCh    chan *Message
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
	stopCh    chan struct{}
}

// NewMemoryQueue creates a new in-memory queue.
func NewMemoryQueue(lgr *logger.Logger, config *QueueConfig) *MemoryQueue {
	if config == nil {
		config = &QueueConfig{}
	}
	if config.Workers <= 0 {
		config.Workers = 1
	}
	if config.QueueSize <= 0 {
		config.QueueSize = 256
	}
	if config.RetryDelay <= 0 {
		config.RetryDelay = time.Second
	}

	return &MemoryQueue{
		logger: lgr,
		config: config,
		jobs:   make(map[string]Job),
		timers: make(map[string]*time.Timer),
		execCh: make(chan *Message, config.QueueSize),
		stopCh: make(chan struct{}),
	}
}

// RegisterJob registers the handler for a message type.
func (q *MemoryQueue) RegisterJob(job Job) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs[job.Type()] = job
}

// Start launches the worker pool.
func (q *MemoryQueue) Start() {
	q.mu.Lock()
	if q.isRunning {
		q.mu.Unlock()
		return
	}
	q.isRunning = true
	q.mu.Unlock()

	for i := 0; i < q.config.Workers; i++ {
		q.wg.Add(1)
		go q.worker()
	}
}

// Stop cancels all pending timers and waits for in-flight work to drain.
func (q *MemoryQueue) Stop(ctx context.Context) error {
	q.mu.Lock()
	if !q.isRunning {
		q.mu.Unlock()
		return nil
	}
	q.isRunning = false
	for id, t := range q.timers {
		t.Stop()
		delete(q.timers, id)
	}
	close(q.stopCh)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// PublishAfter schedules one message for execution after the given delay.
// The id must be unique among pending messages; it is the cancellation handle.
func (q *MemoryQueue) PublishAfter(id, msgType string, payload interface{}, delay time.Duration) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.isRunning {
		return fmt.Errorf("queue not running")
	}
	if _, ok := q.jobs[msgType]; !ok {
		return fmt.Errorf("no job registered for type %q", msgType)
	}
	if _, ok := q.timers[id]; ok {
		return fmt.Errorf("message %q already pending", id)
	}

	msg := &Message{ID: id, Type: msgType, Payload: payload, Timestamp: time.Now()}
	q.timers[id] = time.AfterFunc(delay, func() {
		q.mu.Lock()
		_, pending := q.timers[id]
		delete(q.timers, id)
		running := q.isRunning
		q.mu.Unlock()
		if !pending || !running {
			return
		}
		select {
		case q.execCh <- msg:
		case <-q.stopCh:
		}
	})
	return nil
}

// Cancel removes a pending message. It reports whether the message was still
// pending, i.e. whether the cancellation prevented execution.
func (q *MemoryQueue) Cancel(id string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	t, ok := q.timers[id]
	if !ok {
		return false
	}
	if !t.Stop() {
		// timer already fired; the callback still owns the map entry and
		// must find it pending so the message reaches a worker
		return false
	}
	delete(q.timers, id)
	return true
}

func (q *MemoryQueue) worker() {
	defer q.wg.Done()
	for {
		select {
		case <-q.stopCh:
			return
		case msg := <-q.execCh:
			q.dispatch(msg)
		}
	}
}

func (q *MemoryQueue) dispatch(msg *Message) {
	q.mu.Lock()
	job := q.jobs[msg.Type]
	q.mu.Unlock()
	if job == nil {
		q.logger.Error("queue: no job for message", logger.String("type", msg.Type))
		return
	}

	for {
		msg.Attempts++
		err := job.Handle(context.Background(), msg.Payload)
		if err == nil {
			return
		}
		if msg.Attempts > q.config.RetryLimit {
			q.logger.Error("queue: job failed, giving up",
				logger.String("id", msg.ID),
				logger.Int("attempts", msg.Attempts),
				logger.Error(err))
			return
		}
		q.logger.Warn("queue: job failed, retrying",
			logger.String("id", msg.ID),
			logger.Int("attempts", msg.Attempts),
			logger.Error(err))
		select {
		case <-q.stopCh:
			return
		case <-time.After(q.config.RetryDelay):
		}
	}
}
