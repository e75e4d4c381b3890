// Package queue provides a channel-backed in-process job queue and the worker
// pool that drains it. Delivery is at-least-once: a failed job is requeued
// with an incremented attempt count until it exhausts its attempts, so
// handlers must be idempotent.
package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/gutterpress/gutterpress/pkg/press"
)

// ErrQueueFull indicates the queue buffer is at capacity.
var ErrQueueFull = errors.New("queue is full")

const defaultCapacity = 256

// ErrQueueClosed indicates the queue no longer accepts jobs.
var ErrQueueClosed = errors.New("queue is closed")

// Memory is an in-process press.Queue backed by a buffered channel.
type Memory struct {
	jobs      chan press.Job
	mu        sync.RWMutex
	closed    bool
	closeOnce sync.Once
}

// NewMemory creates a queue with the default buffer capacity.
func NewMemory() *Memory {
	return NewMemoryWithCapacity(defaultCapacity)
}

// NewMemoryWithCapacity creates a queue holding at most capacity pending jobs.
func NewMemoryWithCapacity(capacity int) *Memory {
	return &Memory{jobs: make(chan press.Job, capacity)}
}

// Enqueue adds a job without blocking; it fails when the buffer is full
// rather than stalling the request path.
func (m *Memory) Enqueue(ctx context.Context, job press.Job) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return ErrQueueClosed
	}

	select {
	case m.jobs <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return ErrQueueFull
	}
}

// Close stops accepting jobs and lets workers drain the remainder.
func (m *Memory) Close() {
	m.closeOnce.Do(func() {
		m.mu.Lock()
		m.closed = true
		close(m.jobs)
		m.mu.Unlock()
	})
}

// Handler executes one job.
type Handler func(ctx context.Context, job press.Job) error

// WorkerOption configures a worker pool.
type WorkerOption func(*Worker)

// WithConcurrency sets the number of goroutines draining the queue.
func WithConcurrency(n int) WorkerOption {
	return func(w *Worker) {
		if n > 0 {
			w.concurrency = n
		}
	}
}

// WithMaxAttempts sets how many times a job is tried before being dropped.
func WithMaxAttempts(n int) WorkerOption {
	return func(w *Worker) {
		if n > 0 {
			w.maxAttempts = n
		}
	}
}

// WithRetryDelay sets the pause before a failed job is requeued.
func WithRetryDelay(d time.Duration) WorkerOption {
	return func(w *Worker) {
		w.retryDelay = d
	}
}

// WithLogger sets the worker pool's logger.
func WithLogger(l zerolog.Logger) WorkerOption {
	return func(w *Worker) {
		w.logger = l
	}
}

// Worker drains a Memory queue with a pool of goroutines.
type Worker struct {
	queue       *Memory
	handler     Handler
	concurrency int
	maxAttempts int
	retryDelay  time.Duration
	logger      zerolog.Logger
}

// NewWorker creates a worker pool for the given queue and handler.
func NewWorker(q *Memory, handler Handler, opts ...WorkerOption) *Worker {
	w := &Worker{
		queue:       q,
		handler:     handler,
		concurrency: 2,
		maxAttempts: 3,
		retryDelay:  time.Second,
		logger:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run processes jobs until ctx is cancelled or the queue is closed and
// drained. It blocks; run it in its own goroutine when embedding.
func (w *Worker) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	for i := 0; i < w.concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.loop(ctx)
		}()
	}
	wg.Wait()
	return ctx.Err()
}

func (w *Worker) loop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case job, ok := <-w.queue.jobs:
			if !ok {
				return
			}
			w.process(ctx, job)
		}
	}
}

func (w *Worker) process(ctx context.Context, job press.Job) {
	log := w.logger.With().
		Str("job_id", job.ID.String()).
		Str("job_type", job.Type).
		Int("attempt", job.Attempt+1).
		Logger()

	err := w.handler(ctx, job)
	if err == nil {
		log.Debug().Msg("job processed")
		return
	}

	if job.Attempt+1 >= w.maxAttempts {
		log.Error().Err(err).Msg("job failed, attempts exhausted")
		return
	}

	log.Warn().Err(err).Msg("job failed, requeueing")
	if w.retryDelay > 0 {
		select {
		case <-ctx.Done():
			return
		case <-time.After(w.retryDelay):
		}
	}

	job.Attempt++
	if err := w.queue.Enqueue(ctx, job); err != nil {
		log.Error().Err(fmt.Errorf("requeue: %w", err)).Msg("dropping failed job")
	}
}
