// Package dispatch runs inbound events one thread at a time, in arrival order.
//
// Each thread gets its own FIFO queue and a worker goroutine that lives only
// while the queue has work. Distinct threads run concurrently.
package dispatch

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/JonathanLopez0327/chat-demo/internal/logging"
)

// DefaultQueueSize bounds how many events a single thread may have pending.
const DefaultQueueSize = 32

var (
	// ErrQueueFull is returned when a thread already has QueueSize pending events.
	ErrQueueFull = errors.New("thread queue full")
	// ErrClosed is returned by Submit after Close.
	ErrClosed = errors.New("dispatcher closed")
)

// Job is one unit of work for a thread.
type Job func(ctx context.Context)

type queue struct {
	jobs []Job
}

// Dispatcher serializes jobs per thread.
type Dispatcher struct {
	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	queues map[string]*queue
	closed bool
	wg     sync.WaitGroup

	size   int
	logger *slog.Logger
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithQueueSize overrides DefaultQueueSize.
func WithQueueSize(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.size = n
		}
	}
}

// WithLogger sets the logger for dropped and panicking jobs.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) {
		d.logger = logger
	}
}

// New creates a Dispatcher. Jobs receive a context derived from ctx that is
// cancelled by Close.
func New(ctx context.Context, opts ...Option) *Dispatcher {
	ctx, cancel := context.WithCancel(ctx)
	d := &Dispatcher{
		ctx:    ctx,
		cancel: cancel,
		queues: make(map[string]*queue),
		size:   DefaultQueueSize,
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Submit enqueues job behind every earlier job of the same thread.
func (d *Dispatcher) Submit(threadID string, job Job) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return ErrClosed
	}
	q, running := d.queues[threadID]
	if !running {
		q = &queue{}
		d.queues[threadID] = q
	}
	if len(q.jobs) >= d.size {
		d.logger.Warn("dispatch queue full", "thread_id", threadID, "size", d.size)
		return ErrQueueFull
	}
	q.jobs = append(q.jobs, job)

	if !running {
		d.wg.Add(1)
		go d.work(threadID, q)
	}
	return nil
}

// work drains one thread's queue and exits when it is empty.
func (d *Dispatcher) work(threadID string, q *queue) {
	defer d.wg.Done()
	for {
		d.mu.Lock()
		if len(q.jobs) == 0 {
			delete(d.queues, threadID)
			d.mu.Unlock()
			return
		}
		job := q.jobs[0]
		q.jobs[0] = nil
		q.jobs = q.jobs[1:]
		d.mu.Unlock()

		d.run(threadID, job)
	}
}

func (d *Dispatcher) run(threadID string, job Job) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("dispatch job panicked", "thread_id", threadID, "panic", r)
		}
	}()
	job(d.ctx)
}

// Pending reports how many threads currently have a worker.
func (d *Dispatcher) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.queues)
}

// Close stops accepting jobs and waits for queued ones to finish.
// The job context is cancelled once ctx is done.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.cancel()
		return nil
	case <-ctx.Done():
		d.cancel()
		<-done
		return ctx.Err()
	}
}
