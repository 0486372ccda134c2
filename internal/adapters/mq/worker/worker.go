// Package worker runs the pool that drains recompute requests.
package worker

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/okian/pulse/internal/domain/model"
	"github.com/okian/pulse/pkg/logger"
	"github.com/okian/pulse/pkg/metrics"
)

const defaultWorkerMultiplier = 2

// Request is what workers read off the queue.
type Request = model.RecomputeRequest

// Processor handles one recompute request.
type Processor interface {
	Process(ctx context.Context, r Request) error
}

// ProcessorFunc adapts a function to Processor.
type ProcessorFunc func(ctx context.Context, r Request) error

func (f ProcessorFunc) Process(ctx context.Context, r Request) error { return f(ctx, r) }

// Queue defines how workers receive requests.
type Queue interface {
	Dequeue() <-chan Request
	Close() error
}

// InMemoryWorker processes requests from a Queue until it is closed.
type InMemoryWorker struct {
	queue     Queue
	processor Processor
	name      string

	stop chan struct{}
	done chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a worker.
func NewInMemoryWorker(q Queue, p Processor, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:     q,
		processor: p,
		name:      "worker",
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
		logger:    logger.Get().Named("worker"),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run processes requests until the queue is closed and drained, ctx is
// cancelled, or the worker is aborted.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	requests := w.queue.Dequeue()
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stop:
			return
		case r, ok := <-requests:
			if !ok {
				return
			}
			metrics.RecordQueueDequeue()
			w.process(ctx, r)
		}
	}
}

// Done is closed when Run returns.
func (w *InMemoryWorker) Done() <-chan struct{} { return w.done }

func (w *InMemoryWorker) abort() {
	select {
	case <-w.stop:
	default:
		close(w.stop)
	}
}

func (w *InMemoryWorker) process(ctx context.Context, r Request) {
	start := time.Now()
	defer func() {
		metrics.RecordWorkerProcessingLatency(float64(time.Since(start).Microseconds()) / 1000)
	}()

	if err := w.processor.Process(ctx, r); err != nil {
		metrics.RecordWorkerError()
		w.logger.Error(ctx, "recompute failed",
			logger.String("worker", w.name),
			logger.String("project_id", r.ProjectID),
			logger.String("trigger", r.Trigger),
			logger.Error(err),
		)
	}
}

// Pool manages a fixed set of workers sharing one queue.
type Pool struct {
	workers []*InMemoryWorker
	queue   Queue

	startOnce sync.Once
	logger    logger.Logger
}

// NewPool creates a pool. A count below 1 falls back to 2 per CPU.
func NewPool(workerCount int, q Queue, p Processor) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU() * defaultWorkerMultiplier
	}
	pool := &Pool{
		workers: make([]*InMemoryWorker, workerCount),
		queue:   q,
		logger:  logger.Get().Named("worker-pool"),
	}
	for i := range pool.workers {
		pool.workers[i] = NewInMemoryWorker(q, p, WithName("worker-"+strconv.Itoa(i)))
	}
	return pool
}

// Size returns the number of workers.
func (p *Pool) Size() int { return len(p.workers) }

// Start launches every worker. Later calls are no-ops.
func (p *Pool) Start(ctx context.Context) {
	p.startOnce.Do(func() {
		for _, w := range p.workers {
			go w.Run(ctx)
		}
		metrics.UpdateWorkerCount(len(p.workers))
		p.logger.Info(ctx, "worker pool started", logger.Int("workers", len(p.workers)))
	})
}

// Shutdown closes the queue and waits for workers to drain it. Workers
// still busy when ctx expires are aborted and an error is returned.
func (p *Pool) Shutdown(ctx context.Context) error {
	if err := p.queue.Close(); err != nil {
		p.logger.Error(ctx, "error closing queue", logger.Error(err))
	}

	var timedOut int
	for _, w := range p.workers {
		select {
		case <-w.done:
		case <-ctx.Done():
			w.abort()
			timedOut++
		}
	}
	metrics.UpdateWorkerCount(0)

	if timedOut > 0 {
		p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("workers", timedOut))
		return fmt.Errorf("worker pool shutdown: %d workers still busy: %w", timedOut, ctx.Err())
	}
	return nil
}
