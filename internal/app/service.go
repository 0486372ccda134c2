// Package service ties the store, the health engine and the recompute
// pipeline together behind the operations the HTTP API exposes.
package service

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okian/pulse/internal/adapters/events"
	"github.com/okian/pulse/internal/adapters/mq/queue"
	"github.com/okian/pulse/internal/adapters/mq/worker"
	"github.com/okian/pulse/internal/adapters/repository"
	"github.com/okian/pulse/internal/domain/dedupe"
	"github.com/okian/pulse/internal/domain/health"
	"github.com/okian/pulse/pkg/logger"
	"github.com/okian/pulse/pkg/metrics"
)

const defaultMissingCheckInWindow = 7 * 24 * time.Hour

// Service implements the API dependencies for the health tracking system.
type Service struct {
	mu sync.RWMutex

	store     repository.Store
	engine    *health.Engine
	publisher events.Publisher
	deduper   dedupe.Deduper
	queue     *queue.InMemoryQueue
	pool      *worker.Pool
	locks     *keyedMutex

	workerCount          int
	queueSize            int
	dedupeSize           int
	recentWindow         time.Duration
	missingCheckInWindow time.Duration

	clock func() time.Time
	newID func() string

	started bool
	logger  logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithStore replaces the default in-memory store.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}

// WithPublisher sets where health change events go. Events are dropped by default.
func WithPublisher(p events.Publisher) Option {
	return func(s *Service) {
		if p != nil {
			s.publisher = p
		}
	}
}

// WithWorkerCount sets the number of recompute workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the capacity of the recompute queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize caps how many projects may have a recompute pending.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithRecentWindow sets the trailing window for feedback and check-ins.
func WithRecentWindow(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.recentWindow = d
		}
	}
}

// WithMissingCheckInWindow sets how long without a check-in flags a project
// on the dashboard.
func WithMissingCheckInWindow(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.missingCheckInWindow = d
		}
	}
}

// WithClock overrides the time source.
func WithClock(clock func() time.Time) Option {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithIDGenerator overrides how record ids are minted.
func WithIDGenerator(gen func() string) Option {
	return func(s *Service) {
		if gen != nil {
			s.newID = gen
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// New constructs a Service. Until Start is called, recomputes triggered by
// submissions run inline.
func New(opts ...Option) *Service {
	s := &Service{
		workerCount:          runtime.NumCPU() * 2,
		queueSize:            10_000,
		dedupeSize:           100_000,
		recentWindow:         health.RecentWindow,
		missingCheckInWindow: defaultMissingCheckInWindow,
		clock:                func() time.Time { return time.Now().UTC() },
		newID:                uuid.NewString,
		locks:                newKeyedMutex(),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.store == nil {
		s.store = repository.NewMemoryStore()
	}
	if s.publisher == nil {
		s.publisher = events.NopPublisher{}
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}
	s.engine = health.NewEngine(health.WithRecentWindow(s.recentWindow))
	return s
}

// Start launches the recompute pipeline. Calling it twice is a no-op.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))
	s.queue = queue.NewInMemoryQueue(queue.WithCapacity(s.queueSize))
	s.pool = worker.NewPool(s.workerCount, s.queue, worker.ProcessorFunc(s.process))
	// workers outlive request contexts; Stop drains them
	s.pool.Start(context.WithoutCancel(ctx))

	s.started = true
	s.logger.Info(ctx, "health service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queue_size", s.queueSize),
		logger.Int("dedupe_size", s.dedupeSize),
		logger.Duration("recent_window", s.recentWindow),
	)
	return nil
}

// Stop drains pending recomputes. The store and the publisher belong to the
// caller and stay open, so a stopped service can be started again.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}
	s.logger.Info(ctx, "stopping health service")
	s.started = false
	if err := s.pool.Shutdown(ctx); err != nil {
		return fmt.Errorf("stop health service: %w", err)
	}
	return nil
}

func (s *Service) running() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.started
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]any{
		"started":          s.started,
		"workerCount":      s.workerCount,
		"queueSize":        s.queueSize,
		"dedupeSize":       s.dedupeSize,
		"recentWindowDays": int(s.recentWindow / (24 * time.Hour)),
	}

	if n, err := s.store.Count(context.Background()); err == nil {
		stats["totalProjects"] = n
		metrics.UpdateTotalProjects(n)
	}
	if s.started {
		stats["queueLength"] = s.queue.Len()
		stats["pendingRecomputes"] = s.deduper.Size()
	}
	return stats
}
