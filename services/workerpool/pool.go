package workerpool

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

var (
	// ErrPoolClosed is returned when a task is submitted to a pool that is not running
	ErrPoolClosed = errors.New("worker pool is not running")

	// ErrTaskPanicked is returned when a task panics on its worker
	ErrTaskPanicked = errors.New("task panicked")
)

// Config holds configuration for the Pool
type Config struct {
	Workers   int // Number of concurrent workers
	QueueSize int // Tasks allowed to wait for a free worker
}

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	return Config{
		Workers:   4,
		QueueSize: 64,
	}
}

type task struct {
	ctx  context.Context
	fn   func()
	done chan error
}

// Pool executes blocking functions on a fixed set of goroutines.
// Callers wait for their own task only, so one slow task never delays
// another beyond the shared worker limit.
type Pool struct {
	logger    *zap.Logger
	tasks     chan *task
	workers   int
	queueSize int
	wg        sync.WaitGroup
	mu        sync.RWMutex
	started   bool
	stopped   bool
	inFlight  atomic.Int64
	completed atomic.Uint64
}

// New creates a new Pool instance
func New(config Config, logger *zap.Logger) *Pool {
	if config.Workers <= 0 {
		config.Workers = DefaultConfig().Workers
	}
	if config.QueueSize < 0 {
		config.QueueSize = 0
	}

	return &Pool{
		logger:    logger,
		tasks:     make(chan *task, config.QueueSize),
		workers:   config.Workers,
		queueSize: config.QueueSize,
	}
}

// Start starts the background workers
func (p *Pool) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started {
		return fmt.Errorf("worker pool already started")
	}

	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}

	p.started = true
	p.logger.Info("started worker pool",
		zap.Int("workers", p.workers),
		zap.Int("queue_size", p.queueSize))

	return nil
}

// Stop stops accepting tasks and waits for queued ones to finish
func (p *Pool) Stop(timeout time.Duration) error {
	p.mu.Lock()
	if !p.started || p.stopped {
		p.mu.Unlock()
		return fmt.Errorf("worker pool not running")
	}
	p.stopped = true
	close(p.tasks)
	p.mu.Unlock()

	p.logger.Info("stopping worker pool", zap.Int("queued_tasks", len(p.tasks)))

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("worker pool stopped gracefully")
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("worker pool stop timeout after %v", timeout)
	}
}

// Run queues fn and waits for it to complete.
// When ctx ends first Run returns ctx.Err(); a task that already started
// keeps its worker until fn returns.
func (p *Pool) Run(ctx context.Context, fn func()) error {
	t := &task{ctx: ctx, fn: fn, done: make(chan error, 1)}

	p.mu.RLock()
	if !p.started || p.stopped {
		p.mu.RUnlock()
		return ErrPoolClosed
	}

	select {
	case p.tasks <- t:
		p.mu.RUnlock()
	case <-ctx.Done():
		p.mu.RUnlock()
		return ctx.Err()
	}

	select {
	case err := <-t.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// worker processes tasks from the channel
func (p *Pool) worker(id int) {
	defer p.wg.Done()

	p.logger.Debug("pool worker started", zap.Int("worker_id", id))

	for t := range p.tasks {
		// Skip work nobody is waiting for anymore
		if err := t.ctx.Err(); err != nil {
			t.done <- err
			continue
		}

		p.inFlight.Add(1)
		err := p.execute(t)
		p.inFlight.Add(-1)
		p.completed.Add(1)

		if err != nil {
			p.logger.Error("pool task failed", zap.Int("worker_id", id), zap.Error(err))
		}
		t.done <- err
	}

	p.logger.Debug("pool worker stopped", zap.Int("worker_id", id))
}

func (p *Pool) execute(t *task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrTaskPanicked, r)
		}
	}()

	t.fn()
	return nil
}

// Stats returns statistics about the pool
func (p *Pool) Stats() Stats {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return Stats{
		Workers:   p.workers,
		QueueSize: p.queueSize,
		Queued:    len(p.tasks),
		InFlight:  int(p.inFlight.Load()),
		Completed: p.completed.Load(),
		Started:   p.started && !p.stopped,
	}
}

// Stats represents worker pool statistics
type Stats struct {
	Workers   int
	QueueSize int
	Queued    int
	InFlight  int
	Completed uint64
	Started   bool
}
