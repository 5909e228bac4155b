package audit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/upb/ai-dispatcher/models"
	"github.com/upb/ai-dispatcher/repositories"
	"go.uber.org/zap"
)

var (
	// ErrNotRunning is returned when recording on a service that is not started
	ErrNotRunning = errors.New("audit service not running")

	// ErrBufferFull is returned when the record buffer has no free slot
	ErrBufferFull = errors.New("audit record buffer full")
)

// Config holds configuration for the Service
type Config struct {
	BufferSize   int           // Size of the record buffer channel
	WorkerCount  int           // Number of concurrent writers
	WriteTimeout time.Duration // Bound on a single insert
}

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	return Config{
		BufferSize:   1000,
		WorkerCount:  2,
		WriteTimeout: 5 * time.Second,
	}
}

// Service writes dispatch records asynchronously.
// Record never blocks the caller; a full buffer drops the record.
type Service struct {
	repo         repositories.DispatchRecordRepository
	logger       *zap.Logger
	records      chan *models.DispatchRecord
	workerCount  int
	bufferSize   int
	writeTimeout time.Duration
	wg           sync.WaitGroup
	mu           sync.RWMutex
	started      bool
	stopped      bool
	written      atomic.Uint64
	dropped      atomic.Uint64
	failed       atomic.Uint64
}

// NewService creates a new audit Service
func NewService(repo repositories.DispatchRecordRepository, logger *zap.Logger, config Config) *Service {
	defaults := DefaultConfig()
	if config.BufferSize <= 0 {
		config.BufferSize = defaults.BufferSize
	}
	if config.WorkerCount <= 0 {
		config.WorkerCount = defaults.WorkerCount
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = defaults.WriteTimeout
	}

	return &Service{
		repo:         repo,
		logger:       logger,
		records:      make(chan *models.DispatchRecord, config.BufferSize),
		workerCount:  config.WorkerCount,
		bufferSize:   config.BufferSize,
		writeTimeout: config.WriteTimeout,
	}
}

// Start starts the background writers
func (s *Service) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return fmt.Errorf("audit service already started")
	}

	for i := 0; i < s.workerCount; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}

	s.started = true
	s.logger.Info("started audit service",
		zap.Int("worker_count", s.workerCount),
		zap.Int("buffer_size", s.bufferSize))

	return nil
}

// Stop stops accepting records and waits for buffered ones to be written
func (s *Service) Stop(timeout time.Duration) error {
	s.mu.Lock()
	if !s.started || s.stopped {
		s.mu.Unlock()
		return ErrNotRunning
	}
	s.stopped = true
	close(s.records)
	s.mu.Unlock()

	s.logger.Info("stopping audit service", zap.Int("pending_records", len(s.records)))

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("audit service stopped gracefully")
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("audit service stop timeout after %v", timeout)
	}
}

// Record queues a dispatch record (non-blocking)
func (s *Service) Record(record *models.DispatchRecord) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.started || s.stopped {
		return ErrNotRunning
	}

	select {
	case s.records <- record:
		return nil
	default:
		s.dropped.Add(1)
		s.logger.Warn("audit record buffer full, dropping record",
			zap.String("request_id", record.RequestID),
			zap.String("status", string(record.Status)))
		return ErrBufferFull
	}
}

func (s *Service) worker(id int) {
	defer s.wg.Done()

	s.logger.Debug("audit worker started", zap.Int("worker_id", id))

	for record := range s.records {
		if err := s.write(record); err != nil {
			s.failed.Add(1)
			s.logger.Error("failed to write dispatch record",
				zap.Int("worker_id", id),
				zap.String("request_id", record.RequestID),
				zap.Error(err))
			continue
		}
		s.written.Add(1)
	}

	s.logger.Debug("audit worker stopped", zap.Int("worker_id", id))
}

func (s *Service) write(record *models.DispatchRecord) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.writeTimeout)
	defer cancel()

	return s.repo.Insert(ctx, record)
}

// GetStats returns statistics about the audit service
func (s *Service) GetStats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return Stats{
		BufferSize:     s.bufferSize,
		PendingRecords: len(s.records),
		WorkerCount:    s.workerCount,
		Written:        s.written.Load(),
		Dropped:        s.dropped.Load(),
		Failed:         s.failed.Load(),
		Started:        s.started && !s.stopped,
	}
}

// Stats represents audit service statistics
type Stats struct {
	BufferSize     int
	PendingRecords int
	WorkerCount    int
	Written        uint64
	Dropped        uint64
	Failed         uint64
	Started        bool
}
