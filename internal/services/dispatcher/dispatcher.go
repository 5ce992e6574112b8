// Package dispatcher is the explicit handoff between the submission gate and
// the job executor: a bounded queue consumed by a fixed pool of workers. The
// gate enqueues and returns; each accepted job is executed exactly once.
package dispatcher

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/viso/internal/common"
	"github.com/ternarybob/viso/internal/interfaces"
)

// submission is one accepted job waiting for a worker.
type submission struct {
	jobID string
	url   string
}

// Service implements interfaces.JobDispatcher.
type Service struct {
	executor interfaces.JobExecutor
	logger   arbor.ILogger

	queue   chan submission
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.Mutex
	stopped bool
}

// NewService creates a dispatcher and starts its worker pool.
func NewService(executor interfaces.JobExecutor, config *common.DispatcherConfig, logger arbor.ILogger) *Service {
	ctx, cancel := context.WithCancel(context.Background())

	s := &Service{
		executor: executor,
		logger:   logger,
		queue:    make(chan submission, config.QueueSize),
		ctx:      ctx,
		cancel:   cancel,
	}

	for i := 0; i < config.Concurrency; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}

	logger.Info().
		Int("workers", config.Concurrency).
		Int("queue_size", config.QueueSize).
		Msg("Job dispatcher started")

	return s
}

// Enqueue hands a job to the worker pool without blocking. A full queue
// rejects the submission with ErrQueueFull so the gate can surface 503
// instead of silently dropping an accepted job.
func (s *Service) Enqueue(jobID, url string) error {
	// The stopped check and the send must be atomic with respect to Stop
	// closing the queue, otherwise a submission racing with shutdown can
	// hit a closed channel. The send is non-blocking, so holding the
	// mutex across it never stalls the gate.
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return fmt.Errorf("dispatcher is stopped")
	}

	select {
	case s.queue <- submission{jobID: jobID, url: url}:
		s.logger.Debug().Str("job_id", jobID).Msg("Job enqueued")
		return nil
	default:
		return interfaces.ErrQueueFull
	}
}

// Stop drains queued jobs, waiting up to timeout before aborting in-flight
// work. Enqueue rejects new submissions as soon as Stop begins.
func (s *Service) Stop(timeout time.Duration) error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.stopped = true
	// Closing under the same mutex Enqueue holds for its send guarantees
	// no send can land on the closed channel
	close(s.queue)
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.cancel()
		s.logger.Info().Msg("Job dispatcher drained")
		return nil
	case <-time.After(timeout):
		s.cancel()
		s.logger.Warn().Dur("timeout", timeout).Msg("Job dispatcher drain timed out, aborting in-flight jobs")
		return fmt.Errorf("dispatcher drain exceeded %s", timeout)
	}
}

// worker consumes submissions until the queue is closed. The executor never
// panics past its boundary, but a recover here keeps one misbehaving job
// from taking the worker down with it.
func (s *Service) worker(id int) {
	defer s.wg.Done()

	s.logger.Debug().Int("worker_id", id).Msg("Dispatcher worker started")

	for sub := range s.queue {
		s.execute(id, sub)
	}

	s.logger.Debug().Int("worker_id", id).Msg("Dispatcher worker stopped")
}

func (s *Service) execute(workerID int, sub submission) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().
				Int("worker_id", workerID).
				Str("job_id", sub.jobID).
				Msgf("Recovered from panic in dispatcher worker: %v", r)
		}
	}()

	s.logger.Info().
		Int("worker_id", workerID).
		Str("job_id", sub.jobID).
		Msg("Dispatching job")

	s.executor.Execute(s.ctx, sub.jobID, sub.url)
}
