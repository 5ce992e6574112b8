// -----------------------------------------------------------------------
// Last Modified: Friday, 21st August 2026 9:12:03 am
// Modified By: Bob McAllan
// -----------------------------------------------------------------------

package interfaces

import (
	"context"
	"errors"
	"time"

	"github.com/ternarybob/viso/pkg/models"
)

// ErrQueueFull is returned by Enqueue when the dispatch queue is at capacity.
var ErrQueueFull = errors.New("dispatch queue full")

// JobExecutor runs one accepted job to a terminal record. Execute never
// returns an error: every failure is captured into the terminal record, and
// nothing propagates past the executor boundary.
type JobExecutor interface {
	Execute(ctx context.Context, jobID, url string)
}

// JobDispatcher hands accepted submissions to executor workers. It is the
// explicit fire-and-forget boundary between the submission gate and the
// executor: the gate does not wait, and an enqueued job runs exactly once.
type JobDispatcher interface {
	// Enqueue submits a job for asynchronous execution without blocking.
	// A full queue returns ErrQueueFull.
	Enqueue(jobID, url string) error

	// Stop drains in-flight jobs, waiting up to timeout
	Stop(timeout time.Duration) error
}

// StatusQuery reads job records on behalf of API callers. Get distinguishes
// three outcomes: a record, ErrJobNotFound, and a store access error.
type StatusQuery interface {
	Get(ctx context.Context, jobID string) (*models.JobRecord, error)
	List(ctx context.Context, limit int) ([]*models.JobRecord, error)
}
