// -----------------------------------------------------------------------
// Last Modified: Friday, 21st August 2026 9:12:03 am
// Modified By: Bob McAllan
// -----------------------------------------------------------------------

package interfaces

import (
	"context"
	"errors"

	"github.com/ternarybob/viso/pkg/models"
)

// ErrJobNotFound is returned when no record exists for a job id. Callers
// treat this as "not yet visible", never as a failed job.
var ErrJobNotFound = errors.New("job not found")

// JobStatusStorage defines durable single-record operations for job records.
// Writes are idempotent upserts keyed by job id. The store rejects status
// regressions so a committed terminal verdict can never be replaced.
type JobStatusStorage interface {
	// Upsert writes rec keyed by its JobID, stamping LastUpdatedAt and
	// preserving the ReceivedAt of the first write.
	Upsert(ctx context.Context, rec *models.JobRecord) error

	// Get retrieves the record for jobID, returns ErrJobNotFound if absent
	Get(ctx context.Context, jobID string) (*models.JobRecord, error)

	// List returns up to limit records ordered by ReceivedAt descending
	List(ctx context.Context, limit int) ([]*models.JobRecord, error)

	// Count returns the total number of stored records
	Count(ctx context.Context) (int, error)
}

// StorageManager provides access to storage implementations
type StorageManager interface {
	// JobStorage returns the job record storage
	JobStorage() JobStatusStorage

	// KeyValueStorage returns the key/value storage
	KeyValueStorage() KeyValueStorage

	// LoadEnvFile loads KEY=value pairs from an env file into the
	// key/value store (used to seed provider credentials)
	LoadEnvFile(ctx context.Context, path string) error

	// RunValueLogGC triggers one round of badger value-log garbage
	// collection with the given discard ratio
	RunValueLogGC(discardRatio float64) error

	// Close closes all storage connections
	Close() error
}
