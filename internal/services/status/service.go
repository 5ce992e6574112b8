// Package status exposes read-only job record queries to API callers. The
// store is the single source of truth; this service only translates its
// results, it never writes.
package status

import (
	"context"
	"errors"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/viso/internal/interfaces"
	"github.com/ternarybob/viso/pkg/models"
)

const defaultListLimit = 20

// Service implements interfaces.StatusQuery over the job status storage.
type Service struct {
	storage interfaces.JobStatusStorage
	logger  arbor.ILogger
}

// NewService creates a status query service
func NewService(storage interfaces.JobStatusStorage, logger arbor.ILogger) interfaces.StatusQuery {
	return &Service{
		storage: storage,
		logger:  logger,
	}
}

// Get returns the current snapshot for jobID. A missing record comes back
// as interfaces.ErrJobNotFound, which is the expected state between
// acceptance and the executor's first write and must never be conflated
// with a store access failure.
func (s *Service) Get(ctx context.Context, jobID string) (*models.JobRecord, error) {
	if jobID == "" {
		return nil, fmt.Errorf("job id is required")
	}

	rec, err := s.storage.Get(ctx, jobID)
	if err != nil {
		if errors.Is(err, interfaces.ErrJobNotFound) {
			return nil, err
		}
		s.logger.Error().Err(err).Str("job_id", jobID).Msg("Job record lookup failed")
		return nil, fmt.Errorf("failed to read job record: %w", err)
	}

	return rec, nil
}

// List returns recent records, newest first. A non-positive limit uses the
// default.
func (s *Service) List(ctx context.Context, limit int) ([]*models.JobRecord, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}

	recs, err := s.storage.List(ctx, limit)
	if err != nil {
		s.logger.Error().Err(err).Msg("Job record listing failed")
		return nil, fmt.Errorf("failed to list job records: %w", err)
	}

	return recs, nil
}
