package badger

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/viso/internal/interfaces"
	"github.com/ternarybob/viso/pkg/models"
	"github.com/timshannon/badgerhold/v4"
)

// JobStatusStorage implements the JobStatusStorage interface for Badger
type JobStatusStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewJobStatusStorage creates a new JobStatusStorage instance
func NewJobStatusStorage(db *BadgerDB, logger arbor.ILogger) interfaces.JobStatusStorage {
	return &JobStatusStorage{
		db:     db,
		logger: logger,
	}
}

// Upsert writes rec keyed by its JobID. The first write fixes ReceivedAt,
// every write stamps LastUpdatedAt. Writes that would move the status
// backwards, or replace one terminal status with the other, are rejected.
func (s *JobStatusStorage) Upsert(ctx context.Context, rec *models.JobRecord) error {
	if rec == nil {
		return fmt.Errorf("job record is required")
	}
	if rec.JobID == "" {
		return fmt.Errorf("job id is required")
	}
	if !rec.Status.Valid() {
		return fmt.Errorf("invalid job status: %q", rec.Status)
	}

	var existing models.JobRecord
	err := s.db.Store().Get(rec.JobID, &existing)
	switch {
	case err == badgerhold.ErrNotFound:
		if rec.ReceivedAt.IsZero() {
			rec.ReceivedAt = time.Now().UTC()
		}
	case err != nil:
		return fmt.Errorf("failed to read job record: %w", err)
	default:
		if !models.CanTransition(existing.Status, rec.Status) {
			return fmt.Errorf("job %s: status %s cannot replace %s", rec.JobID, rec.Status, existing.Status)
		}
		rec.ReceivedAt = existing.ReceivedAt
	}

	rec.LastUpdatedAt = time.Now().UTC()

	if err := s.db.Store().Upsert(rec.JobID, rec); err != nil {
		return fmt.Errorf("failed to save job record: %w", err)
	}
	return nil
}

// Get retrieves the record for jobID
func (s *JobStatusStorage) Get(ctx context.Context, jobID string) (*models.JobRecord, error) {
	var rec models.JobRecord
	err := s.db.Store().Get(jobID, &rec)
	if err == badgerhold.ErrNotFound {
		return nil, interfaces.ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job record: %w", err)
	}
	return &rec, nil
}

// List returns up to limit records, newest first by ReceivedAt. A limit of
// zero or less returns everything.
func (s *JobStatusStorage) List(ctx context.Context, limit int) ([]*models.JobRecord, error) {
	query := badgerhold.Where("JobID").Ne("").SortBy("ReceivedAt").Reverse()
	if limit > 0 {
		query = query.Limit(limit)
	}

	var recs []models.JobRecord
	if err := s.db.Store().Find(&recs, query); err != nil {
		return nil, fmt.Errorf("failed to list job records: %w", err)
	}

	result := make([]*models.JobRecord, len(recs))
	for i := range recs {
		result[i] = &recs[i]
	}
	return result, nil
}

// Count returns the total number of stored job records
func (s *JobStatusStorage) Count(ctx context.Context) (int, error) {
	count, err := s.db.Store().Count(&models.JobRecord{}, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to count job records: %w", err)
	}
	return int(count), nil
}
