// Package maintenance runs scheduled storage upkeep: Badger value-log
// garbage collection and periodic record-count stats.
package maintenance

import (
	"context"
	"errors"
	"fmt"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/viso/internal/common"
	"github.com/ternarybob/viso/internal/interfaces"
)

// Service schedules storage maintenance with a standard 5-field cron.
type Service struct {
	storage interfaces.StorageManager
	config  *common.MaintenanceConfig
	logger  arbor.ILogger
	cron    *cron.Cron
}

// NewService creates a maintenance service
func NewService(storage interfaces.StorageManager, config *common.MaintenanceConfig, logger arbor.ILogger) *Service {
	return &Service{
		storage: storage,
		config:  config,
		logger:  logger,
		cron:    cron.New(),
	}
}

// Start registers the maintenance schedule and begins running it. Disabled
// maintenance is a no-op Start.
func (s *Service) Start() error {
	if !s.config.Enabled {
		s.logger.Debug().Msg("Storage maintenance disabled")
		return nil
	}

	if _, err := s.cron.AddFunc(s.config.Schedule, s.runOnce); err != nil {
		return fmt.Errorf("failed to schedule maintenance: %w", err)
	}

	s.cron.Start()
	s.logger.Info().
		Str("schedule", s.config.Schedule).
		Float64("gc_discard_ratio", s.config.GCDiscardRatio).
		Msg("Storage maintenance scheduled")

	return nil
}

// Stop halts the schedule, waiting for a running maintenance pass.
func (s *Service) Stop() {
	ctx := s.cron.Stop()
	select {
	case <-ctx.Done():
	case <-time.After(30 * time.Second):
		s.logger.Warn().Msg("Timed out waiting for maintenance pass to finish")
	}
}

// runOnce performs one maintenance pass. Badger's value-log GC reclaims one
// log file per call, so it loops until Badger reports nothing left to
// rewrite.
func (s *Service) runOnce() {
	start := time.Now()

	rounds := 0
	for {
		err := s.storage.RunValueLogGC(s.config.GCDiscardRatio)
		if err == nil {
			rounds++
			continue
		}
		if !errors.Is(err, badger.ErrNoRewrite) {
			s.logger.Warn().Err(err).Msg("Value-log GC failed")
		}
		break
	}

	count, err := s.storage.JobStorage().Count(context.Background())
	if err != nil {
		s.logger.Warn().Err(err).Msg("Failed to count job records")
		count = -1
	}

	s.logger.Info().
		Int("gc_rounds", rounds).
		Int("job_records", count).
		Int64("duration_ms", time.Since(start).Milliseconds()).
		Msg("Storage maintenance pass completed")
}
