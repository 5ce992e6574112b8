package badger

import (
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/viso/internal/common"
	"github.com/ternarybob/viso/internal/interfaces"
)

// Manager implements the StorageManager interface for Badger
type Manager struct {
	db     *BadgerDB
	job    interfaces.JobStatusStorage
	kv     interfaces.KeyValueStorage
	logger arbor.ILogger
}

// NewManager opens the Badger database and wires the stores backed by it
func NewManager(logger arbor.ILogger, config *common.BadgerConfig) (interfaces.StorageManager, error) {
	db, err := NewBadgerDB(logger, config)
	if err != nil {
		return nil, err
	}

	manager := &Manager{
		db:     db,
		job:    NewJobStatusStorage(db, logger),
		kv:     NewKVStorage(db, logger),
		logger: logger,
	}

	logger.Info().Str("path", config.Path).Msg("Badger storage manager initialized")

	return manager, nil
}

// JobStorage returns the job record storage
func (m *Manager) JobStorage() interfaces.JobStatusStorage {
	return m.job
}

// KeyValueStorage returns the key/value storage
func (m *Manager) KeyValueStorage() interfaces.KeyValueStorage {
	return m.kv
}

// RunValueLogGC triggers one round of value log garbage collection
func (m *Manager) RunValueLogGC(discardRatio float64) error {
	return m.db.RunValueLogGC(discardRatio)
}

// Close closes the database connection
func (m *Manager) Close() error {
	if m.db != nil {
		return m.db.Close()
	}
	return nil
}
