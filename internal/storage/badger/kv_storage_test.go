package badger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/viso/internal/interfaces"
)

func TestKVStorage_SetAndGet(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	logger := arbor.NewLogger()
	storage := NewKVStorage(db, logger)
	ctx := context.Background()

	err := storage.Set(ctx, "browserbase_api_key", "bb_live_secret", "Provider API key")
	require.NoError(t, err)

	value, err := storage.Get(ctx, "browserbase_api_key")
	require.NoError(t, err)
	assert.Equal(t, "bb_live_secret", value)

	pair, err := storage.GetPair(ctx, "browserbase_api_key")
	require.NoError(t, err)
	assert.Equal(t, "browserbase_api_key", pair.Key)
	assert.Equal(t, "Provider API key", pair.Description)
	assert.False(t, pair.CreatedAt.IsZero())
	assert.False(t, pair.UpdatedAt.IsZero())
}

func TestKVStorage_KeysAreCaseInsensitive(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	logger := arbor.NewLogger()
	storage := NewKVStorage(db, logger)
	ctx := context.Background()

	err := storage.Set(ctx, "Browserbase_Project_ID", "proj-123", "")
	require.NoError(t, err)

	value, err := storage.Get(ctx, "browserbase_project_id")
	require.NoError(t, err)
	assert.Equal(t, "proj-123", value)

	value, err = storage.Get(ctx, "BROWSERBASE_PROJECT_ID")
	require.NoError(t, err)
	assert.Equal(t, "proj-123", value)
}

func TestKVStorage_GetNotFound(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	logger := arbor.NewLogger()
	storage := NewKVStorage(db, logger)
	ctx := context.Background()

	_, err := storage.Get(ctx, "missing-key")
	require.Error(t, err)
	assert.ErrorIs(t, err, interfaces.ErrKeyNotFound)
}

func TestKVStorage_UpsertReportsNewKey(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	logger := arbor.NewLogger()
	storage := NewKVStorage(db, logger)
	ctx := context.Background()

	isNew, err := storage.Upsert(ctx, "upsert-key", "v1", "")
	require.NoError(t, err)
	assert.True(t, isNew, "first upsert should report a new key")

	first, err := storage.GetPair(ctx, "upsert-key")
	require.NoError(t, err)

	isNew, err = storage.Upsert(ctx, "upsert-key", "v2", "")
	require.NoError(t, err)
	assert.False(t, isNew, "second upsert should report an existing key")

	second, err := storage.GetPair(ctx, "upsert-key")
	require.NoError(t, err)
	assert.Equal(t, "v2", second.Value)
	assert.Equal(t, first.CreatedAt.UnixNano(), second.CreatedAt.UnixNano(), "CreatedAt should be preserved")
}

func TestKVStorage_Delete(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	logger := arbor.NewLogger()
	storage := NewKVStorage(db, logger)
	ctx := context.Background()

	require.NoError(t, storage.Set(ctx, "delete-key", "v", ""))
	require.NoError(t, storage.Delete(ctx, "delete-key"))

	_, err := storage.Get(ctx, "delete-key")
	assert.ErrorIs(t, err, interfaces.ErrKeyNotFound)

	err = storage.Delete(ctx, "delete-key")
	assert.ErrorIs(t, err, interfaces.ErrKeyNotFound)
}

func TestKVStorage_GetAll(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	logger := arbor.NewLogger()
	storage := NewKVStorage(db, logger)
	ctx := context.Background()

	testData := map[string]string{
		"key1": "value1",
		"key2": "value2",
		"key3": "value3",
	}
	for key, value := range testData {
		require.NoError(t, storage.Set(ctx, key, value, ""))
	}

	kvMap, err := storage.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, kvMap, 3)
	for key, expected := range testData {
		assert.Equal(t, expected, kvMap[key])
	}
}

func TestKVStorage_EmptyList(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	logger := arbor.NewLogger()
	storage := NewKVStorage(db, logger)
	ctx := context.Background()

	pairs, err := storage.List(ctx)
	require.NoError(t, err)
	assert.NotNil(t, pairs, "should return empty slice, not nil")
	assert.Len(t, pairs, 0)
}
