package secrets

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/viso/internal/interfaces"
)

// mockKVStorage implements interfaces.KeyValueStorage for testing
type mockKVStorage struct {
	data map[string]string
	mu   sync.RWMutex
}

func newMockKVStorage() *mockKVStorage {
	return &mockKVStorage{data: make(map[string]string)}
}

func (m *mockKVStorage) Get(ctx context.Context, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	value, ok := m.data[key]
	if !ok {
		return "", interfaces.ErrKeyNotFound
	}
	return value, nil
}

func (m *mockKVStorage) GetPair(ctx context.Context, key string) (*interfaces.KeyValuePair, error) {
	value, err := m.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	return &interfaces.KeyValuePair{Key: key, Value: value}, nil
}

func (m *mockKVStorage) Set(ctx context.Context, key, value, description string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *mockKVStorage) Upsert(ctx context.Context, key, value, description string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, exists := m.data[key]
	m.data[key] = value
	return !exists, nil
}

func (m *mockKVStorage) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func (m *mockKVStorage) List(ctx context.Context) ([]interfaces.KeyValuePair, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	pairs := make([]interfaces.KeyValuePair, 0, len(m.data))
	for k, v := range m.data {
		pairs = append(pairs, interfaces.KeyValuePair{Key: k, Value: v})
	}
	return pairs, nil
}

func (m *mockKVStorage) GetAll(ctx context.Context) (map[string]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make(map[string]string, len(m.data))
	for k, v := range m.data {
		result[k] = v
	}
	return result, nil
}

func TestResolver_StoreValueWins(t *testing.T) {
	kv := newMockKVStorage()
	require.NoError(t, kv.Set(context.Background(), "browserbase_api_key", "from-store", ""))

	t.Setenv("BROWSERBASE_API_KEY", "from-env")

	resolver := NewResolver(kv, arbor.NewLogger())
	value, err := resolver.Resolve(context.Background(), "browserbase_api_key")
	require.NoError(t, err)
	assert.Equal(t, "from-store", value)
}

func TestResolver_FallsBackToEnvironment(t *testing.T) {
	kv := newMockKVStorage()
	resolver := NewResolver(kv, arbor.NewLogger())

	t.Setenv("BROWSERBASE_PROJECT_ID", "proj-from-env")

	value, err := resolver.Resolve(context.Background(), "browserbase_project_id")
	require.NoError(t, err)
	assert.Equal(t, "proj-from-env", value)
}

func TestResolver_PrefixedEnvVarTakesPriority(t *testing.T) {
	kv := newMockKVStorage()
	resolver := NewResolver(kv, arbor.NewLogger())

	t.Setenv("VISO_SOME_SECRET", "prefixed")
	t.Setenv("SOME_SECRET", "bare")

	value, err := resolver.Resolve(context.Background(), "some_secret")
	require.NoError(t, err)
	assert.Equal(t, "prefixed", value)
}

func TestResolver_MissingSecret(t *testing.T) {
	kv := newMockKVStorage()
	resolver := NewResolver(kv, arbor.NewLogger())

	_, err := resolver.Resolve(context.Background(), "definitely_not_configured")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not configured")
}

func TestResolver_EmptyReference(t *testing.T) {
	resolver := NewResolver(newMockKVStorage(), arbor.NewLogger())

	_, err := resolver.Resolve(context.Background(), "  ")
	require.Error(t, err)
}

func TestResolver_NilStoreStillResolvesFromEnvironment(t *testing.T) {
	resolver := NewResolver(nil, arbor.NewLogger())

	t.Setenv("VISO_ONLY_ENV", "env-value")

	value, err := resolver.Resolve(context.Background(), "only_env")
	require.NoError(t, err)
	assert.Equal(t, "env-value", value)
}
