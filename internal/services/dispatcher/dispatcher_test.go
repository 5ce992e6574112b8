package dispatcher

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/viso/internal/common"
	"github.com/ternarybob/viso/internal/interfaces"
)

// countingExecutor records executions per job id.
type countingExecutor struct {
	mu    sync.Mutex
	runs  map[string]int
	block chan struct{} // when non-nil, Execute waits on it
	panic bool
}

func (e *countingExecutor) Execute(ctx context.Context, jobID, url string) {
	if e.block != nil {
		<-e.block
	}
	e.mu.Lock()
	if e.runs == nil {
		e.runs = make(map[string]int)
	}
	e.runs[jobID]++
	e.mu.Unlock()
	if e.panic {
		panic("executor blew up")
	}
}

func (e *countingExecutor) count(jobID string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.runs[jobID]
}

func testDispatcherConfig(queueSize, concurrency int) *common.DispatcherConfig {
	return &common.DispatcherConfig{
		QueueSize:   queueSize,
		Concurrency: concurrency,
	}
}

func TestDispatcher_ExecutesEachJobOnce(t *testing.T) {
	exec := &countingExecutor{}
	d := NewService(exec, testDispatcherConfig(8, 2), arbor.NewLogger())

	require.NoError(t, d.Enqueue("job-a", "https://example.com"))
	require.NoError(t, d.Enqueue("job-b", "https://example.com"))

	require.NoError(t, d.Stop(2*time.Second))
	assert.Equal(t, 1, exec.count("job-a"))
	assert.Equal(t, 1, exec.count("job-b"))
}

func TestDispatcher_FullQueueRejects(t *testing.T) {
	block := make(chan struct{})
	exec := &countingExecutor{block: block}
	d := NewService(exec, testDispatcherConfig(1, 1), arbor.NewLogger())

	// First submission occupies the worker, second fills the queue
	require.NoError(t, d.Enqueue("job-1", "https://example.com"))
	// Give the worker time to pick up job-1 so the queue slot frees
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, d.Enqueue("job-2", "https://example.com"))

	err := d.Enqueue("job-3", "https://example.com")
	assert.ErrorIs(t, err, interfaces.ErrQueueFull)

	close(block)
	require.NoError(t, d.Stop(2*time.Second))
}

func TestDispatcher_StopDrainsQueuedJobs(t *testing.T) {
	exec := &countingExecutor{}
	d := NewService(exec, testDispatcherConfig(16, 1), arbor.NewLogger())

	for _, id := range []string{"d-1", "d-2", "d-3", "d-4"} {
		require.NoError(t, d.Enqueue(id, "https://example.com"))
	}

	require.NoError(t, d.Stop(2*time.Second))

	for _, id := range []string{"d-1", "d-2", "d-3", "d-4"} {
		assert.Equal(t, 1, exec.count(id), "queued job %s should run before drain completes", id)
	}
}

func TestDispatcher_EnqueueAfterStopFails(t *testing.T) {
	exec := &countingExecutor{}
	d := NewService(exec, testDispatcherConfig(4, 1), arbor.NewLogger())
	require.NoError(t, d.Stop(time.Second))

	err := d.Enqueue("late", "https://example.com")
	require.Error(t, err)
	assert.NotErrorIs(t, err, interfaces.ErrQueueFull)
}

func TestDispatcher_PanicIsolation(t *testing.T) {
	exec := &countingExecutor{panic: true}
	d := NewService(exec, testDispatcherConfig(8, 1), arbor.NewLogger())

	require.NoError(t, d.Enqueue("boom-1", "https://example.com"))
	require.NoError(t, d.Enqueue("boom-2", "https://example.com"))

	require.NoError(t, d.Stop(2*time.Second))
	assert.Equal(t, 1, exec.count("boom-1"))
	assert.Equal(t, 1, exec.count("boom-2"), "worker survives a panicking job")
}

func TestDispatcher_EnqueueConcurrentWithStop(t *testing.T) {
	// Submissions racing with shutdown must resolve to accepted, queue-full
	// or dispatcher-stopped; never a send on the closed queue.
	for iter := 0; iter < 20; iter++ {
		exec := &countingExecutor{}
		d := NewService(exec, testDispatcherConfig(4, 2), arbor.NewLogger())

		start := make(chan struct{})
		var wg sync.WaitGroup
		for g := 0; g < 8; g++ {
			wg.Add(1)
			go func(worker int) {
				defer wg.Done()
				<-start
				for i := 0; i < 50; i++ {
					err := d.Enqueue("race", "https://example.com")
					if err != nil {
						assert.Contains(t, []string{
							interfaces.ErrQueueFull.Error(),
							"dispatcher is stopped",
						}, err.Error())
					}
				}
			}(g)
		}

		close(start)
		require.NoError(t, d.Stop(2*time.Second))
		wg.Wait()
	}
}

func TestDispatcher_StopTimeout(t *testing.T) {
	block := make(chan struct{})
	exec := &countingExecutor{block: block}
	d := NewService(exec, testDispatcherConfig(4, 1), arbor.NewLogger())

	require.NoError(t, d.Enqueue("stuck", "https://example.com"))
	time.Sleep(20 * time.Millisecond)

	err := d.Stop(100 * time.Millisecond)
	require.Error(t, err)
	close(block)
}
