package projection

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"threadfu/internal/types"
)

// memCache is an in-memory Cache for tests.
type memCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemCache() *memCache {
	return &memCache{data: map[string][]byte{}}
}

func (c *memCache) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	return v, ok
}

func (c *memCache) Set(key string, value []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
	return nil
}

func (c *memCache) Delete(key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	return nil
}

func todosUpdate(node string, todos []types.TodoItem) types.UpdatesEvent {
	return types.UpdatesEvent{node: types.NodePartial{Todos: &todos}}
}

func TestDebounceCoalescesBurstToLastValue(t *testing.T) {
	aux := NewAuxProjector(newMemCache(), 30*time.Millisecond, nil)
	aux.SetThread("abc123")

	var mu sync.Mutex
	var deliveries [][]types.TodoItem
	aux.OnTodos(func(todos []types.TodoItem) {
		mu.Lock()
		deliveries = append(deliveries, todos)
		mu.Unlock()
	})

	// Five events inside one coalescing window.
	for i := 1; i <= 5; i++ {
		aux.HandleUpdates(todosUpdate("agent", []types.TodoItem{
			{ID: "td1", Content: "task", Status: types.TodoPending},
			{ID: "burst", Content: string(rune('0' + i)), Status: types.TodoPending},
		}))
	}

	time.Sleep(120 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, deliveries, 1)
	assert.Equal(t, "5", deliveries[0][1].Content)
}

func TestDebounceSeparateWindowsDeliverSeparately(t *testing.T) {
	aux := NewAuxProjector(newMemCache(), 20*time.Millisecond, nil)
	aux.SetThread("abc123")

	var mu sync.Mutex
	var count int
	aux.OnTodos(func([]types.TodoItem) {
		mu.Lock()
		count++
		mu.Unlock()
	})

	aux.HandleUpdates(todosUpdate("agent", []types.TodoItem{{ID: "a"}}))
	time.Sleep(60 * time.Millisecond)
	aux.HandleUpdates(todosUpdate("agent", []types.TodoItem{{ID: "b"}}))
	time.Sleep(60 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 2, count)
}

func TestAdvisoryCopyPersisted(t *testing.T) {
	cacheStore := newMemCache()
	aux := NewAuxProjector(cacheStore, 10*time.Millisecond, nil)
	aux.SetThread("abc123")
	aux.OnTodos(func([]types.TodoItem) {})

	aux.HandleUpdates(todosUpdate("agent", []types.TodoItem{
		{ID: "td1", Content: "write tests", Status: types.TodoInProgress},
	}))
	time.Sleep(50 * time.Millisecond)

	raw, ok := cacheStore.Get("todos:abc123")
	require.True(t, ok)

	var persisted []types.TodoItem
	require.NoError(t, json.Unmarshal(raw, &persisted))
	require.Len(t, persisted, 1)
	assert.Equal(t, "write tests", persisted[0].Content)
}

func TestApplySnapshotBypassesDebounce(t *testing.T) {
	aux := NewAuxProjector(newMemCache(), time.Hour, nil) // window never fires
	var gotTodos []types.TodoItem
	var gotFiles map[string]string
	aux.OnTodos(func(todos []types.TodoItem) { gotTodos = todos })
	aux.OnFiles(func(files map[string]string) { gotFiles = files })

	aux.ApplySnapshot("abc123", types.ThreadState{
		Todos: []types.TodoItem{{ID: "td1", Content: "done", Status: types.TodoCompleted}},
		Files: map[string]string{"main.go": "package main"},
	})

	require.Len(t, gotTodos, 1)
	assert.Equal(t, "package main", gotFiles["main.go"])
}

func TestApplySnapshotWithoutAuxClearsPreviousThread(t *testing.T) {
	aux := NewAuxProjector(newMemCache(), time.Hour, nil)
	var gotTodos []types.TodoItem
	var gotFiles map[string]string
	var todoDeliveries int
	aux.OnTodos(func(todos []types.TodoItem) {
		gotTodos = todos
		todoDeliveries++
	})
	aux.OnFiles(func(files map[string]string) { gotFiles = files })

	aux.ApplySnapshot("thread-a", types.ThreadState{
		Todos: []types.TodoItem{{ID: "td1", Content: "thread A task", Status: types.TodoPending}},
		Files: map[string]string{"a.go": "package a"},
	})
	require.Len(t, gotTodos, 1)

	// Switching to a thread with no todos or files must replace both
	// views with empty, not keep thread A's on screen.
	aux.ApplySnapshot("thread-b", types.ThreadState{})

	assert.Equal(t, 2, todoDeliveries)
	assert.Empty(t, gotTodos)
	assert.Empty(t, gotFiles)
}

func TestHandleUpdatesVisitsNodesInNameOrder(t *testing.T) {
	aux := NewAuxProjector(newMemCache(), 20*time.Millisecond, nil)
	aux.SetThread("abc123")

	var mu sync.Mutex
	var gotTodos []types.TodoItem
	aux.OnTodos(func(todos []types.TodoItem) {
		mu.Lock()
		gotTodos = todos
		mu.Unlock()
	})

	// Two nodes emit todos in one event; the name-ordered visit makes
	// the lexicographically later node's value the latest, regardless
	// of map iteration order.
	first := []types.TodoItem{{ID: "a", Content: "from agent"}}
	second := []types.TodoItem{{ID: "b", Content: "from planner"}}
	aux.HandleUpdates(types.UpdatesEvent{
		"planner": {Todos: &second},
		"agent":   {Todos: &first},
	})
	time.Sleep(60 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, gotTodos, 1)
	assert.Equal(t, "from planner", gotTodos[0].Content)
}

func TestFallbackRoundTrip(t *testing.T) {
	cacheStore := newMemCache()
	aux := NewAuxProjector(cacheStore, 10*time.Millisecond, nil)

	aux.ApplySnapshot("abc123", types.ThreadState{
		Todos: []types.TodoItem{{ID: "td1", Content: "remember me"}},
		Files: map[string]string{"notes.md": "# notes"},
	})

	todos, files, ok := aux.Fallback("abc123")
	require.True(t, ok)
	require.Len(t, todos, 1)
	assert.Equal(t, "remember me", todos[0].Content)
	assert.Equal(t, "# notes", files["notes.md"])
}

func TestFallbackMissingThread(t *testing.T) {
	aux := NewAuxProjector(newMemCache(), 10*time.Millisecond, nil)
	_, _, ok := aux.Fallback("nope")
	assert.False(t, ok)
}

func TestUseFallbackDelivers(t *testing.T) {
	cacheStore := newMemCache()
	seed := NewAuxProjector(cacheStore, 10*time.Millisecond, nil)
	seed.ApplySnapshot("abc123", types.ThreadState{
		Todos: []types.TodoItem{{ID: "td1"}},
	})

	aux := NewAuxProjector(cacheStore, 10*time.Millisecond, nil)
	var delivered bool
	aux.OnTodos(func([]types.TodoItem) { delivered = true })

	assert.True(t, aux.UseFallback("abc123"))
	assert.True(t, delivered)
	assert.False(t, aux.UseFallback("unknown"))
}

func TestNilCacheIsBestEffort(t *testing.T) {
	aux := NewAuxProjector(nil, 10*time.Millisecond, nil)
	aux.SetThread("abc123")
	aux.OnTodos(func([]types.TodoItem) {})

	// Must not panic without a cache.
	aux.HandleUpdates(todosUpdate("agent", []types.TodoItem{{ID: "a"}}))
	time.Sleep(40 * time.Millisecond)

	_, _, ok := aux.Fallback("abc123")
	assert.False(t, ok)
}
