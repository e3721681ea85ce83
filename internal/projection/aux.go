package projection

import (
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/bep/debounce"
	"go.uber.org/zap"

	"threadfu/internal/types"
)

// =============================================================================
// AUX STATE PROJECTION (todos + files)
// =============================================================================

// DefaultDebounceWindow coalesces bursts of node updates into one
// delivery of the latest value.
const DefaultDebounceWindow = 100 * time.Millisecond

// Cache is the injected key-value capability used for the advisory
// fallback copy. It can be any persistent store; threadfu wires the
// SQLite-backed one from internal/cache.
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte) error
	Delete(key string) error
}

// AuxProjector extracts the todos and files sub-documents from update
// events, debounces delivery, and keeps a best-effort local fallback
// copy keyed by thread id. Within one coalescing window only the most
// recent value is delivered, exactly once.
type AuxProjector struct {
	cache  Cache
	log    *zap.Logger
	window time.Duration

	onTodos func([]types.TodoItem)
	onFiles func(map[string]string)

	debounceTodos func(func())
	debounceFiles func(func())

	mu          sync.Mutex
	threadID    string
	latestTodos []types.TodoItem
	latestFiles map[string]string
}

// NewAuxProjector creates a projector with the given coalescing window.
// A zero window falls back to DefaultDebounceWindow.
func NewAuxProjector(cache Cache, window time.Duration, log *zap.Logger) *AuxProjector {
	if window <= 0 {
		window = DefaultDebounceWindow
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &AuxProjector{
		cache:         cache,
		log:           log,
		window:        window,
		debounceTodos: debounce.New(window),
		debounceFiles: debounce.New(window),
	}
}

// OnTodos registers the delivery callback for the task list.
func (p *AuxProjector) OnTodos(fn func([]types.TodoItem)) { p.onTodos = fn }

// OnFiles registers the delivery callback for the virtual file set.
func (p *AuxProjector) OnFiles(fn func(map[string]string)) { p.onFiles = fn }

// SetThread scopes subsequent fallback writes to a thread id.
func (p *AuxProjector) SetThread(threadID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.threadID = threadID
}

// HandleUpdates consumes a node-update event. Each node's partial state
// is checked for todos and files fields; present fields reschedule the
// debounced delivery with the new latest value. Nodes within one event
// are visited in name order: map iteration would make "latest"
// arbitrary when two nodes emit the same field in the same event.
func (p *AuxProjector) HandleUpdates(updates types.UpdatesEvent) {
	nodes := make([]string, 0, len(updates))
	for node := range updates {
		nodes = append(nodes, node)
	}
	sort.Strings(nodes)

	for _, node := range nodes {
		partial := updates[node]
		if partial.Todos != nil {
			p.mu.Lock()
			p.latestTodos = *partial.Todos
			p.mu.Unlock()
			p.debounceTodos(p.deliverTodos)
		}
		if partial.Files != nil {
			p.mu.Lock()
			p.latestFiles = *partial.Files
			p.mu.Unlock()
			p.debounceFiles(p.deliverFiles)
		}
	}
}

// ApplySnapshot feeds the projector directly from an authoritative
// state snapshot, bypassing the debounce path. Used by the polling
// transport after a terminal fetch and when switching threads. Absent
// todos/files in a snapshot mean the thread has none, so nil is
// normalized to empty here: the snapshot always replaces both views,
// never leaves a previous thread's state on screen.
func (p *AuxProjector) ApplySnapshot(threadID string, state types.ThreadState) {
	todos := state.Todos
	if todos == nil {
		todos = []types.TodoItem{}
	}
	files := state.Files
	if files == nil {
		files = map[string]string{}
	}

	p.mu.Lock()
	p.threadID = threadID
	p.latestTodos = todos
	p.latestFiles = files
	p.mu.Unlock()
	p.deliverTodos()
	p.deliverFiles()
}

// Fallback returns the last advisory copy persisted for a thread.
// Clearly inferior to the authoritative snapshot, but better than
// empty state when the fetch fails.
func (p *AuxProjector) Fallback(threadID string) ([]types.TodoItem, map[string]string, bool) {
	if p.cache == nil {
		return nil, nil, false
	}

	var todos []types.TodoItem
	var files map[string]string
	found := false

	if raw, ok := p.cache.Get(todosKey(threadID)); ok {
		if err := json.Unmarshal(raw, &todos); err == nil {
			found = true
		}
	}
	if raw, ok := p.cache.Get(filesKey(threadID)); ok {
		if err := json.Unmarshal(raw, &files); err == nil {
			found = true
		}
	}
	return todos, files, found
}

// UseFallback loads the last advisory copy for a thread and delivers it
// through the registered callbacks. Returns false when no copy exists.
func (p *AuxProjector) UseFallback(threadID string) bool {
	todos, files, ok := p.Fallback(threadID)
	if !ok {
		return false
	}
	if todos != nil && p.onTodos != nil {
		p.onTodos(todos)
	}
	if files != nil && p.onFiles != nil {
		p.onFiles(files)
	}
	return true
}

func (p *AuxProjector) deliverTodos() {
	p.mu.Lock()
	todos := p.latestTodos
	threadID := p.threadID
	p.mu.Unlock()

	if todos == nil {
		return
	}
	if p.onTodos != nil {
		p.onTodos(todos)
	}
	p.persist(todosKey(threadID), todos)
}

func (p *AuxProjector) deliverFiles() {
	p.mu.Lock()
	files := p.latestFiles
	threadID := p.threadID
	p.mu.Unlock()

	if files == nil {
		return
	}
	if p.onFiles != nil {
		p.onFiles(files)
	}
	p.persist(filesKey(threadID), files)
}

// persist writes the advisory copy. Failures are swallowed: the cache
// is best-effort only.
func (p *AuxProjector) persist(key string, value any) {
	if p.cache == nil || key == "" {
		return
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return
	}
	if err := p.cache.Set(key, raw); err != nil {
		p.log.Warn("aux fallback persist failed", zap.String("key", key), zap.Error(err))
	}
}

func todosKey(threadID string) string {
	if threadID == "" {
		return ""
	}
	return "todos:" + threadID
}

func filesKey(threadID string) string {
	if threadID == "" {
		return ""
	}
	return "files:" + threadID
}
