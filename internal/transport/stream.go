package transport

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"threadfu/internal/projection"
	"threadfu/internal/remote"
	"threadfu/internal/thread"
	"threadfu/internal/types"
)

// =============================================================================
// STREAMING VARIANT
// =============================================================================

// StreamAdapter maintains an incremental run feed scoped to the current
// thread identity. Partial node updates are routed to the aux
// projector; message frames keep the store current through the upsert
// merge; the first metadata frame flips a pending identity to assigned.
type StreamAdapter struct {
	dial           DialFunc
	svc            Service
	store          *thread.MessageStore
	identity       *thread.Identity
	aux            *projection.AuxProjector
	recursionLimit int
	log            *zap.Logger

	onDone func(error) // completion callback, invoked once per run

	mu     sync.Mutex
	gen    int // run generation; bumped by Stop to suppress stale deliveries
	active EventSource
}

// NewStreamAdapter wires the streaming transport. svc is used only by
// LoadThread; the run path goes through dial.
func NewStreamAdapter(dial DialFunc, svc Service, store *thread.MessageStore, identity *thread.Identity, aux *projection.AuxProjector, recursionLimit int, log *zap.Logger) *StreamAdapter {
	if log == nil {
		log = zap.NewNop()
	}
	return &StreamAdapter{
		dial:           dial,
		svc:            svc,
		store:          store,
		identity:       identity,
		aux:            aux,
		recursionLimit: recursionLimit,
		log:            log,
	}
}

// OnDone registers the run-completion callback. It receives nil on a
// clean end and the remote error otherwise.
func (a *StreamAdapter) OnDone(fn func(error)) { a.onDone = fn }

// Send appends an optimistic human message and submits the run over a
// fresh feed. A dial failure surfaces to the caller with the store left
// as-is; rollback policy at this layer belongs to the UI.
func (a *StreamAdapter) Send(ctx context.Context, text string) error {
	msg := types.Message{
		ID:      uuid.NewString(),
		Role:    types.RoleHuman,
		Content: text,
	}
	a.store.AppendOptimistic(msg)

	threadID := a.identity.ThreadID()
	if threadID == "" {
		a.identity.Begin()
	}

	src, err := a.dial(ctx, threadID, remote.RunInput{
		Messages:       []types.Message{msg},
		RecursionLimit: a.recursionLimit,
	})
	if err != nil {
		a.identity.Fail()
		return err
	}

	a.mu.Lock()
	a.active = src
	gen := a.gen
	a.mu.Unlock()

	go a.consume(src, gen)
	return nil
}

// Stop cancels the in-flight run. Updates still in flight for that run
// are ignored: the generation bump makes the consumer discard them.
func (a *StreamAdapter) Stop() {
	a.mu.Lock()
	src := a.active
	a.active = nil
	a.gen++
	a.mu.Unlock()

	if src != nil {
		_ = src.Cancel()
		_ = src.Close()
	}
}

// LoadThread fetches full state for an explicit id and replaces the
// local views. Identity is not mutated.
func (a *StreamAdapter) LoadThread(ctx context.Context, threadID string) error {
	state, err := a.svc.GetThreadState(ctx, threadID)
	if err != nil {
		a.aux.UseFallback(threadID)
		return err
	}
	a.store.ReplaceAll(state.Messages)
	a.aux.ApplySnapshot(threadID, state)
	return nil
}

// consume drains one run's feed, applying events unless the run has
// been superseded by Stop.
func (a *StreamAdapter) consume(src EventSource, gen int) {
	var runErr error

	for event := range src.Events() {
		if a.stale(gen) {
			continue // drain without applying
		}

		switch event.EventType {
		case types.StreamEventMetadata:
			if a.identity.Assign(event.Metadata.ThreadID) {
				a.log.Info("thread assigned", zap.String("threadId", event.Metadata.ThreadID))
			}
			a.aux.SetThread(event.Metadata.ThreadID)

		case types.StreamEventUpdates:
			for _, partial := range event.Updates {
				for _, msg := range partial.Messages {
					a.store.Upsert(msg)
				}
			}
			a.aux.HandleUpdates(event.Updates)

		case types.StreamEventMessage:
			a.store.Upsert(*event.Message)

		case types.StreamEventValues:
			a.store.ReplaceAll(event.Values.Messages)
			a.aux.ApplySnapshot(a.identity.ThreadID(), *event.Values)

		case types.StreamEventError:
			runErr = errors.New(event.Error.Message)
		}
	}

	if a.stale(gen) {
		return
	}

	a.mu.Lock()
	a.active = nil
	a.mu.Unlock()

	if a.onDone != nil {
		a.onDone(runErr)
	}
}

func (a *StreamAdapter) stale(gen int) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return gen != a.gen
}
