// Package transport implements the two send/stop/load variants against
// the agent service: the polling variant (create-or-wait, then fetch
// full state) and the streaming variant (incremental event feed). Both
// expose the same contract to the rest of the client.
package transport

import (
	"context"

	"threadfu/internal/remote"
	"threadfu/internal/types"
)

// Adapter is the shared transport contract. A second Send while one is
// in flight is undefined behavior; the UI disables input while loading
// instead of the transport enforcing mutual exclusion.
type Adapter interface {
	// Send submits user text as a new run on the current thread,
	// creating the thread first when none exists.
	Send(ctx context.Context, text string) error
	// Stop requests cancellation of the in-flight run. Only the
	// streaming variant can actually cancel; the polling variant's
	// Stop is inert once its blocking call has been issued.
	Stop()
	// LoadThread fetches full state for an explicit id and replaces
	// the local views. It does not mutate the thread identity.
	LoadThread(ctx context.Context, threadID string) error
}

// Service is the slice of the remote client the adapters consume.
// Declared here so tests can substitute a fake service.
type Service interface {
	CreateRun(ctx context.Context, threadID string, input remote.RunInput) (remote.RunInfo, error)
	WaitRun(ctx context.Context, input remote.RunInput) (types.ThreadState, error)
	JoinRun(ctx context.Context, threadID, runID string) error
	GetThreadState(ctx context.Context, threadID string) (types.ThreadState, error)
	SearchThreads(ctx context.Context, opts remote.SearchOptions) ([]remote.ThreadRecord, error)
}

// EventSource is one incremental run feed, as produced by
// remote.Client.OpenStream.
type EventSource interface {
	Events() <-chan types.StreamEvent
	Cancel() error
	Close() error
}

// DialFunc opens an incremental run feed. An empty threadID asks the
// service to create the thread implicitly.
type DialFunc func(ctx context.Context, threadID string, input remote.RunInput) (EventSource, error)
