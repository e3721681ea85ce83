// Package remote implements the client for the agent-execution
// service: the thread/run HTTP API plus the incremental WebSocket
// event feed.
package remote

import (
	"errors"
	"fmt"
)

// ErrNoThread is returned when a plain create-run is attempted without
// a thread id. The service rejects a null identifier on this call with
// an invalid-identifier error, so the client refuses to issue it; the
// wait-style call is the only valid creation path for the poll flow.
var ErrNoThread = errors.New("create-run requires a thread id; use WaitRun to create a thread")

// TransportError wraps a network or remote failure during one of the
// service operations. It surfaces to the caller as a user-visible
// message and triggers optimistic-message rollback upstream.
type TransportError struct {
	Op     string // create, wait, join, state, search, stream
	Status int    // HTTP status, 0 when the request never completed
	Err    error
}

func (e *TransportError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("remote %s failed (status %d): %v", e.Op, e.Status, e.Err)
	}
	return fmt.Sprintf("remote %s failed: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
