package thread

import "sync"

// =============================================================================
// THREAD IDENTITY
// =============================================================================

// IdentityState is the lifecycle phase of the remote thread identifier.
type IdentityState int

const (
	// IdentityNone means no remote thread exists yet.
	IdentityNone IdentityState = iota
	// IdentityPending means a create is in flight.
	IdentityPending
	// IdentityAssigned means the remote thread id is known.
	IdentityAssigned
)

// String returns a human-readable name for the state.
func (s IdentityState) String() string {
	switch s {
	case IdentityPending:
		return "pending"
	case IdentityAssigned:
		return "assigned"
	default:
		return "none"
	}
}

// Identity tracks the thread identifier lifecycle:
//
//	none --create--> pending --assigned(id)--> assigned(id)
//	assigned(id) --new-conversation--> none
//
// Transitions are forward-only, with two exceptions: Reset returns to
// none on an explicit new conversation, and Resume jumps straight to
// assigned(id') when the user picks a different thread from history,
// bypassing pending.
type Identity struct {
	state    IdentityState
	threadID string
	mu       sync.RWMutex
}

// NewIdentity creates an identity in the none state.
func NewIdentity() *Identity {
	return &Identity{state: IdentityNone}
}

// State returns the current phase and thread id. The id is only
// meaningful when the state is IdentityAssigned.
func (id *Identity) State() (IdentityState, string) {
	id.mu.RLock()
	defer id.mu.RUnlock()
	return id.state, id.threadID
}

// ThreadID returns the assigned thread id, or "" when not assigned.
func (id *Identity) ThreadID() string {
	id.mu.RLock()
	defer id.mu.RUnlock()
	if id.state != IdentityAssigned {
		return ""
	}
	return id.threadID
}

// Begin marks a create as in flight. Only valid from none; an identity
// that is already pending or assigned is left untouched, so a create
// path is never re-entered.
func (id *Identity) Begin() bool {
	id.mu.Lock()
	defer id.mu.Unlock()
	if id.state != IdentityNone {
		return false
	}
	id.state = IdentityPending
	return true
}

// Assign records the thread id confirmed by the service. Valid from
// pending (normal creation) and from none (deployments where the first
// send skips the explicit pending mark). Assigning over an existing
// assignment is ignored.
func (id *Identity) Assign(threadID string) bool {
	id.mu.Lock()
	defer id.mu.Unlock()
	if id.state == IdentityAssigned || threadID == "" {
		return false
	}
	id.state = IdentityAssigned
	id.threadID = threadID
	return true
}

// Resume switches directly to assigned(threadID), bypassing pending.
// Used when the user selects a thread from history.
func (id *Identity) Resume(threadID string) {
	if threadID == "" {
		return
	}
	id.mu.Lock()
	defer id.mu.Unlock()
	id.state = IdentityAssigned
	id.threadID = threadID
}

// Reset returns to none on an explicit new conversation.
func (id *Identity) Reset() {
	id.mu.Lock()
	defer id.mu.Unlock()
	id.state = IdentityNone
	id.threadID = ""
}

// Fail aborts an in-flight create, returning a pending identity to
// none. Assigned identities are left unchanged.
func (id *Identity) Fail() {
	id.mu.Lock()
	defer id.mu.Unlock()
	if id.state == IdentityPending {
		id.state = IdentityNone
		id.threadID = ""
	}
}
