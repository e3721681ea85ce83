// Package thread manages client-side thread state: the ordered message
// sequence and the thread identity lifecycle. It is the single source
// of truth for what the UI renders between remote round-trips.
package thread

import (
	"sync"

	"threadfu/internal/types"
)

// =============================================================================
// MESSAGE STORE
// =============================================================================

// MessageStore holds the ordered, deduplicated message sequence for the
// current thread. Ordering is append-only from the client's perspective
// except for full-snapshot replacement. The store never rolls back an
// optimistic entry on its own; callers remove it explicitly when the
// remote call that motivated it fails.
type MessageStore struct {
	messages []types.Message
	index    map[string]int // message id -> position in messages
	mu       sync.RWMutex
}

// NewMessageStore creates an empty message store.
func NewMessageStore() *MessageStore {
	return &MessageStore{
		messages: make([]types.Message, 0),
		index:    make(map[string]int),
	}
}

// AppendOptimistic inserts a message immediately, before remote
// confirmation. A message whose id is already present is ignored.
func (s *MessageStore) AppendOptimistic(msg types.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.index[msg.ID]; exists {
		return
	}
	s.index[msg.ID] = len(s.messages)
	s.messages = append(s.messages, msg)
}

// Upsert appends a message or replaces an existing one in place by id.
// Used by the streaming merge, where partial message frames for the
// same id supersede each other.
func (s *MessageStore) Upsert(msg types.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if pos, exists := s.index[msg.ID]; exists {
		s.messages[pos] = msg
		return
	}
	s.index[msg.ID] = len(s.messages)
	s.messages = append(s.messages, msg)
}

// ReplaceAll swaps the whole sequence for the snapshot's messages.
// Last-writer-wins: the snapshot is authoritative, and once the remote
// round-trip completes it already contains the just-sent message. The
// swap is atomic from the caller's point of view. Duplicate ids within
// the snapshot keep the first occurrence.
func (s *MessageStore) ReplaceAll(msgs []types.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.messages = make([]types.Message, 0, len(msgs))
	s.index = make(map[string]int, len(msgs))
	for _, msg := range msgs {
		if _, exists := s.index[msg.ID]; exists {
			continue
		}
		s.index[msg.ID] = len(s.messages)
		s.messages = append(s.messages, msg)
	}
}

// Remove deletes a message by id. This is the rollback path for
// optimistic entries whose remote call failed. Returns true if the
// message was present.
func (s *MessageStore) Remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	pos, exists := s.index[id]
	if !exists {
		return false
	}
	s.messages = append(s.messages[:pos], s.messages[pos+1:]...)
	delete(s.index, id)
	for i := pos; i < len(s.messages); i++ {
		s.index[s.messages[i].ID] = i
	}
	return true
}

// Clear empties the sequence. Used when identity resets to none.
func (s *MessageStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = make([]types.Message, 0)
	s.index = make(map[string]int)
}

// Messages returns the current sequence.
func (s *MessageStore) Messages() []types.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	// Return a copy to prevent external mutation
	result := make([]types.Message, len(s.messages))
	copy(result, s.messages)
	return result
}

// Len returns the number of messages in the store.
func (s *MessageStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.messages)
}

// Contains reports whether a message with the given id is present.
func (s *MessageStore) Contains(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, exists := s.index[id]
	return exists
}
