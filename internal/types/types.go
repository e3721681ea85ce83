// Package types provides shared type definitions for threadfu.
// These types mirror the remote agent service's wire format and are
// used across the remote, thread, projection, and transport packages.
package types

import "time"

// =============================================================================
// MESSAGE TYPES
// =============================================================================

// Message roles as they appear on the wire.
const (
	RoleHuman  = "human"
	RoleAI     = "ai"
	RoleTool   = "tool"
	RoleSystem = "system"
)

// Message represents a single conversation message inside a thread.
// Content is either a plain string or an array of content blocks; the
// remote service emits both shapes, so it is kept as `any` and decoded
// through the extraction helpers.
type Message struct {
	ID         string     `json:"id"`
	Role       string     `json:"type"` // human, ai, tool, system
	Content    any        `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`   // structured tool calls on ai messages
	ToolCallID string     `json:"tool_call_id,omitempty"` // set on tool result messages

	// Provider-specific payload. Some deployments tuck tool calls in
	// here instead of the structured list.
	AdditionalKwargs map[string]any `json:"additional_kwargs,omitempty"`
}

// ToolCall is a structured tool invocation requested by an ai message.
type ToolCall struct {
	ID   string         `json:"id"`
	Name string         `json:"name"`
	Args map[string]any `json:"args"`
}

// Tool call view statuses.
const (
	ToolCallPending   = "pending"
	ToolCallCompleted = "completed"
)

// ToolCallView is the render-ready projection of a tool call joined to
// its result. Derived, never stored.
type ToolCallView struct {
	ID     string         `json:"id"`
	Name   string         `json:"name"`
	Args   map[string]any `json:"args"`
	Status string         `json:"status"` // pending, completed
	Result string         `json:"result,omitempty"`
}

// =============================================================================
// THREAD STATE
// =============================================================================

// Todo item statuses.
const (
	TodoPending    = "pending"
	TodoInProgress = "in_progress"
	TodoCompleted  = "completed"
)

// TodoItem is a single entry of the agent-maintained task list.
type TodoItem struct {
	ID      string `json:"id"`
	Content string `json:"content"`
	Status  string `json:"status"` // pending, in_progress, completed
}

// ThreadState is the authoritative remote state document for a thread.
// The client never computes it independently, only merges or replaces
// local views from it.
type ThreadState struct {
	Messages []Message         `json:"messages"`
	Todos    []TodoItem        `json:"todos,omitempty"`
	Files    map[string]string `json:"files,omitempty"`
}

// ThreadSummary is a read-only listing entry for the history index.
// Computed from a batch fetch; never persisted beyond the listing.
type ThreadSummary struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
