// Package projection derives render-ready views from thread state: the
// tool-call lifecycle projection over the message sequence, and the
// debounced todos/files projection over update events. Projections
// never mutate the message store.
package projection

import (
	"go.uber.org/zap"

	"threadfu/internal/types"
)

// =============================================================================
// TOOL CALL PROJECTION
// =============================================================================

// Entry is one rendered conversation turn: a message, the tool calls it
// triggered (ai messages only), and a grouping flag for the renderer.
type Entry struct {
	Message    types.Message
	ToolCalls  []types.ToolCallView
	ShowAvatar bool
}

// Projector computes the tool-call projection. It is a pure function of
// the message sequence: running it twice on the same input yields
// identical output, so it can be re-run on every store change.
type Projector struct {
	log *zap.Logger
}

// NewProjector creates a projector. Malformed tool shapes and orphaned
// results are logged at warn level and degrade gracefully; they never
// surface to the user or abort rendering.
func NewProjector(log *zap.Logger) *Projector {
	if log == nil {
		log = zap.NewNop()
	}
	return &Projector{log: log}
}

// Project walks the message sequence in order and produces the entry
// list. ai messages open pending tool-call views; tool messages join to
// the first matching pending view and complete it exactly once; human
// messages produce plain entries. Tool and system messages never
// produce entries of their own.
func (p *Projector) Project(messages []types.Message) []Entry {
	entries := make([]Entry, 0, len(messages))

	for _, msg := range messages {
		switch msg.Role {
		case types.RoleAI:
			calls := types.ExtractToolCalls(msg)
			views := make([]types.ToolCallView, 0, len(calls))
			for _, call := range calls {
				views = append(views, types.ToolCallView{
					ID:     call.ID,
					Name:   call.Name,
					Args:   call.Args,
					Status: types.ToolCallPending,
				})
			}
			entries = append(entries, Entry{Message: msg, ToolCalls: views})

		case types.RoleTool:
			if msg.ToolCallID == "" {
				p.log.Warn("tool message without tool_call_id", zap.String("id", msg.ID))
				continue
			}
			if !completeToolCall(entries, msg) {
				// Orphaned result: no ai message emitted this call id.
				// It stays in the store but is dropped from the projection.
				p.log.Warn("orphaned tool result",
					zap.String("id", msg.ID),
					zap.String("toolCallId", msg.ToolCallID))
			}

		case types.RoleHuman:
			entries = append(entries, Entry{Message: msg})
		}
	}

	// ShowAvatar marks the first entry of each same-role run.
	for i := range entries {
		entries[i].ShowAvatar = i == 0 || entries[i].Message.Role != entries[i-1].Message.Role
	}

	return entries
}

// completeToolCall scans entries in insertion order and completes the
// first pending view matching the tool message's call id. A view
// transitions to completed exactly once and never regresses.
func completeToolCall(entries []Entry, msg types.Message) bool {
	for i := range entries {
		for j := range entries[i].ToolCalls {
			view := &entries[i].ToolCalls[j]
			if view.ID != msg.ToolCallID || view.Status == types.ToolCallCompleted {
				continue
			}
			view.Status = types.ToolCallCompleted
			view.Result = msg.Text()
			return true
		}
	}
	return false
}
