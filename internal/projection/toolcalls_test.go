package projection

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"threadfu/internal/types"
)

func aiWithCall(id, callID, name string) types.Message {
	return types.Message{
		ID:        id,
		Role:      types.RoleAI,
		Content:   "working on it",
		ToolCalls: []types.ToolCall{{ID: callID, Name: name, Args: map[string]any{}}},
	}
}

func toolResult(id, callID, text string) types.Message {
	return types.Message{
		ID:         id,
		Role:       types.RoleTool,
		Content:    text,
		ToolCallID: callID,
	}
}

func TestProjectPendingToCompleted(t *testing.T) {
	p := NewProjector(nil)
	messages := []types.Message{
		{ID: "m1", Role: types.RoleHuman, Content: "do the thing"},
		aiWithCall("m2", "t1", "search"),
		toolResult("m3", "t1", "found it"),
	}

	entries := p.Project(messages)
	require.Len(t, entries, 2)

	require.Len(t, entries[1].ToolCalls, 1)
	call := entries[1].ToolCalls[0]
	assert.Equal(t, types.ToolCallCompleted, call.Status)
	assert.Equal(t, "found it", call.Result)
}

func TestProjectPendingWithoutResult(t *testing.T) {
	p := NewProjector(nil)
	entries := p.Project([]types.Message{aiWithCall("m1", "t1", "search")})

	require.Len(t, entries, 1)
	require.Len(t, entries[0].ToolCalls, 1)
	assert.Equal(t, types.ToolCallPending, entries[0].ToolCalls[0].Status)
	assert.Empty(t, entries[0].ToolCalls[0].Result)
}

func TestProjectIsDeterministic(t *testing.T) {
	p := NewProjector(nil)
	messages := []types.Message{
		{ID: "m1", Role: types.RoleHuman, Content: "hi"},
		aiWithCall("m2", "t1", "search"),
		toolResult("m3", "t1", "ok"),
		{ID: "m4", Role: types.RoleAI, Content: "done"},
	}

	first := p.Project(messages)
	second := p.Project(messages)
	assert.Equal(t, first, second)
}

func TestProjectOrphanedToolResultIsInert(t *testing.T) {
	p := NewProjector(nil)
	messages := []types.Message{
		aiWithCall("m1", "t1", "search"),
	}
	withOrphan := append(messages, toolResult("m2", "missing", "nobody asked"))

	baseline := p.Project(messages)
	projected := p.Project(withOrphan)

	// The orphan changes nothing: no crash, no spurious entry, no
	// status transition.
	assert.Equal(t, baseline, projected)
}

func TestProjectToolMessageWithoutCallID(t *testing.T) {
	p := NewProjector(nil)
	entries := p.Project([]types.Message{
		aiWithCall("m1", "t1", "search"),
		{ID: "m2", Role: types.RoleTool, Content: "stray"},
	})

	require.Len(t, entries, 1)
	assert.Equal(t, types.ToolCallPending, entries[0].ToolCalls[0].Status)
}

func TestProjectCompletesFirstMatchOnly(t *testing.T) {
	p := NewProjector(nil)
	// Two ai turns reusing the same call id; the first pending match wins.
	entries := p.Project([]types.Message{
		aiWithCall("m1", "t1", "search"),
		aiWithCall("m2", "t1", "search"),
		toolResult("m3", "t1", "first result"),
	})

	require.Len(t, entries, 2)
	assert.Equal(t, types.ToolCallCompleted, entries[0].ToolCalls[0].Status)
	assert.Equal(t, "first result", entries[0].ToolCalls[0].Result)
	assert.Equal(t, types.ToolCallPending, entries[1].ToolCalls[0].Status)
}

func TestProjectCompletedNeverRegresses(t *testing.T) {
	p := NewProjector(nil)
	entries := p.Project([]types.Message{
		aiWithCall("m1", "t1", "search"),
		toolResult("m2", "t1", "first"),
		toolResult("m3", "t1", "second"),
	})

	require.Len(t, entries, 1)
	assert.Equal(t, "first", entries[0].ToolCalls[0].Result)
}

func TestProjectShowAvatarOnRoleChange(t *testing.T) {
	p := NewProjector(nil)
	entries := p.Project([]types.Message{
		{ID: "m1", Role: types.RoleHuman, Content: "one"},
		{ID: "m2", Role: types.RoleHuman, Content: "two"},
		{ID: "m3", Role: types.RoleAI, Content: "reply"},
		{ID: "m4", Role: types.RoleHuman, Content: "three"},
	})

	require.Len(t, entries, 4)
	assert.True(t, entries[0].ShowAvatar)
	assert.False(t, entries[1].ShowAvatar)
	assert.True(t, entries[2].ShowAvatar)
	assert.True(t, entries[3].ShowAvatar)
}

func TestProjectSystemMessagesSkipped(t *testing.T) {
	p := NewProjector(nil)
	entries := p.Project([]types.Message{
		{ID: "m1", Role: types.RoleSystem, Content: "prompt"},
		{ID: "m2", Role: types.RoleHuman, Content: "hi"},
	})

	require.Len(t, entries, 1)
	assert.Equal(t, "m2", entries[0].Message.ID)
}

func TestProjectToolResultWithBlockContent(t *testing.T) {
	p := NewProjector(nil)
	result := types.Message{
		ID:         "m2",
		Role:       types.RoleTool,
		ToolCallID: "t1",
		Content: []any{
			map[string]any{"type": "text", "text": "structured "},
			map[string]any{"type": "text", "text": "result"},
		},
	}

	entries := p.Project([]types.Message{aiWithCall("m1", "t1", "search"), result})
	require.Len(t, entries, 1)
	assert.Equal(t, "structured result", entries[0].ToolCalls[0].Result)
}
