package tui

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"threadfu/internal/history"
	"threadfu/internal/types"
)

func TestHistoryViewKeepsIDOnSelectedRow(t *testing.T) {
	now := time.Now()
	threads := []types.ThreadSummary{
		{ID: "abc123def456", Title: "Fix the login bug", UpdatedAt: now},
		{ID: "789xyz000111", Title: "Write docs", UpdatedAt: now},
	}
	m := &Model{
		groups:    history.Group(threads, now),
		threads:   threads,
		selection: 0,
	}

	view := m.historyView()

	// Both rows show their short id, the selected one included.
	assert.Contains(t, view, "> Fix the login bug")
	assert.Contains(t, view, "abc123de")
	assert.Contains(t, view, "789xyz00")
}

func TestHistoryViewEmpty(t *testing.T) {
	m := &Model{}
	view := m.historyView()
	assert.Contains(t, view, "no threads yet")
}
