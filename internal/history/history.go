// Package history lists previously created threads and groups them by
// recency for the thread picker.
package history

import (
	"context"
	"time"

	"go.uber.org/zap"

	"threadfu/internal/remote"
	"threadfu/internal/transport"
	"threadfu/internal/types"
)

// DefaultPageSize is how many recent threads a fetch requests.
const DefaultPageSize = 30

// maxTitleLen bounds the derived display title.
const maxTitleLen = 50

// Index fetches and summarizes recent threads. Summaries are computed
// read-only from the batch fetch and never persisted.
type Index struct {
	svc      transport.Service
	pageSize int
	log      *zap.Logger
}

// NewIndex creates a history index. pageSize <= 0 uses DefaultPageSize.
func NewIndex(svc transport.Service, pageSize int, log *zap.Logger) *Index {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Index{svc: svc, pageSize: pageSize, log: log}
}

// Fetch requests the most recently created threads, newest first, and
// derives a display title for each.
func (ix *Index) Fetch(ctx context.Context) ([]types.ThreadSummary, error) {
	records, err := ix.svc.SearchThreads(ctx, remote.SearchOptions{
		Limit:     ix.pageSize,
		SortBy:    "created_at",
		SortOrder: "desc",
	})
	if err != nil {
		return nil, err
	}

	summaries := make([]types.ThreadSummary, 0, len(records))
	for _, rec := range records {
		summaries = append(summaries, types.ThreadSummary{
			ID:        rec.ThreadID,
			Title:     DeriveTitle(rec),
			CreatedAt: rec.CreatedAt,
			UpdatedAt: rec.UpdatedAt,
		})
	}
	return summaries, nil
}

// DeriveTitle builds a display title from a thread's first message:
// string content is truncated to 50 characters, structured content
// concatenates its text-bearing segments first, and a thread with no
// messages falls back to a short id-prefix label.
func DeriveTitle(rec remote.ThreadRecord) string {
	if rec.Values != nil && len(rec.Values.Messages) > 0 {
		if text := rec.Values.Messages[0].Text(); text != "" {
			return truncate(text, maxTitleLen)
		}
	}
	return "Thread " + idPrefix(rec.ThreadID)
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

func idPrefix(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}

// =============================================================================
// RECENCY GROUPING
// =============================================================================

// Groups partitions summaries by recency of their last update.
type Groups struct {
	Today     []types.ThreadSummary
	Yesterday []types.ThreadSummary
	ThisWeek  []types.ThreadSummary
	Older     []types.ThreadSummary
}

// Group partitions threads by the whole-day difference between now and
// each thread's UpdatedAt: day 0 is today, day 1 yesterday, days 2-6
// this week, and 7 or more older. Pure function, no network access.
func Group(threads []types.ThreadSummary, now time.Time) Groups {
	var g Groups
	today := startOfDay(now)

	for _, t := range threads {
		days := int(today.Sub(startOfDay(t.UpdatedAt)).Hours() / 24)
		switch {
		case days <= 0:
			g.Today = append(g.Today, t)
		case days == 1:
			g.Yesterday = append(g.Yesterday, t)
		case days < 7:
			g.ThisWeek = append(g.ThisWeek, t)
		default:
			g.Older = append(g.Older, t)
		}
	}
	return g
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
