package history

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"threadfu/internal/remote"
	"threadfu/internal/types"
)

type listOnlyService struct {
	records []remote.ThreadRecord
	err     error
	opts    remote.SearchOptions
}

func (s *listOnlyService) SearchThreads(_ context.Context, opts remote.SearchOptions) ([]remote.ThreadRecord, error) {
	s.opts = opts
	return s.records, s.err
}

func (s *listOnlyService) CreateRun(context.Context, string, remote.RunInput) (remote.RunInfo, error) {
	return remote.RunInfo{}, errors.New("not used")
}

func (s *listOnlyService) WaitRun(context.Context, remote.RunInput) (types.ThreadState, error) {
	return types.ThreadState{}, errors.New("not used")
}

func (s *listOnlyService) JoinRun(context.Context, string, string) error {
	return errors.New("not used")
}

func (s *listOnlyService) GetThreadState(context.Context, string) (types.ThreadState, error) {
	return types.ThreadState{}, errors.New("not used")
}

func recordWithFirstMessage(id, text string, updated time.Time) remote.ThreadRecord {
	return remote.ThreadRecord{
		ThreadID: id,
		Values: &types.ThreadState{Messages: []types.Message{
			{ID: "m1", Role: types.RoleHuman, Content: text},
		}},
		CreatedAt: updated,
		UpdatedAt: updated,
	}
}

func TestFetchRequestsNewestFirstAndDerivesTitles(t *testing.T) {
	now := time.Now()
	svc := &listOnlyService{records: []remote.ThreadRecord{
		recordWithFirstMessage("abc123def456", "Fix the login bug", now),
		{ThreadID: "empty678head", CreatedAt: now, UpdatedAt: now},
	}}
	ix := NewIndex(svc, 0, nil)

	summaries, err := ix.Fetch(context.Background())
	require.NoError(t, err)

	assert.Equal(t, DefaultPageSize, svc.opts.Limit)
	assert.Equal(t, "created_at", svc.opts.SortBy)
	assert.Equal(t, "desc", svc.opts.SortOrder)

	require.Len(t, summaries, 2)
	assert.Equal(t, "Fix the login bug", summaries[0].Title)
	assert.Equal(t, "Thread empty678", summaries[1].Title)
}

func TestFetchPropagatesListError(t *testing.T) {
	svc := &listOnlyService{err: errors.New("listing down")}
	ix := NewIndex(svc, 10, nil)

	_, err := ix.Fetch(context.Background())
	require.Error(t, err)
}

func TestDeriveTitleTruncatesLongFirstMessage(t *testing.T) {
	long := strings.Repeat("repetição ", 20)
	rec := recordWithFirstMessage("abc", long, time.Now())

	title := DeriveTitle(rec)
	assert.Equal(t, 50, len([]rune(title)))
	assert.True(t, strings.HasPrefix(long, title))
}

func TestDeriveTitleConcatenatesStructuredContent(t *testing.T) {
	rec := remote.ThreadRecord{
		ThreadID: "abc",
		Values: &types.ThreadState{Messages: []types.Message{
			{ID: "m1", Role: types.RoleHuman, Content: []any{
				map[string]any{"type": "text", "text": "Refactor "},
				map[string]any{"type": "tool_use", "id": "t1", "name": "bash", "input": map[string]any{}},
				map[string]any{"type": "text", "text": "the parser"},
			}},
		}},
	}

	assert.Equal(t, "Refactor the parser", DeriveTitle(rec))
}

func TestDeriveTitleFallsBackToIDPrefix(t *testing.T) {
	rec := remote.ThreadRecord{ThreadID: "0123456789abcdef"}
	assert.Equal(t, "Thread 01234567", DeriveTitle(rec))

	short := remote.ThreadRecord{ThreadID: "ab12"}
	assert.Equal(t, "Thread ab12", DeriveTitle(short))
}

func TestGroupPartitionsByWholeDayDifference(t *testing.T) {
	// Fixed late-evening clock: hour-of-day must not leak into grouping.
	now := time.Date(2026, 8, 28, 23, 30, 0, 0, time.UTC)
	at := func(daysAgo int, hour int) time.Time {
		return time.Date(2026, 8, 28-daysAgo, hour, 0, 0, 0, time.UTC)
	}

	threads := []types.ThreadSummary{
		{ID: "t0", UpdatedAt: at(0, 1)},  // early today, still today
		{ID: "t1", UpdatedAt: at(1, 23)}, // late yesterday, still yesterday
		{ID: "t3", UpdatedAt: at(3, 12)},
		{ID: "t6", UpdatedAt: at(6, 12)},
		{ID: "t7", UpdatedAt: at(7, 12)},
		{ID: "t30", UpdatedAt: at(30, 12)},
	}

	g := Group(threads, now)

	require.Len(t, g.Today, 1)
	assert.Equal(t, "t0", g.Today[0].ID)
	require.Len(t, g.Yesterday, 1)
	assert.Equal(t, "t1", g.Yesterday[0].ID)
	require.Len(t, g.ThisWeek, 2)
	assert.Equal(t, "t3", g.ThisWeek[0].ID)
	assert.Equal(t, "t6", g.ThisWeek[1].ID)
	require.Len(t, g.Older, 2)
	assert.Equal(t, "t7", g.Older[0].ID)
	assert.Equal(t, "t30", g.Older[1].ID)
}

func TestGroupPreservesInputOrderWithinBuckets(t *testing.T) {
	now := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	threads := []types.ThreadSummary{
		{ID: "a", UpdatedAt: now.Add(-1 * time.Hour)},
		{ID: "b", UpdatedAt: now.Add(-2 * time.Hour)},
		{ID: "c", UpdatedAt: now.Add(-3 * time.Hour)},
	}

	g := Group(threads, now)
	require.Len(t, g.Today, 3)
	assert.Equal(t, "a", g.Today[0].ID)
	assert.Equal(t, "b", g.Today[1].ID)
	assert.Equal(t, "c", g.Today[2].ID)
}

func TestGroupEmptyInput(t *testing.T) {
	g := Group(nil, time.Now())
	assert.Empty(t, g.Today)
	assert.Empty(t, g.Yesterday)
	assert.Empty(t, g.ThisWeek)
	assert.Empty(t, g.Older)
}
