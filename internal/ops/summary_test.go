package ops

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSummary_Yesterday(t *testing.T) {
	env, _ := newTestEnv(t, newFakeSource())

	out, err := Summary(context.Background(), env, SummaryInput{})
	require.NoError(t, err)

	require.Equal(t, "2024-01-17.json", out.Backup)
	require.Equal(t, time.Unix(1705482000, 0).UTC(), out.CreatedAt)
	require.Equal(t, "2024-01-17", out.Day)
	require.Equal(t, 4, out.IntervalCount)
	require.Equal(t, int64(32400), out.TrackedSeconds)
	require.Equal(t, "09:00:00", out.Tracked)
	require.Len(t, out.Timeline, 4)

	require.Equal(t, 1, out.TasksDueCount)
	require.Equal(t, "Ship **v2**", out.TasksDue[0].Title)
	require.Len(t, out.Tasks, 3)
	require.Equal(t, "Tuple task", out.Tasks[2].Title)
	require.Equal(t, SourceRemote, out.ListingSource)
}

func TestSummary_ExplicitNow(t *testing.T) {
	env, _ := newTestEnv(t, newFakeSource())

	now := time.Date(2024, 1, 17, 10, 0, 0, 0, time.UTC)
	out, err := Summary(context.Background(), env, SummaryInput{Now: now})
	require.NoError(t, err)
	require.Equal(t, "2024-01-16", out.Day)
	require.Equal(t, 1, out.IntervalCount)
	require.Equal(t, "08:00:00", out.Tracked)
	require.Equal(t, 0, out.TasksDueCount)
	require.NotNil(t, out.TasksDue)
}

func TestSummary_NothingYesterday(t *testing.T) {
	env, _ := newTestEnv(t, newFakeSource())

	out, err := Summary(context.Background(), env, SummaryInput{Name: "2024-01-16.json"})
	require.NoError(t, err)
	require.Equal(t, 0, out.IntervalCount)
	require.Empty(t, out.Timeline)
	require.Empty(t, out.Tasks)
}

func TestToTaskItem(t *testing.T) {
	item := toTaskItem(backupTask("", "2024-01-17"))
	require.Equal(t, "Untitled Task", item.Title)

	item = toTaskItem(backupTask("#only #tags", ""))
	require.Equal(t, "Untitled Task", item.Title)
	require.Equal(t, "#only #tags", item.Raw)
}
