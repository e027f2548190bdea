package ops

import (
	"context"
	"time"

	"github.com/suwonj/timeofme/internal/backup"
	"github.com/suwonj/timeofme/internal/interval"
)

// SummaryInput contains parameters for the Summary operation.
type SummaryInput struct {
	Name    string    // optional, default: newest backup
	Path    string    // optional local backup file
	Now     time.Time // optional, default: env clock
	Refresh bool
}

// TaskItem is a task prepared for display.
type TaskItem struct {
	Title string `json:"title"` // tags removed
	Raw   string `json:"raw"`
	Date  string `json:"date,omitempty"`
	Due   string `json:"due,omitempty"`
}

// SummaryOutput is yesterday's activity as recorded in one backup.
type SummaryOutput struct {
	Backup         string          `json:"backup"`
	CreatedAt      time.Time       `json:"created_at"`
	Day            string          `json:"day"` // YYYY-MM-DD
	IntervalCount  int             `json:"interval_count"`
	TrackedSeconds int64           `json:"tracked_seconds"`
	Tracked        string          `json:"tracked"`
	TasksDueCount  int             `json:"tasks_due_count"`
	TasksDue       []TaskItem      `json:"tasks_due"`
	Tasks          []TaskItem      `json:"tasks"`
	Timeline       []TimelineEntry `json:"timeline"`
	ListingSource  string          `json:"listing_source,omitempty"`
}

// Summary reports what happened yesterday, relative to input.Now in the
// configured location.
func Summary(ctx context.Context, env *Env, input SummaryInput) (*SummaryOutput, error) {
	loaded, err := LoadBackup(ctx, env, LoadBackupInput{Name: input.Name, Path: input.Path, Refresh: input.Refresh})
	if err != nil {
		return nil, err
	}

	loc := env.location()
	now := input.Now
	if now.IsZero() {
		now = env.now()
	}
	yesterday := now.In(loc).AddDate(0, 0, -1)
	ymd := yesterday.Format(interval.DateLayout)

	snap := loaded.Snapshot
	var intervals []interval.Interval
	for _, iv := range interval.Reconstruct(snap.Records) {
		if interval.SameDay(iv.Start, yesterday) {
			intervals = append(intervals, iv)
		}
	}
	tracked := interval.Total(intervals)

	out := &SummaryOutput{
		Backup:         loaded.File.Name,
		CreatedAt:      snap.CreatedAt().In(loc),
		Day:            ymd,
		IntervalCount:  len(intervals),
		TrackedSeconds: tracked,
		Tracked:        interval.FormatHMS(tracked),
		TasksDue:       []TaskItem{},
		Tasks:          make([]TaskItem, 0, len(snap.Tasks)),
		Timeline:       BuildTimeline(intervals, snap.Lookup(), loc),
	}
	if loaded.Listing != nil {
		out.ListingSource = loaded.Listing.Source
	}

	for _, t := range snap.Tasks {
		item := toTaskItem(t)
		out.Tasks = append(out.Tasks, item)
		if t.DueOn(ymd) {
			out.TasksDue = append(out.TasksDue, item)
		}
	}
	out.TasksDueCount = len(out.TasksDue)
	return out, nil
}

func toTaskItem(t backup.Task) TaskItem {
	title := backup.CleanTitle(t.Title)
	if title == "" {
		title = backup.DefaultTaskTitle
	}
	return TaskItem{Title: title, Raw: t.Title, Date: t.Date, Due: t.Due}
}
