package ops

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/suwonj/timeofme/internal/backup"
	"github.com/suwonj/timeofme/internal/errors"
	"github.com/suwonj/timeofme/internal/interval"
	"github.com/suwonj/timeofme/internal/metrics"
)

// Chart kinds.
const (
	ChartBar = "bar"
	ChartPie = "pie"
)

// ReportInput contains parameters for the Report operation.
type ReportInput struct {
	Name          string `json:"backup,omitempty"` // optional, default: newest backup
	Path          string `json:"-"`                // optional local backup file
	Date          string `json:"date,omitempty"`   // YYYY-MM-DD, default: today
	Range         string `json:"range,omitempty"`  // day, week or month; default: day
	Chart         string `json:"chart,omitempty"`  // bar or pie; default: bar
	ExcludeCommon bool   `json:"exclude_common,omitempty"`
	Refresh       bool   `json:"-"`
}

// ChartSlice is one activity's share of the report total.
type ChartSlice struct {
	Name    string  `json:"name"`
	Color   string  `json:"color"`
	Icon    string  `json:"icon"`
	Seconds int64   `json:"seconds"`
	Percent float64 `json:"percent"`
	HMS     string  `json:"hms"`
}

// ReportOutput is the aggregated activity of one calendar range.
type ReportOutput struct {
	Backup         string               `json:"backup"`
	CreatedAt      time.Time            `json:"created_at"`
	Date           string               `json:"date"`
	Range          interval.Granularity `json:"range"`
	Chart          string               `json:"chart"`
	ExcludeCommon  bool                 `json:"exclude_common"`
	Start          time.Time            `json:"start"`
	End            time.Time            `json:"end"`
	Prev           string               `json:"prev"`
	Next           string               `json:"next"`
	Slices         []ChartSlice         `json:"slices"`
	TotalSeconds   int64                `json:"total_seconds"`
	Total          string               `json:"total"`
	IntervalCount  int                  `json:"interval_count"`
	Empty          bool                 `json:"empty"`
	Timeline       []TimelineEntry      `json:"timeline"`
	Tasks          []TaskItem           `json:"tasks"`
	ListingSource  string               `json:"listing_source,omitempty"`
	SnapshotCached bool                 `json:"snapshot_cached"`
}

// ParseChart accepts "bar" or "pie"; empty means bar.
func ParseChart(s string) (string, error) {
	switch c := strings.ToLower(strings.TrimSpace(s)); c {
	case "":
		return ChartBar, nil
	case ChartBar, ChartPie:
		return c, nil
	}
	return "", errors.NewInvalidRequest(fmt.Sprintf("chart must be bar or pie (got %q)", s))
}

// Report aggregates a backup's intervals over the calendar range containing
// input.Date. An empty range is reported through Empty, never as an error.
func Report(ctx context.Context, env *Env, input ReportInput) (*ReportOutput, error) {
	// Validate before touching the network
	g, err := interval.ParseGranularity(input.Range)
	if err != nil {
		return nil, err
	}
	chart, err := ParseChart(input.Chart)
	if err != nil {
		return nil, err
	}
	loc := env.location()
	ref := env.now().In(loc)
	if input.Date != "" {
		if ref, err = interval.ParseDate(input.Date, loc); err != nil {
			return nil, err
		}
	}
	r, err := interval.ComputeRange(ref, g)
	if err != nil {
		return nil, err
	}

	loaded, err := LoadBackup(ctx, env, LoadBackupInput{Name: input.Name, Path: input.Path, Refresh: input.Refresh})
	if err != nil {
		return nil, err
	}
	snap := loaded.Snapshot
	lookup := snap.Lookup()

	intervals := interval.FilterByRange(interval.Reconstruct(snap.Records), r)
	if input.ExcludeCommon {
		intervals = interval.ExcludeActivities(intervals, lookup, env.cfg().CommonActivities)
	}
	metrics.ObserveReport(len(intervals))

	totals := interval.AggregateByActivity(intervals, lookup)
	parts := buildSlices(interval.Sorted(totals), snap.Activities)
	var total int64
	for _, s := range parts {
		total += s.Seconds
	}

	out := &ReportOutput{
		Backup:         loaded.File.Name,
		CreatedAt:      snap.CreatedAt().In(loc),
		Date:           ref.Format(interval.DateLayout),
		Range:          g,
		Chart:          chart,
		ExcludeCommon:  input.ExcludeCommon,
		Start:          r.Start,
		End:            r.End,
		Prev:           interval.Shift(ref, g, -1).Format(interval.DateLayout),
		Next:           interval.Shift(ref, g, 1).Format(interval.DateLayout),
		Slices:         parts,
		TotalSeconds:   total,
		Total:          interval.FormatHMS(total),
		IntervalCount:  len(intervals),
		Empty:          len(intervals) == 0,
		Timeline:       BuildTimeline(intervals, lookup, loc),
		Tasks:          make([]TaskItem, 0, len(snap.Tasks)),
		SnapshotCached: loaded.FromCache,
	}
	if loaded.Listing != nil {
		out.ListingSource = loaded.Listing.Source
	}
	for _, t := range snap.Tasks {
		out.Tasks = append(out.Tasks, toTaskItem(t))
	}
	return out, nil
}

// buildSlices attaches color, icon and share to sorted totals.
// Activities sharing a name take the style of the first one in file order.
func buildSlices(sorted []interval.Slice, activities []backup.Activity) []ChartSlice {
	byName := make(map[string]backup.Activity, len(activities))
	for _, a := range activities {
		if _, ok := byName[a.Name]; !ok {
			byName[a.Name] = a
		}
	}

	var total int64
	for _, s := range sorted {
		total += s.Seconds
	}

	out := make([]ChartSlice, 0, len(sorted))
	for _, s := range sorted {
		a := byName[s.Name]
		icon := a.Icon
		if icon == "" {
			icon = DefaultIcon
		}
		var pct float64
		if total > 0 {
			pct = float64(s.Seconds) * 100 / float64(total)
		}
		out = append(out, ChartSlice{
			Name:    s.Name,
			Color:   a.ColorCSS(DefaultColor),
			Icon:    icon,
			Seconds: s.Seconds,
			Percent: pct,
			HMS:     interval.FormatHMS(s.Seconds),
		})
	}
	return out
}
