// Package interval turns backup state changes into timed intervals and
// aggregates them over calendar ranges.
package interval

import (
	"slices"
	"strings"
	"time"

	"github.com/suwonj/timeofme/internal/backup"
)

// Interval is the span between one state change and the next.
type Interval struct {
	Start          int64  `json:"start"`
	End            int64  `json:"end"`
	Duration       int64  `json:"duration"` // End - Start, always > 0
	SettedDuration int64  `json:"setted_duration"`
	Title          string `json:"title,omitempty"`
	ActivityID     string `json:"activity_id"`
}

// StartTime returns Start as a time.Time in loc.
func (iv Interval) StartTime(loc *time.Location) time.Time {
	return time.Unix(iv.Start, 0).In(loc)
}

// Reconstruct pairs each record with its chronological successor.
//
// records are newest-first as stored in a backup. The result is chronological
// and has at most len(records)-1 entries: pairs with a non-positive duration
// are dropped and the final record has no successor. records is not modified.
func Reconstruct(records []backup.Record) []Interval {
	out := make([]Interval, 0, max(len(records)-1, 0))
	if len(records) < 2 {
		return out
	}

	chrono := slices.Clone(records)
	slices.Reverse(chrono)

	for i := 0; i < len(chrono)-1; i++ {
		cur, next := chrono[i], chrono[i+1]
		duration := next.Timestamp - cur.Timestamp
		if duration <= 0 {
			continue
		}
		out = append(out, Interval{
			Start:          cur.Timestamp,
			End:            next.Timestamp,
			Duration:       duration,
			SettedDuration: cur.SettedDuration,
			Title:          cur.Title,
			ActivityID:     cur.ActivityID,
		})
	}
	return out
}

// FilterByRange keeps intervals whose start lies in [r.Start, r.End].
func FilterByRange(intervals []Interval, r Range) []Interval {
	out := make([]Interval, 0, len(intervals))
	for _, iv := range intervals {
		if r.Contains(time.Unix(iv.Start, 0)) {
			out = append(out, iv)
		}
	}
	return out
}

// AggregateByActivity sums durations per activity name.
// Intervals whose activity id is not in lookup are skipped.
func AggregateByActivity(intervals []Interval, lookup map[string]backup.Activity) map[string]int64 {
	totals := make(map[string]int64)
	for _, iv := range intervals {
		a, ok := lookup[iv.ActivityID]
		if !ok {
			continue
		}
		totals[a.Name] += iv.Duration
	}
	return totals
}

// ExcludeActivities drops intervals attributed to any of the named activities.
// Names match case-insensitively; intervals with unknown ids are kept.
func ExcludeActivities(intervals []Interval, lookup map[string]backup.Activity, names []string) []Interval {
	if len(names) == 0 {
		return intervals
	}
	skip := make(map[string]bool, len(names))
	for _, n := range names {
		skip[strings.ToLower(strings.TrimSpace(n))] = true
	}

	out := make([]Interval, 0, len(intervals))
	for _, iv := range intervals {
		if a, ok := lookup[iv.ActivityID]; ok && skip[strings.ToLower(a.Name)] {
			continue
		}
		out = append(out, iv)
	}
	return out
}

// Total sums interval durations in seconds.
func Total(intervals []Interval) int64 {
	var sum int64
	for _, iv := range intervals {
		sum += iv.Duration
	}
	return sum
}

// Slice is one activity's share of a total.
type Slice struct {
	Name    string `json:"name"`
	Seconds int64  `json:"seconds"`
}

// Sorted orders totals by seconds descending, then name.
func Sorted(totals map[string]int64) []Slice {
	out := make([]Slice, 0, len(totals))
	for name, secs := range totals {
		out = append(out, Slice{Name: name, Seconds: secs})
	}
	slices.SortFunc(out, func(a, b Slice) int {
		if a.Seconds != b.Seconds {
			if a.Seconds > b.Seconds {
				return -1
			}
			return 1
		}
		return strings.Compare(a.Name, b.Name)
	})
	return out
}
