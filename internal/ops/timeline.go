package ops

import (
	"time"

	"github.com/suwonj/timeofme/internal/backup"
	"github.com/suwonj/timeofme/internal/interval"
)

// Timeline defaults for intervals whose activity is missing or incomplete.
const (
	DefaultIcon         = "💡"
	DefaultColor        = "#ccc"
	UnknownActivityName = "Unknown"
)

// Pill positions.
const (
	PositionFirst = "first"
	PositionLast  = "last"
)

// TimelineEntry is one interval as drawn on the timeline.
type TimelineEntry struct {
	Start      int64   `json:"start"`
	End        int64   `json:"end"`
	Clock      string  `json:"clock"` // start time, e.g. "9:05 AM"
	ActivityID string  `json:"activity_id"`
	Name       string  `json:"name"`
	Icon       string  `json:"icon"`
	Color      string  `json:"color"`
	Duration   int64   `json:"duration"`
	Tracked    string  `json:"tracked"` // HMS of Duration
	Set        string  `json:"set"`     // HMS of the planned duration
	Short      bool    `json:"short"`   // drawn as a dot instead of a pill
	Position   string  `json:"position,omitempty"`
	HeightPx   float64 `json:"height_px"`
	ShowPath   bool    `json:"show_path"` // a connector follows this entry
}

// BuildTimeline decorates chronological intervals for display.
func BuildTimeline(intervals []interval.Interval, lookup map[string]backup.Activity, loc *time.Location) []TimelineEntry {
	if loc == nil {
		loc = time.Local
	}
	out := make([]TimelineEntry, 0, len(intervals))
	last := len(intervals) - 1

	for i, iv := range intervals {
		e := TimelineEntry{
			Start:      iv.Start,
			End:        iv.End,
			Clock:      iv.StartTime(loc).Format("3:04 PM"),
			ActivityID: iv.ActivityID,
			Duration:   iv.Duration,
			Tracked:    interval.FormatHMS(iv.Duration),
			Set:        interval.FormatHMS(iv.SettedDuration),
			Short:      iv.Duration < ShortIntervalSeconds,
			ShowPath:   i != last,
			Icon:       DefaultIcon,
			Color:      DefaultColor,
			Name:       UnknownActivityName,
		}

		if a, ok := lookup[iv.ActivityID]; ok {
			if a.Icon != "" {
				e.Icon = a.Icon
			}
			e.Color = a.ColorCSS(DefaultColor)
			if a.Name != "" {
				e.Name = a.Name
			}
		}
		if title := backup.CleanTitle(iv.Title); title != "" {
			e.Name = title
		}

		e.HeightPx = BaseEntryHeightPx
		if !e.Short {
			e.HeightPx += float64(iv.Duration) / 60 * HeightPxPerMinute
			switch i {
			case 0:
				e.Position = PositionFirst
			case last:
				e.Position = PositionLast
			}
		}
		out = append(out, e)
	}
	return out
}
