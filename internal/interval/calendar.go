package interval

import (
	"fmt"
	"strings"
	"time"

	"github.com/suwonj/timeofme/internal/errors"
)

// Granularity is the size of a calendar range.
type Granularity string

const (
	Day   Granularity = "day"
	Week  Granularity = "week"
	Month Granularity = "month"
)

// DateLayout is the YYYY-MM-DD form used for reference dates.
const DateLayout = "2006-01-02"

// lastMillisecond is 23:59:59.999 expressed as the nanosecond field.
const lastMillisecond = 999 * int(time.Millisecond)

// ParseGranularity accepts "day", "week" or "month"; empty means day.
func ParseGranularity(s string) (Granularity, error) {
	switch g := Granularity(strings.ToLower(strings.TrimSpace(s))); g {
	case "":
		return Day, nil
	case Day, Week, Month:
		return g, nil
	}
	return "", errors.NewInvalidRequest(fmt.Sprintf("range must be one of: day, week, month (got %q)", s))
}

// ParseDate parses a YYYY-MM-DD date at midnight in loc.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout, strings.TrimSpace(s), loc)
	if err != nil {
		return time.Time{}, errors.NewInvalidRequest(fmt.Sprintf("date must be YYYY-MM-DD (got %q)", s))
	}
	return t, nil
}

// Range is an inclusive pair of instants.
type Range struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Contains reports whether t lies in [Start, End].
func (r Range) Contains(t time.Time) bool {
	return !t.Before(r.Start) && !t.After(r.End)
}

// ComputeRange returns the calendar range of granularity g containing ref,
// using ref's location for wall-clock boundaries.
//
// Weeks run Monday through Sunday; a Sunday belongs to the week that began six
// days earlier. Months end on "day 0" of the following month.
func ComputeRange(ref time.Time, g Granularity) (Range, error) {
	loc := ref.Location()
	y, m, d := ref.Date()

	switch g {
	case Day:
		return Range{
			Start: time.Date(y, m, d, 0, 0, 0, 0, loc),
			End:   time.Date(y, m, d, 23, 59, 59, lastMillisecond, loc),
		}, nil
	case Week:
		offset := (int(ref.Weekday()) + 6) % 7 // Monday=0 ... Sunday=6
		return Range{
			Start: time.Date(y, m, d-offset, 0, 0, 0, 0, loc),
			End:   time.Date(y, m, d-offset+6, 23, 59, 59, lastMillisecond, loc),
		}, nil
	case Month:
		return Range{
			Start: time.Date(y, m, 1, 0, 0, 0, 0, loc),
			End:   time.Date(y, m+1, 0, 23, 59, 59, lastMillisecond, loc),
		}, nil
	}
	return Range{}, errors.NewInvalidRequest(fmt.Sprintf("unknown range granularity %q", g))
}

// Shift moves ref by n units of g. Month shifts clamp the day to the target
// month's length, so Jan 31 + 1 month is Feb 28/29.
func Shift(ref time.Time, g Granularity, n int) time.Time {
	switch g {
	case Week:
		return ref.AddDate(0, 0, 7*n)
	case Month:
		y, m, d := ref.Date()
		last := time.Date(y, m+time.Month(n)+1, 0, 0, 0, 0, 0, ref.Location()).Day()
		hh, mm, ss := ref.Clock()
		return time.Date(y, m+time.Month(n), min(d, last), hh, mm, ss, ref.Nanosecond(), ref.Location())
	default:
		return ref.AddDate(0, 0, n)
	}
}

// SameDay reports whether the Unix timestamp falls on day's calendar date in day's location.
func SameDay(unix int64, day time.Time) bool {
	t := time.Unix(unix, 0).In(day.Location())
	y1, m1, d1 := t.Date()
	y2, m2, d2 := day.Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}

// FormatHMS renders seconds as HH:MM:SS. Hours do not wrap at 24.
func FormatHMS(seconds int64) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%02d:%02d:%02d", seconds/3600, (seconds%3600)/60, seconds%60)
}
