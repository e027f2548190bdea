package backup

import (
	"time"
)

// Snapshot is one decoded backup file.
type Snapshot struct {
	// Time is the Unix timestamp at which the backup was written
	Time int64

	// Activities is the activity table, in file order
	Activities []Activity

	// Records are the state changes, newest first as stored in the file
	Records []Record

	// Tasks are the open tasks at backup time
	Tasks []Task
}

// Activity is a named, colored category that intervals are attributed to.
type Activity struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"` // "r,g,b,a" as stored by the app
	Icon  string `json:"icon"`
}

// Record is a single state change: from Timestamp on, the user was doing ActivityID.
type Record struct {
	Timestamp      int64
	SettedDuration int64
	Title          string
	ActivityID     string
}

// Task is an open to-do item.
type Task struct {
	Title string `json:"title"`
	Date  string `json:"date,omitempty"`
	Due   string `json:"due,omitempty"`
}

// DefaultTaskTitle is used for tasks stored without a title.
const DefaultTaskTitle = "Untitled Task"

// CreatedAt returns the backup time.
func (s *Snapshot) CreatedAt() time.Time {
	return time.Unix(s.Time, 0)
}

// Lookup indexes activities by id. Later duplicates win.
func (s *Snapshot) Lookup() map[string]Activity {
	m := make(map[string]Activity, len(s.Activities))
	for _, a := range s.Activities {
		m[a.ID] = a
	}
	return m
}

// DueOn reports whether the task is dated on ymd (YYYY-MM-DD).
// The date field takes precedence over due.
func (t Task) DueOn(ymd string) bool {
	if ymd == "" {
		return false
	}
	if t.Date != "" {
		return len(t.Date) >= len(ymd) && t.Date[:len(ymd)] == ymd
	}
	if t.Due != "" {
		return len(t.Due) >= len(ymd) && t.Due[:len(ymd)] == ymd
	}
	return false
}

// ColorCSS returns a CSS color for the activity, or fallback when none is stored.
func (a Activity) ColorCSS(fallback string) string {
	if a.Color == "" {
		return fallback
	}
	return "rgba(" + a.Color + ")"
}
