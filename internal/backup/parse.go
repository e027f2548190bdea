package backup

import (
	"bytes"
	"encoding/json"
	"strconv"

	"github.com/buger/jsonparser"
	"github.com/spf13/cast"

	"github.com/suwonj/timeofme/internal/errors"
)

// Positions inside the activity tuple [id, name, ?, ?, ?, color, icon].
const (
	activityIDIdx    = 0
	activityNameIdx  = 1
	activityColorIdx = 5
	activityIconIdx  = 6
)

// Positions inside the interval tuple [timestamp, settedDuration, title, activityId].
const (
	recordTimeIdx     = 0
	recordSettedIdx   = 1
	recordTitleIdx    = 2
	recordActivityIdx = 3
)

// taskTitleIdx is the title position when a task is stored as a tuple.
const taskTitleIdx = 1

// element is one raw JSON value inside a tuple.
type element struct {
	value []byte
	typ   jsonparser.ValueType
}

// tuple is a positional JSON array. Missing positions read as zero values.
type tuple []element

func (t tuple) at(i int) element {
	if i < 0 || i >= len(t) {
		return element{typ: jsonparser.NotExist}
	}
	return t[i]
}

// Parse decodes a backup file.
//
// Only a payload that is not a JSON object is an error. Missing or mistyped
// sections decode as empty, and unreadable tuple positions take zero values.
func Parse(data []byte) (*Snapshot, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' || !json.Valid(trimmed) {
		return nil, errors.NewInvalidRequest("backup is not a JSON object")
	}

	snap := &Snapshot{
		Activities: []Activity{},
		Records:    []Record{},
		Tasks:      []Task{},
	}

	if v, typ, _, err := jsonparser.Get(trimmed, "time"); err == nil {
		snap.Time = toInt64(element{value: v, typ: typ})
	}

	eachTuple(trimmed, "activities", func(t tuple) {
		snap.Activities = append(snap.Activities, Activity{
			ID:    toID(t.at(activityIDIdx)),
			Name:  toString(t.at(activityNameIdx)),
			Color: toString(t.at(activityColorIdx)),
			Icon:  toString(t.at(activityIconIdx)),
		})
	})

	eachTuple(trimmed, "intervals", func(t tuple) {
		snap.Records = append(snap.Records, Record{
			Timestamp:      toInt64(t.at(recordTimeIdx)),
			SettedDuration: toInt64(t.at(recordSettedIdx)),
			Title:          toString(t.at(recordTitleIdx)),
			ActivityID:     toID(t.at(recordActivityIdx)),
		})
	})

	_, _ = jsonparser.ArrayEach(trimmed, func(value []byte, typ jsonparser.ValueType, _ int, _ error) {
		switch typ {
		case jsonparser.Object:
			snap.Tasks = append(snap.Tasks, parseTaskObject(value))
		case jsonparser.Array:
			title := toString(readTuple(value).at(taskTitleIdx))
			if title == "" {
				title = DefaultTaskTitle
			}
			snap.Tasks = append(snap.Tasks, Task{Title: title})
		}
	}, "tasks")

	return snap, nil
}

// eachTuple calls fn for every array row of the array at key. Non-array rows are skipped.
func eachTuple(data []byte, key string, fn func(tuple)) {
	// A missing or non-array key is an empty section.
	_, _ = jsonparser.ArrayEach(data, func(value []byte, typ jsonparser.ValueType, _ int, _ error) {
		if typ != jsonparser.Array {
			return
		}
		fn(readTuple(value))
	}, key)
}

func readTuple(data []byte) tuple {
	var t tuple
	_, _ = jsonparser.ArrayEach(data, func(value []byte, typ jsonparser.ValueType, _ int, _ error) {
		t = append(t, element{value: value, typ: typ})
	})
	return t
}

func parseTaskObject(data []byte) Task {
	task := Task{}
	if v, typ, _, err := jsonparser.Get(data, "title"); err == nil {
		task.Title = toString(element{value: v, typ: typ})
	}
	if v, typ, _, err := jsonparser.Get(data, "date"); err == nil && typ == jsonparser.String {
		task.Date = toString(element{value: v, typ: typ})
	}
	if v, typ, _, err := jsonparser.Get(data, "due"); err == nil && typ == jsonparser.String {
		task.Due = toString(element{value: v, typ: typ})
	}
	if task.Title == "" {
		task.Title = DefaultTaskTitle
	}
	return task
}

// toInt64 reads an integer from a number or numeric string; anything else is 0.
func toInt64(e element) int64 {
	switch e.typ {
	case jsonparser.Number, jsonparser.String:
		s := string(e.value)
		if i, err := cast.ToInt64E(s); err == nil {
			return i
		}
		if f, err := cast.ToFloat64E(s); err == nil {
			return int64(f)
		}
	}
	return 0
}

// toString reads a string, or the literal text of a number/boolean; null is "".
func toString(e element) string {
	switch e.typ {
	case jsonparser.String:
		s, err := jsonparser.ParseString(e.value)
		if err != nil {
			return string(e.value)
		}
		return s
	case jsonparser.Number, jsonparser.Boolean:
		return string(e.value)
	}
	return ""
}

// toID normalizes an activity id so 3, 3.0 and "3" address the same activity.
func toID(e element) string {
	switch e.typ {
	case jsonparser.Number:
		if f, err := cast.ToFloat64E(string(e.value)); err == nil && f == float64(int64(f)) {
			return strconv.FormatInt(int64(f), 10)
		}
		return string(e.value)
	case jsonparser.String:
		return toString(e)
	}
	return ""
}
