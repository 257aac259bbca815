package task

import (
	"fmt"
	"strings"
	"time"
)

// Priority is the urgency label attached to a task.
type Priority string

const (
	PriorityLow    Priority = "Low"
	PriorityMedium Priority = "Medium"
	PriorityHigh   Priority = "High"
)

// DefaultPriority is used when the caller does not choose one.
const DefaultPriority = PriorityLow

// Priorities lists the accepted labels in ascending severity.
var Priorities = []Priority{PriorityLow, PriorityMedium, PriorityHigh}

// Valid reports whether p is one of the accepted labels.
func (p Priority) Valid() bool {
	return p.severity() > 0
}

func (p Priority) severity() int {
	switch p {
	case PriorityLow:
		return 1
	case PriorityMedium:
		return 2
	case PriorityHigh:
		return 3
	default:
		return 0
	}
}

// ParsePriority matches a label case-insensitively. An empty label yields DefaultPriority.
func ParsePriority(s string) (Priority, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return DefaultPriority, nil
	}
	for _, p := range Priorities {
		if strings.EqualFold(s, string(p)) {
			return p, nil
		}
	}
	return "", &ValidationError{Field: "priority", Reason: fmt.Sprintf("unknown priority %q", s)}
}

// Task is the single entity of the tracker. A zero ID means the task has
// never been persisted; the store assigns IDs on insert.
type Task struct {
	ID          int64    `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	Title       string   `gorm:"column:title;not null" json:"title"`
	Description *string  `gorm:"column:description" json:"description,omitempty"`
	Priority    Priority `gorm:"column:priority;not null" json:"priority"`
	DueDate     int64    `gorm:"column:dueDate;not null" json:"due_date"`
	IsCompleted bool     `gorm:"column:isCompleted;not null" json:"is_completed"`
}

// TableName returns the table name for Task model.
func (Task) TableName() string {
	return "tasks"
}

// Persisted reports whether the task has been assigned an ID by the store.
func (t Task) Persisted() bool {
	return t.ID != 0
}

// SameAs reports whether both tasks are the same persisted record.
func (t Task) SameAs(other Task) bool {
	return t.Persisted() && t.ID == other.ID
}

// Due returns the due date as a time.Time in UTC.
func (t Task) Due() time.Time {
	return time.UnixMilli(t.DueDate).UTC()
}

// Completed returns a copy of t marked as completed.
func (t Task) Completed() Task {
	c := t.Clone()
	c.IsCompleted = true
	return c
}

// Clone returns a copy of t that shares no memory with it.
func (t Task) Clone() Task {
	if t.Description != nil {
		d := *t.Description
		t.Description = &d
	}
	return t
}

// WithDefaults fills the creation defaults: priority Low and a due date of now.
// A DueDate of zero means unset, so the instant 1970-01-01T00:00:00Z cannot be
// given as a due date on creation. Draft, Store.Insert and the create
// service all go through here.
func (t Task) WithDefaults(now time.Time) Task {
	if t.Priority == "" {
		t.Priority = DefaultPriority
	}
	if t.DueDate == 0 {
		t.DueDate = Millis(now)
	}
	return t
}

// Validate checks the field invariants that must hold before a write.
func (t Task) Validate() error {
	if strings.TrimSpace(t.Title) == "" {
		return &ValidationError{Field: "title", Reason: "must not be empty"}
	}
	if !t.Priority.Valid() {
		return &ValidationError{Field: "priority", Reason: fmt.Sprintf("unknown priority %q", t.Priority)}
	}
	return nil
}

// Millis converts a time to epoch milliseconds, the persisted due date unit.
func Millis(t time.Time) int64 {
	return t.UnixMilli()
}

// Draft is raw user input for a new or edited task.
type Draft struct {
	Title       string
	Description string
	Priority    string
	DueDate     *time.Time
	IsCompleted bool
}

// Task validates the draft and converts it to a Task with defaults applied.
// Surrounding whitespace is trimmed and an empty description is stored as absent.
// A DueDate at the Unix epoch counts as unset, see WithDefaults.
func (d Draft) Task(now time.Time) (Task, error) {
	priority, err := ParsePriority(d.Priority)
	if err != nil {
		return Task{}, err
	}

	t := Task{
		Title:       strings.TrimSpace(d.Title),
		Priority:    priority,
		IsCompleted: d.IsCompleted,
	}
	if desc := strings.TrimSpace(d.Description); desc != "" {
		t.Description = &desc
	}
	if d.DueDate != nil {
		t.DueDate = Millis(*d.DueDate)
	}

	t = t.WithDefaults(now)
	if err := t.Validate(); err != nil {
		return Task{}, err
	}
	return t, nil
}
