package models

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// Status is the board column a task lives in
type Status string

const (
	StatusTodo       Status = "todo"
	StatusInProgress Status = "inProgress"
	StatusReview     Status = "review"
	StatusCompleted  Status = "completed"
)

// Statuses lists every status in board column order
var Statuses = []Status{StatusTodo, StatusInProgress, StatusReview, StatusCompleted}

// Valid reports whether s is one of the board statuses
func (s Status) Valid() bool {
	return slices.Contains(Statuses, s)
}

// Label returns a human readable name for the status
func (s Status) Label() string {
	switch s {
	case StatusTodo:
		return "To Do"
	case StatusInProgress:
		return "In Progress"
	case StatusReview:
		return "Review"
	case StatusCompleted:
		return "Completed"
	}
	return string(s)
}

// Priority is the urgency of a task
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Priorities lists every priority from least to most urgent
var Priorities = []Priority{PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent}

// Valid reports whether p is one of the known priorities
func (p Priority) Valid() bool {
	return slices.Contains(Priorities, p)
}

// Rank orders priorities for sorting; unknown values rank lowest
func (p Priority) Rank() int {
	switch p {
	case PriorityUrgent:
		return 4
	case PriorityHigh:
		return 3
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 1
	}
	return 0
}

// Task represents a single work item on the board
type Task struct {
	ID          string
	Title       string
	Description string
	Status      Status
	Priority    Priority
	DueDate     *time.Time
	Tags        []string
	CreatedBy   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	Attachments []string // attachment IDs, populated when loading tasks
}

func (t Task) Key() string { return t.ID }

// Clone returns a deep copy so callers can never alias repository-owned slices
func (t Task) Clone() Task {
	out := t
	if t.DueDate != nil {
		due := *t.DueDate
		out.DueDate = &due
	}
	out.Tags = slices.Clone(t.Tags)
	out.Attachments = slices.Clone(t.Attachments)
	return out
}

// HasAttachment reports whether the attachment ID is linked to the task
func (t Task) HasAttachment(id string) bool {
	return slices.Contains(t.Attachments, id)
}

// Comment represents a comment on a task
type Comment struct {
	ID        string
	TaskID    string
	UserID    string
	Text      string
	CreatedAt time.Time
}

func (c Comment) Key() string    { return c.ID }
func (c Comment) Clone() Comment { return c }

// Attachment is the metadata of an uploaded file. TaskID stays empty until
// the file has been associated with a task.
type Attachment struct {
	ID          string
	TaskID      string
	Name        string
	Size        int64
	ContentType string
	Path        string
	URL         string
	UserID      string
	CreatedAt   time.Time
}

func (a Attachment) Key() string       { return a.ID }
func (a Attachment) Clone() Attachment { return a }

// CallStatus tracks a scheduled call
type CallStatus string

const (
	CallScheduled   CallStatus = "scheduled"
	CallCompleted   CallStatus = "completed"
	CallRescheduled CallStatus = "rescheduled"
)

// Call is a scheduled call with a contact, optionally linked to a task
type Call struct {
	ID           string
	TaskID       string
	ContactName  string
	ContactPhone string
	ScheduledAt  time.Time
	CompletedAt  *time.Time
	Status       CallStatus
	Reason       string
	Notes        string
	CreatedAt    time.Time
}

func (c Call) Key() string { return c.ID }

func (c Call) Clone() Call {
	out := c
	if c.CompletedAt != nil {
		done := *c.CompletedAt
		out.CompletedAt = &done
	}
	return out
}

// NormalizeTags trims tags, drops empty ones and removes duplicates while
// keeping the first occurrence of each
func NormalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" || slices.Contains(out, tag) {
			continue
		}
		out = append(out, tag)
	}
	return out
}

// DueDateLayout is how due dates are typed and exported
const DueDateLayout = "2006-01-02"

// ParseDueDate reads a due date as typed by a user, either a date or a date
// with a time, in local time. An empty string means no due date.
func ParseDueDate(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	for _, layout := range []string{DueDateLayout + " 15:04", DueDateLayout} {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return &t, nil
		}
	}
	return nil, fmt.Errorf("invalid due date %q: want YYYY-MM-DD or YYYY-MM-DD HH:MM", s)
}
