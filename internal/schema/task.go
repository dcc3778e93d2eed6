package schema

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DateLayout is the ISO calendar date layout used for section dates and due dates.
const DateLayout = "2006-01-02"

// Status is the lifecycle state of a task.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusCompleted:
		return true
	}
	return false
}

// Priority is an optional P1..P3 ranking. The zero value means "no priority".
type Priority string

const (
	PriorityNone Priority = ""
	PriorityP1   Priority = "P1"
	PriorityP2   Priority = "P2"
	PriorityP3   Priority = "P3"
)

// Valid reports whether p is empty or one of P1..P3.
func (p Priority) Valid() bool {
	switch p {
	case PriorityNone, PriorityP1, PriorityP2, PriorityP3:
		return true
	}
	return false
}

// Rank orders priorities for sorting: P1 < P2 < P3 < none.
func (p Priority) Rank() int {
	switch p {
	case PriorityP1:
		return 1
	case PriorityP2:
		return 2
	case PriorityP3:
		return 3
	default:
		return 4
	}
}

// Task is a single checkbox line of the document.
//
// Content never carries metadata tokens; project, assignee, due date and
// priority live in their own fields and are re-synthesized on encode.
type Task struct {
	ID       string   `json:"id"`
	Content  string   `json:"content"`
	Status   Status   `json:"status"`
	Project  string   `json:"project,omitempty"` // "#Tag"
	Assignee string   `json:"assignee,omitempty"`
	DueDate  string   `json:"due_date,omitempty"` // YYYY-MM-DD
	Priority Priority `json:"priority,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// RolledFromDate is set only on rollover copies.
	RolledFromDate string `json:"rolled_from_date,omitempty"`
}

// NewTask returns a pending task with a fresh id and timestamps.
func NewTask(content string) *Task {
	now := time.Now()
	return &Task{
		ID:        NewID(),
		Content:   content,
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// NewID returns a new opaque identifier.
func NewID() string {
	return uuid.NewString()
}

// Validate checks the field-level invariants of a task.
func (t *Task) Validate() error {
	if t.ID == "" {
		return fmt.Errorf("id is required")
	}
	if strings.TrimSpace(t.Content) == "" {
		return fmt.Errorf("content is required")
	}
	if !t.Status.Valid() {
		return fmt.Errorf("invalid status %q", t.Status)
	}
	if !t.Priority.Valid() {
		return fmt.Errorf("invalid priority %q", t.Priority)
	}
	if t.Project != "" && !strings.HasPrefix(t.Project, "#") {
		return fmt.Errorf("project %q must start with '#'", t.Project)
	}
	if t.DueDate != "" && !IsDate(t.DueDate) {
		return fmt.Errorf("due date %q is not YYYY-MM-DD", t.DueDate)
	}
	if t.RolledFromDate != "" && !IsDate(t.RolledFromDate) {
		return fmt.Errorf("rolled-from date %q is not YYYY-MM-DD", t.RolledFromDate)
	}
	if (t.Status == StatusCompleted) != (t.CompletedAt != nil) {
		return fmt.Errorf("completed_at must be set if and only if status is completed")
	}
	return nil
}

// SetStatus changes the status and keeps CompletedAt consistent with it.
func (t *Task) SetStatus(s Status, now time.Time) {
	t.Status = s
	if s == StatusCompleted {
		if t.CompletedAt == nil {
			at := now
			t.CompletedAt = &at
		}
	} else {
		t.CompletedAt = nil
	}
	t.UpdatedAt = now
}

// IsOpen reports whether the task still needs doing.
func (t *Task) IsOpen() bool {
	return t.Status != StatusCompleted
}

// Clone returns a deep copy of the task.
func (t *Task) Clone() *Task {
	c := *t
	if t.CompletedAt != nil {
		at := *t.CompletedAt
		c.CompletedAt = &at
	}
	return &c
}

// IsDate reports whether s is a valid YYYY-MM-DD calendar date.
func IsDate(s string) bool {
	if len(s) != len(DateLayout) {
		return false
	}
	_, err := time.Parse(DateLayout, s)
	return err == nil
}

// NormalizeTag prefixes a project name with '#' when missing.
func NormalizeTag(tag string) string {
	tag = strings.TrimSpace(tag)
	if tag == "" || strings.HasPrefix(tag, "#") {
		return tag
	}
	return "#" + tag
}
