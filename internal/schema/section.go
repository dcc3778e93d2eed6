package schema

import (
	"fmt"
	"strings"
	"time"
)

// ListType names one of the sub-sections of a daily section.
type ListType string

const (
	ListNone       ListType = ""
	ListPriorities ListType = "priorities"
	ListSchedule   ListType = "schedule"
	ListFollowUps  ListType = "followUps"
	ListNotes      ListType = "notes"
	ListCompleted  ListType = "completed"
	ListBlockers   ListType = "blockers"
)

// TaskLists are the sub-sections that hold tasks, in document order.
var TaskLists = []ListType{ListPriorities, ListSchedule, ListFollowUps, ListCompleted}

// OpenLists are the task lists whose unfinished entries roll forward.
var OpenLists = []ListType{ListPriorities, ListSchedule, ListFollowUps}

// IsTaskList reports whether l holds tasks.
func (l ListType) IsTaskList() bool {
	switch l {
	case ListPriorities, ListSchedule, ListFollowUps, ListCompleted:
		return true
	}
	return false
}

// ParseListType accepts the canonical names plus a few aliases used on the CLI.
func ParseListType(s string) (ListType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "priorities", "priority", "p":
		return ListPriorities, nil
	case "schedule", "s":
		return ListSchedule, nil
	case "followups", "follow-ups", "followup", "f":
		return ListFollowUps, nil
	case "completed", "done":
		return ListCompleted, nil
	case "notes":
		return ListNotes, nil
	case "blockers":
		return ListBlockers, nil
	}
	return ListNone, fmt.Errorf("unknown section %q", s)
}

// Note is a free-text line under "Notes & Ideas".
type Note struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Blocker is a "<content> → <nextStep>" line.
type Blocker struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	NextStep  string    `json:"next_step,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Project is a '#Tag' that tasks may reference.
type Project struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Tag   string `json:"tag"`
	Color string `json:"color,omitempty" toml:"color"`
}

// ProjectFromTag builds a project whose name is the tag without '#'.
func ProjectFromTag(tag string) Project {
	tag = NormalizeTag(tag)
	return Project{
		ID:   "project-" + strings.ToLower(strings.TrimPrefix(tag, "#")),
		Name: strings.TrimPrefix(tag, "#"),
		Tag:  tag,
	}
}

// DailySection holds everything recorded for one calendar date.
type DailySection struct {
	ID         string     `json:"id"`
	Date       string     `json:"date"`
	Priorities []*Task    `json:"priorities"`
	Schedule   []*Task    `json:"schedule"`
	FollowUps  []*Task    `json:"follow_ups"`
	Notes      []*Note    `json:"notes"`
	Completed  []*Task    `json:"completed"`
	Blockers   []*Blocker `json:"blockers"`
}

// NewSection returns an empty section for date.
func NewSection(date string) *DailySection {
	return &DailySection{ID: NewID(), Date: date}
}

// List returns a pointer to the task slice for l, or nil for non-task lists.
func (s *DailySection) List(l ListType) *[]*Task {
	switch l {
	case ListPriorities:
		return &s.Priorities
	case ListSchedule:
		return &s.Schedule
	case ListFollowUps:
		return &s.FollowUps
	case ListCompleted:
		return &s.Completed
	}
	return nil
}

// Append adds t to the end of list l.
func (s *DailySection) Append(l ListType, t *Task) error {
	list := s.List(l)
	if list == nil {
		return fmt.Errorf("%q is not a task list", l)
	}
	*list = append(*list, t)
	return nil
}

// Find locates a task by id and reports which list holds it.
func (s *DailySection) Find(id string) (*Task, ListType, bool) {
	for _, l := range TaskLists {
		for _, t := range *s.List(l) {
			if t.ID == id {
				return t, l, true
			}
		}
	}
	return nil, ListNone, false
}

// Remove deletes the task with id from whichever list holds it.
func (s *DailySection) Remove(id string) (*Task, bool) {
	for _, l := range TaskLists {
		list := s.List(l)
		for i, t := range *list {
			if t.ID == id {
				*list = append((*list)[:i], (*list)[i+1:]...)
				return t, true
			}
		}
	}
	return nil, false
}

// OpenTasks returns unfinished tasks of the open lists in document order.
func (s *DailySection) OpenTasks() []*Task {
	var open []*Task
	for _, l := range OpenLists {
		for _, t := range *s.List(l) {
			if t.IsOpen() {
				open = append(open, t)
			}
		}
	}
	return open
}

// TaskCount returns the number of tasks across all task lists.
func (s *DailySection) TaskCount() int {
	n := 0
	for _, l := range TaskLists {
		n += len(*s.List(l))
	}
	return n
}

// ParsedDocument is the in-memory form of a whole ToDo.md file.
// Sections keep document order, which need not be chronological.
type ParsedDocument struct {
	Sections []*DailySection `json:"sections"`
	Projects []Project       `json:"projects"`
}

// SectionByDate returns the first section with the given date.
func (d *ParsedDocument) SectionByDate(date string) (*DailySection, bool) {
	for _, s := range d.Sections {
		if s.Date == date {
			return s, true
		}
	}
	return nil, false
}

// MergeProjects appends projects whose tags are not yet present.
// Existing entries keep their position; a declared color fills a missing one.
func MergeProjects(base []Project, extra ...Project) []Project {
	index := make(map[string]int, len(base))
	out := make([]Project, 0, len(base)+len(extra))
	for _, p := range base {
		index[p.Tag] = len(out)
		out = append(out, p)
	}
	for _, p := range extra {
		p.Tag = NormalizeTag(p.Tag)
		if p.Tag == "" {
			continue
		}
		if i, ok := index[p.Tag]; ok {
			if out[i].Color == "" {
				out[i].Color = p.Color
			}
			continue
		}
		if p.ID == "" {
			p.ID = ProjectFromTag(p.Tag).ID
		}
		if p.Name == "" {
			p.Name = strings.TrimPrefix(p.Tag, "#")
		}
		index[p.Tag] = len(out)
		out = append(out, p)
	}
	return out
}
