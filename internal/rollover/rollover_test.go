package rollover

import (
	"strings"
	"testing"
	"time"

	"github.com/todomd/todomd/internal/markdown"
	"github.com/todomd/todomd/internal/schema"
)

func pending(content, due string, p schema.Priority) *schema.Task {
	t := schema.NewTask(content)
	t.DueDate = due
	t.Priority = p
	return t
}

func completed(content string) *schema.Task {
	t := schema.NewTask(content)
	t.SetStatus(schema.StatusCompleted, time.Now())
	return t
}

func TestRollover_Scenario(t *testing.T) {
	doc := markdown.ParseDocument(`# 2025-01-10 (Local: Australia/Sydney)

## 📌 Priorities (Top 3 max)
- [ ] Finish report #DataTables Due: 2025-01-09 !P1

## ✅ Completed
- [x] Email client @Jim
`)
	r := Rollover(doc.Sections[0], "2025-01-11")

	if len(r.Carried) != 1 {
		t.Fatalf("carried %d tasks, want 1", len(r.Carried))
	}
	got := r.Carried[0]
	if got.Content != "⏭ Finish report (Overdue)" {
		t.Errorf("Content = %q", got.Content)
	}
	if got.Project != "#DataTables" || got.DueDate != "2025-01-09" || got.Priority != schema.PriorityP1 {
		t.Errorf("metadata not preserved: %+v", got)
	}
	if got.RolledFromDate != "2025-01-10" {
		t.Errorf("RolledFromDate = %q", got.RolledFromDate)
	}
	if r.OverdueCount != 1 || r.DueTodayCount != 0 {
		t.Errorf("counts = %d overdue, %d due today", r.OverdueCount, r.DueTodayCount)
	}
	if r.Origin(got.ID) != schema.ListPriorities {
		t.Errorf("Origin = %q", r.Origin(got.ID))
	}
}

func TestRollover_Counts(t *testing.T) {
	prev := schema.NewSection("2025-01-10")
	prev.Priorities = []*schema.Task{pending("overdue", "2025-01-01", schema.PriorityNone)}
	prev.Schedule = []*schema.Task{pending("due today", "2025-01-11", schema.PriorityNone)}
	prev.Completed = []*schema.Task{completed("done")}

	r := Rollover(prev, "2025-01-11")

	if len(r.Carried) != 2 {
		t.Fatalf("carried %d tasks, want 2", len(r.Carried))
	}
	if r.OverdueCount != 1 || r.DueTodayCount != 1 {
		t.Errorf("counts = %d overdue, %d due today, want 1 and 1", r.OverdueCount, r.DueTodayCount)
	}
	for _, c := range r.Carried {
		if strings.Contains(c.Content, "done") {
			t.Errorf("completed task was carried: %q", c.Content)
		}
	}
}

func TestRollover_Empty(t *testing.T) {
	allDone := schema.NewSection("2025-01-10")
	allDone.Completed = []*schema.Task{completed("a")}
	doneInPriorities := completed("b")
	allDone.Priorities = []*schema.Task{doneInPriorities}

	tests := []struct {
		name string
		prev *schema.DailySection
	}{
		{"nil section", nil},
		{"no tasks", schema.NewSection("2025-01-10")},
		{"all completed", allDone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := Rollover(tt.prev, "2025-01-11")
			if !r.Empty() || len(r.Carried) != 0 {
				t.Errorf("carried %d tasks, want none", len(r.Carried))
			}
			if r.Carried == nil {
				t.Error("Carried should be an empty slice, not nil")
			}
			if r.Summary == "" {
				t.Error("empty rollover should still have a summary")
			}
		})
	}
}

func TestRollover_OrderAndCopy(t *testing.T) {
	prev := schema.NewSection("2025-01-10")
	prev.FollowUps = []*schema.Task{pending("f1", "", schema.PriorityNone)}
	prev.Schedule = []*schema.Task{pending("s1", "", schema.PriorityNone), pending("s2", "", schema.PriorityNone)}
	prev.Priorities = []*schema.Task{pending("p1", "", schema.PriorityNone)}
	inProgress := pending("p2", "", schema.PriorityNone)
	inProgress.SetStatus(schema.StatusInProgress, time.Now())
	prev.Priorities = append(prev.Priorities, inProgress)

	now := time.Date(2025, 1, 11, 9, 0, 0, 0, time.UTC)
	r := RolloverAt(prev, "2025-01-11", now)

	var got []string
	for _, c := range r.Carried {
		got = append(got, BaseContent(c.Content))
	}
	want := "p1 p2 s1 s2 f1"
	if strings.Join(got, " ") != want {
		t.Errorf("order = %v, want %s", got, want)
	}

	for i, c := range r.Carried {
		if c.ID == "" || c.ID == inProgress.ID {
			t.Errorf("carried[%d] reused or lacks an id", i)
		}
		if !c.CreatedAt.Equal(now) {
			t.Errorf("carried[%d].CreatedAt = %v", i, c.CreatedAt)
		}
		if err := c.Validate(); err != nil {
			t.Errorf("carried[%d] invalid: %v", i, err)
		}
	}
	if r.Carried[1].Status != schema.StatusInProgress {
		t.Errorf("status not preserved: %q", r.Carried[1].Status)
	}
	if prev.Priorities[0].Content != "p1" {
		t.Error("source task was mutated")
	}
}

func TestRollover_Reannotation(t *testing.T) {
	prev := schema.NewSection("2025-01-11")
	prev.Priorities = []*schema.Task{pending("⏭ Finish report (Overdue)", "2025-01-09", schema.PriorityP1)}

	r := Rollover(prev, "2025-01-12")
	if got := r.Carried[0].Content; got != "⏭ Finish report (Overdue)" {
		t.Errorf("Content = %q", got)
	}

	prev.Priorities[0].DueDate = ""
	r = Rollover(prev, "2025-01-12")
	if got := r.Carried[0].Content; got != "⏭ Finish report" {
		t.Errorf("Content = %q", got)
	}
}

func TestRollover_Summary(t *testing.T) {
	prev := schema.NewSection("2025-01-10")
	prev.Schedule = []*schema.Task{
		pending("none", "", schema.PriorityNone),
		pending("third", "", schema.PriorityP3),
		pending("first-a", "", schema.PriorityP1),
		pending("second", "", schema.PriorityP2),
		pending("first-b", "", schema.PriorityP1),
	}

	r := Rollover(prev, "2025-01-11")

	if !strings.HasPrefix(r.Summary, "Rolled over 5 tasks from 2025-01-10 (0 overdue, 0 due today).") {
		t.Errorf("Summary = %q", r.Summary)
	}
	top := r.Summary[strings.Index(r.Summary, "Top: ")+len("Top: "):]
	want := "first-a [P1]; first-b [P1]; second [P2]"
	if top != want {
		t.Errorf("top = %q, want %q", top, want)
	}
}

func TestBaseContent(t *testing.T) {
	tests := map[string]string{
		"Plain":                         "Plain",
		"⏭ Plain":                       "Plain",
		"⏭ ⏭ Plain (Overdue) (Overdue)": "Plain",
		"⏭ Plain (Due today)":           "Plain",
		"Plain (Overdue) text":          "Plain (Overdue) text",
	}
	for in, want := range tests {
		if got := BaseContent(in); got != want {
			t.Errorf("BaseContent(%q) = %q, want %q", in, got, want)
		}
	}
}
