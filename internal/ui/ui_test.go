package ui

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/todomd/todomd/internal/schema"
)

func sampleSection() *schema.DailySection {
	now := time.Date(2025, 1, 10, 9, 0, 0, 0, time.UTC)
	s := schema.NewSection("2025-01-10")
	s.Priorities = []*schema.Task{{
		ID: "aaaaaaaa-1111", Content: "Draft plan", Status: schema.StatusPending,
		Project: "#Work", DueDate: "2025-01-09", Priority: schema.PriorityP1,
	}}
	s.Schedule = []*schema.Task{{
		ID: "bbbbbbbb-2222", Content: "Standup", Status: schema.StatusInProgress,
		Assignee: "ann", RolledFromDate: "2025-01-09",
	}}
	done := &schema.Task{ID: "cccccccc-3333", Content: "Water plants", DueDate: "2025-01-01"}
	done.SetStatus(schema.StatusCompleted, now)
	s.Completed = []*schema.Task{done}
	s.Notes = []*schema.Note{{ID: "n1", Content: "An idea"}}
	s.Blockers = []*schema.Blocker{{ID: "b1", Content: "Waiting on legal", NextStep: "ping Kim"}}
	return s
}

func TestPrinter_Section(t *testing.T) {
	var buf bytes.Buffer
	NewPrinter(&buf, false).Section(sampleSection(), "2025-01-10")
	out := buf.String()

	for _, want := range []string{
		"# 2025-01-10",
		"📌 Priorities (1)",
		"aaaaaaaa [ ] Draft plan #Work due 2025-01-09 !P1",
		"bbbbbbbb [~] Standup @ann (from 2025-01-09)",
		"cccccccc [x] Water plants due 2025-01-01",
		"- An idea",
		"- Waiting on legal → ping Kim",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "\x1b[") {
		t.Error("plain printer emitted escape codes")
	}
	if strings.Contains(out, "Follow-ups") {
		t.Error("empty lists should be skipped")
	}
}

func TestPrinter_EmptySection(t *testing.T) {
	var buf bytes.Buffer
	NewPrinter(&buf, false).Section(schema.NewSection("2025-01-10"), "2025-01-10")
	if !strings.Contains(buf.String(), "nothing recorded") {
		t.Errorf("output = %q", buf.String())
	}
}

func TestPrinter_Status(t *testing.T) {
	var buf bytes.Buffer
	NewPrinter(&buf, false).Status(Status{
		Index: "/tmp/index.db", Mode: "db-only", State: "disconnected",
		Today: "2025-01-10", Sections: 2, Tasks: 5, OpenTasks: 3, Overdue: 1,
	})
	out := buf.String()
	for _, want := range []string{
		"Document    (none)",
		"Mode        db-only",
		"Tasks       5 (3 open)",
		"Overdue     1",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestPrinter_Projects(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, false)
	p.SetProjects([]schema.Project{{Tag: "#Home", Name: "Home", Color: "#00FF00"}})
	p.Projects([]schema.Project{{Tag: "#Home", Name: "Home"}, {Tag: "#Work", Name: "Work"}})
	if got := buf.String(); got != "#Home  Home\n#Work  Work\n" {
		t.Errorf("Projects() = %q", got)
	}

	buf.Reset()
	p.Projects(nil)
	if !strings.Contains(buf.String(), "no projects") {
		t.Errorf("Projects(nil) = %q", buf.String())
	}
}

func TestShouldUseColor_NonTerminal(t *testing.T) {
	if ShouldUseColor(&bytes.Buffer{}) {
		t.Error("a buffer is never a terminal")
	}
}

func TestFormValidators(t *testing.T) {
	tests := []struct {
		name  string
		fn    func(string) error
		input string
		ok    bool
	}{
		{"content", validateContent, "Buy milk", true},
		{"blank content", validateContent, "   ", false},
		{"assignee", validateAssignee, "@ann", true},
		{"two-word assignee", validateAssignee, "ann lee", false},
		{"due", validateDue, "2025-01-10", true},
		{"empty due", validateDue, "", true},
		{"bad due", validateDue, "tomorrow", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.fn(tt.input)
			if (err == nil) != tt.ok {
				t.Errorf("validate(%q) = %v, want ok=%v", tt.input, err, tt.ok)
			}
		})
	}
}
