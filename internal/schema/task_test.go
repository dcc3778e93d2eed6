package schema

import (
	"testing"
	"time"
)

func TestTask_Validate(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name    string
		task    Task
		wantErr bool
	}{
		{
			name:    "valid pending task",
			task:    Task{ID: "t1", Content: "Write report", Status: StatusPending},
			wantErr: false,
		},
		{
			name:    "valid completed task",
			task:    Task{ID: "t1", Content: "Write report", Status: StatusCompleted, CompletedAt: &now},
			wantErr: false,
		},
		{
			name:    "missing id",
			task:    Task{Content: "Write report", Status: StatusPending},
			wantErr: true,
		},
		{
			name:    "blank content",
			task:    Task{ID: "t1", Content: "   ", Status: StatusPending},
			wantErr: true,
		},
		{
			name:    "completed without completed_at",
			task:    Task{ID: "t1", Content: "x", Status: StatusCompleted},
			wantErr: true,
		},
		{
			name:    "pending with completed_at",
			task:    Task{ID: "t1", Content: "x", Status: StatusPending, CompletedAt: &now},
			wantErr: true,
		},
		{
			name:    "project without hash",
			task:    Task{ID: "t1", Content: "x", Status: StatusPending, Project: "Work"},
			wantErr: true,
		},
		{
			name:    "bad due date",
			task:    Task{ID: "t1", Content: "x", Status: StatusPending, DueDate: "2025-13-01"},
			wantErr: true,
		},
		{
			name:    "bad priority",
			task:    Task{ID: "t1", Content: "x", Status: StatusPending, Priority: "P4"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.task.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestTask_SetStatus(t *testing.T) {
	task := NewTask("Ship it")
	now := time.Date(2025, 1, 10, 9, 0, 0, 0, time.UTC)

	task.SetStatus(StatusCompleted, now)
	if task.CompletedAt == nil || !task.CompletedAt.Equal(now) {
		t.Fatalf("CompletedAt = %v, want %v", task.CompletedAt, now)
	}
	if err := task.Validate(); err != nil {
		t.Fatalf("completed task invalid: %v", err)
	}

	task.SetStatus(StatusPending, now.Add(time.Hour))
	if task.CompletedAt != nil {
		t.Error("CompletedAt should be cleared when reopening")
	}
	if err := task.Validate(); err != nil {
		t.Fatalf("reopened task invalid: %v", err)
	}
}

func TestPriority_Rank(t *testing.T) {
	order := []Priority{PriorityP1, PriorityP2, PriorityP3, PriorityNone}
	for i := 1; i < len(order); i++ {
		if order[i-1].Rank() >= order[i].Rank() {
			t.Errorf("%q should rank before %q", order[i-1], order[i])
		}
	}
}

func TestDailySection_FindRemove(t *testing.T) {
	s := NewSection("2025-01-10")
	a := NewTask("a")
	b := NewTask("b")
	_ = s.Append(ListSchedule, a)
	_ = s.Append(ListFollowUps, b)

	if _, l, ok := s.Find(b.ID); !ok || l != ListFollowUps {
		t.Fatalf("Find(b) = %v %v, want followUps", l, ok)
	}
	if _, ok := s.Remove(a.ID); !ok {
		t.Fatal("Remove(a) should succeed")
	}
	if s.TaskCount() != 1 {
		t.Errorf("TaskCount() = %d, want 1", s.TaskCount())
	}
	if err := s.Append(ListNotes, a); err == nil {
		t.Error("Append to notes should fail")
	}
}

func TestMergeProjects(t *testing.T) {
	base := []Project{ProjectFromTag("#Work")}
	merged := MergeProjects(base,
		Project{Tag: "Work", Color: "#ff0000"},
		Project{Name: "Home", Tag: "#Home"},
		Project{Tag: ""},
	)

	if len(merged) != 2 {
		t.Fatalf("len = %d, want 2: %+v", len(merged), merged)
	}
	if merged[0].Color != "#ff0000" {
		t.Errorf("declared color not merged: %+v", merged[0])
	}
	if merged[1].Tag != "#Home" || merged[1].ID == "" {
		t.Errorf("unexpected project: %+v", merged[1])
	}
}
