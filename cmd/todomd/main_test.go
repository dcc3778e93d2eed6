package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/todomd/todomd/internal/config"
	"github.com/todomd/todomd/internal/coordinator"
	"github.com/todomd/todomd/internal/db"
	"github.com/todomd/todomd/internal/document"
	"github.com/todomd/todomd/internal/markdown"
	"github.com/todomd/todomd/internal/schema"
)

const testDocument = `# 2025-01-10 (Local: Australia/Sydney)

## 📅 Schedule
- [ ] Standup @ann
- [ ] Send invoice #Work
`

func testConfig(t *testing.T, withDocument bool) *config.Config {
	t.Helper()
	dir := t.TempDir()
	c := config.DefaultConfig()
	c.Index.Path = filepath.Join(dir, "index.db")
	c.Projects.File = filepath.Join(dir, "projects.toml")
	c.Document.Path = ""
	if withDocument {
		c.Document.Path = filepath.Join(dir, "ToDo.md")
		if err := os.WriteFile(c.Document.Path, []byte(testDocument), 0644); err != nil {
			t.Fatalf("WriteFile: %v", err)
		}
	}
	return c
}

func TestOpenApp_WritesBackOnClose(t *testing.T) {
	ctx := context.Background()
	c := testConfig(t, true)

	a, err := openApp(ctx, c, openOptions{Connect: true, Require: true})
	if err != nil {
		t.Fatalf("openApp() failed: %v", err)
	}
	if a.coord.Mode() != coordinator.ModeHybrid {
		t.Errorf("Mode() = %s, want hybrid", a.coord.Mode())
	}
	if _, err := a.coord.AddTaskOn(ctx, "2025-01-10", coordinator.TaskInput{Content: "Water plants"}, schema.ListSchedule); err != nil {
		t.Fatalf("AddTaskOn() failed: %v", err)
	}
	if err := a.Close(ctx); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}

	data, err := os.ReadFile(c.Document.Path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !strings.Contains(string(data), "- [ ] Water plants") {
		t.Errorf("document was not written back:\n%s", data)
	}
}

func TestOpenApp_TaskIDsSurviveReopen(t *testing.T) {
	ctx := context.Background()
	c := testConfig(t, true)

	a, err := openApp(ctx, c, openOptions{Connect: true, Require: true})
	if err != nil {
		t.Fatalf("openApp() failed: %v", err)
	}
	task, err := a.coord.AddTaskOn(ctx, "2025-01-10", coordinator.TaskInput{Content: "Water plants"}, schema.ListSchedule)
	if err != nil {
		t.Fatalf("AddTaskOn() failed: %v", err)
	}
	if err := a.Close(ctx); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}

	// A later command reconnects and re-imports the document.
	a, err = openApp(ctx, c, openOptions{Connect: true, Require: true})
	if err != nil {
		t.Fatalf("second openApp() failed: %v", err)
	}
	doc, err := a.coord.LoadDocument(ctx)
	if err != nil {
		t.Fatalf("LoadDocument() failed: %v", err)
	}
	got, err := resolveTask(doc, task.ID[:8])
	if err != nil {
		t.Fatalf("resolveTask(%q) failed: %v", task.ID[:8], err)
	}
	if got.ID != task.ID || got.Content != "Water plants" {
		t.Errorf("resolved %+v, want %s", got, task.ID)
	}
	if err := a.coord.CompleteTask(ctx, task.ID); err != nil {
		t.Fatalf("CompleteTask() failed: %v", err)
	}
	if err := a.Close(ctx); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}

	data, err := os.ReadFile(c.Document.Path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !strings.Contains(string(data), "- [x] Water plants") {
		t.Errorf("completion was not written back:\n%s", data)
	}
}

func TestOpenApp_RequireDocument(t *testing.T) {
	_, err := openApp(context.Background(), testConfig(t, false), openOptions{Connect: true, Require: true})
	if !errors.Is(err, document.ErrNoDocument) {
		t.Errorf("openApp() err = %v, want ErrNoDocument", err)
	}
}

func TestOpenApp_DBOnly(t *testing.T) {
	ctx := context.Background()
	a, err := openApp(ctx, testConfig(t, false), openOptions{Connect: true})
	if err != nil {
		t.Fatalf("openApp() failed: %v", err)
	}
	defer a.Close(ctx)
	if a.coord.Mode() != coordinator.ModeDBOnly {
		t.Errorf("Mode() = %s, want db-only", a.coord.Mode())
	}
}

func TestOpenApp_Ephemeral(t *testing.T) {
	ctx := context.Background()
	c := testConfig(t, true)
	c.Index.Ephemeral = true

	a, err := openApp(ctx, c, openOptions{Connect: true})
	if err != nil {
		t.Fatalf("openApp() failed: %v", err)
	}
	defer a.Close(ctx)
	if a.coord.Mode() != coordinator.ModeFileOnly {
		t.Errorf("Mode() = %s, want file-only", a.coord.Mode())
	}
	if a.store.Path() != db.MemoryPath {
		t.Errorf("index path = %q", a.store.Path())
	}
}

func TestCoordinatorConfig(t *testing.T) {
	c := config.DefaultConfig()
	c.Sync.Debounce = 5 * time.Second

	fg := coordinatorConfig(c, nil, nil, false)
	if fg.Watch || fg.AutoRollover {
		t.Error("one-shot commands should not watch or roll over")
	}
	if fg.DebounceInterval != 5*time.Second || fg.Location.String() != "Australia/Sydney" {
		t.Errorf("config = %+v", fg)
	}

	bg := coordinatorConfig(c, nil, nil, true)
	if !bg.Watch || !bg.AutoRollover {
		t.Error("daemon should watch and roll over by default")
	}
}

func TestApplyFlagOverrides(t *testing.T) {
	defer func() { documentFlag, indexFlag, timezoneFlag = "", "", "" }()

	documentFlag, indexFlag, timezoneFlag = "/tmp/Other.md", db.MemoryPath, "UTC"
	c := config.DefaultConfig()
	applyFlagOverrides(c)
	if c.Document.Path != "/tmp/Other.md" || !c.Index.Ephemeral || c.Timezone != "UTC" {
		t.Errorf("config = %+v", c)
	}
}

func TestResolveTask(t *testing.T) {
	doc := markdown.ParseDocument(testDocument)
	tasks := doc.Sections[0].Schedule
	tasks[0].ID = "abc12345-0000"
	tasks[1].ID = "abd99999-0000"

	tests := []struct {
		ref  string
		want string
		err  string
	}{
		{"abc12345-0000", "abc12345-0000", ""},
		{"abc", "abc12345-0000", ""},
		{"ab", "", "matches 2 tasks"},
		{"zzz", "", "no task matches"},
		{" ", "", "required"},
	}
	for _, tt := range tests {
		t.Run(tt.ref, func(t *testing.T) {
			got, err := resolveTask(doc, tt.ref)
			if tt.err != "" {
				if err == nil || !strings.Contains(err.Error(), tt.err) {
					t.Errorf("resolveTask(%q) err = %v, want %q", tt.ref, err, tt.err)
				}
				return
			}
			if err != nil || got.ID != tt.want {
				t.Errorf("resolveTask(%q) = %v, %v", tt.ref, got, err)
			}
		})
	}
}

func TestParseTaskText_Local(t *testing.T) {
	now := time.Date(2025, 1, 10, 9, 0, 0, 0, time.UTC)
	task, err := parseTaskText(context.Background(), "Call Jim tomorrow #Home", false, now)
	if err != nil {
		t.Fatalf("parseTaskText() failed: %v", err)
	}
	in := inputFromTask(task)
	if in.Content != "Call Jim" || in.Project != "#Home" || in.DueDate != "2025-01-11" {
		t.Errorf("input = %+v", in)
	}
}

func TestCommandsRegistered(t *testing.T) {
	want := []string{"sync", "status", "show", "add", "done", "rm", "rollover", "daemon", "export", "import", "config", "bench"}
	for _, name := range want {
		cmd, _, err := rootCmd.Find([]string{name})
		if err != nil || cmd.Name() != name {
			t.Errorf("command %q not registered", name)
		}
	}
}
