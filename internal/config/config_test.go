package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"gopkg.in/natefinch/lumberjack.v2"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Timezone != "Australia/Sydney" {
		t.Errorf("Timezone = %q", cfg.Timezone)
	}
	if cfg.Sync.Debounce != 2*time.Second {
		t.Errorf("Debounce = %v", cfg.Sync.Debounce)
	}
	if !cfg.Sync.AutoRollover || !cfg.Document.Watch {
		t.Error("auto rollover and watch should default on")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config is invalid: %v", err)
	}
}

func TestWriteDefault_LoadsAsDefaults(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := WriteDefault(path); err != nil {
		t.Fatalf("WriteDefault() failed: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if diff := cmp.Diff(DefaultConfig(), cfg); diff != "" {
		t.Errorf("written defaults differ (-want +got):\n%s", diff)
	}
}

func TestLoad_ExplicitFile(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, path, `
document:
  path: ~/notes/ToDo.md
sync:
  debounce: 500ms
  check_interval: 1m
timezone: UTC
index:
  ephemeral: true
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.Sync.Debounce != 500*time.Millisecond || cfg.Sync.CheckInterval != time.Minute {
		t.Errorf("sync = %+v", cfg.Sync)
	}
	if cfg.Timezone != "UTC" || !cfg.Index.Ephemeral {
		t.Errorf("timezone=%q ephemeral=%v", cfg.Timezone, cfg.Index.Ephemeral)
	}
	if want := filepath.Join(home, "notes", "ToDo.md"); cfg.Document.Path != want {
		t.Errorf("Document.Path = %q, want %q", cfg.Document.Path, want)
	}
	// Keys absent from the file keep their defaults.
	if cfg.Dashboard.Port != 8080 {
		t.Errorf("Dashboard.Port = %d", cfg.Dashboard.Port)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, path, "sync:\n  debounce: 1s\n")

	t.Setenv("TODOMD_SYNC_DEBOUNCE", "3s")
	t.Setenv("TODOMD_DASHBOARD_PORT", "9999")
	t.Setenv("TODOMD_ASSIST_API_KEY", "sk-test")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.Sync.Debounce != 3*time.Second {
		t.Errorf("Debounce = %v, want 3s", cfg.Sync.Debounce)
	}
	if cfg.Dashboard.Port != 9999 {
		t.Errorf("Port = %d, want 9999", cfg.Dashboard.Port)
	}
	if cfg.Assist.APIKey != "sk-test" {
		t.Errorf("APIKey = %q", cfg.Assist.APIKey)
	}
}

func TestLoad_MergesGlobalAndProject(t *testing.T) {
	home := t.TempDir()
	project := t.TempDir()
	t.Setenv("HOME", home)
	t.Chdir(project)

	writeFile(t, filepath.Join(home, DirName, "config.yaml"), "timezone: UTC\ndashboard:\n  port: 7000\n")
	writeFile(t, filepath.Join(project, DirName, "config.yaml"), "dashboard:\n  port: 7001\n")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.Timezone != "UTC" {
		t.Errorf("global setting lost: timezone = %q", cfg.Timezone)
	}
	if cfg.Dashboard.Port != 7001 {
		t.Errorf("project file should win: port = %d", cfg.Dashboard.Port)
	}
}

func TestLoad_Errors(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name    string
		content string
	}{
		{"bad timezone", "timezone: Mars/Olympus\n"},
		{"negative debounce", "sync:\n  debounce: -1s\n"},
		{"bad port", "dashboard:\n  port: 70000\n"},
		{"no index path", "index:\n  path: \"\"\n"},
		{"bad yaml", "sync: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, strings.ReplaceAll(tt.name, " ", "_")+".yaml")
			writeFile(t, path, tt.content)
			if _, err := Load(path); err == nil {
				t.Error("Load() should fail")
			}
		})
	}

	if _, err := Load(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("Load() of a missing explicit file should fail")
	}
}

func TestRender(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Assist.APIKey = "sk-secret"

	out, err := Render(cfg)
	if err != nil {
		t.Fatalf("Render() failed: %v", err)
	}
	text := string(out)
	if strings.Contains(text, "sk-secret") {
		t.Error("Render() leaked the API key")
	}
	for _, want := range []string{"debounce: 2s", "check_interval: 30s", "timezone: Australia/Sydney"} {
		if !strings.Contains(text, want) {
			t.Errorf("Render() missing %q:\n%s", want, text)
		}
	}
	if cfg.Assist.APIKey != "sk-secret" {
		t.Error("Render() modified its argument")
	}
}

func TestLoadProjects(t *testing.T) {
	dir := t.TempDir()

	t.Run("missing file", func(t *testing.T) {
		projects, err := LoadProjects(filepath.Join(dir, "none.toml"))
		if err != nil || projects != nil {
			t.Errorf("LoadProjects() = %v, %v", projects, err)
		}
	})

	t.Run("declared projects", func(t *testing.T) {
		path := filepath.Join(dir, "projects.toml")
		writeFile(t, path, `
[[project]]
name = "Data Tables"
tag = "#DataTables"
color = "#4f46e5"

[[project]]
name = "Home"

[[project]]
tag = "DataTables"
`)
		projects, err := LoadProjects(path)
		if err != nil {
			t.Fatalf("LoadProjects() failed: %v", err)
		}
		if len(projects) != 2 {
			t.Fatalf("got %d projects, want 2 (duplicate tag folded): %+v", len(projects), projects)
		}
		if projects[0].Tag != "#DataTables" || projects[0].Name != "Data Tables" || projects[0].Color != "#4f46e5" {
			t.Errorf("projects[0] = %+v", projects[0])
		}
		if projects[1].Tag != "#Home" || projects[1].ID == "" {
			t.Errorf("projects[1] = %+v", projects[1])
		}
	})

	t.Run("unknown key", func(t *testing.T) {
		path := filepath.Join(dir, "typo.toml")
		writeFile(t, path, "[[project]]\nnmae = \"x\"\n")
		if _, err := LoadProjects(path); err == nil {
			t.Error("LoadProjects() should reject unknown keys")
		}
	})
}

func TestLogOutput(t *testing.T) {
	cfg := DefaultConfig()
	w := cfg.LogOutput()
	if _, ok := w.(*lumberjack.Logger); ok {
		t.Error("stderr expected without log.file")
	}
	_ = w.Close()

	cfg.Log.File = filepath.Join(t.TempDir(), "logs", "todomd.log")
	w = cfg.LogOutput()
	defer w.Close()
	lj, ok := w.(*lumberjack.Logger)
	if !ok {
		t.Fatalf("LogOutput() = %T, want *lumberjack.Logger", w)
	}
	if lj.MaxSize != 10 {
		t.Errorf("MaxSize = %d", lj.MaxSize)
	}

	NewLogger(w, "test").Println("hello")
	data, err := os.ReadFile(cfg.Log.File)
	if err != nil {
		t.Fatalf("log file not written: %v", err)
	}
	if !strings.Contains(string(data), "[test] ") {
		t.Errorf("log line = %q", data)
	}
}
