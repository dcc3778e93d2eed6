package document

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestFilePicker_Pick(t *testing.T) {
	dir := t.TempDir()
	existing := filepath.Join(dir, "ToDo.md")
	if err := os.WriteFile(existing, []byte("# hi\n"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	tests := []struct {
		name    string
		picker  FilePicker
		wantErr error
	}{
		{"existing file", FilePicker{Path: existing}, nil},
		{"empty path", FilePicker{}, ErrNoDocument},
		{"missing file", FilePicker{Path: filepath.Join(dir, "missing.md")}, ErrNoDocument},
		{"directory", FilePicker{Path: dir}, ErrNoDocument},
		{"create missing", FilePicker{Path: filepath.Join(dir, "sub", "new.md"), Create: true}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, err := tt.picker.Pick(context.Background())
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Pick() err = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Pick() failed: %v", err)
			}
			if !filepath.IsAbs(h.Name()) {
				t.Errorf("Name() = %q, want absolute path", h.Name())
			}
		})
	}
}

func TestFileHandle_ReadWriteSignal(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "ToDo.md")
	if err := os.WriteFile(path, []byte("one"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	h := NewFileHandle(path)

	first, err := h.Signal(ctx)
	if err != nil {
		t.Fatalf("Signal() failed: %v", err)
	}
	again, _ := h.Signal(ctx)
	if again.Changed(first) {
		t.Error("signal changed without a write")
	}

	if err := h.Write(ctx, []byte("two, longer")); err != nil {
		t.Fatalf("Write() failed: %v", err)
	}
	data, err := h.Read(ctx)
	if err != nil {
		t.Fatalf("Read() failed: %v", err)
	}
	if string(data) != "two, longer" {
		t.Errorf("Read() = %q", data)
	}

	second, _ := h.Signal(ctx)
	if !second.Changed(first) {
		t.Error("signal did not change after a write")
	}
	if second.Size != int64(len("two, longer")) {
		t.Errorf("Size = %d", second.Size)
	}

	// No temp files are left next to the document.
	entries, _ := os.ReadDir(filepath.Dir(path))
	if len(entries) != 1 {
		t.Errorf("directory has %d entries, want 1", len(entries))
	}
}

func TestFileHandle_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	h := NewFileHandle(filepath.Join(t.TempDir(), "x.md"))
	if err := h.Write(ctx, []byte("x")); !errors.Is(err, context.Canceled) {
		t.Errorf("Write() err = %v, want context.Canceled", err)
	}
}

func TestSignal_TouchIsNotAChange(t *testing.T) {
	a := SignalOf([]byte("same"), time.Unix(1, 0))
	b := SignalOf([]byte("same"), time.Unix(2, 0))
	if b.Changed(a) {
		t.Error("identical content with a new mtime reported as changed")
	}
	if (Signal{}).IsZero() == false {
		t.Error("zero Signal not reported as zero")
	}
}

func TestMemoryHandle(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryHandle("mem", []byte("a"))
	if err := m.Write(ctx, []byte("b")); err != nil {
		t.Fatalf("Write() failed: %v", err)
	}
	data, _ := m.Read(ctx)
	if string(data) != "b" || m.Writes() != 1 {
		t.Errorf("data=%q writes=%d", data, m.Writes())
	}

	if _, err := (StaticPicker{}).Pick(ctx); !errors.Is(err, ErrNoDocument) {
		t.Errorf("empty StaticPicker err = %v", err)
	}
}

func TestWatcher_StartStop(t *testing.T) {
	w, err := NewWatcher(filepath.Join(t.TempDir(), "ToDo.md"))
	if err != nil {
		t.Fatalf("NewWatcher() failed: %v", err)
	}
	if w.IsRunning() {
		t.Error("new watcher should not be running")
	}
	if err := w.Start(); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	if err := w.Start(); err == nil {
		t.Error("second Start() should fail")
	}
	if !w.IsRunning() {
		t.Error("watcher should be running after Start()")
	}
	if err := w.Stop(); err != nil {
		t.Fatalf("Stop() failed: %v", err)
	}
	if err := w.Stop(); err != nil {
		t.Errorf("second Stop() failed: %v", err)
	}
}

func TestWatcher_DetectsDocumentWrites(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ToDo.md")
	if err := os.WriteFile(path, []byte("x"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	w, err := NewWatcher(path)
	if err != nil {
		t.Fatalf("NewWatcher() failed: %v", err)
	}
	if err := w.Start(); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	defer w.Stop()

	// Unrelated files in the same directory are ignored.
	if err := os.WriteFile(filepath.Join(dir, "other.md"), []byte("y"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if err := NewFileHandle(path).Write(context.Background(), []byte("changed")); err != nil {
		t.Fatalf("Write: %v", err)
	}

	timeout := time.After(2 * time.Second)
	for {
		select {
		case ev := <-w.Events():
			if filepath.Base(ev.Path) != "ToDo.md" {
				t.Fatalf("event for unrelated file %s", ev.Path)
			}
			if ev.Op == OpWrite {
				return
			}
		case err := <-w.Errors():
			t.Fatalf("watcher error: %v", err)
		case <-timeout:
			t.Fatal("timed out waiting for a write event")
		}
	}
}
