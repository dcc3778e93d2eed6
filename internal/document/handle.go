// Package document binds the coordinator to the ToDo.md file.
//
// A Picker acquires a Handle; the Handle reads, writes and fingerprints the
// document. Writes go through a temp file and rename so a crash never leaves
// a half-written document behind.
package document

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/natefinch/atomic"
)

// ErrNoDocument is returned when no document is available to bind to.
var ErrNoDocument = errors.New("no document")

// Picker acquires a document handle, like a file-open dialog would.
type Picker interface {
	Pick(ctx context.Context) (Handle, error)
}

// Handle is a connected document.
type Handle interface {
	Name() string
	Read(ctx context.Context) ([]byte, error)
	Write(ctx context.Context, data []byte) error
	Signal(ctx context.Context) (Signal, error)
}

// Signal fingerprints the document so external edits can be detected.
type Signal struct {
	Hash    uint64    `json:"hash"`
	ModTime time.Time `json:"mod_time"`
	Size    int64     `json:"size"`
}

// SignalOf builds a signal from content and a modification time.
func SignalOf(data []byte, modTime time.Time) Signal {
	return Signal{
		Hash:    xxhash.Sum64(data),
		ModTime: modTime,
		Size:    int64(len(data)),
	}
}

// Changed reports whether s differs from prev. The content hash decides;
// a touched file with identical bytes is not a change.
func (s Signal) Changed(prev Signal) bool {
	return s.Hash != prev.Hash || s.Size != prev.Size
}

// IsZero reports whether no observation has been made yet.
func (s Signal) IsZero() bool {
	return s.Hash == 0 && s.Size == 0 && s.ModTime.IsZero()
}

// FilePicker binds to a document on the local filesystem.
type FilePicker struct {
	Path string

	// Create makes Pick create an empty document when none exists.
	Create bool
}

// Pick returns a handle for p.Path.
func (p FilePicker) Pick(ctx context.Context) (Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if p.Path == "" {
		return nil, fmt.Errorf("%w: no path configured", ErrNoDocument)
	}

	path, err := filepath.Abs(p.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", p.Path, err)
	}

	info, err := os.Stat(path)
	switch {
	case errors.Is(err, fs.ErrNotExist) && p.Create:
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create document directory: %w", err)
		}
		if err := atomic.WriteFile(path, bytes.NewReader(nil)); err != nil {
			return nil, fmt.Errorf("failed to create document: %w", err)
		}
	case errors.Is(err, fs.ErrNotExist):
		return nil, fmt.Errorf("%w: %s does not exist", ErrNoDocument, path)
	case err != nil:
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	case info.IsDir():
		return nil, fmt.Errorf("%w: %s is a directory", ErrNoDocument, path)
	}

	return &FileHandle{path: path}, nil
}

// FileHandle is a Handle backed by a regular file.
type FileHandle struct {
	path string
}

// NewFileHandle returns a handle for path without checking that it exists.
func NewFileHandle(path string) *FileHandle {
	return &FileHandle{path: path}
}

// Name returns the absolute path of the document.
func (h *FileHandle) Name() string {
	return h.path
}

// Read returns the whole document.
func (h *FileHandle) Read(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(h.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read document: %w", err)
	}
	return data, nil
}

// Write replaces the document atomically.
func (h *FileHandle) Write(ctx context.Context, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := atomic.WriteFile(h.path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to write document: %w", err)
	}
	return nil
}

// Signal fingerprints the current file contents.
func (h *FileHandle) Signal(ctx context.Context) (Signal, error) {
	if err := ctx.Err(); err != nil {
		return Signal{}, err
	}
	info, err := os.Stat(h.path)
	if err != nil {
		return Signal{}, fmt.Errorf("failed to stat document: %w", err)
	}
	data, err := os.ReadFile(h.path)
	if err != nil {
		return Signal{}, fmt.Errorf("failed to read document: %w", err)
	}
	return SignalOf(data, info.ModTime()), nil
}
