// Package migrate moves to-do data between the index, JSONL snapshots and
// Markdown documents.
//
// A snapshot is JSON Lines: a header record carrying the project list,
// then one record per daily section in document order.
package migrate

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/natefinch/atomic"

	"github.com/todomd/todomd/internal/markdown"
	"github.com/todomd/todomd/internal/schema"
)

// SnapshotVersion is written in every header record.
const SnapshotVersion = 1

// Record kinds.
const (
	KindHeader  = "header"
	KindSection = "section"
)

// Record is one line of a snapshot.
type Record struct {
	Kind       string               `json:"kind"`
	Version    int                  `json:"version,omitempty"`
	ExportedAt *time.Time           `json:"exported_at,omitempty"`
	Projects   []schema.Project     `json:"projects,omitempty"`
	Section    *schema.DailySection `json:"section,omitempty"`
}

// Loader is anything that can produce the whole document, such as the
// index or the coordinator.
type Loader interface {
	LoadDocument(ctx context.Context) (*schema.ParsedDocument, error)
}

// Replacer is anything that can take a whole document, such as the index.
type Replacer interface {
	ReplaceDocument(ctx context.Context, doc *schema.ParsedDocument) error
}

// Result contains statistics about an export, import or conversion
type Result struct {
	Sections      int
	Tasks         int
	Notes         int
	Blockers      int
	Projects      int
	BytesWritten  int
	BackupCreated string
}

func (r *Result) count(doc *schema.ParsedDocument) {
	r.Projects = len(doc.Projects)
	for _, s := range doc.Sections {
		r.Sections++
		r.Tasks += s.TaskCount()
		r.Notes += len(s.Notes)
		r.Blockers += len(s.Blockers)
	}
}

// WriteJSONL writes doc as a snapshot to w.
func WriteJSONL(w io.Writer, doc *schema.ParsedDocument, now time.Time) error {
	enc := json.NewEncoder(w)
	if err := enc.Encode(Record{Kind: KindHeader, Version: SnapshotVersion, ExportedAt: &now, Projects: doc.Projects}); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for _, s := range doc.Sections {
		if err := enc.Encode(Record{Kind: KindSection, Section: s}); err != nil {
			return fmt.Errorf("failed to write section %s: %w", s.Date, err)
		}
	}
	return nil
}

// ReadJSONL reads a snapshot. Every task is validated; the first invalid
// record fails the read with its line number.
func ReadJSONL(r io.Reader) (*schema.ParsedDocument, error) {
	doc := &schema.ParsedDocument{}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var rec Record
		if err := json.Unmarshal(line, &rec); err != nil {
			return nil, fmt.Errorf("invalid JSON at line %d: %w", lineNum, err)
		}
		switch rec.Kind {
		case KindHeader:
			if rec.Version > SnapshotVersion {
				return nil, fmt.Errorf("line %d: snapshot version %d is newer than %d", lineNum, rec.Version, SnapshotVersion)
			}
			doc.Projects = schema.MergeProjects(doc.Projects, rec.Projects...)
		case KindSection:
			if err := checkSection(rec.Section); err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNum, err)
			}
			doc.Sections = append(doc.Sections, rec.Section)
		default:
			return nil, fmt.Errorf("line %d: unknown record kind %q", lineNum, rec.Kind)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}
	return doc, nil
}

func checkSection(s *schema.DailySection) error {
	if s == nil {
		return errors.New("section record without section")
	}
	if !schema.IsDate(s.Date) {
		return fmt.Errorf("section date %q is not YYYY-MM-DD", s.Date)
	}
	if s.ID == "" {
		s.ID = schema.NewID()
	}
	for _, l := range schema.TaskLists {
		for _, t := range *s.List(l) {
			if t == nil {
				return fmt.Errorf("%s: null task in %s", s.Date, l)
			}
			if err := t.Validate(); err != nil {
				return fmt.Errorf("%s: task %s: %w", s.Date, t.ID, err)
			}
		}
	}
	return nil
}

// FromJSONL reads a snapshot file.
func FromJSONL(path string) (*schema.ParsedDocument, error) {
	// #nosec G304 - controlled path from CLI
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open JSONL file: %w", err)
	}
	defer file.Close()
	return ReadJSONL(file)
}

// Export writes everything src holds to a snapshot file at path.
func Export(ctx context.Context, src Loader, path string) (*Result, error) {
	doc, err := src.LoadDocument(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load document: %w", err)
	}

	var buf bytes.Buffer
	if err := WriteJSONL(&buf, doc, time.Now()); err != nil {
		return nil, err
	}
	result := &Result{BytesWritten: buf.Len()}
	result.count(doc)

	if err := atomic.WriteFile(path, &buf); err != nil {
		return nil, fmt.Errorf("failed to write %s: %w", path, err)
	}
	return result, nil
}

// Import replaces everything dst holds with the snapshot at path.
func Import(ctx context.Context, dst Replacer, path string) (*Result, error) {
	doc, err := FromJSONL(path)
	if err != nil {
		return nil, err
	}
	if err := dst.ReplaceDocument(ctx, doc); err != nil {
		return nil, fmt.Errorf("failed to import snapshot: %w", err)
	}
	result := &Result{}
	result.count(doc)
	return result, nil
}

// ConvertOptions configures snapshot to Markdown conversion
type ConvertOptions struct {
	FromJSONL  string // Input snapshot
	ToMarkdown string // Output document
	DryRun     bool   // Preview without writing
	Backup     bool   // Copy an existing output document aside first
}

// Convert renders a snapshot as a Markdown document.
func Convert(ctx context.Context, opts ConvertOptions) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	doc, err := FromJSONL(opts.FromJSONL)
	if err != nil {
		return nil, err
	}

	text := markdown.SerializeDocument(doc.Sections, doc.Projects)
	result := &Result{BytesWritten: len(text)}
	result.count(doc)
	if opts.DryRun {
		return result, nil
	}

	if opts.Backup {
		backup, err := BackupFile(opts.ToMarkdown, time.Now())
		if err != nil {
			return nil, err
		}
		result.BackupCreated = backup
	}
	if err := atomic.WriteFile(opts.ToMarkdown, strings.NewReader(text)); err != nil {
		return nil, fmt.Errorf("failed to write %s: %w", opts.ToMarkdown, err)
	}
	return result, nil
}

// BackupFile copies path to path.backup.<timestamp> and returns the copy's
// name. A missing path is not an error and yields "".
func BackupFile(path string, now time.Time) (string, error) {
	// #nosec G304 - controlled path from CLI
	input, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read %s for backup: %w", path, err)
	}

	backupPath := path + ".backup." + now.Format("20060102-150405")
	if err := os.WriteFile(backupPath, input, 0600); err != nil {
		return "", fmt.Errorf("failed to create backup: %w", err)
	}
	return backupPath, nil
}
