package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/todomd/todomd/internal/markdown"
	"github.com/todomd/todomd/internal/schema"
)

// ReplaceDocument overwrites every section in the index with doc.
//
// Sections that share a date are folded into the first one, since the
// index keys sections by date. Projects are merged, never dropped.
//
// A task in doc that reads back from the same line as an indexed task in
// the same date and list takes over that task's identity: its id,
// timestamps, rollover origin, previous list and in-progress status. The
// tasks of doc are updated in place.
func (db *DB) ReplaceDocument(ctx context.Context, doc *schema.ParsedDocument) error {
	return db.inTx(ctx, func(q querier) error {
		prior, err := indexedTasks(ctx, q)
		if err != nil {
			return err
		}

		for _, table := range []string{"tasks", "notes", "blockers", "sections"} {
			if _, err := q.ExecContext(ctx, "DELETE FROM "+table); err != nil {
				return fmt.Errorf("failed to clear %s: %w", table, err)
			}
		}

		for _, s := range doc.Sections {
			if err := insertSection(ctx, q, s, prior); err != nil {
				return err
			}
		}
		for _, p := range doc.Projects {
			if err := upsertProject(ctx, q, p); err != nil {
				return err
			}
		}
		return nil
	})
}

// identityKey locates a task by what the document shows of it.
type identityKey struct {
	date string
	list schema.ListType
	line string
}

// taskQueue holds indexed tasks that share an identityKey, in document order.
type taskQueue map[identityKey][]*TaskRecord

func indexedTasks(ctx context.Context, q querier) (taskQueue, error) {
	rows, err := q.QueryContext(ctx, `
	SELECT `+taskColumns+`
	FROM tasks t JOIN sections s ON s.id = t.section_id
	ORDER BY s.position ASC, t.position ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query indexed tasks: %w", err)
	}
	records, err := scanTasks(rows)
	rows.Close()
	if err != nil {
		return nil, err
	}

	queue := make(taskQueue, len(records))
	for _, r := range records {
		k := identityKey{date: r.Date, list: r.List, line: markdown.CanonicalLine(r.Task)}
		queue[k] = append(queue[k], r)
	}
	return queue, nil
}

// take removes and returns the first indexed task matching t, or nil.
func (tq taskQueue) take(date string, list schema.ListType, t *schema.Task) *TaskRecord {
	k := identityKey{date: date, list: list, line: markdown.CanonicalLine(t)}
	records := tq[k]
	if len(records) == 0 {
		return nil
	}
	tq[k] = records[1:]
	return records[0]
}

// adopt copies the identity of prev onto t. Fields the line shows stay
// as parsed.
func adopt(t, prev *schema.Task) {
	t.ID = prev.ID
	t.CreatedAt = prev.CreatedAt
	t.UpdatedAt = prev.UpdatedAt
	t.RolledFromDate = prev.RolledFromDate
	switch {
	case t.Status == schema.StatusPending && prev.Status == schema.StatusInProgress:
		t.Status = schema.StatusInProgress
	case t.Status == schema.StatusCompleted && prev.CompletedAt != nil:
		completed := *prev.CompletedAt
		t.CompletedAt = &completed
	}
}

func insertSection(ctx context.Context, q querier, s *schema.DailySection, prior taskQueue) error {
	sectionID, err := ensureSection(ctx, q, s.Date, s.ID)
	if err != nil {
		return err
	}

	for _, l := range schema.TaskLists {
		for _, t := range *s.List(l) {
			prev := prior.take(s.Date, l, t)
			if prev != nil {
				adopt(t, prev.Task)
			}
			if err := insertTask(ctx, q, sectionID, l, t); err != nil {
				return err
			}
			if prev != nil && prev.PreviousList != "" {
				if _, err := q.ExecContext(ctx, "UPDATE tasks SET previous_list = ? WHERE id = ?", string(prev.PreviousList), t.ID); err != nil {
					return fmt.Errorf("failed to restore previous list of %s: %w", t.ID, err)
				}
			}
		}
	}
	for _, n := range s.Notes {
		if err := insertNote(ctx, q, sectionID, n); err != nil {
			return err
		}
	}
	for _, b := range s.Blockers {
		if err := insertBlocker(ctx, q, sectionID, b); err != nil {
			return err
		}
	}
	return nil
}

// ensureSection returns the id of the section for date, creating it at the
// end of the document when missing.
func ensureSection(ctx context.Context, q querier, date, id string) (string, error) {
	if !schema.IsDate(date) {
		return "", fmt.Errorf("invalid section date %q", date)
	}

	var existing string
	err := q.QueryRowContext(ctx, "SELECT id FROM sections WHERE date = ?", date).Scan(&existing)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("failed to look up section %s: %w", date, err)
	}

	if id == "" {
		id = schema.NewID()
	}
	_, err = q.ExecContext(ctx, `
	INSERT INTO sections (id, date, position)
	VALUES (?, ?, (SELECT COALESCE(MAX(position), -1) + 1 FROM sections))
	`, id, date)
	if err != nil {
		return "", fmt.Errorf("failed to create section %s: %w", date, err)
	}
	return id, nil
}

// EnsureSection creates an empty section for date if none exists.
func (db *DB) EnsureSection(ctx context.Context, date string) error {
	_, err := ensureSection(ctx, db.conn, date, "")
	return err
}

// SectionDates returns every section date in document order.
func (db *DB) SectionDates(ctx context.Context) ([]string, error) {
	rows, err := db.conn.QueryContext(ctx, "SELECT date FROM sections ORDER BY position ASC")
	if err != nil {
		return nil, fmt.Errorf("failed to list sections: %w", err)
	}
	defer rows.Close()

	var dates []string
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, fmt.Errorf("failed to scan section date: %w", err)
		}
		dates = append(dates, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sections: %w", err)
	}
	return dates, nil
}

// GetSectionByDate loads one section with all its lists.
// Returns ErrNotFound if no section exists for date.
func (db *DB) GetSectionByDate(ctx context.Context, date string) (*schema.DailySection, error) {
	var id string
	err := db.conn.QueryRowContext(ctx, "SELECT id FROM sections WHERE date = ?", date).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get section %s: %w", date, err)
	}
	return db.loadSection(ctx, id, date)
}

// LatestSectionBefore returns the most recent section dated strictly
// before date. Returns ErrNotFound if there is none.
func (db *DB) LatestSectionBefore(ctx context.Context, date string) (*schema.DailySection, error) {
	var id, found string
	err := db.conn.QueryRowContext(ctx,
		"SELECT id, date FROM sections WHERE date < ? ORDER BY date DESC LIMIT 1", date,
	).Scan(&id, &found)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find section before %s: %w", date, err)
	}
	return db.loadSection(ctx, id, found)
}

// LoadDocument reads the whole index back as a document.
func (db *DB) LoadDocument(ctx context.Context) (*schema.ParsedDocument, error) {
	rows, err := db.conn.QueryContext(ctx, "SELECT id, date FROM sections ORDER BY position ASC")
	if err != nil {
		return nil, fmt.Errorf("failed to list sections: %w", err)
	}

	type ref struct{ id, date string }
	var refs []ref
	for rows.Next() {
		var r ref
		if err := rows.Scan(&r.id, &r.date); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan section: %w", err)
		}
		refs = append(refs, r)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sections: %w", err)
	}

	doc := &schema.ParsedDocument{Sections: make([]*schema.DailySection, 0, len(refs))}
	for _, r := range refs {
		s, err := db.loadSection(ctx, r.id, r.date)
		if err != nil {
			return nil, err
		}
		doc.Sections = append(doc.Sections, s)
	}

	if doc.Projects, err = db.ListProjects(ctx); err != nil {
		return nil, err
	}
	return doc, nil
}

func (db *DB) loadSection(ctx context.Context, id, date string) (*schema.DailySection, error) {
	s := &schema.DailySection{ID: id, Date: date}

	rows, err := db.conn.QueryContext(ctx, `
	SELECT `+taskColumns+`
	FROM tasks t JOIN sections s ON s.id = t.section_id
	WHERE t.section_id = ?
	ORDER BY t.position ASC
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query tasks for %s: %w", date, err)
	}
	records, err := scanTasks(rows)
	rows.Close()
	if err != nil {
		return nil, err
	}
	for _, r := range records {
		if err := s.Append(r.List, r.Task); err != nil {
			return nil, fmt.Errorf("task %s: %w", r.Task.ID, err)
		}
	}

	if s.Notes, err = db.loadNotes(ctx, id); err != nil {
		return nil, err
	}
	if s.Blockers, err = db.loadBlockers(ctx, id); err != nil {
		return nil, err
	}
	return s, nil
}
