package db

import (
	"context"
	"fmt"

	"github.com/todomd/todomd/internal/schema"
)

func insertNote(ctx context.Context, q querier, sectionID string, n *schema.Note) error {
	if n.ID == "" {
		n.ID = schema.NewID()
	}
	_, err := q.ExecContext(ctx, `
	INSERT INTO notes (id, section_id, position, content, timestamp)
	VALUES (?, ?, (SELECT COALESCE(MAX(position), -1) + 1 FROM notes WHERE section_id = ?), ?, ?)
	`, n.ID, sectionID, sectionID, n.Content, formatTime(n.Timestamp))
	if err != nil {
		return fmt.Errorf("failed to insert note: %w", err)
	}
	return nil
}

func insertBlocker(ctx context.Context, q querier, sectionID string, b *schema.Blocker) error {
	if b.ID == "" {
		b.ID = schema.NewID()
	}
	_, err := q.ExecContext(ctx, `
	INSERT INTO blockers (id, section_id, position, content, next_step, created_at)
	VALUES (?, ?, (SELECT COALESCE(MAX(position), -1) + 1 FROM blockers WHERE section_id = ?), ?, ?, ?)
	`, b.ID, sectionID, sectionID, b.Content, b.NextStep, formatTime(b.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to insert blocker: %w", err)
	}
	return nil
}

// InsertNote appends a note to the section for date.
func (db *DB) InsertNote(ctx context.Context, date string, n *schema.Note) error {
	return db.inTx(ctx, func(q querier) error {
		sectionID, err := ensureSection(ctx, q, date, "")
		if err != nil {
			return err
		}
		return insertNote(ctx, q, sectionID, n)
	})
}

// InsertBlocker appends a blocker to the section for date.
func (db *DB) InsertBlocker(ctx context.Context, date string, b *schema.Blocker) error {
	return db.inTx(ctx, func(q querier) error {
		sectionID, err := ensureSection(ctx, q, date, "")
		if err != nil {
			return err
		}
		return insertBlocker(ctx, q, sectionID, b)
	})
}

func (db *DB) loadNotes(ctx context.Context, sectionID string) ([]*schema.Note, error) {
	rows, err := db.conn.QueryContext(ctx,
		"SELECT id, content, timestamp FROM notes WHERE section_id = ? ORDER BY position ASC", sectionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query notes: %w", err)
	}
	defer rows.Close()

	var notes []*schema.Note
	for rows.Next() {
		var n schema.Note
		var ts string
		if err := rows.Scan(&n.ID, &n.Content, &ts); err != nil {
			return nil, fmt.Errorf("failed to scan note: %w", err)
		}
		n.Timestamp = parseTime(ts)
		notes = append(notes, &n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating notes: %w", err)
	}
	return notes, nil
}

func (db *DB) loadBlockers(ctx context.Context, sectionID string) ([]*schema.Blocker, error) {
	rows, err := db.conn.QueryContext(ctx,
		"SELECT id, content, next_step, created_at FROM blockers WHERE section_id = ? ORDER BY position ASC", sectionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query blockers: %w", err)
	}
	defer rows.Close()

	var blockers []*schema.Blocker
	for rows.Next() {
		var b schema.Blocker
		var created string
		if err := rows.Scan(&b.ID, &b.Content, &b.NextStep, &created); err != nil {
			return nil, fmt.Errorf("failed to scan blocker: %w", err)
		}
		b.CreatedAt = parseTime(created)
		blockers = append(blockers, &b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating blockers: %w", err)
	}
	return blockers, nil
}
