package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/todomd/todomd/internal/schema"
)

// TaskRecord is a task together with its location in the document.
type TaskRecord struct {
	Task *schema.Task
	Date string
	List schema.ListType

	// PreviousList is the open list a completed task came from.
	PreviousList schema.ListType
}

// Placement pairs a task with the list it should be inserted into.
type Placement struct {
	Task *schema.Task
	List schema.ListType
}

const taskColumns = `t.id, t.content, t.status, t.project, t.assignee, t.due_date, t.priority,
	t.created_at, t.updated_at, t.completed_at, t.rolled_from_date,
	t.list, t.previous_list, s.date`

// scanTasks reads rows selected with taskColumns.
func scanTasks(rows *sql.Rows) ([]*TaskRecord, error) {
	var records []*TaskRecord

	for rows.Next() {
		r, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tasks: %w", err)
	}
	return records, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTask(row scanner) (*TaskRecord, error) {
	var (
		task                 schema.Task
		status, priority     string
		createdAt, updatedAt string
		completedAt          sql.NullString
		list, previous       string
		date                 string
	)
	err := row.Scan(
		&task.ID,
		&task.Content,
		&status,
		&task.Project,
		&task.Assignee,
		&task.DueDate,
		&priority,
		&createdAt,
		&updatedAt,
		&completedAt,
		&task.RolledFromDate,
		&list,
		&previous,
		&date,
	)
	if err != nil {
		return nil, err
	}

	task.Status = schema.Status(status)
	task.Priority = schema.Priority(priority)
	task.CreatedAt = parseTime(createdAt)
	task.UpdatedAt = parseTime(updatedAt)
	task.CompletedAt = nullStringToTime(completedAt)

	return &TaskRecord{
		Task:         &task,
		Date:         date,
		List:         schema.ListType(list),
		PreviousList: schema.ListType(previous),
	}, nil
}

func insertTask(ctx context.Context, q querier, sectionID string, list schema.ListType, t *schema.Task) error {
	if !list.IsTaskList() {
		return fmt.Errorf("%q is not a task list", list)
	}
	if err := t.Validate(); err != nil {
		return fmt.Errorf("invalid task: %w", err)
	}

	_, err := q.ExecContext(ctx, `
	INSERT INTO tasks (
		id, section_id, list, position, content, status, project, assignee,
		due_date, priority, created_at, updated_at, completed_at, rolled_from_date
	) VALUES (
		?, ?, ?,
		(SELECT COALESCE(MAX(position), -1) + 1 FROM tasks WHERE section_id = ? AND list = ?),
		?, ?, ?, ?, ?, ?, ?, ?, ?, ?
	)`,
		t.ID, sectionID, string(list),
		sectionID, string(list),
		t.Content,
		string(t.Status),
		t.Project,
		t.Assignee,
		t.DueDate,
		string(t.Priority),
		formatTime(t.CreatedAt),
		formatTime(t.UpdatedAt),
		timeToNullString(t.CompletedAt),
		t.RolledFromDate,
	)
	if err != nil {
		return fmt.Errorf("failed to insert task %s: %w", t.ID, err)
	}
	return nil
}

// InsertTask appends t to list in the section for date, creating the
// section when needed.
func (db *DB) InsertTask(ctx context.Context, date string, list schema.ListType, t *schema.Task) error {
	return db.inTx(ctx, func(q querier) error {
		sectionID, err := ensureSection(ctx, q, date, "")
		if err != nil {
			return err
		}
		return insertTask(ctx, q, sectionID, list, t)
	})
}

// GetTask loads a task and its location. Returns ErrNotFound if missing.
func (db *DB) GetTask(ctx context.Context, id string) (*TaskRecord, error) {
	row := db.conn.QueryRowContext(ctx, `
	SELECT `+taskColumns+`
	FROM tasks t JOIN sections s ON s.id = t.section_id
	WHERE t.id = ?
	`, id)

	r, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get task %s: %w", id, err)
	}
	return r, nil
}

// UpdateTask writes every field of t except its location.
func (db *DB) UpdateTask(ctx context.Context, t *schema.Task) error {
	return updateTask(ctx, db.conn, t)
}

func updateTask(ctx context.Context, q querier, t *schema.Task) error {
	if err := t.Validate(); err != nil {
		return fmt.Errorf("invalid task: %w", err)
	}

	res, err := q.ExecContext(ctx, `
	UPDATE tasks SET
		content = ?, status = ?, project = ?, assignee = ?, due_date = ?,
		priority = ?, updated_at = ?, completed_at = ?, rolled_from_date = ?
	WHERE id = ?
	`,
		t.Content,
		string(t.Status),
		t.Project,
		t.Assignee,
		t.DueDate,
		string(t.Priority),
		formatTime(t.UpdatedAt),
		timeToNullString(t.CompletedAt),
		t.RolledFromDate,
		t.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update task %s: %w", t.ID, err)
	}
	return requireRow(res, t.ID)
}

// MoveTask relocates a task to the end of list within its section and
// remembers the list it left.
func (db *DB) MoveTask(ctx context.Context, id string, list schema.ListType) error {
	return moveTask(ctx, db.conn, id, list)
}

func moveTask(ctx context.Context, q querier, id string, list schema.ListType) error {
	if !list.IsTaskList() {
		return fmt.Errorf("%q is not a task list", list)
	}

	res, err := q.ExecContext(ctx, `
	UPDATE tasks SET
		previous_list = list,
		list = ?,
		position = (SELECT COALESCE(MAX(o.position), -1) + 1 FROM tasks o
		            WHERE o.section_id = tasks.section_id AND o.list = ?)
	WHERE id = ? AND list != ?
	`, string(list), string(list), id, string(list))
	if err != nil {
		return fmt.Errorf("failed to move task %s: %w", id, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to move task %s: %w", id, err)
	}
	if n == 0 {
		// Either missing or already in place.
		var exists int
		err := q.QueryRowContext(ctx, "SELECT 1 FROM tasks WHERE id = ?", id).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to look up task %s: %w", id, err)
		}
	}
	return nil
}

// UpdateAndMoveTask writes the fields of t and relocates it to list in one
// transaction. Either both happen or neither does.
func (db *DB) UpdateAndMoveTask(ctx context.Context, t *schema.Task, list schema.ListType) error {
	return db.inTx(ctx, func(q querier) error {
		if err := updateTask(ctx, q, t); err != nil {
			return err
		}
		return moveTask(ctx, q, t.ID, list)
	})
}

// DeleteTask removes a task. Returns ErrNotFound if it does not exist.
func (db *DB) DeleteTask(ctx context.Context, id string) error {
	res, err := db.conn.ExecContext(ctx, "DELETE FROM tasks WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete task %s: %w", id, err)
	}
	return requireRow(res, id)
}

// ApplyRollover inserts carried tasks into the section for date, removes
// the originals and records date as the last rollover, atomically.
func (db *DB) ApplyRollover(ctx context.Context, date string, carried []Placement, removeIDs []string, metaKey string) error {
	return db.inTx(ctx, func(q querier) error {
		sectionID, err := ensureSection(ctx, q, date, "")
		if err != nil {
			return err
		}
		for _, p := range carried {
			if err := insertTask(ctx, q, sectionID, p.List, p.Task); err != nil {
				return err
			}
		}
		for _, id := range removeIDs {
			if _, err := q.ExecContext(ctx, "DELETE FROM tasks WHERE id = ?", id); err != nil {
				return fmt.Errorf("failed to remove rolled task %s: %w", id, err)
			}
		}
		return setMeta(ctx, q, metaKey, date)
	})
}

func requireRow(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows for %s: %w", id, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
