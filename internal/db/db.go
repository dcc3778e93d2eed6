// Package db provides the embedded SQLite index for todomd.
//
// The index is the fast, always-available copy of the task document. Every
// mutation lands here first; the Markdown file is only a synchronization
// target. When no document is connected the index is the authoritative store.
//
// Architecture:
//   - Database file: ~/.todomd/index.db (or :memory: for an ephemeral index)
//   - WAL mode: concurrent readers during the debounced write-back
//   - Schema: sections, tasks, notes, blockers, projects, meta
//   - Positions: every list keeps document order through a position column
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/todomd/todomd/internal/schema"
)

// MemoryPath opens a private in-memory index.
const MemoryPath = ":memory:"

// ErrNotFound is returned when a task, section or meta key does not exist.
var ErrNotFound = errors.New("not found")

// DB wraps the SQLite connection pool.
type DB struct {
	conn *sql.DB
	path string
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Open creates a database connection at path and initializes the schema.
//
// Passing MemoryPath yields an index that lives only as long as the DB value;
// the pool is pinned to a single connection so every query sees the same
// database.
//
// The caller MUST call Close() when done.
func Open(path string) (*DB, error) {
	return OpenContext(context.Background(), path)
}

// OpenContext is Open with context support.
func OpenContext(ctx context.Context, path string) (*DB, error) {
	memory := path == MemoryPath

	var connStr string
	if memory {
		connStr = "file::memory:?_pragma=foreign_keys(1)"
	} else {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
		connStr = fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)", path)
	}

	conn, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if memory {
		conn.SetMaxOpenConns(1)
		conn.SetMaxIdleConns(1)
		conn.SetConnMaxLifetime(0)
	} else {
		conn.SetMaxOpenConns(25)
		conn.SetMaxIdleConns(5)
		conn.SetConnMaxLifetime(5 * time.Minute)
	}

	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db := &DB{conn: conn, path: path}

	if !memory {
		if _, err := db.conn.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := db.InitSchemaContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// Path returns the location the index was opened at.
func (db *DB) Path() string {
	return db.path
}

// Ephemeral reports whether the index is held in memory only.
func (db *DB) Ephemeral() bool {
	return db.path == MemoryPath
}

// RawDB returns the underlying sql.DB connection.
func (db *DB) RawDB() *sql.DB {
	return db.conn
}

// Close checkpoints the WAL and closes the pool.
func (db *DB) Close() error {
	if db.conn == nil {
		return nil
	}

	if !db.Ephemeral() {
		if _, err := db.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to checkpoint WAL: %v\n", err)
		}
	}

	if err := db.conn.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	db.conn = nil
	return nil
}

// InitSchema creates the tables if they don't exist. Idempotent.
func (db *DB) InitSchema() error {
	return db.InitSchemaContext(context.Background())
}

// InitSchemaContext creates the schema with context support.
func (db *DB) InitSchemaContext(ctx context.Context) error {
	ddl := `
	CREATE TABLE IF NOT EXISTS sections (
		id TEXT PRIMARY KEY,
		date TEXT NOT NULL UNIQUE,
		position INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS tasks (
		id TEXT PRIMARY KEY,
		section_id TEXT NOT NULL,
		list TEXT NOT NULL,
		position INTEGER NOT NULL,
		content TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		project TEXT NOT NULL DEFAULT '',
		assignee TEXT NOT NULL DEFAULT '',
		due_date TEXT NOT NULL DEFAULT '',
		priority TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		completed_at TEXT,
		rolled_from_date TEXT NOT NULL DEFAULT '',

		-- list the task was completed from, used when it is reopened
		previous_list TEXT NOT NULL DEFAULT '',
		FOREIGN KEY (section_id) REFERENCES sections(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS notes (
		id TEXT PRIMARY KEY,
		section_id TEXT NOT NULL,
		position INTEGER NOT NULL,
		content TEXT NOT NULL,
		timestamp TEXT NOT NULL,
		FOREIGN KEY (section_id) REFERENCES sections(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS blockers (
		id TEXT PRIMARY KEY,
		section_id TEXT NOT NULL,
		position INTEGER NOT NULL,
		content TEXT NOT NULL,
		next_step TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		FOREIGN KEY (section_id) REFERENCES sections(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS projects (
		tag TEXT PRIMARY KEY,
		id TEXT NOT NULL,
		name TEXT NOT NULL,
		color TEXT NOT NULL DEFAULT '',
		position INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_sections_position ON sections(position);
	CREATE INDEX IF NOT EXISTS idx_tasks_section_list ON tasks(section_id, list, position);
	CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(status);
	CREATE INDEX IF NOT EXISTS idx_notes_section ON notes(section_id, position);
	CREATE INDEX IF NOT EXISTS idx_blockers_section ON blockers(section_id, position);
	`

	if _, err := db.conn.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	return nil
}

// inTx runs fn inside a transaction, committing when it returns nil.
func (db *DB) inTx(ctx context.Context, fn func(q querier) error) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Stats summarizes the index contents.
type Stats struct {
	Sections  int `json:"sections" yaml:"sections"`
	Tasks     int `json:"tasks" yaml:"tasks"`
	Open      int `json:"open" yaml:"open"`
	Completed int `json:"completed" yaml:"completed"`
	Notes     int `json:"notes" yaml:"notes"`
	Blockers  int `json:"blockers" yaml:"blockers"`
	Projects  int `json:"projects" yaml:"projects"`
}

// GetStats counts rows in every table.
func (db *DB) GetStats(ctx context.Context) (*Stats, error) {
	var s Stats
	query := `
	SELECT
		(SELECT COUNT(*) FROM sections),
		(SELECT COUNT(*) FROM tasks),
		(SELECT COUNT(*) FROM tasks WHERE status != 'completed'),
		(SELECT COUNT(*) FROM tasks WHERE status = 'completed'),
		(SELECT COUNT(*) FROM notes),
		(SELECT COUNT(*) FROM blockers),
		(SELECT COUNT(*) FROM projects)
	`
	err := db.conn.QueryRowContext(ctx, query).Scan(
		&s.Sections, &s.Tasks, &s.Open, &s.Completed, &s.Notes, &s.Blockers, &s.Projects,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get stats: %w", err)
	}
	return &s, nil
}

// GetTaskCount returns the total number of tasks in the index.
func (db *DB) GetTaskCount() (int, error) {
	return db.GetTaskCountContext(context.Background())
}

// GetTaskCountContext returns the total number of tasks with context support.
func (db *DB) GetTaskCountContext(ctx context.Context) (int, error) {
	var count int
	if err := db.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM tasks").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to get task count: %w", err)
	}
	return count, nil
}

// GetMeta reads a bookkeeping value. Returns ErrNotFound if unset.
func (db *DB) GetMeta(ctx context.Context, key string) (string, error) {
	var value string
	err := db.conn.QueryRowContext(ctx, "SELECT value FROM meta WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to read meta %s: %w", key, err)
	}
	return value, nil
}

// SetMeta writes a bookkeeping value.
func (db *DB) SetMeta(ctx context.Context, key, value string) error {
	return setMeta(ctx, db.conn, key, value)
}

func setMeta(ctx context.Context, q querier, key, value string) error {
	_, err := q.ExecContext(ctx, `
	INSERT INTO meta (key, value) VALUES (?, ?)
	ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	if err != nil {
		return fmt.Errorf("failed to write meta %s: %w", key, err)
	}
	return nil
}

// timeToNullString converts a time pointer to a nullable string for SQL.
func timeToNullString(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{Valid: false}
	}
	return sql.NullString{String: t.Format(time.RFC3339Nano), Valid: true}
}

// nullStringToTime converts a nullable SQL string to a time pointer.
func nullStringToTime(ns sql.NullString) *time.Time {
	if !ns.Valid {
		return nil
	}
	t, err := time.Parse(time.RFC3339Nano, ns.String)
	if err != nil {
		return nil
	}
	return &t
}

func formatTime(t time.Time) string {
	return t.Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

func nextProjectPosition(ctx context.Context, q querier) (int, error) {
	var pos int
	err := q.QueryRowContext(ctx, "SELECT COALESCE(MAX(position), -1) + 1 FROM projects").Scan(&pos)
	if err != nil {
		return 0, fmt.Errorf("failed to compute project position: %w", err)
	}
	return pos, nil
}

// UpsertProject inserts a project or fills in its missing color.
func (db *DB) UpsertProject(ctx context.Context, p schema.Project) error {
	return upsertProject(ctx, db.conn, p)
}

func upsertProject(ctx context.Context, q querier, p schema.Project) error {
	merged := schema.MergeProjects(nil, p)
	if len(merged) == 0 {
		return fmt.Errorf("project tag is required")
	}
	p = merged[0]
	pos, err := nextProjectPosition(ctx, q)
	if err != nil {
		return err
	}
	_, err = q.ExecContext(ctx, `
	INSERT INTO projects (tag, id, name, color, position) VALUES (?, ?, ?, ?, ?)
	ON CONFLICT(tag) DO UPDATE SET
		color = CASE WHEN excluded.color != '' THEN excluded.color ELSE projects.color END
	`, p.Tag, p.ID, p.Name, p.Color, pos)
	if err != nil {
		return fmt.Errorf("failed to upsert project %s: %w", p.Tag, err)
	}
	return nil
}

// ListProjects returns all projects in insertion order.
func (db *DB) ListProjects(ctx context.Context) ([]schema.Project, error) {
	rows, err := db.conn.QueryContext(ctx, "SELECT id, name, tag, color FROM projects ORDER BY position ASC")
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()

	projects := []schema.Project{}
	for rows.Next() {
		var p schema.Project
		if err := rows.Scan(&p.ID, &p.Name, &p.Tag, &p.Color); err != nil {
			return nil, fmt.Errorf("failed to scan project: %w", err)
		}
		projects = append(projects, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating projects: %w", err)
	}
	return projects, nil
}
