package journal

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/aristath/taskflow/internal/scheduler"
)

// Store is the append-side audit surface for the scheduler: task records,
// dependency edges, execution attempts, log lines, and issues. It is not a
// recovery mechanism; the task graph lives in memory.
type Store interface {
	SaveTask(ctx context.Context, task *scheduler.Task, deps []scheduler.Edge) error
	UpdateTaskStatus(ctx context.Context, taskID string, status scheduler.TaskStatus) error
	RecordExecution(ctx context.Context, exec *scheduler.Execution) error
	AppendLog(ctx context.Context, taskID, message string, at time.Time) error
	RecordIssue(ctx context.Context, taskID string, issue scheduler.Issue) error

	ListExecutions(ctx context.Context, taskID string) ([]*scheduler.Execution, error)
	ListLogs(ctx context.Context, taskID string) ([]scheduler.LogLine, error)
	ListIssues(ctx context.Context, taskID string) ([]scheduler.Issue, error)

	Close() error
}

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a SQLite-backed store at the given path. Creates
// parent directories if needed. Enables WAL mode and a busy timeout.
func NewSQLiteStore(ctx context.Context, dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create parent directories: %w", err)
	}

	connStr := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL", dbPath)
	return open(ctx, connStr)
}

// NewMemoryStore creates an in-memory store for testing. Uses a shared
// cache so multiple connections see the same database.
func NewMemoryStore(ctx context.Context) (*SQLiteStore, error) {
	return open(ctx, "file::memory:?mode=memory&cache=shared")
}

func open(ctx context.Context, connStr string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// modernc.org/sqlite needs foreign keys enabled via PRAGMA
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	db.SetMaxOpenConns(2)

	store := &SQLiteStore{db: db}
	if err := store.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
