package journal

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/aristath/taskflow/internal/scheduler"
)

// SaveTask saves or updates a task and its dependency edges. Uses ON
// CONFLICT to make saves idempotent.
func (s *SQLiteStore) SaveTask(ctx context.Context, task *scheduler.Task, deps []scheduler.Edge) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO tasks (id, title, description, type, priority, complexity, estimated_hours, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			description = excluded.description,
			type = excluded.type,
			priority = excluded.priority,
			complexity = excluded.complexity,
			estimated_hours = excluded.estimated_hours,
			status = excluded.status,
			updated_at = CURRENT_TIMESTAMP
	`, task.ID, task.Title, task.Description, string(task.Type), task.Priority, task.Complexity, task.EstimatedHours, task.Status)
	if err != nil {
		return fmt.Errorf("failed to upsert task: %w", err)
	}

	_, err = tx.ExecContext(ctx, `DELETE FROM task_dependencies WHERE task_id = ?`, task.ID)
	if err != nil {
		return fmt.Errorf("failed to delete old dependencies: %w", err)
	}

	for _, dep := range deps {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO task_dependencies (task_id, depends_on_id, kind, condition)
			VALUES (?, ?, ?, ?)
		`, task.ID, dep.DependsOn, dep.Kind, dep.Condition)
		if err != nil {
			return fmt.Errorf("failed to insert dependency %s -> %s: %w", task.ID, dep.DependsOn, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// UpdateTaskStatus updates the status of a task.
func (s *SQLiteStore) UpdateTaskStatus(ctx context.Context, taskID string, status scheduler.TaskStatus) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE tasks
		SET status = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, status, taskID)
	if err != nil {
		return fmt.Errorf("failed to update task status: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("task not found: %s", taskID)
	}

	return nil
}

// RecordExecution saves or updates one execution attempt, keyed by the
// execution ID so the start and terminal writes land on the same row.
func (s *SQLiteStore) RecordExecution(ctx context.Context, exec *scheduler.Execution) error {
	var endedAt interface{}
	if !exec.EndTime.IsZero() {
		endedAt = exec.EndTime
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO executions (id, task_id, worker_id, status, progress, started_at, ended_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			progress = excluded.progress,
			ended_at = excluded.ended_at
	`, exec.ID, exec.TaskID, exec.WorkerID, exec.Status, exec.Progress, exec.StartTime, endedAt)
	if err != nil {
		return fmt.Errorf("failed to record execution: %w", err)
	}
	return nil
}

// AppendLog stores one execution log line for a task.
func (s *SQLiteStore) AppendLog(ctx context.Context, taskID, message string, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO execution_logs (task_id, message, timestamp)
		VALUES (?, ?, ?)
	`, taskID, message, at)
	if err != nil {
		return fmt.Errorf("failed to append log: %w", err)
	}
	return nil
}

// RecordIssue stores one issue for a task.
func (s *SQLiteStore) RecordIssue(ctx context.Context, taskID string, issue scheduler.Issue) error {
	escalate := 0
	if issue.Escalate {
		escalate = 1
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO issues (task_id, severity, message, escalate, timestamp)
		VALUES (?, ?, ?, ?, ?)
	`, taskID, issue.Severity, issue.Message, escalate, issue.Timestamp)
	if err != nil {
		return fmt.Errorf("failed to record issue: %w", err)
	}
	return nil
}

// ListExecutions returns all recorded execution attempts for a task,
// oldest first.
func (s *SQLiteStore) ListExecutions(ctx context.Context, taskID string) ([]*scheduler.Execution, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, task_id, worker_id, status, progress, started_at, ended_at
		FROM executions
		WHERE task_id = ?
		ORDER BY started_at
	`, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to query executions: %w", err)
	}
	defer rows.Close()

	var execs []*scheduler.Execution
	for rows.Next() {
		exec := &scheduler.Execution{}
		var endedAt sql.NullTime
		if err := rows.Scan(&exec.ID, &exec.TaskID, &exec.WorkerID, &exec.Status, &exec.Progress, &exec.StartTime, &endedAt); err != nil {
			return nil, fmt.Errorf("failed to scan execution: %w", err)
		}
		if endedAt.Valid {
			exec.EndTime = endedAt.Time
		}
		execs = append(execs, exec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating executions: %w", err)
	}

	return execs, nil
}

// ListLogs returns all log lines for a task in timestamp order.
func (s *SQLiteStore) ListLogs(ctx context.Context, taskID string) ([]scheduler.LogLine, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT message, timestamp
		FROM execution_logs
		WHERE task_id = ?
		ORDER BY timestamp, id
	`, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to query logs: %w", err)
	}
	defer rows.Close()

	var lines []scheduler.LogLine
	for rows.Next() {
		var line scheduler.LogLine
		if err := rows.Scan(&line.Message, &line.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan log line: %w", err)
		}
		lines = append(lines, line)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating logs: %w", err)
	}

	return lines, nil
}

// ListIssues returns all issues recorded for a task in timestamp order.
func (s *SQLiteStore) ListIssues(ctx context.Context, taskID string) ([]scheduler.Issue, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT severity, message, escalate, timestamp
		FROM issues
		WHERE task_id = ?
		ORDER BY timestamp, id
	`, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to query issues: %w", err)
	}
	defer rows.Close()

	var issues []scheduler.Issue
	for rows.Next() {
		var issue scheduler.Issue
		var escalate int
		if err := rows.Scan(&issue.Severity, &issue.Message, &escalate, &issue.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan issue: %w", err)
		}
		issue.Escalate = escalate != 0
		issues = append(issues, issue)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating issues: %w", err)
	}

	return issues, nil
}
