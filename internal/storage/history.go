package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/user/sawlah/internal/model"
)

// HistoryStorage caches finished tasks fetched from the backend. Finished
// tasks never change, so entries are written once.
type HistoryStorage struct {
	db *DB
}

// NewHistoryStorage creates a new history storage handler.
func NewHistoryStorage(db *DB) *HistoryStorage {
	return &HistoryStorage{db: db}
}

func nullTime(ts model.Timestamp) sql.NullTime {
	return sql.NullTime{Time: ts.Time, Valid: !ts.IsZero()}
}

// Save caches the terminal tasks in tasks and returns how many were new.
// Tasks still in progress are skipped.
func (s *HistoryStorage) Save(tasks []model.Task) (int, error) {
	added := 0
	err := s.db.WithLock(func() error {
		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		defer tx.Rollback()

		stmt, err := tx.Prepare(
			`INSERT OR IGNORE INTO history
			 (task_id, tool_name, command, status, started_at, finished_at, output, return_code)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("failed to prepare history statement: %w", err)
		}
		defer stmt.Close()

		for _, t := range tasks {
			if t.ID == "" || !t.Status.IsTerminal() {
				continue
			}
			var rc sql.NullInt64
			if t.ReturnCode != nil {
				rc = sql.NullInt64{Int64: int64(*t.ReturnCode), Valid: true}
			}
			res, err := stmt.Exec(t.ID, t.ToolName, t.Command, string(t.Status),
				nullTime(t.StartedAt), nullTime(t.FinishedAt), t.Output, rc)
			if err != nil {
				return fmt.Errorf("failed to insert task %s: %w", t.ID, err)
			}
			if n, _ := res.RowsAffected(); n > 0 {
				added++
			}
		}
		return tx.Commit()
	})
	return added, err
}

const historyColumns = `task_id, tool_name, command, status, started_at, finished_at, output, return_code`

func scanTask(row interface{ Scan(...any) error }) (model.Task, error) {
	var (
		t        model.Task
		status   string
		started  sql.NullTime
		finished sql.NullTime
		rc       sql.NullInt64
	)
	if err := row.Scan(&t.ID, &t.ToolName, &t.Command, &status, &started, &finished, &t.Output, &rc); err != nil {
		return t, err
	}
	t.Status = model.TaskStatus(status)
	if started.Valid {
		t.StartedAt = model.NewTimestamp(started.Time)
	}
	if finished.Valid {
		t.FinishedAt = model.NewTimestamp(finished.Time)
	}
	if rc.Valid {
		code := int(rc.Int64)
		t.ReturnCode = &code
	}
	return t, nil
}

// Get returns a cached task, or nil if it is not cached.
func (s *HistoryStorage) Get(taskID string) (*model.Task, error) {
	var t model.Task
	err := s.db.WithRLock(func() error {
		var err error
		t, err = scanTask(s.db.QueryRow(
			"SELECT "+historyColumns+" FROM history WHERE task_id = ?", taskID))
		return err
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get task %s: %w", taskID, err)
	}
	return &t, nil
}

// List returns cached tasks, newest first. An empty tool lists every tool.
func (s *HistoryStorage) List(tool string, limit int) ([]model.Task, error) {
	query := "SELECT " + historyColumns + " FROM history"
	var args []any
	if tool != "" {
		query += " WHERE tool_name = ?"
		args = append(args, tool)
	}
	query += " ORDER BY started_at DESC, task_id"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	var tasks []model.Task
	err := s.db.WithRLock(func() error {
		rows, err := s.db.Query(query, args...)
		if err != nil {
			return fmt.Errorf("failed to query history: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			t, err := scanTask(rows)
			if err != nil {
				return fmt.Errorf("failed to scan task: %w", err)
			}
			tasks = append(tasks, t)
		}
		return rows.Err()
	})
	return tasks, err
}

// Count returns the number of cached tasks.
func (s *HistoryStorage) Count() (int, error) {
	var count int
	err := s.db.QueryRow("SELECT COUNT(*) FROM history").Scan(&count)
	return count, err
}

// Prune drops entries cached before the cutoff.
func (s *HistoryStorage) Prune(before time.Time) (int64, error) {
	// cached_at holds SQLite's CURRENT_TIMESTAMP text, which is UTC.
	cutoff := before.UTC().Format("2006-01-02 15:04:05")
	var n int64
	err := s.db.WithLock(func() error {
		res, err := s.db.Exec("DELETE FROM history WHERE cached_at < ?", cutoff)
		if err != nil {
			return fmt.Errorf("failed to prune history: %w", err)
		}
		n, _ = res.RowsAffected()
		return nil
	})
	return n, err
}
