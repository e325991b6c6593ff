package sqlite

import (
	"context"
	"database/sql"

	"github.com/cleo-dev/cleo/internal/storage"
	"github.com/cleo-dev/cleo/internal/types"
)

// SetTaskWork closes any currently-open focus entry for sessionID and opens
// a new one on taskID, keeping the append-only history intact.
func (s *Store) SetTaskWork(ctx context.Context, sessionID, taskID string) (*types.TaskWorkEntry, error) {
	var entry *types.TaskWorkEntry
	err := s.withExec(ctx, func(ex execer) error {
		if _, err := ex.ExecContext(ctx, `
			UPDATE task_work SET cleared_at = CURRENT_TIMESTAMP
			WHERE session_id = ? AND cleared_at IS NULL`, sessionID); err != nil {
			return wrapDBError("clear prior task work", err)
		}
		res, err := ex.ExecContext(ctx, `
			INSERT INTO task_work (session_id, task_id, set_at) VALUES (?, ?, CURRENT_TIMESTAMP)`,
			sessionID, taskID)
		if err != nil {
			return wrapDBError("set task work", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return wrapDBError("set task work", err)
		}
		entry, err = getTaskWorkByID(ctx, ex, id)
		return err
	})
	return entry, err
}

func (s *Store) ClearTaskWork(ctx context.Context, sessionID string) error {
	return s.withExec(ctx, func(ex execer) error {
		res, err := ex.ExecContext(ctx, `
			UPDATE task_work SET cleared_at = CURRENT_TIMESTAMP
			WHERE session_id = ? AND cleared_at IS NULL`, sessionID)
		if err != nil {
			return wrapDBError("clear task work", err)
		}
		n, _ := res.RowsAffected()
		if n == 0 {
			return storage.ErrNotFound
		}
		return nil
	})
}

func (s *Store) GetCurrentTaskWork(ctx context.Context, sessionID string) (*types.TaskWorkEntry, error) {
	row := s.conn().QueryRowContext(ctx, `
		SELECT id, session_id, task_id, set_at, cleared_at FROM task_work
		WHERE session_id = ? AND cleared_at IS NULL`, sessionID)
	e, err := scanTaskWork(row)
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, wrapDBError("get current task work", err)
	}
	return e, nil
}

func (s *Store) GetTaskWorkHistory(ctx context.Context, sessionID string, limit int) ([]types.TaskWorkEntry, error) {
	query := `SELECT id, session_id, task_id, set_at, cleared_at FROM task_work WHERE session_id = ? ORDER BY set_at DESC`
	args := []any{sessionID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.conn().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapDBError("get task work history", err)
	}
	defer rows.Close()

	var out []types.TaskWorkEntry
	for rows.Next() {
		e, err := scanTaskWork(rows)
		if err != nil {
			return nil, wrapDBError("scan task work", err)
		}
		out = append(out, *e)
	}
	return out, wrapDBError("get task work history", rows.Err())
}

func getTaskWorkByID(ctx context.Context, ex execer, id int64) (*types.TaskWorkEntry, error) {
	row := ex.QueryRowContext(ctx, `SELECT id, session_id, task_id, set_at, cleared_at FROM task_work WHERE id = ?`, id)
	return scanTaskWork(row)
}

func scanTaskWork(row interface{ Scan(...any) error }) (*types.TaskWorkEntry, error) {
	var e types.TaskWorkEntry
	var clearedAt sql.NullTime
	if err := row.Scan(&e.ID, &e.SessionID, &e.TaskID, &e.SetAt, &clearedAt); err != nil {
		return nil, err
	}
	e.ClearedAt = timePtr(clearedAt)
	return &e, nil
}
