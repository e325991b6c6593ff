package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/cleo-dev/cleo/internal/storage"
	"github.com/cleo-dev/cleo/internal/types"
)

// nextTaskID reserves the next "T<n>" identifier by reading and advancing
// the metadata counter row. It makes a single attempt; there is no retry
// on SQLITE_BUSY.
func nextTaskID(ctx context.Context, ex execer) (string, error) {
	var n int64
	if err := ex.QueryRowContext(ctx, `SELECT value FROM metadata WHERE key = 'next_task_id'`).Scan(&n); err != nil {
		return "", fmt.Errorf("read next_task_id: %w", err)
	}
	if _, err := ex.ExecContext(ctx, `UPDATE metadata SET value = ? WHERE key = 'next_task_id'`, n+1); err != nil {
		return "", fmt.Errorf("advance next_task_id: %w", err)
	}
	return types.FormatTaskID(n), nil
}

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Store) CreateTask(ctx context.Context, t *types.Task) error {
	return s.withExec(ctx, func(ex execer) error {
		return createTask(ctx, ex, t)
	})
}

func createTask(ctx context.Context, ex execer, t *types.Task) error {
	if t.ID == "" {
		id, err := nextTaskID(ctx, ex)
		if err != nil {
			return err
		}
		t.ID = id
	}
	_, err := ex.ExecContext(ctx, `
		INSERT INTO tasks (
			id, content_hash, title, description, status, priority, task_type,
			parent_id, phase, size, position, position_version,
			labels, notes, acceptance_criteria, files, verification_meta,
			created_at, updated_at, created_by, modified_by, session_id
		) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		t.ID, t.ContentHash, t.Title, t.Description, string(t.Status), string(t.Priority), string(t.Type),
		nullString(t.ParentID), t.Phase, string(t.Size), t.Position, t.PositionVersion,
		toJSON(t.Labels, "[]"), toJSON(t.Notes, "[]"), toJSON(t.AcceptanceCriteria, "[]"), toJSON(t.Files, "[]"), toJSON(t.VerificationMeta, "{}"),
		t.CreatedAt, t.UpdatedAt, t.CreatedBy, t.ModifiedBy, t.SessionID,
	)
	if err != nil {
		return wrapDBError("create task", err)
	}
	return markBlockedDirty(ctx, ex, t.ID)
}

const taskColumns = `id, content_hash, title, description, status, priority, task_type,
	parent_id, phase, size, position, position_version,
	labels, notes, acceptance_criteria, files, verification_meta,
	created_at, updated_at, completed_at, cancelled_at, archived_at, archive_reason, cycle_time_days,
	created_by, modified_by, session_id, deleted_at, deleted_by, delete_reason`

func scanTask(row interface{ Scan(...any) error }) (*types.Task, error) {
	var t types.Task
	var contentHash, parentID, phase, size, archiveReason, createdBy, modifiedBy, sessionID, deletedBy, deleteReason sql.NullString
	var labels, notes, ac, files, vmeta string
	var completedAt, cancelledAt, archivedAt, deletedAt sql.NullTime
	var cycleTime sql.NullFloat64

	err := row.Scan(
		&t.ID, &contentHash, &t.Title, &t.Description, &t.Status, &t.Priority, &t.Type,
		&parentID, &phase, &size, &t.Position, &t.PositionVersion,
		&labels, &notes, &ac, &files, &vmeta,
		&t.CreatedAt, &t.UpdatedAt, &completedAt, &cancelledAt, &archivedAt, &archiveReason, &cycleTime,
		&createdBy, &modifiedBy, &sessionID, &deletedAt, &deletedBy, &deleteReason,
	)
	if err != nil {
		return nil, err
	}
	t.ContentHash = contentHash.String
	t.ParentID = parentID.String
	t.Phase = phase.String
	t.Size = types.TaskSize(size.String)
	t.ArchiveReason = archiveReason.String
	t.CreatedBy = createdBy.String
	t.ModifiedBy = modifiedBy.String
	t.SessionID = sessionID.String
	t.DeletedBy = deletedBy.String
	t.DeleteReason = deleteReason.String
	t.Labels = fromJSONStrings(labels)
	t.Notes = fromJSONStrings(notes)
	t.AcceptanceCriteria = fromJSONStrings(ac)
	t.Files = fromJSONStrings(files)
	t.VerificationMeta = fromJSONMap(vmeta)
	t.CompletedAt = timePtr(completedAt)
	t.CancelledAt = timePtr(cancelledAt)
	t.ArchivedAt = timePtr(archivedAt)
	t.DeletedAt = timePtr(deletedAt)
	if cycleTime.Valid {
		t.CycleTimeDays = &cycleTime.Float64
	}
	return &t, nil
}

func (s *Store) GetTask(ctx context.Context, id string) (*types.Task, error) {
	s.checkFreshness()
	return getTask(ctx, s.conn(), id)
}

func getTask(ctx context.Context, ex execer, id string) (*types.Task, error) {
	row := ex.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ? AND deleted_at IS NULL`, id)
	t, err := scanTask(row)
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, wrapDBError("get task", err)
	}
	return t, nil
}

func (s *Store) UpdateTask(ctx context.Context, t *types.Task) error {
	return s.withExec(ctx, func(ex execer) error {
		return updateTask(ctx, ex, t)
	})
}

func updateTask(ctx context.Context, ex execer, t *types.Task) error {
	res, err := ex.ExecContext(ctx, `
		UPDATE tasks SET
			content_hash=?, title=?, description=?, status=?, priority=?, task_type=?,
			parent_id=?, phase=?, size=?, position=?, position_version=?,
			labels=?, notes=?, acceptance_criteria=?, files=?, verification_meta=?,
			updated_at=?, completed_at=?, cancelled_at=?, archived_at=?, archive_reason=?, cycle_time_days=?,
			modified_by=?, session_id=?
		WHERE id = ? AND deleted_at IS NULL`,
		t.ContentHash, t.Title, t.Description, string(t.Status), string(t.Priority), string(t.Type),
		nullString(t.ParentID), t.Phase, string(t.Size), t.Position, t.PositionVersion,
		toJSON(t.Labels, "[]"), toJSON(t.Notes, "[]"), toJSON(t.AcceptanceCriteria, "[]"), toJSON(t.Files, "[]"), toJSON(t.VerificationMeta, "{}"),
		t.UpdatedAt, nullTime(t.CompletedAt), nullTime(t.CancelledAt), nullTime(t.ArchivedAt), t.ArchiveReason, t.CycleTimeDays,
		t.ModifiedBy, t.SessionID,
		t.ID,
	)
	if err != nil {
		return wrapDBError("update task", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return storage.ErrNotFound
	}
	return markBlockedDirty(ctx, ex, t.ID)
}

func (s *Store) DeleteTask(ctx context.Context, id string, reason string) error {
	return s.withExec(ctx, func(ex execer) error {
		res, err := ex.ExecContext(ctx, `
			UPDATE tasks SET deleted_at = CURRENT_TIMESTAMP, delete_reason = ? WHERE id = ? AND deleted_at IS NULL`,
			reason, id)
		if err != nil {
			return wrapDBError("delete task", err)
		}
		n, _ := res.RowsAffected()
		if n == 0 {
			return storage.ErrNotFound
		}
		return markBlockedDirty(ctx, ex, id)
	})
}

func (s *Store) ListTasks(ctx context.Context, f types.TaskFilter) ([]*types.Task, error) {
	s.checkFreshness()
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE deleted_at IS NULL`
	var args []any
	if f.Status != "" {
		query += ` AND status = ?`
		args = append(args, f.Status)
	}
	if f.ParentID != "" {
		query += ` AND parent_id = ?`
		args = append(args, f.ParentID)
	}
	if f.Type != "" {
		query += ` AND task_type = ?`
		args = append(args, f.Type)
	}
	if f.Phase != "" {
		query += ` AND phase = ?`
		args = append(args, f.Phase)
	}
	query += ` ORDER BY position ASC, created_at ASC`
	if f.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, f.Limit)
	}
	return queryTasks(ctx, s.conn(), query, args...)
}

func (s *Store) FindTasks(ctx context.Context, queryStr string, f types.TaskFilter) ([]*types.Task, error) {
	s.checkFreshness()
	like := "%" + strings.ReplaceAll(queryStr, "%", "\\%") + "%"
	sqlQuery := `SELECT ` + taskColumns + ` FROM tasks
		WHERE deleted_at IS NULL AND (title LIKE ? ESCAPE '\' OR description LIKE ? ESCAPE '\')`
	args := []any{like, like}
	if f.Status != "" {
		sqlQuery += ` AND status = ?`
		args = append(args, f.Status)
	}
	sqlQuery += ` ORDER BY created_at DESC`
	if f.Limit > 0 {
		sqlQuery += ` LIMIT ?`
		args = append(args, f.Limit)
	}
	return queryTasks(ctx, s.conn(), sqlQuery, args...)
}

func queryTasks(ctx context.Context, ex execer, query string, args ...any) ([]*types.Task, error) {
	rows, err := ex.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapDBError("query tasks", err)
	}
	defer rows.Close()

	var out []*types.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, wrapDBError("scan task", err)
		}
		out = append(out, t)
	}
	return out, wrapDBError("query tasks", rows.Err())
}

// PurgeTombstones physically deletes tasks soft-deleted before cutoff,
// along with their dependency/relation edges, mirroring the teacher's
// deletions-retention sweep over its tombstone table.
func (s *Store) PurgeTombstones(ctx context.Context, before time.Time) (int, error) {
	var n int
	err := s.withExec(ctx, func(ex execer) error {
		rows, err := ex.QueryContext(ctx, `SELECT id FROM tasks WHERE deleted_at IS NOT NULL AND deleted_at < ?`, before)
		if err != nil {
			return wrapDBError("find tombstones", err)
		}
		var ids []string
		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return wrapDBError("scan tombstone", err)
			}
			ids = append(ids, id)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return wrapDBError("find tombstones", err)
		}

		for _, id := range ids {
			if _, err := ex.ExecContext(ctx, `DELETE FROM dependencies WHERE task_id = ? OR depends_on_id = ?`, id, id); err != nil {
				return wrapDBError("purge dependencies", err)
			}
			if _, err := ex.ExecContext(ctx, `DELETE FROM relations WHERE task_id = ? OR related_to = ?`, id, id); err != nil {
				return wrapDBError("purge relations", err)
			}
			if _, err := ex.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id); err != nil {
				return wrapDBError("purge task", err)
			}
		}
		n = len(ids)
		return nil
	})
	return n, err
}

func (s *Store) checkFreshness() {
	if s.freshness != nil {
		s.freshness.Check()
	}
}
