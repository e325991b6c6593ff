package sqlite

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"

	"github.com/cleo-dev/cleo/internal/types"
)

func (s *Store) AppendAudit(ctx context.Context, e types.AuditEntry) error {
	return s.withExec(ctx, func(ex execer) error {
		if e.ID == "" {
			e.ID = uuid.NewString()
		}
		before, _ := json.Marshal(e.Before)
		after, _ := json.Marshal(e.After)
		details, _ := json.Marshal(e.Details)
		_, err := ex.ExecContext(ctx, `
			INSERT INTO audit_log (id, timestamp, action, task_id, actor, details, before_json, after_json, error)
			VALUES (?,?,?,?,?,?,?,?,?)`,
			e.ID, e.Timestamp, e.Action, e.TaskID, e.Actor, string(details), string(before), string(after), e.Error)
		return wrapDBError("append audit", err)
	})
}

func (s *Store) ListAudit(ctx context.Context, taskID string, limit int) ([]types.AuditEntry, error) {
	query := `SELECT id, timestamp, action, task_id, actor, details, before_json, after_json, error FROM audit_log`
	var args []any
	if taskID != "" {
		query += ` WHERE task_id = ?`
		args = append(args, taskID)
	}
	query += ` ORDER BY timestamp DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.conn().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapDBError("list audit", err)
	}
	defer rows.Close()

	var out []types.AuditEntry
	for rows.Next() {
		var e types.AuditEntry
		var details, before, after string
		if err := rows.Scan(&e.ID, &e.Timestamp, &e.Action, &e.TaskID, &e.Actor, &details, &before, &after, &e.Error); err != nil {
			return nil, wrapDBError("scan audit", err)
		}
		_ = json.Unmarshal([]byte(details), &e.Details)
		_ = json.Unmarshal([]byte(before), &e.Before)
		_ = json.Unmarshal([]byte(after), &e.After)
		out = append(out, e)
	}
	return out, wrapDBError("list audit", rows.Err())
}
