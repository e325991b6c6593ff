package sqlite

import (
	"context"

	"github.com/cleo-dev/cleo/internal/storage"
)

func (s *Store) GetStats(ctx context.Context) (storage.Stats, error) {
	var stats storage.Stats
	stats.ByStatus = map[string]int{}
	stats.ByPriority = map[string]int{}

	if err := s.conn().QueryRowContext(ctx, `SELECT COUNT(*) FROM tasks WHERE deleted_at IS NULL`).Scan(&stats.TotalTasks); err != nil {
		return stats, wrapDBError("count tasks", err)
	}

	rows, err := s.conn().QueryContext(ctx, `SELECT status, COUNT(*) FROM tasks WHERE deleted_at IS NULL GROUP BY status`)
	if err != nil {
		return stats, wrapDBError("group by status", err)
	}
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			rows.Close()
			return stats, wrapDBError("scan status group", err)
		}
		stats.ByStatus[status] = n
	}
	rows.Close()

	rows, err = s.conn().QueryContext(ctx, `SELECT priority, COUNT(*) FROM tasks WHERE deleted_at IS NULL GROUP BY priority`)
	if err != nil {
		return stats, wrapDBError("group by priority", err)
	}
	for rows.Next() {
		var priority string
		var n int
		if err := rows.Scan(&priority, &n); err != nil {
			rows.Close()
			return stats, wrapDBError("scan priority group", err)
		}
		stats.ByPriority[priority] = n
	}
	rows.Close()

	if err := s.conn().QueryRowContext(ctx, `
		SELECT COUNT(*) FROM tasks t
		WHERE t.deleted_at IS NULL AND t.status = 'pending'
		AND NOT EXISTS (SELECT 1 FROM blocked_tasks_cache b WHERE b.task_id = t.id)`).Scan(&stats.ReadyCount); err != nil {
		return stats, wrapDBError("count ready", err)
	}
	if err := s.conn().QueryRowContext(ctx, `SELECT COUNT(*) FROM blocked_tasks_cache`).Scan(&stats.BlockedCount); err != nil {
		return stats, wrapDBError("count blocked", err)
	}
	if err := s.conn().QueryRowContext(ctx, `SELECT COUNT(*) FROM sessions WHERE status = 'active'`).Scan(&stats.ActiveSessions); err != nil {
		return stats, wrapDBError("count active sessions", err)
	}
	return stats, nil
}
