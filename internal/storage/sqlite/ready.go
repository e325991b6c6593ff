package sqlite

import (
	"context"
	"strings"

	"github.com/cleo-dev/cleo/internal/types"
)

// openStatuses are the task statuses that count as an active blocker: a
// dependency in one of these states still blocks its dependents.
var openStatuses = []string{
	string(types.StatusPending), string(types.StatusActive), string(types.StatusBlocked),
}

// markBlockedDirty recomputes the blocked_tasks_cache row for taskID and
// every task that directly depends on it, mirroring the teacher's
// blocked_issues_cache invalidate-and-rebuild strategy: a single write
// only ever touches the directly affected rows. There is no separate
// full rebuild of the cache.
func markBlockedDirty(ctx context.Context, ex execer, taskID string) error {
	affected, err := collectAffected(ctx, ex, taskID)
	if err != nil {
		return err
	}
	for _, id := range affected {
		if err := recomputeBlocked(ctx, ex, id); err != nil {
			return err
		}
	}
	return nil
}

func collectAffected(ctx context.Context, ex execer, taskID string) ([]string, error) {
	ids := []string{taskID}
	rows, err := ex.QueryContext(ctx, `SELECT task_id FROM dependencies WHERE depends_on_id = ?`, taskID)
	if err != nil {
		return nil, wrapDBError("collect affected", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, wrapDBError("scan affected", err)
		}
		ids = append(ids, id)
	}
	return ids, wrapDBError("collect affected", rows.Err())
}

func recomputeBlocked(ctx context.Context, ex execer, taskID string) error {
	placeholders := strings.Repeat("?,", len(openStatuses))
	placeholders = placeholders[:len(placeholders)-1]

	var count int
	args := make([]any, 0, len(openStatuses)+1)
	args = append(args, taskID)
	for _, st := range openStatuses {
		args = append(args, st)
	}
	query := `
		SELECT COUNT(*) FROM dependencies d
		JOIN tasks blocker ON blocker.id = d.depends_on_id AND blocker.deleted_at IS NULL
		WHERE d.task_id = ? AND blocker.status IN (` + placeholders + `)`
	if err := ex.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return wrapDBError("count blockers", err)
	}

	if count == 0 {
		_, err := ex.ExecContext(ctx, `DELETE FROM blocked_tasks_cache WHERE task_id = ?`, taskID)
		return wrapDBError("clear blocked cache", err)
	}
	_, err := ex.ExecContext(ctx, `
		INSERT INTO blocked_tasks_cache (task_id, blocked_by_count) VALUES (?, ?)
		ON CONFLICT(task_id) DO UPDATE SET blocked_by_count = excluded.blocked_by_count`,
		taskID, count)
	return wrapDBError("update blocked cache", err)
}

// GetReadyWork returns unblocked, actionable tasks: not pending-on-a-cache-row,
// matching f. Uses the blocked_tasks_cache for an O(1) anti-join instead of
// a recursive CTE per call (teacher: blocked_cache.go, ~25x over the naive query).
func (s *Store) GetReadyWork(ctx context.Context, f types.WorkFilter) ([]*types.Task, error) {
	s.checkFreshness()
	query := `SELECT ` + taskColumns + ` FROM tasks t
		WHERE t.deleted_at IS NULL
		AND t.status = 'pending'
		AND NOT EXISTS (SELECT 1 FROM blocked_tasks_cache b WHERE b.task_id = t.id)`
	args := []any{}
	query, args = applyWorkFilter(query, args, f)
	query += ` ORDER BY t.priority = 'critical' DESC, t.priority = 'high' DESC, t.position ASC`
	if f.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, f.Limit)
	}
	return queryTasks(ctx, s.conn(), query, args...)
}

// GetBlockedTasks returns tasks currently present in the blocked cache.
func (s *Store) GetBlockedTasks(ctx context.Context, f types.WorkFilter) ([]*types.Task, error) {
	s.checkFreshness()
	query := `SELECT ` + taskColumns + ` FROM tasks t
		JOIN blocked_tasks_cache b ON b.task_id = t.id
		WHERE t.deleted_at IS NULL`
	args := []any{}
	query, args = applyWorkFilter(query, args, f)
	query += ` ORDER BY b.blocked_by_count DESC, t.position ASC`
	if f.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, f.Limit)
	}
	return queryTasks(ctx, s.conn(), query, args...)
}

func applyWorkFilter(query string, args []any, f types.WorkFilter) (string, []any) {
	if f.Status != "" {
		query += ` AND t.status = ?`
		args = append(args, f.Status)
	}
	if f.Priority != nil {
		query += ` AND t.priority = ?`
		args = append(args, *f.Priority)
	}
	if f.ParentID != nil {
		query += ` AND t.parent_id = ?`
		args = append(args, *f.ParentID)
	}
	for _, label := range f.Labels {
		query += ` AND t.labels LIKE ?`
		args = append(args, `%"`+label+`"%`)
	}
	return query, args
}

// GetStaleTasks returns tasks whose status matches f.Status (default:
// active) and that have not been updated in at least f.Days days.
func (s *Store) GetStaleTasks(ctx context.Context, f types.StaleFilter) ([]*types.Task, error) {
	s.checkFreshness()
	status := f.Status
	if status == "" {
		status = string(types.StatusActive)
	}
	query := `SELECT ` + taskColumns + ` FROM tasks
		WHERE deleted_at IS NULL AND status = ?
		AND updated_at <= datetime('now', printf('-%d days', ?))
		ORDER BY updated_at ASC`
	args := []any{status, f.Days}
	if f.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, f.Limit)
	}
	return queryTasks(ctx, s.conn(), query, args...)
}
