package sqlite

import (
	"context"

	"github.com/cleo-dev/cleo/internal/storage"
	"github.com/cleo-dev/cleo/internal/types"
)

func (s *Store) AddDependency(ctx context.Context, dep types.Dependency) error {
	return s.withExec(ctx, func(ex execer) error {
		_, err := ex.ExecContext(ctx, `
			INSERT INTO dependencies (task_id, depends_on_id, created_at, created_by)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(task_id, depends_on_id) DO NOTHING`,
			dep.TaskID, dep.DependsOn, dep.CreatedAt, dep.CreatedBy)
		if err != nil {
			return wrapDBError("add dependency", err)
		}
		return markBlockedDirty(ctx, ex, dep.TaskID)
	})
}

func (s *Store) RemoveDependency(ctx context.Context, taskID, dependsOn string) error {
	return s.withExec(ctx, func(ex execer) error {
		res, err := ex.ExecContext(ctx, `DELETE FROM dependencies WHERE task_id = ? AND depends_on_id = ?`, taskID, dependsOn)
		if err != nil {
			return wrapDBError("remove dependency", err)
		}
		n, _ := res.RowsAffected()
		if n == 0 {
			return storage.ErrNotFound
		}
		return markBlockedDirty(ctx, ex, taskID)
	})
}

func (s *Store) GetDependencies(ctx context.Context, taskID string) ([]types.Dependency, error) {
	s.checkFreshness()
	rows, err := s.conn().QueryContext(ctx, `SELECT task_id, depends_on_id, created_at, created_by FROM dependencies WHERE task_id = ?`, taskID)
	if err != nil {
		return nil, wrapDBError("get dependencies", err)
	}
	defer rows.Close()
	return scanDependencies(rows)
}

func (s *Store) GetDependents(ctx context.Context, taskID string) ([]types.Dependency, error) {
	s.checkFreshness()
	rows, err := s.conn().QueryContext(ctx, `SELECT task_id, depends_on_id, created_at, created_by FROM dependencies WHERE depends_on_id = ?`, taskID)
	if err != nil {
		return nil, wrapDBError("get dependents", err)
	}
	defer rows.Close()
	return scanDependencies(rows)
}

func scanDependencies(rows interface {
	Next() bool
	Scan(...any) error
	Err() error
}) ([]types.Dependency, error) {
	var out []types.Dependency
	for rows.Next() {
		var d types.Dependency
		if err := rows.Scan(&d.TaskID, &d.DependsOn, &d.CreatedAt, &d.CreatedBy); err != nil {
			return nil, wrapDBError("scan dependency", err)
		}
		out = append(out, d)
	}
	return out, wrapDBError("scan dependencies", rows.Err())
}

func (s *Store) AddRelation(ctx context.Context, rel types.Relation) error {
	return s.withExec(ctx, func(ex execer) error {
		_, err := ex.ExecContext(ctx, `
			INSERT INTO relations (task_id, related_to, relation_type, created_at)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(task_id, related_to, relation_type) DO NOTHING`,
			rel.TaskID, rel.RelatedTo, string(rel.RelationType), rel.CreatedAt)
		return wrapDBError("add relation", err)
	})
}

func (s *Store) RemoveRelation(ctx context.Context, taskID, relatedTo string, kind types.RelationType) error {
	return s.withExec(ctx, func(ex execer) error {
		res, err := ex.ExecContext(ctx, `DELETE FROM relations WHERE task_id = ? AND related_to = ? AND relation_type = ?`, taskID, relatedTo, string(kind))
		if err != nil {
			return wrapDBError("remove relation", err)
		}
		n, _ := res.RowsAffected()
		if n == 0 {
			return storage.ErrNotFound
		}
		return nil
	})
}

func (s *Store) GetRelations(ctx context.Context, taskID string) ([]types.Relation, error) {
	s.checkFreshness()
	rows, err := s.conn().QueryContext(ctx, `SELECT task_id, related_to, relation_type, created_at FROM relations WHERE task_id = ?`, taskID)
	if err != nil {
		return nil, wrapDBError("get relations", err)
	}
	defer rows.Close()

	var out []types.Relation
	for rows.Next() {
		var r types.Relation
		var kind string
		if err := rows.Scan(&r.TaskID, &r.RelatedTo, &kind, &r.CreatedAt); err != nil {
			return nil, wrapDBError("scan relation", err)
		}
		r.RelationType = types.RelationType(kind)
		out = append(out, r)
	}
	return out, wrapDBError("scan relations", rows.Err())
}
