package sqlite

import (
	"context"
	"database/sql"

	"github.com/cleo-dev/cleo/internal/storage"
	"github.com/cleo-dev/cleo/internal/types"
)

func (s *Store) CreateSession(ctx context.Context, sess *types.Session) error {
	return s.withExec(ctx, func(ex execer) error {
		_, err := ex.ExecContext(ctx, `
			INSERT INTO sessions (
				id, name, status, scope_type, scope_id, current_task, task_started_at,
				agent, notes, tasks_completed, tasks_created,
				previous_session_id, next_session_id, handoff_note, debrief_note,
				statistics, resume_count, graded, started_at, ended_at
			) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
			sess.ID, sess.Name, string(sess.Status), string(sess.Scope.Type), sess.Scope.ID,
			sess.CurrentTask, nullTime(sess.TaskStartedAt), sess.Agent,
			toJSON(sess.Notes, "[]"), toJSON(sess.TasksCompleted, "[]"), toJSON(sess.TasksCreated, "[]"),
			sess.PreviousSessionID, sess.NextSessionID, sess.HandoffNote, sess.DebriefNote,
			toJSON(sess.Statistics, "{}"), sess.ResumeCount, sess.Graded, sess.StartedAt, nullTime(sess.EndedAt),
		)
		return wrapDBError("create session", err)
	})
}

const sessionColumns = `id, name, status, scope_type, scope_id, current_task, task_started_at,
	agent, notes, tasks_completed, tasks_created,
	previous_session_id, next_session_id, handoff_note, debrief_note,
	statistics, resume_count, graded, started_at, ended_at`

func scanSession(row interface{ Scan(...any) error }) (*types.Session, error) {
	var sess types.Session
	var name, scopeID, currentTask, agent, prevID, nextID, handoff, debrief string
	var taskStartedAt, endedAt sql.NullTime
	var notes, completed, created, stats string

	err := row.Scan(
		&sess.ID, &name, &sess.Status, &sess.Scope.Type, &scopeID, &currentTask, &taskStartedAt,
		&agent, &notes, &completed, &created,
		&prevID, &nextID, &handoff, &debrief,
		&stats, &sess.ResumeCount, &sess.Graded, &sess.StartedAt, &endedAt,
	)
	if err != nil {
		return nil, err
	}
	sess.Name = name
	sess.Scope.ID = scopeID
	sess.CurrentTask = currentTask
	sess.Agent = agent
	sess.PreviousSessionID = prevID
	sess.NextSessionID = nextID
	sess.HandoffNote = handoff
	sess.DebriefNote = debrief
	sess.TaskStartedAt = timePtr(taskStartedAt)
	sess.EndedAt = timePtr(endedAt)
	sess.Notes = fromJSONStrings(notes)
	sess.TasksCompleted = fromJSONStrings(completed)
	sess.TasksCreated = fromJSONStrings(created)
	sess.Statistics = fromJSONMap(stats)
	return &sess, nil
}

func (s *Store) GetSession(ctx context.Context, id string) (*types.Session, error) {
	row := s.conn().QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id)
	sess, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, wrapDBError("get session", err)
	}
	return sess, nil
}

func (s *Store) UpdateSession(ctx context.Context, sess *types.Session) error {
	return s.withExec(ctx, func(ex execer) error {
		res, err := ex.ExecContext(ctx, `
			UPDATE sessions SET
				name=?, status=?, scope_type=?, scope_id=?, current_task=?, task_started_at=?,
				agent=?, notes=?, tasks_completed=?, tasks_created=?,
				previous_session_id=?, next_session_id=?, handoff_note=?, debrief_note=?,
				statistics=?, resume_count=?, graded=?, ended_at=?
			WHERE id = ?`,
			sess.Name, string(sess.Status), string(sess.Scope.Type), sess.Scope.ID, sess.CurrentTask, nullTime(sess.TaskStartedAt),
			sess.Agent, toJSON(sess.Notes, "[]"), toJSON(sess.TasksCompleted, "[]"), toJSON(sess.TasksCreated, "[]"),
			sess.PreviousSessionID, sess.NextSessionID, sess.HandoffNote, sess.DebriefNote,
			toJSON(sess.Statistics, "{}"), sess.ResumeCount, sess.Graded, nullTime(sess.EndedAt),
			sess.ID,
		)
		if err != nil {
			return wrapDBError("update session", err)
		}
		n, _ := res.RowsAffected()
		if n == 0 {
			return storage.ErrNotFound
		}
		return nil
	})
}

func (s *Store) ListSessions(ctx context.Context, status string, limit int) ([]*types.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions`
	var args []any
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY started_at DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.conn().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapDBError("list sessions", err)
	}
	defer rows.Close()

	var out []*types.Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, wrapDBError("scan session", err)
		}
		out = append(out, sess)
	}
	return out, wrapDBError("list sessions", rows.Err())
}
