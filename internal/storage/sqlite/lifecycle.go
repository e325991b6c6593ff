package sqlite

import (
	"context"
	"database/sql"

	"github.com/cleo-dev/cleo/internal/storage"
	"github.com/cleo-dev/cleo/internal/types"
)

func (s *Store) CreatePipeline(ctx context.Context, p *types.Pipeline) error {
	return s.withExec(ctx, func(ex execer) error {
		res, err := ex.ExecContext(ctx, `
			INSERT INTO pipelines (task_id, status, current_stage_id, started_at)
			VALUES (?, ?, ?, ?)`,
			p.TaskID, string(p.Status), p.CurrentStageID, p.StartedAt)
		if err != nil {
			return wrapDBError("create pipeline", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return wrapDBError("create pipeline", err)
		}
		p.ID = id
		return nil
	})
}

func (s *Store) GetPipeline(ctx context.Context, taskID string) (*types.Pipeline, error) {
	row := s.conn().QueryRowContext(ctx, `
		SELECT id, task_id, status, current_stage_id, started_at, completed_at
		FROM pipelines WHERE task_id = ?`, taskID)
	p, err := scanPipeline(row)
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, wrapDBError("get pipeline", err)
	}
	return p, nil
}

func scanPipeline(row interface{ Scan(...any) error }) (*types.Pipeline, error) {
	var p types.Pipeline
	var completedAt sql.NullTime
	if err := row.Scan(&p.ID, &p.TaskID, &p.Status, &p.CurrentStageID, &p.StartedAt, &completedAt); err != nil {
		return nil, err
	}
	p.CompletedAt = timePtr(completedAt)
	return &p, nil
}

func (s *Store) UpdatePipeline(ctx context.Context, p *types.Pipeline) error {
	return s.withExec(ctx, func(ex execer) error {
		res, err := ex.ExecContext(ctx, `
			UPDATE pipelines SET status=?, current_stage_id=?, completed_at=? WHERE id = ?`,
			string(p.Status), p.CurrentStageID, nullTime(p.CompletedAt), p.ID)
		if err != nil {
			return wrapDBError("update pipeline", err)
		}
		n, _ := res.RowsAffected()
		if n == 0 {
			return storage.ErrNotFound
		}
		return nil
	})
}

func (s *Store) GetStages(ctx context.Context, pipelineID int64) ([]types.Stage, error) {
	rows, err := s.conn().QueryContext(ctx, `
		SELECT id, pipeline_id, stage_name, sequence, status, started_at, completed_at, blocked_at, skipped_at, reason, notes, metadata
		FROM stages WHERE pipeline_id = ? ORDER BY sequence ASC`, pipelineID)
	if err != nil {
		return nil, wrapDBError("get stages", err)
	}
	defer rows.Close()

	var out []types.Stage
	for rows.Next() {
		var st types.Stage
		var startedAt, completedAt, blockedAt, skippedAt sql.NullTime
		var notes, meta string
		if err := rows.Scan(&st.ID, &st.PipelineID, &st.StageName, &st.Sequence, &st.Status,
			&startedAt, &completedAt, &blockedAt, &skippedAt, &st.Reason, &notes, &meta); err != nil {
			return nil, wrapDBError("scan stage", err)
		}
		st.StartedAt = timePtr(startedAt)
		st.CompletedAt = timePtr(completedAt)
		st.BlockedAt = timePtr(blockedAt)
		st.SkippedAt = timePtr(skippedAt)
		st.Notes = fromJSONStrings(notes)
		st.Metadata = fromJSONMap(meta)
		out = append(out, st)
	}
	return out, wrapDBError("get stages", rows.Err())
}

func (s *Store) UpdateStage(ctx context.Context, st *types.Stage) error {
	return s.withExec(ctx, func(ex execer) error {
		if st.ID == 0 {
			res, err := ex.ExecContext(ctx, `
				INSERT INTO stages (pipeline_id, stage_name, sequence, status, started_at, completed_at, blocked_at, skipped_at, reason, notes, metadata)
				VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
				st.PipelineID, string(st.StageName), st.Sequence, string(st.Status),
				nullTime(st.StartedAt), nullTime(st.CompletedAt), nullTime(st.BlockedAt), nullTime(st.SkippedAt),
				st.Reason, toJSON(st.Notes, "[]"), toJSON(st.Metadata, "{}"))
			if err != nil {
				return wrapDBError("insert stage", err)
			}
			id, err := res.LastInsertId()
			if err != nil {
				return wrapDBError("insert stage", err)
			}
			st.ID = id
			return nil
		}
		_, err := ex.ExecContext(ctx, `
			UPDATE stages SET status=?, started_at=?, completed_at=?, blocked_at=?, skipped_at=?, reason=?, notes=?, metadata=?
			WHERE id = ?`,
			string(st.Status), nullTime(st.StartedAt), nullTime(st.CompletedAt), nullTime(st.BlockedAt), nullTime(st.SkippedAt),
			st.Reason, toJSON(st.Notes, "[]"), toJSON(st.Metadata, "{}"), st.ID)
		return wrapDBError("update stage", err)
	})
}

func (s *Store) RecordGateResult(ctx context.Context, r types.GateResult) error {
	return s.withExec(ctx, func(ex execer) error {
		_, err := ex.ExecContext(ctx, `
			INSERT INTO gate_results (stage_id, gate_name, result, checked_by, details, reason, checked_at)
			VALUES (?,?,?,?,?,?,?)`,
			r.StageID, r.GateName, string(r.Result), r.CheckedBy, r.Details, r.Reason, r.CheckedAt)
		return wrapDBError("record gate result", err)
	})
}

func (s *Store) GetGateResults(ctx context.Context, stageID int64) ([]types.GateResult, error) {
	rows, err := s.conn().QueryContext(ctx, `
		SELECT id, stage_id, gate_name, result, checked_by, details, reason, checked_at
		FROM gate_results WHERE stage_id = ? ORDER BY checked_at ASC`, stageID)
	if err != nil {
		return nil, wrapDBError("get gate results", err)
	}
	defer rows.Close()

	var out []types.GateResult
	for rows.Next() {
		var r types.GateResult
		if err := rows.Scan(&r.ID, &r.StageID, &r.GateName, &r.Result, &r.CheckedBy, &r.Details, &r.Reason, &r.CheckedAt); err != nil {
			return nil, wrapDBError("scan gate result", err)
		}
		out = append(out, r)
	}
	return out, wrapDBError("get gate results", rows.Err())
}

func (s *Store) RecordEvidence(ctx context.Context, e types.Evidence) error {
	return s.withExec(ctx, func(ex execer) error {
		_, err := ex.ExecContext(ctx, `
			INSERT INTO evidence (stage_id, uri, evidence_type, description, created_at)
			VALUES (?,?,?,?,?)`,
			e.StageID, e.URI, string(e.Type), e.Description, e.CreatedAt)
		return wrapDBError("record evidence", err)
	})
}

func (s *Store) RecordTransition(ctx context.Context, tr types.Transition) error {
	return s.withExec(ctx, func(ex execer) error {
		_, err := ex.ExecContext(ctx, `
			INSERT INTO transitions (pipeline_id, from_stage_id, to_stage_id, transition_type, created_at)
			VALUES (?,?,?,?,?)`,
			tr.PipelineID, tr.FromStageID, tr.ToStageID, string(tr.TransitionType), tr.CreatedAt)
		return wrapDBError("record transition", err)
	})
}
