// Package lifecycle implements the nine-stage delivery pipeline every
// task can opt into: prerequisite-gated forward progression, gated
// completion, and an append-only transition log distinguishing
// automatic, manual, and forced moves.
package lifecycle

import (
	"context"
	"fmt"
	"time"

	"github.com/cleo-dev/cleo/internal/clerr"
	"github.com/cleo-dev/cleo/internal/storage"
	"github.com/cleo-dev/cleo/internal/types"
)

// Engine drives pipeline state transitions against a storage.Storage.
type Engine struct {
	store    storage.Storage
	registry *Registry
}

// NewEngine wraps store with the default (empty) gate registry. Callers
// register gate checkers and cross-cutting rules via Registry before
// driving any transitions.
func NewEngine(store storage.Storage) *Engine {
	return &Engine{store: store, registry: NewRegistry()}
}

// Registry exposes the engine's gate registry for callers to populate.
func (e *Engine) Registry() *Registry { return e.registry }

// StartPipeline creates a fresh pipeline for taskID at the first stage,
// research, in_progress.
func (e *Engine) StartPipeline(ctx context.Context, taskID string) (*types.Pipeline, error) {
	now := storage.Now()
	p := &types.Pipeline{TaskID: taskID, Status: types.PipelineActive, StartedAt: now}

	return p, e.store.RunInTransaction(ctx, func(tx storage.Transaction) error {
		if err := tx.CreatePipeline(ctx, p); err != nil {
			return err
		}
		first := types.StageDefinitions[0]
		stage := &types.Stage{
			PipelineID: p.ID,
			StageName:  first.Name,
			Sequence:   first.Sequence,
			Status:     types.StageInProgress,
			StartedAt:  &now,
		}
		if err := tx.UpdateStage(ctx, stage); err != nil {
			return err
		}
		p.CurrentStageID = stage.ID
		return tx.UpdatePipeline(ctx, p)
	})
}

// stageByName finds a pipeline's stage instance with the given name.
func stageByName(stages []types.Stage, name types.StageName) (*types.Stage, bool) {
	for i := range stages {
		if stages[i].StageName == name {
			return &stages[i], true
		}
	}
	return nil, false
}

// prereqsSatisfied reports whether every prerequisite stage for def is
// completed or skipped. leaving is the stage the pipeline is currently
// in and transitioning out of: it's only marked Completed by the same
// transaction that performs this move, so it's treated as satisfied
// here rather than read from its (still in_progress) stored status.
func prereqsSatisfied(def types.StageDefinition, stages []types.Stage, leaving types.StageName) (bool, types.StageName) {
	for _, prereq := range def.Prereqs {
		if prereq == leaving {
			continue
		}
		st, ok := stageByName(stages, prereq)
		if !ok || (st.Status != types.StageCompleted && st.Status != types.StageSkipped) {
			return false, prereq
		}
	}
	return true, ""
}

// Progress advances the pipeline's current stage toward the next
// canonical stage, subject to spec's transition rules: same-stage is a
// no-op, forward moves require prerequisites satisfied, backward moves
// and skipping intervening non-skippable stages require force, and
// release is terminal (no transition out of it, forced or not).
func (e *Engine) Progress(ctx context.Context, taskID string, force bool) (*types.Pipeline, error) {
	return e.transition(ctx, taskID, force, func(p *types.Pipeline, stages []types.Stage, current *types.Stage) (types.StageName, types.TransitionType, error) {
		idx := indexOfStage(current.StageName)
		if idx < 0 || idx == len(types.PipelineStages)-1 {
			return "", "", clerr.New(clerr.CodeTransitionDenied, clerr.ExitGeneral,
				"no further stage after "+string(current.StageName))
		}
		next := types.PipelineStages[idx+1]
		kind := types.TransitionAutomatic
		if force {
			kind = types.TransitionForced
		}
		return next, kind, nil
	})
}

// GoTo moves the pipeline directly to target, validating the same
// rules Progress does but allowing arbitrary forward/backward jumps.
// Skipping intervening non-skippable stages, or any backward move,
// requires force=true.
func (e *Engine) GoTo(ctx context.Context, taskID string, target types.StageName, force bool) (*types.Pipeline, error) {
	return e.transition(ctx, taskID, force, func(p *types.Pipeline, stages []types.Stage, current *types.Stage) (types.StageName, types.TransitionType, error) {
		if current.StageName == target {
			return target, types.TransitionAutomatic, nil
		}

		fromIdx := indexOfStage(current.StageName)
		toIdx := indexOfStage(target)
		if fromIdx < 0 || toIdx < 0 {
			return "", "", clerr.New(clerr.CodeTransitionDenied, clerr.ExitGeneral, "unknown stage: "+string(target))
		}

		kind := types.TransitionManual
		if toIdx < fromIdx {
			if !force {
				return "", "", clerr.New(clerr.CodeTransitionDenied, clerr.ExitGeneral,
					"backward move requires force").WithRecoverable()
			}
			kind = types.TransitionForced
		} else if toIdx > fromIdx+1 {
			if !allSkippableOrForced(types.PipelineStages[fromIdx+1:toIdx], force) {
				return "", "", clerr.New(clerr.CodeTransitionDenied, clerr.ExitGeneral,
					"skipping a non-skippable stage requires force").WithRecoverable()
			}
			if force {
				kind = types.TransitionForced
			}
		}
		return target, kind, nil
	})
}

func allSkippableOrForced(stages []types.StageName, force bool) bool {
	if force {
		return true
	}
	for _, name := range stages {
		def, ok := types.StageDefFor(name)
		if !ok || !def.Skippable {
			return false
		}
	}
	return true
}

func indexOfStage(name types.StageName) int {
	for i, s := range types.PipelineStages {
		if s == name {
			return i
		}
	}
	return -1
}

// transition is the shared body of Progress/GoTo: it loads the
// pipeline/stage state, asks decide for the target stage and
// transition kind, enforces the gate check and release-is-terminal
// rule, and records the move.
func (e *Engine) transition(ctx context.Context, taskID string, force bool,
	decide func(p *types.Pipeline, stages []types.Stage, current *types.Stage) (types.StageName, types.TransitionType, error)) (*types.Pipeline, error) {

	p, err := e.store.GetPipeline(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if p.Status != types.PipelineActive {
		return nil, clerr.New(clerr.CodeTransitionDenied, clerr.ExitGeneral, "pipeline is not active")
	}

	stages, err := e.store.GetStages(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	current, ok := findStageByID(stages, p.CurrentStageID)
	if !ok {
		return nil, clerr.Internal(fmt.Errorf("current stage %d not found in pipeline %d", p.CurrentStageID, p.ID))
	}

	if current.StageName == types.StageRelease {
		return nil, clerr.New(clerr.CodeTransitionDenied, clerr.ExitGeneral, "release is a terminal stage")
	}

	target, kind, err := decide(p, stages, current)
	if err != nil {
		return nil, err
	}

	if target == current.StageName {
		return p, nil // same-stage is a no-op
	}

	targetDef, ok := types.StageDefFor(target)
	if !ok {
		return nil, clerr.New(clerr.CodeTransitionDenied, clerr.ExitGeneral, "unknown target stage")
	}
	if ok, missing := prereqsSatisfied(targetDef, stages, current.StageName); !ok && kind != types.TransitionForced {
		return nil, clerr.New(clerr.CodeLifecyclePrereq, clerr.ExitRCSDPrerequisite,
			fmt.Sprintf("prerequisite stage %s not complete", missing)).WithRecoverable()
	}

	if kind != types.TransitionForced {
		if err := e.requireGatesPass(ctx, p, current); err != nil {
			return nil, err
		}
	}

	now := storage.Now()
	return p, e.store.RunInTransaction(ctx, func(tx storage.Transaction) error {
		current.Status = types.StageCompleted
		current.CompletedAt = &now
		if err := tx.UpdateStage(ctx, *current); err != nil {
			return err
		}

		targetStage, exists := stageByName(stages, target)
		if !exists {
			targetStage = &types.Stage{PipelineID: p.ID, StageName: target, Sequence: targetDef.Sequence}
		}
		targetStage.Status = types.StageInProgress
		targetStage.StartedAt = &now
		if err := tx.UpdateStage(ctx, *targetStage); err != nil {
			return err
		}

		if err := tx.RecordTransition(ctx, types.Transition{
			PipelineID:     p.ID,
			FromStageID:    current.ID,
			ToStageID:      targetStage.ID,
			TransitionType: kind,
			CreatedAt:      now,
		}); err != nil {
			return err
		}

		p.CurrentStageID = targetStage.ID
		return tx.UpdatePipeline(ctx, p)
	})
}

func findStageByID(stages []types.Stage, id int64) (*types.Stage, bool) {
	for i := range stages {
		if stages[i].ID == id {
			return &stages[i], true
		}
	}
	return nil, false
}

// requireGatesPass checks that every gate required for stage (its
// static StageDefinition.Gates plus any matching cross-cutting rule)
// has a recorded GateResult whose outcome is pass or warn. A gate with
// no recorded result, or whose most recent result is fail, blocks
// completion with E_GATE_FAILED.
func (e *Engine) requireGatesPass(ctx context.Context, p *types.Pipeline, stage *types.Stage) error {
	required := e.registry.RequiredGates(stage.StageName)
	if len(required) == 0 {
		return nil
	}

	results, err := e.store.GetGateResults(ctx, stage.ID)
	if err != nil {
		return err
	}
	latest := make(map[string]types.GateResultValue, len(results))
	for _, r := range results {
		latest[r.GateName] = r.Result // results are ordered oldest-first; last write wins
	}

	for _, name := range required {
		outcome, recorded := latest[name]
		if !recorded {
			return clerr.New(clerr.CodeGateFailed, clerr.ExitGateError,
				fmt.Sprintf("gate %q has not been recorded for stage %s", name, stage.StageName)).WithRecoverable()
		}
		if outcome == types.GateFail {
			return clerr.New(clerr.CodeGateFailed, clerr.ExitGateError,
				fmt.Sprintf("gate %q failed for stage %s", name, stage.StageName)).WithRecoverable()
		}
	}
	return nil
}

// Block marks the current stage blocked with an explanatory reason.
func (e *Engine) Block(ctx context.Context, taskID, reason string) error {
	p, err := e.store.GetPipeline(ctx, taskID)
	if err != nil {
		return err
	}
	stages, err := e.store.GetStages(ctx, p.ID)
	if err != nil {
		return err
	}
	current, ok := findStageByID(stages, p.CurrentStageID)
	if !ok {
		return clerr.Internal(fmt.Errorf("current stage not found"))
	}
	now := storage.Now()
	current.Status = types.StageBlocked
	current.BlockedAt = &now
	current.Reason = reason
	return e.store.UpdateStage(ctx, *current)
}

// Unblock returns the current stage to in_progress.
func (e *Engine) Unblock(ctx context.Context, taskID string) error {
	p, err := e.store.GetPipeline(ctx, taskID)
	if err != nil {
		return err
	}
	stages, err := e.store.GetStages(ctx, p.ID)
	if err != nil {
		return err
	}
	current, ok := findStageByID(stages, p.CurrentStageID)
	if !ok {
		return clerr.Internal(fmt.Errorf("current stage not found"))
	}
	if current.Status != types.StageBlocked {
		return clerr.New(clerr.CodeTransitionDenied, clerr.ExitGeneral, "stage is not blocked")
	}
	current.Status = types.StageInProgress
	current.BlockedAt = nil
	current.Reason = ""
	return e.store.UpdateStage(ctx, *current)
}

// Skip marks the current stage skipped and advances to the next stage.
// Skipping a non-skippable stage requires force.
func (e *Engine) Skip(ctx context.Context, taskID, reason string, force bool) (*types.Pipeline, error) {
	p, err := e.store.GetPipeline(ctx, taskID)
	if err != nil {
		return nil, err
	}
	stages, err := e.store.GetStages(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	current, ok := findStageByID(stages, p.CurrentStageID)
	if !ok {
		return nil, clerr.Internal(fmt.Errorf("current stage not found"))
	}
	def, ok := types.StageDefFor(current.StageName)
	if !ok {
		return nil, clerr.New(clerr.CodeTransitionDenied, clerr.ExitGeneral, "unknown stage")
	}
	if !def.Skippable && !force {
		return nil, clerr.New(clerr.CodeTransitionDenied, clerr.ExitGeneral,
			fmt.Sprintf("stage %s is not skippable", current.StageName)).WithRecoverable()
	}

	idx := indexOfStage(current.StageName)
	if idx < 0 || idx == len(types.PipelineStages)-1 {
		return nil, clerr.New(clerr.CodeTransitionDenied, clerr.ExitGeneral, "no further stage to skip into")
	}

	now := storage.Now()
	return p, e.store.RunInTransaction(ctx, func(tx storage.Transaction) error {
		current.Status = types.StageSkipped
		current.SkippedAt = &now
		current.Reason = reason
		if err := tx.UpdateStage(ctx, *current); err != nil {
			return err
		}

		next := types.PipelineStages[idx+1]
		nextDef, _ := types.StageDefFor(next)
		nextStage, exists := stageByName(stages, next)
		if !exists {
			nextStage = &types.Stage{PipelineID: p.ID, StageName: next, Sequence: nextDef.Sequence}
		}
		nextStage.Status = types.StageInProgress
		nextStage.StartedAt = &now
		if err := tx.UpdateStage(ctx, *nextStage); err != nil {
			return err
		}

		kind := types.TransitionManual
		if force {
			kind = types.TransitionForced
		}
		if err := tx.RecordTransition(ctx, types.Transition{
			PipelineID:     p.ID,
			FromStageID:    current.ID,
			ToStageID:      nextStage.ID,
			TransitionType: kind,
			CreatedAt:      now,
		}); err != nil {
			return err
		}

		p.CurrentStageID = nextStage.ID
		return tx.UpdatePipeline(ctx, p)
	})
}

// RecordGate stores the outcome of evaluating a named gate against the
// pipeline's current stage.
func (e *Engine) RecordGate(ctx context.Context, taskID, gateName string, result types.GateResultValue, checkedBy, details, reason string) error {
	p, err := e.store.GetPipeline(ctx, taskID)
	if err != nil {
		return err
	}
	return e.store.RecordGateResult(ctx, types.GateResult{
		StageID:   p.CurrentStageID,
		GateName:  gateName,
		Result:    result,
		CheckedBy: checkedBy,
		Details:   details,
		Reason:    reason,
		CheckedAt: time.Now(),
	})
}

// AddEvidence links supporting material to the pipeline's current stage.
func (e *Engine) AddEvidence(ctx context.Context, taskID, uri string, kind types.EvidenceType, description string) error {
	p, err := e.store.GetPipeline(ctx, taskID)
	if err != nil {
		return err
	}
	return e.store.RecordEvidence(ctx, types.Evidence{
		StageID:     p.CurrentStageID,
		URI:         uri,
		Type:        kind,
		Description: description,
		CreatedAt:   time.Now(),
	})
}
