package lifecycle

import (
	"context"
	"testing"

	"github.com/cleo-dev/cleo/internal/storage/sqlite"
	"github.com/cleo-dev/cleo/internal/types"
)

func newTestEngine(t *testing.T) (*Engine, string) {
	t.Helper()
	ctx := context.Background()
	store, err := sqlite.Open(ctx, ":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	task := &types.Task{ID: "T1", Title: "test task", Status: types.StatusPending}
	if err := store.CreateTask(ctx, task); err != nil {
		t.Fatalf("create task: %v", err)
	}

	return NewEngine(store), "T1"
}

func TestStartPipelineBeginsAtResearch(t *testing.T) {
	e, taskID := newTestEngine(t)
	ctx := context.Background()

	p, err := e.StartPipeline(ctx, taskID)
	if err != nil {
		t.Fatalf("StartPipeline: %v", err)
	}
	if p.Status != types.PipelineActive {
		t.Errorf("Status = %q, want active", p.Status)
	}

	stages, err := e.store.GetStages(ctx, p.ID)
	if err != nil {
		t.Fatalf("GetStages: %v", err)
	}
	current, ok := findStageByID(stages, p.CurrentStageID)
	if !ok {
		t.Fatal("current stage not found")
	}
	if current.StageName != types.StageResearch {
		t.Errorf("current stage = %q, want research", current.StageName)
	}
}

func TestProgressRequiresGatesByDefault(t *testing.T) {
	e, taskID := newTestEngine(t)
	ctx := context.Background()

	if _, err := e.StartPipeline(ctx, taskID); err != nil {
		t.Fatalf("StartPipeline: %v", err)
	}

	if _, err := e.Progress(ctx, taskID, false); err == nil {
		t.Fatal("expected progress to fail without the research stage's gate recorded")
	}
}

func TestProgressSucceedsOnceGatesRecorded(t *testing.T) {
	e, taskID := newTestEngine(t)
	ctx := context.Background()

	if _, err := e.StartPipeline(ctx, taskID); err != nil {
		t.Fatalf("StartPipeline: %v", err)
	}
	if err := e.RecordGate(ctx, taskID, "research.sources-cited", types.GatePass, "reviewer", "", ""); err != nil {
		t.Fatalf("RecordGate: %v", err)
	}

	p, err := e.Progress(ctx, taskID, false)
	if err != nil {
		t.Fatalf("Progress: %v", err)
	}
	stages, _ := e.store.GetStages(ctx, p.ID)
	current, _ := findStageByID(stages, p.CurrentStageID)
	if current.StageName != types.StageConsensus {
		t.Errorf("current stage = %q, want consensus", current.StageName)
	}
}

func TestGoToRejectsBackwardMoveWithoutForce(t *testing.T) {
	e, taskID := newTestEngine(t)
	ctx := context.Background()

	if _, err := e.StartPipeline(ctx, taskID); err != nil {
		t.Fatalf("StartPipeline: %v", err)
	}
	if err := e.RecordGate(ctx, taskID, "research.sources-cited", types.GatePass, "r", "", ""); err != nil {
		t.Fatalf("RecordGate: %v", err)
	}
	if _, err := e.Progress(ctx, taskID, false); err != nil {
		t.Fatalf("Progress: %v", err)
	}

	if _, err := e.GoTo(ctx, taskID, types.StageResearch, false); err == nil {
		t.Fatal("expected backward move without force to fail")
	}
	if _, err := e.GoTo(ctx, taskID, types.StageResearch, true); err != nil {
		t.Fatalf("expected forced backward move to succeed: %v", err)
	}
}

func TestGoToRejectsSkippingNonSkippableStageWithoutForce(t *testing.T) {
	e, taskID := newTestEngine(t)
	ctx := context.Background()

	if _, err := e.StartPipeline(ctx, taskID); err != nil {
		t.Fatalf("StartPipeline: %v", err)
	}
	// implement lies five stages ahead of research; jumping straight to it
	// passes over consensus and adr (skippable) and over spec and decompose
	// (non-skippable), so it needs force. research's own gate is recorded
	// first so that only the skip rule is in play.
	if err := e.RecordGate(ctx, taskID, "research.sources-cited", types.GatePass, "r", "", ""); err != nil {
		t.Fatalf("RecordGate: %v", err)
	}

	if _, err := e.GoTo(ctx, taskID, types.StageImplement, false); err == nil {
		t.Fatal("expected skipping the non-skippable spec/decompose stages to fail without force")
	}
	if _, err := e.GoTo(ctx, taskID, types.StageImplement, true); err != nil {
		t.Fatalf("expected forced skip to succeed: %v", err)
	}
}

func TestSkipRejectsNonSkippableStageWithoutForce(t *testing.T) {
	e, taskID := newTestEngine(t)
	ctx := context.Background()

	if _, err := e.StartPipeline(ctx, taskID); err != nil {
		t.Fatalf("StartPipeline: %v", err)
	}

	if _, err := e.Skip(ctx, taskID, "not ready", false); err == nil {
		t.Fatal("expected skip of non-skippable research stage to fail")
	}
	if _, err := e.Skip(ctx, taskID, "not ready", true); err != nil {
		t.Fatalf("expected forced skip to succeed: %v", err)
	}
}

func TestBlockAndUnblock(t *testing.T) {
	e, taskID := newTestEngine(t)
	ctx := context.Background()

	if _, err := e.StartPipeline(ctx, taskID); err != nil {
		t.Fatalf("StartPipeline: %v", err)
	}
	if err := e.Block(ctx, taskID, "waiting on design review"); err != nil {
		t.Fatalf("Block: %v", err)
	}

	p, _ := e.store.GetPipeline(ctx, taskID)
	stages, _ := e.store.GetStages(ctx, p.ID)
	current, _ := findStageByID(stages, p.CurrentStageID)
	if current.Status != types.StageBlocked {
		t.Errorf("Status = %q, want blocked", current.Status)
	}

	if err := e.Unblock(ctx, taskID); err != nil {
		t.Fatalf("Unblock: %v", err)
	}
	stages, _ = e.store.GetStages(ctx, p.ID)
	current, _ = findStageByID(stages, p.CurrentStageID)
	if current.Status != types.StageInProgress {
		t.Errorf("Status after unblock = %q, want in_progress", current.Status)
	}
}

func TestCrossCuttingGateSkipsNonMatchingStageName(t *testing.T) {
	e, taskID := newTestEngine(t)
	ctx := context.Background()

	e.Registry().AddCrossCutting(CrossCuttingGate{Target: "*.implement", Gate: "security.scan"})
	// the rule's target is a stage-name glob; "implement" itself doesn't
	// match "*.implement" (no dot prefix), so this exercises the exact
	// pattern a stage name must have to pick up the extra gate.
	required := e.Registry().RequiredGates(types.StageImplement)
	for _, g := range required {
		if g == "security.scan" {
			t.Fatal("expected *.implement not to match the bare stage name \"implement\"")
		}
	}

	if _, err := e.StartPipeline(ctx, taskID); err != nil {
		t.Fatalf("StartPipeline: %v", err)
	}
}
