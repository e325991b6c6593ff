package lifecycledomain

import (
	"context"
	"testing"

	"github.com/cleo-dev/cleo/internal/storage/sqlite"
	"github.com/cleo-dev/cleo/internal/types"
)

func TestStartAndProgressThroughWrapper(t *testing.T) {
	ctx := context.Background()
	store, err := sqlite.Open(ctx, ":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	task := &types.Task{ID: "T1", Title: "test", Status: types.StatusPending}
	if err := store.CreateTask(ctx, task); err != nil {
		t.Fatalf("create task: %v", err)
	}

	svc := New(store, nil)
	if _, err := svc.Start(ctx, task.ID); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := svc.RecordGate(ctx, task.ID, "research.sources-cited", types.GatePass, "r", "", ""); err != nil {
		t.Fatalf("RecordGate: %v", err)
	}
	p, err := svc.Progress(ctx, task.ID, false)
	if err != nil {
		t.Fatalf("Progress: %v", err)
	}
	if p.Status != types.PipelineActive {
		t.Errorf("Status = %q, want active", p.Status)
	}
}
