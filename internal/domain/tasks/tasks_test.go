package tasks

import (
	"context"
	"testing"

	"github.com/cleo-dev/cleo/internal/storage/sqlite"
	"github.com/cleo-dev/cleo/internal/types"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	ctx := context.Background()
	store, err := sqlite.Open(ctx, ":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return New(store)
}

func TestAddRejectsIdenticalTitleAndDescription(t *testing.T) {
	s := newTestService(t)
	_, err := s.Add(context.Background(), AddParams{Title: "same", Description: "same"})
	if err == nil {
		t.Fatal("expected error for identical title/description")
	}
}

func TestAddRejectsMissingParent(t *testing.T) {
	s := newTestService(t)
	_, err := s.Add(context.Background(), AddParams{Title: "child", ParentID: "T999"})
	if err == nil {
		t.Fatal("expected parent-not-found error")
	}
}

func TestAddShowUpdateComplete(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	task, err := s.Add(ctx, AddParams{Title: "write docs", Description: "draft the README"})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if task.Status != types.StatusPending {
		t.Errorf("Status = %q, want pending", task.Status)
	}

	got, err := s.Show(ctx, task.ID)
	if err != nil {
		t.Fatalf("Show: %v", err)
	}
	if got.Title != "write docs" {
		t.Errorf("Title = %q", got.Title)
	}

	updated, err := s.Update(ctx, task.ID, map[string]any{"status": "active"}, "agent-1")
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.Status != types.StatusActive {
		t.Errorf("Status after update = %q, want active", updated.Status)
	}

	done, err := s.Complete(ctx, task.ID, "agent-1")
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if done.Status != types.StatusDone || done.CompletedAt == nil {
		t.Errorf("task not marked done: %+v", done)
	}

	firstCompletedAt := *done.CompletedAt
	again, err := s.Complete(ctx, task.ID, "agent-1")
	if err != nil {
		t.Fatalf("second Complete: %v", err)
	}
	if !again.NoChange {
		t.Error("second Complete on an already-done task should report NoChange=true")
	}
	if !again.CompletedAt.Equal(firstCompletedAt) {
		t.Errorf("second Complete re-stamped CompletedAt: got %v, want %v", again.CompletedAt, firstCompletedAt)
	}
}

func TestUpdateRejectsUnknownField(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	task, _ := s.Add(ctx, AddParams{Title: "t", Description: "d"})

	if _, err := s.Update(ctx, task.ID, map[string]any{"id": "T999"}, "a"); err == nil {
		t.Fatal("expected error updating a non-whitelisted field")
	}
}

func TestUpdateRejectsInvalidStatusTransition(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	task, _ := s.Add(ctx, AddParams{Title: "t", Description: "d"})

	if _, err := s.Update(ctx, task.ID, map[string]any{"status": "done"}, "a"); err == nil {
		t.Fatal("expected pending->done to be rejected (must go through active)")
	}
}

func TestDeleteRefusesTaskWithChildren(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	parent, _ := s.Add(ctx, AddParams{Title: "epic", Description: "d"})
	if _, err := s.Add(ctx, AddParams{Title: "child", Description: "d2", ParentID: parent.ID}); err != nil {
		t.Fatalf("Add child: %v", err)
	}

	if err := s.Delete(ctx, parent.ID, "cleanup", false); err == nil {
		t.Fatal("expected E_HAS_CHILDREN without cascade")
	}
	if err := s.Delete(ctx, parent.ID, "cleanup", true); err != nil {
		t.Fatalf("Delete with cascade: %v", err)
	}
}

func TestClaimIsExclusiveWhileActive(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	task, _ := s.Add(ctx, AddParams{Title: "t", Description: "d"})

	claimed, err := s.Claim(ctx, task.ID, "agent-a")
	if err != nil {
		t.Fatalf("Claim: %v", err)
	}
	if claimed.Status != types.StatusActive || claimed.ModifiedBy != "agent-a" {
		t.Errorf("unexpected claim result: %+v", claimed)
	}

	if _, err := s.Claim(ctx, task.ID, "agent-b"); err == nil {
		t.Fatal("expected second claim by a different owner to fail while active")
	}
}

func TestFindDefaultsLimit(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	if _, err := s.Add(ctx, AddParams{Title: "find me", Description: "unique description text"}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	results, err := s.Find(ctx, "find me", types.TaskFilter{})
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
}

func TestArchiveBatchCollectsFailures(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	task, _ := s.Add(ctx, AddParams{Title: "t", Description: "d"})

	succeeded, failed := s.ArchiveBatch(ctx, []string{task.ID, "T999"}, "done with it", "agent-1")
	if len(succeeded) != 1 {
		t.Errorf("succeeded = %d, want 1", len(succeeded))
	}
	if len(failed) != 1 {
		t.Errorf("failed = %d, want 1", len(failed))
	}
}
