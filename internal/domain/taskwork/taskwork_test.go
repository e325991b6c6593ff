package taskwork

import (
	"context"
	"testing"
	"time"

	"github.com/cleo-dev/cleo/internal/storage/sqlite"
	"github.com/cleo-dev/cleo/internal/types"
)

func newTestFixture(t *testing.T) (*Service, string, string, string) {
	t.Helper()
	ctx := context.Background()
	store, err := sqlite.Open(ctx, ":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	sess := &types.Session{ID: "session_20260101_000000_abcdef", Status: types.SessionActive, StartedAt: time.Now()}
	if err := store.CreateSession(ctx, sess); err != nil {
		t.Fatalf("create session: %v", err)
	}
	t1 := &types.Task{ID: "T1", Title: "a", Status: types.StatusPending}
	t2 := &types.Task{ID: "T2", Title: "b", Status: types.StatusPending}
	if err := store.CreateTask(ctx, t1); err != nil {
		t.Fatalf("create task 1: %v", err)
	}
	if err := store.CreateTask(ctx, t2); err != nil {
		t.Fatalf("create task 2: %v", err)
	}
	return New(store), sess.ID, t1.ID, t2.ID
}

func TestStartThenSwitchClosesPriorEntry(t *testing.T) {
	s, sessionID, t1, t2 := newTestFixture(t)
	ctx := context.Background()

	if _, err := s.Start(ctx, sessionID, t1); err != nil {
		t.Fatalf("Start: %v", err)
	}
	cur, err := s.Current(ctx, sessionID)
	if err != nil {
		t.Fatalf("Current: %v", err)
	}
	if cur.TaskID != t1 {
		t.Errorf("TaskID = %q, want %q", cur.TaskID, t1)
	}

	if _, err := s.Start(ctx, sessionID, t2); err != nil {
		t.Fatalf("Start second: %v", err)
	}
	cur, err = s.Current(ctx, sessionID)
	if err != nil {
		t.Fatalf("Current after switch: %v", err)
	}
	if cur.TaskID != t2 {
		t.Errorf("TaskID after switch = %q, want %q", cur.TaskID, t2)
	}

	history, err := s.History(ctx, sessionID, 0)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("history length = %d, want 2", len(history))
	}
}

func TestStopClearsCurrent(t *testing.T) {
	s, sessionID, t1, _ := newTestFixture(t)
	ctx := context.Background()

	if _, err := s.Start(ctx, sessionID, t1); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := s.Stop(ctx, sessionID); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if _, err := s.Current(ctx, sessionID); err == nil {
		t.Fatal("expected no current focus after Stop")
	}
}

func TestStartRejectsUnknownTask(t *testing.T) {
	s, sessionID, _, _ := newTestFixture(t)
	ctx := context.Background()

	if _, err := s.Start(ctx, sessionID, "T999"); err == nil {
		t.Fatal("expected not-found error for unknown task")
	}
}
