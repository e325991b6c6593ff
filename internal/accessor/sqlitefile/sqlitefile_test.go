package sqlitefile

import (
	"context"
	"testing"
	"time"

	"github.com/cleo-dev/cleo/internal/storage/sqlite"
	"github.com/cleo-dev/cleo/internal/types"
)

func newTestAccessor(t *testing.T) *Accessor {
	t.Helper()
	store, err := sqlite.Open(context.Background(), ":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return New(store)
}

func newTask(title string) *types.Task {
	now := time.Now()
	return &types.Task{
		Title:     title,
		Status:    types.StatusPending,
		Priority:  types.PriorityMedium,
		Type:      types.TypeTask,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestLoadTaskFileEmpty(t *testing.T) {
	a := newTestAccessor(t)
	f, err := a.LoadTaskFile(context.Background())
	if err != nil {
		t.Fatalf("LoadTaskFile: %v", err)
	}
	if len(f.Tasks) != 0 {
		t.Errorf("expected no tasks, got %d", len(f.Tasks))
	}
	if f.NextTaskID != 1 {
		t.Errorf("NextTaskID = %d, want 1", f.NextTaskID)
	}
}

func TestSaveTaskFileRoundTrip(t *testing.T) {
	ctx := context.Background()
	a := newTestAccessor(t)

	if err := a.Store().CreateTask(ctx, newTask("first")); err != nil {
		t.Fatalf("create task: %v", err)
	}

	f, err := a.LoadTaskFile(ctx)
	if err != nil {
		t.Fatalf("LoadTaskFile: %v", err)
	}
	if len(f.Tasks) != 1 {
		t.Fatalf("expected 1 task, got %d", len(f.Tasks))
	}

	f.Tasks[0].Title = "renamed"
	if err := a.SaveTaskFile(ctx, f); err != nil {
		t.Fatalf("SaveTaskFile: %v", err)
	}

	reloaded, err := a.LoadTaskFile(ctx)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.Tasks[0].Title != "renamed" {
		t.Errorf("Title = %q, want %q", reloaded.Tasks[0].Title, "renamed")
	}
}

func TestSaveTaskFileCreatesNewTasks(t *testing.T) {
	ctx := context.Background()
	a := newTestAccessor(t)

	f, err := a.LoadTaskFile(ctx)
	if err != nil {
		t.Fatalf("LoadTaskFile: %v", err)
	}
	f.Tasks = append(f.Tasks, newTask("brand new"))
	if err := a.SaveTaskFile(ctx, f); err != nil {
		t.Fatalf("SaveTaskFile: %v", err)
	}

	reloaded, err := a.LoadTaskFile(ctx)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if len(reloaded.Tasks) != 1 {
		t.Fatalf("expected 1 task, got %d", len(reloaded.Tasks))
	}
	if reloaded.Tasks[0].ID == "" {
		t.Error("expected new task to be assigned an ID")
	}
}

func TestLoadTaskFileExcludesArchived(t *testing.T) {
	ctx := context.Background()
	a := newTestAccessor(t)

	active := newTask("active")
	if err := a.Store().CreateTask(ctx, active); err != nil {
		t.Fatalf("create active: %v", err)
	}
	archived := newTask("archived")
	archived.Status = types.StatusArchived
	if err := a.Store().CreateTask(ctx, archived); err != nil {
		t.Fatalf("create archived: %v", err)
	}

	f, err := a.LoadTaskFile(ctx)
	if err != nil {
		t.Fatalf("LoadTaskFile: %v", err)
	}
	if len(f.Tasks) != 1 || f.Tasks[0].ID != active.ID {
		t.Errorf("expected only the active task, got %+v", f.Tasks)
	}

	af, err := a.LoadArchive(ctx)
	if err != nil {
		t.Fatalf("LoadArchive: %v", err)
	}
	if len(af.Tasks) != 1 || af.Tasks[0].ID != archived.ID {
		t.Errorf("expected only the archived task, got %+v", af.Tasks)
	}
}

func TestSessionsRoundTrip(t *testing.T) {
	ctx := context.Background()
	a := newTestAccessor(t)

	sf, err := a.LoadSessions(ctx)
	if err != nil {
		t.Fatalf("LoadSessions: %v", err)
	}
	sf.Sessions = append(sf.Sessions, &types.Session{
		ID:        "session_20260101_000000_abcdef",
		Status:    types.SessionActive,
		Scope:     types.Scope{Type: types.ScopeGlobal},
		StartedAt: time.Now(),
	})
	if err := a.SaveSessions(ctx, sf); err != nil {
		t.Fatalf("SaveSessions: %v", err)
	}

	reloaded, err := a.LoadSessions(ctx)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if len(reloaded.Sessions) != 1 {
		t.Fatalf("expected 1 session, got %d", len(reloaded.Sessions))
	}
	if reloaded.CurrentSessionID != reloaded.Sessions[0].ID {
		t.Errorf("CurrentSessionID = %q, want %q", reloaded.CurrentSessionID, reloaded.Sessions[0].ID)
	}
}

func TestAppendLog(t *testing.T) {
	ctx := context.Background()
	a := newTestAccessor(t)

	err := a.AppendLog(ctx, types.AuditEntry{
		ID:        "11111111-1111-1111-1111-111111111111",
		Timestamp: time.Now(),
		Action:    "tasks.add",
		Actor:     "test",
	})
	if err != nil {
		t.Fatalf("AppendLog: %v", err)
	}

	entries, err := a.Store().ListAudit(ctx, "", 10)
	if err != nil {
		t.Fatalf("ListAudit: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 audit entry, got %d", len(entries))
	}
}
