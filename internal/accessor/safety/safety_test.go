package safety

import (
	"context"
	"testing"
	"time"

	"github.com/cleo-dev/cleo/internal/accessor"
	"github.com/cleo-dev/cleo/internal/types"
)

// stubAccessor is an in-memory accessor.Accessor for testing the safety
// wrapper's verification and collision logic in isolation from any real
// storage engine.
type stubAccessor struct {
	tasks        []*types.Task
	archive      []*types.Task
	sessions     []*types.Session
	dropOnSave   bool // simulate a write that silently drops a task
	mangleOnSave bool // simulate a write that corrupts a field
}

func (s *stubAccessor) LoadTaskFile(ctx context.Context) (*accessor.TaskFile, error) {
	return &accessor.TaskFile{Tasks: s.tasks}, nil
}

func (s *stubAccessor) SaveTaskFile(ctx context.Context, f *accessor.TaskFile) error {
	s.tasks = f.Tasks
	if s.dropOnSave && len(s.tasks) > 0 {
		s.tasks = s.tasks[:len(s.tasks)-1]
	}
	if s.mangleOnSave && len(s.tasks) > 0 {
		s.tasks[0].Title = "corrupted"
	}
	return nil
}

func (s *stubAccessor) LoadArchive(ctx context.Context) (*accessor.ArchiveFile, error) {
	return &accessor.ArchiveFile{Tasks: s.archive}, nil
}

func (s *stubAccessor) SaveArchive(ctx context.Context, f *accessor.ArchiveFile) error {
	s.archive = f.Tasks
	return nil
}

func (s *stubAccessor) LoadSessions(ctx context.Context) (*accessor.SessionsFile, error) {
	return &accessor.SessionsFile{Sessions: s.sessions}, nil
}

func (s *stubAccessor) SaveSessions(ctx context.Context, f *accessor.SessionsFile) error {
	s.sessions = f.Sessions
	return nil
}

func (s *stubAccessor) AppendLog(ctx context.Context, entry types.AuditEntry) error { return nil }
func (s *stubAccessor) Close() error                                               { return nil }

func newTask(id, title string) *types.Task {
	return &types.Task{ID: id, Title: title, Status: types.StatusPending, CreatedAt: time.Now(), UpdatedAt: time.Now()}
}

func TestSaveTaskFileRejectsDuplicateIDsInBatch(t *testing.T) {
	stub := &stubAccessor{}
	wrapped := Wrap(stub)
	ctx := context.Background()

	f := &accessor.TaskFile{Tasks: []*types.Task{newTask("T1", "a"), newTask("T1", "b")}}
	if err := wrapped.SaveTaskFile(ctx, f); err == nil {
		t.Fatal("expected duplicate ID to be rejected")
	}
}

func TestSaveTaskFileDetectsDroppedRow(t *testing.T) {
	stub := &stubAccessor{dropOnSave: true}
	wrapped := Wrap(stub)
	ctx := context.Background()

	f := &accessor.TaskFile{Tasks: []*types.Task{newTask("T1", "a")}}
	if err := wrapped.SaveTaskFile(ctx, f); err == nil {
		t.Fatal("expected write verification to fail when a row is silently dropped")
	}
}

func TestSaveTaskFileDetectsMangledRow(t *testing.T) {
	stub := &stubAccessor{mangleOnSave: true}
	wrapped := Wrap(stub)
	ctx := context.Background()

	f := &accessor.TaskFile{Tasks: []*types.Task{newTask("T1", "a")}}
	if err := wrapped.SaveTaskFile(ctx, f); err == nil {
		t.Fatal("expected write verification to fail when a field is mangled")
	}
}

func TestSaveTaskFileAcceptsCleanWrite(t *testing.T) {
	stub := &stubAccessor{}
	wrapped := Wrap(stub)
	ctx := context.Background()

	f := &accessor.TaskFile{Tasks: []*types.Task{newTask("T1", "a"), newTask("T2", "b")}}
	if err := wrapped.SaveTaskFile(ctx, f); err != nil {
		t.Fatalf("expected clean write to succeed, got %v", err)
	}
}

func TestSaveSessionsAcceptsCleanWrite(t *testing.T) {
	stub := &stubAccessor{}
	wrapped := Wrap(stub)
	ctx := context.Background()

	f := &accessor.SessionsFile{Sessions: []*types.Session{{ID: "session_1", Status: types.SessionActive, StartedAt: time.Now()}}}
	if err := wrapped.SaveSessions(ctx, f); err != nil {
		t.Fatalf("expected clean write to succeed, got %v", err)
	}
}
