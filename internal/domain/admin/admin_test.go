package admin

import (
	"context"
	"testing"
	"time"

	"github.com/cleo-dev/cleo/internal/config"
	"github.com/cleo-dev/cleo/internal/domain/session"
	"github.com/cleo-dev/cleo/internal/storage"
	"github.com/cleo-dev/cleo/internal/storage/sqlite"
	"github.com/cleo-dev/cleo/internal/types"
)

func newTestFixture(t *testing.T) (*Service, storage.Storage) {
	t.Helper()
	ctx := context.Background()
	store, err := sqlite.Open(ctx, ":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	cfg, err := config.Load(t.TempDir())
	if err != nil {
		t.Fatalf("config.Load: %v", err)
	}
	sessions := session.New(store)
	return New(store, sessions, cfg), store
}

func TestDashboardReportsStats(t *testing.T) {
	s, store := newTestFixture(t)
	ctx := context.Background()

	if err := store.CreateTask(ctx, &types.Task{
		Title: "seed", Status: types.StatusPending, Priority: types.PriorityMedium,
		Type: types.TypeTask, Size: types.SizeMedium,
		CreatedAt: time.Now(), UpdatedAt: time.Now(),
	}); err != nil {
		t.Fatalf("CreateTask: %v", err)
	}

	dash, err := s.Dashboard(ctx)
	if err != nil {
		t.Fatalf("Dashboard: %v", err)
	}
	if dash.Stats.TotalTasks != 1 {
		t.Errorf("TotalTasks = %d, want 1", dash.Stats.TotalTasks)
	}
}

func TestConfigGetSetRoundTrips(t *testing.T) {
	s, _ := newTestFixture(t)
	dir := t.TempDir()
	s.cfg, _ = config.Load(dir)

	if err := s.ConfigSet(dir, "rateLimiting.mutate", 50); err != nil {
		t.Fatalf("ConfigSet: %v", err)
	}
	got, err := s.ConfigGet("rateLimiting.mutate")
	if err != nil {
		t.Fatalf("ConfigGet: %v", err)
	}
	if got != 50 {
		t.Errorf("rateLimiting.mutate = %v, want 50", got)
	}

	if err := s.ConfigSet(dir, "bogus.key", 1); err == nil {
		t.Fatal("expected error for unrecognised config key")
	}
}

func TestPurgeTombstonesRemovesOldDeletes(t *testing.T) {
	s, store := newTestFixture(t)
	ctx := context.Background()

	task := &types.Task{
		Title: "to delete", Status: types.StatusPending, Priority: types.PriorityMedium,
		Type: types.TypeTask, Size: types.SizeMedium,
		CreatedAt: time.Now(), UpdatedAt: time.Now(),
	}
	if err := store.CreateTask(ctx, task); err != nil {
		t.Fatalf("CreateTask: %v", err)
	}
	if err := store.DeleteTask(ctx, task.ID, "test cleanup"); err != nil {
		t.Fatalf("DeleteTask: %v", err)
	}

	n, err := s.PurgeTombstones(ctx, time.Hour)
	if err != nil {
		t.Fatalf("PurgeTombstones: %v", err)
	}
	if n != 0 {
		t.Errorf("PurgeTombstones with 1h retention purged %d, want 0 (deletion just happened)", n)
	}

	// A cutoff in the future catches every tombstone regardless of age,
	// exercising the underlying storage.PurgeTombstones call directly.
	n, err = store.PurgeTombstones(ctx, time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("store.PurgeTombstones: %v", err)
	}
	if n != 1 {
		t.Errorf("PurgeTombstones = %d, want 1", n)
	}
}

func TestSafeStopEndsActiveSessions(t *testing.T) {
	s, store := newTestFixture(t)
	ctx := context.Background()

	sess := &types.Session{
		ID: "session_20260729_000000_abcdef", Status: types.SessionActive,
		Scope: types.Scope{Type: types.ScopeGlobal}, StartedAt: time.Now(),
	}
	if err := store.CreateSession(ctx, sess); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	ended, err := s.SafeStop(ctx, "shutting down for maintenance")
	if err != nil {
		t.Fatalf("SafeStop: %v", err)
	}
	if len(ended) != 1 {
		t.Fatalf("SafeStop ended %d sessions, want 1", len(ended))
	}
	if ended[0].Status != types.SessionEnded {
		t.Errorf("Status = %q, want ended", ended[0].Status)
	}
}
