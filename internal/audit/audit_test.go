package audit

import (
	"context"
	"testing"
	"time"

	"github.com/cleo-dev/cleo/internal/accessor"
	"github.com/cleo-dev/cleo/internal/types"
)

type stubStore struct {
	entries []types.AuditEntry
	rotated int
}

func (s *stubStore) LoadTaskFile(ctx context.Context) (*accessor.TaskFile, error) { return nil, nil }
func (s *stubStore) SaveTaskFile(ctx context.Context, f *accessor.TaskFile) error  { return nil }
func (s *stubStore) LoadArchive(ctx context.Context) (*accessor.ArchiveFile, error) {
	return nil, nil
}
func (s *stubStore) SaveArchive(ctx context.Context, f *accessor.ArchiveFile) error { return nil }
func (s *stubStore) LoadSessions(ctx context.Context) (*accessor.SessionsFile, error) {
	return nil, nil
}
func (s *stubStore) SaveSessions(ctx context.Context, f *accessor.SessionsFile) error { return nil }
func (s *stubStore) AppendLog(ctx context.Context, entry types.AuditEntry) error {
	s.entries = append(s.entries, entry)
	return nil
}
func (s *stubStore) Close() error { return nil }
func (s *stubStore) Rotate(ctx context.Context) error {
	s.rotated++
	return nil
}

func TestLogFillsIDAndTimestamp(t *testing.T) {
	store := &stubStore{}
	logger := NewLogger(store)

	err := logger.Log(context.Background(), types.AuditEntry{Action: "tasks.add", Actor: "test"})
	if err != nil {
		t.Fatalf("Log: %v", err)
	}
	if len(store.entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(store.entries))
	}
	got := store.entries[0]
	if got.ID == "" {
		t.Error("expected ID to be filled")
	}
	if got.Timestamp.IsZero() {
		t.Error("expected Timestamp to be filled")
	}
}

func TestLogPreservesExplicitIDAndTimestamp(t *testing.T) {
	store := &stubStore{}
	logger := NewLogger(store)
	ts := time.Now().Add(-time.Hour)

	err := logger.Log(context.Background(), types.AuditEntry{ID: "fixed", Timestamp: ts, Action: "tasks.add", Actor: "test"})
	if err != nil {
		t.Fatalf("Log: %v", err)
	}
	if store.entries[0].ID != "fixed" {
		t.Errorf("ID = %q, want %q", store.entries[0].ID, "fixed")
	}
	if !store.entries[0].Timestamp.Equal(ts) {
		t.Errorf("Timestamp was overwritten")
	}
}

func TestRotateForwardsToRotatableStore(t *testing.T) {
	store := &stubStore{}
	logger := NewLogger(store)

	if err := logger.Rotate(context.Background()); err != nil {
		t.Fatalf("Rotate: %v", err)
	}
	if store.rotated != 1 {
		t.Errorf("rotated = %d, want 1", store.rotated)
	}
}

func TestRotateNoOpForNonRotatableStore(t *testing.T) {
	inner := &stubStore{}
	// Wrap with a type that hides Rotate by embedding only the interface
	// methods accessor.Accessor requires.
	var store accessor.Accessor = struct {
		accessor.Accessor
	}{inner}
	logger := NewLogger(store)

	if err := logger.Rotate(context.Background()); err != nil {
		t.Fatalf("Rotate on non-rotatable store should no-op, got: %v", err)
	}
}

func TestAccumulateTriggersAutomaticRotation(t *testing.T) {
	store := &stubStore{}
	logger := NewLogger(store)

	// Start just under the threshold so the single entry below crosses it.
	logger.bytesWritten = RotationThreshold - 10

	err := logger.Log(context.Background(), types.AuditEntry{Action: "tasks.add", Actor: "test", Details: map[string]any{"note": "padding-entry-crossing-threshold"}})
	if err != nil {
		t.Fatalf("Log: %v", err)
	}
	if store.rotated != 1 {
		t.Errorf("expected automatic rotation once threshold crossed, rotated = %d", store.rotated)
	}
}
