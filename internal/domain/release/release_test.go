package release

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/cleo-dev/cleo/internal/export"
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

func TestExportThenImportRoundTrips(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	if err := s.store.CreateTask(ctx, &types.Task{
		Title: "snapshot me", Status: types.StatusPending, Priority: types.PriorityHigh,
		Type: types.TypeTask, Size: types.SizeMedium,
		CreatedAt: time.Now(), UpdatedAt: time.Now(),
	}); err != nil {
		t.Fatalf("CreateTask: %v", err)
	}

	var buf bytes.Buffer
	manifest, err := s.Export(ctx, &buf, export.PolicyStrict)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if manifest.ExportedCount != 1 {
		t.Fatalf("ExportedCount = %d, want 1", manifest.ExportedCount)
	}

	fresh := newTestService(t)
	result, err := fresh.Import(ctx, &buf, export.PolicyStrict)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if result.Created != 1 {
		t.Fatalf("Created = %d, want 1", result.Created)
	}

	got, err := fresh.store.ListTasks(ctx, types.TaskFilter{})
	if err != nil {
		t.Fatalf("ListTasks: %v", err)
	}
	if len(got) != 1 || got[0].Title != "snapshot me" {
		t.Fatalf("imported task = %+v", got)
	}
}

func TestImportUpdatesExistingTask(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	task := &types.Task{
		Title: "original", Status: types.StatusPending, Priority: types.PriorityMedium,
		Type: types.TypeTask, Size: types.SizeMedium,
		CreatedAt: time.Now(), UpdatedAt: time.Now(),
	}
	if err := s.store.CreateTask(ctx, task); err != nil {
		t.Fatalf("CreateTask: %v", err)
	}

	task.Title = "revised"
	line, err := encodeLine(task)
	if err != nil {
		t.Fatalf("encodeLine: %v", err)
	}

	result, err := s.Import(ctx, strings.NewReader(line), export.PolicyStrict)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if result.Updated != 1 {
		t.Fatalf("Updated = %d, want 1", result.Updated)
	}

	got, err := s.store.GetTask(ctx, task.ID)
	if err != nil {
		t.Fatalf("GetTask: %v", err)
	}
	if got.Title != "revised" {
		t.Errorf("Title = %q, want revised", got.Title)
	}
}

func TestBump(t *testing.T) {
	cases := []struct {
		current string
		kind    BumpKind
		want    string
	}{
		{"1.2.3", BumpPatch, "1.2.4"},
		{"1.2.3", BumpMinor, "1.3.0"},
		{"1.2.3", BumpMajor, "2.0.0"},
	}
	for _, c := range cases {
		got, err := Bump(c.current, c.kind)
		if err != nil {
			t.Fatalf("Bump(%s, %s): %v", c.current, c.kind, err)
		}
		if got != c.want {
			t.Errorf("Bump(%s, %s) = %s, want %s", c.current, c.kind, got, c.want)
		}
	}
}

func TestChangelogGroupsByPriorityAndCutoff(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	cutoff := time.Now().Add(-time.Hour)

	old := time.Now().Add(-48 * time.Hour)
	recent := time.Now()

	mk := func(title string, priority types.Priority, completedAt time.Time) {
		task := &types.Task{
			Title: title, Status: types.StatusActive, Priority: priority,
			Type: types.TypeTask, Size: types.SizeMedium,
			CreatedAt: time.Now(), UpdatedAt: time.Now(),
		}
		if err := s.store.CreateTask(ctx, task); err != nil {
			t.Fatalf("CreateTask: %v", err)
		}
		task.Status = types.StatusDone
		task.CompletedAt = &completedAt
		if err := s.store.UpdateTask(ctx, task); err != nil {
			t.Fatalf("UpdateTask: %v", err)
		}
	}
	mk("too old", types.PriorityCritical, old)
	mk("low pri recent", types.PriorityLow, recent)
	mk("critical recent", types.PriorityCritical, recent)

	out, err := s.Changelog(ctx, cutoff)
	if err != nil {
		t.Fatalf("Changelog: %v", err)
	}
	if strings.Contains(out, "too old") {
		t.Errorf("changelog included a task completed before cutoff:\n%s", out)
	}
	critIdx := strings.Index(out, "critical recent")
	lowIdx := strings.Index(out, "low pri recent")
	if critIdx == -1 || lowIdx == -1 || critIdx > lowIdx {
		t.Errorf("expected critical entry before low-priority entry:\n%s", out)
	}
}

func encodeLine(t *types.Task) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	if err := enc.Encode(t); err != nil {
		return "", err
	}
	return buf.String(), nil
}
