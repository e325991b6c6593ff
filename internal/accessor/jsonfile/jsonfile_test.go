package jsonfile

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cleo-dev/cleo/internal/accessor"
	"github.com/cleo-dev/cleo/internal/types"
)

func TestLoadTaskFileMissingFileReturnsEmpty(t *testing.T) {
	a, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	f, err := a.LoadTaskFile(context.Background())
	if err != nil {
		t.Fatalf("LoadTaskFile: %v", err)
	}
	if f.NextTaskID != 1 {
		t.Errorf("NextTaskID = %d, want 1", f.NextTaskID)
	}
}

func TestSaveTaskFileRoundTrip(t *testing.T) {
	dir := t.TempDir()
	a, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	f := &accessor.TaskFile{
		Tasks: []*types.Task{{
			ID:        "T1",
			Title:     "first",
			Status:    types.StatusPending,
			CreatedAt: time.Now(),
			UpdatedAt: time.Now(),
		}},
		NextTaskID: 2,
	}
	if err := a.SaveTaskFile(context.Background(), f); err != nil {
		t.Fatalf("SaveTaskFile: %v", err)
	}

	if _, err := os.Stat(filepath.Join(dir, taskFileName)); err != nil {
		t.Fatalf("expected task file to exist: %v", err)
	}

	reloaded, err := a.LoadTaskFile(context.Background())
	if err != nil {
		t.Fatalf("LoadTaskFile: %v", err)
	}
	if len(reloaded.Tasks) != 1 || reloaded.Tasks[0].ID != "T1" {
		t.Errorf("unexpected reload: %+v", reloaded.Tasks)
	}
	if reloaded.NextTaskID != 2 {
		t.Errorf("NextTaskID = %d, want 2", reloaded.NextTaskID)
	}
}

func TestSaveTaskFileRotatesBackup(t *testing.T) {
	dir := t.TempDir()
	a, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	ctx := context.Background()

	first := &accessor.TaskFile{NextTaskID: 1}
	if err := a.SaveTaskFile(ctx, first); err != nil {
		t.Fatalf("first save: %v", err)
	}
	second := &accessor.TaskFile{NextTaskID: 2}
	if err := a.SaveTaskFile(ctx, second); err != nil {
		t.Fatalf("second save: %v", err)
	}

	if _, err := os.Stat(filepath.Join(dir, taskFileName+".bak")); err != nil {
		t.Errorf("expected rotated backup to exist: %v", err)
	}
}

func TestAppendLogAppendsLines(t *testing.T) {
	dir := t.TempDir()
	a, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		err := a.AppendLog(ctx, types.AuditEntry{
			Timestamp: time.Now(),
			Action:    "tasks.add",
			Actor:     "test",
		})
		if err != nil {
			t.Fatalf("AppendLog %d: %v", i, err)
		}
	}

	data, err := os.ReadFile(filepath.Join(dir, auditFileName))
	if err != nil {
		t.Fatalf("read audit log: %v", err)
	}
	lines := 0
	for _, b := range data {
		if b == '\n' {
			lines++
		}
	}
	if lines != 3 {
		t.Errorf("expected 3 lines, got %d", lines)
	}
}
