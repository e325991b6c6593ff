package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cleo-dev/cleo/internal/types"
)

func waitForStatus(t *testing.T, m *Manager, id string, want types.JobStatus) types.BackgroundJob {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		rec, err := m.Get(id)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if rec.Status == want {
			return rec
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("job %s never reached status %s", id, want)
	return types.BackgroundJob{}
}

func TestStartAndCompleteReportsProgress(t *testing.T) {
	m := NewManager()
	defer m.Close()

	id, err := m.Start(context.Background(), "admin.compact", func(ctx context.Context, report func(int)) (any, error) {
		report(50)
		return "done", nil
	})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	rec := waitForStatus(t, m, id, types.JobCompleted)
	if rec.Result != "done" {
		t.Errorf("Result = %v, want %q", rec.Result, "done")
	}
}

func TestUpdateProgressClamps(t *testing.T) {
	m := NewManager()
	defer m.Close()

	reported := make(chan struct{})
	block := make(chan struct{})
	id, err := m.Start(context.Background(), "export.run", func(ctx context.Context, report func(int)) (any, error) {
		report(500)
		report(-5)
		close(reported)
		<-block
		return nil, nil
	})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	<-reported
	rec, err := m.Get(id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if rec.Progress != 0 {
		t.Errorf("Progress = %d, want clamped to 0 (last report wins)", rec.Progress)
	}
	close(block)
}

func TestStartFailsAtConcurrencyCap(t *testing.T) {
	m := NewManager()
	m.maxConcurrent = 1
	defer m.Close()

	block := make(chan struct{})
	_, err := m.Start(context.Background(), "slow.op", func(ctx context.Context, report func(int)) (any, error) {
		<-block
		return nil, nil
	})
	if err != nil {
		t.Fatalf("first Start: %v", err)
	}

	if _, err := m.Start(context.Background(), "slow.op2", func(ctx context.Context, report func(int)) (any, error) {
		return nil, nil
	}); err == nil {
		t.Fatal("expected second Start to fail at concurrency cap")
	}

	close(block)
}

func TestAbortCancelsJobContext(t *testing.T) {
	m := NewManager()
	defer m.Close()

	id, err := m.Start(context.Background(), "long.op", func(ctx context.Context, report func(int)) (any, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	if err := m.Abort(id); err != nil {
		t.Fatalf("Abort: %v", err)
	}

	waitForStatus(t, m, id, types.JobCancelled)
}

func TestGetUnknownJobReturnsNotFound(t *testing.T) {
	m := NewManager()
	defer m.Close()

	if _, err := m.Get("nonexistent"); err == nil {
		t.Fatal("expected error for unknown job")
	}
}

func TestFailedJobRecordsError(t *testing.T) {
	m := NewManager()
	defer m.Close()

	wantErr := errors.New("boom")
	id, err := m.Start(context.Background(), "failing.op", func(ctx context.Context, report func(int)) (any, error) {
		return nil, wantErr
	})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	rec := waitForStatus(t, m, id, types.JobFailed)
	if rec.Error != wantErr.Error() {
		t.Errorf("Error = %q, want %q", rec.Error, wantErr.Error())
	}
}

func TestSweepRemovesOldTerminalJobs(t *testing.T) {
	m := NewManager()
	m.retention = 0
	defer m.Close()

	id, err := m.Start(context.Background(), "quick.op", func(ctx context.Context, report func(int)) (any, error) {
		return nil, nil
	})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitForStatus(t, m, id, types.JobCompleted)

	time.Sleep(5 * time.Millisecond)
	m.sweep()

	if _, err := m.Get(id); err == nil {
		t.Fatal("expected sweep to remove terminal job past retention")
	}
}

func TestCloseAbortsRunningJobs(t *testing.T) {
	m := NewManager()

	id, err := m.Start(context.Background(), "forever.op", func(ctx context.Context, report func(int)) (any, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	m.Close()
	waitForStatus(t, m, id, types.JobCancelled)
}
