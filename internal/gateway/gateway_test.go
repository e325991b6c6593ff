package gateway

import (
	"context"
	"testing"

	"github.com/cleo-dev/cleo/internal/accessor/safety"
	"github.com/cleo-dev/cleo/internal/accessor/sqlitefile"
	"github.com/cleo-dev/cleo/internal/audit"
	"github.com/cleo-dev/cleo/internal/domain/admin"
	"github.com/cleo-dev/cleo/internal/domain/lifecycledomain"
	"github.com/cleo-dev/cleo/internal/domain/release"
	"github.com/cleo-dev/cleo/internal/domain/session"
	"github.com/cleo-dev/cleo/internal/domain/taskwork"
	"github.com/cleo-dev/cleo/internal/domain/tasks"
	"github.com/cleo-dev/cleo/internal/security"
	"github.com/cleo-dev/cleo/internal/storage"
	"github.com/cleo-dev/cleo/internal/storage/sqlite"
)

func newTestGateway(t *testing.T) (*Gateway, storage.Storage) {
	t.Helper()
	ctx := context.Background()
	store, err := sqlite.Open(ctx, ":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	sessions := session.New(store)
	svc := &Services{
		Tasks:     tasks.New(store),
		TaskWork:  taskwork.New(store),
		Sessions:  sessions,
		Lifecycle: lifecycledomain.New(store, nil),
		Admin:     admin.New(store, sessions, nil),
		Release:   release.New(store),
		ConfigDir: t.TempDir(),
	}

	acc := safety.Wrap(sqlitefile.New(store))
	logger := audit.NewLogger(acc)
	limiter := security.NewLimiter(nil)

	return New(svc, limiter, logger, nil, t.TempDir()), store
}

func TestQueryUnknownOperationIsRejected(t *testing.T) {
	g, _ := newTestGateway(t)
	resp := g.Query(context.Background(), "tasks", "nonexistent", nil, "tester")
	if resp.Success {
		t.Fatal("expected failure for unknown operation")
	}
	if resp.Error == nil || resp.Error.Code != "E_UNKNOWN_OPERATION" {
		t.Fatalf("error = %+v, want E_UNKNOWN_OPERATION", resp.Error)
	}
	if resp.Error.ExitCode != 2 {
		t.Errorf("ExitCode = %d, want 2", resp.Error.ExitCode)
	}
}

func TestMutateRejectsQueryOnlyOperation(t *testing.T) {
	g, _ := newTestGateway(t)
	resp := g.Mutate(context.Background(), "tasks", "show", map[string]any{"taskId": "T1"}, "tester")
	if resp.Success {
		t.Fatal("expected tasks.show to be unreachable from the mutate gateway")
	}
	if resp.Error == nil || resp.Error.Code != "E_UNKNOWN_OPERATION" {
		t.Fatalf("error = %+v, want E_UNKNOWN_OPERATION", resp.Error)
	}
}

func TestMutateAddReportsMutateMeta(t *testing.T) {
	g, _ := newTestGateway(t)
	ctx := context.Background()

	addResp := g.Mutate(ctx, "tasks", "add", map[string]any{
		"title":    "wire the gateway",
		"priority": "high",
		"type":     "task",
		"size":     "medium",
	}, "tester")
	if !addResp.Success {
		t.Fatalf("tasks.add failed: %+v", addResp.Error)
	}

	if addResp.Meta.Gateway != "mutate" || addResp.Meta.Domain != "tasks" {
		t.Errorf("meta = %+v, want gateway=mutate domain=tasks", addResp.Meta)
	}
}

func TestRateLimitExceeded(t *testing.T) {
	g, _ := newTestGateway(t)
	g.limiter = security.NewLimiter(map[security.Category]int{security.CategoryQuery: 1})

	first := g.Query(context.Background(), "system", "health", nil, "tester")
	if !first.Success {
		t.Fatalf("first call should succeed: %+v", first.Error)
	}

	second := g.Query(context.Background(), "system", "health", nil, "tester")
	if second.Success {
		t.Fatal("second call should be rate-limited")
	}
	if second.Error == nil || second.Error.Code != "E_RATE_LIMIT_EXCEEDED" {
		t.Fatalf("error = %+v, want E_RATE_LIMIT_EXCEEDED", second.Error)
	}
}

func TestUnsanitizedTaskIDIsRejected(t *testing.T) {
	g, _ := newTestGateway(t)
	resp := g.Query(context.Background(), "tasks", "show", map[string]any{"taskId": "not-a-valid-id"}, "tester")
	if resp.Success {
		t.Fatal("expected sanitisation to reject a malformed task id")
	}
	if resp.Error == nil || resp.Error.Code != "E_INVALID_TASK_ID" {
		t.Fatalf("error = %+v, want E_INVALID_TASK_ID", resp.Error)
	}
}
