package rpc

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/cleo-dev/cleo/internal/accessor/safety"
	"github.com/cleo-dev/cleo/internal/accessor/sqlitefile"
	"github.com/cleo-dev/cleo/internal/audit"
	"github.com/cleo-dev/cleo/internal/domain/admin"
	"github.com/cleo-dev/cleo/internal/domain/lifecycledomain"
	"github.com/cleo-dev/cleo/internal/domain/release"
	"github.com/cleo-dev/cleo/internal/domain/session"
	"github.com/cleo-dev/cleo/internal/domain/taskwork"
	"github.com/cleo-dev/cleo/internal/domain/tasks"
	"github.com/cleo-dev/cleo/internal/gateway"
	"github.com/cleo-dev/cleo/internal/security"
	"github.com/cleo-dev/cleo/internal/storage/sqlite"
)

func newTestServer(t *testing.T) (*Server, *Client) {
	t.Helper()
	ctx := context.Background()
	store, err := sqlite.Open(ctx, ":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	sessions := session.New(store)
	svc := &gateway.Services{
		Tasks:     tasks.New(store),
		TaskWork:  taskwork.New(store),
		Sessions:  sessions,
		Lifecycle: lifecycledomain.New(store, nil),
		Admin:     admin.New(store, sessions, nil),
		Release:   release.New(store),
		ConfigDir: t.TempDir(),
	}
	acc := safety.Wrap(sqlitefile.New(store))
	auditLogger := audit.NewLogger(acc)
	limiter := security.NewLimiter(nil)
	gw := gateway.New(svc, limiter, auditLogger, nil, t.TempDir())

	socket := filepath.Join(t.TempDir(), "cleo.sock")
	server := New(Config{
		SocketPath: socket,
		Version:    "test",
		Gateway:    gw,
		Storage:    store,
	})

	errCh := make(chan error, 1)
	go func() { errCh <- server.Start(ctx) }()

	select {
	case <-server.WaitReady():
	case err := <-errCh:
		t.Fatalf("server.Start failed before ready: %v", err)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for server to become ready")
	}
	t.Cleanup(func() { _ = server.Stop() })

	client, err := TryConnectWithTimeout(socket, time.Second)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	if client == nil {
		t.Fatal("expected a client, got nil")
	}
	t.Cleanup(func() { client.Close() })

	return server, client
}

func TestPing(t *testing.T) {
	_, client := newTestServer(t)
	resp, err := client.Call(Request{Operation: OpPing})
	if err != nil {
		t.Fatalf("call ping: %v", err)
	}
	if !resp.Success {
		t.Fatalf("expected ping to succeed, got error %q", resp.Error)
	}
	var ping PingResponse
	if err := json.Unmarshal(resp.Data, &ping); err != nil {
		t.Fatalf("unmarshal ping response: %v", err)
	}
	if ping.Message != "pong" {
		t.Errorf("expected message 'pong', got %q", ping.Message)
	}
}

func TestHealth(t *testing.T) {
	_, client := newTestServer(t)
	health, err := client.Health()
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	if health.Status != "healthy" {
		t.Errorf("expected healthy status, got %q (err=%s)", health.Status, health.Error)
	}
	if health.MaxConns != DefaultMaxConnections {
		t.Errorf("expected default max conns %d, got %d", DefaultMaxConnections, health.MaxConns)
	}
}

func TestMutateThenQueryThroughGateway(t *testing.T) {
	_, client := newTestServer(t)

	addParams, _ := json.Marshal(map[string]any{"title": "write the daemon tests"})
	resp, err := client.Call(Request{
		Gateway:   "mutate",
		Domain:    "tasks",
		Operation: "add",
		Params:    addParams,
		Actor:     "tester",
	})
	if err != nil {
		t.Fatalf("call tasks.add: %v", err)
	}
	if !resp.Success {
		t.Fatalf("expected tasks.add to succeed, got error %q", resp.Error)
	}

	var envelope struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.Unmarshal(resp.Data, &envelope); err != nil {
		t.Fatalf("unmarshal envelope: %v", err)
	}
	if envelope.Data.ID == "" {
		t.Fatal("expected created task to have an ID")
	}

	showParams, _ := json.Marshal(map[string]any{"taskId": envelope.Data.ID})
	showResp, err := client.Call(Request{
		Gateway:   "query",
		Domain:    "tasks",
		Operation: "show",
		Params:    showParams,
		Actor:     "tester",
	})
	if err != nil {
		t.Fatalf("call tasks.show: %v", err)
	}
	if !showResp.Success {
		t.Fatalf("expected tasks.show to succeed, got error %q", showResp.Error)
	}
}

func TestUnknownOperationIsRejected(t *testing.T) {
	_, client := newTestServer(t)
	params, _ := json.Marshal(map[string]any{})
	resp, err := client.Call(Request{
		Gateway:   "query",
		Domain:    "tasks",
		Operation: "nonexistent",
		Params:    params,
	})
	if err != nil {
		t.Fatalf("call: %v", err)
	}
	if resp.Success {
		t.Fatal("expected unknown operation to fail")
	}
}

func TestShutdownOperation(t *testing.T) {
	_, client := newTestServer(t)
	resp, err := client.Call(Request{Operation: OpShutdown})
	if err != nil {
		t.Fatalf("call shutdown: %v", err)
	}
	if !resp.Success {
		t.Fatalf("expected shutdown acknowledgement to succeed, got %q", resp.Error)
	}
}
