package audit

import "testing"

func TestBuilderSuccessEnvelope(t *testing.T) {
	b := NewBuilder("query", "tasks", "list")
	resp := b.Success(map[string]any{"count": 3})

	if !resp.Success {
		t.Error("expected Success = true")
	}
	if resp.Meta.Gateway != "query" || resp.Meta.Domain != "tasks" || resp.Meta.Operation != "list" {
		t.Errorf("unexpected meta: %+v", resp.Meta)
	}
	if resp.Meta.RequestID == "" {
		t.Error("expected a requestId")
	}
	if resp.Meta.SpecVersion != SpecVersion {
		t.Errorf("SpecVersion = %q, want %q", resp.Meta.SpecVersion, SpecVersion)
	}
	if resp.Error != nil {
		t.Error("expected no error on success")
	}
}

func TestBuilderFailureEnvelope(t *testing.T) {
	b := NewBuilder("mutate", "tasks", "delete")
	resp := b.Failure(ErrorInfo{Code: "E_NOT_FOUND", ExitCode: 4, Message: "task not found"})

	if resp.Success {
		t.Error("expected Success = false")
	}
	if resp.Error == nil || resp.Error.Code != "E_NOT_FOUND" {
		t.Errorf("unexpected error field: %+v", resp.Error)
	}
}

func TestBuilderPartialSuccessEnvelope(t *testing.T) {
	b := NewBuilder("mutate", "tasks", "bulk-update")
	resp := b.PartialSuccess(BatchResult{Succeeded: []any{"T1"}, Failed: []any{"T2"}})

	if !resp.Success || !resp.Partial {
		t.Errorf("expected partial success, got Success=%v Partial=%v", resp.Success, resp.Partial)
	}
	result, ok := resp.Data.(BatchResult)
	if !ok {
		t.Fatalf("Data is not a BatchResult: %T", resp.Data)
	}
	if len(result.Succeeded) != 1 || len(result.Failed) != 1 {
		t.Errorf("unexpected batch result: %+v", result)
	}
}

func TestBuilderRequestIDStableAcrossCalls(t *testing.T) {
	b := NewBuilder("query", "tasks", "get")
	first := b.Success(nil).Meta.RequestID
	second := b.Success(nil).Meta.RequestID
	if first != second || first != b.RequestID() {
		t.Errorf("expected stable requestId across Success calls, got %q and %q", first, second)
	}
}
