package security

import (
	"strings"
	"testing"
)

func TestSanitizeTaskID(t *testing.T) {
	cases := []struct {
		name    string
		id      string
		wantErr bool
	}{
		{"valid", "T1", false},
		{"valid with padding", "  T42  ", false},
		{"missing prefix", "42", true},
		{"lowercase prefix", "t1", true},
		{"non-numeric suffix", "Tabc", true},
		{"empty", "", true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := SanitizeTaskID(c.id)
			if (err != nil) != c.wantErr {
				t.Errorf("SanitizeTaskID(%q) err = %v, wantErr %v", c.id, err, c.wantErr)
			}
		})
	}
}

func TestSanitizePath(t *testing.T) {
	root := "/project"
	cases := []struct {
		name    string
		path    string
		wantErr bool
	}{
		{"relative within root", "docs/readme.md", false},
		{"dot relative", ".", false},
		{"escape via dotdot", "../../etc/passwd", true},
		{"null byte", "docs/\x00readme.md", true},
		{"absolute within root", "/project/docs/readme.md", false},
		{"absolute outside root", "/etc/passwd", true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := SanitizePath(c.path, root)
			if (err != nil) != c.wantErr {
				t.Errorf("SanitizePath(%q) err = %v, wantErr %v", c.path, err, c.wantErr)
			}
		})
	}
}

func TestSanitizeContentStripsControlChars(t *testing.T) {
	in := "hello\x00world\x07\nkeep\ttabs\r"
	out, err := SanitizeContent(in, 0)
	if err != nil {
		t.Fatalf("SanitizeContent: %v", err)
	}
	if strings.ContainsAny(out, "\x00\x07") {
		t.Errorf("expected control chars stripped, got %q", out)
	}
	if !strings.Contains(out, "\n") || !strings.Contains(out, "\t") || !strings.Contains(out, "\r") {
		t.Errorf("expected whitespace control chars preserved, got %q", out)
	}
}

func TestSanitizeContentEnforcesMaxLen(t *testing.T) {
	_, err := SanitizeContent(strings.Repeat("a", 10), 5)
	if err == nil {
		t.Fatal("expected error for content exceeding max length")
	}

	out, err := SanitizeContent(strings.Repeat("a", 5), 5)
	if err != nil {
		t.Fatalf("unexpected error at exact boundary: %v", err)
	}
	if len(out) != 5 {
		t.Errorf("expected 5 chars, got %d", len(out))
	}
}

func TestValidateEnum(t *testing.T) {
	allowed := []string{"pending", "active", "done"}
	if err := ValidateEnum("active", allowed, "status"); err != nil {
		t.Errorf("expected valid enum to pass: %v", err)
	}
	if err := ValidateEnum("bogus", allowed, "status"); err == nil {
		t.Error("expected invalid enum to fail")
	}
}

func TestSanitizeParamsDispatchesByField(t *testing.T) {
	params := map[string]any{
		"status":      "pending",
		"taskId":      "T5",
		"title":       "hello\x07world",
		"description": strings.Repeat("x", 2001),
	}
	if err := SanitizeParams(params, "/project"); err == nil {
		t.Fatal("expected description over max length to fail")
	}

	params = map[string]any{
		"status": "pending",
		"taskId": "T5",
		"title":  "hello\x07world",
	}
	if err := SanitizeParams(params, "/project"); err != nil {
		t.Fatalf("SanitizeParams: %v", err)
	}
	if params["title"] != "helloworld" {
		t.Errorf("title = %q, want control char stripped", params["title"])
	}

	params = map[string]any{"status": "bogus"}
	if err := SanitizeParams(params, "/project"); err == nil {
		t.Fatal("expected invalid status enum to fail")
	}
}

func TestSanitizeParamsRecursesIntoStringArrays(t *testing.T) {
	params := map[string]any{
		"dependsOn": []any{"T1", "T2"},
	}
	if err := SanitizeParams(params, "/project"); err != nil {
		t.Fatalf("SanitizeParams: %v", err)
	}

	params = map[string]any{
		"dependsOn": []any{"T1", "not-an-id"},
	}
	if err := SanitizeParams(params, "/project"); err == nil {
		t.Fatal("expected invalid id in array to fail")
	}
}
