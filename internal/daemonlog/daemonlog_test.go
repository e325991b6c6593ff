package daemonlog

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNewWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "daemon.log")
	l, closer := New(Config{Path: path, JSON: true, Level: "debug"})
	if closer == nil {
		t.Fatal("expected a non-nil closer for a file-backed logger")
	}
	defer closer.Close()

	l.Info("daemon started", "socket", "/tmp/cleo.sock")
	l.Warn("connection rejected", "active", 32)

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if len(data) == 0 {
		t.Fatal("expected log file to contain data")
	}
}

func TestNewWithoutPathLogsToStderr(t *testing.T) {
	l, closer := New(Config{})
	if closer != nil {
		t.Fatal("expected a nil closer when no path is configured")
	}
	l.Info("no file configured")
}

func TestDiscardSuppressesOutput(t *testing.T) {
	l := Discard()
	l.Error("should not panic", "err", "boom")
}

func TestParseLevel(t *testing.T) {
	cases := map[string]bool{
		"debug": true,
		"WARN":  true,
		"error": true,
		"":      true,
		"bogus": true,
	}
	for level := range cases {
		if got := parseLevel(level); got.String() == "" {
			t.Errorf("parseLevel(%q) returned an empty level", level)
		}
	}
}
