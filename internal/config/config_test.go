package config

import (
	"testing"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	c, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := c.Get("storage.engine"); got != string(EngineSQLite) {
		t.Errorf("storage.engine default = %v, want sqlite", got)
	}
	if got := c.Get("rateLimiting.mutate"); got != 30 {
		t.Errorf("rateLimiting.mutate default = %v, want 30", got)
	}
}

func TestSetRejectsUnrecognisedKey(t *testing.T) {
	c, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := c.Set("bogus.key", true); err == nil {
		t.Fatal("expected error for an unrecognised config key")
	}
	if err := c.Set("storage.engine", "json"); err != nil {
		t.Fatalf("Set known key: %v", err)
	}
	if got := c.Get("storage.engine"); got != "json" {
		t.Errorf("storage.engine after Set = %v, want json", got)
	}
}

func TestSaveAndReload(t *testing.T) {
	dir := t.TempDir()
	c, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := c.Set("session.requireSessionNote", true); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := c.Save(dir); err != nil {
		t.Fatalf("Save: %v", err)
	}

	reloaded, err := Load(dir)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if got := reloaded.Get("session.requireSessionNote"); got != true {
		t.Errorf("reloaded session.requireSessionNote = %v, want true", got)
	}
}
