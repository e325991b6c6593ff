// Package config loads and persists the human-editable config.json file
// under a project's .cleo/ directory. It uses viper the way the
// teacher's doctor package validates its own config.yaml/metadata.json,
// generalized from "validate an existing file" to "read, default, and
// write back" since CLEO's config is also an admin-mutable surface
// (admin.config get/set), not just a startup-time file.
package config

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Config mirrors the recognised keys enumerated in spec.md §6. Unknown
// keys round-trip through viper untouched; only these are given
// defaults and validated on Set (Get returns the stored value as is).
type Config struct {
	v *viper.Viper
}

// StorageEngine enumerates the accessor backend config selects.
type StorageEngine string

const (
	EngineJSON   StorageEngine = "json"
	EngineSQLite StorageEngine = "sqlite"
	EngineDual   StorageEngine = "dual"
)

// LifecycleEnforcementMode enumerates how strictly the gateway enforces
// lifecycle gates before allowing a stage to complete.
type LifecycleEnforcementMode string

const (
	EnforcementStrict   LifecycleEnforcementMode = "strict"
	EnforcementAdvisory LifecycleEnforcementMode = "advisory"
	EnforcementOff      LifecycleEnforcementMode = "off"
)

var defaults = map[string]any{
	"session.requireSessionNote":        false,
	"session.warnOnNoFocus":             true,
	"session.sessionTimeoutHours":       8,
	"session.autoStartSession":          true,
	"multiSession.enabled":              false,
	"multiSession.maxConcurrentSessions": 1,
	"lifecycleEnforcement.mode":         string(EnforcementAdvisory),
	"protocolValidation.strictMode":     false,
	"protocolValidation.blockOnViolation": false,
	"protocolValidation.logViolations":  true,
	"storage.engine":                    string(EngineSQLite),
	"gitCheckpoint.enabled":             false,
	"gitCheckpoint.debounceMinutes":     5,
	"gitCheckpoint.messagePrefix":       "cleo: ",
	"gitCheckpoint.noVerify":            false,
	"auditLog":                          true,
	"rateLimiting.enabled":              true,
	"rateLimiting.query":                100,
	"rateLimiting.mutate":               30,
	"rateLimiting.spawn":                10,
}

// Load reads config.json from dir (creating none if absent — callers get
// defaults), returning a Config ready for Get/Set/Save.
func Load(dir string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("json")
	v.AddConfigPath(dir)
	for key, val := range defaults {
		v.SetDefault(key, val)
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config.json: %w", err)
		}
	}
	return &Config{v: v}, nil
}

// Save writes the current config state back to dir/config.json.
func (c *Config) Save(dir string) error {
	if err := c.v.WriteConfigAs(dir + "/config.json"); err != nil {
		return fmt.Errorf("write config.json: %w", err)
	}
	return nil
}

// recognisedKeys lists every key spec.md §6 gives a meaning to; Set
// rejects anything outside this set the way SanitizeParams rejects
// unrecognised task fields.
var recognisedKeys = buildRecognisedKeySet()

func buildRecognisedKeySet() map[string]bool {
	out := make(map[string]bool, len(defaults))
	for k := range defaults {
		out[strings.ToLower(k)] = true
	}
	return out
}

// Get returns the raw value for key (dotted path, e.g.
// "lifecycleEnforcement.mode").
func (c *Config) Get(key string) any {
	return c.v.Get(key)
}

// Set validates key against the recognised set and stores val in
// memory; call Save to persist.
func (c *Config) Set(key string, val any) error {
	if !recognisedKeys[strings.ToLower(key)] {
		return fmt.Errorf("unrecognised config key: %s", key)
	}
	c.v.Set(key, val)
	return nil
}

// All returns every recognised key's current value, for admin dashboards.
func (c *Config) All() map[string]any {
	out := make(map[string]any, len(defaults))
	for key := range defaults {
		out[key] = c.v.Get(key)
	}
	return out
}

// Watch starts an fsnotify watcher on dir, re-reading config.json into c
// in place (so every holder of c observes the new values through Get,
// with no separate reload plumbing) whenever the file is written or
// replaced-via-rename, which is how most editors save. onChange, if
// non-nil, is called after each successful reload. The returned watcher
// must be closed by the caller; it runs until ctx is done or closed.
func (c *Config) Watch(ctx context.Context, dir string, onChange func()) (*fsnotify.Watcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create config watcher: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watch config dir: %w", err)
	}

	configPath := filepath.Clean(filepath.Join(dir, "config.json"))
	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != configPath {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
					continue
				}
				if err := c.v.ReadInConfig(); err != nil {
					continue
				}
				if onChange != nil {
					onChange()
				}
			case _, ok := <-watcher.Errors:
				if !ok {
					return
				}
			}
		}
	}()
	return watcher, nil
}
