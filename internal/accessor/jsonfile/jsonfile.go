// Package jsonfile implements internal/accessor.Accessor directly on flat
// JSON files under a directory, for workspaces that don't want a SQLite
// dependency. Every whole-file write goes through writeAtomic: encode to
// a sibling temp file, fsync, rename over the target — the same temp-file-
// then-rename discipline the teacher uses for its daemon lock/PID files,
// generalized with an fsync and a rolling ".bak" copy of the previous
// version. The audit log is the exception: AppendLog appends to it in
// place.
package jsonfile

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/cleo-dev/cleo/internal/accessor"
	"github.com/cleo-dev/cleo/internal/types"
	"golang.org/x/sys/unix"
)

// timeNow is overridable in tests, mirroring storage.Now.
var timeNow = time.Now

func init() {
	accessor.RegisterEngine(accessor.EngineJSON, func(ctx context.Context, cfg accessor.Config) (accessor.Accessor, error) {
		return Open(cfg.JSONDir)
	})
}

const (
	taskFileName     = "tasks.json"
	archiveFileName  = "archive.json"
	sessionsFileName = "sessions.json"
	auditFileName    = "audit.jsonl"
)

// Accessor persists whole-aggregate files as flat JSON under Dir, guarded
// by an advisory flock on a single ".lock" sentinel file in Dir so two
// processes never interleave writes.
type Accessor struct {
	dir string
}

// Open prepares dir (creating it if necessary) for JSON-file storage.
func Open(dir string) (*Accessor, error) {
	if dir == "" {
		return nil, fmt.Errorf("jsonfile: directory is required")
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("jsonfile: create directory: %w", err)
	}
	return &Accessor{dir: dir}, nil
}

func (a *Accessor) path(name string) string { return filepath.Join(a.dir, name) }

// writeAtomic marshals v as indented JSON to path's sibling temp file,
// fsyncs it, rotates the existing file to a ".bak" sibling, and renames
// the temp file into place.
func writeAtomic(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", filepath.Base(path), err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op once the rename below succeeds

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("fsync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, 0o640); err != nil {
		return fmt.Errorf("chmod temp file: %w", err)
	}

	if _, err := os.Stat(path); err == nil {
		_ = os.Rename(path, path+".bak")
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename into place: %w", err)
	}
	return nil
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	return nil
}

// withFileLock holds a blocking exclusive advisory flock on a sentinel
// file beside dir's targets for the duration of fn, so concurrent
// accessor processes wait for each other instead of interleaving.
func (a *Accessor) withFileLock(fn func() error) error {
	lockPath := a.path(".lock")
	f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0o640)
	if err != nil {
		return fmt.Errorf("open lock file: %w", err)
	}
	defer f.Close()

	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX); err != nil {
		return fmt.Errorf("lock %s: %w", lockPath, err)
	}
	defer unix.Flock(int(f.Fd()), unix.LOCK_UN)

	return fn()
}

func (a *Accessor) LoadTaskFile(ctx context.Context) (*accessor.TaskFile, error) {
	f := &accessor.TaskFile{NextTaskID: 1}
	if err := readJSON(a.path(taskFileName), f); err != nil {
		return nil, err
	}
	return f, nil
}

func (a *Accessor) SaveTaskFile(ctx context.Context, f *accessor.TaskFile) error {
	f.SavedAt = timeNow()
	return a.withFileLock(func() error { return writeAtomic(a.path(taskFileName), f) })
}

func (a *Accessor) LoadArchive(ctx context.Context) (*accessor.ArchiveFile, error) {
	f := &accessor.ArchiveFile{}
	if err := readJSON(a.path(archiveFileName), f); err != nil {
		return nil, err
	}
	return f, nil
}

func (a *Accessor) SaveArchive(ctx context.Context, f *accessor.ArchiveFile) error {
	f.SavedAt = timeNow()
	return a.withFileLock(func() error { return writeAtomic(a.path(archiveFileName), f) })
}

func (a *Accessor) LoadSessions(ctx context.Context) (*accessor.SessionsFile, error) {
	f := &accessor.SessionsFile{}
	if err := readJSON(a.path(sessionsFileName), f); err != nil {
		return nil, err
	}
	return f, nil
}

func (a *Accessor) SaveSessions(ctx context.Context, f *accessor.SessionsFile) error {
	f.SavedAt = timeNow()
	return a.withFileLock(func() error { return writeAtomic(a.path(sessionsFileName), f) })
}

// AppendLog appends one JSON line to audit.jsonl under the same flock
// used for the whole-file writes, opened O_APPEND so concurrent appenders
// never truncate each other's data even without the lock.
func (a *Accessor) AppendLog(ctx context.Context, entry types.AuditEntry) error {
	line, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal audit entry: %w", err)
	}
	line = append(line, '\n')

	return a.withFileLock(func() error {
		f, err := os.OpenFile(a.path(auditFileName), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640)
		if err != nil {
			return fmt.Errorf("open audit log: %w", err)
		}
		defer f.Close()
		if _, err := f.Write(line); err != nil {
			return fmt.Errorf("append audit log: %w", err)
		}
		return f.Sync()
	})
}

// Rotate moves the current audit.jsonl to audit-log-<iso>.json and lets
// the next AppendLog start a fresh file. It satisfies internal/audit's
// Rotatable interface; a missing audit log is not an error.
func (a *Accessor) Rotate(ctx context.Context) error {
	return a.withFileLock(func() error {
		src := a.path(auditFileName)
		if _, err := os.Stat(src); os.IsNotExist(err) {
			return nil
		}
		dst := a.path(fmt.Sprintf("audit-log-%s.json", timeNow().UTC().Format("20060102T150405Z")))
		return os.Rename(src, dst)
	})
}

func (a *Accessor) Close() error { return nil }
