// Package lockfile implements the daemon single-instance lock: an
// advisory flock on "<cleoDir>/daemon.lock" carrying JSON metadata about
// the process holding it, plus a companion PID file for platforms where a
// locked file cannot be read by another process (Windows).
package lockfile

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// ErrLocked is returned by Acquire when another process already holds the
// daemon lock.
var ErrLocked = errors.New("lockfile: daemon lock already held by another process")

// Info is the JSON metadata stored in daemon.lock.
type Info struct {
	PID       int       `json:"pid"`
	ParentPID int       `json:"parentPid,omitempty"`
	Database  string    `json:"database"`
	Version   string    `json:"version"`
	StartedAt time.Time `json:"startedAt"`
}

// Lock represents a held daemon lock; Close releases it.
type Lock struct {
	file *os.File
	path string
}

// Close releases the lock. Closing the file descriptor drops the flock.
func (l *Lock) Close() error {
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	_ = os.Remove(l.pidPath())
	return err
}

func (l *Lock) pidPath() string {
	return filepath.Join(filepath.Dir(l.path), "daemon.pid")
}

// Acquire takes an exclusive, non-blocking lock on "<cleoDir>/daemon.lock"
// and stamps it with the current process's identity. Returns ErrLocked if
// another process already holds it.
func Acquire(cleoDir, dbPath, version string) (*Lock, error) {
	lockPath := filepath.Join(cleoDir, "daemon.lock")

	f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open lock file: %w", err)
	}

	if err := flockExclusive(f); err != nil {
		_ = f.Close()
		if errors.Is(err, ErrLocked) {
			return nil, ErrLocked
		}
		return nil, fmt.Errorf("lock file: %w", err)
	}

	info := Info{
		PID:       os.Getpid(),
		ParentPID: os.Getppid(),
		Database:  dbPath,
		Version:   version,
		StartedAt: time.Now().UTC(),
	}

	_ = f.Truncate(0)
	_, _ = f.Seek(0, 0)
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	_ = enc.Encode(info)
	_ = f.Sync()

	pidPath := filepath.Join(cleoDir, "daemon.pid")
	_ = os.WriteFile(pidPath, []byte(strconv.Itoa(info.PID)), 0o600)

	return &Lock{file: f, path: lockPath}, nil
}

// Probe reports whether a daemon currently holds the lock, without
// blocking or disturbing it. Falls back to the PID file for daemons
// started before the lock file existed.
func Probe(cleoDir string) (running bool, pid int) {
	lockPath := filepath.Join(cleoDir, "daemon.lock")

	f, err := os.OpenFile(lockPath, os.O_RDWR, 0)
	if err != nil {
		return checkPIDFile(cleoDir)
	}
	defer func() { _ = f.Close() }()

	if err := flockExclusive(f); err != nil {
		if errors.Is(err, ErrLocked) {
			_, _ = f.Seek(0, 0)
			var info Info
			if err := json.NewDecoder(f).Decode(&info); err == nil {
				return true, info.PID
			}
			return checkPIDFile(cleoDir)
		}
		return false, 0
	}
	// We got the lock; no daemon running. Releasing happens on defer close.
	return false, 0
}

func checkPIDFile(cleoDir string) (running bool, pid int) {
	data, err := os.ReadFile(filepath.Join(cleoDir, "daemon.pid"))
	if err != nil {
		return false, 0
	}
	pidVal, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return false, 0
	}
	if !isProcessRunning(pidVal) {
		return false, 0
	}
	return true, pidVal
}

// ReadInfo reads and parses the daemon lock file's metadata.
func ReadInfo(cleoDir string) (*Info, error) {
	data, err := os.ReadFile(filepath.Join(cleoDir, "daemon.lock"))
	if err != nil {
		return nil, err
	}
	var info Info
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("parse lock file: %w", err)
	}
	return &info, nil
}
