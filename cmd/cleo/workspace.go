package main

import (
	"fmt"
	"os"
	"path/filepath"
)

// stateDirName is the on-disk directory name holding every piece of
// CLEO's persisted state: tasks.db, the audit log, config.json, and
// the daemon's Unix socket.
const stateDirName = ".cleo"

// resolveProjectRoot finds the project root the same way git finds a
// repository: CLEO_ROOT wins if set, otherwise walk up from the
// current directory looking for a .cleo directory, falling back to
// the current directory itself (a fresh project with no state yet).
func resolveProjectRoot() (string, error) {
	if root := os.Getenv("CLEO_ROOT"); root != "" {
		return filepath.Abs(root)
	}

	dir, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("getwd: %w", err)
	}

	for {
		if stat, statErr := os.Stat(filepath.Join(dir, stateDirName)); statErr == nil && stat.IsDir() {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return os.Getwd()
}

// resolveStateDir returns the .cleo directory for root, honoring
// CLEO_HOME as an override for where that state lives.
func resolveStateDir(root string) string {
	if home := os.Getenv("CLEO_HOME"); home != "" {
		return home
	}
	return filepath.Join(root, stateDirName)
}

// socketPath returns the daemon's Unix socket path under stateDir.
func socketPath(stateDir string) string {
	return filepath.Join(stateDir, "daemon.sock")
}
