package sqlite

import (
	"context"
	"fmt"
	"os"
)

// Compact rewrites the database file via VACUUM INTO + atomic rename,
// reclaiming space left by deleted rows without holding a long-lived lock
// on the live file the way a plain VACUUM would.
func (s *Store) Compact(ctx context.Context) error {
	if s.readOnly {
		return fmt.Errorf("cannot compact a read-only store")
	}
	tmp := s.dbPath + ".compact.tmp"
	if _, err := s.db.ExecContext(ctx, `VACUUM INTO ?`, tmp); err != nil {
		return fmt.Errorf("vacuum into: %w", err)
	}
	if err := os.Rename(tmp, s.dbPath); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replace database file: %w", err)
	}
	return s.reconnect()
}

// BackupTo produces a consistent point-in-time copy at path using the same
// VACUUM INTO mechanism, without replacing the live database file.
func (s *Store) BackupTo(ctx context.Context, path string) error {
	if _, err := s.db.ExecContext(ctx, `VACUUM INTO ?`, path); err != nil {
		return fmt.Errorf("vacuum into: %w", err)
	}
	return nil
}
