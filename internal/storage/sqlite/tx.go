package sqlite

import (
	"context"
	"fmt"

	"github.com/cleo-dev/cleo/internal/storage"
)

// RunInTransaction pins a single connection, issues BEGIN IMMEDIATE on it
// (SQLite's write-intent lock, taken up front instead of on first write so
// concurrent daemon connections serialize on the write lock rather than
// racing to upgrade a deferred transaction), and hands fn a Store bound to
// that connection. fn's error or a panic rolls back; a nil return commits.
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx storage.Transaction) error) error {
	s.checkFreshness()

	conn, err := s.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, "BEGIN IMMEDIATE"); err != nil {
		return fmt.Errorf("begin immediate: %w", err)
	}

	txStore := &Store{db: s.db, txConn: conn, dbPath: s.dbPath, connStr: s.connStr, readOnly: s.readOnly}

	if err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				_, _ = conn.ExecContext(ctx, "ROLLBACK")
				panic(r)
			}
		}()
		return fn(txStore)
	}(); err != nil {
		_, rbErr := conn.ExecContext(ctx, "ROLLBACK")
		if rbErr != nil {
			return fmt.Errorf("%w (rollback also failed: %v)", err, rbErr)
		}
		return err
	}

	if _, err := conn.ExecContext(ctx, "COMMIT"); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
