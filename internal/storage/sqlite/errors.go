package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/cleo-dev/cleo/internal/storage"
)

// wrapDBError normalizes a raw database/sql error into the storage package's
// sentinel errors where recognizable, otherwise wraps it with the failing
// operation's name for context.
func wrapDBError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return storage.ErrNotFound
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "UNIQUE constraint failed"):
		return fmt.Errorf("%s: %w", op, storage.ErrAlreadyExists)
	case strings.Contains(msg, "FOREIGN KEY constraint failed"):
		return fmt.Errorf("%s: referenced row missing: %w", op, err)
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}
