// Package audit implements the append-only audit trail and the
// gateway-meta envelope wrapped around every response. Every mutation
// emits one row through Logger; Envelope (envelope.go) shapes the
// response the gateway returns.
package audit

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cleo-dev/cleo/internal/accessor"
	"github.com/cleo-dev/cleo/internal/types"
)

// RotationThreshold is the cumulative-bytes-written mark that triggers
// automatic rotation, matching the data model's ~10 MiB audit rotation
// threshold.
const RotationThreshold = 10 * 1024 * 1024

// Rotatable is implemented by accessor engines that can roll the audit
// log over to a timestamped sibling and start fresh (jsonfile.Accessor,
// and safety/dual wrappers around it). Engines without a file to
// rotate (sqlitefile, whose audit rows live in a DB table) simply don't
// implement it, and Logger.Rotate becomes a no-op for them.
type Rotatable interface {
	Rotate(ctx context.Context) error
}

// Logger appends audit rows through an accessor.Accessor, tracking an
// approximate running byte count so it can trigger rotation without
// needing to stat the backing file (which doesn't exist for DB-backed
// engines).
type Logger struct {
	store accessor.Accessor

	mu          sync.Mutex
	bytesWritten int64
}

// NewLogger wraps store (normally the safety-wrapped, process-wide
// accessor) as the audit sink.
func NewLogger(store accessor.Accessor) *Logger {
	return &Logger{store: store}
}

// Log appends one audit row. ID and Timestamp are filled in if the
// caller left them zero-valued.
func (l *Logger) Log(ctx context.Context, entry types.AuditEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}

	if err := l.store.AppendLog(ctx, entry); err != nil {
		return err
	}

	l.accumulate(entry)
	return nil
}

// accumulate adds entry's approximate marshaled size to the running
// total and rotates automatically once it crosses RotationThreshold.
func (l *Logger) accumulate(entry types.AuditEntry) {
	data, err := json.Marshal(entry)
	if err != nil {
		return
	}

	l.mu.Lock()
	l.bytesWritten += int64(len(data))
	due := l.bytesWritten >= RotationThreshold
	if due {
		l.bytesWritten = 0
	}
	l.mu.Unlock()

	if due {
		_ = l.Rotate(context.Background())
	}
}

// Rotate forces rotation regardless of accumulated size. It is a no-op
// for accessor engines that don't implement Rotatable.
func (l *Logger) Rotate(ctx context.Context) error {
	r, ok := l.store.(Rotatable)
	if !ok {
		return nil
	}

	l.mu.Lock()
	l.bytesWritten = 0
	l.mu.Unlock()

	return r.Rotate(ctx)
}
