package tasks

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/cleo-dev/cleo/internal/types"
)

// contentHash derives the task's content_hash column: a cheap fingerprint
// over the fields that define "what this task is", letting callers (the
// audit trail, release export) detect real edits versus metadata-only
// touches without diffing the full row.
func contentHash(t *types.Task) string {
	var b strings.Builder
	b.WriteString(t.Title)
	b.WriteByte('\x00')
	b.WriteString(t.Description)
	b.WriteByte('\x00')
	b.WriteString(string(t.Status))
	b.WriteByte('\x00')
	b.WriteString(string(t.Priority))
	b.WriteByte('\x00')
	b.WriteString(strings.Join(t.Labels, ","))
	b.WriteByte('\x00')
	b.WriteString(strings.Join(t.AcceptanceCriteria, ","))
	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}
