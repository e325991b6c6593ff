package types

import (
	"fmt"
	"regexp"
	"strconv"
)

// TaskIDPattern is the canonical task ID shape: T followed by digits.
var TaskIDPattern = regexp.MustCompile(`^T[0-9]+$`)

// MaxTaskIDNumber is the largest numeric suffix a task ID may carry.
const MaxTaskIDNumber = 999_999

// FormatTaskID renders a numeric task ID as "T<n>".
func FormatTaskID(n int64) string {
	return fmt.Sprintf("T%d", n)
}

// ParseTaskIDNumber extracts the numeric suffix of a well-formed task ID.
// Callers should validate with TaskIDPattern first; this does not re-validate.
func ParseTaskIDNumber(id string) (int64, error) {
	if len(id) < 2 || id[0] != 'T' {
		return 0, fmt.Errorf("malformed task id: %s", id)
	}
	return strconv.ParseInt(id[1:], 10, 64)
}

// SessionIDPattern matches "session_<YYYYMMDD>_<HHMMSS>_<6hex>".
var SessionIDPattern = regexp.MustCompile(`^session_\d{8}_\d{6}_[0-9a-f]{6}$`)
