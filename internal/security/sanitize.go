// Package security implements the input-hardening layer every gateway
// request passes through before reaching a domain handler: task-ID/path/
// content sanitisers, enum validation, and the sliding-window rate
// limiter (ratelimit.go).
package security

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/cleo-dev/cleo/internal/clerr"
	"github.com/cleo-dev/cleo/internal/types"
)

// SanitizeTaskID trims whitespace and enforces the canonical "T<digits>"
// shape with a numeric suffix no greater than types.MaxTaskIDNumber.
func SanitizeTaskID(id string) (string, error) {
	id = strings.TrimSpace(id)
	if !types.TaskIDPattern.MatchString(id) {
		return "", clerr.New(clerr.CodeInvalidTaskID, clerr.ExitInvalidInput,
			fmt.Sprintf("invalid task id: %q", id))
	}
	n, err := strconv.ParseInt(id[1:], 10, 64)
	if err != nil || n > types.MaxTaskIDNumber {
		return "", clerr.New(clerr.CodeInvalidTaskID, clerr.ExitInvalidInput,
			fmt.Sprintf("task id out of range: %q", id))
	}
	return id, nil
}

// SanitizePath rejects null bytes, resolves path against root (absolute
// paths are treated as already rooted, relative paths are joined to
// root), and fails with E_PATH_TRAVERSAL if the cleaned result lies
// outside root.
func SanitizePath(path, root string) (string, error) {
	if strings.ContainsRune(path, 0) {
		return "", clerr.New(clerr.CodePathTraversal, clerr.ExitInvalidInput, "path contains a null byte")
	}

	var resolved string
	if filepath.IsAbs(path) {
		resolved = filepath.Clean(path)
	} else {
		resolved = filepath.Clean(filepath.Join(root, path))
	}

	cleanRoot := filepath.Clean(root)
	rel, err := filepath.Rel(cleanRoot, resolved)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", clerr.New(clerr.CodePathTraversal, clerr.ExitInvalidInput,
			fmt.Sprintf("path escapes root: %q", path))
	}
	return resolved, nil
}

// controlCharAllowed reports whether r is a control character CLEO keeps
// (newline, tab, carriage return) rather than strips.
func controlCharAllowed(r rune) bool {
	return r == '\n' || r == '\t' || r == '\r'
}

// isStrippedControl reports whether r is a C0 or C1 control character
// CLEO strips from free-form content, i.e. every control character
// except the whitespace ones controlCharAllowed keeps.
func isStrippedControl(r rune) bool {
	if controlCharAllowed(r) {
		return false
	}
	return (r >= 0x00 && r <= 0x1F) || (r >= 0x7F && r <= 0x9F)
}

// SanitizeContent enforces a maximum length and strips C0/C1 control
// characters other than \n, \t, \r.
func SanitizeContent(s string, maxLen int) (string, error) {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if isStrippedControl(r) {
			continue
		}
		b.WriteRune(r)
	}
	cleaned := b.String()
	if maxLen > 0 && len([]rune(cleaned)) > maxLen {
		return "", clerr.New(clerr.CodeContentTooLarge, clerr.ExitValidationError,
			fmt.Sprintf("content exceeds maximum length of %d", maxLen))
	}
	return cleaned, nil
}

// ValidateEnum reports whether value is one of allowed, erroring with
// field named in the message otherwise.
func ValidateEnum(value string, allowed []string, field string) error {
	for _, a := range allowed {
		if value == a {
			return nil
		}
	}
	return clerr.New(clerr.CodeInvalidEnum, clerr.ExitValidationError,
		fmt.Sprintf("invalid %s: %q (allowed: %s)", field, value, strings.Join(allowed, ", ")))
}

// knownEnumFields maps a params field name to the enum it validates
// against, for SanitizeParams's dispatch-by-field-name pass.
var knownEnumFields = map[string][]string{
	"status":   types.ValidTaskStatuses,
	"priority": types.ValidPriorities,
	"type":     types.ValidTaskTypes,
	"size":     types.ValidTaskSizes,
}

// knownPathFields and knownIDFields name the params keys SanitizeParams
// dispatches to SanitizePath/SanitizeTaskID.
var knownPathFields = map[string]bool{"path": true, "file": true, "files": true}
var knownIDFields = map[string]bool{"id": true, "taskId": true, "parentId": true, "dependsOn": true, "relatedTo": true}

// contentMaxLen gives a field-specific maximum length, matching the data
// model's title/description bounds (spec.md §3); fields not listed here
// are stripped of control characters but not length-limited by the
// security layer (the domain layer enforces its own bounds).
var contentMaxLen = map[string]int{
	"title":       120,
	"description": 2000,
}

// SanitizeParams walks a decoded request params map, dispatching each
// recognised field name to the matching sanitiser, and recursing into
// arrays of strings the same way. projectRoot anchors any path field.
func SanitizeParams(params map[string]any, projectRoot string) error {
	for key, val := range params {
		switch v := val.(type) {
		case string:
			cleaned, err := sanitizeField(key, v, projectRoot)
			if err != nil {
				return err
			}
			params[key] = cleaned
		case []any:
			for i, elem := range v {
				s, ok := elem.(string)
				if !ok {
					continue
				}
				cleaned, err := sanitizeField(key, s, projectRoot)
				if err != nil {
					return err
				}
				v[i] = cleaned
			}
		}
	}
	return nil
}

func sanitizeField(key, value, projectRoot string) (string, error) {
	if allowed, ok := knownEnumFields[key]; ok {
		if err := ValidateEnum(value, allowed, key); err != nil {
			return "", err
		}
		return value, nil
	}
	if knownIDFields[key] {
		return SanitizeTaskID(value)
	}
	if knownPathFields[key] {
		return SanitizePath(value, projectRoot)
	}
	return SanitizeContent(value, contentMaxLen[key])
}
