// Package session implements the session domain operations: start, end,
// close, suspend, resume, switch, and the read-side status/info/list/show
// views. There is no teacher equivalent for multi-session scoping (the
// teacher is single-session); this package generalizes the teacher's
// session-lifecycle state machine (the plain start/end status transitions
// it does support) to the scoped, chainable sessions spec.md calls for.
package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/cleo-dev/cleo/internal/clerr"
	"github.com/cleo-dev/cleo/internal/storage"
	"github.com/cleo-dev/cleo/internal/types"
)

// Service implements the session domain operations.
type Service struct {
	store storage.Storage
}

// New builds a Service over store.
func New(store storage.Storage) *Service {
	return &Service{store: store}
}

// NewID mints a session identifier in the session_<YYYYMMDD>_<HHMMSS>_<6hex>
// shape types.SessionIDPattern expects.
func NewID(now time.Time) string {
	var buf [3]byte
	_, _ = rand.Read(buf[:])
	return fmt.Sprintf("session_%s_%s", now.UTC().Format("20060102_150405"), hex.EncodeToString(buf[:]))
}

// ParseScope parses a "TYPE:ID" scope descriptor, or the bare word
// "global" for the unscoped case.
func ParseScope(raw string) (types.Scope, error) {
	if raw == "" || raw == string(types.ScopeGlobal) {
		return types.Scope{Type: types.ScopeGlobal}, nil
	}
	parts := strings.SplitN(raw, ":", 2)
	if len(parts) != 2 || parts[1] == "" {
		return types.Scope{}, clerr.New(clerr.CodeInvalidInput, clerr.ExitInvalidInput,
			fmt.Sprintf("malformed scope %q, want TYPE:ID", raw))
	}
	scopeType := types.ScopeType(parts[0])
	valid := false
	for _, t := range types.ValidScopeTypes {
		if t == string(scopeType) {
			valid = true
			break
		}
	}
	if !valid {
		return types.Scope{}, clerr.New(clerr.CodeInvalidEnum, clerr.ExitValidationError,
			fmt.Sprintf("invalid scope type: %q", parts[0]))
	}
	return types.Scope{Type: scopeType, ID: parts[1]}, nil
}

// StartParams describes a new session.
type StartParams struct {
	Name                string
	Scope               types.Scope
	Agent               string
	MultiSessionEnabled bool
	AutoFocusTaskID     string // caller resolves "highest-priority pending task in scope" and passes it here
}

// Start opens a new session. Unless multi-session mode is enabled, it
// refuses to start a second concurrently active session.
func (s *Service) Start(ctx context.Context, p StartParams) (*types.Session, error) {
	if !p.MultiSessionEnabled {
		active, err := s.store.ListSessions(ctx, string(types.SessionActive), 1)
		if err != nil {
			return nil, clerr.Internal(err)
		}
		if len(active) > 0 {
			return nil, clerr.New(clerr.CodeAlreadyExists, clerr.ExitAlreadyExists,
				fmt.Sprintf("session %s is already active; enable multi-session mode to start another", active[0].ID))
		}
	}

	now := storage.Now()
	sess := &types.Session{
		ID:        NewID(now),
		Name:      p.Name,
		Status:    types.SessionActive,
		Scope:     p.Scope,
		Agent:     p.Agent,
		StartedAt: now,
	}
	if p.AutoFocusTaskID != "" {
		sess.CurrentTask = p.AutoFocusTaskID
		sess.TaskStartedAt = &now
	}
	if err := s.store.CreateSession(ctx, sess); err != nil {
		return nil, clerr.Internal(err)
	}
	if p.AutoFocusTaskID != "" {
		if _, err := s.store.SetTaskWork(ctx, sess.ID, p.AutoFocusTaskID); err != nil {
			return nil, clerr.Internal(err)
		}
	}
	return sess, nil
}

// End marks a session ended, optionally recording a handoff note.
// requireNote mirrors the session.requireSessionNote config key: when
// true, an empty note is rejected.
func (s *Service) End(ctx context.Context, id, note string, requireNote bool) (*types.Session, error) {
	if requireNote && strings.TrimSpace(note) == "" {
		return nil, clerr.New(clerr.CodeInvalidInput, clerr.ExitInvalidInput,
			"a handoff note is required to end this session")
	}
	sess, err := s.Show(ctx, id)
	if err != nil {
		return nil, err
	}
	now := storage.Now()
	sess.Status = types.SessionEnded
	sess.EndedAt = &now
	sess.HandoffNote = note
	if err := s.store.UpdateSession(ctx, sess); err != nil {
		return nil, clerr.Internal(err)
	}
	return sess, nil
}

// Close permanently ends a session, refusing unless every task in scope
// is done, cancelled, or archived.
func (s *Service) Close(ctx context.Context, id string) (*types.Session, error) {
	sess, err := s.Show(ctx, id)
	if err != nil {
		return nil, err
	}
	scoped, err := s.resolveScopeTasks(ctx, sess.Scope)
	if err != nil {
		return nil, err
	}
	var incomplete []string
	for _, t := range scoped {
		if t.Status != types.StatusDone && t.Status != types.StatusCancelled && t.Status != types.StatusArchived {
			incomplete = append(incomplete, t.ID)
		}
	}
	if len(incomplete) > 0 {
		return nil, clerr.New(clerr.CodeSessionCloseBlocked, clerr.ExitSessionCloseBlocked,
			fmt.Sprintf("session %s cannot close: %d task(s) still open", id, len(incomplete))).
			WithDetails(map[string]any{"openTasks": incomplete})
	}

	now := storage.Now()
	sess.Status = types.SessionEnded
	sess.EndedAt = &now
	if err := s.store.UpdateSession(ctx, sess); err != nil {
		return nil, clerr.Internal(err)
	}
	return sess, nil
}

// resolveScopeTasks returns the tasks a scope covers. "global" and
// "custom" scopes have no enumerable task set at the domain layer and
// are treated as vacuously satisfied (nothing blocks close).
func (s *Service) resolveScopeTasks(ctx context.Context, scope types.Scope) ([]*types.Task, error) {
	switch scope.Type {
	case types.ScopeTask:
		t, err := s.store.GetTask(ctx, scope.ID)
		if err == storage.ErrNotFound {
			return nil, nil
		}
		if err != nil {
			return nil, clerr.Internal(err)
		}
		return []*types.Task{t}, nil
	case types.ScopeSubtree, types.ScopeEpic, types.ScopeTaskGroup, types.ScopeEpicPhase:
		out, err := s.store.ListTasks(ctx, types.TaskFilter{ParentID: scope.ID})
		if err != nil {
			return nil, clerr.Internal(err)
		}
		return out, nil
	default:
		return nil, nil
	}
}

// Status reports whether any session is currently active.
func (s *Service) Status(ctx context.Context) (*types.Session, error) {
	active, err := s.store.ListSessions(ctx, string(types.SessionActive), 1)
	if err != nil {
		return nil, clerr.Internal(err)
	}
	if len(active) == 0 {
		return nil, nil
	}
	return active[0], nil
}

// Show returns a single session by ID.
func (s *Service) Show(ctx context.Context, id string) (*types.Session, error) {
	sess, err := s.store.GetSession(ctx, id)
	if err == storage.ErrNotFound {
		return nil, clerr.NotFound("session", id)
	}
	if err != nil {
		return nil, clerr.Internal(err)
	}
	return sess, nil
}

// Info is an alias of Show: spec.md lists both `info` and `show` as
// distinct CLI verbs over the same read.
func (s *Service) Info(ctx context.Context, id string) (*types.Session, error) {
	return s.Show(ctx, id)
}

// List returns sessions matching status (empty for all), most recent first.
func (s *Service) List(ctx context.Context, status string, limit int) ([]*types.Session, error) {
	out, err := s.store.ListSessions(ctx, status, limit)
	if err != nil {
		return nil, clerr.Internal(err)
	}
	return out, nil
}

// Suspend parks an active session without ending it.
func (s *Service) Suspend(ctx context.Context, id string) (*types.Session, error) {
	sess, err := s.Show(ctx, id)
	if err != nil {
		return nil, err
	}
	if sess.Status != types.SessionActive {
		return nil, clerr.New(clerr.CodeInvalidInput, clerr.ExitValidationError,
			fmt.Sprintf("cannot suspend session in status %s", sess.Status))
	}
	sess.Status = types.SessionSuspended
	if err := s.store.UpdateSession(ctx, sess); err != nil {
		return nil, clerr.Internal(err)
	}
	return sess, nil
}

// Resume reactivates a suspended session. If id is empty, the most
// recently suspended session is resumed (the --last flag's semantics).
func (s *Service) Resume(ctx context.Context, id string) (*types.Session, error) {
	var sess *types.Session
	if id == "" {
		suspended, err := s.store.ListSessions(ctx, string(types.SessionSuspended), 1)
		if err != nil {
			return nil, clerr.Internal(err)
		}
		if len(suspended) == 0 {
			return nil, clerr.New(clerr.CodeNotFound, clerr.ExitNotFound, "no suspended session to resume")
		}
		sess = suspended[0]
	} else {
		var err error
		sess, err = s.Show(ctx, id)
		if err != nil {
			return nil, err
		}
	}
	if sess.Status != types.SessionSuspended {
		return nil, clerr.New(clerr.CodeInvalidInput, clerr.ExitValidationError,
			fmt.Sprintf("session %s is not suspended", sess.ID))
	}
	sess.Status = types.SessionActive
	sess.ResumeCount++
	if err := s.store.UpdateSession(ctx, sess); err != nil {
		return nil, clerr.Internal(err)
	}
	return sess, nil
}

// Switch validates that a session exists and is active, handing the
// caller a session to point the ".current-session" sentinel file at.
// Writing that sentinel is the gateway/CLI layer's job (it owns the
// project's .cleo/ directory), not this package's.
func (s *Service) Switch(ctx context.Context, id string) (*types.Session, error) {
	sess, err := s.Show(ctx, id)
	if err != nil {
		return nil, err
	}
	if sess.Status != types.SessionActive {
		return nil, clerr.New(clerr.CodeInvalidInput, clerr.ExitValidationError,
			fmt.Sprintf("cannot switch to session %s in status %s", id, sess.Status))
	}
	return sess, nil
}
