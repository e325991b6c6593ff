// Package taskwork implements the task-work/focus domain operations:
// start, stop, current, history. The storage layer already guarantees at
// most one open (clearedAt == nil) row per session; this package adds
// the session/task existence checks and error mapping the gateway
// expects.
package taskwork

import (
	"context"

	"github.com/cleo-dev/cleo/internal/clerr"
	"github.com/cleo-dev/cleo/internal/storage"
	"github.com/cleo-dev/cleo/internal/types"
)

// Service implements the task-work domain operations.
type Service struct {
	store storage.Storage
}

// New builds a Service over store.
func New(store storage.Storage) *Service {
	return &Service{store: store}
}

// Start focuses sessionID on taskID, closing any previously open entry.
func (s *Service) Start(ctx context.Context, sessionID, taskID string) (*types.TaskWorkEntry, error) {
	if _, err := s.store.GetSession(ctx, sessionID); err != nil {
		if err == storage.ErrNotFound {
			return nil, clerr.NotFound("session", sessionID)
		}
		return nil, clerr.Internal(err)
	}
	if _, err := s.store.GetTask(ctx, taskID); err != nil {
		if err == storage.ErrNotFound {
			return nil, clerr.NotFound("task", taskID)
		}
		return nil, clerr.Internal(err)
	}
	entry, err := s.store.SetTaskWork(ctx, sessionID, taskID)
	if err != nil {
		return nil, clerr.Internal(err)
	}
	return entry, nil
}

// Stop closes the session's currently open focus entry, if any.
func (s *Service) Stop(ctx context.Context, sessionID string) error {
	if err := s.store.ClearTaskWork(ctx, sessionID); err != nil {
		if err == storage.ErrNotFound {
			return clerr.New(clerr.CodeFocusRequired, clerr.ExitFocusRequired,
				"no open task-work entry for session "+sessionID)
		}
		return clerr.Internal(err)
	}
	return nil
}

// Current returns the session's open focus entry.
func (s *Service) Current(ctx context.Context, sessionID string) (*types.TaskWorkEntry, error) {
	entry, err := s.store.GetCurrentTaskWork(ctx, sessionID)
	if err == storage.ErrNotFound {
		return nil, clerr.New(clerr.CodeFocusRequired, clerr.ExitFocusRequired,
			"no open task-work entry for session "+sessionID)
	}
	if err != nil {
		return nil, clerr.Internal(err)
	}
	return entry, nil
}

// History returns the session's focus history, most recent first.
func (s *Service) History(ctx context.Context, sessionID string, limit int) ([]types.TaskWorkEntry, error) {
	out, err := s.store.GetTaskWorkHistory(ctx, sessionID, limit)
	if err != nil {
		return nil, clerr.Internal(err)
	}
	return out, nil
}
