// Package tasks implements the task domain operations: creation,
// retrieval, mutation, archival, search, staleness, and claiming. It sits
// between the gateway router and internal/storage, owning every
// creation/update invariant that the storage layer itself does not
// enforce as a column constraint — mirroring the teacher's practice of
// validating in the store layer before issuing SQL rather than trusting
// the caller.
package tasks

import (
	"context"
	"fmt"
	"strings"

	"github.com/cleo-dev/cleo/internal/clerr"
	"github.com/cleo-dev/cleo/internal/storage"
	"github.com/cleo-dev/cleo/internal/types"
)

// Service implements the tasks.* domain operations against a Storage.
type Service struct {
	store storage.Storage
}

// New builds a Service over store.
func New(store storage.Storage) *Service {
	return &Service{store: store}
}

// AddParams describes a new task. Title is required; everything else
// defaults the way the teacher's issue-creation path does (pending
// status, medium priority, "task" type).
type AddParams struct {
	Title              string
	Description        string
	Priority           types.Priority
	Type               types.TaskType
	ParentID           string
	Phase              string
	Size               types.TaskSize
	Labels             []string
	AcceptanceCriteria []string
	DependsOn          []string
	CreatedBy          string
	SessionID          string
}

// Add validates and creates a task.
func (s *Service) Add(ctx context.Context, p AddParams) (*types.Task, error) {
	title := strings.TrimSpace(p.Title)
	if title == "" {
		return nil, clerr.New(clerr.CodeInvalidInput, clerr.ExitInvalidInput, "title is required")
	}
	if title == strings.TrimSpace(p.Description) && title != "" {
		return nil, clerr.New(clerr.CodeInvalidInput, clerr.ExitInvalidInput,
			"title and description must not be identical")
	}

	priority := p.Priority
	if priority == "" {
		priority = types.PriorityMedium
	}
	taskType := p.Type
	if taskType == "" {
		taskType = types.TypeTask
	}
	size := p.Size
	if size == "" {
		size = types.SizeMedium
	}

	if p.ParentID != "" {
		parent, err := s.store.GetTask(ctx, p.ParentID)
		if err != nil {
			if err == storage.ErrNotFound {
				return nil, clerr.New(clerr.CodeParentNotFound, clerr.ExitParentMissing,
					fmt.Sprintf("parent task not found: %s", p.ParentID))
			}
			return nil, clerr.Internal(err)
		}
		if taskType == types.TypeTask && parent.Type == types.TypeSubtask {
			return nil, clerr.New(clerr.CodeInvalidInput, clerr.ExitInvalidInput,
				"a subtask cannot itself be a parent")
		}
	}

	now := storage.Now()
	t := &types.Task{
		Title:              title,
		Description:        p.Description,
		Status:             types.StatusPending,
		Priority:           priority,
		Type:               taskType,
		ParentID:           p.ParentID,
		Phase:              p.Phase,
		Size:               size,
		Labels:             p.Labels,
		AcceptanceCriteria: p.AcceptanceCriteria,
		CreatedAt:          now,
		UpdatedAt:          now,
		CreatedBy:          p.CreatedBy,
		ModifiedBy:         p.CreatedBy,
		SessionID:          p.SessionID,
	}
	t.ContentHash = contentHash(t)

	if err := s.store.CreateTask(ctx, t); err != nil {
		return nil, clerr.Internal(err)
	}

	for _, dep := range p.DependsOn {
		if err := s.store.AddDependency(ctx, types.Dependency{
			TaskID: t.ID, DependsOn: dep, CreatedAt: now, CreatedBy: p.CreatedBy,
		}); err != nil {
			return nil, clerr.Internal(err)
		}
	}
	return t, nil
}

// Show returns a single task by ID.
func (s *Service) Show(ctx context.Context, id string) (*types.Task, error) {
	t, err := s.store.GetTask(ctx, id)
	if err == storage.ErrNotFound {
		return nil, clerr.NotFound("task", id)
	}
	if err != nil {
		return nil, clerr.Internal(err)
	}
	return t, nil
}

// allowedUpdateFields whitelists the task fields callers may set through
// Update, the way the teacher's isAllowedUpdateField guards its
// column-map UPDATE.
var allowedUpdateFields = map[string]bool{
	"title": true, "description": true, "status": true, "priority": true,
	"type": true, "phase": true, "size": true, "labels": true, "notes": true,
	"acceptanceCriteria": true, "files": true, "verificationMeta": true,
}

// Update applies a partial set of field changes to a task, enforcing the
// status transition table and refusing unknown fields.
func (s *Service) Update(ctx context.Context, id string, updates map[string]any, modifiedBy string) (*types.Task, error) {
	t, err := s.Show(ctx, id)
	if err != nil {
		return nil, err
	}

	for key := range updates {
		if !allowedUpdateFields[key] {
			return nil, clerr.New(clerr.CodeInvalidInput, clerr.ExitInvalidInput,
				fmt.Sprintf("field not updatable: %s", key))
		}
	}

	if v, ok := updates["title"].(string); ok {
		t.Title = v
	}
	if v, ok := updates["description"].(string); ok {
		t.Description = v
	}
	if v, ok := updates["status"].(string); ok {
		next := types.TaskStatus(v)
		if !types.CanTransitionStatus(t.Status, next) {
			return nil, clerr.New(clerr.CodeInvalidInput, clerr.ExitValidationError,
				fmt.Sprintf("cannot transition status %s -> %s", t.Status, next))
		}
		t.Status = next
	}
	if v, ok := updates["priority"].(string); ok {
		t.Priority = types.Priority(v)
	}
	if v, ok := updates["type"].(string); ok {
		t.Type = types.TaskType(v)
	}
	if v, ok := updates["phase"].(string); ok {
		t.Phase = v
	}
	if v, ok := updates["size"].(string); ok {
		t.Size = types.TaskSize(v)
	}
	if v, ok := updates["labels"].([]string); ok {
		t.Labels = v
	}
	if v, ok := updates["notes"].([]string); ok {
		t.Notes = v
	}
	if v, ok := updates["acceptanceCriteria"].([]string); ok {
		t.AcceptanceCriteria = v
	}
	if v, ok := updates["files"].([]string); ok {
		t.Files = v
	}
	if v, ok := updates["verificationMeta"].(map[string]any); ok {
		t.VerificationMeta = v
	}

	t.UpdatedAt = storage.Now()
	t.ModifiedBy = modifiedBy
	t.ContentHash = contentHash(t)

	if err := s.store.UpdateTask(ctx, t); err != nil {
		if err == storage.ErrNotFound {
			return nil, clerr.NotFound("task", id)
		}
		return nil, clerr.Internal(err)
	}
	return t, nil
}

// CompleteResult wraps the completed task with the idempotency marker
// spec's noChange contract requires: a second Complete on an
// already-done task returns the task unmutated with NoChange set,
// rather than re-stamping CompletedAt.
type CompleteResult struct {
	*types.Task
	NoChange bool `json:"noChange,omitempty"`
}

// Complete marks a task done, stamping CompletedAt and computing cycle
// time from CreatedAt. Calling it again on an already-done task is a
// no-op success (NoChange=true) rather than a re-stamp.
func (s *Service) Complete(ctx context.Context, id, modifiedBy string) (*CompleteResult, error) {
	t, err := s.Show(ctx, id)
	if err != nil {
		return nil, err
	}
	if t.Status == types.StatusDone {
		return &CompleteResult{Task: t, NoChange: true}, nil
	}
	if !types.CanTransitionStatus(t.Status, types.StatusDone) {
		return nil, clerr.New(clerr.CodeInvalidInput, clerr.ExitValidationError,
			fmt.Sprintf("cannot complete task in status %s", t.Status))
	}
	now := storage.Now()
	t.Status = types.StatusDone
	t.CompletedAt = &now
	days := now.Sub(t.CreatedAt).Hours() / 24
	t.CycleTimeDays = &days
	t.UpdatedAt = now
	t.ModifiedBy = modifiedBy
	t.ContentHash = contentHash(t)

	if err := s.store.UpdateTask(ctx, t); err != nil {
		return nil, clerr.Internal(err)
	}
	return &CompleteResult{Task: t}, nil
}

// Delete tombstones a task (soft delete). It refuses to delete a task
// with non-deleted children unless cascade is set, matching the
// teacher's has-children guard on issue deletion.
func (s *Service) Delete(ctx context.Context, id, reason string, cascade bool) error {
	if _, err := s.Show(ctx, id); err != nil {
		return err
	}
	children, err := s.store.ListTasks(ctx, types.TaskFilter{ParentID: id})
	if err != nil {
		return clerr.Internal(err)
	}
	if len(children) > 0 && !cascade {
		return clerr.New(clerr.CodeHasChildren, clerr.ExitHasChildren,
			fmt.Sprintf("task %s has %d child task(s); pass cascade to delete them too", id, len(children)))
	}
	for _, child := range children {
		if err := s.Delete(ctx, child.ID, reason, true); err != nil {
			return err
		}
	}
	if err := s.store.DeleteTask(ctx, id, reason); err != nil {
		if err == storage.ErrNotFound {
			return clerr.NotFound("task", id)
		}
		return clerr.Internal(err)
	}
	return nil
}

// List returns tasks matching f.
func (s *Service) List(ctx context.Context, f types.TaskFilter) ([]*types.Task, error) {
	out, err := s.store.ListTasks(ctx, f)
	if err != nil {
		return nil, clerr.Internal(err)
	}
	return out, nil
}

// defaultFindLimit bounds an unscoped fuzzy search the way the teacher
// caps its default issue search page.
const defaultFindLimit = 20

// Find runs a fuzzy title/description search, defaulting the result
// limit to defaultFindLimit when the caller leaves it unset.
func (s *Service) Find(ctx context.Context, query string, f types.TaskFilter) ([]*types.Task, error) {
	if f.Limit <= 0 {
		f.Limit = defaultFindLimit
	}
	out, err := s.store.FindTasks(ctx, query, f)
	if err != nil {
		return nil, clerr.Internal(err)
	}
	return out, nil
}

// Archive moves one task to the terminal archived status, recording why.
func (s *Service) Archive(ctx context.Context, id, reason, modifiedBy string) (*types.Task, error) {
	t, err := s.Show(ctx, id)
	if err != nil {
		return nil, err
	}
	now := storage.Now()
	t.Status = types.StatusArchived
	t.ArchivedAt = &now
	t.ArchiveReason = reason
	t.UpdatedAt = now
	t.ModifiedBy = modifiedBy
	t.ContentHash = contentHash(t)
	if err := s.store.UpdateTask(ctx, t); err != nil {
		return nil, clerr.Internal(err)
	}
	return t, nil
}

// ArchiveBatch archives several tasks, collecting per-task failures
// instead of aborting the whole batch, the way a gateway partial-success
// envelope expects.
func (s *Service) ArchiveBatch(ctx context.Context, ids []string, reason, modifiedBy string) (succeeded []*types.Task, failed map[string]error) {
	failed = make(map[string]error)
	for _, id := range ids {
		t, err := s.Archive(ctx, id, reason, modifiedBy)
		if err != nil {
			failed[id] = err
			continue
		}
		succeeded = append(succeeded, t)
	}
	return succeeded, failed
}

// Stale returns tasks that have not been touched in f.Days days,
// grounded on the teacher's GetStaleIssues.
func (s *Service) Stale(ctx context.Context, f types.StaleFilter) ([]*types.Task, error) {
	out, err := s.store.GetStaleTasks(ctx, f)
	if err != nil {
		return nil, clerr.Internal(err)
	}
	return out, nil
}

// Claim atomically assigns a task to an owner. Task carries no dedicated
// assignee column (see DESIGN.md's claim-ownership decision): ModifiedBy
// doubles as the claim owner, and the compare-and-swap is implemented in
// the domain layer via RunInTransaction + a freshness re-check rather
// than the teacher's single conditional UPDATE, since storage.Storage
// exposes whole-row Get/Update rather than column-level SQL.
func (s *Service) Claim(ctx context.Context, id, owner string) (*types.Task, error) {
	var claimed *types.Task
	err := s.store.RunInTransaction(ctx, func(tx storage.Transaction) error {
		t, err := tx.GetTask(ctx, id)
		if err == storage.ErrNotFound {
			return clerr.NotFound("task", id)
		}
		if err != nil {
			return clerr.Internal(err)
		}
		if t.ModifiedBy != "" && t.ModifiedBy != owner && t.Status == types.StatusActive {
			return clerr.New(clerr.CodeAlreadyClaimed, clerr.ExitValidationError,
				fmt.Sprintf("task %s already claimed by %s", id, t.ModifiedBy))
		}
		now := storage.Now()
		if t.Status == types.StatusPending {
			t.Status = types.StatusActive
		}
		t.ModifiedBy = owner
		t.UpdatedAt = now
		t.ContentHash = contentHash(t)
		if err := tx.UpdateTask(ctx, t); err != nil {
			return clerr.Internal(err)
		}
		claimed = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}
