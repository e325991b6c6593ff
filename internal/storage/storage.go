// Package storage defines the persistence contract used by the data
// accessor: whole-aggregate task/session/lifecycle storage with
// transactional mutation, dependency graph queries, and ready/blocked
// work views. Concrete engines (internal/storage/sqlite) implement it.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/cleo-dev/cleo/internal/types"
)

// ErrAlreadyExists is returned when creating a task/session whose ID
// collides with an existing row.
var ErrAlreadyExists = errors.New("storage: already exists")

// ErrNotFound is returned when a lookup finds no matching row.
var ErrNotFound = errors.New("storage: not found")

// ErrConflict is returned when an optimistic-concurrency check (e.g. a
// position version) fails.
var ErrConflict = errors.New("storage: conflict")

// Stats summarizes the task graph for status reporting.
type Stats struct {
	TotalTasks     int            `json:"totalTasks"`
	ByStatus       map[string]int `json:"byStatus"`
	ByPriority     map[string]int `json:"byPriority"`
	ReadyCount     int            `json:"readyCount"`
	BlockedCount   int            `json:"blockedCount"`
	ActiveSessions int            `json:"activeSessions"`
}

// Storage is the full persistence contract. A Storage value is safe for
// concurrent use; callers that need several operations to commit
// atomically use RunInTransaction.
type Storage interface {
	// Tasks
	CreateTask(ctx context.Context, t *types.Task) error
	GetTask(ctx context.Context, id string) (*types.Task, error)
	UpdateTask(ctx context.Context, t *types.Task) error
	DeleteTask(ctx context.Context, id string, reason string) error
	ListTasks(ctx context.Context, f types.TaskFilter) ([]*types.Task, error)
	FindTasks(ctx context.Context, query string, f types.TaskFilter) ([]*types.Task, error)

	// Dependencies and relations
	AddDependency(ctx context.Context, dep types.Dependency) error
	RemoveDependency(ctx context.Context, taskID, dependsOn string) error
	GetDependencies(ctx context.Context, taskID string) ([]types.Dependency, error)
	GetDependents(ctx context.Context, taskID string) ([]types.Dependency, error)
	AddRelation(ctx context.Context, rel types.Relation) error
	RemoveRelation(ctx context.Context, taskID, relatedTo string, kind types.RelationType) error
	GetRelations(ctx context.Context, taskID string) ([]types.Relation, error)

	// Ready/blocked work views
	GetReadyWork(ctx context.Context, f types.WorkFilter) ([]*types.Task, error)
	GetBlockedTasks(ctx context.Context, f types.WorkFilter) ([]*types.Task, error)
	GetStaleTasks(ctx context.Context, f types.StaleFilter) ([]*types.Task, error)

	// Sessions
	CreateSession(ctx context.Context, s *types.Session) error
	GetSession(ctx context.Context, id string) (*types.Session, error)
	UpdateSession(ctx context.Context, s *types.Session) error
	ListSessions(ctx context.Context, status string, limit int) ([]*types.Session, error)

	// Task-work focus history
	SetTaskWork(ctx context.Context, sessionID, taskID string) (*types.TaskWorkEntry, error)
	ClearTaskWork(ctx context.Context, sessionID string) error
	GetCurrentTaskWork(ctx context.Context, sessionID string) (*types.TaskWorkEntry, error)
	GetTaskWorkHistory(ctx context.Context, sessionID string, limit int) ([]types.TaskWorkEntry, error)

	// Lifecycle pipelines
	CreatePipeline(ctx context.Context, p *types.Pipeline) error
	GetPipeline(ctx context.Context, taskID string) (*types.Pipeline, error)
	UpdatePipeline(ctx context.Context, p *types.Pipeline) error
	GetStages(ctx context.Context, pipelineID int64) ([]types.Stage, error)
	UpdateStage(ctx context.Context, s *types.Stage) error
	RecordGateResult(ctx context.Context, r types.GateResult) error
	GetGateResults(ctx context.Context, stageID int64) ([]types.GateResult, error)
	RecordEvidence(ctx context.Context, e types.Evidence) error
	RecordTransition(ctx context.Context, tr types.Transition) error

	// Audit
	AppendAudit(ctx context.Context, e types.AuditEntry) error
	ListAudit(ctx context.Context, taskID string, limit int) ([]types.AuditEntry, error)

	// Aggregate stats
	GetStats(ctx context.Context) (Stats, error)

	// PurgeTombstones physically deletes soft-deleted tasks whose
	// deleted_at is older than before, returning the count removed.
	PurgeTombstones(ctx context.Context, before time.Time) (int, error)

	// RunInTransaction executes fn against a Storage bound to a single
	// BEGIN IMMEDIATE transaction; fn's error (or a panic) rolls the
	// transaction back, a nil return commits it.
	RunInTransaction(ctx context.Context, fn func(tx Transaction) error) error

	// Close releases the underlying connection(s), checkpointing the
	// WAL file first where the engine uses one.
	Close() error
}

// Transaction is the subset of Storage available inside RunInTransaction.
// It shares the same method set so transactional and non-transactional
// callers can be written against one interface; engines type-assert or
// embed as appropriate.
type Transaction interface {
	Storage
}

// CompactableStorage is implemented by engines that support rewriting
// their backing file to reclaim space (SQLite VACUUM, JSON snapshot
// rewrite).
type CompactableStorage interface {
	Compact(ctx context.Context) error
}

// Backupper is implemented by engines that can produce a consistent
// point-in-time copy without blocking writers for the whole operation.
type Backupper interface {
	BackupTo(ctx context.Context, path string) error
}

// FreshnessChecker is implemented by engines that detect a backing file
// modified by another process and can reconnect to pick up the change.
type FreshnessChecker interface {
	CheckFreshness(ctx context.Context) (stale bool, err error)
	Reconnect(ctx context.Context) error
}

// Now is overridable in tests; production code always uses time.Now.
var Now = time.Now
