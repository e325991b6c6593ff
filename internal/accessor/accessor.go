// Package accessor defines the whole-aggregate persistence contract that
// sits between domain operations and the storage engine: business logic
// loads a file-shaped snapshot, mutates it in memory, and saves it back,
// so the same domain code runs unmodified against a SQLite-backed store,
// a flat JSON-file store, or a dual mirror of both.
package accessor

import (
	"context"
	"fmt"
	"time"

	"github.com/cleo-dev/cleo/internal/types"
)

// TaskFile is the whole-aggregate view of the live (non-archived) task
// graph: tasks, their dependency/relation edges, and open task-work focus
// state, plus the next sequential task ID to allocate.
type TaskFile struct {
	Tasks        []*types.Task         `json:"tasks"`
	Dependencies []types.Dependency    `json:"dependencies,omitempty"`
	Relations    []types.Relation      `json:"relations,omitempty"`
	WorkState    []types.TaskWorkEntry `json:"workState,omitempty"`
	NextTaskID   int64                 `json:"nextTaskId"`
	SavedAt      time.Time             `json:"savedAt"`
}

// ArchiveFile is the whole-aggregate view of archived tasks, kept in a
// separate aggregate so routine TaskFile round-trips stay small.
type ArchiveFile struct {
	Tasks   []*types.Task `json:"tasks"`
	SavedAt time.Time     `json:"savedAt"`
}

// SessionsFile is the whole-aggregate view of every session plus which
// one (if any) is the current session.
type SessionsFile struct {
	Sessions         []*types.Session `json:"sessions"`
	CurrentSessionID string           `json:"currentSessionId,omitempty"`
	SavedAt          time.Time        `json:"savedAt"`
}

// Accessor is the storage-agnostic contract domain operations are written
// against. Every engine is wrapped by the safety layer before it is
// handed to a caller — see Open.
type Accessor interface {
	LoadTaskFile(ctx context.Context) (*TaskFile, error)
	SaveTaskFile(ctx context.Context, f *TaskFile) error

	LoadArchive(ctx context.Context) (*ArchiveFile, error)
	SaveArchive(ctx context.Context, f *ArchiveFile) error

	LoadSessions(ctx context.Context) (*SessionsFile, error)
	SaveSessions(ctx context.Context, f *SessionsFile) error

	AppendLog(ctx context.Context, entry types.AuditEntry) error

	Close() error
}

// Engine selects which concrete Accessor implementation Open constructs.
type Engine string

const (
	EngineSQLite Engine = "sqlite"
	EngineJSON   Engine = "json"
	EngineDual   Engine = "dual"
)

// Config parametrizes Open. DBPath is required for EngineSQLite/EngineDual;
// JSONDir is required for EngineJSON/EngineDual.
type Config struct {
	Engine      Engine
	DBPath      string
	JSONDir     string
	BusyTimeout time.Duration
}

// openFuncs holds the constructor each engine package registers through
// RegisterEngine, so this package never imports the concrete
// sqlitefile/jsonfile/dual packages.
var openFuncs = map[Engine]func(ctx context.Context, cfg Config) (Accessor, error){}

// RegisterEngine is called from each engine package's init to avoid
// accessor -> sqlitefile/jsonfile/dual -> accessor import cycles: the
// engine packages import accessor for the Accessor/TaskFile types, and
// register their constructor here instead of accessor importing them.
func RegisterEngine(e Engine, open func(ctx context.Context, cfg Config) (Accessor, error)) {
	openFuncs[e] = open
}

// Open constructs the configured engine and wraps it in the safety layer
// (write verification, ID-collision detection, snapshot triggering) —
// there is no code path that returns an unwrapped Accessor.
func Open(ctx context.Context, cfg Config) (Accessor, error) {
	if cfg.Engine == "" {
		cfg.Engine = EngineSQLite
	}
	open, ok := openFuncs[cfg.Engine]
	if !ok {
		return nil, fmt.Errorf("accessor: unknown or unregistered engine %q", cfg.Engine)
	}
	inner, err := open(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return wrapSafety(inner), nil
}

// wrapSafety is set by internal/accessor/safety's init, for the same
// reason RegisterEngine exists: safety imports accessor for the Accessor
// interface, so accessor cannot import safety back.
var wrapSafety = func(inner Accessor) Accessor { return inner }

// SetSafetyWrapper is called from internal/accessor/safety's init.
func SetSafetyWrapper(wrap func(Accessor) Accessor) {
	wrapSafety = wrap
}
