// Package sqlitefile implements internal/accessor.Accessor by materialising
// whole-aggregate files from the relational tables in internal/storage.
package sqlitefile

import (
	"context"
	"fmt"

	"github.com/cleo-dev/cleo/internal/accessor"
	"github.com/cleo-dev/cleo/internal/storage"
	"github.com/cleo-dev/cleo/internal/storage/sqlite"
	"github.com/cleo-dev/cleo/internal/types"
)

func init() {
	accessor.RegisterEngine(accessor.EngineSQLite, func(ctx context.Context, cfg accessor.Config) (accessor.Accessor, error) {
		busyTimeout := cfg.BusyTimeout
		if busyTimeout <= 0 {
			busyTimeout = 30_000_000_000 // 30s, matches sqlite.Open's default
		}
		store, err := sqlite.OpenWithTimeout(ctx, cfg.DBPath, busyTimeout)
		if err != nil {
			return nil, fmt.Errorf("open sqlite store: %w", err)
		}
		store.EnableFreshnessChecking()
		return New(store), nil
	})
}

// Accessor wraps a storage.Storage and presents it as whole-aggregate
// files, the way the teacher's SQLite store exposes typed row converters
// over the relational schema.
type Accessor struct {
	store storage.Storage
}

// New wraps an already-open storage.Storage. Exported so callers that
// already hold an open Store (cmd/cleo's runDaemon, the dual engine, and
// the gateway/rpc tests) can wrap it directly, without going through the
// string-keyed Config/Open path.
func New(store storage.Storage) *Accessor {
	return &Accessor{store: store}
}

// Store returns the underlying storage.Storage, for callers (e.g.
// internal/domain) that need row-level operations alongside whole-
// aggregate loads rather than always reading/writing the full file.
func (a *Accessor) Store() storage.Storage { return a.store }

func (a *Accessor) LoadTaskFile(ctx context.Context) (*accessor.TaskFile, error) {
	tasks, err := a.store.ListTasks(ctx, types.TaskFilter{})
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}

	live := make([]*types.Task, 0, len(tasks))
	var maxID int64
	for _, t := range tasks {
		if t.Status == types.StatusArchived {
			continue
		}
		live = append(live, t)
		if n, err := types.ParseTaskIDNumber(t.ID); err == nil && n > maxID {
			maxID = n
		}
	}

	var deps []types.Dependency
	var rels []types.Relation
	for _, t := range live {
		d, err := a.store.GetDependencies(ctx, t.ID)
		if err != nil {
			return nil, fmt.Errorf("get dependencies for %s: %w", t.ID, err)
		}
		deps = append(deps, d...)

		r, err := a.store.GetRelations(ctx, t.ID)
		if err != nil {
			return nil, fmt.Errorf("get relations for %s: %w", t.ID, err)
		}
		rels = append(rels, r...)
	}

	sessions, err := a.store.ListSessions(ctx, "", 0)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	var work []types.TaskWorkEntry
	for _, sess := range sessions {
		entries, err := a.store.GetTaskWorkHistory(ctx, sess.ID, 0)
		if err != nil {
			return nil, fmt.Errorf("get task-work history for %s: %w", sess.ID, err)
		}
		work = append(work, entries...)
	}

	return &accessor.TaskFile{
		Tasks:        live,
		Dependencies: deps,
		Relations:    rels,
		WorkState:    work,
		NextTaskID:   maxID + 1,
		SavedAt:      storage.Now(),
	}, nil
}

// SaveTaskFile upserts every task in f, then reconciles each task's
// dependency and relation edges to exactly the set f describes. Task-work
// history is append-only in storage.Storage, so only the currently-open
// (ClearedAt == nil) entry per session is reconciled; closed history rows
// are not replayed — a session resumed from a saved file starts a fresh
// focus entry rather than rewriting history, same as the teacher's
// audit-log being import-only for forward-dated entries.
func (a *Accessor) SaveTaskFile(ctx context.Context, f *accessor.TaskFile) error {
	return a.store.RunInTransaction(ctx, func(tx storage.Transaction) error {
		for _, t := range f.Tasks {
			if err := upsertTask(ctx, tx, t); err != nil {
				return err
			}
		}
		for _, t := range f.Tasks {
			if err := reconcileDependencies(ctx, tx, t.ID, f.Dependencies); err != nil {
				return err
			}
			if err := reconcileRelations(ctx, tx, t.ID, f.Relations); err != nil {
				return err
			}
		}
		return reconcileWorkState(ctx, tx, f.WorkState)
	})
}

func upsertTask(ctx context.Context, tx storage.Transaction, t *types.Task) error {
	_, err := tx.GetTask(ctx, t.ID)
	switch err {
	case storage.ErrNotFound:
		return tx.CreateTask(ctx, t)
	case nil:
		return tx.UpdateTask(ctx, t)
	default:
		return fmt.Errorf("get task %s: %w", t.ID, err)
	}
}

func reconcileDependencies(ctx context.Context, tx storage.Transaction, taskID string, want []types.Dependency) error {
	current, err := tx.GetDependencies(ctx, taskID)
	if err != nil {
		return fmt.Errorf("get dependencies for %s: %w", taskID, err)
	}
	wantSet := map[string]types.Dependency{}
	for _, d := range want {
		if d.TaskID == taskID {
			wantSet[d.DependsOn] = d
		}
	}
	haveSet := map[string]bool{}
	for _, d := range current {
		haveSet[d.DependsOn] = true
		if _, ok := wantSet[d.DependsOn]; !ok {
			if err := tx.RemoveDependency(ctx, taskID, d.DependsOn); err != nil {
				return fmt.Errorf("remove dependency %s->%s: %w", taskID, d.DependsOn, err)
			}
		}
	}
	for dependsOn, d := range wantSet {
		if !haveSet[dependsOn] {
			if err := tx.AddDependency(ctx, d); err != nil {
				return fmt.Errorf("add dependency %s->%s: %w", taskID, dependsOn, err)
			}
		}
	}
	return nil
}

func reconcileRelations(ctx context.Context, tx storage.Transaction, taskID string, want []types.Relation) error {
	current, err := tx.GetRelations(ctx, taskID)
	if err != nil {
		return fmt.Errorf("get relations for %s: %w", taskID, err)
	}
	type key struct {
		to   string
		kind types.RelationType
	}
	wantSet := map[key]types.Relation{}
	for _, r := range want {
		if r.TaskID == taskID {
			wantSet[key{r.RelatedTo, r.RelationType}] = r
		}
	}
	haveSet := map[key]bool{}
	for _, r := range current {
		k := key{r.RelatedTo, r.RelationType}
		haveSet[k] = true
		if _, ok := wantSet[k]; !ok {
			if err := tx.RemoveRelation(ctx, taskID, r.RelatedTo, r.RelationType); err != nil {
				return fmt.Errorf("remove relation %s->%s: %w", taskID, r.RelatedTo, err)
			}
		}
	}
	for k, r := range wantSet {
		if !haveSet[k] {
			if err := tx.AddRelation(ctx, r); err != nil {
				return fmt.Errorf("add relation %s->%s: %w", taskID, k.to, err)
			}
		}
	}
	return nil
}

func reconcileWorkState(ctx context.Context, tx storage.Transaction, want []types.TaskWorkEntry) error {
	for _, entry := range want {
		if entry.ClearedAt != nil {
			continue
		}
		current, err := tx.GetCurrentTaskWork(ctx, entry.SessionID)
		if err != nil && err != storage.ErrNotFound {
			return fmt.Errorf("get current task-work for %s: %w", entry.SessionID, err)
		}
		if current != nil && current.TaskID == entry.TaskID {
			continue
		}
		if _, err := tx.SetTaskWork(ctx, entry.SessionID, entry.TaskID); err != nil {
			return fmt.Errorf("set task-work for %s: %w", entry.SessionID, err)
		}
	}
	return nil
}

func (a *Accessor) LoadArchive(ctx context.Context) (*accessor.ArchiveFile, error) {
	tasks, err := a.store.ListTasks(ctx, types.TaskFilter{Status: string(types.StatusArchived)})
	if err != nil {
		return nil, fmt.Errorf("list archived tasks: %w", err)
	}
	return &accessor.ArchiveFile{Tasks: tasks, SavedAt: storage.Now()}, nil
}

func (a *Accessor) SaveArchive(ctx context.Context, f *accessor.ArchiveFile) error {
	return a.store.RunInTransaction(ctx, func(tx storage.Transaction) error {
		for _, t := range f.Tasks {
			if err := upsertTask(ctx, tx, t); err != nil {
				return err
			}
		}
		return nil
	})
}

func (a *Accessor) LoadSessions(ctx context.Context) (*accessor.SessionsFile, error) {
	sessions, err := a.store.ListSessions(ctx, "", 0)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	var current string
	for _, s := range sessions {
		if s.Status == types.SessionActive {
			current = s.ID
			break
		}
	}
	return &accessor.SessionsFile{Sessions: sessions, CurrentSessionID: current, SavedAt: storage.Now()}, nil
}

func (a *Accessor) SaveSessions(ctx context.Context, f *accessor.SessionsFile) error {
	return a.store.RunInTransaction(ctx, func(tx storage.Transaction) error {
		for _, s := range f.Sessions {
			_, err := tx.GetSession(ctx, s.ID)
			switch err {
			case storage.ErrNotFound:
				if err := tx.CreateSession(ctx, s); err != nil {
					return fmt.Errorf("create session %s: %w", s.ID, err)
				}
			case nil:
				if err := tx.UpdateSession(ctx, s); err != nil {
					return fmt.Errorf("update session %s: %w", s.ID, err)
				}
			default:
				return fmt.Errorf("get session %s: %w", s.ID, err)
			}
		}
		return nil
	})
}

func (a *Accessor) AppendLog(ctx context.Context, entry types.AuditEntry) error {
	return a.store.AppendAudit(ctx, entry)
}

func (a *Accessor) Close() error {
	return a.store.Close()
}
