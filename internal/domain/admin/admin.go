// Package admin implements the admin/system domain operations:
// dashboard aggregates, health, config get/set, tombstone purge,
// compaction, and safe-stop. It is the operational surface over the
// same storage.Storage every other domain package uses, plus the
// project's on-disk config.
package admin

import (
	"context"
	"fmt"
	"time"

	"github.com/cleo-dev/cleo/internal/clerr"
	"github.com/cleo-dev/cleo/internal/config"
	"github.com/cleo-dev/cleo/internal/domain/session"
	"github.com/cleo-dev/cleo/internal/storage"
	"github.com/cleo-dev/cleo/internal/types"
)

// Service implements the admin/system domain operations.
type Service struct {
	store    storage.Storage
	sessions *session.Service
	cfg      *config.Config
}

// New builds a Service over store, sessions, and cfg. cfg may be nil
// when the caller has no config.json loaded (config get/set then
// report E_CONFIG_ERROR).
func New(store storage.Storage, sessions *session.Service, cfg *config.Config) *Service {
	return &Service{store: store, sessions: sessions, cfg: cfg}
}

// Dashboard is the aggregate view spec.md's admin dashboard renders.
type Dashboard struct {
	Stats storage.Stats `json:"stats"`
}

// Dashboard returns task/session aggregates for the admin dashboard.
func (s *Service) Dashboard(ctx context.Context) (*Dashboard, error) {
	stats, err := s.store.GetStats(ctx)
	if err != nil {
		return nil, clerr.Internal(err)
	}
	return &Dashboard{Stats: stats}, nil
}

// Health reports whether the storage engine is reachable.
type Health struct {
	Storage string `json:"storage"`
}

// Health pings storage by running a cheap stats query.
func (s *Service) Health(ctx context.Context) (*Health, error) {
	if _, err := s.store.GetStats(ctx); err != nil {
		return &Health{Storage: "unreachable"}, clerr.Internal(err)
	}
	return &Health{Storage: "ok"}, nil
}

// ConfigGet returns a single config value.
func (s *Service) ConfigGet(key string) (any, error) {
	if s.cfg == nil {
		return nil, clerr.New(clerr.CodeConfigError, clerr.ExitConfigError, "no config loaded")
	}
	return s.cfg.Get(key), nil
}

// ConfigSet validates and applies a config change, persisting it to dir.
func (s *Service) ConfigSet(dir, key string, val any) error {
	if s.cfg == nil {
		return clerr.New(clerr.CodeConfigError, clerr.ExitConfigError, "no config loaded")
	}
	if err := s.cfg.Set(key, val); err != nil {
		return clerr.New(clerr.CodeConfigError, clerr.ExitConfigError, err.Error())
	}
	if err := s.cfg.Save(dir); err != nil {
		return clerr.New(clerr.CodeConfigError, clerr.ExitConfigError, err.Error())
	}
	return nil
}

// ConfigAll returns every recognised config key's current value.
func (s *Service) ConfigAll() (map[string]any, error) {
	if s.cfg == nil {
		return nil, clerr.New(clerr.CodeConfigError, clerr.ExitConfigError, "no config loaded")
	}
	return s.cfg.All(), nil
}

// defaultTombstoneRetention matches spec.md's 90-day default.
const defaultTombstoneRetention = 90 * 24 * time.Hour

// PurgeTombstones physically removes soft-deleted tasks older than
// retention (defaultTombstoneRetention when zero).
func (s *Service) PurgeTombstones(ctx context.Context, retention time.Duration) (int, error) {
	if retention <= 0 {
		retention = defaultTombstoneRetention
	}
	n, err := s.store.PurgeTombstones(ctx, storage.Now().Add(-retention))
	if err != nil {
		return 0, clerr.Internal(err)
	}
	return n, nil
}

// Compact reclaims space in the backing store. admin.compact is grounded
// on the simpler, already-wired VACUUM-based storage.CompactableStorage
// rather than the teacher's tier-1/tier-2 content-compaction feature
// (task_snapshots, GetTier1Candidates/GetTier2Candidates/ApplyCompaction):
// that feature needs new schema this pass doesn't add (see DESIGN.md).
func (s *Service) Compact(ctx context.Context) error {
	compactable, ok := s.store.(storage.CompactableStorage)
	if !ok {
		return clerr.New(clerr.CodeInvalidInput, clerr.ExitGeneral, "storage engine does not support compaction")
	}
	if err := compactable.Compact(ctx); err != nil {
		return clerr.Internal(err)
	}
	return nil
}

// CompactStats reports the aggregate counts a compaction decision would
// be based on: the live task total read from storage, and the tombstoned
// count the caller supplied.
type CompactStats struct {
	TotalTasks      int `json:"totalTasks"`
	TombstonedTasks int `json:"tombstonedTasks"`
}

// CompactStats returns the live task total from storage; TombstonedTasks
// is the tombstoned argument returned unchanged, not a storage count.
func (s *Service) CompactStats(ctx context.Context, tombstoned int) (*CompactStats, error) {
	stats, err := s.store.GetStats(ctx)
	if err != nil {
		return nil, clerr.Internal(err)
	}
	return &CompactStats{TotalTasks: stats.TotalTasks, TombstonedTasks: tombstoned}, nil
}

// SafeStop gracefully ends every active session, emitting a handoff note
// on each so no session is left dangling mid-task.
func (s *Service) SafeStop(ctx context.Context, note string) ([]*types.Session, error) {
	active, err := s.store.ListSessions(ctx, string(types.SessionActive), 0)
	if err != nil {
		return nil, clerr.Internal(err)
	}
	out := make([]*types.Session, 0, len(active))
	for _, sess := range active {
		ended, err := s.sessions.End(ctx, sess.ID, note, false)
		if err != nil {
			return out, fmt.Errorf("safe-stop session %s: %w", sess.ID, err)
		}
		out = append(out, ended)
	}
	return out, nil
}
