// Package jobs tracks long-running background operations (bulk
// compaction, exports, reindexing) so a caller can poll progress or
// abort without blocking the gateway on the operation itself.
package jobs

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cleo-dev/cleo/internal/clerr"
	"github.com/cleo-dev/cleo/internal/types"
)

// DefaultMaxConcurrent is the default concurrent-job cap; starting a
// job beyond it fails with E_JOB_LIMIT.
const DefaultMaxConcurrent = 10

// DefaultRetention is how long a terminal job's record is kept before
// the sweep removes it.
const DefaultRetention = time.Hour

const sweepInterval = 5 * time.Minute

// Func is the work a job performs. It reports progress via report and
// returns its result, or an error if it failed. The context is
// cancelled when the job is aborted.
type Func func(ctx context.Context, report func(progress int)) (any, error)

type job struct {
	record types.BackgroundJob
	cancel context.CancelFunc
}

// Manager owns the set of in-flight and recently-completed background
// jobs for a process.
type Manager struct {
	mu            sync.Mutex
	jobs          map[string]*job
	maxConcurrent int
	retention     time.Duration
	running       int

	sweepTicker *time.Ticker
	sweepDone   chan struct{}
	closeOnce   sync.Once
}

// NewManager constructs a Manager with spec.md's default concurrency
// cap and retention window, and starts its periodic sweep.
func NewManager() *Manager {
	m := &Manager{
		jobs:          make(map[string]*job),
		maxConcurrent: DefaultMaxConcurrent,
		retention:     DefaultRetention,
		sweepTicker:   time.NewTicker(sweepInterval),
		sweepDone:     make(chan struct{}),
	}
	go m.sweepLoop()
	return m
}

// Start launches fn in its own goroutine, tracked under a new job ID.
// It returns E_JOB_LIMIT if the concurrent-job cap is already reached.
func (m *Manager) Start(ctx context.Context, operation string, fn Func) (string, error) {
	m.mu.Lock()
	if m.running >= m.maxConcurrent {
		m.mu.Unlock()
		return "", clerr.New(clerr.CodeJobLimit, clerr.ExitGeneral,
			"concurrent job limit reached").WithRecoverable()
	}

	jobCtx, cancel := context.WithCancel(ctx)
	id := uuid.NewString()
	j := &job{
		record: types.BackgroundJob{
			ID:        id,
			Operation: operation,
			Status:    types.JobRunning,
			StartedAt: time.Now(),
		},
		cancel: cancel,
	}
	m.jobs[id] = j
	m.running++
	m.mu.Unlock()

	go m.run(jobCtx, id, fn)

	return id, nil
}

func (m *Manager) run(ctx context.Context, id string, fn Func) {
	report := func(progress int) { m.updateProgress(id, progress) }

	result, err := fn(ctx, report)

	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok {
		return
	}
	m.running--
	if j.record.Status == types.JobCancelled {
		return // aborted: the record was finalized by Abort, result discarded
	}
	now := time.Now()
	j.record.CompletedAt = &now
	switch {
	case ctx.Err() != nil && err != nil:
		j.record.Status = types.JobCancelled
	case err != nil:
		j.record.Status = types.JobFailed
		j.record.Error = err.Error()
	default:
		j.record.Status = types.JobCompleted
		j.record.Result = result
	}
}

// updateProgress clamps progress to [0,100] and records it against a
// still-running job; it is a no-op for unknown or terminal jobs.
func (m *Manager) updateProgress(id string, progress int) {
	if progress < 0 {
		progress = 0
	}
	if progress > 100 {
		progress = 100
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok || j.record.Status != types.JobRunning {
		return
	}
	j.record.Progress = progress
}

// Get returns a snapshot of a job's record.
func (m *Manager) Get(id string) (types.BackgroundJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok {
		return types.BackgroundJob{}, clerr.New(clerr.CodeJobNotFound, clerr.ExitNotFound,
			"job not found: "+id)
	}
	return j.record, nil
}

// List returns a snapshot of every tracked job.
func (m *Manager) List() []types.BackgroundJob {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]types.BackgroundJob, 0, len(m.jobs))
	for _, j := range m.jobs {
		out = append(out, j.record)
	}
	return out
}

// Abort cancels a running job's context and flips its status to
// cancelled at once; whatever the job returns afterwards is discarded.
// Aborting an unknown job returns E_JOB_NOT_FOUND; aborting an
// already-terminal job is a no-op.
func (m *Manager) Abort(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok {
		return clerr.New(clerr.CodeJobNotFound, clerr.ExitNotFound, "job not found: "+id)
	}
	if j.record.Status != types.JobRunning {
		return nil
	}
	j.cancel()
	now := time.Now()
	j.record.Status = types.JobCancelled
	j.record.CompletedAt = &now
	return nil
}

func (m *Manager) sweepLoop() {
	for {
		select {
		case <-m.sweepTicker.C:
			m.sweep()
		case <-m.sweepDone:
			return
		}
	}
}

// sweep removes terminal jobs whose CompletedAt is older than the
// retention window.
func (m *Manager) sweep() {
	cutoff := time.Now().Add(-m.retention)

	m.mu.Lock()
	defer m.mu.Unlock()
	for id, j := range m.jobs {
		if j.record.Status == types.JobRunning {
			continue
		}
		if j.record.CompletedAt != nil && j.record.CompletedAt.Before(cutoff) {
			delete(m.jobs, id)
		}
	}
}

// Close stops the sweep and aborts every still-running job. Cleanup is
// signalled immediately; jobs finish unwinding asynchronously once
// their context cancellation is observed.
func (m *Manager) Close() {
	m.closeOnce.Do(func() {
		m.sweepTicker.Stop()
		close(m.sweepDone)

		m.mu.Lock()
		defer m.mu.Unlock()
		for _, j := range m.jobs {
			if j.record.Status == types.JobRunning {
				j.cancel()
			}
		}
	})
}
