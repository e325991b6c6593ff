// Package lifecycledomain adapts internal/lifecycle.Engine to the domain
// operation calling convention (plain arguments and typed results, no
// storage.Transaction leaking into callers), the same thin-wrapper shape
// internal/domain/taskwork uses over a narrower storage surface.
package lifecycledomain

import (
	"context"

	"github.com/cleo-dev/cleo/internal/lifecycle"
	"github.com/cleo-dev/cleo/internal/storage"
	"github.com/cleo-dev/cleo/internal/types"
)

// Service exposes the lifecycle.* domain operations.
type Service struct {
	engine *lifecycle.Engine
}

// New builds a Service over store, registering gate checkers and
// cross-cutting gates via configure if non-nil.
func New(store storage.Storage, configure func(*lifecycle.Registry)) *Service {
	engine := lifecycle.NewEngine(store)
	if configure != nil {
		configure(engine.Registry())
	}
	return &Service{engine: engine}
}

// Start begins a task's lifecycle pipeline at the research stage.
func (s *Service) Start(ctx context.Context, taskID string) (*types.Pipeline, error) {
	return s.engine.StartPipeline(ctx, taskID)
}

// Progress advances the task's pipeline to the next canonical stage.
func (s *Service) Progress(ctx context.Context, taskID string, force bool) (*types.Pipeline, error) {
	return s.engine.Progress(ctx, taskID, force)
}

// GoTo jumps the task's pipeline directly to target.
func (s *Service) GoTo(ctx context.Context, taskID string, target types.StageName, force bool) (*types.Pipeline, error) {
	return s.engine.GoTo(ctx, taskID, target, force)
}

// Skip marks the current stage skipped and advances.
func (s *Service) Skip(ctx context.Context, taskID, reason string, force bool) (*types.Pipeline, error) {
	return s.engine.Skip(ctx, taskID, reason, force)
}

// Block marks the current stage blocked.
func (s *Service) Block(ctx context.Context, taskID, reason string) error {
	return s.engine.Block(ctx, taskID, reason)
}

// Unblock clears a blocked stage back to in_progress.
func (s *Service) Unblock(ctx context.Context, taskID string) error {
	return s.engine.Unblock(ctx, taskID)
}

// RecordGate records a gate result against the task's current stage.
func (s *Service) RecordGate(ctx context.Context, taskID, gateName string, result types.GateResultValue, checkedBy, details, reason string) error {
	return s.engine.RecordGate(ctx, taskID, gateName, result, checkedBy, details, reason)
}

// AddEvidence attaches an evidence record to the task's current stage.
func (s *Service) AddEvidence(ctx context.Context, taskID, uri string, kind types.EvidenceType, description string) error {
	return s.engine.AddEvidence(ctx, taskID, uri, kind, description)
}
