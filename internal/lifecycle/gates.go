package lifecycle

import (
	"context"

	"github.com/cleo-dev/cleo/internal/formula"
	"github.com/cleo-dev/cleo/internal/types"
)

// GateChecker evaluates one named gate against a stage and reports the
// outcome plus supporting detail. Gate checkers are registered by name
// and are typically thin wrappers over a domain query (e.g. "are there
// unresolved review comments on this task").
type GateChecker func(ctx context.Context, pipeline *types.Pipeline, stage *types.Stage) (result types.GateResultValue, details string)

// CrossCuttingGate applies an extra gate to every stage whose name
// matches Target, the same glob vocabulary the teacher's advice system
// uses to attach cross-cutting steps to matching step IDs
// (internal/formula.MatchGlob) — generalized here from "insert a step
// before/after a match" to "require an extra gate before a matching
// stage can complete".
type CrossCuttingGate struct {
	Target string // glob pattern matched against types.StageName, e.g. "*.implement"
	Gate   string // gate name appended to the stage's required set
}

// Registry holds named gate checkers and cross-cutting gate rules.
type Registry struct {
	checkers map[string]GateChecker
	crossCut []CrossCuttingGate
}

// NewRegistry builds an empty Registry; checkers are added with
// Register, cross-cutting rules with AddCrossCutting.
func NewRegistry() *Registry {
	return &Registry{checkers: make(map[string]GateChecker)}
}

// Register adds or replaces the checker for a named gate.
func (r *Registry) Register(name string, fn GateChecker) {
	r.checkers[name] = fn
}

// AddCrossCutting adds a rule applying an extra required gate to every
// stage whose name matches the rule's glob target.
func (r *Registry) AddCrossCutting(rule CrossCuttingGate) {
	r.crossCut = append(r.crossCut, rule)
}

// RequiredGates returns the full set of gate names a stage must pass
// before it can complete: its static StageDefinition.Gates plus any
// cross-cutting gate whose target matches the stage's name.
func (r *Registry) RequiredGates(stageName types.StageName) []string {
	def, ok := types.StageDefFor(stageName)
	if !ok {
		return nil
	}
	gates := append([]string{}, def.Gates...)
	for _, rule := range r.crossCut {
		if formula.MatchGlob(rule.Target, string(stageName)) {
			gates = append(gates, rule.Gate)
		}
	}
	return gates
}

// Checker looks up a registered checker by name.
func (r *Registry) Checker(name string) (GateChecker, bool) {
	fn, ok := r.checkers[name]
	return fn, ok
}
