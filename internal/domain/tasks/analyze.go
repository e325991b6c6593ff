package tasks

import (
	"context"
	"sort"
	"time"

	"github.com/cleo-dev/cleo/internal/clerr"
	"github.com/cleo-dev/cleo/internal/types"
)

// priorityWeight maps a task's declared priority to a numeric multiplier
// for Analyze's composite score.
var priorityWeight = map[types.Priority]float64{
	types.PriorityCritical: 4,
	types.PriorityHigh:     3,
	types.PriorityMedium:   2,
	types.PriorityLow:      1,
}

// AnalysisResult ranks a single task by how much finishing it would
// unblock, combined with its declared priority and how long it has sat
// untouched.
type AnalysisResult struct {
	Task          *types.Task `json:"task"`
	LeverageScore float64     `json:"leverageScore"`
	BlockedCount  int         `json:"blockedCount"`
	AgeDays       float64     `json:"ageDays"`
}

// Analyze scores every open (non-terminal) task by a leverage heuristic:
// priority weight times (1 + number of tasks it directly unblocks),
// tie-broken by age. There's no teacher equivalent of "leverage
// scoring" to port directly; this composes the primitives the teacher
// already exposes (GetDependents for blocking impact, the priority
// enum) into the ranking spec.md calls for.
func (s *Service) Analyze(ctx context.Context, limit int) ([]AnalysisResult, error) {
	all, err := s.store.ListTasks(ctx, types.TaskFilter{})
	if err != nil {
		return nil, clerr.Internal(err)
	}

	now := time.Now()
	var results []AnalysisResult
	for _, t := range all {
		if t.Status == types.StatusDone || t.Status == types.StatusCancelled || t.Status == types.StatusArchived {
			continue
		}
		dependents, err := s.store.GetDependents(ctx, t.ID)
		if err != nil {
			return nil, clerr.Internal(err)
		}
		weight, ok := priorityWeight[t.Priority]
		if !ok {
			weight = 1
		}
		ageDays := now.Sub(t.UpdatedAt).Hours() / 24
		score := weight * (1 + float64(len(dependents)))

		results = append(results, AnalysisResult{
			Task:          t,
			LeverageScore: score,
			BlockedCount:  len(dependents),
			AgeDays:       ageDays,
		})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].LeverageScore != results[j].LeverageScore {
			return results[i].LeverageScore > results[j].LeverageScore
		}
		return results[i].AgeDays > results[j].AgeDays
	})
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}
