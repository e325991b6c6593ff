package tasks

import (
	"context"
	"sort"

	"github.com/cleo-dev/cleo/internal/clerr"
	"github.com/cleo-dev/cleo/internal/storage"
	"github.com/cleo-dev/cleo/internal/types"
)

// AddRelation records a weak, non-blocking association between two
// tasks.
func (s *Service) AddRelation(ctx context.Context, taskID, relatedTo string, kind types.RelationType) error {
	if taskID == relatedTo {
		return clerr.New(clerr.CodeInvalidInput, clerr.ExitInvalidInput, "a task cannot relate to itself")
	}
	if _, err := s.Show(ctx, taskID); err != nil {
		return err
	}
	if _, err := s.Show(ctx, relatedTo); err != nil {
		return err
	}
	if err := s.store.AddRelation(ctx, types.Relation{
		TaskID: taskID, RelatedTo: relatedTo, RelationType: kind, CreatedAt: storage.Now(),
	}); err != nil {
		return clerr.Internal(err)
	}
	return nil
}

// RemoveRelation deletes a relation edge.
func (s *Service) RemoveRelation(ctx context.Context, taskID, relatedTo string, kind types.RelationType) error {
	if err := s.store.RemoveRelation(ctx, taskID, relatedTo, kind); err != nil {
		if err == storage.ErrNotFound {
			return clerr.NotFound("relation", taskID+"->"+relatedTo)
		}
		return clerr.Internal(err)
	}
	return nil
}

// ListRelations returns every relation recorded on taskID.
func (s *Service) ListRelations(ctx context.Context, taskID string) ([]types.Relation, error) {
	out, err := s.store.GetRelations(ctx, taskID)
	if err != nil {
		return nil, clerr.Internal(err)
	}
	return out, nil
}

// RelationCandidate is a scored suggestion for relations.suggest /
// relations.discover: another task plus why it might relate.
type RelationCandidate struct {
	Task         *types.Task `json:"task"`
	Score        float64     `json:"score"`
	SharedLabels []string    `json:"sharedLabels,omitempty"`
}

// maxCandidates bounds the suggestion/discovery result set.
const maxCandidates = 10

// Suggest ranks existing tasks by label overlap with taskID, excluding
// tasks already related to it. Label overlap is the cheapest useful
// relatedness signal available without a text-similarity index, the
// way the teacher leans on tag/label matching for its own "related"
// heuristics elsewhere in the advice engine.
func (s *Service) Suggest(ctx context.Context, taskID string) ([]RelationCandidate, error) {
	root, err := s.Show(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if len(root.Labels) == 0 {
		return nil, nil
	}
	existing, err := s.store.GetRelations(ctx, taskID)
	if err != nil {
		return nil, clerr.Internal(err)
	}
	excluded := map[string]bool{taskID: true}
	for _, r := range existing {
		excluded[r.RelatedTo] = true
	}

	all, err := s.store.ListTasks(ctx, types.TaskFilter{})
	if err != nil {
		return nil, clerr.Internal(err)
	}

	rootLabels := map[string]bool{}
	for _, l := range root.Labels {
		rootLabels[l] = true
	}

	var candidates []RelationCandidate
	for _, t := range all {
		if excluded[t.ID] {
			continue
		}
		var shared []string
		for _, l := range t.Labels {
			if rootLabels[l] {
				shared = append(shared, l)
			}
		}
		if len(shared) == 0 {
			continue
		}
		score := float64(len(shared)) / float64(len(rootLabels))
		candidates = append(candidates, RelationCandidate{Task: t, Score: score, SharedLabels: shared})
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].Score > candidates[j].Score })
	if len(candidates) > maxCandidates {
		candidates = candidates[:maxCandidates]
	}
	return candidates, nil
}

// Discover runs a broader pass than Suggest: a free-text search over
// title/description, scored by whether the match also shares a label
// with taskID. Useful when two tasks are related by topic but were
// never tagged with a common label.
func (s *Service) Discover(ctx context.Context, taskID, query string) ([]RelationCandidate, error) {
	root, err := s.Show(ctx, taskID)
	if err != nil {
		return nil, err
	}
	matches, err := s.store.FindTasks(ctx, query, types.TaskFilter{Limit: maxCandidates * 2})
	if err != nil {
		return nil, clerr.Internal(err)
	}
	rootLabels := map[string]bool{}
	for _, l := range root.Labels {
		rootLabels[l] = true
	}

	var out []RelationCandidate
	for _, t := range matches {
		if t.ID == taskID {
			continue
		}
		var shared []string
		for _, l := range t.Labels {
			if rootLabels[l] {
				shared = append(shared, l)
			}
		}
		score := 1.0
		if len(shared) > 0 {
			score = 2.0
		}
		out = append(out, RelationCandidate{Task: t, Score: score, SharedLabels: shared})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > maxCandidates {
		out = out[:maxCandidates]
	}
	return out, nil
}
