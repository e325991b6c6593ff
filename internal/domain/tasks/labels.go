package tasks

import (
	"context"
	"sort"

	"github.com/cleo-dev/cleo/internal/clerr"
	"github.com/cleo-dev/cleo/internal/types"
)

// LabelStat summarizes one label's usage across the task graph.
type LabelStat struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

// ListLabels returns every distinct label in use, most-used first.
func (s *Service) ListLabels(ctx context.Context) ([]LabelStat, error) {
	stats, err := s.labelCounts(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]LabelStat, 0, len(stats))
	for label, count := range stats {
		out = append(out, LabelStat{Label: label, Count: count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Label < out[j].Label
	})
	return out, nil
}

// ShowLabel returns every task carrying the given label.
func (s *Service) ShowLabel(ctx context.Context, label string) ([]*types.Task, error) {
	all, err := s.store.ListTasks(ctx, types.TaskFilter{})
	if err != nil {
		return nil, clerr.Internal(err)
	}
	var out []*types.Task
	for _, t := range all {
		for _, l := range t.Labels {
			if l == label {
				out = append(out, t)
				break
			}
		}
	}
	return out, nil
}

// LabelStats summarizes label usage broken down by task status, the way
// the teacher's dashboard cross-tabs tags against open/closed counts.
type LabelStats struct {
	Label      string         `json:"label"`
	Total      int            `json:"total"`
	ByStatus   map[string]int `json:"byStatus"`
}

// Stats returns a per-status breakdown for every label.
func (s *Service) Stats(ctx context.Context) ([]LabelStats, error) {
	all, err := s.store.ListTasks(ctx, types.TaskFilter{})
	if err != nil {
		return nil, clerr.Internal(err)
	}
	byLabel := map[string]*LabelStats{}
	for _, t := range all {
		for _, l := range t.Labels {
			ls, ok := byLabel[l]
			if !ok {
				ls = &LabelStats{Label: l, ByStatus: map[string]int{}}
				byLabel[l] = ls
			}
			ls.Total++
			ls.ByStatus[string(t.Status)]++
		}
	}
	out := make([]LabelStats, 0, len(byLabel))
	for _, ls := range byLabel {
		out = append(out, *ls)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Label < out[j].Label })
	return out, nil
}

func (s *Service) labelCounts(ctx context.Context) (map[string]int, error) {
	all, err := s.store.ListTasks(ctx, types.TaskFilter{})
	if err != nil {
		return nil, clerr.Internal(err)
	}
	counts := map[string]int{}
	for _, t := range all {
		for _, l := range t.Labels {
			counts[l]++
		}
	}
	return counts, nil
}
