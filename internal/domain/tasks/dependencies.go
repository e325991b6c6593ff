package tasks

import (
	"context"
	"fmt"

	"github.com/cleo-dev/cleo/internal/clerr"
	"github.com/cleo-dev/cleo/internal/storage"
	"github.com/cleo-dev/cleo/internal/types"
)

// maxDependencyDepth bounds dependency-tree recursion the way the
// teacher's buildDependencyTree guards against runaway walks over a
// malformed graph.
const maxDependencyDepth = 50

// AddDependency records taskID depends on dependsOn, rejecting a direct
// self-dependency and any edge that would complete a cycle.
func (s *Service) AddDependency(ctx context.Context, taskID, dependsOn, createdBy string) error {
	if taskID == dependsOn {
		return clerr.New(clerr.CodeCircularDependency, clerr.ExitCycle,
			"a task cannot depend on itself")
	}
	if _, err := s.Show(ctx, dependsOn); err != nil {
		return err
	}
	if _, err := s.Show(ctx, taskID); err != nil {
		return err
	}
	if wouldCycle(ctx, s.store, taskID, dependsOn, map[string]bool{}) {
		return clerr.New(clerr.CodeCircularDependency, clerr.ExitCycle,
			fmt.Sprintf("adding %s -> %s would create a dependency cycle", taskID, dependsOn))
	}
	if err := s.store.AddDependency(ctx, types.Dependency{
		TaskID: taskID, DependsOn: dependsOn, CreatedAt: storage.Now(), CreatedBy: createdBy,
	}); err != nil {
		return clerr.Internal(err)
	}
	return nil
}

// wouldCycle reports whether dependsOn already (transitively) depends on
// taskID, i.e. whether taskID -> dependsOn would close a loop.
func wouldCycle(ctx context.Context, store storage.Storage, taskID, dependsOn string, visited map[string]bool) bool {
	if dependsOn == taskID {
		return true
	}
	if visited[dependsOn] {
		return false
	}
	visited[dependsOn] = true
	deps, err := store.GetDependencies(ctx, dependsOn)
	if err != nil {
		return false
	}
	for _, d := range deps {
		if wouldCycle(ctx, store, taskID, d.DependsOn, visited) {
			return true
		}
	}
	return false
}

// RemoveDependency deletes a dependency edge.
func (s *Service) RemoveDependency(ctx context.Context, taskID, dependsOn string) error {
	if err := s.store.RemoveDependency(ctx, taskID, dependsOn); err != nil {
		if err == storage.ErrNotFound {
			return clerr.NotFound("dependency", taskID+"->"+dependsOn)
		}
		return clerr.Internal(err)
	}
	return nil
}

// DependencyNode is one level of a dependency tree: the task itself plus
// the subtrees of everything it depends on.
type DependencyNode struct {
	Task     *types.Task       `json:"task"`
	Children []DependencyNode  `json:"children,omitempty"`
	Cycle    bool              `json:"cycle,omitempty"`
}

// DependencyTree builds the full transitive dependency tree rooted at
// taskID, grounded on the teacher's recursive buildDependencyTree:
// a visited set guards against both cycles and runaway depth.
func (s *Service) DependencyTree(ctx context.Context, taskID string) (*DependencyNode, error) {
	root, err := s.Show(ctx, taskID)
	if err != nil {
		return nil, err
	}
	node := buildDependencyTree(ctx, s.store, root, map[string]bool{taskID: true}, 0)
	return &node, nil
}

func buildDependencyTree(ctx context.Context, store storage.Storage, t *types.Task, visited map[string]bool, depth int) DependencyNode {
	node := DependencyNode{Task: t}
	if depth >= maxDependencyDepth {
		return node
	}
	deps, err := store.GetDependencies(ctx, t.ID)
	if err != nil {
		return node
	}
	for _, d := range deps {
		if visited[d.DependsOn] {
			node.Children = append(node.Children, DependencyNode{
				Task:  &types.Task{ID: d.DependsOn},
				Cycle: true,
			})
			continue
		}
		child, err := store.GetTask(ctx, d.DependsOn)
		if err != nil {
			continue
		}
		visited[d.DependsOn] = true
		node.Children = append(node.Children, buildDependencyTree(ctx, store, child, visited, depth+1))
	}
	return node
}

// Cycle is one detected dependency cycle, expressed as the ordered list
// of task IDs that form the loop.
type Cycle struct {
	TaskIDs []string `json:"taskIds"`
}

// DetectCycles walks the full dependency graph looking for cycles,
// grounded on the teacher's adjacency-list DetectCycles: every task with
// at least one dependency is a graph node, and a DFS with a recursion
// stack flags back-edges.
func (s *Service) DetectCycles(ctx context.Context) ([]Cycle, error) {
	all, err := s.store.ListTasks(ctx, types.TaskFilter{})
	if err != nil {
		return nil, clerr.Internal(err)
	}
	adjacency := make(map[string][]string, len(all))
	for _, t := range all {
		deps, err := s.store.GetDependencies(ctx, t.ID)
		if err != nil {
			return nil, clerr.Internal(err)
		}
		for _, d := range deps {
			adjacency[t.ID] = append(adjacency[t.ID], d.DependsOn)
		}
	}

	var cycles []Cycle
	visited := map[string]bool{}
	onStack := map[string]bool{}
	var path []string

	var visit func(id string)
	visit = func(id string) {
		visited[id] = true
		onStack[id] = true
		path = append(path, id)
		for _, next := range adjacency[id] {
			if onStack[next] {
				cycles = append(cycles, Cycle{TaskIDs: cycleFrom(path, next)})
				continue
			}
			if !visited[next] {
				visit(next)
			}
		}
		path = path[:len(path)-1]
		onStack[id] = false
	}
	for id := range adjacency {
		if !visited[id] {
			visit(id)
		}
	}
	return cycles, nil
}

// cycleFrom returns the slice of path starting at the first occurrence
// of target, closing the loop back to target.
func cycleFrom(path []string, target string) []string {
	for i, id := range path {
		if id == target {
			out := append([]string{}, path[i:]...)
			return append(out, target)
		}
	}
	return append(append([]string{}, path...), target)
}
