package tasks

import (
	"context"
	"testing"
)

func TestAddDependencyRejectsSelfDependency(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	task, _ := s.Add(ctx, AddParams{Title: "t", Description: "d"})

	if err := s.AddDependency(ctx, task.ID, task.ID, "a"); err == nil {
		t.Fatal("expected self-dependency to be rejected")
	}
}

func TestAddDependencyRejectsCycle(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	a, _ := s.Add(ctx, AddParams{Title: "a", Description: "da"})
	b, _ := s.Add(ctx, AddParams{Title: "b", Description: "db"})

	if err := s.AddDependency(ctx, b.ID, a.ID, "agent"); err != nil {
		t.Fatalf("AddDependency b->a: %v", err)
	}
	if err := s.AddDependency(ctx, a.ID, b.ID, "agent"); err == nil {
		t.Fatal("expected a->b to be rejected: b already depends on a")
	}
}

func TestDependencyTreeWalksTransitively(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	a, _ := s.Add(ctx, AddParams{Title: "a", Description: "da"})
	b, _ := s.Add(ctx, AddParams{Title: "b", Description: "db"})
	c, _ := s.Add(ctx, AddParams{Title: "c", Description: "dc"})

	if err := s.AddDependency(ctx, a.ID, b.ID, "agent"); err != nil {
		t.Fatalf("AddDependency a->b: %v", err)
	}
	if err := s.AddDependency(ctx, b.ID, c.ID, "agent"); err != nil {
		t.Fatalf("AddDependency b->c: %v", err)
	}

	tree, err := s.DependencyTree(ctx, a.ID)
	if err != nil {
		t.Fatalf("DependencyTree: %v", err)
	}
	if len(tree.Children) != 1 || tree.Children[0].Task.ID != b.ID {
		t.Fatalf("unexpected first-level children: %+v", tree.Children)
	}
	if len(tree.Children[0].Children) != 1 || tree.Children[0].Children[0].Task.ID != c.ID {
		t.Fatalf("unexpected second-level children: %+v", tree.Children[0].Children)
	}
}
