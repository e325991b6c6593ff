package security

import (
	"testing"
	"time"
)

func TestLimiterAdmitsUntilLimit(t *testing.T) {
	l := NewLimiter(map[Category]int{CategoryQuery: 3})

	for i := 0; i < 3; i++ {
		res := l.Check(CategoryQuery)
		if !res.Allowed {
			t.Fatalf("call %d: expected admitted, got denied", i)
		}
	}
	res := l.Check(CategoryQuery)
	if res.Allowed {
		t.Fatal("expected 4th call to be denied")
	}
	if res.Remaining != 0 {
		t.Errorf("Remaining = %d, want 0", res.Remaining)
	}
	if res.Limit != 3 {
		t.Errorf("Limit = %d, want 3", res.Limit)
	}
}

func TestLimiterSlidesWindow(t *testing.T) {
	l := NewLimiter(map[Category]int{CategoryMutate: 1})
	now := time.Now()
	l.now = func() time.Time { return now }

	if res := l.Check(CategoryMutate); !res.Allowed {
		t.Fatal("expected first call admitted")
	}
	if res := l.Check(CategoryMutate); res.Allowed {
		t.Fatal("expected second call denied within window")
	}

	l.now = func() time.Time { return now.Add(window + time.Second) }
	res := l.Check(CategoryMutate)
	if !res.Allowed {
		t.Fatal("expected call after window elapses to be admitted")
	}
}

func TestLimiterPeekDoesNotRecord(t *testing.T) {
	l := NewLimiter(map[Category]int{CategorySpawn: 1})

	peeked := l.Peek(CategorySpawn)
	if !peeked.Allowed || peeked.Remaining != 1 {
		t.Fatalf("unexpected peek result: %+v", peeked)
	}

	checked := l.Check(CategorySpawn)
	if !checked.Allowed {
		t.Fatal("expected Check to still admit after Peek")
	}
	if res := l.Check(CategorySpawn); res.Allowed {
		t.Fatal("expected second Check to be denied")
	}
}

func TestLimiterReset(t *testing.T) {
	l := NewLimiter(map[Category]int{CategoryQuery: 1})

	l.Check(CategoryQuery)
	if res := l.Check(CategoryQuery); res.Allowed {
		t.Fatal("expected second call denied before reset")
	}

	l.Reset(CategoryQuery)
	if res := l.Check(CategoryQuery); !res.Allowed {
		t.Fatal("expected call admitted after reset")
	}
}

func TestLimiterUnlimitedCategory(t *testing.T) {
	l := NewLimiter(nil)
	for i := 0; i < 1000; i++ {
		if res := l.Check(Category("unconfigured")); !res.Allowed {
			t.Fatalf("call %d: expected unconfigured category to be unlimited", i)
		}
	}
}

func TestCategoryFor(t *testing.T) {
	cases := []struct {
		gateway, domain, operation string
		want                       Category
	}{
		{"query", "tasks", "list", CategoryQuery},
		{"mutate", "tasks", "update", CategoryMutate},
		{"mutate", "orchestrate", "spawn", CategorySpawn},
		{"query", "orchestrate", "spawn", CategorySpawn},
	}
	for _, c := range cases {
		got := CategoryFor(c.gateway, c.domain, c.operation)
		if got != c.want {
			t.Errorf("CategoryFor(%q,%q,%q) = %q, want %q", c.gateway, c.domain, c.operation, got, c.want)
		}
	}
}
