package docs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"go.uber.org/zap"
)

// fakePersister is an in-memory stand-in for the sqlite adapter.
type fakePersister struct {
	mu      sync.Mutex
	records map[string]json.RawMessage
	failing bool
}

func newFakePersister() *fakePersister {
	return &fakePersister{records: make(map[string]json.RawMessage)}
}

func (p *fakePersister) Save(_ context.Context, key string, value interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failing {
		return errors.New("persistence unavailable")
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	p.records[key] = raw
	return nil
}

func (p *fakePersister) Load(_ context.Context, key string, dest interface{}) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	raw, ok := p.records[key]
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		delete(p.records, key)
		return false, nil
	}
	return true, nil
}

func newTestStore(t *testing.T) (*Store, *fakePersister) {
	t.Helper()
	p := newFakePersister()
	return NewStore(p, zap.NewNop().Sugar()), p
}

func TestAddAndList(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		doc := Document{ID: fmt.Sprintf("doc-%d", i), Title: fmt.Sprintf("Doc %d", i), Status: StatusReady}
		if err := s.Add(ctx, doc); err != nil {
			t.Fatalf("Add failed: %v", err)
		}
	}

	list := s.List()
	if len(list) != 3 {
		t.Fatalf("List returned %d documents, want 3", len(list))
	}
	for i, doc := range list {
		if doc.ID != fmt.Sprintf("doc-%d", i) {
			t.Errorf("list[%d].ID = %q, insertion order not preserved", i, doc.ID)
		}
	}
}

func TestAdd_DuplicateID(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	if err := s.Add(ctx, Document{ID: "dup", Title: "first"}); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	err := s.Add(ctx, Document{ID: "dup", Title: "second"})
	if !errors.Is(err, ErrDuplicateID) {
		t.Fatalf("error = %v, want ErrDuplicateID", err)
	}
	if got := s.Count(); got != 1 {
		t.Errorf("Count = %d after rejected duplicate, want 1", got)
	}
	doc, _ := s.GetByID("dup")
	if doc.Title != "first" {
		t.Errorf("duplicate add replaced the original: title = %q", doc.Title)
	}
}

func TestRemove(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	s.Add(ctx, Document{ID: "a"})
	s.Add(ctx, Document{ID: "b"})

	if err := s.Remove(ctx, "a"); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if _, ok := s.GetByID("a"); ok {
		t.Error("document still present after Remove")
	}
	if got := s.Count(); got != 1 {
		t.Errorf("Count = %d, want 1", got)
	}

	// Removing an absent id is a no-op
	if err := s.Remove(ctx, "missing"); err != nil {
		t.Fatalf("Remove of absent id failed: %v", err)
	}
	if got := s.Count(); got != 1 {
		t.Errorf("Count = %d after no-op remove, want 1", got)
	}
}

func TestClear(t *testing.T) {
	s, p := newTestStore(t)
	ctx := context.Background()

	s.Add(ctx, Document{ID: "a"})
	s.Add(ctx, Document{ID: "b"})

	if err := s.Clear(ctx); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if got := s.Count(); got != 0 {
		t.Errorf("Count = %d after Clear, want 0", got)
	}

	// The cleared state is what persists
	restored := NewStore(p, zap.NewNop().Sugar())
	if err := restored.Hydrate(ctx); err != nil {
		t.Fatalf("Hydrate failed: %v", err)
	}
	if got := restored.Count(); got != 0 {
		t.Errorf("restored Count = %d, want 0", got)
	}
}

func TestHydrate_RoundTrip(t *testing.T) {
	for _, n := range []int{0, 1, 50} {
		t.Run(fmt.Sprintf("n=%d", n), func(t *testing.T) {
			s, p := newTestStore(t)
			ctx := context.Background()

			for i := 0; i < n; i++ {
				doc := Document{
					ID:      fmt.Sprintf("doc-%d", i),
					Title:   fmt.Sprintf("Doc %d", i),
					Content: strings.Repeat("x", i),
					Status:  StatusReady,
					Type:    "txt",
				}
				if err := s.Add(ctx, doc); err != nil {
					t.Fatalf("Add failed: %v", err)
				}
			}

			restored := NewStore(p, zap.NewNop().Sugar())
			if err := restored.Hydrate(ctx); err != nil {
				t.Fatalf("Hydrate failed: %v", err)
			}
			got := restored.List()
			if len(got) != n {
				t.Fatalf("restored %d documents, want %d", len(got), n)
			}
			for i, doc := range got {
				if doc.ID != fmt.Sprintf("doc-%d", i) {
					t.Errorf("restored[%d].ID = %q, order not preserved", i, doc.ID)
				}
			}
		})
	}
}

func TestAdd_PersistenceFailureKeepsMemoryState(t *testing.T) {
	s, p := newTestStore(t)
	ctx := context.Background()

	p.failing = true
	err := s.Add(ctx, Document{ID: "a", Title: "kept"})
	if err == nil {
		t.Fatal("expected an error when persistence is unavailable")
	}
	if _, ok := s.GetByID("a"); !ok {
		t.Error("in-memory state was not updated despite persistence failure")
	}
}

func TestList_ReturnsCopy(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	s.Add(ctx, Document{ID: "a", Title: "original"})

	list := s.List()
	list[0].Title = "mutated"

	doc, _ := s.GetByID("a")
	if doc.Title != "original" {
		t.Error("mutating the returned slice changed store state")
	}
}
