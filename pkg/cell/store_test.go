package cell

import (
	"errors"
	"sync"
	"testing"

	"github.com/chazu/lamina/pkg/boundary"
	"github.com/google/go-cmp/cmp"
)

func mkCell(mat MaterialID, text string) Cell {
	return Cell{Material: mat, Density: 1.5, Boundary: boundary.MustParse(text)}
}

func TestInsertAssignsMonotonicIDs(t *testing.T) {
	s := NewStoreFrom(10, 0)

	a, err := s.Insert(mkCell(1, "1 -2"))
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	b, err := s.Insert(Cell{ID: 99, Material: 2, Boundary: boundary.MustParse("3")})
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if a != 10 || b != 11 {
		t.Errorf("ids = %d, %d; want 10, 11", a, b)
	}
	got, err := s.Get(b)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.ID != 11 || got.Material != 2 {
		t.Errorf("Get(%d) = %+v", b, got)
	}
	if s.Next() != 12 || s.Len() != 2 {
		t.Errorf("Next = %d, Len = %d", s.Next(), s.Len())
	}
}

func TestInsertRejectsEmptyBoundary(t *testing.T) {
	s := NewStore()
	if _, err := s.Insert(Cell{Material: 1}); err == nil {
		t.Fatal("expected error for empty boundary")
	}
	if s.Len() != 0 || s.Next() != 1 {
		t.Errorf("failed insert changed the store: Len=%d Next=%d", s.Len(), s.Next())
	}
}

func TestGetNotFound(t *testing.T) {
	s := NewStore()
	_, err := s.Get(7)
	if !errors.Is(err, ErrCellNotFound) {
		t.Fatalf("expected ErrCellNotFound, got %v", err)
	}
	var nf *NotFoundError
	if !errors.As(err, &nf) || nf.ID != 7 {
		t.Errorf("expected *NotFoundError{7}, got %v", err)
	}
}

func TestReplaceWith(t *testing.T) {
	s := NewStore()
	keep, _ := s.Insert(mkCell(1, "1"))
	orig, _ := s.Insert(mkCell(2, "1 -2"))

	ids, err := s.ReplaceWith(orig, []Cell{mkCell(4, "1 -3"), mkCell(5, "3 -2")})
	if err != nil {
		t.Fatalf("ReplaceWith: %v", err)
	}
	if diff := cmp.Diff([]ID{3, 4}, ids); diff != "" {
		t.Errorf("ids mismatch (-want +got):\n%s", diff)
	}
	if _, err := s.Get(orig); !errors.Is(err, ErrCellNotFound) {
		t.Errorf("original cell still present: %v", err)
	}
	if diff := cmp.Diff([]ID{keep, 3, 4}, s.IDs()); diff != "" {
		t.Errorf("IDs mismatch (-want +got):\n%s", diff)
	}

	var cards []string
	for _, c := range s.Cells() {
		cards = append(cards, c.Card())
	}
	want := []string{"1 1 1.5 1", "3 4 1.5 1 -3", "4 5 1.5 3 -2"}
	if diff := cmp.Diff(want, cards); diff != "" {
		t.Errorf("cards mismatch (-want +got):\n%s", diff)
	}
}

func TestReplaceWithUnknownCell(t *testing.T) {
	s := NewStore()
	_, err := s.ReplaceWith(3, []Cell{mkCell(1, "1")})
	if !errors.Is(err, ErrCellNotFound) {
		t.Fatalf("expected ErrCellNotFound, got %v", err)
	}
	if s.Next() != 1 {
		t.Errorf("Next = %d, want 1", s.Next())
	}
}

func TestReplaceWithStoreFullIsAtomic(t *testing.T) {
	s := NewStoreFrom(1, 2)
	a, _ := s.Insert(mkCell(1, "1"))
	b, _ := s.Insert(mkCell(2, "-1"))

	if _, err := s.Insert(mkCell(3, "2")); !errors.Is(err, ErrStoreFull) {
		t.Fatalf("expected ErrStoreFull from Insert, got %v", err)
	}

	_, err := s.ReplaceWith(b, []Cell{mkCell(4, "-1 2"), mkCell(5, "-1 -2")})
	if !errors.Is(err, ErrStoreFull) {
		t.Fatalf("expected ErrStoreFull, got %v", err)
	}
	if diff := cmp.Diff([]ID{a, b}, s.IDs()); diff != "" {
		t.Errorf("store changed after failed replace (-want +got):\n%s", diff)
	}
	if s.Next() != 3 {
		t.Errorf("Next = %d, want 3", s.Next())
	}

	// One-for-one replacement still fits.
	if _, err := s.ReplaceWith(b, []Cell{mkCell(4, "-1 2")}); err != nil {
		t.Errorf("one-for-one replace: %v", err)
	}
}

func TestReplaceWithValidatesBeforeMutating(t *testing.T) {
	s := NewStore()
	id, _ := s.Insert(mkCell(1, "1"))
	if _, err := s.ReplaceWith(id, []Cell{mkCell(2, "1 2"), {Material: 3}}); err == nil {
		t.Fatal("expected error for empty replacement boundary")
	}
	if _, err := s.Get(id); err != nil {
		t.Errorf("original retired after failed replace: %v", err)
	}
	if _, err := s.ReplaceWith(id, nil); err == nil {
		t.Error("expected error for empty replacement list")
	}
}

func TestRestore(t *testing.T) {
	s := NewStore()
	c := mkCell(1, "1 -2")
	c.ID = 5
	if err := s.Restore(c); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if err := s.Restore(c); err == nil {
		t.Error("expected error restoring a duplicate id")
	}
	id, _ := s.Insert(mkCell(2, "3"))
	if id != 6 {
		t.Errorf("Insert after Restore = %d, want 6", id)
	}
}

func TestCardVoid(t *testing.T) {
	c := Cell{ID: 3, Boundary: boundary.MustParse("-1 : 2")}
	if got := c.Card(); got != "3 0 -1 : 2" {
		t.Errorf("Card = %q", got)
	}
}

func TestConcurrentInsertsGetDistinctIDs(t *testing.T) {
	s := NewStore()
	const n = 64
	ids := make([]ID, n)
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id, err := s.Insert(mkCell(1, "1"))
			if err != nil {
				t.Errorf("Insert: %v", err)
			}
			ids[i] = id
		}()
	}
	wg.Wait()

	seen := make(map[ID]bool)
	for _, id := range ids {
		if seen[id] {
			t.Fatalf("duplicate id %d", id)
		}
		seen[id] = true
	}
	if s.Len() != n {
		t.Errorf("Len = %d, want %d", s.Len(), n)
	}
}
