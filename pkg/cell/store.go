package cell

import (
	"fmt"
	"slices"
	"sync"
)

// Store owns every live cell of a build session. It is safe for concurrent
// use; each method holds the lock for its whole effect, so ReplaceWith is
// observed either entirely or not at all.
type Store struct {
	mu    sync.Mutex
	next  ID
	max   int // 0 means unbounded
	cells map[ID]Cell
}

// NewStore returns an unbounded store whose first id is 1.
func NewStore() *Store {
	return NewStoreFrom(1, 0)
}

// NewStoreFrom returns a store whose first id is start (at least 1) that
// holds at most capacity live cells. A capacity of zero or less is unbounded.
func NewStoreFrom(start ID, capacity int) *Store {
	if start < 1 {
		start = 1
	}
	if capacity < 0 {
		capacity = 0
	}
	return &Store{
		next:  start,
		max:   capacity,
		cells: make(map[ID]Cell),
	}
}

// Insert stores c under a fresh id, ignoring c.ID, and returns the id.
func (s *Store) Insert(c Cell) (ID, error) {
	if err := c.validate(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.max > 0 && len(s.cells)+1 > s.max {
		return 0, fmt.Errorf("insert cell: %w (capacity %d)", ErrStoreFull, s.max)
	}
	return s.put(c), nil
}

// put assigns the next id. Caller holds s.mu.
func (s *Store) put(c Cell) ID {
	c.ID = s.next
	s.cells[c.ID] = c
	s.next++
	return c.ID
}

// Get returns a copy of the cell with the given id.
func (s *Store) Get(id ID) (Cell, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.cells[id]
	if !ok {
		return Cell{}, &NotFoundError{ID: id}
	}
	return c, nil
}

// ReplaceWith retires the cell id and inserts replacements under fresh ids,
// in order. Either all replacements are inserted and the original retired,
// or nothing changes.
func (s *Store) ReplaceWith(id ID, replacements []Cell) ([]ID, error) {
	if len(replacements) == 0 {
		return nil, fmt.Errorf("replace cell %d: no replacement cells", id)
	}
	for i, c := range replacements {
		if err := c.validate(); err != nil {
			return nil, fmt.Errorf("replace cell %d: replacement %d: %w", id, i, err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.cells[id]; !ok {
		return nil, &NotFoundError{ID: id}
	}
	if s.max > 0 && len(s.cells)-1+len(replacements) > s.max {
		return nil, fmt.Errorf("replace cell %d with %d cells: %w (capacity %d)",
			id, len(replacements), ErrStoreFull, s.max)
	}

	delete(s.cells, id)
	ids := make([]ID, len(replacements))
	for i, c := range replacements {
		ids[i] = s.put(c)
	}
	return ids, nil
}

// Restore stores c under its own id, as when reloading a saved session. The
// counter is advanced past c.ID.
func (s *Store) Restore(c Cell) error {
	if c.ID < 1 {
		return fmt.Errorf("restore cell %d: id must be positive", c.ID)
	}
	if err := c.validate(); err != nil {
		return fmt.Errorf("restore cell %d: %w", c.ID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.cells[c.ID]; exists {
		return fmt.Errorf("restore cell %d: id already in use", c.ID)
	}
	if s.max > 0 && len(s.cells)+1 > s.max {
		return fmt.Errorf("restore cell %d: %w (capacity %d)", c.ID, ErrStoreFull, s.max)
	}
	s.cells[c.ID] = c
	if c.ID >= s.next {
		s.next = c.ID + 1
	}
	return nil
}

// IDs returns the live cell ids in ascending order.
func (s *Store) IDs() []ID {
	s.mu.Lock()
	ids := make([]ID, 0, len(s.cells))
	for id := range s.cells {
		ids = append(ids, id)
	}
	s.mu.Unlock()

	slices.Sort(ids)
	return ids
}

// Cells returns copies of the live cells in id order.
func (s *Store) Cells() []Cell {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Cell, 0, len(s.cells))
	for _, c := range s.cells {
		out = append(out, c)
	}
	slices.SortFunc(out, func(a, b Cell) int { return int(a.ID - b.ID) })
	return out
}

// Len returns the number of live cells.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.cells)
}

// Next returns the id the next insert will issue.
func (s *Store) Next() ID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.next
}
