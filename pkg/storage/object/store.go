// Package object holds the fixed array of integer cells that transactions
// lock, read and write.
package object

import (
	"fmt"
	"sync/atomic"
	dberror "txmanager/pkg/error"
	"txmanager/pkg/primitives"
)

// Store is a fixed-size array of integer-valued cells, sized once at startup.
//
// Cells are updated atomically. The lock protocol lets several shared holders
// (and a same-owner re-entry that changes mode) touch one cell at the same
// time, so plain loads and stores would race.
type Store struct {
	cells []atomic.Int64
}

// NewStore creates a store of n cells, all set to initial.
func NewStore(n int, initial int64) *Store {
	s := &Store{cells: make([]atomic.Int64, n)}
	for i := range s.cells {
		s.cells[i].Store(initial)
	}
	return s
}

// NewStoreFromValues creates a store holding exactly values.
func NewStoreFromValues(values []int64) *Store {
	s := &Store{cells: make([]atomic.Int64, len(values))}
	for i, v := range values {
		s.cells[i].Store(v)
	}
	return s
}

// Len returns the number of cells.
func (s *Store) Len() int {
	return len(s.cells)
}

// Get returns the current value of obj.
func (s *Store) Get(obj primitives.ObjectID) (int64, error) {
	if err := s.check(obj, "Get"); err != nil {
		return 0, err
	}
	return s.cells[obj].Load(), nil
}

// Add adds delta to obj and returns the new value.
func (s *Store) Add(obj primitives.ObjectID, delta int64) (int64, error) {
	if err := s.check(obj, "Add"); err != nil {
		return 0, err
	}
	return s.cells[obj].Add(delta), nil
}

// Snapshot copies every cell value in index order.
func (s *Store) Snapshot() []int64 {
	out := make([]int64, len(s.cells))
	for i := range s.cells {
		out[i] = s.cells[i].Load()
	}
	return out
}

func (s *Store) check(obj primitives.ObjectID, op string) error {
	if obj < 0 || int(obj) >= len(s.cells) {
		return dberror.From(dberror.ErrObjectOutOfRange, "ObjectStore", op,
			fmt.Sprintf("object %d, store has %d cells", obj, len(s.cells)))
	}
	return nil
}
