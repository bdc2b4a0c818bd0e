package metrics

import (
	"sync"

	"github.com/google/uuid"
)

// Cell holds the observable state of one metric. Each Begin starts a new
// invocation; only the most recent invocation may settle the cell, so a slow
// superseded computation can never overwrite a newer result.
type Cell[T any] struct {
	mu      sync.RWMutex
	current uuid.UUID
	result  Result[T]
}

// NewCell creates a cell in the loading state
func NewCell[T any]() *Cell[T] {
	return &Cell[T]{result: Pending[T]()}
}

// Begin re-enters loading and returns the id of the new invocation
func (c *Cell[T]) Begin() uuid.UUID {
	id := uuid.New()

	c.mu.Lock()
	defer c.mu.Unlock()

	c.current = id
	c.result = Pending[T]()
	return id
}

// Settle stores r if id is still the current invocation and reports whether it did
func (c *Cell[T]) Settle(id uuid.UUID, r Result[T]) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if id != c.current {
		return false
	}
	c.result = r
	return true
}

// Result returns the latest observed state
func (c *Cell[T]) Result() Result[T] {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.result
}
