package merge

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidCandidates wraps a candidate graph that failed validation.
	// Nothing is written in that case.
	ErrInvalidCandidates = errors.New("invalid candidate graph")
	// ErrCancelled wraps the context error when a merge stops between writes.
	ErrCancelled = errors.New("merge cancelled")
)

// Store operations reported in StoreError.
const (
	OpFindNodes  = "find_nodes"
	OpFindEdges  = "find_edges"
	OpCreateNode = "create_node"
	OpCreateEdge = "create_edge"
)

// StoreError reports a failed Graph Store call. Writes made earlier in the
// same batch stay committed.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("graph store %s failed: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// Is matches any *StoreError, or one with the same Op when target sets it.
func (e *StoreError) Is(target error) bool {
	t, ok := target.(*StoreError)
	if !ok {
		return false
	}
	return t.Op == "" || t.Op == e.Op
}
