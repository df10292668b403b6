package types

import (
	"errors"
	"fmt"
	"strings"
)

// ErrDuplicateTempID is returned when two candidate nodes share a temporary id.
var ErrDuplicateTempID = errors.New("duplicate candidate node id")

// CandidateNode is a concept proposed by the extractor. TempID is only unique
// within one extraction response.
type CandidateNode struct {
	TempID string `json:"id"`
	Label  string `json:"label"`
}

// CandidateEdge is a relationship proposed by the extractor between two candidate nodes.
type CandidateEdge struct {
	SourceTempID  string `json:"source"`
	TargetTempID  string `json:"target"`
	RelationLabel string `json:"label"`
}

// CandidateGraph is the raw extraction result for one document.
type CandidateGraph struct {
	Nodes []CandidateNode `json:"nodes"`
	Edges []CandidateEdge `json:"edges"`
}

// IsEmpty reports whether the graph has no candidate nodes and no candidate edges.
func (g *CandidateGraph) IsEmpty() bool {
	return g == nil || (len(g.Nodes) == 0 && len(g.Edges) == 0)
}

// Validate checks the structural requirements on candidate nodes: every node has a
// non-empty temp id and temp ids are unique. Edges are not checked here; edges that
// reference unknown ids are skipped during merge.
func (g *CandidateGraph) Validate() error {
	if g == nil {
		return nil
	}
	seen := make(map[string]struct{}, len(g.Nodes))
	for i, n := range g.Nodes {
		id := strings.TrimSpace(n.TempID)
		if id == "" {
			return fmt.Errorf("node %d: %w", i, ErrEmptyID)
		}
		if _, ok := seen[id]; ok {
			return fmt.Errorf("node %q: %w", id, ErrDuplicateTempID)
		}
		seen[id] = struct{}{}
	}
	return nil
}

// ResolvedRef is the persisted node a candidate temp id was mapped to.
type ResolvedRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}
