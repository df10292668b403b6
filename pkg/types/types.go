package types

import (
	"errors"
	"time"
)

// Validation errors
var (
	ErrEmptyName   = errors.New("name cannot be empty")
	ErrEmptyUserID = errors.New("user_id cannot be empty")
	ErrEmptyID     = errors.New("id cannot be empty")
)

// Node represents a concept in a user's knowledge graph.
type Node struct {
	ID        string    `json:"id" yaml:"id"`
	Name      string    `json:"name" yaml:"name"`
	UserID    string    `json:"userId" yaml:"user_id"`
	CreatedAt time.Time `json:"createdAt" yaml:"created_at"`
}

// Validate checks if the Node has all required fields set.
func (n *Node) Validate() error {
	if n.ID == "" {
		return ErrEmptyID
	}
	if n.Name == "" {
		return ErrEmptyName
	}
	if n.UserID == "" {
		return ErrEmptyUserID
	}
	return nil
}

// Edge represents a directed relationship between two nodes owned by the same user.
type Edge struct {
	ID           string    `json:"id" yaml:"id"`
	SourceNodeID string    `json:"sourceNodeId" yaml:"source_node_id"`
	TargetNodeID string    `json:"targetNodeId" yaml:"target_node_id"`
	UserID       string    `json:"userId" yaml:"user_id"`
	CreatedAt    time.Time `json:"createdAt" yaml:"created_at"`
}

// Validate checks if the Edge has all required fields set.
func (e *Edge) Validate() error {
	if e.ID == "" {
		return ErrEmptyID
	}
	if e.SourceNodeID == "" || e.TargetNodeID == "" {
		return ErrEmptyID
	}
	if e.UserID == "" {
		return ErrEmptyUserID
	}
	return nil
}

// Key returns the ordered endpoint pair used for edge deduplication.
// (A,B) and (B,A) produce different keys.
func (e *Edge) Key() string {
	return EdgeKey(e.SourceNodeID, e.TargetNodeID)
}

// EdgeKey builds the dedup key for a directed pair of node ids.
func EdgeKey(sourceID, targetID string) string {
	return sourceID + "\x00" + targetID
}

// Graph is the set of nodes and edges belonging to one user.
type Graph struct {
	Nodes []*Node `json:"nodes" yaml:"nodes"`
	Edges []*Edge `json:"edges" yaml:"edges"`
}

// NodeByID returns the node with the given id, or nil.
func (g *Graph) NodeByID(id string) *Node {
	for _, n := range g.Nodes {
		if n.ID == id {
			return n
		}
	}
	return nil
}
