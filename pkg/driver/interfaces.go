package driver

import (
	"context"

	"github.com/soundprediction/conceptgraph/pkg/types"
)

// GraphStore persists the concept graph of each user.
type GraphStore interface {
	// CreateNode stores a new node and returns it with its assigned id.
	CreateNode(ctx context.Context, name, userID string) (*types.Node, error)

	// CreateEdge stores a directed edge between two existing nodes of userID.
	CreateEdge(ctx context.Context, sourceNodeID, targetNodeID, userID string) (*types.Edge, error)

	// FindNodes returns every node of userID ordered by creation.
	FindNodes(ctx context.Context, userID string) ([]*types.Node, error)

	// FindEdges returns every edge of userID ordered by creation.
	FindEdges(ctx context.Context, userID string) ([]*types.Edge, error)
}

// FileStore persists uploaded document records.
type FileStore interface {
	CreateFile(ctx context.Context, file *types.FileInfo) error
	GetFile(ctx context.Context, fileID string) (*types.FileInfo, error)
	ListFiles(ctx context.Context, userID string) ([]*types.FileInfo, error)
	UpdateFileStatus(ctx context.Context, fileID string, status types.FileStatus, message string) error
	DeleteFile(ctx context.Context, fileID string) error
}

// Driver is a complete storage backend.
type Driver interface {
	GraphStore
	FileStore

	// Ping checks that the backend is reachable.
	Ping(ctx context.Context) error

	// Provider names the backend.
	Provider() Provider

	// Close releases all resources held by the driver.
	Close() error
}
