package conceptgraph

import (
	"context"
	"io"

	"github.com/soundprediction/conceptgraph/pkg/merge"
	"github.com/soundprediction/conceptgraph/pkg/types"
)

// Consumers should depend on the smallest interface that meets their needs.

// DocumentProcessor runs documents through the extraction and merge pipeline.
type DocumentProcessor interface {
	// ProcessDocument schedules a batch for the document and returns at once.
	// Failures are logged and recorded on the file record.
	ProcessDocument(filePath, userID, documentID string)

	// Ingest runs one batch synchronously.
	Ingest(ctx context.Context, filePath, userID, documentID string) (*merge.Result, error)

	// UploadDocument stores r under the upload directory, records it and
	// schedules processing.
	UploadDocument(ctx context.Context, userID, fileName, contentType string, r io.Reader) (*types.FileInfo, error)
}

// GraphReader provides read access to a user's concept graph.
type GraphReader interface {
	GetMap(ctx context.Context, userID string) (*types.Graph, error)
}

// FileManager manages uploaded document records.
type FileManager interface {
	ListFiles(ctx context.Context, userID string) ([]*types.FileInfo, error)
	GetFile(ctx context.Context, fileID string) (*types.FileInfo, error)

	// DeleteFile removes the record only. Concepts the document contributed
	// stay in the graph.
	DeleteFile(ctx context.Context, fileID string) error
}

// ConceptGraph is the full service surface used by the HTTP server.
type ConceptGraph interface {
	DocumentProcessor
	GraphReader
	FileManager

	// Health checks the backing store.
	Health(ctx context.Context) error

	// Close waits for scheduled batches and releases resources.
	Close(ctx context.Context) error
}

var _ ConceptGraph = (*Client)(nil)
