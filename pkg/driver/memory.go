package driver

import (
	"context"
	"fmt"
	"sync"

	"github.com/soundprediction/conceptgraph/pkg/types"
)

// MemoryDriver keeps everything in process memory. Records are returned in
// insertion order.
type MemoryDriver struct {
	mu        sync.RWMutex
	nodes     map[string][]*types.Node
	nodeOwner map[string]string
	edges     map[string][]*types.Edge
	files     map[string]*types.FileInfo
	fileOrder []string
	closed    bool
}

// NewMemoryDriver creates an empty in-memory store.
func NewMemoryDriver() *MemoryDriver {
	return &MemoryDriver{
		nodes:     make(map[string][]*types.Node),
		nodeOwner: make(map[string]string),
		edges:     make(map[string][]*types.Edge),
		files:     make(map[string]*types.FileInfo),
	}
}

// CreateNode implements GraphStore.
func (m *MemoryDriver) CreateNode(ctx context.Context, name, userID string) (*types.Node, error) {
	if err := validateNodeInput(name, userID); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrClosed
	}

	node := newNode(name, userID)
	m.nodes[userID] = append(m.nodes[userID], node)
	m.nodeOwner[node.ID] = userID

	cp := *node
	return &cp, nil
}

// CreateEdge implements GraphStore.
func (m *MemoryDriver) CreateEdge(ctx context.Context, sourceNodeID, targetNodeID, userID string) (*types.Edge, error) {
	if err := validateEdgeInput(sourceNodeID, targetNodeID, userID); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrClosed
	}

	if m.nodeOwner[sourceNodeID] != userID {
		return nil, fmt.Errorf("source %s: %w", sourceNodeID, ErrEndpointNotFound)
	}
	if m.nodeOwner[targetNodeID] != userID {
		return nil, fmt.Errorf("target %s: %w", targetNodeID, ErrEndpointNotFound)
	}

	edge := newEdge(sourceNodeID, targetNodeID, userID)
	m.edges[userID] = append(m.edges[userID], edge)

	cp := *edge
	return &cp, nil
}

// FindNodes implements GraphStore.
func (m *MemoryDriver) FindNodes(ctx context.Context, userID string) ([]*types.Node, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrClosed
	}

	out := make([]*types.Node, 0, len(m.nodes[userID]))
	for _, n := range m.nodes[userID] {
		cp := *n
		out = append(out, &cp)
	}
	return out, nil
}

// FindEdges implements GraphStore.
func (m *MemoryDriver) FindEdges(ctx context.Context, userID string) ([]*types.Edge, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrClosed
	}

	out := make([]*types.Edge, 0, len(m.edges[userID]))
	for _, e := range m.edges[userID] {
		cp := *e
		out = append(out, &cp)
	}
	return out, nil
}

// CreateFile implements FileStore.
func (m *MemoryDriver) CreateFile(ctx context.Context, file *types.FileInfo) error {
	if err := file.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	if _, exists := m.files[file.ID]; exists {
		return fmt.Errorf("file %s already exists", file.ID)
	}

	cp := *file
	m.files[file.ID] = &cp
	m.fileOrder = append(m.fileOrder, file.ID)
	return nil
}

// GetFile implements FileStore.
func (m *MemoryDriver) GetFile(ctx context.Context, fileID string) (*types.FileInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	f, ok := m.files[fileID]
	if !ok {
		return nil, fmt.Errorf("file %s: %w", fileID, ErrNotFound)
	}
	cp := *f
	return &cp, nil
}

// ListFiles implements FileStore.
func (m *MemoryDriver) ListFiles(ctx context.Context, userID string) ([]*types.FileInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*types.FileInfo, 0)
	for _, id := range m.fileOrder {
		f, ok := m.files[id]
		if !ok || f.UserID != userID {
			continue
		}
		cp := *f
		out = append(out, &cp)
	}
	return out, nil
}

// UpdateFileStatus implements FileStore.
func (m *MemoryDriver) UpdateFileStatus(ctx context.Context, fileID string, status types.FileStatus, message string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	f, ok := m.files[fileID]
	if !ok {
		return fmt.Errorf("file %s: %w", fileID, ErrNotFound)
	}
	f.Status = status
	f.Error = message
	f.UpdatedAt = nowUTC()
	return nil
}

// DeleteFile implements FileStore.
func (m *MemoryDriver) DeleteFile(ctx context.Context, fileID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.files[fileID]; !ok {
		return fmt.Errorf("file %s: %w", fileID, ErrNotFound)
	}
	delete(m.files, fileID)
	for i, id := range m.fileOrder {
		if id == fileID {
			m.fileOrder = append(m.fileOrder[:i], m.fileOrder[i+1:]...)
			break
		}
	}
	return nil
}

// Ping implements Driver.
func (m *MemoryDriver) Ping(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return ErrClosed
	}
	return nil
}

// Provider implements Driver.
func (m *MemoryDriver) Provider() Provider {
	return ProviderMemory
}

// Close implements Driver.
func (m *MemoryDriver) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
