package driver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/soundprediction/conceptgraph/pkg/types"
)

// Key layout:
//
//	n/<user>/<node id>  -> Node
//	e/<user>/<edge id>  -> Edge
//	f/<file id>         -> FileInfo
const (
	badgerNodePrefix = "n/"
	badgerEdgePrefix = "e/"
	badgerFilePrefix = "f/"
)

// BadgerDriver stores the graph in an embedded badger database.
type BadgerDriver struct {
	db *badger.DB
}

// NewBadgerDriver opens (or creates) a badger database at path.
// An empty path opens an in-memory database.
func NewBadgerDriver(path string) (*BadgerDriver, error) {
	var opts badger.Options
	if path == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		opts = badger.DefaultOptions(path)
	}
	opts = opts.WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger database: %w", err)
	}
	return &BadgerDriver{db: db}, nil
}

func nodeKey(userID, nodeID string) []byte {
	return []byte(badgerNodePrefix + userID + "/" + nodeID)
}

func edgeKey(userID, edgeID string) []byte {
	return []byte(badgerEdgePrefix + userID + "/" + edgeID)
}

func fileKey(fileID string) []byte {
	return []byte(badgerFilePrefix + fileID)
}

func (b *BadgerDriver) put(key []byte, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, data)
	})
}

// scan decodes every value under prefix with fn.
func (b *BadgerDriver) scan(prefix []byte, fn func(val []byte) error) error {
	return b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := it.Item().Value(fn); err != nil {
				return err
			}
		}
		return nil
	})
}

// CreateNode implements GraphStore.
func (b *BadgerDriver) CreateNode(ctx context.Context, name, userID string) (*types.Node, error) {
	if err := validateNodeInput(name, userID); err != nil {
		return nil, err
	}
	if b.db.IsClosed() {
		return nil, ErrClosed
	}

	node := newNode(name, userID)
	if err := b.put(nodeKey(userID, node.ID), node); err != nil {
		return nil, fmt.Errorf("failed to store node: %w", err)
	}
	return node, nil
}

// CreateEdge implements GraphStore. The endpoint check and the write share one
// read-write transaction.
func (b *BadgerDriver) CreateEdge(ctx context.Context, sourceNodeID, targetNodeID, userID string) (*types.Edge, error) {
	if err := validateEdgeInput(sourceNodeID, targetNodeID, userID); err != nil {
		return nil, err
	}
	if b.db.IsClosed() {
		return nil, ErrClosed
	}

	edge := newEdge(sourceNodeID, targetNodeID, userID)
	data, err := json.Marshal(edge)
	if err != nil {
		return nil, err
	}

	err = b.db.Update(func(txn *badger.Txn) error {
		for _, id := range []string{sourceNodeID, targetNodeID} {
			if _, err := txn.Get(nodeKey(userID, id)); err != nil {
				if errors.Is(err, badger.ErrKeyNotFound) {
					return fmt.Errorf("node %s: %w", id, ErrEndpointNotFound)
				}
				return err
			}
		}
		return txn.Set(edgeKey(userID, edge.ID), data)
	})
	if err != nil {
		return nil, err
	}
	return edge, nil
}

// FindNodes implements GraphStore.
func (b *BadgerDriver) FindNodes(ctx context.Context, userID string) ([]*types.Node, error) {
	if b.db.IsClosed() {
		return nil, ErrClosed
	}

	nodes := make([]*types.Node, 0)
	err := b.scan([]byte(badgerNodePrefix+userID+"/"), func(val []byte) error {
		var n types.Node
		if err := json.Unmarshal(val, &n); err != nil {
			return err
		}
		nodes = append(nodes, &n)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read nodes: %w", err)
	}
	sortNodes(nodes)
	return nodes, nil
}

// FindEdges implements GraphStore.
func (b *BadgerDriver) FindEdges(ctx context.Context, userID string) ([]*types.Edge, error) {
	if b.db.IsClosed() {
		return nil, ErrClosed
	}

	edges := make([]*types.Edge, 0)
	err := b.scan([]byte(badgerEdgePrefix+userID+"/"), func(val []byte) error {
		var e types.Edge
		if err := json.Unmarshal(val, &e); err != nil {
			return err
		}
		edges = append(edges, &e)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read edges: %w", err)
	}
	sortEdges(edges)
	return edges, nil
}

// CreateFile implements FileStore.
func (b *BadgerDriver) CreateFile(ctx context.Context, file *types.FileInfo) error {
	if err := file.Validate(); err != nil {
		return err
	}
	data, err := json.Marshal(storedFile(file))
	if err != nil {
		return err
	}
	return b.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(fileKey(file.ID)); err == nil {
			return fmt.Errorf("file %s already exists", file.ID)
		}
		return txn.Set(fileKey(file.ID), data)
	})
}

// GetFile implements FileStore.
func (b *BadgerDriver) GetFile(ctx context.Context, fileID string) (*types.FileInfo, error) {
	var rec badgerFile
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(fileKey(fileID))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &rec)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("file %s: %w", fileID, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return rec.fileInfo(), nil
}

// ListFiles implements FileStore.
func (b *BadgerDriver) ListFiles(ctx context.Context, userID string) ([]*types.FileInfo, error) {
	files := make([]*types.FileInfo, 0)
	userField := []byte(`"user_id":` + mustJSON(userID))
	err := b.scan([]byte(badgerFilePrefix), func(val []byte) error {
		if !bytes.Contains(val, userField) {
			return nil
		}
		var rec badgerFile
		if err := json.Unmarshal(val, &rec); err != nil {
			return err
		}
		if rec.UserID == userID {
			files = append(files, rec.fileInfo())
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read files: %w", err)
	}
	sortFiles(files)
	return files, nil
}

// UpdateFileStatus implements FileStore.
func (b *BadgerDriver) UpdateFileStatus(ctx context.Context, fileID string, status types.FileStatus, message string) error {
	return b.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(fileKey(fileID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("file %s: %w", fileID, ErrNotFound)
		}
		if err != nil {
			return err
		}

		var rec badgerFile
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &rec)
		}); err != nil {
			return err
		}

		info := rec.fileInfo()
		info.Status = status
		info.Error = message
		info.UpdatedAt = nowUTC()

		data, err := json.Marshal(storedFile(info))
		if err != nil {
			return err
		}
		return txn.Set(fileKey(fileID), data)
	})
}

// DeleteFile implements FileStore.
func (b *BadgerDriver) DeleteFile(ctx context.Context, fileID string) error {
	return b.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(fileKey(fileID)); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return fmt.Errorf("file %s: %w", fileID, ErrNotFound)
			}
			return err
		}
		return txn.Delete(fileKey(fileID))
	})
}

// Ping implements Driver.
func (b *BadgerDriver) Ping(ctx context.Context) error {
	if b.db.IsClosed() {
		return ErrClosed
	}
	return nil
}

// Provider implements Driver.
func (b *BadgerDriver) Provider() Provider {
	return ProviderBadger
}

// Close implements Driver.
func (b *BadgerDriver) Close() error {
	if b.db.IsClosed() {
		return nil
	}
	if err := b.db.Close(); err != nil {
		slog.Warn("badger close failed", "error", err)
		return err
	}
	return nil
}

// badgerFile is the stored form of types.FileInfo. It keeps the upload path,
// which the public JSON form hides.
type badgerFile struct {
	ID        string           `json:"id"`
	UserID    string           `json:"user_id"`
	FileName  string           `json:"file_name"`
	FileType  string           `json:"file_type"`
	Size      int64            `json:"size"`
	Path      string           `json:"path"`
	Status    types.FileStatus `json:"status"`
	Error     string           `json:"error,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

func storedFile(f *types.FileInfo) badgerFile {
	return badgerFile{
		ID:        f.ID,
		UserID:    f.UserID,
		FileName:  f.FileName,
		FileType:  f.FileType,
		Size:      f.Size,
		Path:      f.Path,
		Status:    f.Status,
		Error:     f.Error,
		CreatedAt: f.CreatedAt,
		UpdatedAt: f.UpdatedAt,
	}
}

func (r badgerFile) fileInfo() *types.FileInfo {
	return &types.FileInfo{
		ID:        r.ID,
		UserID:    r.UserID,
		FileName:  r.FileName,
		FileType:  r.FileType,
		Size:      r.Size,
		Path:      r.Path,
		Status:    r.Status,
		Error:     r.Error,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

func mustJSON(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}
