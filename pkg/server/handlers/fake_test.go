package handlers

import (
	"context"
	"io"
	"sync"

	"github.com/soundprediction/conceptgraph"
	"github.com/soundprediction/conceptgraph/pkg/merge"
	"github.com/soundprediction/conceptgraph/pkg/types"
)

type fakeService struct {
	mu        sync.Mutex
	healthErr error
	files     map[string]*types.FileInfo
	graphs    map[string]*types.Graph
	uploaded  map[string][]byte
	uploadErr error
	listErr   error
	processed []string
}

func newFakeService() *fakeService {
	return &fakeService{
		files:    make(map[string]*types.FileInfo),
		graphs:   make(map[string]*types.Graph),
		uploaded: make(map[string][]byte),
	}
}

func (f *fakeService) ProcessDocument(filePath, userID, documentID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.processed = append(f.processed, documentID)
}

func (f *fakeService) Ingest(ctx context.Context, filePath, userID, documentID string) (*merge.Result, error) {
	return &merge.Result{DocumentID: documentID, UserID: userID, Graph: &types.Graph{}}, nil
}

func (f *fakeService) UploadDocument(ctx context.Context, userID, fileName, contentType string, r io.Reader) (*types.FileInfo, error) {
	if f.uploadErr != nil {
		return nil, f.uploadErr
	}
	if userID == "" || userID == "bad user" {
		return nil, conceptgraph.ErrInvalidUserID
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	id := "file-" + fileName
	info := &types.FileInfo{
		ID:       id,
		UserID:   userID,
		FileName: fileName,
		FileType: contentType,
		Size:     int64(len(data)),
		Status:   types.FileStatusPending,
	}
	f.files[id] = info
	f.uploaded[id] = data
	f.processed = append(f.processed, id)
	return info, nil
}

func (f *fakeService) GetMap(ctx context.Context, userID string) (*types.Graph, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if g, ok := f.graphs[userID]; ok {
		return g, nil
	}
	return &types.Graph{Nodes: []*types.Node{}, Edges: []*types.Edge{}}, nil
}

func (f *fakeService) ListFiles(ctx context.Context, userID string) ([]*types.FileInfo, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []*types.FileInfo{}
	for _, info := range f.files {
		if info.UserID == userID {
			out = append(out, info)
		}
	}
	return out, nil
}

func (f *fakeService) GetFile(ctx context.Context, fileID string) (*types.FileInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	info, ok := f.files[fileID]
	if !ok {
		return nil, conceptgraph.ErrFileNotFound
	}
	return info, nil
}

func (f *fakeService) DeleteFile(ctx context.Context, fileID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.files[fileID]; !ok {
		return conceptgraph.ErrFileNotFound
	}
	delete(f.files, fileID)
	return nil
}

func (f *fakeService) Health(ctx context.Context) error {
	return f.healthErr
}

func (f *fakeService) Close(ctx context.Context) error {
	return nil
}

var _ conceptgraph.ConceptGraph = (*fakeService)(nil)
