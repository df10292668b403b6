package conceptgraph

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundprediction/conceptgraph/pkg/driver"
	"github.com/soundprediction/conceptgraph/pkg/extractor"
	"github.com/soundprediction/conceptgraph/pkg/merge"
	"github.com/soundprediction/conceptgraph/pkg/metrics"
	"github.com/soundprediction/conceptgraph/pkg/types"
)

type fakeConcepts struct {
	mu    sync.Mutex
	calls int
	fn    func(text string) (*types.CandidateGraph, error)
}

func (f *fakeConcepts) Extract(ctx context.Context, text string) (*types.CandidateGraph, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	return f.fn(text)
}

func (f *fakeConcepts) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func languagesGraph(string) (*types.CandidateGraph, error) {
	return &types.CandidateGraph{
		Nodes: []types.CandidateNode{
			{TempID: "go", Label: "Go"},
			{TempID: "concurrency", Label: "Concurrency"},
		},
		Edges: []types.CandidateEdge{
			{SourceTempID: "go", TargetTempID: "concurrency", RelationLabel: "supports"},
		},
	}, nil
}

func newTestClient(t *testing.T, fn func(string) (*types.CandidateGraph, error), cfg *Config) (*Client, *driver.MemoryDriver, *fakeConcepts) {
	t.Helper()
	drv := driver.NewMemoryDriver()
	concepts := &fakeConcepts{fn: fn}
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.UploadDir == "" {
		cfg.UploadDir = t.TempDir()
	}
	c, err := NewClient(drv, extractor.NewFileTextExtractor(0), concepts, cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = c.Close(ctx)
	})
	return c, drv, concepts
}

func writeDoc(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "doc.txt")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func waitForStatus(t *testing.T, c *Client, fileID string, want types.FileStatus) *types.FileInfo {
	t.Helper()
	var info *types.FileInfo
	require.Eventually(t, func() bool {
		f, err := c.GetFile(context.Background(), fileID)
		if err != nil {
			return false
		}
		info = f
		return f.Status == want
	}, 5*time.Second, 10*time.Millisecond)
	return info
}

func TestNewClientValidation(t *testing.T) {
	drv := driver.NewMemoryDriver()
	text := extractor.NewFileTextExtractor(0)
	concepts := &fakeConcepts{fn: languagesGraph}

	_, err := NewClient(nil, text, concepts, nil, nil)
	assert.Error(t, err)
	_, err = NewClient(drv, nil, concepts, nil, nil)
	assert.Error(t, err)
	_, err = NewClient(drv, text, nil, nil, nil)
	assert.Error(t, err)
	_, err = NewClient(drv, text, concepts, &Config{MatchThreshold: 1.5}, nil)
	assert.Error(t, err)

	c, err := NewClient(drv, text, concepts, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultUploadDir, c.config.UploadDir)
	assert.Same(t, drv, c.GetDriver())
	require.NoError(t, c.Close(context.Background()))
}

func TestIngest(t *testing.T) {
	ctx := context.Background()
	c, _, _ := newTestClient(t, languagesGraph, nil)

	res, err := c.Ingest(ctx, writeDoc(t, "Go has built-in concurrency."), "alice", "doc-1")
	require.NoError(t, err)
	assert.Len(t, res.CreatedNodes, 2)
	assert.Len(t, res.CreatedEdges, 1)

	g, err := c.GetMap(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, g.Nodes, 2)
	require.Len(t, g.Edges, 1)

	src := g.NodeByID(g.Edges[0].SourceNodeID)
	tgt := g.NodeByID(g.Edges[0].TargetNodeID)
	require.NotNil(t, src)
	require.NotNil(t, tgt)
	assert.Equal(t, "Go", src.Name)
	assert.Equal(t, "Concurrency", tgt.Name)

	// A second document with the same concepts adds nothing.
	res, err = c.Ingest(ctx, writeDoc(t, "More about Go."), "alice", "doc-2")
	require.NoError(t, err)
	assert.Empty(t, res.CreatedNodes)
	assert.Empty(t, res.CreatedEdges)
	assert.Equal(t, 2, res.ResolvedNodes)
}

func TestIngestGeneratesDocumentID(t *testing.T) {
	c, _, _ := newTestClient(t, languagesGraph, nil)
	res, err := c.Ingest(context.Background(), writeDoc(t, "text"), "alice", "")
	require.NoError(t, err)
	assert.NotEmpty(t, res.DocumentID)
}

func TestIngestExtractionFailures(t *testing.T) {
	ctx := context.Background()

	t.Run("text stage", func(t *testing.T) {
		c, _, concepts := newTestClient(t, languagesGraph, nil)
		_, err := c.Ingest(ctx, filepath.Join(t.TempDir(), "missing.txt"), "alice", "doc-1")
		require.Error(t, err)
		assert.ErrorIs(t, err, &extractor.ExtractionError{Stage: extractor.StageText})
		assert.Equal(t, 0, concepts.Calls())

		g, err := c.GetMap(ctx, "alice")
		require.NoError(t, err)
		assert.Empty(t, g.Nodes)
	})

	t.Run("concept stage", func(t *testing.T) {
		c, _, _ := newTestClient(t, func(string) (*types.CandidateGraph, error) {
			return nil, errors.New("model unavailable")
		}, nil)
		_, err := c.Ingest(ctx, writeDoc(t, "text"), "alice", "doc-1")
		require.Error(t, err)
		assert.ErrorIs(t, err, &extractor.ExtractionError{Stage: extractor.StageConcepts})
		assert.Equal(t, StageConcepts, failureStage(err))

		g, err := c.GetMap(ctx, "alice")
		require.NoError(t, err)
		assert.Empty(t, g.Nodes)
		assert.Empty(t, g.Edges)
	})

	t.Run("invalid candidates", func(t *testing.T) {
		c, _, _ := newTestClient(t, func(string) (*types.CandidateGraph, error) {
			return &types.CandidateGraph{Nodes: []types.CandidateNode{
				{TempID: "a", Label: "A"},
				{TempID: "a", Label: "B"},
			}}, nil
		}, nil)
		_, err := c.Ingest(ctx, writeDoc(t, "text"), "alice", "doc-1")
		require.Error(t, err)
		assert.ErrorIs(t, err, types.ErrDuplicateTempID)
		assert.Equal(t, StageConcepts, failureStage(err))
	})
}

func TestIngestCancelledDuringMerge(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c, _, _ := newTestClient(t, func(string) (*types.CandidateGraph, error) {
		g, _ := languagesGraph("")
		cancel()
		return g, nil
	}, nil)

	_, err := c.Ingest(ctx, writeDoc(t, "text"), "alice", "doc-1")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, &extractor.ExtractionError{})
	assert.Equal(t, StageMerge, failureStage(err))
}

func TestIngestBatchDedupeOptIn(t *testing.T) {
	ctx := context.Background()
	plural := func(string) (*types.CandidateGraph, error) {
		return &types.CandidateGraph{Nodes: []types.CandidateNode{
			{TempID: "a", Label: "Acid"},
			{TempID: "b", Label: "Acids"},
		}}, nil
	}

	c, _, _ := newTestClient(t, plural, nil)
	res, err := c.Ingest(ctx, writeDoc(t, "text"), "alice", "doc-1")
	require.NoError(t, err)
	assert.Len(t, res.CreatedNodes, 2)

	c, _, _ = newTestClient(t, plural, &Config{BatchDedupe: true})
	res, err = c.Ingest(ctx, writeDoc(t, "text"), "alice", "doc-1")
	require.NoError(t, err)
	assert.Len(t, res.CreatedNodes, 1)
	assert.Equal(t, 1, res.BatchReusedNodes)
}

func TestInvalidUserID(t *testing.T) {
	ctx := context.Background()
	c, _, _ := newTestClient(t, languagesGraph, nil)

	for _, id := range []string{"", "  ", "..", "a/b", `a\b`} {
		_, err := c.Ingest(ctx, "x", id, "doc")
		assert.ErrorIs(t, err, ErrInvalidUserID, "user %q", id)

		_, err = c.GetMap(ctx, id)
		assert.ErrorIs(t, err, ErrInvalidUserID, "user %q", id)

		_, err = c.UploadDocument(ctx, id, "a.txt", "text/plain", strings.NewReader("x"))
		assert.ErrorIs(t, err, ErrInvalidUserID, "user %q", id)
	}
}

func TestUploadDocumentCompletes(t *testing.T) {
	ctx := context.Background()
	uploadDir := t.TempDir()
	c, _, concepts := newTestClient(t, languagesGraph, &Config{UploadDir: uploadDir})

	info, err := c.UploadDocument(ctx, "alice", "Notes.TXT", "text/plain", strings.NewReader("Go and concurrency."))
	require.NoError(t, err)
	assert.Equal(t, "Notes.TXT", info.FileName)
	assert.Equal(t, int64(len("Go and concurrency.")), info.Size)
	assert.Equal(t, types.FileStatusPending, info.Status)
	assert.Equal(t, filepath.Join(uploadDir, "alice", info.ID+".txt"), info.Path)

	done := waitForStatus(t, c, info.ID, types.FileStatusCompleted)
	assert.Empty(t, done.Error)
	assert.Equal(t, 1, concepts.Calls())

	g, err := c.GetMap(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, g.Nodes, 2)

	// Uploads are removed once processed.
	require.Eventually(t, func() bool {
		_, err := os.Stat(info.Path)
		return errors.Is(err, os.ErrNotExist)
	}, 5*time.Second, 10*time.Millisecond)

	files, err := c.ListFiles(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, info.ID, files[0].ID)
}

func TestUploadDocumentKeepUploads(t *testing.T) {
	c, _, _ := newTestClient(t, languagesGraph, &Config{KeepUploads: true})

	info, err := c.UploadDocument(context.Background(), "alice", "a.txt", "text/plain", strings.NewReader("Go"))
	require.NoError(t, err)
	waitForStatus(t, c, info.ID, types.FileStatusCompleted)

	_, err = os.Stat(info.Path)
	assert.NoError(t, err)
}

func TestUploadDocumentFailureIsRecorded(t *testing.T) {
	ctx := context.Background()
	collector := metrics.NewCollector("test")
	c, _, _ := newTestClient(t, func(string) (*types.CandidateGraph, error) {
		return nil, errors.New("model unavailable")
	}, &Config{Metrics: collector})

	info, err := c.UploadDocument(ctx, "alice", "a.txt", "text/plain", strings.NewReader("Go"))
	require.NoError(t, err, "upload acknowledgement does not depend on processing")

	failed := waitForStatus(t, c, info.ID, types.FileStatusFailed)
	assert.Contains(t, failed.Error, "model unavailable")

	require.Eventually(t, func() bool {
		return testutil.ToFloat64(collector.Batches.WithLabelValues(metrics.StatusFailed, StageConcepts)) == 1
	}, 5*time.Second, 10*time.Millisecond)

	g, err := c.GetMap(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, g.Nodes)
}

func TestUploadDocumentPanicIsRecorded(t *testing.T) {
	c, _, _ := newTestClient(t, func(string) (*types.CandidateGraph, error) {
		panic("boom")
	}, nil)

	info, err := c.UploadDocument(context.Background(), "alice", "a.txt", "text/plain", strings.NewReader("Go"))
	require.NoError(t, err)

	failed := waitForStatus(t, c, info.ID, types.FileStatusFailed)
	assert.Contains(t, failed.Error, "boom")
}

func TestUploadDocumentRejectsEmptyName(t *testing.T) {
	c, _, _ := newTestClient(t, languagesGraph, nil)
	_, err := c.UploadDocument(context.Background(), "alice", "", "text/plain", strings.NewReader("Go"))
	assert.ErrorIs(t, err, ErrInvalidFileName)
}

func TestUploadDocumentStripsDirectories(t *testing.T) {
	uploadDir := t.TempDir()
	c, _, _ := newTestClient(t, languagesGraph, &Config{UploadDir: uploadDir, KeepUploads: true})

	info, err := c.UploadDocument(context.Background(), "alice", "../../etc/passwd.txt", "text/plain", strings.NewReader("Go"))
	require.NoError(t, err)
	assert.Equal(t, "passwd.txt", info.FileName)
	assert.True(t, strings.HasPrefix(info.Path, filepath.Join(uploadDir, "alice")))
}

func TestSameUserBatchesAreSerialized(t *testing.T) {
	ctx := context.Background()
	collector := metrics.NewCollector("test")
	c, _, _ := newTestClient(t, func(text string) (*types.CandidateGraph, error) {
		time.Sleep(5 * time.Millisecond)
		return languagesGraph(text)
	}, &Config{Metrics: collector, MaxConcurrent: 4})

	var ids []string
	for i := 0; i < 5; i++ {
		info, err := c.UploadDocument(ctx, "alice", "a.txt", "text/plain", strings.NewReader("Go"))
		require.NoError(t, err)
		ids = append(ids, info.ID)
	}
	for _, id := range ids {
		waitForStatus(t, c, id, types.FileStatusCompleted)
	}

	// Later batches resolve to nodes created by earlier ones.
	g, err := c.GetMap(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, g.Nodes, 2)
	assert.Len(t, g.Edges, 1)
	assert.Equal(t, float64(5), testutil.ToFloat64(collector.Batches.WithLabelValues(metrics.StatusCompleted, "")))
	assert.Equal(t, float64(2), testutil.ToFloat64(collector.NodesCreated))
}

func TestProcessDocumentWithoutFileRecord(t *testing.T) {
	ctx := context.Background()
	c, _, _ := newTestClient(t, languagesGraph, &Config{KeepUploads: true})

	c.ProcessDocument(writeDoc(t, "Go"), "bob", "adhoc")

	require.Eventually(t, func() bool {
		g, err := c.GetMap(ctx, "bob")
		return err == nil && len(g.Nodes) == 2
	}, 5*time.Second, 10*time.Millisecond)
}

func TestDeleteFileKeepsGraph(t *testing.T) {
	ctx := context.Background()
	c, _, _ := newTestClient(t, languagesGraph, nil)

	info, err := c.UploadDocument(ctx, "alice", "a.txt", "text/plain", strings.NewReader("Go"))
	require.NoError(t, err)
	waitForStatus(t, c, info.ID, types.FileStatusCompleted)

	require.NoError(t, c.DeleteFile(ctx, info.ID))
	_, err = c.GetFile(ctx, info.ID)
	assert.ErrorIs(t, err, ErrFileNotFound)
	assert.ErrorIs(t, c.DeleteFile(ctx, info.ID), ErrFileNotFound)

	g, err := c.GetMap(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, g.Nodes, 2)
}

func TestGetMapEmptyUser(t *testing.T) {
	c, _, _ := newTestClient(t, languagesGraph, nil)
	g, err := c.GetMap(context.Background(), "nobody")
	require.NoError(t, err)
	assert.NotNil(t, g.Nodes)
	assert.NotNil(t, g.Edges)
	assert.Empty(t, g.Nodes)

	files, err := c.ListFiles(context.Background(), "nobody")
	require.NoError(t, err)
	assert.NotNil(t, files)
}

func TestCloseRejectsWork(t *testing.T) {
	ctx := context.Background()
	drv := driver.NewMemoryDriver()
	c, err := NewClient(drv, extractor.NewFileTextExtractor(0), &fakeConcepts{fn: languagesGraph}, &Config{UploadDir: t.TempDir()}, nil)
	require.NoError(t, err)

	require.NoError(t, c.Health(ctx))
	require.NoError(t, c.Close(ctx))
	require.NoError(t, c.Close(ctx))

	assert.ErrorIs(t, c.Health(ctx), ErrClientClosed)
	_, err = c.UploadDocument(ctx, "alice", "a.txt", "text/plain", strings.NewReader("Go"))
	assert.ErrorIs(t, err, ErrClientClosed)
}

func TestFailureStage(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{&extractor.ExtractionError{Stage: extractor.StageText, Err: errors.New("x")}, StageText},
		{&merge.StoreError{Op: merge.OpCreateNode, Err: errors.New("x")}, StageMerge},
		{fmt.Errorf("%w: %w", merge.ErrCancelled, context.Canceled), StageMerge},
		{errors.New("lock"), StageScheduler},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, failureStage(tt.err))
	}
}
