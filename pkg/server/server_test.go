package server

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundprediction/conceptgraph"
	"github.com/soundprediction/conceptgraph/pkg/config"
	"github.com/soundprediction/conceptgraph/pkg/driver"
	"github.com/soundprediction/conceptgraph/pkg/extractor"
	"github.com/soundprediction/conceptgraph/pkg/metrics"
	"github.com/soundprediction/conceptgraph/pkg/server/dto"
	"github.com/soundprediction/conceptgraph/pkg/types"
)

type staticConcepts struct{}

func (staticConcepts) Extract(ctx context.Context, text string) (*types.CandidateGraph, error) {
	return &types.CandidateGraph{
		Nodes: []types.CandidateNode{{TempID: "go", Label: "Go"}, {TempID: "gc", Label: "Garbage Collection"}},
		Edges: []types.CandidateEdge{{SourceTempID: "go", TargetTempID: "gc", RelationLabel: "uses"}},
	}, nil
}

func testConfig() *config.Config {
	return &config.Config{
		Server:  config.ServerConfig{Host: "localhost", Port: 8080, Mode: gin.TestMode},
		Metrics: config.MetricsConfig{Enabled: true, Path: "/metrics"},
	}
}

func newTestServer(t *testing.T) (*Server, *metrics.Collector) {
	t.Helper()
	collector := metrics.NewCollector("test")
	client, err := conceptgraph.NewClient(
		driver.NewMemoryDriver(),
		extractor.NewFileTextExtractor(0),
		staticConcepts{},
		&conceptgraph.Config{UploadDir: t.TempDir(), Metrics: collector},
		nil,
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close(context.Background()) })

	srv := New(testConfig(), client, collector, nil)
	srv.Setup()
	return srv, collector
}

func do(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestNew(t *testing.T) {
	cfg := testConfig()
	server := New(cfg, nil, nil, nil)
	require.NotNil(t, server)
	assert.Same(t, cfg, server.config)
	assert.NotNil(t, server.logger)
}

func TestSetup(t *testing.T) {
	server := New(testConfig(), nil, nil, nil)
	server.Setup()

	require.NotNil(t, server.router)
	require.NotNil(t, server.server)
	assert.Equal(t, "localhost:8080", server.server.Addr)
}

func TestHealthEndpointWithoutService(t *testing.T) {
	server := New(testConfig(), nil, nil, nil)
	server.Setup()

	w := do(server.Router(), httptest.NewRequest(http.MethodGet, "/api/health", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestCORSHeaders(t *testing.T) {
	srv, _ := newTestServer(t)

	w := do(srv.Router(), httptest.NewRequest(http.MethodOptions, "/api/get-map/alice", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))

	w = do(srv.Router(), httptest.NewRequest(http.MethodGet, "/api/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestUploadToMapRoundTrip(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Router()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "gc.txt")
	require.NoError(t, err)
	_, err = fw.Write([]byte("Go uses a concurrent garbage collector."))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/upload-file/alice", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := do(h, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var upload dto.UploadResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &upload))
	require.NotNil(t, upload.FileInfo)

	require.Eventually(t, func() bool {
		w := do(h, httptest.NewRequest(http.MethodGet, "/api/files/"+upload.FileInfo.ID, nil))
		var info types.FileInfo
		return w.Code == http.StatusOK &&
			json.Unmarshal(w.Body.Bytes(), &info) == nil &&
			info.Status == types.FileStatusCompleted
	}, 5*time.Second, 10*time.Millisecond)

	w = do(h, httptest.NewRequest(http.MethodGet, "/api/get-map/alice", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var g types.Graph
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &g))
	assert.Len(t, g.Nodes, 2)
	assert.Len(t, g.Edges, 1)

	w = do(h, httptest.NewRequest(http.MethodGet, "/api/get-files/alice", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var files dto.FilesResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &files))
	require.Len(t, files.Files, 1)

	w = do(h, httptest.NewRequest(http.MethodDelete, "/api/delete-file/"+upload.FileInfo.ID, nil))
	assert.Equal(t, http.StatusOK, w.Code)

	// Deleting the file record leaves the graph in place.
	w = do(h, httptest.NewRequest(http.MethodGet, "/api/get-map/alice", nil))
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &g))
	assert.Len(t, g.Nodes, 2)
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Router()

	do(h, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	w := do(h, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `test_http_requests_total{method="GET",route="/api/health",status="200"} 1`)
}

func TestMetricsEndpointDisabled(t *testing.T) {
	cfg := testConfig()
	cfg.Metrics.Enabled = false
	srv := New(cfg, nil, metrics.NewCollector("test"), nil)
	srv.Setup()

	w := do(srv.Router(), httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRecoveryMiddleware(t *testing.T) {
	r := gin.New()
	r.Use(recoveryMiddleware(nil))
	r.GET("/panic", func(c *gin.Context) { panic("boom") })

	w := do(r, httptest.NewRequest(http.MethodGet, "/panic", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "internal_error")
}

func TestContextMiddleware(t *testing.T) {
	r := gin.New()
	r.Use(contextMiddleware())
	var gotUser, gotSession, gotSource any
	r.GET("/api/get-map/:userId", func(c *gin.Context) {
		ctx := c.Request.Context()
		gotUser = ctx.Value(types.ContextKeyUserID)
		gotSession = ctx.Value(types.ContextKeySessionID)
		gotSource = ctx.Value(types.ContextKeyRequestSource)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/get-map/alice", nil)
	req.Header.Set("X-Session-ID", "s-1")
	do(r, req)
	assert.Equal(t, "alice", gotUser)
	assert.Equal(t, "s-1", gotSession)
	assert.Equal(t, "server", gotSource)

	req = httptest.NewRequest(http.MethodGet, "/api/get-map/alice", nil)
	req.Header.Set("X-User-ID", "header-user")
	do(r, req)
	assert.Equal(t, "header-user", gotUser)
}
