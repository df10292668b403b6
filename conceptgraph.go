package conceptgraph

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/soundprediction/conceptgraph/pkg/driver"
	"github.com/soundprediction/conceptgraph/pkg/extractor"
	"github.com/soundprediction/conceptgraph/pkg/merge"
	"github.com/soundprediction/conceptgraph/pkg/metrics"
	"github.com/soundprediction/conceptgraph/pkg/scheduler"
	"github.com/soundprediction/conceptgraph/pkg/types"
)

// DefaultUploadDir is used when Config.UploadDir is empty.
const DefaultUploadDir = "uploads"

// Client is the main implementation of the ConceptGraph interface.
type Client struct {
	driver    driver.Driver
	text      extractor.TextExtractor
	concepts  extractor.ConceptExtractor
	engine    *merge.Engine
	scheduler *scheduler.Scheduler
	metrics   *metrics.Collector
	config    *Config
	logger    *slog.Logger

	closed atomic.Bool
}

// Config holds configuration for the Client.
type Config struct {
	// UploadDir receives uploaded documents, one sub-directory per user.
	UploadDir string
	// KeepUploads retains uploaded files after their batch finishes.
	KeepUploads bool

	// MatchThreshold is the minimum name similarity for resolving a candidate
	// to an existing node. Zero selects the resolver default.
	MatchThreshold float64
	// BatchDedupe lets a candidate reuse a node created earlier in the same
	// batch when nothing in the existing graph matches it.
	BatchDedupe bool

	// MaxConcurrent bounds how many users' batches run at once.
	MaxConcurrent int
	// Locker, when set, is held around every batch of a user.
	Locker scheduler.Locker

	// Metrics is optional.
	Metrics *metrics.Collector
}

// NewClient creates a Client. A nil config selects the defaults and a nil
// logger falls back to slog.Default().
func NewClient(drv driver.Driver, text extractor.TextExtractor, concepts extractor.ConceptExtractor, config *Config, logger *slog.Logger) (*Client, error) {
	if drv == nil {
		return nil, errors.New("conceptgraph: driver is required")
	}
	if text == nil {
		return nil, errors.New("conceptgraph: text extractor is required")
	}
	if concepts == nil {
		return nil, errors.New("conceptgraph: concept extractor is required")
	}
	if config == nil {
		config = &Config{}
	}
	if config.UploadDir == "" {
		config.UploadDir = DefaultUploadDir
	}
	if config.MatchThreshold < 0 || config.MatchThreshold > 1 {
		return nil, fmt.Errorf("conceptgraph: match threshold %v out of range (0, 1]", config.MatchThreshold)
	}
	if logger == nil {
		logger = slog.Default()
	}

	engineOpts := []merge.Option{
		merge.WithLogger(logger),
		merge.WithBatchDedupe(config.BatchDedupe),
	}
	if config.MatchThreshold > 0 {
		engineOpts = append(engineOpts, merge.WithThreshold(config.MatchThreshold))
	}
	if config.Metrics != nil {
		engineOpts = append(engineOpts, merge.WithRecorder(config.Metrics))
	}

	c := &Client{
		driver:   drv,
		text:     text,
		concepts: concepts,
		engine:   merge.NewEngine(drv, engineOpts...),
		metrics:  config.Metrics,
		config:   config,
		logger:   logger,
	}

	schedOpts := scheduler.Options{
		MaxConcurrent: config.MaxConcurrent,
		Locker:        config.Locker,
		Logger:        logger,
		OnDone:        c.onBatchDone,
	}
	if config.Metrics != nil {
		schedOpts.Gauge = config.Metrics.QueuedBatches
	}
	c.scheduler = scheduler.New(schedOpts)

	logger.Debug("Concept graph client configured",
		"upload_dir", config.UploadDir,
		"match_threshold", c.engine.Threshold(),
		"batch_dedupe", config.BatchDedupe,
		"max_concurrent", config.MaxConcurrent)
	return c, nil
}

// GetDriver returns the underlying driver.
func (c *Client) GetDriver() driver.Driver {
	return c.driver
}

// GetMap returns the user's full graph.
func (c *Client) GetMap(ctx context.Context, userID string) (*types.Graph, error) {
	if err := validateUserID(userID); err != nil {
		return nil, err
	}
	nodes, err := c.driver.FindNodes(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load nodes: %w", err)
	}
	edges, err := c.driver.FindEdges(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load edges: %w", err)
	}
	if nodes == nil {
		nodes = []*types.Node{}
	}
	if edges == nil {
		edges = []*types.Edge{}
	}
	return &types.Graph{Nodes: nodes, Edges: edges}, nil
}

// ListFiles returns the user's uploaded documents, oldest first.
func (c *Client) ListFiles(ctx context.Context, userID string) ([]*types.FileInfo, error) {
	if err := validateUserID(userID); err != nil {
		return nil, err
	}
	files, err := c.driver.ListFiles(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}
	if files == nil {
		files = []*types.FileInfo{}
	}
	return files, nil
}

// GetFile returns one file record.
func (c *Client) GetFile(ctx context.Context, fileID string) (*types.FileInfo, error) {
	f, err := c.driver.GetFile(ctx, fileID)
	if err != nil {
		if errors.Is(err, driver.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrFileNotFound, fileID)
		}
		return nil, fmt.Errorf("failed to get file: %w", err)
	}
	return f, nil
}

// DeleteFile removes the file record. The graph is left untouched.
func (c *Client) DeleteFile(ctx context.Context, fileID string) error {
	if err := c.driver.DeleteFile(ctx, fileID); err != nil {
		if errors.Is(err, driver.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrFileNotFound, fileID)
		}
		return fmt.Errorf("failed to delete file: %w", err)
	}
	c.logger.Info("Deleted file record", "file_id", fileID)
	return nil
}

// Health pings the backing store.
func (c *Client) Health(ctx context.Context) error {
	if c.closed.Load() {
		return ErrClientClosed
	}
	return c.driver.Ping(ctx)
}

// Close stops accepting batches, waits for scheduled ones until ctx is done,
// and closes the driver.
func (c *Client) Close(ctx context.Context) error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	var errs []error
	if err := c.scheduler.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("scheduler shutdown: %w", err))
	}
	if err := c.driver.Close(); err != nil {
		errs = append(errs, fmt.Errorf("driver close: %w", err))
	}
	return errors.Join(errs...)
}

func validateUserID(userID string) error {
	if strings.TrimSpace(userID) == "" {
		return ErrInvalidUserID
	}
	if userID == "." || userID == ".." || strings.ContainsAny(userID, `/\`) || userID != filepath.Base(userID) {
		return fmt.Errorf("%w: %q", ErrInvalidUserID, userID)
	}
	return nil
}
