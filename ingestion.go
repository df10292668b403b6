package conceptgraph

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/soundprediction/conceptgraph/pkg/driver"
	"github.com/soundprediction/conceptgraph/pkg/extractor"
	"github.com/soundprediction/conceptgraph/pkg/merge"
	"github.com/soundprediction/conceptgraph/pkg/metrics"
	"github.com/soundprediction/conceptgraph/pkg/types"
	"github.com/soundprediction/conceptgraph/pkg/utils"
)

// Batch failure stages reported in logs and metrics.
const (
	StageText      = extractor.StageText
	StageConcepts  = extractor.StageConcepts
	StageMerge     = "merge"
	StageScheduler = "scheduler"
	StagePanic     = "panic"
)

const requestSourceBatch = "batch"

// ProcessDocument schedules one batch for the document and returns
// immediately. The outcome is logged and recorded on the file record.
func (c *Client) ProcessDocument(filePath, userID, documentID string) {
	log := c.logger.With("document_id", documentID, "user_id", userID)

	if c.closed.Load() {
		log.Error("Document batch rejected", "stage", StageScheduler, "error", ErrClientClosed)
		c.failFile(documentID, StageScheduler, ErrClientClosed)
		return
	}
	if err := validateUserID(userID); err != nil {
		log.Error("Document batch rejected", "stage", StageScheduler, "error", err)
		c.failFile(documentID, StageScheduler, err)
		return
	}

	err := c.scheduler.Submit(userID, documentID, func(ctx context.Context) error {
		return c.runBatch(ctx, filePath, userID, documentID)
	})
	if err != nil {
		log.Error("Document batch rejected", "stage", StageScheduler, "error", err)
		c.failFile(documentID, StageScheduler, err)
		c.removeUpload(filePath)
		return
	}
	log.Debug("Document batch scheduled", "path", filePath)
}

// Ingest runs text extraction, concept extraction and the merge for one
// document. The graph is unchanged when either extraction stage fails.
func (c *Client) Ingest(ctx context.Context, filePath, userID, documentID string) (*merge.Result, error) {
	if err := validateUserID(userID); err != nil {
		return nil, err
	}
	if documentID == "" {
		documentID = uuid.New().String()
	}

	text, err := c.text.Extract(ctx, filePath)
	if err != nil {
		return nil, asExtractionError(extractor.StageText, err)
	}

	candidates, err := c.concepts.Extract(ctx, text)
	if err != nil {
		return nil, asExtractionError(extractor.StageConcepts, err)
	}

	res, err := c.engine.Merge(ctx, documentID, userID, candidates)
	if errors.Is(err, merge.ErrInvalidCandidates) {
		return res, asExtractionError(extractor.StageConcepts, err)
	}
	return res, err
}

// UploadDocument saves r as UploadDir/<userID>/<id><ext>, creates a pending
// file record and schedules processing.
func (c *Client) UploadDocument(ctx context.Context, userID, fileName, contentType string, r io.Reader) (*types.FileInfo, error) {
	if c.closed.Load() {
		return nil, ErrClientClosed
	}
	if err := validateUserID(userID); err != nil {
		return nil, err
	}
	base := filepath.Base(strings.ReplaceAll(fileName, `\`, "/"))
	if strings.TrimSpace(fileName) == "" || base == "." || base == "/" {
		return nil, ErrInvalidFileName
	}

	id := uuid.New().String()
	dir := filepath.Join(c.config.UploadDir, userID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}
	path := filepath.Join(dir, id+strings.ToLower(filepath.Ext(base)))

	size, err := writeUpload(path, r)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	info := &types.FileInfo{
		ID:        id,
		UserID:    userID,
		FileName:  base,
		FileType:  contentType,
		Size:      size,
		Path:      path,
		Status:    types.FileStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := c.driver.CreateFile(ctx, info); err != nil {
		c.removeUpload(path)
		return nil, fmt.Errorf("failed to record upload: %w", err)
	}

	c.logger.Info("Document uploaded",
		"document_id", id,
		"user_id", userID,
		"file_name", base,
		"size", size)

	c.ProcessDocument(path, userID, id)
	return info, nil
}

func writeUpload(path string, r io.Reader) (int64, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return 0, fmt.Errorf("failed to create upload: %w", err)
	}
	n, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(path)
		return 0, fmt.Errorf("failed to write upload: %w", err)
	}
	return n, nil
}

// runBatch is the scheduled job for one document.
func (c *Client) runBatch(ctx context.Context, filePath, userID, documentID string) (err error) {
	ctx = context.WithValue(ctx, types.ContextKeyUserID, userID)
	ctx = context.WithValue(ctx, types.ContextKeyDocumentID, documentID)
	ctx = context.WithValue(ctx, types.ContextKeyRequestSource, requestSourceBatch)

	log := c.logger.With("document_id", documentID, "user_id", userID)
	start := time.Now()

	if !c.config.KeepUploads {
		defer c.removeUpload(filePath)
	}

	c.setFileStatus(ctx, documentID, types.FileStatusProcessing, "")

	res, err := c.ingestRecovered(ctx, filePath, userID, documentID)
	duration := time.Since(start)
	if err != nil {
		stage := failureStage(err)
		log.Error("Document batch failed", "stage", stage, "error", err, "duration", duration)
		c.observeBatch(metrics.StatusFailed, stage, duration)
		c.setFileStatus(ctx, documentID, types.FileStatusFailed, err.Error())
		return err
	}

	c.observeBatch(metrics.StatusCompleted, "", duration)
	c.setFileStatus(ctx, documentID, types.FileStatusCompleted, "")
	log.Info("Document batch completed",
		"created_nodes", len(res.CreatedNodes),
		"created_edges", len(res.CreatedEdges),
		"resolved_nodes", res.ResolvedNodes,
		"duration", duration)
	return nil
}

func (c *Client) ingestRecovered(ctx context.Context, filePath, userID, documentID string) (res *merge.Result, err error) {
	defer utils.RecoverAsError(&err)
	return c.Ingest(ctx, filePath, userID, documentID)
}

// onBatchDone catches jobs that failed before runBatch could record the
// outcome, such as lock errors or a shutdown before start.
func (c *Client) onBatchDone(userID, documentID string, err error) {
	if err == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	f, gerr := c.driver.GetFile(ctx, documentID)
	if gerr != nil || f.Status.IsTerminal() {
		return
	}
	stage := failureStage(err)
	c.logger.Error("Document batch failed",
		"document_id", documentID,
		"user_id", userID,
		"stage", stage,
		"error", err)
	c.setFileStatus(ctx, documentID, types.FileStatusFailed, err.Error())
	c.observeBatch(metrics.StatusFailed, stage, 0)
}

func (c *Client) failFile(documentID, stage string, err error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	c.setFileStatus(ctx, documentID, types.FileStatusFailed, err.Error())
	c.observeBatch(metrics.StatusFailed, stage, 0)
}

// setFileStatus updates the file record. Batches started outside
// UploadDocument have no record, which is not an error.
func (c *Client) setFileStatus(ctx context.Context, documentID string, status types.FileStatus, message string) {
	// Record the outcome even if the batch context was cancelled.
	ctx = context.WithoutCancel(ctx)
	err := c.driver.UpdateFileStatus(ctx, documentID, status, message)
	if err != nil && !errors.Is(err, driver.ErrNotFound) {
		c.logger.Warn("Failed to update file status",
			"document_id", documentID,
			"status", status,
			"error", err)
	}
}

func (c *Client) observeBatch(status, stage string, d time.Duration) {
	if c.metrics != nil {
		c.metrics.ObserveBatch(status, stage, d)
	}
}

func (c *Client) removeUpload(path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		c.logger.Warn("Failed to remove upload", "path", path, "error", err)
	}
}

func asExtractionError(stage string, err error) error {
	var extErr *extractor.ExtractionError
	if errors.As(err, &extErr) {
		return err
	}
	return &extractor.ExtractionError{Stage: stage, Err: err}
}

func failureStage(err error) string {
	var extErr *extractor.ExtractionError
	var storeErr *merge.StoreError
	var panicErr *utils.PanicError
	switch {
	case errors.As(err, &panicErr):
		return StagePanic
	case errors.As(err, &extErr):
		return extErr.Stage
	case errors.As(err, &storeErr), errors.Is(err, merge.ErrCancelled):
		return StageMerge
	default:
		return StageScheduler
	}
}
