package handlers

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/soundprediction/conceptgraph"
	"github.com/soundprediction/conceptgraph/pkg/server/dto"
)

// DefaultMaxUploadBytes caps multipart uploads when no limit is configured.
const DefaultMaxUploadBytes = 32 << 20

// FileService is the part of the service the file routes need.
type FileService interface {
	conceptgraph.DocumentProcessor
	conceptgraph.FileManager
}

// FileHandler handles document upload and file record requests
type FileHandler struct {
	service        FileService
	maxUploadBytes int64
	logger         *slog.Logger
}

// NewFileHandler creates a new file handler. maxUploadBytes <= 0 selects DefaultMaxUploadBytes.
func NewFileHandler(service FileService, maxUploadBytes int64, logger *slog.Logger) *FileHandler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = DefaultMaxUploadBytes
	}
	return &FileHandler{
		service:        service,
		maxUploadBytes: maxUploadBytes,
		logger:         orDefault(logger),
	}
}

// UploadUsage handles GET /api/upload-file/:userId
func (h *FileHandler) UploadUsage(c *gin.Context) {
	c.JSON(http.StatusOK, dto.UploadUsage{
		Message: "Upload a document as multipart form data to start processing",
		Method:  http.MethodPost,
		Field:   "file",
		Path:    fmt.Sprintf("/api/upload-file/%s", c.Param("userId")),
	})
}

// Upload handles POST /api/upload-file/:userId
func (h *FileHandler) Upload(c *gin.Context) {
	userID := c.Param("userId")

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes)
	header, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(c, http.StatusRequestEntityTooLarge, "file_too_large",
				fmt.Sprintf("upload exceeds %d bytes", h.maxUploadBytes))
			return
		}
		writeError(c, http.StatusBadRequest, "invalid_request", "No file uploaded")
		return
	}

	f, err := header.Open()
	if err != nil {
		writeError(c, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	defer f.Close()

	info, err := h.service.UploadDocument(c.Request.Context(), userID, header.Filename, header.Header.Get("Content-Type"), f)
	if err != nil {
		writeServiceError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, dto.UploadResponse{
		Message:  "File uploaded successfully",
		FileInfo: info,
	})
}

// ListFiles handles GET /api/get-files/:userId
func (h *FileHandler) ListFiles(c *gin.Context) {
	files, err := h.service.ListFiles(c.Request.Context(), c.Param("userId"))
	if err != nil {
		writeServiceError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, dto.FilesResponse{
		Message: "Files retrieved successfully",
		Files:   files,
	})
}

// GetFile handles GET /api/files/:fileId
func (h *FileHandler) GetFile(c *gin.Context) {
	info, err := h.service.GetFile(c.Request.Context(), c.Param("fileId"))
	if err != nil {
		writeServiceError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, info)
}

// DeleteFile handles DELETE /api/delete-file/:fileId
func (h *FileHandler) DeleteFile(c *gin.Context) {
	if err := h.service.DeleteFile(c.Request.Context(), c.Param("fileId")); err != nil {
		writeServiceError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, dto.MessageResponse{Message: "File deleted successfully"})
}
