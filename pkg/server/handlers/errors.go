package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/soundprediction/conceptgraph"
	"github.com/soundprediction/conceptgraph/pkg/server/dto"
)

// writeError aborts the request with an ErrorResponse body.
func writeError(c *gin.Context, status int, errCode, message string) {
	c.AbortWithStatusJSON(status, dto.ErrorResponse{
		Error:   errCode,
		Message: message,
		Code:    status,
	})
}

// writeServiceError maps a service error to a status code.
func writeServiceError(c *gin.Context, logger *slog.Logger, err error) {
	switch {
	case errors.Is(err, conceptgraph.ErrInvalidUserID), errors.Is(err, conceptgraph.ErrInvalidFileName):
		writeError(c, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, conceptgraph.ErrFileNotFound):
		writeError(c, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, conceptgraph.ErrClientClosed):
		writeError(c, http.StatusServiceUnavailable, "unavailable", err.Error())
	default:
		logger.Error("Request failed", "path", c.FullPath(), "error", err)
		writeError(c, http.StatusInternalServerError, "internal_error", err.Error())
	}
}

func orDefault(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.Default()
	}
	return logger
}
