package handlers

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/soundprediction/conceptgraph/pkg/server/dto"
)

// Build information - can be set at build time using ldflags
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
	GoVersion = runtime.Version()
)

// HealthChecker reports whether the backing store is reachable.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// HealthHandler handles health check requests
type HealthHandler struct {
	checker HealthChecker
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(checker HealthChecker) *HealthHandler {
	return &HealthHandler{checker: checker}
}

// HealthCheck handles GET /api/health
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	if h.checker == nil {
		c.JSON(http.StatusInternalServerError, dto.HealthResponse{
			Status:   "Error",
			Database: "Disconnected",
			Error:    "service not initialized",
		})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	if err := h.checker.Health(ctx); err != nil {
		c.JSON(http.StatusInternalServerError, dto.HealthResponse{
			Status:   "Error",
			Database: "Disconnected",
			Error:    err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, dto.HealthResponse{
		Status:   "OK",
		Database: "Connected",
	})
}

// LivenessCheck handles GET /live - Kubernetes liveness probe endpoint
func (h *HealthHandler) LivenessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "alive",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// VersionInfo handles GET /version
func (h *HealthHandler) VersionInfo(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"version":    Version,
		"git_commit": GitCommit,
		"build_time": BuildTime,
		"go_version": GoVersion,
	})
}
