package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/soundprediction/conceptgraph"
)

// GraphHandler serves a user's concept map
type GraphHandler struct {
	reader conceptgraph.GraphReader
	logger *slog.Logger
}

// NewGraphHandler creates a new graph handler
func NewGraphHandler(reader conceptgraph.GraphReader, logger *slog.Logger) *GraphHandler {
	return &GraphHandler{reader: reader, logger: orDefault(logger)}
}

// GetMap handles GET /api/get-map/:userId
func (h *GraphHandler) GetMap(c *gin.Context) {
	g, err := h.reader.GetMap(c.Request.Context(), c.Param("userId"))
	if err != nil {
		writeServiceError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, g)
}
