package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/soundprediction/conceptgraph"
	"github.com/soundprediction/conceptgraph/pkg/config"
	"github.com/soundprediction/conceptgraph/pkg/metrics"
	"github.com/soundprediction/conceptgraph/pkg/server/handlers"
	"github.com/soundprediction/conceptgraph/pkg/types"
)

// Server represents the HTTP server
type Server struct {
	config  *config.Config
	router  *gin.Engine
	graph   conceptgraph.ConceptGraph
	metrics *metrics.Collector
	logger  *slog.Logger
	server  *http.Server
}

// New creates a new server instance. collector may be nil.
func New(cfg *config.Config, graph conceptgraph.ConceptGraph, collector *metrics.Collector, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		config:  cfg,
		graph:   graph,
		metrics: collector,
		logger:  logger,
	}
}

// Setup sets up the server routes and middleware
func (s *Server) Setup() {
	if s.config.Server.Mode != "" {
		gin.SetMode(s.config.Server.Mode)
	}

	s.router = gin.New()

	s.router.Use(recoveryMiddleware(s.logger))
	s.router.Use(loggingMiddleware(s.logger))
	if s.metrics != nil {
		s.router.Use(metricsMiddleware(s.metrics))
	}
	s.router.Use(corsMiddleware())
	s.router.Use(contextMiddleware())

	s.setupRoutes()

	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// Router returns the configured handler. Setup must be called first.
func (s *Server) Router() http.Handler {
	return s.router
}

// setupRoutes sets up all the routes
func (s *Server) setupRoutes() {
	healthHandler := handlers.NewHealthHandler(s.graph)
	fileHandler := handlers.NewFileHandler(s.graph, s.config.Server.MaxUploadBytes, s.logger)
	graphHandler := handlers.NewGraphHandler(s.graph, s.logger)

	s.router.GET("/live", healthHandler.LivenessCheck)
	s.router.GET("/version", healthHandler.VersionInfo)

	api := s.router.Group("/api")
	{
		api.GET("/health", healthHandler.HealthCheck)

		api.GET("/upload-file/:userId", fileHandler.UploadUsage)
		api.POST("/upload-file/:userId", fileHandler.Upload)
		api.GET("/get-files/:userId", fileHandler.ListFiles)
		api.GET("/files/:fileId", fileHandler.GetFile)
		api.DELETE("/delete-file/:fileId", fileHandler.DeleteFile)

		api.GET("/get-map/:userId", graphHandler.GetMap)
	}

	if s.metrics != nil && s.config.Metrics.Enabled {
		path := s.config.Metrics.Path
		if path == "" {
			path = "/metrics"
		}
		s.router.GET(path, gin.WrapH(s.metrics.Handler()))
	}
}

// Start starts the server
func (s *Server) Start() error {
	s.logger.Info("Starting server", "addr", s.server.Addr)
	return s.server.ListenAndServe()
}

// Stop stops the server gracefully
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping server")
	return s.server.Shutdown(ctx)
}

// recoveryMiddleware turns handler panics into 500 responses.
func recoveryMiddleware(logger *slog.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = slog.Default()
	}
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		logger.Error("Recovered from panic in handler",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"panic", recovered)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "internal server error",
			"code":    http.StatusInternalServerError,
		})
	})
}

// loggingMiddleware logs one line per request.
func loggingMiddleware(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		attrs := []any{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", status,
			"duration", time.Since(start),
			"client_ip", c.ClientIP(),
		}
		if len(c.Errors) > 0 {
			attrs = append(attrs, "errors", c.Errors.String())
		}
		switch {
		case status >= http.StatusInternalServerError:
			logger.Error("HTTP request", attrs...)
		case status >= http.StatusBadRequest:
			logger.Warn("HTTP request", attrs...)
		default:
			logger.Debug("HTTP request", attrs...)
		}
	}
}

// metricsMiddleware records request counts and latency by route template.
func metricsMiddleware(collector *metrics.Collector) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		collector.ObserveHTTP(c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}

// corsMiddleware adds CORS headers
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With, X-User-ID, X-Session-ID")
		c.Header("Access-Control-Allow-Methods", "POST, OPTIONS, GET, DELETE")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// contextMiddleware extracts context information from headers
func contextMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		userID := c.GetHeader("X-User-ID")
		if userID == "" {
			userID = c.Param("userId")
		}
		if userID != "" {
			ctx = context.WithValue(ctx, types.ContextKeyUserID, userID)
		}

		sessionID := c.GetHeader("X-Session-ID")
		if sessionID != "" {
			ctx = context.WithValue(ctx, types.ContextKeySessionID, sessionID)
		}

		ctx = context.WithValue(ctx, types.ContextKeyRequestSource, "server")

		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
