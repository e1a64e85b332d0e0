package api

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/chatinsight/chat-insight/internal/cache"
	"github.com/chatinsight/chat-insight/internal/service"
	"github.com/chatinsight/chat-insight/internal/types"
)

const metricsCacheKey = "metrics"

// RelationLoader loads the current flattened relations.
type RelationLoader interface {
	Load(ctx context.Context) (*types.Relations, error)
}

// Options holds the non-service settings of the server.
type Options struct {
	StaticDir   string
	DepthSample int
	CacheTTL    time.Duration
}

// Server holds API dependencies.
type Server struct {
	authService *service.AuthService
	loader      RelationLoader
	cache       cache.Cache
	logger      *logrus.Logger
	staticDir   string
	depthSample int
	cacheTTL    time.Duration

	mu        sync.Mutex
	relations *types.Relations
	groups    map[string]*types.Relations
}

// NewServer creates a new API server.
func NewServer(authService *service.AuthService, loader RelationLoader, c cache.Cache, logger *logrus.Logger, opts Options) *Server {
	return &Server{
		authService: authService,
		loader:      loader,
		cache:       c,
		logger:      logger,
		staticDir:   opts.StaticDir,
		depthSample: opts.DepthSample,
		cacheTTL:    opts.CacheTTL,
	}
}

// Register mounts all routes on e.
func (s *Server) Register(e *echo.Echo) {
	e.GET("/healthz", s.Health)
	e.GET("/health", s.Health)

	api := e.Group("/api")
	api.GET("/metrics", s.GetMetrics)
	api.GET("/conversations/:id/depth", s.GetConversationDepth)
	api.POST("/refresh", s.Refresh, s.AuthMiddleware)

	e.GET("/", s.Index)
	e.GET("/static/*", s.StaticFile)
	e.GET("/:filename", s.StaticFile)
}

// Health reports liveness.
func (s *Server) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status": "ok",
	})
}

// snapshot returns the loaded relations and their per-conversation groups, loading them on first use.
func (s *Server) snapshot(ctx context.Context) (*types.Relations, map[string]*types.Relations, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.relations != nil {
		return s.relations, s.groups, nil
	}

	rel, err := s.loader.Load(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("load relations: %w", err)
	}
	s.relations = rel
	s.groups = rel.Group()
	s.logger.WithFields(logrus.Fields{
		"messages": len(rel.Messages),
		"edges":    len(rel.Edges),
	}).Info("relations loaded")
	return s.relations, s.groups, nil
}

func (s *Server) dropSnapshot() {
	s.mu.Lock()
	s.relations = nil
	s.groups = nil
	s.mu.Unlock()
}
