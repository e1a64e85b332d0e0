package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/chatinsight/chat-insight/internal/depth"
	"github.com/chatinsight/chat-insight/internal/metrics"
)

// GetMetrics returns the usage report, served from cache when possible.
func (s *Server) GetMetrics(c echo.Context) error {
	ctx := c.Request().Context()

	cached, ok, err := s.cache.Get(ctx, metricsCacheKey)
	if err != nil {
		s.logger.WithError(err).Warn("metrics cache read failed")
	}
	if ok {
		return c.JSONBlob(http.StatusOK, cached)
	}

	body, err := s.computeMetrics(ctx)
	if err != nil {
		s.logger.WithError(err).Error("failed to compute metrics")
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to compute metrics"})
	}
	return c.JSONBlob(http.StatusOK, body)
}

// GetConversationDepth returns the estimated tree depth of one conversation.
func (s *Server) GetConversationDepth(c echo.Context) error {
	id := c.Param("id")

	_, groups, err := s.snapshot(c.Request().Context())
	if err != nil {
		s.logger.WithError(err).Error("failed to load relations")
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to load relations"})
	}

	g, ok := groups[id]
	if !ok || len(g.Messages) == 0 {
		return c.JSON(http.StatusNotFound, ErrorResponse{Error: "conversation not found"})
	}

	return c.JSON(http.StatusOK, DepthResponse{
		ConversationID: id,
		Depth:          depth.Estimate(g.Messages, g.Edges),
		Messages:       len(g.Messages),
		Edges:          len(g.Edges),
	})
}

// Refresh drops cached state, reloads the relations and recomputes the metrics.
func (s *Server) Refresh(c echo.Context) error {
	ctx := c.Request().Context()

	s.dropSnapshot()
	if err := s.cache.Delete(ctx, metricsCacheKey); err != nil {
		s.logger.WithError(err).Warn("metrics cache delete failed")
	}

	if _, err := s.computeMetrics(ctx); err != nil {
		s.logger.WithError(err).Error("failed to refresh metrics")
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to refresh"})
	}

	rel, _, err := s.snapshot(ctx)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to refresh"})
	}

	s.logger.WithField("subject", GetSubject(c)).Info("relations refreshed")
	return c.JSON(http.StatusOK, RefreshResponse{
		Success:       true,
		Conversations: len(rel.ConversationIDs()),
		Messages:      len(rel.Messages),
		Edges:         len(rel.Edges),
	})
}

func (s *Server) computeMetrics(ctx context.Context) ([]byte, error) {
	rel, _, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}

	report := metrics.Compute(rel, metrics.Options{DepthSample: s.depthSample})
	body, err := json.Marshal(report)
	if err != nil {
		return nil, fmt.Errorf("marshal metrics: %w", err)
	}

	if err := s.cache.Set(ctx, metricsCacheKey, body, s.cacheTTL); err != nil {
		s.logger.WithError(err).Warn("metrics cache write failed")
	}
	return body, nil
}
