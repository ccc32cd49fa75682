// Package server exposes the read-only HTTP API over the pipeline's store.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"newspulse/internal/core"
	"newspulse/internal/logger"
	"newspulse/internal/store"
)

const gracefulShutdownTimeout = 10 * time.Second

// Server serves topics, insights, health and metrics.
type Server struct {
	echo  *echo.Echo
	store *store.Store
	addr  string
}

// New builds the server and binds its routes.
func New(s *store.Store, host string, port int) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())

	srv := &Server{
		echo:  e,
		store: s,
		addr:  fmt.Sprintf("%s:%d", host, port),
	}

	e.GET("/topics", srv.topicsHandler)
	e.GET("/topics/:id/insights", srv.insightsHandler)
	e.GET("/healthz", srv.healthHandler)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	return srv
}

// Run starts the listener and shuts it down gracefully when the context is
// cancelled.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info("api server listening", "addr", s.addr)
		if err := s.echo.Start(s.addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()
	if err := s.echo.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	logger.Info("api server stopped")
	return <-errCh
}

// topicsHandler returns the topics of the latest ranking in rank order. With
// no ranking yet it returns an empty list, not an error.
func (s *Server) topicsHandler(c echo.Context) error {
	latest, err := s.store.LatestRanking()
	if err != nil {
		logger.Error("failed to load latest ranking", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "internal server error"})
	}
	if latest == nil {
		return c.JSON(http.StatusOK, map[string]any{"topics": []any{}})
	}

	topics, err := s.store.RankedTopics(latest.ID)
	if err != nil {
		logger.Error("failed to load ranked topics", err, "ranking_id", latest.ID)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "internal server error"})
	}

	return c.JSON(http.StatusOK, map[string]any{
		"ranking_id": latest.ID,
		"created_at": latest.CreatedAt,
		"topics":     topics,
	})
}

// insightsHandler returns every insight of a topic.
func (s *Server) insightsHandler(c echo.Context) error {
	var topicID int64
	if err := echo.PathParamsBinder(c).Int64("id", &topicID).BindError(); err != nil || topicID <= 0 {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid topic id"})
	}

	topic, err := s.store.TopicByID(topicID)
	if err != nil {
		logger.Error("failed to load topic", err, "topic_id", topicID)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "internal server error"})
	}
	if topic == nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "topic not found"})
	}

	insights, err := s.store.InsightsByTopic(topicID)
	if err != nil {
		logger.Error("failed to load insights", err, "topic_id", topicID)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "internal server error"})
	}
	if insights == nil {
		insights = []core.Insight{}
	}

	return c.JSON(http.StatusOK, map[string]any{
		"topic":    topic,
		"insights": insights,
	})
}

func (s *Server) healthHandler(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}
