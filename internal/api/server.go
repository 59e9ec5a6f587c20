// Package api exposes the verification pipeline over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ppiankov/truthgauge/internal/metrics"
	"github.com/ppiankov/truthgauge/internal/model"
)

// Analyzer runs one input through the pipeline
type Analyzer interface {
	Analyze(ctx context.Context, input model.RawInput) (*model.Analysis, error)
}

// ModelChecker is implemented by analyzers that can check their model backend
type ModelChecker interface {
	ModelAvailable(ctx context.Context) bool
}

// Reader reads back persisted analyses
type Reader interface {
	Get(ctx context.Context, id string) (*model.Analysis, error)
	List(ctx context.Context, limit int) ([]model.Analysis, error)
}

// Server is the HTTP surface. Reader may be nil when persistence is disabled.
type Server struct {
	cfg      model.ServerConfig
	analyzer Analyzer
	reader   Reader
	engine   *gin.Engine
}

// NewServer creates a server and registers its routes
func NewServer(cfg model.ServerConfig, analyzer Analyzer, reader Reader) *Server {
	s := &Server{
		cfg:      cfg,
		analyzer: analyzer,
		reader:   reader,
		engine:   gin.New(),
	}
	s.engine.Use(gin.Recovery(), requestLogger())
	s.registerRoutes()
	return s
}

// Handler returns the root handler
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) registerRoutes() {
	s.engine.GET("/health", s.handleHealth)
	s.engine.GET("/metrics", gin.WrapH(metrics.Handler()))

	v1 := s.engine.Group("/api/v1")
	v1.POST("/analyses", s.limitBody(), s.handleCreate)
	v1.GET("/analyses", s.handleList)
	v1.GET("/analyses/:id", s.handleGet)
}

// Run serves until ctx is canceled, then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Address,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server listening", "address", s.cfg.Address)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("listen: %w", err)
	case <-ctx.Done():
	}

	slog.Info("http server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// limitBody caps request bodies at the configured upload size
func (s *Server) limitBody() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.cfg.MaxUploadBytes > 0 {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.cfg.MaxUploadBytes)
		}
		c.Next()
	}
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		slog.Debug("http request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start))
	}
}
