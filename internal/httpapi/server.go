// Package httpapi serves the projected page, the engine status, artwork
// thumbnails and metrics.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/genricoloni/onair/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 500
)

// StatusSource publishes the engine state
type StatusSource interface {
	Status() domain.Status
}

// Renderer writes the current page
type Renderer interface {
	Render(w io.Writer) error
}

// HistorySource returns the recent songs of a station
type HistorySource interface {
	History(key string, limit int) ([]domain.HistoryEntry, error)
}

// Options groups the collaborators of the server
type Options struct {
	Addr     string
	ArtDir   string
	Status   StatusSource
	Page     Renderer
	History  HistorySource // optional
	Gatherer prometheus.Gatherer
}

// Server is the daemon's HTTP surface
type Server struct {
	logger *zap.Logger
	opts   Options
	router *gin.Engine
	srv    *http.Server
}

// New builds the router; nothing listens until Start
func New(logger *zap.Logger, opts Options) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		logger: logger,
		opts:   opts,
		router: gin.New(),
	}
	s.router.Use(gin.Recovery(), requestLogger(logger))
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "onair"})
	})

	s.router.GET("/", s.getPage)
	s.router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.opts.Gatherer, promhttp.HandlerOpts{})))
	if s.opts.ArtDir != "" {
		s.router.Static("/art", s.opts.ArtDir)
	}

	api := s.router.Group("/api")
	{
		api.GET("/nowplaying", s.getNowPlaying)
		api.GET("/nowplaying/:station", s.getStation)
		api.GET("/history/:station", s.getHistory)
	}
}

// Handler exposes the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start listens synchronously so that a busy port fails startup, then
// serves in the background
func (s *Server) Start(ctx context.Context) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", s.opts.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.opts.Addr, err)
	}

	s.srv = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("HTTP server failed", zap.Error(err))
		}
	}()

	s.logger.Info("HTTP server listening", zap.String("addr", ln.Addr().String()))
	return nil
}

// Shutdown stops accepting connections and waits for active requests
func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

func (s *Server) getPage(c *gin.Context) {
	c.Header("Content-Type", "text/html; charset=utf-8")
	c.Status(http.StatusOK)
	if err := s.opts.Page.Render(c.Writer); err != nil {
		_ = c.Error(err)
		s.logger.Warn("Failed to render page", zap.Error(err))
	}
}

func (s *Server) getNowPlaying(c *gin.Context) {
	c.JSON(http.StatusOK, s.opts.Status.Status())
}

func (s *Server) getStation(c *gin.Context) {
	key := domain.StationKey(c.Param("station"))
	for _, st := range s.opts.Status.Status().Stations {
		if st.Key == key {
			c.JSON(http.StatusOK, st)
			return
		}
	}
	c.JSON(http.StatusNotFound, gin.H{"error": "station not subscribed"})
}

func (s *Server) getHistory(c *gin.Context) {
	if s.opts.History == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "history is disabled"})
		return
	}

	limit := defaultHistoryLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = min(n, maxHistoryLimit)
	}

	entries, err := s.opts.History.History(domain.StationKey(c.Param("station")), limit)
	if err != nil {
		s.logger.Error("Failed to read history", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read history"})
		return
	}
	if entries == nil {
		entries = []domain.HistoryEntry{}
	}
	c.JSON(http.StatusOK, entries)
}
