// Package server exposes bill extraction and comparison over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/gyeh/billcheck/internal/cache"
	"github.com/gyeh/billcheck/internal/document"
	"github.com/gyeh/billcheck/internal/hospital"
	"github.com/gyeh/billcheck/internal/worker"
)

// Version is reported by /health.
const Version = "0.1.0"

// Options wires the server's collaborators.
type Options struct {
	// Pipeline supplies extraction and, through its Comparer, comparison
	// and the hospital directory.
	Pipeline    *worker.Pipeline
	Uploads     document.Store
	Cache       cache.Store
	CORSOrigins []string
	MaxUploadMB int
	Logger      zerolog.Logger
}

// Server is the HTTP API.
type Server struct {
	Echo *echo.Echo

	pipeline  *worker.Pipeline
	hospitals *hospital.Directory
	uploads   document.Store
	cache     cache.Store
	maxUpload int64
	logger    zerolog.Logger
}

// New builds the echo instance and registers routes.
func New(opts Options) *Server {
	if opts.Cache == nil {
		opts.Cache = cache.Nop{}
	}
	if opts.MaxUploadMB <= 0 {
		opts.MaxUploadMB = 25
	}
	s := &Server{
		pipeline:  opts.Pipeline,
		uploads:   opts.Uploads,
		cache:     opts.Cache,
		maxUpload: int64(opts.MaxUploadMB) << 20,
		logger:    opts.Logger,
	}
	if opts.Pipeline != nil && opts.Pipeline.Comparer != nil {
		s.hospitals = opts.Pipeline.Comparer.Hospitals
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(Recovery(opts.Logger))
	e.Use(RequestID())
	e.Use(Logger(opts.Logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: opts.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost},
		AllowHeaders: []string{"Content-Type", RequestIDHeader},
	}))

	e.GET("/health", s.health)

	api := e.Group("/api")
	// Multipart framing needs a little room above the file limit.
	api.POST("/upload", s.upload, echomw.BodyLimit(fmt.Sprintf("%dM", opts.MaxUploadMB+1)))
	api.POST("/extract", s.extract)
	api.POST("/compare", s.compare)
	api.GET("/hospitals", s.listHospitals)
	api.GET("/hospitals/:id", s.getHospital)
	api.GET("/cache-stats", s.cacheStats)
	api.POST("/clear-cache", s.clearCache)

	s.Echo = e
	return s
}

// Start serves on addr until Shutdown.
func (s *Server) Start(addr string) error {
	s.logger.Info().Str("addr", addr).Msg("listening")
	if err := s.Echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.Echo.Shutdown(ctx)
}
