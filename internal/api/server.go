// Package api assembles the HTTP server: the JSON/form API under /api,
// the server rendered pages at the root and the embedded static assets.
package api

import (
	"context"
	"database/sql"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/entdecider/entdecider/internal/collection"
	"github.com/entdecider/entdecider/internal/config"
	"github.com/entdecider/entdecider/internal/extractor"
	"github.com/entdecider/entdecider/internal/extractor/rss"
	"github.com/entdecider/entdecider/internal/extractor/tvmaze"
	"github.com/entdecider/entdecider/internal/extractor/youtube"
	"github.com/entdecider/entdecider/internal/media"
	"github.com/entdecider/entdecider/internal/preferences"
	"github.com/entdecider/entdecider/internal/tag"
	"github.com/entdecider/entdecider/internal/thumbnail"
	"github.com/entdecider/entdecider/internal/views"
	"github.com/entdecider/entdecider/web"
)

// Server handles all HTTP requests of the application.
type Server struct {
	echo   *echo.Echo
	db     *sql.DB
	logger zerolog.Logger
	cfg    *config.Config

	// Services
	mediaService      *media.Service
	collectionService *collection.Service
	tagService        *tag.Service
	thumbnailService  *thumbnail.Service
	registry          *extractor.Registry
	generator         *preferences.Generator
}

// NewServer creates the server with all services and routes wired up.
func NewServer(db *sql.DB, cfg *config.Config, logger zerolog.Logger) (*Server, error) {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		echo:   e,
		db:     db,
		logger: logger,
		cfg:    cfg,
	}

	// Initialize services
	s.mediaService = media.NewService(db, logger)
	s.collectionService = collection.NewService(db, logger)
	s.tagService = tag.NewService(db, logger)
	s.thumbnailService = thumbnail.NewService(db, logger)

	// Initialize the extractor registry. Specific sources come first,
	// the RSS source catches any remaining feed URI.
	s.registry = extractor.NewRegistry(s.mediaService, s.collectionService, s.thumbnailService, logger)
	tvmazeClient := tvmaze.NewClient(cfg.Extractors, logger)
	s.registry.RegisterMedia(tvmaze.NewMediaSource(tvmazeClient))
	s.registry.RegisterMedia(youtube.New(cfg.Extractors, logger))
	s.registry.RegisterCollection(tvmaze.NewCollectionSource(tvmazeClient))
	s.registry.RegisterCollection(rss.New(cfg.Extractors, logger))

	// Initialize the preference score generator
	s.generator = preferences.NewGenerator(s.mediaService, s.collectionService, s.tagService, logger)

	s.setupMiddleware()
	if err := s.setupRoutes(); err != nil {
		return nil, err
	}

	return s, nil
}

// setupMiddleware configures Echo middleware.
func (s *Server) setupMiddleware() {
	// Recovery middleware
	s.echo.Use(middleware.Recover())

	// Request ID
	s.echo.Use(middleware.RequestID())

	// Cap form and mass extraction bodies
	s.echo.Use(middleware.BodyLimit("2M"))

	// Request logging
	s.echo.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:      true,
		LogStatus:   true,
		LogLatency:  true,
		LogMethod:   true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			if v.Error != nil {
				s.logger.Error().
					Str("method", v.Method).
					Str("uri", v.URI).
					Int("status", v.Status).
					Dur("latency", v.Latency).
					Err(v.Error).
					Msg("request error")
			} else {
				s.logger.Info().
					Str("method", v.Method).
					Str("uri", v.URI).
					Int("status", v.Status).
					Dur("latency", v.Latency).
					Msg("request")
			}
			return nil
		},
	}))

	// Gzip compression
	s.echo.Use(middleware.GzipWithConfig(middleware.GzipConfig{
		Level: 5,
	}))
}

// setupRoutes configures API, page and asset routes.
func (s *Server) setupRoutes() error {
	// Health check
	s.echo.GET("/health", s.healthCheck)

	// API group
	api := s.echo.Group("/api")

	// Media routes
	mediaHandlers := media.NewHandlers(s.mediaService)
	mediaHandlers.RegisterRoutes(api.Group("/media"))

	// Collection routes
	collectionHandlers := collection.NewHandlers(s.collectionService)
	collectionHandlers.RegisterRoutes(api.Group("/collection"))

	// Tag routes
	tagHandlers := tag.NewHandlers(s.tagService)
	tagHandlers.RegisterRoutes(api.Group("/tag"))

	// Extraction and refresh routes, these span media and collections
	extractorHandlers := extractor.NewHandlers(s.registry, s.mediaService, s.collectionService)
	extractorHandlers.RegisterRoutes(api)

	// Thumbnails are served outside the API group
	thumbnailHandlers := thumbnail.NewHandlers(s.thumbnailService)
	thumbnailHandlers.RegisterRoutes(s.echo.Group("/thumbnail"))

	// Server rendered pages at the root
	viewHandlers, err := views.NewHandlers(s.mediaService, s.collectionService, s.tagService, s.registry, s.generator, s.logger)
	if err != nil {
		return err
	}
	viewHandlers.RegisterRoutes(s.echo)

	// Embedded static assets
	static, err := web.Static()
	if err != nil {
		return err
	}
	s.echo.StaticFS("/static", static)

	return nil
}

// Start begins listening for HTTP requests.
func (s *Server) Start(address string) error {
	s.logger.Info().Str("address", address).Msg("starting HTTP server")
	return s.echo.Start(address)
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info().Msg("shutting down HTTP server")
	return s.echo.Shutdown(ctx)
}

// Echo returns the underlying Echo instance.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

// Registry returns the extractor registry, the scheduler refreshes
// collections through it.
func (s *Server) Registry() *extractor.Registry {
	return s.registry
}

// Collections returns the collection service.
func (s *Server) Collections() *collection.Service {
	return s.collectionService
}

// Thumbnails returns the thumbnail service.
func (s *Server) Thumbnails() *thumbnail.Service {
	return s.thumbnailService
}

func (s *Server) healthCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}
