package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
	"github.com/thomiceli/gistapi/internal/config"
	"github.com/thomiceli/gistapi/internal/search"
	"github.com/thomiceli/gistapi/internal/validator"
)

type Server struct {
	echo *echo.Echo

	config   *config.Config
	searcher *search.Searcher
}

func NewServer(cfg *config.Config, searcher *search.Searcher) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = validator.NewValidator()

	s := &Server{echo: e, config: cfg, searcher: searcher}

	s.useCustomContext()
	s.registerMiddlewares()
	s.setRenderer()
	s.echo.HTTPErrorHandler = s.errorHandler

	s.registerRoutes()

	return s
}

func (s *Server) Start() {
	addr := s.config.HttpAddr()

	log.Info().Msg("Starting HTTP server on http://" + addr)
	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("Failed to start HTTP server")
	}
}

// Stop waits for in-flight searches to end, up to timeout.
func (s *Server) Stop(timeout time.Duration) {
	log.Info().Msg("Stopping HTTP server...")

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := s.echo.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Failed to stop HTTP server gracefully")
		if err := s.echo.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close HTTP server")
		}
	}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}
