// Package api is the HTTP chassis for the Courier API: a chi router with
// the cross-cutting middleware (panic recovery, request ids, timeouts, body
// limits, request logging, idempotency keys), the JSON envelope helpers and the health
// endpoint. Domain handlers live in api/handlers and are mounted through
// V1RouteRegistrars.
package api

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"courier/internal/config"
)

// defaultRequestTimeout applies when the server write timeout is unset.
const defaultRequestTimeout = 29 * time.Second

var defaultRedactedHeaders = []string{
	"Authorization",
	"Cookie",
	"X-Api-Key",
}

// Server holds the router and its dependencies.
type Server struct {
	Config       *config.Config
	Logger       *slog.Logger
	Validator    *Validator
	HealthProbes []HealthProbe

	// Idempotency enables Idempotency-Key handling on /v1 POSTs when set.
	Idempotency IdempotencyStore

	// V1RouteRegistrars mount domain handlers under /v1. The binary fills
	// them in so this package never imports handler packages.
	V1RouteRegistrars []func(chi.Router)

	router *chi.Mux
}

func NewServer(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("config must not be nil")
	}
	if logger == nil {
		return nil, errors.New("logger must not be nil")
	}
	return &Server{
		Config:    cfg,
		Logger:    logger,
		Validator: NewValidator(logger),
		router:    chi.NewRouter(),
	}, nil
}

// MountRoutes registers middleware and every route. Call it once, after
// HealthProbes and V1RouteRegistrars are set.
//
// Middleware order:
//  1. RequestID      - correlation id for logs, errors and send job trace ids
//  2. Recoverer      - every panic below becomes a JSON 500
//  3. ContextTimeout - soft deadline below the HTTP write timeout
//  4. BodyLimit      - caps request bodies
//  5. RequestLogger  - one structured line per request
//
// /v1 routes additionally pass through IdempotencyMiddleware.
func (s *Server) MountRoutes() {
	s.router.Use(RequestIDMiddleware)
	s.router.Use(s.Recoverer)
	s.router.Use(ContextTimeoutMiddleware(s.requestTimeout()))
	s.router.Use(BodyLimitMiddleware(s.Config.Server.MaxBodyBytes))
	s.router.Use(RequestLogger(s.Logger, defaultRedactedHeaders))

	s.router.Route("/v1", func(r chi.Router) {
		r.Use(s.IdempotencyMiddleware)
		for _, registrar := range s.V1RouteRegistrars {
			registrar(r)
		}
	})
	s.router.Get("/health", s.HandleHealth)
	s.router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		Error(w, r, errRouteNotFound)
	})
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) requestTimeout() time.Duration {
	if wt := s.Config.Server.WriteTimeout; wt > time.Second {
		return wt - time.Second
	}
	return defaultRequestTimeout
}
