// internal/server/server.go

package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"tweetpulse/internal/config"
	"tweetpulse/internal/logging"
	"tweetpulse/internal/server/handlers"
)

// Deps holds what the dashboard serves from
type Deps struct {
	Results handlers.ResultReader
	// Feed is optional; without it the live feed route is not registered
	Feed    handlers.EventSource
	Checks  map[string]handlers.HealthCheck
	Metrics http.Handler
	Logger  logging.Logger
}

// Server represents the HTTP server
type Server struct {
	server *http.Server
	router *chi.Mux
}

// NewServer creates the dashboard HTTP server
func NewServer(cfg config.ServerConfig, deps Deps) *Server {
	router := chi.NewRouter()

	// Middleware
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(requestLogger(deps.Logger))
	router.Use(recoverer(deps.Logger))

	// CORS configuration
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.CorsOrigins,
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	// Create handler dependencies
	sentimentHandler := handlers.NewSentimentHandler(deps.Results, cfg.RecentLimit, deps.Logger)
	dashboardHandler := handlers.NewDashboardHandler(deps.Results, cfg.RecentLimit, deps.Feed != nil, deps.Logger)

	// Dashboard
	router.Get("/", dashboardHandler.Index)

	// Routes
	router.Route("/api", func(r chi.Router) {
		r.Use(middleware.Timeout(60 * time.Second))

		// Health check
		r.Get("/health", handlers.HealthHandler("dashboard", deps.Checks))

		// API version
		r.Route("/v1", func(r chi.Router) {
			// Sentiments API
			r.Route("/sentiments", func(r chi.Router) {
				r.Get("/", sentimentHandler.ListRecent)
				r.Get("/{tweetID}", sentimentHandler.GetResult)
			})
		})
	})

	if deps.Metrics != nil {
		router.Handle("/metrics", deps.Metrics)
	}

	// WebSocket endpoint for the live feed
	if deps.Feed != nil {
		router.Get("/ws/sentiments", handlers.SentimentFeedHandler(deps.Feed, handlers.DefaultWebSocketConfig(), deps.Logger))
	}

	return newServer(fmt.Sprintf("%s:%d", cfg.Host, cfg.Port), router, cfg.ReadTimeout, cfg.WriteTimeout)
}

// NewMetricsServer creates the worker's listener for /metrics and /health
func NewMetricsServer(addr string, metrics http.Handler, checks map[string]handlers.HealthCheck, logger logging.Logger) *Server {
	router := chi.NewRouter()
	router.Use(recoverer(logger))

	router.Handle("/metrics", metrics)
	router.Get("/health", handlers.HealthHandler("worker", checks))

	return newServer(addr, router, 10*time.Second, 10*time.Second)
}

func newServer(addr string, router *chi.Mux, readTimeout, writeTimeout time.Duration) *Server {
	return &Server{
		server: &http.Server{
			Addr:         addr,
			Handler:      router,
			ReadTimeout:  readTimeout,
			WriteTimeout: writeTimeout,
		},
		router: router,
	}
}

// Addr returns the listen address
func (s *Server) Addr() string {
	return s.server.Addr
}

// Handler returns the router
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe starts the HTTP server
func (s *Server) ListenAndServe() error {
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
