// Package server sets up the HTTP router, middleware, and request handlers.
package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/howard-nolan/llmrouter/internal/config"
	"github.com/howard-nolan/llmrouter/internal/provider"
)

// Server holds the HTTP router and all dependencies that handlers need.
type Server struct {
	router chi.Router
	cfg    *config.Config

	// registry routes a model name to the Provider that serves it. Every
	// handler that needs to dispatch a chat request goes through it
	// instead of holding its own copy of the provider map.
	registry *provider.Registry
}

// New creates a Server, wires up routes and middleware, and returns it
// ready to use as an http.Handler. registry is the fully built provider
// registry — main.go constructs it once at startup from the config file's
// provider entries.
func New(cfg *config.Config, registry *provider.Registry) *Server {
	s := &Server{cfg: cfg, registry: registry}
	s.routes()
	return s
}

// routes builds the chi router with all middleware and route definitions.
// This is conceptually like your Express app.use() / app.get() / app.post()
// setup, but gathered in one method so the routing table is easy to scan.
func (s *Server) routes() {
	r := chi.NewRouter()

	// --- Global middleware ---
	// middleware.Logger prints a log line for every request, similar to
	// morgan('dev') in Express. It logs method, path, status, and duration.
	r.Use(middleware.Logger)

	// middleware.Recoverer catches panics in handlers and returns a 500
	// instead of crashing the whole process. In Express, you'd use an
	// error-handling middleware like app.use((err, req, res, next) => ...).
	r.Use(middleware.Recoverer)

	// --- Routes ---
	r.Get("/health", s.handleHealth)
	r.Get("/metrics", promhttp.Handler().ServeHTTP)
	r.Get("/v1/models", s.handleListModels)
	r.Post("/v1/messages", s.handleMessages)
	r.Post("/v1/chat/completions", s.handleChatCompletions)

	s.router = r
}

// ServeHTTP makes Server satisfy the http.Handler interface. Every incoming
// request flows through this method, and we just delegate to chi's router.
//
// This is what allows main.go to pass our Server directly to
// http.Server{Handler: srv} — the stdlib needs anything that has a
// ServeHTTP(ResponseWriter, *Request) method.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
