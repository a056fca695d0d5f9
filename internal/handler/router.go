package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/prn-tf/darius-projects/internal/auth"
	"github.com/prn-tf/darius-projects/internal/metrics"
)

// Router assembles the HTTP API.
type Router struct {
	authHandler       *AuthHandler
	userHandler       *UserHandler
	projectHandler    *ProjectHandler
	permissionHandler *PermissionHandler
	guard             *auth.Guard
	metrics           *metrics.Metrics
	logger            zerolog.Logger
}

// RouterConfig contains configuration for the router.
type RouterConfig struct {
	AuthHandler       *AuthHandler
	UserHandler       *UserHandler
	ProjectHandler    *ProjectHandler
	PermissionHandler *PermissionHandler
	Guard             *auth.Guard
	Metrics           *metrics.Metrics
	Logger            zerolog.Logger
}

// NewRouter creates a new Router.
func NewRouter(config RouterConfig) *Router {
	return &Router{
		authHandler:       config.AuthHandler,
		userHandler:       config.UserHandler,
		projectHandler:    config.ProjectHandler,
		permissionHandler: config.PermissionHandler,
		guard:             config.Guard,
		metrics:           config.Metrics,
		logger:            config.Logger.With().Str("component", "router").Logger(),
	}
}

// Handler returns the main HTTP handler.
func (rt *Router) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(rt.requestLogger)
	r.Use(chimiddleware.Recoverer)

	r.Get("/health", rt.handleHealth)

	r.Route("/api", func(r chi.Router) {
		rt.authHandler.RegisterPublicRoutes(r)

		r.Group(func(r chi.Router) {
			r.Use(rt.guard.Authenticate)

			rt.authHandler.RegisterProtectedRoutes(r, rt.guard)
			rt.userHandler.RegisterRoutes(r, rt.guard)
			rt.projectHandler.RegisterRoutes(r, rt.guard)
			rt.permissionHandler.RegisterRoutes(r)
		})
	})

	return r
}

// handleHealth handles health check requests.
func (rt *Router) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"healthy"}`))
}

// requestLogger logs each request and feeds the HTTP metrics. The route
// pattern, not the raw path, is used as the metrics label to keep
// cardinality bounded.
func (rt *Router) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		duration := time.Since(start)
		pattern := chi.RouteContext(r.Context()).RoutePattern()
		if pattern == "" {
			pattern = "unmatched"
		}

		rt.metrics.ObserveHTTPRequest(r.Method, pattern, ww.Status(), duration)
		rt.logger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", duration).
			Str("request_id", chimiddleware.GetReqID(r.Context())).
			Msg("request")
	})
}
