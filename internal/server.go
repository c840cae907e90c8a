package internal

import (
	"context"
	"embed"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/sirupsen/logrus"

	"project-tracker-api/internal/auth"
	"project-tracker-api/internal/config"
	"project-tracker-api/internal/handlers"
	"project-tracker-api/internal/store"
	"project-tracker-api/internal/workflow"
)

//go:embed openapi
var openapiFS embed.FS

type Server struct {
	Router     *chi.Mux
	Store      store.Store
	Projects   *workflow.Service
	JWTManager *auth.JWTManager
	Metrics    *Metrics
	Log        logrus.FieldLogger

	cfg *config.Config
	now func() time.Time
}

// Option customizes a Server.
type Option func(*serverOptions)

type serverOptions struct {
	notifier workflow.Notifier
	metrics  *Metrics
	log      logrus.FieldLogger
}

// WithNotifier delivers new-project notices through n.
func WithNotifier(n workflow.Notifier) Option {
	return func(o *serverOptions) { o.notifier = n }
}

// WithMetrics shares m with other components, such as the notifier.
func WithMetrics(m *Metrics) Option {
	return func(o *serverOptions) { o.metrics = m }
}

func WithLogger(l logrus.FieldLogger) Option {
	return func(o *serverOptions) { o.log = l }
}

// NewServer wires the project service onto st and mounts every route.
func NewServer(cfg *config.Config, st store.Store, opts ...Option) (*Server, error) {
	o := serverOptions{log: logrus.StandardLogger()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.metrics == nil {
		o.metrics = NewMetrics()
	}

	jwtManager := auth.NewJWTManager(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTAudience, cfg.JWTExpiry)
	if err := jwtManager.ValidateConfig(); err != nil {
		return nil, fmt.Errorf("JWT configuration validation failed: %w", err)
	}

	policy, err := workflow.ParsePolicy(cfg.StatusTransitions)
	if err != nil {
		return nil, err
	}

	svcOpts := []workflow.Option{
		workflow.WithPolicy(policy),
		workflow.WithRecorder(o.metrics),
		workflow.WithLogger(o.log),
	}
	if o.notifier != nil {
		svcOpts = append(svcOpts, workflow.WithNotifier(o.notifier))
	}

	s := &Server{
		Router:     chi.NewRouter(),
		Store:      st,
		Projects:   workflow.NewService(st, svcOpts...),
		JWTManager: jwtManager,
		Metrics:    o.metrics,
		Log:        o.log,
		cfg:        cfg,
		now:        time.Now,
	}
	s.routes()
	return s, nil
}

func (s *Server) routes() {
	r := s.Router

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(s.Log))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"Content-Disposition", "X-Token-Expires-At", "X-Token-Expires-In"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	if s.cfg.EnableMetrics {
		r.Use(s.Metrics.Middleware())
		r.Get("/metrics", s.Metrics.Handler().ServeHTTP)
	}

	r.Get("/health", s.health)
	s.mountDocs(r)

	r.Route("/api/auth", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			if s.cfg.AuthRateLimit > 0 {
				r.Use(newClientRateLimiter(s.cfg.AuthRateLimit).Middleware)
			}
			r.Post("/register", s.registerUser)
			r.Post("/login", s.loginUser)
		})
		r.With(auth.AuthMiddleware(s.JWTManager)).Get("/me", s.me)
	})

	exports := handlers.NewExportsHandler(s.Projects, parseListParams, s.Log)
	imports := handlers.NewImportsHandler(s.Projects, s.Log)

	r.Route("/api/projects", func(r chi.Router) {
		r.Use(auth.AuthMiddleware(s.JWTManager))

		r.Get("/", s.listProjects)
		r.Post("/", s.createProject)
		r.Get("/stats/overview", s.projectStats)
		r.Get("/export", exports.DownloadExcel)
		r.Post("/import", imports.UploadExcel)
		r.Post("/update", s.bulkUpdateStatus)
		r.Get("/details/{id}", s.getProject)
		r.Get("/{id}", s.getProject)
		r.Patch("/{id}", s.updateProject)
		r.Post("/{id}/transitions/{action}", s.transitionProject)
	})
}

// health reports liveness and whether the store answers.
func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := s.Store.Ping(ctx); err != nil {
		s.Log.WithError(err).Warn("health check failed")
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Close releases the store.
func (s *Server) Close(ctx context.Context) error {
	if s.Store != nil {
		return s.Store.Close(ctx)
	}
	return nil
}

// mountDocs serves the OpenAPI document and a Swagger UI page when enabled.
func (s *Server) mountDocs(r chi.Router) {
	if !s.cfg.EnableDocs {
		return
	}

	r.Get("/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		data, err := openapiFS.ReadFile("openapi/openapi.yaml")
		if err != nil {
			http.Error(w, "Failed to read OpenAPI document", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/x-yaml")
		_, _ = w.Write(data)
	})

	r.Get("/docs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(docsPage))
	})
}

const docsPage = `<!doctype html>
<html lang="en">
<head>
  <meta charset="utf-8">
  <title>Project Tracker API</title>
  <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5.9.0/swagger-ui.css">
</head>
<body>
  <div id="swagger-ui"></div>
  <script src="https://unpkg.com/swagger-ui-dist@5.9.0/swagger-ui-bundle.js"></script>
  <script>
    window.onload = function () {
      window.ui = SwaggerUIBundle({ url: '/openapi.yaml', dom_id: '#swagger-ui', deepLinking: true });
    };
  </script>
</body>
</html>`
