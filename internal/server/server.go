package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/annexlab/cleanroom/internal/capability"
	"github.com/annexlab/cleanroom/internal/chat"
	"github.com/annexlab/cleanroom/internal/config"
	"github.com/annexlab/cleanroom/internal/diagram"
	"github.com/annexlab/cleanroom/internal/feeds"
	"github.com/annexlab/cleanroom/internal/knowledge"
	"github.com/annexlab/cleanroom/internal/logging"
	"github.com/annexlab/cleanroom/internal/metrics"
)

// AssetsPrefix is the URL prefix static assets are served under.
const AssetsPrefix = "/assets/"

// DefaultTimeout bounds every non-streaming request.
const DefaultTimeout = 60 * time.Second

// Deps are the feature services the server mounts. Any of them may be nil,
// in which case its routes are not registered.
type Deps struct {
	Chat      *chat.Service
	Feeds     *feeds.Service
	Knowledge *knowledge.Handlers
	Diagrams  *diagram.Handlers
	Visuals   *capability.Resolver
	Metrics   *metrics.Metrics
	Log       zerolog.Logger
}

// Server is the cleanroom HTTP API.
type Server struct {
	cfg        config.ServerConfig
	deps       Deps
	router     chi.Router
	httpServer *http.Server
	now        func() time.Time
}

// New creates a server with all routes registered.
func New(cfg config.ServerConfig, deps Deps) *Server {
	s := &Server{cfg: cfg, deps: deps, now: time.Now}
	s.router = s.buildRouter()
	return s
}

// buildRouter creates and configures the chi router with all routes.
func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logging.AccessLog(s.deps.Log))
	r.Use(s.deps.Metrics.Middleware)
	r.Use(middleware.Recoverer)
	r.Use(timeoutUnlessUpgrade(s.timeout()))

	corsOpts := cors.Options{
		AllowedOrigins:   []string{"http://localhost:*", "http://127.0.0.1:*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}
	if len(s.cfg.AllowedOrigins) > 0 {
		corsOpts.AllowedOrigins = s.cfg.AllowedOrigins
	}
	for _, o := range corsOpts.AllowedOrigins {
		if o == "*" {
			corsOpts.AllowCredentials = false
		}
	}
	r.Use(cors.Handler(corsOpts))

	r.Get("/api/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", s.deps.Metrics.Handler())
	r.Get("/.well-known/appspecific/com.chrome.devtools.json", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
	})

	if s.deps.Chat != nil {
		chat.RegisterRoutes(r, s.deps.Chat)
	}
	if s.deps.Feeds != nil {
		feeds.RegisterRoutes(r, s.deps.Feeds)
	}
	if s.deps.Knowledge != nil {
		knowledge.RegisterRoutes(r, s.deps.Knowledge)
	}
	if s.deps.Diagrams != nil {
		diagram.RegisterRoutes(r, s.deps.Diagrams)
	}
	if s.deps.Visuals != nil {
		r.Get("/api/visuals", s.handleVisuals)
		r.Get("/api/visuals/{name}", s.handleVisual)
	}
	if dir := s.cfg.AssetsDir; dir != "" {
		if st, err := os.Stat(dir); err == nil && st.IsDir() {
			r.Handle(AssetsPrefix+"*", http.StripPrefix(AssetsPrefix, http.FileServer(http.Dir(dir))))
		} else {
			s.deps.Log.Warn().Str("dir", dir).Msg("assets directory not found, static files disabled")
		}
	}

	return r
}

func (s *Server) timeout() time.Duration {
	if s.cfg.TimeoutSeconds > 0 {
		return time.Duration(s.cfg.TimeoutSeconds) * time.Second
	}
	return DefaultTimeout
}

// timeoutUnlessUpgrade applies middleware.Timeout to everything except
// websocket upgrades, which live for the length of the conversation.
func timeoutUnlessUpgrade(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		timed := middleware.Timeout(d)(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if websocket.IsWebSocketUpgrade(r) {
				next.ServeHTTP(w, r)
				return
			}
			timed.ServeHTTP(w, r)
		})
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":     true,
		"time":   s.now().UTC().Format(time.RFC3339),
		"chat":   s.deps.Chat != nil && s.deps.Chat.Available(),
		"vector": s.deps.Knowledge != nil && s.deps.Knowledge.Index.Available(),
	})
}

func (s *Server) handleVisuals(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"visuals": s.deps.Visuals.Names()})
}

func (s *Server) handleVisual(w http.ResponseWriter, r *http.Request) {
	v, err := s.deps.Visuals.Resolve(r.Context(), chi.URLParam(r, "name"))
	switch {
	case errors.Is(err, capability.ErrUnknownVisual):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, capability.ErrUnavailable):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
	default:
		writeJSON(w, http.StatusOK, v)
	}
}

// Router returns the chi router for registering additional routes.
func (s *Server) Router() chi.Router { return s.router }

// Start begins listening on the configured address. It returns nil once
// the server has been shut down.
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      120 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	s.deps.Log.Info().Str("addr", s.cfg.Addr).Msg("cleanroom server listening")
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server and releases open viewers.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.deps.Diagrams != nil && s.deps.Diagrams.Sessions != nil {
		s.deps.Diagrams.Sessions.CloseAll()
	}
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
