package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"

	"github.com/nikhilbhutani/kokorotts/internal/api/handlers"
	"github.com/nikhilbhutani/kokorotts/internal/api/middleware"
	"github.com/nikhilbhutani/kokorotts/internal/auth"
	"github.com/nikhilbhutani/kokorotts/internal/tts"
	"github.com/nikhilbhutani/kokorotts/internal/users"
)

// Deps are the collaborators the HTTP surface is built from. Redis and
// Probe may be nil.
type Deps struct {
	Users          users.Repository
	Auth           *auth.Service
	Invoker        *tts.Invoker
	History        handlers.HistoryRecorder
	Redis          *redis.Client
	Probe          handlers.ToolProbe
	AllowedOrigins []string
	Logger         *slog.Logger
}

type Router struct {
	mux  *chi.Mux
	deps Deps
}

func NewRouter(deps Deps) *Router {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Router{mux: chi.NewRouter(), deps: deps}
}

func (rt *Router) Setup() http.Handler {
	r := rt.mux
	logger := rt.deps.Logger

	// Global middleware. CORS runs before Recover so a recovered panic
	// still leaves with the origin headers.
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging(logger))
	r.Use(middleware.CORS(middleware.NewCORSPolicy(rt.deps.AllowedOrigins), r))
	r.Use(middleware.Recover(logger))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeDetail(w, http.StatusNotFound, "Not Found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeDetail(w, http.StatusMethodNotAllowed, "Method Not Allowed")
	})

	// Health endpoints
	var db handlers.Pinger
	if rt.deps.Users != nil {
		db = rt.deps.Users
	}
	health := handlers.NewHealthHandler(db, rt.deps.Redis, rt.deps.Probe)
	r.Get("/", health.Root)
	r.Get("/health", health.Health)
	r.Get("/healthy", health.Healthy)
	r.Head("/healthy", health.Healthy)
	r.Get("/ready", health.Ready)

	authMW := auth.NewMiddleware(rt.deps.Auth, logger)

	// Synthesis
	ttsH := handlers.NewTTSHandler(rt.deps.Invoker, rt.deps.Invoker.Voice(), rt.deps.History, logger)
	r.With(authMW.Optional).Post("/tts", ttsH.Synthesize)
	r.Options("/tts", middleware.Preflight("POST, OPTIONS", "Content-Type, Authorization", time.Hour))

	// Generated artifacts
	r.Handle(tts.OutputURLPrefix+"/*", handlers.Outputs(tts.OutputURLPrefix, rt.deps.Invoker.OutputDir()))

	// Account routes
	authH := handlers.NewAuthHandler(rt.deps.Auth, logger)
	r.Route("/api/auth", func(r chi.Router) {
		r.Post("/register", authH.Register)
		r.Post("/login", authH.Login)

		r.Group(func(r chi.Router) {
			r.Use(authMW.Authenticate)
			r.Get("/me", authH.Me)
			r.Put("/preferences", authH.UpdatePreferences)
			r.Post("/favorite-voice/{name}", authH.AddFavoriteVoice)
		})
	})

	return r
}

func writeDetail(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"detail": msg})
}
