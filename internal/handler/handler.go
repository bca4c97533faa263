package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"github.com/rs/zerolog"

	"careportal/internal/auth"
	"careportal/internal/chat"
	"careportal/internal/config"
	"careportal/internal/realtime"
)

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler holds application dependencies
type Handler struct {
	Chat   *chat.Service
	Auth   *auth.Authenticator
	Hub    *realtime.Hub
	DB     Pinger
	Config config.Config
	Log    zerolog.Logger
}

// New creates a new Handler with the given dependencies
func New(svc *chat.Service, authn *auth.Authenticator, hub *realtime.Hub, db Pinger, cfg config.Config, log zerolog.Logger) *Handler {
	return &Handler{
		Chat:   svc,
		Auth:   authn,
		Hub:    hub,
		DB:     db,
		Config: cfg,
		Log:    log,
	}
}

// SetupRouter configures and returns the HTTP router
func (h *Handler) SetupRouter() *mux.Router {
	r := mux.NewRouter()

	// REST API
	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/conversations", h.requireAuth(h.ListConversations)).Methods("GET")
	api.HandleFunc("/conversations", h.requireAuth(h.CreateConversation)).Methods("POST")
	api.HandleFunc("/conversations/{id}", h.requireAuth(h.GetConversation)).Methods("GET")
	api.HandleFunc("/messages", h.requireAuth(h.CreateMessage)).Methods("POST")

	// WebSocket
	r.HandleFunc("/ws", h.HandleWebSocket).Methods("GET")

	r.HandleFunc("/healthz", h.Health).Methods("GET")

	return r
}

// WithCORS wraps router with the CORS policy for the configured origins.
func (h *Handler) WithCORS(router http.Handler) http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins:   h.Config.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		ExposedHeaders:   []string{"Content-Length"},
		MaxAge:           300,
		AllowCredentials: true,
	})
	return c.Handler(router)
}

// requireAuth resolves the bearer credential the same way the websocket
// handshake does and stores the user on the request context.
func (h *Handler) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, err := h.Auth.Authenticate(r.Context(), auth.TokenFromRequest(r))
		if err != nil {
			h.Log.Warn().Str("reason", auth.Reason(err)).Str("remote_addr", r.RemoteAddr).
				Msgf("[%s %s] ❌ Unauthorized", r.Method, r.URL.Path)
			writeError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		next(w, r.WithContext(auth.WithUser(r.Context(), user)))
	}
}

// Health handles GET /healthz
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.DB.Ping(r.Context()); err != nil {
		h.Log.Error().Err(err).Msg("[GET /healthz] ❌ Database unreachable")
		writeError(w, http.StatusServiceUnavailable, "Database unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
