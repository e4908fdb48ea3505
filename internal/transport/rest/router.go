package rest

import (
	"net/http"
	"partyquest/internal/service"
	"partyquest/internal/transport/rest/handler"
	"partyquest/internal/transport/rest/middleware"
	"partyquest/internal/transport/ws"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// Container holds all dependencies for the router
type Container struct {
	AuthService        *service.AuthService
	RoomService        *service.RoomService
	GameService        *service.GameService
	WSHub              *ws.Hub
	WSHandler          *ws.Handler
	CORSAllowedOrigins string
	Logger             *zap.SugaredLogger
}

// NewRouter creates the API router with all endpoints
func NewRouter(c *Container) http.Handler {
	r := mux.NewRouter()

	// Initialize handlers
	gameHandler := handler.NewGameHandler(c.GameService, c.WSHub)
	sessionHandler := handler.NewSessionHandler(c.RoomService, c.WSHub)

	// Initialize middleware
	authMW := middleware.NewAuthMiddleware(c.AuthService)

	// CORS middleware (apply first)
	r.Use(corsMiddleware(c.CORSAllowedOrigins))
	r.Use(accessLog(c.Logger))

	// Health check
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	}).Methods("GET")

	r.HandleFunc("/metrics", func(w http.ResponseWriter, r *http.Request) {
		handler.WriteMetrics(w, c.WSHub.Metrics().Snapshot())
	}).Methods("GET")

	// API v1 routes
	v1 := r.PathPrefix("/v1").Subrouter()

	// WebSocket route (token in query param when auth is enabled)
	v1.HandleFunc("/ws", c.WSHandler.ServeWS).Methods("GET")

	playerRoutes := v1.NewRoute().Subrouter()
	playerRoutes.Use(authMW.RequirePlayer)

	playerRoutes.HandleFunc("/games/save", gameHandler.Save).Methods("POST", "OPTIONS")
	playerRoutes.HandleFunc("/games/users/{userId}", gameHandler.ListByUser).Methods("GET", "OPTIONS")
	playerRoutes.HandleFunc("/games/{sessionId}", gameHandler.Get).Methods("GET", "OPTIONS")
	playerRoutes.HandleFunc("/sessions/{sessionId}/leave", sessionHandler.Leave).Methods("POST", "OPTIONS")

	return r
}

func corsMiddleware(allowedOrigins string) mux.MiddlewareFunc {
	if allowedOrigins == "" {
		allowedOrigins = "*"
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", allowedOrigins)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func accessLog(logger *zap.SugaredLogger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)
			logger.Debugw("http request", "method", r.Method, "path", r.URL.Path, "took", time.Since(start))
		})
	}
}
