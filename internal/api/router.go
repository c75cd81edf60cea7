// Package api - Router setup
package api

import (
	"net/http"

	"github.com/gorilla/mux"
)

// SetupRouter creates and configures the HTTP router
func (h *Handler) SetupRouter() *mux.Router {
	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(NotFoundHandler)

	// Apply global middleware
	r.Use(h.LoggingMiddleware)
	r.Use(h.RecoveryMiddleware)
	r.Use(CORSMiddleware)

	// Public routes
	r.HandleFunc("/", h.ServerInfo).Methods("GET")
	r.HandleFunc("/health", h.HealthCheck).Methods("GET")

	// API v1 routes, all behind the admin token
	protected := r.PathPrefix("/api/v1").Subrouter()
	protected.Use(h.AuthMiddleware)

	protected.HandleFunc("/session", h.GetSession).Methods("GET")
	protected.HandleFunc("/session/reopen", h.ReopenSession).Methods("POST")

	// Keys
	protected.HandleFunc("/keys", h.ListKeys).Methods("GET")
	protected.HandleFunc("/keys", h.CreateKey).Methods("POST")
	protected.HandleFunc("/keys/refresh", h.RefreshKeys).Methods("POST")
	protected.HandleFunc("/keys/ensure", h.EnsureKey).Methods("POST")
	protected.HandleFunc("/keys/{id}", h.RevokeKey).Methods("DELETE")

	// Audit
	protected.HandleFunc("/audit", h.GetAuditEvents).Methods("GET")
	protected.HandleFunc("/ws/events", h.HandleEventStream).Methods("GET")

	// Statistics
	protected.HandleFunc("/stats/clans/{tag}", h.GetClan).Methods("GET")
	protected.HandleFunc("/stats/players/{tag}", h.GetPlayer).Methods("GET")

	return r
}

// NotFoundHandler handles 404 errors
func NotFoundHandler(w http.ResponseWriter, r *http.Request) {
	respondError(w, http.StatusNotFound, "NOT_FOUND", "Resource not found")
}
