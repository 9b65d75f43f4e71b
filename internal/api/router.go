package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/wonny/demandcast/internal/api/handlers"
	"github.com/wonny/demandcast/pkg/logger"
)

// NewRouter creates and configures the HTTP router.
func NewRouter(h *handlers.PipelineHandler, log *logger.Logger) http.Handler {
	r := mux.NewRouter()

	// Health check
	r.HandleFunc("/health", healthCheckHandler).Methods("GET")

	// API v1
	api := r.PathPrefix("/api").Subrouter()

	api.HandleFunc("/sessions", h.CreateSession).Methods("POST")
	api.HandleFunc("/sessions", h.ListSessions).Methods("GET")
	api.HandleFunc("/sessions/{id}/status", h.Status).Methods("GET")

	// Pipeline stages, in execution order
	api.HandleFunc("/sessions/{id}/dataset", h.UploadDataset).Methods("POST")
	api.HandleFunc("/sessions/{id}/preprocess", h.Preprocess).Methods("POST")
	api.HandleFunc("/sessions/{id}/features", h.BuildFeatures).Methods("POST")
	api.HandleFunc("/sessions/{id}/train", h.Train).Methods("POST")
	api.HandleFunc("/sessions/{id}/forecast", h.Forecast).Methods("POST")
	api.HandleFunc("/sessions/{id}/evaluate", h.Evaluate).Methods("POST")
	api.HandleFunc("/sessions/{id}/insights", h.Insights).Methods("POST")

	// Read-only views
	api.HandleFunc("/sessions/{id}/artifacts/{stage}", h.Artifact).Methods("GET")
	api.HandleFunc("/sessions/{id}/report", h.Report).Methods("GET")

	// Apply middleware
	r.Use(loggingMiddleware(log))
	r.Use(recoveryMiddleware(log))

	return r
}

// healthCheckHandler returns server health status
func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":  "ok",
		"service": "demandcast-api",
	})
}

// loggingMiddleware logs HTTP requests
func loggingMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			next.ServeHTTP(w, r)

			log.WithField("method", r.Method).
				WithField("path", r.URL.Path).
				WithField("duration", time.Since(start)).
				Debug("HTTP request")
		})
	}
}

// recoveryMiddleware recovers from panics
func recoveryMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					log.WithField("error", err).
						WithField("path", r.URL.Path).
						Error("Panic recovered")

					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					json.NewEncoder(w).Encode(map[string]string{
						"error": "Internal server error",
					})
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
