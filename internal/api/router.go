package api

import (
	"net/http"
	"strings"

	"github.com/aaaalabs/kinn-radar/internal/auth"
	"github.com/aaaalabs/kinn-radar/internal/ingestion"
	"github.com/aaaalabs/kinn-radar/internal/store"
	"github.com/aaaalabs/kinn-radar/internal/sweep"
	"log/slog"
)

// SetupRoutes configures all API routes
func SetupRoutes(
	mux *http.ServeMux,
	eventStore store.EventStore,
	metrics store.MetricsCollector,
	pipeline *ingestion.Pipeline,
	sweeper *sweep.Sweeper,
	provider ingestion.SourceConfigProvider,
	publisher EventPublisher,
	notifier Notifier,
	recorder RunRecorder,
	authConfig auth.Config,
	logger *slog.Logger,
) {
	handler := NewHandler(eventStore, metrics, logger)
	radarHandler := NewRadarHandler(pipeline, sweeper, provider, eventStore, metrics, publisher, notifier, recorder, logger)
	authHandler := NewAuthHandler(authConfig, logger)

	authMiddleware := auth.AuthMiddleware(authConfig)
	admin := func(h http.HandlerFunc) http.Handler {
		return authMiddleware(h)
	}

	// Authentication routes (public)
	mux.HandleFunc("/api/auth/login", authHandler.Login)
	mux.Handle("/api/auth/validate", admin(authHandler.ValidateToken))

	// Event routes (public for reading)
	mux.HandleFunc("/api/events", handler.GetEventsHandler)
	mux.HandleFunc("/api/events/", func(w http.ResponseWriter, r *http.Request) {
		// Status updates require auth
		if strings.HasSuffix(r.URL.Path, "/status") && r.Method == http.MethodPut {
			admin(handler.UpdateEventStatusHandler).ServeHTTP(w, r)
			return
		}
		http.Error(w, "Not found", http.StatusNotFound)
	})

	// Radar read surfaces (public)
	mux.HandleFunc("/api/radar/calendar", handler.GetCalendarHandler)
	mux.HandleFunc("/api/radar/stats", handler.GetStatsHandler)

	// Inbound webhook: authenticated by the alias gate, not by JWT, since
	// the mail provider cannot log in.
	mux.HandleFunc("/api/radar/inbound", radarHandler.InboundHandler)

	// Admin pipeline operations
	mux.Handle("/api/radar/sources/", admin(radarHandler.FetchSourceHandler))
	mux.Handle("/api/radar/fetch-all", admin(radarHandler.FetchAllHandler))
	mux.Handle("/api/radar/sweep", admin(radarHandler.SweepHandler))
	mux.Handle("/api/radar/prune", admin(radarHandler.PruneHandler))
	mux.Handle("/api/radar/publish", admin(radarHandler.PublishHandler))

	// Health check
	mux.HandleFunc("/healthz", handler.HealthzHandler)
}
