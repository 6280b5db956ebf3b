package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/aaaalabs/kinn-radar/internal/ingestion"
	"github.com/aaaalabs/kinn-radar/internal/models"
	"github.com/aaaalabs/kinn-radar/internal/store"
	"github.com/aaaalabs/kinn-radar/internal/sweep"
	"log/slog"
)

// EventPublisher pushes snapshots to the reporting spreadsheet.
type EventPublisher interface {
	PublishEvents(ctx context.Context, records []models.EventRecord) error
	PublishSources(ctx context.Context, sources []models.SourceDescriptor, metrics map[string]models.SourceMetrics) error
	PublishStats(ctx context.Context, global, daily store.Counts, date string) error
}

// Notifier sends best-effort notifications about newly added events.
type Notifier interface {
	NotifyNewEvents(ctx context.Context, source string, records []models.EventRecord)
}

// RunRecorder receives per-run outcome counts for instrumentation.
type RunRecorder interface {
	RecordRun(source string, added, rejected, duplicates int)
}

// RadarHandler exposes the ingestion, sweep and publish operations.
type RadarHandler struct {
	pipeline  *ingestion.Pipeline
	sweeper   *sweep.Sweeper
	provider  ingestion.SourceConfigProvider
	store     store.EventStore
	metrics   store.MetricsCollector
	publisher EventPublisher
	notifier  Notifier
	recorder  RunRecorder
	logger    *slog.Logger
	now       func() time.Time
}

func NewRadarHandler(
	pipeline *ingestion.Pipeline,
	sweeper *sweep.Sweeper,
	provider ingestion.SourceConfigProvider,
	eventStore store.EventStore,
	metrics store.MetricsCollector,
	publisher EventPublisher,
	notifier Notifier,
	recorder RunRecorder,
	logger *slog.Logger,
) *RadarHandler {
	return &RadarHandler{
		pipeline:  pipeline,
		sweeper:   sweeper,
		provider:  provider,
		store:     eventStore,
		metrics:   metrics,
		publisher: publisher,
		notifier:  notifier,
		recorder:  recorder,
		logger:    logger,
		now:       time.Now,
	}
}

// Envelope is the admin-action response body.
type Envelope struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Error   string      `json:"error,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

func (h *RadarHandler) writeEnvelope(w http.ResponseWriter, status int, env Envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(env); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *RadarHandler) recordRun(result ingestion.Result) {
	if h.recorder != nil && !result.DryRun {
		h.recorder.RecordRun(result.Source, result.Added, result.Rejected, result.Duplicates)
	}
}

// InboundHandler handles POST /api/radar/inbound, the newsletter webhook.
// The mail provider retries non-2xx responses, so failures that a retry
// cannot fix still answer 200 with the error in the body.
func (h *RadarHandler) InboundHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var email models.InboundEmail
	if err := json.NewDecoder(r.Body).Decode(&email); err != nil {
		h.writeEnvelope(w, http.StatusOK, Envelope{Success: false, Error: "invalid webhook payload"})
		return
	}

	result, err := h.pipeline.RunNewsletter(r.Context(), email)
	if err != nil {
		if errors.Is(err, ingestion.ErrWrongRecipient) {
			h.writeEnvelope(w, http.StatusOK, Envelope{Success: false, Error: "not addressed to the radar alias"})
			return
		}
		h.logger.Error("newsletter run failed", "from", email.From, "error", err)
		h.writeEnvelope(w, http.StatusOK, Envelope{Success: false, Error: "processing failed"})
		return
	}

	h.recordRun(result)
	if len(result.AddedEvents) > 0 && h.notifier != nil {
		h.notifier.NotifyNewEvents(r.Context(), result.Source, result.AddedEvents)
	}

	h.writeEnvelope(w, http.StatusOK, Envelope{Success: true, Data: result})
}

// FetchSourceHandler handles POST /api/radar/sources/{name}/fetch with an
// optional ?dry=1 test mode.
func (h *RadarHandler) FetchSourceHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	// Path shape: /api/radar/sources/{name}/fetch
	parts := strings.Split(r.URL.Path, "/")
	if len(parts) != 6 || parts[5] != "fetch" || parts[4] == "" {
		http.Error(w, "Source name required", http.StatusBadRequest)
		return
	}
	name := parts[4]

	opts := ingestion.Options{DryRun: r.URL.Query().Get("dry") == "1"}
	result, err := h.pipeline.RunDynamic(r.Context(), h.provider, name, opts)
	if err != nil {
		if errors.Is(err, ingestion.ErrUnknownSource) {
			h.writeEnvelope(w, http.StatusNotFound, Envelope{Success: false, Error: err.Error()})
			return
		}
		h.logger.Error("source fetch failed", "source", name, "error", err)
		h.writeEnvelope(w, http.StatusBadGateway, Envelope{Success: false, Error: err.Error()})
		return
	}

	h.recordRun(result)
	if len(result.AddedEvents) > 0 && h.notifier != nil {
		h.notifier.NotifyNewEvents(r.Context(), result.Source, result.AddedEvents)
	}

	h.writeEnvelope(w, http.StatusOK, Envelope{Success: true, Data: result})
}

// FetchAllHandler handles POST /api/radar/fetch-all
func (h *RadarHandler) FetchAllHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	results, err := h.pipeline.RunAll(r.Context(), h.provider, ingestion.Options{})
	if err != nil {
		h.logger.Error("fetch-all failed", "error", err)
		h.writeEnvelope(w, http.StatusInternalServerError, Envelope{Success: false, Error: err.Error()})
		return
	}

	for _, result := range results {
		h.recordRun(result)
		if len(result.AddedEvents) > 0 && h.notifier != nil {
			h.notifier.NotifyNewEvents(r.Context(), result.Source, result.AddedEvents)
		}
	}

	h.writeEnvelope(w, http.StatusOK, Envelope{Success: true, Data: results})
}

// SweepResponse reports store sizes around a cleanup pass.
type SweepResponse struct {
	Before int64        `json:"before"`
	After  int64        `json:"after"`
	Result sweep.Result `json:"result"`
}

// SweepHandler handles POST /api/radar/sweep
func (h *RadarHandler) SweepHandler(w http.ResponseWriter, r *http.Request) {
	h.runCleanup(w, r, h.sweeper.RemoveDuplicates)
}

// PruneHandler handles POST /api/radar/prune
func (h *RadarHandler) PruneHandler(w http.ResponseWriter, r *http.Request) {
	h.runCleanup(w, r, h.sweeper.PruneExpired)
}

func (h *RadarHandler) runCleanup(w http.ResponseWriter, r *http.Request, pass func(context.Context) (sweep.Result, error)) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	before, err := h.store.Count(ctx)
	if err != nil {
		h.logger.Error("failed to count events", "error", err)
		h.writeEnvelope(w, http.StatusInternalServerError, Envelope{Success: false, Error: "store unavailable"})
		return
	}

	result, err := pass(ctx)
	if err != nil {
		h.logger.Error("cleanup pass failed", "error", err)
		h.writeEnvelope(w, http.StatusInternalServerError, Envelope{Success: false, Error: err.Error()})
		return
	}

	after, err := h.store.Count(ctx)
	if err != nil {
		after = before - int64(result.Removed)
	}

	h.writeEnvelope(w, http.StatusOK, Envelope{
		Success: true,
		Data:    SweepResponse{Before: before, After: after, Result: result},
	})
}

// PublishHandler handles POST /api/radar/publish, pushing all three tabs
// to the spreadsheet.
func (h *RadarHandler) PublishHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if h.publisher == nil {
		h.writeEnvelope(w, http.StatusServiceUnavailable, Envelope{Success: false, Error: "sheet publishing not configured"})
		return
	}

	ctx := r.Context()
	events, err := h.store.ListAll(ctx)
	if err != nil {
		h.logger.Error("failed to list events for publish", "error", err)
		h.writeEnvelope(w, http.StatusInternalServerError, Envelope{Success: false, Error: "store unavailable"})
		return
	}

	if err := h.publisher.PublishEvents(ctx, events); err != nil {
		h.logger.Error("event publish failed", "error", err)
		h.writeEnvelope(w, http.StatusBadGateway, Envelope{Success: false, Error: err.Error()})
		return
	}

	// Sources and stats tabs are best-effort once the events landed.
	if h.provider != nil {
		if sources, err := h.provider.Active(ctx); err == nil {
			sourceMetrics := make(map[string]models.SourceMetrics, len(sources))
			for _, src := range sources {
				if m, err := h.metrics.Source(ctx, src.Name); err == nil {
					sourceMetrics[src.Name] = m
				}
			}
			if err := h.publisher.PublishSources(ctx, sources, sourceMetrics); err != nil {
				h.logger.Warn("source publish failed", "error", err)
			}
		}
	}
	today := h.now().Format(models.DateLayout)
	global, _ := h.metrics.Global(ctx)
	daily, _ := h.metrics.Daily(ctx, today)
	if err := h.publisher.PublishStats(ctx, global, daily, today); err != nil {
		h.logger.Warn("stats publish failed", "error", err)
	}

	h.writeEnvelope(w, http.StatusOK, Envelope{
		Success: true,
		Message: "published",
		Data:    map[string]int{"events": len(events)},
	})
}
