package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/aaaalabs/kinn-radar/internal/models"
	"github.com/aaaalabs/kinn-radar/internal/store"
	"log/slog"
)

// Handler serves the public event read surface and admin moderation.
type Handler struct {
	store     store.EventStore
	metrics   store.MetricsCollector
	logger    *slog.Logger
	startTime time.Time
	now       func() time.Time
}

func NewHandler(eventStore store.EventStore, metrics store.MetricsCollector, logger *slog.Logger) *Handler {
	return &Handler{
		store:     eventStore,
		metrics:   metrics,
		logger:    logger,
		startTime: time.Now(),
		now:       time.Now,
	}
}

// EventsResponse wraps the event list payload.
type EventsResponse struct {
	Events []models.EventRecord `json:"events"`
	Count  int                  `json:"count"`
}

// GetEventsHandler handles GET /api/events
func (h *Handler) GetEventsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	events, err := h.store.ListAll(r.Context())
	if err != nil {
		h.logger.Error("failed to list events", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	if status := r.URL.Query().Get("status"); status != "" {
		filtered := events[:0]
		for _, ev := range events {
			if string(ev.Status) == status {
				filtered = append(filtered, ev)
			}
		}
		events = filtered
	}

	sort.Slice(events, func(i, j int) bool {
		if events[i].Date != events[j].Date {
			return events[i].Date < events[j].Date
		}
		return events[i].Time < events[j].Time
	})

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*") // CORS for dev
	w.WriteHeader(http.StatusOK)

	response := EventsResponse{Events: events, Count: len(events)}
	if err := json.NewEncoder(w).Encode(response); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

// StatusUpdateRequest is the body of a moderation request.
type StatusUpdateRequest struct {
	Status string `json:"status"`
}

// UpdateEventStatusHandler handles PUT /api/events/:id/status
func (h *Handler) UpdateEventStatusHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	// Path shape: /api/events/{id}/status
	parts := strings.Split(r.URL.Path, "/")
	if len(parts) != 5 || parts[4] != "status" || parts[3] == "" {
		http.Error(w, "Event ID required", http.StatusBadRequest)
		return
	}
	eventID := parts[3]

	var req StatusUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	status := models.Status(req.Status)
	if status != models.StatusApproved && status != models.StatusRejected {
		http.Error(w, "Status must be approved or rejected", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	event, err := h.store.Get(ctx, eventID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			http.Error(w, "Event not found", http.StatusNotFound)
			return
		}
		h.logger.Error("failed to load event", "id", eventID, "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	if err := event.SetStatus(status, h.now()); err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}

	if err := h.store.Put(ctx, *event); err != nil {
		h.logger.Error("failed to persist status change", "id", eventID, "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	h.logger.Info("event status updated", "id", eventID, "status", status)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(event); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

// StatsResponse summarizes the stored events and pipeline counters.
type StatsResponse struct {
	TotalEvents    int              `json:"totalEvents"`
	AddedToday     int              `json:"addedToday"`
	AddedThisWeek  int              `json:"addedThisWeek"`
	UpcomingEvents int              `json:"upcomingEvents"`
	ByStatus       map[string]int   `json:"byStatus"`
	TopCategories  []NamedCount     `json:"topCategories"`
	TopSources     []NamedCount     `json:"topSources"`
	Pipeline       PipelineCounters `json:"pipeline"`
	UptimeSeconds  int64            `json:"uptimeSeconds"`
}

// NamedCount pairs a label with an occurrence count.
type NamedCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// PipelineCounters carries the global and today's ingestion counters.
type PipelineCounters struct {
	Global store.Counts `json:"global"`
	Today  store.Counts `json:"today"`
}

// GetStatsHandler handles GET /api/radar/stats
func (h *Handler) GetStatsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	events, err := h.store.ListAll(ctx)
	if err != nil {
		h.logger.Error("failed to list events for stats", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	now := h.now()
	today := now.Format(models.DateLayout)
	weekAgo := now.AddDate(0, 0, -7)

	stats := StatsResponse{
		TotalEvents:   len(events),
		ByStatus:      map[string]int{},
		UptimeSeconds: int64(time.Since(h.startTime).Seconds()),
	}

	categories := map[string]int{}
	sources := map[string]int{}
	for _, ev := range events {
		stats.ByStatus[string(ev.Status)]++
		if ev.Category != "" {
			categories[string(ev.Category)]++
		}
		if ev.Source != "" {
			sources[ev.Source]++
		}
		if ev.CreatedAt.Format(models.DateLayout) == today {
			stats.AddedToday++
		}
		if ev.CreatedAt.After(weekAgo) {
			stats.AddedThisWeek++
		}
		if ev.Date >= today {
			stats.UpcomingEvents++
		}
	}
	stats.TopCategories = topCounts(categories, 5)
	stats.TopSources = topCounts(sources, 5)

	if global, err := h.metrics.Global(ctx); err == nil {
		stats.Pipeline.Global = global
	}
	if daily, err := h.metrics.Daily(ctx, today); err == nil {
		stats.Pipeline.Today = daily
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(stats); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

// topCounts returns the highest-count entries, largest first, names
// breaking ties so the order is stable.
func topCounts(counts map[string]int, limit int) []NamedCount {
	out := make([]NamedCount, 0, len(counts))
	for name, count := range counts {
		out = append(out, NamedCount{Name: name, Count: count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Name < out[j].Name
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// CalendarEvent is the per-day calendar entry.
type CalendarEvent struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Time     string `json:"time"`
	Location string `json:"location"`
	Source   string `json:"source"`
	Color    string `json:"color"`
}

// CalendarResponse maps ISO dates to that day's events for one year.
type CalendarResponse struct {
	Year    int                        `json:"year"`
	Days    map[string][]CalendarEvent `json:"days"`
	Sources map[string]string          `json:"sources"` // source -> color
}

// sourceColors is the palette cycled over sources in name order.
var sourceColors = []string{
	"#2563eb", "#16a34a", "#d97706", "#dc2626", "#7c3aed",
	"#0891b2", "#be185d", "#4d7c0f", "#b45309", "#6d28d9",
}

// GetCalendarHandler handles GET /api/radar/calendar?year=
func (h *Handler) GetCalendarHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	year := h.now().Year()
	if raw := r.URL.Query().Get("year"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 2000 || parsed > 2100 {
			http.Error(w, "Invalid year", http.StatusBadRequest)
			return
		}
		year = parsed
	}

	events, err := h.store.ListAll(r.Context())
	if err != nil {
		h.logger.Error("failed to list events for calendar", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	prefix := strconv.Itoa(year) + "-"
	response := CalendarResponse{
		Year:    year,
		Days:    map[string][]CalendarEvent{},
		Sources: map[string]string{},
	}

	var yearEvents []models.EventRecord
	sourceSet := map[string]bool{}
	for _, ev := range events {
		if !strings.HasPrefix(ev.Date, prefix) || ev.Status == models.StatusRejected {
			continue
		}
		yearEvents = append(yearEvents, ev)
		if ev.Source != "" {
			sourceSet[ev.Source] = true
		}
	}

	names := make([]string, 0, len(sourceSet))
	for name := range sourceSet {
		names = append(names, name)
	}
	sort.Strings(names)
	for i, name := range names {
		response.Sources[name] = sourceColors[i%len(sourceColors)]
	}

	for _, ev := range yearEvents {
		response.Days[ev.Date] = append(response.Days[ev.Date], CalendarEvent{
			ID:       ev.ID,
			Title:    ev.Title,
			Time:     ev.Time,
			Location: ev.LocationOrCity(),
			Source:   ev.Source,
			Color:    response.Sources[ev.Source],
		})
	}
	for _, day := range response.Days {
		sort.Slice(day, func(i, j int) bool { return day[i].Time < day[j].Time })
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

// HealthzHandler handles GET /healthz
func (h *Handler) HealthzHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
