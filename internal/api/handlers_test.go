package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aaaalabs/kinn-radar/internal/models"
	"github.com/aaaalabs/kinn-radar/internal/store"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func seedEvent(t *testing.T, mem *store.MemoryStore, rec models.EventRecord) models.EventRecord {
	t.Helper()
	if rec.ID == "" {
		rec.ID = rec.Key()
	}
	if rec.Status == "" {
		rec.Status = models.StatusPending
	}
	if err := mem.Put(context.Background(), rec); err != nil {
		t.Fatalf("seed event: %v", err)
	}
	return rec
}

func TestGetEventsHandler(t *testing.T) {
	mem := store.NewMemoryStore()
	seedEvent(t, mem, models.EventRecord{Title: "Later", Date: "2026-10-02", Time: "18:00", City: "Innsbruck"})
	seedEvent(t, mem, models.EventRecord{Title: "Earlier", Date: "2026-10-01", Time: "18:00", City: "Innsbruck"})
	approved := seedEvent(t, mem, models.EventRecord{Title: "Approved", Date: "2026-10-03", Time: "18:00", City: "Innsbruck", Status: models.StatusApproved})

	h := NewHandler(mem, mem, testLogger())

	rr := httptest.NewRecorder()
	h.GetEventsHandler(rr, httptest.NewRequest(http.MethodGet, "/api/events", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}

	var resp EventsResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Count != 3 {
		t.Errorf("count = %d, want 3", resp.Count)
	}
	if resp.Events[0].Title != "Earlier" {
		t.Errorf("events not date-sorted, first = %q", resp.Events[0].Title)
	}

	// Status filter
	rr = httptest.NewRecorder()
	h.GetEventsHandler(rr, httptest.NewRequest(http.MethodGet, "/api/events?status=approved", nil))
	resp = EventsResponse{}
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Count != 1 || resp.Events[0].ID != approved.ID {
		t.Errorf("status filter returned %+v", resp)
	}
}

func TestUpdateEventStatusHandler(t *testing.T) {
	mem := store.NewMemoryStore()
	rec := seedEvent(t, mem, models.EventRecord{Title: "Pending Event", Date: "2026-10-01", City: "Innsbruck"})

	h := NewHandler(mem, mem, testLogger())
	h.now = func() time.Time { return time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC) }

	put := func(id, body string) *httptest.ResponseRecorder {
		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPut, "/api/events/"+id+"/status", strings.NewReader(body))
		h.UpdateEventStatusHandler(rr, req)
		return rr
	}

	if rr := put(rec.ID, `{"status":"approved"}`); rr.Code != http.StatusOK {
		t.Fatalf("approve status = %d, body = %s", rr.Code, rr.Body)
	}

	stored, err := mem.Get(context.Background(), rec.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if stored.Status != models.StatusApproved {
		t.Errorf("status = %s", stored.Status)
	}
	if stored.ApprovedAt == nil || stored.StatusUpdatedAt == nil {
		t.Error("moderation timestamps not set")
	}

	// Terminal states reject further transitions.
	if rr := put(rec.ID, `{"status":"rejected"}`); rr.Code != http.StatusConflict {
		t.Errorf("re-moderation status = %d, want 409", rr.Code)
	}

	if rr := put("missing-id", `{"status":"approved"}`); rr.Code != http.StatusNotFound {
		t.Errorf("unknown id status = %d, want 404", rr.Code)
	}

	if rr := put(rec.ID, `{"status":"pending"}`); rr.Code != http.StatusBadRequest {
		t.Errorf("invalid target status = %d, want 400", rr.Code)
	}
}

func TestGetStatsHandler(t *testing.T) {
	mem := store.NewMemoryStore()
	now := time.Date(2026, 9, 10, 12, 0, 0, 0, time.UTC)

	seedEvent(t, mem, models.EventRecord{Title: "A", Date: "2026-09-15", City: "Innsbruck", Category: models.CategoryAI, Source: "aitirol.at", CreatedAt: now})
	seedEvent(t, mem, models.EventRecord{Title: "B", Date: "2026-09-16", City: "Innsbruck", Category: models.CategoryAI, Source: "aitirol.at", CreatedAt: now.AddDate(0, 0, -3), Status: models.StatusApproved})
	seedEvent(t, mem, models.EventRecord{Title: "C", Date: "2026-08-01", City: "Innsbruck", Category: models.CategoryTech, Source: "startup.tirol", CreatedAt: now.AddDate(0, 0, -30)})

	h := NewHandler(mem, mem, testLogger())
	h.now = func() time.Time { return now }

	rr := httptest.NewRecorder()
	h.GetStatsHandler(rr, httptest.NewRequest(http.MethodGet, "/api/radar/stats", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}

	var stats StatsResponse
	if err := json.NewDecoder(rr.Body).Decode(&stats); err != nil {
		t.Fatalf("decode: %v", err)
	}

	if stats.TotalEvents != 3 {
		t.Errorf("total = %d", stats.TotalEvents)
	}
	if stats.AddedToday != 1 || stats.AddedThisWeek != 2 {
		t.Errorf("added today = %d, week = %d", stats.AddedToday, stats.AddedThisWeek)
	}
	if stats.UpcomingEvents != 2 {
		t.Errorf("upcoming = %d", stats.UpcomingEvents)
	}
	if stats.ByStatus["pending"] != 2 || stats.ByStatus["approved"] != 1 {
		t.Errorf("byStatus = %v", stats.ByStatus)
	}
	if len(stats.TopCategories) == 0 || stats.TopCategories[0].Name != "AI" || stats.TopCategories[0].Count != 2 {
		t.Errorf("topCategories = %v", stats.TopCategories)
	}
	if len(stats.TopSources) == 0 || stats.TopSources[0].Name != "aitirol.at" {
		t.Errorf("topSources = %v", stats.TopSources)
	}
}

func TestGetCalendarHandler(t *testing.T) {
	mem := store.NewMemoryStore()
	seedEvent(t, mem, models.EventRecord{Title: "Morning", Date: "2026-09-15", Time: "09:00", City: "Innsbruck", Source: "aitirol.at"})
	seedEvent(t, mem, models.EventRecord{Title: "Evening", Date: "2026-09-15", Time: "19:00", City: "Innsbruck", Source: "startup.tirol"})
	seedEvent(t, mem, models.EventRecord{Title: "Rejected", Date: "2026-09-16", Time: "18:00", City: "Innsbruck", Source: "aitirol.at", Status: models.StatusRejected})
	seedEvent(t, mem, models.EventRecord{Title: "Other Year", Date: "2025-09-15", Time: "18:00", City: "Innsbruck", Source: "aitirol.at"})

	h := NewHandler(mem, mem, testLogger())

	rr := httptest.NewRecorder()
	h.GetCalendarHandler(rr, httptest.NewRequest(http.MethodGet, "/api/radar/calendar?year=2026", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}

	var cal CalendarResponse
	if err := json.NewDecoder(rr.Body).Decode(&cal); err != nil {
		t.Fatalf("decode: %v", err)
	}

	if cal.Year != 2026 {
		t.Errorf("year = %d", cal.Year)
	}
	day := cal.Days["2026-09-15"]
	if len(day) != 2 {
		t.Fatalf("day entries = %d, want 2", len(day))
	}
	if day[0].Title != "Morning" {
		t.Errorf("day not time-sorted: %v", day)
	}
	if len(cal.Days["2026-09-16"]) != 0 {
		t.Error("rejected event must not appear")
	}
	if len(cal.Sources) != 2 {
		t.Errorf("sources = %v", cal.Sources)
	}
	if day[0].Color == "" || day[0].Color == day[1].Color {
		t.Errorf("per-source colors missing or identical: %v", day)
	}

	rr = httptest.NewRecorder()
	h.GetCalendarHandler(rr, httptest.NewRequest(http.MethodGet, "/api/radar/calendar?year=banana", nil))
	if rr.Code != http.StatusBadRequest {
		t.Errorf("invalid year status = %d, want 400", rr.Code)
	}
}
