package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aaaalabs/kinn-radar/internal/extraction"
	"github.com/aaaalabs/kinn-radar/internal/ingestion"
	"github.com/aaaalabs/kinn-radar/internal/models"
	"github.com/aaaalabs/kinn-radar/internal/store"
	"github.com/aaaalabs/kinn-radar/internal/sweep"
	"github.com/aaaalabs/kinn-radar/internal/validation"
)

type stubPublisher struct {
	events  int
	sources int
	stats   int
}

func (s *stubPublisher) PublishEvents(ctx context.Context, records []models.EventRecord) error {
	s.events = len(records)
	return nil
}

func (s *stubPublisher) PublishSources(ctx context.Context, sources []models.SourceDescriptor, metrics map[string]models.SourceMetrics) error {
	s.sources = len(sources)
	return nil
}

func (s *stubPublisher) PublishStats(ctx context.Context, global, daily store.Counts, date string) error {
	s.stats++
	return nil
}

type stubNotifier struct {
	source string
	count  int
}

func (s *stubNotifier) NotifyNewEvents(ctx context.Context, source string, records []models.EventRecord) {
	s.source = source
	s.count += len(records)
}

type stubRecorder struct {
	added int
}

func (s *stubRecorder) RecordRun(source string, added, rejected, duplicates int) {
	s.added += added
}

func newRadarFixture(t *testing.T, candidates []models.Candidate) (*RadarHandler, *store.MemoryStore, *stubNotifier) {
	t.Helper()
	mem := store.NewMemoryStore()
	pipeline := ingestion.NewPipeline(
		mem,
		mem,
		&extraction.StaticExtractor{Candidates: candidates},
		validation.NewDefault(),
		ingestion.NewFetcher(),
		testLogger(),
	)
	sweeper := sweep.NewSweeper(mem, testLogger())
	notifier := &stubNotifier{}
	h := NewRadarHandler(pipeline, sweeper, nil, mem, mem, &stubPublisher{}, notifier, &stubRecorder{}, testLogger())
	return h, mem, notifier
}

func inboundBody(t *testing.T, email models.InboundEmail) *strings.Reader {
	t.Helper()
	raw, err := json.Marshal(email)
	if err != nil {
		t.Fatal(err)
	}
	return strings.NewReader(string(raw))
}

func TestInboundHandler(t *testing.T) {
	date := time.Now().AddDate(0, 0, 14).Format(models.DateLayout)
	h, mem, notifier := newRadarFixture(t, []models.Candidate{
		{Title: "KI Stammtisch", Date: date, Location: "Innsbruck", Description: "Kostenlos"},
	})

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/radar/inbound", inboundBody(t, models.InboundEmail{
		From:    "news@aitirol.at",
		To:      "radar@kinn.at",
		Subject: "Events",
		Text:    "KI Stammtisch",
	}))
	h.InboundHandler(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var env Envelope
	if err := json.NewDecoder(rr.Body).Decode(&env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !env.Success {
		t.Fatalf("envelope = %+v", env)
	}
	if n, _ := mem.Count(context.Background()); n != 1 {
		t.Errorf("persisted %d events", n)
	}
	if notifier.count != 1 || notifier.source != "aitirol.at" {
		t.Errorf("notifier = %+v", notifier)
	}
}

func TestInboundHandler_NonRetryableFailuresAnswer200(t *testing.T) {
	h, _, _ := newRadarFixture(t, nil)

	tests := []struct {
		name string
		body string
	}{
		{name: "malformed payload", body: `{not json`},
		{name: "wrong recipient", body: `{"from":"a@b.c","to":"office@kinn.at","text":"x"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/api/radar/inbound", strings.NewReader(tt.body))
			h.InboundHandler(rr, req)

			if rr.Code != http.StatusOK {
				t.Errorf("status = %d, want 200 so the provider does not retry", rr.Code)
			}
			var env Envelope
			if err := json.NewDecoder(rr.Body).Decode(&env); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if env.Success || env.Error == "" {
				t.Errorf("envelope = %+v", env)
			}
		})
	}
}

func TestFetchSourceHandler_DryRun(t *testing.T) {
	date := time.Now().AddDate(0, 0, 7).Format(models.DateLayout)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>events</html>`))
	}))
	defer server.Close()

	h, mem, _ := newRadarFixture(t, []models.Candidate{
		{Title: "AI Talk", Date: date, Location: "Innsbruck", Description: "Gratis"},
	})
	h.provider = ingestion.NewStaticProvider([]models.SourceDescriptor{
		{Name: "testsite", URL: server.URL, Active: true},
	})

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/radar/sources/testsite/fetch?dry=1", nil)
	h.FetchSourceHandler(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body)
	}
	var env Envelope
	if err := json.NewDecoder(rr.Body).Decode(&env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !env.Success {
		t.Fatalf("envelope = %+v", env)
	}
	if n, _ := mem.Count(context.Background()); n != 0 {
		t.Errorf("dry run persisted %d events", n)
	}
}

func TestFetchSourceHandler_UnknownSourceIs404(t *testing.T) {
	h, _, _ := newRadarFixture(t, nil)
	h.provider = ingestion.NewStaticProvider(nil)

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/radar/sources/nonexistent/fetch", nil)
	h.FetchSourceHandler(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404 for an unconfigured source", rr.Code)
	}
	var env Envelope
	if err := json.NewDecoder(rr.Body).Decode(&env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if env.Success || env.Error == "" {
		t.Errorf("envelope = %+v", env)
	}
}

func TestFetchSourceHandler_BadPath(t *testing.T) {
	h, _, _ := newRadarFixture(t, nil)

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/radar/sources//fetch", nil)
	h.FetchSourceHandler(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rr.Code)
	}
}

func TestSweepHandler_ReportsBeforeAfter(t *testing.T) {
	h, mem, _ := newRadarFixture(t, nil)

	ctx := context.Background()
	a := models.EventRecord{Title: "Dup", Date: "2099-01-01", Location: "X", Status: models.StatusPending}
	a.ID = a.Key()
	b := models.EventRecord{Title: "Dup", Date: "2099-01-01", Location: "Y", Status: models.StatusPending}
	b.ID = b.Key()
	if err := mem.Put(ctx, a); err != nil {
		t.Fatal(err)
	}
	if err := mem.Put(ctx, b); err != nil {
		t.Fatal(err)
	}

	rr := httptest.NewRecorder()
	h.SweepHandler(rr, httptest.NewRequest(http.MethodPost, "/api/radar/sweep", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}

	var env struct {
		Success bool          `json:"success"`
		Data    SweepResponse `json:"data"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !env.Success || env.Data.Before != 2 || env.Data.After != 1 {
		t.Errorf("response = %+v", env)
	}
}

func TestPublishHandler(t *testing.T) {
	h, mem, _ := newRadarFixture(t, nil)
	pub := &stubPublisher{}
	h.publisher = pub

	ctx := context.Background()
	rec := models.EventRecord{Title: "Event", Date: "2099-01-01", City: "Innsbruck", Status: models.StatusPending}
	rec.ID = rec.Key()
	if err := mem.Put(ctx, rec); err != nil {
		t.Fatal(err)
	}

	rr := httptest.NewRecorder()
	h.PublishHandler(rr, httptest.NewRequest(http.MethodPost, "/api/radar/publish", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body)
	}
	if pub.events != 1 {
		t.Errorf("published %d events, want 1", pub.events)
	}
	if pub.stats != 1 {
		t.Errorf("stats tab published %d times, want 1", pub.stats)
	}
}

func TestPublishHandler_NotConfigured(t *testing.T) {
	h, _, _ := newRadarFixture(t, nil)
	h.publisher = nil

	rr := httptest.NewRecorder()
	h.PublishHandler(rr, httptest.NewRequest(http.MethodPost, "/api/radar/publish", nil))
	if rr.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rr.Code)
	}
}
