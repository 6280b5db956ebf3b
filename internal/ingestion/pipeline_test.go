package ingestion

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aaaalabs/kinn-radar/internal/extraction"
	"github.com/aaaalabs/kinn-radar/internal/models"
	"github.com/aaaalabs/kinn-radar/internal/store"
	"github.com/aaaalabs/kinn-radar/internal/validation"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func futureDate(days int) string {
	return time.Now().AddDate(0, 0, days).Format(models.DateLayout)
}

func newTestPipeline(mem *store.MemoryStore, candidates []models.Candidate) *Pipeline {
	return NewPipeline(
		mem,
		mem,
		&extraction.StaticExtractor{Candidates: candidates},
		validation.NewDefault(),
		NewFetcher(),
		testLogger(),
	)
}

func TestProcessCandidates_Tail(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemoryStore()

	candidates := []models.Candidate{
		{Title: "KI Stammtisch", Date: futureDate(14), Location: "Innsbruck", Description: "Kostenlos für alle"},
		{Title: "Paid Conference", Date: futureDate(20), Location: "Innsbruck", Description: "Tickets €200"},
	}
	p := newTestPipeline(mem, candidates)

	result, err := p.processCandidates(ctx, candidates, "test-source", Options{})
	if err != nil {
		t.Fatalf("processCandidates: %v", err)
	}

	if result.Found != 2 || result.Added != 1 || result.Rejected != 1 || result.Duplicates != 0 {
		t.Errorf("result = %+v", result)
	}

	global, _ := mem.Global(ctx)
	if global.Found != 2 || global.Added != 1 || global.Rejected != 1 {
		t.Errorf("global counts = %+v", global)
	}

	records, _ := mem.ListAll(ctx)
	if len(records) != 1 {
		t.Fatalf("persisted %d records, want 1", len(records))
	}
	rec := records[0]
	if rec.Status != models.StatusPending {
		t.Errorf("status = %s, want pending", rec.Status)
	}
	if rec.Source != "test-source" {
		t.Errorf("source = %s", rec.Source)
	}
	if rec.Time != models.DefaultTime {
		t.Errorf("default time not applied: %s", rec.Time)
	}
	if rec.CreatedAt.IsZero() {
		t.Error("createdAt not set")
	}
}

func TestProcessCandidates_DuplicateSkipped(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemoryStore()
	date := futureDate(14)

	candidates := []models.Candidate{
		{Title: "KI Stammtisch", Date: date, Location: "Innsbruck", Description: "Kostenlos"},
	}
	p := newTestPipeline(mem, candidates)

	first, err := p.processCandidates(ctx, candidates, "source-a", Options{})
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	// Same event re-extracted from a different source derives the same id.
	second, err := p.processCandidates(ctx, candidates, "source-b", Options{})
	if err != nil {
		t.Fatalf("second run: %v", err)
	}

	if first.Added != 1 || second.Added != 0 || second.Duplicates != 1 {
		t.Errorf("first = %+v, second = %+v", first, second)
	}
	if n, _ := mem.Count(ctx); n != 1 {
		t.Errorf("store holds %d records, want 1", n)
	}

	b, _ := mem.Source(ctx, "source-b")
	if b.Duplicates != 1 {
		t.Errorf("source-b duplicates = %d, want 1", b.Duplicates)
	}
}

func TestProcessCandidates_DryRunSkipsPersistence(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemoryStore()

	candidates := []models.Candidate{
		{Title: "KI Meetup", Date: futureDate(7), Location: "Innsbruck", Description: "Gratis"},
	}
	p := newTestPipeline(mem, candidates)

	result, err := p.processCandidates(ctx, candidates, "preview", Options{DryRun: true})
	if err != nil {
		t.Fatalf("processCandidates: %v", err)
	}
	if result.Added != 1 || len(result.Preview) != 1 {
		t.Errorf("result = %+v", result)
	}
	if n, _ := mem.Count(ctx); n != 0 {
		t.Errorf("dry run persisted %d records", n)
	}
}

func TestRunNewsletter(t *testing.T) {
	ctx := context.Background()
	date := futureDate(14)

	tests := []struct {
		name       string
		email      models.InboundEmail
		candidates []models.Candidate
		wantErr    bool
		wantAdded  int
		wantSource string
	}{
		{
			name: "accepted via alias",
			email: models.InboundEmail{
				From:    "Events <news@aitirol.at>",
				To:      "KINN Radar <radar@kinn.at>",
				Subject: "Neues aus der Szene",
				Text:    "KI Stammtisch am Dienstag, kostenlos",
			},
			candidates: []models.Candidate{
				{Title: "KI Stammtisch", Date: date, Location: "Innsbruck", Description: "Kostenlos"},
			},
			wantAdded:  1,
			wantSource: "aitirol.at",
		},
		{
			name: "wrong recipient rejected",
			email: models.InboundEmail{
				From: "news@aitirol.at",
				To:   "office@kinn.at",
				Text: "irrelevant",
			},
			wantErr: true,
		},
		{
			name: "relevance rule applies",
			email: models.InboundEmail{
				From: "news@aitirol.at",
				To:   "radar@kinn.at",
				Text: "Strickabend",
			},
			candidates: []models.Candidate{
				{Title: "Strickabend", Date: date, Location: "Innsbruck", Description: "Gemütlich und gratis"},
			},
			wantAdded: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mem := store.NewMemoryStore()
			p := newTestPipeline(mem, tt.candidates)

			result, err := p.RunNewsletter(ctx, tt.email)
			if (err != nil) != tt.wantErr {
				t.Fatalf("RunNewsletter error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if result.Added != tt.wantAdded {
				t.Errorf("added = %d, want %d", result.Added, tt.wantAdded)
			}
			if tt.wantSource != "" && result.Source != tt.wantSource {
				t.Errorf("source = %q, want %q", result.Source, tt.wantSource)
			}
		})
	}
}

func TestRunFixedSource(t *testing.T) {
	ctx := context.Background()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ua := r.Header.Get("User-Agent"); ua != UserAgent {
			t.Errorf("user agent = %q", ua)
		}
		_, _ = w.Write([]byte(`<html><body><div class="events">KI Meetup</div></body></html>`))
	}))
	defer server.Close()

	mem := store.NewMemoryStore()
	p := newTestPipeline(mem, []models.Candidate{
		{Title: "KI Meetup", Date: futureDate(7), Location: "Innsbruck", Description: "Gratis"},
	})

	src := models.SourceDescriptor{Name: "testsite", URL: server.URL, Type: models.FetchTypeStatic, Active: true}
	result, err := p.RunFixedSource(ctx, src, Options{})
	if err != nil {
		t.Fatalf("RunFixedSource: %v", err)
	}
	if result.Added != 1 {
		t.Errorf("added = %d, want 1", result.Added)
	}

	m, _ := mem.Source(ctx, "testsite")
	if m.LastSuccess == nil {
		t.Error("last success not recorded")
	}
}

func TestRunFixedSource_FetchFailureContained(t *testing.T) {
	ctx := context.Background()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	mem := store.NewMemoryStore()
	p := newTestPipeline(mem, nil)

	src := models.SourceDescriptor{Name: "down", URL: server.URL, Active: true}
	if _, err := p.RunFixedSource(ctx, src, Options{}); err == nil {
		t.Fatal("expected fetch error")
	}
	if n, _ := mem.Count(ctx); n != 0 {
		t.Error("failed fetch must not persist anything")
	}
}

func TestRunAll_ContainsPerSourceFailures(t *testing.T) {
	ctx := context.Background()

	good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>events</html>`))
	}))
	defer good.Close()
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer bad.Close()

	mem := store.NewMemoryStore()
	p := newTestPipeline(mem, []models.Candidate{
		{Title: "KI Meetup", Date: futureDate(7), Location: "Innsbruck", Description: "Gratis"},
	})

	provider := NewStaticProvider([]models.SourceDescriptor{
		{Name: "good", URL: good.URL, Active: true},
		{Name: "bad", URL: bad.URL, Active: true},
		{Name: "inactive", URL: good.URL, Active: false},
	})

	results, err := p.RunAll(ctx, provider, Options{})
	if err != nil {
		t.Fatalf("RunAll: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2 (inactive skipped)", len(results))
	}

	added := 0
	for _, r := range results {
		added += r.Added
	}
	if added != 1 {
		t.Errorf("total added = %d, want 1 from the good source", added)
	}
}

func TestRunDynamic(t *testing.T) {
	ctx := context.Background()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>events</html>`))
	}))
	defer server.Close()

	mem := store.NewMemoryStore()
	p := newTestPipeline(mem, []models.Candidate{
		{Title: "AI Talk", Date: futureDate(3), Location: "Innsbruck", Description: "Free entry"},
	})

	provider := NewStaticProvider([]models.SourceDescriptor{
		{Name: "sheet-configured", URL: server.URL, Active: true},
	})

	result, err := p.RunDynamic(ctx, provider, "sheet-configured", Options{})
	if err != nil {
		t.Fatalf("RunDynamic: %v", err)
	}
	if result.Added != 1 {
		t.Errorf("added = %d, want 1", result.Added)
	}

	if _, err := p.RunDynamic(ctx, provider, "nonexistent", Options{}); err == nil {
		t.Error("expected lookup error for unknown source")
	}
}

func TestSetNewsletterAlias(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemoryStore()
	p := newTestPipeline(mem, nil)
	p.SetNewsletterAlias("events")

	email := models.InboundEmail{From: "news@aitirol.at", To: "events@kinn.at", Text: "x"}
	if _, err := p.RunNewsletter(ctx, email); err != nil {
		t.Errorf("custom alias rejected: %v", err)
	}

	email.To = "radar@kinn.at"
	if _, err := p.RunNewsletter(ctx, email); err == nil {
		t.Error("default alias must not be accepted after override")
	}
}

func TestSenderDomain(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"news@aitirol.at", "aitirol.at"},
		{"Events Team <events@startup.tirol>", "startup.tirol"},
		{"no-at-sign", ""},
	}
	for _, tt := range tests {
		if got := senderDomain(tt.input); got != tt.expected {
			t.Errorf("senderDomain(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}
