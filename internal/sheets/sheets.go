// Package sheets publishes radar data to a Google Spreadsheet and reads
// source configuration back from it. The spreadsheet is the operator's
// review surface: one tab per concern, rewritten wholesale on each publish.
package sheets

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/aaaalabs/kinn-radar/internal/ingestion"
	"github.com/aaaalabs/kinn-radar/internal/models"
	"github.com/aaaalabs/kinn-radar/internal/scoring"
	"github.com/aaaalabs/kinn-radar/internal/store"
)

// Tab names inside the radar spreadsheet.
const (
	EventsTab  = "Events"
	SourcesTab = "Sources"
	StatsTab   = "Stats"
)

// Publisher writes event, source, and metric snapshots to the spreadsheet
// and reads the operator-maintained source list from it.
type Publisher struct {
	service       *sheets.Service
	spreadsheetID string
	logger        *slog.Logger
}

func NewPublisher(ctx context.Context, credentialsJSON []byte, spreadsheetID string, logger *slog.Logger) (*Publisher, error) {
	service, err := sheets.NewService(ctx, option.WithCredentialsJSON(credentialsJSON))
	if err != nil {
		return nil, fmt.Errorf("creating sheets service: %w", err)
	}
	return &Publisher{
		service:       service,
		spreadsheetID: spreadsheetID,
		logger:        logger,
	}, nil
}

// PublishEvents rewrites the Events tab with every stored record, sorted
// by date so the operator reads upcoming events top to bottom.
func (p *Publisher) PublishEvents(ctx context.Context, records []models.EventRecord) error {
	sort.Slice(records, func(i, j int) bool {
		if records[i].Date != records[j].Date {
			return records[i].Date < records[j].Date
		}
		return records[i].Time < records[j].Time
	})

	rows := [][]interface{}{
		{"ID", "Title", "Date", "Time", "Location", "City", "Category", "Status", "Score", "Source", "Detail URL", "Registration URL", "Description"},
	}
	for _, rec := range records {
		rows = append(rows, []interface{}{
			rec.ID,
			rec.Title,
			rec.Date,
			rec.Time,
			rec.Location,
			rec.City,
			string(rec.Category),
			string(rec.Status),
			scoring.Score(rec),
			rec.Source,
			rec.DetailURL,
			rec.RegistrationURL,
			rec.Description,
		})
	}

	if err := p.rewriteTab(ctx, EventsTab, rows); err != nil {
		return fmt.Errorf("publishing events: %w", err)
	}
	p.logger.Info("published events to spreadsheet", "count", len(records))
	return nil
}

// PublishSources rewrites the Sources tab, pairing each configured source
// with its accumulated run metrics.
func (p *Publisher) PublishSources(ctx context.Context, sources []models.SourceDescriptor, metrics map[string]models.SourceMetrics) error {
	rows := [][]interface{}{
		{"Name", "URL", "Type", "Tier", "Active", "Found", "Added", "Rejected", "Duplicates", "Last Success"},
	}
	for _, src := range sources {
		m := metrics[src.Name]
		lastSuccess := ""
		if m.LastSuccess != nil {
			lastSuccess = m.LastSuccess.Format(time.RFC3339)
		}
		rows = append(rows, []interface{}{
			src.Name,
			src.URL,
			string(src.Type),
			string(src.Tier),
			src.Active,
			m.Found,
			m.Added,
			m.Rejected,
			m.Duplicates,
			lastSuccess,
		})
	}

	if err := p.rewriteTab(ctx, SourcesTab, rows); err != nil {
		return fmt.Errorf("publishing sources: %w", err)
	}
	p.logger.Info("published sources to spreadsheet", "count", len(sources))
	return nil
}

// PublishStats rewrites the Stats tab with the global and today's counters.
func (p *Publisher) PublishStats(ctx context.Context, global, daily store.Counts, date string) error {
	rows := [][]interface{}{
		{"Scope", "Found", "Added", "Rejected", "Duplicates"},
		{"All time", global.Found, global.Added, global.Rejected, global.Duplicates},
		{date, daily.Found, daily.Added, daily.Rejected, daily.Duplicates},
	}

	if err := p.rewriteTab(ctx, StatsTab, rows); err != nil {
		return fmt.Errorf("publishing stats: %w", err)
	}
	return nil
}

// rewriteTab clears a tab and writes the given rows from A1.
func (p *Publisher) rewriteTab(ctx context.Context, tab string, rows [][]interface{}) error {
	_, err := p.service.Spreadsheets.Values.
		Clear(p.spreadsheetID, tab, &sheets.ClearValuesRequest{}).
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("clearing tab %s: %w", tab, err)
	}

	_, err = p.service.Spreadsheets.Values.
		Update(p.spreadsheetID, tab+"!A1", &sheets.ValueRange{Values: rows}).
		ValueInputOption("RAW").
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("writing tab %s: %w", tab, err)
	}
	return nil
}

// LoadSources reads the operator-maintained source list from the Sources
// tab. Expected columns: name, url, type, tier, active, html pattern,
// date format, extraction notes, relevant. Rows with an empty name or url
// are skipped.
func (p *Publisher) LoadSources(ctx context.Context) ([]models.SourceDescriptor, error) {
	resp, err := p.service.Spreadsheets.Values.
		Get(p.spreadsheetID, SourcesTab+"!A2:I").
		Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("reading sources tab: %w", err)
	}

	var sources []models.SourceDescriptor
	for _, row := range resp.Values {
		src := sourceFromRow(row)
		if src.Name == "" || src.URL == "" {
			continue
		}
		sources = append(sources, src)
	}
	return sources, nil
}

func sourceFromRow(row []interface{}) models.SourceDescriptor {
	src := models.SourceDescriptor{
		Name:     cell(row, 0),
		URL:      cell(row, 1),
		Type:     models.FetchType(cell(row, 2)),
		Tier:     models.QualityTier(cell(row, 3)),
		Active:   parseBool(cell(row, 4)),
		Relevant: parseBool(cell(row, 8)),
		Hints: models.ExtractionHints{
			HTMLPattern:  cell(row, 5),
			DateFormat:   cell(row, 6),
			ExtractNotes: cell(row, 7),
		},
	}
	if src.Type == "" {
		src.Type = models.FetchTypeStatic
	}
	return src
}

func cell(row []interface{}, i int) string {
	if i >= len(row) {
		return ""
	}
	s, _ := row[i].(string)
	return strings.TrimSpace(s)
}

func parseBool(s string) bool {
	switch strings.ToLower(s) {
	case "true", "yes", "ja", "1", "x":
		return true
	}
	return false
}

// sourceLoader is the slice of Publisher the provider needs.
type sourceLoader interface {
	LoadSources(ctx context.Context) ([]models.SourceDescriptor, error)
}

// Provider adapts the spreadsheet source list to the ingestion pipeline's
// configuration interface, caching rows for a short period so fetch-all
// runs do not hammer the Sheets API. The cache is shared between the
// scheduled fetch-all goroutine and the admin handlers, so access to it
// is guarded.
type Provider struct {
	loader sourceLoader
	logger *slog.Logger
	ttl    time.Duration

	mu       sync.Mutex
	cached   []models.SourceDescriptor
	cachedAt time.Time
}

func NewProvider(publisher *Publisher, ttl time.Duration) *Provider {
	return &Provider{loader: publisher, logger: publisher.logger, ttl: ttl}
}

func (p *Provider) sources(ctx context.Context) ([]models.SourceDescriptor, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cached != nil && time.Since(p.cachedAt) < p.ttl {
		return p.cached, nil
	}
	sources, err := p.loader.LoadSources(ctx)
	if err != nil {
		if p.cached != nil {
			p.logger.Warn("source refresh failed, serving cached list", "error", err)
			return p.cached, nil
		}
		return nil, err
	}
	p.cached = sources
	p.cachedAt = time.Now()
	return sources, nil
}

func (p *Provider) Lookup(ctx context.Context, name string) (models.SourceDescriptor, error) {
	sources, err := p.sources(ctx)
	if err != nil {
		return models.SourceDescriptor{}, err
	}
	for _, src := range sources {
		if src.Name == name {
			return src, nil
		}
	}
	return models.SourceDescriptor{}, fmt.Errorf("%q: %w", name, ingestion.ErrUnknownSource)
}

func (p *Provider) Active(ctx context.Context) ([]models.SourceDescriptor, error) {
	sources, err := p.sources(ctx)
	if err != nil {
		return nil, err
	}
	active := make([]models.SourceDescriptor, 0, len(sources))
	for _, src := range sources {
		if src.Active {
			active = append(active, src)
		}
	}
	return active, nil
}
