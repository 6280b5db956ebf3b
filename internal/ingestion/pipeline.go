// Package ingestion runs the three RADAR intake paths (newsletter webhook,
// fixed-source fetch, dynamically configured fetch). All three share the
// same tail per candidate: validate, duplicate-check, persist, count.
package ingestion

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/aaaalabs/kinn-radar/internal/extraction"
	"github.com/aaaalabs/kinn-radar/internal/models"
	"github.com/aaaalabs/kinn-radar/internal/store"
	"github.com/aaaalabs/kinn-radar/internal/validation"
)

// SourceConfigProvider resolves scrape-target configuration at call time.
type SourceConfigProvider interface {
	// Lookup returns the descriptor for a named source.
	Lookup(ctx context.Context, name string) (models.SourceDescriptor, error)

	// Active lists all sources currently enabled for ingestion.
	Active(ctx context.Context) ([]models.SourceDescriptor, error)
}

// Result summarizes one ingestion run.
type Result struct {
	RunID      string               `json:"runId"`
	Source     string               `json:"source"`
	Found      int                  `json:"found"`
	Added      int                  `json:"added"`
	Rejected   int                  `json:"rejected"`
	Duplicates int                  `json:"duplicates"`
	DryRun     bool                 `json:"dryRun,omitempty"`
	Preview    []models.EventRecord `json:"preview,omitempty"`

	// AddedEvents holds the records persisted by this run, for
	// notification fan-out. Not part of the wire response.
	AddedEvents []models.EventRecord `json:"-"`
}

// Options tunes a single run.
type Options struct {
	// DryRun extracts and duplicate-checks but skips persistence,
	// returning the would-be records as a preview.
	DryRun bool

	// RequireRelevance applies the topical-relevance validation rule.
	RequireRelevance bool
}

// Pipeline wires the extraction adapter, validator, store and metrics.
type Pipeline struct {
	store     store.EventStore
	metrics   store.MetricsCollector
	extractor extraction.Extractor
	validator *validation.Validator
	fetcher   *Fetcher
	alias     string
	logger    *slog.Logger
	now       func() time.Time
}

// NewPipeline creates a pipeline.
func NewPipeline(
	eventStore store.EventStore,
	metrics store.MetricsCollector,
	extractor extraction.Extractor,
	validator *validation.Validator,
	fetcher *Fetcher,
	logger *slog.Logger,
) *Pipeline {
	return &Pipeline{
		store:     eventStore,
		metrics:   metrics,
		extractor: extractor,
		validator: validator,
		fetcher:   fetcher,
		alias:     NewsletterAlias,
		logger:    logger,
		now:       time.Now,
	}
}

// processCandidates is the shared tail: validate, duplicate-check against
// the store, persist with status pending, count. The existence check and
// the put are not atomic; near-simultaneous runs can both persist the same
// new event, and the sweep merges them afterwards.
func (p *Pipeline) processCandidates(ctx context.Context, candidates []models.Candidate, source string, opts Options) (Result, error) {
	result := Result{
		RunID:  uuid.NewString(),
		Source: source,
		Found:  len(candidates),
		DryRun: opts.DryRun,
	}

	if err := p.metrics.IncrFound(ctx, source, int64(len(candidates))); err != nil {
		p.logger.Warn("found counter not updated", "source", source, "error", err)
	}

	for _, c := range candidates {
		verdict := p.validator.Validate(c, validation.Options{RequireRelevance: opts.RequireRelevance})
		if !verdict.Valid {
			result.Rejected++
			if err := p.metrics.IncrRejected(ctx, source, 1); err != nil {
				p.logger.Warn("rejected counter not updated", "source", source, "error", err)
			}
			p.logger.Debug("candidate rejected",
				"run_id", result.RunID,
				"title", c.Title,
				"reasons", verdict.Reasons)
			continue
		}

		rec := recordFromCandidate(c, source, p.now())

		exists, err := p.store.Exists(ctx, rec.ID)
		if err != nil {
			// Store read failure: skip this candidate, keep the run going.
			p.logger.Error("duplicate check failed",
				"run_id", result.RunID,
				"id", rec.ID,
				"error", err)
			continue
		}
		if exists {
			result.Duplicates++
			if err := p.metrics.IncrDuplicates(ctx, source, 1); err != nil {
				p.logger.Warn("duplicates counter not updated", "source", source, "error", err)
			}
			continue
		}

		if opts.DryRun {
			result.Added++
			result.Preview = append(result.Preview, rec)
			continue
		}

		// Silently dropping a validated event is worse than surfacing an
		// error, so a failed persist aborts the run.
		if err := p.store.Put(ctx, rec); err != nil {
			return result, fmt.Errorf("persist event %s: %w", rec.ID, err)
		}
		result.Added++
		result.AddedEvents = append(result.AddedEvents, rec)
		if err := p.metrics.IncrAdded(ctx, source, 1); err != nil {
			p.logger.Warn("added counter not updated", "source", source, "error", err)
		}
	}

	p.logger.Info("ingestion run complete",
		"run_id", result.RunID,
		"source", source,
		"found", result.Found,
		"added", result.Added,
		"rejected", result.Rejected,
		"duplicates", result.Duplicates,
		"dry_run", opts.DryRun)

	return result, nil
}

// recordFromCandidate applies defaults and derives the identity key.
func recordFromCandidate(c models.Candidate, source string, now time.Time) models.EventRecord {
	rec := models.EventRecord{
		Title:           c.Title,
		Date:            c.Date,
		Time:            c.Time,
		EndTime:         c.EndTime,
		Location:        c.Location,
		Address:         c.Address,
		City:            c.City,
		Category:        models.ParseCategory(c.Category),
		Description:     models.TruncateDescription(c.Description),
		RegistrationURL: c.RegistrationURL,
		DetailURL:       c.DetailURL,
		Tags:            c.Tags,
		Language:        models.ParseLanguage(c.Language),
		Source:          source,
		Status:          models.StatusPending,
		CreatedAt:       now,
	}
	if rec.Time == "" {
		rec.Time = models.DefaultTime
	}
	if rec.City == "" {
		rec.City = models.DefaultCity
	}
	rec.ID = rec.Key()
	return rec
}
