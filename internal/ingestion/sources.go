package ingestion

import (
	"context"
	"errors"
	"fmt"

	"github.com/aaaalabs/kinn-radar/internal/models"
)

// ErrUnknownSource marks a lookup of a source name that is not configured.
// Handlers treat it as an input error rather than a fetch failure.
var ErrUnknownSource = errors.New("source not configured")

// RunFixedSource fetches a configured target and ingests what the
// extractor finds. Relevance checking follows the descriptor; a dry run
// previews without persisting.
func (p *Pipeline) RunFixedSource(ctx context.Context, src models.SourceDescriptor, opts Options) (Result, error) {
	if src.URL == "" {
		return Result{}, fmt.Errorf("source %q has no url", src.Name)
	}

	raw, err := p.fetcher.Fetch(ctx, src.URL)
	if err != nil {
		return Result{Source: src.Name}, fmt.Errorf("source %s: %w", src.Name, err)
	}

	opts.RequireRelevance = opts.RequireRelevance || src.Relevant
	candidates := p.extractor.Extract(ctx, raw, src.Hints)

	result, err := p.processCandidates(ctx, candidates, src.Name, opts)
	if err != nil {
		return result, err
	}

	if !opts.DryRun {
		if err := p.metrics.MarkSourceSuccess(ctx, src.Name, p.now()); err != nil {
			p.logger.Warn("last-success not recorded", "source", src.Name, "error", err)
		}
	}
	return result, nil
}

// RunDynamic resolves the named source from the config provider at call
// time, then follows the fixed-source path.
func (p *Pipeline) RunDynamic(ctx context.Context, provider SourceConfigProvider, name string, opts Options) (Result, error) {
	src, err := provider.Lookup(ctx, name)
	if err != nil {
		return Result{Source: name}, fmt.Errorf("resolve source %s: %w", name, err)
	}
	if !src.Active {
		return Result{Source: name}, fmt.Errorf("source %s is inactive", name)
	}
	return p.RunFixedSource(ctx, src, opts)
}

// RunAll ingests every active source. Per-source failures are contained:
// one broken site never stops the rest of the batch.
func (p *Pipeline) RunAll(ctx context.Context, provider SourceConfigProvider, opts Options) ([]Result, error) {
	sources, err := provider.Active(ctx)
	if err != nil {
		return nil, fmt.Errorf("list active sources: %w", err)
	}

	results := make([]Result, 0, len(sources))
	for _, src := range sources {
		result, err := p.RunFixedSource(ctx, src, opts)
		if err != nil {
			p.logger.Error("source run failed", "source", src.Name, "error", err)
			results = append(results, result)
			continue
		}
		results = append(results, result)
	}
	return results, nil
}

// StaticProvider serves a fixed descriptor set, for configuration baked
// into the deployment and for tests.
type StaticProvider struct {
	sources map[string]models.SourceDescriptor
}

// NewStaticProvider indexes the given descriptors by name.
func NewStaticProvider(sources []models.SourceDescriptor) *StaticProvider {
	byName := make(map[string]models.SourceDescriptor, len(sources))
	for _, src := range sources {
		byName[src.Name] = src
	}
	return &StaticProvider{sources: byName}
}

// Lookup returns the named descriptor.
func (s *StaticProvider) Lookup(ctx context.Context, name string) (models.SourceDescriptor, error) {
	src, ok := s.sources[name]
	if !ok {
		return models.SourceDescriptor{}, fmt.Errorf("%q: %w", name, ErrUnknownSource)
	}
	return src, nil
}

// Active lists all active descriptors.
func (s *StaticProvider) Active(ctx context.Context) ([]models.SourceDescriptor, error) {
	active := make([]models.SourceDescriptor, 0, len(s.sources))
	for _, src := range s.sources {
		if src.Active {
			active = append(active, src)
		}
	}
	return active, nil
}

var _ SourceConfigProvider = (*StaticProvider)(nil)
