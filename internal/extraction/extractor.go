// Package extraction turns raw newsletter or website content into candidate
// event records via the LLM collaborator. The adapter fails closed: any
// collaborator or parse error yields an empty candidate list, never a crash
// of the surrounding pipeline.
package extraction

import (
	"context"
	"log/slog"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/aaaalabs/kinn-radar/internal/models"
)

// Extractor produces candidate events from raw source content.
type Extractor interface {
	Extract(ctx context.Context, rawContent string, hints models.ExtractionHints) []models.Candidate
}

// Window bounds the plausibility check on extracted dates relative to now.
type Window struct {
	PastDays   int
	FutureDays int
}

// DefaultWindow is the global plausibility window. Pipelines chasing
// fast-moving single sources may use a tighter past bound.
func DefaultWindow() Window {
	return Window{PastDays: 90, FutureDays: 365}
}

// Config holds the LLM collaborator parameters.
type Config struct {
	Model         string
	Temperature   float32
	MaxTokens     int
	Timeout       time.Duration
	ContentBudget int
	Window        Window
}

// DefaultConfig returns near-deterministic extraction settings.
func DefaultConfig() Config {
	return Config{
		Model:         openai.GPT4oMini,
		Temperature:   0.1,
		MaxTokens:     4000,
		Timeout:       60 * time.Second,
		ContentBudget: DefaultContentBudget,
		Window:        DefaultWindow(),
	}
}

// OpenAIExtractor implements Extractor against the OpenAI chat API.
type OpenAIExtractor struct {
	client *openai.Client
	config Config
	logger *slog.Logger
	now    func() time.Time
}

// NewOpenAIExtractor creates the extraction adapter.
func NewOpenAIExtractor(apiKey string, config Config, logger *slog.Logger) *OpenAIExtractor {
	return NewOpenAIExtractorWithClient(openai.NewClient(apiKey), config, logger)
}

// NewOpenAIExtractorWithClient injects a prebuilt client, used by tests to
// point at a stub server.
func NewOpenAIExtractorWithClient(client *openai.Client, config Config, logger *slog.Logger) *OpenAIExtractor {
	return &OpenAIExtractor{
		client: client,
		config: config,
		logger: logger,
		now:    time.Now,
	}
}

// Extract cleans and truncates the content, invokes the model once with a
// strict-JSON response format, and returns the structurally valid
// candidates. One attempt only; errors are logged and swallowed.
func (e *OpenAIExtractor) Extract(ctx context.Context, rawContent string, hints models.ExtractionHints) []models.Candidate {
	content := Truncate(CleanContent(rawContent), e.config.ContentBudget)
	if content == "" {
		return nil
	}

	now := e.now()
	prompt := BuildPrompt(content, now.Format(models.DateLayout), hints)

	apiCtx, cancel := context.WithTimeout(ctx, e.config.Timeout)
	defer cancel()

	start := time.Now()
	resp, err := e.client.CreateChatCompletion(apiCtx, openai.ChatCompletionRequest{
		Model:               e.config.Model,
		Temperature:         e.config.Temperature,
		MaxCompletionTokens: e.config.MaxTokens,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: SystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		e.logger.Error("extraction call failed",
			"model", e.config.Model,
			"duration_ms", time.Since(start).Milliseconds(),
			"error", err)
		return nil
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		e.logger.Error("extraction returned no completion", "model", e.config.Model)
		return nil
	}

	candidates, err := ParseEvents(resp.Choices[0].Message.Content)
	if err != nil {
		e.logger.Error("extraction response unparseable", "error", err)
		return nil
	}

	kept := FilterCandidates(candidates, now, e.config.Window)
	e.logger.Info("extraction complete",
		"model", e.config.Model,
		"raw", len(candidates),
		"kept", len(kept),
		"duration_ms", time.Since(start).Milliseconds())

	return kept
}

// FilterCandidates keeps candidates with a non-empty title and a parseable
// date inside the plausibility window.
func FilterCandidates(candidates []models.Candidate, now time.Time, w Window) []models.Candidate {
	earliest := now.AddDate(0, 0, -w.PastDays)
	latest := now.AddDate(0, 0, w.FutureDays)

	kept := make([]models.Candidate, 0, len(candidates))
	for _, c := range candidates {
		if c.Title == "" || c.Date == "" {
			continue
		}
		date, err := time.Parse(models.DateLayout, c.Date)
		if err != nil {
			continue
		}
		if date.Before(earliest) || date.After(latest) {
			continue
		}
		kept = append(kept, c)
	}
	return kept
}

// StaticExtractor returns fixed candidates, for tests and dry wiring.
type StaticExtractor struct {
	Candidates []models.Candidate
}

// Extract returns the configured candidates regardless of input.
func (s *StaticExtractor) Extract(ctx context.Context, rawContent string, hints models.ExtractionHints) []models.Candidate {
	return s.Candidates
}
