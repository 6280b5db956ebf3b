package models

import "time"

// FetchType describes how a scrape target is retrieved.
type FetchType string

const (
	FetchTypeStatic  FetchType = "static"  // plain HTTP GET
	FetchTypeDynamic FetchType = "dynamic" // configuration resolved at call time
)

// QualityTier ranks how reliably a source yields usable events.
type QualityTier string

const (
	TierHigh   QualityTier = "high"
	TierMedium QualityTier = "medium"
	TierLow    QualityTier = "low"
)

// ExtractionHints carries optional per-source guidance for the LLM
// extractor. Empty fields fall back to generic prompt guidance.
type ExtractionHints struct {
	HTMLPattern  string `json:"htmlPattern,omitempty"`  // selector/pattern pointing at the listing region
	DateFormat   string `json:"dateFormat,omitempty"`   // date format the site is known to use
	ExtractNotes string `json:"extractNotes,omitempty"` // free-text special instructions
}

// SourceDescriptor is the read-only configuration of a scrape target.
// Only its metrics, stored separately by source name, change over time.
type SourceDescriptor struct {
	Name     string          `json:"name"`
	URL      string          `json:"url"`
	Type     FetchType       `json:"type"`
	Tier     QualityTier     `json:"tier"`
	Active   bool            `json:"active"`
	Hints    ExtractionHints `json:"hints,omitempty"`
	Relevant bool            `json:"relevanceCheck,omitempty"` // apply the topical-relevance rule
}

// SourceMetrics is the mutable per-source bookkeeping kept alongside the
// global counters.
type SourceMetrics struct {
	Found       int64      `json:"found"`
	Added       int64      `json:"added"`
	Rejected    int64      `json:"rejected"`
	Duplicates  int64      `json:"duplicates"`
	LastSuccess *time.Time `json:"lastSuccess,omitempty"`
}

// InboundEmail is a parsed inbound-email webhook delivery.
type InboundEmail struct {
	From      string    `json:"from"`
	To        string    `json:"to"`
	Subject   string    `json:"subject"`
	Text      string    `json:"text"`
	HTML      string    `json:"html,omitempty"`
	Timestamp time.Time `json:"timestamp,omitempty"`
}
