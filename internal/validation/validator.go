// Package validation applies the eligibility rules a candidate event must
// pass before it is persisted: cost, geography, topical relevance and
// public access. Failures are normal outcomes carried as reason strings,
// never errors.
package validation

import (
	"strings"

	"github.com/aaaalabs/kinn-radar/internal/models"
)

// Rejection reasons. Stable strings, they end up in metrics and responses.
const (
	ReasonMissingRequired     = "missing_required_fields"
	ReasonHasCost             = "has_cost"
	ReasonNotInRegion         = "not_in_region"
	ReasonNotRelevant         = "not_relevant"
	ReasonPrivateOrRestricted = "private_or_restricted"
)

// Result is the outcome of validating one candidate.
type Result struct {
	Valid   bool     `json:"isValid"`
	Reasons []string `json:"reasons,omitempty"`
}

// Options selects which optional rules apply for a given pipeline.
type Options struct {
	// RequireRelevance enables the topical-relevance rule. The newsletter
	// pipeline sets it; generic site pipelines usually do not, since their
	// sources are curated.
	RequireRelevance bool
}

// Validator checks candidates against the configured vocabularies.
type Validator struct {
	keywords Keywords
}

// New creates a validator with the given vocabularies.
func New(keywords Keywords) *Validator {
	return &Validator{keywords: keywords}
}

// NewDefault creates a validator with the deployment defaults.
func NewDefault() *Validator {
	return New(DefaultKeywords())
}

// Validate applies the eligibility rules. A missing title or date
// short-circuits; every other failing rule is accumulated so callers see
// all reasons at once.
func (v *Validator) Validate(c models.Candidate, opts Options) Result {
	if strings.TrimSpace(c.Title) == "" || strings.TrimSpace(c.Date) == "" {
		return Result{Valid: false, Reasons: []string{ReasonMissingRequired}}
	}

	var reasons []string

	content := strings.ToLower(c.Title + " " + c.Description)
	place := strings.ToLower(c.Location + " " + c.City + " " + c.Address)

	if v.hasCost(content) {
		reasons = append(reasons, ReasonHasCost)
	}
	if !v.inRegion(place) {
		reasons = append(reasons, ReasonNotInRegion)
	}
	if opts.RequireRelevance && !containsAny(content, v.keywords.Relevance) {
		reasons = append(reasons, ReasonNotRelevant)
	}
	if containsAny(content+" "+place, v.keywords.PrivateIndicators) {
		reasons = append(reasons, ReasonPrivateOrRestricted)
	}

	return Result{Valid: len(reasons) == 0, Reasons: reasons}
}

// hasCost reports whether the text names a price without an explicit
// free indicator. "Eintritt frei" contains the cost term "Eintritt" but
// the free indicator overrides.
func (v *Validator) hasCost(text string) bool {
	if containsAny(text, v.keywords.FreeIndicators) {
		return false
	}
	return containsAny(text, v.keywords.CostIndicators)
}

// inRegion requires at least one allow-listed place name and no
// deny-listed external city or online-only term.
func (v *Validator) inRegion(place string) bool {
	if containsAny(place, v.keywords.RegionDeny) {
		return false
	}
	return containsAny(place, v.keywords.RegionAllow)
}

func containsAny(text string, terms []string) bool {
	for _, term := range terms {
		if strings.Contains(text, term) {
			return true
		}
	}
	return false
}
