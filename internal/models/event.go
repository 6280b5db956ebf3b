package models

import (
	"fmt"
	"strings"
	"time"
)

// EventRecord represents a community event in the RADAR store, either a
// freshly extracted candidate that passed validation or a moderated entry.
type EventRecord struct {
	ID              string   `json:"id"`
	Title           string   `json:"title"`
	Date            string   `json:"date"` // ISO calendar date (2006-01-02)
	Time            string   `json:"time"` // 24h clock, DefaultTime when the source gave none
	EndTime         string   `json:"endTime,omitempty"`
	Location        string   `json:"location,omitempty"`
	Address         string   `json:"address,omitempty"`
	City            string   `json:"city"`
	Category        Category `json:"category"`
	Description     string   `json:"description,omitempty"`
	RegistrationURL string   `json:"registrationUrl,omitempty"`
	DetailURL       string   `json:"detailUrl,omitempty"`
	Tags            []string `json:"tags,omitempty"`
	Language        Language `json:"language,omitempty"`
	Source          string   `json:"source"`
	Status          Status   `json:"status"`

	CreatedAt       time.Time  `json:"createdAt"`
	StatusUpdatedAt *time.Time `json:"statusUpdatedAt,omitempty"`
	ApprovedAt      *time.Time `json:"approvedAt,omitempty"`
	RejectedAt      *time.Time `json:"rejectedAt,omitempty"`
}

// Candidate is an LLM-extracted event that has not been validated yet.
type Candidate struct {
	Title           string   `json:"title"`
	Date            string   `json:"date"`
	Time            string   `json:"time"`
	EndTime         string   `json:"endTime,omitempty"`
	Location        string   `json:"location,omitempty"`
	Address         string   `json:"address,omitempty"`
	City            string   `json:"city,omitempty"`
	Category        string   `json:"category,omitempty"`
	Description     string   `json:"description,omitempty"`
	RegistrationURL string   `json:"registrationUrl,omitempty"`
	DetailURL       string   `json:"detailUrl,omitempty"`
	Tags            []string `json:"tags,omitempty"`
	Language        string   `json:"language,omitempty"`
}

const (
	// DefaultTime is assumed when a source does not state a start time.
	// A record carrying it is treated as "time unknown" by the scorer.
	DefaultTime = "18:00"

	// DefaultCity is the deployment's home town.
	DefaultCity = "Innsbruck"

	// MaxDescriptionLen bounds stored descriptions.
	MaxDescriptionLen = 200

	// DateLayout is the ISO calendar date form used throughout.
	DateLayout = "2006-01-02"
)

// Status is the moderation state of an event record. Records start pending;
// approved and rejected are terminal.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// Category classifies an event within the community taxonomy.
type Category string

const (
	CategoryAI         Category = "AI"
	CategoryTech       Category = "Tech"
	CategoryStartup    Category = "Startup"
	CategoryInnovation Category = "Innovation"
	CategoryBusiness   Category = "Business"
	CategoryEducation  Category = "Education"
	CategoryOther      Category = "Other"
)

// Language marks the event's announcement language.
type Language string

const (
	LanguageGerman  Language = "de"
	LanguageEnglish Language = "en"
	LanguageMixed   Language = "mixed"
)

// ParseCategory maps free-form extractor output onto the taxonomy,
// defaulting to Other.
func ParseCategory(raw string) Category {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "ai", "ki":
		return CategoryAI
	case "tech", "technology":
		return CategoryTech
	case "startup", "startups":
		return CategoryStartup
	case "innovation":
		return CategoryInnovation
	case "business":
		return CategoryBusiness
	case "education", "workshop":
		return CategoryEducation
	default:
		return CategoryOther
	}
}

// ParseLanguage maps free-form extractor output onto the language enum,
// defaulting to mixed.
func ParseLanguage(raw string) Language {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "de", "german", "deutsch":
		return LanguageGerman
	case "en", "english":
		return LanguageEnglish
	default:
		return LanguageMixed
	}
}

// SetStatus transitions the record's moderation state. Approved and
// rejected are terminal; any transition out of them is refused, as is
// moving back to pending.
func (e *EventRecord) SetStatus(s Status, now time.Time) error {
	if e.Status == StatusApproved || e.Status == StatusRejected {
		return fmt.Errorf("status %s is terminal", e.Status)
	}
	switch s {
	case StatusApproved:
		e.ApprovedAt = &now
	case StatusRejected:
		e.RejectedAt = &now
	default:
		return fmt.Errorf("cannot transition to %q", s)
	}
	e.Status = s
	e.StatusUpdatedAt = &now
	return nil
}

// LocationOrCity returns the identity-key place component: the venue if
// known, otherwise the city.
func (e *EventRecord) LocationOrCity() string {
	if e.Location != "" {
		return e.Location
	}
	return e.City
}

// NormalizeKeyPart lowercases a key component, collapses whitespace and
// separator runs to single hyphens and strips everything outside [a-z0-9-].
func NormalizeKeyPart(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	var b strings.Builder
	b.Grow(len(s))
	lastHyphen := false
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastHyphen = false
		case r == ' ' || r == '\t' || r == '\n' || r == '-' || r == '_':
			if !lastHyphen && b.Len() > 0 {
				b.WriteByte('-')
				lastHyphen = true
			}
		}
	}
	return strings.TrimRight(b.String(), "-")
}

// EventKey derives the deterministic identity key used for duplicate
// detection at ingestion time. Two genuinely different events whose
// normalized title, date and place collide will merge; that risk is
// accepted.
func EventKey(title, date, locationOrCity string) string {
	return fmt.Sprintf("%s-%s-%s",
		NormalizeKeyPart(title),
		NormalizeKeyPart(date),
		NormalizeKeyPart(locationOrCity),
	)
}

// SweepKey is the looser title|date grouping key used by the duplicate
// sweep. The place is intentionally excluded: the same event rarely has two
// genuinely different venues, and the sweep is meant to be more aggressive
// than the live check.
func SweepKey(title, date string) string {
	return NormalizeKeyPart(title) + "|" + NormalizeKeyPart(date)
}

// Key returns the record's identity key.
func (e *EventRecord) Key() string {
	return EventKey(e.Title, e.Date, e.LocationOrCity())
}

// TruncateDescription bounds a description to MaxDescriptionLen runes.
func TruncateDescription(s string) string {
	runes := []rune(s)
	if len(runes) <= MaxDescriptionLen {
		return s
	}
	return string(runes[:MaxDescriptionLen])
}
