// Package scoring rates how much usable data an event record carries.
// The score is the tie-breaker when the sweep collapses duplicate groups.
package scoring

import (
	"unicode/utf8"

	"github.com/aaaalabs/kinn-radar/internal/models"
)

// Score computes the completeness score of a record. Weights are additive
// with no cap; default-valued fields (time 18:00, city Innsbruck) count as
// absent since they signal the source gave no real data. The function is
// total and deterministic.
func Score(rec models.EventRecord) int {
	score := 0

	if rec.Title != "" {
		score += 3
	}
	if rec.Date != "" {
		score += 3
	}
	if rec.Time != "" && rec.Time != models.DefaultTime {
		score += 2
	}
	if rec.Location != "" {
		score += 2
	}
	if rec.DetailURL != "" {
		score += 2
	}
	if rec.RegistrationURL != "" {
		score += 1
	}
	if rec.City != "" && rec.City != models.DefaultCity {
		score += 1
	}
	if rec.Category != "" {
		score += 1
	}
	if rec.Source != "" {
		score += 1
	}
	if n := utf8.RuneCountInString(rec.Description); n > 0 {
		score += 1
		if n > 100 {
			score += 1
		}
		if n > 200 {
			score += 1
		}
	}

	return score
}
