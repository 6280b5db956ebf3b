// Package sweep removes duplicate and expired event records from the store.
//
// Duplicates enter the store because different sources describe the same
// event with slightly different locations, which produces distinct derived
// ids. The sweep groups records by a looser title|date key and keeps the
// most complete record of each group.
package sweep

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aaaalabs/kinn-radar/internal/models"
	"github.com/aaaalabs/kinn-radar/internal/scoring"
	"github.com/aaaalabs/kinn-radar/internal/store"
)

// Result summarizes one sweep pass.
type Result struct {
	Scanned int `json:"scanned"`
	Removed int `json:"removed"`
	Kept    int `json:"kept"`
}

// Sweeper runs deduplication and expiry passes over an event store.
type Sweeper struct {
	store  store.EventStore
	logger *slog.Logger
	now    func() time.Time
}

func NewSweeper(st store.EventStore, logger *slog.Logger) *Sweeper {
	return &Sweeper{
		store:  st,
		logger: logger,
		now:    time.Now,
	}
}

// RemoveDuplicates groups all records by their title|date sweep key and
// deletes every record except the highest-scoring one in each group. Ties
// break toward the lexicographically smallest id so repeated sweeps make
// the same choice. Records missing a title or date cannot be grouped and
// are deleted outright.
func (s *Sweeper) RemoveDuplicates(ctx context.Context) (Result, error) {
	records, err := s.store.ListAll(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("listing records: %w", err)
	}

	result := Result{Scanned: len(records)}
	groups := make(map[string][]models.EventRecord)

	for _, rec := range records {
		if rec.Title == "" || rec.Date == "" {
			if s.remove(ctx, rec.ID, "unidentifiable") {
				result.Removed++
			}
			continue
		}
		key := models.SweepKey(rec.Title, rec.Date)
		groups[key] = append(groups[key], rec)
	}

	for _, group := range groups {
		keep := bestOf(group)
		result.Kept++
		for _, rec := range group {
			if rec.ID == keep.ID {
				continue
			}
			if s.remove(ctx, rec.ID, "duplicate") {
				result.Removed++
			}
		}
	}

	s.logger.Info("duplicate sweep complete",
		"scanned", result.Scanned,
		"removed", result.Removed,
		"kept", result.Kept)
	return result, nil
}

// PruneExpired deletes records whose date is strictly before today.
// Records without a parseable date are left alone; the duplicate sweep
// handles those.
func (s *Sweeper) PruneExpired(ctx context.Context) (Result, error) {
	records, err := s.store.ListAll(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("listing records: %w", err)
	}

	today := s.now().Format(models.DateLayout)
	result := Result{Scanned: len(records)}

	for _, rec := range records {
		if rec.Date == "" {
			result.Kept++
			continue
		}
		if _, err := time.Parse(models.DateLayout, rec.Date); err != nil {
			result.Kept++
			continue
		}
		if rec.Date < today {
			if s.remove(ctx, rec.ID, "expired") {
				result.Removed++
			}
			continue
		}
		result.Kept++
	}

	s.logger.Info("expiry prune complete",
		"today", today,
		"scanned", result.Scanned,
		"removed", result.Removed)
	return result, nil
}

// remove deletes a single record, logging and absorbing the error so one
// failed delete does not abort the rest of the pass.
func (s *Sweeper) remove(ctx context.Context, id, reason string) bool {
	if err := s.store.Remove(ctx, id); err != nil {
		s.logger.Error("failed to remove record", "id", id, "reason", reason, "error", err)
		return false
	}
	return true
}

// bestOf picks the record to keep from a duplicate group: highest
// completeness score, ties broken by smallest id.
func bestOf(group []models.EventRecord) models.EventRecord {
	best := group[0]
	bestScore := scoring.Score(best)
	for _, rec := range group[1:] {
		score := scoring.Score(rec)
		if score > bestScore || (score == bestScore && rec.ID < best.ID) {
			best = rec
			bestScore = score
		}
	}
	return best
}
