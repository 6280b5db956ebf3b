package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/aaaalabs/kinn-radar/internal/models"
)

// MemoryStore implements EventStore and MetricsCollector in memory, for
// tests and local development without a Redis instance.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]models.EventRecord
	byDate  map[string]map[string]struct{}
	global  Counts
	daily   map[string]*Counts
	sources map[string]*models.SourceMetrics
	now     func() time.Time
}

var (
	_ EventStore       = (*MemoryStore)(nil)
	_ MetricsCollector = (*MemoryStore)(nil)
)

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]models.EventRecord),
		byDate:  make(map[string]map[string]struct{}),
		daily:   make(map[string]*Counts),
		sources: make(map[string]*models.SourceMetrics),
		now:     time.Now,
	}
}

func (s *MemoryStore) Put(ctx context.Context, rec models.EventRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records[rec.ID] = rec
	if rec.Date != "" {
		if s.byDate[rec.Date] == nil {
			s.byDate[rec.Date] = make(map[string]struct{})
		}
		s.byDate[rec.Date][rec.ID] = struct{}{}
	}
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (*models.EventRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &rec, nil
}

func (s *MemoryStore) Exists(ctx context.Context, id string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.records[id]
	return ok, nil
}

func (s *MemoryStore) Remove(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec, ok := s.records[id]; ok && rec.Date != "" {
		delete(s.byDate[rec.Date], id)
	}
	delete(s.records, id)
	return nil
}

func (s *MemoryStore) ListIDs(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.records))
	for id := range s.records {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *MemoryStore) ListAll(ctx context.Context) ([]models.EventRecord, error) {
	ids, err := s.ListIDs(ctx)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	records := make([]models.EventRecord, 0, len(ids))
	for _, id := range ids {
		if rec, ok := s.records[id]; ok {
			records = append(records, rec)
		}
	}
	return records, nil
}

func (s *MemoryStore) Count(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.records)), nil
}

func (s *MemoryStore) incr(field, source string, delta int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.global.set(field, s.global.get(field)+delta)

	day := s.now().Format(models.DateLayout)
	if s.daily[day] == nil {
		s.daily[day] = &Counts{}
	}
	s.daily[day].set(field, s.daily[day].get(field)+delta)

	if source != "" {
		if s.sources[source] == nil {
			s.sources[source] = &models.SourceMetrics{}
		}
		m := s.sources[source]
		switch field {
		case "found":
			m.Found += delta
		case "added":
			m.Added += delta
		case "rejected":
			m.Rejected += delta
		case "duplicates":
			m.Duplicates += delta
		}
	}
}

func (s *MemoryStore) IncrFound(ctx context.Context, source string, delta int64) error {
	s.incr("found", source, delta)
	return nil
}

func (s *MemoryStore) IncrAdded(ctx context.Context, source string, delta int64) error {
	s.incr("added", source, delta)
	return nil
}

func (s *MemoryStore) IncrRejected(ctx context.Context, source string, delta int64) error {
	s.incr("rejected", source, delta)
	return nil
}

func (s *MemoryStore) IncrDuplicates(ctx context.Context, source string, delta int64) error {
	s.incr("duplicates", source, delta)
	return nil
}

func (s *MemoryStore) MarkSourceSuccess(ctx context.Context, source string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sources[source] == nil {
		s.sources[source] = &models.SourceMetrics{}
	}
	s.sources[source].LastSuccess = &at
	return nil
}

func (s *MemoryStore) Global(ctx context.Context) (Counts, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.global, nil
}

func (s *MemoryStore) Daily(ctx context.Context, date string) (Counts, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if c := s.daily[date]; c != nil {
		return *c, nil
	}
	return Counts{}, nil
}

func (s *MemoryStore) Source(ctx context.Context, name string) (models.SourceMetrics, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if m := s.sources[name]; m != nil {
		return *m, nil
	}
	return models.SourceMetrics{}, nil
}

func (c *Counts) get(field string) int64 {
	switch field {
	case "found":
		return c.Found
	case "added":
		return c.Added
	case "rejected":
		return c.Rejected
	case "duplicates":
		return c.Duplicates
	}
	return 0
}
