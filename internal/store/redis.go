package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/aaaalabs/kinn-radar/internal/models"
)

// Key layout. Everything lives under the radar: prefix so the instance can
// be shared with other site features.
const (
	keyEventPrefix   = "radar:event:"
	keyAllIDs        = "radar:events:all"
	keyDatePrefix    = "radar:events:date:"
	keyGlobalPrefix  = "radar:metrics:"
	keyDailyPrefix   = "radar:metrics:daily:"
	keySourcePrefix  = "radar:metrics:source:"
	fieldLastSuccess = "lastSuccess"

	// Daily counter keys expire after 90 days; nothing reads further back.
	dailyTTL = 90 * 24 * time.Hour
)

var counterFields = []string{"found", "added", "rejected", "duplicates"}

// RedisStore implements EventStore and MetricsCollector on a Redis client.
type RedisStore struct {
	client *redis.Client
}

var (
	_ EventStore       = (*RedisStore)(nil)
	_ MetricsCollector = (*RedisStore)(nil)
)

// NewRedisStore wraps an existing client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// Connect dials Redis and verifies the connection.
func Connect(ctx context.Context, addr, password string, db int) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return NewRedisStore(client), nil
}

// Put writes the record, then the id-set and per-date index. Index failures
// after a successful record write are surfaced but leave the store in a
// self-healing state (the sweep rebuilds from the id set).
func (s *RedisStore) Put(ctx context.Context, rec models.EventRecord) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal record %s: %w", rec.ID, err)
	}

	if err := s.client.Set(ctx, keyEventPrefix+rec.ID, payload, 0).Err(); err != nil {
		return fmt.Errorf("write record %s: %w", rec.ID, err)
	}
	if err := s.client.SAdd(ctx, keyAllIDs, rec.ID).Err(); err != nil {
		return fmt.Errorf("index record %s: %w", rec.ID, err)
	}
	if rec.Date != "" {
		if err := s.client.SAdd(ctx, keyDatePrefix+rec.Date, rec.ID).Err(); err != nil {
			return fmt.Errorf("date-index record %s: %w", rec.ID, err)
		}
	}
	return nil
}

// Get retrieves a record by id.
func (s *RedisStore) Get(ctx context.Context, id string) (*models.EventRecord, error) {
	payload, err := s.client.Get(ctx, keyEventPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read record %s: %w", id, err)
	}

	var rec models.EventRecord
	if err := json.Unmarshal(payload, &rec); err != nil {
		return nil, fmt.Errorf("decode record %s: %w", id, err)
	}
	return &rec, nil
}

// Exists checks id-set membership.
func (s *RedisStore) Exists(ctx context.Context, id string) (bool, error) {
	ok, err := s.client.SIsMember(ctx, keyAllIDs, id).Result()
	if err != nil {
		return false, fmt.Errorf("exists %s: %w", id, err)
	}
	return ok, nil
}

// Remove deletes the record and both index entries. Idempotent.
func (s *RedisStore) Remove(ctx context.Context, id string) error {
	rec, err := s.Get(ctx, id)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}

	if err := s.client.Del(ctx, keyEventPrefix+id).Err(); err != nil {
		return fmt.Errorf("delete record %s: %w", id, err)
	}
	if err := s.client.SRem(ctx, keyAllIDs, id).Err(); err != nil {
		return fmt.Errorf("deindex record %s: %w", id, err)
	}
	if rec != nil && rec.Date != "" {
		if err := s.client.SRem(ctx, keyDatePrefix+rec.Date, id).Err(); err != nil {
			return fmt.Errorf("date-deindex record %s: %w", id, err)
		}
	}
	return nil
}

// ListIDs re-reads the global id set.
func (s *RedisStore) ListIDs(ctx context.Context) ([]string, error) {
	ids, err := s.client.SMembers(ctx, keyAllIDs).Result()
	if err != nil {
		return nil, fmt.Errorf("list ids: %w", err)
	}
	return ids, nil
}

// ListAll loads every record in the id set, skipping orphaned ids.
func (s *RedisStore) ListAll(ctx context.Context) ([]models.EventRecord, error) {
	ids, err := s.ListIDs(ctx)
	if err != nil {
		return nil, err
	}

	records := make([]models.EventRecord, 0, len(ids))
	for _, id := range ids {
		rec, err := s.Get(ctx, id)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	return records, nil
}

// Count returns the id-set cardinality.
func (s *RedisStore) Count(ctx context.Context) (int64, error) {
	n, err := s.client.SCard(ctx, keyAllIDs).Result()
	if err != nil {
		return 0, fmt.Errorf("count: %w", err)
	}
	return n, nil
}

// incr bumps one counter in all three scopes.
func (s *RedisStore) incr(ctx context.Context, field, source string, delta int64) error {
	if delta == 0 {
		return nil
	}

	if err := s.client.IncrBy(ctx, keyGlobalPrefix+field, delta).Err(); err != nil {
		return fmt.Errorf("incr global %s: %w", field, err)
	}

	dailyKey := keyDailyPrefix + time.Now().Format(models.DateLayout) + ":" + field
	if err := s.client.IncrBy(ctx, dailyKey, delta).Err(); err != nil {
		return fmt.Errorf("incr daily %s: %w", field, err)
	}
	s.client.Expire(ctx, dailyKey, dailyTTL)

	if source != "" {
		if err := s.client.HIncrBy(ctx, keySourcePrefix+source, field, delta).Err(); err != nil {
			return fmt.Errorf("incr source %s/%s: %w", source, field, err)
		}
	}
	return nil
}

func (s *RedisStore) IncrFound(ctx context.Context, source string, delta int64) error {
	return s.incr(ctx, "found", source, delta)
}

func (s *RedisStore) IncrAdded(ctx context.Context, source string, delta int64) error {
	return s.incr(ctx, "added", source, delta)
}

func (s *RedisStore) IncrRejected(ctx context.Context, source string, delta int64) error {
	return s.incr(ctx, "rejected", source, delta)
}

func (s *RedisStore) IncrDuplicates(ctx context.Context, source string, delta int64) error {
	return s.incr(ctx, "duplicates", source, delta)
}

// MarkSourceSuccess stores the last successful run timestamp per source.
func (s *RedisStore) MarkSourceSuccess(ctx context.Context, source string, at time.Time) error {
	err := s.client.HSet(ctx, keySourcePrefix+source, fieldLastSuccess, at.Format(time.RFC3339)).Err()
	if err != nil {
		return fmt.Errorf("mark success %s: %w", source, err)
	}
	return nil
}

// Global reads the all-time counter block.
func (s *RedisStore) Global(ctx context.Context) (Counts, error) {
	var counts Counts
	for _, field := range counterFields {
		raw, err := s.client.Get(ctx, keyGlobalPrefix+field).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return Counts{}, fmt.Errorf("read global %s: %w", field, err)
		}
		n, _ := strconv.ParseInt(raw, 10, 64)
		counts.set(field, n)
	}
	return counts, nil
}

// Daily reads one day's counter block.
func (s *RedisStore) Daily(ctx context.Context, date string) (Counts, error) {
	var counts Counts
	for _, field := range counterFields {
		raw, err := s.client.Get(ctx, keyDailyPrefix+date+":"+field).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return Counts{}, fmt.Errorf("read daily %s: %w", field, err)
		}
		n, _ := strconv.ParseInt(raw, 10, 64)
		counts.set(field, n)
	}
	return counts, nil
}

// Source reads the per-source metrics hash.
func (s *RedisStore) Source(ctx context.Context, name string) (models.SourceMetrics, error) {
	fields, err := s.client.HGetAll(ctx, keySourcePrefix+name).Result()
	if err != nil {
		return models.SourceMetrics{}, fmt.Errorf("read source %s: %w", name, err)
	}

	var m models.SourceMetrics
	m.Found, _ = strconv.ParseInt(fields["found"], 10, 64)
	m.Added, _ = strconv.ParseInt(fields["added"], 10, 64)
	m.Rejected, _ = strconv.ParseInt(fields["rejected"], 10, 64)
	m.Duplicates, _ = strconv.ParseInt(fields["duplicates"], 10, 64)
	if raw := fields[fieldLastSuccess]; raw != "" {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			m.LastSuccess = &t
		}
	}
	return m, nil
}

func (c *Counts) set(field string, n int64) {
	switch field {
	case "found":
		c.Found = n
	case "added":
		c.Added = n
	case "rejected":
		c.Rejected = n
	case "duplicates":
		c.Duplicates = n
	}
}
