package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/schedule-hub/schedule-hub/internal/domain/schedule"
)

// DefaultDayTTL bounds how long a reconciled day may be served after a feed refresh
// that failed to invalidate it.
const DefaultDayTTL = 30 * time.Minute

// ScheduleCache caches reconciled day schedules per (group, date).
//
// Every cached day is also recorded in a per-group index set, so a refresh can
// drop the whole group without scanning the keyspace. Each group also carries a
// generation counter: invalidation bumps it, and SetDay only writes when the
// generation the caller read before reconciling is still current.
type ScheduleCache struct {
	cache *Cache
	ttl   time.Duration
}

// NewScheduleCache creates a ScheduleCache. A non-positive ttl uses DefaultDayTTL.
func NewScheduleCache(cache *Cache, ttl time.Duration) *ScheduleCache {
	if ttl <= 0 {
		ttl = DefaultDayTTL
	}
	return &ScheduleCache{cache: cache, ttl: ttl}
}

// GetDay returns the cached lessons, or ErrCacheMiss.
func (s *ScheduleCache) GetDay(ctx context.Context, group string, date time.Time) ([]schedule.Lesson, error) {
	if err := validGroup(group); err != nil {
		return nil, err
	}

	data, err := s.cache.client.Get(ctx, s.cache.keys.day(group, date)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss
		}
		return nil, err
	}
	return decodeDay(data)
}

// setDayScript writes a day and indexes it only while the group's generation
// still equals ARGV[1].
//
// KEYS: generation, day, day index. ARGV: generation, payload, day ttl ms, index ttl ms.
var setDayScript = redis.NewScript(`
local current = redis.call("GET", KEYS[1]) or "0"
if current ~= ARGV[1] then
	return 0
end
redis.call("SET", KEYS[2], ARGV[2], "PX", ARGV[3])
redis.call("SADD", KEYS[3], KEYS[2])
redis.call("PEXPIRE", KEYS[3], ARGV[4])
return 1
`)

// Generation returns the group's cache generation. A group never invalidated
// is at generation 0.
func (s *ScheduleCache) Generation(ctx context.Context, group string) (int64, error) {
	if err := validGroup(group); err != nil {
		return 0, err
	}

	gen, err := s.cache.client.Get(ctx, s.cache.keys.generation(group)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return gen, err
}

// SetDay stores the reconciled lessons of a day. An empty day is cached too.
// The write is skipped when the group was invalidated after generation was read.
func (s *ScheduleCache) SetDay(ctx context.Context, group string, date time.Time, generation int64, lessons []schedule.Lesson) error {
	if err := validGroup(group); err != nil {
		return err
	}

	data, err := encodeDay(lessons)
	if err != nil {
		return err
	}

	keys := []string{
		s.cache.keys.generation(group),
		s.cache.keys.day(group, date),
		s.cache.keys.dayIndex(group),
	}
	return setDayScript.Run(ctx, s.cache.client, keys,
		strconv.FormatInt(generation, 10), data, s.ttl.Milliseconds(), (2 * s.ttl).Milliseconds(),
	).Err()
}

// InvalidateDay drops one cached day.
func (s *ScheduleCache) InvalidateDay(ctx context.Context, group string, date time.Time) error {
	if err := validGroup(group); err != nil {
		return err
	}

	dayKey := s.cache.keys.day(group, date)
	_, err := s.cache.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, s.cache.keys.generation(group))
		pipe.Del(ctx, dayKey)
		pipe.SRem(ctx, s.cache.keys.dayIndex(group), dayKey)
		return nil
	})
	return err
}

// InvalidateGroup drops every cached day of the group.
func (s *ScheduleCache) InvalidateGroup(ctx context.Context, group string) error {
	if err := validGroup(group); err != nil {
		return err
	}

	if err := s.cache.client.Incr(ctx, s.cache.keys.generation(group)).Err(); err != nil {
		return fmt.Errorf("failed to bump generation of %s: %w", group, err)
	}

	indexKey := s.cache.keys.dayIndex(group)
	days, err := s.cache.client.SMembers(ctx, indexKey).Result()
	if err != nil {
		return fmt.Errorf("failed to read day index of %s: %w", group, err)
	}
	return s.cache.client.Del(ctx, append(days, indexKey)...).Err()
}

func encodeDay(lessons []schedule.Lesson) ([]byte, error) {
	if lessons == nil {
		lessons = []schedule.Lesson{}
	}
	data, err := json.Marshal(lessons)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCacheSerialization, err)
	}
	return data, nil
}

func decodeDay(data []byte) ([]schedule.Lesson, error) {
	var lessons []schedule.Lesson
	if err := json.Unmarshal(data, &lessons); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCacheSerialization, err)
	}
	return lessons, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// REFRESH LOCK
// ══════════════════════════════════════════════════════════════════════════════

// RefreshLock keeps two workers from refreshing the same group at once.
// Each acquisition stores a random token; only the holder of the token can
// release the lock early. A holder that dies is released by expiry.
type RefreshLock struct {
	cache *Cache
	ttl   time.Duration
}

// releaseScript deletes KEYS[1] only when it still holds ARGV[1].
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// NewRefreshLock creates a RefreshLock.
func NewRefreshLock(cache *Cache, ttl time.Duration) *RefreshLock {
	return &RefreshLock{cache: cache, ttl: ttl}
}

// TryAcquire reports whether the caller now owns the group's refresh slot and
// returns the token to release it with.
func (l *RefreshLock) TryAcquire(ctx context.Context, group string) (string, bool, error) {
	if err := validGroup(group); err != nil {
		return "", false, err
	}
	token := uuid.NewString()
	ok, err := l.cache.client.SetNX(ctx, l.cache.keys.refreshLock(group), token, l.ttl).Result()
	if err != nil {
		return "", false, fmt.Errorf("failed to acquire refresh lock for %s: %w", group, err)
	}
	if !ok {
		return "", false, nil
	}
	return token, true, nil
}

// Release frees the lock if token still owns it. ErrLockNotHeld means the
// lock expired first, possibly while another worker took it over.
func (l *RefreshLock) Release(ctx context.Context, group, token string) error {
	if err := validGroup(group); err != nil {
		return err
	}
	if token == "" {
		return ErrLockNotHeld
	}
	n, err := releaseScript.Run(ctx, l.cache.client, []string{l.cache.keys.refreshLock(group)}, token).Int()
	if err != nil {
		return fmt.Errorf("failed to release refresh lock for %s: %w", group, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: refresh %s", ErrLockNotHeld, group)
	}
	return nil
}
