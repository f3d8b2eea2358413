// Package redis implements the Redis read-through cache for reconciled day
// schedules and the refresh lock shared by worker instances.
package redis

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/schedule-hub/schedule-hub/internal/domain/schedule"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// Config holds Redis connection configuration.
type Config struct {
	// URL, when set, is parsed with redis.ParseURL and takes precedence over
	// Addr, Password and DB.
	URL string

	// Addr is "host:port".
	Addr     string
	Password string
	DB       int

	// Namespace prefixes every key so several deployments can share one database.
	Namespace string

	PoolSize     int
	MinIdleConns int
	MaxRetries   int

	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultConfig returns a sensible default configuration.
func DefaultConfig() Config {
	return Config{
		Addr:         "localhost:6379",
		Namespace:    "schedule",
		PoolSize:     10,
		MinIdleConns: 2,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}
}

var (
	// ErrCacheMiss is returned when the requested day is not cached.
	ErrCacheMiss = errors.New("cache: key not found")

	// ErrCacheConnection is returned when Redis connection fails.
	ErrCacheConnection = errors.New("cache: connection failed")

	// ErrCacheSerialization is returned when a cached day cannot be decoded.
	ErrCacheSerialization = errors.New("cache: serialization failed")

	// ErrLockNotHeld is returned when releasing a lock that expired or was
	// taken over by another owner.
	ErrLockNotHeld = errors.New("cache: lock not held")
)

// ══════════════════════════════════════════════════════════════════════════════
// CLIENT
// ══════════════════════════════════════════════════════════════════════════════

// Cache owns the Redis client and the key layout.
type Cache struct {
	client redis.UniversalClient
	keys   keyspace
}

// NewCache connects to Redis and verifies the connection.
func NewCache(ctx context.Context, cfg Config) (*Cache, error) {
	if cfg.Namespace == "" {
		cfg.Namespace = DefaultConfig().Namespace
	}
	opts, err := cfg.options()
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, opts.DialTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("%w: %s: %v", ErrCacheConnection, opts.Addr, err)
	}
	return &Cache{client: client, keys: keyspace(cfg.Namespace)}, nil
}

// options translates Config into client options. Zero pool and timeout
// values fall back to DefaultConfig.
func (cfg Config) options() (*redis.Options, error) {
	def := DefaultConfig()
	opts := &redis.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB}
	if cfg.URL != "" {
		parsed, err := redis.ParseURL(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("%w: bad url: %v", ErrCacheConnection, err)
		}
		opts = parsed
	}
	if opts.Addr == "" {
		opts.Addr = def.Addr
	}

	opts.PoolSize = cmp.Or(cfg.PoolSize, def.PoolSize)
	opts.MinIdleConns = cmp.Or(cfg.MinIdleConns, def.MinIdleConns)
	opts.MaxRetries = cmp.Or(cfg.MaxRetries, def.MaxRetries)
	opts.DialTimeout = cmp.Or(cfg.DialTimeout, def.DialTimeout)
	opts.ReadTimeout = cmp.Or(cfg.ReadTimeout, def.ReadTimeout)
	opts.WriteTimeout = cmp.Or(cfg.WriteTimeout, def.WriteTimeout)
	return opts, nil
}

// Close closes the Redis connection.
func (c *Cache) Close() error {
	return c.client.Close()
}

// Ping checks if Redis is reachable.
func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// ══════════════════════════════════════════════════════════════════════════════
// KEYS
// ══════════════════════════════════════════════════════════════════════════════

// keyspace builds every key under one namespace:
//
//	<ns>:day:<group>:<yyyy-MM-dd>   JSON array of reconciled lessons
//	<ns>:days:<group>               set of the group's cached day keys
//	<ns>:lock:refresh:<group>       refresh lock token
type keyspace string

func (k keyspace) day(group string, date time.Time) string {
	return string(k) + ":day:" + group + ":" + schedule.DateKey(date)
}

func (k keyspace) dayIndex(group string) string {
	return string(k) + ":days:" + group
}

func (k keyspace) generation(group string) string {
	return string(k) + ":gen:" + group
}

func (k keyspace) refreshLock(group string) string {
	return string(k) + ":lock:refresh:" + group
}

func validGroup(group string) error {
	if strings.TrimSpace(group) == "" {
		return errors.New("cache: group cannot be empty")
	}
	return nil
}
