// Package redis implements the warm-state cache: per-course seen-id
// snapshots that let a restarted bot resume change detection without
// re-priming against the LMS.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// Config holds Redis connection configuration.
type Config struct {
	// Addr is the Redis address in "host:port" format.
	Addr string

	// Password is the Redis authentication password (empty if no auth).
	Password string

	// DB is the Redis database number.
	DB int

	// DialTimeout is the timeout for establishing new connections.
	DialTimeout time.Duration

	// ReadTimeout / WriteTimeout bound individual commands.
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultConfig returns a sensible default configuration.
func DefaultConfig() Config {
	return Config{
		Addr:        "localhost:6379",
		DialTimeout: 5 * time.Second,
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// ERRORS
// ══════════════════════════════════════════════════════════════════════════════

var (
	// ErrCacheMiss is returned when no snapshot exists for the course.
	ErrCacheMiss = errors.New("cache: key not found")

	// ErrCacheConnection is returned when the Redis connection fails.
	ErrCacheConnection = errors.New("cache: connection failed")
)

// keyPrefix namespaces the per-course snapshot keys.
const keyPrefix = "herald:seen:"

// snapshotTTL bounds staleness; far longer than any poll gap but short
// enough that abandoned deployments do not leak keys forever.
const snapshotTTL = 7 * 24 * time.Hour

// ══════════════════════════════════════════════════════════════════════════════
// STATE CACHE
// ══════════════════════════════════════════════════════════════════════════════

// StateCache stores the engine's per-course seen-id snapshots.
type StateCache struct {
	client *redis.Client
	logger zerolog.Logger
}

// NewStateCache creates a state cache and verifies the connection.
func NewStateCache(cfg Config, logger zerolog.Logger) (*StateCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), cfg.DialTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCacheConnection, err)
	}

	return &StateCache{
		client: client,
		logger: logger.With().Str("component", "redis.state").Logger(),
	}, nil
}

// Close closes the Redis connection.
func (c *StateCache) Close() error {
	return c.client.Close()
}

// Ping checks if Redis is reachable.
func (c *StateCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// SaveSeen stores a course's seen-id snapshot. value must be JSON-serializable.
func (c *StateCache) SaveSeen(ctx context.Context, courseID string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	return c.client.Set(ctx, keyPrefix+courseID, data, snapshotTTL).Err()
}

// LoadSeen reads a course's snapshot into dest. Returns ErrCacheMiss when
// no snapshot exists.
func (c *StateCache) LoadSeen(ctx context.Context, courseID string, dest any) error {
	data, err := c.client.Get(ctx, keyPrefix+courseID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrCacheMiss
		}
		return err
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("decode snapshot: %w", err)
	}
	return nil
}

// DeleteSeen removes a course's snapshot.
func (c *StateCache) DeleteSeen(ctx context.Context, courseID string) error {
	return c.client.Del(ctx, keyPrefix+courseID).Err()
}
