package cache

import (
	"context"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ZaguanLabs/tlcache"
	"github.com/ZaguanLabs/tlcache/codec"
)

// RedisConfig holds configuration for the Redis hot tier.
type RedisConfig struct {
	URL       string        // Redis connection URL (e.g., "redis://localhost:6379")
	TTL       time.Duration // Expiry of hot entries (0 = no expiration)
	KeyPrefix string        // Prefix for all keys (default: "tlcache:")
}

// RedisTier fronts a durable cache with Redis. Reads are served from Redis
// first and fall through to the durable cache for the rest, backfilling what
// it finds. Writes go to the durable cache first. Redis failures are logged
// and never fail a call.
type RedisTier struct {
	client    *redis.Client
	next      tlcache.TranslationCache
	ttl       time.Duration
	keyPrefix string
	logger    *slog.Logger
}

// NewRedisTier connects to Redis and returns a tier in front of next.
func NewRedisTier(ctx context.Context, next tlcache.TranslationCache, cfg RedisConfig) (*RedisTier, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)

	// Test connection
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, err
	}

	return NewRedisTierFromClient(client, next, cfg.TTL, cfg.KeyPrefix), nil
}

// NewRedisTierFromClient creates a tier from an existing Redis client.
func NewRedisTierFromClient(client *redis.Client, next tlcache.TranslationCache, ttl time.Duration, keyPrefix string) *RedisTier {
	if keyPrefix == "" {
		keyPrefix = "tlcache:"
	}
	if ttl < 0 {
		ttl = 0
	}
	return &RedisTier{
		client:    client,
		next:      next,
		ttl:       ttl,
		keyPrefix: keyPrefix,
		logger:    slog.Default(),
	}
}

// SetLogger sets the logger used for Redis failures.
func (t *RedisTier) SetLogger(logger *slog.Logger) {
	t.logger = logger
}

func (t *RedisTier) redisKey(k tlcache.CacheKey) string {
	return t.keyPrefix + k.Digest()
}

// BatchGet implements tlcache.TranslationCache.
func (t *RedisTier) BatchGet(ctx context.Context, keys []tlcache.CacheKey) (map[string]tlcache.Record, error) {
	found := make(map[string]tlcache.Record)
	if len(keys) == 0 {
		return found, nil
	}
	if _, err := checkScope(keys); err != nil {
		return nil, err
	}

	unique := make([]tlcache.CacheKey, 0, len(keys))
	seen := make(map[tlcache.CacheKey]bool, len(keys))
	for _, k := range keys {
		if !seen[k] {
			seen[k] = true
			unique = append(unique, k)
		}
	}

	misses := t.readHot(ctx, unique, found)
	if len(misses) == 0 {
		return found, nil
	}

	cold, err := t.next.BatchGet(ctx, misses)
	if err != nil {
		return nil, err
	}

	backfill := make([]tlcache.Entry, 0, len(cold))
	for _, k := range misses {
		if rec, ok := cold[k.SourceText]; ok {
			found[k.SourceText] = rec
			backfill = append(backfill, tlcache.Entry{Key: k, Record: rec})
		}
	}
	t.writeHot(ctx, backfill)

	return found, nil
}

// readHot fills found from Redis and returns the keys it could not serve.
func (t *RedisTier) readHot(ctx context.Context, keys []tlcache.CacheKey, found map[string]tlcache.Record) []tlcache.CacheKey {
	redisKeys := make([]string, len(keys))
	for i, k := range keys {
		redisKeys[i] = t.redisKey(k)
	}

	vals, err := t.client.MGet(ctx, redisKeys...).Result()
	if err != nil {
		t.logger.Warn("redis read failed", slog.Int("keys", len(keys)), slog.String("error", err.Error()))
		return keys
	}

	var misses []tlcache.CacheKey
	for i, k := range keys {
		s, ok := vals[i].(string)
		if !ok {
			misses = append(misses, k)
			continue
		}
		rec, err := codec.DecodeFor([]byte(s), k.SourceText)
		if err != nil {
			t.logger.Warn("skipping corrupt redis entry", slog.String("key", redisKeys[i]), slog.String("error", err.Error()))
			misses = append(misses, k)
			continue
		}
		found[k.SourceText] = rec
	}
	return misses
}

// BatchPut implements tlcache.TranslationCache. The durable cache is written
// first; the call fails only if that write fails.
func (t *RedisTier) BatchPut(ctx context.Context, entries []tlcache.Entry) error {
	if len(entries) == 0 {
		return nil
	}
	if err := t.next.BatchPut(ctx, entries); err != nil {
		return err
	}
	t.writeHot(ctx, entries)
	return nil
}

func (t *RedisTier) writeHot(ctx context.Context, entries []tlcache.Entry) {
	if len(entries) == 0 {
		return
	}

	_, err := t.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, e := range entries {
			blob, err := codec.Encode(e.Key.SourceText, e.Record)
			if err != nil {
				return err
			}
			pipe.Set(ctx, t.redisKey(e.Key), string(blob), t.ttl)
		}
		return nil
	})
	if err != nil {
		t.logger.Warn("redis write failed", slog.Int("entries", len(entries)), slog.String("error", err.Error()))
	}
}

// Each streams the durable cache's entries when it supports enumeration.
func (t *RedisTier) Each(ctx context.Context, fn func(tlcache.Entry) error) error {
	src, ok := t.next.(Source)
	if !ok {
		return &tlcache.PermanentBackendError{Op: "each", Cause: errUnsupportedSource}
	}
	return src.Each(ctx, fn)
}

// Close closes the Redis connection. The durable cache is left open.
func (t *RedisTier) Close() error {
	return t.client.Close()
}

// Ping tests the Redis connection.
func (t *RedisTier) Ping(ctx context.Context) error {
	return t.client.Ping(ctx).Err()
}

var (
	_ tlcache.TranslationCache = (*RedisTier)(nil)
	_ Source                   = (*RedisTier)(nil)
)
