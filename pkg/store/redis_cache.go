package store

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// RedisAliasCache keeps alias records in Redis hashes keyed by legacy id,
// with a secondary slug→legacy-id index. A cache miss and a Redis outage
// both read as nil; the resolution chain treats them the same way.
type RedisAliasCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

var _ AliasCache = &RedisAliasCache{}

// NewRedisAliasCache connects to addr. prefix namespaces keys (defaults to
// "convlink"); ttl of zero keeps entries forever.
func NewRedisAliasCache(addr, prefix string, ttl time.Duration) *RedisAliasCache {
	if strings.TrimSpace(prefix) == "" {
		prefix = "convlink"
	}
	return &RedisAliasCache{
		client: redis.NewClient(&redis.Options{Addr: addr}),
		prefix: prefix,
		ttl:    ttl,
	}
}

func (c *RedisAliasCache) legacyKey(legacyID int64) string {
	return c.prefix + ":alias:legacy:" + strconv.FormatInt(legacyID, 10)
}

func (c *RedisAliasCache) slugKey(slug string) string {
	return c.prefix + ":alias:slug:" + slug
}

func (c *RedisAliasCache) GetByLegacyID(ctx context.Context, legacyID int64) (*AliasRecord, error) {
	vals, err := c.client.HGetAll(ctx, c.legacyKey(legacyID)).Result()
	if err != nil {
		return nil, errors.Wrap(err, "redis alias cache: hgetall")
	}
	if len(vals) == 0 || vals["uuid"] == "" {
		return nil, nil
	}
	rec := &AliasRecord{LegacyID: legacyID, UUID: vals["uuid"], Slug: vals["slug"]}
	if ms, err := strconv.ParseInt(vals["last_seen_at_ms"], 10, 64); err == nil {
		rec.LastSeenAt = time.UnixMilli(ms)
	}
	return rec, nil
}

func (c *RedisAliasCache) GetBySlug(ctx context.Context, slug string) (*AliasRecord, error) {
	raw, err := c.client.Get(ctx, c.slugKey(slug)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "redis alias cache: get slug index")
	}
	legacyID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		log.Warn().Str("slug", slug).Str("value", raw).Msg("alias cache slug index holds a non-numeric legacy id")
		return nil, nil
	}
	return c.GetByLegacyID(ctx, legacyID)
}

func (c *RedisAliasCache) Put(ctx context.Context, rec AliasRecord) error {
	if rec.LastSeenAt.IsZero() {
		rec.LastSeenAt = time.Now()
	}
	key := c.legacyKey(rec.LegacyID)

	// Keep last_seen_at monotonic under concurrent writers: read-modify-write
	// inside a watch. Losing the race and retrying once is fine; the write is
	// idempotent.
	txn := func(tx *redis.Tx) error {
		prevMs, _ := tx.HGet(ctx, key, "last_seen_at_ms").Int64()
		ms := rec.LastSeenAt.UnixMilli()
		if prevMs > ms {
			ms = prevMs
		}
		_, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, map[string]any{
				"uuid":            strings.ToLower(rec.UUID),
				"slug":            rec.Slug,
				"last_seen_at_ms": ms,
			})
			if c.ttl > 0 {
				pipe.Expire(ctx, key, c.ttl)
			}
			if rec.Slug != "" {
				pipe.Set(ctx, c.slugKey(rec.Slug), strconv.FormatInt(rec.LegacyID, 10), c.ttl)
			}
			return nil
		})
		return err
	}
	err := c.client.Watch(ctx, txn, key)
	if err == redis.TxFailedErr {
		err = c.client.Watch(ctx, txn, key)
	}
	return errors.Wrap(err, "redis alias cache: put")
}

func (c *RedisAliasCache) Close() error {
	return c.client.Close()
}
