// Package cache keeps rendered asset-list pages in Redis. Keys carry a
// version counter that every mutation bumps, so invalidation is one INCR
// instead of a scan. The whole layer is optional: a nil *Cache is a no-op.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"gallery/access"
	"gallery/store"
)

const (
	versionKey = "gallery:assets:version"
	keyPrefix  = "gallery:assets:"
	pageTTL    = 5 * time.Minute
)

type Cache struct {
	client *redis.Client
}

// New connects to Redis at addr; an empty addr disables the cache. A Redis
// that is configured but unreachable also disables it rather than failing
// startup.
func New(addr string) *Cache {
	if addr == "" {
		return nil
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		log.Warn().Err(err).Str("addr", addr).Msg("Redis configured but unreachable, cache disabled")
		_ = client.Close()
		return nil
	}
	log.Info().Str("addr", addr).Msg("Redis asset cache connected")
	return &Cache{client: client}
}

func (c *Cache) Enabled() bool {
	return c != nil
}

func (c *Cache) Close() {
	if c != nil {
		_ = c.client.Close()
	}
}

func (c *Cache) Ping(ctx context.Context) error {
	if c == nil {
		return nil
	}
	return c.client.Ping(ctx).Err()
}

// PageKey builds a cache key for one list page scoped to the caller's view.
func (c *Cache) PageKey(scope access.Scope, filter store.AssetFilter) string {
	version := "0"
	if c != nil {
		if v, err := c.client.Get(context.Background(), versionKey).Result(); err == nil {
			version = v
		}
	}
	qhash := sha256.Sum256([]byte(filter.Query))
	album := uint64(0)
	if filter.AlbumID != nil {
		album = *filter.AlbumID
	}
	public := 0
	if scope.Anonymous {
		public = 1
	}
	return fmt.Sprintf("%s%s:p%d:q%s:t%d:u%d:a%d:pub%d:adm%t",
		keyPrefix, version, filter.Page, hex.EncodeToString(qhash[:8]),
		scope.TenantID, scope.UserID, album, public, scope.IsAdmin())
}

func (c *Cache) GetPage(ctx context.Context, key string) ([]byte, bool) {
	if c == nil {
		return nil, false
	}
	raw, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		return nil, false
	}
	return raw, true
}

func (c *Cache) SetPage(ctx context.Context, key string, payload []byte) {
	if c == nil {
		return
	}
	if err := c.client.Set(ctx, key, payload, pageTTL).Err(); err != nil {
		log.Debug().Err(err).Msg("Redis set failed")
	}
}

// Invalidate bumps the version; old keys fall out of scope and expire.
func (c *Cache) Invalidate(ctx context.Context) {
	if c == nil {
		return
	}
	if err := c.client.Incr(ctx, versionKey).Err(); err != nil {
		log.Warn().Err(err).Msg("Redis cache invalidation failed")
	}
}
