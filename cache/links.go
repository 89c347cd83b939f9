// Package cache keeps public link reads off the database.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/basit/rushupload-backend/models"
)

const linkCachePrefix = "rushupload:link:"

// LinkCache stores resolved links by id. Implementations fail open: an
// unreachable cache is a miss, never an error.
type LinkCache interface {
	Get(ctx context.Context, id string) (*models.Link, bool)
	Set(ctx context.Context, link *models.Link)
	Invalidate(ctx context.Context, id string)
}

type RedisLinkCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisLinkCache(client *redis.Client, ttl time.Duration) *RedisLinkCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &RedisLinkCache{client: client, ttl: ttl}
}

func (c *RedisLinkCache) Get(ctx context.Context, id string) (*models.Link, bool) {
	data, err := c.client.Get(ctx, linkCachePrefix+id).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Debug().Err(err).Str("link_id", id).Msg("link cache read failed")
		}
		return nil, false
	}

	var link models.Link
	if err := json.Unmarshal(data, &link); err != nil {
		return nil, false
	}
	return &link, true
}

func (c *RedisLinkCache) Set(ctx context.Context, link *models.Link) {
	if link == nil {
		return
	}
	data, err := json.Marshal(link)
	if err != nil {
		log.Warn().Err(err).Str("link_id", link.ID).Msg("marshal link for cache")
		return
	}
	if err := c.client.Set(ctx, linkCachePrefix+link.ID, data, c.ttl).Err(); err != nil {
		log.Debug().Err(err).Str("link_id", link.ID).Msg("link cache write failed")
	}
}

func (c *RedisLinkCache) Invalidate(ctx context.Context, id string) {
	if err := c.client.Del(ctx, linkCachePrefix+id).Err(); err != nil {
		log.Warn().Err(err).Str("link_id", id).Msg("link cache invalidation failed")
	}
}

// NoopLinkCache is used when no redis is configured.
type NoopLinkCache struct{}

func (NoopLinkCache) Get(context.Context, string) (*models.Link, bool) { return nil, false }
func (NoopLinkCache) Set(context.Context, *models.Link)                {}
func (NoopLinkCache) Invalidate(context.Context, string)               {}
