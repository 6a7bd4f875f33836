package cache

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"carscout/config"
	"carscout/models"
)

const keyPrefix = "carscout:pass:"

// Redis backs the pass cache with a shared Redis instance so multiple
// engine processes do not hammer the same source for the same query.
// Failures degrade to cache misses; the cache is an optimization, never a
// dependency.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedis(cfg *config.RedisConfig, ttl time.Duration) *Redis {
	return &Redis{
		client: redis.NewClient(&redis.Options{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
		}),
		ttl: ttl,
	}
}

func (r *Redis) Get(ctx context.Context, key string) ([]models.RawListing, bool) {
	data, err := r.client.Get(ctx, keyPrefix+key).Bytes()
	if err != nil {
		if err != redis.Nil {
			log.Printf("cache: redis get: %v", err)
		}
		return nil, false
	}

	var items []models.RawListing
	if err := json.Unmarshal(data, &items); err != nil {
		log.Printf("cache: redis entry corrupt, dropping: %v", err)
		r.client.Del(ctx, keyPrefix+key)
		return nil, false
	}
	return items, true
}

func (r *Redis) Put(ctx context.Context, key string, items []models.RawListing) {
	data, err := json.Marshal(items)
	if err != nil {
		log.Printf("cache: marshal entry: %v", err)
		return
	}
	if err := r.client.Set(ctx, keyPrefix+key, data, r.ttl).Err(); err != nil {
		log.Printf("cache: redis set: %v", err)
	}
}

func (r *Redis) Close() error {
	return r.client.Close()
}
