package redisstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"collection-service/internal/entity"
)

// ReferenceSource is the uncached lookup behind ReferenceCache.
type ReferenceSource interface {
	Category(ctx context.Context, id int64) (*entity.Category, error)
	SubCategory(ctx context.Context, id int64) (*entity.SubCategory, error)
}

// ReferenceCache is a read-through cache of category rows. Cache errors fall
// back to the source.
type ReferenceCache struct {
	rdb    *redis.Client
	source ReferenceSource
	ttl    time.Duration
}

func NewReferenceCache(rdb *redis.Client, source ReferenceSource, ttl time.Duration) *ReferenceCache {
	return &ReferenceCache{rdb: rdb, source: source, ttl: ttl}
}

func (c *ReferenceCache) Category(ctx context.Context, id int64) (*entity.Category, error) {
	key := fmt.Sprintf("ref:category:%d", id)
	var cat entity.Category
	if c.get(ctx, key, &cat) {
		return &cat, nil
	}
	got, err := c.source.Category(ctx, id)
	if err != nil {
		return nil, err
	}
	c.set(ctx, key, got)
	return got, nil
}

func (c *ReferenceCache) SubCategory(ctx context.Context, id int64) (*entity.SubCategory, error) {
	key := fmt.Sprintf("ref:sub_category:%d", id)
	var sub entity.SubCategory
	if c.get(ctx, key, &sub) {
		return &sub, nil
	}
	got, err := c.source.SubCategory(ctx, id)
	if err != nil {
		return nil, err
	}
	c.set(ctx, key, got)
	return got, nil
}

func (c *ReferenceCache) get(ctx context.Context, key string, dest any) bool {
	val, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		return false
	}
	return json.Unmarshal(val, dest) == nil
}

func (c *ReferenceCache) set(ctx context.Context, key string, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	_ = c.rdb.Set(ctx, key, b, c.ttl).Err()
}
