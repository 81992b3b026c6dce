package repository

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"mdnotes/internal/note/model"
	"mdnotes/pkg/logger"

	"github.com/redis/go-redis/v9"
)

const cacheKeyPrefix = "note:"

// CachedStore is a read-through Redis cache in front of another Store.
// Notes never change after creation, so cached entries are never stale;
// the TTL only bounds memory. Cache failures are logged and ignored.
type CachedStore struct {
	Store
	client *redis.Client
	ttl    time.Duration
}

func NewCachedStore(next Store, client *redis.Client, ttl time.Duration) *CachedStore {
	return &CachedStore{Store: next, client: client, ttl: ttl}
}

func cacheKey(id int64) string {
	return cacheKeyPrefix + strconv.FormatInt(id, 10)
}

func (c *CachedStore) Save(ctx context.Context, note *model.Note) (*model.Note, error) {
	saved, err := c.Store.Save(ctx, note)
	if err != nil {
		return nil, err
	}
	c.put(ctx, saved)
	return saved, nil
}

func (c *CachedStore) FindByID(ctx context.Context, id int64) (*model.Note, error) {
	raw, err := c.client.Get(ctx, cacheKey(id)).Bytes()
	switch {
	case err == nil:
		var n model.Note
		if jsonErr := json.Unmarshal(raw, &n); jsonErr == nil {
			return &n, nil
		}
		logger.Sugar.Warnf("Discarding undecodable cache entry for note %d", id)
	case !errors.Is(err, redis.Nil):
		logger.Sugar.Warnf("Note cache read failed for %d: %v", id, err)
	}

	n, err := c.Store.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	c.put(ctx, n)
	return n, nil
}

func (c *CachedStore) put(ctx context.Context, n *model.Note) {
	payload, err := json.Marshal(n)
	if err != nil {
		logger.Sugar.Warnf("Failed to encode note %d for cache: %v", n.ID, err)
		return
	}
	if err := c.client.Set(ctx, cacheKey(n.ID), payload, c.ttl).Err(); err != nil {
		logger.Sugar.Warnf("Note cache write failed for %d: %v", n.ID, err)
	}
}
