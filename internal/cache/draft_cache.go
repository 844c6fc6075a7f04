package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"imcitrack/internal/model"
)

// DraftCache holds in-progress observations until they are submitted
type DraftCache interface {
	Set(ctx context.Context, draft *model.Draft) error
	Get(ctx context.Context, id string) (*model.Draft, error)
	Delete(ctx context.Context, id string) error
}

type draftCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewDraftCache(client *redis.Client, ttl time.Duration) DraftCache {
	return &draftCache{
		client: client,
		ttl:    ttl,
	}
}

func draftKey(id string) string {
	return "draft:" + id
}

func (c *draftCache) Set(ctx context.Context, draft *model.Draft) error {
	data, err := json.Marshal(draft)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, draftKey(draft.ID), data, c.ttl).Err()
}

func (c *draftCache) Get(ctx context.Context, id string) (*model.Draft, error) {
	data, err := c.client.Get(ctx, draftKey(id)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var draft model.Draft
	if err := json.Unmarshal([]byte(data), &draft); err != nil {
		return nil, err
	}
	return &draft, nil
}

func (c *draftCache) Delete(ctx context.Context, id string) error {
	return c.client.Del(ctx, draftKey(id)).Err()
}
