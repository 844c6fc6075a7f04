package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"imcitrack/internal/model"
)

// ErrStaleSummary is returned by Set when the course changed after the
// summary was computed.
var ErrStaleSummary = errors.New("course summary is stale")

// SummaryCache caches computed course summaries. Every invalidation bumps a
// per-course version; Set only stores a summary computed at the current one.
type SummaryCache interface {
	Get(ctx context.Context, courseID string) (*model.CourseSummary, error)
	Version(ctx context.Context, courseID string) (int64, error)
	Set(ctx context.Context, summary *model.CourseSummary, version int64) error
	Invalidate(ctx context.Context, courseID string) error
}

type summaryCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewSummaryCache creates a new summary cache
func NewSummaryCache(client *redis.Client, ttl time.Duration) SummaryCache {
	return &summaryCache{
		client: client,
		ttl:    ttl,
	}
}

func summaryKey(courseID string) string {
	return fmt.Sprintf("course:%s:summary", courseID)
}

func summaryVersionKey(courseID string) string {
	return fmt.Sprintf("course:%s:summary:version", courseID)
}

func (c *summaryCache) Get(ctx context.Context, courseID string) (*model.CourseSummary, error) {
	data, err := c.client.Get(ctx, summaryKey(courseID)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var summary model.CourseSummary
	if err := json.Unmarshal([]byte(data), &summary); err != nil {
		return nil, err
	}
	return &summary, nil
}

func (c *summaryCache) Version(ctx context.Context, courseID string) (int64, error) {
	v, err := c.client.Get(ctx, summaryVersionKey(courseID)).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	return v, err
}

func (c *summaryCache) Set(ctx context.Context, summary *model.CourseSummary, version int64) error {
	data, err := json.Marshal(summary)
	if err != nil {
		return err
	}
	vkey := summaryVersionKey(summary.CourseID)
	err = c.client.Watch(ctx, func(tx *redis.Tx) error {
		cur, err := tx.Get(ctx, vkey).Int64()
		if err != nil && err != redis.Nil {
			return err
		}
		if cur != version {
			return ErrStaleSummary
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, summaryKey(summary.CourseID), data, c.ttl)
			return nil
		})
		return err
	}, vkey)
	if errors.Is(err, redis.TxFailedErr) {
		return ErrStaleSummary
	}
	return err
}

func (c *summaryCache) Invalidate(ctx context.Context, courseID string) error {
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, summaryVersionKey(courseID))
		pipe.Del(ctx, summaryKey(courseID))
		return nil
	})
	return err
}
