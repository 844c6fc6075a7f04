package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"imcitrack/internal/model"
)

// RankingCache keeps each participant's latest overall percentage in a ZSET.
// Latest is by observation time, not by processing order.
type RankingCache interface {
	Record(ctx context.Context, courseID, participantID string, percent float64, observedAt time.Time) (bool, error)
	Top(ctx context.Context, courseID string, limit int) ([]model.RankingEntry, error)
	Rank(ctx context.Context, courseID, participantID string) (int64, error)
}

type rankingCache struct {
	client *redis.Client
}

// NewRankingCache creates a new ranking cache
func NewRankingCache(client *redis.Client) RankingCache {
	return &rankingCache{
		client: client,
	}
}

func rankingKey(courseID string) string {
	return fmt.Sprintf("course:%s:ranking", courseID)
}

func observedKey(courseID string) string {
	return fmt.Sprintf("course:%s:ranking:observed", courseID)
}

// recordScript replaces a participant's score unless a later observation is
// already ranked. KEYS: ranking, observed. ARGV: member, percent, observedAt ms.
var recordScript = redis.NewScript(`
local prev = redis.call('HGET', KEYS[2], ARGV[1])
if prev and tonumber(prev) > tonumber(ARGV[3]) then
	return 0
end
redis.call('HSET', KEYS[2], ARGV[1], ARGV[3])
redis.call('ZADD', KEYS[1], ARGV[2], ARGV[1])
return 1
`)

func (c *rankingCache) Record(ctx context.Context, courseID, participantID string, percent float64, observedAt time.Time) (bool, error) {
	n, err := recordScript.Run(ctx, c.client,
		[]string{rankingKey(courseID), observedKey(courseID)},
		participantID, percent, observedAt.UnixMilli(),
	).Int()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (c *rankingCache) Top(ctx context.Context, courseID string, limit int) ([]model.RankingEntry, error) {
	results, err := c.client.ZRevRangeWithScores(ctx, rankingKey(courseID), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, err
	}

	entries := make([]model.RankingEntry, len(results))
	for i, z := range results {
		member, _ := z.Member.(string)
		entries[i] = model.RankingEntry{
			ParticipantID: member,
			Percent:       z.Score,
			Rank:          i + 1,
		}
	}
	return entries, nil
}

// Rank returns the 1-indexed position of participantID, or -1 when unranked.
func (c *rankingCache) Rank(ctx context.Context, courseID, participantID string) (int64, error) {
	rank, err := c.client.ZRevRank(ctx, rankingKey(courseID), participantID).Result()
	if err == redis.Nil {
		return -1, nil
	}
	return rank + 1, err
}
