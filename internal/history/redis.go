package history

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const redisKey = "taosync:history"

// RedisStore persists history in a Redis list so it survives restarts.
// Entries are JSON documents, newest at the head.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Add(ctx context.Context, e Entry) error {
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}

	pipe := s.client.TxPipeline()
	pipe.LPush(ctx, redisKey, data)
	pipe.LTrim(ctx, redisKey, 0, maxEntries-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("writing history: %w", err)
	}
	return nil
}

func (s *RedisStore) List(ctx context.Context) ([]Entry, error) {
	raw, err := s.client.LRange(ctx, redisKey, 0, maxEntries-1).Result()
	if err != nil {
		return nil, fmt.Errorf("reading history: %w", err)
	}

	entries := make([]Entry, 0, len(raw))
	for _, item := range raw {
		var e Entry
		if err := json.Unmarshal([]byte(item), &e); err != nil {
			// Skip entries written by an incompatible version.
			continue
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func (s *RedisStore) Clear(ctx context.Context) error {
	if err := s.client.Del(ctx, redisKey).Err(); err != nil {
		return fmt.Errorf("clearing history: %w", err)
	}
	return nil
}
