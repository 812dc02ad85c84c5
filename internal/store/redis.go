package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ashureev/secretlab/internal/domain"
	"github.com/redis/go-redis/v9"
)

// scorecardKey is the Redis hash holding one field per challenge.
const scorecardKey = "secretlab:scorecard"

// RedisStore implements Repository on a Redis hash.
type RedisStore struct {
	client redis.UniversalClient
	key    string
}

// NewRedis creates a Redis-backed repository.
func NewRedis(addr, password string, db int) *RedisStore {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return NewRedisWithClient(client)
}

// NewRedisWithClient wraps an existing client.
func NewRedisWithClient(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client, key: scorecardKey}
}

func (r *RedisStore) LoadScores(ctx context.Context) (map[string]domain.ScoreEntry, error) {
	fields, err := r.client.HGetAll(ctx, r.key).Result()
	if err != nil {
		return nil, fmt.Errorf("load scorecard: %w", err)
	}

	entries := make(map[string]domain.ScoreEntry, len(fields))
	for name, raw := range fields {
		var entry domain.ScoreEntry
		if err := json.Unmarshal([]byte(raw), &entry); err != nil {
			return nil, fmt.Errorf("decode score for %s: %w", name, err)
		}
		entries[name] = entry
	}
	return entries, nil
}

func (r *RedisStore) SaveScore(ctx context.Context, challenge string, entry domain.ScoreEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode score for %s: %w", challenge, err)
	}
	if err := r.client.HSet(ctx, r.key, challenge, data).Err(); err != nil {
		return fmt.Errorf("save score for %s: %w", challenge, err)
	}
	return nil
}

func (r *RedisStore) DeleteScore(ctx context.Context, challenge string) error {
	if err := r.client.HDel(ctx, r.key, challenge).Err(); err != nil {
		return fmt.Errorf("delete score for %s: %w", challenge, err)
	}
	return nil
}

func (r *RedisStore) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisStore) Close() error {
	if err := r.client.Close(); err != nil {
		return fmt.Errorf("close redis: %w", err)
	}
	return nil
}
