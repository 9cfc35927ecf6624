package history

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const logKeyPrefix = "speakfluent:room:"

// RedisStore keeps each room's message log in a capped redis list,
// newest first.
type RedisStore struct {
	client redis.UniversalClient
	limit  int
}

// NewRedisStore creates a store retaining at most limit entries per room.
func NewRedisStore(client redis.UniversalClient, limit int) *RedisStore {
	if limit < 1 {
		limit = 1
	}
	return &RedisStore{client: client, limit: limit}
}

func logKey(roomCode string) string {
	return logKeyPrefix + roomCode + ":messages"
}

// Append pushes an entry and trims the list to the retention bound.
func (s *RedisStore) Append(ctx context.Context, entry Entry) error {
	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal log entry: %w", err)
	}
	key := logKey(entry.RoomCode)
	pipe := s.client.TxPipeline()
	pipe.LPush(ctx, key, payload)
	pipe.LTrim(ctx, key, 0, int64(s.limit-1))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("append log entry: %w", err)
	}
	return nil
}

// Recent returns up to limit entries, newest first.
func (s *RedisStore) Recent(ctx context.Context, roomCode string, limit int) ([]Entry, error) {
	if limit < 1 || limit > s.limit {
		limit = s.limit
	}
	raw, err := s.client.LRange(ctx, logKey(roomCode), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("read log entries: %w", err)
	}
	entries := make([]Entry, 0, len(raw))
	for _, item := range raw {
		var entry Entry
		if err := json.Unmarshal([]byte(item), &entry); err != nil {
			return nil, fmt.Errorf("decode log entry: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}
