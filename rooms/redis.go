package rooms

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	roomKeyPrefix   = "speakfluent:room:"
	memberKeySuffix = ":members"
)

// RedisDirectory persists rooms and membership in redis so multiple
// server instances share one directory.
type RedisDirectory struct {
	client redis.UniversalClient
}

// NewRedisDirectory creates a Directory backed by the given redis client.
func NewRedisDirectory(client redis.UniversalClient) *RedisDirectory {
	return &RedisDirectory{client: client}
}

func roomKey(code string) string   { return roomKeyPrefix + code }
func memberKey(code string) string { return roomKey(code) + memberKeySuffix }

// Create stores a new room record.
func (d *RedisDirectory) Create(ctx context.Context, room Room) error {
	payload, err := json.Marshal(room)
	if err != nil {
		return fmt.Errorf("marshal room: %w", err)
	}
	ok, err := d.client.SetNX(ctx, roomKey(room.Code), payload, 0).Result()
	if err != nil {
		return fmt.Errorf("store room: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrExists, room.Code)
	}
	return nil
}

// Lookup returns the room for a code.
func (d *RedisDirectory) Lookup(ctx context.Context, code string) (Room, error) {
	payload, err := d.client.Get(ctx, roomKey(code)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Room{}, fmt.Errorf("%w: %s", ErrNotFound, code)
		}
		return Room{}, fmt.Errorf("lookup room: %w", err)
	}
	var room Room
	if err := json.Unmarshal(payload, &room); err != nil {
		return Room{}, fmt.Errorf("decode room: %w", err)
	}
	return room, nil
}

// Members lists persisted members ordered by join time.
func (d *RedisDirectory) Members(ctx context.Context, code string) ([]Member, error) {
	if _, err := d.Lookup(ctx, code); err != nil {
		return nil, err
	}
	entries, err := d.client.HGetAll(ctx, memberKey(code)).Result()
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	members := make([]Member, 0, len(entries))
	for _, raw := range entries {
		var m Member
		if err := json.Unmarshal([]byte(raw), &m); err != nil {
			return nil, fmt.Errorf("decode member: %w", err)
		}
		members = append(members, m)
	}
	sort.Slice(members, func(i, j int) bool {
		if members[i].JoinedAt.Equal(members[j].JoinedAt) {
			return members[i].UserID < members[j].UserID
		}
		return members[i].JoinedAt.Before(members[j].JoinedAt)
	})
	return members, nil
}

// UpsertMember adds or refreshes a member record.
func (d *RedisDirectory) UpsertMember(ctx context.Context, code string, member Member) error {
	room, err := d.Lookup(ctx, code)
	if err != nil {
		return err
	}
	if room.Status == StatusEnded {
		return fmt.Errorf("%w: %s", ErrEnded, code)
	}

	field := strconv.FormatInt(member.UserID, 10)
	if raw, err := d.client.HGet(ctx, memberKey(code), field).Result(); err == nil {
		var existing Member
		if err := json.Unmarshal([]byte(raw), &existing); err == nil {
			member.JoinedAt = existing.JoinedAt
		}
	} else if !errors.Is(err, redis.Nil) {
		return fmt.Errorf("read member: %w", err)
	}
	if member.JoinedAt.IsZero() {
		member.JoinedAt = time.Now().UTC()
	}

	payload, err := json.Marshal(member)
	if err != nil {
		return fmt.Errorf("marshal member: %w", err)
	}
	if err := d.client.HSet(ctx, memberKey(code), field, payload).Err(); err != nil {
		return fmt.Errorf("store member: %w", err)
	}
	return nil
}

// SetMemberActive flips a member's membership flag.
func (d *RedisDirectory) SetMemberActive(ctx context.Context, code string, userID int64, active bool) error {
	field := strconv.FormatInt(userID, 10)
	raw, err := d.client.HGet(ctx, memberKey(code), field).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return fmt.Errorf("%w: user %d in %s", ErrNotFound, userID, code)
		}
		return fmt.Errorf("read member: %w", err)
	}
	var member Member
	if err := json.Unmarshal([]byte(raw), &member); err != nil {
		return fmt.Errorf("decode member: %w", err)
	}
	member.Active = active
	payload, err := json.Marshal(member)
	if err != nil {
		return fmt.Errorf("marshal member: %w", err)
	}
	if err := d.client.HSet(ctx, memberKey(code), field, payload).Err(); err != nil {
		return fmt.Errorf("store member: %w", err)
	}
	return nil
}

// End marks the room ended.
func (d *RedisDirectory) End(ctx context.Context, code string, at time.Time) error {
	room, err := d.Lookup(ctx, code)
	if err != nil {
		return err
	}
	room.Status = StatusEnded
	room.EndedAt = &at
	payload, err := json.Marshal(room)
	if err != nil {
		return fmt.Errorf("marshal room: %w", err)
	}
	if err := d.client.Set(ctx, roomKey(code), payload, 0).Err(); err != nil {
		return fmt.Errorf("store room: %w", err)
	}
	return nil
}
