package rooms

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// MemoryDirectory is an in-process Directory for development and tests.
type MemoryDirectory struct {
	mu      sync.RWMutex
	rooms   map[string]Room
	members map[string]map[int64]Member
}

// NewMemoryDirectory creates an empty in-memory directory.
func NewMemoryDirectory() *MemoryDirectory {
	return &MemoryDirectory{
		rooms:   make(map[string]Room),
		members: make(map[string]map[int64]Member),
	}
}

// Create stores a new room record.
func (d *MemoryDirectory) Create(ctx context.Context, room Room) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.rooms[room.Code]; ok {
		return fmt.Errorf("%w: %s", ErrExists, room.Code)
	}
	d.rooms[room.Code] = room
	d.members[room.Code] = make(map[int64]Member)
	return nil
}

// Lookup returns the room for a code.
func (d *MemoryDirectory) Lookup(ctx context.Context, code string) (Room, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	room, ok := d.rooms[code]
	if !ok {
		return Room{}, fmt.Errorf("%w: %s", ErrNotFound, code)
	}
	return room, nil
}

// Members lists persisted members ordered by join time.
func (d *MemoryDirectory) Members(ctx context.Context, code string) ([]Member, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	byUser, ok := d.members[code]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, code)
	}
	members := make([]Member, 0, len(byUser))
	for _, m := range byUser {
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
func (d *MemoryDirectory) UpsertMember(ctx context.Context, code string, member Member) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	room, ok := d.rooms[code]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, code)
	}
	if room.Status == StatusEnded {
		return fmt.Errorf("%w: %s", ErrEnded, code)
	}
	byUser := d.members[code]
	if existing, ok := byUser[member.UserID]; ok {
		member.JoinedAt = existing.JoinedAt
	} else if member.JoinedAt.IsZero() {
		member.JoinedAt = time.Now().UTC()
	}
	byUser[member.UserID] = member
	return nil
}

// SetMemberActive flips a member's membership flag.
func (d *MemoryDirectory) SetMemberActive(ctx context.Context, code string, userID int64, active bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	byUser, ok := d.members[code]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, code)
	}
	member, ok := byUser[userID]
	if !ok {
		return fmt.Errorf("%w: user %d in %s", ErrNotFound, userID, code)
	}
	member.Active = active
	byUser[userID] = member
	return nil
}

// End marks the room ended.
func (d *MemoryDirectory) End(ctx context.Context, code string, at time.Time) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	room, ok := d.rooms[code]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, code)
	}
	room.Status = StatusEnded
	room.EndedAt = &at
	d.rooms[code] = room
	return nil
}
