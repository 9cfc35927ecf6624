// Package rooms implements the room directory: room metadata, shareable
// codes, and persisted membership. The live session hub consults it when
// accepting connections; the HTTP API manages it.
package rooms

import (
	"context"
	"crypto/rand"
	"errors"
	"math/big"
	"time"
)

// Status is the lifecycle state of a room.
type Status string

const (
	StatusActive Status = "active"
	StatusEnded  Status = "ended"
)

var (
	// ErrNotFound marks a lookup for a room code that does not exist.
	ErrNotFound = errors.New("room not found")
	// ErrEnded marks an operation against a room that has ended.
	ErrEnded = errors.New("room has ended")
	// ErrRoomFull marks a join against a room at capacity.
	ErrRoomFull = errors.New("room is full")
	// ErrExists marks creation with a code already in use.
	ErrExists = errors.New("room code already exists")
)

// Room is the directory record for one meeting room.
type Room struct {
	Code      string     `json:"room_code"`
	Name      string     `json:"name"`
	OwnerID   int64      `json:"owner_id"`
	Capacity  int        `json:"max_participants"`
	Status    Status     `json:"status"`
	CreatedAt time.Time  `json:"created_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
}

// Member is a persisted room participant. Active tracks directory
// membership, not liveness; liveness belongs to the session hub.
type Member struct {
	UserID   int64     `json:"user_id"`
	Username string    `json:"username"`
	Mode     string    `json:"language_mode"`
	Active   bool      `json:"is_active"`
	JoinedAt time.Time `json:"joined_at"`
}

// Directory is the room lookup collaborator consumed by the session hub
// and the HTTP API.
type Directory interface {
	// Create stores a new room record.
	Create(ctx context.Context, room Room) error
	// Lookup returns the room for a code, or ErrNotFound.
	Lookup(ctx context.Context, code string) (Room, error)
	// Members lists persisted members ordered by join time.
	Members(ctx context.Context, code string) ([]Member, error)
	// UpsertMember adds a member or refreshes an existing one.
	UpsertMember(ctx context.Context, code string, member Member) error
	// SetMemberActive flips a member's directory membership flag.
	SetMemberActive(ctx context.Context, code string, userID int64, active bool) error
	// End marks the room ended; later joins fail with ErrEnded.
	End(ctx context.Context, code string, at time.Time) error
}

const codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// GenerateCode produces a shareable room code like "MX7K-A2QP".
func GenerateCode() string {
	buf := make([]byte, 9)
	for i := range buf {
		if i == 4 {
			buf[i] = '-'
			continue
		}
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(codeAlphabet))))
		if err != nil {
			panic(err)
		}
		buf[i] = codeAlphabet[n.Int64()]
	}
	return string(buf)
}
