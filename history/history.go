// Package history records broadcast translation results per room so late
// joiners and the room detail API can read back recent messages.
package history

import (
	"context"
	"time"
)

// Entry is one logged translation result.
type Entry struct {
	RoomCode       string    `json:"room_code"`
	UserID         int64     `json:"user_id"`
	Username       string    `json:"username"`
	OriginalText   string    `json:"original_text"`
	TranslatedText string    `json:"translated_text"`
	SourceLanguage string    `json:"source_language"`
	TargetLanguage string    `json:"target_language"`
	AudioURL       string    `json:"audio_url,omitempty"`
	Confidence     float64   `json:"confidence"`
	CreatedAt      time.Time `json:"created_at"`
}

// Store appends and reads back a room's message log. Implementations
// bound retention per room; Append failures are logged by callers, never
// propagated into the session.
type Store interface {
	Append(ctx context.Context, entry Entry) error
	Recent(ctx context.Context, roomCode string, limit int) ([]Entry, error)
}
