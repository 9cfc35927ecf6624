package hub

import (
	"encoding/json"

	"github.com/Aakashchoure4/SpeakFluent-Ai/pipeline"
)

// Participant is one entry of a presence snapshot, in wire shape.
type Participant struct {
	UserID       int64  `json:"user_id"`
	Username     string `json:"username"`
	LanguageMode string `json:"language_mode"`
}

// Event is one outbound frame, marshaled once and fanned out to every
// session's queue. Critical events (presence, control replies) are never
// dropped from a full queue; translation results may be.
type Event struct {
	Type     string
	Critical bool
	Payload  []byte
}

// Outbound event types.
const (
	TypeConnectionEstablished = "connection_established"
	TypeUserJoined            = "user_joined"
	TypeUserLeft              = "user_left"
	TypeTranslationResult     = "translation_result"
	TypeModeChanged           = "mode_changed"
	TypePong                  = "pong"
)

func mustMarshal(v any) []byte {
	payload, err := json.Marshal(v)
	if err != nil {
		// All event payload types are plain structs; a marshal failure
		// is a programming error.
		panic(err)
	}
	return payload
}

type presenceEvent struct {
	Type         string        `json:"type"`
	UserID       int64         `json:"user_id"`
	Username     string        `json:"username"`
	LanguageMode string        `json:"language_mode,omitempty"`
	RoomCode     string        `json:"room_code,omitempty"`
	Participants []Participant `json:"participants"`
}

// NewConnectionEstablished is the first event a freshly registered
// session receives, carrying the current presence snapshot.
func NewConnectionEstablished(s *Session, participants []Participant) Event {
	return Event{
		Type:     TypeConnectionEstablished,
		Critical: true,
		Payload: mustMarshal(presenceEvent{
			Type:         TypeConnectionEstablished,
			UserID:       s.UserID,
			Username:     s.Username,
			LanguageMode: s.Mode(),
			RoomCode:     s.RoomCode,
			Participants: participants,
		}),
	}
}

// NewUserJoined announces a join to the whole room.
func NewUserJoined(s *Session, participants []Participant) Event {
	return Event{
		Type:     TypeUserJoined,
		Critical: true,
		Payload: mustMarshal(presenceEvent{
			Type:         TypeUserJoined,
			UserID:       s.UserID,
			Username:     s.Username,
			LanguageMode: s.Mode(),
			Participants: participants,
		}),
	}
}

// NewUserLeft announces a departure with the recomputed snapshot.
func NewUserLeft(s *Session, participants []Participant) Event {
	return Event{
		Type:     TypeUserLeft,
		Critical: true,
		Payload: mustMarshal(presenceEvent{
			Type:         TypeUserLeft,
			UserID:       s.UserID,
			Username:     s.Username,
			Participants: participants,
		}),
	}
}

type modeChangedEvent struct {
	Type         string        `json:"type"`
	UserID       int64         `json:"user_id"`
	Mode         string        `json:"mode"`
	Participants []Participant `json:"participants"`
}

// NewModeChanged announces a translation-direction change with the
// updated snapshot.
func NewModeChanged(s *Session, mode string, participants []Participant) Event {
	return Event{
		Type:     TypeModeChanged,
		Critical: true,
		Payload: mustMarshal(modeChangedEvent{
			Type:         TypeModeChanged,
			UserID:       s.UserID,
			Mode:         mode,
			Participants: participants,
		}),
	}
}

type translationResultEvent struct {
	Type string `json:"type"`
	pipeline.Result
}

// NewTranslationResult wraps a pipeline result for broadcast. Results are
// the only droppable event class.
func NewTranslationResult(result pipeline.Result) Event {
	return Event{
		Type: TypeTranslationResult,
		Payload: mustMarshal(translationResultEvent{
			Type:   TypeTranslationResult,
			Result: result,
		}),
	}
}

// NewPong answers a ping, sent only to the requester.
func NewPong() Event {
	return Event{
		Type:     TypePong,
		Critical: true,
		Payload:  mustMarshal(map[string]string{"type": TypePong}),
	}
}
