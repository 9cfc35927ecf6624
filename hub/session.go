package hub

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// State is a session's position in its lifecycle. closed is terminal;
// open may jump straight to closed on abrupt network failure.
type State int32

const (
	StateConnecting State = iota
	StateOpen
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Modes supported by the bilingual reference configuration.
const (
	ModeHindiToEnglish = "hi_to_en"
	ModeEnglishToHindi = "en_to_hi"
)

// ValidMode reports whether mode is one of the supported directions.
func ValidMode(mode string) bool {
	return mode == ModeHindiToEnglish || mode == ModeEnglishToHindi
}

// ModeLanguages resolves a mode into its (source, target) language codes.
func ModeLanguages(mode string) (string, string) {
	if mode == ModeEnglishToHindi {
		return "en", "hi"
	}
	return "hi", "en"
}

// Session is one authenticated connection within one room. The hub owns
// registration; the connection supervisor owns the socket and consumes
// the session's outbound queue.
type Session struct {
	ID       string
	UserID   int64
	Username string
	RoomCode string
	JoinedAt time.Time

	mu   sync.RWMutex
	mode string

	state      atomic.Int32
	lastActive atomic.Int64

	out *outbox
}

// NewSession creates a session in the connecting state with a bounded
// outbound queue.
func NewSession(userID int64, username, roomCode, mode string, queueSize int) *Session {
	if !ValidMode(mode) {
		mode = ModeHindiToEnglish
	}
	s := &Session{
		ID:       uuid.NewString(),
		UserID:   userID,
		Username: username,
		RoomCode: roomCode,
		JoinedAt: time.Now().UTC(),
		mode:     mode,
		out:      newOutbox(queueSize),
	}
	s.state.Store(int32(StateConnecting))
	s.Touch()
	return s
}

// Mode returns the session's translation direction.
func (s *Session) Mode() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mode
}

func (s *Session) setMode(mode string) {
	s.mu.Lock()
	s.mode = mode
	s.mu.Unlock()
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	return State(s.state.Load())
}

// advance moves the state machine forward. Transitions out of closed are
// refused; backwards transitions are refused.
func (s *Session) advance(to State) bool {
	for {
		cur := s.state.Load()
		if State(cur) == StateClosed || State(cur) >= to {
			return false
		}
		if s.state.CompareAndSwap(cur, int32(to)) {
			return true
		}
	}
}

// Touch records activity for idle tracking.
func (s *Session) Touch() {
	s.lastActive.Store(time.Now().UnixNano())
}

// LastActive returns the time of the most recent observed frame.
func (s *Session) LastActive() time.Time {
	return time.Unix(0, s.lastActive.Load())
}

// Enqueue places an event on the session's outbound queue directly,
// bypassing room fan-out. Used for targeted frames such as
// connection_established and pong.
func (s *Session) Enqueue(ev Event) bool {
	_, ok := s.out.push(ev)
	return ok
}

// NextEvent blocks until the next outbound event, returning false once
// the session is closed and drained.
func (s *Session) NextEvent() (Event, bool) {
	return s.out.next()
}

// Closed is a channel closed when the session ends, letting the
// supervisor unblock its socket reader.
func (s *Session) Closed() <-chan struct{} {
	return s.out.done
}

// close marks the session terminal and stops its queue. Idempotent.
func (s *Session) close() {
	s.advance(StateClosed)
	s.out.close()
}
