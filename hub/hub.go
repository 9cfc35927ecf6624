// Package hub is the per-room coordination core: it owns room
// membership, session lifecycle, presence snapshots, and broadcast
// fan-out. Locking is scoped per room; one room's membership mutation
// never blocks another room's traffic.
package hub

import (
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/Aakashchoure4/SpeakFluent-Ai/metrics"
)

// ErrRoomFull refuses a registration that would exceed room capacity.
var ErrRoomFull = errors.New("room is at capacity")

// Hub tracks live sessions grouped by room code.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]*room

	queueSize int
	logger    *zap.SugaredLogger
	metrics   *metrics.Set
}

// room owns one room's live state. Its mutex is the single enqueue point
// for the room: events are queued to every member inside the critical
// section, which keeps result order identical across members.
type room struct {
	mu   sync.Mutex
	code string
	gone bool

	order  []*Session
	byUser map[int64]*Session
}

// New creates an empty hub. queueSize bounds each session's outbound
// event queue.
func New(queueSize int, logger *zap.SugaredLogger, m *metrics.Set) *Hub {
	return &Hub{
		rooms:     make(map[string]*room),
		queueSize: queueSize,
		logger:    logger,
		metrics:   m,
	}
}

// QueueSize is the configured per-session outbound queue bound.
func (h *Hub) QueueSize() int {
	return h.queueSize
}

// lockRoom returns the room for code with its mutex held, creating it if
// needed. Rooms evicted concurrently are retried.
func (h *Hub) lockRoom(code string) *room {
	for {
		h.mu.Lock()
		rm, ok := h.rooms[code]
		if !ok {
			rm = &room{code: code, byUser: make(map[int64]*Session)}
			h.rooms[code] = rm
			h.metrics.ActiveRooms.Inc()
		}
		h.mu.Unlock()

		rm.mu.Lock()
		if rm.gone {
			rm.mu.Unlock()
			continue
		}
		return rm
	}
}

// findRoom returns the live room for code, or nil.
func (h *Hub) findRoom(code string) *room {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.rooms[code]
}

// Register adds a session to its room and announces the join to every
// member, including the new one. The joiner's own queue receives a
// connection_established event ahead of the join fan-out, so it is the
// first thing a fresh session reads. When the same user already holds an
// open session in the room, that session is closed and replaced instead
// of counting against capacity. The returned snapshot reflects the room
// immediately after the join.
func (h *Hub) Register(s *Session, capacity int) ([]Participant, error) {
	rm := h.lockRoom(s.RoomCode)

	prior := rm.byUser[s.UserID]
	if prior == nil && capacity > 0 && len(rm.order) >= capacity {
		rm.mu.Unlock()
		return nil, ErrRoomFull
	}
	if prior != nil {
		rm.removeLocked(prior)
	}

	s.advance(StateOpen)
	rm.order = append(rm.order, s)
	rm.byUser[s.UserID] = s

	snapshot := rm.snapshotLocked()
	s.Enqueue(NewConnectionEstablished(s, snapshot))
	h.enqueueLocked(rm, NewUserJoined(s, snapshot))
	rm.mu.Unlock()

	if prior != nil {
		prior.close()
		h.logger.Infow("session replaced on reconnect",
			"room", s.RoomCode, "user", s.UserID, "old_session", prior.ID, "new_session", s.ID)
	} else {
		h.metrics.ActiveConnections.Inc()
	}

	h.logger.Infow("session registered",
		"room", s.RoomCode, "user", s.UserID, "username", s.Username, "mode", s.Mode(), "total", len(snapshot))
	return snapshot, nil
}

// Unregister removes a session and reports whether the session was
// actually removed. Idempotent: removing a session that was already
// removed (or replaced by a reconnect) is a no-op, emits no presence
// event, and returns false. The last departure discards the room's
// state entirely.
func (h *Hub) Unregister(s *Session) bool {
	rm := h.findRoom(s.RoomCode)
	if rm == nil {
		s.close()
		return false
	}

	rm.mu.Lock()
	if rm.byUser[s.UserID] != s {
		rm.mu.Unlock()
		s.close()
		return false
	}
	rm.removeLocked(s)
	empty := len(rm.order) == 0
	if !empty {
		h.enqueueLocked(rm, NewUserLeft(s, rm.snapshotLocked()))
	}
	rm.mu.Unlock()

	s.close()
	h.metrics.ActiveConnections.Dec()
	h.logger.Infow("session unregistered", "room", s.RoomCode, "user", s.UserID, "username", s.Username)

	if empty {
		h.evictIfEmpty(rm)
	}
	return true
}

// Broadcast queues an event to every member of a room. Delivery to one
// session never blocks or fails delivery to the others.
func (h *Hub) Broadcast(code string, ev Event) {
	rm := h.findRoom(code)
	if rm == nil {
		return
	}
	rm.mu.Lock()
	h.enqueueLocked(rm, ev)
	rm.mu.Unlock()

	if ev.Type == TypeTranslationResult {
		h.metrics.ResultsBroadcast.Inc()
	}
}

// ChangeMode updates one session's translation direction and announces
// it to the room with an updated snapshot.
func (h *Hub) ChangeMode(s *Session, mode string) error {
	if !ValidMode(mode) {
		return errors.New("unsupported mode: " + mode)
	}

	rm := h.findRoom(s.RoomCode)
	if rm == nil {
		return errors.New("session not registered")
	}

	rm.mu.Lock()
	if rm.byUser[s.UserID] != s {
		rm.mu.Unlock()
		return errors.New("session not registered")
	}
	s.setMode(mode)
	h.enqueueLocked(rm, NewModeChanged(s, mode, rm.snapshotLocked()))
	rm.mu.Unlock()

	h.logger.Infow("mode changed", "room", s.RoomCode, "user", s.UserID, "mode", mode)
	return nil
}

// Snapshot returns the room's presence in join order. Nil for unknown
// rooms.
func (h *Hub) Snapshot(code string) []Participant {
	rm := h.findRoom(code)
	if rm == nil {
		return nil
	}
	rm.mu.Lock()
	defer rm.mu.Unlock()
	return rm.snapshotLocked()
}

// IsRegistered reports whether s is the live session for its user slot.
func (h *Hub) IsRegistered(s *Session) bool {
	rm := h.findRoom(s.RoomCode)
	if rm == nil {
		return false
	}
	rm.mu.Lock()
	defer rm.mu.Unlock()
	return rm.byUser[s.UserID] == s
}

// CloseRoom force-closes every session in a room and discards its
// in-memory state. Called when a room is ended.
func (h *Hub) CloseRoom(code string) {
	h.mu.Lock()
	rm, ok := h.rooms[code]
	if ok {
		delete(h.rooms, code)
	}
	h.mu.Unlock()
	if !ok {
		return
	}

	rm.mu.Lock()
	rm.gone = true
	members := append([]*Session(nil), rm.order...)
	rm.order = nil
	rm.byUser = make(map[int64]*Session)
	rm.mu.Unlock()

	for _, s := range members {
		s.close()
		h.metrics.ActiveConnections.Dec()
	}
	h.metrics.ActiveRooms.Dec()
	h.logger.Infow("room closed", "room", code, "sessions", len(members))
}

// Counts reports live rooms and sessions, for health reporting.
func (h *Hub) Counts() (roomCount, sessionCount int) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, rm := range h.rooms {
		rm.mu.Lock()
		sessionCount += len(rm.order)
		rm.mu.Unlock()
	}
	return len(h.rooms), sessionCount
}

// enqueueLocked fans an event out to every member. Caller holds rm.mu,
// making this the room's single enqueue point: every member sees the
// same event order.
func (h *Hub) enqueueLocked(rm *room, ev Event) {
	for _, member := range rm.order {
		dropped, ok := member.out.push(ev)
		if dropped {
			h.metrics.EventsDropped.Inc()
			h.logger.Warnw("outbound queue overflow",
				"room", rm.code, "user", member.UserID, "event", ev.Type, "delivered", ok)
		}
	}
}

// evictIfEmpty removes a room whose last session left.
func (h *Hub) evictIfEmpty(rm *room) {
	h.mu.Lock()
	defer h.mu.Unlock()
	rm.mu.Lock()
	defer rm.mu.Unlock()
	if len(rm.order) == 0 && !rm.gone && h.rooms[rm.code] == rm {
		rm.gone = true
		delete(h.rooms, rm.code)
		h.metrics.ActiveRooms.Dec()
	}
}

func (rm *room) removeLocked(s *Session) {
	for i, member := range rm.order {
		if member == s {
			rm.order = append(rm.order[:i], rm.order[i+1:]...)
			break
		}
	}
	delete(rm.byUser, s.UserID)
}
