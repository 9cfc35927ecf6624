// Package ws is the connection supervisor: it accepts WebSocket
// connections, authenticates them, registers sessions with the room hub,
// demultiplexes binary audio from JSON control frames, and owns the
// per-connection read and write loops.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/Aakashchoure4/SpeakFluent-Ai/audio"
	"github.com/Aakashchoure4/SpeakFluent-Ai/auth"
	"github.com/Aakashchoure4/SpeakFluent-Ai/history"
	"github.com/Aakashchoure4/SpeakFluent-Ai/hub"
	"github.com/Aakashchoure4/SpeakFluent-Ai/metrics"
	"github.com/Aakashchoure4/SpeakFluent-Ai/pipeline"
	"github.com/Aakashchoure4/SpeakFluent-Ai/rooms"
)

// Close codes reported to clients when the handshake is refused.
const (
	CloseAuthFailure     = 4001
	CloseRoomUnavailable = 4002
	CloseRoomFull        = 4003
)

// maxMessageSize bounds one inbound frame.
const maxMessageSize = 1 << 20

// Config tunes the supervisor.
type Config struct {
	// IdleTimeout closes a session when no frame arrives within it.
	IdleTimeout time.Duration
	// WriteTimeout bounds one outbound frame write.
	WriteTimeout time.Duration
	// ChunkQueueSize bounds pending audio chunks per session.
	ChunkQueueSize int
}

// Handler serves the /ws/{room_code} endpoint.
type Handler struct {
	hub       *hub.Hub
	validator auth.Validator
	directory rooms.Directory
	orch      *pipeline.Orchestrator
	decoder   audio.Decoder
	log       history.Store
	cfg       Config
	logger    *zap.SugaredLogger
	metrics   *metrics.Set
	upgrader  websocket.Upgrader
}

// NewHandler wires the supervisor to its collaborators.
func NewHandler(
	h *hub.Hub,
	validator auth.Validator,
	directory rooms.Directory,
	orch *pipeline.Orchestrator,
	decoder audio.Decoder,
	log history.Store,
	cfg Config,
	logger *zap.SugaredLogger,
	m *metrics.Set,
) *Handler {
	return &Handler{
		hub:       h,
		validator: validator,
		directory: directory,
		orch:      orch,
		decoder:   decoder,
		log:       log,
		cfg:       cfg,
		logger:    logger,
		metrics:   m,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Cross-origin policy belongs to the reverse proxy.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

type controlMessage struct {
	Type string `json:"type"`
	Mode string `json:"mode"`
}

// ServeHTTP runs one connection end to end.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	roomCode := r.PathValue("room_code")
	token := r.URL.Query().Get("token")

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debugw("websocket upgrade failed", "error", err, "room", roomCode)
		return
	}

	ctx := r.Context()

	identity, err := h.validator.ValidateToken(ctx, token)
	if err != nil {
		h.refuse(conn, CloseAuthFailure, "authentication failed")
		return
	}

	room, err := h.directory.Lookup(ctx, roomCode)
	if err != nil {
		h.refuse(conn, CloseRoomUnavailable, "room not found")
		return
	}
	if room.Status != rooms.StatusActive {
		h.refuse(conn, CloseRoomUnavailable, "room has ended")
		return
	}

	mode := h.memberMode(ctx, roomCode, identity.UserID)
	session := hub.NewSession(identity.UserID, identity.Username, roomCode, mode, h.hub.QueueSize())

	if _, err := h.hub.Register(session, room.Capacity); err != nil {
		if errors.Is(err, hub.ErrRoomFull) {
			h.refuse(conn, CloseRoomFull, "room is full")
			return
		}
		h.refuse(conn, CloseRoomUnavailable, "room unavailable")
		return
	}

	h.recordMembership(roomCode, session)

	runner := h.orch.NewRunner(h.cfg.ChunkQueueSize, func(result pipeline.Result) {
		h.emitResult(session, result)
	})

	go h.writePump(conn, session)
	go h.idleWatchdog(conn, session)
	h.readPump(conn, session, runner)

	runner.Close()
	if h.hub.Unregister(session) {
		// A replaced session must not release the membership its
		// successor still holds.
		h.releaseMembership(roomCode, identity.UserID)
	}
}

// idleWatchdog closes the connection once neither pump has observed a
// frame within the idle window. Closing the socket is the only safe way
// to interrupt a blocked reader: the read methods belong exclusively to
// the read loop's goroutine.
func (h *Handler) idleWatchdog(conn *websocket.Conn, session *hub.Session) {
	timer := time.NewTimer(h.cfg.IdleTimeout)
	defer timer.Stop()

	for {
		select {
		case <-session.Closed():
			return
		case <-timer.C:
			remaining := time.Until(session.LastActive().Add(h.cfg.IdleTimeout))
			if remaining <= 0 {
				h.logger.Infow("closing idle session",
					"room", session.RoomCode, "user", session.UserID, "last_active", session.LastActive())
				_ = conn.Close()
				return
			}
			timer.Reset(remaining)
		}
	}
}

// readPump consumes frames until the connection errors, closes, or the
// watchdog cuts it for idleness. It never blocks on pipeline work:
// chunks that cannot be queued are dropped.
func (h *Handler) readPump(conn *websocket.Conn, session *hub.Session, runner *pipeline.Runner) {
	conn.SetReadLimit(maxMessageSize)
	conn.SetPongHandler(func(string) error {
		session.Touch()
		return nil
	})

	var sequence uint64
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.Debugw("read loop ended", "error", err, "room", session.RoomCode, "user", session.UserID)
			}
			return
		}
		session.Touch()

		switch msgType {
		case websocket.BinaryMessage:
			h.handleAudio(session, runner, &sequence, data)
		case websocket.TextMessage:
			h.handleControl(session, data)
		}
	}
}

func (h *Handler) handleAudio(session *hub.Session, runner *pipeline.Runner, sequence *uint64, data []byte) {
	h.metrics.ChunksReceived.Inc()

	segment, err := h.decoder.Decode(data, "")
	if err != nil {
		if errors.Is(err, audio.ErrTooSmall) {
			// Trailing silence; expected and frequent.
			h.metrics.ChunksDropped.WithLabelValues(metrics.DropTooSmall).Inc()
			return
		}
		h.metrics.ChunksDropped.WithLabelValues(metrics.DropDecode).Inc()
		h.logger.Debugw("undecodable audio chunk", "error", err, "room", session.RoomCode, "user", session.UserID)
		return
	}

	*sequence++
	src, tgt := hub.ModeLanguages(session.Mode())
	job := pipeline.Job{
		Sequence:   *sequence,
		Segment:    segment,
		UserID:     session.UserID,
		Username:   session.Username,
		SourceLang: src,
		TargetLang: tgt,
	}
	if !runner.Submit(job) {
		h.metrics.ChunksDropped.WithLabelValues(metrics.DropQueueFull).Inc()
		h.logger.Warnw("chunk queue full, dropping audio",
			"room", session.RoomCode, "user", session.UserID, "seq", *sequence)
	}
}

func (h *Handler) handleControl(session *hub.Session, data []byte) {
	var msg controlMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		h.logger.Debugw("malformed control message ignored",
			"error", err, "room", session.RoomCode, "user", session.UserID)
		return
	}

	switch msg.Type {
	case "change_mode":
		if !hub.ValidMode(msg.Mode) {
			h.logger.Warnw("unsupported mode ignored", "mode", msg.Mode, "user", session.UserID)
			return
		}
		if err := h.hub.ChangeMode(session, msg.Mode); err != nil {
			h.logger.Warnw("mode change failed", "error", err, "user", session.UserID)
			return
		}
		h.persistMode(session.RoomCode, session)
	case "ping":
		session.Enqueue(hub.NewPong())
	default:
		h.logger.Debugw("unknown control type ignored",
			"control_type", msg.Type, "room", session.RoomCode, "user", session.UserID)
	}
}

// writePump is the session's single outbound consumer. A write failure
// closes the connection, which surfaces to the read loop and runs the
// normal unregistration path.
func (h *Handler) writePump(conn *websocket.Conn, session *hub.Session) {
	defer func() { _ = conn.Close() }()

	for {
		ev, ok := session.NextEvent()
		if !ok {
			deadline := time.Now().Add(h.cfg.WriteTimeout)
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
			return
		}
		_ = conn.SetWriteDeadline(time.Now().Add(h.cfg.WriteTimeout))
		if err := conn.WriteMessage(websocket.TextMessage, ev.Payload); err != nil {
			h.logger.Debugw("outbound write failed",
				"error", err, "room", session.RoomCode, "user", session.UserID, "event", ev.Type)
			return
		}
		// Touch counts outbound traffic as liveness for the watchdog: a
		// participant who only listens in a busy room is not idle.
		session.Touch()
	}
}

// emitResult broadcasts one pipeline result to the room and records it
// in the message log. Results for sessions that closed while the
// pipeline ran are discarded.
func (h *Handler) emitResult(session *hub.Session, result pipeline.Result) {
	if !h.hub.IsRegistered(session) {
		return
	}
	h.hub.Broadcast(session.RoomCode, hub.NewTranslationResult(result))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	entry := history.Entry{
		RoomCode:       session.RoomCode,
		UserID:         result.UserID,
		Username:       result.Username,
		OriginalText:   result.OriginalText,
		TranslatedText: result.TranslatedText,
		SourceLanguage: result.SourceLanguage,
		TargetLanguage: result.TargetLanguage,
		AudioURL:       result.AudioURL,
		Confidence:     result.Confidence,
		CreatedAt:      result.CreatedAt,
	}
	if err := h.log.Append(ctx, entry); err != nil {
		h.logger.Warnw("failed to record message log entry", "error", err, "room", session.RoomCode)
	}
}

// memberMode resolves the user's persisted translation mode, defaulting
// to hi_to_en for first-time joiners.
func (h *Handler) memberMode(ctx context.Context, roomCode string, userID int64) string {
	members, err := h.directory.Members(ctx, roomCode)
	if err != nil {
		return hub.ModeHindiToEnglish
	}
	for _, m := range members {
		if m.UserID == userID && hub.ValidMode(m.Mode) {
			return m.Mode
		}
	}
	return hub.ModeHindiToEnglish
}

func (h *Handler) recordMembership(roomCode string, session *hub.Session) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := h.directory.UpsertMember(ctx, roomCode, rooms.Member{
		UserID:   session.UserID,
		Username: session.Username,
		Mode:     session.Mode(),
		Active:   true,
	})
	if err != nil {
		h.logger.Warnw("failed to record membership", "error", err, "room", roomCode, "user", session.UserID)
	}
}

func (h *Handler) persistMode(roomCode string, session *hub.Session) {
	h.recordMembership(roomCode, session)
}

func (h *Handler) releaseMembership(roomCode string, userID int64) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := h.directory.SetMemberActive(ctx, roomCode, userID, false); err != nil {
		h.logger.Debugw("failed to release membership", "error", err, "room", roomCode, "user", userID)
	}
}

// refuse reports a handshake failure with a close code and drops the
// connection. Establishment errors are terminal and reported exactly
// once.
func (h *Handler) refuse(conn *websocket.Conn, code int, reason string) {
	deadline := time.Now().Add(time.Second)
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), deadline)
	_ = conn.Close()
}
