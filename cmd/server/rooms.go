package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Aakashchoure4/SpeakFluent-Ai/auth"
	"github.com/Aakashchoure4/SpeakFluent-Ai/history"
	"github.com/Aakashchoure4/SpeakFluent-Ai/hub"
	"github.com/Aakashchoure4/SpeakFluent-Ai/rooms"
)

// roomAPI serves the room management endpoints under /api/rooms.
type roomAPI struct {
	directory rooms.Directory
	hub       *hub.Hub
	log       history.Store
	validator auth.Validator
	capacity  int
	logger    *zap.SugaredLogger
}

func (a *roomAPI) register(mux *http.ServeMux) {
	mux.Handle("POST /api/rooms", a.authenticated(a.createRoom))
	mux.Handle("POST /api/rooms/join", a.authenticated(a.joinRoom))
	mux.Handle("GET /api/rooms/{room_code}", a.authenticated(a.roomDetail))
	mux.Handle("GET /api/rooms/{room_code}/messages", a.authenticated(a.roomMessages))
	mux.Handle("POST /api/rooms/{room_code}/leave", a.authenticated(a.leaveRoom))
	mux.Handle("POST /api/rooms/{room_code}/end", a.authenticated(a.endRoom))
}

// authenticated validates the bearer token and hands the resolved
// identity to the wrapped handler.
func (a *roomAPI) authenticated(next func(http.ResponseWriter, *http.Request, auth.Identity)) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			writeError(w, a.logger, http.StatusUnauthorized, errors.New("missing bearer token"))
			return
		}
		identity, err := a.validator.ValidateToken(r.Context(), token)
		if err != nil {
			writeError(w, a.logger, http.StatusUnauthorized, errors.New("invalid or expired token"))
			return
		}
		next(w, r, identity)
	})
}

type createRoomInput struct {
	Name            string `json:"name"`
	MaxParticipants int    `json:"max_participants"`
}

type roomResponse struct {
	rooms.Room
	ParticipantCount int `json:"participant_count"`
}

func (a *roomAPI) createRoom(w http.ResponseWriter, r *http.Request, identity auth.Identity) {
	var input createRoomInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, a.logger, http.StatusBadRequest, fmt.Errorf("invalid payload: %w", err))
		return
	}
	if strings.TrimSpace(input.Name) == "" {
		writeError(w, a.logger, http.StatusBadRequest, errors.New("room name required"))
		return
	}
	if input.MaxParticipants < 1 {
		input.MaxParticipants = a.capacity
	}

	room := rooms.Room{
		Code:      rooms.GenerateCode(),
		Name:      strings.TrimSpace(input.Name),
		OwnerID:   identity.UserID,
		Capacity:  input.MaxParticipants,
		Status:    rooms.StatusActive,
		CreatedAt: time.Now().UTC(),
	}
	if err := a.directory.Create(r.Context(), room); err != nil {
		writeError(w, a.logger, http.StatusInternalServerError, fmt.Errorf("failed to create room: %w", err))
		return
	}

	// The owner joins their own room on creation.
	member := rooms.Member{
		UserID:   identity.UserID,
		Username: identity.Username,
		Mode:     hub.ModeHindiToEnglish,
		Active:   true,
	}
	if err := a.directory.UpsertMember(r.Context(), room.Code, member); err != nil {
		a.logger.Errorw("failed to add owner membership", "error", err, "room", room.Code)
	}

	a.logger.Infow("room created", "room", room.Code, "owner", identity.UserID)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(roomResponse{Room: room, ParticipantCount: 1})
}

type joinRoomInput struct {
	RoomCode     string `json:"room_code"`
	LanguageMode string `json:"language_mode"`
}

func (a *roomAPI) joinRoom(w http.ResponseWriter, r *http.Request, identity auth.Identity) {
	var input joinRoomInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, a.logger, http.StatusBadRequest, fmt.Errorf("invalid payload: %w", err))
		return
	}

	room, err := a.directory.Lookup(r.Context(), input.RoomCode)
	if err != nil {
		writeError(w, a.logger, http.StatusNotFound, errors.New("room not found"))
		return
	}
	if room.Status != rooms.StatusActive {
		writeError(w, a.logger, http.StatusNotFound, errors.New("room has ended"))
		return
	}

	members, err := a.directory.Members(r.Context(), room.Code)
	if err != nil {
		writeError(w, a.logger, http.StatusInternalServerError, fmt.Errorf("failed to list members: %w", err))
		return
	}
	active := 0
	already := false
	for _, m := range members {
		if m.Active {
			active++
		}
		if m.UserID == identity.UserID {
			already = true
		}
	}
	if !already && active >= room.Capacity {
		writeError(w, a.logger, http.StatusConflict, errors.New("room is full"))
		return
	}

	mode := input.LanguageMode
	if !hub.ValidMode(mode) {
		mode = hub.ModeHindiToEnglish
	}
	member := rooms.Member{
		UserID:   identity.UserID,
		Username: identity.Username,
		Mode:     mode,
		Active:   true,
	}
	if err := a.directory.UpsertMember(r.Context(), room.Code, member); err != nil {
		writeError(w, a.logger, http.StatusInternalServerError, fmt.Errorf("failed to join room: %w", err))
		return
	}

	a.logger.Infow("room joined", "room", room.Code, "user", identity.UserID, "mode", mode)
	writeJSON(w, roomResponse{Room: room, ParticipantCount: countActive(members, member)})
}

type roomDetailResponse struct {
	rooms.Room
	ParticipantCount int            `json:"participant_count"`
	Participants     []rooms.Member `json:"participants"`
	LiveParticipants int            `json:"live_participants"`
}

func (a *roomAPI) roomDetail(w http.ResponseWriter, r *http.Request, identity auth.Identity) {
	code := r.PathValue("room_code")
	room, err := a.directory.Lookup(r.Context(), code)
	if err != nil {
		writeError(w, a.logger, http.StatusNotFound, errors.New("room not found"))
		return
	}
	members, err := a.directory.Members(r.Context(), code)
	if err != nil {
		writeError(w, a.logger, http.StatusInternalServerError, fmt.Errorf("failed to list members: %w", err))
		return
	}
	active := 0
	for _, m := range members {
		if m.Active {
			active++
		}
	}
	writeJSON(w, roomDetailResponse{
		Room:             room,
		ParticipantCount: active,
		Participants:     members,
		LiveParticipants: len(a.hub.Snapshot(code)),
	})
}

func (a *roomAPI) roomMessages(w http.ResponseWriter, r *http.Request, identity auth.Identity) {
	code := r.PathValue("room_code")
	if _, err := a.directory.Lookup(r.Context(), code); err != nil {
		writeError(w, a.logger, http.StatusNotFound, errors.New("room not found"))
		return
	}
	entries, err := a.log.Recent(r.Context(), code, 50)
	if err != nil {
		writeError(w, a.logger, http.StatusInternalServerError, fmt.Errorf("failed to read messages: %w", err))
		return
	}
	writeJSON(w, map[string]any{"room_code": code, "messages": entries})
}

func (a *roomAPI) leaveRoom(w http.ResponseWriter, r *http.Request, identity auth.Identity) {
	code := r.PathValue("room_code")
	if err := a.directory.SetMemberActive(r.Context(), code, identity.UserID, false); err != nil {
		writeError(w, a.logger, http.StatusNotFound, errors.New("room not found or not a participant"))
		return
	}
	writeJSON(w, map[string]string{"detail": "left room"})
}

func (a *roomAPI) endRoom(w http.ResponseWriter, r *http.Request, identity auth.Identity) {
	code := r.PathValue("room_code")
	room, err := a.directory.Lookup(r.Context(), code)
	if err != nil {
		writeError(w, a.logger, http.StatusNotFound, errors.New("room not found"))
		return
	}
	if room.OwnerID != identity.UserID {
		writeError(w, a.logger, http.StatusForbidden, errors.New("only the room owner can end the meeting"))
		return
	}
	if err := a.directory.End(r.Context(), code, time.Now().UTC()); err != nil {
		writeError(w, a.logger, http.StatusInternalServerError, fmt.Errorf("failed to end room: %w", err))
		return
	}
	a.hub.CloseRoom(code)
	a.logger.Infow("room ended", "room", code, "owner", identity.UserID)
	writeJSON(w, map[string]string{"detail": "room ended"})
}

// countActive is the active member count after the join that produced
// member.
func countActive(before []rooms.Member, member rooms.Member) int {
	count := 0
	seen := false
	for _, m := range before {
		if m.UserID == member.UserID {
			seen = true
			count++
			continue
		}
		if m.Active {
			count++
		}
	}
	if !seen {
		count++
	}
	return count
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, logger *zap.SugaredLogger, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	payload := map[string]string{"error": err.Error()}
	if encodeErr := json.NewEncoder(w).Encode(payload); encodeErr != nil {
		logger.Errorw("failed to encode error response", "error", encodeErr)
	}
}
