package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Aakashchoure4/SpeakFluent-Ai/auth"
	"github.com/Aakashchoure4/SpeakFluent-Ai/history"
	"github.com/Aakashchoure4/SpeakFluent-Ai/hub"
	"github.com/Aakashchoure4/SpeakFluent-Ai/metrics"
	"github.com/Aakashchoure4/SpeakFluent-Ai/rooms"
)

type apiFixture struct {
	server    *httptest.Server
	directory *rooms.MemoryDirectory
	log       *history.MemoryStore
	hub       *hub.Hub
	validator *auth.StubValidator
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()

	logger := zap.NewNop().Sugar()
	directory := rooms.NewMemoryDirectory()
	logStore := history.NewMemoryStore(50)
	sessionHub := hub.New(16, logger, metrics.New())
	validator := auth.NewStubValidator()
	validator.Allow("tok-owner", auth.Identity{UserID: 1, Username: "asha"})
	validator.Allow("tok-guest", auth.Identity{UserID: 2, Username: "bela"})

	api := &roomAPI{
		directory: directory,
		hub:       sessionHub,
		log:       logStore,
		validator: validator,
		capacity:  10,
		logger:    logger,
	}
	mux := http.NewServeMux()
	api.register(mux)
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	return &apiFixture{
		server:    server,
		directory: directory,
		log:       logStore,
		hub:       sessionHub,
		validator: validator,
	}
}

func (f *apiFixture) do(t *testing.T, method, path, token string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, f.server.URL+path, &buf)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := f.server.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })

	var decoded map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&decoded)
	return resp, decoded
}

func TestCreateRoom(t *testing.T) {
	t.Parallel()

	f := newAPIFixture(t)
	resp, body := f.do(t, http.MethodPost, "/api/rooms", "tok-owner", map[string]any{"name": "standup"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	code, _ := body["room_code"].(string)
	require.Len(t, code, 9)
	assert.Equal(t, "standup", body["name"])
	assert.Equal(t, float64(1), body["owner_id"])
	assert.Equal(t, float64(10), body["max_participants"], "default capacity applied")
	assert.Equal(t, "active", body["status"])
	assert.Equal(t, float64(1), body["participant_count"], "owner auto-joins")

	members, err := f.directory.Members(context.Background(), code)
	require.NoError(t, err)
	require.Len(t, members, 1)
	assert.Equal(t, int64(1), members[0].UserID)
}

func TestCreateRoomValidation(t *testing.T) {
	t.Parallel()

	f := newAPIFixture(t)

	resp, _ := f.do(t, http.MethodPost, "/api/rooms", "tok-owner", map[string]any{"name": "   "})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = f.do(t, http.MethodPost, "/api/rooms", "", map[string]any{"name": "standup"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = f.do(t, http.MethodPost, "/api/rooms", "tok-unknown", map[string]any{"name": "standup"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func seedRoom(t *testing.T, f *apiFixture, capacity int) string {
	t.Helper()
	room := rooms.Room{
		Code:      rooms.GenerateCode(),
		Name:      "standup",
		OwnerID:   1,
		Capacity:  capacity,
		Status:    rooms.StatusActive,
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, f.directory.Create(context.Background(), room))
	return room.Code
}

func TestJoinRoom(t *testing.T) {
	t.Parallel()

	f := newAPIFixture(t)
	code := seedRoom(t, f, 5)

	resp, body := f.do(t, http.MethodPost, "/api/rooms/join", "tok-guest",
		map[string]any{"room_code": code, "language_mode": "en_to_hi"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, code, body["room_code"])
	assert.Equal(t, float64(1), body["participant_count"])

	members, err := f.directory.Members(context.Background(), code)
	require.NoError(t, err)
	require.Len(t, members, 1)
	assert.Equal(t, "en_to_hi", members[0].Mode)

	// Unknown modes fall back to the default direction.
	resp, _ = f.do(t, http.MethodPost, "/api/rooms/join", "tok-owner",
		map[string]any{"room_code": code, "language_mode": "fr_to_de"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	members, err = f.directory.Members(context.Background(), code)
	require.NoError(t, err)
	require.Len(t, members, 2)
	for _, m := range members {
		if m.UserID == 1 {
			assert.Equal(t, "hi_to_en", m.Mode)
		}
	}

	resp, _ = f.do(t, http.MethodPost, "/api/rooms/join", "tok-guest",
		map[string]any{"room_code": "NOPE-NOPE"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestJoinFullRoom(t *testing.T) {
	t.Parallel()

	f := newAPIFixture(t)
	code := seedRoom(t, f, 1)

	resp, _ := f.do(t, http.MethodPost, "/api/rooms/join", "tok-owner", map[string]any{"room_code": code})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = f.do(t, http.MethodPost, "/api/rooms/join", "tok-guest", map[string]any{"room_code": code})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	// Re-joining as an existing member is not a capacity violation.
	resp, _ = f.do(t, http.MethodPost, "/api/rooms/join", "tok-owner", map[string]any{"room_code": code})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRoomDetailAndMessages(t *testing.T) {
	t.Parallel()

	f := newAPIFixture(t)
	code := seedRoom(t, f, 5)
	resp, _ := f.do(t, http.MethodPost, "/api/rooms/join", "tok-guest", map[string]any{"room_code": code})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	require.NoError(t, f.log.Append(context.Background(), history.Entry{
		RoomCode:       code,
		UserID:         2,
		Username:       "bela",
		TranslatedText: "Hello",
		CreatedAt:      time.Now().UTC(),
	}))

	resp, body := f.do(t, http.MethodGet, "/api/rooms/"+code, "tok-owner", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(1), body["participant_count"])
	participants, ok := body["participants"].([]any)
	require.True(t, ok)
	assert.Len(t, participants, 1)
	assert.Equal(t, float64(0), body["live_participants"])

	resp, body = f.do(t, http.MethodGet, "/api/rooms/"+code+"/messages", "tok-owner", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	messages, ok := body["messages"].([]any)
	require.True(t, ok)
	require.Len(t, messages, 1)

	resp, _ = f.do(t, http.MethodGet, "/api/rooms/NOPE-NOPE", "tok-owner", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestLeaveRoom(t *testing.T) {
	t.Parallel()

	f := newAPIFixture(t)
	code := seedRoom(t, f, 5)
	resp, _ := f.do(t, http.MethodPost, "/api/rooms/join", "tok-guest", map[string]any{"room_code": code})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = f.do(t, http.MethodPost, "/api/rooms/"+code+"/leave", "tok-guest", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	members, err := f.directory.Members(context.Background(), code)
	require.NoError(t, err)
	require.Len(t, members, 1)
	assert.False(t, members[0].Active)

	resp, _ = f.do(t, http.MethodPost, "/api/rooms/"+code+"/leave", "tok-owner", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode, "leaving a room never joined")
}

func TestEndRoomOwnerOnly(t *testing.T) {
	t.Parallel()

	f := newAPIFixture(t)
	code := seedRoom(t, f, 5)

	resp, _ := f.do(t, http.MethodPost, "/api/rooms/"+code+"/end", "tok-guest", nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, _ = f.do(t, http.MethodPost, "/api/rooms/"+code+"/end", "tok-owner", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	room, err := f.directory.Lookup(context.Background(), code)
	require.NoError(t, err)
	assert.Equal(t, rooms.StatusEnded, room.Status)
	require.NotNil(t, room.EndedAt)

	// Joining an ended room fails.
	resp, _ = f.do(t, http.MethodPost, "/api/rooms/join", "tok-guest", map[string]any{"room_code": code})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
