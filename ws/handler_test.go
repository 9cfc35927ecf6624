package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Aakashchoure4/SpeakFluent-Ai/audio"
	"github.com/Aakashchoure4/SpeakFluent-Ai/auth"
	"github.com/Aakashchoure4/SpeakFluent-Ai/history"
	"github.com/Aakashchoure4/SpeakFluent-Ai/hub"
	"github.com/Aakashchoure4/SpeakFluent-Ai/metrics"
	"github.com/Aakashchoure4/SpeakFluent-Ai/pipeline"
	"github.com/Aakashchoure4/SpeakFluent-Ai/rooms"
)

const testRoom = "MX7K-A2QP"

type fixture struct {
	server    *httptest.Server
	hub       *hub.Hub
	validator *auth.StubValidator
	directory *rooms.MemoryDirectory
	log       *history.MemoryStore
}

func newFixture(t *testing.T, capacity int) *fixture {
	t.Helper()
	return newFixtureWithConfig(t, capacity, Config{
		IdleTimeout:    5 * time.Second,
		WriteTimeout:   2 * time.Second,
		ChunkQueueSize: 8,
	})
}

func newFixtureWithConfig(t *testing.T, capacity int, cfg Config) *fixture {
	t.Helper()

	logger := zap.NewNop().Sugar()
	m := metrics.New()
	validator := auth.NewStubValidator()
	directory := rooms.NewMemoryDirectory()
	logStore := history.NewMemoryStore(50)

	require.NoError(t, directory.Create(context.Background(), rooms.Room{
		Code:      testRoom,
		Name:      "standup",
		OwnerID:   1,
		Capacity:  capacity,
		Status:    rooms.StatusActive,
		CreatedAt: time.Now().UTC(),
	}))

	orch := pipeline.NewOrchestrator(pipeline.NewStubCapabilities(), pipeline.Config{
		MinConfidence:               0.2,
		MaxConcurrentTranscriptions: 2,
	}, logger, m)

	sessionHub := hub.New(64, logger, m)
	handler := NewHandler(sessionHub, validator, directory, orch, audio.Decoder{MinBytes: 10}, logStore, cfg, logger, m)

	mux := http.NewServeMux()
	mux.Handle("GET /ws/{room_code}", handler)
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	return &fixture{
		server:    server,
		hub:       sessionHub,
		validator: validator,
		directory: directory,
		log:       logStore,
	}
}

func (f *fixture) allow(userID int64, username string) string {
	token := "tok-" + username
	f.validator.Allow(token, auth.Identity{UserID: userID, Username: username})
	return token
}

func (f *fixture) dial(t *testing.T, roomCode, token string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(f.server.URL, "http") + "/ws/" + roomCode + "?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var event map[string]any
	require.NoError(t, json.Unmarshal(data, &event))
	return event
}

// waitForEvent discards frames until one of the wanted type arrives.
func waitForEvent(t *testing.T, conn *websocket.Conn, eventType string) map[string]any {
	t.Helper()
	for i := 0; i < 20; i++ {
		event := readEvent(t, conn)
		if event["type"] == eventType {
			return event
		}
	}
	t.Fatalf("never received %s event", eventType)
	return nil
}

func expectClose(t *testing.T, conn *websocket.Conn, code int) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	var closeErr *websocket.CloseError
	require.ErrorAs(t, err, &closeErr)
	assert.Equal(t, code, closeErr.Code)
}

func audioFrame(size int) []byte {
	frame := make([]byte, size)
	copy(frame, []byte{0x1a, 0x45, 0xdf, 0xa3})
	return frame
}

func TestHandshakeEstablishesSession(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 10)
	conn := f.dial(t, testRoom, f.allow(1, "asha"))

	// connection_established is the first frame a fresh session reads,
	// ahead of its own join announcement.
	established := readEvent(t, conn)
	assert.Equal(t, "connection_established", established["type"])
	assert.Equal(t, testRoom, established["room_code"])
	assert.Equal(t, "asha", established["username"])
	assert.Equal(t, "hi_to_en", established["language_mode"])
	participants, ok := established["participants"].([]any)
	require.True(t, ok)
	assert.Len(t, participants, 1)

	joined := readEvent(t, conn)
	assert.Equal(t, "user_joined", joined["type"])
	assert.Equal(t, float64(1), joined["user_id"])

	// The connection registers the user as an active room member.
	members, err := f.directory.Members(context.Background(), testRoom)
	require.NoError(t, err)
	require.Len(t, members, 1)
	assert.True(t, members[0].Active)
}

func TestHandshakeRefusals(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 1)
	token := f.allow(1, "asha")

	// Bad token.
	conn := f.dial(t, testRoom, "bogus")
	expectClose(t, conn, CloseAuthFailure)

	// Unknown room.
	conn = f.dial(t, "NOPE-NOPE", token)
	expectClose(t, conn, CloseRoomUnavailable)

	// Full room.
	first := f.dial(t, testRoom, token)
	readEvent(t, first)
	conn = f.dial(t, testRoom, f.allow(2, "bela"))
	expectClose(t, conn, CloseRoomFull)

	// Ended room.
	require.NoError(t, f.directory.End(context.Background(), testRoom, time.Now().UTC()))
	conn = f.dial(t, testRoom, token)
	expectClose(t, conn, CloseRoomUnavailable)
}

func TestReconnectReplacesSession(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 1)
	token := f.allow(1, "asha")

	first := f.dial(t, testRoom, token)
	waitForEvent(t, first, "connection_established")

	// The same user dials again; the full room still admits the
	// reconnect and the first socket is closed by the server.
	second := f.dial(t, testRoom, token)
	waitForEvent(t, second, "connection_established")

	require.NoError(t, first.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		if _, _, err := first.ReadMessage(); err != nil {
			break
		}
	}

	// The surviving connection still works and the member stays active.
	require.Eventually(t, func() bool {
		members, err := f.directory.Members(context.Background(), testRoom)
		return err == nil && len(members) == 1 && members[0].Active
	}, 2*time.Second, 20*time.Millisecond)
	assert.Len(t, f.hub.Snapshot(testRoom), 1)
}

func TestAudioChunkBroadcastsTranslation(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 10)
	speaker := f.dial(t, testRoom, f.allow(1, "asha"))
	listener := f.dial(t, testRoom, f.allow(2, "bela"))
	waitForEvent(t, speaker, "connection_established")
	waitForEvent(t, listener, "connection_established")

	require.NoError(t, speaker.WriteMessage(websocket.BinaryMessage, audioFrame(256)))

	for _, conn := range []*websocket.Conn{speaker, listener} {
		result := waitForEvent(t, conn, "translation_result")
		assert.Equal(t, float64(1), result["user_id"])
		assert.Equal(t, "asha", result["username"])
		assert.Equal(t, "नमस्ते", result["original_text"])
		assert.Equal(t, "Hello", result["translated_text"])
		assert.Equal(t, "hi", result["source_language"])
		assert.Equal(t, "en", result["target_language"])
		assert.NotEmpty(t, result["audio_url"])
	}

	// The result lands in the room's message log.
	require.Eventually(t, func() bool {
		entries, err := f.log.Recent(context.Background(), testRoom, 10)
		return err == nil && len(entries) == 1
	}, 2*time.Second, 20*time.Millisecond)
	entries, err := f.log.Recent(context.Background(), testRoom, 10)
	require.NoError(t, err)
	assert.Equal(t, "Hello", entries[0].TranslatedText)
}

func TestTinyAudioFrameSilentlyDropped(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 10)
	conn := f.dial(t, testRoom, f.allow(1, "asha"))
	waitForEvent(t, conn, "connection_established")

	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, []byte{0x00}))

	// A ping still round-trips, proving the session survived and no
	// translation was produced for the dropped frame.
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"ping"}`)))
	for {
		event := readEvent(t, conn)
		require.NotEqual(t, "translation_result", event["type"], "dropped frame produced a result")
		if event["type"] == "pong" {
			break
		}
	}
}

func TestPingAnsweredOnlyToSender(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 10)
	first := f.dial(t, testRoom, f.allow(1, "asha"))
	second := f.dial(t, testRoom, f.allow(2, "bela"))
	waitForEvent(t, first, "connection_established")
	waitForEvent(t, second, "connection_established")

	require.NoError(t, second.WriteMessage(websocket.TextMessage, []byte(`{"type":"ping"}`)))
	waitForEvent(t, second, "pong")

	// The other member never sees the pong: everything up to the mode
	// change below is presence traffic.
	require.NoError(t, first.WriteMessage(websocket.TextMessage, []byte(`{"type":"change_mode","mode":"en_to_hi"}`)))
	for {
		event := readEvent(t, first)
		require.NotEqual(t, "pong", event["type"], "pong leaked to a non-sender")
		if event["type"] == "mode_changed" {
			break
		}
	}
}

func TestChangeModePersistsAndAnnounces(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 10)
	first := f.dial(t, testRoom, f.allow(1, "asha"))
	second := f.dial(t, testRoom, f.allow(2, "bela"))
	waitForEvent(t, first, "connection_established")
	waitForEvent(t, second, "connection_established")

	require.NoError(t, first.WriteMessage(websocket.TextMessage, []byte(`{"type":"change_mode","mode":"en_to_hi"}`)))

	for _, conn := range []*websocket.Conn{first, second} {
		event := waitForEvent(t, conn, "mode_changed")
		assert.Equal(t, float64(1), event["user_id"])
		assert.Equal(t, "en_to_hi", event["mode"])
		participants, ok := event["participants"].([]any)
		require.True(t, ok)
		assert.Len(t, participants, 2)
	}

	require.Eventually(t, func() bool {
		members, err := f.directory.Members(context.Background(), testRoom)
		if err != nil {
			return false
		}
		for _, m := range members {
			if m.UserID == 1 && m.Mode == "en_to_hi" {
				return true
			}
		}
		return false
	}, 2*time.Second, 20*time.Millisecond)

	// Unknown control messages and modes are ignored without killing
	// the connection.
	require.NoError(t, first.WriteMessage(websocket.TextMessage, []byte(`{"type":"change_mode","mode":"fr_to_de"}`)))
	require.NoError(t, first.WriteMessage(websocket.TextMessage, []byte(`{"type":"mystery"}`)))
	require.NoError(t, first.WriteMessage(websocket.TextMessage, []byte(`not json`)))
	require.NoError(t, first.WriteMessage(websocket.TextMessage, []byte(`{"type":"ping"}`)))
	event := readEvent(t, first)
	assert.Equal(t, "pong", event["type"])
}

func TestDisconnectAnnouncesDeparture(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 10)
	first := f.dial(t, testRoom, f.allow(1, "asha"))
	second := f.dial(t, testRoom, f.allow(2, "bela"))
	waitForEvent(t, first, "connection_established")
	waitForEvent(t, second, "connection_established")

	require.NoError(t, second.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))
	_ = second.Close()

	left := waitForEvent(t, first, "user_left")
	assert.Equal(t, float64(2), left["user_id"])
	participants, ok := left["participants"].([]any)
	require.True(t, ok)
	assert.Len(t, participants, 1)

	require.Eventually(t, func() bool {
		members, err := f.directory.Members(context.Background(), testRoom)
		if err != nil {
			return false
		}
		for _, m := range members {
			if m.UserID == 2 {
				return !m.Active
			}
		}
		return false
	}, 2*time.Second, 20*time.Millisecond)
}

func TestIdleSessionDisconnected(t *testing.T) {
	t.Parallel()

	f := newFixtureWithConfig(t, 10, Config{
		IdleTimeout:    150 * time.Millisecond,
		WriteTimeout:   2 * time.Second,
		ChunkQueueSize: 8,
	})
	conn := f.dial(t, testRoom, f.allow(1, "asha"))
	waitForEvent(t, conn, "connection_established")

	// Send nothing: the server cuts the connection once the idle window
	// lapses.
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	require.Eventually(t, func() bool {
		return len(f.hub.Snapshot(testRoom)) == 0
	}, 2*time.Second, 20*time.Millisecond, "idle session still registered")

	members, err := f.directory.Members(context.Background(), testRoom)
	require.NoError(t, err)
	require.Len(t, members, 1)
	assert.False(t, members[0].Active, "idle departure not recorded")
}

func TestReceivingBroadcastsKeepsListenerAlive(t *testing.T) {
	t.Parallel()

	f := newFixtureWithConfig(t, 10, Config{
		IdleTimeout:    400 * time.Millisecond,
		WriteTimeout:   2 * time.Second,
		ChunkQueueSize: 8,
	})
	speaker := f.dial(t, testRoom, f.allow(1, "asha"))
	listener := f.dial(t, testRoom, f.allow(2, "bela"))
	waitForEvent(t, speaker, "connection_established")
	waitForEvent(t, listener, "connection_established")

	// The listener never sends a frame, but the speaker keeps the room
	// busy well past the listener's idle window.
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		require.NoError(t, speaker.WriteMessage(websocket.BinaryMessage, audioFrame(256)))
		waitForEvent(t, listener, "translation_result")
		time.Sleep(100 * time.Millisecond)
	}

	assert.Len(t, f.hub.Snapshot(testRoom), 2, "silent listener dropped despite outbound traffic")
}

func TestPersistedModeRestoredOnReconnect(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 10)
	require.NoError(t, f.directory.UpsertMember(context.Background(), testRoom, rooms.Member{
		UserID:   1,
		Username: "asha",
		Mode:     "en_to_hi",
		Active:   false,
	}))

	conn := f.dial(t, testRoom, f.allow(1, "asha"))
	established := waitForEvent(t, conn, "connection_established")
	assert.Equal(t, "en_to_hi", established["language_mode"])
}
