package server

import (
	"bot-bridge/codec"
	"bot-bridge/domain"
	"bot-bridge/observability"
	"bot-bridge/runtime"
	"bot-bridge/services"
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"testing"
	"time"

	"github.com/fasthttp/websocket"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

const frameWait = 2 * time.Second

// startRelay serves a real hub over a loopback listener and returns the ws url.
func startRelay(t *testing.T, config Config) string {
	t.Helper()
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	identities, err := domain.NewIdentityRegistry(domain.DefaultIdentities)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	hub := runtime.NewHub(log, identities, domain.NewMessageLog(identities, 100), runtime.NewRegistry(),
		runtime.HubConfig{HistoryLimit: 50, SinkTimeout: time.Second})
	go func() { _ = hub.Run(ctx) }()

	s := New(log, services.NewChatService(hub, nil, log), codec.NewEncoder(identities),
		nil, observability.NewMetrics(nil), nil, config)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = s.App().Listener(ln) }()

	t.Cleanup(func() {
		shutdownCtx, stop := context.WithTimeout(context.Background(), time.Second)
		defer stop()
		_ = s.Shutdown(shutdownCtx)
		cancel()
	})
	return "ws://" + ln.Addr().String() + "/ws"
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	var conn *websocket.Conn
	require.Eventually(t, func() bool {
		c, _, err := websocket.DefaultDialer.Dial(url, nil)
		if err != nil {
			return false
		}
		conn = c
		return true
	}, frameWait, 20*time.Millisecond)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func writeFrame(t *testing.T, conn *websocket.Conn, frame string) {
	t.Helper()
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(frame)))
}

// readUntil skips frames until one of the given type arrives.
func readUntil(t *testing.T, conn *websocket.Conn, frameType string) json.RawMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(frameWait)))
	for {
		_, data, err := conn.ReadMessage()
		require.NoError(t, err, "waiting for %s", frameType)
		var frame codec.Frame
		require.NoError(t, json.Unmarshal(data, &frame))
		if frame.Type == frameType {
			return frame.Payload
		}
	}
}

func TestWebSocket_ConnectReceivesHistoryAndPresence(t *testing.T) {
	req := require.New(t)
	url := startRelay(t, Config{})

	// When a client connects
	conn := dial(t, url)

	// Then it first gets the history, then the online users
	var history []codec.MessageView
	req.NoError(json.Unmarshal(readUntil(t, conn, "history"), &history))
	req.Empty(history)
	var online []domain.UserIdentity
	req.NoError(json.Unmarshal(readUntil(t, conn, "online-users"), &online))
	req.Empty(online)
}

func TestWebSocket_MalformedFrameKeepsConnectionOpen(t *testing.T) {
	req := require.New(t)
	url := startRelay(t, Config{})
	conn := dial(t, url)
	readUntil(t, conn, "online-users")

	// Given luna has joined
	writeFrame(t, conn, `{"type":"join","payload":{"userKey":"luna"}}`)
	readUntil(t, conn, "user-joined")

	// When a garbage frame precedes a valid message
	writeFrame(t, conn, `not json at all`)
	writeFrame(t, conn, `{"type":"send-message","payload":{"text":"still here"}}`)

	// Then the message is still relayed
	var view codec.MessageView
	req.NoError(json.Unmarshal(readUntil(t, conn, "message"), &view))
	req.Equal("still here", view.Text)
	req.Equal("luna", view.From)
}

func TestWebSocket_CloseRemovesPresence(t *testing.T) {
	req := require.New(t)
	url := startRelay(t, Config{})

	// Given luna is online and a watcher is connected
	luna := dial(t, url)
	readUntil(t, luna, "online-users")
	writeFrame(t, luna, `{"type":"join","payload":"luna"}`)
	readUntil(t, luna, "user-joined")

	watcher := dial(t, url)
	var online []domain.UserIdentity
	req.NoError(json.Unmarshal(readUntil(t, watcher, "online-users"), &online))
	req.Len(online, 1)

	// When luna's socket closes
	req.NoError(luna.Close())

	// Then the watcher sees her leave and an empty presence list
	var left codec.PresenceView
	req.NoError(json.Unmarshal(readUntil(t, watcher, "user-left"), &left))
	req.Equal("luna", left.User.Key)
	req.NoError(json.Unmarshal(readUntil(t, watcher, "online-users"), &online))
	req.Empty(online)
}

func TestWebSocket_FloodClosesWithPolicyViolation(t *testing.T) {
	req := require.New(t)
	url := startRelay(t, Config{RateLimit: 0.001, RateBurst: 1})
	conn := dial(t, url)

	// When frames arrive faster than the allowed rate
	for range 3 {
		if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"typing"}`)); err != nil {
			break
		}
	}

	// Then the server closes the socket with a policy violation
	req.NoError(conn.SetReadDeadline(time.Now().Add(frameWait)))
	var err error
	for err == nil {
		_, _, err = conn.ReadMessage()
	}
	req.True(websocket.IsCloseError(err, websocket.ClosePolicyViolation), "got %v", err)
}
