package websocket

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func setupTestHub(t *testing.T, cfg HubConfig) (*Hub, string) {
	t.Helper()
	hub := NewHub(cfg, zaptest.NewLogger(t))

	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	e := echo.New()
	e.GET("/ws/mic", func(c echo.Context) error {
		return hub.HandleWebSocket(c, c.QueryParam("client_id"))
	})
	server := httptest.NewServer(e)

	t.Cleanup(func() {
		cancel()
		server.Close()
	})

	return hub, "ws" + strings.TrimPrefix(server.URL, "http") + "/ws/mic"
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func writeJSON(t *testing.T, conn *websocket.Conn, v interface{}) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(v))
}

// readControl reads frames until a text frame arrives and returns it parsed,
// along with the number of binary frames skipped
func readControl(t *testing.T, conn *websocket.Conn) (interface{}, int) {
	t.Helper()
	validator := NewMessageValidator()
	binaries := 0
	for {
		conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		kind, data, err := conn.ReadMessage()
		require.NoError(t, err)
		if kind == websocket.BinaryMessage {
			binaries++
			continue
		}
		msg, err := validator.ValidateMessage(data)
		require.NoError(t, err, "frame %s", data)
		return msg, binaries
	}
}

func TestHub_PingPong(t *testing.T) {
	_, url := setupTestHub(t, HubConfig{})
	conn := dial(t, url)

	writeJSON(t, conn, CreatePingMessage("hello"))

	msg, _ := readControl(t, conn)
	pong, ok := msg.(*PongMessage)
	require.True(t, ok, "expected pong, got %T", msg)
	assert.Equal(t, "hello", pong.Data)
}

func TestHub_CaptureStreamsChunksUntilEnd(t *testing.T) {
	_, url := setupTestHub(t, HubConfig{ChunkInterval: 5 * time.Millisecond})
	conn := dial(t, url)

	writeJSON(t, conn, CreateCaptureStartMessage(16000, "pcm"))
	msg, _ := readControl(t, conn)
	started, ok := msg.(*CaptureStartedMessage)
	require.True(t, ok, "expected capture_started, got %T", msg)
	assert.NotEmpty(t, started.SessionID)
	assert.Equal(t, 16000, started.SampleRate)

	// Let a few chunks through
	received := 0
	for received < 3 {
		conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		kind, data, err := conn.ReadMessage()
		require.NoError(t, err)
		require.Equal(t, websocket.BinaryMessage, kind)
		assert.Len(t, data, DefaultChunkSize)
		received++
	}

	writeJSON(t, conn, CreateCaptureEndMessage(started.SessionID))
	msg, more := readControl(t, conn)
	stopped, ok := msg.(*CaptureStoppedMessage)
	require.True(t, ok, "expected capture_stopped, got %T", msg)
	assert.Equal(t, started.SessionID, stopped.SessionID)
	assert.Equal(t, received+more, stopped.TotalChunks)
}

func TestHub_SecondStartIsRejected(t *testing.T) {
	_, url := setupTestHub(t, HubConfig{ChunkInterval: time.Hour})
	conn := dial(t, url)

	writeJSON(t, conn, CreateCaptureStartMessage(0, ""))
	msg, _ := readControl(t, conn)
	require.IsType(t, &CaptureStartedMessage{}, msg)

	writeJSON(t, conn, CreateCaptureStartMessage(0, ""))
	msg, _ = readControl(t, conn)
	errMsg, ok := msg.(*ErrorMessage)
	require.True(t, ok, "expected error, got %T", msg)
	assert.Equal(t, ErrorCodeBusy, errMsg.Code)
}

func TestHub_EndWithUnknownSession(t *testing.T) {
	_, url := setupTestHub(t, HubConfig{})
	conn := dial(t, url)

	writeJSON(t, conn, CreateCaptureEndMessage("missing"))
	msg, _ := readControl(t, conn)
	errMsg, ok := msg.(*ErrorMessage)
	require.True(t, ok, "expected error, got %T", msg)
	assert.Equal(t, ErrorCodeNoSession, errMsg.Code)
}

func TestHub_InvalidFrame(t *testing.T) {
	_, url := setupTestHub(t, HubConfig{})
	conn := dial(t, url)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"capture_start","sample_rate":1}`)))
	msg, _ := readControl(t, conn)
	errMsg, ok := msg.(*ErrorMessage)
	require.True(t, ok, "expected error, got %T", msg)
	assert.Equal(t, ErrorCodeInvalidMessage, errMsg.Code)
}

func TestHub_CaptureEndsAfterMaxDuration(t *testing.T) {
	_, url := setupTestHub(t, HubConfig{ChunkInterval: 5 * time.Millisecond, MaxDuration: 50 * time.Millisecond})
	conn := dial(t, url)

	writeJSON(t, conn, CreateCaptureStartMessage(0, ""))
	msg, _ := readControl(t, conn)
	started := msg.(*CaptureStartedMessage)

	msg, binaries := readControl(t, conn)
	stopped, ok := msg.(*CaptureStoppedMessage)
	require.True(t, ok, "expected capture_stopped, got %T", msg)
	assert.Equal(t, started.SessionID, stopped.SessionID)
	assert.Equal(t, binaries, stopped.TotalChunks)
}

func TestHub_ClientCount(t *testing.T) {
	hub, url := setupTestHub(t, HubConfig{})

	conn := dial(t, url)
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, 2*time.Second, 5*time.Millisecond)

	conn.Close()
	require.Eventually(t, func() bool { return hub.ClientCount() == 0 }, 2*time.Second, 5*time.Millisecond)
}

func TestToneGenerator(t *testing.T) {
	gen := newToneGenerator(440, 16000)

	first := gen.Next(1024)
	second := gen.Next(1023)
	assert.Len(t, first, 1024)
	assert.Len(t, second, 1022, "odd sizes are rounded down to whole samples")
	assert.NotEqual(t, first[:64], second[:64], "phase continues across chunks")

	var silent = true
	for _, b := range first {
		if b != 0 {
			silent = false
			break
		}
	}
	assert.False(t, silent)
}

func TestCaptureStartedFrameShape(t *testing.T) {
	data, err := json.Marshal(CreateCaptureStartedMessage("s1", 16000, "pcm"))
	require.NoError(t, err)

	var raw map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, "capture_started", raw["type"])
	assert.Equal(t, "s1", raw["session_id"])
	assert.EqualValues(t, 16000, raw["sample_rate"])
}
