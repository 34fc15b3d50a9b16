package websocket

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum control frame size accepted from the peer.
	maxMessageSize = 4 * 1024
)

// Hub defaults
const (
	DefaultChunkSize     = 1024
	DefaultChunkInterval = 32 * time.Millisecond
	DefaultToneHz        = 440
	DefaultMaxDuration   = 2 * time.Minute
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// Dev endpoint, bound to localhost by default
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// HubConfig tunes the synthetic microphone
//
// Fields:
//   - ChunkSize: bytes per binary frame
//   - ChunkInterval: delay between frames
//   - SampleRate: PCM sample rate of the tone
//   - ToneHz: frequency of the generated sine
//   - MaxDuration: a capture ends by itself after this long
type HubConfig struct {
	ChunkSize     int
	ChunkInterval time.Duration
	SampleRate    int
	ToneHz        float64
	MaxDuration   time.Duration
}

func (c *HubConfig) withDefaults() {
	if c.ChunkSize <= 0 {
		c.ChunkSize = DefaultChunkSize
	}
	if c.ChunkInterval <= 0 {
		c.ChunkInterval = DefaultChunkInterval
	}
	if c.SampleRate <= 0 {
		c.SampleRate = DefaultSampleRate
	}
	if c.ToneHz <= 0 {
		c.ToneHz = DefaultToneHz
	}
	if c.MaxDuration <= 0 {
		c.MaxDuration = DefaultMaxDuration
	}
}

// Hub tracks the connected microphone clients of the dev server
type Hub struct {
	// Registered clients.
	clients map[string]*Client

	// Register requests from the clients.
	register chan *Client

	// Unregister requests from clients.
	unregister chan *Client

	// Mutex for thread-safe access to clients map
	mu sync.RWMutex

	// Closed when Run returns
	done chan struct{}

	cfg       HubConfig
	validator *MessageValidator
	logger    *zap.Logger
}

// NewHub creates a new microphone hub
func NewHub(cfg HubConfig, logger *zap.Logger) *Hub {
	cfg.withDefaults()
	return &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		cfg:        cfg,
		validator:  NewMessageValidator(),
		logger:     logger,
	}
}

// Run starts the hub's main loop. It returns when ctx is done, after
// disconnecting every client.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.id] = client
			h.mu.Unlock()
			h.logger.Info("Client registered", zap.String("clientID", client.id))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client.id]; ok {
				delete(h.clients, client.id)
				client.shutdown()
			}
			h.mu.Unlock()
			h.logger.Info("Client unregistered", zap.String("clientID", client.id))

		case <-ctx.Done():
			h.mu.Lock()
			for id, client := range h.clients {
				delete(h.clients, id)
				client.shutdown()
			}
			h.mu.Unlock()
			return
		}
	}
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// WriteData is one outbound frame
type WriteData struct {
	// MessageType is the type of the websocket message.
	// Expect websocket.TextMessage or websocket.BinaryMessage
	Type    int
	Payload []byte
}

// Client is a middleman between the websocket connection and the hub.
type Client struct {
	hub *Hub

	// The websocket connection.
	conn *websocket.Conn

	// Buffered channel of outbound messages.
	send chan WriteData

	// Closed when the hub drops the client
	closed    chan struct{}
	closeOnce sync.Once

	id     string
	logger *zap.Logger

	mutex   sync.Mutex
	capture *captureRun
}

// captureRun is one capture_start .. capture_stopped exchange
type captureRun struct {
	sessionID  string
	sampleRate int
	encoding   string
	stop       chan struct{}
	stopOnce   sync.Once
	done       chan struct{}
}

func (r *captureRun) requestStop() {
	r.stopOnce.Do(func() { close(r.stop) })
}

// HandleWebSocket upgrades the request and serves one microphone client.
// clientID may be empty, in which case a random id is used.
func (h *Hub) HandleWebSocket(c echo.Context, clientID string) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.logger.Error("WebSocket upgrade failed", zap.Error(err))
		return err
	}

	if clientID == "" {
		clientID = uuid.NewString()
	}

	client := &Client{
		hub:    h,
		conn:   conn,
		send:   make(chan WriteData, 256),
		closed: make(chan struct{}),
		id:     clientID,
		logger: h.logger.With(zap.String("clientID", clientID)),
	}

	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return nil
	}

	// Allow collection of memory referenced by the caller by doing all work in
	// new goroutines.
	go client.writePump()
	go client.readPump()

	return nil
}

func (c *Client) shutdown() {
	c.closeOnce.Do(func() {
		close(c.closed)
		c.mutex.Lock()
		if c.capture != nil {
			c.capture.requestStop()
		}
		c.mutex.Unlock()
	})
}

// readPump pumps control frames from the websocket connection.
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		messageType, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				c.logger.Error("WebSocket error", zap.Error(err))
			}
			break
		}

		switch messageType {
		case websocket.TextMessage:
			c.processMessage(message)
		case websocket.BinaryMessage:
			c.logger.Warn("Ignoring binary frame from client", zap.Int("size", len(message)))
		default:
			c.logger.Warn("Received unknown message type", zap.Int("type", messageType))
		}
	}
}

// writePump pumps messages from the hub to the websocket connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(message.Type, message.Payload); err != nil {
				c.logger.Error("Failed to write message", zap.Error(err))
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.closed:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// processMessage processes incoming control frames from the client
func (c *Client) processMessage(message []byte) {
	msg, err := c.hub.validator.ValidateMessage(message)
	if err != nil {
		c.logger.Warn("Invalid control frame", zap.Error(err))
		c.sendJSON(CreateErrorMessage(ErrorCodeInvalidMessage, err.Error()))
		return
	}

	switch m := msg.(type) {
	case *CaptureStartMessage:
		c.handleCaptureStart(m)
	case *CaptureEndMessage:
		c.handleCaptureEnd(m)
	case *PingMessage:
		c.sendJSON(CreatePongMessage(m.Data))
	default:
		c.logger.Warn("Unexpected frame from client", zap.String("frame", fmt.Sprintf("%T", m)))
	}
}

// handleCaptureStart starts streaming the tone for a new session
func (c *Client) handleCaptureStart(msg *CaptureStartMessage) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if c.capture != nil {
		c.sendJSON(CreateErrorMessage(ErrorCodeBusy, "capture already in progress"))
		return
	}

	run := &captureRun{
		sessionID:  uuid.NewString(),
		sampleRate: c.hub.cfg.SampleRate,
		encoding:   DefaultEncoding,
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}
	if msg.SampleRate != 0 {
		run.sampleRate = msg.SampleRate
	}
	c.capture = run

	c.sendJSON(CreateCaptureStartedMessage(run.sessionID, run.sampleRate, run.encoding))
	c.logger.Info("Capture started", zap.String("sessionID", run.sessionID), zap.Int("sampleRate", run.sampleRate))

	go c.streamTone(run)
}

// handleCaptureEnd stops the current session. The capture_stopped frame is
// sent by the streaming goroutine after its last chunk.
func (c *Client) handleCaptureEnd(msg *CaptureEndMessage) {
	c.mutex.Lock()
	run := c.capture
	c.mutex.Unlock()

	if run == nil || run.sessionID != msg.SessionID {
		c.sendJSON(CreateErrorMessage(ErrorCodeNoSession, "no capture with this session id"))
		return
	}
	run.requestStop()
}

// streamTone sends PCM chunks until stopped or the maximum duration elapses
func (c *Client) streamTone(run *captureRun) {
	defer close(run.done)

	ticker := time.NewTicker(c.hub.cfg.ChunkInterval)
	defer ticker.Stop()
	deadline := time.NewTimer(c.hub.cfg.MaxDuration)
	defer deadline.Stop()

	tone := newToneGenerator(c.hub.cfg.ToneHz, run.sampleRate)
	chunks := 0

loop:
	for {
		select {
		case <-run.stop:
			break loop
		case <-deadline.C:
			c.logger.Info("Capture reached maximum duration", zap.String("sessionID", run.sessionID))
			break loop
		case <-ticker.C:
			if !c.enqueue(WriteData{Type: websocket.BinaryMessage, Payload: tone.Next(c.hub.cfg.ChunkSize)}) {
				return
			}
			chunks++
		}
	}

	c.mutex.Lock()
	c.capture = nil
	c.mutex.Unlock()

	c.sendJSON(CreateCaptureStoppedMessage(run.sessionID, chunks))
	c.logger.Info("Capture stopped", zap.String("sessionID", run.sessionID), zap.Int("totalChunks", chunks))
}

// enqueue queues a frame unless the client is gone
func (c *Client) enqueue(data WriteData) bool {
	select {
	case c.send <- data:
		return true
	case <-c.closed:
		return false
	}
}

func (c *Client) sendJSON(v interface{}) {
	payload, err := json.Marshal(v)
	if err != nil {
		c.logger.Error("Failed to marshal frame", zap.Error(err))
		return
	}
	c.enqueue(WriteData{Type: websocket.TextMessage, Payload: payload})
}

// toneGenerator produces 16-bit little endian mono PCM of a sine wave
type toneGenerator struct {
	step  float64
	phase float64
}

func newToneGenerator(hz float64, sampleRate int) *toneGenerator {
	return &toneGenerator{step: 2 * math.Pi * hz / float64(sampleRate)}
}

// Next returns size bytes of samples, continuing the previous phase
func (g *toneGenerator) Next(size int) []byte {
	buf := make([]byte, size-size%2)
	for i := 0; i+1 < len(buf); i += 2 {
		sample := int16(math.Sin(g.phase) * math.MaxInt16 / 4)
		binary.LittleEndian.PutUint16(buf[i:], uint16(sample))
		g.phase += g.step
		if g.phase > 2*math.Pi {
			g.phase -= 2 * math.Pi
		}
	}
	return buf
}
