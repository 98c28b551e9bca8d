package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/gorilla/websocket"

	"adbfleet/models"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	// AllDevices subscribes a client to the results of every device.
	AllDevices = "all"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 64 * 1024,
}

type Client struct {
	hub  *WebSocketHub
	conn *websocket.Conn
	send chan []byte

	mu         sync.RWMutex
	subscribed map[string]bool
}

func (c *Client) wants(deviceID string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.subscribed[deviceID] || c.subscribed[AllDevices]
}

func (c *Client) subscribe(deviceID string, on bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if on {
		c.subscribed[deviceID] = true
	} else {
		delete(c.subscribed, deviceID)
	}
}

// WebSocketHub pushes per-device dispatch results to subscribed clients.
type WebSocketHub struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	mu         sync.RWMutex
	logger     log.Logger
}

func NewWebSocketHub(logger log.Logger) *WebSocketHub {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &WebSocketHub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		logger:     log.With(logger, "component", "websocket"),
	}
}

// Run registers and unregisters clients until ctx is done.
func (h *WebSocketHub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			total := len(h.clients)
			h.mu.Unlock()
			level.Info(h.logger).Log("msg", "client connected", "total", total)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			total := len(h.clients)
			h.mu.Unlock()
			level.Info(h.logger).Log("msg", "client disconnected", "total", total)
		}
	}
}

// Publish sends one result event per device outcome of rec. Its signature
// matches service.RecordSink.
func (h *WebSocketHub) Publish(_ context.Context, rec models.DispatchRecord) {
	for _, outcome := range rec.Results {
		h.BroadcastToDevice(outcome.Device, models.ResultEvent{
			Type:       "result",
			DispatchID: rec.ID,
			Command:    rec.Command,
			Outcome:    outcome,
		})
	}
}

// BroadcastToDevice sends message to clients subscribed to deviceID or to
// all devices. A client whose buffer is full loses its oldest message.
func (h *WebSocketHub) BroadcastToDevice(deviceID string, message interface{}) {
	data, err := json.Marshal(message)
	if err != nil {
		level.Error(h.logger).Log("msg", "failed to marshal message", "err", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	sent := 0
	for client := range h.clients {
		if !client.wants(deviceID) {
			continue
		}
		sent++
		select {
		case client.send <- data:
		default:
			select {
			case <-client.send:
			default:
			}
			select {
			case client.send <- data:
			default:
				level.Warn(h.logger).Log("msg", "client channel full, dropping message", "device", deviceID)
			}
		}
	}
	level.Debug(h.logger).Log("msg", "broadcast", "device", deviceID, "bytes", len(data), "clients", sent)
}

// Subscribers returns the number of clients that receive results of deviceID.
func (h *WebSocketHub) Subscribers(deviceID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for client := range h.clients {
		if client.wants(deviceID) {
			n++
		}
	}
	return n
}

func HandleWebSocket(hub *WebSocketHub, c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		level.Warn(hub.logger).Log("msg", "websocket upgrade failed", "err", err)
		return
	}

	client := &Client{
		hub:        hub,
		conn:       conn,
		send:       make(chan []byte, 64),
		subscribed: make(map[string]bool),
	}
	select {
	case hub.register <- client:
	case <-hub.done:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

type subscription struct {
	Type     string `json:"type"`
	DeviceID string `json:"device_id"`
}

// readPump applies subscribe and unsubscribe messages from the client.
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(64 * 1024)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				level.Warn(c.hub.logger).Log("msg", "websocket error", "err", err)
			}
			break
		}

		var msg subscription
		if err := json.Unmarshal(message, &msg); err != nil || msg.DeviceID == "" {
			continue
		}
		switch msg.Type {
		case "subscribe":
			c.subscribe(msg.DeviceID, true)
			level.Debug(c.hub.logger).Log("msg", "client subscribed", "device", msg.DeviceID)
		case "unsubscribe":
			c.subscribe(msg.DeviceID, false)
			level.Debug(c.hub.logger).Log("msg", "client unsubscribed", "device", msg.DeviceID)
		}
	}
}

// writePump forwards queued messages and keeps the connection alive.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
