// internal/server/handlers/websocket.go

package handlers

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"tweetpulse/internal/logging"
)

// EventSource delivers raw result events until the returned function is called
type EventSource interface {
	Subscribe(fn func(data []byte)) (func(), error)
}

// WebSocketConfig contains configuration for WebSocket connections
type WebSocketConfig struct {
	// Time allowed to write a message to the peer
	WriteWait time.Duration

	// Time allowed to read the next pong message from the peer
	PongWait time.Duration

	// Send pings to peer with this period
	PingPeriod time.Duration

	// Maximum message size allowed from peer
	MaxMessageSize int64

	// Messages buffered per client before new ones are dropped
	SendBuffer int
}

// DefaultWebSocketConfig returns the default WebSocket configuration
func DefaultWebSocketConfig() WebSocketConfig {
	return WebSocketConfig{
		WriteWait:      10 * time.Second,
		PongWait:       60 * time.Second,
		PingPeriod:     (60 * time.Second * 9) / 10,
		MaxMessageSize: 4096,
		SendBuffer:     256,
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The feed is read-only and public, like the dashboard page itself
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// feedClient is one connected websocket reader of the live feed
type feedClient struct {
	conn        *websocket.Conn
	config      WebSocketConfig
	send        chan []byte
	done        chan struct{}
	once        sync.Once
	unsubscribe func()
	logger      logging.Logger
}

// SentimentFeedHandler streams result events to websocket clients
func SentimentFeedHandler(source EventSource, config WebSocketConfig, logger logging.Logger) http.HandlerFunc {
	if config.PingPeriod <= 0 || config.SendBuffer <= 0 {
		config = DefaultWebSocketConfig()
	}

	return func(w http.ResponseWriter, r *http.Request) {
		// Upgrade HTTP connection to WebSocket
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.WithError(err).Warn("Failed to upgrade to WebSocket")
			return
		}

		client := &feedClient{
			conn:   conn,
			config: config,
			send:   make(chan []byte, config.SendBuffer),
			done:   make(chan struct{}),
			logger: logger,
		}

		// Subscribe to result events
		unsubscribe, err := source.Subscribe(client.enqueue)
		if err != nil {
			logger.WithError(err).Error("Failed to subscribe to result events")
			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "feed unavailable"))
			_ = conn.Close()
			return
		}
		client.unsubscribe = unsubscribe

		// Send welcome message
		welcome, _ := json.Marshal(map[string]interface{}{
			"type": "welcome",
			"time": time.Now(),
		})
		client.enqueue(welcome)

		go client.writePump()
		go client.readPump()

		logger.WithField("remote_addr", r.RemoteAddr).Debug("Live feed client connected")
	}
}

// enqueue hands a message to the write pump, dropping it when the client is slow
func (c *feedClient) enqueue(data []byte) {
	select {
	case <-c.done:
	case c.send <- data:
	default:
		c.logger.Debug("Live feed client too slow, dropping message")
	}
}

// readPump discards client messages and notices disconnects
func (c *feedClient) readPump() {
	defer c.close()

	c.conn.SetReadLimit(c.config.MaxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(c.config.PongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.config.PongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.WithError(err).Debug("WebSocket error")
			}
			return
		}
	}
}

// writePump pumps queued events to the WebSocket connection
func (c *feedClient) writePump() {
	ticker := time.NewTicker(c.config.PingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case <-c.done:
			return

		case message := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// close unsubscribes and closes the connection once
func (c *feedClient) close() {
	c.once.Do(func() {
		close(c.done)
		if c.unsubscribe != nil {
			c.unsubscribe()
		}
		_ = c.conn.Close()
		c.logger.Debug("Live feed client disconnected")
	})
}
