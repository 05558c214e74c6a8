package transport

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	ws "github.com/gorilla/websocket"

	"github.com/holoshare/relay/pkg/streaming"
)

const (
	sendChSize   = 10_000
	maxReconnect = 10
	maxBackoff   = 30 * time.Second
	writeWait    = 10 * time.Second
)

// WebsocketClient connects to a session relay server over WebSocket
// with a single write goroutine. The server fans every frame out to the
// other session members; this client only ever broadcasts.
type WebsocketClient struct {
	mu     sync.Mutex
	conn   *ws.Conn
	sendCh chan []byte
	done   chan struct{} // closed on shutdown
	closed bool

	wsURL     string
	secret    string
	localPeer uint16
	handler   Handler

	// Cached announce frame for reconnect replay, so the relay server
	// can hand our origin to peers that joined while we were away.
	cachedAnnounce []byte

	logger *slog.Logger
}

func NewWebsocketClient(rawURL, secret string, localPeer uint16) *WebsocketClient {
	return &WebsocketClient{
		sendCh:    make(chan []byte, sendChSize),
		done:      make(chan struct{}),
		wsURL:     rawURL,
		secret:    secret,
		localPeer: localPeer,
		logger:    slog.Default(),
	}
}

func (c *WebsocketClient) OnReceive(h Handler) {
	c.mu.Lock()
	c.handler = h
	c.mu.Unlock()
}

// Connect dials the relay server and starts the read/write loops.
func (c *WebsocketClient) Connect() error {
	conn, err := c.dialOnce()
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	go c.writeLoop()
	go c.readLoop()

	return nil
}

// dialOnce performs a single WebSocket dial with the secret query param.
func (c *WebsocketClient) dialOnce() (*ws.Conn, error) {
	u, err := url.Parse(c.wsURL)
	if err != nil {
		return nil, fmt.Errorf("invalid websocket URL: %w", err)
	}
	q := u.Query()
	q.Set("secret", c.secret)
	q.Set("peer", fmt.Sprintf("%d", c.localPeer))
	u.RawQuery = q.Encode()

	conn, _, err := ws.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("websocket dial failed: %w", err)
	}
	return conn, nil
}

// Broadcast marshals the envelope and pushes it to the write loop.
// Non-blocking; drops if the channel is full.
func (c *WebsocketClient) Broadcast(env streaming.Envelope) error {
	env.Sender = c.localPeer
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal %s envelope: %w", env.Type, err)
	}

	if env.Type == streaming.TypeAnnounce {
		c.mu.Lock()
		c.cachedAnnounce = data
		c.mu.Unlock()
	}

	select {
	case c.sendCh <- data:
	default:
		c.logger.Warn("WebSocket send channel full, dropping message", "type", env.Type)
	}
	return nil
}

// writeLoop drains sendCh and writes frames to the WebSocket.
// Only one writeLoop runs at a time; it returns on error or shutdown.
func (c *WebsocketClient) writeLoop() {
	for {
		select {
		case <-c.done:
			return
		case data := <-c.sendCh:
			c.mu.Lock()
			conn := c.conn
			c.mu.Unlock()

			if conn == nil {
				continue
			}

			if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.logger.Warn("WebSocket SetWriteDeadline error", "error", err)
				go c.reconnect()
				return
			}
			if err := conn.WriteMessage(ws.TextMessage, data); err != nil {
				c.logger.Warn("WebSocket write error", "error", err)
				go c.reconnect()
				return
			}
		}
	}
}

// readLoop reads peer envelopes from the server and hands them to the
// receive handler.
func (c *WebsocketClient) readLoop() {
	for {
		c.mu.Lock()
		conn := c.conn
		c.mu.Unlock()

		if conn == nil {
			return
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
				return
			default:
			}
			c.logger.Warn("WebSocket read error", "error", err)
			go c.reconnect()
			return
		}

		var env streaming.Envelope
		if err := json.Unmarshal(message, &env); err != nil {
			c.logger.Debug("Malformed frame received", "raw", string(message))
			continue
		}
		if env.Sender == c.localPeer {
			continue
		}

		c.mu.Lock()
		handler := c.handler
		c.mu.Unlock()
		if handler != nil {
			handler(env)
		}
	}
}

// reconnect attempts to re-establish the WebSocket connection with
// exponential backoff. On success it replays the cached announce frame
// and restarts the read/write loops.
func (c *WebsocketClient) reconnect() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
	c.mu.Unlock()

	backoff := time.Second
	for attempt := 1; attempt <= maxReconnect; attempt++ {
		select {
		case <-c.done:
			return
		default:
		}

		c.logger.Info("Reconnecting to WebSocket", "attempt", attempt, "backoff", backoff)
		time.Sleep(backoff)

		conn, err := c.dialOnce()
		if err != nil {
			c.logger.Warn("Reconnect dial failed", "attempt", attempt, "error", err)
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			continue
		}

		c.mu.Lock()
		c.conn = conn
		cached := c.cachedAnnounce
		c.mu.Unlock()

		// Replay the announce so peers that joined during the outage
		// can still resolve our origin.
		if cached != nil {
			if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.logger.Warn("Failed to set deadline for announce replay", "error", err)
				_ = conn.Close()
				continue
			}
			if err := conn.WriteMessage(ws.TextMessage, cached); err != nil {
				c.logger.Warn("Failed to replay announce after reconnect", "error", err)
				_ = conn.Close()
				continue
			}
		}

		c.logger.Info("WebSocket reconnected", "attempt", attempt)
		go c.writeLoop()
		go c.readLoop()
		return
	}

	c.logger.Error("WebSocket reconnect failed after max attempts", "maxAttempts", maxReconnect)
}

// Close sends a WebSocket close frame and shuts down all goroutines.
func (c *WebsocketClient) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	close(c.done)
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	if conn != nil {
		_ = conn.WriteMessage(
			ws.CloseMessage,
			ws.FormatCloseMessage(ws.CloseNormalClosure, ""),
		)
		return conn.Close()
	}
	return nil
}
