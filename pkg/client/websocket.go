package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ersinghrajkr/restified/internal/config"
	"github.com/ersinghrajkr/restified/internal/logger"
	"github.com/ersinghrajkr/restified/pkg/errkind"
)

const (
	wsWriteWait      = 10 * time.Second
	wsPongWait       = 60 * time.Second
	wsHandshakeWait  = 10 * time.Second
	wsDefaultPing    = 30 * time.Second
	wsReconnectDelay = time.Second
)

// WebSocketClient manages one connection to a WebSocket endpoint with
// keepalive pings and bounded reconnection.
type WebSocketClient struct {
	name string
	cfg  config.ClientConfig
	log  logger.Logger

	mu        sync.Mutex
	conn      *websocket.Conn
	connected bool
	pingStop  chan struct{}
}

// NewWebSocketClient builds a client for cfg.URL. Connect establishes the
// connection.
func NewWebSocketClient(name string, cfg config.ClientConfig, log logger.Logger) *WebSocketClient {
	return &WebSocketClient{name: name, cfg: cfg, log: log}
}

// Name returns the registry name of the client.
func (c *WebSocketClient) Name() string { return c.name }

// Kind returns "websocket".
func (c *WebSocketClient) Kind() string { return KindWebSocket }

// Connect dials the endpoint, retrying up to the configured reconnect
// attempts.
func (c *WebSocketClient) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.connected {
		return nil
	}

	attempts := c.cfg.ReconnectAttempts
	if attempts <= 0 {
		attempts = 1
	}
	delay := c.cfg.ReconnectDelay
	if delay <= 0 {
		delay = wsReconnectDelay
	}

	header := http.Header{}
	for k, v := range c.cfg.Headers {
		header.Set(k, v)
	}
	dialer := websocket.Dialer{HandshakeTimeout: wsHandshakeWait}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		conn, _, err := dialer.DialContext(ctx, c.cfg.URL, header)
		if err == nil {
			c.conn = conn
			c.connected = true
			c.installKeepalive()
			c.log.Info("WebSocket connected", "client", c.name, "url", c.cfg.URL)
			return nil
		}
		lastErr = err
		c.log.Warn("WebSocket dial failed",
			"client", c.name,
			"attempt", attempt,
			"error", err.Error(),
		)
		select {
		case <-ctx.Done():
			return fmt.Errorf("websocket connect: %w", errkind.ErrCancelled)
		case <-time.After(delay):
		}
	}
	return fmt.Errorf("websocket connect %s: %v: %w", c.cfg.URL, lastErr, errkind.ErrNetwork)
}

// installKeepalive starts the ping loop and the pong deadline handler.
// Callers hold c.mu.
func (c *WebSocketClient) installKeepalive() {
	conn := c.conn
	conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	interval := c.cfg.PingInterval
	if interval <= 0 {
		interval = wsDefaultPing
	}
	stop := make(chan struct{})
	c.pingStop = stop
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				c.mu.Lock()
				if !c.connected {
					c.mu.Unlock()
					return
				}
				err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait))
				c.mu.Unlock()
				if err != nil {
					c.log.Warn("WebSocket ping failed", "client", c.name, "error", err.Error())
					return
				}
			}
		}
	}()
}

// SendText writes one text frame.
func (c *WebSocketClient) SendText(message string) error {
	return c.send(websocket.TextMessage, []byte(message))
}

// SendJSON marshals value and writes it as one text frame.
func (c *WebSocketClient) SendJSON(value interface{}) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal websocket message: %w", err)
	}
	return c.send(websocket.TextMessage, raw)
}

func (c *WebSocketClient) send(messageType int, payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.connected {
		return fmt.Errorf("websocket %q not connected: %w", c.name, errkind.ErrNetwork)
	}
	c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	if err := c.conn.WriteMessage(messageType, payload); err != nil {
		return fmt.Errorf("websocket write: %v: %w", err, errkind.ErrNetwork)
	}
	return nil
}

// Receive reads one message, waiting at most timeout.
func (c *WebSocketClient) Receive(timeout time.Duration) ([]byte, error) {
	c.mu.Lock()
	conn, connected := c.conn, c.connected
	c.mu.Unlock()
	if !connected {
		return nil, fmt.Errorf("websocket %q not connected: %w", c.name, errkind.ErrNetwork)
	}

	if timeout > 0 {
		conn.SetReadDeadline(time.Now().Add(timeout))
		defer conn.SetReadDeadline(time.Now().Add(wsPongWait))
	}
	_, payload, err := conn.ReadMessage()
	if err != nil {
		if ne, ok := err.(interface{ Timeout() bool }); ok && ne.Timeout() {
			return nil, fmt.Errorf("websocket receive: %w", errkind.ErrTimeout)
		}
		return nil, fmt.Errorf("websocket receive: %v: %w", err, errkind.ErrNetwork)
	}
	return payload, nil
}

// ReceiveJSON reads one message and unmarshals it.
func (c *WebSocketClient) ReceiveJSON(timeout time.Duration, out interface{}) error {
	payload, err := c.Receive(timeout)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("unmarshal websocket message: %w", err)
	}
	return nil
}

// HealthCheck verifies the connection is up, dialing if needed.
func (c *WebSocketClient) HealthCheck(ctx context.Context) error {
	c.mu.Lock()
	connected := c.connected
	c.mu.Unlock()
	if connected {
		return nil
	}
	return c.Connect(ctx)
}

// Close sends a close frame and tears the connection down.
func (c *WebSocketClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.connected {
		return nil
	}
	c.connected = false
	if c.pingStop != nil {
		close(c.pingStop)
		c.pingStop = nil
	}

	deadline := time.Now().Add(wsWriteWait)
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
	err := c.conn.Close()
	c.conn = nil
	return err
}
