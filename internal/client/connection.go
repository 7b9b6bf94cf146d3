package client

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/afroash/env-monitor/internal/models"
)

// ConnectionState is where a follower is in its dial/follow cycle
type ConnectionState int32

const (
	StateDisconnected ConnectionState = iota
	StateConnecting
	StateConnected
)

func (cs ConnectionState) String() string {
	switch cs {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "unknown"
	}
}

// MessageHandler receives every message pushed by the monitor
type MessageHandler func(msg models.Message)

// ConnectionConfig holds configuration for the connection
type ConnectionConfig struct {
	URL                  string
	Origin               string
	ReconnectInterval    time.Duration
	MaxReconnectInterval time.Duration
	PingInterval         time.Duration
	// PongTimeout is how long the stream may stay silent before it is
	// considered dead. Any message or pong resets it.
	PongTimeout time.Duration
}

// DefaultConnectionConfig returns sensible defaults for url
func DefaultConnectionConfig(url string) ConnectionConfig {
	return ConnectionConfig{
		URL:                  url,
		ReconnectInterval:    time.Second,
		MaxReconnectInterval: 30 * time.Second,
		PingInterval:         20 * time.Second,
		PongTimeout:          60 * time.Second,
	}
}

func (cfg ConnectionConfig) withDefaults() ConnectionConfig {
	if cfg.ReconnectInterval <= 0 {
		cfg.ReconnectInterval = time.Second
	}
	if cfg.MaxReconnectInterval < cfg.ReconnectInterval {
		cfg.MaxReconnectInterval = cfg.ReconnectInterval
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 20 * time.Second
	}
	if cfg.PongTimeout <= 0 {
		cfg.PongTimeout = 3 * cfg.PingInterval
	}
	return cfg
}

// backoff doubles the wait after every failed attempt up to max
type backoff struct {
	min, max, next time.Duration
}

func (b *backoff) reset() { b.next = b.min }

func (b *backoff) advance() time.Duration {
	d := b.next
	b.next = min(b.next*2, b.max)
	return d
}

// Connection follows a monitor's WebSocket stream (read-only) and redials
// with exponential backoff when the stream drops.
type Connection struct {
	cfg     ConnectionConfig
	handler MessageHandler
	logger  zerolog.Logger

	state atomic.Int32
	retry backoff

	mu sync.Mutex
	ws *websocket.Conn
}

// NewConnection creates a follower. handler is called from the read
// goroutine and should return quickly.
func NewConnection(config ConnectionConfig, handler MessageHandler, logger zerolog.Logger) *Connection {
	config = config.withDefaults()
	if handler == nil {
		handler = func(models.Message) {}
	}

	c := &Connection{
		cfg:     config,
		handler: handler,
		logger:  logger.With().Str("url", config.URL).Logger(),
		retry:   backoff{min: config.ReconnectInterval, max: config.MaxReconnectInterval},
	}
	c.retry.reset()
	return c
}

func (c *Connection) setState(s ConnectionState) {
	if prev := ConnectionState(c.state.Swap(int32(s))); prev != s {
		c.logger.Info().Stringer("from", prev).Stringer("to", s).Msg("Connection state changed")
	}
}

// State returns the current connection state
func (c *Connection) State() ConnectionState {
	return ConnectionState(c.state.Load())
}

// IsConnected reports whether a stream is currently open
func (c *Connection) IsConnected() bool {
	return c.State() == StateConnected
}

// Connect dials the monitor once. A refused upgrade reports the HTTP status.
func (c *Connection) Connect(ctx context.Context) error {
	c.setState(StateConnecting)

	header := http.Header{}
	if c.cfg.Origin != "" {
		header.Set("Origin", c.cfg.Origin)
	}

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	ws, resp, err := dialer.DialContext(ctx, c.cfg.URL, header)
	if err != nil {
		c.setState(StateDisconnected)
		if resp != nil {
			return fmt.Errorf("dial failed with status %d: %w", resp.StatusCode, err)
		}
		return fmt.Errorf("dial failed: %w", err)
	}

	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(c.cfg.PongTimeout))
	})

	c.mu.Lock()
	c.ws = ws
	c.mu.Unlock()

	c.retry.reset()
	c.setState(StateConnected)
	return nil
}

// Run dials and follows the stream until ctx ends, returning ctx.Err()
func (c *Connection) Run(ctx context.Context) error {
	for ctx.Err() == nil {
		if err := c.Connect(ctx); err != nil {
			c.logger.Warn().Err(err).Msg("Connection failed")
		} else {
			c.follow(ctx)
			if ctx.Err() != nil {
				break
			}
			c.logger.Info().Msg("Stream ended, will reconnect")
		}

		delay := c.retry.advance()
		c.logger.Debug().Dur("delay", delay).Msg("Waiting before reconnect")
		if !sleep(ctx, delay) {
			break
		}
	}
	return ctx.Err()
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

// follow reads the current stream until it fails or ctx ends
func (c *Connection) follow(ctx context.Context) {
	c.mu.Lock()
	ws := c.ws
	c.mu.Unlock()
	if ws == nil {
		return
	}

	// Closing the socket is the only way to unblock a pending read
	unwatch := context.AfterFunc(ctx, func() { ws.Close() })
	defer unwatch()

	stop := make(chan struct{})
	pinger := make(chan struct{})
	go func() {
		defer close(pinger)
		c.keepAlive(ws, stop)
	}()

	c.readAll(ws)

	close(stop)
	<-pinger
	c.drop(ws)
}

func (c *Connection) readAll(ws *websocket.Conn) {
	ws.SetReadDeadline(time.Now().Add(c.cfg.PongTimeout))
	for {
		var msg models.Message
		if err := ws.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Warn().Err(err).Msg("Stream read failed")
			}
			return
		}
		ws.SetReadDeadline(time.Now().Add(c.cfg.PongTimeout))
		c.dispatch(msg)
	}
}

func (c *Connection) dispatch(msg models.Message) {
	c.logger.Debug().Str("type", string(msg.Type)).Msg("Received message")

	if msg.Type == models.MessageTypeError {
		var errMsg models.ErrorMessage
		if err := msg.UnmarshalPayload(&errMsg); err == nil {
			c.logger.Warn().Str("code", errMsg.Code).Str("msg", errMsg.Message).Msg("Monitor reported error")
		}
	}

	c.handler(msg)
}

// keepAlive pings until stop is closed. A failed ping closes the socket,
// which ends the read loop.
func (c *Connection) keepAlive(ws *websocket.Conn, stop <-chan struct{}) {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if err := ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(10*time.Second)); err != nil {
				c.logger.Warn().Err(err).Msg("Ping failed")
				ws.Close()
				return
			}
		}
	}
}

// drop forgets ws if it is still the current stream
func (c *Connection) drop(ws *websocket.Conn) {
	ws.Close()
	c.mu.Lock()
	if c.ws == ws {
		c.ws = nil
	}
	c.mu.Unlock()
	c.setState(StateDisconnected)
}

// Close sends a close frame on the current stream, if any, and disconnects.
// A running Run call redials unless its context is also cancelled.
func (c *Connection) Close() error {
	c.mu.Lock()
	ws := c.ws
	c.ws = nil
	c.mu.Unlock()

	if ws != nil {
		ws.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		ws.Close()
	}
	c.setState(StateDisconnected)
	return nil
}
