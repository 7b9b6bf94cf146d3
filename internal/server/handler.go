package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/afroash/env-monitor/internal/models"
	"github.com/afroash/env-monitor/internal/monitor"
)

// Constants for WebSocket timeouts
const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	clientSendSize = 32
	outcomeBuffer  = 64
)

// Hub pushes sample outcomes and refreshed metrics to dashboard clients
// over WebSocket. Slow clients lose messages rather than stall sampling.
type Hub struct {
	upgrader       websocket.Upgrader
	metrics        MetricsSource
	logger         zerolog.Logger
	allowedOrigins []string

	clients map[string]*Client
	mutex   sync.RWMutex

	outcomes chan models.SampleOutcome
	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// Client represents an active dashboard connection
type Client struct {
	ID          string    `json:"id"`
	RemoteAddr  string    `json:"remote_addr"`
	ConnectedAt time.Time `json:"connected_at"`

	conn *websocket.Conn
	send chan []byte
}

// NewHub creates a hub and starts its broadcast loop. metrics may be nil,
// in which case only outcomes are pushed.
func NewHub(metrics MetricsSource, logger zerolog.Logger, allowedOrigins ...string) *Hub {
	h := &Hub{
		metrics:        metrics,
		logger:         logger,
		allowedOrigins: allowedOrigins,
		clients:        make(map[string]*Client),
		outcomes:       make(chan models.SampleOutcome, outcomeBuffer),
		stopChan:       make(chan struct{}),
	}

	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}

	h.wg.Add(1)
	go h.run()

	return h
}

// checkOrigin validates the incoming request's Origin against the configured allowlist
func (h *Hub) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	// No Origin header means same-origin request
	if origin == "" {
		return true
	}

	for _, allowed := range h.allowedOrigins {
		if origin == allowed {
			return true
		}
	}

	h.logger.Warn().Str("origin", origin).Msg("Rejected WebSocket connection: origin not in allowlist")
	return false
}

// ServeHTTP upgrades the request and streams messages until the client leaves
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to upgrade connection")
		return
	}

	client := &Client{
		ID:          uuid.NewString(),
		RemoteAddr:  conn.RemoteAddr().String(),
		ConnectedAt: time.Now(),
		conn:        conn,
		send:        make(chan []byte, clientSendSize),
	}

	if !h.register(client) {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(writeWait))
		conn.Close()
		return
	}

	go h.writePump(client)
	h.readPump(client)
}

// register adds a client unless the hub is stopping
func (h *Hub) register(c *Client) bool {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	select {
	case <-h.stopChan:
		return false
	default:
	}

	h.clients[c.ID] = c
	h.logger.Info().Str("client_id", c.ID).Str("remote_addr", c.RemoteAddr).Msg("Dashboard connected")
	return true
}

// unregister removes a client and closes its send channel exactly once
func (h *Hub) unregister(c *Client) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if _, ok := h.clients[c.ID]; !ok {
		return
	}
	delete(h.clients, c.ID)
	close(c.send)
	h.logger.Info().Str("client_id", c.ID).Msg("Dashboard disconnected")
}

// readPump drains the connection so pongs and close frames are processed.
// Dashboards do not send commands over the socket.
func (h *Hub) readPump(c *Client) {
	defer func() {
		h.unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Warn().Err(err).Str("client_id", c.ID).Msg("WebSocket error")
			}
			return
		}
	}
}

// writePump is the only writer for a connection
func (h *Hub) writePump(c *Client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				h.logger.Warn().Err(err).Str("client_id", c.ID).Msg("Failed to write message")
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

// Publish queues an outcome for broadcast. It never blocks; it is safe to
// call from a session observer.
func (h *Hub) Publish(outcome models.SampleOutcome) {
	select {
	case h.outcomes <- outcome:
	default:
		h.logger.Warn().Msg("Outcome queue full, dropping broadcast")
	}
}

// BroadcastLimits pushes the current thresholds to every client
func (h *Hub) BroadcastLimits(limits models.Limits) {
	h.broadcast(models.MessageTypeLimits, limits)
}

// run forwards queued outcomes, each followed by a metrics refresh
func (h *Hub) run() {
	defer h.wg.Done()

	for {
		select {
		case <-h.stopChan:
			return
		case outcome := <-h.outcomes:
			h.broadcast(models.MessageTypeOutcome, outcome)
			h.pushMetrics()
		}
	}
}

func (h *Hub) pushMetrics() {
	if h.metrics == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), writeWait)
	defer cancel()

	m, err := h.metrics.ComputeMetrics(ctx)
	switch {
	case err == nil:
		h.broadcast(models.MessageTypeMetrics, m)
	case errors.Is(err, monitor.ErrEmptyHistory):
		h.broadcast(models.MessageTypeError, models.ErrorMessage{Code: CodeEmptyHistory, Message: err.Error()})
	default:
		h.logger.Error().Err(err).Msg("Failed to compute metrics for broadcast")
		h.broadcast(models.MessageTypeError, models.ErrorMessage{Code: CodeStorageError, Message: err.Error()})
	}
}

// broadcast encodes one message and offers it to every client
func (h *Hub) broadcast(msgType models.MessageType, payload interface{}) {
	msg, err := models.NewMessage(msgType, payload)
	if err != nil {
		h.logger.Error().Err(err).Str("type", string(msgType)).Msg("Failed to create message")
		return
	}
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to encode message")
		return
	}

	h.mutex.RLock()
	defer h.mutex.RUnlock()

	for id, c := range h.clients {
		select {
		case c.send <- data:
		default:
			h.logger.Warn().Str("client_id", id).Str("type", string(msgType)).Msg("Client too slow, message dropped")
		}
	}
}

// Clients returns a snapshot of connected dashboards
func (h *Hub) Clients() []Client {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	clients := make([]Client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, Client{ID: c.ID, RemoteAddr: c.RemoteAddr, ConnectedAt: c.ConnectedAt})
	}
	return clients
}

// Stop disconnects every client and ends the broadcast loop
func (h *Hub) Stop() {
	h.stopOnce.Do(func() {
		h.mutex.Lock()
		close(h.stopChan)
		for id, c := range h.clients {
			delete(h.clients, id)
			close(c.send)
		}
		h.mutex.Unlock()

		h.wg.Wait()
		h.logger.Info().Msg("WebSocket hub stopped")
	})
}
