// Package progress streams trial and window completions to WebSocket clients.
package progress

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"strategy-validation-lab/internal/domain"
	"strategy-validation-lab/internal/search"
	"strategy-validation-lab/internal/walkforward"
)

// Event types.
const (
	EventTrial  = "trial"
	EventWindow = "window"
	EventRun    = "run"
)

// Event is one progress message, encoded as JSON. Trials carry train and
// test Sharpe; windows carry the run objective.
type Event struct {
	Type        string  `json:"type"`
	RunID       string  `json:"run_id"`
	Index       int     `json:"index"`
	Status      string  `json:"status"`
	Combination string  `json:"combination,omitempty"`
	Train       float64 `json:"train"`
	Test        float64 `json:"test"`
	Error       string  `json:"error,omitempty"`
}

// HubConfig configures Hub behavior.
type HubConfig struct {
	// Buffer is the per-client queue length. A client whose queue is full is dropped.
	Buffer int
	// WriteTimeout is timeout for writing messages.
	WriteTimeout time.Duration
	// PingInterval is interval for sending ping frames.
	PingInterval time.Duration
}

// DefaultHubConfig returns default hub configuration.
func DefaultHubConfig() HubConfig {
	return HubConfig{
		Buffer:       256,
		WriteTimeout: 10 * time.Second,
		PingInterval: 30 * time.Second,
	}
}

// Hub fans events out to connected clients. Publishing never blocks on a client.
type Hub struct {
	config   HubConfig
	logger   *zap.Logger
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*client]struct{}
	closed  bool
}

type client struct {
	conn *websocket.Conn
	send chan []byte
	once sync.Once
}

func (c *client) close() {
	c.once.Do(func() { close(c.send) })
}

// NewHub creates a hub. A nil config, or any non-positive field, takes the
// value from DefaultHubConfig.
func NewHub(config *HubConfig, logger *zap.Logger) *Hub {
	cfg := DefaultHubConfig()
	if config != nil {
		if config.Buffer > 0 {
			cfg.Buffer = config.Buffer
		}
		if config.WriteTimeout > 0 {
			cfg.WriteTimeout = config.WriteTimeout
		}
		if config.PingInterval > 0 {
			cfg.PingInterval = config.PingInterval
		}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		config: cfg,
		logger: logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
		clients: make(map[*client]struct{}),
	}
}

// ServeHTTP upgrades the request and registers the connection.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	c := &client{conn: conn, send: make(chan []byte, h.config.Buffer)}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.Close()
		return
	}
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	go h.writeLoop(c)
	go h.readLoop(c)
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Publish queues ev for every client.
func (h *Hub) Publish(ev Event) {
	msg, err := json.Marshal(ev)
	if err != nil {
		h.logger.Error("encode progress event", zap.Error(err))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			h.logger.Warn("dropping slow progress client", zap.String("run_id", ev.RunID))
			delete(h.clients, c)
			c.close()
		}
	}
}

// TrialCompleted publishes one trial record.
func (h *Hub) TrialCompleted(rec domain.TrialRecord) {
	h.Publish(Event{
		Type:        EventTrial,
		RunID:       rec.RunID,
		Index:       rec.Index,
		Status:      string(rec.Status),
		Combination: rec.Combination.Key(),
		Train:       rec.TrainMetrics.Sharpe,
		Test:        rec.TestMetrics.Sharpe,
		Error:       rec.Error,
	})
}

// WindowCompleted publishes one walk-forward window.
func (h *Hub) WindowCompleted(runID string, w domain.WindowResult) {
	h.Publish(Event{
		Type:        EventWindow,
		RunID:       runID,
		Index:       w.Window.Index,
		Status:      string(w.Status),
		Combination: w.Combination.Key(),
		Train:       w.TrainMetric,
		Test:        w.TestMetric,
		Error:       w.Error,
	})
}

// RunFinished publishes the end of a run.
func (h *Hub) RunFinished(runID, status string, err error) {
	ev := Event{Type: EventRun, RunID: runID, Status: status}
	if err != nil {
		ev.Error = err.Error()
	}
	h.Publish(ev)
}

// Close disconnects every client. Later connections are refused.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for c := range h.clients {
		delete(h.clients, c)
		c.close()
	}
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		c.close()
	}
}

// writeLoop drains the client queue and keeps the connection alive.
func (h *Hub) writeLoop(c *client) {
	ticker := time.NewTicker(h.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(h.config.WriteTimeout))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				h.remove(c)
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(h.config.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.remove(c)
				return
			}
		}
	}
}

// readLoop discards client messages and detects disconnects.
func (h *Hub) readLoop(c *client) {
	defer h.remove(c)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

var (
	_ search.Observer      = (*Hub)(nil)
	_ walkforward.Observer = (*Hub)(nil)
)
