package progress

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"strategy-validation-lab/internal/domain"
)

func dial(t *testing.T, hub *Hub) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(hub)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) Event {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	var ev Event
	require.NoError(t, json.Unmarshal(msg, &ev))
	return ev
}

func TestHub_BroadcastsTrialsAndWindows(t *testing.T) {
	hub := NewHub(nil, nil)
	defer hub.Close()

	a := dial(t, hub)
	b := dial(t, hub)
	require.Eventually(t, func() bool { return hub.Clients() == 2 }, 5*time.Second, 10*time.Millisecond)

	hub.TrialCompleted(domain.TrialRecord{
		RunID:        "run-1",
		Index:        3,
		Combination:  domain.NewCombination(domain.Assignment{Path: "signal.fast", Value: 5}),
		TrainMetrics: domain.MetricSet{Sharpe: 1.2},
		TestMetrics:  domain.MetricSet{Sharpe: 0.7},
		Status:       domain.TrialSucceeded,
	})
	hub.WindowCompleted("wf-1", domain.WindowResult{
		Window: domain.WalkForwardWindow{Index: 2},
		Status: domain.WindowOmitted,
		Error:  "no bars",
	})

	for _, conn := range []*websocket.Conn{a, b} {
		ev := readEvent(t, conn)
		assert.Equal(t, EventTrial, ev.Type)
		assert.Equal(t, "run-1", ev.RunID)
		assert.Equal(t, 3, ev.Index)
		assert.Equal(t, "signal.fast=5", ev.Combination)
		assert.InDelta(t, 0.7, ev.Test, 1e-12)

		ev = readEvent(t, conn)
		assert.Equal(t, EventWindow, ev.Type)
		assert.Equal(t, "omitted", ev.Status)
		assert.Equal(t, "no bars", ev.Error)
	}
}

func TestHub_DisconnectAndClose(t *testing.T) {
	hub := NewHub(nil, nil)

	conn := dial(t, hub)
	require.Eventually(t, func() bool { return hub.Clients() == 1 }, 5*time.Second, 10*time.Millisecond)

	hub.RunFinished("run-1", "ok", nil)
	ev := readEvent(t, conn)
	assert.Equal(t, EventRun, ev.Type)

	hub.Close()
	assert.Equal(t, 0, hub.Clients())

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)
}

func TestHub_DropsSlowClient(t *testing.T) {
	hub := NewHub(&HubConfig{Buffer: 1, WriteTimeout: time.Second, PingInterval: time.Minute}, nil)
	defer hub.Close()

	// No writer drains this queue.
	c := &client{send: make(chan []byte, 1)}
	hub.clients[c] = struct{}{}

	hub.RunFinished("run-1", "ok", nil)
	assert.Equal(t, 1, hub.Clients())

	hub.RunFinished("run-2", "ok", nil)
	assert.Equal(t, 0, hub.Clients())

	_, ok := <-c.send
	assert.True(t, ok, "queued message is still delivered")
	_, ok = <-c.send
	assert.False(t, ok, "queue is closed after the drop")
}

func TestNewHub_ZeroFieldsTakeDefaults(t *testing.T) {
	def := DefaultHubConfig()

	partial := NewHub(&HubConfig{Buffer: 8}, nil)
	defer partial.Close()
	assert.Equal(t, 8, partial.config.Buffer)
	assert.Equal(t, def.WriteTimeout, partial.config.WriteTimeout)
	assert.Equal(t, def.PingInterval, partial.config.PingInterval)

	hub := NewHub(&HubConfig{}, nil)
	defer hub.Close()
	assert.Equal(t, def, hub.config)

	// A zero config still serves a client and delivers events.
	conn := dial(t, hub)
	require.Eventually(t, func() bool { return hub.Clients() == 1 }, 5*time.Second, 10*time.Millisecond)
	hub.RunFinished("run-1", "finished", nil)
	ev := readEvent(t, conn)
	assert.Equal(t, EventRun, ev.Type)
	assert.Equal(t, "run-1", ev.RunID)
	assert.Equal(t, 1, hub.Clients())
}
