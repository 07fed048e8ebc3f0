package wsfanout

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stockline/backoffice/pkg/enums"
)

type wireMessage struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) wireMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg wireMessage
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func waitForClients(t *testing.T, hub *Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for hub.Clients() != n {
		if time.Now().After(deadline) {
			t.Fatalf("expected %d clients, have %d", n, hub.Clients())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestHubSendsResyncThenBroadcasts(t *testing.T) {
	hub := NewHub(Options{Resync: func(context.Context) ([]Message, error) {
		return []Message{{Event: enums.BroadcastAlertsSnapshot, Data: []string{}}}, nil
	}})
	srv := httptest.NewServer(hub)
	defer srv.Close()
	defer hub.Close()

	conn := dial(t, srv)
	first := readMessage(t, conn)
	assert.Equal(t, "alerts_snapshot", first.Event)

	waitForClients(t, hub, 1)
	delivered := hub.Broadcast(enums.BroadcastNewAlert, map[string]string{"type": "critical", "message": "X"})
	assert.Equal(t, 1, delivered)

	got := readMessage(t, conn)
	assert.Equal(t, "new_alert", got.Event)
	assert.JSONEq(t, `{"type":"critical","message":"X"}`, string(got.Data))
}

func TestHubBroadcastWithoutClients(t *testing.T) {
	hub := NewHub(Options{})
	assert.Zero(t, hub.Broadcast(enums.BroadcastClearAlerts, nil))
}

func TestHubDropsSlowClient(t *testing.T) {
	hub := NewHub(Options{BufferSize: 1})
	c := &client{send: make(chan []byte, 1)}
	hub.clients[c] = struct{}{}

	assert.Equal(t, 1, hub.Broadcast(enums.BroadcastNewAlert, 1))
	assert.Equal(t, 0, hub.Broadcast(enums.BroadcastNewAlert, 2))
	assert.Equal(t, 0, hub.Clients())
	assert.Equal(t, 0, hub.Broadcast(enums.BroadcastNewAlert, 3))
}

func TestBroadcastDuringResyncArrivesAfterSnapshot(t *testing.T) {
	computing := make(chan struct{})
	release := make(chan struct{})
	hub := NewHub(Options{Resync: func(context.Context) ([]Message, error) {
		close(computing)
		<-release
		return []Message{{Event: enums.BroadcastSalesOverview, Data: map[string]int{"orders": 1}}}, nil
	}})
	srv := httptest.NewServer(hub)
	defer srv.Close()
	defer hub.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	dialed := make(chan *websocket.Conn, 1)
	go func() {
		conn, _, err := websocket.DefaultDialer.Dial(url, nil)
		if err != nil {
			dialed <- nil
			return
		}
		dialed <- conn
	}()

	select {
	case <-computing:
	case <-time.After(2 * time.Second):
		t.Fatal("resync never started")
	}
	assert.Equal(t, 1, hub.Broadcast(enums.BroadcastSalesOverview, map[string]int{"orders": 2}))
	close(release)

	conn := <-dialed
	require.NotNil(t, conn)
	t.Cleanup(func() { _ = conn.Close() })

	first := readMessage(t, conn)
	assert.JSONEq(t, `{"orders":1}`, string(first.Data))
	second := readMessage(t, conn)
	assert.JSONEq(t, `{"orders":2}`, string(second.Data))
}

func TestHubDropsClientWhoseBacklogOverflows(t *testing.T) {
	hub := NewHub(Options{BufferSize: 1})
	c := &client{send: make(chan []byte, 1), syncing: true}
	hub.clients[c] = struct{}{}

	assert.Equal(t, 1, hub.Broadcast(enums.BroadcastNewAlert, 1))
	assert.Equal(t, 0, hub.Broadcast(enums.BroadcastNewAlert, 2))
	assert.Equal(t, 0, hub.Clients())
	assert.Equal(t, offerClosed, c.synced())
}

func TestEnqueueOnRemovedClientIsRejected(t *testing.T) {
	hub := NewHub(Options{})
	c := &client{send: make(chan []byte, 4)}
	hub.clients[c] = struct{}{}
	hub.remove(c)
	hub.remove(c)

	assert.False(t, hub.enqueue(c, []byte(`{}`), false))
	assert.False(t, hub.enqueue(c, []byte(`{}`), true))
	_, open := <-c.send
	assert.False(t, open)
}

func TestHubRemovesClientOnDisconnect(t *testing.T) {
	hub := NewHub(Options{})
	srv := httptest.NewServer(hub)
	defer srv.Close()

	conn := dial(t, srv)
	waitForClients(t, hub, 1)
	require.NoError(t, conn.Close())
	waitForClients(t, hub, 0)
}

func TestOriginChecker(t *testing.T) {
	check := originChecker([]string{"http://dash.local"})
	req := httptest.NewRequest("GET", "/ws", nil)
	assert.True(t, check(req))
	req.Header.Set("Origin", "http://dash.local")
	assert.True(t, check(req))
	req.Header.Set("Origin", "http://evil.local")
	assert.False(t, check(req))
}
