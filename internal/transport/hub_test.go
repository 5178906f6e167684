package transport

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type received struct {
	ConnID string
	Event  string
	Data   json.RawMessage
}

type recordingHandler struct {
	connects    chan string
	events      chan received
	disconnects chan string
}

func newRecordingHandler() *recordingHandler {
	return &recordingHandler{
		connects:    make(chan string, 8),
		events:      make(chan received, 8),
		disconnects: make(chan string, 8),
	}
}

func (h *recordingHandler) HandleConnect(connID string) { h.connects <- connID }

func (h *recordingHandler) HandleEvent(connID, name string, data json.RawMessage) {
	h.events <- received{ConnID: connID, Event: name, Data: data}
}

func (h *recordingHandler) HandleDisconnect(connID, reason string) { h.disconnects <- connID }

func waitFor[T any](t *testing.T, ch <-chan T, what string) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for %s", what)
		panic("unreachable")
	}
}

func startHub(t *testing.T, opts Options) (*Hub, *recordingHandler, string) {
	t.Helper()
	handler := newRecordingHandler()
	hub := NewHub(handler, opts, zaptest.NewLogger(t))
	srv := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	t.Cleanup(func() {
		hub.Close()
		srv.Close()
	})
	return hub, handler, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { ws.Close() })
	return ws
}

func TestConnectAssignsIDAndNotifiesHandler(t *testing.T) {
	hub, handler, url := startHub(t, Options{})

	dial(t, url)
	connID := waitFor(t, handler.connects, "connect")
	assert.NotEmpty(t, connID)
	assert.Equal(t, 1, hub.ConnectionCount())
}

func TestInboundEventsArriveInOrder(t *testing.T) {
	_, handler, url := startHub(t, Options{})
	ws := dial(t, url)
	connID := waitFor(t, handler.connects, "connect")

	require.NoError(t, ws.WriteJSON(map[string]any{"event": "first", "data": map[string]int{"n": 1}}))
	require.NoError(t, ws.WriteJSON(map[string]any{"event": "second", "data": map[string]int{"n": 2}}))

	ev1 := waitFor(t, handler.events, "first event")
	ev2 := waitFor(t, handler.events, "second event")
	assert.Equal(t, connID, ev1.ConnID)
	assert.Equal(t, "first", ev1.Event)
	assert.Equal(t, "second", ev2.Event)
}

func TestUndecodableFrameIsDroppedNotFatal(t *testing.T) {
	_, handler, url := startHub(t, Options{})
	ws := dial(t, url)
	waitFor(t, handler.connects, "connect")

	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte("{not json")))
	require.NoError(t, ws.WriteJSON(map[string]any{"event": "after", "data": nil}))

	ev := waitFor(t, handler.events, "event after bad frame")
	assert.Equal(t, "after", ev.Event)
}

func TestSendDeliversEnvelope(t *testing.T) {
	hub, handler, url := startHub(t, Options{})
	ws := dial(t, url)
	connID := waitFor(t, handler.connects, "connect")

	hub.Send(connID, "greeting", map[string]string{"hello": "world"})

	var env Envelope
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, ws.ReadJSON(&env))
	assert.Equal(t, "greeting", env.Event)
	assert.JSONEq(t, `{"hello":"world"}`, string(env.Data))
}

func TestSendToUnknownConnectionIsNoop(t *testing.T) {
	hub, _, _ := startHub(t, Options{})
	hub.Send("ghost", "greeting", nil)
}

func TestBroadcastReachesAllConnections(t *testing.T) {
	hub, handler, url := startHub(t, Options{})
	ws1 := dial(t, url)
	ws2 := dial(t, url)
	waitFor(t, handler.connects, "first connect")
	waitFor(t, handler.connects, "second connect")

	hub.Broadcast("announce", map[string]int{"n": 7})

	for _, ws := range []*websocket.Conn{ws1, ws2} {
		var env Envelope
		require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
		require.NoError(t, ws.ReadJSON(&env))
		assert.Equal(t, "announce", env.Event)
	}
}

func TestClientCloseTriggersDisconnect(t *testing.T) {
	hub, handler, url := startHub(t, Options{})
	ws := dial(t, url)
	connID := waitFor(t, handler.connects, "connect")

	_ = ws.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	_ = ws.Close()

	gone := waitFor(t, handler.disconnects, "disconnect")
	assert.Equal(t, connID, gone)

	deadline := time.After(2 * time.Second)
	for hub.ConnectionCount() != 0 {
		select {
		case <-deadline:
			t.Fatal("connection was not unregistered")
		default:
			time.Sleep(5 * time.Millisecond)
		}
	}
}

func TestOriginCheckRejectsUnlistedOrigin(t *testing.T) {
	_, _, url := startHub(t, Options{AllowedOrigins: []string{"http://allowed.test"}})

	header := http.Header{"Origin": []string{"http://evil.test"}}
	_, resp, err := websocket.DefaultDialer.Dial(url, header)
	require.Error(t, err)
	if resp != nil {
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	}

	header = http.Header{"Origin": []string{"http://allowed.test"}}
	ws, _, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	_ = ws.Close()
}
