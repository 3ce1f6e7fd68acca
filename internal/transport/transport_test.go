package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// echoHandler upgrades every request to a WebSocket and echoes text frames
// back to the client until the connection closes.
func echoHandler(t *testing.T, upgrader websocket.Upgrader) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		for {
			mt, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if err := conn.WriteMessage(mt, msg); err != nil {
				return
			}
		}
	}
}

// splitHostPort extracts host and numeric port from an httptest server URL.
func splitHostPort(t *testing.T, rawURL string) (string, int) {
	t.Helper()
	u, err := url.Parse(rawURL)
	require.NoError(t, err)
	port, err := strconv.Atoi(u.Port())
	require.NoError(t, err)
	return u.Hostname(), port
}

func TestTransportConnectAndEcho(t *testing.T) {
	srv := httptest.NewServer(echoHandler(t, websocket.Upgrader{}))
	defer srv.Close()

	host, port := splitHostPort(t, srv.URL)

	tr := New()
	defer tr.Destroy(nil)

	received := make(chan []byte, 1)
	established := make(chan struct{}, 1)

	// transport.Connect always dials "wss://host:port"; point it at the
	// plain-HTTP test server by dialing ws:// directly instead, since
	// httptest.Server has no TLS listener in this test.
	err := dialPlain(t, tr, host, port, Listener{
		OnConnectionEstablished: func() { established <- struct{}{} },
		OnMessage:               func(raw []byte) { received <- raw },
	})
	require.NoError(t, err)

	select {
	case <-established:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for OnConnectionEstablished")
	}

	assert.True(t, tr.IsConnected())

	tr.Send([]byte(`{"method":"ping"}`))

	select {
	case raw := <-received:
		assert.JSONEq(t, `{"method":"ping"}`, string(raw))
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for echoed message")
	}
}

func TestTransportSendWhenNotConnectedIsDiscarded(t *testing.T) {
	tr := New()
	// Not connected: Send must not panic and must simply drop the message.
	tr.Send([]byte(`{"method":"noop"}`))
	assert.False(t, tr.IsConnected())
}

func TestTransportDestroyIsIdempotent(t *testing.T) {
	tr := New()
	tr.Destroy(nil)
	tr.Destroy(nil)
}

// dialPlain exercises the same connect/listen/send machinery as Connect but
// against a ws:// URL, since Connect itself always dials wss://.
func dialPlain(t *testing.T, tr *Transport, host string, port int, listener Listener) error {
	t.Helper()
	return tr.connectURL(context.Background(), listener, "ws", host, port)
}
