// Package transport implements the WebSocket framing contract from spec.md
// §4.1: open a TLS WebSocket, hand every inbound text frame to a listener
// verbatim, serialize outgoing bodies to JSON text frames, and never
// reconnect on its own — that is the supervisor's job (spec.md §4.5, §9).
//
// Grounded on thatcooperguy-nvremote's heartbeat/websocket.go
// (runSignalingSession): a gorilla/websocket.Dialer with a handshake
// timeout, a blocking read loop run on its own goroutine, and a ping
// goroutine that keeps NATs and proxies from idling the socket out. The
// Engine.IO/Socket.IO packet framing that teacher spoke is specific to its
// NestJS control plane and has no equivalent in the Verto JSON-RPC dialect,
// so it is dropped; the envelope itself is decoded by internal/codec.
package transport

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	handshakeTimeout = 15 * time.Second
	writeTimeout     = 10 * time.Second
	pongWait         = 60 * time.Second
	pingInterval     = 30 * time.Second
)

// Listener receives Transport lifecycle notifications. It is a struct of
// callbacks (design note §9: no fat interface hierarchy), not an interface.
type Listener struct {
	// OnConnectionEstablished fires once after the socket opens.
	OnConnectionEstablished func()

	// OnMessage fires once per inbound text frame, verbatim.
	OnMessage func(raw []byte)

	// OnErrorReceived fires at most once per Transport lifetime, when the
	// socket closes with an error (spec.md §4.1's failure semantics).
	OnErrorReceived func(err error)
}

// Transport owns exactly one WebSocket connection's lifetime. After Destroy,
// the instance must not be reused — Connect again allocates a fresh one.
type Transport struct {
	mu        sync.Mutex
	conn      *websocket.Conn
	listener  Listener
	connected bool
	destroyed bool
	cancel    context.CancelFunc
	errOnce   sync.Once
}

// New creates an unconnected Transport.
func New() *Transport {
	return &Transport{}
}

// Connect dials host:port over TLS and starts the read and ping loops. It
// returns once the socket is open, after firing OnConnectionEstablished.
func (t *Transport) Connect(ctx context.Context, listener Listener, host string, port int) error {
	return t.connectURL(ctx, listener, "wss", host, port)
}

// connectURL is Connect parameterized over scheme, so tests can dial a
// plain ws:// httptest server instead of standing up TLS.
func (t *Transport) connectURL(ctx context.Context, listener Listener, scheme, host string, port int) error {
	t.mu.Lock()
	if t.destroyed {
		t.mu.Unlock()
		return fmt.Errorf("transport: Connect called on a destroyed instance")
	}
	t.listener = listener
	t.mu.Unlock()

	url := fmt.Sprintf("%s://%s:%d", scheme, host, port)

	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, url, http.Header{})
	if err != nil {
		return fmt.Errorf("transport: dial %s: %w", url, err)
	}

	runCtx, cancel := context.WithCancel(ctx)

	t.mu.Lock()
	t.conn = conn
	t.connected = true
	t.cancel = cancel
	t.mu.Unlock()

	go t.readLoop(runCtx)
	go t.pingLoop(runCtx)

	if listener.OnConnectionEstablished != nil {
		listener.OnConnectionEstablished()
	}

	return nil
}

// ConnectInsecure dials a plain ws:// endpoint instead of wss://. It
// exists so other packages' tests can drive a Transport against a local
// httptest server, which has no TLS listener; production callers always
// use Connect.
func (t *Transport) ConnectInsecure(ctx context.Context, listener Listener, host string, port int) error {
	return t.connectURL(ctx, listener, "ws", host, port)
}

// IsConnected reports whether the socket is currently open.
func (t *Transport) IsConnected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.connected
}

// IsDestroyed reports whether Destroy has already run on this instance.
func (t *Transport) IsDestroyed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.destroyed
}

// Send writes the already-encoded body as a text frame. If the socket
// is not open the send is discarded and logged — spec.md §4.1: "no queuing,
// no backpressure in the core."
func (t *Transport) Send(body []byte) {
	t.mu.Lock()
	conn := t.conn
	connected := t.connected
	t.mu.Unlock()

	if !connected || conn == nil {
		slog.Warn("transport: dropping send, socket not connected")
		return
	}

	if err := conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		slog.Warn("transport: setting write deadline", "error", err)
		return
	}
	if err := conn.WriteMessage(websocket.TextMessage, body); err != nil {
		slog.Warn("transport: write failed", "error", err)
	}
}

// Destroy closes the socket, cancels the read/ping loops, and clears flags.
// The Transport must not be reused afterward.
func (t *Transport) Destroy(reason error) {
	t.mu.Lock()
	if t.destroyed {
		t.mu.Unlock()
		return
	}
	t.destroyed = true
	t.connected = false
	conn := t.conn
	cancel := t.cancel
	t.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if conn != nil {
		_ = conn.Close()
	}

	slog.Debug("transport: destroyed", "reason", reason)
}

func (t *Transport) readLoop(ctx context.Context) {
	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
			t.fail(fmt.Errorf("transport: setting read deadline: %w", err))
			return
		}

		_, raw, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			t.fail(fmt.Errorf("transport: read failed: %w", err))
			return
		}

		t.mu.Lock()
		listener := t.listener
		t.mu.Unlock()
		if listener.OnMessage != nil {
			listener.OnMessage(raw)
		}
	}
}

func (t *Transport) pingLoop(ctx context.Context) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.mu.Lock()
			conn := t.conn
			connected := t.connected
			t.mu.Unlock()
			if !connected || conn == nil {
				return
			}
			if err := conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
				return
			}
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				t.fail(fmt.Errorf("transport: ping failed: %w", err))
				return
			}
		}
	}
}

// fail marks the transport disconnected and notifies the listener's
// OnErrorReceived exactly once, per spec.md §4.1.
func (t *Transport) fail(err error) {
	t.mu.Lock()
	t.connected = false
	listener := t.listener
	t.mu.Unlock()

	t.errOnce.Do(func() {
		if listener.OnErrorReceived != nil {
			listener.OnErrorReceived(err)
		}
	})
}
