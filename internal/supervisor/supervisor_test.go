package supervisor

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/patrickfdsouzapl/vertoclient/internal/config"
	"github.com/patrickfdsouzapl/vertoclient/internal/session"
)

// countingListener counts every accepted TCP connection, regardless of
// whether the protocol layered on top of it (here, a TLS ClientHello a
// plain HTTP server can't parse) ever completes.
type countingListener struct {
	net.Listener
	count *atomic.Int32
}

func (l countingListener) Accept() (net.Conn, error) {
	conn, err := l.Listener.Accept()
	if err == nil {
		l.count.Add(1)
	}
	return conn, err
}

func TestCalculateBackoffCapsAtMax(t *testing.T) {
	assert.Equal(t, baseReconnectDelay, calculateBackoff(0))
	assert.Less(t, calculateBackoff(1), calculateBackoff(2))
	assert.Equal(t, maxReconnectDelay, calculateBackoff(30))
}

// fakeObserver is a NetworkObserver a test can flip by hand.
type fakeObserver struct {
	mu sync.Mutex
	cb func(bool)
}

func (f *fakeObserver) Subscribe(onChange func(bool)) func() {
	f.mu.Lock()
	f.cb = onChange
	f.mu.Unlock()
	return func() {
		f.mu.Lock()
		f.cb = nil
		f.mu.Unlock()
	}
}

func (f *fakeObserver) flip(reachable bool) {
	f.mu.Lock()
	cb := f.cb
	f.mu.Unlock()
	if cb != nil {
		cb(reachable)
	}
}

// Supervisor.Start dials over wss:// only, so this test drives the
// reconnect loop directly against an unreachable host and confirms that,
// once the observer reports the network down, the loop returns instead
// of retrying (the underlying dial itself is exercised end-to-end by
// internal/session's tests).
func TestReconnectLoopStopsWhenUnreachable(t *testing.T) {
	sess := session.New(session.Options{
		ServerConfig: config.TxServerConfiguration{Host: "127.0.0.1", Port: 1},
	})
	observer := &fakeObserver{}
	sv := New(sess, observer)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sv.mu.Lock()
	sv.ctx = ctx
	sv.mu.Unlock()

	observer.flip(false)
	sv.mu.Lock()
	reachable := sv.reachable
	sv.mu.Unlock()
	assert.False(t, reachable)

	// With reachable=false, triggering a reconnect must return immediately
	// rather than spin.
	done := make(chan struct{})
	go func() {
		sv.reconnectLoop(ctx)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("reconnectLoop did not return promptly when unreachable")
	}
}

func TestOnTransportFailureTriggersReconnect(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	var connectCount atomic.Int32
	srv := httptest.NewUnstartedServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Listener = countingListener{Listener: ln, count: &connectCount}
	srv.Start()
	defer srv.Close()

	addr := ln.Addr().(*net.TCPAddr)

	sess := session.New(session.Options{
		ServerConfig: config.TxServerConfiguration{Host: addr.IP.String(), Port: addr.Port},
	})
	sv := New(sess, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sv.mu.Lock()
	sv.ctx = ctx
	sv.mu.Unlock()

	sv.onTransportFailure(assert.AnError)

	require.Eventually(t, func() bool {
		return connectCount.Load() >= 1
	}, time.Second, 10*time.Millisecond)
}
