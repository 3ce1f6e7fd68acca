// Package supervisor implements ConnectionSupervisor (spec.md §4.5): it
// watches the session's Transport for failure and the host's network
// reachability for recovery, and drives reconnection with exponential
// backoff. Credential replay and the live-Call Transport handoff are
// already Session's job (spec.md §4.3's deferred-login design); the
// supervisor only decides *when* to call Connect again.
//
// Grounded on thatcooperguy-nvremote's heartbeat.ConnectSignaling
// (calculateBackoff: base 1s, doubling, capped at 2m) for the retry
// shape, with golang.org/x/sync/singleflight added so a reachability
// flip and a transport failure arriving at the same moment coalesce
// into one reconnect attempt instead of two races.
package supervisor

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/patrickfdsouzapl/vertoclient/internal/session"
)

const (
	baseReconnectDelay = 1 * time.Second
	maxReconnectDelay  = 2 * time.Minute
)

// NetworkObserver reports changes in host network reachability. A
// Supervisor without one assumes the network is always reachable and
// relies solely on Transport failures to trigger reconnects.
type NetworkObserver interface {
	// Subscribe registers onChange to be called whenever reachability
	// flips, and returns a func to unsubscribe.
	Subscribe(onChange func(reachable bool)) (unsubscribe func())
}

// Supervisor owns the reconnect policy for one Session.
type Supervisor struct {
	mu        sync.Mutex
	sess      *session.Session
	observer  NetworkObserver
	unsub     func()
	reachable bool
	attempt   int
	ctx       context.Context
	group     singleflight.Group
}

// New builds a Supervisor for sess. It installs itself as sess's
// transport-failure handler immediately.
func New(sess *session.Session, observer NetworkObserver) *Supervisor {
	sv := &Supervisor{sess: sess, observer: observer, reachable: true}
	sess.SetFailureHandler(sv.onTransportFailure)
	return sv
}

// Start connects the session for the first time and begins watching for
// reachability changes. ctx governs the Supervisor's entire lifetime —
// Stop or cancelling ctx ends all retrying.
func (sv *Supervisor) Start(ctx context.Context) error {
	sv.mu.Lock()
	sv.ctx = ctx
	sv.mu.Unlock()

	if sv.observer != nil {
		sv.unsub = sv.observer.Subscribe(sv.onReachabilityChange)
	}

	return sv.sess.Connect(ctx)
}

// Stop unsubscribes from the network observer. It does not disconnect
// the session — call sess.Disconnect() for that.
func (sv *Supervisor) Stop() {
	if sv.unsub != nil {
		sv.unsub()
		sv.unsub = nil
	}
}

func (sv *Supervisor) onTransportFailure(err error) {
	slog.Warn("supervisor: transport failed, scheduling reconnect", "error", err)
	sv.triggerReconnect()
}

func (sv *Supervisor) onReachabilityChange(reachable bool) {
	sv.mu.Lock()
	was := sv.reachable
	sv.reachable = reachable
	sv.mu.Unlock()

	if reachable && !was {
		slog.Info("supervisor: network reachable again, reconnecting")
		sv.triggerReconnect()
	}
}

// triggerReconnect coalesces concurrent callers (a reachability flip and
// a transport failure arriving together) into a single retry loop via
// singleflight.
func (sv *Supervisor) triggerReconnect() {
	sv.mu.Lock()
	ctx := sv.ctx
	sv.mu.Unlock()
	if ctx == nil {
		return
	}

	go func() {
		_, _, _ = sv.group.Do("reconnect", func() (any, error) {
			sv.reconnectLoop(ctx)
			return nil, nil
		})
	}()
}

// reconnectLoop retries sess.Connect with exponential backoff until it
// succeeds, the context is cancelled, or reachability drops again (in
// which case the loop stops and waits for the next reachable-again
// signal instead of spinning against a network it knows is down).
func (sv *Supervisor) reconnectLoop(ctx context.Context) {
	attempt := 0
	for {
		if ctx.Err() != nil {
			return
		}

		sv.mu.Lock()
		reachable := sv.reachable
		sv.mu.Unlock()
		if !reachable {
			return
		}

		err := sv.sess.Connect(ctx)
		if err == nil {
			sv.mu.Lock()
			sv.attempt = 0
			sv.mu.Unlock()
			return
		}
		slog.Warn("supervisor: reconnect attempt failed", "attempt", attempt, "error", err)

		delay := calculateBackoff(attempt)
		attempt++

		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
	}
}

// calculateBackoff returns an exponential backoff duration capped at
// maxReconnectDelay.
func calculateBackoff(attempt int) time.Duration {
	if attempt <= 0 {
		return baseReconnectDelay
	}
	delay := time.Duration(math.Pow(2, float64(attempt))) * baseReconnectDelay
	if delay > maxReconnectDelay {
		delay = maxReconnectDelay
	}
	return delay
}
