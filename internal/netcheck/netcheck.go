// Package netcheck provides the network-reachability primitives
// SignalingSession and ConnectionSupervisor consult: a synchronous probe
// (session.NetworkChecker) and a polling observer
// (supervisor.NetworkObserver). Neither the teacher nor any other
// example repo ships an OS-level reachability poller to ground this on,
// so it is built directly on net.DialTimeout — the same primitive a
// reachability check would reduce to in any of them.
package netcheck

import (
	"net"
	"sync"
	"time"
)

const defaultProbeTimeout = 3 * time.Second

// Probe reports whether probeAddr (host:port of some well-known, always-up
// endpoint — typically the signaling server itself) is currently
// reachable over TCP.
func Probe(probeAddr string) bool {
	conn, err := net.DialTimeout("tcp", probeAddr, defaultProbeTimeout)
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}

// Poller periodically probes an address and notifies subscribers when
// reachability flips, implementing supervisor.NetworkObserver.
type Poller struct {
	mu        sync.Mutex
	probeAddr string
	interval  time.Duration
	last      bool
	subs      map[int]func(bool)
	nextID    int
	stop      chan struct{}
	started   bool
}

// NewPoller builds a Poller that checks probeAddr on every tick.
func NewPoller(probeAddr string, interval time.Duration) *Poller {
	return &Poller{
		probeAddr: probeAddr,
		interval:  interval,
		subs:      make(map[int]func(bool)),
		stop:      make(chan struct{}),
	}
}

// Subscribe implements supervisor.NetworkObserver.
func (p *Poller) Subscribe(onChange func(bool)) func() {
	p.mu.Lock()
	id := p.nextID
	p.nextID++
	p.subs[id] = onChange
	if !p.started {
		p.started = true
		go p.run()
	}
	p.mu.Unlock()

	return func() {
		p.mu.Lock()
		delete(p.subs, id)
		p.mu.Unlock()
	}
}

// Stop ends the polling goroutine.
func (p *Poller) Stop() {
	close(p.stop)
}

func (p *Poller) run() {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.mu.Lock()
	p.last = Probe(p.probeAddr)
	p.mu.Unlock()

	for {
		select {
		case <-p.stop:
			return
		case <-ticker.C:
			reachable := Probe(p.probeAddr)

			p.mu.Lock()
			changed := reachable != p.last
			p.last = reachable
			subs := make([]func(bool), 0, len(p.subs))
			for _, fn := range p.subs {
				subs = append(subs, fn)
			}
			p.mu.Unlock()

			if changed {
				for _, fn := range subs {
					fn(reachable)
				}
			}
		}
	}
}
