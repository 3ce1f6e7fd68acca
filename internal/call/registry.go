package call

import (
	"sync"

	"github.com/google/uuid"
)

// SessionHandle is the narrow, non-owning reference a Call holds back to
// its owning session, instead of a pointer to the session itself. This
// breaks the Client<->Call reference cycle the design notes call out:
// Call only ever sees Send/SessionID/Remove, never the session's gateway
// state machine or transport internals.
//
// Grounded on thatcooperguy-nvremote's streamer.Manager, which hands its
// sessions a narrow "ipc" callback set rather than a pointer back to the
// agent, for the same reason.
type SessionHandle interface {
	// Send ships the already-encoded body over whatever Transport is currently
	// live. A reconnect swaps the underlying Transport atomically behind
	// this call; Send never blocks waiting for one.
	Send(body []byte)

	// SessionID returns the current gateway session ID, or "" if the
	// session hasn't completed registration.
	SessionID() string

	// Remove drops callID from the owning registry and, if that empties
	// it, clears the session's ongoingCall flag.
	Remove(callID uuid.UUID)
}

// Registry is the single source of truth for in-flight Calls, keyed by
// call ID. A session owns exactly one Registry.
type Registry struct {
	mu       sync.Mutex
	calls    map[uuid.UUID]*Call
	onChange func(nonEmpty bool)
}

// NewRegistry builds an empty Registry. onChange, if non-nil, fires after
// every Add/Remove with whether the registry is now non-empty — a
// session uses this to keep its ongoingCall flag in sync without the
// registry needing to know about sessions at all.
func NewRegistry(onChange func(nonEmpty bool)) *Registry {
	return &Registry{
		calls:    make(map[uuid.UUID]*Call),
		onChange: onChange,
	}
}

// Add registers c. It is idempotent on c.ID.
func (r *Registry) Add(c *Call) {
	r.mu.Lock()
	r.calls[c.ID] = c
	n := len(r.calls)
	r.mu.Unlock()
	r.notify(n)
}

// Remove drops the call with the given ID, if present.
func (r *Registry) Remove(id uuid.UUID) {
	r.mu.Lock()
	delete(r.calls, id)
	n := len(r.calls)
	r.mu.Unlock()
	r.notify(n)
}

// Get returns the call with the given ID, or ok=false (spec.md §8's
// "bye/media/answer referencing an unknown call ID" scenario: the caller
// is expected to turn a missing call into verr.UnknownCall).
func (r *Registry) Get(id uuid.UUID) (*Call, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.calls[id]
	return c, ok
}

// Len reports the number of in-flight calls.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

// RemoveAll drops every call, returning the calls that were removed so
// the caller (Disconnect) can tear each of them down.
func (r *Registry) RemoveAll() []*Call {
	r.mu.Lock()
	removed := make([]*Call, 0, len(r.calls))
	for _, c := range r.calls {
		removed = append(removed, c)
	}
	r.calls = make(map[uuid.UUID]*Call)
	r.mu.Unlock()
	r.notify(0)
	return removed
}

func (r *Registry) notify(n int) {
	if r.onChange != nil {
		r.onChange(n > 0)
	}
}
