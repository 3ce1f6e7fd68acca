// Package verr defines the engine's error taxonomy. Every entry crosses the
// public API boundary as an events.Event carrying an *Error's message; hosts
// that need to branch on the kind can still errors.As into one.
package verr

import "fmt"

// Kind identifies one of the engine's named failure modes.
type Kind string

const (
	// KindNetworkUnavailable is raised synchronously from Connect when the
	// reachability probe fails, and asynchronously by the supervisor on loss.
	KindNetworkUnavailable Kind = "network_unavailable"

	// KindGatewayRegistrationTimeout is raised after MaxRegRetries gateway
	// polling retries are exhausted, or a NOREG (or other failure) state is
	// received.
	KindGatewayRegistrationTimeout Kind = "gateway_registration_timeout"

	// KindRemoteError wraps a verbatim error.message carried in an envelope.
	KindRemoteError Kind = "remote_error"

	// KindSessionNotReady is raised when a Call is attempted before login
	// succeeded and a session ID was assigned.
	KindSessionNotReady Kind = "session_not_ready"

	// KindUnknownCall is raised when a call-scoped frame names a callID
	// absent from the registry.
	KindUnknownCall Kind = "unknown_call"

	// KindMalformedFrame is raised when an inbound frame fails to parse.
	KindMalformedFrame Kind = "malformed_frame"
)

// Error is the engine's error type. It implements error and carries enough
// structure for a host to tell failure modes apart without string matching.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// New builds an *Error for kind with message exactly as spec.md §8 quotes it
// — the literal strings are part of the contract tested by scenario 1, 3 and 4.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf builds an *Error with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// NetworkUnavailable is the literal error scenario 1 expects.
func NetworkUnavailable() *Error {
	return New(KindNetworkUnavailable, "No Network Connection")
}

// GatewayRegistrationTimeout is the literal error scenarios 3 and 4 expect.
func GatewayRegistrationTimeout() *Error {
	return New(KindGatewayRegistrationTimeout, "Gateway registration has timed out")
}

// UnknownCall reports a call-scoped frame with no matching registry entry.
func UnknownCall(callID string) *Error {
	return Newf(KindUnknownCall, "no call registered for callID %s", callID)
}

// SessionNotReady reports an attempt to build a Call before login succeeded.
func SessionNotReady() *Error {
	return New(KindSessionNotReady, "session is not logged in")
}

// Remote wraps a verbatim error.message from an inbound envelope.
func Remote(message string) *Error {
	return New(KindRemoteError, message)
}

// Malformed reports a frame that failed to parse.
func Malformed(reason string) *Error {
	return Newf(KindMalformedFrame, "malformed frame: %s", reason)
}
