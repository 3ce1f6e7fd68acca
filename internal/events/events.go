// Package events defines the single tagged event stream the engine posts to
// its host (spec.md §6, §9 design note: "a closed sum of event kinds plus
// per-component handler functions, not an interface hierarchy"). Sessions and
// Calls are handed a Sink and call it directly instead of satisfying a fat
// listener interface with a dozen no-op methods.
package events

// Kind tags the payload carried by an Event. The zero value is never sent.
type Kind int

const (
	_ Kind = iota

	// KindConnectionEstablished fires once the transport's socket is open.
	KindConnectionEstablished

	// KindLogin fires after the remote accepts login, carrying SessionID.
	KindLogin

	// KindClientReady fires once gateway registration succeeds (REGED),
	// always immediately after KindLogin.
	KindClientReady

	// KindInvite fires when an inbound offer arrives, for UI ring.
	KindInvite

	// KindAnswer fires when a call transitions on a received answer.
	KindAnswer

	// KindRinging fires on an inbound telnyx_rtc.ringing frame.
	KindRinging

	// KindMedia fires when early media SDP is applied.
	KindMedia

	// KindBye fires when a call ends, locally or remotely.
	KindBye

	// KindError carries a human-readable message for any of verr's kinds.
	KindError
)

func (k Kind) String() string {
	switch k {
	case KindConnectionEstablished:
		return "CONNECTION_ESTABLISHED"
	case KindLogin:
		return "LOGIN"
	case KindClientReady:
		return "CLIENT_READY"
	case KindInvite:
		return "INVITE"
	case KindAnswer:
		return "ANSWER"
	case KindRinging:
		return "RINGING"
	case KindMedia:
		return "MEDIA"
	case KindBye:
		return "BYE"
	case KindError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Event is the closed payload shape for every Kind. Only the fields relevant
// to a given Kind are populated; the rest are left zero.
type Event struct {
	Kind Kind

	SessionID    string
	CallID       string
	SDP          string
	CallerName   string
	CallerNumber string
	Message      string
}

// Sink receives Events posted by the session or a call. Implementations must
// not block — spec.md §5 requires emission to "post to a UI executor without
// blocking."
type Sink func(Event)

// Noop is a Sink that discards every event; useful as a default so callers
// never need a nil check.
func Noop(Event) {}

// ConnectionEstablished builds a KindConnectionEstablished event.
func ConnectionEstablished() Event { return Event{Kind: KindConnectionEstablished} }

// Login builds a KindLogin event.
func Login(sessionID string) Event {
	return Event{Kind: KindLogin, SessionID: sessionID}
}

// ClientReady builds a KindClientReady event.
func ClientReady() Event { return Event{Kind: KindClientReady} }

// Invite builds a KindInvite event.
func Invite(callID, sdp, callerName, callerNumber, sessionID string) Event {
	return Event{
		Kind:         KindInvite,
		CallID:       callID,
		SDP:          sdp,
		CallerName:   callerName,
		CallerNumber: callerNumber,
		SessionID:    sessionID,
	}
}

// Answer builds a KindAnswer event.
func Answer(callID, sdp string) Event {
	return Event{Kind: KindAnswer, CallID: callID, SDP: sdp}
}

// Ringing builds a KindRinging event.
func Ringing(callID string) Event { return Event{Kind: KindRinging, CallID: callID} }

// Media builds a KindMedia event.
func Media(callID string) Event { return Event{Kind: KindMedia, CallID: callID} }

// Bye builds a KindBye event.
func Bye(callID string) Event { return Event{Kind: KindBye, CallID: callID} }

// Error builds a KindError event from any error's message.
func Error(err error) Event {
	return Event{Kind: KindError, Message: err.Error()}
}
