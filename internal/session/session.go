// Package session implements SignalingSession (spec.md §4.3): it owns the
// login/registration handshake, decodes every inbound frame and routes it
// by kind, and gives each Call a narrow, non-owning handle back to itself
// instead of a pointer Calls would have to know the internals of.
//
// Grounded on thatcooperguy-nvremote's heartbeat/websocket.go
// ConnectSignaling/runSignalingSession for the connect-then-replay-login
// shape, adapted to Verto's login -> gatewayState-poll -> clientReady
// handshake instead of a single auth frame.
package session

import (
	"context"
	"encoding/json"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/patrickfdsouzapl/vertoclient/internal/call"
	"github.com/patrickfdsouzapl/vertoclient/internal/codec"
	"github.com/patrickfdsouzapl/vertoclient/internal/config"
	"github.com/patrickfdsouzapl/vertoclient/internal/events"
	"github.com/patrickfdsouzapl/vertoclient/internal/media"
	"github.com/patrickfdsouzapl/vertoclient/internal/peerconn"
	"github.com/patrickfdsouzapl/vertoclient/internal/transport"
	"github.com/patrickfdsouzapl/vertoclient/internal/verr"
)

// pushNotificationProvider identifies the host platform in the login
// request's userVariables (spec.md §4.3: "push_notification_provider=
// 'android' (or the host platform id)"). This engine runs wherever Go
// runs, so it reports runtime.GOOS rather than hardcoding "android".
var pushNotificationProvider = runtime.GOOS

// NetworkChecker reports whether the host currently has network
// reachability. Connect consults it synchronously before ever dialing.
type NetworkChecker func() bool

// Options configures a Session at construction.
type Options struct {
	ServerConfig    config.TxServerConfiguration
	Sink            events.Sink
	NetworkChecker  NetworkChecker
	PeerFactory     peerconn.Factory
	Player          media.Player
	AudioManager    media.AudioManager
	ICEGatherDelay  time.Duration
	GatewayPollTick time.Duration
	MaxRegRetries   int
}

// Session implements SignalingSession: one logical registration with the
// Verto gateway, across however many physical Transports a reconnect
// cycles through.
type Session struct {
	mu sync.Mutex

	serverConfig config.TxServerConfiguration
	sink         events.Sink
	networkOK    NetworkChecker
	peerFactory  peerconn.Factory
	player       media.Player
	audio        media.AudioManager

	iceGatherDelay time.Duration
	pollInterval   time.Duration
	maxRegRetries  int

	transport *transport.Transport
	registry  *call.Registry

	credentials  config.CredentialSource
	sessionID    string
	gatewayState GatewayState
	loggedIn     bool
	regRetries   int
	regTimer     *time.Timer

	ongoingCall bool
	onFailure   func(error)
}

// SetFailureHandler registers a callback fired whenever the underlying
// Transport fails (in addition to the KindError event always sent to
// Sink). A ConnectionSupervisor uses this to learn about a dropped
// socket without parsing event messages.
func (s *Session) SetFailureHandler(fn func(error)) {
	s.mu.Lock()
	s.onFailure = fn
	s.mu.Unlock()
}

// New builds a Session. The Registry's onChange callback is wired to the
// session's own ongoingCall flag, so call.Registry never needs to know a
// Session exists.
func New(opts Options) *Session {
	s := &Session{
		serverConfig:   opts.ServerConfig,
		sink:           opts.Sink,
		networkOK:      opts.NetworkChecker,
		peerFactory:    opts.PeerFactory,
		player:         opts.Player,
		audio:          opts.AudioManager,
		iceGatherDelay: opts.ICEGatherDelay,
		pollInterval:   opts.GatewayPollTick,
		maxRegRetries:  opts.MaxRegRetries,
	}
	if s.sink == nil {
		s.sink = events.Noop
	}
	if s.player == nil {
		s.player = media.NoopPlayer{}
	}
	if s.audio == nil {
		s.audio = media.NoopAudioManager{}
	}
	if s.iceGatherDelay <= 0 {
		s.iceGatherDelay = call.DefaultICEGatherDelay
	}
	if s.pollInterval <= 0 {
		s.pollInterval = time.Duration(config.DefaultGatewayPollMS) * time.Millisecond
	}
	if s.maxRegRetries <= 0 {
		s.maxRegRetries = config.DefaultMaxRegRetries
	}
	s.registry = call.NewRegistry(func(nonEmpty bool) {
		s.mu.Lock()
		s.ongoingCall = nonEmpty
		s.mu.Unlock()
	})
	return s
}

// Calls exposes the call registry to a host that wants to enumerate or
// act on in-flight calls directly.
func (s *Session) Calls() *call.Registry { return s.registry }

// OngoingCall reports whether any call is currently registered.
func (s *Session) OngoingCall() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ongoingCall
}

// GatewayState reports the current registration status.
func (s *Session) GatewayState() GatewayState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gatewayState
}

// LoggedIn reports whether login has completed successfully (spec.md §3's
// `loggedIn` field; scenario 2 asserts it directly rather than inferring
// it from GatewayState).
func (s *Session) LoggedIn() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loggedIn
}

// Connect opens a new Transport to the configured signaling endpoint. A
// network reachability check runs first — if it fails, Connect never
// dials and returns verr.NetworkUnavailable() synchronously (spec.md §8
// scenario 1), matching the exact literal message.
//
// Login is deliberately NOT sent here even if credentials were already
// supplied via CredentialLogin/TokenLogin: it is deferred until
// OnConnectionEstablished fires, because the prior recursive retry logic
// this is grounded on sent login on the write that opened the socket, a
// window in which the socket wasn't guaranteed writable yet on a
// reconnect. See onConnectionEstablished.
func (s *Session) Connect(ctx context.Context) error {
	if s.networkOK != nil && !s.networkOK() {
		err := verr.NetworkUnavailable()
		s.sink(events.Error(err))
		return err
	}

	tr := transport.New()
	s.mu.Lock()
	prev := s.transport
	s.transport = tr
	s.mu.Unlock()

	// Destroy the transport this Connect is replacing — on a supervisor
	// reconnect, prev is the failed socket; never leave it open (spec.md
	// §4.5, §5: "Destroy the old Transport (cancel any pending work)").
	if prev != nil {
		prev.Destroy(nil)
	}

	listener := transport.Listener{
		OnConnectionEstablished: s.onConnectionEstablished,
		OnMessage:               s.onMessage,
		OnErrorReceived:         s.onTransportError,
	}
	return tr.Connect(ctx, listener, s.serverConfig.Host, s.serverConfig.Port)
}

// SwapTransport installs a Transport the caller connected itself in place
// of whatever this Session currently holds (Connect installs the one it
// dials on its own). Every live Call's SessionHandle.Send then writes to
// the new socket without the Call ever noticing the swap.
func (s *Session) SwapTransport(tr *transport.Transport) {
	s.mu.Lock()
	s.transport = tr
	s.mu.Unlock()
}

// CredentialLogin logs in with a SIP user/password pair.
func (s *Session) CredentialLogin(cfg config.CredentialConfig) {
	s.login(cfg)
}

// TokenLogin logs in with a pre-issued JWT.
func (s *Session) TokenLogin(cfg config.TokenConfig) {
	s.login(cfg)
}

func (s *Session) login(cred config.CredentialSource) {
	s.mu.Lock()
	s.credentials = cred
	tr := s.transport
	s.mu.Unlock()

	if tr != nil && tr.IsConnected() {
		s.sendLogin(cred)
	}
}

func (s *Session) onConnectionEstablished() {
	s.sink(events.ConnectionEstablished())

	s.mu.Lock()
	cred := s.credentials
	s.mu.Unlock()
	if cred != nil {
		s.sendLogin(cred)
	}
}

func (s *Session) sendLogin(cred config.CredentialSource) {
	vars := codec.UserVariables{PushNotificationProvider: pushNotificationProvider}
	var param codec.LoginParam

	switch c := cred.(type) {
	case config.CredentialConfig:
		vars.PushDeviceToken = c.FCMToken
		param = codec.LoginParam{Login: c.SIPUser, Passwd: c.SIPPassword, UserVariables: vars}
	case config.TokenConfig:
		vars.PushDeviceToken = c.FCMToken
		param = codec.LoginParam{LoginToken: c.SIPToken, UserVariables: vars}
	default:
		slog.Warn("session: sendLogin called with unknown credential type")
		return
	}

	body, _, err := codec.Encode(codec.MethodLogin, param)
	if err != nil {
		slog.Warn("session: encoding login failed", "error", err)
		return
	}
	s.send(body)
}

func (s *Session) onTransportError(err error) {
	s.sink(events.Error(verr.New(verr.KindNetworkUnavailable, err.Error())))

	s.mu.Lock()
	onFailure := s.onFailure
	s.mu.Unlock()
	if onFailure != nil {
		onFailure(err)
	}
}

func (s *Session) send(body []byte) {
	s.mu.Lock()
	tr := s.transport
	s.mu.Unlock()
	if tr != nil {
		tr.Send(body)
	}
}

// --- call.SessionHandle ---

// Send implements call.SessionHandle.
func (s *Session) Send(body []byte) { s.send(body) }

// SessionID implements call.SessionHandle.
func (s *Session) SessionID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessionID
}

// Remove implements call.SessionHandle.
func (s *Session) Remove(callID uuid.UUID) { s.registry.Remove(callID) }

// Disconnect tears the session down: any in-flight calls are ended
// locally, the registration poll timer is stopped, and the transport is
// destroyed. The Session may Connect again afterward.
func (s *Session) Disconnect() {
	s.mu.Lock()
	if s.regTimer != nil {
		s.regTimer.Stop()
		s.regTimer = nil
	}
	tr := s.transport
	s.sessionID = ""
	s.gatewayState = GatewayUnregistered
	s.loggedIn = false
	s.mu.Unlock()

	for _, c := range s.registry.RemoveAll() {
		c.End(call.CauseNormalClearing, s.registry)
	}

	if tr != nil {
		tr.Destroy(nil)
	}
}

// --- outbound call placement, pass-through from a host ---

// PlaceCall starts an outbound invite.
func (s *Session) PlaceCall(req call.InviteRequest) (*call.Call, error) {
	return call.NewInvite(req, s, s.peerFactory, s.serverConfig.Turn, s.serverConfig.Stun, s.player, s.audio, s.sink, s.registry, s.iceGatherDelay)
}

// AcceptCall accepts a ringing inbound call.
func (s *Session) AcceptCall(callID uuid.UUID) error {
	c, ok := s.registry.Get(callID)
	if !ok {
		err := verr.UnknownCall(callID.String())
		s.sink(events.Error(err))
		return err
	}
	return c.Accept()
}

// EndCall locally terminates a call with the given cause code.
func (s *Session) EndCall(callID uuid.UUID, cause call.CauseCode) error {
	c, ok := s.registry.Get(callID)
	if !ok {
		err := verr.UnknownCall(callID.String())
		s.sink(events.Error(err))
		return err
	}
	c.End(cause, s.registry)
	return nil
}

// --- inbound frame dispatch ---

func (s *Session) onMessage(raw []byte) {
	env, err := codec.Decode(raw)
	if err != nil {
		s.sink(events.Error(verr.Malformed(err.Error())))
		return
	}

	switch codec.Classify(env) {
	case codec.KindLoginResult:
		s.onLoginResult(env)
	case codec.KindGatewayState:
		s.onGatewayStateReceived(env)
	case codec.KindInvite:
		s.onInvite(env)
	case codec.KindAnswer:
		s.onAnswer(env)
	case codec.KindMedia:
		s.onMedia(env)
	case codec.KindRinging:
		s.onRinging(env)
	case codec.KindBye:
		s.onBye(env)
	case codec.KindClientReady:
		// Acknowledgement of our own telnyx_rtc.clientReady; nothing to do.
	case codec.KindErrorFrame:
		msg := ""
		if env.Error != nil {
			msg = env.Error.Message
		}
		s.sink(events.Error(verr.Remote(msg)))
	default:
		slog.Debug("session: ignoring unrecognized frame", "method", env.Method)
	}
}

func (s *Session) onLoginResult(env *codec.Envelope) {
	var result codec.LoginResult
	if len(env.Result) > 0 {
		if err := json.Unmarshal(env.Result, &result); err != nil {
			s.sink(events.Error(verr.Malformed(err.Error())))
			return
		}
	}

	s.mu.Lock()
	s.sessionID = result.SessID
	s.mu.Unlock()

	s.startGatewayPoll()
}

func (s *Session) onInvite(env *codec.Envelope) {
	var params codec.InviteParams
	if err := json.Unmarshal(env.Params, &params); err != nil {
		s.sink(events.Error(verr.Malformed(err.Error())))
		return
	}
	if _, err := call.NewOffer(params, s, s.peerFactory, s.serverConfig.Turn, s.serverConfig.Stun, s.player, s.audio, s.sink, s.registry); err != nil {
		slog.Warn("session: building inbound call failed", "error", err)
	}
}

func (s *Session) onAnswer(env *codec.Envelope) {
	var params codec.AnswerParams
	if err := json.Unmarshal(env.Params, &params); err != nil {
		s.sink(events.Error(verr.Malformed(err.Error())))
		return
	}
	c, id, ok := s.lookupCall(params.CallID)
	if !ok {
		return
	}
	_ = id
	c.OnAnswerReceived(params)
}

func (s *Session) onMedia(env *codec.Envelope) {
	var params codec.MediaParams
	if err := json.Unmarshal(env.Params, &params); err != nil {
		s.sink(events.Error(verr.Malformed(err.Error())))
		return
	}
	c, _, ok := s.lookupCall(params.CallID)
	if !ok {
		return
	}
	c.OnMediaReceived(params)
}

func (s *Session) onRinging(env *codec.Envelope) {
	var params codec.RingingParamsIn
	if err := json.Unmarshal(env.Params, &params); err != nil {
		s.sink(events.Error(verr.Malformed(err.Error())))
		return
	}
	c, _, ok := s.lookupCall(params.CallID)
	if !ok {
		return
	}
	c.OnRingingReceived()
}

func (s *Session) onBye(env *codec.Envelope) {
	var params codec.ByeParamsIn
	if err := json.Unmarshal(env.Params, &params); err != nil {
		s.sink(events.Error(verr.Malformed(err.Error())))
		return
	}
	c, _, ok := s.lookupCall(params.CallID)
	if !ok {
		return
	}
	c.OnByeReceived(s.registry)
}

func (s *Session) lookupCall(callID string) (*call.Call, uuid.UUID, bool) {
	id, err := uuid.Parse(callID)
	if err != nil {
		s.sink(events.Error(verr.Malformed("callID is not a uuid: " + callID)))
		return nil, uuid.UUID{}, false
	}
	c, ok := s.registry.Get(id)
	if !ok {
		s.sink(events.Error(verr.UnknownCall(callID)))
		return nil, id, false
	}
	return c, id, true
}
