// Package call implements a single Verto dialog: its state machine, SDP
// offer/answer flow, and the mid-call controls (mute, loudspeaker,
// hold/unhold, DTMF) spec.md §4.4 describes.
//
// Grounded on sebacius-switchboard's internal/dialog package for the
// state machine shape, and on iamprashant-voice-ai's call-session SDP
// offer/answer flow for the invite/answer/media sequencing.
package call

import (
	"encoding/base64"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/patrickfdsouzapl/vertoclient/internal/codec"
	"github.com/patrickfdsouzapl/vertoclient/internal/events"
	"github.com/patrickfdsouzapl/vertoclient/internal/media"
	"github.com/patrickfdsouzapl/vertoclient/internal/peerconn"
	"github.com/patrickfdsouzapl/vertoclient/internal/sdpinfo"
	"github.com/patrickfdsouzapl/vertoclient/internal/verr"
)

// DefaultICEGatherDelay is the bounded wait for ICE gathering before an
// outbound invite ships with whatever local SDP is available, matching
// spec.md §4.4's "wait up to 300ms" Open Question. It is kept
// configurable per Call (SPEC_FULL.md §9) rather than hardcoded so a
// test can shrink it.
const DefaultICEGatherDelay = 300 * time.Millisecond

// InviteRequest carries what a host supplies to place an outbound call.
type InviteRequest struct {
	CallerIDName      string
	CallerIDNumber    string
	DestinationNumber string
	ClientState       string
}

// Call is one Verto dialog. It borrows (never owns) its SessionHandle,
// PeerConnection, and media collaborators — teardown (End or
// OnByeReceived) stops the player and leaves the PeerConnection open.
type Call struct {
	mu sync.Mutex

	ID              uuid.UUID
	state           State
	telnyxSessionID string
	telnyxLegID     string
	muted           bool
	onHold          bool
	loudspeaker     bool
	earlySDP        bool

	handle SessionHandle
	peer   peerconn.PeerConnection
	player media.Player
	audio  media.AudioManager
	sink   events.Sink

	iceGatherDelay time.Duration
}

// State returns the call's current lifecycle stage.
func (c *Call) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// NewInvite places an outbound call: it allocates a PeerConnection, asks
// it for a local offer, and — after iceGatherDelay, to give ICE a bounded
// chance to gather host/srflx candidates first — ships the invite with
// whatever local SDP is available by then. Initial state is RINGING
// regardless of direction (spec.md §4.4's explicit Open Question,
// preserved as-is).
func NewInvite(
	req InviteRequest,
	handle SessionHandle,
	peerFactory peerconn.Factory,
	turnURL, stunURL string,
	player media.Player,
	audio media.AudioManager,
	sink events.Sink,
	registry *Registry,
	iceGatherDelay time.Duration,
) (*Call, error) {
	if handle.SessionID() == "" {
		return nil, verr.SessionNotReady()
	}
	if player == nil {
		player = media.NoopPlayer{}
	}
	if audio == nil {
		audio = media.NoopAudioManager{}
	}
	if sink == nil {
		sink = events.Noop
	}
	if iceGatherDelay <= 0 {
		iceGatherDelay = DefaultICEGatherDelay
	}

	peer, err := peerFactory(turnURL, stunURL)
	if err != nil {
		return nil, err
	}

	c := &Call{
		ID:             uuid.New(),
		state:          StateRinging,
		handle:         handle,
		peer:           peer,
		player:         player,
		audio:          audio,
		sink:           sink,
		iceGatherDelay: iceGatherDelay,
	}
	registry.Add(c)

	offer, err := peer.CreateOffer()
	if err != nil {
		slog.Warn("call: create offer failed", "callId", c.ID, "error", err)
		registry.Remove(c.ID)
		peer.Close()
		return nil, err
	}

	time.AfterFunc(iceGatherDelay, func() {
		c.sendInvite(req, offer)
	})

	return c, nil
}

func (c *Call) sendInvite(req InviteRequest, fallback peerconn.SessionDescription) {
	sdp := fallback.SDP
	if local, err := c.peer.LocalDescription(); err == nil && local.SDP != "" {
		sdp = local.SDP
	}
	sdpinfo.Log(c.ID.String(), "outbound-invite", sdp)

	params := codec.CallParams{
		SessionID: c.handle.SessionID(),
		SDP:       sdp,
		DialogParams: codec.DialogParamsOut{
			CallerIDName:      req.CallerIDName,
			CallerIDNumber:    req.CallerIDNumber,
			ClientState:       base64.StdEncoding.EncodeToString([]byte(req.ClientState)),
			CallID:            c.ID.String(),
			DestinationNumber: req.DestinationNumber,
		},
	}
	body, _, err := codec.Encode(codec.MethodInviteRequest, params)
	if err != nil {
		slog.Warn("call: encoding invite failed", "callId", c.ID, "error", err)
		return
	}
	c.handle.Send(body)
	c.player.PlayRingback()
}

// NewOffer constructs an inbound Call from a received telnyx_rtc.invite
// envelope. It sets the remote offer, builds a local answer, and starts
// ringing — acceptCall is what actually sends the answer.
func NewOffer(
	in codec.InviteParams,
	handle SessionHandle,
	peerFactory peerconn.Factory,
	turnURL, stunURL string,
	player media.Player,
	audio media.AudioManager,
	sink events.Sink,
	registry *Registry,
) (*Call, error) {
	id, err := uuid.Parse(in.CallID)
	if err != nil {
		return nil, verr.Malformed("invite callID is not a uuid: " + in.CallID)
	}
	if player == nil {
		player = media.NoopPlayer{}
	}
	if audio == nil {
		audio = media.NoopAudioManager{}
	}
	if sink == nil {
		sink = events.Noop
	}

	peer, err := peerFactory(turnURL, stunURL)
	if err != nil {
		return nil, err
	}

	sdpinfo.Log(in.CallID, "inbound-offer", in.SDP)
	if _, err := peer.CreateAnswer(peerconn.SessionDescription{Type: peerconn.SDPTypeOffer, SDP: in.SDP}); err != nil {
		peer.Close()
		return nil, err
	}

	c := &Call{
		ID:              id,
		state:           StateRinging,
		telnyxSessionID: in.DialogParams.TelnyxSessionID,
		telnyxLegID:     in.DialogParams.TelnyxLegID,
		handle:          handle,
		peer:            peer,
		player:          player,
		audio:           audio,
		sink:            sink,
		iceGatherDelay:  DefaultICEGatherDelay,
	}
	registry.Add(c)
	sink(events.Invite(in.CallID, in.SDP, in.DialogParams.CallerIDName, in.DialogParams.CallerIDNumber, handle.SessionID()))
	player.PlayRingtone()
	return c, nil
}

// Accept sends the previously built local answer and transitions to
// ACTIVE (spec.md §4.4's acceptCall).
func (c *Call) Accept() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	local, err := c.peer.LocalDescription()
	if err != nil {
		return err
	}
	c.player.Stop()
	c.state = StateActive

	params := codec.CallParams{
		SessionID: c.handle.SessionID(),
		SDP:       local.SDP,
		DialogParams: codec.DialogParamsOut{
			CallID: c.ID.String(),
		},
	}
	body, _, err := codec.Encode(codec.MethodAnswer, params)
	if err != nil {
		return err
	}
	c.handle.Send(body)
	return nil
}

// OnAnswerReceived implements spec.md §4.4's three-branch onAnswerReceived:
// SDP present moves straight to ACTIVE; SDP absent but early media already
// arrived moves to CONNECTING and emits the local SDP; SDP absent with no
// earlier media means the far end rejected the call.
func (c *Call) OnAnswerReceived(in codec.AnswerParams) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch {
	case in.SDP != "":
		sdpinfo.Log(c.ID.String(), "inbound-answer", in.SDP)
		if err := c.peer.SetRemoteDescription(peerconn.SessionDescription{Type: peerconn.SDPTypeAnswer, SDP: in.SDP}); err != nil {
			slog.Warn("call: set remote answer failed", "callId", c.ID, "error", err)
		}
		c.state = StateActive
		c.sink(events.Answer(c.ID.String(), in.SDP))
	case c.earlySDP:
		local, err := c.peer.LocalDescription()
		sdp := ""
		if err == nil {
			sdp = local.SDP
		}
		c.state = StateConnecting
		c.sink(events.Answer(c.ID.String(), sdp))
	default:
		c.state = StateDone
		c.sink(events.Bye(c.ID.String()))
	}
}

// OnMediaReceived applies early media SDP (spec.md §4.4's onMediaReceived).
// An envelope with no SDP means the far end tore the call down before an
// answer ever arrived.
func (c *Call) OnMediaReceived(in codec.MediaParams) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if in.SDP == "" {
		c.state = StateDone
		c.sink(events.Bye(c.ID.String()))
		return
	}
	sdpinfo.Log(c.ID.String(), "inbound-media", in.SDP)
	if err := c.peer.SetRemoteDescription(peerconn.SessionDescription{Type: peerconn.SDPTypePranswer, SDP: in.SDP}); err != nil {
		slog.Warn("call: set remote media failed", "callId", c.ID, "error", err)
	}
	c.earlySDP = true
	c.sink(events.Media(c.ID.String()))
}

// OnRingingReceived surfaces a remote ringback indication. It does not
// change Call state.
func (c *Call) OnRingingReceived() {
	c.sink(events.Ringing(c.ID.String()))
}

// OnByeReceived tears the call down in response to a remote bye. It is
// idempotent: a call already DONE ignores a repeat (spec.md §8's bye
// idempotence scenario; the first bye already removed it from the
// registry, so in practice a session only reaches this method once per
// call, but the guard keeps Call itself safe against direct reuse too).
func (c *Call) OnByeReceived(registry *Registry) {
	c.mu.Lock()
	if c.state == StateDone {
		c.mu.Unlock()
		return
	}
	c.state = StateDone
	c.mu.Unlock()

	c.player.Stop()
	c.sink(events.Bye(c.ID.String()))
	registry.Remove(c.ID)
}

// End locally terminates the call: it sends a bye with the given cause
// and runs the same local teardown as an inbound bye (spec.md §4.4's
// endCall — "local teardown identical to inbound bye").
func (c *Call) End(cause CauseCode, registry *Registry) {
	c.mu.Lock()
	if c.state == StateDone {
		c.mu.Unlock()
		return
	}
	c.state = StateDone
	sessionID := c.handle.SessionID()
	c.mu.Unlock()

	params := codec.ByeParams{
		SessionID: sessionID,
		CauseCode: int(cause),
		CauseName: cause.Name(),
		DialogParams: codec.DialogParamsOut{
			CallID: c.ID.String(),
		},
	}
	if body, _, err := codec.Encode(codec.MethodBye, params); err == nil {
		c.handle.Send(body)
	}
	c.player.Stop()
	if c.sink != nil {
		c.sink(events.Bye(c.ID.String()))
	}
	registry.Remove(c.ID)
}

// SetMuted toggles microphone mute.
func (c *Call) SetMuted(muted bool) {
	c.mu.Lock()
	c.muted = muted
	c.mu.Unlock()
	c.audio.SetMuted(muted)
}

// Muted reports the current mute state.
func (c *Call) Muted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.muted
}

// SetLoudspeaker toggles speaker routing.
func (c *Call) SetLoudspeaker(on bool) {
	c.mu.Lock()
	c.loudspeaker = on
	c.mu.Unlock()
	c.audio.SetLoudspeaker(on)
}

// SetHold sends a modify hold/unhold request and updates local state.
// Remote confirmation is not separately modeled (spec.md does not define
// a reply envelope for modify).
func (c *Call) SetHold(hold bool) error {
	c.mu.Lock()
	c.onHold = hold
	sessionID := c.handle.SessionID()
	action := "unhold"
	if hold {
		action = "hold"
		c.state = StateHeld
	} else {
		c.state = StateActive
	}
	id := c.ID.String()
	c.mu.Unlock()

	params := codec.ModifyParams{
		SessionID: sessionID,
		Action:    action,
		DialogParams: codec.DialogParamsOut{
			CallID: id,
		},
	}
	body, _, err := codec.Encode(codec.MethodModify, params)
	if err != nil {
		return err
	}
	c.handle.Send(body)
	return nil
}

// OnHold reports whether the call is currently held.
func (c *Call) OnHold() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.onHold
}

// SendDTMF sends a single DTMF digit string over the signaling channel.
func (c *Call) SendDTMF(digits string) error {
	c.mu.Lock()
	sessionID := c.handle.SessionID()
	id := c.ID.String()
	c.mu.Unlock()

	params := codec.InfoParam{
		SessionID: sessionID,
		DTMF:      digits,
		DialogParams: codec.DialogParamsOut{
			CallID: id,
		},
	}
	body, _, err := codec.Encode(codec.MethodInfo, params)
	if err != nil {
		return err
	}
	c.handle.Send(body)
	return nil
}
