package call

import (
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/patrickfdsouzapl/vertoclient/internal/codec"
	"github.com/patrickfdsouzapl/vertoclient/internal/events"
	"github.com/patrickfdsouzapl/vertoclient/internal/peerconn"
)

// fakeHandle is a minimal SessionHandle recording everything sent.
type fakeHandle struct {
	mu        sync.Mutex
	sessionID string
	sent      [][]byte
	removed   []uuid.UUID
}

func (f *fakeHandle) Send(body []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, body)
}

func (f *fakeHandle) SessionID() string { return f.sessionID }

func (f *fakeHandle) Remove(id uuid.UUID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removed = append(f.removed, id)
}

func (f *fakeHandle) lastSent() []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sent) == 0 {
		return nil
	}
	return f.sent[len(f.sent)-1]
}

// fakePeer is a minimal peerconn.PeerConnection.
type fakePeer struct {
	local peerconn.SessionDescription
}

func (p *fakePeer) CreateOffer() (peerconn.SessionDescription, error) {
	return peerconn.SessionDescription{Type: peerconn.SDPTypeOffer, SDP: "offer-sdp"}, nil
}

func (p *fakePeer) CreateAnswer(remote peerconn.SessionDescription) (peerconn.SessionDescription, error) {
	p.local = peerconn.SessionDescription{Type: peerconn.SDPTypeAnswer, SDP: "answer-sdp"}
	return p.local, nil
}

func (p *fakePeer) SetRemoteDescription(peerconn.SessionDescription) error { return nil }

func (p *fakePeer) LocalDescription() (peerconn.SessionDescription, error) {
	if p.local.SDP == "" {
		return peerconn.SessionDescription{Type: peerconn.SDPTypeOffer, SDP: "offer-sdp"}, nil
	}
	return p.local, nil
}

func (p *fakePeer) AddICECandidate(peerconn.ICECandidate) error { return nil }

func (p *fakePeer) Close() error { return nil }

func fakeFactory() peerconn.Factory {
	return func(turnURL, stunURL string) (peerconn.PeerConnection, error) {
		return &fakePeer{}, nil
	}
}

func collectEvents() (events.Sink, func() []events.Event) {
	var mu sync.Mutex
	var got []events.Event
	return func(e events.Event) {
			mu.Lock()
			defer mu.Unlock()
			got = append(got, e)
		}, func() []events.Event {
			mu.Lock()
			defer mu.Unlock()
			return append([]events.Event(nil), got...)
		}
}

func TestNewInviteStartsRingingAndSendsAfterDelay(t *testing.T) {
	handle := &fakeHandle{sessionID: "sess-1"}
	registry := NewRegistry(nil)
	sink, _ := collectEvents()

	c, err := NewInvite(InviteRequest{
		CallerIDName:      "Alice",
		CallerIDNumber:    "1000",
		DestinationNumber: "1001",
		ClientState:       "hello",
	}, handle, fakeFactory(), "turn:example", "stun:example", nil, nil, sink, registry, 5*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, StateRinging, c.State())
	assert.Equal(t, 1, registry.Len())

	require.Eventually(t, func() bool {
		return handle.lastSent() != nil
	}, time.Second, 5*time.Millisecond)

	env, err := codec.Decode(handle.lastSent())
	require.NoError(t, err)
	assert.Equal(t, codec.MethodInvite, env.Method)
}

func TestNewOfferEmitsInviteEventAndAccept(t *testing.T) {
	handle := &fakeHandle{sessionID: "sess-1"}
	registry := NewRegistry(nil)
	sink, getEvents := collectEvents()

	id := uuid.New()
	c, err := NewOffer(codec.InviteParams{
		CallID: id.String(),
		SDP:    "remote-offer-sdp",
		DialogParams: codec.DialogParamsIn{
			CallerIDName:   "Bob",
			CallerIDNumber: "2000",
		},
	}, handle, fakeFactory(), "turn:example", "stun:example", nil, nil, sink, registry)
	require.NoError(t, err)
	assert.Equal(t, StateRinging, c.State())

	evs := getEvents()
	require.Len(t, evs, 1)
	assert.Equal(t, events.KindInvite, evs[0].Kind)
	assert.Equal(t, "Bob", evs[0].CallerName)

	require.NoError(t, c.Accept())
	assert.Equal(t, StateActive, c.State())

	env, err := codec.Decode(handle.lastSent())
	require.NoError(t, err)
	assert.Equal(t, codec.MethodAnswer, env.Method)
}

func TestOnAnswerReceivedWithSDPGoesActive(t *testing.T) {
	handle := &fakeHandle{sessionID: "sess-1"}
	sink, getEvents := collectEvents()
	c := &Call{ID: uuid.New(), state: StateRinging, handle: handle, peer: &fakePeer{}, player: noopPlayerT{}, sink: sink}

	c.OnAnswerReceived(codec.AnswerParams{CallID: c.ID.String(), SDP: "answer-sdp"})
	assert.Equal(t, StateActive, c.State())
	evs := getEvents()
	require.Len(t, evs, 1)
	assert.Equal(t, events.KindAnswer, evs[0].Kind)
}

func TestOnAnswerReceivedNoSDPNoEarlyMediaIsRejected(t *testing.T) {
	handle := &fakeHandle{sessionID: "sess-1"}
	sink, getEvents := collectEvents()
	c := &Call{ID: uuid.New(), state: StateRinging, handle: handle, peer: &fakePeer{}, player: noopPlayerT{}, sink: sink}

	c.OnAnswerReceived(codec.AnswerParams{CallID: c.ID.String()})
	assert.Equal(t, StateDone, c.State())
	evs := getEvents()
	require.Len(t, evs, 1)
	assert.Equal(t, events.KindBye, evs[0].Kind)
}

func TestOnByeReceivedIsIdempotent(t *testing.T) {
	handle := &fakeHandle{sessionID: "sess-1"}
	registry := NewRegistry(nil)
	sink, getEvents := collectEvents()
	c := &Call{ID: uuid.New(), state: StateActive, handle: handle, peer: &fakePeer{}, player: noopPlayerT{}, sink: sink}
	registry.Add(c)

	c.OnByeReceived(registry)
	c.OnByeReceived(registry)

	assert.Equal(t, StateDone, c.State())
	evs := getEvents()
	require.Len(t, evs, 1, "second bye must not emit a second BYE event")
	assert.Equal(t, 0, registry.Len())
}

func TestEndSendsByeWithCauseCode(t *testing.T) {
	handle := &fakeHandle{sessionID: "sess-1"}
	registry := NewRegistry(nil)
	c := &Call{ID: uuid.New(), state: StateActive, handle: handle, peer: &fakePeer{}, player: noopPlayerT{}}
	registry.Add(c)

	c.End(CauseUserBusy, registry)
	env, err := codec.Decode(handle.lastSent())
	require.NoError(t, err)
	assert.Equal(t, codec.MethodBye, env.Method)
	assert.Equal(t, 0, registry.Len())
}

// noopPlayerT avoids importing media in the tiny surface these tests need.
type noopPlayerT struct{}

func (noopPlayerT) PlayRingtone() {}
func (noopPlayerT) PlayRingback() {}
func (noopPlayerT) Stop()         {}
