// Package peerconn states the WebRTC peer-connection contract spec.md §1
// names as an external collaborator whose interface this engine states but
// does not design: SDP generation, ICE gathering, and media capture belong
// to a real WebRTC engine (e.g. github.com/pion/webrtc), not to this
// signaling layer.
//
// Only the type vocabulary is borrowed from github.com/pion/webrtc/v4 —
// SessionDescription and ICECandidateInit — so a host wiring a real pion
// PeerConnection into this contract needs no adapter struct, grounded on
// the SDP/ICE call shapes in iamprashant-voice-ai's
// internal/channel/webrtc/streamer.go.
package peerconn

import "github.com/pion/webrtc/v4"

// SessionDescription is the SDP offer/answer type exchanged with the peer
// connection. It is exactly pion/webrtc's type so real implementations
// need no conversion.
type SessionDescription = webrtc.SessionDescription

// ICECandidate is a single gathered ICE candidate.
type ICECandidate = webrtc.ICECandidateInit

// SDP type tags, re-exported so callers never need to import pion/webrtc
// directly just to build a SessionDescription literal.
const (
	SDPTypeOffer  = webrtc.SDPTypeOffer
	SDPTypeAnswer = webrtc.SDPTypeAnswer
	SDPTypePranswer = webrtc.SDPTypePranswer
)

// PeerConnection is the narrow contract Call depends on. A concrete
// implementation wraps a real media engine; this package never implements
// one.
type PeerConnection interface {
	// CreateOffer starts local audio capture and ICE gathering and returns
	// a local SDP offer once available.
	CreateOffer() (SessionDescription, error)

	// CreateAnswer sets remote as the offer, starts local audio capture,
	// and returns a local SDP answer.
	CreateAnswer(remote SessionDescription) (SessionDescription, error)

	// SetRemoteDescription applies a remote SDP answer or early-media SDP.
	SetRemoteDescription(remote SessionDescription) error

	// LocalDescription returns the current local SDP, valid once
	// CreateOffer/CreateAnswer has completed ICE gathering (or the
	// bounded fallback wait has elapsed — see call.iceGatherDelay).
	LocalDescription() (SessionDescription, error)

	// AddICECandidate applies a single remote ICE candidate.
	AddICECandidate(candidate ICECandidate) error

	// Close releases all media and network resources held by the peer
	// connection. It must be safe to call more than once.
	Close() error
}

// Factory constructs a PeerConnection configured with the given TURN/STUN
// URLs, per spec.md §4.4 ("Create a PeerConnection configured with
// TURN/STUN URLs").
type Factory func(turnURL, stunURL string) (PeerConnection, error)
