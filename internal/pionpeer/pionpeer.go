// Package pionpeer is the one concrete peerconn.PeerConnection this repo
// ships: a thin adapter over github.com/pion/webrtc/v4 that does just
// enough SDP offer/answer and ICE-candidate plumbing to exercise
// internal/call end to end. Real audio capture/playback stays out of
// scope (spec.md §1's explicit non-goal) — no MediaEngine, no tracks are
// registered here.
//
// Grounded on iamprashant-voice-ai's internal/channel/webrtc/streamer.go
// for the ICEServer/Configuration/NewPeerConnection shape, trimmed to
// the signaling-only surface peerconn.PeerConnection needs.
package pionpeer

import (
	"github.com/pion/webrtc/v4"

	"github.com/patrickfdsouzapl/vertoclient/internal/peerconn"
)

type adapter struct {
	pc *webrtc.PeerConnection
}

// NewFactory builds a peerconn.Factory backed by real pion/webrtc peer
// connections, configured with the given TURN/STUN URLs as ICE servers.
func NewFactory() peerconn.Factory {
	return func(turnURL, stunURL string) (peerconn.PeerConnection, error) {
		var iceServers []webrtc.ICEServer
		if stunURL != "" {
			iceServers = append(iceServers, webrtc.ICEServer{URLs: []string{stunURL}})
		}
		if turnURL != "" {
			iceServers = append(iceServers, webrtc.ICEServer{URLs: []string{turnURL}})
		}

		pc, err := webrtc.NewPeerConnection(webrtc.Configuration{ICEServers: iceServers})
		if err != nil {
			return nil, err
		}
		return &adapter{pc: pc}, nil
	}
}

func (a *adapter) CreateOffer() (peerconn.SessionDescription, error) {
	offer, err := a.pc.CreateOffer(nil)
	if err != nil {
		return peerconn.SessionDescription{}, err
	}
	if err := a.pc.SetLocalDescription(offer); err != nil {
		return peerconn.SessionDescription{}, err
	}
	return offer, nil
}

func (a *adapter) CreateAnswer(remote peerconn.SessionDescription) (peerconn.SessionDescription, error) {
	if err := a.pc.SetRemoteDescription(remote); err != nil {
		return peerconn.SessionDescription{}, err
	}
	answer, err := a.pc.CreateAnswer(nil)
	if err != nil {
		return peerconn.SessionDescription{}, err
	}
	if err := a.pc.SetLocalDescription(answer); err != nil {
		return peerconn.SessionDescription{}, err
	}
	return answer, nil
}

func (a *adapter) SetRemoteDescription(remote peerconn.SessionDescription) error {
	return a.pc.SetRemoteDescription(remote)
}

func (a *adapter) LocalDescription() (peerconn.SessionDescription, error) {
	if ld := a.pc.LocalDescription(); ld != nil {
		return *ld, nil
	}
	return peerconn.SessionDescription{}, nil
}

func (a *adapter) AddICECandidate(candidate peerconn.ICECandidate) error {
	return a.pc.AddICECandidate(candidate)
}

func (a *adapter) Close() error {
	return a.pc.Close()
}
