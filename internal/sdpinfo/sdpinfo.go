// Package sdpinfo summarizes an SDP blob for structured logging. It never
// gates call progress on a parse failure — the raw SDP still reaches the
// peer connection unmodified (spec.md §4.4, §7's MalformedFrame posture is
// reserved for wire envelopes, not opaque SDP bodies).
//
// Grounded on sebacius-switchboard's services/rtpmanager/sdp/builder.go use
// of github.com/pion/sdp/v3.
package sdpinfo

import (
	"log/slog"

	"github.com/pion/sdp/v3"
)

// Summary is a coarse, log-friendly description of an SDP session.
type Summary struct {
	SessionName string
	MediaTypes  []string
	HasICE      bool
}

// Summarize parses raw just far enough to describe it. A parse failure
// returns ok=false and logs at Warn; callers must not fail the call on it.
func Summarize(raw string) (Summary, bool) {
	var desc sdp.SessionDescription
	if err := desc.Unmarshal([]byte(raw)); err != nil {
		slog.Warn("sdpinfo: failed to parse SDP for logging", "error", err)
		return Summary{}, false
	}

	var mediaTypes []string
	hasICE := false
	for _, m := range desc.MediaDescriptions {
		mediaTypes = append(mediaTypes, m.MediaName.Media)
		for _, attr := range m.Attributes {
			if attr.Key == "ice-ufrag" || attr.Key == "ice-pwd" {
				hasICE = true
			}
		}
	}

	return Summary{
		SessionName: string(desc.SessionName),
		MediaTypes:  mediaTypes,
		HasICE:      hasICE,
	}, true
}

// Log emits the summary at Debug level, tagged with callID for
// correlation. A parse failure is only logged, at Warn, by Summarize.
func Log(callID, label, raw string) {
	summary, ok := Summarize(raw)
	if !ok {
		return
	}
	slog.Debug("sdpinfo: summary",
		"callId", callID,
		"label", label,
		"mediaTypes", summary.MediaTypes,
		"hasIce", summary.HasICE,
	)
}
