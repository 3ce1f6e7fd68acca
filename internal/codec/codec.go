// Package codec implements the Verto wire envelope (spec.md §3, §4.2):
// encoding outgoing request bodies, decoding incoming envelopes, and
// classifying them by method so SignalingSession can route each one to the
// right handler.
package codec

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// Method names, exactly as listed in spec.md §4.2's dispatch table.
const (
	MethodLogin         = "login"
	MethodGatewayState  = "telnyx_rtc.gatewayState"
	MethodClientReady   = "telnyx_rtc.clientReady"
	MethodInvite        = "telnyx_rtc.invite"
	MethodAnswer        = "telnyx_rtc.answer"
	MethodMedia         = "telnyx_rtc.media"
	MethodRinging       = "telnyx_rtc.ringing"
	MethodBye           = "telnyx_rtc.bye"
	MethodModify        = "telnyx_rtc.modify"
	MethodInfo          = "telnyx_rtc.info"
	MethodInviteRequest = MethodInvite // outgoing invite uses the same method name
)

// RPCError is the `error` member of a received envelope.
type RPCError struct {
	Code    int    `json:"code,omitempty"`
	Message string `json:"message"`
}

// Envelope is the wire shape for both directions (spec.md §3). Sent
// envelopes populate ID/Method/Params; received ones may additionally carry
// Result or Error.
type Envelope struct {
	JSONRPC string          `json:"jsonrpc,omitempty"`
	ID      string          `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// Decode parses a raw inbound text frame into an Envelope.
func Decode(raw []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("decoding envelope: %w", err)
	}
	return &env, nil
}

// Encode builds the `{id, method, params}` shape for an outgoing request
// and serializes it to JSON, assigning a fresh request ID.
func Encode(method string, params any) ([]byte, string, error) {
	id := uuid.NewString()
	payload, err := json.Marshal(params)
	if err != nil {
		return nil, "", fmt.Errorf("marshalling params for %s: %w", method, err)
	}

	env := Envelope{
		JSONRPC: "2.0",
		ID:      id,
		Method:  method,
		Params:  payload,
	}
	body, err := json.Marshal(env)
	if err != nil {
		return nil, "", fmt.Errorf("marshalling envelope for %s: %w", method, err)
	}
	return body, id, nil
}

// Kind is the dispatch classification of an inbound Envelope (spec.md §4.2's
// table, plus KindUnknown for anything else and KindErrorFrame for any
// envelope carrying a top-level error regardless of method).
type Kind int

const (
	KindUnknown Kind = iota
	KindLoginResult
	KindGatewayState
	KindClientReady
	KindInvite
	KindAnswer
	KindMedia
	KindRinging
	KindBye
	KindErrorFrame
)

// Classify inspects method/error and returns the handler this envelope
// should be routed to.
func Classify(env *Envelope) Kind {
	if env.Error != nil {
		return KindErrorFrame
	}
	switch env.Method {
	case MethodLogin:
		return KindLoginResult
	case MethodGatewayState:
		return KindGatewayState
	case MethodClientReady:
		return KindClientReady
	case MethodInvite:
		return KindInvite
	case MethodAnswer:
		return KindAnswer
	case MethodMedia:
		return KindMedia
	case MethodRinging:
		return KindRinging
	case MethodBye:
		return KindBye
	default:
		return KindUnknown
	}
}

// LoginResult is the `result` payload of a successful login envelope.
type LoginResult struct {
	SessID string `json:"sessid"`
}

// GatewayStateParams is the nested `params` of a gatewayState envelope.
type GatewayStateParams struct {
	State string `json:"state"`
}

// GatewayStateResult is the `result` payload of a gatewayState envelope —
// note that, unlike a plain notification, this carries both sessid and a
// nested params.state (scenario 2/3 in spec.md §8).
type GatewayStateResult struct {
	SessID string             `json:"sessid"`
	Params GatewayStateParams `json:"params"`
}

// DialogParamsIn is the subset of dialogParams carried on inbound call
// frames that this engine reads.
type DialogParamsIn struct {
	CallID          string `json:"callID"`
	CallerIDName    string `json:"caller_id_name"`
	CallerIDNumber  string `json:"caller_id_number"`
	TelnyxSessionID string `json:"telnyx_session_id"`
	TelnyxLegID     string `json:"telnyx_leg_id"`
}

// InviteParams is the `params` of an inbound telnyx_rtc.invite envelope.
type InviteParams struct {
	CallID       string         `json:"callID"`
	SDP          string         `json:"sdp"`
	DialogParams DialogParamsIn `json:"dialogParams"`
}

// AnswerParams is the `params` of an inbound telnyx_rtc.answer envelope.
// SDP is absent in the "early media already delivered" and "rejected"
// branches (spec.md §4.4's onAnswerReceived).
type AnswerParams struct {
	CallID string `json:"callID"`
	SDP    string `json:"sdp,omitempty"`
}

// MediaParams is the `params` of an inbound telnyx_rtc.media envelope.
type MediaParams struct {
	CallID string `json:"callID"`
	SDP    string `json:"sdp,omitempty"`
}

// ByeParamsIn is the `params` of an inbound telnyx_rtc.bye envelope.
type ByeParamsIn struct {
	CallID string `json:"callID"`
}

// RingingParamsIn is the `params` of an inbound telnyx_rtc.ringing envelope.
type RingingParamsIn struct {
	CallID string `json:"callID"`
}

// --- Outgoing request bodies (spec.md §3) ---

// UserVariables is attached to every login request.
type UserVariables struct {
	PushDeviceToken           string `json:"push_device_token,omitempty"`
	PushNotificationProvider  string `json:"push_notification_provider,omitempty"`
}

// LoginParam is the `params` of an outgoing login request. Exactly one of
// (Login, Passwd) or LoginToken is set, matching the Credential/Token sum.
type LoginParam struct {
	Login         string        `json:"login,omitempty"`
	Passwd        string        `json:"passwd,omitempty"`
	LoginToken    string        `json:"login_token,omitempty"`
	UserVariables UserVariables `json:"userVariables"`
}

// StateParams is the `params` of an outgoing gatewayState poll request.
type StateParams struct {
	State *string `json:"state"`
}

// DialogParamsOut is the dialogParams block shared by invite/bye/modify/info.
type DialogParamsOut struct {
	CallerIDName      string `json:"callerIdName,omitempty"`
	CallerIDNumber    string `json:"callerIdNumber,omitempty"`
	ClientState       string `json:"clientState,omitempty"`
	CallID            string `json:"callId"`
	DestinationNumber string `json:"destinationNumber,omitempty"`
}

// CallParams is the `params` of an outgoing invite or answer request.
type CallParams struct {
	SessionID    string          `json:"sessionId"`
	SDP          string          `json:"sdp"`
	DialogParams DialogParamsOut `json:"dialogParams"`
}

// ByeParams is the `params` of an outgoing bye request.
type ByeParams struct {
	SessionID    string          `json:"sessionId"`
	CauseCode    int             `json:"causeCode"`
	CauseName    string          `json:"causeName"`
	DialogParams DialogParamsOut `json:"dialogParams"`
}

// ModifyParams is the `params` of an outgoing hold/unhold request.
type ModifyParams struct {
	SessionID    string          `json:"sessionId"`
	Action       string          `json:"action"`
	DialogParams DialogParamsOut `json:"dialogParams"`
}

// InfoParam is the `params` of an outgoing DTMF request.
type InfoParam struct {
	SessionID    string          `json:"sessionId"`
	DTMF         string          `json:"dtmf"`
	DialogParams DialogParamsOut `json:"dialogParams"`
}
