package codec

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	params := CallParams{
		SessionID: "sess-1",
		SDP:       "v=0...",
		DialogParams: DialogParamsOut{
			CallerIDName:      "Alice",
			CallerIDNumber:    "1000",
			CallID:            "call-1",
			DestinationNumber: "2000",
		},
	}

	body, id, err := Encode(MethodInvite, params)
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	env, err := Decode(body)
	require.NoError(t, err)
	assert.Equal(t, id, env.ID)
	assert.Equal(t, MethodInvite, env.Method)

	var decoded CallParams
	require.NoError(t, json.Unmarshal(env.Params, &decoded))
	assert.Equal(t, params, decoded)
}

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		env  Envelope
		want Kind
	}{
		{"login", Envelope{Method: MethodLogin}, KindLoginResult},
		{"gatewayState", Envelope{Method: MethodGatewayState}, KindGatewayState},
		{"clientReady", Envelope{Method: MethodClientReady}, KindClientReady},
		{"invite", Envelope{Method: MethodInvite}, KindInvite},
		{"answer", Envelope{Method: MethodAnswer}, KindAnswer},
		{"media", Envelope{Method: MethodMedia}, KindMedia},
		{"ringing", Envelope{Method: MethodRinging}, KindRinging},
		{"bye", Envelope{Method: MethodBye}, KindBye},
		{"error overrides method", Envelope{Method: MethodInvite, Error: &RPCError{Message: "boom"}}, KindErrorFrame},
		{"unknown", Envelope{Method: "something.else"}, KindUnknown},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Classify(&tc.env))
		})
	}
}

func TestDecodeGatewayStateResult(t *testing.T) {
	raw := []byte(`{"method":"telnyx_rtc.gatewayState","result":{"sessid":"S1","params":{"state":"REGED"}}}`)
	env, err := Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, KindGatewayState, Classify(env))

	var result GatewayStateResult
	require.NoError(t, json.Unmarshal(env.Result, &result))
	assert.Equal(t, "S1", result.SessID)
	assert.Equal(t, "REGED", result.Params.State)
}

func TestDecodeMalformedFrame(t *testing.T) {
	_, err := Decode([]byte(`{not json`))
	assert.Error(t, err)
}
