package sdpinfo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

const sampleSDP = "v=0\r\n" +
	"o=- 0 0 IN IP4 127.0.0.1\r\n" +
	"s=-\r\n" +
	"t=0 0\r\n" +
	"m=audio 49170 RTP/AVP 0\r\n" +
	"c=IN IP4 127.0.0.1\r\n" +
	"a=ice-ufrag:abcd\r\n" +
	"a=ice-pwd:efgh\r\n"

func TestSummarizeValidSDP(t *testing.T) {
	summary, ok := Summarize(sampleSDP)
	assert.True(t, ok)
	assert.Equal(t, []string{"audio"}, summary.MediaTypes)
	assert.True(t, summary.HasICE)
}

func TestSummarizeMalformedSDP(t *testing.T) {
	_, ok := Summarize("not an sdp body")
	assert.False(t, ok)
}
