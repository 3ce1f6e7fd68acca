package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultServerConfiguration(t *testing.T) {
	cfg := DefaultServerConfiguration()
	assert.Equal(t, DefaultHost, cfg.Host)
	assert.Equal(t, DefaultPort, cfg.Port)
	assert.Equal(t, DefaultTurn, cfg.Turn)
	assert.Equal(t, DefaultStun, cfg.Stun)
}

func TestLoadWithoutConfigFileUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, DefaultHost, cfg.Host)
	assert.Equal(t, DefaultPort, cfg.Port)
}

func TestValidateCredentialConfig(t *testing.T) {
	valid := CredentialConfig{
		SIPUser:     "1000",
		SIPPassword: "secret",
		LogLevel:    LogInfo,
	}
	assert.NoError(t, Validate(valid))

	missing := CredentialConfig{SIPUser: "1000"}
	assert.Error(t, Validate(missing))
}

func TestValidateTokenConfig(t *testing.T) {
	valid := TokenConfig{SIPToken: "jwt", LogLevel: LogInfo}
	assert.NoError(t, Validate(valid))

	missing := TokenConfig{}
	assert.Error(t, Validate(missing))
}
