// Package config holds the engine's configuration surface: the credential
// and token login variants, the signaling server endpoint, and the defaults
// loader. Grounded on thatcooperguy-nvremote's internal/config/config.go
// (viper SetDefault/SetEnvPrefix/BindEnv/Unmarshal), adapted from a single
// host-agent config struct to the client's CredentialConfig/TokenConfig/
// TxServerConfiguration split named in spec.md §6.
package config

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// LogLevel mirrors spec.md §6's log-level enum.
type LogLevel string

const (
	LogAll     LogLevel = "ALL"
	LogNone    LogLevel = "NONE"
	LogVerbose LogLevel = "VERBO"
	LogDebug   LogLevel = "DEBUG"
	LogInfo    LogLevel = "INFO"
	LogWarning LogLevel = "WARNING"
	LogError   LogLevel = "ERROR"
)

// Defaults from spec.md §6.
const (
	DefaultHost             = "rtc.telnyx.com"
	DefaultPort             = 14938
	DefaultTurn             = "turn:turn.telnyx.com:3478?transport=tcp"
	DefaultStun             = "stun:stun.telnyx.com:3843"
	DefaultGatewayPollMS    = 3000
	DefaultMaxRegRetries    = 2
	DefaultICEGatherDelayMS = 300
)

// TxServerConfiguration is the signaling endpoint and ICE relay surface
// (spec.md §6's TxServerConfiguration).
type TxServerConfiguration struct {
	Host string `mapstructure:"host" yaml:"host" validate:"required"`
	Port int    `mapstructure:"port" yaml:"port" validate:"required"`
	Turn string `mapstructure:"turn" yaml:"turn"`
	Stun string `mapstructure:"stun" yaml:"stun"`
}

// DefaultServerConfiguration returns the production defaults from spec.md §6.
func DefaultServerConfiguration() TxServerConfiguration {
	return TxServerConfiguration{
		Host: DefaultHost,
		Port: DefaultPort,
		Turn: DefaultTurn,
		Stun: DefaultStun,
	}
}

// CredentialSource is the closed, two-case sum the design notes call for
// (§9: "Credential(user, pass), Token(jwt)") instead of an open interface
// hierarchy. Both CredentialConfig and TokenConfig implement it.
type CredentialSource interface {
	isCredentialSource()
}

// CredentialConfig logs in with a SIP user/password pair.
type CredentialConfig struct {
	SIPUser           string   `mapstructure:"sip_user" yaml:"sip_user" validate:"required"`
	SIPPassword       string   `mapstructure:"sip_password" yaml:"sip_password" validate:"required"`
	SIPCallerIDName   string   `mapstructure:"sip_caller_id_name" yaml:"sip_caller_id_name"`
	SIPCallerIDNumber string   `mapstructure:"sip_caller_id_number" yaml:"sip_caller_id_number"`
	FCMToken          string   `mapstructure:"fcm_token" yaml:"fcm_token"`
	Ringtone          string   `mapstructure:"ringtone" yaml:"ringtone"`
	Ringback          string   `mapstructure:"ringback" yaml:"ringback"`
	LogLevel          LogLevel `mapstructure:"log_level" yaml:"log_level" validate:"required"`
}

func (CredentialConfig) isCredentialSource() {}

// TokenConfig logs in with a pre-issued JWT.
type TokenConfig struct {
	SIPToken          string   `mapstructure:"sip_token" yaml:"sip_token" validate:"required"`
	SIPCallerIDName   string   `mapstructure:"sip_caller_id_name" yaml:"sip_caller_id_name"`
	SIPCallerIDNumber string   `mapstructure:"sip_caller_id_number" yaml:"sip_caller_id_number"`
	FCMToken          string   `mapstructure:"fcm_token" yaml:"fcm_token"`
	Ringtone          string   `mapstructure:"ringtone" yaml:"ringtone"`
	Ringback          string   `mapstructure:"ringback" yaml:"ringback"`
	LogLevel          LogLevel `mapstructure:"log_level" yaml:"log_level" validate:"required"`
}

func (TokenConfig) isCredentialSource() {}

var validate = validator.New()

// Validate runs struct-tag validation on a CredentialConfig or TokenConfig.
func Validate(cfg CredentialSource) error {
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("validating config: %w", err)
	}
	return nil
}

// Load reads a TxServerConfiguration from the spec.md §6 defaults,
// configPath (if non-empty), and environment variables prefixed VERTO_, in
// that increasing order of precedence — mirroring thatcooperguy-nvremote's
// config.Load.
func Load(configPath string) (TxServerConfiguration, error) {
	v := viper.New()

	defaults := DefaultServerConfiguration()
	v.SetDefault("host", defaults.Host)
	v.SetDefault("port", defaults.Port)
	v.SetDefault("turn", defaults.Turn)
	v.SetDefault("stun", defaults.Stun)

	if configPath != "" {
		v.SetConfigFile(configPath)
	}

	v.SetEnvPrefix("VERTO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	envBindings := map[string]string{
		"host": "VERTO_HOST",
		"port": "VERTO_PORT",
		"turn": "VERTO_TURN",
		"stun": "VERTO_STUN",
	}
	for key, env := range envBindings {
		_ = v.BindEnv(key, env)
	}

	if configPath != "" {
		if err := v.ReadInConfig(); err != nil {
			return TxServerConfiguration{}, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg TxServerConfiguration
	if err := v.Unmarshal(&cfg); err != nil {
		return TxServerConfiguration{}, fmt.Errorf("unmarshalling server configuration: %w", err)
	}

	return cfg, nil
}
