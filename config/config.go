// Package config defines the application configuration structures.
//
// Separated from cmd so other packages (tui, history, ssh, remote) can
// depend on config without importing Cobra.
package config

import (
	"net"
	"strconv"

	"github.com/DachengChen/aibridge/applog"
	"github.com/pkg/errors"
)

// RelayConfig holds the AI endpoint used by send_message_to_ai.
// The URL is deliberately not validated here; the relay reports a bad URL
// as a transport failure.
type RelayConfig struct {
	APIURL string `json:"api_url"`
}

// RemoteConfig holds the websocket remote-agent settings.
type RemoteConfig struct {
	Host           string `json:"host"`
	Port           int    `json:"port"`
	TimeoutSeconds int    `json:"timeout_seconds"`
	UseTools       bool   `json:"use_tools"`
	AskBeforeTools bool   `json:"ask_before_tool_execution"`
	MaxTokens      int    `json:"max_tokens,omitempty"`

	// A dropped connection is redialled this many times; 0 disables it.
	ReconnectAttempts     int `json:"reconnect_attempts"`
	ReconnectDelaySeconds int `json:"reconnect_delay_seconds"`
}

// Addr returns host:port for the remote agent.
func (r RemoteConfig) Addr() string {
	return net.JoinHostPort(r.Host, strconv.Itoa(r.Port))
}

// TunnelConfig holds SSH bastion settings. When enabled, relay, remote
// and history traffic is dialled through the bastion.
type TunnelConfig struct {
	Enabled       bool   `json:"enabled"`
	Host          string `json:"host,omitempty"`
	Port          int    `json:"port,omitempty"`
	User          string `json:"user,omitempty"`
	KeyPath       string `json:"key_path,omitempty"`
	KeyPassphrase string `json:"key_passphrase,omitempty"`
}

// HistoryConfig selects the transcript store. An empty DSN keeps the
// transcript in memory.
type HistoryConfig struct {
	DSN   string `json:"dsn,omitempty"`
	Limit int    `json:"limit"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `json:"level"`
}

// Validate checks settings that would otherwise fail late.
func (c *AppConfig) Validate() error {
	if c.Remote.Port <= 0 || c.Remote.Port > 65535 {
		return errors.Errorf("remote.port %d out of range", c.Remote.Port)
	}
	if c.Remote.TimeoutSeconds < 0 {
		return errors.Errorf("remote.timeout_seconds must not be negative")
	}
	if c.Remote.ReconnectAttempts < 0 || c.Remote.ReconnectDelaySeconds < 0 {
		return errors.Errorf("remote reconnect settings must not be negative")
	}
	if c.History.Limit < 0 {
		return errors.Errorf("history.limit must not be negative")
	}
	if c.Tunnel.Enabled {
		if c.Tunnel.Host == "" || c.Tunnel.User == "" {
			return errors.New("tunnel.host and tunnel.user are required when the tunnel is enabled")
		}
		if c.Tunnel.Port <= 0 || c.Tunnel.Port > 65535 {
			return errors.Errorf("tunnel.port %d out of range", c.Tunnel.Port)
		}
	}
	if _, err := applog.ParseLevel(c.Log.Level); err != nil {
		return err
	}
	return nil
}
