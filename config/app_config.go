// app_config.go loads and saves ~/.aibridge/config.json.
//
// Environment variables override file values:
// AIBRIDGE_API_URL, AIBRIDGE_HISTORY_DSN, AIBRIDGE_LOG_LEVEL,
// AIBRIDGE_REMOTE_HOST.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// DefaultAPIURL is used until the user configures an endpoint.
const DefaultAPIURL = "https://api.example.com/ai"

// AppConfig is the top-level config file structure.
type AppConfig struct {
	Relay   RelayConfig   `json:"relay"`
	Remote  RemoteConfig  `json:"remote"`
	Tunnel  TunnelConfig  `json:"tunnel"`
	History HistoryConfig `json:"history"`
	Log     LogConfig     `json:"log"`
}

// Default returns sensible defaults.
func Default() *AppConfig {
	return &AppConfig{
		Relay: RelayConfig{
			APIURL: DefaultAPIURL,
		},
		Remote: RemoteConfig{
			Host:           "127.0.0.1",
			Port:           8080,
			TimeoutSeconds: 30,
			UseTools:       true,
			AskBeforeTools: true,
			MaxTokens:      2000,

			ReconnectAttempts:     5,
			ReconnectDelaySeconds: 3,
		},
		Tunnel: TunnelConfig{
			Port: 22,
		},
		History: HistoryConfig{
			Limit: 200,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// DefaultPath returns ~/.aibridge/config.json.
func DefaultPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrap(err, "resolve home directory")
	}
	return filepath.Join(homeDir, ".aibridge", "config.json"), nil
}

// LoadAppConfig reads the default config file; returns defaults if not found.
func LoadAppConfig() (*AppConfig, error) {
	path, err := DefaultPath()
	if err != nil {
		cfg := Default()
		applyEnv(cfg)
		return cfg, nil
	}
	return LoadAppConfigFrom(path)
}

// LoadAppConfigFrom reads path; a missing file yields defaults.
func LoadAppConfigFrom(path string) (*AppConfig, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, errors.Wrapf(err, "parse %s", path)
		}
	case os.IsNotExist(err):
	default:
		return nil, errors.Wrapf(err, "read %s", path)
	}

	applyEnv(cfg)
	return cfg, nil
}

// SaveAppConfig writes cfg to the default path.
func SaveAppConfig(cfg *AppConfig) error {
	path, err := DefaultPath()
	if err != nil {
		return err
	}
	return SaveAppConfigTo(path, cfg)
}

// SaveAppConfigTo writes cfg to path, creating its directory.
func SaveAppConfigTo(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return errors.Wrap(err, "create config dir")
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encode config")
	}

	return os.WriteFile(path, data, 0600)
}

func applyEnv(cfg *AppConfig) {
	if v := os.Getenv("AIBRIDGE_API_URL"); v != "" {
		cfg.Relay.APIURL = v
	}
	if v := os.Getenv("AIBRIDGE_HISTORY_DSN"); v != "" {
		cfg.History.DSN = v
	}
	if v := os.Getenv("AIBRIDGE_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("AIBRIDGE_REMOTE_HOST"); v != "" {
		cfg.Remote.Host = v
	}
}
