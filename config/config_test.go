package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadAppConfigFrom_MissingFileGivesDefaults(t *testing.T) {
	t.Setenv("AIBRIDGE_API_URL", "")
	t.Setenv("AIBRIDGE_HISTORY_DSN", "")
	t.Setenv("AIBRIDGE_LOG_LEVEL", "")
	t.Setenv("AIBRIDGE_REMOTE_HOST", "")

	cfg, err := LoadAppConfigFrom(filepath.Join(t.TempDir(), "missing.json"))
	require.NoError(t, err)
	require.Equal(t, Default(), cfg)
	require.Equal(t, DefaultAPIURL, cfg.Relay.APIURL)
	require.NoError(t, cfg.Validate())
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	t.Setenv("AIBRIDGE_API_URL", "")
	path := filepath.Join(t.TempDir(), "nested", "config.json")

	cfg := Default()
	cfg.Relay.APIURL = "http://localhost:9999/chat"
	cfg.Remote.Port = 9090
	cfg.History.DSN = "postgres://u@localhost/db"
	require.NoError(t, SaveAppConfigTo(path, cfg))

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0600), info.Mode().Perm())

	loaded, err := LoadAppConfigFrom(path)
	require.NoError(t, err)
	require.Equal(t, "http://localhost:9999/chat", loaded.Relay.APIURL)
	require.Equal(t, 9090, loaded.Remote.Port)
	require.Equal(t, "postgres://u@localhost/db", loaded.History.DSN)
}

func TestLoadAppConfigFrom_PartialFileKeepsDefaults(t *testing.T) {
	t.Setenv("AIBRIDGE_API_URL", "")
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"relay":{"api_url":"http://x/ai"}}`), 0600))

	cfg, err := LoadAppConfigFrom(path)
	require.NoError(t, err)
	require.Equal(t, "http://x/ai", cfg.Relay.APIURL)
	require.Equal(t, 8080, cfg.Remote.Port)
	require.Equal(t, "info", cfg.Log.Level)
	require.True(t, cfg.Remote.AskBeforeTools)
	require.Equal(t, 5, cfg.Remote.ReconnectAttempts)
}

func TestLoadAppConfigFrom_EnvOverrides(t *testing.T) {
	t.Setenv("AIBRIDGE_API_URL", "http://env/ai")
	t.Setenv("AIBRIDGE_HISTORY_DSN", "postgres://env")
	t.Setenv("AIBRIDGE_LOG_LEVEL", "debug")
	t.Setenv("AIBRIDGE_REMOTE_HOST", "agent.local")

	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"relay":{"api_url":"http://file/ai"}}`), 0600))

	cfg, err := LoadAppConfigFrom(path)
	require.NoError(t, err)
	require.Equal(t, "http://env/ai", cfg.Relay.APIURL)
	require.Equal(t, "postgres://env", cfg.History.DSN)
	require.Equal(t, "debug", cfg.Log.Level)
	require.Equal(t, "agent.local:8080", cfg.Remote.Addr())
}

func TestLoadAppConfigFrom_BadJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{`), 0600))

	_, err := LoadAppConfigFrom(path)
	require.Error(t, err)
	require.Contains(t, err.Error(), "parse")
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Relay.APIURL = "not even a url"
	require.NoError(t, cfg.Validate(), "api url is never validated")

	cfg = Default()
	cfg.Remote.Port = 0
	require.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Tunnel.Enabled = true
	require.Error(t, cfg.Validate())
	cfg.Tunnel.Host = "bastion"
	cfg.Tunnel.User = "me"
	require.NoError(t, cfg.Validate())

	cfg = Default()
	cfg.Remote.ReconnectAttempts = -1
	require.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Log.Level = "loud"
	require.Error(t, cfg.Validate())
}
