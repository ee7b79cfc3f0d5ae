package tui

import (
	"path/filepath"
	"testing"

	"github.com/DachengChen/aibridge/config"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/require"
)

func newTestSettings(t *testing.T) (*SettingsView, *config.AppConfig, string) {
	t.Helper()
	t.Setenv("AIBRIDGE_API_URL", "")
	t.Setenv("AIBRIDGE_REMOTE_HOST", "")
	dir := t.TempDir()
	endpoints, err := config.OpenEndpointStore(filepath.Join(dir, "endpoints.json"))
	require.NoError(t, err)
	cfg := config.Default()
	path := filepath.Join(dir, "config.json")
	return NewSettingsView(cfg, path, endpoints), cfg, path
}

func editField(t *testing.T, v *SettingsView, field int, value string) {
	t.Helper()
	v.focusField = field
	v.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.True(t, v.WantsTextInput())
	v.Update(tea.KeyMsg{Type: tea.KeyCtrlU})
	v.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(value)})
	v.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.False(t, v.WantsTextInput())
}

func TestSettingsView_SaveAppliesAndPersists(t *testing.T) {
	v, cfg, path := newTestSettings(t)
	wantTools := !cfg.Remote.UseTools

	editField(t, v, fieldAPIURL, "http://localhost:9999/chat")
	editField(t, v, fieldRemotePort, "9090")
	v.focusField = fieldRemoteTools
	v.Update(tea.KeyMsg{Type: tea.KeyEnter})

	v.focusField = fieldSaveConfig
	_, cmd := v.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	require.Equal(t, "http://localhost:9999/chat", cfg.Relay.APIURL)
	require.Equal(t, 9090, cfg.Remote.Port)
	require.Equal(t, wantTools, cfg.Remote.UseTools)

	v.Update(cmd())
	require.NoError(t, v.err)
	require.Equal(t, "Settings saved!", v.statusMsg)

	loaded, err := config.LoadAppConfigFrom(path)
	require.NoError(t, err)
	require.Equal(t, "http://localhost:9999/chat", loaded.Relay.APIURL)
	require.Equal(t, 9090, loaded.Remote.Port)
	require.Equal(t, wantTools, loaded.Remote.UseTools)
}

func TestSettingsView_EscRestoresField(t *testing.T) {
	v, cfg, _ := newTestSettings(t)
	original := v.fields[fieldAPIURL]

	v.focusField = fieldAPIURL
	v.Update(tea.KeyMsg{Type: tea.KeyEnter})
	v.Update(tea.KeyMsg{Type: tea.KeyCtrlU})
	v.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("http://typo")})
	require.Equal(t, "http://typo", v.fields[fieldAPIURL])

	v.Update(tea.KeyMsg{Type: tea.KeyEsc})
	require.False(t, v.WantsTextInput())
	require.Equal(t, original, v.fields[fieldAPIURL])
	require.Equal(t, original, cfg.Relay.APIURL)

	editField(t, v, fieldAPIURL, "http://kept")
	require.Equal(t, "http://kept", v.fields[fieldAPIURL])
}

func TestSettingsView_InvalidPortLeavesConfigUntouched(t *testing.T) {
	v, cfg, _ := newTestSettings(t)

	editField(t, v, fieldAPIURL, "http://changed")
	editField(t, v, fieldRemotePort, "eighty")
	v.focusField = fieldSaveConfig
	_, cmd := v.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.Nil(t, cmd)
	require.Error(t, v.err)
	require.Equal(t, config.DefaultAPIURL, cfg.Relay.APIURL)
}

func TestSettingsView_Endpoints(t *testing.T) {
	v, _, _ := newTestSettings(t)

	editField(t, v, fieldEndpointName, "local")
	editField(t, v, fieldAPIURL, "http://localhost:9999")
	v.focusField = fieldSaveEndpoint
	v.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NoError(t, v.err)

	editField(t, v, fieldEndpointName, "prod")
	editField(t, v, fieldAPIURL, "https://ai.example.org")
	v.focusField = fieldSaveEndpoint
	v.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.Len(t, v.endpoints.Endpoints, 2)

	// Cycling the saved list loads the URL into the form.
	v.focusField = fieldSaved
	v.Update(tea.KeyMsg{Type: tea.KeyRight})
	require.Equal(t, "local", v.fields[fieldEndpointName])
	require.Equal(t, "http://localhost:9999", v.fields[fieldAPIURL])

	v.focusField = fieldDeleteEndpoint
	v.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.Len(t, v.endpoints.Endpoints, 1)
	require.Equal(t, "prod", v.endpoints.Endpoints[0].Name)

	reopened, err := config.OpenEndpointStore(v.endpoints.Path())
	require.NoError(t, err)
	require.Len(t, reopened.Endpoints, 1)
}

func TestSettingsView_NavigationSkipsHiddenFields(t *testing.T) {
	v, _, _ := newTestSettings(t)
	require.False(t, v.hasSaved())

	v.focusField = fieldSaveEndpoint
	v.Update(tea.KeyMsg{Type: tea.KeyDown})
	require.Equal(t, fieldEndpointName, v.focusField)

	v.Update(tea.KeyMsg{Type: tea.KeyUp})
	require.Equal(t, fieldSaveEndpoint, v.focusField)
}
