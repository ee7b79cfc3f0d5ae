package tui

import (
	"github.com/DachengChen/aibridge/bridge"
	"github.com/DachengChen/aibridge/config"
	"github.com/DachengChen/aibridge/history"
	tea "github.com/charmbracelet/bubbletea"
)

// Deps is everything the TUI needs from the command layer.
type Deps struct {
	Config     *config.AppConfig
	ConfigPath string
	Bridge     *bridge.Bridge
	History    history.Store
	// Endpoints may be nil when the store could not be loaded.
	Endpoints *config.EndpointStore
	// Dial routes remote-agent traffic; nil dials directly.
	Dial DialFunc
}

// Start launches the TUI and blocks until it exits.
func Start(deps Deps) error {
	p := tea.NewProgram(NewApp(deps), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
