// messages.go defines Bubble Tea messages used for async communication.
//
// Relay calls, history reads and remote-agent requests all run inside
// tea.Cmd functions and report back through these types, so the UI never
// blocks on the network.
package tui

import (
	"github.com/DachengChen/aibridge/history"
	"github.com/DachengChen/aibridge/remote"
)

// AIResponseMsg is sent when a relay call completes.
type AIResponseMsg struct {
	// User is the user entry with its final status.
	User history.Entry
	// Reply is the assistant reply, or the error line when Err is set.
	Reply history.Entry
	Err   error
	Retry bool
}

// HistoryLoadedMsg carries the stored transcript at startup.
type HistoryLoadedMsg struct {
	Entries []history.Entry
	Err     error
}

// HistoryClearedMsg is sent when the store has been cleared.
type HistoryClearedMsg struct {
	Err error
}

// ConfigSavedMsg reports the outcome of writing the config file.
type ConfigSavedMsg struct {
	Err error
}

// RemoteConnectedMsg reports the outcome of connecting to the agent.
type RemoteConnectedMsg struct {
	Client *remote.Client
	Err    error
}

// RemoteCommandsMsg carries the agent's command list.
type RemoteCommandsMsg struct {
	Commands []remote.CommandDefinition
	Err      error
}

// RemoteChunkMsg is one streamed chunk of a remote reply.
type RemoteChunkMsg struct {
	Chunk string
}

// RemoteReplyMsg is the final frame of a remote request.
type RemoteReplyMsg struct {
	Response *remote.Response
	Err      error
}

// RemoteConfirmMsg asks the user to approve a tool or a new turn. The
// decision goes back on reply.
type RemoteConfirmMsg struct {
	Confirmation remote.Confirmation
	reply        chan<- remote.Decision
}

// RemoteStatusMsg reports a connection state change, e.g. a reconnect.
type RemoteStatusMsg struct {
	Status remote.Status
	client *remote.Client
}

// StatusMsg is a transient status message for the status bar.
type StatusMsg string
