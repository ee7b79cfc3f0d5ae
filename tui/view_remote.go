// view_remote.go is a console for the websocket remote agent.
//
// Streamed chunks are forwarded through a channel and picked up one
// message at a time by waitForRemote, so the transcript grows while the
// agent is still answering. Confirmation prompts and connection status
// changes arrive the same way on a second, long-lived channel.
package tui

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/DachengChen/aibridge/applog"
	"github.com/DachengChen/aibridge/config"
	"github.com/DachengChen/aibridge/remote"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// DialFunc routes remote traffic, e.g. through the SSH bastion.
type DialFunc func(ctx context.Context, network, addr string) (net.Conn, error)

// RemoteView talks to the remote agent.
type RemoteView struct {
	cfg      *config.AppConfig
	dial     DialFunc
	client   *remote.Client
	viewport *Viewport

	lines      []string
	partial    strings.Builder
	input      string
	stream     bool
	busy       bool
	connecting bool
	commands   []remote.CommandDefinition
	pending    chan tea.Msg
	events     chan tea.Msg
	asking     *RemoteConfirmMsg
	lost       bool // connection dropped, reconnect under way
	err        error
	width      int
	height     int
}

// NewRemoteView creates the view. dial may be nil.
func NewRemoteView(cfg *config.AppConfig, dial DialFunc) *RemoteView {
	return &RemoteView{
		cfg:      cfg,
		dial:     dial,
		viewport: NewViewport(80, 20),
		stream:   true,
		events:   make(chan tea.Msg, 16),
	}
}

func (v *RemoteView) Name() string { return "Remote" }

func (v *RemoteView) WantsTextInput() bool { return true }

func (v *RemoteView) SetSize(width, height int) {
	v.width = width
	v.height = height
	v.viewport.SetSize(width-2, height-5)
}

func (v *RemoteView) ShortHelp() []KeyBinding {
	if v.asking != nil {
		return []KeyBinding{
			{Key: "y", Desc: "approve"},
			{Key: "n/Esc", Desc: "reject"},
		}
	}
	connect := "connect"
	if v.active() {
		connect = "disconnect"
	}
	return []KeyBinding{
		{Key: "Ctrl+O", Desc: connect},
		{Key: "Enter", Desc: "send"},
		{Key: "Ctrl+G", Desc: "commands"},
		{Key: "Ctrl+S", Desc: "stream on/off"},
	}
}

// Status reports the agent connection state for the header.
func (v *RemoteView) Status() remote.Status {
	if v.client == nil {
		if v.connecting {
			return remote.StatusConnecting
		}
		return remote.StatusDisconnected
	}
	return v.client.Status()
}

func (v *RemoteView) connected() bool {
	return v.Status() == remote.StatusConnected
}

// active is true while the client is connected or trying to get back.
func (v *RemoteView) active() bool {
	s := v.Status()
	return s == remote.StatusConnected || s == remote.StatusReconnecting
}

func (v *RemoteView) Init() tea.Cmd {
	v.refresh()
	return waitForRemote(v.events)
}

func (v *RemoteView) Update(msg tea.Msg) (View, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return v.handleKey(msg)

	case RemoteConnectedMsg:
		v.connecting = false
		if msg.Err != nil {
			v.err = msg.Err
			v.addLine(StyleError.Render("✗ " + msg.Err.Error()))
			return v, nil
		}
		v.client = msg.Client
		v.err = nil
		v.addLine(StyleSuccess.Render("✓ connected to " + v.cfg.Remote.Addr()))
		return v, v.fetchCommands()

	case RemoteCommandsMsg:
		if msg.Err != nil {
			v.addLine(StyleWarning.Render("commands unavailable: " + msg.Err.Error()))
			return v, nil
		}
		v.commands = msg.Commands
		v.refresh()
		return v, nil

	case RemoteChunkMsg:
		v.partial.WriteString(msg.Chunk)
		v.refresh()
		return v, waitForRemote(v.pending)

	case RemoteReplyMsg:
		v.busy = false
		v.pending = nil
		v.partial.Reset()
		v.showReply(msg)
		return v, nil

	case RemoteConfirmMsg:
		if v.asking != nil {
			// One prompt at a time; the newer question is rejected.
			msg.reply <- remote.Decision{Reason: "another confirmation is pending"}
			return v, waitForRemote(v.events)
		}
		v.asking = &msg
		v.addLine(StyleWarning.Render("? " + describeConfirmation(msg.Confirmation) + "  [y/n]"))
		return v, waitForRemote(v.events)

	case RemoteStatusMsg:
		if msg.client == v.client {
			v.showStatus(msg.Status)
		}
		return v, waitForRemote(v.events)
	}
	return v, nil
}

func (v *RemoteView) showStatus(s remote.Status) {
	if v.client == nil {
		return
	}
	switch s {
	case remote.StatusReconnecting:
		if !v.lost {
			v.lost = true
			v.addLine(StyleWarning.Render("connection lost, reconnecting..."))
		}
	case remote.StatusConnected:
		if v.lost {
			v.lost = false
			v.addLine(StyleSuccess.Render("✓ reconnected to " + v.cfg.Remote.Addr()))
		}
	case remote.StatusDisconnected:
		v.lost = false
		v.addLine(StyleError.Render("✗ connection to agent lost (Ctrl+O to connect)"))
	default:
		return
	}
	v.refresh()
}

func (v *RemoteView) answer(approved bool) {
	ask := v.asking
	v.asking = nil
	d := remote.Decision{Approved: approved}
	if approved {
		v.addLine(StyleSuccess.Render("  approved"))
	} else {
		d.Reason = "rejected by user"
		v.addLine(StyleError.Render("  rejected"))
	}
	ask.reply <- d
}

func (v *RemoteView) handleKey(msg tea.KeyMsg) (View, tea.Cmd) {
	if v.asking != nil {
		switch msg.String() {
		case "y", "Y":
			v.answer(true)
			return v, nil
		case "n", "N", "esc":
			v.answer(false)
			return v, nil
		}
	}

	switch msg.String() {
	case "ctrl+o":
		if v.active() {
			v.disconnect()
			return v, nil
		}
		return v, v.connect()
	case "ctrl+g":
		return v, v.fetchCommands()
	case "ctrl+s":
		v.stream = !v.stream
		v.refresh()
	case "enter":
		return v, v.send()
	case "pgup":
		v.viewport.PageUp()
	case "pgdown":
		v.viewport.PageDown()
	case "backspace":
		if r := []rune(v.input); len(r) > 0 {
			v.input = string(r[:len(r)-1])
		}
	case "ctrl+u":
		v.input = ""
	default:
		if msg.Type == tea.KeyRunes {
			v.input += string(msg.Runes)
		} else if msg.Type == tea.KeySpace {
			v.input += " "
		}
	}
	return v, nil
}

func (v *RemoteView) connect() tea.Cmd {
	if v.connecting {
		return nil
	}
	if v.client != nil {
		// A client that gave up reconnecting.
		_ = v.client.Close()
		v.client = nil
	}
	v.connecting = true
	addr := v.cfg.Remote.Addr()
	v.addLine(StyleDimmed.Render("connecting to " + addr + "..."))

	events := v.events
	rc := v.cfg.Remote
	var client *remote.Client
	client = remote.NewClient(remote.Config{
		Addr:              addr,
		Timeout:           time.Duration(rc.TimeoutSeconds) * time.Second,
		Dial:              v.dial,
		ToolCall:          remote.LocalTools,
		Confirm:           askUser(events),
		ReconnectAttempts: rc.ReconnectAttempts,
		ReconnectDelay:    time.Duration(rc.ReconnectDelaySeconds) * time.Second,
		OnStatus: func(s remote.Status) {
			select {
			case events <- RemoteStatusMsg{Status: s, client: client}:
			default:
			}
		},
		Logger: applog.Logger(),
	})
	return func() tea.Msg {
		if err := client.Connect(context.Background()); err != nil {
			return RemoteConnectedMsg{Err: err}
		}
		return RemoteConnectedMsg{Client: client}
	}
}

// askUser forwards confirmations to the view and waits for the answer.
func askUser(events chan<- tea.Msg) remote.ConfirmationHandler {
	return func(ctx context.Context, c remote.Confirmation) (remote.Decision, error) {
		reply := make(chan remote.Decision, 1)
		select {
		case events <- RemoteConfirmMsg{Confirmation: c, reply: reply}:
		case <-ctx.Done():
			return remote.Decision{}, ctx.Err()
		}
		select {
		case d := <-reply:
			return d, nil
		case <-ctx.Done():
			return remote.Decision{}, ctx.Err()
		}
	}
}

func (v *RemoteView) disconnect() {
	if v.asking != nil {
		v.answer(false)
	}
	v.lost = false
	if v.client != nil {
		if err := v.client.Close(); err != nil {
			applog.Error("close remote: %v", err)
		}
	}
	v.client = nil
	v.commands = nil
	v.addLine(StyleDimmed.Render("disconnected"))
}

func (v *RemoteView) fetchCommands() tea.Cmd {
	if !v.connected() {
		return nil
	}
	client := v.client
	return func() tea.Msg {
		cmds, err := client.GetCommands(context.Background())
		return RemoteCommandsMsg{Commands: cmds, Err: err}
	}
}

func (v *RemoteView) send() tea.Cmd {
	text := strings.TrimSpace(v.input)
	if text == "" || v.busy {
		return nil
	}
	if !v.connected() {
		v.addLine(StyleWarning.Render("not connected (Ctrl+O to connect)"))
		return nil
	}

	v.input = ""
	v.busy = true
	v.addLine(styleYou.Render("You: ") + text)

	client := v.client
	stream, useTools := v.stream, v.cfg.Remote.UseTools
	ask := v.cfg.Remote.AskBeforeTools
	reqCfg := &remote.RequestConfig{MaxTokens: v.cfg.Remote.MaxTokens, AskBeforeToolExecution: &ask}
	ch := make(chan tea.Msg, 64)
	v.pending = ch

	go func() {
		defer close(ch)
		sh := &remote.StreamHandler{OnChunk: func(chunk string) { ch <- RemoteChunkMsg{Chunk: chunk} }}
		resp, err := client.SendText(context.Background(), text, reqCfg, stream, useTools, sh)
		ch <- RemoteReplyMsg{Response: resp, Err: err}
	}()
	return waitForRemote(ch)
}

// waitForRemote delivers the next message from a running request.
func waitForRemote(ch chan tea.Msg) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		msg, ok := <-ch
		if !ok {
			return nil
		}
		return msg
	}
}

func (v *RemoteView) showReply(msg RemoteReplyMsg) {
	if msg.Response != nil {
		v.addLine(styleBot.Render("Agent: ") + describeContent(msg.Response.Response))
		if u := msg.Response.TokenUsage; u != nil {
			v.addLine(StyleDimmed.Render(fmt.Sprintf("  tokens: %d prompt, %d completion, %d total",
				u.PromptTokens, u.CompletionTokens, u.TotalTokens)))
		}
	}
	if msg.Err != nil {
		v.addLine(StyleError.Render("✗ " + msg.Err.Error()))
	}
}

func describeContent(c remote.Content) string {
	switch c.Kind {
	case remote.ContentText:
		return c.Text
	case remote.ContentStream:
		return strings.Join(c.Stream, "")
	case remote.ContentToolCall:
		args, _ := json.Marshal(c.ToolCall.Arguments)
		return fmt.Sprintf("requested tool %s %s", c.ToolCall.Name, args)
	case remote.ContentToolResult:
		out, _ := json.Marshal(c.ToolResult.Result)
		return fmt.Sprintf("tool %s result %s", c.ToolResult.Name, out)
	case remote.ContentToolConfirmationRequest, remote.ContentTurnConfirmationRequest:
		return describeConfirmation(remote.Confirmation{Tool: c.ToolConfirmation, Turn: c.TurnConfirmation})
	case remote.ContentMulti:
		parts := make([]string, 0, len(c.Multi))
		for _, p := range c.Multi {
			parts = append(parts, describeContent(p))
		}
		return strings.Join(parts, "\n")
	default:
		return string(c.Kind)
	}
}

func describeConfirmation(c remote.Confirmation) string {
	if c.Tool != nil {
		args, _ := json.Marshal(c.Tool.Arguments)
		s := fmt.Sprintf("agent wants to run %s %s", c.Tool.Name, args)
		if c.Tool.Description != "" {
			s += " (" + c.Tool.Description + ")"
		}
		return s
	}
	if c.Turn != nil {
		s := c.Turn.Message
		if c.Turn.Description != "" {
			s += " (" + c.Turn.Description + ")"
		}
		return s
	}
	return "agent asks for confirmation"
}

func (v *RemoteView) addLine(line string) {
	v.lines = append(v.lines, line)
	v.refresh()
}

func (v *RemoteView) refresh() {
	lines := append([]string(nil), v.lines...)
	if v.partial.Len() > 0 {
		lines = append(lines, styleBot.Render("Agent: ")+v.partial.String()+StyleDimmed.Render(" ▌"))
	}
	v.viewport.SetContentLines(lines)
	v.viewport.End()
}

func (v *RemoteView) View() string {
	status := v.Status()
	statusStyle := StyleDimmed
	switch status {
	case remote.StatusConnected:
		statusStyle = StyleSuccess
	case remote.StatusReconnecting:
		statusStyle = StyleWarning
	case remote.StatusError:
		statusStyle = StyleError
	}
	header := StyleBold.Render("Agent ") + v.cfg.Remote.Addr() + "  " + statusStyle.Render(status.String()) +
		StyleDimmed.Render(fmt.Sprintf("  stream:%s tools:%s", yesNo(v.stream), yesNo(v.cfg.Remote.UseTools)))

	var cmds string
	if len(v.commands) > 0 {
		names := make([]string, 0, len(v.commands))
		for _, c := range v.commands {
			names = append(names, c.Name)
		}
		cmds = StyleDimmed.Render("commands: " + strings.Join(names, ", "))
	}

	prompt := StylePrompt.Render("Agent> ") + v.input + "█"
	if v.busy {
		prompt = StylePrompt.Render("Agent> ") + StyleDimmed.Render("waiting for agent...")
	}

	return lipgloss.JoinVertical(lipgloss.Left, header, cmds, prompt, v.viewport.Render())
}
