// view_chat.go is the chat view: the host application's front end for the
// send_message_to_ai command.
//
// Each message goes through the bridge inside a tea.Cmd so the UI stays
// responsive. Only one request is in flight at a time; Ctrl+R re-sends
// the last user message after a failure, up to maxRetries times.
package tui

import (
	"context"
	"net/http"
	"strings"

	"github.com/DachengChen/aibridge/ai"
	"github.com/DachengChen/aibridge/applog"
	"github.com/DachengChen/aibridge/bridge"
	"github.com/DachengChen/aibridge/config"
	"github.com/DachengChen/aibridge/history"
	"github.com/atotto/clipboard"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/pkg/errors"
)

const maxRetries = 3

// Error labels shown next to failed messages.
const (
	errLabelNetwork = "network"
	errLabelAuth    = "auth"
	errLabelServer  = "server"
	errLabelRequest = "request"
	errLabelParse   = "parse"
	errLabelUnknown = "unknown"
)

// ErrorLabel classifies a relay failure for display.
func ErrorLabel(err error) string {
	if err == nil {
		return ""
	}
	kind := ai.KindOf(err)
	var ce *bridge.CommandError
	if errors.As(err, &ce) {
		kind = ce.Kind
	}
	switch kind {
	case ai.KindTransport:
		return errLabelNetwork
	case ai.KindParse:
		return errLabelParse
	case ai.KindStatus:
		code := statusCodeOf(err)
		switch {
		case code == http.StatusUnauthorized || code == http.StatusForbidden:
			return errLabelAuth
		case code >= 500:
			return errLabelServer
		default:
			return errLabelRequest
		}
	default:
		return errLabelUnknown
	}
}

// statusCodeOf recovers the HTTP status from a relay error, or from the
// flat text the bridge hands out.
func statusCodeOf(err error) int {
	var re *ai.RelayError
	if errors.As(err, &re) {
		return re.StatusCode
	}
	var code int
	const prefix = "api request failed: status code "
	msg := err.Error()
	if i := strings.Index(msg, prefix); i >= 0 {
		for _, r := range msg[i+len(prefix):] {
			if r < '0' || r > '9' {
				break
			}
			code = code*10 + int(r-'0')
		}
	}
	return code
}

// ChatView sends messages to the configured AI endpoint.
type ChatView struct {
	bridge   *bridge.Bridge
	store    history.Store
	cfg      *config.AppConfig
	viewport *Viewport

	// render turns a reply into terminal output; copy writes the clipboard.
	render func(string) string
	copy   func(string) error

	entries  []history.Entry
	input    string
	loading  bool
	lastUser history.Entry
	lastErr  error
	errLabel string
	retries  int
	status   string
	width    int
	height   int
}

// NewChatView creates the chat view. cfg is shared with the settings view
// so a changed API URL applies to the next send.
func NewChatView(b *bridge.Bridge, store history.Store, cfg *config.AppConfig) *ChatView {
	return &ChatView{
		bridge:   b,
		store:    store,
		cfg:      cfg,
		viewport: NewViewport(80, 20),
		render:   renderMarkdown,
		copy:     clipboard.WriteAll,
	}
}

func renderMarkdown(s string) string {
	out, err := glamour.Render(s, "dark")
	if err != nil {
		return s
	}
	return strings.Trim(out, "\n")
}

func (v *ChatView) Name() string { return "Chat" }

func (v *ChatView) WantsTextInput() bool { return true }

func (v *ChatView) SetSize(width, height int) {
	v.width = width
	v.height = height
	v.viewport.SetSize(width-2, height-4)
}

func (v *ChatView) ShortHelp() []KeyBinding {
	help := []KeyBinding{
		{Key: "Enter", Desc: "send"},
		{Key: "Ctrl+Y", Desc: "copy reply"},
		{Key: "Ctrl+L", Desc: "clear"},
		{Key: "PgUp/PgDn", Desc: "scroll"},
	}
	if v.canRetry() {
		help = append([]KeyBinding{{Key: "Ctrl+R", Desc: "retry"}}, help...)
	}
	return help
}

func (v *ChatView) Init() tea.Cmd {
	v.refresh()
	store := v.store
	limit := v.cfg.History.Limit
	return func() tea.Msg {
		entries, err := store.Recent(context.Background(), limit)
		return HistoryLoadedMsg{Entries: entries, Err: err}
	}
}

func (v *ChatView) Update(msg tea.Msg) (View, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return v.handleKey(msg)

	case HistoryLoadedMsg:
		if msg.Err != nil {
			v.status = "history unavailable: " + msg.Err.Error()
			applog.Error("load history: %v", msg.Err)
		} else if len(v.entries) == 0 {
			v.entries = msg.Entries
		}
		v.refresh()
		return v, nil

	case HistoryClearedMsg:
		if msg.Err != nil {
			v.status = "clear failed: " + msg.Err.Error()
		}
		return v, nil

	case AIResponseMsg:
		v.applyResponse(msg)
		return v, nil
	}

	return v, nil
}

func (v *ChatView) handleKey(msg tea.KeyMsg) (View, tea.Cmd) {
	switch msg.String() {
	case "enter":
		return v, v.sendMessage()
	case "ctrl+r":
		return v, v.retryLastMessage()
	case "ctrl+y":
		v.copyLastReply()
	case "ctrl+l":
		return v, v.clear()
	case "ctrl+k", "up":
		v.viewport.ScrollUp(1)
	case "ctrl+j", "down":
		v.viewport.ScrollDown(1)
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

func (v *ChatView) sendMessage() tea.Cmd {
	text := strings.TrimSpace(v.input)
	if text == "" || v.loading {
		return nil
	}

	v.resetError()
	user := history.Entry{Role: history.RoleUser, Content: text, Status: history.StatusSending}
	v.entries = append(v.entries, user)
	v.input = ""
	v.loading = true
	v.refresh()
	return v.sendCmd(user, false)
}

func (v *ChatView) canRetry() bool {
	return v.lastErr != nil && !v.loading && v.retries < maxRetries && v.errLabel != errLabelAuth
}

func (v *ChatView) retryLastMessage() tea.Cmd {
	if v.loading {
		return nil
	}
	if v.lastErr == nil {
		v.status = "nothing to retry"
		return nil
	}
	if !v.canRetry() {
		v.status = "retry not available"
		return nil
	}

	v.retries++
	v.status = ""
	user := v.lastUser
	user.Status = history.StatusSending
	v.setUserStatus(user)
	v.loading = true
	v.refresh()
	return v.sendCmd(user, true)
}

// sendCmd runs one send_message_to_ai invocation and records both sides
// of the exchange. user.ID is zero for a new message.
func (v *ChatView) sendCmd(user history.Entry, retry bool) tea.Cmd {
	b, store, apiURL := v.bridge, v.store, v.cfg.Relay.APIURL
	return func() tea.Msg {
		ctx := context.Background()

		if user.ID == 0 {
			saved, err := store.Append(ctx, user)
			if err != nil {
				applog.Error("record user message: %v", err)
			} else {
				user = saved
			}
		} else if err := store.UpdateStatus(ctx, user.ID, history.StatusSending); err != nil {
			applog.Error("update message %d: %v", user.ID, err)
		}

		resp, sendErr := b.SendMessage(ctx, user.Content, apiURL)

		reply := history.Entry{Role: history.RoleAssistant, Status: history.StatusSent}
		if sendErr != nil {
			user.Status = history.StatusError
			reply = history.Entry{Role: history.RoleError, Content: sendErr.Error(), Status: history.StatusError}
		} else {
			user.Status = history.StatusSent
			reply.Content = resp.Reply
		}

		if user.ID != 0 {
			if err := store.UpdateStatus(ctx, user.ID, user.Status); err != nil {
				applog.Error("update message %d: %v", user.ID, err)
			}
		}
		if saved, err := store.Append(ctx, reply); err != nil {
			applog.Error("record reply: %v", err)
		} else {
			reply = saved
		}

		applog.Event("chat", "send retry=%t ok=%t", retry, sendErr == nil)
		return AIResponseMsg{User: user, Reply: reply, Err: sendErr, Retry: retry}
	}
}

func (v *ChatView) applyResponse(msg AIResponseMsg) {
	v.loading = false
	if msg.Retry {
		v.setUserStatus(msg.User)
	} else {
		v.replacePending(msg.User)
	}
	v.lastUser = msg.User
	v.entries = append(v.entries, msg.Reply)

	if msg.Err != nil {
		v.lastErr = msg.Err
		v.errLabel = ErrorLabel(msg.Err)
	} else {
		v.resetError()
	}
	v.refresh()
}

// replacePending swaps the unsaved user entry for its stored version.
func (v *ChatView) replacePending(user history.Entry) {
	for i := len(v.entries) - 1; i >= 0; i-- {
		e := v.entries[i]
		if e.ID == 0 && e.Role == history.RoleUser && e.Status == history.StatusSending {
			v.entries[i] = user
			return
		}
	}
	v.entries = append(v.entries, user)
}

func (v *ChatView) setUserStatus(user history.Entry) {
	for i := len(v.entries) - 1; i >= 0; i-- {
		e := v.entries[i]
		if e.Role == history.RoleUser && e.ID == user.ID && e.Content == user.Content {
			v.entries[i].Status = user.Status
			return
		}
	}
}

func (v *ChatView) resetError() {
	v.lastErr = nil
	v.errLabel = ""
	v.retries = 0
	v.status = ""
}

func (v *ChatView) copyLastReply() {
	for i := len(v.entries) - 1; i >= 0; i-- {
		if v.entries[i].Role != history.RoleAssistant {
			continue
		}
		if err := v.copy(v.entries[i].Content); err != nil {
			v.status = "copy failed: " + err.Error()
			return
		}
		v.status = "reply copied to clipboard"
		return
	}
	v.status = "no reply to copy"
}

func (v *ChatView) clear() tea.Cmd {
	if v.loading {
		return nil
	}
	v.entries = nil
	v.resetError()
	v.lastUser = history.Entry{}
	v.refresh()
	store := v.store
	return func() tea.Msg {
		return HistoryClearedMsg{Err: store.Clear(context.Background())}
	}
}

func (v *ChatView) refresh() {
	v.viewport.SetContentLines(v.renderChat())
	v.viewport.End()
}

func (v *ChatView) renderChat() []string {
	var lines []string

	lines = append(lines, StyleTitle.Render("🤖 AI Chat")+" "+
		StyleDimmed.Render("("+v.cfg.Relay.APIURL+")"))
	lines = append(lines, "")

	if len(v.entries) == 0 && !v.loading {
		lines = append(lines, StyleDimmed.Render("Type a message and press Enter."))
		return lines
	}

	for _, e := range v.entries {
		switch e.Role {
		case history.RoleUser:
			lines = append(lines, styleYou.Render("You: ")+e.Content+" "+statusMark(e.Status))
		case history.RoleAssistant:
			lines = append(lines, styleBot.Render("AI:"))
			for _, line := range strings.Split(v.render(e.Content), "\n") {
				lines = append(lines, "  "+line)
			}
		case history.RoleError:
			lines = append(lines, StyleError.Render("✗ ")+StyleWarning.Render(e.Content))
		}
		lines = append(lines, "")
	}

	if v.loading {
		lines = append(lines, StyleDimmed.Render("  ⏳ Waiting for reply..."))
	}

	return lines
}

func statusMark(status string) string {
	switch status {
	case history.StatusSending:
		return StyleDimmed.Render("…")
	case history.StatusError:
		return StyleError.Render("!")
	default:
		return StyleSuccess.Render("✓")
	}
}

func (v *ChatView) View() string {
	prompt := StylePrompt.Render("Ask> ") + v.input + "█"
	if v.loading {
		prompt = StylePrompt.Render("Ask> ") + StyleDimmed.Render("waiting for response...")
	}

	var status string
	switch {
	case v.lastErr != nil:
		status = StyleError.Render("["+v.errLabel+" error] ") + StyleDimmed.Render(v.lastErr.Error())
		if v.canRetry() {
			status += StyleDimmed.Render("  (Ctrl+R to retry)")
		} else if v.status != "" {
			status += StyleDimmed.Render("  " + v.status)
		}
	case v.status != "":
		status = StyleDimmed.Render(v.status)
	}

	return lipgloss.JoinVertical(lipgloss.Left, prompt, status, v.viewport.Render())
}
