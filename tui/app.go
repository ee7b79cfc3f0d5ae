// app.go is the top-level Bubble Tea model that orchestrates all views.
//
// Layout: header, tab content inside a border, status bar. F1-F3 switch
// tabs from anywhere; Tab/Shift+Tab also switch when the active view is
// not taking text. ? (or F4 in text views) toggles the help overlay.
//
// Key events go to the active view only. Every other message is
// broadcast, so a reply that lands while its view is hidden still
// reaches it.
package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const appVersion = "0.1.0"

// Tab indices.
const (
	TabChat = iota
	TabRemote
	TabSettings
)

// App is the root Bubble Tea model.
type App struct {
	deps      Deps
	views     []View
	remote    *RemoteView
	activeTab int

	width     int
	height    int
	showHelp  bool
	statusMsg string
}

// NewApp builds the app with its three tabs.
func NewApp(deps Deps) *App {
	remoteView := NewRemoteView(deps.Config, deps.Dial)
	return &App{
		deps: deps,
		views: []View{
			NewChatView(deps.Bridge, deps.History, deps.Config),
			remoteView,
			NewSettingsView(deps.Config, deps.ConfigPath, deps.Endpoints),
		},
		remote:    remoteView,
		activeTab: TabChat,
	}
}

// Init implements tea.Model.
func (a *App) Init() tea.Cmd {
	cmds := make([]tea.Cmd, 0, len(a.views))
	for _, v := range a.views {
		cmds = append(cmds, v.Init())
	}
	return tea.Batch(cmds...)
}

// Update implements tea.Model.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		// Header(1) + Status(1) + Slack(1) + Borders(2) = 5 lines chrome
		contentW := a.width - 2
		viewH := a.height - 5
		for _, v := range a.views {
			v.SetSize(contentW, viewH)
		}
		return a, nil

	case tea.KeyMsg:
		return a.handleKey(msg)

	case StatusMsg:
		a.statusMsg = string(msg)
		return a, nil
	}

	var cmds []tea.Cmd
	for i, v := range a.views {
		updated, cmd := v.Update(msg)
		a.views[i] = updated
		cmds = append(cmds, cmd)
	}
	return a, tea.Batch(cmds...)
}

func (a *App) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	a.statusMsg = ""
	textMode := a.views[a.activeTab].WantsTextInput()

	switch msg.String() {
	case "ctrl+c":
		return a, tea.Quit
	case "f1":
		return a.switchTab(TabChat)
	case "f2":
		return a.switchTab(TabRemote)
	case "f3":
		return a.switchTab(TabSettings)
	case "f4":
		a.showHelp = !a.showHelp
		return a, nil
	}

	if a.showHelp && (msg.String() == "esc" || msg.String() == "?") {
		a.showHelp = false
		return a, nil
	}

	if !textMode {
		switch msg.String() {
		case "?":
			a.showHelp = !a.showHelp
			return a, nil
		case "tab":
			return a.switchTab((a.activeTab + 1) % len(a.views))
		case "shift+tab":
			return a.switchTab((a.activeTab - 1 + len(a.views)) % len(a.views))
		case "q":
			return a, tea.Quit
		}
	}

	updated, cmd := a.views[a.activeTab].Update(msg)
	a.views[a.activeTab] = updated
	return a, cmd
}

func (a *App) switchTab(idx int) (tea.Model, tea.Cmd) {
	if idx < 0 || idx >= len(a.views) {
		return a, nil
	}
	a.activeTab = idx
	a.showHelp = false
	return a, nil
}

// ActiveView returns the view shown in the content area.
func (a *App) ActiveView() View {
	return a.views[a.activeTab]
}

// View implements tea.Model.
func (a *App) View() string {
	if a.width == 0 {
		return "loading..."
	}

	header := a.renderHeader()

	var inner string
	if a.showHelp {
		inner = a.renderHelp()
	} else {
		inner = lipgloss.JoinVertical(lipgloss.Left, a.renderTabBar(), a.views[a.activeTab].View())
	}

	frameHeight := a.height - 4
	if frameHeight < 0 {
		frameHeight = 0
	}
	frame := styleFrame.
		Width(a.width - 2).
		Height(frameHeight).
		Render(inner)

	return header + "\n" + frame + "\n" + a.renderStatusBar()
}

func (a *App) renderHeader() string {
	left := StyleBold.Render("🤖 aibridge") + StyleDimmed.Render(" v"+appVersion)
	relay := StyleSuccess.Render("  ⚡ " + a.deps.Config.Relay.APIURL)
	agent := StyleDimmed.Render("  agent: " + a.remote.Status().String())
	if a.deps.Config.Tunnel.Enabled {
		agent += StyleWarning.Render(fmt.Sprintf("  via %s", a.deps.Config.Tunnel.Host))
	}
	content := left + relay + agent

	right := StyleDimmed.Render(fmt.Sprintf("%d×%d", a.width, a.height))
	gap := a.width - lipgloss.Width(content) - lipgloss.Width(right)
	if gap < 1 {
		gap = 1
	}
	return lipgloss.NewStyle().
		Width(a.width).
		Render(content + strings.Repeat(" ", gap) + right)
}

func (a *App) renderTabBar() string {
	tabs := make([]string, 0, len(a.views))
	for i, v := range a.views {
		label := fmt.Sprintf("F%d %s", i+1, v.Name())
		if i == a.activeTab {
			tabs = append(tabs, styleTabOn.Render(label))
		} else {
			tabs = append(tabs, styleTabOff.Render(label))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, tabs...)
}

func (a *App) renderStatusBar() string {
	content := a.statusMsg
	if content == "" {
		var parts []string
		for _, h := range a.helpItems() {
			parts = append(parts, styleKey.Render(h.Key)+" "+StyleDimmed.Render(h.Desc))
		}
		content = strings.Join(parts, "  │  ")
	}
	return styleFooter.Width(a.width).Render(content)
}

func (a *App) helpItems() []KeyBinding {
	global := []KeyBinding{
		{Key: "F1-F3", Desc: "tabs"},
		{Key: "F4", Desc: "help"},
		{Key: "Ctrl+C", Desc: "quit"},
	}
	return append(a.views[a.activeTab].ShortHelp(), global...)
}

func (a *App) renderHelp() string {
	help := []string{
		StyleTitle.Render("⌨ aibridge Keyboard Shortcuts"),
		"",
		styleKey.Render("F1 / F2 / F3") + "     Chat / Remote / Settings",
		styleKey.Render("Tab / Shift+Tab") + "  Switch tabs (Settings)",
		styleKey.Render("F4 or ?") + "          Toggle this help",
		styleKey.Render("Ctrl+C") + "           Quit",
		"",
		StyleTitle.Render("Chat"),
		"",
		styleKey.Render("Enter") + "            Send message",
		styleKey.Render("Ctrl+R") + "           Retry last failed message (max 3)",
		styleKey.Render("Ctrl+Y") + "           Copy last reply",
		styleKey.Render("Ctrl+L") + "           Clear transcript",
		styleKey.Render("PgUp/PgDn") + "        Scroll",
		"",
		StyleTitle.Render("Remote"),
		"",
		styleKey.Render("Ctrl+O") + "           Connect / disconnect",
		styleKey.Render("Ctrl+G") + "           List agent commands",
		styleKey.Render("Ctrl+S") + "           Toggle streaming",
		"",
		StyleDimmed.Render("Press Esc to close"),
	}

	return lipgloss.NewStyle().
		Width(a.width-4).
		Padding(1, 2).
		Render(strings.Join(help, "\n"))
}
