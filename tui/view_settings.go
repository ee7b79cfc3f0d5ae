// view_settings.go edits the relay endpoint and remote-agent settings.
//
// Saved endpoints live in ~/.aibridge/endpoints.json; the rest is written
// to the config file. Changes apply to the running session as soon as
// they are saved, since the chat and remote views share the same config.
package tui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/DachengChen/aibridge/config"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const (
	fieldSaved = iota
	fieldEndpointName
	fieldAPIURL
	fieldRemoteHost
	fieldRemotePort
	fieldRemoteTools
	fieldSaveConfig
	fieldSaveEndpoint
	fieldDeleteEndpoint
	fieldCount // sentinel
)

var fieldLabels = map[int]string{
	fieldSaved:          "Saved",
	fieldEndpointName:   "Name",
	fieldAPIURL:         "API URL",
	fieldRemoteHost:     "Agent Host",
	fieldRemotePort:     "Agent Port",
	fieldRemoteTools:    "Use Tools",
	fieldSaveConfig:     "Save",
	fieldSaveEndpoint:   "Save Endpoint",
	fieldDeleteEndpoint: "Delete Endpoint",
}

// SettingsView is the settings form.
type SettingsView struct {
	cfg        *config.AppConfig
	cfgPath    string // empty means the default location
	endpoints  *config.EndpointStore
	fields     []string
	focusField int
	savedIdx   int
	editing    bool
	before     string // field value when editing started
	err        error
	statusMsg  string
	width      int
	height     int
}

// NewSettingsView creates the form. endpoints may be nil.
func NewSettingsView(cfg *config.AppConfig, cfgPath string, endpoints *config.EndpointStore) *SettingsView {
	v := &SettingsView{
		cfg:        cfg,
		cfgPath:    cfgPath,
		endpoints:  endpoints,
		fields:     make([]string, fieldCount),
		focusField: fieldAPIURL,
	}
	v.loadFromConfig()
	if v.hasSaved() {
		for i, e := range endpoints.Endpoints {
			if e.APIURL == cfg.Relay.APIURL {
				v.savedIdx = i
				v.fields[fieldEndpointName] = e.Name
				break
			}
		}
	}
	return v
}

func (v *SettingsView) loadFromConfig() {
	v.fields[fieldAPIURL] = v.cfg.Relay.APIURL
	v.fields[fieldRemoteHost] = v.cfg.Remote.Host
	v.fields[fieldRemotePort] = strconv.Itoa(v.cfg.Remote.Port)
	v.fields[fieldRemoteTools] = yesNo(v.cfg.Remote.UseTools)
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func (v *SettingsView) Name() string { return "Settings" }

// WantsTextInput is true only while a field is being edited.
func (v *SettingsView) WantsTextInput() bool { return v.editing }

func (v *SettingsView) SetSize(width, height int) {
	v.width = width
	v.height = height
}

func (v *SettingsView) ShortHelp() []KeyBinding {
	if v.editing {
		return []KeyBinding{
			{Key: "Enter", Desc: "confirm"},
			{Key: "Esc", Desc: "cancel"},
			{Key: "Ctrl+U", Desc: "clear"},
		}
	}
	return []KeyBinding{
		{Key: "↑/↓", Desc: "navigate"},
		{Key: "←/→", Desc: "cycle"},
		{Key: "Enter", Desc: "edit/action"},
	}
}

func (v *SettingsView) Init() tea.Cmd { return nil }

func (v *SettingsView) Update(msg tea.Msg) (View, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if v.editing {
			return v.handleEditing(msg)
		}
		return v.handleNavigation(msg)

	case ConfigSavedMsg:
		if msg.Err != nil {
			v.err = msg.Err
			v.statusMsg = ""
			return v, nil
		}
		v.err = nil
		v.statusMsg = "Settings saved!"
		return v, nil
	}
	return v, nil
}

func (v *SettingsView) handleNavigation(msg tea.KeyMsg) (View, tea.Cmd) {
	switch msg.String() {
	case "up", "k":
		v.move(-1)
	case "down", "j":
		v.move(1)
	case "left", "h":
		v.cycle(-1)
	case "right", "l":
		v.cycle(1)
	case "enter":
		return v, v.handleAction()
	}
	return v, nil
}

func (v *SettingsView) hasSaved() bool {
	return v.endpoints != nil && len(v.endpoints.Endpoints) > 0
}

func (v *SettingsView) move(dir int) {
	v.focusField = (v.focusField + dir + fieldCount) % fieldCount
	for v.hidden(v.focusField) {
		v.focusField = (v.focusField + dir + fieldCount) % fieldCount
	}
}

// hidden reports fields that are not rendered.
func (v *SettingsView) hidden(f int) bool {
	switch f {
	case fieldSaved, fieldDeleteEndpoint:
		return !v.hasSaved()
	case fieldSaveEndpoint:
		return v.endpoints == nil
	}
	return false
}

func (v *SettingsView) cycle(dir int) {
	switch v.focusField {
	case fieldSaved:
		if v.hasSaved() {
			n := len(v.endpoints.Endpoints)
			v.loadSaved((v.savedIdx + dir + n) % n)
		}
	case fieldRemoteTools:
		v.toggleTools()
	default:
		v.move(dir)
	}
}

func (v *SettingsView) toggleTools() {
	if v.fields[fieldRemoteTools] == "yes" {
		v.fields[fieldRemoteTools] = "no"
	} else {
		v.fields[fieldRemoteTools] = "yes"
	}
}

func (v *SettingsView) loadSaved(idx int) {
	if idx < 0 || idx >= len(v.endpoints.Endpoints) {
		return
	}
	e := v.endpoints.Endpoints[idx]
	v.savedIdx = idx
	v.fields[fieldEndpointName] = e.Name
	v.fields[fieldAPIURL] = e.APIURL
}

func (v *SettingsView) handleEditing(msg tea.KeyMsg) (View, tea.Cmd) {
	field := v.focusField

	switch msg.String() {
	case "enter":
		v.editing = false
	case "esc":
		v.fields[field] = v.before
		v.editing = false
	case "backspace":
		if r := []rune(v.fields[field]); len(r) > 0 {
			v.fields[field] = string(r[:len(r)-1])
		}
	case "ctrl+u":
		v.fields[field] = ""
	default:
		if msg.Type == tea.KeyRunes {
			v.fields[field] += string(msg.Runes)
		} else if msg.Type == tea.KeySpace {
			v.fields[field] += " "
		}
	}
	return v, nil
}

func (v *SettingsView) handleAction() tea.Cmd {
	switch v.focusField {
	case fieldSaved:
		return nil
	case fieldRemoteTools:
		v.toggleTools()
		return nil
	case fieldSaveConfig:
		return v.save()
	case fieldSaveEndpoint:
		v.saveEndpoint()
		return nil
	case fieldDeleteEndpoint:
		v.deleteEndpoint()
		return nil
	default:
		v.editing = true
		v.before = v.fields[v.focusField]
		return nil
	}
}

// apply copies the form into cfg after validating it.
func (v *SettingsView) apply() error {
	port, err := strconv.Atoi(strings.TrimSpace(v.fields[fieldRemotePort]))
	if err != nil {
		return fmt.Errorf("agent port must be a number")
	}
	next := *v.cfg
	next.Relay.APIURL = strings.TrimSpace(v.fields[fieldAPIURL])
	next.Remote.Host = strings.TrimSpace(v.fields[fieldRemoteHost])
	next.Remote.Port = port
	next.Remote.UseTools = v.fields[fieldRemoteTools] == "yes"
	if err := next.Validate(); err != nil {
		return err
	}
	*v.cfg = next
	return nil
}

func (v *SettingsView) save() tea.Cmd {
	if err := v.apply(); err != nil {
		v.err = err
		v.statusMsg = ""
		return nil
	}
	v.err = nil
	v.statusMsg = "Saving..."

	snapshot := *v.cfg
	path := v.cfgPath
	return func() tea.Msg {
		if path == "" {
			return ConfigSavedMsg{Err: config.SaveAppConfig(&snapshot)}
		}
		return ConfigSavedMsg{Err: config.SaveAppConfigTo(path, &snapshot)}
	}
}

func (v *SettingsView) saveEndpoint() {
	name := strings.TrimSpace(v.fields[fieldEndpointName])
	if name == "" {
		v.err = fmt.Errorf("enter an endpoint name first")
		return
	}
	v.endpoints.Add(config.Endpoint{Name: name, APIURL: strings.TrimSpace(v.fields[fieldAPIURL])})
	if err := v.endpoints.Save(); err != nil {
		v.err = err
		return
	}
	for i, e := range v.endpoints.Endpoints {
		if e.Name == name {
			v.savedIdx = i
			break
		}
	}
	v.err = nil
	v.statusMsg = fmt.Sprintf("Endpoint '%s' saved!", name)
}

func (v *SettingsView) deleteEndpoint() {
	if !v.hasSaved() {
		return
	}
	name := v.endpoints.Endpoints[v.savedIdx].Name
	v.endpoints.Delete(name)
	if err := v.endpoints.Save(); err != nil {
		v.err = err
		return
	}
	if v.savedIdx >= len(v.endpoints.Endpoints) {
		v.savedIdx = 0
	}
	if !v.hasSaved() && (v.focusField == fieldSaved || v.focusField == fieldDeleteEndpoint) {
		v.focusField = fieldAPIURL
	}
	v.err = nil
	v.statusMsg = fmt.Sprintf("Endpoint '%s' deleted.", name)
}

func (v *SettingsView) View() string {
	inputW := v.width - 28
	if inputW < 10 {
		inputW = 10
	}

	var lines []string

	if v.hasSaved() {
		lines = append(lines, sectionHeader("Saved Endpoints", v.width-8))
		var saved string
		for i, e := range v.endpoints.Endpoints {
			switch {
			case i == v.savedIdx && v.focusField == fieldSaved:
				saved += styleSelected.Render(" ► " + e.Name + " ")
			case i == v.savedIdx:
				saved += fg(colorAccent).Render(" ► " + e.Name + " ")
			default:
				saved += StyleDimmed.Render("   " + e.Name + " ")
			}
		}
		lines = append(lines, saved, "")
	}

	lines = append(lines, sectionHeader("Relay", v.width-8))
	lines = append(lines, v.renderField(fieldEndpointName, inputW))
	lines = append(lines, v.renderField(fieldAPIURL, inputW))
	lines = append(lines, "")

	lines = append(lines, sectionHeader("Remote Agent", v.width-8))
	lines = append(lines, v.renderField(fieldRemoteHost, inputW))
	lines = append(lines, v.renderField(fieldRemotePort, inputW))
	lines = append(lines, v.renderField(fieldRemoteTools, inputW))
	lines = append(lines, "")

	buttons := v.renderButton(fieldSaveConfig)
	if v.endpoints != nil {
		buttons += "  " + v.renderButton(fieldSaveEndpoint)
	}
	if v.hasSaved() {
		buttons += "  " + v.renderButton(fieldDeleteEndpoint)
	}
	lines = append(lines, buttons, "")

	switch {
	case v.err != nil:
		lines = append(lines, StyleError.Render("✗ "+v.err.Error()))
	case v.statusMsg != "":
		lines = append(lines, StyleSuccess.Render("✓ "+v.statusMsg))
	}

	return lipgloss.NewStyle().Padding(1, 2).Render(strings.Join(lines, "\n"))
}

func sectionHeader(label string, width int) string {
	right := width - lipgloss.Width(label) - 6
	if right < 4 {
		right = 4
	}
	return StyleDimmed.Render("──") + " " + StyleTitle.UnsetMarginBottom().Render(label) + " " +
		StyleDimmed.Render(strings.Repeat("─", right))
}

func (v *SettingsView) renderField(id, inputWidth int) string {
	label := fieldLabels[id]
	focused := v.focusField == id

	labelStr := lipgloss.NewStyle().Width(16).Foreground(colorMuted).Render(label)
	if focused {
		labelStr = lipgloss.NewStyle().Width(16).Foreground(colorAccent).Bold(true).Render("▸ " + label)
	}

	value := v.fields[id]
	if focused && v.editing {
		value += "█"
	}
	style := lipgloss.NewStyle().Width(inputWidth).Foreground(colorMuted)
	if focused {
		style = style.Foreground(colorText)
	}
	return labelStr + " " + style.Render(value)
}

func (v *SettingsView) renderButton(id int) string {
	label := "[ " + fieldLabels[id] + " ]"
	if v.focusField == id {
		return styleSelected.Render(label)
	}
	return StyleDimmed.Render(label)
}
