package tui

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/muurk/wifiportal/internal/portalclient"
	"github.com/muurk/wifiportal/internal/ui"
)

// Portal is the part of the portal API the wizard drives.
type Portal interface {
	Scan(ctx context.Context) ([]portalclient.Network, error)
	Connect(ctx context.Context, ssid, password string) (bool, error)
}

// Screen is the wizard step being shown.
type Screen int

const (
	ScreenScanning Screen = iota
	ScreenNetworks
	ScreenPassword
	ScreenConnecting
	ScreenDone
)

// Messages for async operations
type scanResultMsg struct {
	networks []portalclient.Network
	err      error
}

type connectResultMsg struct {
	connected bool
	err       error
}

// keyMap holds every binding; each screen shows the ones it honors.
type keyMap struct {
	Up      key.Binding
	Down    key.Binding
	Select  key.Binding
	Rescan  key.Binding
	Back    key.Binding
	Confirm key.Binding
	Quit    key.Binding
}

type bindings []key.Binding

func (b bindings) ShortHelp() []key.Binding  { return b }
func (b bindings) FullHelp() [][]key.Binding { return [][]key.Binding{b} }

func newKeyMap() keyMap {
	return keyMap{
		Up:      key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		Down:    key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		Select:  key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "join")),
		Rescan:  key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "rescan")),
		Back:    key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back")),
		Confirm: key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "connect")),
		Quit:    key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

// networkItem wraps a scan entry for bubbles/list.
type networkItem struct {
	network portalclient.Network
}

func (n networkItem) FilterValue() string { return n.network.SSID }

// networkDelegate renders one network per line.
type networkDelegate struct{}

func (networkDelegate) Height() int                               { return 1 }
func (networkDelegate) Spacing() int                              { return 0 }
func (networkDelegate) Update(msg tea.Msg, m *list.Model) tea.Cmd { return nil }

func (networkDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	n, ok := item.(networkItem)
	if !ok {
		return
	}
	security := "open"
	if !n.network.Open() {
		security = ui.LockMarker
	}
	line := fmt.Sprintf("%-32s %s %4d dBm  %s", n.network.SSID, ui.SignalBars(n.network.RSSI), n.network.RSSI, security)
	if index == m.Index() {
		fmt.Fprint(w, SelectedItemStyle.Render("→ "+line))
		return
	}
	fmt.Fprint(w, ItemStyle.Render("  "+line))
}

// Model is the wizard state.
type Model struct {
	portal  Portal
	timeout time.Duration

	screen    Screen
	networks  list.Model
	password  textinput.Model
	spinner   spinner.Model
	help      help.Model
	keys      keyMap
	selected  portalclient.Network
	connected bool
	err       error
	quitting  bool

	width  int
	height int
}

// New creates a wizard that talks to p, bounding each request by timeout.
func New(p Portal, timeout time.Duration) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = SpinnerStyle

	pw := textinput.New()
	pw.Placeholder = "network password"
	pw.EchoMode = textinput.EchoPassword
	pw.EchoCharacter = '•'
	pw.CharLimit = 63
	pw.Width = 40

	l := list.New(nil, networkDelegate{}, MinTerminalWidth, 12)
	l.Title = "Networks visible to the device"
	l.SetShowStatusBar(false)
	l.SetShowHelp(false)
	l.SetFilteringEnabled(true)
	l.Styles.Title = TitleStyle

	return Model{
		portal:   p,
		timeout:  timeout,
		screen:   ScreenScanning,
		networks: l,
		password: pw,
		spinner:  s,
		help:     help.New(),
		keys:     newKeyMap(),
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.scan())
}

func (m Model) scan() tea.Cmd {
	p, timeout := m.portal, m.timeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		nets, err := p.Scan(ctx)
		return scanResultMsg{networks: nets, err: err}
	}
}

func (m Model) connect(ssid, password string) tea.Cmd {
	p, timeout := m.portal, m.timeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		ok, err := p.Connect(ctx, ssid, password)
		return connectResultMsg{connected: ok, err: err}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.networks.SetSize(contentWidth(msg.Width)-6, max(msg.Height-12, 5))
		return m, nil

	case spinner.TickMsg:
		if m.screen != ScreenScanning && m.screen != ScreenConnecting {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case scanResultMsg:
		m.screen = ScreenNetworks
		m.err = msg.err
		items := make([]list.Item, 0, len(msg.networks))
		for _, n := range msg.networks {
			items = append(items, networkItem{network: n})
		}
		return m, m.networks.SetItems(items)

	case connectResultMsg:
		m.screen = ScreenDone
		m.connected = msg.connected
		m.err = msg.err
		return m, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			m.quitting = true
			return m, tea.Quit
		}
		switch m.screen {
		case ScreenNetworks:
			return m.updateNetworks(msg)
		case ScreenPassword:
			return m.updatePassword(msg)
		case ScreenDone:
			return m.updateDone(msg)
		}
	}
	return m, nil
}

func (m Model) updateNetworks(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.networks.FilterState() == list.Filtering {
		var cmd tea.Cmd
		m.networks, cmd = m.networks.Update(msg)
		return m, cmd
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		m.quitting = true
		return m, tea.Quit

	case key.Matches(msg, m.keys.Rescan):
		m.screen = ScreenScanning
		m.err = nil
		return m, tea.Batch(m.spinner.Tick, m.scan())

	case key.Matches(msg, m.keys.Select):
		item, ok := m.networks.SelectedItem().(networkItem)
		if !ok {
			return m, nil
		}
		m.selected = item.network
		m.err = nil
		if item.network.Open() {
			m.screen = ScreenConnecting
			return m, tea.Batch(m.spinner.Tick, m.connect(item.network.SSID, ""))
		}
		m.screen = ScreenPassword
		m.password.SetValue("")
		return m, m.password.Focus()
	}

	var cmd tea.Cmd
	m.networks, cmd = m.networks.Update(msg)
	return m, cmd
}

func (m Model) updatePassword(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Back):
		m.password.Blur()
		m.err = nil
		m.screen = ScreenNetworks
		return m, nil

	case key.Matches(msg, m.keys.Confirm):
		pw := m.password.Value()
		if err := portalclient.ValidatePassword(pw); err != nil {
			m.err = err
			return m, nil
		}
		m.password.Blur()
		m.err = nil
		m.screen = ScreenConnecting
		return m, tea.Batch(m.spinner.Tick, m.connect(m.selected.SSID, pw))
	}

	var cmd tea.Cmd
	m.password, cmd = m.password.Update(msg)
	return m, cmd
}

func (m Model) updateDone(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if !m.connected && key.Matches(msg, m.keys.Rescan) {
		m.err = nil
		m.screen = ScreenNetworks
		return m, nil
	}
	m.quitting = true
	return m, tea.Quit
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}
	var content string
	var keys bindings
	switch m.screen {
	case ScreenScanning:
		content = m.spinner.View() + " Asking the device which networks it can see..."
		keys = bindings{m.keys.Quit}
	case ScreenNetworks:
		content = m.viewNetworks()
		keys = bindings{m.keys.Up, m.keys.Down, m.keys.Select, m.keys.Rescan, m.keys.Quit}
	case ScreenPassword:
		content = m.viewPassword()
		keys = bindings{m.keys.Confirm, m.keys.Back}
	case ScreenConnecting:
		content = fmt.Sprintf("%s Joining %s...\n\n%s", m.spinner.View(), m.selected.SSID,
			SubtitleStyle.Render("The portal answers once the device connects or gives up."))
	case ScreenDone:
		content = m.viewDone()
		if m.connected {
			keys = bindings{m.keys.Quit}
		} else {
			keys = bindings{m.keys.Rescan, m.keys.Quit}
		}
	}
	return renderContainer("\n"+content+"\n", m.help.View(keys), m.width)
}

func (m Model) viewNetworks() string {
	if m.err != nil {
		return ErrorBoxStyle.Render("Scan failed: "+portalclient.GetShortErrorMessage(m.err)) +
			"\n\n" + SubtitleStyle.Render("Press r to try again.")
	}
	if len(m.networks.Items()) == 0 {
		return lipgloss.NewStyle().Foreground(WarningColor).Bold(true).Render("⚠ The device sees no networks") +
			"\n\n" + SubtitleStyle.Render("Move the device closer to the access point and press r.")
	}
	return m.networks.View()
}

func (m Model) viewPassword() string {
	var b strings.Builder
	b.WriteString(TitleStyle.Render("Password for " + m.selected.SSID))
	b.WriteString("\n")
	b.WriteString("  " + m.password.View())
	if m.err != nil {
		b.WriteString("\n\n")
		b.WriteString(lipgloss.NewStyle().Foreground(ErrorColor).Render("  " + m.err.Error()))
	}
	return b.String()
}

func (m Model) viewDone() string {
	if m.connected {
		return SuccessBoxStyle.Render(fmt.Sprintf("%s The device joined %s", ui.SuccessMarker, m.selected.SSID))
	}
	reason := "check the password and that the network is in range"
	if m.err != nil {
		reason = portalclient.GetShortErrorMessage(m.err)
	}
	return ErrorBoxStyle.Render(fmt.Sprintf("%s Could not join %s: %s", ui.FailureMarker, m.selected.SSID, reason))
}

// Screen returns the step being shown.
func (m Model) Screen() Screen {
	return m.screen
}

// Result is what the wizard ended with.
type Result struct {
	SSID      string
	Connected bool
	Err       error
	Cancelled bool
}

// Result summarizes the session.
func (m Model) Result() Result {
	return Result{
		SSID:      m.selected.SSID,
		Connected: m.connected,
		Err:       m.err,
		Cancelled: m.screen != ScreenDone,
	}
}

// Run shows the wizard until the user quits.
func Run(p Portal, timeout time.Duration) (Result, error) {
	final, err := tea.NewProgram(New(p, timeout), tea.WithAltScreen()).Run()
	if err != nil {
		return Result{}, fmt.Errorf("wizard failed: %w", err)
	}
	return final.(Model).Result(), nil
}
