package tui

import (
	"context"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/swartninja/provisioner/internal/discovery"
)

// ScanFunc looks for provisioning portals
type ScanFunc func(ctx context.Context) ([]*discovery.Portal, error)

type scanStartMsg struct{}

type scanCompleteMsg struct {
	portals []*discovery.Portal
	err     error
}

// portalSelectedMsg asks the app to open the form for a portal
type portalSelectedMsg struct {
	portal *discovery.Portal
}

type discoveryKeyMap struct {
	Up     key.Binding
	Down   key.Binding
	Enter  key.Binding
	Rescan key.Binding
	Manual key.Binding
	Quit   key.Binding
}

func (k discoveryKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Up, k.Down, k.Enter, k.Rescan, k.Manual, k.Quit}
}

func (k discoveryKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{{k.Up, k.Down, k.Enter}, {k.Rescan, k.Manual, k.Quit}}
}

type manualKeyMap struct {
	Confirm key.Binding
	Cancel  key.Binding
}

func (k manualKeyMap) ShortHelp() []key.Binding { return []key.Binding{k.Confirm, k.Cancel} }

func (k manualKeyMap) FullHelp() [][]key.Binding { return [][]key.Binding{k.ShortHelp()} }

// portalItem adapts a Portal to bubbles/list
type portalItem struct {
	portal *discovery.Portal
}

func (p portalItem) FilterValue() string {
	return p.portal.DeviceID + " " + p.portal.Instance + " " + p.portal.IP
}

func (p portalItem) Title() string {
	if p.portal.Instance == "" {
		return "Manual: " + p.portal.IP
	}
	return p.portal.Instance
}

func (p portalItem) Description() string {
	return fmt.Sprintf("%s • device %s", net.JoinHostPort(p.portal.IP, strconv.Itoa(p.portal.Port)), p.portal.DeviceID)
}

// portalDelegate renders each portal as a card
type portalDelegate struct {
	width int
}

func (d portalDelegate) Height() int { return 5 }

func (d portalDelegate) Spacing() int { return 1 }

func (d portalDelegate) Update(tea.Msg, *list.Model) tea.Cmd { return nil }

func (d portalDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	it, ok := item.(portalItem)
	if !ok {
		return
	}
	selected := index == m.Index()

	var b strings.Builder
	if selected {
		b.WriteString(SelectedItemStyle.Render("→ " + it.Title()))
	} else {
		b.WriteString("  " + it.Title())
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "  Address: %s\n", net.JoinHostPort(it.portal.IP, strconv.Itoa(it.portal.Port)))
	fmt.Fprintf(&b, "  Device:  %s", it.portal.DeviceID)

	card := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(BorderColor).
		Padding(0, 2).
		MarginLeft(2).
		Width(ContentWidth(d.width) - 10)
	if selected {
		card = card.BorderForeground(HighlightColor)
	}
	_, _ = fmt.Fprint(w, card.Render(b.String()))
}

// DiscoveryModel is the portal discovery screen
type DiscoveryModel struct {
	Scanning      bool
	ScanStartTime time.Time
	ScanTimeout   time.Duration
	PortalList    list.Model
	Err           error

	ManualMode bool
	AddrInput  textinput.Model

	Width  int
	Height int

	scan        ScanFunc
	spinner     spinner.Model
	progressBar progress.Model
	help        help.Model
	keys        discoveryKeyMap
	manualKeys  manualKeyMap
	now         func() time.Time
}

// NewDiscoveryModel creates the discovery screen
func NewDiscoveryModel(scan ScanFunc, timeout time.Duration) DiscoveryModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = SpinnerStyle

	addr := textinput.New()
	addr.Placeholder = "10.42.0.1"
	addr.CharLimit = 21
	addr.Width = 30

	portals := list.New([]list.Item{}, portalDelegate{width: MinTerminalWidth}, MinTerminalWidth, 20)
	portals.Title = "Provisioning portals"
	portals.SetShowStatusBar(false)
	portals.SetFilteringEnabled(true)

	bar := progress.New(progress.WithDefaultGradient())
	bar.Width = 40

	if timeout <= 0 {
		timeout = discovery.DefaultScanTimeout
	}

	return DiscoveryModel{
		ScanTimeout: timeout,
		PortalList:  portals,
		AddrInput:   addr,
		scan:        scan,
		spinner:     s,
		progressBar: bar,
		help:        help.New(),
		keys: discoveryKeyMap{
			Up:     key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "move up")),
			Down:   key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "move down")),
			Enter:  key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "configure")),
			Rescan: key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "rescan")),
			Manual: key.NewBinding(key.WithKeys("m"), key.WithHelp("m", "manual address")),
			Quit:   key.NewBinding(key.WithKeys("q"), key.WithHelp("q", "quit")),
		},
		manualKeys: manualKeyMap{
			Confirm: key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "confirm")),
			Cancel:  key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "cancel")),
		},
		now: time.Now,
	}
}

// Init starts the first scan
func (m DiscoveryModel) Init() tea.Cmd {
	return m.startScan()
}

func (m DiscoveryModel) startScan() tea.Cmd {
	scan, timeout := m.scan, m.ScanTimeout
	return tea.Batch(
		func() tea.Msg { return scanStartMsg{} },
		func() tea.Msg {
			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()
			portals, err := scan(ctx)
			return scanCompleteMsg{portals: portals, err: err}
		},
		m.spinner.Tick,
	)
}

// Update handles messages for the discovery screen
func (m DiscoveryModel) Update(msg tea.Msg) (DiscoveryModel, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.ManualMode {
			return m.updateManualMode(msg)
		}
		if m.Scanning {
			return m, nil
		}
		return m.updateNormalMode(msg)

	case tea.WindowSizeMsg:
		m.Width, m.Height = msg.Width, msg.Height
		m.PortalList.SetDelegate(portalDelegate{width: msg.Width})
		m.PortalList.SetSize(ContentWidth(msg.Width)-4, max(msg.Height-10, 5))
		return m, nil

	case scanStartMsg:
		m.Scanning = true
		m.ScanStartTime = m.now()
		return m, nil

	case scanCompleteMsg:
		m.Scanning = false
		m.Err = msg.err
		items := make([]list.Item, len(msg.portals))
		for i, p := range msg.portals {
			items[i] = portalItem{portal: p}
		}
		return m, m.PortalList.SetItems(items)

	case spinner.TickMsg:
		if !m.Scanning {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m DiscoveryModel) updateNormalMode(msg tea.KeyMsg) (DiscoveryModel, tea.Cmd) {
	if m.PortalList.FilterState() == list.Filtering {
		var cmd tea.Cmd
		m.PortalList, cmd = m.PortalList.Update(msg)
		return m, cmd
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Enter):
		if p := m.SelectedPortal(); p != nil {
			return m, func() tea.Msg { return portalSelectedMsg{portal: p} }
		}
		return m, nil

	case key.Matches(msg, m.keys.Rescan):
		m.Err = nil
		return m, tea.Batch(m.PortalList.SetItems(nil), m.startScan())

	case key.Matches(msg, m.keys.Manual):
		m.ManualMode = true
		m.AddrInput.SetValue("")
		return m, m.AddrInput.Focus()
	}

	var cmd tea.Cmd
	m.PortalList, cmd = m.PortalList.Update(msg)
	return m, cmd
}

func (m DiscoveryModel) updateManualMode(msg tea.KeyMsg) (DiscoveryModel, tea.Cmd) {
	switch {
	case key.Matches(msg, m.manualKeys.Cancel):
		m.ManualMode = false
		m.AddrInput.Blur()
		return m, nil

	case key.Matches(msg, m.manualKeys.Confirm):
		p, err := ManualPortal(m.AddrInput.Value(), m.now())
		if err != nil {
			m.Err = err
			return m, nil
		}
		m.Err = nil
		m.ManualMode = false
		m.AddrInput.Blur()
		items := append([]list.Item{portalItem{portal: p}}, m.PortalList.Items()...)
		cmd := m.PortalList.SetItems(items)
		m.PortalList.Select(0)
		return m, cmd
	}

	var cmd tea.Cmd
	m.AddrInput, cmd = m.AddrInput.Update(msg)
	return m, cmd
}

// ManualPortal builds a portal from an operator-typed "ip" or "ip:port"
func ManualPortal(addr string, now time.Time) (*discovery.Portal, error) {
	addr = strings.TrimSpace(addr)
	host, port := addr, discovery.DefaultPort
	if h, p, err := net.SplitHostPort(addr); err == nil {
		n, err := strconv.Atoi(p)
		if err != nil || n < 1 || n > 65535 {
			return nil, fmt.Errorf("invalid port %q", p)
		}
		host, port = h, n
	}
	if net.ParseIP(host) == nil {
		return nil, fmt.Errorf("invalid IP address %q", host)
	}
	return &discovery.Portal{
		DeviceID:     "manual",
		IP:           host,
		Port:         port,
		DiscoveredAt: now,
	}, nil
}

// SelectedPortal returns the highlighted portal, if any
func (m DiscoveryModel) SelectedPortal() *discovery.Portal {
	if it, ok := m.PortalList.SelectedItem().(portalItem); ok {
		return it.portal
	}
	return nil
}

// View renders the discovery screen
func (m DiscoveryModel) View() string {
	var content, helpText string
	switch {
	case m.ManualMode:
		content = m.renderManualEntry()
		helpText = m.help.View(m.manualKeys)
	case m.Scanning:
		content = m.renderScanning()
		helpText = "scanning..."
	default:
		content = m.renderResults()
		helpText = m.help.View(m.keys)
	}
	return RenderApplicationContainer(content, helpText, m.Width, m.Height)
}

func (m DiscoveryModel) renderScanning() string {
	elapsed := m.now().Sub(m.ScanStartTime)
	percent := min(elapsed.Seconds()/m.ScanTimeout.Seconds(), 1)

	content := lipgloss.JoinVertical(lipgloss.Center,
		"",
		TitleStyle.Render(m.spinner.View()+" SEARCHING FOR PORTALS"),
		SubtitleStyle.Render("Join the device's access point, then wait for the scan..."),
		"",
		m.progressBar.ViewAs(percent),
		"",
		SubtitleStyle.Render(fmt.Sprintf("Elapsed: %ds", int(elapsed.Seconds()))),
	)
	return lipgloss.Place(ContentWidth(m.Width)-4, 0, lipgloss.Center, lipgloss.Top, content)
}

func (m DiscoveryModel) renderResults() string {
	var b strings.Builder
	b.WriteString("\n")

	switch {
	case m.Err != nil:
		b.WriteString("  " + RenderError("Scan failed: "+m.Err.Error()))
		b.WriteString("\n\n")
		b.WriteString(troubleshooting)
	case len(m.PortalList.Items()) == 0:
		b.WriteString("  " + lipgloss.NewStyle().Foreground(WarningColor).Bold(true).Render("! No provisioning portals found"))
		b.WriteString("\n\n")
		b.WriteString(troubleshooting)
	default:
		b.WriteString(m.PortalList.View())
	}
	return b.String()
}

const troubleshooting = `  Troubleshooting:
    • Double-press reset on the device to open its portal
    • Join the device's access point (SwartNinjaNoT...)
    • Press 'm' and enter 10.42.0.1 if mDNS is blocked
`

func (m DiscoveryModel) renderManualEntry() string {
	var b strings.Builder
	b.WriteString(TitleStyle.Render("Enter portal address"))
	b.WriteString("\n\n  Address: ")
	b.WriteString(m.AddrInput.View())
	b.WriteString("\n")
	if m.Err != nil {
		b.WriteString("\n  " + RenderError(m.Err.Error()) + "\n")
	}
	return b.String()
}
