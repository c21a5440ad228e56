package tui

import (
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/swartninja/provisioner/internal/discovery"
	"github.com/swartninja/provisioner/internal/portalclient"
)

// Screen identifies the active screen
type Screen string

const (
	ScreenDiscovery Screen = "discovery"
	ScreenForm      Screen = "form"
	ScreenSuccess   Screen = "success"
	ScreenFailure   Screen = "failure"
)

// Options wires the wizard to the network
type Options struct {
	// Scan finds portals; ScanTimeout bounds each scan
	Scan        ScanFunc
	ScanTimeout time.Duration

	// NewClient returns a client for a selected portal
	NewClient func(p *discovery.Portal) *portalclient.Client
}

type resultKeyMap struct {
	Retry    key.Binding
	Discover key.Binding
	Quit     key.Binding
}

func (k resultKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Retry, k.Discover, k.Quit}
}

func (k resultKeyMap) FullHelp() [][]key.Binding { return [][]key.Binding{k.ShortHelp()} }

// AppModel coordinates the screens
type AppModel struct {
	CurrentScreen Screen

	DiscoveryModel DiscoveryModel
	FormModel      FormModel

	SelectedPortal *discovery.Portal
	Submitted      *portalclient.Submission
	LastError      error

	Width  int
	Height int

	opts       Options
	help       help.Model
	resultKeys resultKeyMap
}

// NewAppModel creates the wizard. With a non-nil start portal the form opens
// directly and discovery is skipped.
func NewAppModel(opts Options, start *discovery.Portal) AppModel {
	m := AppModel{
		CurrentScreen:  ScreenDiscovery,
		SelectedPortal: start,
		opts:           opts,
		help:           help.New(),
		resultKeys: resultKeyMap{
			Retry:    key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "edit again")),
			Discover: key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "discover")),
			Quit:     key.NewBinding(key.WithKeys("q", "enter"), key.WithHelp("q", "quit")),
		},
	}
	if start != nil {
		m.CurrentScreen = ScreenForm
		m.FormModel = NewFormModel(opts.NewClient(start), start)
	} else {
		m.DiscoveryModel = NewDiscoveryModel(opts.Scan, opts.ScanTimeout)
	}
	return m
}

// Init starts the first screen
func (m AppModel) Init() tea.Cmd {
	if m.CurrentScreen == ScreenForm {
		return m.FormModel.Init()
	}
	return m.DiscoveryModel.Init()
}

// Update routes messages to the active screen and handles transitions
func (m AppModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		// other screens pick the size up in transitionTo
		m.Width, m.Height = msg.Width, msg.Height

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}

	case portalSelectedMsg:
		m.SelectedPortal = msg.portal
		return m.transitionTo(ScreenForm)

	case backMsg:
		if m.opts.Scan == nil {
			return m, tea.Quit
		}
		return m.transitionTo(ScreenDiscovery)

	case submittedMsg:
		m.Submitted = &msg.sub
		m.LastError = nil
		return m.transitionTo(ScreenSuccess)

	case submitFailedMsg:
		m.LastError = msg.err
		return m.transitionTo(ScreenFailure)
	}

	var cmd tea.Cmd
	switch m.CurrentScreen {
	case ScreenDiscovery:
		m.DiscoveryModel, cmd = m.DiscoveryModel.Update(msg)
	case ScreenForm:
		m.FormModel, cmd = m.FormModel.Update(msg)
	case ScreenSuccess, ScreenFailure:
		return m.updateResult(msg)
	}
	return m, cmd
}

func (m AppModel) updateResult(msg tea.Msg) (tea.Model, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch {
	case key.Matches(keyMsg, m.resultKeys.Quit):
		return m, tea.Quit
	case key.Matches(keyMsg, m.resultKeys.Retry) && m.CurrentScreen == ScreenFailure:
		return m.transitionTo(ScreenForm)
	case key.Matches(keyMsg, m.resultKeys.Discover) && m.opts.Scan != nil:
		return m.transitionTo(ScreenDiscovery)
	}
	return m, nil
}

func (m AppModel) transitionTo(screen Screen) (tea.Model, tea.Cmd) {
	m.CurrentScreen = screen

	var cmd tea.Cmd
	switch screen {
	case ScreenDiscovery:
		m.DiscoveryModel = NewDiscoveryModel(m.opts.Scan, m.opts.ScanTimeout)
		m.DiscoveryModel.Width, m.DiscoveryModel.Height = m.Width, m.Height
		cmd = m.DiscoveryModel.Init()
	case ScreenForm:
		m.FormModel = NewFormModel(m.opts.NewClient(m.SelectedPortal), m.SelectedPortal)
		m.FormModel.Width, m.FormModel.Height = m.Width, m.Height
		cmd = m.FormModel.Init()
	}
	return m, cmd
}

// View renders the active screen
func (m AppModel) View() string {
	switch m.CurrentScreen {
	case ScreenDiscovery:
		return m.DiscoveryModel.View()
	case ScreenForm:
		return m.FormModel.View()
	case ScreenSuccess:
		return RenderApplicationContainer(m.successContent(), m.help.View(m.resultKeys), m.Width, m.Height)
	case ScreenFailure:
		return RenderApplicationContainer(m.failureContent(), m.help.View(m.resultKeys), m.Width, m.Height)
	default:
		return "Unknown screen"
	}
}

func (m AppModel) successContent() string {
	var b strings.Builder
	b.WriteString(TitleStyle.Render("✓ Configuration saved"))
	b.WriteString("\n")

	if sub := m.Submitted; sub != nil {
		network := sub.SSID
		if network == "" {
			network = "(unchanged)"
		}
		lines := []string{
			"Network:   " + network,
			"Broker:    " + deref(sub.BrokerAddress) + ":" + deref(sub.BrokerPort),
			"Username:  " + deref(sub.Username),
		}
		if sub.Password != nil {
			lines = append(lines, "Password:  updated")
		}
		b.WriteString(ResultBoxStyle.BorderForeground(SecondaryColor).Render(strings.Join(lines, "\n")))
		b.WriteString("\n\n")
	}

	b.WriteString(SubtitleStyle.Render("The device closes its access point and joins the network.\n" +
		"It restarts into configuration mode if the broker fields are incomplete."))
	b.WriteString("\n")
	return b.String()
}

func (m AppModel) failureContent() string {
	var b strings.Builder
	b.WriteString(TitleStyle.Foreground(ErrorColor).Render("✗ Configuration not saved"))
	b.WriteString("\n")

	if m.LastError != nil {
		box := ResultBoxStyle.BorderForeground(ErrorColor).Render(
			lipgloss.JoinVertical(lipgloss.Left,
				RenderError(portalclient.GetShortErrorMessage(m.LastError)),
				"",
				SubtitleStyle.Render(portalclient.GetTroubleshootingHint(m.LastError)),
			))
		b.WriteString(box)
		b.WriteString("\n")
	}
	return b.String()
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
