package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/swartninja/provisioner/internal/brokerconfig"
	"github.com/swartninja/provisioner/internal/discovery"
	"github.com/swartninja/provisioner/internal/portal"
	"github.com/swartninja/provisioner/internal/portalclient"
	"github.com/swartninja/provisioner/internal/radio"
)

// requestTimeout bounds each call to the portal from the form
const requestTimeout = 30 * time.Second

// Form field order
const (
	fieldSSID = iota
	fieldPassphrase
	fieldServer
	fieldPort
	fieldUsername
	fieldPassword
	fieldCount
)

var fieldLabels = [fieldCount]string{
	"Network",
	"Passphrase",
	"MQTT server",
	"MQTT port",
	"MQTT username",
	"MQTT password",
}

type infoLoadedMsg struct {
	info *portal.Info
	err  error
}

type submitDoneMsg struct {
	sub portalclient.Submission
	err error
}

// submittedMsg tells the app the portal accepted the form
type submittedMsg struct {
	portal *discovery.Portal
	sub    portalclient.Submission
}

// submitFailedMsg tells the app the submission failed for a reason the
// operator cannot fix in the form
type submitFailedMsg struct {
	err error
}

type backMsg struct{}

type formKeyMap struct {
	Next    key.Binding
	Prev    key.Binding
	Network key.Binding
	Submit  key.Binding
	Back    key.Binding
}

func (k formKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Next, k.Prev, k.Network, k.Submit, k.Back}
}

func (k formKeyMap) FullHelp() [][]key.Binding { return [][]key.Binding{k.ShortHelp()} }

// FormModel is the configuration form for one portal
type FormModel struct {
	Portal  *discovery.Portal
	Info    *portal.Info
	Inputs  []textinput.Model
	Focus   int
	Loading bool
	Sending bool

	// Err is the last load error; Rejected holds the portal's validation
	// messages for the last submission
	Err      error
	Rejected []string

	Width  int
	Height int

	client     *portalclient.Client
	networkIdx int
	spinner    spinner.Model
	help       help.Model
	keys       formKeyMap
}

// NewFormModel creates the form for p
func NewFormModel(client *portalclient.Client, p *discovery.Portal) FormModel {
	limits := [fieldCount]int{
		portal.MaxSSIDLen,
		portal.MaxPassphraseLen,
		brokerconfig.MaxBrokerAddressLen,
		brokerconfig.MaxBrokerPortLen,
		brokerconfig.MaxUsernameLen,
		brokerconfig.MaxPasswordLen,
	}

	inputs := make([]textinput.Model, fieldCount)
	for i := range inputs {
		in := textinput.New()
		in.CharLimit = limits[i]
		in.Width = 40
		in.Prompt = ""
		inputs[i] = in
	}
	inputs[fieldSSID].Placeholder = "keep the current network"
	inputs[fieldPassphrase].EchoMode = textinput.EchoPassword
	inputs[fieldPassword].EchoMode = textinput.EchoPassword
	inputs[fieldPassword].Placeholder = "unchanged"

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = SpinnerStyle

	return FormModel{
		Portal:     p,
		Inputs:     inputs,
		Loading:    true,
		client:     client,
		networkIdx: -1,
		spinner:    s,
		help:       help.New(),
		keys: formKeyMap{
			Next:    key.NewBinding(key.WithKeys("tab", "down"), key.WithHelp("tab", "next field")),
			Prev:    key.NewBinding(key.WithKeys("shift+tab", "up"), key.WithHelp("shift+tab", "previous")),
			Network: key.NewBinding(key.WithKeys("ctrl+n"), key.WithHelp("ctrl+n", "next network")),
			Submit:  key.NewBinding(key.WithKeys("ctrl+s"), key.WithHelp("ctrl+s", "save")),
			Back:    key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back")),
		},
	}
}

// Init loads the portal's current values
func (m FormModel) Init() tea.Cmd {
	client := m.client
	return tea.Batch(
		func() tea.Msg {
			ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
			defer cancel()
			info, err := client.Info(ctx)
			return infoLoadedMsg{info: info, err: err}
		},
		m.spinner.Tick,
	)
}

// Update handles messages for the form
func (m FormModel) Update(msg tea.Msg) (FormModel, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.Width, m.Height = msg.Width, msg.Height
		return m, nil

	case infoLoadedMsg:
		m.Loading = false
		m.Err = msg.err
		if msg.err != nil {
			return m, nil
		}
		m.Info = msg.info
		m.prefill(msg.info)
		return m, m.focus(fieldSSID)

	case submitDoneMsg:
		m.Sending = false
		switch {
		case msg.err == nil:
			p, sub := m.Portal, msg.sub
			return m, func() tea.Msg { return submittedMsg{portal: p, sub: sub} }
		case portalclient.IsValidationError(msg.err):
			m.Rejected = validationDetails(msg.err)
			return m, nil
		default:
			err := msg.err
			return m, func() tea.Msg { return submitFailedMsg{err: err} }
		}

	case spinner.TickMsg:
		if !m.Loading && !m.Sending {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		if m.Sending {
			return m, nil
		}
		if key.Matches(msg, m.keys.Back) {
			return m, func() tea.Msg { return backMsg{} }
		}
		if m.Loading || m.Info == nil {
			return m, nil
		}
		return m.updateEditing(msg)
	}
	return m, nil
}

func (m FormModel) updateEditing(msg tea.KeyMsg) (FormModel, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Submit):
		return m.submit()

	case msg.String() == "enter":
		if m.Focus == fieldCount-1 {
			return m.submit()
		}
		return m, m.focus(m.Focus + 1)

	case key.Matches(msg, m.keys.Next):
		return m, m.focus((m.Focus + 1) % fieldCount)

	case key.Matches(msg, m.keys.Prev):
		return m, m.focus((m.Focus + fieldCount - 1) % fieldCount)

	case key.Matches(msg, m.keys.Network):
		if n := len(m.Info.Networks); n > 0 {
			m.networkIdx = (m.networkIdx + 1) % n
			m.Inputs[fieldSSID].SetValue(m.Info.Networks[m.networkIdx].SSID)
			m.Inputs[fieldSSID].CursorEnd()
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.Inputs[m.Focus], cmd = m.Inputs[m.Focus].Update(msg)
	return m, cmd
}

func (m *FormModel) focus(i int) tea.Cmd {
	m.Focus = i
	var cmd tea.Cmd
	for j := range m.Inputs {
		if j == i {
			cmd = m.Inputs[j].Focus()
		} else {
			m.Inputs[j].Blur()
		}
	}
	return cmd
}

func (m *FormModel) prefill(info *portal.Info) {
	for _, p := range info.Fields {
		switch p.ID {
		case brokerconfig.FieldServer:
			m.Inputs[fieldServer].SetValue(p.Value)
		case brokerconfig.FieldPort:
			m.Inputs[fieldPort].SetValue(p.Value)
		case brokerconfig.FieldUsername:
			m.Inputs[fieldUsername].SetValue(p.Value)
		}
	}
}

// Submission builds what the form will send. A blank password keeps the
// value the portal was pre-filled with.
func (m FormModel) Submission() portalclient.Submission {
	value := func(i int) *string {
		v := strings.TrimSpace(m.Inputs[i].Value())
		return &v
	}
	sub := portalclient.Submission{
		SSID:          strings.TrimSpace(m.Inputs[fieldSSID].Value()),
		Passphrase:    m.Inputs[fieldPassphrase].Value(),
		BrokerAddress: value(fieldServer),
		BrokerPort:    value(fieldPort),
		Username:      value(fieldUsername),
	}
	if pw := m.Inputs[fieldPassword].Value(); pw != "" {
		sub.Password = &pw
	}
	return sub
}

func (m FormModel) submit() (FormModel, tea.Cmd) {
	m.Sending = true
	m.Rejected = nil
	client, sub := m.client, m.Submission()
	return m, tea.Batch(
		func() tea.Msg {
			ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
			defer cancel()
			return submitDoneMsg{sub: sub, err: client.Submit(ctx, sub)}
		},
		m.spinner.Tick,
	)
}

func validationDetails(err error) []string {
	if msg := portalclient.GetShortErrorMessage(err); msg != "" {
		return strings.Split(msg, "; ")
	}
	return []string{err.Error()}
}

// View renders the form
func (m FormModel) View() string {
	return RenderApplicationContainer(m.renderContent(), m.help.View(m.keys), m.Width, m.Height)
}

func (m FormModel) renderContent() string {
	var b strings.Builder
	b.WriteString(TitleStyle.Render("Configure " + m.portalName()))
	b.WriteString("\n")

	switch {
	case m.Loading:
		b.WriteString("  " + m.spinner.View() + " Loading current values...\n")
		return b.String()
	case m.Err != nil:
		b.WriteString("  " + RenderError(portalclient.GetShortErrorMessage(m.Err)) + "\n\n")
		b.WriteString("  " + SubtitleStyle.Render(portalclient.GetTroubleshootingHint(m.Err)) + "\n")
		return b.String()
	}

	for i, in := range m.Inputs {
		label := LabelStyle.Render(fieldLabels[i])
		if i == m.Focus {
			label = FocusedLabelStyle.Render(fieldLabels[i])
		}
		b.WriteString("  " + label + " " + in.View() + "\n")
		if i == fieldPassphrase {
			b.WriteString("\n")
		}
	}

	if len(m.Info.Networks) > 0 {
		b.WriteString("\n  " + SubtitleStyle.Render("Networks in range (ctrl+n to pick):") + "\n")
		b.WriteString(renderNetworks(m.Info.Networks, m.networkIdx))
	}

	if len(m.Rejected) > 0 {
		b.WriteString("\n")
		for _, r := range m.Rejected {
			b.WriteString("  " + RenderError(r) + "\n")
		}
	}
	if m.Sending {
		b.WriteString("\n  " + m.spinner.View() + " Saving...\n")
	}
	return b.String()
}

func (m FormModel) portalName() string {
	if m.Info != nil && m.Info.SSID != "" {
		return m.Info.SSID
	}
	if m.Portal.Instance != "" {
		return m.Portal.Instance
	}
	return m.Portal.IP
}

func renderNetworks(networks []radio.Network, selected int) string {
	var b strings.Builder
	for i, n := range networks {
		line := fmt.Sprintf("%-32s %3d%%", n.SSID, n.Quality)
		if n.Secure {
			line += "  secured"
		}
		if i == selected {
			b.WriteString("  " + SelectedItemStyle.Render("→ "+line) + "\n")
		} else {
			b.WriteString("    " + lipgloss.NewStyle().Foreground(TextColor).Render(line) + "\n")
		}
	}
	return b.String()
}
