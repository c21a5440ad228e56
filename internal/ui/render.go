package ui

import (
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/swartninja/provisioner/internal/brokerconfig"
	"github.com/swartninja/provisioner/internal/discovery"
	"github.com/swartninja/provisioner/internal/portal"
	"github.com/swartninja/provisioner/internal/radio"
)

func newTable(width int, headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(MutedColor)).
		Width(max(width, MinTerminalWidth)).
		Headers(headers...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return TableHeaderStyle.Padding(0, 1)
			}
			return TableCellStyle.Padding(0, 1)
		})
}

// RenderPortals renders discovered portals as a table
func RenderPortals(portals []*discovery.Portal, width int) string {
	if len(portals) == 0 {
		return StepPendingStyle.Render("  No provisioning portals found")
	}

	t := newTable(width, "DEVICE", "ACCESS POINT", "ADDRESS", "URL")
	for _, p := range portals {
		t.Row(p.DeviceID, p.Instance, net.JoinHostPort(p.IP, strconv.Itoa(p.Port)), p.BaseURL())
	}
	return t.Render()
}

// SignalBars renders a 0-100 quality as four bars
func SignalBars(quality int) string {
	n := min(max((quality+24)/25, 0), 4)
	bars := strings.Repeat("▮", n) + strings.Repeat("▯", 4-n)

	color := ErrorColor
	switch {
	case quality >= 60:
		color = SuccessColor
	case quality >= 30:
		color = WarningColor
	}
	return lipgloss.NewStyle().Foreground(color).Render(bars)
}

// RenderNetworks renders the networks a portal can see
func RenderNetworks(networks []radio.Network, width int) string {
	if len(networks) == 0 {
		return StepPendingStyle.Render("  No networks in range")
	}

	t := newTable(width, "SSID", "SIGNAL", "SECURITY")
	for _, n := range networks {
		security := "open"
		if n.Secure {
			security = LockMarker + " secured"
		}
		t.Row(n.SSID, fmt.Sprintf("%s %3d%%", SignalBars(n.Quality), n.Quality), security)
	}
	return t.Render()
}

// RenderInfo renders a portal's /info document
func RenderInfo(info *portal.Info, width int) string {
	summary := NewHeader("Provisioning portal", info.SSID,
		KV{"Device", info.DeviceID},
		KV{"Version", info.Version},
		KV{"Min signal", strconv.Itoa(info.MinSignalQuality) + "%"},
	).SetWidth(width)

	fields := newTable(width, "FIELD", "CURRENT VALUE", "MAX")
	for _, p := range info.Fields {
		value := p.Value
		if p.Secret {
			value = MaskSecret(value)
		}
		fields.Row(p.Label, value, strconv.Itoa(p.MaxLength))
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		summary.Render(),
		"",
		fields.Render(),
		"",
		RenderNetworks(info.Networks, width),
	)
}

// RenderMessage renders one event from a portal's stream
func RenderMessage(msg portal.Message) string {
	var parts []string
	if msg.SSID != "" {
		parts = append(parts, "ssid="+msg.SSID)
	}
	if msg.URL != "" {
		parts = append(parts, "url="+msg.URL)
	}
	if msg.Broker != nil {
		parts = append(parts, "broker="+net.JoinHostPort(msg.Broker.Server, msg.Broker.Port))
		if msg.Broker.Username != "" {
			parts = append(parts, "user="+msg.Broker.Username)
		}
	}

	line := EventTimeStyle.Render(msg.Timestamp.Format("15:04:05")) + "  " +
		EventTypeStyle.Render(msg.Type) + " " + strings.Join(parts, " ")
	if msg.Error != "" {
		line += " " + ErrorMessageStyle.Render(msg.Error)
	}
	return line
}

// ConfigDetails lists a broker configuration for a result box, masking the
// password
func ConfigDetails(cfg brokerconfig.ConnectionConfig) []KV {
	details := make([]KV, 0, len(brokerconfig.Fields))
	for _, f := range brokerconfig.Fields {
		value := cfg.Value(f.ID)
		if f.Secret {
			value = MaskSecret(value)
		}
		if value == "" {
			value = StepPendingStyle.Render("(empty)")
		}
		details = append(details, KV{Key: f.Label, Value: value})
	}
	return details
}

// MaskSecret hides a secret, keeping only whether it is set
func MaskSecret(s string) string {
	if s == "" {
		return ""
	}
	return "••••••••"
}
