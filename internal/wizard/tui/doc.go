// Package tui implements the interactive provisioning wizard of
// provision-cfg.
//
// The wizard is a Bubble Tea program with three screens:
//
//  1. Discovery: browses mDNS for provisioning portals (or takes an address
//     typed with 'm') and lists them as cards.
//  2. Form: loads /info from the selected portal, pre-fills the broker
//     fields and lets the operator pick a network (ctrl+n cycles through
//     the networks the device can see) and submit with ctrl+s.
//  3. Success/Failure: shows what was saved, or the error with a
//     troubleshooting hint.
//
// Validation errors returned by the portal keep the operator on the form
// with the portal's messages listed below the fields. Network and HTTP
// failures move to the failure screen, from which 'r' reopens the form.
//
// A blank password field sends no password, so the portal keeps the value
// it was pre-filled with. A blank network field keeps the network the
// device already knows.
//
// Usage:
//
//	app := tui.NewAppModel(tui.Options{
//	    Scan:      scanner.Scan,
//	    NewClient: func(p *discovery.Portal) *portalclient.Client {
//	        return portalclient.NewClientWithURL(p.BaseURL())
//	    },
//	}, nil)
//	_, err := tea.NewProgram(app, tea.WithAltScreen()).Run()
//
// All model updates happen on the Bubble Tea goroutine; network calls run
// in commands and report back through messages.
package tui
