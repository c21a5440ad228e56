// Package portal runs the captive configuration portal.
//
// A session brings up an access point through the radio, serves a form
// pre-filled with the current broker settings and waits for the operator to
// submit it. Progress is reported on Session.Events:
//
//	sess := mgr.ConfigPortal(ctx, "SwartNinjaNoT42", "SwartNinja", cfg)
//	for ev := range sess.Events() {
//	    switch ev.Type {
//	    case portal.EventStarted:   // access point is up
//	    case portal.EventSubmitted: // operator saved the form
//	    }
//	}
//	res := sess.Wait()
//
// HTTP surface of a running portal:
//
//	GET  /        configuration form
//	POST /save    form submission (s, p, server, port, username, password)
//	GET  /info    JSON device and network info (passwords omitted)
//	GET  /events  WebSocket stream of portal messages
//
// Connectivity probes of common client OSes are redirected to the form, and
// the portal can answer DNS for every name and advertise itself over mDNS
// as an _http._tcp service with a provision=1 TXT record.
package portal
