// Package discovery finds provisioning portals on the local network over
// mDNS.
//
// A device serving its configuration portal advertises an "_http._tcp"
// service whose TXT record carries "provision=1" and the device id. Other
// HTTP services on the segment are ignored.
//
// # Usage Example
//
//	portals, err := discovery.NewScanner().Scan(ctx)
//	if err != nil {
//	    return err
//	}
//	for _, p := range portals {
//	    fmt.Println(p.Instance, p.BaseURL())
//	}
//
// # Network Requirements
//
// The operator machine must be joined to the device's access point (or
// share a segment with it) and the firewall must allow mDNS (UDP 5353).
package discovery
