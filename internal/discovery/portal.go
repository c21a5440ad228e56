package discovery

import (
	"fmt"
	"net"
	"strconv"
	"time"
)

// Portal represents a provisioning portal found on the network
type Portal struct {
	// DeviceID is the id of the device serving the portal (e.g., "42")
	DeviceID string

	// Instance is the mDNS instance name, which is the access point SSID
	// (e.g., "SwartNinjaNoT42")
	Instance string

	// Hostname is the mDNS hostname
	Hostname string

	// IP is the IPv4 address (e.g., "10.42.0.1")
	IP string

	// Port is the HTTP port (typically 80)
	Port int

	// Metadata contains the mDNS TXT record data
	// Common fields: "provision=1", "path=/", "device=42"
	Metadata map[string]string

	// DiscoveredAt is when the portal was discovered
	DiscoveredAt time.Time
}

// String returns a human-readable string representation of the portal
func (p *Portal) String() string {
	return fmt.Sprintf("Portal %s (device %s) at %s", p.Instance, p.DeviceID, net.JoinHostPort(p.IP, strconv.Itoa(p.Port)))
}

// BaseURL returns the HTTP base URL for the portal, with a trailing slash
func (p *Portal) BaseURL() string {
	path := p.GetMetadata("path")
	if path == "" {
		path = "/"
	}
	return "http://" + net.JoinHostPort(p.IP, strconv.Itoa(p.Port)) + path
}

// GetMetadata retrieves a metadata value by key, or returns empty string if not found
func (p *Portal) GetMetadata(key string) string {
	if p.Metadata == nil {
		return ""
	}
	return p.Metadata[key]
}
