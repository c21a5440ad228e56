package radio

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sort"
)

// ErrNoKnownNetwork is returned by JoinKnownNetwork when no remembered
// network could be joined.
var ErrNoKnownNetwork = errors.New("no known network reachable")

// DefaultMinSignalQuality is the lowest signal quality (percent) of a network
// offered on the portal form.
const DefaultMinSignalQuality = 30

// Radio is the WiFi station/access-point interface the provisioner drives.
// Implementations remember networks joined with Join so JoinKnownNetwork can
// reuse them on later boots.
type Radio interface {
	// JoinKnownNetwork connects to a remembered network, applying hint when
	// non-nil. Returns ErrNoKnownNetwork (possibly wrapped) on failure.
	JoinKnownNetwork(ctx context.Context, hint *StaticIP) error

	// Join connects to the given network and remembers it on success.
	Join(ctx context.Context, creds Credentials, hint *StaticIP) error

	// StartAccessPoint brings up a local access point and returns the
	// address the portal should listen on.
	StartAccessPoint(ctx context.Context, ssid, passphrase string) (net.IP, error)

	// StopAccessPoint tears the access point down. It is safe to call when
	// no access point is running.
	StopAccessPoint() error

	// Disconnect drops the station connection
	Disconnect() error

	// LocalAddress returns the station address, or nil when not connected
	LocalAddress() net.IP

	// Scan lists visible networks
	Scan(ctx context.Context) ([]Network, error)
}

// Credentials identify a network to join
type Credentials struct {
	SSID       string
	Passphrase string
}

// StaticIP is the station address hint used instead of DHCP
type StaticIP struct {
	Address net.IP
	Gateway net.IP
	Netmask net.IPMask
}

// DefaultStaticIP returns the static address plan of the device
func DefaultStaticIP() StaticIP {
	return StaticIP{
		Address: net.IPv4(10, 0, 1, 99),
		Gateway: net.IPv4(10, 0, 1, 1),
		Netmask: net.IPv4Mask(255, 255, 255, 0),
	}
}

// ParseStaticIP builds a StaticIP from dotted-quad strings
func ParseStaticIP(address, gateway, netmask string) (StaticIP, error) {
	ip := net.ParseIP(address).To4()
	if ip == nil {
		return StaticIP{}, fmt.Errorf("invalid static address %q", address)
	}
	gw := net.ParseIP(gateway).To4()
	if gw == nil {
		return StaticIP{}, fmt.Errorf("invalid gateway %q", gateway)
	}
	mask := net.ParseIP(netmask).To4()
	if mask == nil {
		return StaticIP{}, fmt.Errorf("invalid netmask %q", netmask)
	}
	return StaticIP{Address: ip, Gateway: gw, Netmask: net.IPMask(mask)}, nil
}

// PrefixLen returns the netmask as a CIDR prefix length
func (s StaticIP) PrefixLen() int {
	ones, _ := s.Netmask.Size()
	return ones
}

// CIDR returns the address in a.b.c.d/n form
func (s StaticIP) CIDR() string {
	return fmt.Sprintf("%s/%d", s.Address, s.PrefixLen())
}

// String returns a human-readable summary
func (s StaticIP) String() string {
	return fmt.Sprintf("%s gw %s", s.CIDR(), s.Gateway)
}

// Network is a visible WiFi network
type Network struct {
	SSID    string `json:"ssid"`
	Quality int    `json:"quality"` // Signal quality, percent
	Secure  bool   `json:"secure"`
}

// SignalQuality converts an RSSI in dBm to a 0-100 quality percentage:
// -100 dBm or weaker is 0, -50 dBm or stronger is 100.
func SignalQuality(rssi int) int {
	switch {
	case rssi <= -100:
		return 0
	case rssi >= -50:
		return 100
	default:
		return 2 * (rssi + 100)
	}
}

// FilterByQuality drops networks below minQuality, hidden networks and
// duplicate SSIDs (keeping the strongest), sorted strongest first.
func FilterByQuality(networks []Network, minQuality int) []Network {
	best := make(map[string]Network)
	for _, n := range networks {
		if n.SSID == "" || n.Quality < minQuality {
			continue
		}
		if prev, ok := best[n.SSID]; !ok || n.Quality > prev.Quality {
			best[n.SSID] = n
		}
	}

	result := make([]Network, 0, len(best))
	for _, n := range best {
		result = append(result, n)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Quality != result[j].Quality {
			return result[i].Quality > result[j].Quality
		}
		return result[i].SSID < result[j].SSID
	})
	return result
}
