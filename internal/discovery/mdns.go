package discovery

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/grandcat/zeroconf"

	"github.com/swartninja/provisioner/internal/portal"
)

const (
	// DefaultScanTimeout is the default timeout for portal discovery
	DefaultScanTimeout = 10 * time.Second

	// DefaultPort is used when an advertisement carries no port
	DefaultPort = 80
)

// browseFunc matches zeroconf.Resolver.Browse
type browseFunc func(ctx context.Context, service, domain string, entries chan<- *zeroconf.ServiceEntry) error

// Scanner handles mDNS portal discovery
type Scanner struct {
	// Timeout is the maximum time to wait for portal discovery
	Timeout time.Duration

	browse browseFunc
}

// NewScanner creates a new mDNS scanner with default settings
func NewScanner() *Scanner {
	return &Scanner{
		Timeout: DefaultScanTimeout,
	}
}

func (s *Scanner) browser() (browseFunc, error) {
	if s.browse != nil {
		return s.browse, nil
	}
	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create mDNS resolver: %w", err)
	}
	return resolver.Browse, nil
}

// Scan discovers all provisioning portals on the local network until the
// timeout or ctx ends. Duplicate advertisements are collapsed per device.
func (s *Scanner) Scan(ctx context.Context) ([]*Portal, error) {
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	browse, err := s.browser()
	if err != nil {
		return nil, err
	}

	entries := make(chan *zeroconf.ServiceEntry)
	var (
		mu      sync.Mutex
		portals []*Portal
		seen    = make(map[string]bool)
		done    = make(chan struct{})
	)

	go func(in <-chan *zeroconf.ServiceEntry) {
		defer close(done)
		for {
			select {
			case entry, ok := <-in:
				if !ok {
					// the resolver closes the channel on shutdown
					in = nil
					continue
				}
				p := parseServiceEntry(entry)
				if p == nil {
					continue
				}
				key := p.DeviceID + "|" + p.IP
				mu.Lock()
				if !seen[key] {
					seen[key] = true
					portals = append(portals, p)
				}
				mu.Unlock()
			case <-ctx.Done():
				return
			}
		}
	}(entries)

	if err := browse(ctx, portal.ServiceType, portal.ServiceDomain, entries); err != nil {
		return nil, fmt.Errorf("failed to browse for mDNS services: %w", err)
	}

	<-ctx.Done()
	<-done

	mu.Lock()
	defer mu.Unlock()
	return portals, nil
}

// WaitForPortal waits for the portal of a specific device
// Returns the portal or an error if not found within timeout
func (s *Scanner) WaitForPortal(ctx context.Context, deviceID string) (*Portal, error) {
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	browse, err := s.browser()
	if err != nil {
		return nil, err
	}

	entries := make(chan *zeroconf.ServiceEntry)
	found := make(chan *Portal, 1)

	go func(in <-chan *zeroconf.ServiceEntry) {
		for {
			select {
			case entry, ok := <-in:
				if !ok {
					in = nil
					continue
				}
				p := parseServiceEntry(entry)
				if p != nil && p.DeviceID == deviceID {
					found <- p
					cancel()
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}(entries)

	if err := browse(ctx, portal.ServiceType, portal.ServiceDomain, entries); err != nil {
		return nil, fmt.Errorf("failed to browse for mDNS services: %w", err)
	}

	select {
	case p := <-found:
		return p, nil
	case <-ctx.Done():
		select {
		case p := <-found:
			return p, nil
		default:
		}
		return nil, fmt.Errorf("portal for device %s not found within timeout", deviceID)
	}
}

// parseServiceEntry converts a zeroconf service entry to a Portal
// Returns nil if the entry is not a provisioning portal
func parseServiceEntry(entry *zeroconf.ServiceEntry) *Portal {
	if entry == nil {
		return nil
	}

	metadata := make(map[string]string)
	for _, txt := range entry.Text {
		key, value, _ := strings.Cut(txt, "=")
		metadata[key] = value
	}
	if key, value, _ := strings.Cut(portal.TXTProvision, "="); metadata[key] != value {
		return nil
	}

	// Prefer IPv4, the access point has no IPv6 address
	var ip string
	if len(entry.AddrIPv4) > 0 {
		ip = entry.AddrIPv4[0].String()
	} else if len(entry.AddrIPv6) > 0 {
		ip = entry.AddrIPv6[0].String()
	}
	if ip == "" {
		return nil
	}

	port := entry.Port
	if port == 0 {
		port = DefaultPort
	}

	return &Portal{
		DeviceID:     metadata["device"],
		Instance:     entry.Instance,
		Hostname:     entry.HostName,
		IP:           ip,
		Port:         port,
		Metadata:     metadata,
		DiscoveredAt: time.Now(),
	}
}

// QuickScan performs a fast scan with a 3-second timeout
func QuickScan(ctx context.Context) ([]*Portal, error) {
	scanner := NewScanner()
	scanner.Timeout = 3 * time.Second
	return scanner.Scan(ctx)
}
