package radio

import (
	"context"
	"fmt"
	"net"
	"sync"

	"go.uber.org/zap"

	"github.com/swartninja/provisioner/internal/logging"
)

// SimNetwork is a network the simulated radio can see
type SimNetwork struct {
	SSID       string
	RSSI       int // dBm
	Passphrase string
}

// Sim is an in-memory Radio for desktop runs and tests.
type Sim struct {
	// APAddress is returned by StartAccessPoint (default 127.0.0.1)
	APAddress net.IP

	// StationAddress is used when no static hint is given (default 192.168.1.50)
	StationAddress net.IP

	// JoinErr, when set, makes every join fail with it
	JoinErr error

	mu        sync.Mutex
	networks  []SimNetwork
	known     map[string]string
	connected string
	address   net.IP
	apUp      bool
	apSSID    string
	calls     []string
}

// NewSim creates a simulated radio seeing networks
func NewSim(networks ...SimNetwork) *Sim {
	return &Sim{
		APAddress:      net.IPv4(127, 0, 0, 1),
		StationAddress: net.IPv4(192, 168, 1, 50),
		networks:       networks,
		known:          make(map[string]string),
	}
}

// Remember adds a network to the known list, as if joined on an earlier boot
func (s *Sim) Remember(ssid, passphrase string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.known[ssid] = passphrase
}

// Forget removes every known network
func (s *Sim) Forget() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.known = make(map[string]string)
}

// JoinKnownNetwork implements Radio
func (s *Sim) JoinKnownNetwork(ctx context.Context, hint *StaticIP) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, "JoinKnownNetwork")

	if err := ctx.Err(); err != nil {
		return err
	}
	if s.JoinErr != nil {
		return fmt.Errorf("%w: %v", ErrNoKnownNetwork, s.JoinErr)
	}
	for _, n := range s.networks {
		if pass, ok := s.known[n.SSID]; ok && pass == n.Passphrase {
			s.connectLocked(n.SSID, hint)
			return nil
		}
	}
	return ErrNoKnownNetwork
}

// Join implements Radio
func (s *Sim) Join(ctx context.Context, creds Credentials, hint *StaticIP) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, "Join")

	if err := ctx.Err(); err != nil {
		return err
	}
	if s.JoinErr != nil {
		return s.JoinErr
	}
	for _, n := range s.networks {
		if n.SSID != creds.SSID {
			continue
		}
		if n.Passphrase != creds.Passphrase {
			return fmt.Errorf("authentication failed for %q", creds.SSID)
		}
		s.known[n.SSID] = creds.Passphrase
		s.connectLocked(n.SSID, hint)
		return nil
	}
	return fmt.Errorf("network %q not found", creds.SSID)
}

func (s *Sim) connectLocked(ssid string, hint *StaticIP) {
	s.connected = ssid
	s.address = s.StationAddress
	if hint != nil {
		s.address = hint.Address
	}
	logging.Debug("Simulated radio joined network",
		zap.String("ssid", ssid),
		zap.Stringer("address", s.address),
	)
}

// StartAccessPoint implements Radio
func (s *Sim) StartAccessPoint(ctx context.Context, ssid, passphrase string) (net.IP, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, "StartAccessPoint")

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if passphrase != "" && len(passphrase) < 8 {
		return nil, fmt.Errorf("access point passphrase must be at least 8 characters")
	}
	s.apUp = true
	s.apSSID = ssid
	return s.APAddress, nil
}

// StopAccessPoint implements Radio
func (s *Sim) StopAccessPoint() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, "StopAccessPoint")
	s.apUp = false
	return nil
}

// Disconnect implements Radio
func (s *Sim) Disconnect() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, "Disconnect")
	s.connected = ""
	s.address = nil
	return nil
}

// LocalAddress implements Radio
func (s *Sim) LocalAddress() net.IP {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.address
}

// Scan implements Radio
func (s *Sim) Scan(ctx context.Context) ([]Network, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, "Scan")

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	result := make([]Network, 0, len(s.networks))
	for _, n := range s.networks {
		result = append(result, Network{
			SSID:    n.SSID,
			Quality: SignalQuality(n.RSSI),
			Secure:  n.Passphrase != "",
		})
	}
	return result, nil
}

// Connected returns the SSID of the joined network, or ""
func (s *Sim) Connected() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

// AccessPointUp reports whether the access point is running and its SSID
func (s *Sim) AccessPointUp() (bool, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.apUp, s.apSSID
}

// Calls returns the Radio methods invoked so far, in order
func (s *Sim) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}
