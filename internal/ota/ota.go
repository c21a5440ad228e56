package ota

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/grandcat/zeroconf"
	"go.uber.org/zap"

	"github.com/swartninja/provisioner/internal/logging"
)

const (
	// DefaultPort is the UDP port update tools send invitations to
	DefaultPort = 8266

	// ServiceType is the mDNS service update tools browse for
	ServiceType = "_arduino._tcp"

	// pollWait is how long ServiceOnce waits for a pending invitation
	pollWait = time.Millisecond

	maxInvitationSize = 512
)

// Service is the update collaborator driven by the service loop.
type Service interface {
	// Begin starts listening for updates. It is called once per boot.
	Begin() error
	// ServiceOnce handles whatever is pending without blocking for long.
	ServiceOnce()
}

// Nop is a Service that does nothing
type Nop struct{}

// Begin implements Service
func (Nop) Begin() error { return nil }

// ServiceOnce implements Service
func (Nop) ServiceOnce() {}

// Invitation is an update request received from the network. The payload
// is handed over unparsed.
type Invitation struct {
	From     net.Addr
	Payload  []byte
	Received time.Time
}

// Installer acts on update invitations
type Installer interface {
	HandleInvitation(inv Invitation)
}

// LogInstaller records invitations and takes no further action.
type LogInstaller struct{}

// HandleInvitation implements Installer
func (LogInstaller) HandleInvitation(inv Invitation) {
	logging.Info("Update invitation received",
		zap.Stringer("from", inv.From),
		zap.Int("bytes", len(inv.Payload)),
	)
}

// Config configures the Announcer
type Config struct {
	// Hostname is the mDNS instance name (default: os.Hostname)
	Hostname string

	// Port is the UDP invitation port; 0 picks a free port
	Port int

	// Advertise publishes the service over mDNS
	Advertise bool
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() Config {
	return Config{Port: DefaultPort, Advertise: true}
}

// Announcer advertises the device as an update target and polls for
// invitations on every service-loop tick.
type Announcer struct {
	config    Config
	installer Installer

	mu   sync.Mutex
	conn net.PacketConn
	mdns *zeroconf.Server
	buf  []byte
}

// NewAnnouncer creates an announcer handing invitations to installer
func NewAnnouncer(config Config, installer Installer) *Announcer {
	if installer == nil {
		installer = LogInstaller{}
	}
	return &Announcer{
		config:    config,
		installer: installer,
		buf:       make([]byte, maxInvitationSize),
	}
}

// Begin implements Service. Calling it again is a no-op.
func (a *Announcer) Begin() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.conn != nil {
		return nil
	}

	conn, err := net.ListenPacket("udp", ":"+strconv.Itoa(a.config.Port))
	if err != nil {
		return fmt.Errorf("failed to listen for update invitations: %w", err)
	}
	a.conn = conn
	port := conn.LocalAddr().(*net.UDPAddr).Port

	if a.config.Advertise {
		hostname := a.config.Hostname
		if hostname == "" {
			hostname, _ = os.Hostname()
		}
		txt := []string{"tcp_check=no", "ssh_upload=no", "auth_upload=no", "board=provisioner"}
		server, err := zeroconf.Register(hostname, ServiceType, "local.", port, txt, nil)
		if err != nil {
			logging.Warn("Update service not advertised", zap.Error(err))
		} else {
			a.mdns = server
		}
	}

	logging.Info("Update service listening", zap.Int("port", port))
	return nil
}

// ServiceOnce implements Service
func (a *Announcer) ServiceOnce() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.conn == nil {
		return
	}
	if err := a.conn.SetReadDeadline(time.Now().Add(pollWait)); err != nil {
		return
	}
	n, from, err := a.conn.ReadFrom(a.buf)
	if err != nil {
		var netErr net.Error
		if !errors.As(err, &netErr) || !netErr.Timeout() {
			logging.Warn("Update invitation read failed", zap.Error(err))
		}
		return
	}

	payload := make([]byte, n)
	copy(payload, a.buf[:n])
	a.installer.HandleInvitation(Invitation{From: from, Payload: payload, Received: time.Now()})
}

// Addr returns the invitation socket address, or nil before Begin
func (a *Announcer) Addr() net.Addr {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.conn == nil {
		return nil
	}
	return a.conn.LocalAddr()
}

// Close withdraws the advertisement and closes the socket
func (a *Announcer) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.mdns != nil {
		a.mdns.Shutdown()
		a.mdns = nil
	}
	if a.conn == nil {
		return nil
	}
	err := a.conn.Close()
	a.conn = nil
	return err
}
