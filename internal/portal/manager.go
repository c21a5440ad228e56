package portal

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/swartninja/provisioner/internal/brokerconfig"
	"github.com/swartninja/provisioner/internal/logging"
	"github.com/swartninja/provisioner/internal/radio"
)

const (
	// DefaultPort is the HTTP port of the form
	DefaultPort = 80

	// shutdownTimeout bounds the graceful stop of the form server
	shutdownTimeout = 5 * time.Second
)

// Options configures the portal. The signal-quality threshold and static
// address hint are passed through to the network list and radio joins.
type Options struct {
	// DeviceID identifies the device on the form and in the mDNS record
	DeviceID string

	// Port is the HTTP port of the form; 0 picks a free port
	Port int

	// Timeout closes a portal nobody submits to; 0 waits forever
	Timeout time.Duration

	// MinSignalQuality hides weaker networks from the form (percent)
	MinSignalQuality int

	// StaticIP is applied to station joins when non-nil
	StaticIP *radio.StaticIP

	// CaptiveDNS answers every DNS query on the access point with the
	// portal address
	CaptiveDNS bool

	// DNSPort is the captive DNS port (default 53)
	DNSPort int

	// Advertise publishes the portal over mDNS
	Advertise bool
}

// Manager runs portal sessions over a radio.
type Manager struct {
	radio radio.Radio
	opts  Options
}

// NewManager creates a portal manager
func NewManager(r radio.Radio, opts Options) *Manager {
	if opts.DNSPort == 0 {
		opts.DNSPort = DefaultDNSPort
	}
	return &Manager{radio: r, opts: opts}
}

// Session is a running portal interaction. Events delivers EventStarted
// and EventSubmitted at most once each and is closed when the session ends;
// Wait returns the outcome.
type Session struct {
	deviceID string
	events   chan Event
	done     chan struct{}
	result   Result

	mu  sync.Mutex
	hub *hub
}

func newSession(deviceID string) *Session {
	return &Session{
		deviceID: deviceID,
		events:   make(chan Event, 2),
		done:     make(chan struct{}),
	}
}

// Events returns the session's lifecycle notifications
func (s *Session) Events() <-chan Event {
	return s.events
}

// Wait blocks until the session ends and returns its result
func (s *Session) Wait() Result {
	<-s.done
	return s.result
}

// Done is closed when the session has ended
func (s *Session) Done() <-chan struct{} {
	return s.done
}

func (s *Session) emit(ev Event) {
	ev.Time = time.Now()
	logging.LogPortalEvent(ev.Type.String(), ev.SSID, zap.String("url", ev.URL))

	s.mu.Lock()
	h := s.hub
	s.mu.Unlock()
	if h != nil {
		h.broadcast(ev.message(s.deviceID))
	}
	s.events <- ev
}

func (s *Session) attach(h *hub) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hub = h
}

func (s *Session) finish(res Result) {
	s.result = res
	close(s.events)
	close(s.done)
}

// ConfigPortal opens the portal straight away. The session ends on the
// first valid submission, on the portal timeout or when ctx is canceled.
// Values the operator does not submit keep their prefill.
func (m *Manager) ConfigPortal(ctx context.Context, ssid, passphrase string, prefill brokerconfig.ConnectionConfig) *Session {
	s := newSession(m.opts.DeviceID)
	go func() {
		s.finish(m.runPortal(ctx, s, ssid, passphrase, prefill))
	}()
	return s
}

// AutoConnect joins a known network and falls back to the portal when that
// fails. Result.Connected reports whether a network was ultimately joined.
func (m *Manager) AutoConnect(ctx context.Context, ssid, passphrase string, prefill brokerconfig.ConnectionConfig) *Session {
	s := newSession(m.opts.DeviceID)
	go func() {
		err := m.radio.JoinKnownNetwork(ctx, m.opts.StaticIP)
		if err == nil {
			logging.Info("Joined known network", zap.Stringer("address", m.radio.LocalAddress()))
			s.finish(Result{Connected: true, Config: prefill})
			return
		}
		logging.Info("No known network, starting portal", zap.Error(err))
		s.finish(m.runPortal(ctx, s, ssid, passphrase, prefill))
	}()
	return s
}

func (m *Manager) runPortal(ctx context.Context, s *Session, ssid, passphrase string, prefill brokerconfig.ConnectionConfig) Result {
	res := Result{Config: prefill}

	sub, err := m.servePortal(ctx, s, ssid, passphrase, prefill)
	if err != nil {
		res.Err = err
		return res
	}

	res.Submitted = true
	res.Config = sub.Config
	res.Connected = m.join(ctx, sub.Credentials)
	return res
}

// servePortal runs the access point and form until a submission arrives.
// Everything it starts is torn down before it returns.
func (m *Manager) servePortal(ctx context.Context, s *Session, ssid, passphrase string, prefill brokerconfig.ConnectionConfig) (*Submission, error) {
	networks := m.scan(ctx)

	ip, err := m.radio.StartAccessPoint(ctx, ssid, passphrase)
	if err != nil {
		return nil, fmt.Errorf("failed to start access point: %w", err)
	}
	defer func() {
		if err := m.radio.StopAccessPoint(); err != nil {
			logging.Warn("Failed to stop access point", zap.Error(err))
		}
	}()

	ln, err := net.Listen("tcp", net.JoinHostPort(ip.String(), strconv.Itoa(m.opts.Port)))
	if err != nil {
		return nil, fmt.Errorf("failed to listen for portal: %w", err)
	}
	host := ln.Addr().String()
	port := ln.Addr().(*net.TCPAddr).Port
	if port == 80 {
		host = ip.String()
	}

	ps := newPortalServer(m.opts.DeviceID, ssid, host, prefill, networks, m.opts.MinSignalQuality)
	s.attach(ps.hub)

	srv := &http.Server{
		Handler:           ps.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Error("Portal server failed", zap.Error(err))
		}
	}()
	defer func() {
		ps.hub.close(Message{Type: MessageClosed, DeviceID: m.opts.DeviceID, SSID: ssid, Timestamp: time.Now()})
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logging.Warn("Portal server did not shut down cleanly", zap.Error(err))
		}
	}()

	if m.opts.CaptiveDNS {
		dnsServer, err := startCaptiveDNS(ip, m.opts.DNSPort)
		if err != nil {
			logging.Warn("Captive DNS unavailable", zap.Error(err))
		} else {
			defer dnsServer.stop()
		}
	}

	if m.opts.Advertise {
		withdraw, err := advertise(ssid, m.opts.DeviceID, port)
		if err != nil {
			logging.Warn("mDNS advertisement unavailable", zap.Error(err))
		} else {
			defer withdraw()
		}
	}

	s.emit(Event{Type: EventStarted, SSID: ssid, URL: "http://" + host + "/"})

	var timeout <-chan time.Time
	if m.opts.Timeout > 0 {
		timer := time.NewTimer(m.opts.Timeout)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case sub := <-ps.submissions:
		s.emit(Event{Type: EventSubmitted, SSID: ssid, Config: sub.Config})
		return &sub, nil
	case <-timeout:
		logging.LogPortalEvent("timeout", ssid, zap.Duration("timeout", m.opts.Timeout))
		return nil, ErrTimeout
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (m *Manager) scan(ctx context.Context) []radio.Network {
	networks, err := m.radio.Scan(ctx)
	if err != nil {
		logging.Warn("Network scan failed", zap.Error(err))
		return nil
	}
	filtered := radio.FilterByQuality(networks, m.opts.MinSignalQuality)
	logging.Debug("Network scan complete",
		zap.Int("found", len(networks)),
		zap.Int("shown", len(filtered)),
	)
	return filtered
}

// join connects with the submitted credentials, or to a known network when
// the operator left the network name empty.
func (m *Manager) join(ctx context.Context, creds radio.Credentials) bool {
	var err error
	if creds.SSID == "" {
		err = m.radio.JoinKnownNetwork(ctx, m.opts.StaticIP)
	} else {
		err = m.radio.Join(ctx, creds, m.opts.StaticIP)
	}
	if err != nil {
		logging.Warn("Failed to join network after submission",
			zap.String("ssid", creds.SSID),
			zap.Error(err),
		)
		return false
	}
	logging.Info("Joined network", zap.String("ssid", creds.SSID), zap.Stringer("address", m.radio.LocalAddress()))
	return true
}
