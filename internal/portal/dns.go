package portal

import (
	"fmt"
	"net"
	"strconv"

	"github.com/miekg/dns"
	"go.uber.org/zap"

	"github.com/swartninja/provisioner/internal/logging"
)

// DefaultDNSPort is where the captive DNS responder listens
const DefaultDNSPort = 53

// captiveTTL keeps clients from caching the portal address past the session
const captiveTTL = 60

// captiveDNS answers every A query with the portal address so clients on
// the access point land on the form whatever host they ask for.
type captiveDNS struct {
	ip     net.IP
	server *dns.Server
}

// startCaptiveDNS listens on ip:port (UDP) and serves in the background.
func startCaptiveDNS(ip net.IP, port int) (*captiveDNS, error) {
	pc, err := net.ListenPacket("udp", net.JoinHostPort(ip.String(), strconv.Itoa(port)))
	if err != nil {
		return nil, fmt.Errorf("failed to listen for DNS: %w", err)
	}
	return serveCaptiveDNS(pc, ip), nil
}

func serveCaptiveDNS(pc net.PacketConn, ip net.IP) *captiveDNS {
	c := &captiveDNS{ip: ip.To4()}
	started := make(chan struct{})
	c.server = &dns.Server{
		PacketConn:        pc,
		Handler:           dns.HandlerFunc(c.handle),
		NotifyStartedFunc: func() { close(started) },
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- c.server.ActivateAndServe()
	}()

	// Shutdown fails on a server that has not started yet
	select {
	case <-started:
		logging.Debug("Captive DNS listening", zap.String("addr", pc.LocalAddr().String()))
	case err := <-errCh:
		logging.Warn("Captive DNS stopped", zap.Error(err))
	}
	return c
}

func (c *captiveDNS) handle(w dns.ResponseWriter, r *dns.Msg) {
	m := new(dns.Msg)
	m.SetReply(r)
	m.Authoritative = true

	for _, q := range r.Question {
		if q.Qclass != dns.ClassINET {
			continue
		}
		if q.Qtype != dns.TypeA && q.Qtype != dns.TypeANY {
			continue
		}
		m.Answer = append(m.Answer, &dns.A{
			Hdr: dns.RR_Header{
				Name:   q.Name,
				Rrtype: dns.TypeA,
				Class:  dns.ClassINET,
				Ttl:    captiveTTL,
			},
			A: c.ip,
		})
	}

	if err := w.WriteMsg(m); err != nil {
		logging.Debug("Failed to write DNS answer", zap.Error(err))
	}
}

func (c *captiveDNS) stop() {
	if err := c.server.Shutdown(); err != nil {
		logging.Debug("Captive DNS shutdown", zap.Error(err))
	}
}
