//go:build linux

package radio

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// NMCLIConfig holds the settings of the NetworkManager backend.
type NMCLIConfig struct {
	// Path is the nmcli binary. Default: "nmcli" (searches PATH)
	Path string

	// Interface is the WiFi device. Default: "wlan0"
	Interface string

	// APConnection is the connection profile name used for the access point
	APConnection string

	// Timeout bounds each nmcli invocation. Default: 45 seconds
	Timeout time.Duration
}

// DefaultNMCLIConfig returns an NMCLIConfig with sensible defaults.
func DefaultNMCLIConfig() NMCLIConfig {
	return NMCLIConfig{
		Path:         "nmcli",
		Interface:    "wlan0",
		APConnection: "provisioner-ap",
		Timeout:      45 * time.Second,
	}
}

// runFunc executes nmcli with args and returns its stdout
type runFunc func(ctx context.Context, args ...string) (string, error)

// NMCLI drives a NetworkManager-managed WiFi device through nmcli.
// NetworkManager keeps the connection profiles, so networks joined with
// Join are known on the next boot.
type NMCLI struct {
	config NMCLIConfig
	logger *zap.Logger
	run    runFunc
}

// NewNMCLI creates a NetworkManager backend.
func NewNMCLI(config NMCLIConfig, logger *zap.Logger) *NMCLI {
	defaults := DefaultNMCLIConfig()
	if config.Path == "" {
		config.Path = defaults.Path
	}
	if config.Interface == "" {
		config.Interface = defaults.Interface
	}
	if config.APConnection == "" {
		config.APConnection = defaults.APConnection
	}
	if config.Timeout <= 0 {
		config.Timeout = defaults.Timeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	n := &NMCLI{config: config, logger: logger}
	n.run = n.exec
	return n
}

func (n *NMCLI) exec(ctx context.Context, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, n.config.Timeout)
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, n.config.Path, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	n.logger.Debug("nmcli finished",
		zap.Strings("args", redactArgs(args)),
		zap.Duration("duration", time.Since(start)),
		zap.String("stderr", strings.TrimSpace(stderr.String())),
		zap.Error(err),
	)
	if err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return "", fmt.Errorf("nmcli %s: %s", args[0], msg)
	}
	return stdout.String(), nil
}

// JoinKnownNetwork implements Radio
func (n *NMCLI) JoinKnownNetwork(ctx context.Context, hint *StaticIP) error {
	out, err := n.run(ctx, "-t", "-f", "NAME,TYPE", "connection", "show")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNoKnownNetwork, err)
	}

	var lastErr error
	for _, fields := range parseTerse(out) {
		if len(fields) < 2 || fields[1] != "802-11-wireless" || fields[0] == n.config.APConnection {
			continue
		}
		name := fields[0]
		if err := n.applyHint(ctx, name, hint); err != nil {
			lastErr = err
			continue
		}
		if _, err := n.run(ctx, "connection", "up", "id", name, "ifname", n.config.Interface); err != nil {
			n.logger.Info("Known network unavailable", zap.String("connection", name), zap.Error(err))
			lastErr = err
			continue
		}
		n.logger.Info("Joined known network", zap.String("connection", name))
		return nil
	}

	if lastErr != nil {
		return fmt.Errorf("%w: %v", ErrNoKnownNetwork, lastErr)
	}
	return ErrNoKnownNetwork
}

// Join implements Radio
func (n *NMCLI) Join(ctx context.Context, creds Credentials, hint *StaticIP) error {
	args := []string{"device", "wifi", "connect", creds.SSID, "ifname", n.config.Interface}
	if creds.Passphrase != "" {
		args = append(args, "password", creds.Passphrase)
	}
	if _, err := n.run(ctx, args...); err != nil {
		return err
	}
	// nmcli names the new profile after the SSID
	if err := n.applyHint(ctx, creds.SSID, hint); err != nil {
		return err
	}
	if hint != nil {
		if _, err := n.run(ctx, "connection", "up", "id", creds.SSID); err != nil {
			return err
		}
	}
	return nil
}

func (n *NMCLI) applyHint(ctx context.Context, name string, hint *StaticIP) error {
	if hint == nil {
		return nil
	}
	_, err := n.run(ctx, "connection", "modify", "id", name,
		"ipv4.method", "manual",
		"ipv4.addresses", hint.CIDR(),
		"ipv4.gateway", hint.Gateway.String(),
	)
	return err
}

// StartAccessPoint implements Radio
func (n *NMCLI) StartAccessPoint(ctx context.Context, ssid, passphrase string) (net.IP, error) {
	args := []string{"device", "wifi", "hotspot",
		"ifname", n.config.Interface,
		"con-name", n.config.APConnection,
		"ssid", ssid,
	}
	if passphrase != "" {
		args = append(args, "password", passphrase)
	}
	if _, err := n.run(ctx, args...); err != nil {
		return nil, err
	}

	addr := n.deviceAddress(ctx)
	if addr == nil {
		// NetworkManager's shared-mode default
		addr = net.IPv4(10, 42, 0, 1)
	}
	return addr, nil
}

// StopAccessPoint implements Radio
func (n *NMCLI) StopAccessPoint() error {
	_, err := n.run(context.Background(), "connection", "down", "id", n.config.APConnection)
	if err != nil && strings.Contains(err.Error(), "not an active connection") {
		return nil
	}
	return err
}

// Disconnect implements Radio
func (n *NMCLI) Disconnect() error {
	_, err := n.run(context.Background(), "device", "disconnect", n.config.Interface)
	return err
}

// LocalAddress implements Radio
func (n *NMCLI) LocalAddress() net.IP {
	return n.deviceAddress(context.Background())
}

func (n *NMCLI) deviceAddress(ctx context.Context) net.IP {
	out, err := n.run(ctx, "-g", "IP4.ADDRESS", "device", "show", n.config.Interface)
	if err != nil {
		return nil
	}
	for _, line := range strings.Split(out, "\n") {
		// Multiple addresses are separated by " | "
		first := strings.TrimSpace(strings.Split(line, "|")[0])
		if first == "" {
			continue
		}
		if ip, _, err := net.ParseCIDR(first); err == nil {
			return ip
		}
		if ip := net.ParseIP(first); ip != nil {
			return ip
		}
	}
	return nil
}

// Scan implements Radio
func (n *NMCLI) Scan(ctx context.Context) ([]Network, error) {
	out, err := n.run(ctx, "-t", "-f", "SSID,SIGNAL,SECURITY", "device", "wifi", "list",
		"ifname", n.config.Interface, "--rescan", "yes")
	if err != nil {
		return nil, err
	}

	var networks []Network
	for _, fields := range parseTerse(out) {
		if len(fields) < 3 {
			continue
		}
		quality, err := strconv.Atoi(fields[1])
		if err != nil {
			continue
		}
		security := strings.TrimSpace(fields[2])
		networks = append(networks, Network{
			SSID:    fields[0],
			Quality: quality,
			Secure:  security != "" && security != "--",
		})
	}
	return networks, nil
}

// parseTerse splits nmcli -t output into fields, honoring backslash escapes
// of ':' and '\'.
func parseTerse(out string) [][]string {
	var rows [][]string
	for _, line := range strings.Split(out, "\n") {
		if line == "" {
			continue
		}
		var fields []string
		var cur strings.Builder
		escaped := false
		for _, r := range line {
			switch {
			case escaped:
				cur.WriteRune(r)
				escaped = false
			case r == '\\':
				escaped = true
			case r == ':':
				fields = append(fields, cur.String())
				cur.Reset()
			default:
				cur.WriteRune(r)
			}
		}
		fields = append(fields, cur.String())
		rows = append(rows, fields)
	}
	return rows
}

func redactArgs(args []string) []string {
	out := make([]string, len(args))
	copy(out, args)
	for i := 0; i < len(out)-1; i++ {
		if out[i] == "password" {
			out[i+1] = "********"
		}
	}
	return out
}

var _ Radio = (*NMCLI)(nil)
