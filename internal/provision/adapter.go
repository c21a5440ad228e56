package provision

import (
	"context"

	"github.com/swartninja/provisioner/internal/brokerconfig"
	"github.com/swartninja/provisioner/internal/portal"
)

// managerPortal adapts *portal.Manager to Portal
type managerPortal struct {
	m *portal.Manager
}

// PortalFromManager returns a Portal backed by m
func PortalFromManager(m *portal.Manager) Portal {
	return managerPortal{m: m}
}

func (p managerPortal) ConfigPortal(ctx context.Context, ssid, passphrase string, prefill brokerconfig.ConnectionConfig) Session {
	return p.m.ConfigPortal(ctx, ssid, passphrase, prefill)
}

func (p managerPortal) AutoConnect(ctx context.Context, ssid, passphrase string, prefill brokerconfig.ConnectionConfig) Session {
	return p.m.AutoConnect(ctx, ssid, passphrase, prefill)
}
