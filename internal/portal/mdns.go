package portal

import (
	"fmt"

	"github.com/grandcat/zeroconf"
	"go.uber.org/zap"

	"github.com/swartninja/provisioner/internal/logging"
)

const (
	// ServiceType is the mDNS service the portal advertises
	ServiceType = "_http._tcp"

	// ServiceDomain is the mDNS domain
	ServiceDomain = "local."

	// TXTProvision marks a service as a provisioning portal
	TXTProvision = "provision=1"
)

// serviceTXT returns the TXT records of the portal advertisement
func serviceTXT(deviceID string) []string {
	return []string{
		TXTProvision,
		"path=/",
		"device=" + deviceID,
	}
}

// advertise registers the portal over mDNS. The returned func withdraws it.
func advertise(instance, deviceID string, port int) (func(), error) {
	server, err := zeroconf.Register(instance, ServiceType, ServiceDomain, port, serviceTXT(deviceID), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to register mDNS service: %w", err)
	}
	logging.Info("Portal advertised over mDNS",
		zap.String("instance", instance),
		zap.String("service", ServiceType),
		zap.Int("port", port),
	)
	return server.Shutdown, nil
}
