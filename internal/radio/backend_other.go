//go:build !linux

package radio

import (
	"fmt"
	"runtime"
	"time"

	"go.uber.org/zap"
)

// NMCLIConfig holds the settings of the NetworkManager backend, which is
// only available on linux.
type NMCLIConfig struct {
	Path         string
	Interface    string
	APConnection string
	Timeout      time.Duration
}

// DefaultNMCLIConfig returns an NMCLIConfig with sensible defaults.
func DefaultNMCLIConfig() NMCLIConfig {
	return NMCLIConfig{Path: "nmcli", Interface: "wlan0", APConnection: "provisioner-ap", Timeout: 45 * time.Second}
}

func openNMCLI(NMCLIConfig, *zap.Logger) (Radio, error) {
	return nil, fmt.Errorf("radio backend %q is not supported on %s", BackendNMCLI, runtime.GOOS)
}
