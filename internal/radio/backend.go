package radio

import (
	"fmt"

	"go.uber.org/zap"
)

// Backend names accepted by Open
const (
	BackendSim   = "sim"
	BackendNMCLI = "nmcli"
)

// Open returns the Radio backend selected by name.
func Open(backend string, config NMCLIConfig, logger *zap.Logger) (Radio, error) {
	switch backend {
	case BackendSim, "":
		return NewSim(), nil
	case BackendNMCLI:
		return openNMCLI(config, logger)
	default:
		return nil, fmt.Errorf("unknown radio backend %q (valid: %s, %s)", backend, BackendSim, BackendNMCLI)
	}
}
