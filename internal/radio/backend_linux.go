//go:build linux

package radio

import "go.uber.org/zap"

func openNMCLI(config NMCLIConfig, logger *zap.Logger) (Radio, error) {
	return NewNMCLI(config, logger), nil
}
