// Package config manages the provisioning daemon's settings file.
//
// The settings are YAML and follow OS-specific conventions for storage
// location:
//   - Linux: $XDG_CONFIG_HOME/provisioner/settings.yaml or $HOME/.config/provisioner/settings.yaml
//   - macOS: $HOME/.config/provisioner/settings.yaml
//   - Windows: %LOCALAPPDATA%\provisioner\settings.yaml
//
// A missing file means defaults; keys absent from the file keep their
// defaults. Durations are written the way time.ParseDuration reads them:
//
//	version: 1
//	device:
//	  id: "42"
//	reset_detector:
//	  timeout: 10s
//	portal:
//	  port: 80
//	  timeout: 3m
//	  static_ip:
//	    address: 10.0.1.99
//	    gateway: 10.0.1.1
//	    netmask: 255.255.255.0
//	radio:
//	  backend: nmcli
//	restart:
//	  mode: exec
//
// # Security
//
// Broker credentials are never stored in this file. They belong to the
// config record on the device volume (package brokerconfig).
package config
