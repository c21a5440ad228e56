package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

const (
	appName      = "provisioner"
	settingsFile = "settings.yaml"
)

// Mutex for thread-safe file operations
var fileMutex sync.Mutex

// GetConfigDir returns the OS-appropriate configuration directory for the application.
// This follows platform conventions:
//   - Linux: $XDG_CONFIG_HOME/provisioner or $HOME/.config/provisioner
//   - macOS: $HOME/.config/provisioner
//   - Windows: %LOCALAPPDATA%\provisioner
func GetConfigDir() (string, error) {
	return userDir("XDG_CONFIG_HOME", ".config")
}

// GetDataDir returns the directory backing the device volume:
// $XDG_DATA_HOME/provisioner or $HOME/.local/share/provisioner on Unix.
func GetDataDir() (string, error) {
	return userDir("XDG_DATA_HOME", filepath.Join(".local", "share"))
}

func userDir(xdgVar, homeRel string) (string, error) {
	switch runtime.GOOS {
	case "windows":
		localAppData := os.Getenv("LOCALAPPDATA")
		if localAppData == "" {
			userProfile := os.Getenv("USERPROFILE")
			if userProfile == "" {
				return "", fmt.Errorf("cannot determine user profile directory (LOCALAPPDATA and USERPROFILE not set)")
			}
			return filepath.Join(userProfile, "AppData", "Local", appName), nil
		}
		return filepath.Join(localAppData, appName), nil

	case "darwin":
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("cannot determine home directory: %w", err)
		}
		return filepath.Join(homeDir, homeRel, appName), nil

	default:
		if xdg := os.Getenv(xdgVar); xdg != "" {
			return filepath.Join(xdg, appName), nil
		}
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("cannot determine home directory: %w", err)
		}
		return filepath.Join(homeDir, homeRel, appName), nil
	}
}

// GetSettingsPath returns the full path to the settings file.
func GetSettingsPath() (string, error) {
	configDir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, settingsFile), nil
}

// Load reads settings from path, or from GetSettingsPath when path is
// empty. A missing file yields the defaults. Values absent from the file
// keep their defaults.
func Load(path string) (*Settings, error) {
	if path == "" {
		p, err := GetSettingsPath()
		if err != nil {
			return nil, fmt.Errorf("failed to get settings path: %w", err)
		}
		path = p
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return NewSettings(), nil
		}
		return nil, fmt.Errorf("failed to read settings file: %w", err)
	}
	return Parse(data)
}

// Parse decodes a settings document over the defaults.
func Parse(data []byte) (*Settings, error) {
	settings := NewSettings()
	if err := yaml.Unmarshal(data, settings); err != nil {
		return nil, fmt.Errorf("failed to parse settings file: %w", err)
	}

	if settings.Version != 1 {
		return nil, fmt.Errorf("unsupported settings version: %d (expected 1)", settings.Version)
	}
	if errs := settings.Validate(); len(errs) > 0 {
		return nil, fmt.Errorf("invalid settings: %w", errors.Join(errs...))
	}
	return settings, nil
}

// Save writes the settings to path (GetSettingsPath when empty).
// Performs an atomic write to prevent corruption on crash.
func (s *Settings) Save(path string) error {
	fileMutex.Lock()
	defer fileMutex.Unlock()

	if path == "" {
		p, err := GetSettingsPath()
		if err != nil {
			return fmt.Errorf("failed to get settings path: %w", err)
		}
		path = p
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create settings directory: %w", err)
	}

	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}

	header := []byte(`# Provisioner Settings File
# Deployment settings for the provisioning daemon.
#
# Broker credentials are NOT stored here. They live in the config record
# on the device volume and are written by the provisioning portal.
#
# Location: ` + path + `

`)
	data = append(header, data...)

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write temporary settings file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to save settings file: %w", err)
	}
	return nil
}

// Validate checks the settings and returns every problem found.
func (s *Settings) Validate() []error {
	var errs []error

	if s.ResetDetector.Timeout < 0 {
		errs = append(errs, fmt.Errorf("reset_detector.timeout must not be negative"))
	}
	if s.ResetDetector.Offset < 0 {
		errs = append(errs, fmt.Errorf("reset_detector.offset must not be negative"))
	}
	if s.Portal.Port < 0 || s.Portal.Port > 65535 {
		errs = append(errs, fmt.Errorf("portal.port %d out of range", s.Portal.Port))
	}
	if s.Portal.DNSPort < 0 || s.Portal.DNSPort > 65535 {
		errs = append(errs, fmt.Errorf("portal.dns_port %d out of range", s.Portal.DNSPort))
	}
	if s.Portal.MinSignalQuality < 0 || s.Portal.MinSignalQuality > 100 {
		errs = append(errs, fmt.Errorf("portal.min_signal_quality must be between 0 and 100"))
	}
	if s.Portal.StaticIP != nil {
		ip := s.Portal.StaticIP
		for name, v := range map[string]string{"address": ip.Address, "gateway": ip.Gateway, "netmask": ip.Netmask} {
			if net.ParseIP(v).To4() == nil {
				errs = append(errs, fmt.Errorf("portal.static_ip.%s %q is not an IPv4 address", name, v))
			}
		}
	}
	switch s.Radio.Backend {
	case "", "sim", "nmcli":
	default:
		errs = append(errs, fmt.Errorf("radio.backend %q unknown (expected sim or nmcli)", s.Radio.Backend))
	}
	switch s.Restart.Mode {
	case RestartExec, RestartLoop:
	default:
		errs = append(errs, fmt.Errorf("restart.mode %q unknown (expected exec or loop)", s.Restart.Mode))
	}
	if s.Restart.TeardownDelay < 0 {
		errs = append(errs, fmt.Errorf("restart.teardown_delay must not be negative"))
	}
	if s.ServiceLoop.Interval < 0 {
		errs = append(errs, fmt.Errorf("service_loop.interval must not be negative"))
	}
	if s.OTA.Port < 0 || s.OTA.Port > 65535 {
		errs = append(errs, fmt.Errorf("ota.port %d out of range", s.OTA.Port))
	}
	return errs
}

// DeviceID returns the configured device id, or one derived from the host
// name.
func (s *Settings) DeviceID() string {
	if s.Device.ID != "" {
		return s.Device.ID
	}
	host, err := os.Hostname()
	if err != nil || host == "" {
		return "0"
	}
	host, _, _ = strings.Cut(host, ".")
	return host
}

// ResolveDataDir returns the volume directory, defaulting to GetDataDir.
func (s *Settings) ResolveDataDir() (string, error) {
	if s.Storage.DataDir != "" {
		return s.Storage.DataDir, nil
	}
	return GetDataDir()
}
