package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"
)

func TestGetConfigDir(t *testing.T) {
	configDir, err := GetConfigDir()
	if err != nil {
		t.Fatalf("GetConfigDir() error = %v", err)
	}
	if !strings.Contains(configDir, "provisioner") {
		t.Errorf("GetConfigDir() = %v, should contain 'provisioner'", configDir)
	}
}

func TestGetConfigDirHonorsXDG(t *testing.T) {
	if runtime.GOOS == "windows" || runtime.GOOS == "darwin" {
		t.Skip("XDG variables apply to Linux and other Unix-like systems")
	}
	t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg-config")
	t.Setenv("XDG_DATA_HOME", "/tmp/xdg-data")

	if dir, _ := GetConfigDir(); dir != "/tmp/xdg-config/provisioner" {
		t.Errorf("GetConfigDir() = %v", dir)
	}
	if dir, _ := GetDataDir(); dir != "/tmp/xdg-data/provisioner" {
		t.Errorf("GetDataDir() = %v", dir)
	}
	if path, _ := GetSettingsPath(); filepath.Base(path) != "settings.yaml" {
		t.Errorf("GetSettingsPath() = %v", path)
	}
}

func TestNewSettings(t *testing.T) {
	s := NewSettings()

	if s.Version != 1 {
		t.Errorf("Version = %v, want 1", s.Version)
	}
	if s.ResetDetector.Timeout != 10*time.Second {
		t.Errorf("ResetDetector.Timeout = %v", s.ResetDetector.Timeout)
	}
	if s.Portal.MinSignalQuality != 30 || s.Portal.Port != 80 {
		t.Errorf("Portal = %+v", s.Portal)
	}
	if s.OTA.Port != 8266 {
		t.Errorf("OTA.Port = %v", s.OTA.Port)
	}
	if s.Restart.TeardownDelay != 500*time.Millisecond || s.ServiceLoop.Interval != 100*time.Millisecond {
		t.Errorf("Restart = %+v, ServiceLoop = %+v", s.Restart, s.ServiceLoop)
	}
	if errs := s.Validate(); len(errs) != 0 {
		t.Errorf("defaults should validate: %v", errs)
	}
}

func TestLoadMissingFileGivesDefaults(t *testing.T) {
	s, err := Load(filepath.Join(t.TempDir(), "settings.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if s.Portal.Port != 80 {
		t.Errorf("Load() of missing file should return defaults, got %+v", s.Portal)
	}
}

func TestParseKeepsDefaultsForAbsentKeys(t *testing.T) {
	s, err := Parse([]byte(`
version: 1
device:
  id: "42"
reset_detector:
  timeout: 5s
portal:
  timeout: 3m
  static_ip:
    address: 10.0.1.99
    gateway: 10.0.1.1
    netmask: 255.255.255.0
restart:
  mode: loop
`))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if s.DeviceID() != "42" {
		t.Errorf("DeviceID() = %v", s.DeviceID())
	}
	if s.ResetDetector.Timeout != 5*time.Second {
		t.Errorf("ResetDetector.Timeout = %v", s.ResetDetector.Timeout)
	}
	if s.Portal.Timeout != 3*time.Minute {
		t.Errorf("Portal.Timeout = %v", s.Portal.Timeout)
	}
	if s.Portal.StaticIP == nil || s.Portal.StaticIP.Gateway != "10.0.1.1" {
		t.Errorf("Portal.StaticIP = %+v", s.Portal.StaticIP)
	}
	if s.Restart.Mode != RestartLoop {
		t.Errorf("Restart.Mode = %v", s.Restart.Mode)
	}
	// untouched keys
	if s.Portal.MinSignalQuality != 30 || s.OTA.Port != 8266 || !s.Portal.CaptiveDNS {
		t.Errorf("defaults lost: %+v %+v", s.Portal, s.OTA)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		wantErr string
	}{
		{"bad yaml", "version: [1", "failed to parse"},
		{"wrong version", "version: 2", "unsupported settings version"},
		{"bad duration", "version: 1\nreset_detector:\n  timeout: soon", "failed to parse"},
		{"port out of range", "version: 1\nportal:\n  port: 70000", "portal.port"},
		{"signal quality", "version: 1\nportal:\n  min_signal_quality: 150", "min_signal_quality"},
		{"static ip", "version: 1\nportal:\n  static_ip:\n    address: nope\n    gateway: 10.0.1.1\n    netmask: 255.255.255.0", "static_ip.address"},
		{"backend", "version: 1\nradio:\n  backend: bluetooth", "radio.backend"},
		{"restart mode", "version: 1\nrestart:\n  mode: reboot", "restart.mode"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			if err == nil {
				t.Fatal("Parse() should fail")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Parse() error = %v, want %q", err, tt.wantErr)
			}
		})
	}
}

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "settings.yaml")

	s := NewSettings()
	s.Device.ID = "sensor-7"
	s.Portal.Timeout = 2 * time.Minute
	s.Radio.Backend = "nmcli"

	if err := s.Save(path); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(data), "# Provisioner Settings File") {
		t.Error("saved file should start with the header comment")
	}
	if !strings.Contains(string(data), "timeout: 2m0s") {
		t.Errorf("durations should be written as strings:\n%s", data)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error("temporary file left behind")
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.Device.ID != "sensor-7" || loaded.Portal.Timeout != 2*time.Minute || loaded.Radio.Backend != "nmcli" {
		t.Errorf("Load() = %+v", loaded)
	}
}

func TestDeviceIDFallsBackToHostname(t *testing.T) {
	s := NewSettings()
	if s.DeviceID() == "" {
		t.Error("DeviceID() should never be empty")
	}
	if strings.Contains(s.DeviceID(), ".") {
		t.Errorf("DeviceID() = %q should drop the domain", s.DeviceID())
	}
}

func TestResolveDataDir(t *testing.T) {
	s := NewSettings()
	s.Storage.DataDir = "/srv/provisioner"
	if dir, _ := s.ResolveDataDir(); dir != "/srv/provisioner" {
		t.Errorf("ResolveDataDir() = %v", dir)
	}

	s.Storage.DataDir = ""
	dir, err := s.ResolveDataDir()
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(dir, "provisioner") {
		t.Errorf("ResolveDataDir() = %v", dir)
	}
}
