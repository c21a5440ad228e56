package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/swartninja/provisioner/internal/brokerconfig"
	"github.com/swartninja/provisioner/internal/config"
	"github.com/swartninja/provisioner/internal/provision"
)

func testSettings(t *testing.T) *config.Settings {
	t.Helper()
	s := config.NewSettings()
	s.Device.ID = "42"
	s.Device.Indicator = false
	s.Storage.DataDir = t.TempDir()
	s.ResetDetector.RegionPath = filepath.Join(t.TempDir(), "reset.bin")
	s.Portal.Port = 0
	s.Portal.Timeout = 50 * time.Millisecond
	s.Portal.CaptiveDNS = false
	s.Portal.Advertise = false
	s.Radio.Backend = "sim"
	s.OTA.Enabled = false
	s.Restart.Mode = config.RestartLoop
	s.Restart.TeardownDelay = time.Millisecond
	return s
}

func TestDaemonBootProceedsWithStoredConfig(t *testing.T) {
	s := testSettings(t)

	d, err := newDaemon(s)
	if err != nil {
		t.Fatalf("newDaemon() error = %v", err)
	}
	defer d.close()

	stored := brokerconfig.ConnectionConfig{BrokerAddress: "10.0.1.50", BrokerPort: "1883", Username: "u", Password: "p"}
	if err := d.store.Save(stored); err != nil {
		t.Fatal(err)
	}

	report, err := d.boot(context.Background())
	if err != nil {
		t.Fatalf("boot() error = %v", err)
	}
	if report.Outcome != provision.OutcomeProceed {
		t.Errorf("Outcome = %v, want proceed", report.Outcome)
	}
	if report.Config != stored {
		t.Errorf("Config = %+v, want %+v", report.Config, stored)
	}
	if d.loop.Count() != 0 {
		t.Errorf("restarts = %d, want 0", d.loop.Count())
	}
	if _, err := os.Stat(s.ResetDetector.RegionPath); err != nil {
		t.Errorf("reset region not written: %v", err)
	}
}

func TestDaemonBootLoopsOnUnusableConfig(t *testing.T) {
	s := testSettings(t)

	d, err := newDaemon(s)
	if err != nil {
		t.Fatalf("newDaemon() error = %v", err)
	}
	defer d.close()

	if err := d.store.Save(brokerconfig.ConnectionConfig{}); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	if _, err := d.boot(ctx); err == nil {
		t.Fatal("boot() should only return once ctx is done")
	}
	if d.loop.Count() == 0 {
		t.Error("unusable config should have forced at least one restart")
	}
}

func TestNewDaemonRejectsBadSettings(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Settings)
	}{
		{"unknown radio", func(s *config.Settings) { s.Radio.Backend = "carrier-pigeon" }},
		{"bad static ip", func(s *config.Settings) {
			s.Portal.StaticIP = &config.StaticIPPrefs{Address: "not-an-ip", Gateway: "10.0.1.1", Netmask: "255.255.255.0"}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := testSettings(t)
			tt.mutate(s)
			if _, err := newDaemon(s); err == nil {
				t.Error("newDaemon() should fail")
			}
		})
	}
}

func TestLoadSettingsAppliesFlags(t *testing.T) {
	dir := t.TempDir()
	settingsPath = filepath.Join(dir, "settings.yaml")
	dataDir = filepath.Join(dir, "volume")
	logLevel = "debug"
	radioBackend = "nmcli"
	t.Cleanup(func() {
		settingsPath, dataDir, logLevel, radioBackend = "", "", "", ""
	})

	if err := config.NewSettings().Save(settingsPath); err != nil {
		t.Fatal(err)
	}

	s, err := loadSettings()
	if err != nil {
		t.Fatalf("loadSettings() error = %v", err)
	}
	if s.Storage.DataDir != dataDir {
		t.Errorf("DataDir = %q, want %q", s.Storage.DataDir, dataDir)
	}
	if s.Log.Level != "debug" {
		t.Errorf("Log.Level = %q", s.Log.Level)
	}
	if s.Radio.Backend != "nmcli" {
		t.Errorf("Radio.Backend = %q", s.Radio.Backend)
	}
}
