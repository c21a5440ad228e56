package config

import (
	"time"
)

// Settings represents the daemon settings file.
// It carries deployment choices only; the broker connection itself lives in
// the config record on the device volume.
type Settings struct {
	Version       int                   `yaml:"version"`
	Device        DeviceSettings        `yaml:"device"`
	Storage       StorageSettings       `yaml:"storage"`
	ResetDetector ResetDetectorSettings `yaml:"reset_detector"`
	Portal        PortalSettings        `yaml:"portal"`
	Radio         RadioSettings         `yaml:"radio"`
	OTA           OTASettings           `yaml:"ota"`
	Restart       RestartSettings       `yaml:"restart"`
	ServiceLoop   ServiceLoopSettings   `yaml:"service_loop"`
	Log           LogSettings           `yaml:"log"`
}

// DeviceSettings identifies the device and its configuration access point.
type DeviceSettings struct {
	ID           string `yaml:"id,omitempty"`            // Device id; defaults to the host name
	APSSID       string `yaml:"ap_ssid,omitempty"`       // Overrides the generated access point name
	APPassphrase string `yaml:"ap_passphrase,omitempty"` // Access point passphrase
	Indicator    bool   `yaml:"indicator"`               // Report the status indicator in the log
}

// StorageSettings locates the volume holding the config record.
type StorageSettings struct {
	DataDir    string `yaml:"data_dir,omitempty"`    // Directory backing the volume
	RecordPath string `yaml:"record_path,omitempty"` // Record path on the volume
}

// ResetDetectorSettings configures double-reset detection.
type ResetDetectorSettings struct {
	Timeout    time.Duration `yaml:"timeout"`               // Window between two resets
	Offset     int64         `yaml:"offset"`                // Record offset in the region
	RegionPath string        `yaml:"region_path,omitempty"` // File standing in for retained memory
}

// PortalSettings configures the provisioning portal.
type PortalSettings struct {
	Port             int            `yaml:"port"`
	Timeout          time.Duration  `yaml:"timeout"`            // 0 keeps the portal open until submission
	MinSignalQuality int            `yaml:"min_signal_quality"` // Percent
	StaticIP         *StaticIPPrefs `yaml:"static_ip,omitempty"`
	CaptiveDNS       bool           `yaml:"captive_dns"`
	DNSPort          int            `yaml:"dns_port"`
	Advertise        bool           `yaml:"advertise"` // Publish the portal over mDNS
}

// StaticIPPrefs is the station address hint.
type StaticIPPrefs struct {
	Address string `yaml:"address"`
	Gateway string `yaml:"gateway"`
	Netmask string `yaml:"netmask"`
}

// RadioSettings selects the radio backend.
type RadioSettings struct {
	Backend      string        `yaml:"backend"`                 // "sim" or "nmcli"
	Interface    string        `yaml:"interface,omitempty"`     // Wireless interface for nmcli
	NMCLIPath    string        `yaml:"nmcli_path,omitempty"`    // nmcli binary
	APConnection string        `yaml:"ap_connection,omitempty"` // NetworkManager profile for the hotspot
	Timeout      time.Duration `yaml:"timeout,omitempty"`       // Per-command timeout
}

// OTASettings configures the update announcer.
type OTASettings struct {
	Enabled   bool   `yaml:"enabled"`
	Hostname  string `yaml:"hostname,omitempty"` // mDNS instance; defaults to the device id
	Port      int    `yaml:"port"`
	Advertise bool   `yaml:"advertise"`
}

// RestartSettings configures the forced restart.
type RestartSettings struct {
	Mode          string        `yaml:"mode"` // "exec" re-executes the binary, "loop" reruns boot in-process
	TeardownDelay time.Duration `yaml:"teardown_delay"`
}

// ServiceLoopSettings configures the post-boot loop.
type ServiceLoopSettings struct {
	Interval time.Duration `yaml:"interval"`
}

// LogSettings configures diagnostics.
type LogSettings struct {
	Level string `yaml:"level"`
}

// Restart modes
const (
	RestartExec = "exec"
	RestartLoop = "loop"
)

// NewSettings creates Settings with default values.
func NewSettings() *Settings {
	return &Settings{
		Version: 1,
		Device: DeviceSettings{
			Indicator: true,
		},
		Storage: StorageSettings{
			RecordPath: "/config.json",
		},
		ResetDetector: ResetDetectorSettings{
			Timeout: 10 * time.Second,
		},
		Portal: PortalSettings{
			Port:             80,
			MinSignalQuality: 30,
			CaptiveDNS:       true,
			DNSPort:          53,
			Advertise:        true,
		},
		Radio: RadioSettings{
			Backend:   "sim",
			Interface: "wlan0",
		},
		OTA: OTASettings{
			Enabled:   true,
			Port:      8266,
			Advertise: true,
		},
		Restart: RestartSettings{
			Mode:          RestartExec,
			TeardownDelay: 500 * time.Millisecond,
		},
		ServiceLoop: ServiceLoopSettings{
			Interval: 100 * time.Millisecond,
		},
		Log: LogSettings{
			Level: "info",
		},
	}
}
