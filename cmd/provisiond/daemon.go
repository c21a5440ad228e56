package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/swartninja/provisioner/internal/brokerconfig"
	"github.com/swartninja/provisioner/internal/config"
	"github.com/swartninja/provisioner/internal/logging"
	"github.com/swartninja/provisioner/internal/ota"
	"github.com/swartninja/provisioner/internal/portal"
	"github.com/swartninja/provisioner/internal/provision"
	"github.com/swartninja/provisioner/internal/radio"
	"github.com/swartninja/provisioner/internal/resetdetect"
	"github.com/swartninja/provisioner/internal/storage"
)

// daemon is the assembled provisioning stack
type daemon struct {
	settings   *config.Settings
	store      *brokerconfig.Store
	controller *provision.Controller

	// loop is set when restarts are handled in-process
	loop *provision.LoopRestarter

	closers []func() error
}

// openStore returns the config record store described by s
func openStore(s *config.Settings) (*brokerconfig.Store, string, error) {
	dataDir, err := s.ResolveDataDir()
	if err != nil {
		return nil, "", fmt.Errorf("failed to resolve data directory: %w", err)
	}
	return brokerconfig.NewStore(storage.NewDirVolume(dataDir), s.Storage.RecordPath), dataDir, nil
}

// newDaemon wires the collaborators selected by s
func newDaemon(s *config.Settings) (*daemon, error) {
	store, dataDir, err := openStore(s)
	if err != nil {
		return nil, err
	}

	region := resetdetect.NewFileRegion(s.ResetDetector.RegionPath)
	detector := resetdetect.New(region, s.ResetDetector.Timeout, s.ResetDetector.Offset)

	nmcli := radio.DefaultNMCLIConfig()
	if s.Radio.NMCLIPath != "" {
		nmcli.Path = s.Radio.NMCLIPath
	}
	if s.Radio.Interface != "" {
		nmcli.Interface = s.Radio.Interface
	}
	if s.Radio.APConnection != "" {
		nmcli.APConnection = s.Radio.APConnection
	}
	if s.Radio.Timeout > 0 {
		nmcli.Timeout = s.Radio.Timeout
	}
	link, err := radio.Open(s.Radio.Backend, nmcli, logging.GetLogger())
	if err != nil {
		return nil, err
	}

	var staticIP *radio.StaticIP
	if prefs := s.Portal.StaticIP; prefs != nil {
		hint, err := radio.ParseStaticIP(prefs.Address, prefs.Gateway, prefs.Netmask)
		if err != nil {
			return nil, fmt.Errorf("invalid portal.static_ip: %w", err)
		}
		staticIP = &hint
	}

	deviceID := s.DeviceID()
	manager := portal.NewManager(link, portal.Options{
		DeviceID:         deviceID,
		Port:             s.Portal.Port,
		Timeout:          s.Portal.Timeout,
		MinSignalQuality: s.Portal.MinSignalQuality,
		StaticIP:         staticIP,
		CaptiveDNS:       s.Portal.CaptiveDNS,
		DNSPort:          s.Portal.DNSPort,
		Advertise:        s.Portal.Advertise,
	})

	d := &daemon{settings: s, store: store}

	var updates ota.Service = ota.Nop{}
	if s.OTA.Enabled {
		hostname := s.OTA.Hostname
		if hostname == "" {
			hostname = deviceID
		}
		announcer := ota.NewAnnouncer(ota.Config{
			Hostname:  hostname,
			Port:      s.OTA.Port,
			Advertise: s.OTA.Advertise,
		}, ota.LogInstaller{})
		updates = announcer
		d.closers = append(d.closers, announcer.Close)
	}

	var indicator provision.Indicator
	if s.Device.Indicator {
		indicator = provision.LogIndicator{}
	}

	var restarter provision.Restarter
	switch s.Restart.Mode {
	case config.RestartLoop:
		d.loop = &provision.LoopRestarter{}
		restarter = d.loop
	default:
		restarter = provision.NewExecRestarter()
	}

	d.controller = provision.New(provision.Deps{
		Store:     store,
		Detector:  detector,
		Portal:    provision.PortalFromManager(manager),
		Link:      link,
		OTA:       updates,
		Restarter: restarter,
		Indicator: indicator,
	}, provision.Config{
		DeviceID:        deviceID,
		APSSID:          s.Device.APSSID,
		APPassphrase:    s.Device.APPassphrase,
		TeardownDelay:   s.Restart.TeardownDelay,
		ServiceInterval: s.ServiceLoop.Interval,
	})

	logging.Info("Provisioning stack ready",
		zap.String("device_id", deviceID),
		zap.String("data_dir", dataDir),
		zap.String("record", store.Path()),
		zap.String("reset_region", region.Path),
		zap.String("radio", s.Radio.Backend),
		zap.String("restart_mode", s.Restart.Mode),
		zap.Bool("ota", s.OTA.Enabled),
	)
	return d, nil
}

// boot runs boot passes until one ends without a forced restart. With the
// exec restarter a forced restart replaces the process and never returns.
func (d *daemon) boot(ctx context.Context) (provision.Report, error) {
	for {
		report, err := d.controller.Boot(ctx)
		if err != nil {
			return report, err
		}
		if report.Outcome != provision.OutcomeForcedRestart || d.loop == nil {
			return report, nil
		}
		if err := ctx.Err(); err != nil {
			return report, err
		}
	}
}

// close releases everything newDaemon started
func (d *daemon) close() {
	for _, closeFn := range d.closers {
		if err := closeFn(); err != nil {
			logging.Warn("Failed to release resource", zap.Error(err))
		}
	}
	d.closers = nil
}
