package provision

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/swartninja/provisioner/internal/brokerconfig"
	"github.com/swartninja/provisioner/internal/logging"
	"github.com/swartninja/provisioner/internal/ota"
	"github.com/swartninja/provisioner/internal/portal"
)

const (
	// DefaultAPPassphrase protects the configuration access point
	DefaultAPPassphrase = "SwartNinja"

	// APSSIDPrefix is prepended to the device id to name the access point
	APSSIDPrefix = "SwartNinjaNoT"

	// DefaultTeardownDelay is the pause between dropping the network and
	// restarting
	DefaultTeardownDelay = 500 * time.Millisecond

	// DefaultServiceInterval is the service-loop period
	DefaultServiceInterval = 100 * time.Millisecond
)

// ConfigStore persists the broker configuration
type ConfigStore interface {
	Load() (brokerconfig.ConnectionConfig, error)
	Save(cfg brokerconfig.ConnectionConfig) error
}

// ResetDetector recognizes the double-reset gesture. ForcePortal makes the
// next boot report a double reset.
type ResetDetector interface {
	DetectDoubleReset() bool
	Stop()
	Tick()
	ForcePortal()
}

// Portal runs configuration sessions
type Portal interface {
	ConfigPortal(ctx context.Context, ssid, passphrase string, prefill brokerconfig.ConnectionConfig) Session
	AutoConnect(ctx context.Context, ssid, passphrase string, prefill brokerconfig.ConnectionConfig) Session
}

// Session is a running portal interaction
type Session interface {
	Events() <-chan portal.Event
	Wait() portal.Result
}

// Link is the part of the radio the controller drives directly
type Link interface {
	Disconnect() error
	LocalAddress() net.IP
}

// Indicator shows provisioning progress to the operator, typically a
// status LED that is lit while the device is not yet provisioned.
type Indicator interface {
	SetProvisioning(active bool)
}

// Deps are the collaborators of a Controller. OTA, Indicator and Restarter
// are optional.
type Deps struct {
	Store     ConfigStore
	Detector  ResetDetector
	Portal    Portal
	Link      Link
	OTA       ota.Service
	Restarter Restarter
	Indicator Indicator
}

// Config holds the controller settings
type Config struct {
	// DeviceID is appended to APSSIDPrefix to name the access point
	DeviceID string

	// APSSID overrides the generated access point name
	APSSID string

	// APPassphrase protects the access point (default "SwartNinja")
	APPassphrase string

	// TeardownDelay is the pause before a forced restart
	TeardownDelay time.Duration

	// ServiceInterval is the service-loop period
	ServiceInterval time.Duration
}

// Controller runs the boot-time provisioning decision and the service loop.
type Controller struct {
	deps   Deps
	config Config
	sleep  func(time.Duration)

	mu    sync.Mutex
	state State
}

// New creates a controller
func New(deps Deps, config Config) *Controller {
	if deps.OTA == nil {
		deps.OTA = ota.Nop{}
	}
	if deps.Indicator == nil {
		deps.Indicator = nopIndicator{}
	}
	if deps.Restarter == nil {
		deps.Restarter = &LoopRestarter{}
	}
	if config.APSSID == "" {
		config.APSSID = APSSIDPrefix + config.DeviceID
	}
	if config.APPassphrase == "" {
		config.APPassphrase = DefaultAPPassphrase
	}
	if config.TeardownDelay <= 0 {
		config.TeardownDelay = DefaultTeardownDelay
	}
	if config.ServiceInterval <= 0 {
		config.ServiceInterval = DefaultServiceInterval
	}

	return &Controller{
		deps:   deps,
		config: config,
		sleep:  time.Sleep,
		state:  StateBooting,
	}
}

// State returns the current state
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) setState(next State) {
	c.mu.Lock()
	prev := c.state
	c.state = next
	c.mu.Unlock()

	if prev != next {
		logging.LogTransition(prev.String(), next.String())
	}
}

// Boot runs one boot pass: load the stored configuration, choose between
// the portal and the known network, persist what the operator submitted
// and decide whether to proceed or restart.
//
// Storage failures never abort the pass; compiled-in defaults are used
// instead. The reset flag is cleared at least once per pass: when the
// portal starts, on a submission and after the session ends. An unusable
// configuration leaves a portal request for the next boot and triggers a
// restart through the Restarter, so the device keeps coming back to the
// portal, without limit, until usable values are submitted. The returned
// error is non-nil only when ctx was canceled during the portal session or
// the restart itself failed.
func (c *Controller) Boot(ctx context.Context) (Report, error) {
	c.setState(StateBooting)
	c.deps.Indicator.SetProvisioning(true)
	defer c.deps.Indicator.SetProvisioning(false)

	report := Report{}
	cfg := c.loadConfig()

	if err := c.deps.OTA.Begin(); err != nil {
		logging.Warn("Update service unavailable", zap.Error(err))
	}

	c.setState(StateDecidingMode)
	var sess Session
	if c.deps.Detector.DetectDoubleReset() {
		report.Mode = ModeConfigPortal
		logging.LogDecision("Double reset detected, opening configuration portal",
			zap.String("ssid", c.config.APSSID))
		c.setState(StateConfigPortalSession)
		sess = c.deps.Portal.ConfigPortal(ctx, c.config.APSSID, c.config.APPassphrase, cfg)
	} else {
		report.Mode = ModeAutoConnect
		logging.LogDecision("No double reset, connecting to known network")
		c.setState(StateNormalConnectAttempt)
		sess = c.deps.Portal.AutoConnect(ctx, c.config.APSSID, c.config.APPassphrase, cfg)
	}

	shouldPersist := false
	for ev := range sess.Events() {
		switch ev.Type {
		case portal.EventStarted:
			logging.Info("Entered configuration mode",
				zap.String("ssid", ev.SSID),
				zap.String("url", ev.URL),
			)
			c.deps.Detector.Stop()
		case portal.EventSubmitted:
			logging.Info("Configuration submitted", zap.Stringer("config", ev.Config))
			c.deps.Detector.Stop()
			shouldPersist = true
		}
	}

	res := sess.Wait()
	c.deps.Detector.Stop()
	if res.Err != nil {
		if errors.Is(res.Err, context.Canceled) || errors.Is(res.Err, context.DeadlineExceeded) {
			report.State = c.State()
			return report, fmt.Errorf("portal session interrupted: %w", res.Err)
		}
		logging.Warn("Portal session ended without a submission", zap.Error(res.Err))
	}
	cfg = res.Config
	report.Connected = res.Connected

	c.setState(StateValidatingConfig)
	if shouldPersist {
		if err := c.deps.Store.Save(cfg); err != nil {
			logging.Warn("Failed to persist configuration, continuing with in-memory values", zap.Error(err))
		} else {
			report.Persisted = true
		}
	}
	report.Config = cfg

	if !cfg.Usable() {
		c.setState(StateForcingRestart)
		report.State = StateForcingRestart
		report.Outcome = OutcomeForcedRestart
		logging.LogDecision("Broker address or port missing, forcing reconfiguration",
			zap.Stringer("config", cfg))
		c.deps.Detector.ForcePortal()
		return report, c.forceRestart()
	}

	c.setState(StateProceeding)
	report.State = StateProceeding
	report.Outcome = OutcomeProceed
	if shouldPersist {
		report.Outcome = OutcomeEnteredPortal
	}
	report.LocalAddress = c.deps.Link.LocalAddress()
	logging.LogDecision("Provisioned, handing over to broker client",
		zap.String("outcome", report.Outcome.String()),
		zap.String("broker", cfg.BrokerAddress+":"+cfg.BrokerPort),
		zap.Bool("connected", report.Connected),
		zap.Stringer("local_address", report.LocalAddress),
	)
	return report, nil
}

func (c *Controller) loadConfig() brokerconfig.ConnectionConfig {
	cfg, err := c.deps.Store.Load()
	if err == nil {
		logging.Info("Loaded stored configuration", zap.Stringer("config", cfg))
		return cfg
	}

	switch {
	case brokerconfig.IsNotMounted(err):
		logging.LogDecision("Storage unavailable, using defaults", zap.Error(err))
	case brokerconfig.IsNotFound(err):
		logging.LogDecision("No stored configuration, using defaults")
	default:
		logging.LogDecision("Stored configuration discarded, using defaults", zap.Error(err))
	}
	return brokerconfig.Defaults()
}

func (c *Controller) forceRestart() error {
	logging.Info("Dropping network before restart",
		zap.Stringer("local_address", c.deps.Link.LocalAddress()),
		zap.Duration("teardown_delay", c.config.TeardownDelay),
	)
	if err := c.deps.Link.Disconnect(); err != nil {
		logging.Warn("Failed to disconnect", zap.Error(err))
	}
	c.sleep(c.config.TeardownDelay)

	if err := c.deps.Restarter.Restart(); err != nil {
		return fmt.Errorf("failed to restart: %w", err)
	}
	return nil
}

type nopIndicator struct{}

func (nopIndicator) SetProvisioning(bool) {}

// LogIndicator reports provisioning progress in the log
type LogIndicator struct{}

// SetProvisioning implements Indicator
func (LogIndicator) SetProvisioning(active bool) {
	state := "off"
	if active {
		state = "on"
	}
	logging.Info("Status indicator", zap.String("led", state))
}
