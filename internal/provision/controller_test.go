package provision

import (
	"context"
	"errors"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/swartninja/provisioner/internal/brokerconfig"
	"github.com/swartninja/provisioner/internal/portal"
)

// callLog records collaborator calls across fakes so tests can check order
type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (l *callLog) add(call string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, call)
}

func (l *callLog) list() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.calls...)
}

func (l *callLog) count(call string) int {
	n := 0
	for _, c := range l.list() {
		if c == call {
			n++
		}
	}
	return n
}

func (l *callLog) index(call string) int {
	for i, c := range l.list() {
		if c == call {
			return i
		}
	}
	return -1
}

type fakeStore struct {
	log     *callLog
	cfg     brokerconfig.ConnectionConfig
	loadErr error
	saveErr error
	saved   []brokerconfig.ConnectionConfig
}

func (s *fakeStore) Load() (brokerconfig.ConnectionConfig, error) {
	s.log.add("Load")
	if s.loadErr != nil {
		return brokerconfig.ConnectionConfig{}, s.loadErr
	}
	return s.cfg, nil
}

func (s *fakeStore) Save(cfg brokerconfig.ConnectionConfig) error {
	s.log.add("Save")
	s.saved = append(s.saved, cfg)
	return s.saveErr
}

type fakeDetector struct {
	log    *callLog
	double bool
}

func (d *fakeDetector) DetectDoubleReset() bool { d.log.add("DetectDoubleReset"); return d.double }
func (d *fakeDetector) Stop()                   { d.log.add("Stop") }
func (d *fakeDetector) Tick()                   { d.log.add("Tick") }
func (d *fakeDetector) ForcePortal()            { d.log.add("ForcePortal") }

type fakeSession struct {
	events chan portal.Event
	result portal.Result
}

func (s *fakeSession) Events() <-chan portal.Event { return s.events }
func (s *fakeSession) Wait() portal.Result         { return s.result }

// fakePortal answers every session with the scripted events and result.
// When submit is non-nil a submission of that config is scripted.
type fakePortal struct {
	log       *callLog
	openAP    bool
	submit    *brokerconfig.ConnectionConfig
	connected bool
	err       error
	prefill   brokerconfig.ConnectionConfig
}

func (p *fakePortal) session(prefill brokerconfig.ConnectionConfig) Session {
	p.prefill = prefill
	s := &fakeSession{events: make(chan portal.Event, 2)}
	s.result = portal.Result{Connected: p.connected, Config: prefill, Err: p.err}
	if p.openAP {
		s.events <- portal.Event{Type: portal.EventStarted, SSID: "ap"}
	}
	if p.submit != nil {
		s.events <- portal.Event{Type: portal.EventSubmitted, Config: *p.submit}
		s.result.Submitted = true
		s.result.Config = *p.submit
	}
	close(s.events)
	return s
}

func (p *fakePortal) ConfigPortal(_ context.Context, ssid, passphrase string, prefill brokerconfig.ConnectionConfig) Session {
	p.log.add("ConfigPortal " + ssid + " " + passphrase)
	return p.session(prefill)
}

func (p *fakePortal) AutoConnect(_ context.Context, ssid, passphrase string, prefill brokerconfig.ConnectionConfig) Session {
	p.log.add("AutoConnect " + ssid + " " + passphrase)
	return p.session(prefill)
}

type fakeLink struct {
	log *callLog
}

func (l *fakeLink) Disconnect() error    { l.log.add("Disconnect"); return nil }
func (l *fakeLink) LocalAddress() net.IP { return net.IPv4(10, 0, 1, 99) }

type fakeRestarter struct {
	log *callLog
	err error
}

func (r *fakeRestarter) Restart() error { r.log.add("Restart"); return r.err }

type fakeOTA struct {
	log *callLog
}

func (o *fakeOTA) Begin() error { o.log.add("OTA.Begin"); return nil }
func (o *fakeOTA) ServiceOnce() { o.log.add("OTA.ServiceOnce") }

type harness struct {
	log      *callLog
	store    *fakeStore
	detector *fakeDetector
	portal   *fakePortal
	sleeps   []time.Duration
	ctrl     *Controller
}

func newHarness() *harness {
	log := &callLog{}
	h := &harness{
		log:      log,
		store:    &fakeStore{log: log},
		detector: &fakeDetector{log: log},
		portal:   &fakePortal{log: log},
	}
	h.ctrl = New(Deps{
		Store:     h.store,
		Detector:  h.detector,
		Portal:    h.portal,
		Link:      &fakeLink{log: log},
		OTA:       &fakeOTA{log: log},
		Restarter: &fakeRestarter{log: log},
	}, Config{DeviceID: "42"})
	h.ctrl.sleep = func(d time.Duration) {
		log.add("Sleep")
		h.sleeps = append(h.sleeps, d)
	}
	return h
}

func notFound() error {
	return &brokerconfig.ConfigError{Type: brokerconfig.ErrTypeNotFound, Message: "no config record"}
}

func cfgPtr(c brokerconfig.ConnectionConfig) *brokerconfig.ConnectionConfig { return &c }

// Fresh device, no stored config, no known network: the portal runs, the
// operator leaves the broker address empty, validation fails and the
// device restarts.
func TestBootFreshDeviceEmptyAddressForcesRestart(t *testing.T) {
	h := newHarness()
	h.store.loadErr = notFound()
	h.portal.openAP = true
	h.portal.submit = cfgPtr(brokerconfig.Defaults().With("server", ""))

	report, err := h.ctrl.Boot(context.Background())
	if err != nil {
		t.Fatalf("Boot() error = %v", err)
	}

	if report.Outcome != OutcomeForcedRestart || report.State != StateForcingRestart {
		t.Errorf("Report = %+v", report)
	}
	if report.Mode != ModeAutoConnect {
		t.Errorf("Mode = %v, want autoconnect", report.Mode)
	}
	if h.portal.prefill != brokerconfig.Defaults() {
		t.Errorf("portal prefill = %+v, want defaults", h.portal.prefill)
	}
	if len(h.store.saved) != 1 || h.store.saved[0].BrokerAddress != "" {
		t.Errorf("saved = %+v, want one save with empty address", h.store.saved)
	}
	if !report.Persisted {
		t.Error("submission should have been persisted")
	}
	if h.log.count("Restart") != 1 || h.log.count("Disconnect") != 1 {
		t.Errorf("calls = %v", h.log.list())
	}
	if len(h.sleeps) != 1 || h.sleeps[0] != DefaultTeardownDelay {
		t.Errorf("sleeps = %v, want [%v]", h.sleeps, DefaultTeardownDelay)
	}
	if !(h.log.index("Disconnect") < h.log.index("Sleep") && h.log.index("Sleep") < h.log.index("Restart")) {
		t.Errorf("restart sequence out of order: %v", h.log.list())
	}
	if h.log.count("ForcePortal") != 1 {
		t.Errorf("ForcePortal calls = %d, want 1", h.log.count("ForcePortal"))
	}
	last := -1
	for i, c := range h.log.list() {
		if c == "Stop" {
			last = i
		}
	}
	if !(last < h.log.index("ForcePortal") && h.log.index("ForcePortal") < h.log.index("Restart")) {
		t.Errorf("portal request must follow the last Stop and precede Restart: %v", h.log.list())
	}
}

// Stored config is valid and the known network joins: no portal, no write.
func TestBootStoredConfigProceedsWithoutWrite(t *testing.T) {
	h := newHarness()
	h.store.cfg = brokerconfig.ConnectionConfig{BrokerAddress: "10.0.1.50", BrokerPort: "1883"}
	h.portal.connected = true

	report, err := h.ctrl.Boot(context.Background())
	if err != nil {
		t.Fatalf("Boot() error = %v", err)
	}

	if report.Outcome != OutcomeProceed || report.State != StateProceeding {
		t.Errorf("Report = %+v", report)
	}
	if h.log.count("Save") != 0 || report.Persisted {
		t.Error("no write should occur without a submission")
	}
	if report.Config != h.store.cfg || !report.Connected {
		t.Errorf("Report = %+v", report)
	}
	if !report.LocalAddress.Equal(net.IPv4(10, 0, 1, 99)) {
		t.Errorf("LocalAddress = %v", report.LocalAddress)
	}
	if h.log.count("Restart") != 0 {
		t.Error("no restart expected")
	}
	if h.ctrl.State() != StateProceeding {
		t.Errorf("State() = %v", h.ctrl.State())
	}
}

// Double reset: the portal opens directly and autoconnect is skipped.
func TestBootDoubleResetOpensPortal(t *testing.T) {
	h := newHarness()
	h.store.cfg = brokerconfig.ConnectionConfig{BrokerAddress: "10.0.1.50", BrokerPort: "1883"}
	h.detector.double = true
	h.portal.openAP = true
	h.portal.submit = cfgPtr(brokerconfig.ConnectionConfig{BrokerAddress: "10.0.1.60", BrokerPort: "8883"})

	report, err := h.ctrl.Boot(context.Background())
	if err != nil {
		t.Fatalf("Boot() error = %v", err)
	}

	if report.Mode != ModeConfigPortal || report.Outcome != OutcomeEnteredPortal {
		t.Errorf("Report = %+v", report)
	}
	if h.log.index("ConfigPortal SwartNinjaNoT42 SwartNinja") < 0 {
		t.Errorf("ConfigPortal not called with the device access point: %v", h.log.list())
	}
	for _, c := range h.log.list() {
		if strings.HasPrefix(c, "AutoConnect") {
			t.Error("autoconnect must be skipped after a double reset")
		}
	}
	if report.Config.BrokerAddress != "10.0.1.60" {
		t.Errorf("Config = %+v", report.Config)
	}
}

// Storage unavailable: defaults are used and a submission cannot be saved,
// but the pass still completes with the in-memory values.
func TestBootStorageUnavailable(t *testing.T) {
	h := newHarness()
	mountErr := &brokerconfig.ConfigError{Type: brokerconfig.ErrTypeNotMounted, Message: "failed to mount"}
	h.store.loadErr = mountErr
	h.store.saveErr = mountErr
	h.portal.openAP = true
	h.portal.submit = cfgPtr(brokerconfig.ConnectionConfig{BrokerAddress: "10.0.1.50", BrokerPort: "1883"})

	report, err := h.ctrl.Boot(context.Background())
	if err != nil {
		t.Fatalf("Boot() error = %v", err)
	}

	if h.portal.prefill != brokerconfig.Defaults() {
		t.Errorf("prefill = %+v, want defaults", h.portal.prefill)
	}
	if report.Persisted {
		t.Error("Persisted should be false when the save fails")
	}
	if report.Outcome != OutcomeEnteredPortal || report.Config.BrokerAddress != "10.0.1.50" {
		t.Errorf("Report = %+v", report)
	}
}

func TestBootStorageUnavailableDefaultsProceed(t *testing.T) {
	h := newHarness()
	h.store.loadErr = &brokerconfig.ConfigError{Type: brokerconfig.ErrTypeNotMounted}
	h.portal.connected = true

	report, err := h.ctrl.Boot(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	// The placeholder defaults are non-empty, so they pass the gate
	if report.Outcome != OutcomeProceed || report.Config != brokerconfig.Defaults() {
		t.Errorf("Report = %+v", report)
	}
}

func TestBootMalformedConfigUsesDefaults(t *testing.T) {
	h := newHarness()
	h.store.loadErr = &brokerconfig.ConfigError{Type: brokerconfig.ErrTypeMalformed}
	h.portal.connected = true

	if _, err := h.ctrl.Boot(context.Background()); err != nil {
		t.Fatal(err)
	}
	if h.portal.prefill != brokerconfig.Defaults() {
		t.Errorf("prefill = %+v, want defaults", h.portal.prefill)
	}
}

func TestValidityGate(t *testing.T) {
	tests := []struct {
		name string
		cfg  brokerconfig.ConnectionConfig
		want Outcome
	}{
		{"address and port", brokerconfig.ConnectionConfig{BrokerAddress: "b", BrokerPort: "1"}, OutcomeEnteredPortal},
		{"credentials empty", brokerconfig.ConnectionConfig{BrokerAddress: "b", BrokerPort: "1", Username: "", Password: ""}, OutcomeEnteredPortal},
		{"address empty", brokerconfig.ConnectionConfig{BrokerPort: "1", Username: "u", Password: "p"}, OutcomeForcedRestart},
		{"port empty", brokerconfig.ConnectionConfig{BrokerAddress: "b", Username: "u", Password: "p"}, OutcomeForcedRestart},
		{"all empty", brokerconfig.ConnectionConfig{}, OutcomeForcedRestart},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness()
			h.portal.openAP = true
			h.portal.submit = cfgPtr(tt.cfg)

			report, err := h.ctrl.Boot(context.Background())
			if err != nil {
				t.Fatal(err)
			}
			if report.Outcome != tt.want {
				t.Errorf("Outcome = %v, want %v", report.Outcome, tt.want)
			}
		})
	}
}

func TestBootStopsDetectorBeforeSave(t *testing.T) {
	h := newHarness()
	h.portal.openAP = true
	h.portal.submit = cfgPtr(brokerconfig.Defaults())

	if _, err := h.ctrl.Boot(context.Background()); err != nil {
		t.Fatal(err)
	}

	calls := h.log.list()
	// Started, Submitted and the unconditional stop after the session
	if h.log.count("Stop") != 3 {
		t.Errorf("Stop called %d times, want 3: %v", h.log.count("Stop"), calls)
	}
	if h.log.index("Stop") > h.log.index("Save") {
		t.Errorf("detector must stop before saving: %v", calls)
	}
	if h.log.index("OTA.Begin") > h.log.index("DetectDoubleReset") {
		t.Errorf("update service must begin before mode selection: %v", calls)
	}
	if h.log.index("Load") != 0 {
		t.Errorf("Load must come first: %v", calls)
	}
}

func TestBootStopsDetectorWithoutPortal(t *testing.T) {
	h := newHarness()
	h.store.cfg = brokerconfig.Defaults()
	h.portal.connected = true

	if _, err := h.ctrl.Boot(context.Background()); err != nil {
		t.Fatal(err)
	}
	if h.log.count("Stop") != 1 {
		t.Errorf("Stop called %d times, want 1", h.log.count("Stop"))
	}
}

func TestBootPortalTimeoutKeepsPrefill(t *testing.T) {
	h := newHarness()
	h.store.cfg = brokerconfig.ConnectionConfig{BrokerAddress: "10.0.1.50", BrokerPort: "1883"}
	h.portal.openAP = true
	h.portal.err = portal.ErrTimeout

	report, err := h.ctrl.Boot(context.Background())
	if err != nil {
		t.Fatalf("Boot() error = %v", err)
	}
	if report.Outcome != OutcomeProceed || report.Config != h.store.cfg || report.Persisted {
		t.Errorf("Report = %+v", report)
	}
}

func TestBootCanceled(t *testing.T) {
	h := newHarness()
	h.portal.openAP = true
	h.portal.err = context.Canceled

	_, err := h.ctrl.Boot(context.Background())
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Boot() error = %v, want context.Canceled", err)
	}
	if h.log.count("Save") != 0 || h.log.count("Restart") != 0 {
		t.Errorf("canceled pass must not save or restart: %v", h.log.list())
	}
	if h.log.count("Stop") == 0 {
		t.Error("detector should still be stopped")
	}
}

func TestBootRestartFailure(t *testing.T) {
	h := newHarness()
	h.ctrl.deps.Restarter = &fakeRestarter{log: h.log, err: errors.New("exec format error")}
	h.portal.submit = cfgPtr(brokerconfig.ConnectionConfig{})

	report, err := h.ctrl.Boot(context.Background())
	if err == nil {
		t.Fatal("Boot() should report the failed restart")
	}
	if report.Outcome != OutcomeForcedRestart {
		t.Errorf("Outcome = %v", report.Outcome)
	}
}

type recordingIndicator struct {
	states []bool
}

func (r *recordingIndicator) SetProvisioning(active bool) { r.states = append(r.states, active) }

func TestBootIndicator(t *testing.T) {
	h := newHarness()
	ind := &recordingIndicator{}
	h.ctrl.deps.Indicator = ind
	h.portal.connected = true
	h.store.cfg = brokerconfig.Defaults()

	if _, err := h.ctrl.Boot(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(ind.states) != 2 || !ind.states[0] || ind.states[1] {
		t.Errorf("indicator states = %v, want [true false]", ind.states)
	}
}

func TestNewDefaults(t *testing.T) {
	c := New(Deps{}, Config{DeviceID: "abc"})

	if c.config.APSSID != "SwartNinjaNoTabc" {
		t.Errorf("APSSID = %q", c.config.APSSID)
	}
	if c.config.APPassphrase != "SwartNinja" {
		t.Errorf("APPassphrase = %q", c.config.APPassphrase)
	}
	if c.config.TeardownDelay != 500*time.Millisecond || c.config.ServiceInterval != 100*time.Millisecond {
		t.Errorf("Config = %+v", c.config)
	}
	if _, ok := c.deps.Restarter.(*LoopRestarter); !ok {
		t.Errorf("Restarter = %T, want *LoopRestarter", c.deps.Restarter)
	}
}

func TestStateStrings(t *testing.T) {
	tests := map[State]string{
		StateBooting:              "Booting",
		StateDecidingMode:         "DecidingMode",
		StateConfigPortalSession:  "ConfigPortalSession",
		StateNormalConnectAttempt: "NormalConnectAttempt",
		StateValidatingConfig:     "ValidatingConfig",
		StateProceeding:           "Proceeding",
		StateForcingRestart:       "ForcingRestart",
		State(42):                 "State(42)",
	}
	for s, want := range tests {
		if s.String() != want {
			t.Errorf("String() = %q, want %q", s.String(), want)
		}
	}
	if !StateProceeding.Terminal() || !StateForcingRestart.Terminal() || StateValidatingConfig.Terminal() {
		t.Error("Terminal() wrong")
	}
}

func TestLoopRestarter(t *testing.T) {
	r := &LoopRestarter{}
	for i := 0; i < 3; i++ {
		if err := r.Restart(); err != nil {
			t.Fatal(err)
		}
	}
	if r.Count() != 3 {
		t.Errorf("Count() = %d", r.Count())
	}
}
