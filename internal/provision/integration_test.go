package provision

import (
	"context"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/swartninja/provisioner/internal/brokerconfig"
	"github.com/swartninja/provisioner/internal/portal"
	"github.com/swartninja/provisioner/internal/radio"
	"github.com/swartninja/provisioner/internal/resetdetect"
	"github.com/swartninja/provisioner/internal/storage"
)

// submittingPortal posts a form to every portal it sees start
type submittingPortal struct {
	t     *testing.T
	inner Portal
	form  url.Values
}

func (p submittingPortal) ConfigPortal(ctx context.Context, ssid, pass string, prefill brokerconfig.ConnectionConfig) Session {
	return p.relay(p.inner.ConfigPortal(ctx, ssid, pass, prefill))
}

func (p submittingPortal) AutoConnect(ctx context.Context, ssid, pass string, prefill brokerconfig.ConnectionConfig) Session {
	return p.relay(p.inner.AutoConnect(ctx, ssid, pass, prefill))
}

func (p submittingPortal) relay(s Session) Session {
	out := &relaySession{inner: s, events: make(chan portal.Event, 2)}
	go func() {
		defer close(out.events)
		for ev := range s.Events() {
			if ev.Type == portal.EventStarted {
				go p.submit(ev.URL)
			}
			out.events <- ev
		}
	}()
	return out
}

func (p submittingPortal) submit(base string) {
	resp, err := http.PostForm(base+"save", p.form)
	if err != nil {
		p.t.Errorf("POST /save: %v", err)
		return
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		p.t.Errorf("POST /save status = %d", resp.StatusCode)
	}
}

type relaySession struct {
	inner  Session
	events chan portal.Event
}

func (r *relaySession) Events() <-chan portal.Event { return r.events }
func (r *relaySession) Wait() portal.Result         { return r.inner.Wait() }

func TestBootDoubleResetEndToEnd(t *testing.T) {
	dir := t.TempDir()
	store := brokerconfig.NewStore(storage.NewDirVolume(dir), "")
	if err := store.Save(brokerconfig.ConnectionConfig{BrokerAddress: "10.0.1.10", BrokerPort: "1883"}); err != nil {
		t.Fatal(err)
	}

	now := time.Unix(1700000000, 0)
	detector := resetdetect.New(resetdetect.NewMemoryRegion(64), 10*time.Second, 0)
	detector.SetClock(func() time.Time { return now })
	// first power-on arms the flag, the second within the window triggers
	detector.DetectDoubleReset()
	now = now.Add(3 * time.Second)

	sim := radio.NewSim(radio.SimNetwork{SSID: "HomeNet", RSSI: -55, Passphrase: "password1"})
	sim.Remember("HomeNet", "password1")
	manager := portal.NewManager(sim, portal.Options{DeviceID: "42", Timeout: 10 * time.Second})

	ctrl := New(Deps{
		Store:    store,
		Detector: detector,
		Portal: submittingPortal{t: t, inner: PortalFromManager(manager), form: url.Values{
			"s":        {"HomeNet"},
			"p":        {"password1"},
			"server":   {"10.0.1.50"},
			"port":     {"8883"},
			"username": {"sensor"},
			"password": {"s3cret"},
		}},
		Link: sim,
	}, Config{DeviceID: "42"})

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	report, err := ctrl.Boot(ctx)
	if err != nil {
		t.Fatalf("Boot() error = %v", err)
	}

	if report.Mode != ModeConfigPortal || report.Outcome != OutcomeEnteredPortal {
		t.Errorf("Report = %+v", report)
	}
	if !report.Persisted || !report.Connected {
		t.Errorf("Report = %+v, want persisted and connected", report)
	}
	if sim.Connected() != "HomeNet" {
		t.Errorf("radio joined %q", sim.Connected())
	}
	if up, _ := sim.AccessPointUp(); up {
		t.Error("access point should be down after the session")
	}
	if detector.Armed() {
		t.Error("reset flag should be cleared")
	}

	got, err := store.Load()
	if err != nil {
		t.Fatal(err)
	}
	want := brokerconfig.ConnectionConfig{BrokerAddress: "10.0.1.50", BrokerPort: "8883", Username: "sensor", Password: "s3cret"}
	if got != want {
		t.Errorf("stored = %+v, want %+v", got, want)
	}
	if _, err := os.Stat(filepath.Join(dir, "config.json")); err != nil {
		t.Error(err)
	}
}

func TestBootKnownNetworkEndToEnd(t *testing.T) {
	store := brokerconfig.NewStore(storage.NewDirVolume(t.TempDir()), "")
	if err := store.Save(brokerconfig.ConnectionConfig{BrokerAddress: "10.0.1.10", BrokerPort: "1883"}); err != nil {
		t.Fatal(err)
	}
	sim := radio.NewSim(radio.SimNetwork{SSID: "HomeNet", RSSI: -55, Passphrase: "password1"})
	sim.Remember("HomeNet", "password1")

	ctrl := New(Deps{
		Store:    store,
		Detector: resetdetect.New(resetdetect.NewMemoryRegion(64), 0, 0),
		Portal:   PortalFromManager(portal.NewManager(sim, portal.Options{})),
		Link:     sim,
	}, Config{DeviceID: "42"})

	report, err := ctrl.Boot(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if report.Outcome != OutcomeProceed || !report.Connected || report.Persisted {
		t.Errorf("Report = %+v", report)
	}
	if up, _ := sim.AccessPointUp(); up {
		t.Error("no access point expected")
	}
}

// A forced restart must bring the device back into the portal even when a
// known network is in range, for as many restarts as it takes.
func TestForcedRestartReturnsToPortal(t *testing.T) {
	store := brokerconfig.NewStore(storage.NewDirVolume(t.TempDir()), "")
	if err := store.Save(brokerconfig.ConnectionConfig{BrokerPort: "1883"}); err != nil {
		t.Fatal(err)
	}
	region := resetdetect.NewMemoryRegion(64)
	sim := radio.NewSim(radio.SimNetwork{SSID: "HomeNet", RSSI: -55, Passphrase: "password1"})
	sim.Remember("HomeNet", "password1")

	now := time.Unix(1700000000, 0)
	restarts := &LoopRestarter{}

	// boot runs one pass with a fresh detector, as a restarted process would
	boot := func(p Portal) Report {
		t.Helper()
		detector := resetdetect.New(region, 10*time.Second, 0)
		detector.SetClock(func() time.Time { return now })
		ctrl := New(Deps{
			Store:     store,
			Detector:  detector,
			Portal:    p,
			Link:      sim,
			Restarter: restarts,
		}, Config{DeviceID: "42", TeardownDelay: time.Millisecond})

		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		report, err := ctrl.Boot(ctx)
		if err != nil {
			t.Fatalf("Boot() error = %v", err)
		}
		return report
	}
	idle := PortalFromManager(portal.NewManager(sim, portal.Options{DeviceID: "42", Timeout: 100 * time.Millisecond}))

	passes := []struct {
		name    string
		after   time.Duration
		portal  Portal
		mode    Mode
		outcome Outcome
	}{
		{"known network joins, address missing", 0, idle, ModeAutoConnect, OutcomeForcedRestart},
		{"portal opens, nobody submits", time.Second, idle, ModeConfigPortal, OutcomeForcedRestart},
		{"portal opens again after a slow restart", time.Minute, submittingPortal{t: t, inner: idle, form: url.Values{
			"server": {"10.0.1.50"},
			"port":   {"1883"},
		}}, ModeConfigPortal, OutcomeEnteredPortal},
		{"ordinary boot proceeds", time.Minute, idle, ModeAutoConnect, OutcomeProceed},
	}

	for i, pass := range passes {
		now = now.Add(pass.after)
		report := boot(pass.portal)
		if report.Mode != pass.mode || report.Outcome != pass.outcome {
			t.Fatalf("pass %d (%s): mode=%v outcome=%v, want mode=%v outcome=%v",
				i+1, pass.name, report.Mode, report.Outcome, pass.mode, pass.outcome)
		}
	}

	if restarts.Count() != 2 {
		t.Errorf("restarts = %d, want 2", restarts.Count())
	}
	got, err := store.Load()
	if err != nil {
		t.Fatal(err)
	}
	if got.BrokerAddress != "10.0.1.50" || got.BrokerPort != "1883" {
		t.Errorf("stored = %+v", got)
	}
}
