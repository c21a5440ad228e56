package radio

import (
	"context"
	"errors"
	"net"
	"testing"
)

func TestSimJoinKnownNetwork(t *testing.T) {
	ctx := context.Background()
	sim := NewSim(SimNetwork{SSID: "home", RSSI: -60, Passphrase: "secret123"})

	err := sim.JoinKnownNetwork(ctx, nil)
	if !errors.Is(err, ErrNoKnownNetwork) {
		t.Fatalf("JoinKnownNetwork() with nothing remembered error = %v", err)
	}

	sim.Remember("home", "secret123")
	hint := DefaultStaticIP()
	if err := sim.JoinKnownNetwork(ctx, &hint); err != nil {
		t.Fatalf("JoinKnownNetwork() error = %v", err)
	}
	if sim.Connected() != "home" {
		t.Errorf("Connected() = %q", sim.Connected())
	}
	if !sim.LocalAddress().Equal(net.IPv4(10, 0, 1, 99)) {
		t.Errorf("LocalAddress() = %v, want static hint", sim.LocalAddress())
	}
}

func TestSimJoinKnownNetworkWrongPassphrase(t *testing.T) {
	sim := NewSim(SimNetwork{SSID: "home", RSSI: -60, Passphrase: "secret123"})
	sim.Remember("home", "changed!")

	if err := sim.JoinKnownNetwork(context.Background(), nil); !errors.Is(err, ErrNoKnownNetwork) {
		t.Errorf("JoinKnownNetwork() error = %v, want ErrNoKnownNetwork", err)
	}
}

func TestSimJoinRemembers(t *testing.T) {
	ctx := context.Background()
	sim := NewSim(SimNetwork{SSID: "home", RSSI: -60, Passphrase: "secret123"})

	if err := sim.Join(ctx, Credentials{SSID: "home", Passphrase: "wrong"}, nil); err == nil {
		t.Fatal("Join() with wrong passphrase should fail")
	}
	if err := sim.Join(ctx, Credentials{SSID: "absent"}, nil); err == nil {
		t.Fatal("Join() of an invisible network should fail")
	}
	if err := sim.Join(ctx, Credentials{SSID: "home", Passphrase: "secret123"}, nil); err != nil {
		t.Fatalf("Join() error = %v", err)
	}
	if !sim.LocalAddress().Equal(sim.StationAddress) {
		t.Errorf("LocalAddress() = %v, want DHCP address", sim.LocalAddress())
	}

	// Next boot
	if err := sim.Disconnect(); err != nil {
		t.Fatal(err)
	}
	if sim.LocalAddress() != nil {
		t.Error("LocalAddress() after Disconnect() should be nil")
	}
	if err := sim.JoinKnownNetwork(ctx, nil); err != nil {
		t.Errorf("JoinKnownNetwork() after Join() error = %v", err)
	}
}

func TestSimJoinErr(t *testing.T) {
	sim := NewSim(SimNetwork{SSID: "home"})
	sim.Remember("home", "")
	sim.JoinErr = errors.New("radio off")

	err := sim.JoinKnownNetwork(context.Background(), nil)
	if !errors.Is(err, ErrNoKnownNetwork) {
		t.Errorf("JoinKnownNetwork() error = %v, want wrapped ErrNoKnownNetwork", err)
	}
}

func TestSimAccessPoint(t *testing.T) {
	sim := NewSim()

	if _, err := sim.StartAccessPoint(context.Background(), "ap", "short"); err == nil {
		t.Error("StartAccessPoint() with a 5-character passphrase should fail")
	}

	ip, err := sim.StartAccessPoint(context.Background(), "SwartNinjaNoT42", "SwartNinja")
	if err != nil {
		t.Fatalf("StartAccessPoint() error = %v", err)
	}
	if !ip.Equal(net.IPv4(127, 0, 0, 1)) {
		t.Errorf("StartAccessPoint() = %v", ip)
	}
	if up, ssid := sim.AccessPointUp(); !up || ssid != "SwartNinjaNoT42" {
		t.Errorf("AccessPointUp() = %v, %q", up, ssid)
	}

	if err := sim.StopAccessPoint(); err != nil {
		t.Fatal(err)
	}
	if up, _ := sim.AccessPointUp(); up {
		t.Error("access point should be down")
	}
}

func TestSimScan(t *testing.T) {
	sim := NewSim(
		SimNetwork{SSID: "open", RSSI: -70},
		SimNetwork{SSID: "home", RSSI: -55, Passphrase: "secret123"},
	)

	networks, err := sim.Scan(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(networks) != 2 {
		t.Fatalf("Scan() returned %d networks", len(networks))
	}
	if networks[0].Secure || networks[0].Quality != 60 {
		t.Errorf("open network = %+v", networks[0])
	}
	if !networks[1].Secure || networks[1].Quality != 90 {
		t.Errorf("home network = %+v", networks[1])
	}
}

func TestSimHonorsCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	sim := NewSim(SimNetwork{SSID: "home"})
	sim.Remember("home", "")

	if err := sim.JoinKnownNetwork(ctx, nil); !errors.Is(err, context.Canceled) {
		t.Errorf("JoinKnownNetwork() error = %v", err)
	}
	if _, err := sim.Scan(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Scan() error = %v", err)
	}
}

func TestSimRecordsCalls(t *testing.T) {
	sim := NewSim()
	ctx := context.Background()

	_ = sim.JoinKnownNetwork(ctx, nil)
	_, _ = sim.StartAccessPoint(ctx, "ap", "")
	_ = sim.StopAccessPoint()
	_ = sim.Disconnect()

	want := []string{"JoinKnownNetwork", "StartAccessPoint", "StopAccessPoint", "Disconnect"}
	got := sim.Calls()
	if len(got) != len(want) {
		t.Fatalf("Calls() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Calls()[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}
