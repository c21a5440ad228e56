package resetdetect

import (
	"errors"
	"testing"
	"time"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestDetector(region Region, clock *fakeClock) *Detector {
	d := New(region, 10*time.Second, 0)
	d.SetClock(clock.Now)
	return d
}

// boot simulates a restart: the region survives, the detector does not.
func boot(region Region, clock *fakeClock) (*Detector, bool) {
	d := newTestDetector(region, clock)
	return d, d.DetectDoubleReset()
}

func TestDetectDoubleReset(t *testing.T) {
	tests := []struct {
		name     string
		interval time.Duration
		want     bool
	}{
		{"second reset after 1s", 1 * time.Second, true},
		{"second reset after 5s", 5 * time.Second, true},
		{"second reset at the window edge", 10 * time.Second, true},
		{"second reset just past the window", 10*time.Second + time.Millisecond, false},
		{"second reset after a minute", time.Minute, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			region := NewMemoryRegion(64)
			clock := &fakeClock{t: time.Unix(1700000000, 0)}

			if _, got := boot(region, clock); got {
				t.Fatal("first boot should not be a double reset")
			}
			clock.Advance(tt.interval)
			if _, got := boot(region, clock); got != tt.want {
				t.Errorf("second boot DetectDoubleReset() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDetectDoubleResetRearmsAfterDetection(t *testing.T) {
	region := NewMemoryRegion(64)
	clock := &fakeClock{t: time.Unix(1700000000, 0)}

	boot(region, clock)
	clock.Advance(2 * time.Second)
	if _, got := boot(region, clock); !got {
		t.Fatal("second boot should be a double reset")
	}

	// The flag was refreshed, so a third rapid reset is recognized too
	clock.Advance(9 * time.Second)
	if _, got := boot(region, clock); !got {
		t.Error("third rapid boot should also be a double reset")
	}
}

func TestDetectDoubleResetStaleFlag(t *testing.T) {
	region := NewMemoryRegion(64)
	clock := &fakeClock{t: time.Unix(1700000000, 0)}

	boot(region, clock)
	clock.Advance(time.Hour)
	if _, got := boot(region, clock); got {
		t.Fatal("stale flag should not count")
	}

	// The stale boot re-armed with a fresh stamp
	clock.Advance(3 * time.Second)
	if _, got := boot(region, clock); !got {
		t.Error("reset shortly after a stale boot should be a double reset")
	}
}

func TestDetectDoubleResetClockWentBackwards(t *testing.T) {
	region := NewMemoryRegion(64)
	clock := &fakeClock{t: time.Unix(1700000000, 0)}

	boot(region, clock)
	clock.Advance(-2 * time.Second)
	if _, got := boot(region, clock); got {
		t.Error("a stamp from the future should be treated as stale")
	}
}

func TestStopPreventsDetection(t *testing.T) {
	region := NewMemoryRegion(64)
	clock := &fakeClock{t: time.Unix(1700000000, 0)}

	d, _ := boot(region, clock)
	d.Stop()
	if d.Armed() {
		t.Error("Armed() after Stop() should be false")
	}

	clock.Advance(time.Second)
	if _, got := boot(region, clock); got {
		t.Error("reset after Stop() should not be a double reset")
	}
}

func TestStopIsIdempotent(t *testing.T) {
	region := NewMemoryRegion(64)
	clock := &fakeClock{t: time.Unix(1700000000, 0)}
	d := newTestDetector(region, clock)

	// Never armed
	d.Stop()
	d.Stop()

	d.DetectDoubleReset()
	d.Stop()
	d.Stop()

	var rec [RecordSize]byte
	if _, err := region.ReadAt(rec[:], 0); err != nil {
		t.Fatal(err)
	}
	if _, armed := decodeRecord(rec); armed {
		t.Error("record should be cleared")
	}
}

func TestTick(t *testing.T) {
	region := NewMemoryRegion(64)
	clock := &fakeClock{t: time.Unix(1700000000, 0)}

	d, _ := boot(region, clock)

	clock.Advance(5 * time.Second)
	d.Tick()
	if !d.Armed() {
		t.Fatal("window should still be open after 5s")
	}

	clock.Advance(6 * time.Second)
	d.Tick()
	if d.Armed() {
		t.Fatal("window should close once the timeout elapsed")
	}

	// A reset now is an ordinary one
	clock.Advance(time.Second)
	if _, got := boot(region, clock); got {
		t.Error("reset after the window closed should not be a double reset")
	}
}

func TestTickBeforeDetectIsNoop(t *testing.T) {
	region := NewMemoryRegion(64)
	clock := &fakeClock{t: time.Unix(1700000000, 0)}
	d := newTestDetector(region, clock)

	clock.Advance(time.Minute)
	d.Tick()
	if d.Armed() {
		t.Error("Tick() should not arm the detector")
	}
}

func TestDetectorHonorsOffset(t *testing.T) {
	region := NewMemoryRegion(64)
	clock := &fakeClock{t: time.Unix(1700000000, 0)}

	d := New(region, 0, 32)
	d.SetClock(clock.Now)
	if d.Timeout() != DefaultTimeout {
		t.Errorf("Timeout() = %v, want default %v", d.Timeout(), DefaultTimeout)
	}
	d.DetectDoubleReset()

	var head [RecordSize]byte
	_, _ = region.ReadAt(head[:], 0)
	if _, armed := decodeRecord(head); armed {
		t.Error("offset 0 should be untouched")
	}
	var rec [RecordSize]byte
	_, _ = region.ReadAt(rec[:], 32)
	if _, armed := decodeRecord(rec); !armed {
		t.Error("record should be armed at offset 32")
	}
}

type failingRegion struct{}

func (failingRegion) ReadAt([]byte, int64) (int, error)  { return 0, errors.New("bus error") }
func (failingRegion) WriteAt([]byte, int64) (int, error) { return 0, errors.New("bus error") }

func TestRegionErrorsTreatedAsNoFlag(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1700000000, 0)}
	d := newTestDetector(failingRegion{}, clock)

	if d.DetectDoubleReset() {
		t.Error("unreadable region should mean no double reset")
	}
	d.Stop()
	d.Tick()
}

func TestRecordEncoding(t *testing.T) {
	stamp := time.Unix(1700000000, 123456789)
	rec := encodeRecord(stamp)

	got, armed := decodeRecord(rec)
	if !armed {
		t.Fatal("encoded record should be armed")
	}
	if !got.Equal(stamp) {
		t.Errorf("decoded stamp = %v, want %v", got, stamp)
	}

	if _, armed := decodeRecord([RecordSize]byte{}); armed {
		t.Error("zero record should not be armed")
	}
}

func TestForcePortal(t *testing.T) {
	tests := []struct {
		name     string
		interval time.Duration
	}{
		{"immediate restart", 0},
		{"restart inside the window", 5 * time.Second},
		{"restart long after the window", time.Hour},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			region := NewMemoryRegion(64)
			clock := &fakeClock{t: time.Unix(1700000000, 0)}

			d, _ := boot(region, clock)
			d.Stop()
			d.ForcePortal()
			if d.Armed() {
				t.Error("ForcePortal should close this boot's window")
			}

			clock.Advance(tt.interval)
			next, got := boot(region, clock)
			if !got {
				t.Fatal("boot after ForcePortal should report a double reset")
			}

			// The request is consumed: the boot after that is ordinary
			next.Stop()
			clock.Advance(time.Minute)
			if _, got := boot(region, clock); got {
				t.Error("portal request should only apply once")
			}
		})
	}
}

func TestStopClearsPortalRequest(t *testing.T) {
	region := NewMemoryRegion(64)
	clock := &fakeClock{t: time.Unix(1700000000, 0)}

	d, _ := boot(region, clock)
	d.ForcePortal()
	d.Stop()

	clock.Advance(time.Minute)
	if _, got := boot(region, clock); got {
		t.Error("Stop should withdraw the portal request")
	}
}
