package resetdetect

import (
	"encoding/binary"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/swartninja/provisioner/internal/logging"
)

const (
	// DefaultTimeout is the window within which a second reset counts as
	// a double reset
	DefaultTimeout = 10 * time.Second

	// RecordSize is the size of the retained record: magic + stamp
	RecordSize = 12
)

// flagMagic marks an armed record and portalMagic a portal request left
// by ForcePortal. Anything else in the first four bytes (including
// power-on zeros) means "not armed".
const (
	flagMagic   uint32 = 0xD0D01234
	portalMagic uint32 = 0xD0D0C0F6
)

// Detector recognizes a double reset from a flag kept in retained memory.
//
// A boot arms the flag with the current time. If the next boot finds the
// flag armed and younger than the timeout, that boot is a double reset.
// Stop clears the flag once the system has committed to a course of
// action; Tick clears it when the window closes on its own. ForcePortal
// leaves a request that the next boot reports as a double reset whatever
// its age.
type Detector struct {
	region  Region
	offset  int64
	timeout time.Duration
	now     func() time.Time

	mu      sync.Mutex
	waiting bool
	armedAt time.Time
}

// New creates a detector keeping its record at offset in region. A
// non-positive timeout selects DefaultTimeout.
func New(region Region, timeout time.Duration, offset int64) *Detector {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Detector{
		region:  region,
		offset:  offset,
		timeout: timeout,
		now:     time.Now,
	}
}

// SetClock replaces the time source
func (d *Detector) SetClock(now func() time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.now = now
}

// Timeout returns the detection window
func (d *Detector) Timeout() time.Duration {
	return d.timeout
}

// DetectDoubleReset reports whether this boot follows the previous one
// within the timeout. The flag is (re-)armed with the current time in every
// case, so a further rapid reset is recognized as well.
func (d *Detector) DetectDoubleReset() bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	stamp, armed, forced := d.readFlag()

	detected := false
	switch {
	case forced:
		logging.Debug("Portal requested by previous boot")
		detected = true
	case !armed:
		logging.Debug("No reset flag present")
	default:
		elapsed := now.Sub(stamp)
		if elapsed < 0 || elapsed > d.timeout {
			logging.Debug("Stale reset flag",
				zap.Duration("elapsed", elapsed),
				zap.Duration("timeout", d.timeout),
			)
		} else {
			detected = true
		}
	}

	d.writeFlag(now)
	d.waiting = true
	d.armedAt = now

	logging.LogDecision("Reset detection complete",
		zap.Bool("double_reset", detected),
		zap.Duration("timeout", d.timeout),
	)
	return detected
}

// Stop clears the flag so a later reset is never taken as part of the same
// gesture. Calling it again, or with no flag armed, does nothing harmful.
func (d *Detector) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopLocked()
}

func (d *Detector) stopLocked() {
	wasWaiting := d.waiting
	d.waiting = false

	var zero [RecordSize]byte
	if _, err := d.region.WriteAt(zero[:], d.offset); err != nil {
		logging.Warn("Failed to clear reset flag", zap.Error(err))
		return
	}
	if wasWaiting {
		logging.Debug("Reset flag cleared")
	}
}

// Tick closes the detection window once the timeout since this boot's
// arming has elapsed. It is called on every service-loop iteration.
func (d *Detector) Tick() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.waiting {
		return
	}
	if d.now().Sub(d.armedAt) > d.timeout {
		logging.Debug("Reset detection window elapsed")
		d.stopLocked()
	}
}

// Armed reports whether this boot's detection window is still open
func (d *Detector) Armed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.waiting
}

// ForcePortal makes the next DetectDoubleReset return true, however long
// the restart takes. The request survives until that boot reads it or
// Stop clears it.
func (d *Detector) ForcePortal() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.waiting = false
	rec := encodeMarker(portalMagic, d.now())
	if _, err := d.region.WriteAt(rec[:], d.offset); err != nil {
		logging.Warn("Failed to request portal for next boot", zap.Error(err))
		return
	}
	logging.Debug("Portal requested for next boot")
}

func (d *Detector) readFlag() (stamp time.Time, armed, forced bool) {
	var rec [RecordSize]byte
	if _, err := d.region.ReadAt(rec[:], d.offset); err != nil {
		logging.Warn("Failed to read reset flag, assuming none", zap.Error(err))
		return time.Time{}, false, false
	}
	stamp, armed = decodeRecord(rec)
	return stamp, armed, isPortalRequest(rec)
}

func (d *Detector) writeFlag(now time.Time) {
	rec := encodeRecord(now)
	if _, err := d.region.WriteAt(rec[:], d.offset); err != nil {
		logging.Warn("Failed to arm reset flag", zap.Error(err))
	}
}

func encodeRecord(t time.Time) [RecordSize]byte {
	return encodeMarker(flagMagic, t)
}

func encodeMarker(magic uint32, t time.Time) [RecordSize]byte {
	var rec [RecordSize]byte
	binary.LittleEndian.PutUint32(rec[0:4], magic)
	binary.LittleEndian.PutUint64(rec[4:12], uint64(t.UnixNano()))
	return rec
}

// decodeRecord returns the stamp of an armed record. A portal request
// counts as armed.
func decodeRecord(rec [RecordSize]byte) (time.Time, bool) {
	switch binary.LittleEndian.Uint32(rec[0:4]) {
	case flagMagic, portalMagic:
		return time.Unix(0, int64(binary.LittleEndian.Uint64(rec[4:12]))), true
	default:
		return time.Time{}, false
	}
}

func isPortalRequest(rec [RecordSize]byte) bool {
	return binary.LittleEndian.Uint32(rec[0:4]) == portalMagic
}
