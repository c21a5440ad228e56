package provision

import (
	"fmt"
	"net"

	"github.com/swartninja/provisioner/internal/brokerconfig"
)

// State is a step of the boot-time decision sequence
type State int

const (
	StateBooting State = iota
	StateDecidingMode
	StateConfigPortalSession
	StateNormalConnectAttempt
	StateValidatingConfig
	StateProceeding
	StateForcingRestart
)

// String returns the state name used in logs
func (s State) String() string {
	switch s {
	case StateBooting:
		return "Booting"
	case StateDecidingMode:
		return "DecidingMode"
	case StateConfigPortalSession:
		return "ConfigPortalSession"
	case StateNormalConnectAttempt:
		return "NormalConnectAttempt"
	case StateValidatingConfig:
		return "ValidatingConfig"
	case StateProceeding:
		return "Proceeding"
	case StateForcingRestart:
		return "ForcingRestart"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Terminal reports whether the boot pass ends in s
func (s State) Terminal() bool {
	return s == StateProceeding || s == StateForcingRestart
}

// Outcome is the result of one boot pass
type Outcome int

const (
	// OutcomeProceed means the stored or default configuration was usable
	OutcomeProceed Outcome = iota + 1
	// OutcomeEnteredPortal means the operator submitted a usable
	// configuration through the portal
	OutcomeEnteredPortal
	// OutcomeForcedRestart means the configuration was unusable and the
	// boot sequence was restarted
	OutcomeForcedRestart
)

// String returns a human-readable name for the outcome
func (o Outcome) String() string {
	switch o {
	case OutcomeProceed:
		return "proceed"
	case OutcomeEnteredPortal:
		return "entered-portal"
	case OutcomeForcedRestart:
		return "forced-restart"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// Mode is the connection path chosen at boot
type Mode int

const (
	// ModeAutoConnect joins a known network, opening the portal only when
	// that fails
	ModeAutoConnect Mode = iota + 1
	// ModeConfigPortal opens the portal directly after a double reset
	ModeConfigPortal
)

// String returns a human-readable name for the mode
func (m Mode) String() string {
	switch m {
	case ModeAutoConnect:
		return "autoconnect"
	case ModeConfigPortal:
		return "config-portal"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// Report summarizes a boot pass
type Report struct {
	Outcome Outcome
	State   State
	Mode    Mode

	// Config is the configuration in effect at the end of the pass
	Config brokerconfig.ConnectionConfig

	// Persisted reports whether a submitted configuration was saved
	Persisted bool

	// Connected reports whether the radio joined a network
	Connected bool

	// LocalAddress is the station address when proceeding
	LocalAddress net.IP
}
