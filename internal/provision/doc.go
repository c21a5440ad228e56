// Package provision is the boot-time provisioning state machine.
//
//	Booting -> DecidingMode -> ConfigPortalSession  -> ValidatingConfig -> Proceeding
//	                        \-> NormalConnectAttempt -/                  \-> ForcingRestart
//
// Booting loads the stored broker configuration, falling back to defaults
// on any storage error. DecidingMode asks the reset detector whether the
// operator double-reset the device: if so the portal opens directly,
// otherwise the known network is tried first. Once the portal interaction
// is over, a submitted configuration is saved and validated. A usable
// configuration (broker address and port both set) proceeds; anything else
// drops the network and restarts the boot sequence.
//
// After Boot, Serve runs the service loop that drives the update service
// and closes the double-reset window.
package provision
