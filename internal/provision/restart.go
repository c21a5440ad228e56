package provision

import (
	"sync"

	"go.uber.org/zap"

	"github.com/swartninja/provisioner/internal/logging"
)

// Restarter restarts the boot sequence
type Restarter interface {
	Restart() error
}

// LoopRestarter records restart requests; the caller re-runs Boot
// in-process when a pass ends in OutcomeForcedRestart.
type LoopRestarter struct {
	mu    sync.Mutex
	count int
}

// Restart implements Restarter
func (r *LoopRestarter) Restart() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.count++
	logging.Info("Restarting boot sequence", zap.Int("restarts", r.count))
	return nil
}

// Count returns how many restarts were requested
func (r *LoopRestarter) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}
