package provision

import (
	"context"
	"time"
)

// Serve runs the service loop until ctx is canceled. Every tick services
// the update collaborator and lets the reset detector close its window.
func (c *Controller) Serve(ctx context.Context) error {
	ticker := time.NewTicker(c.config.ServiceInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			c.ServiceOnce()
		}
	}
}

// ServiceOnce runs a single service-loop iteration
func (c *Controller) ServiceOnce() {
	c.deps.OTA.ServiceOnce()
	c.deps.Detector.Tick()
}
