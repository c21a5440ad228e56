//go:build !unix

package provision

import (
	"fmt"
	"runtime"
)

// ExecRestarter is unavailable on this platform
type ExecRestarter struct {
	Path string
	Args []string
	Env  []string
}

// NewExecRestarter creates a restarter that always fails on this platform
func NewExecRestarter() *ExecRestarter {
	return &ExecRestarter{}
}

// Restart implements Restarter
func (r *ExecRestarter) Restart() error {
	return fmt.Errorf("process re-exec is not supported on %s", runtime.GOOS)
}
