//go:build unix

package provision

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"github.com/swartninja/provisioner/internal/logging"
)

// ExecRestarter replaces the running process with a fresh copy of the same
// binary, so the restart starts from a clean process state.
type ExecRestarter struct {
	// Path is the binary to execute (default: os.Executable)
	Path string

	// Args is the argument vector including argv[0] (default: os.Args)
	Args []string

	// Env is the environment (default: os.Environ)
	Env []string

	exec func(argv0 string, argv []string, envv []string) error
}

// NewExecRestarter creates a restarter re-executing the current binary
func NewExecRestarter() *ExecRestarter {
	return &ExecRestarter{exec: unix.Exec}
}

// Restart implements Restarter. On success it does not return.
func (r *ExecRestarter) Restart() error {
	path := r.Path
	if path == "" {
		exe, err := os.Executable()
		if err != nil {
			return fmt.Errorf("failed to locate executable: %w", err)
		}
		path = exe
	}
	args := r.Args
	if len(args) == 0 {
		args = os.Args
	}
	env := r.Env
	if env == nil {
		env = os.Environ()
	}
	run := r.exec
	if run == nil {
		run = unix.Exec
	}

	logging.Info("Re-executing", zap.String("path", path), zap.Strings("args", args))
	logging.Sync()
	if err := run(path, args, env); err != nil {
		return fmt.Errorf("exec %s: %w", path, err)
	}
	return nil
}
