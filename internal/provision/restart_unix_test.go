//go:build unix

package provision

import (
	"errors"
	"testing"
)

func TestExecRestarter(t *testing.T) {
	var gotPath string
	var gotArgs, gotEnv []string
	r := &ExecRestarter{
		Path: "/usr/bin/provisiond",
		Args: []string{"provisiond", "run"},
		Env:  []string{"PROVISIONER_LOG_LEVEL=debug"},
		exec: func(path string, args, env []string) error {
			gotPath, gotArgs, gotEnv = path, args, env
			return nil
		},
	}

	if err := r.Restart(); err != nil {
		t.Fatalf("Restart() error = %v", err)
	}
	if gotPath != "/usr/bin/provisiond" || len(gotArgs) != 2 || gotArgs[1] != "run" || len(gotEnv) != 1 {
		t.Errorf("exec(%q, %v, %v)", gotPath, gotArgs, gotEnv)
	}
}

func TestExecRestarterDefaults(t *testing.T) {
	var gotPath string
	var gotArgs []string
	r := &ExecRestarter{exec: func(path string, args, _ []string) error {
		gotPath, gotArgs = path, args
		return nil
	}}

	if err := r.Restart(); err != nil {
		t.Fatal(err)
	}
	if gotPath == "" || len(gotArgs) == 0 {
		t.Errorf("defaults not applied: path=%q args=%v", gotPath, gotArgs)
	}
}

func TestExecRestarterError(t *testing.T) {
	r := &ExecRestarter{Path: "/nonexistent", exec: func(string, []string, []string) error {
		return errors.New("no such file or directory")
	}}
	if err := r.Restart(); err == nil {
		t.Error("Restart() should surface the exec error")
	}
}
