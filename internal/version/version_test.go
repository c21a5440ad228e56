package version

import (
	"runtime/debug"
	"testing"
)

func TestFromBuildInfo(t *testing.T) {
	oldVersion, oldCommit := Version, Commit
	defer func() { Version, Commit = oldVersion, oldCommit }()

	Version, Commit = "", ""
	fromBuildInfo(func() (*debug.BuildInfo, bool) {
		return &debug.BuildInfo{
			Main: debug.Module{Version: "v0.3.1"},
			Settings: []debug.BuildSetting{
				{Key: "vcs.revision", Value: "0123456789abcdef"},
				{Key: "vcs.modified", Value: "true"},
			},
		}, true
	})

	if Version != "v0.3.1" {
		t.Errorf("Version = %q, want v0.3.1", Version)
	}
	if Commit != "0123456-dirty" {
		t.Errorf("Commit = %q, want 0123456-dirty", Commit)
	}
}

func TestFromBuildInfoDevel(t *testing.T) {
	oldVersion, oldCommit := Version, Commit
	defer func() { Version, Commit = oldVersion, oldCommit }()

	Version, Commit = "", ""
	fromBuildInfo(func() (*debug.BuildInfo, bool) {
		return &debug.BuildInfo{Main: debug.Module{Version: "(devel)"}}, true
	})

	if Version != "" {
		t.Errorf("Version = %q, want empty for devel builds", Version)
	}
}

func TestFull(t *testing.T) {
	oldVersion, oldCommit := Version, Commit
	defer func() { Version, Commit = oldVersion, oldCommit }()

	Version, Commit = "v1.0.0", "abc1234"
	if got := Full(); got != "v1.0.0 (commit: abc1234)" {
		t.Errorf("Full() = %q", got)
	}
}
