package app

import (
	"fmt"
	"runtime/debug"
)

// Version, Commit, and BuildTime are set via ldflags at build time.
// Example: go build -ldflags "-X github.com/japaniel/kotoba/pkg/app.Version=1.0.0"
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

// BuildInfo describes the running binary.
type BuildInfo struct {
	Version   string
	Commit    string
	BuildTime string
	GoVersion string
	Modified  bool
}

// ReadBuildInfo starts from the ldflags values and fills whatever they left
// unset from the module and VCS stamp embedded by the go command.
func ReadBuildInfo() BuildInfo {
	info := BuildInfo{Version: Version, Commit: Commit, BuildTime: BuildTime}
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return info
	}
	return info.merge(bi)
}

func (b BuildInfo) merge(bi *debug.BuildInfo) BuildInfo {
	b.GoVersion = bi.GoVersion
	if b.Version == "dev" && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
		b.Version = bi.Main.Version
	}
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			if b.Commit == "unknown" {
				b.Commit = shortRevision(s.Value)
			}
		case "vcs.time":
			if b.BuildTime == "unknown" {
				b.BuildTime = s.Value
			}
		case "vcs.modified":
			b.Modified = s.Value == "true"
		}
	}
	return b
}

func shortRevision(rev string) string {
	if len(rev) > 12 {
		return rev[:12]
	}
	return rev
}

func (b BuildInfo) String() string {
	commit := b.Commit
	if b.Modified {
		commit += "-dirty"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", b.Version, commit, b.BuildTime)
}

// BuildVersion returns a formatted version string for startup logs and health endpoints.
func BuildVersion() string {
	return ReadBuildInfo().String()
}
