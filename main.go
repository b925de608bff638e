package main

import (
	"runtime/debug"

	"github.com/evans/recall/cmd"
)

// Version is injected at build time via -ldflags "-X main.Version=...".
var Version = "dev"

// resolveVersion falls back to Go build info when no version was injected:
// the module version for `go install ...@vX.Y.Z` builds, otherwise the VCS
// revision as devel+<sha>[+dirty].
func resolveVersion(v string) string {
	if v != "" && v != "dev" {
		return v
	}

	info, ok := debug.ReadBuildInfo()
	if !ok || info == nil {
		return v
	}
	if info.Main.Version != "" && info.Main.Version != "(devel)" {
		return info.Main.Version
	}

	var rev string
	dirty := false
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			rev = s.Value
		case "vcs.modified":
			dirty = s.Value == "true"
		}
	}
	if rev == "" {
		return v
	}
	if len(rev) > 12 {
		rev = rev[:12]
	}
	version := "devel+" + rev
	if dirty {
		version += "+dirty"
	}
	return version
}

func main() {
	cmd.SetVersion(resolveVersion(Version))
	cmd.Execute()
}
