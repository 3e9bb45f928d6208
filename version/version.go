// Package version exposes the build version, either injected at build time
// or recovered from the embedded VCS metadata.
package version

import "runtime/debug"

// Version can be set at build time:
// go build -ldflags "-X github.com/luminet/showsignal/version.Version=$(git describe --dirty)"
var Version string

var Hash = func() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}
	hash, modified := "", false
	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			if len(setting.Value) >= 7 {
				hash = setting.Value[:7]
			}
		case "vcs.modified":
			modified = setting.Value == "true"
		}
	}
	if hash != "" && modified {
		return hash + "-dirty"
	}
	return hash
}()

var VersionOrHash = func() string {
	if Version != "" {
		return Version
	}
	return Hash
}()
