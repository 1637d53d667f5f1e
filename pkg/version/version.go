package version

import "runtime/debug"

var version = "dev"

// Get returns the version of the build, preferring the value injected at
// link time over module build info.
func Get() string {
	if version != "dev" {
		return version
	}
	if info, ok := debug.ReadBuildInfo(); ok {
		if v := info.Main.Version; v != "" && v != "(devel)" {
			return v
		}
	}
	return version
}
