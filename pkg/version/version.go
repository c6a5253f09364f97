// Package version holds the build version of mhlsync, stamped in with
// -ldflags at release time.
package version

// EmptyValue is the version of binaries that weren't built by the release
// scripts, such as test binaries.
const EmptyValue = "set-by-make"

// Version is the git tag the binary was built from. Builds of untagged
// commits also carry the commit hash.
var Version = EmptyValue

// String returns a printable description of the version.
func String() string {
	if Version == EmptyValue {
		return "development build"
	}
	return Version
}
