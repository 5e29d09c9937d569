package build

import (
	"fmt"
	"runtime/debug"
	"strings"
)

const (
	// AppMajor is the major version component.
	AppMajor uint = 0

	// AppMinor is the minor version component.
	AppMinor uint = 1

	// AppPatch is the patch version component.
	AppPatch uint = 0

	// AppPreRelease is appended as a pre-release suffix when non-empty.
	AppPreRelease = "beta"
)

var (
	// Commit is set at link time with
	// -ldflags "-X github.com/roasbeef/canvasrca/internal/build.Commit=...".
	Commit string

	// RawTags is the comma separated list of build tags, set at link time.
	RawTags string

	// CommitHash and GoVersion are filled from the embedded build info.
	CommitHash string
	GoVersion  string
)

func init() {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}

	GoVersion = info.GoVersion
	for _, s := range info.Settings {
		if s.Key == "vcs.revision" {
			CommitHash = s.Value
		}
	}
}

// Version returns the semantic version of the application.
func Version() string {
	v := fmt.Sprintf("%d.%d.%d", AppMajor, AppMinor, AppPatch)
	if AppPreRelease != "" {
		v += "-" + AppPreRelease
	}

	return v
}

// Tags returns the build tags the binary was built with.
func Tags() []string {
	if RawTags == "" {
		return nil
	}

	return strings.Split(RawTags, ",")
}

// VersionString renders the version with any known build metadata.
func VersionString() string {
	var b strings.Builder
	b.WriteString(Version())

	switch {
	case Commit != "":
		fmt.Fprintf(&b, " commit=%s", Commit)
	case CommitHash != "":
		fmt.Fprintf(&b, " commit=%s", CommitHash)
	}

	if GoVersion != "" {
		fmt.Fprintf(&b, " go=%s", GoVersion)
	}

	if tags := Tags(); len(tags) > 0 {
		fmt.Fprintf(&b, " tags=%s", RawTags)
	}

	return b.String()
}
