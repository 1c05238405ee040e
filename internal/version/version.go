package version

import (
	"fmt"
	"strings"
)

var (
	// Version is the semantic version of the build. When empty it is derived
	// from Revision. It can be overridden via ldflags.
	Version = ""
	// Revision is the full `git describe` output the build was made from.
	Revision = "dev"
	// Commit is the short git SHA embedded at build time (or "none").
	Commit = "none"
	// BuildTime is the UTC build timestamp embedded at build time.
	BuildTime = "unknown"
)

// Short returns only the semantic version string.
func Short() string {
	if Version != "" {
		return Version
	}

	if derived := FromDescribe(Revision); derived != "" {
		return derived
	}

	return Revision
}

// Full returns a human-readable version string with revision, commit and build time.
func Full() string {
	return fmt.Sprintf("version: %s, revision: %s, commit: %s, built at: %s", Short(), Revision, Commit, BuildTime)
}

// FromDescribe extracts the release version from `git describe` output.
// "v1.2.3-4-gabcdef" yields "1.2.3". A revision without a '-' separator
// (an exact tag or a bare hash) yields an empty string.
func FromDescribe(revision string) string {
	if !strings.Contains(revision, "-") {
		return ""
	}

	trimmed := strings.TrimLeft(revision, "v")
	head, _, _ := strings.Cut(trimmed, "-")

	return head
}
