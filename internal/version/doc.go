// Package version exposes build metadata for the upgrader.
//
// Variables Version, Revision, Commit, and BuildTime are injected at build time via
// Go ldflags (see Makefile) and default to sensible values for local builds.
// FromDescribe turns `git describe` output into the release version the same way
// the build does, so the Makefile and tests agree on the format.
package version
