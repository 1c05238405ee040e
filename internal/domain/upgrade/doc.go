// Package upgrade contains core domain types for the dist-upgrade process.
//
// It defines the Phase a run executes, the RebootType an action may request,
// the SystemDescription used to pick an upgrader, and the Progress persisted
// between reboots, with Clone helpers to avoid leaking internal references.
package upgrade
