// Package distupgrade is the command engine: it picks the upgrader for the
// running system, runs its plan phase by phase, persists progress between
// reboots and implements the informational modes (plan, status, monitor and
// feedback).
package distupgrade
