// Package system wraps the host the upgrader runs on: external commands,
// /etc/os-release detection and reboots.
package system
