// Package actions implements the concrete steps and checks a Plesk server
// needs to move between Debian releases.
//
// Every action takes the paths it touches and a system.Runner for external
// commands, so the whole package can be exercised against a temporary
// directory and a recording runner.
package actions
