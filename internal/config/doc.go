// Package config defines the upgrader settings and provides helpers to load,
// validate and save them in YAML format.
//
// Every setting has a default, so the settings file is optional; command-line
// flags override whatever the file provides.
package config
