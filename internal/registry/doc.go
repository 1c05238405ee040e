// Package registry keeps the upgraders compiled into the binary and selects
// the one able to convert the running system.
package registry
