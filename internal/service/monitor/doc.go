// Package monitor follows a running upgrade from another terminal, rendering
// its progress until the flow stops.
package monitor
