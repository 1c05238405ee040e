// Package debian11to12 describes the conversion of a Debian 11 server with
// Plesk to Debian 12: the stages, the preconditions and the diagnostics to
// collect.
package debian11to12
