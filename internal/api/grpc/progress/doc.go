// Package progress implements the gRPC transport of the upgrade progress.
//
// The service has a single unary method returning a google.protobuf.Struct, so
// its descriptor is declared by hand instead of generated. A running upgrade
// serves it on a unix socket together with the standard health service; the
// --monitor mode reads it through Client.
package progress
