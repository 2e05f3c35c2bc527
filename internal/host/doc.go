// Package host implements the FuseSoC generator protocol: it reads the
// generator input file handed over by FuseSoC and writes back a core file
// describing the generated files.
//
// A Registry is created per request; nothing is kept in package state.
package host
