// Package generator drives one crate generation end to end: fingerprint the
// inputs, decide whether the destination is current, run the toolchain
// pipeline in a scratch workspace, assemble the package and commit state.
//
// Side channels (run history, completion events, metrics) never change the
// outcome of a run; their failures are logged and dropped.
package generator
