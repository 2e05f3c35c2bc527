// Package state persists the fingerprint of the last successful generation
// inside the destination package and decides whether a destination is
// current.
//
// The record is the file .generator_state.json. It is only written after a
// complete package was swapped into place and is removed before any
// replacement begins, so its presence always describes the package beside it.
package state
