// Package workspace manages the scratch directory the transformation
// pipeline runs its tools in.
//
// Ephemeral mode creates a unique directory (e.g. pacgen-blinky-pac-1234567)
// and removes it after the run. Keep mode leaves the directory in place so
// intermediate artifacts (lib.rs, device.x, the split tree) can be inspected
// after a failing tool.
package workspace
