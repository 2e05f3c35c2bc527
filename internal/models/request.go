// Package models holds the value types shared by the generation components.
package models

// GenerationRequest identifies one crate generation. All paths are already
// resolved against the host root. It is immutable for the duration of a run.
type GenerationRequest struct {
	CrateName    string
	CrateVersion string

	// SVDPath is the register-description input.
	SVDPath string
	// LinkerScriptPath is optional; empty means not supplied.
	LinkerScriptPath string
	// OutputPath is the destination package directory.
	OutputPath string
}

// HasLinkerScript reports whether the caller supplied a linker script.
func (r GenerationRequest) HasLinkerScript() bool {
	return r.LinkerScriptPath != ""
}
