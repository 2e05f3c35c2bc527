package models

// Fixed names inside a generated package directory.
const (
	SourceDirName    = "src"
	EntryFileName    = "lib.rs"
	ManifestName     = "Cargo.toml"
	BuildScriptName  = "build.rs"
	DeviceLayoutName = "device.x"
	LinkerDataName   = "pac.x"
	StateFileName    = ".generator_state.json"
)

// PackageEntries lists the top-level entries a generated package owns inside
// its destination. Anything else in the destination belongs to the user.
func PackageEntries() []string {
	return []string{SourceDirName, ManifestName, BuildScriptName, DeviceLayoutName, LinkerDataName}
}
